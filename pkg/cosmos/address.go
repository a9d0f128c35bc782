package cosmos

import (
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
	"github.com/certusone/wormhole/connect/pkg/vaa"
)

const (
	// accountAddressLength is the length of an account (public key hash) address.
	accountAddressLength = 20
	// contractAddressLength is the length of a CosmWasm contract address.
	contractAddressLength = 32
)

// decodeBech32 returns the human readable part and the raw bytes of a bech32 address.
func decodeBech32(address string) (string, []byte, error) {
	hrp, data, err := bech32.Decode(address)
	if err != nil {
		return "", nil, err
	}
	raw, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return "", nil, err
	}
	return hrp, raw, nil
}

func encodeBech32(prefix string, raw []byte) (string, error) {
	conv, err := bech32.ConvertBits(raw, 8, 5, true)
	if err != nil {
		return "", err
	}
	return bech32.Encode(prefix, conv)
}

// ToUniversal decodes a bech32 address with the given prefix and left-pads it to 32 bytes.
func ToUniversal(prefix string, address string) (vaa.Address, error) {
	hrp, raw, err := decodeBech32(address)
	if err != nil {
		return vaa.Address{}, fmt.Errorf("invalid bech32 address %q: %w", address, err)
	}
	if hrp != prefix {
		return vaa.Address{}, fmt.Errorf("address %q does not have prefix %q", address, prefix)
	}
	if len(raw) != accountAddressLength && len(raw) != contractAddressLength {
		return vaa.Address{}, fmt.Errorf("address %q has unsupported length %d", address, len(raw))
	}
	return vaa.BytesToAddress(raw)
}

// FromUniversal encodes a universal address as a bech32 address. Addresses whose first 12 bytes are zero are
// accounts and use the 20 byte form, anything else is a 32 byte contract address.
func FromUniversal(prefix string, address vaa.Address) (string, error) {
	if address.HasZeroPrefix(contractAddressLength - accountAddressLength) {
		return encodeBech32(prefix, address[contractAddressLength-accountAddressLength:])
	}
	return encodeBech32(prefix, address[:])
}

// RecipientFromUniversal decodes a transfer recipient, which the token bridge pays out to the account formed by the
// last 20 bytes of the universal address.
func RecipientFromUniversal(prefix string, address vaa.Address) (string, error) {
	return encodeBech32(prefix, address[contractAddressLength-accountAddressLength:])
}

// isAddress reports whether s is a bech32 address with the given prefix.
func isAddress(prefix string, s string) bool {
	hrp, _, err := decodeBech32(s)
	return err == nil && hrp == prefix
}
