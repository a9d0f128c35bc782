package evm

import (
	"fmt"

	"github.com/certusone/wormhole/connect/pkg/vaa"
	ethcommon "github.com/ethereum/go-ethereum/common"
)

// ToUniversal left-pads a hex encoded 20 byte address to 32 bytes.
func ToUniversal(address string) (vaa.Address, error) {
	if !ethcommon.IsHexAddress(address) {
		return vaa.Address{}, fmt.Errorf("invalid EVM address %q", address)
	}
	return PadAddress(ethcommon.HexToAddress(address)), nil
}

// PadAddress converts an EVM address to its universal form.
func PadAddress(address ethcommon.Address) vaa.Address {
	var a vaa.Address
	copy(a[12:], address[:])
	return a
}

// FromUniversal returns the checksummed EVM address of a universal address. Addresses that do not fit in 20 bytes
// are rejected.
func FromUniversal(address vaa.Address) (ethcommon.Address, error) {
	if !address.HasZeroPrefix(12) {
		return ethcommon.Address{}, fmt.Errorf("%s is not an EVM address", address)
	}
	return ethcommon.BytesToAddress(address[12:]), nil
}
