package adapter

import (
	"github.com/certusone/wormhole/connect/pkg/vaa"
	"github.com/ethereum/go-ethereum/crypto"
)

// Discriminators of asset ids. Contract-backed ids are the contract's universal address.
const (
	AssetKindContract byte = 0x00
	AssetKindNative   byte = 0x01
)

// NativeAssetID derives the universal asset id of a native unit that has no contract address, such as a bank
// denomination: the native discriminator followed by the last 31 bytes of keccak256(name).
// The id is one-way and only used to look tokens up.
func NativeAssetID(name string) vaa.Address {
	var a vaa.Address
	h := crypto.Keccak256([]byte(name))
	a[0] = AssetKindNative
	copy(a[1:], h[1:])
	return a
}

// IsNativeAssetID reports whether a carries the native discriminator.
func IsNativeAssetID(a vaa.Address) bool {
	return a[0] == AssetKindNative
}
