// Package solana implements the address codec of Solana-family chains. Transactions are not supported: all other
// operations fail with common.ErrNotImplemented.
package solana

import (
	"context"
	"fmt"

	"github.com/certusone/wormhole/connect/pkg/adapter"
	"github.com/certusone/wormhole/connect/pkg/chains"
	"github.com/certusone/wormhole/connect/pkg/vaa"
	"github.com/gagliardetto/solana-go"
)

// wrappedSOL is the mint of wrapped SOL, the token id of the native unit.
var wrappedSOL = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")

// Context is the adapter.ChainContext of a Solana-family chain.
type Context struct {
	adapter.Base
	resolver adapter.Resolver
}

var _ adapter.ChainContext = (*Context)(nil)

func NewContext(chain chains.ID, resolver adapter.Resolver) (*Context, error) {
	if chain.Platform() != chains.PlatformSolana {
		return nil, fmt.Errorf("%s is not a Solana chain", chain)
	}
	return &Context{Base: adapter.Base{ChainID: chain}, resolver: resolver}, nil
}

// FormatAddress decodes a base58 account address. Public keys are 32 bytes, so no padding is involved.
func (c *Context) FormatAddress(address string) (vaa.Address, error) {
	key, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return vaa.Address{}, fmt.Errorf("invalid Solana address %q: %w", address, err)
	}
	return vaa.Address(key), nil
}

func (c *Context) ParseAddress(address vaa.Address) (string, error) {
	return solana.PublicKeyFromBytes(address[:]).String(), nil
}

// FormatAssetAddress returns the asset id of a mint. The native unit is represented by the wrapped SOL mint.
func (c *Context) FormatAssetAddress(_ context.Context, address string) (vaa.Address, error) {
	if c.IsNativeToken(address) {
		return vaa.Address(wrappedSOL), nil
	}
	return c.FormatAddress(address)
}

func (c *Context) ParseAssetAddress(_ context.Context, address vaa.Address) (string, error) {
	return c.ParseAddress(address)
}

func (c *Context) IsNativeToken(address string) bool {
	return address == "native" || address == wrappedSOL.String()
}

func (c *Context) ParseMessage(ctx context.Context, v *vaa.VAA) (*adapter.ParsedMessage, error) {
	return adapter.ParseVAA(ctx, c.resolver, v)
}
