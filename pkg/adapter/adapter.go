// Package adapter defines the capability set every chain family implements so that callers can drive a
// send -> attest -> redeem flow without knowing which chain they are talking to.
package adapter

import (
	"context"
	"math/big"

	"github.com/certusone/wormhole/connect/pkg/chains"
	"github.com/certusone/wormhole/connect/pkg/common"
	"github.com/certusone/wormhole/connect/pkg/vaa"
)

// ChainContext is the adapter for a single configured chain. Implementations own a lazily created network client
// and the resolved contract addresses of their chain, and share no state with other contexts.
type ChainContext interface {
	// Chain returns the chain this context serves.
	Chain() chains.ID

	// Send builds and submits a token transfer from this chain.
	Send(ctx context.Context, req *TransferRequest, overrides Overrides) (*Transaction, error)
	// SendWithPayload submits a transfer that carries req.Payload to the destination.
	SendWithPayload(ctx context.Context, req *TransferRequest, overrides Overrides) (*Transaction, error)

	// FormatAddress converts a chain-native address to its universal form.
	FormatAddress(address string) (vaa.Address, error)
	// ParseAddress converts a universal address back to the chain-native form.
	ParseAddress(address vaa.Address) (string, error)
	// FormatAssetAddress returns the universal asset id of a token whose home is this chain.
	FormatAssetAddress(ctx context.Context, address string) (vaa.Address, error)
	// ParseAssetAddress returns the native address of a token whose home is this chain.
	ParseAssetAddress(ctx context.Context, address vaa.Address) (string, error)

	// GetForeignAsset returns the address of token's representation on this chain. found is false, with a nil
	// error, when no representation is registered. Infrastructure failures are returned as ErrTransient errors.
	GetForeignAsset(ctx context.Context, token common.TokenID) (address string, found bool, err error)
	// MustGetForeignAsset is GetForeignAsset, failing with ErrNotRegistered on a miss.
	MustGetForeignAsset(ctx context.Context, token common.TokenID) (string, error)

	GetNativeBalance(ctx context.Context, wallet string) (*big.Int, error)
	GetTokenBalance(ctx context.Context, wallet string, token common.TokenID) (*big.Int, error)
	FetchTokenDecimals(ctx context.Context, tokenAddress string) (uint8, error)
	IsNativeToken(address string) bool

	// Redeem submits a signed transfer VAA to this chain. payer defaults to the transfer recipient.
	Redeem(ctx context.Context, signedVAA []byte, overrides Overrides, payer string) (*Transaction, error)
	// IsTransferCompleted asks this chain whether signedVAA has already been redeemed.
	IsTransferCompleted(ctx context.Context, signedVAA []byte) (bool, error)

	// ParseMessageFromTx decodes the transfers published by a transaction on this chain.
	ParseMessageFromTx(ctx context.Context, txID string) ([]*ParsedMessage, error)
	// ParseMessage decodes a transfer VAA emitted on this chain.
	ParseMessage(ctx context.Context, v *vaa.VAA) (*ParsedMessage, error)

	Close() error
}

// Resolver looks up the context of another configured chain.
type Resolver interface {
	Context(id chains.ID) (ChainContext, error)
}

// Transaction is a handle to a submitted transaction.
type Transaction struct {
	Chain chains.ID `json:"chain"`
	// ID is the transaction hash in the chain's usual notation.
	ID string `json:"id"`
}

// TransferRequest describes a transfer sent from the chain of the context it is handed to.
type TransferRequest struct {
	// Token to send. nil sends the chain's native unit.
	Token *common.TokenID
	// Amount in the token's native decimals.
	Amount *big.Int
	// Sender is the native address that signs the transaction.
	Sender string
	// DestChain is the chain the transfer is redeemed on.
	DestChain chains.ID
	// Recipient in DestChain's native format.
	Recipient string
	// RelayerFee in the token's native decimals. nil means no fee.
	RelayerFee *big.Int
	// Payload is carried to the destination by SendWithPayload.
	Payload []byte
	// Nonce of the emitted message.
	Nonce uint32
}

// RelayerFeeOrZero returns the relayer fee, never nil.
func (r *TransferRequest) RelayerFeeOrZero() *big.Int {
	if r.RelayerFee == nil {
		return new(big.Int)
	}
	return r.RelayerFee
}
