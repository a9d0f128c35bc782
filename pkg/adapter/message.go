package adapter

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/certusone/wormhole/connect/pkg/chains"
	"github.com/certusone/wormhole/connect/pkg/common"
	"github.com/certusone/wormhole/connect/pkg/tokenbridge"
	"github.com/certusone/wormhole/connect/pkg/vaa"
)

// ParsedMessage is the chain-agnostic view of a token bridge transfer.
type ParsedMessage struct {
	// SendTx is the source transaction, when the message was parsed from one.
	SendTx         string                  `json:"sendTx,omitempty"`
	FromChain      chains.ID               `json:"fromChain"`
	EmitterAddress vaa.Address             `json:"emitterAddress"`
	Sequence       uint64                  `json:"sequence"`
	PayloadType    tokenbridge.PayloadType `json:"payloadType"`

	// TokenID is the transferred token, with its address in its home chain's native format.
	TokenID common.TokenID `json:"tokenId"`
	// TokenAddress is the token's universal asset id.
	TokenAddress vaa.Address `json:"tokenAddress"`
	// Amount normalized to 8 decimals. Denormalize at the point of use, see package amount.
	Amount *big.Int `json:"amount"`

	ToChain chains.ID `json:"toChain"`
	// Recipient in ToChain's native format. Empty when ToChain has no adapter.
	Recipient        string      `json:"recipient,omitempty"`
	RecipientAddress vaa.Address `json:"recipientAddress"`

	// Fee for type 1 transfers, normalized to 8 decimals.
	Fee *big.Int `json:"fee,omitempty"`
	// FromAddress and Payload are only set for transfers with payload.
	FromAddress *vaa.Address `json:"fromAddress,omitempty"`
	Payload     []byte       `json:"payload,omitempty"`

	// Relayer is set when the transfer carries a relayer payload.
	Relayer *RelayerInfo `json:"relayer,omitempty"`
}

// RelayerInfo holds the relayer payload fields. Amounts are normalized to 8 decimals.
type RelayerInfo struct {
	Fee                 *big.Int    `json:"fee"`
	ToNativeTokenAmount *big.Int    `json:"toNativeTokenAmount"`
	Recipient           vaa.Address `json:"recipient"`
}

// MessageID returns the identifier the attestation of this message is fetched by.
func (m *ParsedMessage) MessageID() string {
	return vaa.MessageID(m.FromChain, m.EmitterAddress, m.Sequence)
}

// Publication is a message observed in a source transaction before its attestation exists.
type Publication struct {
	TxID           string
	EmitterChain   chains.ID
	EmitterAddress vaa.Address
	Sequence       uint64
	Payload        []byte
}

// BuildParsedMessage decodes the transfer carried by pub, translating token and recipient addresses to the native
// formats of their chains through resolver.
func BuildParsedMessage(ctx context.Context, resolver Resolver, pub *Publication) (*ParsedMessage, error) {
	m, err := tokenbridge.Decode(pub.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to decode transfer payload of %s: %w", vaa.MessageID(pub.EmitterChain, pub.EmitterAddress, pub.Sequence), err)
	}

	home, err := resolver.Context(m.OriginChain)
	if err != nil {
		return nil, fmt.Errorf("token home chain: %w", err)
	}
	tokenAddr, err := home.ParseAssetAddress(ctx, m.OriginAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to parse token address %s on %s: %w", m.OriginAddress, m.OriginChain, err)
	}

	dest, err := resolver.Context(m.TargetChain)
	if err != nil {
		return nil, fmt.Errorf("recipient chain: %w", err)
	}
	// A destination without an adapter, or without the parameters to render its addresses, still has a
	// decodable transfer. Recipient stays empty and RecipientAddress carries the universal form.
	recipient, err := dest.ParseAddress(m.TargetAddress)
	if err != nil && !errors.Is(err, common.ErrNotImplemented) && !errors.Is(err, common.ErrConfiguration) {
		return nil, fmt.Errorf("failed to parse recipient %s on %s: %w", m.TargetAddress, m.TargetChain, err)
	}

	pm := &ParsedMessage{
		SendTx:           pub.TxID,
		FromChain:        pub.EmitterChain,
		EmitterAddress:   pub.EmitterAddress,
		Sequence:         pub.Sequence,
		PayloadType:      m.Type,
		TokenID:          common.TokenID{Chain: m.OriginChain, Address: tokenAddr},
		TokenAddress:     m.OriginAddress,
		Amount:           m.Amount.ToBig(),
		ToChain:          m.TargetChain,
		Recipient:        recipient,
		RecipientAddress: m.TargetAddress,
	}

	switch m.Type {
	case tokenbridge.PayloadTransfer:
		pm.Fee = m.Fee.ToBig()
	case tokenbridge.PayloadTransferWithPayload:
		from := m.FromAddress
		pm.FromAddress = &from
		pm.Payload = m.Payload
	}

	if m.Relayer != nil {
		pm.Relayer = &RelayerInfo{
			Fee:                 m.Relayer.RelayerFee.ToBig(),
			ToNativeTokenAmount: m.Relayer.ToNativeTokenAmount.ToBig(),
			Recipient:           m.Relayer.TargetRecipient,
		}
	}

	return pm, nil
}

// ParseVAA is the ParseMessage implementation shared by all families.
func ParseVAA(ctx context.Context, resolver Resolver, v *vaa.VAA) (*ParsedMessage, error) {
	return BuildParsedMessage(ctx, resolver, &Publication{
		EmitterChain:   v.EmitterChain,
		EmitterAddress: v.EmitterAddress,
		Sequence:       v.Sequence,
		Payload:        v.Payload,
	})
}
