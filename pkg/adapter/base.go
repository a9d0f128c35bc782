package adapter

import (
	"context"
	"math/big"

	"github.com/certusone/wormhole/connect/pkg/chains"
	"github.com/certusone/wormhole/connect/pkg/common"
	"github.com/certusone/wormhole/connect/pkg/vaa"
)

// Base implements ChainContext with every operation failing with common.ErrNotImplemented. Family contexts embed
// it and override what they support.
type Base struct {
	ChainID chains.ID
}

var _ ChainContext = (*Base)(nil)

func (b *Base) Chain() chains.ID {
	return b.ChainID
}

func (b *Base) notImplemented(op string) error {
	return common.NotImplemented(b.ChainID, op)
}

func (b *Base) Send(context.Context, *TransferRequest, Overrides) (*Transaction, error) {
	return nil, b.notImplemented("send")
}

func (b *Base) SendWithPayload(context.Context, *TransferRequest, Overrides) (*Transaction, error) {
	return nil, b.notImplemented("sendWithPayload")
}

func (b *Base) FormatAddress(string) (vaa.Address, error) {
	return vaa.Address{}, b.notImplemented("formatAddress")
}

func (b *Base) ParseAddress(vaa.Address) (string, error) {
	return "", b.notImplemented("parseAddress")
}

func (b *Base) FormatAssetAddress(context.Context, string) (vaa.Address, error) {
	return vaa.Address{}, b.notImplemented("formatAssetAddress")
}

func (b *Base) ParseAssetAddress(context.Context, vaa.Address) (string, error) {
	return "", b.notImplemented("parseAssetAddress")
}

func (b *Base) GetForeignAsset(context.Context, common.TokenID) (string, bool, error) {
	return "", false, b.notImplemented("getForeignAsset")
}

func (b *Base) MustGetForeignAsset(context.Context, common.TokenID) (string, error) {
	return "", b.notImplemented("mustGetForeignAsset")
}

func (b *Base) GetNativeBalance(context.Context, string) (*big.Int, error) {
	return nil, b.notImplemented("getNativeBalance")
}

func (b *Base) GetTokenBalance(context.Context, string, common.TokenID) (*big.Int, error) {
	return nil, b.notImplemented("getTokenBalance")
}

func (b *Base) FetchTokenDecimals(context.Context, string) (uint8, error) {
	return 0, b.notImplemented("fetchTokenDecimals")
}

func (b *Base) IsNativeToken(string) bool {
	return false
}

func (b *Base) Redeem(context.Context, []byte, Overrides, string) (*Transaction, error) {
	return nil, b.notImplemented("redeem")
}

func (b *Base) IsTransferCompleted(context.Context, []byte) (bool, error) {
	return false, b.notImplemented("isTransferCompleted")
}

func (b *Base) ParseMessageFromTx(context.Context, string) ([]*ParsedMessage, error) {
	return nil, b.notImplemented("parseMessageFromTx")
}

func (b *Base) ParseMessage(context.Context, *vaa.VAA) (*ParsedMessage, error) {
	return nil, b.notImplemented("parseMessage")
}

func (b *Base) Close() error {
	return nil
}
