package cosmos

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/btcsuite/btcutil/bech32"
	txclient "github.com/cosmos/cosmos-sdk/client/tx"
	"github.com/cosmos/cosmos-sdk/crypto"
	cryptotypes "github.com/cosmos/cosmos-sdk/crypto/types"
	sdktypes "github.com/cosmos/cosmos-sdk/types"
	"github.com/cosmos/cosmos-sdk/types/tx/signing"
	authsigning "github.com/cosmos/cosmos-sdk/x/auth/signing"
)

// UnsignedTx is everything a Signer needs to produce a signed transaction.
type UnsignedTx struct {
	Msgs          []sdktypes.Msg
	GasLimit      uint64
	Fee           sdktypes.Coins
	Memo          string
	ChainID       string
	AccountNumber uint64
	Sequence      uint64
}

// Signer signs transactions on behalf of a single account. Wallet integrations implement it outside this module.
type Signer interface {
	// Address is the bech32 address of the signing account.
	Address() string
	// SignTx returns the encoded signed transaction.
	SignTx(ctx context.Context, tx *UnsignedTx) ([]byte, error)
}

// KeySigner signs with a local secp256k1 private key.
type KeySigner struct {
	encCfg     EncodingConfig
	privateKey cryptotypes.PrivKey
	address    string
}

var _ Signer = (*KeySigner)(nil)

func NewKeySigner(privateKey cryptotypes.PrivKey, prefix string, encCfg EncodingConfig) (*KeySigner, error) {
	address, err := generateSenderAddress(privateKey, prefix)
	if err != nil {
		return nil, err
	}
	return &KeySigner{encCfg: encCfg, privateKey: privateKey, address: address}, nil
}

func (s *KeySigner) Address() string {
	return s.address
}

func (s *KeySigner) SignTx(_ context.Context, tx *UnsignedTx) ([]byte, error) {
	builder := s.encCfg.TxConfig.NewTxBuilder()
	if err := builder.SetMsgs(tx.Msgs...); err != nil {
		return nil, fmt.Errorf("failed to add message to builder: %w", err)
	}
	builder.SetGasLimit(tx.GasLimit)
	builder.SetFeeAmount(tx.Fee)
	builder.SetMemo(tx.Memo)

	// The tx needs to be signed in 2 passes: first we populate the SignerInfo
	// inside the TxBuilder and then sign the payload.
	signMode := s.encCfg.TxConfig.SignModeHandler().DefaultMode()
	sig := signing.SignatureV2{
		PubKey: s.privateKey.PubKey(),
		Data: &signing.SingleSignatureData{
			SignMode:  signMode,
			Signature: nil,
		},
		Sequence: tx.Sequence,
	}
	if err := builder.SetSignatures(sig); err != nil {
		return nil, fmt.Errorf("failed to set SignerInfo: %w", err)
	}

	signerData := authsigning.SignerData{
		ChainID:       tx.ChainID,
		AccountNumber: tx.AccountNumber,
		Sequence:      tx.Sequence,
	}
	sig, err := txclient.SignWithPrivKey(signMode, signerData, builder, s.privateKey, s.encCfg.TxConfig, tx.Sequence)
	if err != nil {
		return nil, fmt.Errorf("failed to sign tx: %w", err)
	}
	if err := builder.SetSignatures(sig); err != nil {
		return nil, fmt.Errorf("failed to update tx signature: %w", err)
	}

	txBytes, err := s.encCfg.TxConfig.TxEncoder()(builder.GetTx())
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tx: %w", err)
	}
	return txBytes, nil
}

// LoadPrivKey reads an armored, passphrase-encrypted private key as exported by `<chaind> keys export`.
func LoadPrivKey(path string, passPhrase string) (cryptotypes.PrivKey, error) {
	armor, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	key, _, err := crypto.UnarmorDecryptPrivKey(string(armor), passPhrase)
	return key, err
}

// generateSenderAddress creates the bech32 account address of a private key.
func generateSenderAddress(privateKey cryptotypes.PrivKey, prefix string) (string, error) {
	data, err := hex.DecodeString(privateKey.PubKey().Address().String())
	if err != nil {
		return "", fmt.Errorf("failed to generate public key, failed to hex decode string: %w", err)
	}
	conv, err := bech32.ConvertBits(data, 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("failed to generate public key, failed to convert bits: %w", err)
	}
	encoded, err := bech32.Encode(prefix, conv)
	if err != nil {
		return "", fmt.Errorf("failed to generate public key, bech32 encode failed: %w", err)
	}
	return encoded, nil
}
