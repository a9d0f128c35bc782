// Package tokenbridge decodes the token bridge payloads carried inside transfer VAAs.
package tokenbridge

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/certusone/wormhole/connect/pkg/chains"
	"github.com/certusone/wormhole/connect/pkg/vaa"
	"github.com/holiman/uint256"
)

type PayloadType uint8

const (
	PayloadTransfer            PayloadType = 1
	PayloadAssetMeta           PayloadType = 2
	PayloadTransferWithPayload PayloadType = 3

	// RelayerPayloadID is the first byte of a relayer payload nested in a transfer with payload.
	RelayerPayloadID uint8 = 1
)

const (
	// type(1) + amount(32) + token address(32) + token chain(2) + to(32) + to chain(2)
	transferHeaderLength = 101
	// header + fee(32) for type 1, header + from address(32) for type 3
	transferLength = 133
	// payload id(1) + relayer fee(32) + native drop-off(32) + target recipient(32)
	relayerPayloadLength = 97
)

var (
	ErrUnsupportedPayload = errors.New("unsupported payload type")
	ErrPayloadTooShort    = errors.New("buffer too short")
)

// Transfer is a decoded token bridge transfer. Amount and Fee are expressed with 8 decimals, whatever the token's
// native precision is.
type Transfer struct {
	Type PayloadType
	// Amount transferred, normalized to 8 decimals
	Amount *uint256.Int
	// OriginAddress is the universal address of the token on its home chain
	OriginAddress vaa.Address
	// OriginChain is the token's home chain
	OriginChain chains.ID
	// TargetAddress is the universal address of the recipient
	TargetAddress vaa.Address
	// TargetChain is the chain the transfer is redeemed on
	TargetChain chains.ID
	// Fee paid to whoever redeems, type 1 only
	Fee *uint256.Int
	// FromAddress is the sender on the source chain, type 3 only
	FromAddress vaa.Address
	// Payload is the application payload, type 3 only
	Payload []byte
}

// RelayerPayload is the application payload the token bridge relayer attaches to a transfer with payload.
type RelayerPayload struct {
	PayloadID uint8
	// RelayerFee, normalized to 8 decimals
	RelayerFee *uint256.Int
	// ToNativeTokenAmount is the amount swapped into destination gas for the recipient, normalized to 8 decimals
	ToNativeTokenAmount *uint256.Int
	TargetRecipient     vaa.Address
}

// Message is a decoded transfer. Relayer is set when the transfer carries a relayer payload.
type Message struct {
	*Transfer
	Relayer *RelayerPayload
}

// IsTransfer reports whether payload carries a token transfer (type 1 or 3).
// NOTE: This function assumes that the caller has verified that the VAA is from the token bridge.
func IsTransfer(payload []byte) bool {
	return len(payload) > 0 && (PayloadType(payload[0]) == PayloadTransfer || PayloadType(payload[0]) == PayloadTransferWithPayload)
}

// Decode decodes a transfer payload and, for transfers with payload, a nested relayer payload.
func Decode(payload []byte) (*Message, error) {
	t, err := DecodeTransfer(payload)
	if err != nil {
		return nil, err
	}

	m := &Message{Transfer: t}
	if t.Type == PayloadTransferWithPayload && IsRelayerPayload(t.Payload) {
		r, err := DecodeRelayerPayload(t.Payload)
		if err != nil {
			return nil, err
		}
		m.Relayer = r
	}
	return m, nil
}

// DecodeTransfer decodes a type 1 or type 3 token bridge payload.
func DecodeTransfer(payload []byte) (*Transfer, error) {
	if !IsTransfer(payload) {
		return nil, ErrUnsupportedPayload
	}
	if len(payload) < transferLength {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooShort, len(payload))
	}

	t := &Transfer{
		Type:   PayloadType(payload[0]),
		Amount: new(uint256.Int).SetBytes(payload[1:33]),
	}

	reader := bytes.NewReader(payload[33:])
	if err := binary.Read(reader, binary.BigEndian, &t.OriginAddress); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &t.OriginChain); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &t.TargetAddress); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &t.TargetChain); err != nil {
		return nil, err
	}

	tail := payload[transferHeaderLength:transferLength]
	switch t.Type {
	case PayloadTransfer:
		if len(payload) != transferLength {
			return nil, fmt.Errorf("transfer payload must be %d bytes, got %d", transferLength, len(payload))
		}
		t.Fee = new(uint256.Int).SetBytes(tail)
	case PayloadTransferWithPayload:
		copy(t.FromAddress[:], tail)
		t.Payload = append([]byte{}, payload[transferLength:]...)
	}

	return t, nil
}

// IsRelayerPayload reports whether b has the shape of a relayer payload.
func IsRelayerPayload(b []byte) bool {
	return len(b) == relayerPayloadLength && b[0] == RelayerPayloadID
}

// DecodeRelayerPayload decodes the relayer payload nested in a transfer with payload.
func DecodeRelayerPayload(b []byte) (*RelayerPayload, error) {
	if len(b) < relayerPayloadLength {
		return nil, fmt.Errorf("%w: relayer payload is %d bytes", ErrPayloadTooShort, len(b))
	}
	if b[0] != RelayerPayloadID {
		return nil, fmt.Errorf("unsupported relayer payload id: %d", b[0])
	}

	r := &RelayerPayload{
		PayloadID:           b[0],
		RelayerFee:          new(uint256.Int).SetBytes(b[1:33]),
		ToNativeTokenAmount: new(uint256.Int).SetBytes(b[33:65]),
	}
	copy(r.TargetRecipient[:], b[65:97])
	return r, nil
}

// Serialize encodes t in the token bridge wire format.
func (t *Transfer) Serialize() []byte {
	amount := uint256OrZero(t.Amount).Bytes32()
	buf := append([]byte{uint8(t.Type)}, amount[:]...)
	buf = append(buf, t.OriginAddress[:]...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(t.OriginChain))
	buf = append(buf, t.TargetAddress[:]...)
	buf = binary.BigEndian.AppendUint16(buf, uint16(t.TargetChain))
	if t.Type == PayloadTransferWithPayload {
		buf = append(buf, t.FromAddress[:]...)
		return append(buf, t.Payload...)
	}
	fee := uint256OrZero(t.Fee).Bytes32()
	return append(buf, fee[:]...)
}

// Serialize encodes r in the relayer wire format.
func (r *RelayerPayload) Serialize() []byte {
	buf := new(bytes.Buffer)
	buf.WriteByte(RelayerPayloadID)
	fee := uint256OrZero(r.RelayerFee).Bytes32()
	buf.Write(fee[:])
	native := uint256OrZero(r.ToNativeTokenAmount).Bytes32()
	buf.Write(native[:])
	buf.Write(r.TargetRecipient[:])
	return buf.Bytes()
}

func uint256OrZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}
