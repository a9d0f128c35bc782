// Package vaa decodes the signed attestations (VAAs) produced by the guardian network.
// This package only parses and re-serializes VAAs; it never creates or signs one.
package vaa

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/certusone/wormhole/connect/pkg/chains"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// VAA is a signed attestation of a message emitted on a source chain.
type VAA struct {
	Version          uint8
	GuardianSetIndex uint32
	Signatures       []*Signature

	// Timestamp of the block containing the message, second precision.
	Timestamp time.Time
	Nonce     uint32
	// Sequence is per emitter.
	Sequence uint64
	// ConsistencyLevel the guardians waited for before signing.
	ConsistencyLevel uint8
	EmitterChain     chains.ID
	EmitterAddress   Address
	// Payload may be empty.
	Payload []byte
}

// Signature of a single guardian, by its index in the guardian set.
type Signature struct {
	Index     uint8
	Signature SignatureData
}

type SignatureData [65]byte

func (s SignatureData) MarshalJSON() ([]byte, error) {
	return []byte(`"` + s.String() + `"`), nil
}

func (s SignatureData) String() string {
	return hex.EncodeToString(s[:])
}

const (
	SupportedVAAVersion = 0x01

	// version, guardian set index, signature count
	headerLength = 1 + 4 + 1
	// timestamp, nonce, emitter chain, emitter address, sequence, consistency level
	bodyLength   = 4 + 4 + 2 + 32 + 8 + 1
	minVAALength = headerLength + bodyLength

	signatureLength = 1 + len(SignatureData{})
)

var ErrTooShort = errors.New("VAA is too short")

// Unmarshal decodes a signed VAA.
func Unmarshal(data []byte) (*VAA, error) {
	if len(data) < minVAALength {
		return nil, ErrTooShort
	}
	if data[0] != SupportedVAAVersion {
		return nil, fmt.Errorf("unsupported VAA version: %d", data[0])
	}

	v := &VAA{
		Version:          data[0],
		GuardianSetIndex: binary.BigEndian.Uint32(data[1:5]),
	}

	numSignatures := int(data[5])
	sigEnd := headerLength + numSignatures*signatureLength
	if len(data) < sigEnd+bodyLength {
		return nil, fmt.Errorf("VAA of %d bytes is too short for %d signatures", len(data), numSignatures)
	}

	v.Signatures = make([]*Signature, numSignatures)
	for i := range v.Signatures {
		off := headerLength + i*signatureLength
		sig := &Signature{Index: data[off]}
		copy(sig.Signature[:], data[off+1:off+signatureLength])
		v.Signatures[i] = sig
	}

	body := data[sigEnd:]
	v.Timestamp = time.Unix(int64(binary.BigEndian.Uint32(body[0:4])), 0)
	v.Nonce = binary.BigEndian.Uint32(body[4:8])
	v.EmitterChain = chains.ID(binary.BigEndian.Uint16(body[8:10]))
	copy(v.EmitterAddress[:], body[10:42])
	v.Sequence = binary.BigEndian.Uint64(body[42:50])
	v.ConsistencyLevel = body[50]
	v.Payload = append([]byte{}, body[bodyLength:]...)

	return v, nil
}

// Marshal returns the binary representation of the VAA. Used to hand an already signed VAA back to a chain.
func (v *VAA) Marshal() ([]byte, error) {
	if len(v.Signatures) > 255 {
		return nil, fmt.Errorf("too many signatures: %d", len(v.Signatures))
	}

	buf := make([]byte, 0, headerLength+len(v.Signatures)*signatureLength+bodyLength+len(v.Payload))
	buf = append(buf, v.Version)
	buf = binary.BigEndian.AppendUint32(buf, v.GuardianSetIndex)
	buf = append(buf, uint8(len(v.Signatures))) // #nosec G115 -- checked above
	for _, sig := range v.Signatures {
		buf = append(buf, sig.Index)
		buf = append(buf, sig.Signature[:]...)
	}
	return v.appendBody(buf), nil
}

// appendBody appends the signed part of the VAA. Token bridges key replay protection on the hash of exactly
// these bytes, see SigningDigest.
func (v *VAA) appendBody(buf []byte) []byte {
	buf = binary.BigEndian.AppendUint32(buf, uint32(v.Timestamp.Unix())) // #nosec G115 -- safe until 2106
	buf = binary.BigEndian.AppendUint32(buf, v.Nonce)
	buf = binary.BigEndian.AppendUint16(buf, uint16(v.EmitterChain))
	buf = append(buf, v.EmitterAddress[:]...)
	buf = binary.BigEndian.AppendUint64(buf, v.Sequence)
	buf = append(buf, v.ConsistencyLevel)
	return append(buf, v.Payload...)
}

// SigningDigest returns keccak256(keccak256(body)). EVM token bridges record completed transfers under this hash.
func (v *VAA) SigningDigest() common.Hash {
	body := v.appendBody(nil)
	return crypto.Keccak256Hash(crypto.Keccak256(body))
}

func (v *VAA) HexDigest() string {
	return hex.EncodeToString(v.SigningDigest().Bytes())
}

// MessageID returns the chain/emitter/sequence triple identifying the message.
func (v *VAA) MessageID() string {
	return MessageID(v.EmitterChain, v.EmitterAddress, v.Sequence)
}

// MessageID formats the identifier of the message emitted by emitter on chain with the given sequence.
func MessageID(chain chains.ID, emitter Address, sequence uint64) string {
	return fmt.Sprintf("%d/%s/%d", uint16(chain), emitter, sequence)
}
