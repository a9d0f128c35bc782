package attestation

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/certusone/wormhole/connect/pkg/chains"
	"github.com/certusone/wormhole/connect/pkg/vaa"
)

// MessageID identifies the attestation of a message by emitter chain, emitter address and sequence.
type MessageID struct {
	EmitterChain   chains.ID
	EmitterAddress vaa.Address
	Sequence       uint64
}

// MessageIDFromString parses a <chain>/<address>/<sequence> string into a MessageID. The chain may be given by
// number or by name.
func MessageIDFromString(s string) (MessageID, error) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 {
		return MessageID{}, errors.New("invalid message id")
	}

	emitterChain, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil {
		c, nameErr := chains.Default.ByName(parts[0])
		if nameErr != nil {
			return MessageID{}, fmt.Errorf("invalid emitter chain: %w", err)
		}
		emitterChain = uint64(c.ID)
	}

	emitterAddress, err := vaa.StringToAddress(parts[1])
	if err != nil {
		return MessageID{}, fmt.Errorf("invalid emitter address: %w", err)
	}

	sequence, err := strconv.ParseUint(parts[2], 10, 64)
	if err != nil {
		return MessageID{}, fmt.Errorf("invalid sequence: %w", err)
	}

	return MessageID{
		EmitterChain:   chains.ID(emitterChain),
		EmitterAddress: emitterAddress,
		Sequence:       sequence,
	}, nil
}

func MessageIDFromVAA(v *vaa.VAA) MessageID {
	return MessageID{
		EmitterChain:   v.EmitterChain,
		EmitterAddress: v.EmitterAddress,
		Sequence:       v.Sequence,
	}
}

func (i MessageID) String() string {
	return vaa.MessageID(i.EmitterChain, i.EmitterAddress, i.Sequence)
}

// Bytes is the key the signed VAA is stored under.
func (i MessageID) Bytes() []byte {
	return []byte("signed/" + i.String())
}

func (i MessageID) matches(v *vaa.VAA) bool {
	return v.EmitterChain == i.EmitterChain && v.EmitterAddress == i.EmitterAddress && v.Sequence == i.Sequence
}
