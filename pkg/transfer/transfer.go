// Package transfer tracks a token transfer through Sent, Attested and Redeemed, and redeems it at most once.
package transfer

import (
	"context"
	"errors"
	"fmt"

	"github.com/certusone/wormhole/connect/pkg/adapter"
	"github.com/certusone/wormhole/connect/pkg/attestation"
	"github.com/certusone/wormhole/connect/pkg/chains"
	"github.com/certusone/wormhole/connect/pkg/common"
	"github.com/certusone/wormhole/connect/pkg/tokenbridge"
	"github.com/certusone/wormhole/connect/pkg/vaa"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var redeemsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "connect_redeems_total",
		Help: "Redeem attempts by destination chain and outcome",
	}, []string{"chain", "result"})

// State is derived from observations of the source chain, the guardians and the destination chain. It is never
// stored.
type State uint8

const (
	// StateSent means the source transaction is confirmed but no attestation is available yet.
	StateSent State = iota + 1
	// StateAttested means a signed VAA exists and the destination chain does not report the transfer complete.
	StateAttested
	// StateRedeemed means the destination chain reports the transfer complete.
	StateRedeemed
)

func (s State) String() string {
	switch s {
	case StateSent:
		return "sent"
	case StateAttested:
		return "attested"
	case StateRedeemed:
		return "redeemed"
	default:
		return fmt.Sprintf("unknown state %d", uint8(s))
	}
}

// DeriveState maps observations to a state. Completion on the destination chain wins over everything else.
func DeriveState(attested bool, completed bool) State {
	switch {
	case completed:
		return StateRedeemed
	case attested:
		return StateAttested
	default:
		return StateSent
	}
}

// AttestationSource fetches signed VAAs. *attestation.Fetcher implements it.
type AttestationSource interface {
	Fetch(ctx context.Context, id attestation.MessageID) (*attestation.SignedVAA, error)
}

// Tracker observes and redeems transfers.
type Tracker struct {
	logger   *zap.Logger
	resolver adapter.Resolver
	source   AttestationSource
}

func NewTracker(logger *zap.Logger, resolver adapter.Resolver, source AttestationSource) *Tracker {
	return &Tracker{
		logger:   logger.With(zap.String("component", "transfer_tracker")),
		resolver: resolver,
		source:   source,
	}
}

// Status is the observed state of a transfer.
type Status struct {
	State State
	// VAA is set from StateAttested on.
	VAA *attestation.SignedVAA
	// DestChain is known once the VAA is.
	DestChain chains.ID
}

// Status observes the transfer published as id. A transfer whose attestation cannot be fetched within the
// source's retry budget is reported as StateSent.
func (t *Tracker) Status(ctx context.Context, id attestation.MessageID) (*Status, error) {
	signed, err := t.source.Fetch(ctx, id)
	if errors.Is(err, common.ErrAttestationUnavailable) {
		return &Status{State: StateSent}, nil
	}
	if err != nil {
		return nil, err
	}

	dest, destChain, err := t.destination(signed.VAA)
	if err != nil {
		return nil, err
	}
	completed, err := dest.IsTransferCompleted(ctx, signed.Bytes)
	if err != nil {
		return nil, fmt.Errorf("failed to check completion of %s on %s: %w", id, destChain, err)
	}
	return &Status{State: DeriveState(true, completed), VAA: signed, DestChain: destChain}, nil
}

// Result is the outcome of RedeemOnce.
type Result struct {
	// Tx is the redeem transaction, nil when the transfer was already complete.
	Tx *adapter.Transaction
	// AlreadyCompleted is set when no transaction was needed.
	AlreadyCompleted bool
	// State after the redeem. StateAttested means the transaction went through but the destination chain does not
	// report completion yet.
	State State
}

// RedeemOnce redeems a signed transfer VAA on its destination chain unless the chain already reports it complete.
// Completion is judged by the destination chain, never by the success of the submitted transaction alone.
func (t *Tracker) RedeemOnce(ctx context.Context, signedVAA []byte, overrides adapter.Overrides, payer string) (*Result, error) {
	v, err := vaa.Unmarshal(signedVAA)
	if err != nil {
		return nil, fmt.Errorf("failed to parse VAA: %w", err)
	}
	dest, destChain, err := t.destination(v)
	if err != nil {
		return nil, err
	}
	logger := t.logger.With(zap.String("message_id", v.MessageID()), zap.Stringer("dest_chain", destChain))

	completed, err := dest.IsTransferCompleted(ctx, signedVAA)
	if err != nil {
		return nil, fmt.Errorf("failed to check completion: %w", err)
	}
	if completed {
		logger.Info("transfer already redeemed")
		redeemsTotal.WithLabelValues(destChain.String(), "noop").Inc()
		return &Result{AlreadyCompleted: true, State: StateRedeemed}, nil
	}

	tx, redeemErr := dest.Redeem(ctx, signedVAA, overrides, payer)
	if redeemErr != nil {
		// Someone else may have redeemed it in the meantime.
		completed, err := dest.IsTransferCompleted(ctx, signedVAA)
		if err == nil && completed {
			logger.Info("transfer was redeemed concurrently", zap.Error(redeemErr))
			redeemsTotal.WithLabelValues(destChain.String(), "noop").Inc()
			return &Result{AlreadyCompleted: true, State: StateRedeemed}, nil
		}
		redeemsTotal.WithLabelValues(destChain.String(), "failed").Inc()
		return nil, redeemErr
	}
	redeemsTotal.WithLabelValues(destChain.String(), "submitted").Inc()

	completed, err = dest.IsTransferCompleted(ctx, signedVAA)
	if err != nil {
		logger.Warn("failed to confirm redeem", zap.String("tx", tx.ID), zap.Error(err))
		return &Result{Tx: tx, State: StateAttested}, nil
	}
	if !completed {
		logger.Warn("redeem transaction succeeded but the transfer is not reported complete", zap.String("tx", tx.ID))
	}
	return &Result{Tx: tx, State: DeriveState(true, completed)}, nil
}

func (t *Tracker) destination(v *vaa.VAA) (adapter.ChainContext, chains.ID, error) {
	m, err := tokenbridge.DecodeTransfer(v.Payload)
	if err != nil {
		return nil, 0, fmt.Errorf("%s is not a transfer: %w", v.MessageID(), err)
	}
	dest, err := t.resolver.Context(m.TargetChain)
	if err != nil {
		return nil, 0, fmt.Errorf("destination chain: %w", err)
	}
	return dest, m.TargetChain, nil
}
