package common

import (
	"errors"
	"fmt"

	"github.com/certusone/wormhole/connect/pkg/chains"
)

var (
	// ErrConfiguration is returned when a chain in use lacks required configuration. Never retried.
	ErrConfiguration = errors.New("configuration error")
	// ErrNotRegistered is returned by "must" lookups when a foreign asset or contract does not exist.
	ErrNotRegistered = errors.New("not registered")
	// ErrNotImplemented marks a capability that a chain family adapter does not provide.
	ErrNotImplemented = errors.New("not implemented")
	// ErrAttestationUnavailable is returned once the attestation fetch retry budget is exhausted.
	ErrAttestationUnavailable = errors.New("attestation unavailable")
	// ErrTransient wraps RPC and network failures, as opposed to definitive "not found" answers.
	ErrTransient = errors.New("transient failure")
)

// ConfigurationError names the missing or invalid configuration field of a chain.
type ConfigurationError struct {
	Chain chains.ID
	Field string
	Msg   string
}

func (e *ConfigurationError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("configuration error on %s: %s: %s", e.Chain, e.Field, e.Msg)
	}
	return fmt.Sprintf("configuration error on %s: %s is required", e.Chain, e.Field)
}

func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// Transient marks err as a transient infrastructure failure.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// NotImplemented returns an ErrNotImplemented error naming the operation and chain.
func NotImplemented(chain chains.ID, op string) error {
	return fmt.Errorf("%s on %s: %w", op, chain, ErrNotImplemented)
}
