package evm

import (
	"fmt"
	"math/big"
	"time"

	"github.com/certusone/wormhole/connect/pkg/adapter"
	"github.com/certusone/wormhole/connect/pkg/chains"
)

const defaultReceiptTimeout = 5 * time.Minute

// Overrides are the transaction parameters a caller may set on EVM chains.
type Overrides struct {
	GasLimit uint64 `mapstructure:"gas_limit"`
	// GasPrice in wei, as a decimal string. Selects a legacy transaction.
	GasPrice string `mapstructure:"gas_price"`
	// ReceiptTimeout bounds the wait for each submitted transaction to be mined.
	ReceiptTimeout time.Duration `mapstructure:"receipt_timeout"`
}

func (*Overrides) Platform() chains.Platform {
	return chains.PlatformEVM
}

func (o *Overrides) gasPrice() (*big.Int, error) {
	if o.GasPrice == "" {
		return nil, nil
	}
	p, ok := new(big.Int).SetString(o.GasPrice, 10)
	if !ok || p.Sign() < 0 {
		return nil, fmt.Errorf("invalid gas price %q", o.GasPrice)
	}
	return p, nil
}

func (o *Overrides) receiptTimeout() time.Duration {
	if o.ReceiptTimeout > 0 {
		return o.ReceiptTimeout
	}
	return defaultReceiptTimeout
}

func (c *Context) overrides(o adapter.Overrides) (*Overrides, error) {
	if o == nil {
		return &Overrides{}, nil
	}
	eo, ok := o.(*Overrides)
	if !ok {
		return nil, adapter.UnsupportedOverrides(c.Chain(), o)
	}
	if eo == nil {
		return &Overrides{}, nil
	}
	return eo, nil
}
