package cosmos

import (
	"github.com/certusone/wormhole/connect/pkg/adapter"
	"github.com/certusone/wormhole/connect/pkg/chains"
)

// Overrides are the transaction parameters a caller may set on CosmWasm chains.
type Overrides struct {
	GasLimit uint64 `mapstructure:"gas_limit"`
	GasPrice string `mapstructure:"gas_price"`
	Memo     string `mapstructure:"memo"`
}

func (*Overrides) Platform() chains.Platform {
	return chains.PlatformCosmWasm
}

func (c *Context) overrides(o adapter.Overrides) (*Overrides, error) {
	if o == nil {
		return &Overrides{}, nil
	}
	co, ok := o.(*Overrides)
	if !ok {
		return nil, adapter.UnsupportedOverrides(c.Chain(), o)
	}
	if co == nil {
		return &Overrides{}, nil
	}
	return co, nil
}
