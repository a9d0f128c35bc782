package cosmos

import (
	"fmt"
	"math/big"

	sdkmath "cosmossdk.io/math"
	"github.com/certusone/wormhole/connect/pkg/chains"
)

// DefaultGasLimit is used when neither the chain config nor the overrides set one.
const DefaultGasLimit uint64 = 1_000_000

// Params are the static properties of a CosmWasm chain.
type Params struct {
	Prefix         string
	NativeDenom    string
	NativeDecimals uint8
	GasPrice       string
}

var knownParams = map[chains.ID]Params{
	chains.Terra2:    {Prefix: "terra", NativeDenom: "uluna", NativeDecimals: 6, GasPrice: "0.015"},
	chains.Injective: {Prefix: "inj", NativeDenom: "inj", NativeDecimals: 18, GasPrice: "500000000"},
	chains.Xpla:      {Prefix: "xpla", NativeDenom: "axpla", NativeDecimals: 18, GasPrice: "850000000000"},
	chains.Sei:       {Prefix: "sei", NativeDenom: "usei", NativeDecimals: 6, GasPrice: "0.1"},
	chains.Osmosis:   {Prefix: "osmo", NativeDenom: "uosmo", NativeDecimals: 6, GasPrice: "0.025"},
	chains.Wormchain: {Prefix: "wormhole", NativeDenom: "uworm", NativeDecimals: 6, GasPrice: "0"},
	chains.Cosmoshub: {Prefix: "cosmos", NativeDenom: "uatom", NativeDecimals: 6, GasPrice: "0.025"},
}

// KnownParams returns the built-in parameters of chain.
func KnownParams(chain chains.ID) (Params, bool) {
	p, ok := knownParams[chain]
	return p, ok
}

// Contracts are the bech32 addresses of the deployed bridge contracts.
type Contracts struct {
	Core        string `mapstructure:"core"`
	TokenBridge string `mapstructure:"token_bridge"`
}

// Config configures the context of one CosmWasm chain. Zero values of the Params fields fall back to KnownParams.
type Config struct {
	Chain chains.ID
	// RPC is the gRPC endpoint of a node, host:port.
	RPC string
	TLS bool
	// ChainID is the Cosmos chain id transactions are signed for, e.g. "phoenix-1".
	ChainID   string
	Contracts Contracts
	Params
	GasLimit uint64
	// DenomDecimals lists the decimals of bank denoms other than the native one.
	DenomDecimals map[string]uint8
}

// withDefaults fills unset parameters from the chain's built-in parameters.
func (c Config) withDefaults() Config {
	known, _ := KnownParams(c.Chain)
	if c.Prefix == "" {
		c.Prefix = known.Prefix
	}
	if c.NativeDenom == "" {
		c.NativeDenom = known.NativeDenom
		c.NativeDecimals = known.NativeDecimals
	}
	if c.GasPrice == "" {
		c.GasPrice = known.GasPrice
	}
	if c.GasLimit == 0 {
		c.GasLimit = DefaultGasLimit
	}
	return c
}

// computeFee returns gasLimit * gasPrice, rounded up to a whole unit of the fee denom.
func computeFee(gasLimit uint64, gasPrice string) (*big.Int, error) {
	price, err := sdkmath.LegacyNewDecFromStr(gasPrice)
	if err != nil {
		return nil, fmt.Errorf("invalid gas price %q: %w", gasPrice, err)
	}
	if price.IsNegative() {
		return nil, fmt.Errorf("invalid gas price %q: negative", gasPrice)
	}
	if gasLimit > uint64(1<<62) {
		return nil, fmt.Errorf("gas limit %d out of range", gasLimit)
	}
	return price.MulInt64(int64(gasLimit)).Ceil().RoundInt().BigInt(), nil
}
