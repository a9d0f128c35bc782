// Package config loads the settings of the bridge client: the guardian network to fetch attestations from and the
// endpoints, contracts and keys of every chain in use.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/certusone/wormhole/connect/pkg/attestation"
	"github.com/certusone/wormhole/connect/pkg/chains"
	"github.com/certusone/wormhole/connect/pkg/common"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the decoded configuration file.
type Config struct {
	// Network selects the default guardian hosts: mainnet, testnet or devnet.
	Network string `mapstructure:"network"`
	// GuardianHosts overrides the network's public guardian endpoints.
	GuardianHosts []string         `mapstructure:"guardian_hosts"`
	Attestation   Attestation      `mapstructure:"attestation"`
	Chains        map[string]Chain `mapstructure:"chains"`
}

// Attestation configures the attestation fetcher.
type Attestation struct {
	Attempts       uint64        `mapstructure:"attempts"`
	Interval       time.Duration `mapstructure:"interval"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// RateLimit caps guardian requests per second. Zero means unlimited.
	RateLimit    float64 `mapstructure:"rate_limit"`
	RateBurst    int     `mapstructure:"rate_burst"`
	ShuffleHosts bool    `mapstructure:"shuffle_hosts"`
	// CacheDir enables the on-disk signed VAA cache.
	CacheDir string `mapstructure:"cache_dir"`
}

// Contracts are the addresses of the bridge contracts of a chain, in the chain's native notation.
type Contracts struct {
	Core        string `mapstructure:"core"`
	TokenBridge string `mapstructure:"token_bridge"`
}

// Chain is the configuration of one chain. Fields that do not apply to a chain's family are ignored. Required
// fields are only checked once the chain is used.
type Chain struct {
	RPC       string    `mapstructure:"rpc"`
	Contracts Contracts `mapstructure:"contracts"`

	// PrivateKey is the path of the signing key: hex for EVM chains, an armored export for CosmWasm chains.
	PrivateKey string `mapstructure:"private_key"`
	Passphrase string `mapstructure:"passphrase"`

	// EVM
	EVMChainID     uint64 `mapstructure:"evm_chain_id"`
	NativeDecimals uint8  `mapstructure:"native_decimals"`

	// CosmWasm
	TLS         bool   `mapstructure:"tls"`
	ChainID     string `mapstructure:"chain_id"`
	Prefix      string `mapstructure:"prefix"`
	NativeDenom string `mapstructure:"native_denom"`
	GasPrice    string `mapstructure:"gas_price"`
	GasLimit    uint64 `mapstructure:"gas_limit"`
	// Denoms lists bank denoms other than the native one. A list, since viper lowercases map keys and ibc
	// denoms are case sensitive.
	Denoms []Denom `mapstructure:"denoms"`
}

type Denom struct {
	Denom    string `mapstructure:"denom"`
	Decimals uint8  `mapstructure:"decimals"`
}

// DenomDecimals returns the Denoms as a lookup table.
func (c Chain) DenomDecimals() map[string]uint8 {
	if len(c.Denoms) == 0 {
		return nil
	}
	out := make(map[string]uint8, len(c.Denoms))
	for _, d := range c.Denoms {
		out[d.Denom] = d.Decimals
	}
	return out
}

// Options control where Load reads from.
type Options struct {
	// FilePath is the config file, of any type viper supports. Optional.
	FilePath string
	// EnvPrefix is prepended to environment variables overriding file settings, e.g. CONNECT_NETWORK.
	EnvPrefix string
	// Flags that were set on the command line take precedence over the file and the environment.
	Flags *pflag.FlagSet
}

// Load reads the configuration with the following precedence:
// 1. Command line flags
// 2. Environment variables
// 3. Config file
// 4. Defaults
//
// Unknown keys are rejected.
func Load(options Options) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if options.FilePath != "" {
		v.SetConfigFile(options.FilePath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Nested keys map to underscores: attestation.attempts <- CONNECT_ATTESTATION_ATTEMPTS
	v.SetEnvPrefix(options.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if options.Flags != nil {
		bindFlags(options.Flags, v)
	}

	var c Config
	if err := v.UnmarshalExact(&c); err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrConfiguration, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("network", string(common.MainNet))
	v.SetDefault("guardian_hosts", []string{})
	v.SetDefault("attestation.attempts", attestation.DefaultAttempts)
	v.SetDefault("attestation.interval", attestation.DefaultInterval)
	v.SetDefault("attestation.request_timeout", attestation.DefaultRequestTimeout)
	v.SetDefault("attestation.rate_burst", 1)
}

// bindFlags copies every explicitly set flag that is named after a config key into v.
func bindFlags(flags *pflag.FlagSet, v *viper.Viper) {
	keys := make(map[string]bool)
	for _, k := range v.AllKeys() {
		keys[k] = true
	}
	flags.VisitAll(func(f *pflag.Flag) {
		if !f.Changed || !keys[f.Name] {
			return
		}
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			v.Set(f.Name, sv.GetSlice())
			return
		}
		v.Set(f.Name, f.Value.String())
	})
}

// Validate checks the settings that are needed regardless of which chains are used.
func (c *Config) Validate() error {
	if _, err := c.Environment(); err != nil {
		return err
	}
	if c.Attestation.Attempts == 0 {
		return fmt.Errorf("%w: attestation.attempts must be at least 1", common.ErrConfiguration)
	}
	if c.Attestation.RateLimit < 0 {
		return fmt.Errorf("%w: attestation.rate_limit must not be negative", common.ErrConfiguration)
	}
	_, err := c.ChainConfigs()
	return err
}

func (c *Config) Environment() (common.Environment, error) {
	env, err := common.ParseEnvironment(c.Network)
	if err != nil {
		return "", fmt.Errorf("%w: %w", common.ErrConfiguration, err)
	}
	return env, nil
}

// Hosts returns the guardian hosts to fetch attestations from.
func (c *Config) Hosts() ([]string, error) {
	if len(c.GuardianHosts) != 0 {
		return c.GuardianHosts, nil
	}
	env, err := c.Environment()
	if err != nil {
		return nil, err
	}
	return env.GuardianHosts(), nil
}

// ChainConfigs keys the chain sections by chain id. Sections may be named by chain name or decimal id.
func (c *Config) ChainConfigs() (map[chains.ID]Chain, error) {
	out := make(map[chains.ID]Chain, len(c.Chains))
	for key, chainCfg := range c.Chains {
		chain, err := chains.Default.Resolve(key)
		if err != nil {
			return nil, fmt.Errorf("%w: chains.%s: %w", common.ErrConfiguration, key, err)
		}
		if _, dup := out[chain.ID]; dup {
			return nil, fmt.Errorf("%w: %s is configured more than once", common.ErrConfiguration, chain.Name)
		}
		out[chain.ID] = chainCfg
	}
	return out, nil
}
