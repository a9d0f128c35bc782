package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/certusone/wormhole/connect/pkg/attestation"
	"github.com/certusone/wormhole/connect/pkg/chains"
	"github.com/certusone/wormhole/connect/pkg/common"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
network: testnet
attestation:
  attempts: 5
  interval: 2s
  rate_limit: 10
  cache_dir: /tmp/vaas
chains:
  ethereum:
    rpc: https://rpc.ankr.com/eth_goerli
    evm_chain_id: 5
    private_key: /keys/eth.hex
    contracts:
      core: "0x706abc4E45D419950511e474C7B9Ed348A4a716c"
      token_bridge: "0xF890982f9310df57d00f659cf4fd87e65adEd8d7"
  terra2:
    rpc: terra-grpc.example.com:443
    tls: true
    chain_id: pisco-1
    gas_price: "0.02"
    denoms:
      - denom: ibc/2C962DAB9F57FE0921435426AE75196009FAA1981BF86991203C8411F8980FDB
        decimals: 6
    contracts:
      core: terra19nv3xr5lrmmr7egvrk2kqgw4kcn43xrtd5g0mpgwwvhetusk4k7s66jyv0
      token_bridge: terra1c02vds4uhgtrmcw7ldlg75zumdqxr8hwf7npseuf2h58jzhpgjxsgmwkvk
`

func writeConfig(t *testing.T, name string, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadFile(t *testing.T) {
	c, err := Load(Options{FilePath: writeConfig(t, "connect.yaml", testConfig)})
	require.NoError(t, err)

	assert.Equal(t, "testnet", c.Network)
	assert.Equal(t, uint64(5), c.Attestation.Attempts)
	assert.Equal(t, 2*time.Second, c.Attestation.Interval)
	assert.Equal(t, attestation.DefaultRequestTimeout, c.Attestation.RequestTimeout)
	assert.Equal(t, 10.0, c.Attestation.RateLimit)
	assert.Equal(t, 1, c.Attestation.RateBurst)
	assert.Equal(t, "/tmp/vaas", c.Attestation.CacheDir)

	byID, err := c.ChainConfigs()
	require.NoError(t, err)
	require.Len(t, byID, 2)

	eth := byID[chains.Ethereum]
	assert.Equal(t, "https://rpc.ankr.com/eth_goerli", eth.RPC)
	assert.Equal(t, uint64(5), eth.EVMChainID)
	assert.Equal(t, "/keys/eth.hex", eth.PrivateKey)
	assert.Equal(t, "0xF890982f9310df57d00f659cf4fd87e65adEd8d7", eth.Contracts.TokenBridge)

	terra := byID[chains.Terra2]
	assert.True(t, terra.TLS)
	assert.Equal(t, "pisco-1", terra.ChainID)
	assert.Equal(t, "0.02", terra.GasPrice)
	assert.Equal(t, map[string]uint8{
		"ibc/2C962DAB9F57FE0921435426AE75196009FAA1981BF86991203C8411F8980FDB": 6,
	}, terra.DenomDecimals())
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load(Options{})
	require.NoError(t, err)

	assert.Equal(t, "mainnet", c.Network)
	assert.Equal(t, uint64(attestation.DefaultAttempts), c.Attestation.Attempts)
	assert.Equal(t, attestation.DefaultInterval, c.Attestation.Interval)
	assert.Empty(t, c.Chains)

	hosts, err := c.Hosts()
	require.NoError(t, err)
	assert.Equal(t, common.MainNet.GuardianHosts(), hosts)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, "connect.yaml", `
network: testnet
attestations:
  attempts: 5
`)
	_, err := Load(Options{FilePath: path})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrConfiguration)

	path = writeConfig(t, "connect.yaml", `
chains:
  ethereum:
    rpcs: https://example.com
`)
	_, err = Load(Options{FilePath: path})
	assert.ErrorIs(t, err, common.ErrConfiguration)
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"network", "network: moonnet\n"},
		{"zero attempts", "attestation:\n  attempts: 0\n"},
		{"negative rate", "attestation:\n  rate_limit: -1\n"},
		{"unknown chain", "chains:\n  dogechain:\n    rpc: http://localhost\n"},
		{"duplicate chain", "chains:\n  ethereum:\n    rpc: http://a\n  \"2\":\n    rpc: http://b\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(Options{FilePath: writeConfig(t, "connect.yaml", tc.content)})
			assert.ErrorIs(t, err, common.ErrConfiguration)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(Options{FilePath: filepath.Join(t.TempDir(), "missing.yaml")})
	assert.Error(t, err)
}

func TestLoadChainByID(t *testing.T) {
	c, err := Load(Options{FilePath: writeConfig(t, "connect.yaml", "chains:\n  \"18\":\n    rpc: localhost:9090\n")})
	require.NoError(t, err)

	byID, err := c.ChainConfigs()
	require.NoError(t, err)
	assert.Equal(t, "localhost:9090", byID[chains.Terra2].RPC)
}

func TestLoadPrecedence(t *testing.T) {
	path := writeConfig(t, "connect.yaml", testConfig)

	t.Run("environment", func(t *testing.T) {
		t.Setenv("CONNECT_NETWORK", "devnet")
		t.Setenv("CONNECT_ATTESTATION_ATTEMPTS", "7")

		c, err := Load(Options{FilePath: path, EnvPrefix: "CONNECT"})
		require.NoError(t, err)
		assert.Equal(t, "devnet", c.Network)
		assert.Equal(t, uint64(7), c.Attestation.Attempts)
	})

	t.Run("flags", func(t *testing.T) {
		t.Setenv("CONNECT_NETWORK", "devnet")

		flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
		flags.String("network", "", "")
		flags.StringSlice("guardian_hosts", nil, "")
		flags.String("log-level", "info", "")
		require.NoError(t, flags.Parse([]string{
			"--network", "mainnet",
			"--guardian_hosts", "http://a:7071,http://b:7071",
			"--log-level", "debug",
		}))

		c, err := Load(Options{FilePath: path, EnvPrefix: "CONNECT", Flags: flags})
		require.NoError(t, err)
		assert.Equal(t, "mainnet", c.Network)

		hosts, err := c.Hosts()
		require.NoError(t, err)
		assert.Equal(t, []string{"http://a:7071", "http://b:7071"}, hosts)
	})

	t.Run("unset flags keep the file value", func(t *testing.T) {
		flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
		flags.String("network", "mainnet", "")
		require.NoError(t, flags.Parse(nil))

		c, err := Load(Options{FilePath: path, Flags: flags})
		require.NoError(t, err)
		assert.Equal(t, "testnet", c.Network)
	})
}
