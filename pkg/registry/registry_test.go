package registry

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/certusone/wormhole/connect/pkg/attestation"
	"github.com/certusone/wormhole/connect/pkg/chains"
	"github.com/certusone/wormhole/connect/pkg/common"
	"github.com/certusone/wormhole/connect/pkg/config"
	"github.com/certusone/wormhole/connect/pkg/cosmos"
	"github.com/certusone/wormhole/connect/pkg/evm"
	"github.com/certusone/wormhole/connect/pkg/solana"
	"github.com/certusone/wormhole/connect/pkg/tokenbridge"
	"github.com/certusone/wormhole/connect/pkg/transfer"
	"github.com/certusone/wormhole/connect/pkg/vaa"
	sdkcrypto "github.com/cosmos/cosmos-sdk/crypto"
	"github.com/cosmos/cosmos-sdk/crypto/keys/secp256k1"
	ethcommon "github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/gorilla/mux"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig(hosts ...string) *config.Config {
	if len(hosts) == 0 {
		hosts = []string{"http://127.0.0.1:1"}
	}
	return &config.Config{
		Network:       "devnet",
		GuardianHosts: hosts,
		Attestation: config.Attestation{
			Attempts:       1,
			Interval:       time.Millisecond,
			RequestTimeout: time.Second,
		},
		Chains: map[string]config.Chain{
			"ethereum": {
				RPC: "http://127.0.0.1:8545",
				Contracts: config.Contracts{
					Core:        "0x98f3c9e6E3fAce36bAAd05FE09d375Ef1464288B",
					TokenBridge: "0x3ee18B2214AFF97000D974cf647E7C347E8fa585",
				},
			},
			"terra2": {
				RPC:     "127.0.0.1:9090",
				ChainID: "phoenix-1",
			},
			"solana": {},
		},
	}
}

func newRegistry(t *testing.T, cfg *config.Config, opts ...Option) *Registry {
	t.Helper()
	r, err := New(zap.NewNop(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })
	return r
}

func TestContextDispatch(t *testing.T) {
	r := newRegistry(t, testConfig())

	assert.Equal(t, []chains.ID{chains.Solana, chains.Ethereum, chains.Terra2}, r.Configured())

	c, err := r.Context(chains.Ethereum)
	require.NoError(t, err)
	assert.IsType(t, &evm.Context{}, c)
	assert.Equal(t, chains.Ethereum, c.Chain())

	again, err := r.Context(chains.Ethereum)
	require.NoError(t, err)
	assert.Same(t, c, again)

	c, err = r.Context(chains.Terra2)
	require.NoError(t, err)
	assert.IsType(t, &cosmos.Context{}, c)

	c, err = r.ContextByName("Solana")
	require.NoError(t, err)
	assert.IsType(t, &solana.Context{}, c)

	c, err = r.ContextByName("18")
	require.NoError(t, err)
	assert.Equal(t, chains.Terra2, c.Chain())
}

func TestContextOfUnconfiguredChain(t *testing.T) {
	r := newRegistry(t, testConfig())

	c, err := r.Context(chains.Polygon)
	require.NoError(t, err)
	assert.IsType(t, &evm.Context{}, c)

	// Codecs work without configuration.
	addr, err := c.FormatAddress("0x3ee18B2214AFF97000D974cf647E7C347E8fa585")
	require.NoError(t, err)
	back, err := c.ParseAddress(addr)
	require.NoError(t, err)
	assert.Equal(t, ethcommon.HexToAddress("0x3ee18B2214AFF97000D974cf647E7C347E8fa585").Hex(), back)

	_, err = c.GetNativeBalance(context.Background(), "0x3ee18B2214AFF97000D974cf647E7C347E8fa585")
	var cfgErr *common.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, chains.Polygon, cfgErr.Chain)
	assert.Equal(t, "rpc", cfgErr.Field)

	again, err := r.Context(chains.Polygon)
	require.NoError(t, err)
	assert.Same(t, c, again)
}

func TestCosmWasmChainWithoutPrefix(t *testing.T) {
	cfg := testConfig()
	cfg.Chains["kujira"] = config.Chain{RPC: "127.0.0.1:9090"}
	r := newRegistry(t, cfg)

	// Other chains are unaffected.
	eth, err := r.Context(chains.Ethereum)
	require.NoError(t, err)
	_, err = eth.FormatAddress("0x3ee18B2214AFF97000D974cf647E7C347E8fa585")
	require.NoError(t, err)

	for _, id := range []chains.ID{chains.Kujira, chains.Neutron} {
		c, err := r.Context(id)
		require.NoError(t, err)
		assert.IsType(t, &cosmos.Context{}, c)

		_, err = c.ParseAddress(vaa.Address{31: 1})
		var cfgErr *common.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, id, cfgErr.Chain)
		assert.Equal(t, "prefix", cfgErr.Field)
	}

	cfg = testConfig()
	cfg.Chains["kujira"] = config.Chain{RPC: "127.0.0.1:9090", Prefix: "kujira"}
	r = newRegistry(t, cfg)
	c, err := r.Context(chains.Kujira)
	require.NoError(t, err)
	_, err = c.ParseAddress(vaa.Address{31: 1})
	assert.NoError(t, err)
}

func TestContextOfUnsupportedFamily(t *testing.T) {
	r := newRegistry(t, testConfig())

	c, err := r.Context(chains.Algorand)
	require.NoError(t, err)

	_, err = c.FormatAddress("anything")
	assert.ErrorIs(t, err, common.ErrNotImplemented)
	_, err = c.IsTransferCompleted(context.Background(), nil)
	assert.ErrorIs(t, err, common.ErrNotImplemented)
}

func TestContextOfUnknownChain(t *testing.T) {
	r := newRegistry(t, testConfig())

	_, err := r.Context(chains.ID(9999))
	assert.ErrorIs(t, err, chains.ErrUnknownChain)

	_, err = r.ContextByName("dogechain")
	assert.ErrorIs(t, err, chains.ErrUnknownChain)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Chains["dogechain"] = config.Chain{}
	_, err := New(zap.NewNop(), cfg)
	assert.ErrorIs(t, err, common.ErrConfiguration)

	cfg = testConfig()
	cfg.GuardianHosts = nil
	cfg.Network = "moonnet"
	_, err = New(zap.NewNop(), cfg)
	assert.ErrorIs(t, err, common.ErrConfiguration)
}

func TestSigningKeys(t *testing.T) {
	dir := t.TempDir()

	ethKey, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	ethPath := filepath.Join(dir, "eth.hex")
	require.NoError(t, os.WriteFile(ethPath, []byte(hex.EncodeToString(ethcrypto.FromECDSA(ethKey))), 0600))

	armored := sdkcrypto.EncryptArmorPrivKey(secp256k1.GenPrivKey(), "hunter2", "secp256k1")
	terraPath := filepath.Join(dir, "terra.key")
	require.NoError(t, os.WriteFile(terraPath, []byte(armored), 0600))

	t.Run("valid", func(t *testing.T) {
		cfg := testConfig()
		eth := cfg.Chains["ethereum"]
		eth.PrivateKey = ethPath
		cfg.Chains["ethereum"] = eth
		terra := cfg.Chains["terra2"]
		terra.PrivateKey = terraPath
		terra.Passphrase = "hunter2"
		cfg.Chains["terra2"] = terra

		newRegistry(t, cfg)
	})

	t.Run("wrong passphrase", func(t *testing.T) {
		cfg := testConfig()
		terra := cfg.Chains["terra2"]
		terra.PrivateKey = terraPath
		terra.Passphrase = "wrong"
		cfg.Chains["terra2"] = terra

		_, err := New(zap.NewNop(), cfg)
		var cfgErr *common.ConfigurationError
		require.ErrorAs(t, err, &cfgErr)
		assert.Equal(t, "private_key", cfgErr.Field)
	})

	t.Run("missing key file", func(t *testing.T) {
		cfg := testConfig()
		eth := cfg.Chains["ethereum"]
		eth.PrivateKey = filepath.Join(dir, "missing.hex")
		cfg.Chains["ethereum"] = eth

		_, err := New(zap.NewNop(), cfg)
		assert.ErrorIs(t, err, common.ErrConfiguration)
	})
}

func transferVAA(t *testing.T) (*vaa.VAA, []byte) {
	t.Helper()
	emitter, err := vaa.StringToAddress("0x3ee18B2214AFF97000D974cf647E7C347E8fa585")
	require.NoError(t, err)
	token, err := vaa.StringToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	require.NoError(t, err)

	var recipient vaa.Address
	for i := range recipient {
		recipient[i] = byte(i + 1)
	}

	payload := (&tokenbridge.Transfer{
		Type:          tokenbridge.PayloadTransfer,
		Amount:        uint256.NewInt(150_000_000),
		OriginAddress: token,
		OriginChain:   chains.Ethereum,
		TargetAddress: recipient,
		TargetChain:   chains.Solana,
		Fee:           uint256.NewInt(0),
	}).Serialize()

	v := &vaa.VAA{
		Version:          vaa.SupportedVAAVersion,
		GuardianSetIndex: 3,
		Signatures:       []*vaa.Signature{{Index: 0, Signature: vaa.SignatureData{9}}},
		Timestamp:        time.Unix(1700000000, 0),
		Nonce:            1,
		Sequence:         42,
		ConsistencyLevel: 15,
		EmitterChain:     chains.Ethereum,
		EmitterAddress:   emitter,
		Payload:          payload,
	}
	raw, err := v.Marshal()
	require.NoError(t, err)
	return v, raw
}

func guardianServer(t *testing.T, raw []byte) *httptest.Server {
	v, err := vaa.Unmarshal(raw)
	require.NoError(t, err)

	router := mux.NewRouter()
	router.HandleFunc("/v1/signed_vaa/{chain}/{emitter}/{seq}", func(w http.ResponseWriter, req *http.Request) {
		vars := mux.Vars(req)
		if vars["chain"]+"/"+vars["emitter"]+"/"+vars["seq"] != v.MessageID() {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		assert.NoError(t, json.NewEncoder(w).Encode(map[string]string{
			"vaaBytes": base64.StdEncoding.EncodeToString(raw),
		}))
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchAndParse(t *testing.T) {
	v, raw := transferVAA(t)
	srv := guardianServer(t, raw)

	cfg := testConfig(srv.URL)
	cfg.Attestation.CacheDir = t.TempDir()
	r := newRegistry(t, cfg)

	signed, msg, err := r.FetchAndParse(context.Background(), attestation.MessageIDFromVAA(v))
	require.NoError(t, err)
	assert.Equal(t, raw, signed.Bytes)

	sol, err := r.Context(chains.Solana)
	require.NoError(t, err)
	wantRecipient, err := sol.ParseAddress(msg.RecipientAddress)
	require.NoError(t, err)

	assert.Equal(t, chains.Ethereum, msg.FromChain)
	assert.Equal(t, uint64(42), msg.Sequence)
	assert.Equal(t, tokenbridge.PayloadTransfer, msg.PayloadType)
	assert.Equal(t, ethcommon.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2").Hex(), msg.TokenID.Address)
	assert.Equal(t, chains.Solana, msg.ToChain)
	assert.Equal(t, wantRecipient, msg.Recipient)
	assert.Equal(t, int64(150_000_000), msg.Amount.Int64())
}

func TestTrackerReportsSentWithoutAttestation(t *testing.T) {
	v, _ := transferVAA(t)
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)

	r := newRegistry(t, testConfig(srv.URL))

	status, err := r.Tracker().Status(context.Background(), attestation.MessageIDFromVAA(v))
	require.NoError(t, err)
	assert.Equal(t, transfer.StateSent, status.State)
	assert.Nil(t, status.VAA)
}

func TestClose(t *testing.T) {
	r, err := New(zap.NewNop(), testConfig())
	require.NoError(t, err)

	_, err = r.Context(chains.Polygon)
	require.NoError(t, err)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())

	_, err = r.Context(chains.Ethereum)
	assert.Error(t, err)
}
