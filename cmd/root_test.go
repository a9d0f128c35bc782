package cmd

import (
	"bytes"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/certusone/wormhole/connect/pkg/chains"
	"github.com/certusone/wormhole/connect/pkg/common"
	"github.com/certusone/wormhole/connect/pkg/cosmos"
	"github.com/certusone/wormhole/connect/pkg/evm"
	"github.com/certusone/wormhole/connect/pkg/tokenbridge"
	"github.com/certusone/wormhole/connect/pkg/vaa"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const bridgeAddress = "0x3ee18B2214AFF97000D974cf647E7C347E8fa585"

// run executes the command line with an empty home directory, so no user config file is picked up.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	cmd := NewRootCommand()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func transferVAA(t *testing.T) []byte {
	t.Helper()
	emitter, err := vaa.StringToAddress(bridgeAddress)
	require.NoError(t, err)
	token, err := vaa.StringToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	require.NoError(t, err)
	recipient, err := vaa.StringToAddress("0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1")
	require.NoError(t, err)

	v := &vaa.VAA{
		Version:          vaa.SupportedVAAVersion,
		GuardianSetIndex: 3,
		Signatures:       []*vaa.Signature{{Index: 0}},
		Timestamp:        time.Unix(1700000000, 0),
		Sequence:         7,
		ConsistencyLevel: 15,
		EmitterChain:     chains.Ethereum,
		EmitterAddress:   emitter,
		Payload: (&tokenbridge.Transfer{
			Type:          tokenbridge.PayloadTransfer,
			Amount:        uint256.NewInt(1000),
			OriginAddress: token,
			OriginChain:   chains.Ethereum,
			TargetAddress: recipient,
			TargetChain:   chains.Polygon,
			Fee:           uint256.NewInt(0),
		}).Serialize(),
	}
	raw, err := v.Marshal()
	require.NoError(t, err)
	return raw
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "development\n", out)
}

func TestAddressFormatAndParse(t *testing.T) {
	out, err := run(t, "address", "format", "ethereum", bridgeAddress)
	require.NoError(t, err)
	assert.Equal(t, "0000000000000000000000003ee18b2214aff97000d974cf647e7c347e8fa585\n", out)

	out, err = run(t, "address", "parse", "2", strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, ethcommon.HexToAddress(bridgeAddress).Hex()+"\n", out)

	const wsol = "So11111111111111111111111111111111111111112"
	out, err = run(t, "address", "format", "solana", wsol)
	require.NoError(t, err)
	out, err = run(t, "address", "parse", "solana", strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, wsol+"\n", out)

	_, err = run(t, "address", "format", "dogechain", bridgeAddress)
	assert.ErrorIs(t, err, chains.ErrUnknownChain)

	_, err = run(t, "address", "format", "algorand", "anything")
	assert.ErrorIs(t, err, common.ErrNotImplemented)
}

func TestVAAParse(t *testing.T) {
	raw := transferVAA(t)

	for _, encoded := range []string{hex.EncodeToString(raw), "0x" + hex.EncodeToString(raw), base64.StdEncoding.EncodeToString(raw)} {
		out, err := run(t, "vaa", "parse", encoded)
		require.NoError(t, err)

		assert.Equal(t, "2/0000000000000000000000003ee18b2214aff97000d974cf647e7c347e8fa585/7", gjson.Get(out, "id").String())
		assert.Equal(t, int64(1), gjson.Get(out, "signatures").Int())
		assert.Equal(t, hex.EncodeToString(raw), gjson.Get(out, "bytes").String())
		assert.Equal(t, int64(chains.Polygon), gjson.Get(out, "transfer.toChain").Int())
		assert.Equal(t, ethcommon.HexToAddress("0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1").Hex(), gjson.Get(out, "transfer.recipient").String())
		assert.Equal(t, int64(1000), gjson.Get(out, "transfer.amount").Int())
	}

	_, err := run(t, "vaa", "parse", "not a vaa!")
	assert.Error(t, err)
}

func TestVAAFetch(t *testing.T) {
	raw := transferVAA(t)

	router := mux.NewRouter()
	router.HandleFunc("/v1/signed_vaa/2/{emitter}/7", func(w http.ResponseWriter, _ *http.Request) {
		assert.NoError(t, json.NewEncoder(w).Encode(map[string]string{"vaaBytes": base64.StdEncoding.EncodeToString(raw)}))
	})
	srv := httptest.NewServer(router)
	defer srv.Close()

	out, err := run(t, "vaa", "fetch", "ethereum/0000000000000000000000003ee18b2214aff97000d974cf647e7c347e8fa585/7",
		"--network", "devnet", "--guardian_hosts", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, hex.EncodeToString(raw), gjson.Get(out, "bytes").String())
	assert.Equal(t, int64(chains.Ethereum), gjson.Get(out, "transfer.tokenId.chain").Int())
}

func TestAssetID(t *testing.T) {
	out, err := run(t, "asset", "id", "ethereum/0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	require.NoError(t, err)
	assert.Equal(t, "000000000000000000000000c02aaa39b223fe8d0a0e5c4f27ead9083c756cc2\n", out)
}

func TestMissingChainConfiguration(t *testing.T) {
	_, err := run(t, "asset", "balance", "polygon", bridgeAddress)
	assert.ErrorIs(t, err, common.ErrConfiguration)
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "connect.yaml")

	require.NoError(t, os.WriteFile(path, []byte("network: testnet\nchain:\n  ethereum: {}\n"), 0600))
	_, err := run(t, "--config", path, "address", "format", "ethereum", bridgeAddress)
	assert.ErrorIs(t, err, common.ErrConfiguration)

	require.NoError(t, os.WriteFile(path, []byte("network: testnet\nchains:\n  ethereum:\n    rpc: http://localhost:8545\n"), 0600))
	_, err = run(t, "--config", path, "address", "format", "ethereum", bridgeAddress)
	assert.NoError(t, err)

	_, err = run(t, "--log-level", "loud", "address", "format", "ethereum", bridgeAddress)
	assert.Error(t, err)
}

func TestParseTokenID(t *testing.T) {
	token, err := parseTokenID("terra2/ibc/2C962DAB9F57FE0921435426AE75196009FAA1981BF86991203C8411F8980FDB")
	require.NoError(t, err)
	assert.Equal(t, chains.Terra2, token.Chain)
	assert.Equal(t, "ibc/2C962DAB9F57FE0921435426AE75196009FAA1981BF86991203C8411F8980FDB", token.Address)

	token, err = parseTokenID("2/0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	require.NoError(t, err)
	assert.Equal(t, chains.Ethereum, token.Chain)

	for _, bad := range []string{"ethereum", "ethereum/", "dogechain/0x00"} {
		_, err := parseTokenID(bad)
		assert.Error(t, err, bad)
	}
}

func TestDecodeOverrides(t *testing.T) {
	o, err := decodeOverrides(chains.Ethereum, nil)
	require.NoError(t, err)
	assert.Nil(t, o)

	o, err = decodeOverrides(chains.Ethereum, map[string]string{"gas_limit": "300000", "receipt_timeout": "30s"})
	require.NoError(t, err)
	assert.Equal(t, &evm.Overrides{GasLimit: 300000, ReceiptTimeout: 30 * time.Second}, o)

	o, err = decodeOverrides(chains.Terra2, map[string]string{"gas_price": "0.02", "memo": "hi"})
	require.NoError(t, err)
	assert.Equal(t, &cosmos.Overrides{GasPrice: "0.02", Memo: "hi"}, o)

	_, err = decodeOverrides(chains.Terra2, map[string]string{"gas_prize": "0.02"})
	assert.Error(t, err)

	_, err = decodeOverrides(chains.Solana, map[string]string{"gas_limit": "1"})
	assert.Error(t, err)
}
