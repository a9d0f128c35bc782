package attestation

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/certusone/wormhole/connect/pkg/chains"
	"github.com/certusone/wormhole/connect/pkg/common"
	"github.com/certusone/wormhole/connect/pkg/vaa"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func signedVAA(t *testing.T, seq uint64) (*vaa.VAA, []byte) {
	t.Helper()
	emitter, err := vaa.StringToAddress("0x0290fb167208af455bb137780163b7b7a9a10c16")
	require.NoError(t, err)

	v := &vaa.VAA{
		Version:          vaa.SupportedVAAVersion,
		GuardianSetIndex: 4,
		Signatures:       []*vaa.Signature{{Index: 0, Signature: vaa.SignatureData{1, 2, 3}}},
		Timestamp:        time.Unix(1700000000, 0),
		Nonce:            7,
		Sequence:         seq,
		ConsistencyLevel: 1,
		EmitterChain:     chains.Ethereum,
		EmitterAddress:   emitter,
		Payload:          []byte{0x01, 0x02},
	}
	raw, err := v.Marshal()
	require.NoError(t, err)
	return v, raw
}

// guardian is a stub guardian REST endpoint that answers 404 until it has been asked failures times.
type guardian struct {
	t        *testing.T
	requests atomic.Int32
	failures int32
	status   int
	vaas     map[string][]byte
}

func (g *guardian) handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/v1/signed_vaa/{chain}/{emitter}/{seq}", func(w http.ResponseWriter, req *http.Request) {
		n := g.requests.Add(1)
		if n <= g.failures {
			status := g.status
			if status == 0 {
				status = http.StatusNotFound
			}
			w.WriteHeader(status)
			return
		}

		vars := mux.Vars(req)
		raw, ok := g.vaas[vars["chain"]+"/"+vars["emitter"]+"/"+vars["seq"]]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		assert.NoError(g.t, json.NewEncoder(w).Encode(map[string]string{
			"vaaBytes": base64.StdEncoding.EncodeToString(raw),
		}))
	}).Methods(http.MethodGet)
	return r
}

func newGuardian(t *testing.T, failures int32, vaas ...[]byte) (*guardian, *httptest.Server) {
	g := &guardian{t: t, failures: failures, vaas: map[string][]byte{}}
	for _, raw := range vaas {
		v, err := vaa.Unmarshal(raw)
		require.NoError(t, err)
		g.vaas[v.MessageID()] = raw
	}
	srv := httptest.NewServer(g.handler())
	t.Cleanup(srv.Close)
	return g, srv
}

func newTestFetcher(t *testing.T, hosts []string, opts ...FetcherOption) *Fetcher {
	t.Helper()
	opts = append([]FetcherOption{WithInterval(time.Millisecond), WithAttempts(3)}, opts...)
	f, err := NewFetcher(zap.NewNop(), hosts, opts...)
	require.NoError(t, err)
	return f
}

func TestFetchSucceedsOnLastAttempt(t *testing.T) {
	v, raw := signedVAA(t, 10)
	g, srv := newGuardian(t, 2, raw)
	f := newTestFetcher(t, []string{srv.URL})

	signed, err := f.Fetch(context.Background(), MessageIDFromVAA(v))
	require.NoError(t, err)

	assert.Equal(t, int32(3), g.requests.Load())
	assert.Equal(t, raw, signed.Bytes)
	assert.Equal(t, v.MessageID(), signed.VAA.MessageID())
	assert.Equal(t, v.Payload, signed.VAA.Payload)
}

func TestFetchGivesUpAfterConfiguredAttempts(t *testing.T) {
	for _, attempts := range []uint64{1, 3, 5} {
		v, raw := signedVAA(t, 10)
		g, srv := newGuardian(t, 1000, raw)
		f := newTestFetcher(t, []string{srv.URL}, WithAttempts(attempts))

		_, err := f.Fetch(context.Background(), MessageIDFromVAA(v))
		assert.ErrorIs(t, err, common.ErrAttestationUnavailable)
		assert.Equal(t, int32(attempts), g.requests.Load())
	}
}

func TestFetchTriesEveryHostPerAttempt(t *testing.T) {
	v, raw := signedVAA(t, 11)
	down, downSrv := newGuardian(t, 1000)
	up, upSrv := newGuardian(t, 0, raw)

	// A host that refuses connections is skipped as well.
	closed := httptest.NewServer(http.NotFoundHandler())
	closed.Close()

	f := newTestFetcher(t, []string{closed.URL, downSrv.URL, upSrv.URL})
	signed, err := f.Fetch(context.Background(), MessageIDFromVAA(v))
	require.NoError(t, err)
	assert.Equal(t, raw, signed.Bytes)
	assert.Equal(t, int32(1), down.requests.Load())
	assert.Equal(t, int32(1), up.requests.Load())
}

func TestFetchTreatsServerErrorsAsRetryable(t *testing.T) {
	v, raw := signedVAA(t, 12)
	g, srv := newGuardian(t, 1, raw)
	g.status = http.StatusInternalServerError
	f := newTestFetcher(t, []string{srv.URL})

	_, err := f.Fetch(context.Background(), MessageIDFromVAA(v))
	require.NoError(t, err)
	assert.Equal(t, int32(2), g.requests.Load())
}

func TestFetchRejectsMismatchedVAA(t *testing.T) {
	v, _ := signedVAA(t, 13)
	_, other := signedVAA(t, 14)

	g := &guardian{t: t, vaas: map[string][]byte{}}
	g.vaas[v.MessageID()] = other
	srv := httptest.NewServer(g.handler())
	defer srv.Close()

	f := newTestFetcher(t, []string{srv.URL})
	_, err := f.Fetch(context.Background(), MessageIDFromVAA(v))
	assert.ErrorIs(t, err, common.ErrAttestationUnavailable)
	assert.Equal(t, int32(3), g.requests.Load())
}

func TestFetchStopsOnCancel(t *testing.T) {
	v, _ := signedVAA(t, 15)
	g, srv := newGuardian(t, 1000)
	f := newTestFetcher(t, []string{srv.URL}, WithInterval(time.Hour))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		for g.requests.Load() == 0 {
			time.Sleep(time.Millisecond)
		}
		cancel()
	}()

	_, err := f.Fetch(ctx, MessageIDFromVAA(v))
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, common.ErrAttestationUnavailable)
}

func TestFetchUsesStore(t *testing.T) {
	store, err := OpenInMemoryStore()
	require.NoError(t, err)
	defer store.Close()

	v, raw := signedVAA(t, 16)
	g, srv := newGuardian(t, 0, raw)
	f := newTestFetcher(t, []string{srv.URL}, WithStore(store))

	for i := 0; i < 3; i++ {
		signed, err := f.Fetch(context.Background(), MessageIDFromVAA(v))
		require.NoError(t, err)
		assert.Equal(t, raw, signed.Bytes)
	}
	assert.Equal(t, int32(1), g.requests.Load())
}

func TestNewFetcherValidation(t *testing.T) {
	_, err := NewFetcher(zap.NewNop(), nil)
	assert.ErrorIs(t, err, common.ErrConfiguration)

	_, err = NewFetcher(zap.NewNop(), []string{"http://localhost"}, WithAttempts(0))
	assert.ErrorIs(t, err, common.ErrConfiguration)
}
