// Package attestation retrieves signed VAAs from the guardian network's public REST endpoints.
package attestation

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/certusone/wormhole/connect/pkg/common"
	"github.com/certusone/wormhole/connect/pkg/vaa"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	fetchAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "connect_attestation_fetch_attempts_total",
			Help: "Total number of attestation fetch attempts, each of which walks every guardian host",
		})
	fetchResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "connect_attestation_fetch_results_total",
			Help: "Attestation fetches by result",
		}, []string{"result"})
)

const (
	DefaultAttempts       = 3
	DefaultInterval       = time.Second
	DefaultRequestTimeout = 5 * time.Second
)

// errNotYetAvailable means no host had the VAA during an attempt. Quorum may still be forming.
var errNotYetAvailable = errors.New("no guardian host returned the VAA")

// SignedVAA is a fetched attestation: the bytes to submit to a destination chain and their decoded form.
type SignedVAA struct {
	Bytes []byte
	VAA   *vaa.VAA
}

// Fetcher fetches signed VAAs with a bounded number of attempts at a constant interval.
type Fetcher struct {
	logger         *zap.Logger
	hosts          []string
	client         *http.Client
	attempts       uint64
	interval       time.Duration
	requestTimeout time.Duration
	limiter        *rate.Limiter
	shuffle        bool
	store          *Store
}

type FetcherOption func(*Fetcher)

// WithAttempts sets how many times the host list is walked before giving up.
func WithAttempts(n uint64) FetcherOption {
	return func(f *Fetcher) {
		f.attempts = n
	}
}

// WithInterval sets the pause between attempts.
func WithInterval(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.interval = d
	}
}

func WithRequestTimeout(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.requestTimeout = d
	}
}

func WithHTTPClient(c *http.Client) FetcherOption {
	return func(f *Fetcher) {
		f.client = c
	}
}

// WithRateLimit caps the request rate across all hosts.
func WithRateLimit(r rate.Limit, burst int) FetcherOption {
	return func(f *Fetcher) {
		f.limiter = rate.NewLimiter(r, burst)
	}
}

// WithShuffledHosts spreads load by walking the hosts in random order on every attempt.
func WithShuffledHosts(shuffle bool) FetcherOption {
	return func(f *Fetcher) {
		f.shuffle = shuffle
	}
}

// WithStore consults and fills a local cache of signed VAAs.
func WithStore(s *Store) FetcherOption {
	return func(f *Fetcher) {
		f.store = s
	}
}

func NewFetcher(logger *zap.Logger, hosts []string, opts ...FetcherOption) (*Fetcher, error) {
	if len(hosts) == 0 {
		return nil, fmt.Errorf("%w: at least one guardian host is required", common.ErrConfiguration)
	}

	f := &Fetcher{
		logger:         logger.With(zap.String("component", "attestation_fetcher")),
		hosts:          append([]string{}, hosts...),
		client:         &http.Client{},
		attempts:       DefaultAttempts,
		interval:       DefaultInterval,
		requestTimeout: DefaultRequestTimeout,
		limiter:        rate.NewLimiter(rate.Inf, 1),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}

	if f.attempts == 0 {
		return nil, fmt.Errorf("%w: attestation attempts must be at least 1", common.ErrConfiguration)
	}
	return f, nil
}

// Fetch returns the signed VAA of id. Once every attempt has failed it returns an error wrapping
// common.ErrAttestationUnavailable; callers may call Fetch again later.
func (f *Fetcher) Fetch(ctx context.Context, id MessageID) (*SignedVAA, error) {
	if f.store != nil {
		if raw, err := f.store.Get(id); err == nil {
			if v, err := vaa.Unmarshal(raw); err == nil && id.matches(v) {
				fetchResults.WithLabelValues("cache_hit").Inc()
				return &SignedVAA{Bytes: raw, VAA: v}, nil
			}
			f.logger.Warn("ignoring invalid cached VAA", zap.Stringer("id", id))
		} else if !errors.Is(err, ErrVAANotFound) {
			f.logger.Warn("failed to read VAA cache", zap.Stringer("id", id), zap.Error(err))
		}
	}

	var (
		result  *SignedVAA
		attempt uint64
	)
	op := func() error {
		attempt++
		fetchAttempts.Inc()

		signed, err := f.fetchOnce(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		result = signed
		return nil
	}

	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(f.interval), f.attempts-1), ctx)
	err := backoff.RetryNotify(op, b, func(err error, next time.Duration) {
		f.logger.Debug("attestation not available yet",
			zap.Stringer("id", id),
			zap.Uint64("attempt", attempt),
			zap.Duration("retry_in", next),
			zap.Error(err),
		)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			fetchResults.WithLabelValues("canceled").Inc()
			return nil, ctxErr
		}
		fetchResults.WithLabelValues("unavailable").Inc()
		return nil, fmt.Errorf("%w: %s after %d attempts: %v", common.ErrAttestationUnavailable, id, attempt, err)
	}

	fetchResults.WithLabelValues("fetched").Inc()
	if f.store != nil {
		if err := f.store.Put(result.VAA, result.Bytes); err != nil {
			f.logger.Warn("failed to cache VAA", zap.Stringer("id", id), zap.Error(err))
		}
	}
	return result, nil
}

// fetchOnce walks the host list once.
func (f *Fetcher) fetchOnce(ctx context.Context, id MessageID) (*SignedVAA, error) {
	hosts := f.hosts
	if f.shuffle {
		hosts = append([]string{}, f.hosts...)
		rand.Shuffle(len(hosts), func(i, j int) {
			hosts[i], hosts[j] = hosts[j], hosts[i]
		})
	}

	for _, host := range hosts {
		if err := f.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		signed, err := f.fetchFromHost(ctx, host, id)
		if err != nil {
			if errors.Is(err, errNotYetAvailable) {
				continue
			}
			f.logger.Warn("failed to fetch VAA",
				zap.String("host", host),
				zap.Stringer("id", id),
				zap.Error(err),
			)
			continue
		}
		return signed, nil
	}
	return nil, errNotYetAvailable
}

func (f *Fetcher) fetchFromHost(ctx context.Context, host string, id MessageID) (*SignedVAA, error) {
	ctx, cancel := context.WithTimeout(ctx, f.requestTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/v1/signed_vaa/%d/%s/%d", host, uint16(id.EmitterChain), id.EmitterAddress, id.Sequence)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, errNotYetAvailable
	default:
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	encoded := gjson.GetBytes(body, "vaaBytes")
	if !encoded.Exists() {
		return nil, errors.New("response has no vaaBytes")
	}
	raw, err := base64.StdEncoding.DecodeString(encoded.String())
	if err != nil {
		return nil, fmt.Errorf("failed to decode VAA body: %w", err)
	}

	v, err := vaa.Unmarshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal VAA: %w", err)
	}
	if !id.matches(v) {
		return nil, fmt.Errorf("host returned VAA %s", v.MessageID())
	}

	return &SignedVAA{Bytes: raw, VAA: v}, nil
}
