// Package registry holds the chain context of every chain and resolves chain ids to them.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/certusone/wormhole/connect/pkg/adapter"
	"github.com/certusone/wormhole/connect/pkg/attestation"
	"github.com/certusone/wormhole/connect/pkg/chains"
	"github.com/certusone/wormhole/connect/pkg/common"
	"github.com/certusone/wormhole/connect/pkg/config"
	"github.com/certusone/wormhole/connect/pkg/cosmos"
	"github.com/certusone/wormhole/connect/pkg/evm"
	"github.com/certusone/wormhole/connect/pkg/solana"
	"github.com/certusone/wormhole/connect/pkg/transfer"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Registry owns one chain context per chain. Contexts of configured chains are created by New; contexts of
// other known chains are created with an empty configuration the first time they are resolved, so their address
// codecs are usable and everything needing an endpoint fails with a configuration error.
type Registry struct {
	logger  *zap.Logger
	configs map[chains.ID]config.Chain

	cosmosOpts map[chains.ID][]cosmos.Option
	evmOpts    map[chains.ID][]evm.Option

	mu       sync.Mutex
	contexts map[chains.ID]adapter.ChainContext
	closed   bool

	fetcher *attestation.Fetcher
	store   *attestation.Store
	tracker *transfer.Tracker
}

var _ adapter.Resolver = (*Registry)(nil)

type Option func(*Registry)

// WithCosmosOptions passes extra options, such as a wallet signer, to the context of a CosmWasm chain.
func WithCosmosOptions(chain chains.ID, opts ...cosmos.Option) Option {
	return func(r *Registry) {
		r.cosmosOpts[chain] = append(r.cosmosOpts[chain], opts...)
	}
}

// WithEVMOptions passes extra options to the context of an EVM chain.
func WithEVMOptions(chain chains.ID, opts ...evm.Option) Option {
	return func(r *Registry) {
		r.evmOpts[chain] = append(r.evmOpts[chain], opts...)
	}
}

// New creates the contexts of the configured chains and the attestation fetcher. No network connection is made.
func New(logger *zap.Logger, cfg *config.Config, opts ...Option) (*Registry, error) {
	configs, err := cfg.ChainConfigs()
	if err != nil {
		return nil, err
	}

	r := &Registry{
		logger:     logger.With(zap.String("component", "registry")),
		configs:    configs,
		cosmosOpts: make(map[chains.ID][]cosmos.Option),
		evmOpts:    make(map[chains.ID][]evm.Option),
		contexts:   make(map[chains.ID]adapter.ChainContext),
	}
	for _, opt := range opts {
		opt(r)
	}

	ids := make([]chains.ID, 0, len(configs))
	for id := range configs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		c, err := r.newContext(id, configs[id])
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("failed to create context of %s: %w", id, err)
		}
		r.contexts[id] = c
		r.logger.Debug("created chain context", zap.Stringer("chain", id), zap.Stringer("platform", id.Platform()))
	}

	if err := r.newFetcher(cfg); err != nil {
		r.Close()
		return nil, err
	}
	r.tracker = transfer.NewTracker(logger, r, r.fetcher)
	return r, nil
}

func (r *Registry) newFetcher(cfg *config.Config) error {
	hosts, err := cfg.Hosts()
	if err != nil {
		return err
	}

	a := cfg.Attestation
	fetcherOpts := []attestation.FetcherOption{
		attestation.WithAttempts(a.Attempts),
		attestation.WithShuffledHosts(a.ShuffleHosts),
	}
	if a.Interval > 0 {
		fetcherOpts = append(fetcherOpts, attestation.WithInterval(a.Interval))
	}
	if a.RequestTimeout > 0 {
		fetcherOpts = append(fetcherOpts, attestation.WithRequestTimeout(a.RequestTimeout))
	}
	if a.RateLimit > 0 {
		burst := a.RateBurst
		if burst < 1 {
			burst = 1
		}
		fetcherOpts = append(fetcherOpts, attestation.WithRateLimit(rate.Limit(a.RateLimit), burst))
	}
	if a.CacheDir != "" {
		store, err := attestation.OpenStore(a.CacheDir)
		if err != nil {
			return err
		}
		r.store = store
		fetcherOpts = append(fetcherOpts, attestation.WithStore(store))
	}

	f, err := attestation.NewFetcher(r.logger, hosts, fetcherOpts...)
	if err != nil {
		return err
	}
	r.fetcher = f
	return nil
}

func (r *Registry) newContext(id chains.ID, c config.Chain) (adapter.ChainContext, error) {
	switch id.Platform() {
	case chains.PlatformCosmWasm:
		return r.newCosmosContext(id, c)
	case chains.PlatformEVM:
		return r.newEVMContext(id, c)
	case chains.PlatformSolana:
		return solana.NewContext(id, r)
	default:
		// Families without an adapter keep the default behaviour: every operation is not implemented.
		return &adapter.Base{ChainID: id}, nil
	}
}

func (r *Registry) newCosmosContext(id chains.ID, c config.Chain) (adapter.ChainContext, error) {
	cfg := cosmos.Config{
		Chain:   id,
		RPC:     c.RPC,
		TLS:     c.TLS,
		ChainID: c.ChainID,
		Contracts: cosmos.Contracts{
			Core:        c.Contracts.Core,
			TokenBridge: c.Contracts.TokenBridge,
		},
		Params: cosmos.Params{
			Prefix:         c.Prefix,
			NativeDenom:    c.NativeDenom,
			NativeDecimals: c.NativeDecimals,
			GasPrice:       c.GasPrice,
		},
		GasLimit:      c.GasLimit,
		DenomDecimals: c.DenomDecimals(),
	}

	opts := r.cosmosOpts[id]
	if c.PrivateKey != "" {
		prefix := c.Prefix
		if prefix == "" {
			known, _ := cosmos.KnownParams(id)
			prefix = known.Prefix
		}
		key, err := cosmos.LoadPrivKey(c.PrivateKey, c.Passphrase)
		if err != nil {
			return nil, &common.ConfigurationError{Chain: id, Field: "private_key", Msg: err.Error()}
		}
		// Without a prefix there is no account address. The context reports the missing prefix when used.
		if prefix != "" {
			signer, err := cosmos.NewKeySigner(key, prefix, cosmos.MakeEncodingConfig())
			if err != nil {
				return nil, &common.ConfigurationError{Chain: id, Field: "private_key", Msg: err.Error()}
			}
			r.logger.Info("loaded signing key", zap.Stringer("chain", id), zap.String("address", signer.Address()))
			opts = append([]cosmos.Option{cosmos.WithSigner(signer)}, opts...)
		}
	}
	return cosmos.NewContext(r.logger, cfg, r, opts...)
}

func (r *Registry) newEVMContext(id chains.ID, c config.Chain) (adapter.ChainContext, error) {
	cfg := evm.Config{
		Chain: id,
		RPC:   c.RPC,
		Contracts: evm.Contracts{
			Core:        c.Contracts.Core,
			TokenBridge: c.Contracts.TokenBridge,
		},
		EVMChainID:     c.EVMChainID,
		NativeDecimals: c.NativeDecimals,
	}

	opts := r.evmOpts[id]
	if c.PrivateKey != "" {
		key, err := evm.LoadPrivateKey(c.PrivateKey)
		if err != nil {
			return nil, &common.ConfigurationError{Chain: id, Field: "private_key", Msg: err.Error()}
		}
		opts = append([]evm.Option{evm.WithPrivateKey(key)}, opts...)
	}
	return evm.NewContext(r.logger, cfg, r, opts...)
}

// Context implements adapter.Resolver.
func (r *Registry) Context(id chains.ID) (adapter.ChainContext, error) {
	if _, err := chains.Default.ByID(id); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, errors.New("registry is closed")
	}
	if c, ok := r.contexts[id]; ok {
		return c, nil
	}

	c, err := r.newContext(id, config.Chain{})
	if err != nil {
		return nil, err
	}
	r.contexts[id] = c
	return c, nil
}

// ContextByName resolves a chain name or decimal id.
func (r *Registry) ContextByName(name string) (adapter.ChainContext, error) {
	chain, err := chains.Default.Resolve(name)
	if err != nil {
		return nil, err
	}
	return r.Context(chain.ID)
}

// Configured lists the chains that have a configuration section, ordered by id.
func (r *Registry) Configured() []chains.ID {
	ids := make([]chains.ID, 0, len(r.configs))
	for id := range r.configs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (r *Registry) Fetcher() *attestation.Fetcher {
	return r.fetcher
}

func (r *Registry) Tracker() *transfer.Tracker {
	return r.tracker
}

// FetchAndParse fetches the VAA of id and decodes the transfer it carries with the context of its emitter chain.
func (r *Registry) FetchAndParse(ctx context.Context, id attestation.MessageID) (*attestation.SignedVAA, *adapter.ParsedMessage, error) {
	signed, err := r.fetcher.Fetch(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	source, err := r.Context(signed.VAA.EmitterChain)
	if err != nil {
		return nil, nil, err
	}
	msg, err := source.ParseMessage(ctx, signed.VAA)
	if err != nil {
		return signed, nil, err
	}
	return signed, msg, nil
}

// Close closes every context and the VAA cache.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true

	var errs []error
	for id, c := range r.contexts {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
		}
	}
	if r.store != nil {
		if err := r.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
