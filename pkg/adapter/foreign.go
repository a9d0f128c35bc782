package adapter

import (
	"context"
	"fmt"

	"github.com/certusone/wormhole/connect/pkg/chains"
	"github.com/certusone/wormhole/connect/pkg/common"
	"github.com/certusone/wormhole/connect/pkg/vaa"
	lru "github.com/hashicorp/golang-lru"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var foreignAssetLookups = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "connect_foreign_asset_lookups_total",
		Help: "Foreign asset lookups by chain and result",
	}, []string{"chain", "result"})

// WrappedAssetQuery asks a chain's token bridge for the wrapped representation of the token with the given home
// chain and universal asset id. A registry miss is ("", false, nil); failures to get an answer are errors.
type WrappedAssetQuery func(ctx context.Context, tokenChain chains.ID, tokenAddress vaa.Address) (string, bool, error)

// ForeignAssets resolves foreign assets for one chain. Positive answers are cached: once registered, a wrapped
// asset's address never changes. Misses are not cached since the asset may be attested at any time.
type ForeignAssets struct {
	chain    chains.ID
	resolver Resolver
	query    WrappedAssetQuery
	logger   *zap.Logger

	cache *lru.Cache
	sf    singleflight.Group
}

func NewForeignAssets(logger *zap.Logger, chain chains.ID, resolver Resolver, query WrappedAssetQuery) (*ForeignAssets, error) {
	cache, err := lru.New(1024)
	if err != nil {
		return nil, err
	}
	return &ForeignAssets{
		chain:    chain,
		resolver: resolver,
		query:    query,
		logger:   logger.With(zap.String("component", "foreign_assets"), zap.Stringer("chain", chain)),
		cache:    cache,
	}, nil
}

type lookupResult struct {
	address string
	found   bool
}

// Get implements ChainContext.GetForeignAsset.
func (f *ForeignAssets) Get(ctx context.Context, token common.TokenID) (string, bool, error) {
	if token.Chain == f.chain {
		return token.Address, true, nil
	}

	cacheKey := token.String()
	if v, hit := f.cache.Get(cacheKey); hit {
		if addr, ok := v.(string); ok {
			foreignAssetLookups.WithLabelValues(f.chain.String(), "cache_hit").Inc()
			return addr, true, nil
		}
		f.cache.Remove(cacheKey)
	}

	// The lookup is shared and detached from the caller, each caller only stops waiting on its own context.
	lookupCtx := context.WithoutCancel(ctx)
	ch := f.sf.DoChan(cacheKey, func() (interface{}, error) {
		home, err := f.resolver.Context(token.Chain)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve home chain of %s: %w", token, err)
		}
		universal, err := home.FormatAssetAddress(lookupCtx, token.Address)
		if err != nil {
			return nil, fmt.Errorf("failed to format asset address of %s: %w", token, err)
		}

		addr, found, err := f.query(lookupCtx, token.Chain, universal)
		if err != nil {
			foreignAssetLookups.WithLabelValues(f.chain.String(), "error").Inc()
			return nil, err
		}
		if !found {
			foreignAssetLookups.WithLabelValues(f.chain.String(), "not_found").Inc()
			return lookupResult{}, nil
		}

		foreignAssetLookups.WithLabelValues(f.chain.String(), "found").Inc()
		f.cache.Add(cacheKey, addr)
		f.logger.Debug("resolved foreign asset", zap.Stringer("token", token), zap.String("address", addr))
		return lookupResult{address: addr, found: true}, nil
	})

	select {
	case <-ctx.Done():
		return "", false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return "", false, res.Err
		}
		r := res.Val.(lookupResult)
		return r.address, r.found, nil
	}
}

// MustGet implements ChainContext.MustGetForeignAsset.
func (f *ForeignAssets) MustGet(ctx context.Context, token common.TokenID) (string, error) {
	addr, found, err := f.Get(ctx, token)
	if err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("%s has no wrapped asset on %s: %w", token, f.chain, common.ErrNotRegistered)
	}
	return addr, nil
}
