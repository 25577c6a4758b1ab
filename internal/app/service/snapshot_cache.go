package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"buybot/internal/app/port"
	dexclient "buybot/internal/client"
	"buybot/internal/domain/entity"
	dexentity "buybot/internal/entity"
	"buybot/internal/pkg/metrics"
	"buybot/internal/pkg/utils"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"
)

// SnapshotCacheConfig controls freshness and batching of the snapshot cache.
type SnapshotCacheConfig struct {
	ChainID   string
	TTL       time.Duration // entries younger than this are served without a fetch
	MaxStale  time.Duration // oldest entry served when the upstream fails
	BatchSize int           // tokens per batch request in Warm
	// FetchTimeout bounds one shared refresh. Refreshes ignore the caller's cancellation
	// since other callers of the same key wait on them.
	FetchTimeout time.Duration
}

// snapshotCacheImpl implements port.SnapshotProvider on top of go-cache.
// Entries live for MaxStale; freshness against TTL is checked on read with the injected clock.
type snapshotCacheImpl struct {
	client  port.MarketDataClient
	cfg     SnapshotCacheConfig
	entries *cache.Cache
	group   singleflight.Group
	logger  port.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewSnapshotCache creates a snapshot cache backed by client.
func NewSnapshotCache(client port.MarketDataClient, cfg SnapshotCacheConfig, l port.Logger, m *metrics.Metrics) port.SnapshotProvider {
	return newSnapshotCache(client, cfg, l, m, time.Now)
}

func newSnapshotCache(client port.MarketDataClient, cfg SnapshotCacheConfig, l port.Logger, m *metrics.Metrics, now func() time.Time) *snapshotCacheImpl {
	if cfg.MaxStale < cfg.TTL {
		cfg.MaxStale = cfg.TTL
	}
	return &snapshotCacheImpl{
		client:  client,
		cfg:     cfg,
		entries: cache.New(cfg.MaxStale, 2*cfg.MaxStale),
		logger:  l,
		metrics: metrics.OrNop(m),
		now:     now,
	}
}

func tokenKey(tokenAddress string) string {
	return "pairs_" + strings.ToLower(tokenAddress)
}

func (c *snapshotCacheImpl) pairKey(pairAddress string) string {
	return fmt.Sprintf("pair_%s_%s", c.cfg.ChainID, strings.ToLower(pairAddress))
}

func (c *snapshotCacheImpl) lookup(key string) (entity.Snapshot, bool) {
	v, ok := c.entries.Get(key)
	if !ok {
		return entity.Snapshot{}, false
	}
	return v.(entity.Snapshot), true
}

func (c *snapshotCacheImpl) store(key string, s entity.Snapshot) {
	c.entries.Set(key, s, cache.DefaultExpiration)
}

func (c *snapshotCacheImpl) fresh(s entity.Snapshot) bool {
	return c.now().Sub(s.FetchedAt) < c.cfg.TTL
}

func (c *snapshotCacheImpl) withinStale(s entity.Snapshot) bool {
	return c.now().Sub(s.FetchedAt) <= c.cfg.MaxStale
}

// Fetch returns the best same-chain snapshot for tokenAddress.
func (c *snapshotCacheImpl) Fetch(ctx context.Context, tokenAddress string) (entity.Snapshot, bool) {
	token := strings.ToLower(tokenAddress)
	key := tokenKey(token)
	return c.fetchWith(ctx, key, token, func(ctx context.Context) (entity.Snapshot, error) {
		pairs, err := c.client.GetTokenPairs(ctx, token)
		if err != nil {
			return entity.Snapshot{}, err
		}
		return dexclient.BestSnapshot(token, pairs, c.cfg.ChainID, c.now())
	})
}

// FetchPair returns the snapshot of one pair on the configured chain.
func (c *snapshotCacheImpl) FetchPair(ctx context.Context, pairAddress string) (entity.Snapshot, bool) {
	key := c.pairKey(pairAddress)
	return c.fetchWith(ctx, key, pairAddress, func(ctx context.Context) (entity.Snapshot, error) {
		pair, err := c.client.GetPairByAddress(ctx, c.cfg.ChainID, pairAddress)
		if err != nil {
			return entity.Snapshot{}, err
		}
		if pair == nil {
			return entity.Snapshot{}, fmt.Errorf("%w: pair %s", entity.ErrNoData, pairAddress)
		}
		return dexclient.BestSnapshot(pair.BaseToken.Address, []dexentity.PairData{*pair}, c.cfg.ChainID, c.now())
	})
}

// fetchWith serves fresh entries, coalesces concurrent refreshes of one key,
// and falls back to a stale entry only when the upstream itself failed.
func (c *snapshotCacheImpl) fetchWith(ctx context.Context, key, subject string, refresh func(context.Context) (entity.Snapshot, error)) (entity.Snapshot, bool) {
	cached, hasCached := c.lookup(key)
	if hasCached && c.fresh(cached) {
		c.metrics.SnapshotFetches.WithLabelValues("hit").Inc()
		return cached, true
	}

	ch := c.group.DoChan(key, func() (any, error) {
		rctx := context.WithoutCancel(ctx)
		if c.cfg.FetchTimeout > 0 {
			var cancel context.CancelFunc
			rctx, cancel = context.WithTimeout(rctx, c.cfg.FetchTimeout)
			defer cancel()
		}
		s, err := refresh(rctx)
		if err != nil {
			return nil, err
		}
		c.store(key, s)
		return s, nil
	})

	var err error
	select {
	case res := <-ch:
		if res.Err == nil {
			c.metrics.SnapshotFetches.WithLabelValues("miss").Inc()
			return res.Val.(entity.Snapshot), true
		}
		err = res.Err
	case <-ctx.Done():
		// the shared refresh keeps running for the other waiters
		err = ctx.Err()
	}

	switch {
	case errors.Is(err, entity.ErrNoData), errors.Is(err, entity.ErrMalformedSnapshot):
		c.logger.Debug("No usable snapshot", "subject", subject, "error", err)
	default:
		if hasCached && c.withinStale(cached) {
			c.metrics.SnapshotFetches.WithLabelValues("stale").Inc()
			c.logger.Warn("Upstream failed, serving stale snapshot",
				"subject", subject, "age", c.now().Sub(cached.FetchedAt).String(), "error", err)
			return cached, true
		}
		c.logger.Warn("Upstream failed and no valid cached snapshot", "subject", subject, "error", err)
	}
	c.metrics.SnapshotFetches.WithLabelValues("not_found").Inc()
	return entity.Snapshot{}, false
}

// Warm prefetches snapshots for tokens without a fresh entry using the batch endpoint.
// It returns how many tokens received a fresh snapshot. Failures only mean later per-token fetches.
func (c *snapshotCacheImpl) Warm(ctx context.Context, tokenAddresses []string) int {
	var stale []string
	for _, token := range utils.UniqueLower(tokenAddresses) {
		if s, ok := c.lookup(tokenKey(token)); ok && c.fresh(s) {
			continue
		}
		stale = append(stale, token)
	}
	if len(stale) == 0 {
		return 0
	}

	warmed := 0
	for _, batch := range utils.BatchStrings(stale, c.cfg.BatchSize) {
		if ctx.Err() != nil {
			break
		}
		pairs, err := c.client.GetTokenPairsByAddresses(ctx, c.cfg.ChainID, batch)
		if err != nil {
			c.logger.Warn("Batch snapshot prefetch failed", "tokens", len(batch), "error", err)
			continue
		}
		byToken := dexclient.GroupByBaseToken(pairs)
		fetchedAt := c.now()
		for _, token := range batch {
			s, err := dexclient.BestSnapshot(token, byToken[token], c.cfg.ChainID, fetchedAt)
			if err != nil {
				continue
			}
			c.store(tokenKey(token), s)
			warmed++
		}
	}
	c.logger.Debug("Snapshot cache warmed", "requested", len(stale), "warmed", warmed)
	return warmed
}

// Peek returns the cached snapshot for tokenAddress regardless of freshness.
func (c *snapshotCacheImpl) Peek(tokenAddress string) (entity.Snapshot, bool) {
	return c.lookup(tokenKey(tokenAddress))
}

// Search runs an uncached free-text search and returns convertible same-chain pairs.
func (c *snapshotCacheImpl) Search(ctx context.Context, query string) ([]entity.Snapshot, error) {
	pairs, err := c.client.SearchPairs(ctx, query)
	if err != nil {
		return nil, err
	}
	fetchedAt := c.now()
	out := make([]entity.Snapshot, 0, len(pairs))
	for _, p := range dexclient.FilterChain(pairs, c.cfg.ChainID) {
		s, err := dexclient.ToSnapshot(p.BaseToken.Address, p, fetchedAt)
		if err != nil {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

// Clear drops every cached entry.
func (c *snapshotCacheImpl) Clear() {
	c.entries.Flush()
}
