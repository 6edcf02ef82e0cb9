package rag

import (
	"container/list"
	"context"
	"sync"

	"github.com/hyperjump/iasistente/internal/knowledge"
	"github.com/hyperjump/iasistente/internal/metrics"
	"go.uber.org/zap"
)

// ChainBuilder builds chains and reports the version of the index behind them.
type ChainBuilder interface {
	Build(ctx context.Context, domain string) (*Chain, error)
	Version(domain string) (knowledge.Version, error)
}

// ChainCache keeps the most recently used chains, keyed by domain. An entry is rebuilt when
// its index changes on disk. Builds run outside the lock; concurrent misses for the same
// domain may build twice and the last one wins.
type ChainCache struct {
	builder  ChainBuilder
	capacity int
	logger   *zap.Logger

	mu      sync.Mutex
	entries map[string]*list.Element
	lru     *list.List
}

// CacheOption configures a ChainCache.
type CacheOption func(*ChainCache)

// WithCacheLogger sets a logger for cache events.
func WithCacheLogger(l *zap.Logger) CacheOption {
	return func(c *ChainCache) { c.logger = l }
}

// NewChainCache returns a cache holding up to capacity chains. A capacity of zero builds a
// new chain for every request.
func NewChainCache(builder ChainBuilder, capacity int, opts ...CacheOption) *ChainCache {
	c := &ChainCache{
		builder:  builder,
		capacity: capacity,
		logger:   zap.NewNop(),
		entries:  make(map[string]*list.Element),
		lru:      list.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the chain for domain, building it on a miss or when the index has changed.
func (c *ChainCache) Get(ctx context.Context, domain string) (*Chain, error) {
	if c.capacity <= 0 {
		return c.builder.Build(ctx, domain)
	}

	if chain, ok := c.lookup(domain); ok {
		v, err := c.builder.Version(domain)
		if err == nil && v == chain.version {
			metrics.ChainCacheEvents.WithLabelValues("hit").Inc()
			return chain, nil
		}
		metrics.ChainCacheEvents.WithLabelValues("stale").Inc()
		c.logger.Info("knowledge index changed; rebuilding chain", zap.String("domain", domain))
		c.Evict(domain)
	} else {
		metrics.ChainCacheEvents.WithLabelValues("miss").Inc()
	}

	chain, err := c.builder.Build(ctx, domain)
	if err != nil {
		return nil, err
	}
	c.store(domain, chain)
	return chain, nil
}

// Answer answers question with the chain for domain.
func (c *ChainCache) Answer(ctx context.Context, domain, question string) (string, error) {
	chain, err := c.Get(ctx, domain)
	if err != nil {
		return "", err
	}
	return chain.Invoke(ctx, question)
}

// Evict drops the cached chain for domain, if any.
func (c *ChainCache) Evict(domain string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[domain]; ok {
		c.lru.Remove(elem)
		delete(c.entries, domain)
		metrics.ChainCacheEvents.WithLabelValues("evict").Inc()
	}
}

// Len returns the number of cached chains.
func (c *ChainCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *ChainCache) lookup(domain string) (*Chain, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	elem, ok := c.entries[domain]
	if !ok {
		return nil, false
	}
	c.lru.MoveToFront(elem)
	return elem.Value.(*Chain), true
}

func (c *ChainCache) store(domain string, chain *Chain) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[domain]; ok {
		elem.Value = chain
		c.lru.MoveToFront(elem)
		return
	}
	c.entries[domain] = c.lru.PushFront(chain)
	if c.lru.Len() > c.capacity {
		oldest := c.lru.Back()
		c.lru.Remove(oldest)
		delete(c.entries, oldest.Value.(*Chain).domain)
		metrics.ChainCacheEvents.WithLabelValues("evict").Inc()
	}
}
