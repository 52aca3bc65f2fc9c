package cache

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"sparkline-service/internal/domain/entities"
	"sparkline-service/internal/infrastructure/clock"
	"sparkline-service/internal/infrastructure/logging"
	"sparkline-service/internal/infrastructure/metrics"
)

const (
	TierMemory     = "memory"
	TierPersistent = "persistent"
)

// SeriesWriter receives every series written to the memory tier
type SeriesWriter interface {
	Set(ctx context.Context, key entities.CacheKey, series entities.Series)
}

// memoryItem es el valor de cada elemento de la lista LRU
type memoryItem struct {
	key   entities.CacheKey
	entry entities.MemoryEntry
}

// MemoryCache es el tier rápido: capacidad fija, expiración por TTL y desalojo
// del elemento escrito hace más tiempo. Las lecturas no cambian el orden.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[entities.CacheKey]*list.Element
	order      *list.List // frente = escrito más recientemente
	maxEntries int
	ttl        time.Duration
	clock      clock.Clock
	writer     SeriesWriter
	logger     logging.CacheLogger
	wg         sync.WaitGroup
}

// NewMemoryCache crea el cache en memoria. writer puede ser nil (sin persistencia).
func NewMemoryCache(maxEntries int, ttl time.Duration, clk clock.Clock, writer SeriesWriter) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = 1
	}
	if clk == nil {
		clk = clock.NewReal()
	}
	return &MemoryCache{
		entries:    make(map[entities.CacheKey]*list.Element),
		order:      list.New(),
		maxEntries: maxEntries,
		ttl:        ttl,
		clock:      clk,
		writer:     writer,
		logger:     logging.Cache(),
	}
}

// Get is a pure lookup: it neither refreshes recency nor drops expired entries
func (c *MemoryCache) Get(key entities.CacheKey) (entities.MemoryEntry, bool) {
	c.mu.Lock()
	el, ok := c.entries[key]
	var entry entities.MemoryEntry
	if ok {
		entry = el.Value.(*memoryItem).entry
		entry.Series = entry.Series.Clone()
	}
	c.mu.Unlock()

	if ok {
		metrics.RecordCacheOperation(TierMemory, logging.CacheOpGet, "hit")
	} else {
		metrics.RecordCacheOperation(TierMemory, logging.CacheOpGet, "miss")
	}
	return entry, ok
}

// IsFresh reports whether key is present and not expired
func (c *MemoryCache) IsFresh(key entities.CacheKey) bool {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	return ok && el.Value.(*memoryItem).entry.FreshAt(now)
}

// Set stores the series with a fresh TTL and hands a copy to the persistent
// writer in the background. It never blocks on the writer.
func (c *MemoryCache) Set(ctx context.Context, key entities.CacheKey, series entities.Series) {
	expiresAt := c.clock.Now().Add(c.ttl).UnixMilli()
	stored := series.Clone()
	c.put(ctx, key, entities.MemoryEntry{Series: stored, ExpiresAt: expiresAt}, false)
	c.logger.Set(ctx, TierMemory, key.String(), c.ttl)

	if c.writer == nil {
		return
	}
	persisted := series.Clone()
	bgCtx := context.WithoutCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				c.logger.CacheError(bgCtx, TierPersistent, logging.CacheOpSet, key.String(), fmt.Errorf("panic while persisting: %v", r))
			}
		}()
		c.writer.Set(bgCtx, key, persisted)
	}()
}

// Warm inserts an entry loaded from the persistent tier without writing it back.
// Keys already in memory are left alone since memory is never older than disk.
func (c *MemoryCache) Warm(ctx context.Context, key entities.CacheKey, series entities.Series, expiresAt int64) bool {
	return c.put(ctx, key, entities.MemoryEntry{Series: series.Clone(), ExpiresAt: expiresAt}, true)
}

func (c *MemoryCache) put(ctx context.Context, key entities.CacheKey, entry entities.MemoryEntry, onlyIfAbsent bool) bool {
	c.mu.Lock()
	evicted := 0
	if el, ok := c.entries[key]; ok {
		if onlyIfAbsent {
			c.mu.Unlock()
			return false
		}
		el.Value.(*memoryItem).entry = entry
		c.order.MoveToFront(el)
	} else {
		for c.order.Len() >= c.maxEntries {
			oldest := c.order.Back()
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*memoryItem).key)
			evicted++
		}
		c.entries[key] = c.order.PushFront(&memoryItem{key: key, entry: entry})
	}
	size := c.order.Len()
	c.mu.Unlock()

	metrics.RecordCacheOperation(TierMemory, logging.CacheOpSet, "ok")
	metrics.UpdateCacheEntries(TierMemory, size)
	if evicted > 0 {
		metrics.RecordCacheEviction(TierMemory, "capacity", evicted)
		c.logger.Evicted(ctx, TierMemory, "capacity", evicted)
	}
	return true
}

// Contains reports whether key has an entry, fresh or not
func (c *MemoryCache) Contains(key entities.CacheKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// InvalidateAll marks every entry as expired while keeping its data readable
func (c *MemoryCache) InvalidateAll() int {
	nowMs := c.clock.Now().UnixMilli()
	c.mu.Lock()
	defer c.mu.Unlock()

	for el := c.order.Front(); el != nil; el = el.Next() {
		item := el.Value.(*memoryItem)
		if item.entry.ExpiresAt > nowMs {
			item.entry.ExpiresAt = nowMs
		}
	}
	return c.order.Len()
}

func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Keys returns the cached keys, most recently written first
func (c *MemoryCache) Keys() []entities.CacheKey {
	c.mu.Lock()
	defer c.mu.Unlock()

	keys := make([]entities.CacheKey, 0, c.order.Len())
	for el := c.order.Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Value.(*memoryItem).key)
	}
	return keys
}

func (c *MemoryCache) Clear() {
	c.mu.Lock()
	c.entries = make(map[entities.CacheKey]*list.Element)
	c.order.Init()
	c.mu.Unlock()

	metrics.RecordCacheOperation(TierMemory, logging.CacheOpClear, "ok")
	metrics.UpdateCacheEntries(TierMemory, 0)
}

// Wait blocks until every background persist started by Set has finished
func (c *MemoryCache) Wait() {
	c.wg.Wait()
}
