package cache

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"sparkline-service/internal/domain/entities"
	"sparkline-service/internal/domain/interfaces"
	"sparkline-service/internal/infrastructure/clock"
	"sparkline-service/internal/infrastructure/logging"
	"sparkline-service/internal/infrastructure/metrics"
)

// ErrNotReady is returned by Init when the store could not be initialised
var ErrNotReady = errors.New("persistent cache not ready")

// StaleRead is a persisted series with its age, regardless of freshness
type StaleRead struct {
	Series      entities.Series
	LastFetched int64
	IsStale     bool
}

// PersistentCache es el tier durable sobre un interfaces.Store.
// Los errores del store nunca se propagan: se registran y cuentan como miss.
type PersistentCache struct {
	store      interfaces.Store
	table      string
	ttl        time.Duration
	maxEntries int
	clock      clock.Clock
	logger     logging.CacheLogger

	initOnce sync.Once
	initErr  error
	ready    atomic.Bool

	evicting     atomic.Bool
	evictPending atomic.Bool
	wg           sync.WaitGroup
}

func NewPersistentCache(store interfaces.Store, table string, ttl time.Duration, maxEntries int, clk clock.Clock) *PersistentCache {
	if clk == nil {
		clk = clock.NewReal()
	}
	return &PersistentCache{
		store:      store,
		table:      table,
		ttl:        ttl,
		maxEntries: maxEntries,
		clock:      clk,
		logger:     logging.Cache(),
	}
}

// Init initialises the store once. Later calls return the first result.
func (p *PersistentCache) Init(ctx context.Context) error {
	p.initOnce.Do(func() {
		if p.store == nil {
			p.initErr = ErrNotReady
			return
		}
		if err := p.store.Init(ctx); err != nil {
			p.fail(ctx, logging.CacheOpInit, "", err)
			p.initErr = errors.Join(ErrNotReady, err)
			return
		}
		p.ready.Store(true)
		metrics.RecordCacheOperation(TierPersistent, logging.CacheOpInit, "ok")
		if n, err := p.store.Count(ctx, p.table); err == nil {
			metrics.UpdateCacheEntries(TierPersistent, n)
		}
	})
	return p.initErr
}

func (p *PersistentCache) Ready() bool {
	return p.ready.Load()
}

// IsFresh reports whether rec is still inside the persistent TTL
func (p *PersistentCache) IsFresh(rec entities.PersistentRecord) bool {
	return rec.FreshAt(p.clock.Now(), p.ttl)
}

// Get returns the record only when it is fresh
func (p *PersistentCache) Get(ctx context.Context, key entities.CacheKey) (entities.PersistentRecord, bool) {
	rec, ok := p.load(ctx, key)
	if !ok || !p.IsFresh(rec) {
		p.logger.Miss(ctx, TierPersistent, key.String(), logging.CacheOpGet)
		metrics.RecordCacheOperation(TierPersistent, logging.CacheOpGet, "miss")
		return entities.PersistentRecord{}, false
	}
	p.logger.Hit(ctx, TierPersistent, key.String(), logging.CacheOpGet)
	metrics.RecordCacheOperation(TierPersistent, logging.CacheOpGet, "hit")
	return rec, true
}

// GetWithStaleness never filters by age
func (p *PersistentCache) GetWithStaleness(ctx context.Context, key entities.CacheKey) (StaleRead, bool) {
	rec, ok := p.load(ctx, key)
	if !ok {
		metrics.RecordCacheOperation(TierPersistent, logging.CacheOpGet, "miss")
		return StaleRead{}, false
	}
	stale := !p.IsFresh(rec)
	result := "hit"
	if stale {
		result = "stale"
	}
	metrics.RecordCacheOperation(TierPersistent, logging.CacheOpGet, result)
	return StaleRead{Series: rec.Series, LastFetched: rec.LastFetchedTimestamp, IsStale: stale}, true
}

func (p *PersistentCache) load(ctx context.Context, key entities.CacheKey) (entities.PersistentRecord, bool) {
	if !p.Ready() {
		return entities.PersistentRecord{}, false
	}
	rec, found, err := p.store.Get(ctx, p.table, key.String())
	if err != nil {
		p.fail(ctx, logging.CacheOpGet, key.String(), err)
		return entities.PersistentRecord{}, false
	}
	return rec, found
}

// BulkGet reads many keys in one store round trip. Stale records are included.
func (p *PersistentCache) BulkGet(ctx context.Context, keys []entities.CacheKey) map[entities.CacheKey]entities.PersistentRecord {
	out := make(map[entities.CacheKey]entities.PersistentRecord, len(keys))
	if !p.Ready() || len(keys) == 0 {
		return out
	}

	raw := make([]string, len(keys))
	byString := make(map[string]entities.CacheKey, len(keys))
	for i, k := range keys {
		raw[i] = k.String()
		byString[raw[i]] = k
	}

	records, err := p.store.BulkGet(ctx, p.table, raw)
	if err != nil {
		p.fail(ctx, logging.CacheOpBulkGet, "", err)
		return out
	}
	for s, rec := range records {
		if k, ok := byString[s]; ok {
			out[k] = rec
		}
	}
	metrics.RecordCacheOperation(TierPersistent, logging.CacheOpBulkGet, "ok")
	return out
}

// Set upserts the series stamped with the current time and then starts a
// capacity eviction pass unless one is already running.
func (p *PersistentCache) Set(ctx context.Context, key entities.CacheKey, series entities.Series) {
	if !p.Ready() {
		return
	}
	rec := entities.PersistentRecord{Series: series, LastFetchedTimestamp: p.clock.Now().UnixMilli()}
	if err := p.store.Upsert(ctx, p.table, key.String(), rec); err != nil {
		p.fail(ctx, logging.CacheOpSet, key.String(), err)
		return
	}
	metrics.RecordCacheOperation(TierPersistent, logging.CacheOpSet, "ok")
	p.logger.Set(ctx, TierPersistent, key.String(), p.ttl)
	p.scheduleCapacityEviction(context.WithoutCancel(ctx))
}

// scheduleCapacityEviction coalesces passes: a Set that lands while a pass
// runs marks evictPending and the running goroutine loops once more.
func (p *PersistentCache) scheduleCapacityEviction(ctx context.Context) {
	p.evictPending.Store(true)
	if !p.evicting.CompareAndSwap(false, true) {
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		for {
			for p.evictPending.Swap(false) {
				p.EvictOverCapacity(ctx)
			}
			p.evicting.Store(false)
			// un Set pudo marcar pending entre el último Swap y el Store
			if !p.evictPending.Load() || !p.evicting.CompareAndSwap(false, true) {
				return
			}
		}
	}()
}

// EvictExpired deletes records older than the persistent TTL
func (p *PersistentCache) EvictExpired(ctx context.Context) int {
	if !p.Ready() {
		return 0
	}
	cutoff := p.clock.Now().UnixMilli() - p.ttl.Milliseconds()
	n, err := p.store.DeleteWhere(ctx, p.table, func(_ string, rec entities.PersistentRecord) bool {
		return rec.LastFetchedTimestamp <= cutoff
	})
	if err != nil {
		p.fail(ctx, logging.CacheOpEvict, "", err)
		return 0
	}
	p.afterEviction(ctx, "expired", n)
	return n
}

// EvictOverCapacity deletes the oldest records until at most maxEntries remain
func (p *PersistentCache) EvictOverCapacity(ctx context.Context) int {
	if !p.Ready() || p.maxEntries <= 0 {
		return 0
	}
	count, err := p.store.Count(ctx, p.table)
	if err != nil {
		p.fail(ctx, logging.CacheOpEvict, "", err)
		return 0
	}
	metrics.UpdateCacheEntries(TierPersistent, count)
	if count <= p.maxEntries {
		return 0
	}

	type aged struct {
		key string
		ts  int64
	}
	all := make([]aged, 0, count)
	err = p.store.Scan(ctx, p.table, func(key string, rec entities.PersistentRecord) bool {
		all = append(all, aged{key: key, ts: rec.LastFetchedTimestamp})
		return true
	})
	if err != nil {
		p.fail(ctx, logging.CacheOpEvict, "", err)
		return 0
	}
	// el Scan es la fuente de verdad: Count pudo quedar atrás de escrituras concurrentes
	excess := len(all) - p.maxEntries
	if excess <= 0 {
		return 0
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].ts == all[j].ts {
			return all[i].key < all[j].key
		}
		return all[i].ts < all[j].ts
	})
	doomed := make(map[string]struct{}, excess)
	for _, a := range all[:excess] {
		doomed[a.key] = struct{}{}
	}

	n, err := p.store.DeleteWhere(ctx, p.table, func(key string, _ entities.PersistentRecord) bool {
		_, ok := doomed[key]
		return ok
	})
	if err != nil {
		p.fail(ctx, logging.CacheOpEvict, "", err)
		return 0
	}
	p.afterEviction(ctx, "capacity", n)
	return n
}

func (p *PersistentCache) afterEviction(ctx context.Context, reason string, n int) {
	if n == 0 {
		return
	}
	metrics.RecordCacheEviction(TierPersistent, reason, n)
	p.logger.Evicted(ctx, TierPersistent, reason, n)
	if count, err := p.store.Count(ctx, p.table); err == nil {
		metrics.UpdateCacheEntries(TierPersistent, count)
	}
}

// Count returns the number of persisted records, zero when unavailable
func (p *PersistentCache) Count(ctx context.Context) int {
	if !p.Ready() {
		return 0
	}
	n, err := p.store.Count(ctx, p.table)
	if err != nil {
		p.fail(ctx, logging.CacheOpGet, "", err)
		return 0
	}
	return n
}

// Clear removes every record of the table
func (p *PersistentCache) Clear(ctx context.Context) {
	if !p.Ready() {
		return
	}
	if _, err := p.store.DeleteWhere(ctx, p.table, func(string, entities.PersistentRecord) bool { return true }); err != nil {
		p.fail(ctx, logging.CacheOpClear, "", err)
		return
	}
	metrics.RecordCacheOperation(TierPersistent, logging.CacheOpClear, "ok")
	metrics.UpdateCacheEntries(TierPersistent, 0)
}

// Wait blocks until background eviction passes have finished
func (p *PersistentCache) Wait() {
	p.wg.Wait()
}

func (p *PersistentCache) fail(ctx context.Context, op, key string, err error) {
	metrics.RecordCacheOperation(TierPersistent, op, "error")
	p.logger.CacheError(ctx, TierPersistent, op, key, err)
}
