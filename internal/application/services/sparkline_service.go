package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"sparkline-service/internal/domain/entities"
	"sparkline-service/internal/domain/interfaces"
	"sparkline-service/internal/infrastructure/clock"
	"sparkline-service/internal/infrastructure/config"
	"sparkline-service/internal/infrastructure/logging"
	"sparkline-service/internal/infrastructure/metrics"
	"sparkline-service/internal/infrastructure/repositories/cache"
)

// Origen de cada item encolado
const (
	SourceRead       = "read"
	SourcePrefetch   = "prefetch"
	SourceHydrate    = "hydrate"
	SourceVisibility = "visibility"
	SourceRefresh    = "refresh"
)

// queueItem is a pending fetch. It carries no identity beyond its key.
type queueItem struct {
	key    entities.CacheKey
	source string
}

// SparklineService owns the fetch queue and every guard set around it.
// All mutable scheduling state is protected by mu; counters are atomic.
type SparklineService struct {
	cfg        config.SparklineConfig
	source     interfaces.CandleSource
	live       interfaces.LivePriceSource
	memory     *cache.MemoryCache
	persistent *cache.PersistentCache
	clock      clock.Clock
	logger     logging.SparklineLogger

	mu          sync.Mutex
	queue       []queueItem
	queued      map[entities.CacheKey]struct{}
	inFlight    map[entities.CacheKey]struct{}
	claimed     map[entities.CacheKey]struct{}
	looking     map[entities.CacheKey]struct{}
	visible     []entities.CacheKey
	draining    bool
	paused      bool
	disposed    bool
	lastRefresh time.Time

	cacheVersion   atomic.Uint64
	refreshTrigger atomic.Uint64

	ctx         context.Context
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	startOnce   sync.Once
	disposeOnce sync.Once
}

var _ interfaces.SparklineService = (*SparklineService)(nil)

// NewSparklineService wires the orchestrator. live may be nil when no feed is
// configured and persistent may be nil for memory-only operation.
func NewSparklineService(
	cfg config.SparklineConfig,
	source interfaces.CandleSource,
	live interfaces.LivePriceSource,
	memory *cache.MemoryCache,
	persistent *cache.PersistentCache,
	clk clock.Clock,
) *SparklineService {
	if clk == nil {
		clk = clock.NewReal()
	}
	if persistent == nil {
		persistent = cache.NewPersistentCache(nil, "", cfg.PersistentTTL, 0, clk)
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 1
	}
	if cfg.MaxParallelBatches <= 0 {
		cfg.MaxParallelBatches = 1
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &SparklineService{
		cfg:         cfg,
		source:      source,
		live:        live,
		memory:      memory,
		persistent:  persistent,
		clock:       clk,
		logger:      logging.Sparkline(),
		queued:      make(map[entities.CacheKey]struct{}),
		inFlight:    make(map[entities.CacheKey]struct{}),
		claimed:     make(map[entities.CacheKey]struct{}),
		looking:     make(map[entities.CacheKey]struct{}),
		lastRefresh: clk.Now(),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start launches the staleness monitor. Calling it twice is a no-op.
func (s *SparklineService) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.mu.Lock()
		if s.disposed {
			s.mu.Unlock()
			return
		}
		s.wg.Add(1)
		s.mu.Unlock()

		go s.monitor()

		logging.Info(ctx, "Sparkline service started", logging.Fields{
			"refresh_interval": s.cfg.RefreshInterval.String(),
			"batch_size":       s.cfg.BatchSize,
			"parallel_batches": s.cfg.MaxParallelBatches,
		})
		s.kick()
	})
}

// Dispose stops the monitor and the drain loop and waits for background
// persistence. In-flight fetches see their context cancelled.
func (s *SparklineService) Dispose() {
	s.disposeOnce.Do(func() {
		s.mu.Lock()
		s.disposed = true
		s.mu.Unlock()

		s.cancel()
		s.wg.Wait()
		s.memory.Wait()
		s.persistent.Wait()

		logging.Info(context.Background(), "Sparkline service stopped", logging.Fields{
			logging.FieldCacheVersion:   s.cacheVersion.Load(),
			logging.FieldRefreshTrigger: s.refreshTrigger.Load(),
		})
	})
}

// GetSparklineData never blocks on I/O. It returns whatever memory holds,
// stale or not, and schedules background work when the entry is not fresh.
func (s *SparklineService) GetSparklineData(ctx context.Context, key entities.CacheKey) (entities.Series, bool) {
	entry, ok := s.memory.Get(key)
	if ok && entry.FreshAt(s.clock.Now()) {
		return entry.Series, true
	}

	if ok {
		// memory is never older than disk, so a stale entry goes straight to the queue
		s.enqueue(ctx, []entities.CacheKey{key}, SourceRead)
		return entry.Series, true
	}

	s.scheduleLookup(ctx, key)
	return entities.Series{}, false
}

// GetLiveSparkline overlays the latest live tick on top of the cached series
func (s *SparklineService) GetLiveSparkline(ctx context.Context, key entities.CacheKey) (entities.MergedSeries, bool) {
	series, ok := s.GetSparklineData(ctx, key)
	if !ok {
		return entities.MergedSeries{}, false
	}
	if s.live == nil {
		metrics.RecordLiveMerge("no_feed")
		return entities.MergedSeries{Series: series}, true
	}

	tick, found := s.live.LatestTick(key.Symbol)
	if !found {
		metrics.RecordLiveMerge("no_tick")
		return entities.MergedSeries{Series: series}, true
	}

	merged := entities.MergeLive(series, tick, s.clock.Now())
	if merged.HasLivePoint {
		metrics.RecordLiveMerge("appended")
	} else {
		metrics.RecordLiveMerge("skipped")
	}
	return merged, true
}

// scheduleLookup consulta el tier persistente en segundo plano para una clave
// ausente en memoria y encola el fetch si el disco tampoco tiene datos frescos.
func (s *SparklineService) scheduleLookup(ctx context.Context, key entities.CacheKey) {
	s.mu.Lock()
	if s.disposed || s.busyLocked(key) {
		s.mu.Unlock()
		return
	}
	if _, ok := s.looking[key]; ok {
		s.mu.Unlock()
		return
	}
	s.looking[key] = struct{}{}
	s.wg.Add(1)
	s.mu.Unlock()

	bgCtx := context.WithoutCancel(ctx)
	go func() {
		defer s.wg.Done()

		fresh := s.warmOne(bgCtx, key)

		s.mu.Lock()
		delete(s.looking, key)
		added := false
		if !fresh {
			added = s.enqueueLocked(key, SourceRead)
		}
		depth := len(s.queue)
		s.mu.Unlock()

		if added {
			s.logger.Enqueued(bgCtx, key.String(), SourceRead, depth)
			s.kick()
		}
	}()
}

// warmOne copies a persisted record into memory and reports whether it is
// fresh enough to skip the network.
func (s *SparklineService) warmOne(ctx context.Context, key entities.CacheKey) bool {
	read, ok := s.persistent.GetWithStaleness(ctx, key)
	if !ok {
		return false
	}
	expiresAt := read.LastFetched + s.cfg.MemoryTTL.Milliseconds()
	if s.memory.Warm(ctx, key, read.Series, expiresAt) {
		metrics.UpdateCacheVersion(s.cacheVersion.Add(1))
	}
	return s.memory.IsFresh(key)
}

// PrefetchSparklines queues every non-fresh symbol behind the current queue
func (s *SparklineService) PrefetchSparklines(ctx context.Context, symbols []string, marketType entities.MarketType) {
	s.enqueue(ctx, entities.KeysFor(marketType, symbols), SourcePrefetch)
}

func (s *SparklineService) PauseFetching() {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
	logging.Debug(context.Background(), "Sparkline fetching paused", nil)
}

// ResumeFetching reanuda el drenado si quedó trabajo pendiente
func (s *SparklineService) ResumeFetching() {
	s.mu.Lock()
	wasPaused := s.paused
	s.paused = false
	s.mu.Unlock()

	if wasPaused {
		logging.Debug(context.Background(), "Sparkline fetching resumed", nil)
	}
	s.kick()
}

func (s *SparklineService) CacheVersion() uint64 {
	return s.cacheVersion.Load()
}

func (s *SparklineService) RefreshTrigger() uint64 {
	return s.refreshTrigger.Load()
}

// Stats returns a consistent snapshot of the scheduler state
func (s *SparklineService) Stats() interfaces.SparklineStats {
	s.mu.Lock()
	stats := interfaces.SparklineStats{
		QueueDepth:        len(s.queue),
		InFlight:          len(s.inFlight),
		Claimed:           len(s.claimed),
		VisibleItems:      len(s.visible),
		Paused:            s.paused,
		LastRefreshMillis: s.lastRefresh.UnixMilli(),
	}
	s.mu.Unlock()

	stats.CacheVersion = s.cacheVersion.Load()
	stats.RefreshTrigger = s.refreshTrigger.Load()
	stats.MemoryEntries = s.memory.Len()
	stats.PersistentReady = s.persistent.Ready()
	return stats
}
