package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"sparkline-service/internal/domain/entities"
	"sparkline-service/internal/domain/interfaces"
	"sparkline-service/internal/infrastructure/clock"
	"sparkline-service/internal/infrastructure/config"
	"sparkline-service/internal/infrastructure/repositories/cache"
	"sparkline-service/internal/infrastructure/repositories/store"
)

const (
	testTable = "sparklines"
	waitFor   = 2 * time.Second
	tick      = 5 * time.Millisecond
)

var (
	t0             = time.UnixMilli(1_700_000_000_000)
	errUpstreamBad = errors.New("upstream exploded")
)

// fakeSource records every candle request. When gate is set each call blocks
// until the gate is closed or the context ends.
type fakeSource struct {
	mu       sync.Mutex
	requests []interfaces.CandleRequest
	respond  func(req interfaces.CandleRequest, call int) ([]entities.Candle, error)
	gate     chan struct{}
}

func (f *fakeSource) FetchCandles(ctx context.Context, req interfaces.CandleRequest) ([]entities.Candle, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	call := len(f.requests)
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.respond == nil {
		return candlesEnding(req.EndTime, 96), nil
	}
	return f.respond(req, call)
}

func (f *fakeSource) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func (f *fakeSource) symbols() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.requests))
	for i, r := range f.requests {
		out[i] = r.Symbol
	}
	return out
}

// MockLivePriceSource mockea el feed en vivo
type MockLivePriceSource struct {
	mock.Mock
}

func (m *MockLivePriceSource) LatestTick(symbol string) (*entities.LiveTick, bool) {
	args := m.Called(symbol)
	tick, _ := args.Get(0).(*entities.LiveTick)
	return tick, args.Bool(1)
}

// candlesEnding builds n 15 minute candles whose last open time is before end
func candlesEnding(end time.Time, n int) []entities.Candle {
	out := make([]entities.Candle, n)
	first := end.Add(-time.Duration(n) * 15 * time.Minute).UnixMilli()
	for i := range out {
		open := first + int64(i)*15*60*1000
		out[i] = entities.Candle{OpenTime: open, CloseTime: open + 15*60*1000 - 1, Close: 100 + float64(i)}
	}
	return out
}

func testConfig() config.SparklineConfig {
	return config.SparklineConfig{
		MemoryTTL:            30 * time.Minute,
		PersistentTTL:        24 * time.Hour,
		MaxMemoryEntries:     150,
		MaxPersistentEntries: 200,
		BatchSize:            12,
		MaxParallelBatches:   2,
		RefreshInterval:      15 * time.Minute,
		HistoryWindow:        24 * time.Hour,
		CandleInterval:       "15m",
	}
}

type harness struct {
	svc        *SparklineService
	clock      *clock.Fake
	source     *fakeSource
	memory     *cache.MemoryCache
	persistent *cache.PersistentCache
	store      *store.MemoryStore
}

func newHarness(t *testing.T, cfg config.SparklineConfig, src *fakeSource, live interfaces.LivePriceSource) *harness {
	t.Helper()
	if src == nil {
		src = &fakeSource{}
	}

	clk := clock.NewFake(t0)
	st := store.NewMemoryStore()
	persistent := cache.NewPersistentCache(st, testTable, cfg.PersistentTTL, cfg.MaxPersistentEntries, clk)
	require.NoError(t, persistent.Init(context.Background()))
	memory := cache.NewMemoryCache(cfg.MaxMemoryEntries, cfg.MemoryTTL, clk, persistent)

	svc := NewSparklineService(cfg, src, live, memory, persistent, clk)
	t.Cleanup(func() {
		if src.gate != nil {
			select {
			case <-src.gate:
			default:
				close(src.gate)
			}
		}
		svc.Dispose()
	})

	return &harness{svc: svc, clock: clk, source: src, memory: memory, persistent: persistent, store: st}
}

func perp(symbol string) entities.CacheKey {
	return entities.NewCacheKey(entities.MarketPerp, symbol)
}

func sampleSeries(values ...float64) entities.Series {
	points := make([]entities.Point, len(values))
	for i, v := range values {
		points[i] = entities.Point{Timestamp: t0.UnixMilli() - int64(len(values)-i)*60_000, Value: v}
	}
	return entities.Series{Points: points, IsPositive: values[len(values)-1] >= values[0], LastUpdated: t0.UnixMilli()}
}

func (h *harness) waitIdle(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		st := h.svc.Stats()
		return st.QueueDepth == 0 && st.InFlight == 0
	}, waitFor, tick)
}

func TestGetSparklineData_FreshEntryDoesNotFetch(t *testing.T) {
	h := newHarness(t, testConfig(), nil, nil)
	h.memory.Set(context.Background(), perp("BTC"), sampleSeries(1, 2, 3))

	h.clock.Advance(29 * time.Minute)
	got, ok := h.svc.GetSparklineData(context.Background(), perp("BTC"))

	require.True(t, ok)
	assert.Equal(t, sampleSeries(1, 2, 3).Points, got.Points)
	assert.Never(t, func() bool { return h.source.calls() > 0 }, 50*time.Millisecond, tick)
	assert.Equal(t, 0, h.svc.Stats().QueueDepth)
}

func TestGetSparklineData_StaleEntryScenario(t *testing.T) {
	h := newHarness(t, testConfig(), nil, nil)
	ctx := context.Background()
	old := sampleSeries(10, 11, 12)
	h.memory.Set(ctx, perp("BTC"), old)

	h.clock.Advance(31 * time.Minute)
	version := h.svc.CacheVersion()

	got, ok := h.svc.GetSparklineData(ctx, perp("BTC"))
	require.True(t, ok, "stale data is still served")
	assert.Equal(t, old.Points, got.Points)

	// lecturas repetidas mientras se descarga no generan otro fetch
	for i := 0; i < 5; i++ {
		_, _ = h.svc.GetSparklineData(ctx, perp("BTC"))
	}

	require.Eventually(t, func() bool { return h.svc.CacheVersion() == version+1 }, waitFor, tick)
	h.waitIdle(t)
	assert.Equal(t, 1, h.source.calls())

	h.source.mu.Lock()
	req := h.source.requests[0]
	h.source.mu.Unlock()
	assert.Equal(t, "BTC", req.Symbol)
	assert.Equal(t, entities.MarketPerp, req.MarketType)
	assert.Equal(t, "15m", req.Interval)
	assert.Equal(t, 24*time.Hour, req.EndTime.Sub(req.StartTime))

	fresh, ok := h.svc.GetSparklineData(ctx, perp("BTC"))
	require.True(t, ok)
	assert.Len(t, fresh.Points, 96)
	assert.Equal(t, h.clock.Now().UnixMilli(), fresh.LastUpdated)
	assert.True(t, fresh.IsPositive)
	assert.Equal(t, version+1, h.svc.CacheVersion())
	assert.Never(t, func() bool { return h.source.calls() > 1 }, 50*time.Millisecond, tick)
}

func TestGetSparklineData_ColdMissUsesPersistentTier(t *testing.T) {
	h := newHarness(t, testConfig(), nil, nil)
	ctx := context.Background()
	h.persistent.Set(ctx, perp("ETH"), sampleSeries(5, 6))

	_, ok := h.svc.GetSparklineData(ctx, perp("ETH"))
	assert.False(t, ok)

	require.Eventually(t, func() bool { return h.svc.CacheVersion() == 1 }, waitFor, tick)
	h.waitIdle(t)

	got, ok := h.svc.GetSparklineData(ctx, perp("ETH"))
	require.True(t, ok)
	assert.Equal(t, sampleSeries(5, 6).Points, got.Points)
	assert.Equal(t, 0, h.source.calls(), "fresh persisted data avoids the network")
}

func TestGetSparklineData_ColdMissFetches(t *testing.T) {
	h := newHarness(t, testConfig(), nil, nil)

	_, ok := h.svc.GetSparklineData(context.Background(), perp("SOL"))
	assert.False(t, ok)

	require.Eventually(t, func() bool { return h.svc.CacheVersion() == 1 }, waitFor, tick)
	assert.Equal(t, 1, h.source.calls())
	assert.True(t, h.memory.IsFresh(perp("SOL")))

	// el fetch exitoso también llega al tier persistente
	h.memory.Wait()
	rec, ok := h.persistent.Get(context.Background(), perp("SOL"))
	require.True(t, ok)
	assert.Len(t, rec.Series.Points, 96)
}

func TestPrefetch_SingleFlight(t *testing.T) {
	src := &fakeSource{gate: make(chan struct{})}
	h := newHarness(t, testConfig(), src, nil)
	ctx := context.Background()

	h.svc.PrefetchSparklines(ctx, []string{"BTC"}, entities.MarketPerp)
	require.Eventually(t, func() bool { return src.calls() == 1 }, waitFor, tick)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.svc.PrefetchSparklines(ctx, []string{"BTC"}, entities.MarketPerp)
			_, _ = h.svc.GetSparklineData(ctx, perp("BTC"))
		}()
	}
	wg.Wait()

	stats := h.svc.Stats()
	assert.Equal(t, 1, stats.InFlight)
	assert.Equal(t, 0, stats.QueueDepth)

	close(src.gate)
	require.Eventually(t, func() bool { return h.svc.CacheVersion() == 1 }, waitFor, tick)
	h.waitIdle(t)
	assert.Equal(t, 1, src.calls())
}

func TestPrefetch_SkipsFreshAndEmptySymbols(t *testing.T) {
	h := newHarness(t, testConfig(), nil, nil)
	ctx := context.Background()
	h.memory.Set(ctx, perp("BTC"), sampleSeries(1, 2))

	h.svc.PrefetchSparklines(ctx, []string{"BTC", "", "ETH"}, entities.MarketPerp)

	require.Eventually(t, func() bool { return h.svc.CacheVersion() == 1 }, waitFor, tick)
	h.waitIdle(t)
	assert.Equal(t, []string{"ETH"}, h.source.symbols())
}

func TestFetchFailure_ReleasesClaim(t *testing.T) {
	tests := []struct {
		name    string
		respond func(req interfaces.CandleRequest, call int) ([]entities.Candle, error)
	}{
		{
			name: "upstream error",
			respond: func(req interfaces.CandleRequest, call int) ([]entities.Candle, error) {
				if call == 1 {
					return nil, errUpstreamBad
				}
				return candlesEnding(req.EndTime, 96), nil
			},
		},
		{
			name: "single candle is insufficient",
			respond: func(req interfaces.CandleRequest, call int) ([]entities.Candle, error) {
				if call == 1 {
					return candlesEnding(req.EndTime, 1), nil
				}
				return candlesEnding(req.EndTime, 96), nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{respond: tt.respond}
			h := newHarness(t, testConfig(), src, nil)
			ctx := context.Background()

			h.svc.PrefetchSparklines(ctx, []string{"BTC"}, entities.MarketPerp)
			require.Eventually(t, func() bool { return src.calls() == 1 }, waitFor, tick)
			h.waitIdle(t)

			assert.Equal(t, 0, h.svc.Stats().Claimed)
			assert.Equal(t, uint64(0), h.svc.CacheVersion())
			assert.False(t, h.memory.Contains(perp("BTC")), "failed fetches write nothing")

			h.svc.PrefetchSparklines(ctx, []string{"BTC"}, entities.MarketPerp)
			require.Eventually(t, func() bool { return h.svc.CacheVersion() == 1 }, waitFor, tick)
			assert.Equal(t, 2, src.calls())
		})
	}
}

func TestSuccessfulFetch_ReleasesClaim(t *testing.T) {
	h := newHarness(t, testConfig(), nil, nil)
	ctx := context.Background()

	h.svc.PrefetchSparklines(ctx, []string{"BTC"}, entities.MarketPerp)
	require.Eventually(t, func() bool { return h.svc.CacheVersion() == 1 }, waitFor, tick)
	h.waitIdle(t)
	assert.Equal(t, 0, h.svc.Stats().Claimed)

	// fresco: el prefetch no hace nada
	h.svc.PrefetchSparklines(ctx, []string{"BTC"}, entities.MarketPerp)
	assert.Equal(t, 0, h.svc.Stats().QueueDepth)

	// vencido: vuelve a ser elegible sin esperar al refresh periódico
	h.clock.Advance(31 * time.Minute)
	h.svc.PrefetchSparklines(ctx, []string{"BTC"}, entities.MarketPerp)
	require.Eventually(t, func() bool { return h.svc.CacheVersion() == 2 }, waitFor, tick)
	assert.Equal(t, 2, h.source.calls())
	assert.Equal(t, uint64(0), h.svc.RefreshTrigger())
}

func TestGetSparklineData_ReloadsEvictedKey(t *testing.T) {
	cfg := testConfig()
	cfg.MaxMemoryEntries = 1
	h := newHarness(t, cfg, nil, nil)
	ctx := context.Background()

	h.svc.PrefetchSparklines(ctx, []string{"BTC"}, entities.MarketPerp)
	require.Eventually(t, func() bool { return h.svc.CacheVersion() == 1 }, waitFor, tick)
	h.waitIdle(t)
	h.svc.PrefetchSparklines(ctx, []string{"ETH"}, entities.MarketPerp)
	require.Eventually(t, func() bool { return h.svc.CacheVersion() == 2 }, waitFor, tick)
	h.waitIdle(t)
	h.memory.Wait()
	require.False(t, h.memory.Contains(perp("BTC")), "ETH pushed BTC out of memory")

	_, ok := h.svc.GetSparklineData(ctx, perp("BTC"))
	assert.False(t, ok)

	require.Eventually(t, func() bool {
		_, ok := h.svc.GetSparklineData(ctx, perp("BTC"))
		return ok
	}, waitFor, tick)
	assert.Equal(t, uint64(3), h.svc.CacheVersion())
	assert.Equal(t, 2, h.source.calls(), "the persisted copy is still fresh")
}

func TestGetSparklineData_StaleReadFetchesBeforeRefresh(t *testing.T) {
	cfg := testConfig()
	cfg.RefreshInterval = time.Hour
	h := newHarness(t, cfg, nil, nil)
	ctx := context.Background()

	h.svc.PrefetchSparklines(ctx, []string{"BTC"}, entities.MarketPerp)
	require.Eventually(t, func() bool { return h.svc.CacheVersion() == 1 }, waitFor, tick)
	h.waitIdle(t)

	h.clock.Advance(31 * time.Minute)
	_, ok := h.svc.GetSparklineData(ctx, perp("BTC"))
	require.True(t, ok)

	require.Eventually(t, func() bool { return h.svc.CacheVersion() == 2 }, waitFor, tick)
	assert.Equal(t, 2, h.source.calls())
	assert.True(t, h.memory.IsFresh(perp("BTC")))
}

func TestPauseAndResume(t *testing.T) {
	h := newHarness(t, testConfig(), nil, nil)
	ctx := context.Background()

	h.svc.PauseFetching()
	h.svc.PrefetchSparklines(ctx, []string{"BTC", "ETH"}, entities.MarketPerp)

	assert.Never(t, func() bool { return h.source.calls() > 0 }, 50*time.Millisecond, tick)
	stats := h.svc.Stats()
	assert.True(t, stats.Paused)
	assert.Equal(t, 2, stats.QueueDepth)

	h.svc.ResumeFetching()
	require.Eventually(t, func() bool { return h.svc.CacheVersion() == 2 }, waitFor, tick)
	assert.False(t, h.svc.Stats().Paused)
}

func TestDrain_BatchesRespectParallelLimit(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 2
	cfg.MaxParallelBatches = 2

	src := &fakeSource{gate: make(chan struct{})}
	h := newHarness(t, cfg, src, nil)

	symbols := []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J"}
	h.svc.PrefetchSparklines(context.Background(), symbols, entities.MarketPerp)

	// un grupo = BatchSize x MaxParallelBatches
	require.Eventually(t, func() bool { return src.calls() == 4 }, waitFor, tick)
	assert.Never(t, func() bool { return src.calls() > 4 }, 50*time.Millisecond, tick)
	assert.Equal(t, 4, h.svc.Stats().InFlight)
	assert.Equal(t, 6, h.svc.Stats().QueueDepth)

	close(src.gate)
	require.Eventually(t, func() bool { return h.svc.CacheVersion() == 10 }, waitFor, tick)
	assert.ElementsMatch(t, symbols, h.source.symbols())
}

func TestDrain_WaitsBatchDelayBetweenGroups(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 1
	cfg.MaxParallelBatches = 1
	cfg.BatchDelay = 250 * time.Millisecond
	cfg.RefreshInterval = 0

	h := newHarness(t, cfg, nil, nil)
	h.svc.PrefetchSparklines(context.Background(), []string{"A", "B"}, entities.MarketPerp)

	require.Eventually(t, func() bool { return h.svc.CacheVersion() == 1 }, waitFor, tick)
	require.True(t, h.clock.BlockUntil(1, waitFor), "second group waits on the clock")
	assert.Equal(t, 1, h.source.calls())

	h.clock.Advance(249 * time.Millisecond)
	assert.Never(t, func() bool { return h.source.calls() > 1 }, 30*time.Millisecond, tick)

	h.clock.Advance(time.Millisecond)
	require.Eventually(t, func() bool { return h.svc.CacheVersion() == 2 }, waitFor, tick)
}

func TestSetVisibleItems_PrioritizesVisibleKeys(t *testing.T) {
	cfg := testConfig()
	cfg.BatchSize = 1
	cfg.MaxParallelBatches = 1
	h := newHarness(t, cfg, nil, nil)
	ctx := context.Background()

	h.svc.PauseFetching()
	h.svc.PrefetchSparklines(ctx, []string{"C", "A"}, entities.MarketPerp)
	require.Equal(t, []string{"perp:C", "perp:A"}, h.svc.PendingKeys())

	h.svc.SetVisibleItems(ctx, []string{"A", "B"}, entities.MarketPerp)
	assert.Equal(t, []string{"perp:A", "perp:B", "perp:C"}, h.svc.PendingKeys())
	assert.Equal(t, 2, h.svc.Stats().VisibleItems)

	h.svc.ResumeFetching()
	require.Eventually(t, func() bool { return h.svc.CacheVersion() == 3 }, waitFor, tick)
	assert.Equal(t, []string{"A", "B", "C"}, h.source.symbols())
}

func TestSetVisibleItems_PrunesOnlyVisibilityItems(t *testing.T) {
	h := newHarness(t, testConfig(), nil, nil)
	ctx := context.Background()

	h.svc.PauseFetching()
	h.svc.PrefetchSparklines(ctx, []string{"C"}, entities.MarketPerp)
	h.svc.SetVisibleItems(ctx, []string{"A", "B"}, entities.MarketPerp)
	require.Equal(t, []string{"perp:A", "perp:B", "perp:C"}, h.svc.PendingKeys())

	h.svc.SetVisibleItems(ctx, []string{"D", "C"}, entities.MarketPerp)
	assert.Equal(t, []string{"perp:D", "perp:C"}, h.svc.PendingKeys())
	assert.Equal(t, 2, h.svc.Stats().Claimed, "pruned keys lose their claim")

	// A vuelve a ser elegible
	h.svc.PrefetchSparklines(ctx, []string{"A"}, entities.MarketPerp)
	assert.Equal(t, []string{"perp:D", "perp:C", "perp:A"}, h.svc.PendingKeys())
}

func TestSetVisibleItems_SkipsFreshAndInFlight(t *testing.T) {
	src := &fakeSource{gate: make(chan struct{})}
	h := newHarness(t, testConfig(), src, nil)
	ctx := context.Background()
	h.memory.Set(ctx, perp("FRESH"), sampleSeries(1, 2))

	h.svc.PrefetchSparklines(ctx, []string{"BUSY"}, entities.MarketPerp)
	require.Eventually(t, func() bool { return h.svc.Stats().InFlight == 1 }, waitFor, tick)

	h.svc.PauseFetching()
	h.svc.SetVisibleItems(ctx, []string{"FRESH", "BUSY", "NEW"}, entities.MarketPerp)
	assert.Equal(t, []string{"perp:NEW"}, h.svc.PendingKeys())
}

func TestClearVisibility(t *testing.T) {
	h := newHarness(t, testConfig(), nil, nil)
	ctx := context.Background()

	// A tiene datos vencidos en memoria, B no tiene nada
	h.memory.Warm(ctx, perp("A"), sampleSeries(1, 2), t0.UnixMilli()-1)

	h.svc.PauseFetching()
	h.svc.SetVisibleItems(ctx, []string{"A", "B"}, entities.MarketPerp)
	require.Equal(t, 2, h.svc.Stats().QueueDepth)

	h.svc.ClearVisibility(ctx)

	stats := h.svc.Stats()
	assert.Equal(t, 0, stats.QueueDepth)
	assert.Equal(t, 0, stats.VisibleItems)
	assert.Equal(t, 1, stats.Claimed, "only the cached key keeps its claim")

	h.svc.PrefetchSparklines(ctx, []string{"A", "B"}, entities.MarketPerp)
	assert.Equal(t, []string{"perp:B"}, h.svc.PendingKeys())
}

func TestHydrateFromCache(t *testing.T) {
	h := newHarness(t, testConfig(), nil, nil)
	ctx := context.Background()

	// ETH se persistió hace 31 minutos: fresco en disco, vencido para memoria
	h.persistent.Set(ctx, perp("ETH"), sampleSeries(3, 4))
	h.clock.Advance(31 * time.Minute)
	h.persistent.Set(ctx, perp("BTC"), sampleSeries(1, 2))
	h.persistent.Wait()

	h.svc.PauseFetching()
	err := h.svc.HydrateFromCache(ctx, []string{"BTC", "ETH", "SOL"}, entities.MarketPerp)
	require.NoError(t, err)

	assert.True(t, h.memory.IsFresh(perp("BTC")))
	assert.True(t, h.memory.Contains(perp("ETH")))
	assert.False(t, h.memory.IsFresh(perp("ETH")))
	assert.Equal(t, []string{"perp:ETH", "perp:SOL"}, h.svc.PendingKeys())
	assert.Equal(t, uint64(1), h.svc.CacheVersion())

	stale, ok := h.svc.GetSparklineData(ctx, perp("ETH"))
	require.True(t, ok)
	assert.Equal(t, sampleSeries(3, 4).Points, stale.Points)
}

func TestHydrateFromCache_PersistentUnavailable(t *testing.T) {
	cfg := testConfig()
	clk := clock.NewFake(t0)
	memory := cache.NewMemoryCache(cfg.MaxMemoryEntries, cfg.MemoryTTL, clk, nil)
	src := &fakeSource{}
	svc := NewSparklineService(cfg, src, nil, memory, nil, clk)
	t.Cleanup(svc.Dispose)

	require.NoError(t, svc.HydrateFromCache(context.Background(), []string{"BTC"}, entities.MarketPerp))
	require.Eventually(t, func() bool { return svc.CacheVersion() == 1 }, waitFor, tick)
	assert.False(t, svc.Stats().PersistentReady)
}

func TestHydrateFromCache_CancelledContext(t *testing.T) {
	h := newHarness(t, testConfig(), nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := h.svc.HydrateFromCache(ctx, []string{"BTC"}, entities.MarketPerp)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStalenessMonitor_PeriodicInvalidation(t *testing.T) {
	h := newHarness(t, testConfig(), nil, nil)
	ctx := context.Background()
	h.memory.Set(ctx, perp("BTC"), sampleSeries(1, 2))

	h.svc.Start(ctx)
	require.True(t, h.clock.BlockUntil(1, waitFor))

	h.clock.Advance(15 * time.Minute)
	require.Eventually(t, func() bool { return h.svc.RefreshTrigger() == 1 }, waitFor, tick)

	assert.False(t, h.memory.IsFresh(perp("BTC")))
	got, ok := h.svc.GetSparklineData(ctx, perp("BTC"))
	require.True(t, ok, "invalidation keeps the data readable")
	assert.Equal(t, sampleSeries(1, 2).Points, got.Points)

	require.Eventually(t, func() bool { return h.svc.CacheVersion() == 1 }, waitFor, tick)

	require.True(t, h.clock.BlockUntil(1, waitFor))
	h.clock.Advance(15 * time.Minute)
	require.Eventually(t, func() bool { return h.svc.RefreshTrigger() == 2 }, waitFor, tick)
}

func TestStalenessMonitor_RequeuesVisibleKeys(t *testing.T) {
	h := newHarness(t, testConfig(), nil, nil)
	ctx := context.Background()

	h.svc.SetVisibleItems(ctx, []string{"BTC", "ETH"}, entities.MarketPerp)
	require.Eventually(t, func() bool { return h.svc.CacheVersion() == 2 }, waitFor, tick)
	h.waitIdle(t)

	h.svc.Refresh(ctx)
	require.Eventually(t, func() bool { return h.svc.CacheVersion() == 4 }, waitFor, tick)
	assert.Equal(t, 4, h.source.calls())
	assert.Equal(t, uint64(1), h.svc.RefreshTrigger())
}

func TestStalenessMonitor_EvictsExpiredPersistentRecords(t *testing.T) {
	h := newHarness(t, testConfig(), nil, nil)
	ctx := context.Background()
	h.persistent.Set(ctx, perp("OLD"), sampleSeries(1, 2))
	h.persistent.Wait()

	h.clock.Advance(25 * time.Hour)
	h.svc.Refresh(ctx)

	require.Eventually(t, func() bool { return h.persistent.Count(ctx) == 0 }, waitFor, tick)
}

func TestHandleForeground(t *testing.T) {
	h := newHarness(t, testConfig(), nil, nil)
	ctx := context.Background()

	h.svc.HandleBackground(ctx)
	assert.True(t, h.svc.Stats().Paused)

	h.clock.Advance(10 * time.Minute)
	assert.False(t, h.svc.HandleForeground(ctx))
	assert.False(t, h.svc.Stats().Paused)
	assert.Equal(t, uint64(0), h.svc.RefreshTrigger())

	h.clock.Advance(5 * time.Minute)
	assert.True(t, h.svc.HandleForeground(ctx))
	assert.Equal(t, uint64(1), h.svc.RefreshTrigger())
	assert.Equal(t, h.clock.Now().UnixMilli(), h.svc.Stats().LastRefreshMillis)

	// acaba de refrescar: no vuelve a invalidar
	assert.False(t, h.svc.HandleForeground(ctx))
}

func TestGetLiveSparkline(t *testing.T) {
	base := sampleSeries(100, 90)
	newer := t0.UnixMilli() + 1

	tests := []struct {
		name         string
		tick         *entities.LiveTick
		found        bool
		wantLive     bool
		wantLen      int
		wantPositive bool
	}{
		{name: "no tick", found: false, wantLen: 2},
		{name: "newer tick appended", tick: &entities.LiveTick{Symbol: "BTC", Price: "120", ObservedAt: newer}, found: true, wantLive: true, wantLen: 3, wantPositive: true},
		{name: "malformed price ignored", tick: &entities.LiveTick{Symbol: "BTC", Price: "oops", ObservedAt: newer}, found: true, wantLen: 2},
		{name: "old tick ignored", tick: &entities.LiveTick{Symbol: "BTC", Price: "120", ObservedAt: base.Last().Timestamp}, found: true, wantLen: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			live := new(MockLivePriceSource)
			live.On("LatestTick", "BTC").Return(tt.tick, tt.found)

			h := newHarness(t, testConfig(), nil, live)
			h.memory.Set(context.Background(), perp("BTC"), base)
			h.clock.Advance(time.Second)

			merged, ok := h.svc.GetLiveSparkline(context.Background(), perp("BTC"))
			require.True(t, ok)
			assert.Equal(t, tt.wantLive, merged.HasLivePoint)
			assert.Len(t, merged.Series.Points, tt.wantLen)
			if tt.wantLive {
				assert.Equal(t, tt.wantPositive, merged.Series.IsPositive)
			}
			live.AssertExpectations(t)

			cached, _ := h.memory.Get(perp("BTC"))
			assert.Len(t, cached.Series.Points, 2, "cached series is never extended")
		})
	}
}

func TestGetLiveSparkline_MissWithoutFeed(t *testing.T) {
	h := newHarness(t, testConfig(), nil, nil)
	h.svc.PauseFetching()

	_, ok := h.svc.GetLiveSparkline(context.Background(), perp("BTC"))
	assert.False(t, ok)
}

func TestDispose_StopsScheduling(t *testing.T) {
	src := &fakeSource{gate: make(chan struct{})}
	h := newHarness(t, testConfig(), src, nil)
	ctx := context.Background()

	h.svc.Start(ctx)
	h.svc.PrefetchSparklines(ctx, []string{"BTC"}, entities.MarketPerp)
	require.Eventually(t, func() bool { return src.calls() == 1 }, waitFor, tick)

	h.svc.Dispose()
	h.svc.Dispose()

	h.svc.PrefetchSparklines(ctx, []string{"ETH"}, entities.MarketPerp)
	assert.Equal(t, 0, h.svc.Stats().QueueDepth)
	assert.Equal(t, uint64(0), h.svc.CacheVersion(), "cancelled fetches write nothing")
}
