package services

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	"sparkline-service/internal/domain/entities"
	"sparkline-service/internal/domain/interfaces"
	"sparkline-service/internal/infrastructure/metrics"
)

// enqueue appends every eligible key to the back of the queue and starts a drain
func (s *SparklineService) enqueue(ctx context.Context, keys []entities.CacheKey, source string) int {
	if len(keys) == 0 {
		return 0
	}

	s.mu.Lock()
	added := make([]entities.CacheKey, 0, len(keys))
	for _, key := range keys {
		if s.enqueueLocked(key, source) {
			added = append(added, key)
		}
	}
	depth := len(s.queue)
	s.mu.Unlock()

	for _, key := range added {
		s.logger.Enqueued(ctx, key.String(), source, depth)
	}
	if len(added) > 0 {
		s.kick()
	}
	return len(added)
}

// busyLocked reports whether key is queued or fetching
func (s *SparklineService) busyLocked(key entities.CacheKey) bool {
	if _, ok := s.inFlight[key]; ok {
		return true
	}
	_, ok := s.queued[key]
	return ok
}

// enqueueLocked is the single admission check shared by every caller.
// A claim outlives the queue only when ClearVisibility kept it for a cached
// key; every fetch outcome releases it. Must be called with mu held.
func (s *SparklineService) enqueueLocked(key entities.CacheKey, source string) bool {
	if s.disposed || s.busyLocked(key) || s.memory.IsFresh(key) {
		return false
	}
	if _, ok := s.claimed[key]; ok {
		return false
	}
	s.queue = append(s.queue, queueItem{key: key, source: source})
	s.queued[key] = struct{}{}
	s.claimed[key] = struct{}{}
	metrics.RecordEnqueued(source)
	metrics.UpdateQueueState(len(s.queue), len(s.inFlight))
	return true
}

// releaseLocked forgets the claim so a later enqueue is accepted
func (s *SparklineService) releaseLocked(key entities.CacheKey) {
	delete(s.claimed, key)
}

// kick starts a drain pass unless one is running, the service is paused or
// there is nothing to do.
func (s *SparklineService) kick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.draining || s.paused || s.disposed || len(s.queue) == 0 {
		return
	}
	s.draining = true
	s.wg.Add(1)
	go s.drain()
}

// drain processes at most the items that were queued when the pass started.
// Groups are taken from the live front of the queue so priority changes made
// between groups are honoured.
func (s *SparklineService) drain() {
	defer s.wg.Done()

	started := time.Now()
	groupSize := s.cfg.BatchSize * s.cfg.MaxParallelBatches

	s.mu.Lock()
	budget := len(s.queue)
	s.mu.Unlock()

	processed, batches := 0, 0
	for processed < budget {
		if processed > 0 && !s.sleep(s.cfg.BatchDelay) {
			break
		}
		group := s.takeGroup(min(groupSize, budget-processed))
		if len(group) == 0 {
			break
		}
		batches += s.runGroup(group)
		processed += len(group)
	}

	if processed > 0 {
		s.logger.DrainPass(s.ctx, processed, batches, time.Since(started))
	}
	s.finishDrain()
}

// finishDrain clears the reentrancy guard and schedules a new pass when work
// arrived during this one.
func (s *SparklineService) finishDrain() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.draining = false
	if s.paused || s.disposed || len(s.queue) == 0 {
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case <-s.clock.After(s.cfg.DrainRetick):
			s.kick()
		case <-s.ctx.Done():
		}
	}()
}

// sleep waits d on the injected clock. It returns false if the service stopped.
func (s *SparklineService) sleep(d time.Duration) bool {
	if d <= 0 {
		return s.ctx.Err() == nil
	}
	select {
	case <-s.clock.After(d):
		return true
	case <-s.ctx.Done():
		return false
	}
}

// takeGroup pops up to n items from the front and marks them in flight.
// Items that became fresh while waiting are dropped without a fetch.
func (s *SparklineService) takeGroup(n int) []entities.CacheKey {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused || s.disposed {
		return nil
	}

	group := make([]entities.CacheKey, 0, n)
	taken := 0
	for taken < len(s.queue) && len(group) < n {
		item := s.queue[taken]
		taken++
		delete(s.queued, item.key)
		if s.memory.IsFresh(item.key) {
			continue
		}
		s.inFlight[item.key] = struct{}{}
		group = append(group, item.key)
	}
	s.queue = append(s.queue[:0:0], s.queue[taken:]...)
	metrics.UpdateQueueState(len(s.queue), len(s.inFlight))
	return group
}

// runGroup splits the group in chunks of BatchSize and runs up to
// MaxParallelBatches chunks at once. Every item of a chunk runs concurrently.
func (s *SparklineService) runGroup(group []entities.CacheKey) int {
	var g errgroup.Group
	g.SetLimit(s.cfg.MaxParallelBatches)

	chunks := 0
	for start := 0; start < len(group); start += s.cfg.BatchSize {
		end := min(start+s.cfg.BatchSize, len(group))
		chunk := group[start:end]
		chunks++

		g.Go(func() error {
			var batch errgroup.Group
			for _, key := range chunk {
				batch.Go(func() error {
					s.fetchOne(s.ctx, key)
					return nil
				})
			}
			return batch.Wait()
		})
	}
	_ = g.Wait()
	return chunks
}

// fetchOne downloads the trailing history window for key and writes it to
// both cache tiers. The claim is released on every outcome; a failure writes
// nothing.
func (s *SparklineService) fetchOne(ctx context.Context, key entities.CacheKey) {
	started := time.Now()
	marketType := string(key.MarketType)
	// la entrada ya está en memoria cuando se suelta el claim
	defer func() {
		s.mu.Lock()
		delete(s.inFlight, key)
		s.releaseLocked(key)
		metrics.UpdateQueueState(len(s.queue), len(s.inFlight))
		s.mu.Unlock()
	}()

	end := s.clock.Now()
	candles, err := s.source.FetchCandles(ctx, interfaces.CandleRequest{
		Symbol:     key.Symbol,
		MarketType: key.MarketType,
		Interval:   s.cfg.CandleInterval,
		StartTime:  end.Add(-s.cfg.HistoryWindow),
		EndTime:    end,
	})
	if err != nil {
		result := "error"
		if errors.Is(err, context.Canceled) {
			result = "canceled"
		}
		metrics.RecordSparklineFetch(marketType, result, time.Since(started).Seconds())
		s.logger.FetchFailed(ctx, key.String(), err)
		return
	}

	series, err := entities.SeriesFromCandles(candles, s.clock.Now())
	if err != nil {
		metrics.RecordSparklineFetch(marketType, "insufficient", time.Since(started).Seconds())
		s.logger.InsufficientData(ctx, key.String(), len(candles))
		return
	}

	s.memory.Set(ctx, key, series)
	version := s.cacheVersion.Add(1)
	metrics.UpdateCacheVersion(version)
	metrics.RecordSparklineFetch(marketType, "success", time.Since(started).Seconds())
	s.logger.Fetched(ctx, key.String(), series.Len(), version, time.Since(started))
}

// queueSnapshot returns the pending keys in order; used by status reporting
func (s *SparklineService) queueSnapshot() []entities.CacheKey {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]entities.CacheKey, len(s.queue))
	for i, item := range s.queue {
		keys[i] = item.key
	}
	return keys
}

// PendingKeys lists queued keys front first
func (s *SparklineService) PendingKeys() []string {
	keys := s.queueSnapshot()
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}
