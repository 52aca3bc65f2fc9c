package services

import (
	"context"

	"sparkline-service/internal/domain/entities"
	"sparkline-service/internal/infrastructure/metrics"
)

// HydrateFromCache warms memory from the persistent tier in one bulk read and
// queues whatever is still missing or stale. Store failures only mean fewer
// warmed entries; the returned error is reserved for a cancelled context.
func (s *SparklineService) HydrateFromCache(ctx context.Context, symbols []string, marketType entities.MarketType) error {
	keys := entities.KeysFor(marketType, symbols)
	if len(keys) == 0 {
		return nil
	}

	pending := make([]entities.CacheKey, 0, len(keys))
	for _, k := range keys {
		if !s.memory.IsFresh(k) {
			pending = append(pending, k)
		}
	}

	records := s.persistent.BulkGet(ctx, pending)
	if err := ctx.Err(); err != nil {
		return err
	}

	warmed := 0
	for _, k := range pending {
		rec, ok := records[k]
		if !ok {
			continue
		}
		expiresAt := rec.LastFetchedTimestamp + s.cfg.MemoryTTL.Milliseconds()
		if s.memory.Warm(ctx, k, rec.Series, expiresAt) {
			warmed++
		}
	}
	if warmed > 0 {
		metrics.UpdateCacheVersion(s.cacheVersion.Add(1))
	}

	// las claves recién calentadas y frescas quedan fuera por el chequeo de enqueue
	enqueued := s.enqueue(ctx, pending, SourceHydrate)
	s.logger.Hydrated(ctx, len(keys), warmed, enqueued)
	return nil
}
