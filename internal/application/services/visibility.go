package services

import (
	"context"

	"sparkline-service/internal/domain/entities"
	"sparkline-service/internal/infrastructure/logging"
	"sparkline-service/internal/infrastructure/metrics"
)

// SetVisibleItems reorders the queue around what the consumer shows right now.
// Visibility items for rows that scrolled away are dropped before they start;
// work queued by prefetch, hydration or reads stays behind the visible rows.
func (s *SparklineService) SetVisibleItems(ctx context.Context, symbols []string, marketType entities.MarketType) {
	keys := entities.KeysFor(marketType, symbols)

	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	added, pruned := s.prioritizeLocked(keys, SourceVisibility, true)
	s.visible = keys
	depth := len(s.queue)
	s.mu.Unlock()

	logging.Debug(ctx, "Visible sparklines updated", logging.Fields{
		logging.FieldMarketType: string(marketType),
		logging.FieldItemCount:  len(keys),
		logging.FieldQueueDepth: depth,
		"added":                 added,
		"pruned":                pruned,
	})
	s.kick()
}

// ClearVisibility empties the queue because the consuming view is going away.
// Claims are released only for keys with nothing cached, so they can be
// requested again later.
func (s *SparklineService) ClearVisibility(ctx context.Context) {
	s.mu.Lock()
	dropped := len(s.queue)
	for _, item := range s.queue {
		delete(s.queued, item.key)
		if !s.memory.Contains(item.key) {
			s.releaseLocked(item.key)
		}
	}
	s.queue = nil
	s.visible = nil
	metrics.UpdateQueueState(0, len(s.inFlight))
	s.mu.Unlock()

	logging.Debug(ctx, "Visibility cleared", logging.Fields{logging.FieldItemCount: dropped})
}

// prioritizeLocked moves keys to the front of the queue in the given order.
// Keys already queued keep their source; new keys must not be fresh or in
// flight and are claimed. With prune set, visibility items outside keys are
// removed and their claims released. Must be called with mu held.
func (s *SparklineService) prioritizeLocked(keys []entities.CacheKey, source string, prune bool) (added, pruned int) {
	wanted := make(map[entities.CacheKey]struct{}, len(keys))
	for _, k := range keys {
		wanted[k] = struct{}{}
	}

	existing := make(map[entities.CacheKey]queueItem)
	rest := make([]queueItem, 0, len(s.queue))
	for _, item := range s.queue {
		if _, ok := wanted[item.key]; ok {
			existing[item.key] = item
			continue
		}
		if prune && item.source == SourceVisibility {
			delete(s.queued, item.key)
			s.releaseLocked(item.key)
			pruned++
			continue
		}
		rest = append(rest, item)
	}

	front := make([]queueItem, 0, len(keys))
	placed := make(map[entities.CacheKey]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := placed[k]; dup {
			continue
		}
		placed[k] = struct{}{}

		if item, ok := existing[k]; ok {
			front = append(front, item)
			continue
		}
		if _, busy := s.inFlight[k]; busy || s.memory.IsFresh(k) {
			continue
		}
		front = append(front, queueItem{key: k, source: source})
		s.queued[k] = struct{}{}
		s.claimed[k] = struct{}{}
		metrics.RecordEnqueued(source)
		added++
	}

	s.queue = append(front, rest...)
	metrics.UpdateQueueState(len(s.queue), len(s.inFlight))
	return added, pruned
}
