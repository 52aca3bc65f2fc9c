package services

import (
	"context"

	"sparkline-service/internal/infrastructure/metrics"
)

// Motivos de invalidación
const (
	ReasonPeriodic   = "periodic"
	ReasonForeground = "foreground"
	ReasonManual     = "manual"
)

// monitor invalida la memoria cada RefreshInterval según el reloj inyectado
func (s *SparklineService) monitor() {
	defer s.wg.Done()

	if s.cfg.RefreshInterval <= 0 {
		return
	}
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-s.clock.After(s.cfg.RefreshInterval):
			s.invalidate(s.ctx, ReasonPeriodic)
		}
	}
}

// HandleForeground resumes fetching and invalidates right away when the last
// refresh is at least RefreshInterval old. It reports whether it invalidated.
func (s *SparklineService) HandleForeground(ctx context.Context) bool {
	s.mu.Lock()
	due := s.clock.Now().Sub(s.lastRefresh) >= s.cfg.RefreshInterval
	s.mu.Unlock()

	if due {
		s.invalidate(ctx, ReasonForeground)
	}
	s.ResumeFetching()
	return due
}

// HandleBackground pauses new fetch groups while the consumer is away
func (s *SparklineService) HandleBackground(ctx context.Context) {
	s.PauseFetching()
}

// Refresh invalidates unconditionally
func (s *SparklineService) Refresh(ctx context.Context) {
	s.invalidate(ctx, ReasonManual)
}

// invalidate marks every memory entry stale without dropping data, forgets
// the session claims and bumps refreshTrigger. Visible rows go back to the
// front of the queue and expired persistent records are purged in background.
func (s *SparklineService) invalidate(ctx context.Context, reason string) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	clear(s.claimed)
	s.lastRefresh = s.clock.Now()
	entries := s.memory.InvalidateAll()
	trigger := s.refreshTrigger.Add(1)
	requeued := 0
	if len(s.visible) > 0 {
		requeued, _ = s.prioritizeLocked(s.visible, SourceRefresh, false)
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.persistent.EvictExpired(context.WithoutCancel(ctx))
	}()

	metrics.RecordInvalidation(reason, trigger)
	s.logger.Invalidated(ctx, reason, trigger, entries)
	if requeued > 0 {
		s.kick()
	}
}
