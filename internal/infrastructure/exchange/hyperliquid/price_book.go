package hyperliquid

import (
	"context"
	"strings"
	"sync"

	"sparkline-service/internal/domain/entities"
	"sparkline-service/internal/domain/interfaces"
	"sparkline-service/internal/infrastructure/clock"
	"sparkline-service/internal/infrastructure/metrics"
)

// MidsFetcher is the REST snapshot used to seed the book before the feed connects
type MidsFetcher interface {
	AllMids(ctx context.Context) (map[string]string, error)
}

// PriceBook guarda el ultimo tick por coin. Implementa interfaces.LivePriceSource.
type PriceBook struct {
	mu    sync.RWMutex
	ticks map[string]entities.LiveTick
	clock clock.Clock
}

var _ interfaces.LivePriceSource = (*PriceBook)(nil)

func NewPriceBook(clk clock.Clock) *PriceBook {
	if clk == nil {
		clk = clock.NewReal()
	}
	return &PriceBook{
		ticks: make(map[string]entities.LiveTick),
		clock: clk,
	}
}

// Apply stores a mids update stamped with the current time and returns how
// many coins were updated. Prices stay raw; they are validated on merge.
func (b *PriceBook) Apply(mids map[string]string) int {
	observedAt := b.clock.Now().UnixMilli()

	b.mu.Lock()
	defer b.mu.Unlock()

	n := 0
	for coin, price := range mids {
		coin = strings.TrimSpace(coin)
		if coin == "" {
			continue
		}
		b.ticks[coin] = entities.LiveTick{Symbol: coin, Price: price, ObservedAt: observedAt}
		n++
	}
	return n
}

// LatestTick returns a copy of the last tick for symbol
func (b *PriceBook) LatestTick(symbol string) (*entities.LiveTick, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	tick, ok := b.ticks[symbol]
	if !ok {
		return nil, false
	}
	return &tick, true
}

func (b *PriceBook) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.ticks)
}

// Seed loads one REST snapshot into the book
func (b *PriceBook) Seed(ctx context.Context, src MidsFetcher) (int, error) {
	mids, err := src.AllMids(ctx)
	if err != nil {
		return 0, err
	}
	n := b.Apply(mids)
	metrics.RecordLiveTicks(n)
	return n, nil
}
