package entities

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// LiveTick is the latest observed price for a symbol as published by the live feed.
// Price keeps the feed's decimal string so it is validated only when merged.
type LiveTick struct {
	Symbol     string
	Price      string
	ObservedAt int64
}

// MergedSeries is what consumers draw: the cached series plus an optional live point.
type MergedSeries struct {
	Series       Series
	HasLivePoint bool
}

// ParseDecimal parses a decimal string from the exchange wire, candles and
// live mids alike. NaN, Inf and hex floats are rejected.
func ParseDecimal(raw string) (float64, bool) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, false
	}
	v := d.InexactFloat64()
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// ParsePrice parses a feed price into a finite positive float.
func ParsePrice(raw string) (float64, bool) {
	v, ok := ParseDecimal(raw)
	if !ok || v <= 0 {
		return 0, false
	}
	return v, true
}

// MergeLive overlays a live tick on top of a cached series. The base series is
// never modified. The tick is ignored unless both the tick and now are strictly
// newer than the last cached point.
func MergeLive(base Series, tick *LiveTick, now time.Time) MergedSeries {
	unchanged := MergedSeries{Series: base}
	if tick == nil || len(base.Points) == 0 {
		return unchanged
	}

	price, ok := ParsePrice(tick.Price)
	if !ok {
		return unchanged
	}

	last := base.Last().Timestamp
	nowMs := now.UnixMilli()
	if tick.ObservedAt <= last || nowMs <= last {
		return unchanged
	}

	merged := base.Clone()
	merged.Points = append(merged.Points, Point{Timestamp: nowMs, Value: price})
	merged.IsPositive = price >= merged.Points[0].Value

	return MergedSeries{Series: merged, HasLivePoint: true}
}
