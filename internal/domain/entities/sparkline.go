package entities

import (
	"errors"
	"sort"
	"time"
)

var (
	// ErrInsufficientData is returned when fewer than two usable points are available.
	ErrInsufficientData = errors.New("insufficient data for sparkline")
)

// MinSeriesPoints is the smallest series that can be drawn.
const MinSeriesPoints = 2

// MarketType identifies the venue a symbol trades on.
type MarketType string

const (
	MarketPerp MarketType = "perp"
	MarketSpot MarketType = "spot"
)

// Valid reports whether the market type is one of the supported venues.
func (m MarketType) Valid() bool {
	return m == MarketPerp || m == MarketSpot
}

// Point is a single sample of a sparkline.
type Point struct {
	Timestamp int64   `json:"timestamp" msgpack:"t"`
	Value     float64 `json:"value" msgpack:"v"`
}

// Series is the ordered set of points drawn for one symbol.
type Series struct {
	Points      []Point `json:"points" msgpack:"p"`
	IsPositive  bool    `json:"is_positive" msgpack:"up"`
	LastUpdated int64   `json:"last_updated" msgpack:"u"`
}

// Len returns the number of points in the series.
func (s Series) Len() int {
	return len(s.Points)
}

// First returns the oldest point. It panics on an empty series.
func (s Series) First() Point {
	return s.Points[0]
}

// Last returns the newest point. It panics on an empty series.
func (s Series) Last() Point {
	return s.Points[len(s.Points)-1]
}

// Valid reports whether the series can be cached.
func (s Series) Valid() bool {
	if len(s.Points) < MinSeriesPoints {
		return false
	}
	for i := 1; i < len(s.Points); i++ {
		if s.Points[i].Timestamp <= s.Points[i-1].Timestamp {
			return false
		}
	}
	return true
}

// Clone returns a deep copy so callers can extend it without touching cached data.
func (s Series) Clone() Series {
	points := make([]Point, len(s.Points))
	copy(points, s.Points)
	return Series{Points: points, IsPositive: s.IsPositive, LastUpdated: s.LastUpdated}
}

// SeriesFromCandles builds a series from candle closes. Candles are sorted by
// open time and duplicated timestamps keep the latest close.
func SeriesFromCandles(candles []Candle, now time.Time) (Series, error) {
	valid := make([]Candle, 0, len(candles))
	for _, c := range candles {
		if err := c.Validate(); err != nil {
			continue
		}
		valid = append(valid, c)
	}

	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].OpenTime < valid[j].OpenTime
	})

	points := make([]Point, 0, len(valid))
	for _, c := range valid {
		if n := len(points); n > 0 && points[n-1].Timestamp == c.OpenTime {
			points[n-1].Value = c.Close
			continue
		}
		points = append(points, Point{Timestamp: c.OpenTime, Value: c.Close})
	}

	if len(points) < MinSeriesPoints {
		return Series{}, ErrInsufficientData
	}

	return Series{
		Points:      points,
		IsPositive:  points[len(points)-1].Value >= points[0].Value,
		LastUpdated: now.UnixMilli(),
	}, nil
}

// MemoryEntry is a series held in the in-process cache together with its expiry.
type MemoryEntry struct {
	Series    Series
	ExpiresAt int64
}

// FreshAt reports whether the entry has not expired at the given time.
func (e MemoryEntry) FreshAt(now time.Time) bool {
	return now.UnixMilli() < e.ExpiresAt
}

// PersistentRecord is the durable form of a series.
type PersistentRecord struct {
	Series               Series `msgpack:"s"`
	LastFetchedTimestamp int64  `msgpack:"f"`
}

// FreshAt reports whether the record is still inside the given ttl.
func (r PersistentRecord) FreshAt(now time.Time, ttl time.Duration) bool {
	return now.UnixMilli() < r.LastFetchedTimestamp+ttl.Milliseconds()
}
