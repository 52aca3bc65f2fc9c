package entities

import (
	"errors"
	"fmt"
	"math"
)

var ErrInvalidCandle = errors.New("invalid candle")

// Candle is one OHLCV bar as returned by the historical candle API.
type Candle struct {
	OpenTime  int64
	CloseTime int64
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// Validate checks the fields the sparkline depends on.
func (c Candle) Validate() error {
	if c.OpenTime <= 0 {
		return fmt.Errorf("%w: open time %d", ErrInvalidCandle, c.OpenTime)
	}
	if math.IsNaN(c.Close) || math.IsInf(c.Close, 0) {
		return fmt.Errorf("%w: close is not finite", ErrInvalidCandle)
	}
	if c.Close <= 0 {
		return fmt.Errorf("%w: close %v", ErrInvalidCandle, c.Close)
	}
	return nil
}
