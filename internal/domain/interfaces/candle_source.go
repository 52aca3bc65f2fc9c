package interfaces

import (
	"context"
	"time"

	"sparkline-service/internal/domain/entities"
)

// CandleRequest describe una consulta de velas históricas para un símbolo.
type CandleRequest struct {
	Symbol     string
	MarketType entities.MarketType
	Interval   string
	StartTime  time.Time
	EndTime    time.Time
}

// CandleSource obtiene velas históricas del exchange.
// Los errores de rate limit deben poder detectarse con resilience.IsRateLimited.
type CandleSource interface {
	FetchCandles(ctx context.Context, req CandleRequest) ([]entities.Candle, error)
}
