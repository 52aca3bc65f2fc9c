package dto

import (
	"sort"
	"time"

	"sparkline-service/internal/domain/entities"
	"sparkline-service/pkg/utils"
)

// SparklineMapper maneja la conversión entre entidades del dominio y DTOs
type SparklineMapper struct {
	staleAfter time.Duration
}

// NewSparklineMapper crea el mapper; staleAfter es el TTL de memoria
func NewSparklineMapper(staleAfter time.Duration) *SparklineMapper {
	return &SparklineMapper{staleAfter: staleAfter}
}

// ToSparklineData converts a series to its response form
func (m *SparklineMapper) ToSparklineData(key entities.CacheKey, series entities.Series, hasLive bool, now time.Time) SparklineData {
	points := make([]PointData, len(series.Points))
	for i, p := range series.Points {
		points[i] = PointData{Timestamp: p.Timestamp, Value: p.Value}
	}

	return SparklineData{
		Key:           key.String(),
		Symbol:        key.Symbol,
		MarketType:    string(key.MarketType),
		Points:        points,
		IsPositive:    series.IsPositive,
		LastUpdated:   series.LastUpdated,
		LastUpdatedAt: utils.FormatMillis(series.LastUpdated),
		AgeMs:         utils.AgeOf(now, series.LastUpdated).Milliseconds(),
		Stale:         m.staleAfter > 0 && utils.IsTimestampStale(now, series.LastUpdated, m.staleAfter),
		HasLivePoint:  hasLive,
	}
}

// ToListResponse ordena por símbolo para una respuesta estable
func (m *SparklineMapper) ToListResponse(items []SparklineData, pending []string, cacheVersion uint64) *SparklineListResponse {
	if items == nil {
		items = []SparklineData{}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].Symbol < items[j].Symbol
	})
	sort.Strings(pending)

	return &SparklineListResponse{
		Sparklines:   items,
		Pending:      pending,
		CacheVersion: cacheVersion,
	}
}
