package interfaces

import (
	"context"

	"sparkline-service/internal/domain/entities"
)

// SparklineStats es una foto del estado del orquestador.
type SparklineStats struct {
	CacheVersion      uint64 `json:"cache_version"`
	RefreshTrigger    uint64 `json:"refresh_trigger"`
	QueueDepth        int    `json:"queue_depth"`
	InFlight          int    `json:"in_flight"`
	Claimed           int    `json:"claimed"`
	MemoryEntries     int    `json:"memory_entries"`
	VisibleItems      int    `json:"visible_items"`
	Paused            bool   `json:"paused"`
	PersistentReady   bool   `json:"persistent_ready"`
	LastRefreshMillis int64  `json:"last_refresh"`
}

// SparklineService define los casos de uso de sparklines para los consumidores.
type SparklineService interface {
	// GetSparklineData es síncrono: retorna lo que haya en memoria (aunque esté vencido)
	// y programa trabajo en segundo plano cuando falta o está vencido.
	GetSparklineData(ctx context.Context, key entities.CacheKey) (entities.Series, bool)

	// GetLiveSparkline igual que GetSparklineData pero con el último tick del feed en vivo.
	GetLiveSparkline(ctx context.Context, key entities.CacheKey) (entities.MergedSeries, bool)

	PrefetchSparklines(ctx context.Context, symbols []string, marketType entities.MarketType)
	HydrateFromCache(ctx context.Context, symbols []string, marketType entities.MarketType) error

	SetVisibleItems(ctx context.Context, symbols []string, marketType entities.MarketType)
	ClearVisibility(ctx context.Context)

	PauseFetching()
	ResumeFetching()

	// HandleForeground invalida la memoria si pasó el intervalo de refresco; retorna si lo hizo.
	HandleForeground(ctx context.Context) bool
	HandleBackground(ctx context.Context)
	Refresh(ctx context.Context)

	CacheVersion() uint64
	RefreshTrigger() uint64
	Stats() SparklineStats
	// PendingKeys lista las claves en cola, primero la de mayor prioridad.
	PendingKeys() []string
}
