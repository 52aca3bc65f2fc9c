package interfaces

import "sparkline-service/internal/domain/entities"

// LivePriceSource expone el último precio publicado por el feed en vivo.
// Debe ser seguro para uso concurrente y no bloquear.
type LivePriceSource interface {
	LatestTick(symbol string) (*entities.LiveTick, bool)
}
