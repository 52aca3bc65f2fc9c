package interfaces

import (
	"context"

	"sparkline-service/internal/domain/entities"
)

// RecordPredicate selecciona registros para DeleteWhere.
type RecordPredicate func(key string, record entities.PersistentRecord) bool

// Store es el motor clave-valor durable detrás del caché persistente.
type Store interface {
	// Init prepara el almacenamiento (tablas, conexiones). Debe ser idempotente.
	Init(ctx context.Context) error
	// Get retorna (record, true, nil) si existe, (_, false, nil) si no existe.
	Get(ctx context.Context, table, key string) (entities.PersistentRecord, bool, error)
	// BulkGet lee varias claves en una sola ida y vuelta. Las claves ausentes se omiten.
	BulkGet(ctx context.Context, table string, keys []string) (map[string]entities.PersistentRecord, error)
	Upsert(ctx context.Context, table, key string, record entities.PersistentRecord) error
	// DeleteWhere elimina los registros que cumplen el predicado y retorna cuántos borró.
	DeleteWhere(ctx context.Context, table string, predicate RecordPredicate) (int, error)
	Count(ctx context.Context, table string) (int, error)
	// Scan recorre todos los registros de la tabla.
	Scan(ctx context.Context, table string, fn func(key string, record entities.PersistentRecord) bool) error
	Ping(ctx context.Context) error
	Close() error
}
