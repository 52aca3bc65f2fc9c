package store

import (
	"context"
	"sync"

	"sparkline-service/internal/domain/entities"
	"sparkline-service/internal/domain/interfaces"
)

// MemoryStore es el motor embebido por defecto: un mapa por tabla en el proceso.
// No sobrevive reinicios; sirve para desarrollo y tests.
type MemoryStore struct {
	mu     sync.RWMutex
	tables map[string]map[string]entities.PersistentRecord
	closed bool
}

var _ interfaces.Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string]map[string]entities.PersistentRecord)}
}

func (s *MemoryStore) Init(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, table, key string) (entities.PersistentRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return entities.PersistentRecord{}, false, ErrStoreClosed
	}

	rec, ok := s.tables[table][key]
	if !ok {
		return entities.PersistentRecord{}, false, nil
	}
	return cloneRecord(rec), true, nil
}

func (s *MemoryStore) BulkGet(ctx context.Context, table string, keys []string) (map[string]entities.PersistentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}

	out := make(map[string]entities.PersistentRecord, len(keys))
	rows := s.tables[table]
	for _, k := range keys {
		if rec, ok := rows[k]; ok {
			out[k] = cloneRecord(rec)
		}
	}
	return out, nil
}

func (s *MemoryStore) Upsert(ctx context.Context, table, key string, record entities.PersistentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	rows, ok := s.tables[table]
	if !ok {
		rows = make(map[string]entities.PersistentRecord)
		s.tables[table] = rows
	}
	rows[key] = cloneRecord(record)
	return nil
}

func (s *MemoryStore) DeleteWhere(ctx context.Context, table string, predicate interfaces.RecordPredicate) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrStoreClosed
	}

	deleted := 0
	for k, rec := range s.tables[table] {
		if predicate(k, rec) {
			delete(s.tables[table], k)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryStore) Count(ctx context.Context, table string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return 0, ErrStoreClosed
	}
	return len(s.tables[table]), nil
}

func (s *MemoryStore) Scan(ctx context.Context, table string, fn func(key string, record entities.PersistentRecord) bool) error {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ErrStoreClosed
	}
	snapshot := make(map[string]entities.PersistentRecord, len(s.tables[table]))
	for k, rec := range s.tables[table] {
		snapshot[k] = cloneRecord(rec)
	}
	s.mu.RUnlock()

	for k, rec := range snapshot {
		if !fn(k, rec) {
			return nil
		}
	}
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return s.Init(ctx)
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func cloneRecord(rec entities.PersistentRecord) entities.PersistentRecord {
	return entities.PersistentRecord{Series: rec.Series.Clone(), LastFetchedTimestamp: rec.LastFetchedTimestamp}
}
