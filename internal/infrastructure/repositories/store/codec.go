package store

import (
	"fmt"
	"regexp"

	"github.com/vmihailenco/msgpack/v5"

	"sparkline-service/internal/domain/entities"
)

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// encodeRecord serializes a record for the redis and postgres engines
func encodeRecord(rec entities.PersistentRecord) ([]byte, error) {
	b, err := msgpack.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w", err)
	}
	return b, nil
}

func decodeRecord(b []byte) (entities.PersistentRecord, error) {
	var rec entities.PersistentRecord
	if err := msgpack.Unmarshal(b, &rec); err != nil {
		return entities.PersistentRecord{}, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	return rec, nil
}

func validateTable(table string) error {
	if !tableNamePattern.MatchString(table) {
		return fmt.Errorf("%w: %q", ErrInvalidTable, table)
	}
	return nil
}
