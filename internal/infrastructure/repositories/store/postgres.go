package store

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"sparkline-service/internal/domain/entities"
	"sparkline-service/internal/domain/interfaces"
	"sparkline-service/internal/infrastructure/config"
)

// PostgresStore keeps one table per cache table: (key, payload msgpack, last_fetched ms)
type PostgresStore struct {
	pool   *pgxpool.Pool
	tables []string
}

var _ interfaces.Store = (*PostgresStore)(nil)

// BuildConnString builds a PostgreSQL connection string from config.
func BuildConnString(cfg config.PostgresConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		cfg.User,
		url.QueryEscape(cfg.Password),
		cfg.Host,
		cfg.Port,
		cfg.Database,
		sslMode,
	)
}

// NewPostgresStore creates the pool without connecting. Tables are created on Init.
func NewPostgresStore(ctx context.Context, cfg config.PostgresConfig, tables ...string) (*PostgresStore, error) {
	return newPostgresStore(ctx, BuildConnString(cfg), int32(cfg.MinConns), int32(cfg.MaxConns), tables)
}

func newPostgresStore(ctx context.Context, connStr string, minConns, maxConns int32, tables []string) (*PostgresStore, error) {
	for _, t := range tables {
		if err := validateTable(t); err != nil {
			return nil, err
		}
	}

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	if maxConns > 0 {
		poolCfg.MaxConns = maxConns
	}
	if minConns > 0 {
		poolCfg.MinConns = minConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	return &PostgresStore{pool: pool, tables: tables}, nil
}

func (p *PostgresStore) Init(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}
	for _, t := range p.tables {
		ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	key TEXT PRIMARY KEY,
	payload BYTEA NOT NULL,
	last_fetched BIGINT NOT NULL
)`, quoteTable(t))
		if _, err := p.pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("create table %s: %w", t, err)
		}
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, table, key string) (entities.PersistentRecord, bool, error) {
	if err := validateTable(table); err != nil {
		return entities.PersistentRecord{}, false, err
	}

	var payload []byte
	err := p.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT payload FROM %s WHERE key = $1`, quoteTable(table)), key,
	).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return entities.PersistentRecord{}, false, nil
	}
	if err != nil {
		return entities.PersistentRecord{}, false, err
	}

	rec, err := decodeRecord(payload)
	if err != nil {
		return entities.PersistentRecord{}, false, err
	}
	return rec, true, nil
}

func (p *PostgresStore) BulkGet(ctx context.Context, table string, keys []string) (map[string]entities.PersistentRecord, error) {
	if err := validateTable(table); err != nil {
		return nil, err
	}
	out := make(map[string]entities.PersistentRecord, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	rows, err := p.pool.Query(ctx,
		fmt.Sprintf(`SELECT key, payload FROM %s WHERE key = ANY($1)`, quoteTable(table)), keys,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var payload []byte
		if err := rows.Scan(&key, &payload); err != nil {
			return nil, err
		}
		rec, err := decodeRecord(payload)
		if err != nil {
			continue
		}
		out[key] = rec
	}
	return out, rows.Err()
}

func (p *PostgresStore) Upsert(ctx context.Context, table, key string, record entities.PersistentRecord) error {
	if err := validateTable(table); err != nil {
		return err
	}
	payload, err := encodeRecord(record)
	if err != nil {
		return err
	}

	_, err = p.pool.Exec(ctx, fmt.Sprintf(`INSERT INTO %s (key, payload, last_fetched) VALUES ($1, $2, $3)
ON CONFLICT (key) DO UPDATE SET payload = EXCLUDED.payload, last_fetched = EXCLUDED.last_fetched`, quoteTable(table)),
		key, payload, record.LastFetchedTimestamp,
	)
	return err
}

// DeleteWhere evaluates the predicate in Go, then deletes the matches in one statement
func (p *PostgresStore) DeleteWhere(ctx context.Context, table string, predicate interfaces.RecordPredicate) (int, error) {
	var doomed []string
	err := p.Scan(ctx, table, func(key string, rec entities.PersistentRecord) bool {
		if predicate(key, rec) {
			doomed = append(doomed, key)
		}
		return true
	})
	if err != nil {
		return 0, err
	}
	if len(doomed) == 0 {
		return 0, nil
	}

	tag, err := p.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE key = ANY($1)`, quoteTable(table)), doomed)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (p *PostgresStore) Count(ctx context.Context, table string) (int, error) {
	if err := validateTable(table); err != nil {
		return 0, err
	}
	var n int64
	if err := p.pool.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, quoteTable(table))).Scan(&n); err != nil {
		return 0, err
	}
	return int(n), nil
}

func (p *PostgresStore) Scan(ctx context.Context, table string, fn func(key string, record entities.PersistentRecord) bool) error {
	if err := validateTable(table); err != nil {
		return err
	}

	rows, err := p.pool.Query(ctx, fmt.Sprintf(`SELECT key, payload FROM %s`, quoteTable(table)))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		var payload []byte
		if err := rows.Scan(&key, &payload); err != nil {
			return err
		}
		rec, err := decodeRecord(payload)
		if err != nil {
			continue
		}
		if !fn(key, rec) {
			return nil
		}
	}
	return rows.Err()
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *PostgresStore) Close() error {
	p.pool.Close()
	return nil
}

func quoteTable(table string) string {
	return pgx.Identifier{table}.Sanitize()
}
