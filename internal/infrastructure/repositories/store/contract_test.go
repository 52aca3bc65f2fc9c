package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sparkline-service/internal/domain/entities"
	"sparkline-service/internal/domain/interfaces"
)

func testRecord(fetchedAt int64, closes ...float64) entities.PersistentRecord {
	points := make([]entities.Point, 0, len(closes))
	for i, c := range closes {
		points = append(points, entities.Point{Timestamp: int64(i+1) * 900_000, Value: c})
	}
	return entities.PersistentRecord{
		Series: entities.Series{
			Points:      points,
			IsPositive:  closes[len(closes)-1] >= closes[0],
			LastUpdated: fetchedAt,
		},
		LastFetchedTimestamp: fetchedAt,
	}
}

// runStoreContract exercises the behaviour every engine must share
func runStoreContract(t *testing.T, s interfaces.Store, table string) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, s.Init(ctx))
	require.NoError(t, s.Init(ctx), "Init must be idempotent")
	require.NoError(t, s.Ping(ctx))

	_, found, err := s.Get(ctx, table, "perp:BTC")
	require.NoError(t, err)
	assert.False(t, found)

	btc := testRecord(1_000, 100, 101, 102)
	eth := testRecord(2_000, 50, 49)
	require.NoError(t, s.Upsert(ctx, table, "perp:BTC", btc))
	require.NoError(t, s.Upsert(ctx, table, "perp:ETH", eth))

	got, found, err := s.Get(ctx, table, "perp:BTC")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, btc, got)

	bulk, err := s.BulkGet(ctx, table, []string{"perp:BTC", "perp:ETH", "perp:SOL"})
	require.NoError(t, err)
	assert.Len(t, bulk, 2)
	assert.Equal(t, eth, bulk["perp:ETH"])

	empty, err := s.BulkGet(ctx, table, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	n, err := s.Count(ctx, table)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// upsert replaces instead of adding
	btc2 := testRecord(3_000, 100, 90)
	require.NoError(t, s.Upsert(ctx, table, "perp:BTC", btc2))
	n, err = s.Count(ctx, table)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	got, _, err = s.Get(ctx, table, "perp:BTC")
	require.NoError(t, err)
	assert.Equal(t, int64(3_000), got.LastFetchedTimestamp)
	assert.False(t, got.Series.IsPositive)

	seen := map[string]int64{}
	require.NoError(t, s.Scan(ctx, table, func(key string, rec entities.PersistentRecord) bool {
		seen[key] = rec.LastFetchedTimestamp
		return true
	}))
	assert.Equal(t, map[string]int64{"perp:BTC": 3_000, "perp:ETH": 2_000}, seen)

	visits := 0
	require.NoError(t, s.Scan(ctx, table, func(string, entities.PersistentRecord) bool {
		visits++
		return false
	}))
	assert.Equal(t, 1, visits)

	deleted, err := s.DeleteWhere(ctx, table, func(_ string, rec entities.PersistentRecord) bool {
		return rec.LastFetchedTimestamp < 2_500
	})
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)

	n, err = s.Count(ctx, table)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	deleted, err = s.DeleteWhere(ctx, table, func(string, entities.PersistentRecord) bool { return false })
	require.NoError(t, err)
	assert.Zero(t, deleted)

	// clean up for engines backed by a real server
	_, err = s.DeleteWhere(ctx, table, func(string, entities.PersistentRecord) bool { return true })
	require.NoError(t, err)
}
