package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/minerscan/internal/history"
	"github.com/user/minerscan/internal/model"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestPassStorage(t *testing.T) {
	s := NewPassStorage(openTestDB(t))

	latest, err := s.GetLatest()
	require.NoError(t, err)
	assert.Nil(t, latest)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.Save(model.PassSummary{
		ID: "a", Ranges: []string{"10.0.0.1-9"}, StartedAt: base, FinishedAt: base.Add(time.Second),
		TotalAddresses: 9, ScannedAddresses: 2, Found: 2, Duration: time.Second,
	}))
	require.NoError(t, s.Save(model.PassSummary{
		ID: "b", Ranges: []string{"10.0.0.1-9", "10.0.1.1-9"}, StartedAt: base.Add(time.Minute),
		FinishedAt: base.Add(time.Minute + 2*time.Second), Found: 3, FailedRanges: 1, Duration: 2 * time.Second,
	}))

	latest, err = s.GetLatest()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, "b", latest.ID)
	assert.Equal(t, []string{"10.0.0.1-9", "10.0.1.1-9"}, latest.Ranges)
	assert.Equal(t, 2*time.Second, latest.Duration)
	assert.Equal(t, 1, latest.FailedRanges)

	n, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestMinerStorageReplaceAll(t *testing.T) {
	s := NewMinerStorage(openTestDB(t))

	require.NoError(t, s.ReplaceAll("p1", map[string]model.DeviceReading{
		"10.0.0.10": {Address: "10.0.0.10", Model: "Antminer S19", Hashrate: model.Float(100)},
		"10.0.0.9":  {Address: "10.0.0.9", Model: "Antminer S19"},
		"10.0.0.11": {Address: "10.0.0.11", Model: "Whatsminer M30S"},
	}))

	all, err := s.GetAll()
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "10.0.0.9", all[0].Address)
	require.NotNil(t, all[1].Hashrate)
	assert.Equal(t, 100.0, *all[1].Hashrate)

	counts, err := s.CountByModel()
	require.NoError(t, err)
	assert.Equal(t, []ModelCount{{"Antminer S19", 2}, {"Whatsminer M30S", 1}}, counts)

	require.NoError(t, s.ReplaceAll("p2", map[string]model.DeviceReading{
		"10.0.0.50": {Address: "10.0.0.50"},
	}))
	n, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestHistoryStoragePrunesAndRestores(t *testing.T) {
	s := NewHistoryStorage(openTestDB(t), 3)
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(map[string]history.HashratePoint{
			"10.0.0.1": {Timestamp: base.Add(time.Duration(i) * time.Minute), Hashrate: float64(i)},
		}))
	}

	pts, err := s.Get("10.0.0.1")
	require.NoError(t, err)
	require.Len(t, pts, 3)
	assert.Equal(t, 2.0, pts[0].Hashrate)
	assert.Equal(t, 4.0, pts[2].Hashrate)

	store := history.NewStore()
	n, err := s.Restore(store)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Len(t, store.Coarse("10.0.0.1"), 3)
}
