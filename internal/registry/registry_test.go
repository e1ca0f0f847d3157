package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/minerscan/internal/model"
)

func reading(addr string, hashrate, power float64) model.DeviceReading {
	return model.DeviceReading{
		Address:  addr,
		Model:    "Antminer S19",
		Hashrate: model.Float(hashrate),
		Power:    model.Float(power),
		Mining:   hashrate > 0,
	}
}

func seeded() *Registry {
	r := New()
	r.ReplaceAll(map[string]model.DeviceReading{
		"10.0.0.10": reading("10.0.0.10", 100, 3000),
		"10.0.0.2":  reading("10.0.0.2", 90, 3150),
		"10.0.0.33": reading("10.0.0.33", 110, 3200),
	})
	return r
}

func TestReplaceAllSwapsEverything(t *testing.T) {
	r := seeded()
	require.Equal(t, 3, r.Len())

	r.ReplaceAll(map[string]model.DeviceReading{
		"10.0.0.99": reading("10.0.0.99", 50, 1500),
	})

	assert.Equal(t, 1, r.Len())
	_, ok := r.Get("10.0.0.10")
	assert.False(t, ok)
}

func TestSnapshotOrderedNumerically(t *testing.T) {
	snap := seeded().Snapshot()

	require.Len(t, snap, 3)
	assert.Equal(t, "10.0.0.2", snap[0].Address)
	assert.Equal(t, "10.0.0.10", snap[1].Address)
	assert.Equal(t, "10.0.0.33", snap[2].Address)
}

func TestSnapshotIsACopy(t *testing.T) {
	r := seeded()
	snap := r.Snapshot()
	*snap[0].Reading.Hashrate = 0

	e, ok := r.Get("10.0.0.2")
	require.True(t, ok)
	assert.Equal(t, 90.0, *e.Reading.Hashrate)
}

func TestUpdateOne(t *testing.T) {
	r := seeded()

	assert.True(t, r.UpdateOne("10.0.0.2", reading("10.0.0.2", 95, 3150)))
	e, _ := r.Get("10.0.0.2")
	assert.Equal(t, "95.00", e.Display.Hashrate)

	assert.False(t, r.UpdateOne("10.0.0.200", reading("10.0.0.200", 1, 1)))
	assert.Equal(t, 3, r.Len())
}

func TestTotalHashrateAndStats(t *testing.T) {
	r := seeded()
	assert.InDelta(t, 300.0, r.TotalHashrate(), 1e-9)

	r.ReplaceAll(map[string]model.DeviceReading{
		"10.0.0.1": {Address: "10.0.0.1", Hashrate: model.Float(100), Power: model.Float(3000), AvgTemperature: model.Float(60), Mining: true},
		"10.0.0.2": {Address: "10.0.0.2", Hashrate: model.Float(0), Power: model.Float(200), AvgTemperature: model.Float(40)},
		"10.0.0.3": {Address: "10.0.0.3"},
	})

	s := r.Stats()
	assert.Equal(t, 3, s.Count)
	assert.Equal(t, 1, s.Mining)
	assert.InDelta(t, 100.0, s.TotalHashrate, 1e-9)
	assert.InDelta(t, 50.0, s.AvgHashrate, 1e-9)
	// Zero hashrate has no efficiency, so only the first miner counts.
	assert.InDelta(t, 30.0, s.AvgEfficiency, 1e-9)
	assert.InDelta(t, 50.0, s.AvgTemperature, 1e-9)
}

func TestStatsEmpty(t *testing.T) {
	assert.Equal(t, Stats{}, New().Stats())
}

func TestQuerySearchAndSort(t *testing.T) {
	r := seeded()
	r.UpdateOne("10.0.0.33", model.DeviceReading{
		Hostname: "rack9-s21",
		Model:    "Antminer S21",
		Hashrate: model.Float(200),
		Power:    model.Float(3500),
	})

	got := r.Query(Query{Search: "s21"})
	require.Len(t, got, 1)
	assert.Equal(t, "10.0.0.33", got[0].Address)

	got = r.Query(Query{SortBy: ColumnHashrate, Desc: true})
	require.Len(t, got, 3)
	assert.Equal(t, "10.0.0.33", got[0].Address)
	assert.Equal(t, "10.0.0.10", got[1].Address)
	assert.Equal(t, "10.0.0.2", got[2].Address)

	got = r.Query(Query{SortBy: ColumnEfficiency})
	assert.Equal(t, "10.0.0.33", got[0].Address) // 17.5 W/TH
}

func TestQueryMissingValuesSortFirstAscending(t *testing.T) {
	r := New()
	r.ReplaceAll(map[string]model.DeviceReading{
		"10.0.0.1": {Address: "10.0.0.1", Hashrate: model.Float(10)},
		"10.0.0.2": {Address: "10.0.0.2"},
	})

	got := r.Query(Query{SortBy: ColumnHashrate})
	assert.Equal(t, "10.0.0.2", got[0].Address)
}

func TestParseColumn(t *testing.T) {
	c, err := ParseColumn("")
	require.NoError(t, err)
	assert.Equal(t, ColumnAddress, c)

	c, err = ParseColumn("fan_speed")
	require.NoError(t, err)
	assert.Equal(t, ColumnFanSpeed, c)

	_, err = ParseColumn("bogus")
	assert.Error(t, err)
}
