package report

import (
	"bytes"
	"encoding/csv"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/minerscan/internal/model"
	"github.com/user/minerscan/internal/registry"
)

func fleet() *registry.Registry {
	reg := registry.New()
	reg.ReplaceAll(map[string]model.DeviceReading{
		"10.0.0.1": {
			Model: "Antminer S19", Hashrate: model.Float(100), Power: model.Float(3000),
			AvgTemperature: model.Float(65), Mining: true,
			Fans:  []model.Fan{{Index: 1, RPM: model.Float(5400)}},
			Pools: []model.Pool{{URL: "stratum+tcp://pool:3333", User: "acct.w1"}},
		},
		"10.0.0.2": {
			Model: "Antminer S19", Hashrate: model.Float(90), Power: model.Float(3400),
			AvgTemperature: model.Float(84), Mining: true,
		},
		"10.0.0.3": {Model: "Whatsminer M30S"},
	})
	return reg
}

func TestGenerate(t *testing.T) {
	data := NewGenerator(fleet()).Generate(nil)

	assert.Equal(t, 3, data.Stats.Count)
	require.Len(t, data.Models, 2)
	assert.Equal(t, "Antminer S19", data.Models[0].Model)
	assert.Equal(t, 2, data.Models[0].Count)
	assert.InDelta(t, 190.0, data.Models[0].TotalHashrate, 1e-9)

	require.Len(t, data.MostEfficient, 2)
	assert.Equal(t, "10.0.0.1", data.MostEfficient[0].Address)
	assert.Equal(t, "10.0.0.2", data.LeastEfficient[0].Address)

	require.Len(t, data.Idle, 1)
	assert.Equal(t, "10.0.0.3", data.Idle[0].Address)
	require.Len(t, data.Hot, 1)
	assert.Equal(t, "10.0.0.2", data.Hot[0].Address)
}

func TestFormatMarkdown(t *testing.T) {
	pass := &model.PassSummary{
		ID: "abc", Ranges: []string{"10.0.0.1-254"}, FinishedAt: time.Now(),
		Found: 3, TotalAddresses: 254, FailedRanges: 1,
	}
	md := FormatMarkdown(NewGenerator(fleet()).Generate(pass))

	assert.Contains(t, md, "# Fleet Report")
	assert.Contains(t, md, "| Miners | 3 |")
	assert.Contains(t, md, "1 ranges failed")
	assert.Contains(t, md, "pie showData")
	assert.Contains(t, md, "\"Antminer S19\" : 2")
	assert.Contains(t, md, "## Running Hot")
}

func TestWriteMarkdownFile(t *testing.T) {
	path, err := WriteMarkdownFile(NewGenerator(fleet()).Generate(nil), filepath.Join(t.TempDir(), "reports"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(path, ".md"))
}

func TestWriteCSVStripsUnits(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, fleet().Snapshot()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)

	assert.Equal(t, ExportHeader, rows[0])
	assert.Equal(t, []string{
		"10.0.0.1", "N/A", "Antminer S19", "N/A", "N/A",
		"100.00", "3000", "30.0", "65.0", "5400",
		"stratum+tcp://pool:3333", "acct.w1",
	}, rows[1])
	assert.Equal(t, "N/A", rows[3][6])
}
