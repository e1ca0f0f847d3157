package util

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/minerscan/internal/iprange"
	"github.com/user/minerscan/internal/model"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 10*time.Second, cfg.DetailRefreshInterval())
	assert.Equal(t, 120*time.Second, cfg.AutoScanInterval())
	assert.Equal(t, 5*time.Second, cfg.IdentificationTimeout())
	assert.Equal(t, 3*time.Second, cfg.ConnectivityTimeout())
	assert.Equal(t, 2, cfg.ConnectivityRetries)
	assert.True(t, cfg.DiscardRecordingOnClose)
}

func TestIntervalFallbacks(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, 120*time.Second, cfg.AutoScanInterval())
	assert.Equal(t, 10*time.Second, cfg.DetailRefreshInterval())
}

func TestSavedRanges(t *testing.T) {
	cfg := DefaultConfig()

	saved, err := cfg.AddRange("rack-a", "10.0.81.0", "10.0.81.255")
	require.NoError(t, err)
	assert.Equal(t, "10.0.81.0-255", saved.Range)

	_, err = cfg.AddRange("rack-a", "10.0.82.0", "10.0.82.9")
	assert.ErrorIs(t, err, ErrRangeExists)

	_, err = cfg.AddRange("bad", "10.0.81.9", "10.0.81.1")
	assert.ErrorIs(t, err, iprange.ErrOrdering)

	_, err = cfg.AddRange("rack-b", "10.0.82.10", "10.0.82.19")
	require.NoError(t, err)

	ranges := cfg.Ranges()
	require.Len(t, ranges, 2)
	assert.Equal(t, 10, ranges[1].Count())

	require.NoError(t, cfg.RemoveRange("rack-a"))
	assert.ErrorIs(t, cfg.RemoveRange("rack-a"), ErrRangeNotFound)

	_, ok := cfg.FindRange("rack-b")
	assert.True(t, ok)
}

func TestRangesSkipsMalformed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SavedRanges = append(cfg.SavedRanges,
		model.SavedRange{Name: "ok", Range: "10.0.0.1-5"},
		model.SavedRange{Name: "broken", Range: "10.0.0-5"},
	)

	ranges := cfg.Ranges()
	require.Len(t, ranges, 1)
	assert.Equal(t, "10.0.0.1-5", ranges[0].String())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("warning"))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("nonsense"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
}
