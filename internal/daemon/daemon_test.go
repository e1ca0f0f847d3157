package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/user/minerscan/internal/device"
	"github.com/user/minerscan/internal/history"
	"github.com/user/minerscan/internal/iprange"
	"github.com/user/minerscan/internal/model"
	"github.com/user/minerscan/internal/storage"
	"github.com/user/minerscan/internal/util"
)

func testConfig(t *testing.T) *util.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := util.DefaultConfig()
	cfg.DataDir = dir
	cfg.LogFile = ""
	cfg.RecordingsDir = filepath.Join(dir, "recordings")
	return cfg
}

func TestSchedulerRunsDueJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewScheduler(ctx)
	s.tick = 10 * time.Millisecond

	var runs atomic.Int32
	s.AddJob(&Job{
		Name:     "count",
		Interval: time.Hour,
		Run: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	done := make(chan struct{})
	go func() {
		s.Run()
		close(done)
	}()

	require.Eventually(t, func() bool { return runs.Load() == 1 }, time.Second, 5*time.Millisecond)

	// The next run is an hour away until triggered.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())

	require.True(t, s.TriggerJob("count"))
	require.Eventually(t, func() bool { return runs.Load() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}

func TestSchedulerRecordsErrors(t *testing.T) {
	s := NewScheduler(context.Background())
	job := &Job{
		Name:     "fail",
		Interval: time.Minute,
		Run:      func(ctx context.Context) error { return errors.New("boom") },
	}
	s.AddJob(job)

	before := time.Now()
	s.runJob(job)

	statuses := s.GetJobStatuses()
	require.Len(t, statuses, 1)
	assert.Equal(t, "boom", statuses[0].LastError)
	assert.Equal(t, 1, statuses[0].ErrorCount)
	assert.False(t, statuses[0].Running)

	// Errors retry after half the interval.
	assert.WithinDuration(t, before.Add(30*time.Second), statuses[0].NextRun, 5*time.Second)
}

func TestSchedulerSetInterval(t *testing.T) {
	s := NewScheduler(context.Background())
	job := &Job{Name: "scan", Interval: time.Minute, Run: func(context.Context) error { return nil }}
	s.AddJob(job)
	s.runJob(job)

	assert.True(t, s.SetInterval("scan", 10*time.Second))
	assert.False(t, s.SetInterval("scan", 0))
	assert.False(t, s.SetInterval("missing", time.Second))

	status := s.GetJobStatuses()[0]
	assert.Equal(t, 10*time.Second, status.Interval)
	assert.Equal(t, status.LastRun.Add(10*time.Second), status.NextRun)
}

func TestSchedulerJobTimeout(t *testing.T) {
	s := NewScheduler(context.Background())
	job := &Job{
		Name:     "slow",
		Interval: time.Minute,
		Timeout:  10 * time.Millisecond,
		Run: func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		},
	}
	s.AddJob(job)
	s.runJob(job)

	assert.Contains(t, s.GetJobStatuses()[0].LastError, "deadline exceeded")
}

func miner(addr string, hashrate float64) model.DeviceReading {
	return model.DeviceReading{
		Address:  addr,
		Model:    "Antminer S19",
		Hashrate: model.Float(hashrate),
		Power:    model.Float(3200),
		Mining:   true,
		ReadAt:   time.Now(),
	}
}

func TestEngineScanPersistsPass(t *testing.T) {
	cfg := testConfig(t)
	ctrl := gomock.NewController(t)
	client := device.NewMockClient(ctrl)

	db, err := storage.Open(filepath.Join(cfg.DataDir, "test.db"))
	require.NoError(t, err)

	e, err := New(cfg, WithClient(client), WithDB(db))
	require.NoError(t, err)
	t.Cleanup(func() { e.Stop() })

	r, err := iprange.Parse("10.0.0.1", "10.0.0.4")
	require.NoError(t, err)

	client.EXPECT().Enumerate(gomock.Any(), r).Return([]model.DeviceReading{
		{Address: "10.0.0.2"}, {Address: "10.0.0.3"},
	}, nil)
	client.EXPECT().Fetch(gomock.Any(), "10.0.0.2").Return(miner("10.0.0.2", 95), nil)
	client.EXPECT().Fetch(gomock.Any(), "10.0.0.3").Return(miner("10.0.0.3", 105), nil)

	summary, err := e.ScanAndWait(context.Background(), []iprange.Range{r})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Found)
	assert.Equal(t, 4, summary.TotalAddresses)

	assert.Equal(t, 2, e.Registry().Len())
	assert.InDelta(t, 200.0, e.Registry().TotalHashrate(), 1e-9)

	latest, err := storage.NewPassStorage(db).GetLatest()
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, summary.ID, latest.ID)

	count, err := storage.NewMinerStorage(db).Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	points, err := storage.NewHistoryStorage(db, 288).Get("10.0.0.3")
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 105.0, points[0].Hashrate)
}

func TestEngineRestoresHistory(t *testing.T) {
	cfg := testConfig(t)
	path := filepath.Join(cfg.DataDir, "test.db")

	db, err := storage.Open(path)
	require.NoError(t, err)
	require.NoError(t, storage.NewHistoryStorage(db, 288).Append(map[string]history.HashratePoint{
		"10.0.0.9": {Timestamp: time.Now(), Hashrate: 88},
	}))

	ctrl := gomock.NewController(t)
	e, err := New(cfg, WithClient(device.NewMockClient(ctrl)), WithDB(db))
	require.NoError(t, err)
	t.Cleanup(func() { e.Stop() })

	coarse := e.History().Coarse("10.0.0.9")
	require.Len(t, coarse, 1)
	assert.Equal(t, 88.0, coarse[0].Hashrate)

	// Restored history never populates the registry.
	assert.Equal(t, 0, e.Registry().Len())
}

func TestEngineRejectsOverlappingScans(t *testing.T) {
	cfg := testConfig(t)
	ctrl := gomock.NewController(t)
	client := device.NewMockClient(ctrl)

	e, err := New(cfg, WithClient(client), WithoutPersistence())
	require.NoError(t, err)
	t.Cleanup(func() { e.Stop() })

	r, err := iprange.Parse("10.0.0.1", "10.0.0.1")
	require.NoError(t, err)

	release := make(chan struct{})
	client.EXPECT().Enumerate(gomock.Any(), r).DoAndReturn(
		func(ctx context.Context, _ iprange.Range) ([]model.DeviceReading, error) {
			<-release
			return nil, nil
		})

	_, err = e.Scan(nil)
	assert.ErrorIs(t, err, ErrNoRanges)

	id, err := e.Scan([]iprange.Range{r})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	_, err = e.Scan([]iprange.Range{r})
	assert.ErrorIs(t, err, ErrScanInProgress)

	close(release)
	require.Eventually(t, func() bool { return !e.Progress().IsScanning() }, time.Second, 5*time.Millisecond)
}

func TestAutoScanSkipsWithoutRanges(t *testing.T) {
	cfg := testConfig(t)
	ctrl := gomock.NewController(t)

	e, err := New(cfg, WithClient(device.NewMockClient(ctrl)), WithoutPersistence())
	require.NoError(t, err)
	t.Cleanup(func() { e.Stop() })

	require.NoError(t, e.runAutoScan(context.Background()))
	assert.False(t, e.Progress().IsScanning())
}

func TestStatusFileRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	ctrl := gomock.NewController(t)

	e, err := New(cfg, WithClient(device.NewMockClient(ctrl)), WithoutPersistence())
	require.NoError(t, err)
	t.Cleanup(func() { e.Stop() })

	require.NoError(t, WriteStatusFile(cfg.DataDir, e.Snapshot()))

	sf, err := ReadStatusFile(cfg.DataDir)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), sf.PID)
	assert.Equal(t, 0, sf.Miners)
	assert.False(t, sf.Scan.Scanning)
}

func TestCheckRunningWithoutPIDFile(t *testing.T) {
	running, pid := CheckRunning(t.TempDir())
	assert.False(t, running)
	assert.Zero(t, pid)

	assert.Error(t, SendStop(t.TempDir()))
}
