package scan

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/user/minerscan/internal/device"
	"github.com/user/minerscan/internal/history"
	"github.com/user/minerscan/internal/iprange"
	"github.com/user/minerscan/internal/model"
	"github.com/user/minerscan/internal/registry"
)

type fixture struct {
	client   *device.MockClient
	progress *Progress
	registry *registry.Registry
	history  *history.Store
	orch     *Orchestrator
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)

	f := &fixture{
		client:   device.NewMockClient(ctrl),
		progress: NewProgress(),
		registry: registry.New(),
		history:  history.NewStore(),
	}
	f.orch = NewOrchestrator(f.client, f.progress, f.registry, f.history, opts...)
	return f
}

func mustRange(t *testing.T, start, end string) iprange.Range {
	t.Helper()
	r, err := iprange.Parse(start, end)
	require.NoError(t, err)
	return r
}

func identity(addr string) model.DeviceReading {
	return model.DeviceReading{Address: addr, Model: "Antminer S19", ReadAt: time.Now()}
}

func telemetry(addr string, hashrate float64) model.DeviceReading {
	return model.DeviceReading{
		Address:  addr,
		Hashrate: model.Float(hashrate),
		Power:    model.Float(3000),
		ReadAt:   time.Now(),
	}
}

func (f *fixture) run(t *testing.T, ranges ...iprange.Range) (model.PassSummary, error) {
	t.Helper()
	passID, ok := f.orch.Begin(ranges)
	require.True(t, ok)
	return f.orch.Run(context.Background(), passID, ranges)
}

func TestPassPublishesRegistry(t *testing.T) {
	f := newFixture(t)
	r := mustRange(t, "10.0.81.0", "10.0.81.255")

	f.client.EXPECT().Enumerate(gomock.Any(), r).Return([]model.DeviceReading{
		identity("10.0.81.5"), identity("10.0.81.6"),
	}, nil)
	f.client.EXPECT().Fetch(gomock.Any(), "10.0.81.5").Return(telemetry("10.0.81.5", 100), nil)
	f.client.EXPECT().Fetch(gomock.Any(), "10.0.81.6").Return(telemetry("10.0.81.6", 95), nil)

	summary, err := f.run(t, r)
	require.NoError(t, err)

	assert.Equal(t, 2, f.registry.Len())
	assert.Equal(t, 2, summary.Found)
	assert.Equal(t, 256, summary.TotalAddresses)

	state := f.progress.Snapshot()
	assert.False(t, state.Scanning)
	assert.Empty(t, state.CurrentAddress)
	assert.LessOrEqual(t, state.ScannedAddresses, state.TotalAddresses)
	assert.Equal(t, 2, state.ScannedAddresses)
	assert.Equal(t, 1, state.ScannedRanges)

	// Identity fields missing from telemetry come from discovery.
	e, ok := f.registry.Get("10.0.81.5")
	require.True(t, ok)
	assert.Equal(t, "Antminer S19", e.Reading.Model)

	require.Len(t, f.history.Coarse("10.0.81.5"), 1)
	assert.Equal(t, 100.0, f.history.Coarse("10.0.81.5")[0].Hashrate)
}

func TestOverlappingRangesKeepLaterReading(t *testing.T) {
	f := newFixture(t)
	r1 := mustRange(t, "10.0.0.1", "10.0.0.10")
	r2 := mustRange(t, "10.0.0.5", "10.0.0.20")

	gomock.InOrder(
		f.client.EXPECT().Enumerate(gomock.Any(), r1).Return([]model.DeviceReading{identity("10.0.0.7")}, nil),
		f.client.EXPECT().Fetch(gomock.Any(), "10.0.0.7").Return(telemetry("10.0.0.7", 80), nil),
		f.client.EXPECT().Enumerate(gomock.Any(), r2).Return([]model.DeviceReading{identity("10.0.0.7")}, nil),
		f.client.EXPECT().Fetch(gomock.Any(), "10.0.0.7").Return(telemetry("10.0.0.7", 120), nil),
	)

	summary, err := f.run(t, r1, r2)
	require.NoError(t, err)

	assert.Equal(t, 1, f.registry.Len())
	assert.Equal(t, 1, summary.Found)
	e, _ := f.registry.Get("10.0.0.7")
	assert.Equal(t, 120.0, *e.Reading.Hashrate)
	assert.Len(t, f.history.Coarse("10.0.0.7"), 2)
}

func TestFailingRangeDoesNotStopPass(t *testing.T) {
	f := newFixture(t)
	bad := mustRange(t, "10.0.1.1", "10.0.1.10")
	good := mustRange(t, "10.0.2.1", "10.0.2.10")

	f.client.EXPECT().Enumerate(gomock.Any(), bad).Return(nil, errors.New("network unreachable"))
	f.client.EXPECT().Enumerate(gomock.Any(), good).Return([]model.DeviceReading{identity("10.0.2.3")}, nil)
	f.client.EXPECT().Fetch(gomock.Any(), "10.0.2.3").Return(telemetry("10.0.2.3", 90), nil)

	summary, err := f.run(t, bad, good)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.FailedRanges)
	assert.Equal(t, 1, f.registry.Len())
	assert.Equal(t, 2, f.progress.Snapshot().ScannedRanges)
}

func TestFetchFailureKeepsDiscoveryReading(t *testing.T) {
	f := newFixture(t)
	r := mustRange(t, "10.0.3.1", "10.0.3.1")

	f.client.EXPECT().Enumerate(gomock.Any(), r).Return([]model.DeviceReading{identity("10.0.3.1")}, nil)
	f.client.EXPECT().Fetch(gomock.Any(), "10.0.3.1").Return(model.DeviceReading{}, errors.New("timeout"))

	_, err := f.run(t, r)
	require.NoError(t, err)

	e, ok := f.registry.Get("10.0.3.1")
	require.True(t, ok)
	assert.Equal(t, "Antminer S19", e.Display.Model)
	assert.Equal(t, model.NotAvailable, e.Display.Hashrate)
	assert.Empty(t, f.history.Coarse("10.0.3.1"))
}

func TestPassReplacesPreviousSnapshot(t *testing.T) {
	f := newFixture(t)
	r := mustRange(t, "10.0.4.1", "10.0.4.9")

	f.client.EXPECT().Enumerate(gomock.Any(), r).Return([]model.DeviceReading{identity("10.0.4.1")}, nil)
	f.client.EXPECT().Fetch(gomock.Any(), "10.0.4.1").Return(telemetry("10.0.4.1", 1), nil)
	_, err := f.run(t, r)
	require.NoError(t, err)

	f.client.EXPECT().Enumerate(gomock.Any(), r).Return([]model.DeviceReading{identity("10.0.4.2")}, nil)
	f.client.EXPECT().Fetch(gomock.Any(), "10.0.4.2").Return(telemetry("10.0.4.2", 1), nil)
	_, err = f.run(t, r)
	require.NoError(t, err)

	assert.Equal(t, []string{"10.0.4.2"}, f.registry.Addresses())
}

func TestCancelledPassLeavesRegistry(t *testing.T) {
	f := newFixture(t)
	f.registry.ReplaceAll(map[string]model.DeviceReading{"10.9.9.9": telemetry("10.9.9.9", 50)})

	r1 := mustRange(t, "10.0.5.1", "10.0.5.9")
	r2 := mustRange(t, "10.0.6.1", "10.0.6.9")

	ctx, cancel := context.WithCancel(context.Background())
	f.client.EXPECT().Enumerate(gomock.Any(), r1).DoAndReturn(
		func(context.Context, iprange.Range) ([]model.DeviceReading, error) {
			cancel()
			return []model.DeviceReading{identity("10.0.5.1")}, nil
		})

	passID, ok := f.orch.Begin([]iprange.Range{r1, r2})
	require.True(t, ok)
	_, err := f.orch.Run(ctx, passID, []iprange.Range{r1, r2})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"10.9.9.9"}, f.registry.Addresses())
	assert.False(t, f.progress.IsScanning())
}

func TestOnlyOnePassAtATime(t *testing.T) {
	f := newFixture(t)
	r := mustRange(t, "10.0.7.1", "10.0.7.9")

	release := make(chan struct{})
	f.client.EXPECT().Enumerate(gomock.Any(), r).DoAndReturn(
		func(context.Context, iprange.Range) ([]model.DeviceReading, error) {
			<-release
			return nil, nil
		})

	_, ok := f.orch.Start(context.Background(), []iprange.Range{r})
	require.True(t, ok)

	_, ok = f.orch.Start(context.Background(), []iprange.Range{r})
	assert.False(t, ok)

	close(release)
	f.orch.Wait()
	assert.False(t, f.progress.IsScanning())
}

func TestStartRejectsEmptyRanges(t *testing.T) {
	f := newFixture(t)
	_, ok := f.orch.Start(context.Background(), nil)
	assert.False(t, ok)
	assert.False(t, f.progress.IsScanning())
}

func TestPassObserverReceivesSummary(t *testing.T) {
	var mu sync.Mutex
	var got model.PassSummary
	var readings map[string]model.DeviceReading

	f := newFixture(t, WithPassObserver(func(s model.PassSummary, r map[string]model.DeviceReading) {
		mu.Lock()
		defer mu.Unlock()
		got, readings = s, r
	}))
	r := mustRange(t, "10.0.8.1", "10.0.8.4")

	f.client.EXPECT().Enumerate(gomock.Any(), r).Return([]model.DeviceReading{identity("10.0.8.2")}, nil)
	f.client.EXPECT().Fetch(gomock.Any(), "10.0.8.2").Return(telemetry("10.0.8.2", 42), nil)

	summary, err := f.run(t, r)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, summary.ID, got.ID)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, []string{"10.0.8.1-4"}, got.Ranges)
	assert.Contains(t, readings, "10.0.8.2")
}
