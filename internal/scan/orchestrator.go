// Package scan runs discovery passes over IP ranges and publishes the
// results to the registry and history store.
package scan

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/user/minerscan/internal/device"
	"github.com/user/minerscan/internal/history"
	"github.com/user/minerscan/internal/iprange"
	"github.com/user/minerscan/internal/model"
	"github.com/user/minerscan/internal/registry"
	"github.com/user/minerscan/internal/util"
)

// PassObserver is called once a pass has been published.
type PassObserver func(summary model.PassSummary, readings map[string]model.DeviceReading)

// Orchestrator runs scan passes. At most one pass runs at a time; the
// Progress tracker is the lock that enforces it.
type Orchestrator struct {
	client   device.Client
	progress *Progress
	registry *registry.Registry
	history  *history.Store

	mu        sync.RWMutex
	observers []PassObserver

	wg sync.WaitGroup
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPassObserver registers a hook run after each completed pass.
func WithPassObserver(fn PassObserver) Option {
	return func(o *Orchestrator) {
		o.observers = append(o.observers, fn)
	}
}

// NewOrchestrator wires an orchestrator to its collaborators.
func NewOrchestrator(client device.Client, progress *Progress, reg *registry.Registry, hist *history.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		client:   client,
		progress: progress,
		registry: reg,
		history:  hist,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// AddObserver registers a hook after construction.
func (o *Orchestrator) AddObserver(fn PassObserver) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observers = append(o.observers, fn)
}

// Progress returns the tracker used by this orchestrator.
func (o *Orchestrator) Progress() *Progress {
	return o.progress
}

// Begin claims the tracker for a new pass over ranges. It returns the
// pass id and false when a pass is already running or ranges is empty.
func (o *Orchestrator) Begin(ranges []iprange.Range) (string, bool) {
	if len(ranges) == 0 {
		return "", false
	}

	total := 0
	for _, r := range ranges {
		total += r.Count()
	}

	passID := uuid.NewString()
	if !o.progress.TryBegin(passID, total, len(ranges)) {
		return "", false
	}
	return passID, true
}

// Start begins a pass and runs it in the background.
func (o *Orchestrator) Start(ctx context.Context, ranges []iprange.Range) (string, bool) {
	passID, ok := o.Begin(ranges)
	if !ok {
		return "", false
	}
	o.RunScan(ctx, passID, ranges)
	return passID, true
}

// RunScan runs an already begun pass asynchronously.
func (o *Orchestrator) RunScan(ctx context.Context, passID string, ranges []iprange.Range) {
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		o.Run(ctx, passID, ranges)
	}()
}

// Wait blocks until background passes finish.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Run executes an already begun pass and returns its summary. When ctx is
// cancelled the pass stops between ranges and the registry is left as it
// was; the returned error is the context error.
func (o *Orchestrator) Run(ctx context.Context, passID string, ranges []iprange.Range) (model.PassSummary, error) {
	started := o.progress.Snapshot().StartedAt
	if started.IsZero() {
		started = time.Now()
	}

	summary := model.PassSummary{
		ID:        passID,
		StartedAt: started,
	}
	for _, r := range ranges {
		summary.Ranges = append(summary.Ranges, r.String())
		summary.TotalAddresses += r.Count()
	}

	util.Info("Scan %s started: %d ranges, %d addresses", passID, len(ranges), summary.TotalAddresses)

	staged := make(map[string]model.DeviceReading)

	for _, r := range ranges {
		if err := ctx.Err(); err != nil {
			return o.abort(summary, err)
		}

		found, err := o.client.Enumerate(ctx, r)
		if err != nil {
			if ctx.Err() != nil {
				return o.abort(summary, ctx.Err())
			}
			util.Warn("Scan of range %s failed: %v", r, err)
			summary.FailedRanges++
			o.progress.RangeDone()
			continue
		}

		for _, enumerated := range found {
			if ctx.Err() != nil {
				break
			}
			o.progress.Observe(enumerated.Address)

			reading := o.fetch(ctx, enumerated)
			staged[reading.Address] = reading

			if reading.Hashrate != nil {
				o.history.AppendCoarse(reading.Address, history.HashratePoint{
					Timestamp: reading.ReadAt,
					Hashrate:  *reading.Hashrate,
				})
			}
			o.progress.SetFound(len(staged))
		}

		o.progress.RangeDone()
	}

	if err := ctx.Err(); err != nil {
		return o.abort(summary, err)
	}

	o.registry.ReplaceAll(staged)
	elapsed := o.progress.Finish()

	state := o.progress.Snapshot()
	summary.FinishedAt = time.Now()
	summary.Duration = elapsed
	summary.ScannedAddresses = state.ScannedAddresses
	summary.Found = len(staged)

	util.Info("Scan %s finished in %s: %d miners found", passID, elapsed.Round(time.Millisecond), summary.Found)

	o.mu.RLock()
	observers := append([]PassObserver(nil), o.observers...)
	o.mu.RUnlock()
	for _, fn := range observers {
		fn(summary, staged)
	}

	return summary, nil
}

// fetch reads full telemetry, falling back to the enumerated reading.
func (o *Orchestrator) fetch(ctx context.Context, enumerated model.DeviceReading) model.DeviceReading {
	full, err := o.client.Fetch(ctx, enumerated.Address)
	if err != nil {
		util.Warn("Fetch of %s failed, keeping discovery data: %v", enumerated.Address, err)
		if enumerated.ReadAt.IsZero() {
			enumerated.ReadAt = time.Now()
		}
		return enumerated
	}

	full.Address = enumerated.Address
	if full.Hostname == "" {
		full.Hostname = enumerated.Hostname
	}
	if full.Model == "" {
		full.Model = enumerated.Model
	}
	if full.Firmware == "" {
		full.Firmware = enumerated.Firmware
	}
	if full.HardwareID == "" {
		full.HardwareID = enumerated.HardwareID
	}
	if full.ReadAt.IsZero() {
		full.ReadAt = time.Now()
	}
	return full
}

func (o *Orchestrator) abort(summary model.PassSummary, err error) (model.PassSummary, error) {
	summary.Duration = o.progress.Finish()
	summary.FinishedAt = time.Now()
	summary.ScannedAddresses = o.progress.Snapshot().ScannedAddresses
	util.Warn("Scan %s cancelled: %v", summary.ID, err)
	return summary, err
}
