// Package observe manages detailed observation of individual miners:
// periodic refreshes, fine history sampling and CSV recordings.
package observe

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/user/minerscan/internal/device"
	"github.com/user/minerscan/internal/history"
	"github.com/user/minerscan/internal/recorder"
	"github.com/user/minerscan/internal/registry"
	"github.com/user/minerscan/internal/util"
	"github.com/user/minerscan/internal/workpool"
)

// ErrUnknownMiner is returned for addresses not in the registry.
var ErrUnknownMiner = errors.New("miner not in registry")

// ErrNotObserved is returned for addresses that are not open.
var ErrNotObserved = errors.New("miner is not being observed")

// Observer tracks the set of miners opened for detailed viewing.
type Observer struct {
	client   device.Client
	registry *registry.Registry
	sampler  *history.Sampler
	recorder *recorder.Recorder
	pool     *workpool.Pool

	discardOnClose bool
	now            func() time.Time

	mu         sync.Mutex
	lastFetch  map[string]time.Time
	recordings map[string]*recorder.State
}

// Option configures an Observer.
type Option func(*Observer)

// WithDiscardOnClose deletes unexported recordings when observation ends.
func WithDiscardOnClose(discard bool) Option {
	return func(o *Observer) {
		o.discardOnClose = discard
	}
}

// New creates an observer.
func New(client device.Client, reg *registry.Registry, sampler *history.Sampler, rec *recorder.Recorder, pool *workpool.Pool, opts ...Option) *Observer {
	o := &Observer{
		client:         client,
		registry:       reg,
		sampler:        sampler,
		recorder:       rec,
		pool:           pool,
		discardOnClose: true,
		now:            time.Now,
		lastFetch:      make(map[string]time.Time),
		recordings:     make(map[string]*recorder.State),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Open starts observing address.
func (o *Observer) Open(address string) error {
	if _, ok := o.registry.Get(address); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMiner, address)
	}

	o.mu.Lock()
	if _, ok := o.lastFetch[address]; !ok {
		o.lastFetch[address] = time.Time{}
	}
	o.mu.Unlock()

	o.sampler.Observe(address)
	return nil
}

// Close stops observing address, ends its recording and drops its fine
// history. Recordings that were never exported are deleted when
// discard-on-close is set.
func (o *Observer) Close(address string) {
	o.mu.Lock()
	delete(o.lastFetch, address)
	state := o.recordings[address]
	delete(o.recordings, address)
	o.mu.Unlock()

	o.sampler.Forget(address)

	if state != nil {
		o.retire(state)
	}
}

// retire stops a recording that is no longer tracked and, with
// discard-on-close set, deletes it unless it was exported.
func (o *Observer) retire(state *recorder.State) {
	o.recorder.Stop(state)
	if o.discardOnClose && !state.Exported() {
		if err := o.recorder.Delete(state); err != nil {
			util.Warn("Failed to delete recording for %s: %v", state.Address(), err)
		}
	}
}

// Observed lists the open addresses.
func (o *Observer) Observed() []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]string, 0, len(o.lastFetch))
	for addr := range o.lastFetch {
		out = append(out, addr)
	}
	return out
}

// IsObserved reports whether address is open.
func (o *Observer) IsObserved(address string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.lastFetch[address]
	return ok
}

// MaybeRefresh submits a refresh of address when interval has elapsed
// since the previous one. It reports whether a refresh was submitted.
func (o *Observer) MaybeRefresh(address string, interval time.Duration) bool {
	now := o.now()

	o.mu.Lock()
	last, ok := o.lastFetch[address]
	if !ok || (!last.IsZero() && now.Sub(last) < interval) {
		o.mu.Unlock()
		return false
	}
	o.lastFetch[address] = now
	o.mu.Unlock()

	if err := o.submit(address); err != nil {
		o.mu.Lock()
		if _, still := o.lastFetch[address]; still {
			o.lastFetch[address] = last
		}
		o.mu.Unlock()
		return false
	}
	return true
}

// RefreshDue runs MaybeRefresh for every observed miner.
func (o *Observer) RefreshDue(interval time.Duration) int {
	n := 0
	for _, addr := range o.Observed() {
		if o.MaybeRefresh(addr, interval) {
			n++
		}
	}
	return n
}

// Refresh forces a refresh of address regardless of timing.
func (o *Observer) Refresh(address string) error {
	if _, ok := o.registry.Get(address); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownMiner, address)
	}

	o.mu.Lock()
	if _, ok := o.lastFetch[address]; ok {
		o.lastFetch[address] = o.now()
	}
	o.mu.Unlock()

	return o.submit(address)
}

func (o *Observer) submit(address string) error {
	return o.pool.TrySubmit("refresh "+address, func(ctx context.Context) {
		o.refresh(ctx, address)
	})
}

// refresh fetches, publishes and records one reading.
func (o *Observer) refresh(ctx context.Context, address string) {
	reading, err := o.client.Fetch(ctx, address)
	if err != nil {
		util.Warn("Refresh of %s failed: %v", address, err)
		return
	}
	if reading.ReadAt.IsZero() {
		reading.ReadAt = o.now()
	}

	if !o.registry.UpdateOne(address, reading) {
		util.Debug("Dropped refresh of %s: no longer in registry", address)
		return
	}

	o.mu.Lock()
	state := o.recordings[address]
	o.mu.Unlock()
	if state == nil {
		return
	}

	entry, ok := o.registry.Get(address)
	if !ok {
		return
	}
	if err := o.recorder.Append(state, entry); err != nil {
		util.Warn("Recording row for %s failed: %v", address, err)
	}
}

// StartRecording begins a CSV recording for an observed miner.
func (o *Observer) StartRecording(address string) (*recorder.State, error) {
	if !o.IsObserved(address) {
		return nil, fmt.Errorf("%w: %s", ErrNotObserved, address)
	}
	entry, ok := o.registry.Get(address)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMiner, address)
	}

	o.mu.Lock()
	if state, ok := o.recordings[address]; ok && state.Recording() {
		o.mu.Unlock()
		return state, nil
	}
	o.mu.Unlock()

	state, err := o.recorder.Start(entry)
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	prev := o.recordings[address]
	o.recordings[address] = state
	o.mu.Unlock()

	// The replaced recording follows the same rules as on Close.
	if prev != nil && prev != state {
		o.retire(prev)
	}
	return state, nil
}

// StopRecording stops the active recording of address. The file is kept
// until the miner is closed.
func (o *Observer) StopRecording(address string) {
	o.mu.Lock()
	state := o.recordings[address]
	o.mu.Unlock()

	if state != nil {
		o.recorder.Stop(state)
	}
}

// Recording returns the recording state of address.
func (o *Observer) Recording(address string) (*recorder.State, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	state, ok := o.recordings[address]
	return state, ok
}

// ExportRecording copies the recording of address to dest.
func (o *Observer) ExportRecording(address, dest string) error {
	state, ok := o.Recording(address)
	if !ok {
		return fmt.Errorf("no recording for %s", address)
	}
	return o.recorder.Export(state, dest)
}

// CloseAll ends every observation.
func (o *Observer) CloseAll() {
	for _, addr := range o.Observed() {
		o.Close(addr)
	}
}
