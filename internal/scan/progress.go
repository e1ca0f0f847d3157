package scan

import (
	"sync"
	"time"
)

// State is a point-in-time copy of scan progress.
type State struct {
	PassID           string    `json:"pass_id,omitempty"`
	Scanning         bool      `json:"scanning"`
	CurrentAddress   string    `json:"current_address,omitempty"`
	TotalAddresses   int       `json:"total_addresses"`
	ScannedAddresses int       `json:"scanned_addresses"`
	Found            int       `json:"found"`
	StartedAt        time.Time `json:"started_at"`
	TotalRanges      int       `json:"total_ranges"`
	ScannedRanges    int       `json:"scanned_ranges"`
	// LastPassSeconds is the duration of the last finished pass. It is zero
	// while a pass runs; readers derive live elapsed time from StartedAt.
	LastPassSeconds  float64   `json:"last_pass_seconds"`
}

// Elapsed returns the pass duration. While scanning it is measured up to
// now; afterwards it is the recorded duration of the last pass.
func (s State) Elapsed(now time.Time) time.Duration {
	if s.Scanning && !s.StartedAt.IsZero() {
		return now.Sub(s.StartedAt)
	}
	return time.Duration(s.LastPassSeconds * float64(time.Second))
}

// Fraction returns scanned/total in [0,1].
func (s State) Fraction() float64 {
	if s.TotalAddresses <= 0 {
		return 0
	}
	return float64(s.ScannedAddresses) / float64(s.TotalAddresses)
}

// Progress is the shared, lock-guarded progress of the current pass.
type Progress struct {
	mu    sync.RWMutex
	state State
	now   func() time.Time
}

// NewProgress creates an idle tracker.
func NewProgress() *Progress {
	return &Progress{now: time.Now}
}

// TryBegin starts a pass unless one is already running. It resets all
// counters and reports whether the caller now owns the pass.
func (p *Progress) TryBegin(passID string, totalAddresses, totalRanges int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state.Scanning {
		return false
	}
	p.state = State{
		PassID:         passID,
		Scanning:       true,
		TotalAddresses: totalAddresses,
		TotalRanges:    totalRanges,
		StartedAt:      p.now(),
	}
	return true
}

// Observe marks address as the one being processed and advances the
// scanned count, never beyond the total.
func (p *Progress) Observe(address string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.state.CurrentAddress = address
	if p.state.ScannedAddresses < p.state.TotalAddresses {
		p.state.ScannedAddresses++
	}
}

// SetFound records the number of distinct miners staged so far.
func (p *Progress) SetFound(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state.Found = n
}

// RangeDone advances the range counter.
func (p *Progress) RangeDone() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.ScannedRanges < p.state.TotalRanges {
		p.state.ScannedRanges++
	}
}

// Finish ends the pass and records its duration as the last-pass duration.
func (p *Progress) Finish() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := p.now().Sub(p.state.StartedAt)
	p.state.Scanning = false
	p.state.CurrentAddress = ""
	p.state.LastPassSeconds = elapsed.Seconds()
	return elapsed
}

// Snapshot returns a copy of the current state.
func (p *Progress) Snapshot() State {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state
}

// IsScanning reports whether a pass is in flight.
func (p *Progress) IsScanning() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.state.Scanning
}
