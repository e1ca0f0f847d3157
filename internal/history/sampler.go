package history

import (
	"sync"
	"time"

	"github.com/user/minerscan/internal/model"
)

// SampleInterval is the fine and fleet sampling cadence.
const SampleInterval = 33 * time.Millisecond

// Source is the live data the sampler copies from.
type Source interface {
	Len() int
	TotalHashrate() float64
	Get(address string) (model.MinerEntry, bool)
}

// Sampler copies the latest cached readings into the fine and fleet rings
// at a fixed cadence. Tick is driven by the caller's clock, either a render
// loop or a ticker.
type Sampler struct {
	store    *Store
	source   Source
	interval time.Duration

	mu       sync.Mutex
	last     time.Time
	observed map[string]struct{}
}

// NewSampler creates a sampler over source writing into store.
func NewSampler(store *Store, source Source) *Sampler {
	return &Sampler{
		store:    store,
		source:   source,
		interval: SampleInterval,
		observed: make(map[string]struct{}),
	}
}

// Observe adds address to the set sampled into fine history.
func (s *Sampler) Observe(address string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observed[address] = struct{}{}
}

// Forget stops sampling address and drops its fine history.
func (s *Sampler) Forget(address string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.observed, address)
	s.store.DropFine(address)
}

// Observed lists the addresses currently sampled.
func (s *Sampler) Observed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]string, 0, len(s.observed))
	for addr := range s.observed {
		out = append(out, addr)
	}
	return out
}

// Tick samples when at least one interval has passed since the previous
// sample. It reports whether a sample was taken.
func (s *Sampler) Tick(now time.Time) bool {
	s.mu.Lock()
	if !s.last.IsZero() && now.Sub(s.last) < s.interval {
		s.mu.Unlock()
		return false
	}
	s.last = now
	addrs := make([]string, 0, len(s.observed))
	for addr := range s.observed {
		addrs = append(addrs, addr)
	}
	s.mu.Unlock()

	for _, addr := range addrs {
		entry, ok := s.source.Get(addr)
		if !ok || entry.Reading == nil {
			continue
		}
		s.appendFine(addr, NewMetricsPoint(now, *entry.Reading))
	}

	if s.source.Len() > 0 {
		s.store.AppendFleet(FleetPoint{Timestamp: now, TotalHashrate: s.source.TotalHashrate()})
	}
	return true
}

// appendFine stores p unless address was forgotten after Tick listed it.
func (s *Sampler) appendFine(address string, p MetricsPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.observed[address]; !ok {
		return
	}
	s.store.AppendFine(address, p)
}
