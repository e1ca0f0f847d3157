// Package registry holds the live list of known miners.
package registry

import (
	"math"
	"net/netip"
	"sort"
	"sync"

	"github.com/user/minerscan/internal/model"
)

// Registry is the authoritative, concurrency-safe miner list. It is
// replaced wholesale at the end of a scan pass and updated in place by
// targeted refreshes.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]model.MinerEntry
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{entries: make(map[string]model.MinerEntry)}
}

// ReplaceAll swaps the whole registry for the given readings.
func (r *Registry) ReplaceAll(readings map[string]model.DeviceReading) {
	next := make(map[string]model.MinerEntry, len(readings))
	for addr, reading := range readings {
		reading.Address = addr
		next[addr] = model.NewMinerEntry(reading)
	}

	r.mu.Lock()
	r.entries = next
	r.mu.Unlock()
}

// UpdateOne replaces the entry for address. It never inserts: unknown
// addresses are left alone and false is returned.
func (r *Registry) UpdateOne(address string, reading model.DeviceReading) bool {
	reading.Address = address
	entry := model.NewMinerEntry(reading)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[address]; !ok {
		return false
	}
	r.entries[address] = entry
	return true
}

// Get returns a copy of the entry for address.
func (r *Registry) Get(address string) (model.MinerEntry, bool) {
	r.mu.RLock()
	e, ok := r.entries[address]
	r.mu.RUnlock()

	if !ok {
		return model.MinerEntry{}, false
	}
	return e.Clone(), true
}

// Len returns the number of entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Snapshot returns a copy of all entries ordered by address.
func (r *Registry) Snapshot() []model.MinerEntry {
	r.mu.RLock()
	out := make([]model.MinerEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return lessAddress(out[i].Address, out[j].Address)
	})
	return out
}

// Addresses returns the known addresses ordered by address.
func (r *Registry) Addresses() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.entries))
	for addr := range r.entries {
		out = append(out, addr)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return lessAddress(out[i], out[j]) })
	return out
}

// TotalHashrate sums the hashrate of every entry in TH/s.
func (r *Registry) TotalHashrate() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var total float64
	for _, e := range r.entries {
		if hr, ok := e.HashrateTH(); ok {
			total += hr
		}
	}
	return total
}

// Stats is the fleet overview.
type Stats struct {
	Count          int     `json:"count"`
	TotalHashrate  float64 `json:"total_hashrate_ths"`
	AvgHashrate    float64 `json:"avg_hashrate_ths"`
	AvgEfficiency  float64 `json:"avg_efficiency_wth"`
	AvgTemperature float64 `json:"avg_temperature_c"`
	Mining         int     `json:"mining"`
}

// Stats computes fleet averages. Averages only include miners reporting
// the value; non-finite efficiencies are ignored.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Stats{Count: len(r.entries)}

	var hrN, effN, tempN int
	var effSum, tempSum float64
	for _, e := range r.entries {
		if e.Reading == nil {
			continue
		}
		if e.Reading.Mining {
			s.Mining++
		}
		if hr, ok := e.HashrateTH(); ok {
			s.TotalHashrate += hr
			hrN++
		}
		if eff, ok := e.Reading.Efficiency(); ok && !math.IsInf(eff, 0) && !math.IsNaN(eff) {
			effSum += eff
			effN++
		}
		if t := e.Reading.AvgTemperature; t != nil {
			tempSum += *t
			tempN++
		}
	}

	if hrN > 0 {
		s.AvgHashrate = s.TotalHashrate / float64(hrN)
	}
	if effN > 0 {
		s.AvgEfficiency = effSum / float64(effN)
	}
	if tempN > 0 {
		s.AvgTemperature = tempSum / float64(tempN)
	}
	return s
}

// lessAddress orders IPv4 addresses numerically, falling back to string
// order for anything unparsable.
func lessAddress(a, b string) bool {
	pa, errA := netip.ParseAddr(a)
	pb, errB := netip.ParseAddr(b)
	if errA != nil || errB != nil {
		return a < b
	}
	return pa.Less(pb)
}
