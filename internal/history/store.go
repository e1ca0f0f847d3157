// Package history keeps bounded time series for the fleet and for
// individual miners.
package history

import (
	"sync"
	"time"

	"github.com/user/minerscan/internal/model"
)

// Ring capacities.
const (
	CoarseCapacity = 288
	FineCapacity   = 9000
	FleetCapacity  = 9000
)

// HashratePoint is one coarse sample taken during a scan pass.
type HashratePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Hashrate  float64   `json:"hashrate_ths"`
}

// MetricsPoint is one fine sample of an observed miner.
type MetricsPoint struct {
	Timestamp          time.Time `json:"timestamp"`
	TotalHashrate      float64   `json:"total_hashrate_ths"`
	Power              float64   `json:"power_w"`
	BoardHashrates     []float64 `json:"board_hashrates_ths"`
	AverageTemperature float64   `json:"avg_temperature_c"`
	BoardTemperatures  []float64 `json:"board_temperatures_c"`
}

// FleetPoint is one fleet-wide hashrate sample.
type FleetPoint struct {
	Timestamp     time.Time `json:"timestamp"`
	TotalHashrate float64   `json:"total_hashrate_ths"`
}

// Store holds the coarse, fine and fleet families. Each family is guarded
// by the same short-held lock; no I/O happens under it.
type Store struct {
	mu     sync.RWMutex
	coarse map[string]*Ring[HashratePoint]
	fine   map[string]*Ring[MetricsPoint]
	fleet  *Ring[FleetPoint]
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		coarse: make(map[string]*Ring[HashratePoint]),
		fine:   make(map[string]*Ring[MetricsPoint]),
		fleet:  NewRing[FleetPoint](FleetCapacity),
	}
}

// AppendCoarse records a hashrate sample for address.
func (s *Store) AppendCoarse(address string, p HashratePoint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ring, ok := s.coarse[address]
	if !ok {
		ring = NewRing[HashratePoint](CoarseCapacity)
		s.coarse[address] = ring
	}
	ring.Push(p)
}

// Coarse returns the coarse series for address, oldest first.
func (s *Store) Coarse(address string) []HashratePoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if ring, ok := s.coarse[address]; ok {
		return ring.Items()
	}
	return nil
}

// CoarseAddresses lists the addresses with coarse history.
func (s *Store) CoarseAddresses() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.coarse))
	for addr := range s.coarse {
		out = append(out, addr)
	}
	return out
}

// AppendFine records a metrics sample for address.
func (s *Store) AppendFine(address string, p MetricsPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ring, ok := s.fine[address]
	if !ok {
		ring = NewRing[MetricsPoint](FineCapacity)
		s.fine[address] = ring
	}
	ring.Push(p)
}

// Fine returns the fine series for address, oldest first.
func (s *Store) Fine(address string) []MetricsPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if ring, ok := s.fine[address]; ok {
		return ring.Items()
	}
	return nil
}

// DropFine discards the fine series of address.
func (s *Store) DropFine(address string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.fine, address)
}

// AppendFleet records a fleet sample.
func (s *Store) AppendFleet(p FleetPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fleet.Push(p)
}

// Fleet returns the fleet series, oldest first.
func (s *Store) Fleet() []FleetPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fleet.Items()
}

// NewMetricsPoint samples a reading into a fine point. Missing values are
// recorded as zero.
func NewMetricsPoint(ts time.Time, r model.DeviceReading) MetricsPoint {
	p := MetricsPoint{
		Timestamp:          ts,
		TotalHashrate:      value(r.Hashrate),
		Power:              value(r.Power),
		AverageTemperature: value(r.AvgTemperature),
		BoardHashrates:     make([]float64, len(r.Hashboards)),
		BoardTemperatures:  make([]float64, len(r.Hashboards)),
	}
	for i, b := range r.Hashboards {
		p.BoardHashrates[i] = value(b.Hashrate)
		p.BoardTemperatures[i] = value(b.Temperature)
	}
	return p
}

func value(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
