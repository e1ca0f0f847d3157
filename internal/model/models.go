// Package model defines core data structures for minerscan.
package model

import (
	"encoding/json"
	"time"
)

// Hashboard is a single hashing board inside a device.
type Hashboard struct {
	Index       int      `json:"index"`
	Hashrate    *float64 `json:"hashrate_ths,omitempty"`
	Temperature *float64 `json:"temperature_c,omitempty"`
	ChipCount   int      `json:"chip_count,omitempty"`
}

// Fan is a single cooling fan.
type Fan struct {
	Index int      `json:"index"`
	RPM   *float64 `json:"rpm,omitempty"`
}

// Pool is a configured mining pool.
type Pool struct {
	URL    string `json:"url"`
	User   string `json:"user"`
	Active bool   `json:"active"`
}

// DeviceReading is a snapshot of one device at one instant.
type DeviceReading struct {
	// Identity
	Address      string `json:"address"`
	HardwareID   string `json:"hardware_id,omitempty"`
	Hostname     string `json:"hostname,omitempty"`
	Model        string `json:"model,omitempty"`
	Firmware     string `json:"firmware,omitempty"`
	ControlBoard string `json:"control_board,omitempty"`

	// Performance
	Hashrate       *float64    `json:"hashrate_ths,omitempty"`
	Power          *float64    `json:"power_w,omitempty"`
	AvgTemperature *float64    `json:"avg_temperature_c,omitempty"`
	Hashboards     []Hashboard `json:"hashboards,omitempty"`
	Fans           []Fan       `json:"fans,omitempty"`

	// Operational state
	Mining        bool          `json:"mining"`
	LightFlashing bool          `json:"light_flashing"`
	Pools         []Pool        `json:"pools,omitempty"`
	Uptime        time.Duration `json:"uptime"`

	Raw    json.RawMessage `json:"raw,omitempty"`
	ReadAt time.Time       `json:"read_at"`
}

// Efficiency returns power/hashrate in W/TH. ok is false when either value
// is missing or hashrate is zero.
func (r DeviceReading) Efficiency() (float64, bool) {
	if r.Hashrate == nil || r.Power == nil || *r.Hashrate <= 0 {
		return 0, false
	}
	return *r.Power / *r.Hashrate, true
}

// FirstFanRPM returns the first fan that reports a speed.
func (r DeviceReading) FirstFanRPM() (float64, bool) {
	if len(r.Fans) == 0 || r.Fans[0].RPM == nil {
		return 0, false
	}
	return *r.Fans[0].RPM, true
}

// PrimaryPool returns the first configured pool, if any.
func (r DeviceReading) PrimaryPool() (Pool, bool) {
	if len(r.Pools) == 0 {
		return Pool{}, false
	}
	return r.Pools[0], true
}

// Clone returns a deep copy so consumers never share slices or pointers.
func (r DeviceReading) Clone() DeviceReading {
	c := r
	c.Hashrate = cloneFloat(r.Hashrate)
	c.Power = cloneFloat(r.Power)
	c.AvgTemperature = cloneFloat(r.AvgTemperature)

	if r.Hashboards != nil {
		c.Hashboards = make([]Hashboard, len(r.Hashboards))
		for i, b := range r.Hashboards {
			b.Hashrate = cloneFloat(b.Hashrate)
			b.Temperature = cloneFloat(b.Temperature)
			c.Hashboards[i] = b
		}
	}
	if r.Fans != nil {
		c.Fans = make([]Fan, len(r.Fans))
		for i, f := range r.Fans {
			f.RPM = cloneFloat(f.RPM)
			c.Fans[i] = f
		}
	}
	if r.Pools != nil {
		c.Pools = append([]Pool(nil), r.Pools...)
	}
	if r.Raw != nil {
		c.Raw = append(json.RawMessage(nil), r.Raw...)
	}
	return c
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

func cloneFloat(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// SavedRange is a named, encoded address range kept in the configuration.
type SavedRange struct {
	Name  string `json:"name" mapstructure:"name" yaml:"name"`
	Range string `json:"range" mapstructure:"range" yaml:"range"`
}

// PassSummary describes a completed scan pass.
type PassSummary struct {
	ID               string        `json:"id"`
	Ranges           []string      `json:"ranges"`
	StartedAt        time.Time     `json:"started_at"`
	FinishedAt       time.Time     `json:"finished_at"`
	TotalAddresses   int           `json:"total_addresses"`
	ScannedAddresses int           `json:"scanned_addresses"`
	Found            int           `json:"found"`
	FailedRanges     int           `json:"failed_ranges"`
	Duration         time.Duration `json:"duration"`
}
