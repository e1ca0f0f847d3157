package model

import (
	"fmt"
	"strings"
)

// NotAvailable is shown for values a device did not report.
const NotAvailable = "N/A"

// Display holds the preformatted strings shown in tables and exports.
type Display struct {
	Hostname     string `json:"hostname"`
	Model        string `json:"model"`
	Firmware     string `json:"firmware"`
	ControlBoard string `json:"control_board"`
	Hashrate     string `json:"hashrate"`
	Wattage      string `json:"wattage"`
	Efficiency   string `json:"efficiency"`
	Temperature  string `json:"temperature"`
	FanSpeed     string `json:"fan_speed"`
	Pool         string `json:"pool"`
	Worker       string `json:"worker"`
}

// MinerEntry is one row of the miner registry.
type MinerEntry struct {
	Address string         `json:"address"`
	Reading *DeviceReading `json:"reading,omitempty"`
	Display Display        `json:"display"`
}

// NewMinerEntry builds an entry and its display strings from a reading.
// The reading is copied.
func NewMinerEntry(r DeviceReading) MinerEntry {
	reading := r.Clone()
	return MinerEntry{
		Address: r.Address,
		Reading: &reading,
		Display: NewDisplay(reading),
	}
}

// Clone deep-copies the entry.
func (e MinerEntry) Clone() MinerEntry {
	c := e
	if e.Reading != nil {
		r := e.Reading.Clone()
		c.Reading = &r
	}
	return c
}

// HashrateTH returns the entry hashrate in TH/s.
func (e MinerEntry) HashrateTH() (float64, bool) {
	if e.Reading == nil || e.Reading.Hashrate == nil {
		return 0, false
	}
	return *e.Reading.Hashrate, true
}

// NewDisplay formats a reading for presentation.
func NewDisplay(r DeviceReading) Display {
	d := Display{
		Hostname:     orNA(r.Hostname),
		Model:        orNA(r.Model),
		Firmware:     orNA(r.Firmware),
		ControlBoard: orNA(r.ControlBoard),
		Hashrate:     NotAvailable,
		Wattage:      NotAvailable,
		Efficiency:   NotAvailable,
		Temperature:  NotAvailable,
		FanSpeed:     NotAvailable,
		Pool:         NotAvailable,
		Worker:       NotAvailable,
	}

	if r.Hashrate != nil {
		d.Hashrate = fmt.Sprintf("%.2f", *r.Hashrate)
	}
	if r.Power != nil {
		d.Wattage = fmt.Sprintf("%.0f W", *r.Power)
	}
	if eff, ok := r.Efficiency(); ok {
		d.Efficiency = fmt.Sprintf("%.1f", eff)
	}
	if r.AvgTemperature != nil {
		d.Temperature = fmt.Sprintf("%.1f°C", *r.AvgTemperature)
	}
	if rpm, ok := r.FirstFanRPM(); ok {
		d.FanSpeed = fmt.Sprintf("%.0f RPM", rpm)
	}
	if p, ok := r.PrimaryPool(); ok {
		d.Pool = orNA(p.URL)
		d.Worker = orNA(p.User)
	}

	return d
}

// StripUnit removes a display unit suffix, leaving N/A untouched.
func StripUnit(s string, units ...string) string {
	for _, u := range units {
		s = strings.TrimSuffix(s, u)
	}
	return strings.TrimSpace(s)
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return NotAvailable
	}
	return s
}
