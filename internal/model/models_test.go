package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleReading() DeviceReading {
	return DeviceReading{
		Address:        "10.0.81.12",
		Hostname:       "rack3-s19",
		Model:          "Antminer S19",
		Hashrate:       Float(100),
		Power:          Float(3250),
		AvgTemperature: Float(64.25),
		Hashboards: []Hashboard{
			{Index: 0, Hashrate: Float(33.3), Temperature: Float(63)},
		},
		Fans:  []Fan{{Index: 1, RPM: Float(5400)}},
		Pools: []Pool{{URL: "stratum+tcp://pool:3333", User: "acct.worker1"}},
	}
}

func TestEfficiency(t *testing.T) {
	r := sampleReading()
	eff, ok := r.Efficiency()
	require.True(t, ok)
	assert.InDelta(t, 32.5, eff, 1e-9)

	r.Hashrate = Float(0)
	_, ok = r.Efficiency()
	assert.False(t, ok)

	r.Hashrate = nil
	_, ok = r.Efficiency()
	assert.False(t, ok)
}

func TestCloneIsDeep(t *testing.T) {
	r := sampleReading()
	c := r.Clone()

	*c.Hashrate = 1
	*c.Hashboards[0].Temperature = 99
	c.Pools[0].URL = "changed"

	assert.Equal(t, 100.0, *r.Hashrate)
	assert.Equal(t, 63.0, *r.Hashboards[0].Temperature)
	assert.Equal(t, "stratum+tcp://pool:3333", r.Pools[0].URL)
}

func TestNewDisplay(t *testing.T) {
	d := NewDisplay(sampleReading())

	assert.Equal(t, "100.00", d.Hashrate)
	assert.Equal(t, "3250 W", d.Wattage)
	assert.Equal(t, "32.5", d.Efficiency)
	assert.Equal(t, "64.2°C", d.Temperature)
	assert.Equal(t, "5400 RPM", d.FanSpeed)
	assert.Equal(t, "acct.worker1", d.Worker)
	assert.Equal(t, NotAvailable, d.Firmware)
}

func TestNewDisplayMissingValues(t *testing.T) {
	d := NewDisplay(DeviceReading{Address: "10.0.0.1"})

	assert.Equal(t, NotAvailable, d.Hashrate)
	assert.Equal(t, NotAvailable, d.Wattage)
	assert.Equal(t, NotAvailable, d.Efficiency)
	assert.Equal(t, NotAvailable, d.FanSpeed)
	assert.Equal(t, NotAvailable, d.Pool)
}

func TestStripUnit(t *testing.T) {
	assert.Equal(t, "3250", StripUnit("3250 W", " W"))
	assert.Equal(t, "64.2", StripUnit("64.2°C", "°C"))
	assert.Equal(t, NotAvailable, StripUnit(NotAvailable, " RPM"))
}
