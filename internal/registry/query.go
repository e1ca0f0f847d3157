package registry

import (
	"fmt"
	"sort"
	"strings"

	"github.com/user/minerscan/internal/model"
)

// Column identifies a sortable table column.
type Column string

const (
	ColumnAddress      Column = "address"
	ColumnHostname     Column = "hostname"
	ColumnModel        Column = "model"
	ColumnFirmware     Column = "firmware"
	ColumnControlBoard Column = "control_board"
	ColumnHashrate     Column = "hashrate"
	ColumnWattage      Column = "wattage"
	ColumnEfficiency   Column = "efficiency"
	ColumnTemperature  Column = "temperature"
	ColumnFanSpeed     Column = "fan_speed"
	ColumnPool         Column = "pool"
	ColumnWorker       Column = "worker"
)

// Columns lists the sortable columns in table order.
var Columns = []Column{
	ColumnAddress, ColumnHostname, ColumnModel, ColumnFirmware, ColumnControlBoard,
	ColumnHashrate, ColumnWattage, ColumnEfficiency, ColumnTemperature,
	ColumnFanSpeed, ColumnPool, ColumnWorker,
}

// ParseColumn validates a column name. An empty name means address.
func ParseColumn(s string) (Column, error) {
	if s == "" {
		return ColumnAddress, nil
	}
	for _, c := range Columns {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown sort column %q", s)
}

// Query filters and orders a snapshot.
type Query struct {
	Search string
	SortBy Column
	Desc   bool
}

// Query returns the snapshot entries matching q.
func (r *Registry) Query(q Query) []model.MinerEntry {
	return Apply(r.Snapshot(), q)
}

// Apply filters and sorts entries in place and returns the filtered slice.
func Apply(entries []model.MinerEntry, q Query) []model.MinerEntry {
	needle := strings.ToLower(strings.TrimSpace(q.Search))
	if needle != "" {
		kept := entries[:0]
		for _, e := range entries {
			if matches(e, needle) {
				kept = append(kept, e)
			}
		}
		entries = kept
	}

	col := q.SortBy
	if col == "" {
		col = ColumnAddress
	}

	sort.SliceStable(entries, func(i, j int) bool {
		c := compare(entries[i], entries[j], col)
		if c == 0 {
			return lessAddress(entries[i].Address, entries[j].Address)
		}
		if q.Desc {
			return c > 0
		}
		return c < 0
	})
	return entries
}

func matches(e model.MinerEntry, needle string) bool {
	fields := []string{
		e.Address, e.Display.Hostname, e.Display.Model, e.Display.Firmware,
		e.Display.ControlBoard, e.Display.Pool, e.Display.Worker,
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), needle) {
			return true
		}
	}
	return false
}

func compare(a, b model.MinerEntry, col Column) int {
	switch col {
	case ColumnAddress:
		switch {
		case lessAddress(a.Address, b.Address):
			return -1
		case lessAddress(b.Address, a.Address):
			return 1
		}
		return 0
	case ColumnHostname:
		return strings.Compare(a.Display.Hostname, b.Display.Hostname)
	case ColumnModel:
		return strings.Compare(a.Display.Model, b.Display.Model)
	case ColumnFirmware:
		return strings.Compare(a.Display.Firmware, b.Display.Firmware)
	case ColumnControlBoard:
		return strings.Compare(a.Display.ControlBoard, b.Display.ControlBoard)
	case ColumnPool:
		return strings.Compare(a.Display.Pool, b.Display.Pool)
	case ColumnWorker:
		return strings.Compare(a.Display.Worker, b.Display.Worker)
	}

	va, okA := numeric(a, col)
	vb, okB := numeric(b, col)
	switch {
	case !okA && !okB:
		return 0
	case !okA:
		return -1
	case !okB:
		return 1
	case va < vb:
		return -1
	case va > vb:
		return 1
	}
	return 0
}

func numeric(e model.MinerEntry, col Column) (float64, bool) {
	r := e.Reading
	if r == nil {
		return 0, false
	}
	switch col {
	case ColumnHashrate:
		return deref(r.Hashrate)
	case ColumnWattage:
		return deref(r.Power)
	case ColumnEfficiency:
		return r.Efficiency()
	case ColumnTemperature:
		return deref(r.AvgTemperature)
	case ColumnFanSpeed:
		return r.FirstFanRPM()
	}
	return 0, false
}

func deref(p *float64) (float64, bool) {
	if p == nil {
		return 0, false
	}
	return *p, true
}
