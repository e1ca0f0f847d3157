// Package report generates fleet reports and exports.
package report

import (
	"sort"
	"time"

	"github.com/user/minerscan/internal/model"
	"github.com/user/minerscan/internal/registry"
)

// HotThreshold is the average temperature above which a miner is flagged.
const HotThreshold = 80.0

// rankSize is how many miners appear in the efficiency rankings.
const rankSize = 5

// Generator creates fleet reports.
type Generator struct {
	registry *registry.Registry
}

// NewGenerator creates a report generator over a registry.
func NewGenerator(reg *registry.Registry) *Generator {
	return &Generator{registry: reg}
}

// ReportData holds all data for a report.
type ReportData struct {
	GeneratedAt time.Time
	LastPass    *model.PassSummary

	Stats  registry.Stats
	Miners []model.MinerEntry
	Models []ModelSummary

	MostEfficient  []model.MinerEntry
	LeastEfficient []model.MinerEntry
	Idle           []model.MinerEntry
	Hot            []model.MinerEntry
}

// ModelSummary aggregates miners of one model.
type ModelSummary struct {
	Model         string
	Count         int
	TotalHashrate float64
	AvgEfficiency float64
}

// Generate builds a report from the current registry contents.
func (g *Generator) Generate(lastPass *model.PassSummary) *ReportData {
	data := &ReportData{
		GeneratedAt: time.Now(),
		LastPass:    lastPass,
		Stats:       g.registry.Stats(),
		Miners:      g.registry.Snapshot(),
	}

	data.Models = summarizeModels(data.Miners)

	var rated []model.MinerEntry
	for _, e := range data.Miners {
		if e.Reading == nil {
			continue
		}
		if _, ok := e.Reading.Efficiency(); ok {
			rated = append(rated, e)
		}
		if !e.Reading.Mining {
			data.Idle = append(data.Idle, e)
		}
		if t := e.Reading.AvgTemperature; t != nil && *t >= HotThreshold {
			data.Hot = append(data.Hot, e)
		}
	}

	best := registry.Apply(append([]model.MinerEntry(nil), rated...),
		registry.Query{SortBy: registry.ColumnEfficiency})
	worst := registry.Apply(append([]model.MinerEntry(nil), rated...),
		registry.Query{SortBy: registry.ColumnEfficiency, Desc: true})
	data.MostEfficient = head(best, rankSize)
	data.LeastEfficient = head(worst, rankSize)

	return data
}

func summarizeModels(entries []model.MinerEntry) []ModelSummary {
	byModel := make(map[string]*ModelSummary)
	effN := make(map[string]int)

	for _, e := range entries {
		name := e.Display.Model
		s, ok := byModel[name]
		if !ok {
			s = &ModelSummary{Model: name}
			byModel[name] = s
		}
		s.Count++
		if hr, ok := e.HashrateTH(); ok {
			s.TotalHashrate += hr
		}
		if e.Reading != nil {
			if eff, ok := e.Reading.Efficiency(); ok {
				s.AvgEfficiency += eff
				effN[name]++
			}
		}
	}

	out := make([]ModelSummary, 0, len(byModel))
	for name, s := range byModel {
		if n := effN[name]; n > 0 {
			s.AvgEfficiency /= float64(n)
		}
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Model < out[j].Model
	})
	return out
}

func head(entries []model.MinerEntry, n int) []model.MinerEntry {
	if len(entries) > n {
		return entries[:n]
	}
	return entries
}
