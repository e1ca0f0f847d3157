package cgminer

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/user/minerscan/internal/device"
	"github.com/user/minerscan/internal/model"
)

// parseVersion turns a "version" response into an identity reading.
func parseVersion(addr string, resp map[string]any) (model.DeviceReading, error) {
	if err := checkStatus(resp); err != nil {
		return model.DeviceReading{}, err
	}

	sections := section(resp, "VERSION")
	if len(sections) == 0 {
		return model.DeviceReading{}, device.ErrNotMiner
	}
	v := sections[0]

	reading := model.DeviceReading{
		Address: addr,
		ReadAt:  time.Now(),
	}
	applyVersion(&reading, v)
	if reading.Model == "" && str(v, "CGMiner") == "" && str(v, "BMMiner") == "" {
		return model.DeviceReading{}, device.ErrNotMiner
	}

	return reading, nil
}

// applyVersion copies model and firmware from a VERSION entry.
func applyVersion(reading *model.DeviceReading, v map[string]any) {
	reading.Model = str(v, "Type")
	if reading.Model == "" {
		reading.Model = str(v, "Miner")
	}
	reading.Firmware = firstOf(v, "CompileTime", "BMMiner", "CGMiner", "Miner")
}

// parseReading decodes a "version+summary+stats+pools" response.
func parseReading(addr string, resp map[string]any) (model.DeviceReading, error) {
	reading := model.DeviceReading{
		Address: addr,
		ReadAt:  time.Now(),
	}

	if versions := firstSection(resp, "version", "VERSION"); len(versions) > 0 {
		applyVersion(&reading, versions[0])
	}

	summary := firstSection(resp, "summary", "SUMMARY")
	if len(summary) == 0 {
		return reading, fmt.Errorf("%w: missing summary", ErrCommandFailed)
	}
	s := summary[0]

	if ghs, ok := num(s, "GHS 5s"); ok {
		reading.Hashrate = model.Float(ghs / 1000)
	} else if mhs, ok := num(s, "MHS 5s"); ok {
		reading.Hashrate = model.Float(mhs / 1e6)
	}
	if elapsed, ok := num(s, "Elapsed"); ok {
		reading.Uptime = time.Duration(elapsed) * time.Second
	}
	reading.Mining = reading.Hashrate != nil && *reading.Hashrate > 0

	for _, st := range firstSection(resp, "stats", "STATS") {
		if t := str(st, "Type"); t != "" && reading.Model == "" {
			reading.Model = t
		}
		if cb := str(st, "Miner"); cb != "" && reading.ControlBoard == "" {
			reading.ControlBoard = cb
		}
		if p, ok := num(st, "Power"); ok && reading.Power == nil {
			reading.Power = model.Float(p)
		}
		if boards := parseBoards(st); len(boards) > 0 {
			reading.Hashboards = boards
		}
		if fans := parseFans(st); len(fans) > 0 {
			reading.Fans = fans
		}
	}
	reading.AvgTemperature = averageBoardTemp(reading.Hashboards)

	for _, p := range firstSection(resp, "pools", "POOLS") {
		reading.Pools = append(reading.Pools, model.Pool{
			URL:    str(p, "URL"),
			User:   str(p, "User"),
			Active: str(p, "Status") == "Alive" && str(p, "Stratum Active") != "false",
		})
	}

	if raw, err := json.Marshal(resp); err == nil {
		reading.Raw = raw
	}

	return reading, nil
}

// checkStatus returns an error when the first STATUS entry reports failure.
func checkStatus(resp map[string]any) error {
	status := section(resp, "STATUS")
	if len(status) == 0 {
		return nil
	}
	switch str(status[0], "STATUS") {
	case "E", "F":
		return fmt.Errorf("%w: %s", ErrCommandFailed, str(status[0], "Msg"))
	}
	return nil
}

func parseBoards(st map[string]any) []model.Hashboard {
	var boards []model.Hashboard
	for _, idx := range indexedKeys(st, "chain_rate") {
		b := model.Hashboard{Index: idx - 1}
		if ghs, ok := num(st, "chain_rate"+strconv.Itoa(idx)); ok {
			b.Hashrate = model.Float(ghs / 1000)
		}
		if t, ok := num(st, "temp2_"+strconv.Itoa(idx)); ok && t > 0 {
			b.Temperature = model.Float(t)
		}
		if chips, ok := num(st, "chain_acn"+strconv.Itoa(idx)); ok {
			b.ChipCount = int(chips)
		}
		boards = append(boards, b)
	}
	return boards
}

func parseFans(st map[string]any) []model.Fan {
	var fans []model.Fan
	for _, idx := range indexedKeys(st, "fan") {
		rpm, ok := num(st, "fan"+strconv.Itoa(idx))
		if !ok {
			continue
		}
		// Stopped fans keep their slot so recording columns stay aligned.
		fans = append(fans, model.Fan{Index: idx, RPM: model.Float(max(rpm, 0))})
	}
	return fans
}

func averageBoardTemp(boards []model.Hashboard) *float64 {
	var sum float64
	var n int
	for _, b := range boards {
		if b.Temperature != nil {
			sum += *b.Temperature
			n++
		}
	}
	if n == 0 {
		return nil
	}
	return model.Float(sum / float64(n))
}

// indexedKeys returns the sorted numeric suffixes of keys like "fan3".
func indexedKeys(m map[string]any, prefix string) []int {
	var out []int
	for k := range m {
		rest, ok := strings.CutPrefix(k, prefix)
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(rest); err == nil && n > 0 {
			out = append(out, n)
		}
	}
	sort.Ints(out)
	return out
}

// firstSection finds a named section either nested under a multi-command
// key ("summary": [{...}]) or at the top level.
func firstSection(resp map[string]any, multiKey, key string) []map[string]any {
	if nested, ok := resp[multiKey].([]any); ok && len(nested) > 0 {
		if inner, ok := nested[0].(map[string]any); ok {
			return section(inner, key)
		}
	}
	return section(resp, key)
}

func section(m map[string]any, key string) []map[string]any {
	list, ok := m[key].([]any)
	if !ok {
		return nil
	}
	out := make([]map[string]any, 0, len(list))
	for _, item := range list {
		if obj, ok := item.(map[string]any); ok {
			out = append(out, obj)
		}
	}
	return out
}

func str(m map[string]any, key string) string {
	switch v := m[key].(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	}
	return ""
}

func firstOf(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v := str(m, k); v != "" {
			return v
		}
	}
	return ""
}

// num reads a numeric field that firmware may encode as number or string.
func num(m map[string]any, key string) (float64, bool) {
	switch v := m[key].(type) {
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}
