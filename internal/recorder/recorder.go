// Package recorder writes per-miner telemetry to CSV files.
package recorder

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/user/minerscan/internal/model"
	"github.com/user/minerscan/internal/util"
)

// ErrNotRecording is returned when appending to a stopped recording.
var ErrNotRecording = errors.New("recording is stopped")

var baseHeader = []string{
	"DeviceAddress", "HardwareId", "Model", "Firmware", "Timestamp",
	"TotalHashrate(TH/s)", "Power(W)", "Efficiency(W/TH)", "AvgTemperature(°C)",
}

// Schema is the board and fan topology a recording was started with.
type Schema struct {
	Boards int `json:"boards"`
	Fans   int `json:"fans"`
}

// Header returns the CSV header for the schema.
func (s Schema) Header() []string {
	h := append([]string(nil), baseHeader...)
	for i := 0; i < s.Boards; i++ {
		h = append(h, fmt.Sprintf("Board%dHashrate", i))
	}
	for i := 0; i < s.Boards; i++ {
		h = append(h, fmt.Sprintf("Board%dTemp", i))
	}
	for i := 1; i <= s.Fans; i++ {
		h = append(h, fmt.Sprintf("Fan%dRPM", i))
	}
	return h
}

// Columns returns the total column count.
func (s Schema) Columns() int {
	return len(baseHeader) + 2*s.Boards + s.Fans
}

// SchemaFor sizes a schema to the reading's current topology.
func SchemaFor(r *model.DeviceReading) Schema {
	if r == nil {
		return Schema{}
	}
	return Schema{Boards: len(r.Hashboards), Fans: len(r.Fans)}
}

// State tracks one active or finished recording.
type State struct {
	mu        sync.Mutex
	path      string
	address   string
	startedAt time.Time
	rows      int
	recording bool
	exported  bool
	schema    Schema
}

// Path returns the recording file path.
func (s *State) Path() string {
	return s.path
}

// Address returns the recorded miner address.
func (s *State) Address() string {
	return s.address
}

// Schema returns the fixed schema.
func (s *State) Schema() Schema {
	return s.schema
}

// StartedAt returns when the recording began.
func (s *State) StartedAt() time.Time {
	return s.startedAt
}

// Rows returns the number of data rows written.
func (s *State) Rows() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows
}

// Recording reports whether rows are still being appended.
func (s *State) Recording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recording
}

// Exported reports whether the file was copied out at least once.
func (s *State) Exported() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.exported
}

// Recorder creates recordings in a directory.
type Recorder struct {
	dir string
	now func() time.Time
}

// New creates a recorder writing into dir.
func New(dir string) *Recorder {
	return &Recorder{dir: dir, now: time.Now}
}

// Dir returns the recordings directory.
func (r *Recorder) Dir() string {
	return r.dir
}

// Start creates the recording file and writes its header. The schema is
// taken from the entry's reading and never changes afterwards.
func (r *Recorder) Start(entry model.MinerEntry) (*State, error) {
	if err := util.EnsureDir(r.dir); err != nil {
		return nil, fmt.Errorf("create recordings dir: %w", err)
	}

	now := r.now()
	schema := SchemaFor(entry.Reading)

	f, path, err := createUnique(r.dir, FileName(entry, now))
	if err != nil {
		return nil, fmt.Errorf("create recording: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(schema.Header()); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	util.Info("Recording %s to %s", entry.Address, path)

	return &State{
		path:      path,
		address:   entry.Address,
		startedAt: now,
		recording: true,
		schema:    schema,
	}, nil
}

// Append writes one row for entry. It is a no-op when the recording is
// stopped or the entry carries no reading.
func (r *Recorder) Append(state *State, entry model.MinerEntry) error {
	state.mu.Lock()
	defer state.mu.Unlock()

	if !state.recording || entry.Reading == nil {
		return nil
	}

	f, err := os.OpenFile(state.path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open recording: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(Row(state.schema, entry, r.now())); err != nil {
		return fmt.Errorf("append row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("append row: %w", err)
	}

	state.rows++
	return nil
}

// Stop ends the recording. The file is kept.
func (r *Recorder) Stop(state *State) {
	state.mu.Lock()
	defer state.mu.Unlock()
	if state.recording {
		util.Info("Stopped recording %s after %d rows", state.address, state.rows)
	}
	state.recording = false
}

// Export copies the recording verbatim to dest.
func (r *Recorder) Export(state *State, dest string) error {
	state.mu.Lock()
	defer state.mu.Unlock()

	src, err := os.Open(state.path)
	if err != nil {
		return fmt.Errorf("open recording: %w", err)
	}
	defer src.Close()

	if dir := filepath.Dir(dest); dir != "" {
		if err := util.EnsureDir(dir); err != nil {
			return fmt.Errorf("create export dir: %w", err)
		}
	}

	dst, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("create export: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("copy recording: %w", err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("close export: %w", err)
	}

	state.exported = true
	return nil
}

// Delete removes the recording file.
func (r *Recorder) Delete(state *State) error {
	state.mu.Lock()
	defer state.mu.Unlock()

	state.recording = false
	if err := os.Remove(state.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete recording: %w", err)
	}
	return nil
}

// FileName builds recording_{ip}_{model}_{hwid}_{timestamp}.csv.
func FileName(entry model.MinerEntry, ts time.Time) string {
	modelName, hwid := "unknown", "unknown"
	if entry.Reading != nil {
		if m := strings.ReplaceAll(entry.Reading.Model, " ", ""); m != "" {
			modelName = m
		}
		if entry.Reading.HardwareID != "" {
			hwid = entry.Reading.HardwareID
		}
	}
	name := fmt.Sprintf("recording_%s_%s_%s_%s.csv",
		entry.Address, modelName, hwid, ts.Format("2006-01-02_15-04-05"))
	return sanitize(name)
}

// Row formats one data row padded or truncated to the schema.
func Row(schema Schema, entry model.MinerEntry, ts time.Time) []string {
	r := entry.Reading
	row := make([]string, 0, schema.Columns())

	hwid := r.HardwareID
	if hwid == "" {
		hwid = model.NotAvailable
	}
	eff, _ := r.Efficiency()

	row = append(row,
		entry.Address,
		hwid,
		r.Model,
		r.Firmware,
		ts.Format(time.DateTime),
		fixed(val(r.Hashrate), 2),
		fixed(val(r.Power), 0),
		fixed(eff, 1),
		fixed(val(r.AvgTemperature), 1),
	)

	for i := 0; i < schema.Boards; i++ {
		var v float64
		if i < len(r.Hashboards) {
			v = val(r.Hashboards[i].Hashrate)
		}
		row = append(row, fixed(v, 2))
	}
	for i := 0; i < schema.Boards; i++ {
		var v float64
		if i < len(r.Hashboards) {
			v = val(r.Hashboards[i].Temperature)
		}
		row = append(row, fixed(v, 1))
	}
	for i := 0; i < schema.Fans; i++ {
		var v float64
		if i < len(r.Fans) {
			v = val(r.Fans[i].RPM)
		}
		row = append(row, fixed(v, 0))
	}
	return row
}

func fixed(v float64, prec int) string {
	return strconv.FormatFloat(v, 'f', prec, 64)
}

func val(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func sanitize(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '-'
		}
		return r
	}, name)
}

// maxNameAttempts bounds the numbered variants tried for one file name.
const maxNameAttempts = 100

// createUnique creates name in dir without truncating an existing file.
// On collision it tries name_2.csv, name_3.csv and so on.
func createUnique(dir, name string) (*os.File, string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	for i := 1; i <= maxNameAttempts; i++ {
		candidate := name
		if i > 1 {
			candidate = fmt.Sprintf("%s_%d%s", base, i, ext)
		}
		path := filepath.Join(dir, candidate)

		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", err
		}
	}
	return nil, "", fmt.Errorf("%s: %w", name, os.ErrExist)
}
