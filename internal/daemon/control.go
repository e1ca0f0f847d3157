package daemon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/user/minerscan/internal/scan"
)

// CheckRunning checks if a background engine is already running.
func CheckRunning(dataDir string) (bool, int) {
	pidFile := filepath.Join(dataDir, "minerscan.pid")

	data, err := os.ReadFile(pidFile)
	if err != nil {
		return false, 0
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return false, 0
	}

	// Check if process exists
	process, err := os.FindProcess(pid)
	if err != nil {
		return false, 0
	}

	// Send signal 0 to check if process is running
	err = process.Signal(syscall.Signal(0))
	if err != nil {
		return false, 0
	}

	return true, pid
}

// SendStop sends a stop signal to the running engine.
func SendStop(dataDir string) error {
	running, pid := CheckRunning(dataDir)
	if !running {
		return fmt.Errorf("minerscan is not running")
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("failed to find process: %w", err)
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("failed to send signal: %w", err)
	}

	return nil
}

// StatusFile holds serialized engine status.
type StatusFile struct {
	Running       bool        `json:"running"`
	PID           int         `json:"pid"`
	StartTime     string      `json:"start_time"`
	Uptime        string      `json:"uptime"`
	Miners        int         `json:"miners"`
	TotalHashrate float64     `json:"total_hashrate_ths"`
	Observed      []string    `json:"observed,omitempty"`
	Scan          scan.State  `json:"scan"`
	Jobs          []JobStatus `json:"jobs"`
	UpdatedAt     time.Time   `json:"updated_at"`
}

// Snapshot builds the serializable status of the engine.
func (e *Engine) Snapshot() *StatusFile {
	status := e.GetStatus()
	return &StatusFile{
		Running:       status.Running,
		PID:           status.PID,
		StartTime:     status.StartTime.Format(time.DateTime),
		Uptime:        status.Uptime.Round(time.Second).String(),
		Miners:        e.registry.Len(),
		TotalHashrate: e.registry.TotalHashrate(),
		Observed:      e.observer.Observed(),
		Scan:          e.progress.Snapshot(),
		Jobs:          status.Jobs,
		UpdatedAt:     time.Now(),
	}
}

// WriteStatusFile writes the engine status to a file.
func WriteStatusFile(dataDir string, sf *StatusFile) error {
	statusFile := filepath.Join(dataDir, "status.json")

	data, err := json.MarshalIndent(sf, "", "  ")
	if err != nil {
		return err
	}

	tmp := statusFile + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, statusFile)
}

// ReadStatusFile reads the engine status from a file.
func ReadStatusFile(dataDir string) (*StatusFile, error) {
	statusFile := filepath.Join(dataDir, "status.json")

	data, err := os.ReadFile(statusFile)
	if err != nil {
		return nil, err
	}

	var sf StatusFile
	if err := json.Unmarshal(data, &sf); err != nil {
		return nil, err
	}

	return &sf, nil
}
