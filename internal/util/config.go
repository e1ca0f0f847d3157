// Package util provides configuration, logging and process helpers for minerscan.
package util

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/user/minerscan/internal/iprange"
	"github.com/user/minerscan/internal/model"
)

// ErrRangeExists is returned when a saved range name is already taken.
var ErrRangeExists = errors.New("saved range already exists")

// ErrRangeNotFound is returned when a saved range name is unknown.
var ErrRangeNotFound = errors.New("saved range not found")

// Config holds all application configuration.
type Config struct {
	DataDir  string `mapstructure:"data_dir"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`

	// Scanning
	SavedRanges               []model.SavedRange `mapstructure:"saved_ranges"`
	AutoScanEnabled           bool               `mapstructure:"auto_scan_enabled"`
	AutoScanIntervalSecs      int                `mapstructure:"auto_scan_interval_secs"`
	DetailRefreshIntervalSecs int                `mapstructure:"detail_refresh_interval_secs"`

	// Device communication
	IdentificationTimeoutSecs int `mapstructure:"identification_timeout_secs"`
	ConnectivityTimeoutSecs   int `mapstructure:"connectivity_timeout_secs"`
	ConnectivityRetries       int `mapstructure:"connectivity_retries"`
	DevicePort                int `mapstructure:"device_port"`
	ScanConcurrency           int `mapstructure:"scan_concurrency"`
	MaxConcurrentTasks        int `mapstructure:"max_concurrent_tasks"`

	// Recording
	RecordingsDir           string `mapstructure:"recordings_dir"`
	DiscardRecordingOnClose bool   `mapstructure:"discard_recording_on_close"`

	// Web server
	WebPort int `mapstructure:"web_port"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".minerscan")

	return &Config{
		DataDir:  dataDir,
		LogLevel: "info",
		LogFile:  filepath.Join(dataDir, "minerscan.log"),

		SavedRanges:               []model.SavedRange{},
		AutoScanEnabled:           true,
		AutoScanIntervalSecs:      120,
		DetailRefreshIntervalSecs: 10,

		IdentificationTimeoutSecs: 5,
		ConnectivityTimeoutSecs:   3,
		ConnectivityRetries:       2,
		DevicePort:                4028,
		ScanConcurrency:           64,
		MaxConcurrentTasks:        16,

		RecordingsDir:           filepath.Join(dataDir, "recordings"),
		DiscardRecordingOnClose: true,

		WebPort: 8080,
	}
}

// LoadConfig loads configuration from file and environment.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	// Ensure config directory exists
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	if viper.ConfigFileUsed() == "" {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(cfg.DataDir)
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("MINERSCAN")
	viper.AutomaticEnv()

	setDefaults(cfg)

	// Read config file
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return unmarshal()
}

func setDefaults(cfg *Config) {
	viper.SetDefault("data_dir", cfg.DataDir)
	viper.SetDefault("log_level", cfg.LogLevel)
	viper.SetDefault("log_file", cfg.LogFile)
	viper.SetDefault("saved_ranges", cfg.SavedRanges)
	viper.SetDefault("auto_scan_enabled", cfg.AutoScanEnabled)
	viper.SetDefault("auto_scan_interval_secs", cfg.AutoScanIntervalSecs)
	viper.SetDefault("detail_refresh_interval_secs", cfg.DetailRefreshIntervalSecs)
	viper.SetDefault("identification_timeout_secs", cfg.IdentificationTimeoutSecs)
	viper.SetDefault("connectivity_timeout_secs", cfg.ConnectivityTimeoutSecs)
	viper.SetDefault("connectivity_retries", cfg.ConnectivityRetries)
	viper.SetDefault("device_port", cfg.DevicePort)
	viper.SetDefault("scan_concurrency", cfg.ScanConcurrency)
	viper.SetDefault("max_concurrent_tasks", cfg.MaxConcurrentTasks)
	viper.SetDefault("recordings_dir", cfg.RecordingsDir)
	viper.SetDefault("discard_recording_on_close", cfg.DiscardRecordingOnClose)
	viper.SetDefault("web_port", cfg.WebPort)
}

func unmarshal() (*Config, error) {
	cfg := DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

// SaveConfig writes cfg to the active config file, or to config.yaml in the
// data directory when none was loaded.
func SaveConfig(cfg *Config) error {
	viper.Set("saved_ranges", cfg.SavedRanges)
	viper.Set("auto_scan_enabled", cfg.AutoScanEnabled)
	viper.Set("auto_scan_interval_secs", cfg.AutoScanIntervalSecs)
	viper.Set("detail_refresh_interval_secs", cfg.DetailRefreshIntervalSecs)
	viper.Set("identification_timeout_secs", cfg.IdentificationTimeoutSecs)
	viper.Set("connectivity_timeout_secs", cfg.ConnectivityTimeoutSecs)
	viper.Set("connectivity_retries", cfg.ConnectivityRetries)

	path := viper.ConfigFileUsed()
	if path == "" {
		if err := EnsureDir(cfg.DataDir); err != nil {
			return fmt.Errorf("failed to create data dir: %w", err)
		}
		path = filepath.Join(cfg.DataDir, "config.yaml")
	}

	if err := viper.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// SetValue sets a single key from its string form and saves the result.
func SetValue(cfg *Config, key, value string) error {
	if !viper.IsSet(key) {
		return fmt.Errorf("unknown config key %q", key)
	}
	if key == "saved_ranges" {
		return fmt.Errorf("use the ranges command to edit %s", key)
	}
	viper.Set(key, value)

	next, err := unmarshal()
	if err != nil {
		return err
	}
	*cfg = *next
	return SaveConfig(cfg)
}

// WatchConfig invokes onChange with the reloaded configuration whenever the
// config file is written.
func WatchConfig(onChange func(*Config)) {
	viper.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := unmarshal()
		if err != nil {
			Warn("Config reload failed: %v", err)
			return
		}
		Info("Config reloaded from %s", e.Name)
		onChange(cfg)
	})
	viper.WatchConfig()
}

// AddRange validates and appends a saved range.
func (c *Config) AddRange(name, start, end string) (model.SavedRange, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.SavedRange{}, fmt.Errorf("range name is required")
	}
	if _, ok := c.FindRange(name); ok {
		return model.SavedRange{}, fmt.Errorf("%w: %s", ErrRangeExists, name)
	}

	r, err := iprange.Parse(start, end)
	if err != nil {
		return model.SavedRange{}, err
	}

	saved := model.SavedRange{Name: name, Range: r.String()}
	c.SavedRanges = append(c.SavedRanges, saved)
	return saved, nil
}

// RemoveRange deletes a saved range by name.
func (c *Config) RemoveRange(name string) error {
	for i, sr := range c.SavedRanges {
		if sr.Name == name {
			c.SavedRanges = append(c.SavedRanges[:i], c.SavedRanges[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrRangeNotFound, name)
}

// FindRange looks up a saved range by name.
func (c *Config) FindRange(name string) (model.SavedRange, bool) {
	for _, sr := range c.SavedRanges {
		if sr.Name == name {
			return sr, true
		}
	}
	return model.SavedRange{}, false
}

// Ranges decodes every saved range, skipping malformed entries.
func (c *Config) Ranges() []iprange.Range {
	out := make([]iprange.Range, 0, len(c.SavedRanges))
	for _, sr := range c.SavedRanges {
		r, err := iprange.Decode(sr.Range)
		if err != nil {
			Warn("Ignoring saved range %s: %v", sr.Name, err)
			continue
		}
		out = append(out, r)
	}
	return out
}

// AutoScanInterval returns the auto-scan period.
func (c *Config) AutoScanInterval() time.Duration {
	return secs(c.AutoScanIntervalSecs, 120)
}

// DetailRefreshInterval returns the per-device refresh period.
func (c *Config) DetailRefreshInterval() time.Duration {
	return secs(c.DetailRefreshIntervalSecs, 10)
}

// IdentificationTimeout returns the device identification timeout.
func (c *Config) IdentificationTimeout() time.Duration {
	return secs(c.IdentificationTimeoutSecs, 5)
}

// ConnectivityTimeout returns the TCP connectivity timeout.
func (c *Config) ConnectivityTimeout() time.Duration {
	return secs(c.ConnectivityTimeoutSecs, 3)
}

func secs(v, fallback int) time.Duration {
	if v <= 0 {
		v = fallback
	}
	return time.Duration(v) * time.Second
}

// EnsureDir ensures a directory exists.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

// FileExists checks if a file exists.
func FileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}
