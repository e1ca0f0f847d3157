// Package daemon wires the scan engine together and runs its background
// activities.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/user/minerscan/internal/control"
	"github.com/user/minerscan/internal/device"
	"github.com/user/minerscan/internal/device/cgminer"
	"github.com/user/minerscan/internal/history"
	"github.com/user/minerscan/internal/iprange"
	"github.com/user/minerscan/internal/model"
	"github.com/user/minerscan/internal/observe"
	"github.com/user/minerscan/internal/recorder"
	"github.com/user/minerscan/internal/registry"
	"github.com/user/minerscan/internal/scan"
	"github.com/user/minerscan/internal/storage"
	"github.com/user/minerscan/internal/util"
	"github.com/user/minerscan/internal/workpool"
)

// ErrAlreadyRunning is returned by Start on a running engine.
var ErrAlreadyRunning = errors.New("engine already running")

// ErrScanInProgress is returned when a pass is already running.
var ErrScanInProgress = errors.New("scan already in progress")

// ErrNoRanges is returned when a scan is requested without ranges.
var ErrNoRanges = errors.New("no ranges to scan")

// RunOptions selects the background activities Start launches.
type RunOptions struct {
	// PIDFile writes minerscan.pid so stop and status can find the process.
	PIDFile bool
	// HandleSignals stops the engine on SIGINT/SIGTERM.
	HandleSignals bool
	// HeadlessSampling drives the history sampler from a ticker. Interactive
	// front ends tick the sampler from their render loop instead.
	HeadlessSampling bool
	// WatchConfig reloads saved ranges and intervals when the file changes.
	WatchConfig bool
}

// Engine owns the shared state of one run: registry, progress, history,
// observers and the jobs that feed them.
type Engine struct {
	mu     sync.RWMutex
	config *util.Config

	db        *storage.DB
	client    device.Client
	registry  *registry.Registry
	progress  *scan.Progress
	history   *history.Store
	sampler   *history.Sampler
	orch      *scan.Orchestrator
	pool      *workpool.Pool
	recorder  *recorder.Recorder
	observer  *observe.Observer
	control   *control.Controller
	scheduler *Scheduler

	pidFile   string
	persist   bool
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	running   bool
	stopOnce  sync.Once
	startTime time.Time
	opts      RunOptions
}

// Option configures an Engine.
type Option func(*Engine)

// WithClient replaces the CGMiner client.
func WithClient(c device.Client) Option {
	return func(e *Engine) {
		e.client = c
	}
}

// WithDB uses an already open database instead of the data directory one.
func WithDB(db *storage.DB) Option {
	return func(e *Engine) {
		e.db = db
	}
}

// WithoutPersistence disables SQLite persistence.
func WithoutPersistence() Option {
	return func(e *Engine) {
		e.persist = false
	}
}

// New creates an engine from cfg.
func New(cfg *util.Config, opts ...Option) (*Engine, error) {
	ctx, cancel := context.WithCancel(context.Background())

	e := &Engine{
		config:   cfg,
		registry: registry.New(),
		progress: scan.NewProgress(),
		history:  history.NewStore(),
		pidFile:  filepath.Join(cfg.DataDir, "minerscan.pid"),
		persist:  true,
		ctx:      ctx,
		cancel:   cancel,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.client == nil {
		e.client = cgminer.New(
			cgminer.WithPort(cfg.DevicePort),
			cgminer.WithConnectTimeout(cfg.ConnectivityTimeout()),
			cgminer.WithIdentifyTimeout(cfg.IdentificationTimeout()),
			cgminer.WithRetries(cfg.ConnectivityRetries),
			cgminer.WithConcurrency(cfg.ScanConcurrency),
		)
	}

	if !e.persist {
		e.db = nil
	} else if e.db == nil {
		db, err := storage.Initialize(cfg.DataDir)
		if err != nil {
			util.Warn("Persistence disabled: %v", err)
		} else {
			e.db = db
		}
	}

	e.sampler = history.NewSampler(e.history, e.registry)
	e.pool = workpool.New(ctx, cfg.MaxConcurrentTasks)
	e.recorder = recorder.New(cfg.RecordingsDir)
	e.observer = observe.New(e.client, e.registry, e.sampler, e.recorder, e.pool,
		observe.WithDiscardOnClose(cfg.DiscardRecordingOnClose))
	e.control = control.New(e.client, e.registry, e.observer, cfg.MaxConcurrentTasks)
	e.orch = scan.NewOrchestrator(e.client, e.progress, e.registry, e.history,
		scan.WithPassObserver(e.persistPass))
	e.scheduler = NewScheduler(ctx)

	if e.db != nil {
		n, err := storage.NewHistoryStorage(e.db, history.CoarseCapacity).Restore(e.history)
		if err != nil {
			util.Warn("Failed to restore hashrate history: %v", err)
		} else if n > 0 {
			util.Info("Restored %d hashrate history points", n)
		}
	}

	return e, nil
}

// Start launches the background activities selected by opts.
func (e *Engine) Start(opts RunOptions) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return ErrAlreadyRunning
	}
	e.running = true
	e.startTime = time.Now()
	e.opts = opts
	e.mu.Unlock()

	if opts.PIDFile {
		if err := e.writePIDFile(); err != nil {
			return fmt.Errorf("failed to write PID file: %w", err)
		}
	}

	util.Info("Engine starting...")

	e.registerJobs()

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.scheduler.Run()
	}()

	if opts.HeadlessSampling {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.runSampler()
		}()
	}

	if opts.HandleSignals {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.handleSignals()
		}()
	}

	if opts.WatchConfig {
		util.WatchConfig(e.ApplyConfig)
	}

	util.Info("Engine started with PID %d", os.Getpid())

	return nil
}

// Wait waits for the engine to finish.
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Done is closed when the engine stops.
func (e *Engine) Done() <-chan struct{} {
	return e.ctx.Done()
}

// Stop cancels every activity, waits for in-flight work and releases
// resources. Observations end here, so recordings follow the
// discard-on-close rule. Concurrent and repeated calls wait for the first.
func (e *Engine) Stop() error {
	e.stopOnce.Do(e.shutdown)
	return nil
}

func (e *Engine) shutdown() {
	e.mu.Lock()
	wasRunning := e.running
	e.running = false
	e.mu.Unlock()

	if wasRunning {
		util.Info("Engine stopping...")
	}

	e.cancel() // Signal all goroutines to stop

	// Wait for graceful shutdown with timeout
	done := make(chan struct{})
	go func() {
		e.orch.Wait()
		e.pool.Close()
		e.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if wasRunning {
			util.Info("Engine stopped gracefully")
		}
	case <-time.After(30 * time.Second):
		util.Warn("Engine stop timed out")
	}

	e.observer.CloseAll()

	// Clean up
	if e.opts.PIDFile {
		e.removePIDFile()
	}
	if e.db != nil {
		e.db.Close()
	}
}

func (e *Engine) handleSignals() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		util.Info("Received signal: %v", sig)
		go e.Stop()
	case <-e.ctx.Done():
		return
	}
}

func (e *Engine) runSampler() {
	ticker := time.NewTicker(history.SampleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.ctx.Done():
			return
		case now := <-ticker.C:
			e.sampler.Tick(now)
		}
	}
}

func (e *Engine) writePIDFile() error {
	if err := util.EnsureDir(filepath.Dir(e.pidFile)); err != nil {
		return err
	}
	pid := os.Getpid()
	return os.WriteFile(e.pidFile, []byte(strconv.Itoa(pid)), 0644)
}

func (e *Engine) removePIDFile() {
	os.Remove(e.pidFile)
}

// Scan starts a background pass over ranges.
func (e *Engine) Scan(ranges []iprange.Range) (string, error) {
	if len(ranges) == 0 {
		return "", ErrNoRanges
	}
	passID, ok := e.orch.Start(e.ctx, ranges)
	if !ok {
		return "", ErrScanInProgress
	}
	return passID, nil
}

// ScanSaved starts a background pass over every saved range.
func (e *Engine) ScanSaved() (string, error) {
	return e.Scan(e.Config().Ranges())
}

// ScanAndWait runs a pass in the foreground and returns its summary.
func (e *Engine) ScanAndWait(ctx context.Context, ranges []iprange.Range) (model.PassSummary, error) {
	if len(ranges) == 0 {
		return model.PassSummary{}, ErrNoRanges
	}
	passID, ok := e.orch.Begin(ranges)
	if !ok {
		return model.PassSummary{}, ErrScanInProgress
	}
	return e.orch.Run(ctx, passID, ranges)
}

// IsRunning returns whether the engine is running.
func (e *Engine) IsRunning() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// Status holds the current engine status.
type Status struct {
	Running   bool
	PID       int
	StartTime time.Time
	Uptime    time.Duration
	Jobs      []JobStatus
}

// GetStatus returns the engine status.
func (e *Engine) GetStatus() *Status {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return &Status{
		Running:   e.running,
		PID:       os.Getpid(),
		StartTime: e.startTime,
		Uptime:    time.Since(e.startTime),
		Jobs:      e.scheduler.GetJobStatuses(),
	}
}

// Config returns a copy of the current configuration.
func (e *Engine) Config() *util.Config {
	e.mu.RLock()
	defer e.mu.RUnlock()
	cfg := *e.config
	cfg.SavedRanges = append(cfg.SavedRanges[:0:0], e.config.SavedRanges...)
	return &cfg
}

// UpdateConfig applies fn to the configuration, saves it and applies the
// result to the running jobs.
func (e *Engine) UpdateConfig(fn func(*util.Config) error) error {
	cfg := e.Config()
	if err := fn(cfg); err != nil {
		return err
	}
	if err := util.SaveConfig(cfg); err != nil {
		util.Warn("Failed to save config: %v", err)
	}
	e.ApplyConfig(cfg)
	return nil
}

// ApplyConfig swaps in a reloaded configuration. Only ranges, intervals and
// the auto-scan switch take effect without a restart.
func (e *Engine) ApplyConfig(cfg *util.Config) {
	e.mu.Lock()
	e.config.SavedRanges = cfg.SavedRanges
	e.config.AutoScanEnabled = cfg.AutoScanEnabled
	e.config.AutoScanIntervalSecs = cfg.AutoScanIntervalSecs
	e.config.DetailRefreshIntervalSecs = cfg.DetailRefreshIntervalSecs
	interval := e.config.AutoScanInterval()
	e.mu.Unlock()

	e.scheduler.SetInterval(jobAutoScan, interval)
}

// Registry returns the miner registry.
func (e *Engine) Registry() *registry.Registry { return e.registry }

// Progress returns the scan progress tracker.
func (e *Engine) Progress() *scan.Progress { return e.progress }

// History returns the history store.
func (e *Engine) History() *history.Store { return e.history }

// Sampler returns the history sampler.
func (e *Engine) Sampler() *history.Sampler { return e.sampler }

// Observer returns the per-miner observer.
func (e *Engine) Observer() *observe.Observer { return e.observer }

// Controller returns the bulk command controller.
func (e *Engine) Controller() *control.Controller { return e.control }

// Context returns the engine context.
func (e *Engine) Context() context.Context { return e.ctx }

// DB returns the database, or nil when persistence is disabled.
func (e *Engine) DB() *storage.DB { return e.db }
