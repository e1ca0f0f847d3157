package daemon

import (
	"context"
	"time"

	"github.com/user/minerscan/internal/history"
	"github.com/user/minerscan/internal/model"
	"github.com/user/minerscan/internal/storage"
	"github.com/user/minerscan/internal/util"
)

const (
	jobAutoScan      = "auto_scan"
	jobDetailRefresh = "detail_refresh"
	jobStatusFile    = "status_file"

	statusFileInterval = 5 * time.Second
)

// registerJobs registers the periodic jobs with the scheduler.
func (e *Engine) registerJobs() {
	cfg := e.Config()

	// Auto scan job
	e.scheduler.AddJob(&Job{
		Name:     jobAutoScan,
		Interval: cfg.AutoScanInterval(),
		Run:      e.runAutoScan,
	})

	// Interactive front ends check refreshes from their render loop.
	// The due check is per miner, so the job only has to poll often enough.
	if e.opts.HeadlessSampling {
		e.scheduler.AddJob(&Job{
			Name:     jobDetailRefresh,
			Interval: time.Second,
			Run:      e.runDetailRefresh,
		})
	}

	if e.opts.PIDFile {
		e.scheduler.AddJob(&Job{
			Name:     jobStatusFile,
			Interval: statusFileInterval,
			Run:      e.runStatusFile,
		})
	}
}

func (e *Engine) runAutoScan(ctx context.Context) error {
	cfg := e.Config()
	if !cfg.AutoScanEnabled {
		util.Debug("Auto scan disabled")
		return nil
	}

	ranges := cfg.Ranges()
	if len(ranges) == 0 {
		util.Debug("Auto scan skipped (no saved ranges)")
		return nil
	}

	passID, ok := e.orch.Begin(ranges)
	if !ok {
		util.Debug("Auto scan skipped (scan in progress)")
		return nil
	}

	_, err := e.orch.Run(ctx, passID, ranges)
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

func (e *Engine) runDetailRefresh(ctx context.Context) error {
	n := e.observer.RefreshDue(e.Config().DetailRefreshInterval())
	if n > 0 {
		util.Debug("Submitted %d detail refreshes", n)
	}
	return nil
}

func (e *Engine) runStatusFile(ctx context.Context) error {
	return WriteStatusFile(e.Config().DataDir, e.Snapshot())
}

// persistPass stores a published pass. Failures are logged and never affect
// the in-memory state.
func (e *Engine) persistPass(summary model.PassSummary, readings map[string]model.DeviceReading) {
	db := e.db
	if db == nil {
		return
	}

	if err := storage.NewPassStorage(db).Save(summary); err != nil {
		util.Warn("Failed to save pass %s: %v", summary.ID, err)
	}
	if err := storage.NewMinerStorage(db).ReplaceAll(summary.ID, readings); err != nil {
		util.Warn("Failed to save miners for pass %s: %v", summary.ID, err)
	}

	points := make(map[string]history.HashratePoint, len(readings))
	for addr, r := range readings {
		if r.Hashrate == nil {
			continue
		}
		points[addr] = history.HashratePoint{Timestamp: r.ReadAt, Hashrate: *r.Hashrate}
	}
	if len(points) == 0 {
		return
	}
	if err := storage.NewHistoryStorage(db, history.CoarseCapacity).Append(points); err != nil {
		util.Warn("Failed to save hashrate history: %v", err)
	}
}
