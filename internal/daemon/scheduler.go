package daemon

import (
	"context"
	"sync"
	"time"

	"github.com/user/minerscan/internal/util"
)

// Job represents a scheduled job.
type Job struct {
	Name     string
	Interval time.Duration
	// Timeout bounds a single run. Zero means the run lives as long as the
	// scheduler.
	Timeout time.Duration
	// InitialDelay postpones the first run after registration.
	InitialDelay time.Duration
	Run          func(ctx context.Context) error

	// State
	lastRun    time.Time
	nextRun    time.Time
	lastError  error
	errorCount int
	running    bool
	mu         sync.RWMutex
}

// JobStatus represents the status of a job.
type JobStatus struct {
	Name       string        `json:"name"`
	Interval   time.Duration `json:"interval"`
	LastRun    time.Time     `json:"last_run"`
	NextRun    time.Time     `json:"next_run"`
	LastError  string        `json:"last_error,omitempty"`
	ErrorCount int           `json:"error_count"`
	Running    bool          `json:"running"`
}

// Scheduler runs jobs on their intervals. A job never overlaps with itself.
type Scheduler struct {
	ctx  context.Context
	jobs []*Job
	mu   sync.RWMutex
	wg   sync.WaitGroup
	tick time.Duration
}

// NewScheduler creates a new scheduler.
func NewScheduler(ctx context.Context) *Scheduler {
	return &Scheduler{
		ctx:  ctx,
		jobs: make([]*Job, 0),
		tick: time.Second,
	}
}

// AddJob adds a job to the scheduler.
func (s *Scheduler) AddJob(job *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job.nextRun = time.Now().Add(job.InitialDelay)
	s.jobs = append(s.jobs, job)
}

// Run starts the scheduler and blocks until its context ends.
func (s *Scheduler) Run() {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	util.Info("Scheduler started with %d jobs", len(s.Jobs()))

	for {
		select {
		case <-s.ctx.Done():
			util.Info("Scheduler stopping")
			s.wg.Wait()
			return
		case now := <-ticker.C:
			s.checkJobs(now)
		}
	}
}

// Jobs returns the registered jobs.
func (s *Scheduler) Jobs() []*Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*Job(nil), s.jobs...)
}

func (s *Scheduler) checkJobs(now time.Time) {
	for _, job := range s.Jobs() {
		job.mu.RLock()
		shouldRun := !job.running && !now.Before(job.nextRun)
		job.mu.RUnlock()

		if shouldRun {
			s.wg.Add(1)
			go func(j *Job) {
				defer s.wg.Done()
				s.runJob(j)
			}(job)
		}
	}
}

func (s *Scheduler) runJob(job *Job) {
	job.mu.Lock()
	if job.running {
		job.mu.Unlock()
		return
	}
	job.running = true
	job.lastRun = time.Now()
	timeout := job.Timeout
	job.mu.Unlock()

	util.Debug("Running job: %s", job.Name)

	ctx, cancel := s.ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(s.ctx, timeout)
	}
	defer cancel()

	err := job.Run(ctx)

	job.mu.Lock()
	job.running = false
	if err != nil {
		job.lastError = err
		job.errorCount++
		util.Warn("Job %s failed: %v", job.Name, err)
		// Shorter retry on error
		job.nextRun = time.Now().Add(job.Interval / 2)
	} else {
		job.lastError = nil
		util.Debug("Job %s completed successfully", job.Name)
		job.nextRun = time.Now().Add(job.Interval)
	}
	job.mu.Unlock()
}

// GetJobStatuses returns the status of all jobs.
func (s *Scheduler) GetJobStatuses() []JobStatus {
	jobs := s.Jobs()
	statuses := make([]JobStatus, len(jobs))
	for i, job := range jobs {
		job.mu.RLock()
		status := JobStatus{
			Name:       job.Name,
			Interval:   job.Interval,
			LastRun:    job.lastRun,
			NextRun:    job.nextRun,
			ErrorCount: job.errorCount,
			Running:    job.running,
		}
		if job.lastError != nil {
			status.LastError = job.lastError.Error()
		}
		job.mu.RUnlock()
		statuses[i] = status
	}

	return statuses
}

// GetJob returns a job by name.
func (s *Scheduler) GetJob(name string) *Job {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, job := range s.jobs {
		if job.Name == name {
			return job
		}
	}
	return nil
}

// TriggerJob makes a job due on the next tick.
func (s *Scheduler) TriggerJob(name string) bool {
	job := s.GetJob(name)
	if job == nil {
		return false
	}

	job.mu.Lock()
	job.nextRun = time.Now()
	job.mu.Unlock()

	return true
}

// SetInterval changes a job's interval and reschedules its next run.
func (s *Scheduler) SetInterval(name string, interval time.Duration) bool {
	job := s.GetJob(name)
	if job == nil || interval <= 0 {
		return false
	}

	job.mu.Lock()
	defer job.mu.Unlock()
	if job.Interval == interval {
		return true
	}
	job.Interval = interval
	if !job.lastRun.IsZero() {
		job.nextRun = job.lastRun.Add(interval)
	}
	return true
}
