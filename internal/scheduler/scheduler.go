// Package scheduler runs periodic maintenance jobs such as the travel-time
// backfill.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"backend-flathunt/internal/logger"

	"github.com/robfig/cron/v3"
)

// Job is one run of a periodic task. It returns the number of items it
// handled.
type Job func(ctx context.Context) (int, error)

// Scheduler wraps robfig/cron for a single named job.
type Scheduler struct {
	cron   *cron.Cron
	spec   string
	name   string
	job    Job
	log    logger.Logger
	ctx    context.Context
	cancel context.CancelFunc

	// running prevents overlapping runs when a job outlasts its interval.
	running sync.Mutex
}

// New returns a scheduler for job. An empty spec disables it: Start and
// Stop become no-ops.
func New(name, spec string, job Job, log logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron:   cron.New(),
		spec:   spec,
		name:   name,
		job:    job,
		log:    log.With(logger.String("job", name)),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *Scheduler) Enabled() bool {
	return s.spec != ""
}

// Start registers the job under its cron spec and starts the scheduler.
func (s *Scheduler) Start() error {
	if !s.Enabled() {
		s.log.Info("scheduler disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(s.spec, s.run); err != nil {
		return fmt.Errorf("schedule %s: %w", s.name, err)
	}
	s.cron.Start()
	s.log.Info("scheduler started", logger.String("spec", s.spec))
	return nil
}

// Stop cancels a running job and waits for it to return.
func (s *Scheduler) Stop() {
	s.cancel()
	if !s.Enabled() {
		return
	}
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) run() {
	if !s.running.TryLock() {
		s.log.Warn("previous run still in progress, skipping")
		return
	}
	defer s.running.Unlock()

	start := time.Now()
	n, err := s.job(s.ctx)
	if err != nil {
		s.log.Error("scheduled job failed", logger.Duration("elapsed", time.Since(start)), logger.Error(err))
		return
	}
	s.log.Info("scheduled job done", logger.Int("handled", n), logger.Duration("elapsed", time.Since(start)))
}
