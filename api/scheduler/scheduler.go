package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/trashio/trashio-api/lifecycle"
)

const finalizeJobKey = "finalize_job"

// jobTimeout bounds one sweep
const jobTimeout = 5 * time.Minute

// Finalizer completes every Approved report
type Finalizer interface {
	FinalizeApproved(ctx context.Context) (int, error)
}

// Scheduler handles periodic background jobs
type Scheduler struct {
	cron      *cron.Cron
	finalizer Finalizer
	locker    lifecycle.Locker
	spec      string
}

// NewScheduler creates a new scheduler instance. spec is a cron expression
// evaluated in UTC.
func NewScheduler(finalizer Finalizer, locker lifecycle.Locker, spec string) *Scheduler {
	return &Scheduler{
		cron:      cron.New(cron.WithLocation(time.UTC)),
		finalizer: finalizer,
		locker:    locker,
		spec:      spec,
	}
}

// Start registers the jobs and begins running them
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.spec, s.finalizeApproved); err != nil {
		zap.S().Errorw("failed to register finalize job", "schedule", s.spec, "error", err)
		return err
	}
	s.cron.Start()
	zap.S().Infow("scheduler started", "finalizeSchedule", s.spec)
	return nil
}

// Stop waits for running jobs to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("scheduler stopped")
}

func (s *Scheduler) finalizeApproved() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	unlock, acquired, err := s.locker.TryLock(ctx, finalizeJobKey)
	if err != nil {
		zap.S().Errorw("failed to acquire lock for finalize job", "error", err)
		return
	}
	if !acquired {
		zap.S().Debug("finalize job already running on another instance, skipping")
		return
	}
	defer unlock()

	n, err := s.finalizer.FinalizeApproved(ctx)
	if err != nil {
		zap.S().Errorw("finalize job failed", "finalized", n, "error", err)
		return
	}
	if n > 0 {
		zap.S().Infow("finalize job completed", "finalized", n)
	}
}
