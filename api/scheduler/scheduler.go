package scheduler

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const reconcileJob = "trip_total_reconcile"

// Reconciler rebuilds stored trip totals from their cost records
type Reconciler interface {
	ReconcileAll(ctx context.Context, batch int) (checked, corrected int, err error)
}

// Scheduler handles periodic background jobs
type Scheduler struct {
	cron       *cron.Cron
	Ledger     Reconciler
	Lock       Locker
	instanceID string
	schedule   string
	batch      int
	jobTimeout time.Duration
}

// NewScheduler creates a new scheduler instance. schedule is a five field cron
// expression evaluated in UTC.
func NewScheduler(ledger Reconciler, lock Locker, schedule string, batch int) *Scheduler {
	// Generate a unique instance ID for this pod
	instanceID := os.Getenv("DYNO") // Heroku sets this to "web.1", "web.2", etc.
	if instanceID == "" {
		instanceID = fmt.Sprintf("instance-%d", time.Now().UnixNano())
	}

	return &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		Ledger:     ledger,
		Lock:       lock,
		instanceID: instanceID,
		schedule:   schedule,
		batch:      batch,
		jobTimeout: 10 * time.Minute,
	}
}

// Start begins the scheduler with all registered jobs
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.schedule, s.reconcileTotals); err != nil {
		return fmt.Errorf("failed to register reconcile job: %w", err)
	}

	s.cron.Start()
	zap.S().Infow("Scheduler started", "schedule", s.schedule, "instance", s.instanceID)
	return nil
}

// Stop gracefully stops the scheduler, waiting for a running job to finish
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.S().Info("Scheduler stopped")
}

func (s *Scheduler) reconcileTotals() {
	ctx, cancel := context.WithTimeout(context.Background(), s.jobTimeout)
	defer cancel()
	s.runReconcile(ctx)
}

// runReconcile sweeps every trip unless another instance holds the job lock
func (s *Scheduler) runReconcile(ctx context.Context) (ran bool) {
	acquired, err := s.Lock.TryAcquireLock(ctx, reconcileJob, s.instanceID, s.jobTimeout)
	if err != nil {
		zap.S().Errorw("failed to acquire lock for reconcile job", "error", err)
		return false
	}
	if !acquired {
		zap.S().Debug("Reconcile job already running on another instance, skipping")
		return false
	}
	defer func() {
		// the job context may be done by now
		if err := s.Lock.ReleaseLock(context.Background(), reconcileJob, s.instanceID); err != nil {
			zap.S().Errorw("failed to release lock for reconcile job", "error", err)
		}
	}()

	start := time.Now()
	checked, corrected, err := s.Ledger.ReconcileAll(ctx, s.batch)
	if err != nil {
		zap.S().Errorw("reconcile job stopped early",
			"checked", checked,
			"corrected", corrected,
			"error", err)
		return true
	}
	zap.S().Infow("reconcile job finished",
		"instance", s.instanceID,
		"checked", checked,
		"corrected", corrected,
		"duration", time.Since(start))
	return true
}
