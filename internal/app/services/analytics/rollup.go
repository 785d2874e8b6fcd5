package analytics

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/stampd-app/stampd/pkg/logger"
)

// Rollup runs nightly maintenance over the daily counters: pruning rows
// past the retention window. Implements system.Service.
type Rollup struct {
	svc           *Service
	log           *logger.Logger
	cron          *cron.Cron
	schedule      string
	retentionDays int
}

// NewRollup creates the nightly maintenance job. An empty schedule
// defaults to shortly after midnight UTC.
func NewRollup(svc *Service, retentionDays int, schedule string, log *logger.Logger) *Rollup {
	if log == nil {
		log = logger.NewDefault("analytics-rollup")
	}
	if schedule == "" {
		schedule = "10 0 * * *"
	}
	if retentionDays < 1 {
		retentionDays = 365
	}
	return &Rollup{
		svc:           svc,
		log:           log,
		schedule:      schedule,
		retentionDays: retentionDays,
	}
}

// Name implements system.Service.
func (r *Rollup) Name() string { return "analytics-rollup" }

// Start schedules the job.
func (r *Rollup) Start(_ context.Context) error {
	r.cron = cron.New(cron.WithLocation(time.UTC))
	_, err := r.cron.AddFunc(r.schedule, r.run)
	if err != nil {
		return err
	}
	r.cron.Start()
	return nil
}

// Stop halts the scheduler and waits for a running job to finish.
func (r *Rollup) Stop(ctx context.Context) error {
	if r.cron == nil {
		return nil
	}
	stopped := r.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

func (r *Rollup) run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if _, err := r.svc.Prune(ctx, r.retentionDays); err != nil {
		r.log.WithError(err).Warn("daily counter prune failed")
	}
}
