// Package scheduler
package scheduler

import (
	"context"
	"log"
	"time"

	businessflow "github.com/badgify/badgify-server/business_flow"
	"github.com/badgify/badgify-server/config"
	"github.com/badgify/badgify-server/models"
	"github.com/badgify/badgify-server/repository"
	"github.com/badgify/badgify-server/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var resolutionJobsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "resolution_jobs_total",
		Help: "Total number of queued resolution jobs processed, by result",
	},
	[]string{"result"},
)

// ResolutionWorker drains the resolution job queue: webhook deliveries enqueue
// one job per automatic badge, and the worker re-resolves each in the
// background. Jobs are idempotent, so a crash mid-batch only repeats work.
type ResolutionWorker struct {
	jobRepo        repository.ResolutionJobRepository
	assignmentFlow businessflow.AssignmentFlow
	logger         *log.Logger
	interval       time.Duration
	concurrency    int
}

func NewResolutionWorker(
	jobRepo repository.ResolutionJobRepository,
	assignmentFlow businessflow.AssignmentFlow,
	schedulerCfg config.SchedulerConfig,
) *ResolutionWorker {
	interval := schedulerCfg.ResolutionPollEvery
	if interval <= 0 {
		interval = 10 * time.Second
	}
	concurrency := schedulerCfg.ResolutionConcurrency
	if concurrency <= 0 {
		concurrency = 4
	}

	return &ResolutionWorker{
		jobRepo:        jobRepo,
		assignmentFlow: assignmentFlow,
		logger:         newSchedulerLogger("resolution-worker ", schedulerCfg.LogPath),
		interval:       interval,
		concurrency:    concurrency,
	}
}

// Start launches the polling loop in a background goroutine and returns a stop function
func (w *ResolutionWorker) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				w.runOnce(ctx)
			}
		}
	}()

	return cancel
}

func (w *ResolutionWorker) runOnce(ctx context.Context) {
	jobs, err := w.jobRepo.ListPending(ctx, w.concurrency*4)
	if err != nil {
		w.logger.Printf("list pending jobs failed: %v", err)
		return
	}
	if len(jobs) == 0 {
		return
	}

	// Bounded fan-out; each job is small so a semaphore is enough
	sem := make(chan struct{}, w.concurrency)
	for _, job := range jobs {
		j := job
		sem <- struct{}{}
		go func() {
			defer func() { <-sem }()
			w.processJob(ctx, j)
		}()
	}
	for i := 0; i < w.concurrency; i++ {
		sem <- struct{}{}
	}
}

func (w *ResolutionWorker) processJob(ctx context.Context, job *models.ResolutionJob) {
	jobCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	matched, err := w.assignmentFlow.RebuildByID(jobCtx, job.TenantID, job.BadgeID)
	if err != nil {
		if businessflow.IsRebuildInProgress(err) {
			// Someone else holds the badge lock; leave the job pending and
			// let the next poll retry it
			resolutionJobsTotal.WithLabelValues("deferred").Inc()
			return
		}
		if businessflow.IsBadgeNotFound(err) || businessflow.IsTenantNotFound(err) || businessflow.IsTenantUninstalled(err) {
			// The badge or shop disappeared between enqueue and processing
			resolutionJobsTotal.WithLabelValues("stale").Inc()
			if markErr := w.jobRepo.MarkCompleted(ctx, job.ID, utils.UTCNow()); markErr != nil {
				w.logger.Printf("mark stale job %d completed failed: %v", job.ID, markErr)
			}
			return
		}

		resolutionJobsTotal.WithLabelValues("failed").Inc()
		w.logger.Printf("job %d rebuild failed for badge %d: %v", job.ID, job.BadgeID, err)
		if markErr := w.jobRepo.MarkFailed(ctx, job.ID, utils.UTCNow()); markErr != nil {
			w.logger.Printf("mark job %d failed errored: %v", job.ID, markErr)
		}
		return
	}

	resolutionJobsTotal.WithLabelValues("success").Inc()
	w.logger.Printf("job %d rebuilt badge %d: %d products matched", job.ID, job.BadgeID, matched)
	if err := w.jobRepo.MarkCompleted(ctx, job.ID, utils.UTCNow()); err != nil {
		w.logger.Printf("mark job %d completed failed: %v", job.ID, err)
	}
}
