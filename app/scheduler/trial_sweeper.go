// Package scheduler
package scheduler

import (
	"context"
	"io"
	"log"
	"os"
	"time"

	businessflow "github.com/badgify/badgify-server/business_flow"
	"github.com/badgify/badgify-server/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// TrialSweeper periodically expires lapsed trials. The sweep is a single
// conditional bulk update, so overlapping runs and restarts are harmless.
type TrialSweeper struct {
	billingFlow businessflow.BillingFlow
	logger      *log.Logger
	interval    time.Duration
}

func NewTrialSweeper(
	billingFlow businessflow.BillingFlow,
	schedulerCfg config.SchedulerConfig,
) *TrialSweeper {
	interval := schedulerCfg.TrialSweepInterval
	if interval <= 0 {
		interval = time.Hour
	}

	return &TrialSweeper{
		billingFlow: billingFlow,
		logger:      newSchedulerLogger("trial-sweeper ", schedulerCfg.LogPath),
		interval:    interval,
	}
}

// Start launches the sweep loop in a background goroutine and returns a stop function
func (s *TrialSweeper) Start(parent context.Context) func() {
	ctx, cancel := context.WithCancel(parent)

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.runOnce(ctx)

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()

	return cancel
}

func (s *TrialSweeper) runOnce(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	expired, err := s.billingFlow.SweepExpiredTrials(sweepCtx)
	if err != nil {
		s.logger.Printf("trial sweep failed: %v", err)
		return
	}
	if expired > 0 {
		s.logger.Printf("trial sweep expired %d subscriptions", expired)
	}
}

// newSchedulerLogger builds a logger writing to stdout and a rotating file.
// With an empty path it logs to stdout only.
func newSchedulerLogger(prefix, logPath string) *log.Logger {
	var out io.Writer = os.Stdout
	if logPath != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    100, // MB
			MaxBackups: 10,
			MaxAge:     30, // days
			Compress:   true,
		})
	}
	return log.New(out, prefix, log.LstdFlags|log.Lmicroseconds|log.LUTC)
}
