package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gurkanbulca/hustlemarket/internal/lifecycle"
)

// ExpireOverdue moves OPEN and ACCEPTED tasks whose deadline passed before
// now to EXPIRED, one transaction per task. A task that fails is logged and
// skipped. It returns how many tasks were expired.
func (l *Lifecycle) ExpireOverdue(ctx context.Context, now time.Time) (int, error) {
	start := time.Now()

	overdue, err := l.store.Repos().Tasks.ListOverdue(ctx, now, l.sweepBatch)
	if err != nil {
		return 0, fmt.Errorf("list overdue tasks: %w", err)
	}

	expired := 0
	for _, candidate := range overdue {
		taskID := candidate.Task.ID
		err := l.inTx(ctx, "expire_task", func(s *txScope) error {
			task, err := s.Tasks.GetByID(ctx, taskID)
			if err != nil {
				return err
			}
			if _, err := l.moveTask(ctx, s, task, lifecycle.TaskExpired, lifecycle.ExpireContext(now), ""); err != nil {
				return err
			}

			escrow, err := s.Escrows.GetByTaskID(ctx, taskID)
			if err != nil {
				return err
			}
			if escrow.Escrow.State == lifecycle.EscrowFunded {
				l.logger.Warn("Expired task left its escrow funded",
					"task_id", taskID,
					"escrow_id", escrow.Escrow.ID,
					"amount", escrow.Escrow.Amount)
			}
			return nil
		})
		if err != nil {
			l.logger.Warn("Skipping overdue task", "task_id", taskID, "error", err)
			continue
		}
		expired++
	}

	l.recorder.ObserveSweep(time.Since(start), expired)
	return expired, nil
}

// ExpirySweeper runs ExpireOverdue on a fixed interval.
type ExpirySweeper struct {
	lifecycle *Lifecycle
	interval  time.Duration
	logger    *slog.Logger
}

func NewExpirySweeper(l *Lifecycle, interval time.Duration, logger *slog.Logger) *ExpirySweeper {
	return &ExpirySweeper{lifecycle: l, interval: interval, logger: logger}
}

// Run sweeps until ctx is cancelled.
func (s *ExpirySweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("Starting expiry sweeper", "interval", s.interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.lifecycle.ExpireOverdue(ctx, s.lifecycle.clock())
			if err != nil {
				s.logger.Error("Expiry sweep failed", "error", err)
				continue
			}
			if n > 0 {
				s.logger.Info("Expired overdue tasks", "count", n)
			}
		}
	}
}
