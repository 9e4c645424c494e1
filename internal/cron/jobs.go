package cron

import (
	"context"
	"log/slog"
)

// SnapshotJob flushes relay state to disk on a schedule, so a quiet deploy
// still persists recent history even when the event-count trigger has not
// fired.
type SnapshotJob struct {
	Flush        func(ctx context.Context) error
	Logger       *slog.Logger
	ScheduleExpr string // empty = default "*/10 * * * *"
}

// Compile-time interface check.
var _ Job = (*SnapshotJob)(nil)

// Name implements Job.
func (j *SnapshotJob) Name() string {
	return "snapshot_flush"
}

// Schedule implements Job.
func (j *SnapshotJob) Schedule() string {
	if j.ScheduleExpr != "" {
		return j.ScheduleExpr
	}
	return "*/10 * * * *"
}

// Run implements Job.
func (j *SnapshotJob) Run(ctx context.Context) error {
	if err := j.Flush(ctx); err != nil {
		return err
	}
	j.Logger.Debug("cron: snapshot flushed")
	return nil
}
