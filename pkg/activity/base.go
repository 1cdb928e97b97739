// Package activity provides shared plumbing for Temporal activities:
// logging that stays safe when invoked outside a real activity context,
// as unit tests and local tooling do.
package activity

import (
	"context"
	"log/slog"

	"go.temporal.io/sdk/activity"
)

// Base carries the dependencies common to all activity structs.
type Base struct {
	logger *slog.Logger
}

// NewBase builds a Base, defaulting the logger.
func NewBase(logger *slog.Logger) Base {
	if logger == nil {
		logger = slog.Default()
	}
	return Base{logger: logger}
}

// Logger returns the base logger enriched with workflow identifiers when ctx
// belongs to a live activity. Outside one, activity.GetInfo panics; the
// recover keeps plain logging working in tests.
func (b Base) Logger(ctx context.Context) *slog.Logger {
	logger := b.logger

	func() {
		defer func() { recover() }()
		info := activity.GetInfo(ctx)
		logger = logger.With(
			"workflow_id", info.WorkflowExecution.ID,
			"run_id", info.WorkflowExecution.RunID,
			"activity", info.ActivityType.Name,
			"attempt", info.Attempt,
		)
	}()
	return logger
}

// Heartbeat records progress when running inside a real activity and is a
// no-op otherwise.
func (b Base) Heartbeat(ctx context.Context, details ...any) {
	defer func() { recover() }()
	activity.RecordHeartbeat(ctx, details...)
}
