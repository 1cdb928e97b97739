// Package worker assembles and registers everything a Temporal worker
// process serves for report generation.
package worker

import (
	"fmt"
	"log/slog"

	sdkactivity "go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	sdkworker "go.temporal.io/sdk/worker"
	sdkworkflow "go.temporal.io/sdk/workflow"

	"github.com/edulytics/reportgen/internal/workflow"
)

func activityOptions(name string) sdkactivity.RegisterOptions {
	return sdkactivity.RegisterOptions{Name: name}
}

// RegisterAll registers the batch-report workflow and its activities on w.
func RegisterAll(w sdkworker.Worker, activities *workflow.Activities) {
	w.RegisterWorkflowWithOptions(workflow.BatchReportWorkflow,
		sdkworkflow.RegisterOptions{Name: workflow.BatchReportWorkflowName})

	w.RegisterActivityWithOptions(activities.ScoreBatch,
		activityOptions(workflow.ActivityScoreBatch))
	w.RegisterActivityWithOptions(activities.GenerateFeedback,
		activityOptions(workflow.ActivityGenerateFeedback))
	w.RegisterActivityWithOptions(activities.SaveRun,
		activityOptions(workflow.ActivitySaveRun))
}

// Run builds a worker on the report task queue and blocks until interrupted.
func Run(c client.Client, activities *workflow.Activities, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	w := sdkworker.New(c, workflow.TaskQueue, sdkworker.Options{})
	RegisterAll(w, activities)

	logger.Info("worker starting", "task_queue", workflow.TaskQueue)
	if err := w.Run(sdkworker.InterruptCh()); err != nil {
		return fmt.Errorf("run worker: %w", err)
	}
	return nil
}
