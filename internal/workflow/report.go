// Package workflow defines the durable batch-report execution: score the
// exports, generate feedback under the credential quotas, persist the run.
// Temporal is an optional deployment surface; the same pipeline runs
// in-process through the CLI.
package workflow

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/edulytics/reportgen/internal/batch"
)

// TaskQueue is the queue batch-report workers poll.
const TaskQueue = "report-generation"

// BatchReportWorkflowName is the registered workflow type.
const BatchReportWorkflowName = "BatchReportWorkflow"

// BatchReportInput starts one batch run.
type BatchReportInput struct {
	SheetsPath string        `json:"sheets_path"`
	MatrixPath string        `json:"matrix_path"`
	Questions  int           `json:"questions"`
	Deadline   time.Duration `json:"deadline"`
}

// BatchReportResult is the workflow outcome.
type BatchReportResult struct {
	Summary batch.Summary `json:"summary"`
}

// BatchReportWorkflow drives one batch end to end. Malformed exports fail
// the workflow immediately; generation problems never do, the pipeline
// degrades to fallback comments instead.
func BatchReportWorkflow(ctx workflow.Context, input BatchReportInput) (BatchReportResult, error) {
	logger := workflow.GetLogger(ctx)

	v := workflow.GetVersion(ctx, "batch-report", workflow.DefaultVersion, 1)
	_ = v // single version so far; the gate reserves the change point

	if input.SheetsPath == "" || input.MatrixPath == "" {
		return BatchReportResult{}, temporal.NewNonRetryableApplicationError(
			"sheets_path and matrix_path are required", "InvalidInput", nil)
	}
	deadline := input.Deadline
	if deadline <= 0 {
		deadline = batch.DefaultDeadline
	}

	scoreCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        time.Second,
			BackoffCoefficient:     2,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{"DataShapeError"},
		},
	})

	var scored ScoreBatchResult
	err := workflow.ExecuteActivity(scoreCtx, ActivityScoreBatch, ScoreBatchInput{
		SheetsPath: input.SheetsPath,
		MatrixPath: input.MatrixPath,
		Questions:  input.Questions,
	}).Get(ctx, &scored)
	if err != nil {
		return BatchReportResult{}, err
	}
	logger.Info("batch scored", "reports", len(scored.Reports))

	// Generation owns its own deadline handling; the activity timeout just
	// needs headroom past it. No retry: a second pass would re-spend quota
	// for students already carrying fallback comments.
	genCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: deadline + 5*time.Minute,
		HeartbeatTimeout:    2 * time.Minute,
		RetryPolicy:         &temporal.RetryPolicy{MaximumAttempts: 1},
	})

	var generated GenerateFeedbackResult
	if err := workflow.ExecuteActivity(genCtx, ActivityGenerateFeedback, scored).Get(ctx, &generated); err != nil {
		return BatchReportResult{}, err
	}

	saveCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2,
			MaximumAttempts:    5,
		},
	})
	if err := workflow.ExecuteActivity(saveCtx, ActivitySaveRun, generated).Get(ctx, nil); err != nil {
		return BatchReportResult{}, err
	}

	return BatchReportResult{Summary: generated.Summary}, nil
}
