package workflow

import (
	"context"
	"fmt"
	"os"

	"github.com/edulytics/reportgen/internal/batch"
	"github.com/edulytics/reportgen/internal/domain"
	"github.com/edulytics/reportgen/internal/scoring"
	"github.com/edulytics/reportgen/internal/sheet"
	"github.com/edulytics/reportgen/internal/store"
	"github.com/edulytics/reportgen/pkg/activity"
)

// Activity type names, referenced by the workflow and worker registration.
const (
	ActivityScoreBatch       = "ScoreBatch"
	ActivityGenerateFeedback = "GenerateFeedback"
	ActivitySaveRun          = "SaveRun"
)

// ScoreBatchInput names the exports to score. Paths keep workflow payloads
// small; sheet data never crosses the Temporal wire.
type ScoreBatchInput struct {
	SheetsPath string `json:"sheets_path"`
	MatrixPath string `json:"matrix_path"`
	Questions  int    `json:"questions"`
}

// ScoreBatchResult carries the scored, ranked reports to the next activity.
type ScoreBatchResult struct {
	Reports []domain.StudentReport `json:"reports"`
}

// GenerateFeedbackResult pairs the finished reports with the run summary.
type GenerateFeedbackResult struct {
	Summary batch.Summary          `json:"summary"`
	Reports []domain.StudentReport `json:"reports"`
}

// Activities implements the batch-report activities over the concrete
// pipeline pieces. One instance is registered per worker process.
type Activities struct {
	activity.Base

	scorer       *scoring.Scorer
	orchestrator *batch.Orchestrator
	runs         *store.Store
}

// NewActivities wires the activity set.
func NewActivities(base activity.Base, scorer *scoring.Scorer, orchestrator *batch.Orchestrator, runs *store.Store) *Activities {
	return &Activities{
		Base:         base,
		scorer:       scorer,
		orchestrator: orchestrator,
		runs:         runs,
	}
}

// ScoreBatch loads the exports, scores every sheet, and ranks the cohort.
// Data-shape failures are permanent: retrying cannot fix a malformed export.
func (a *Activities) ScoreBatch(ctx context.Context, input ScoreBatchInput) (ScoreBatchResult, error) {
	logger := a.Logger(ctx)

	matrixFile, err := os.Open(input.MatrixPath)
	if err != nil {
		return ScoreBatchResult{}, fmt.Errorf("open matrix: %w", err)
	}
	defer matrixFile.Close()
	matrix, err := sheet.ReadMatrix(matrixFile)
	if err != nil {
		return ScoreBatchResult{}, err
	}

	sheetsFile, err := os.Open(input.SheetsPath)
	if err != nil {
		return ScoreBatchResult{}, fmt.Errorf("open sheets: %w", err)
	}
	defer sheetsFile.Close()
	sheets, err := sheet.ReadSheets(sheetsFile)
	if err != nil {
		return ScoreBatchResult{}, err
	}

	questions := input.Questions
	if questions <= 0 {
		questions = matrix.Len()
	}

	reports := make([]domain.StudentReport, len(sheets))
	for i, sh := range sheets {
		id := sh.StudentID
		outcome := domain.OutcomePending
		if id == "" {
			id = domain.PlaceholderStudentID
			outcome = domain.OutcomeInvalid
		}
		reports[i] = domain.StudentReport{
			StudentID: id,
			Name:      sh.Name,
			Class:     sh.Class,
			Score:     a.scorer.Score(sh, matrix, questions),
			Outcome:   outcome,
		}
		if err := reports[i].Validate(); err != nil {
			return ScoreBatchResult{}, fmt.Errorf("report %s: %w", id, err)
		}
		a.Heartbeat(ctx, i+1)
	}
	scoring.Rank(reports)

	logger.Info("batch scored", "sheets", len(sheets), "questions", questions)
	return ScoreBatchResult{Reports: reports}, nil
}

// GenerateFeedback runs the bounded-pool comment generation over the scored
// reports.
func (a *Activities) GenerateFeedback(ctx context.Context, input ScoreBatchResult) (GenerateFeedbackResult, error) {
	summary := a.orchestrator.Run(ctx, input.Reports)
	a.Logger(ctx).Info("feedback generated",
		"generated", summary.Generated, "fallback", summary.Fallback)
	return GenerateFeedbackResult{Summary: summary, Reports: input.Reports}, nil
}

// SaveRun persists the finished run. A nil store makes this a no-op so the
// workflow also serves deployments that only want the JSON output.
func (a *Activities) SaveRun(ctx context.Context, input GenerateFeedbackResult) error {
	if a.runs == nil {
		return nil
	}
	if err := a.runs.SaveRun(ctx, input.Summary, input.Reports); err != nil {
		return fmt.Errorf("persist run %s: %w", input.Summary.RunID, err)
	}
	a.Logger(ctx).Info("run persisted", "run_id", input.Summary.RunID)
	return nil
}
