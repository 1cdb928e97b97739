package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulytics/reportgen/internal/batch"
	"github.com/edulytics/reportgen/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun() (batch.Summary, []domain.StudentReport) {
	summary := batch.Summary{
		RunID:     "run-1",
		Total:     2,
		Generated: 1,
		Fallback:  1,
		Invalid:   0,
		Elapsed:   90 * time.Second,
	}
	reports := []domain.StudentReport{
		{
			StudentID: "hs-001",
			Name:      "Nguyễn Văn An",
			Class:     "12A1",
			Score: domain.ScoreResult{
				Total: 40, Correct: 30, Wrong: 10,
				Attempted:    true,
				CorrectBasic: 22, CorrectAdvanced: 8,
				BasicPercent: 85, AdvancedPercent: 50,
				WrongQuestions: []int{3, 17, 40},
				Remediation:    "Toán - Hàm số: Cực trị",
			},
			ClassRank: "1/2",
			GradeRank: "1/2",
			Feedback:  "Em làm rất tốt.",
			Outcome:   domain.OutcomeGenerated,
		},
		{
			StudentID: "hs-002",
			Name:      "Trần Thị Bình",
			Class:     "12A1",
			Score: domain.ScoreResult{
				Total: 40, Correct: 12, Wrong: 28,
				Attempted:    true,
				CorrectBasic: 10, CorrectAdvanced: 2,
			},
			ClassRank: "2/2",
			GradeRank: "2/2",
			Feedback:  "Em cần cố gắng hơn.",
			Outcome:   domain.OutcomeFallback,
		},
	}
	return summary, reports
}

func TestSaveAndLoadRun(t *testing.T) {
	s := openTestStore(t)
	summary, reports := sampleRun()

	require.NoError(t, s.SaveRun(context.Background(), summary, reports))

	gotSummary, gotReports, err := s.LoadRun(context.Background(), "run-1")
	require.NoError(t, err)

	assert.Equal(t, summary, gotSummary)
	require.Len(t, gotReports, 2)
	// Every score field must survive the round trip, including the
	// tier breakdown and the wrong-question list.
	assert.Equal(t, reports, gotReports)
	assert.Equal(t, []int{3, 17, 40}, gotReports[0].Score.WrongQuestions)
	assert.Equal(t, 22, gotReports[0].Score.CorrectBasic)
	assert.Equal(t, 8, gotReports[0].Score.CorrectAdvanced)
	assert.True(t, gotReports[1].Score.Attempted)
}

func TestSaveRunRejectsInvalidReport(t *testing.T) {
	s := openTestStore(t)
	summary, reports := sampleRun()
	reports[1].StudentID = ""

	err := s.SaveRun(context.Background(), summary, reports)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "report 1")

	// The failed save must not leave a partial run behind.
	_, _, err = s.LoadRun(context.Background(), "run-1")
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestLoadRunNotFound(t *testing.T) {
	s := openTestStore(t)
	_, _, err := s.LoadRun(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrRunNotFound))
}

func TestExportJSON(t *testing.T) {
	s := openTestStore(t)
	summary, reports := sampleRun()
	require.NoError(t, s.SaveRun(context.Background(), summary, reports))

	var buf bytes.Buffer
	require.NoError(t, s.ExportJSON(context.Background(), "run-1", &buf))

	var doc struct {
		Summary batch.Summary          `json:"summary"`
		Reports []domain.StudentReport `json:"reports"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.Equal(t, "run-1", doc.Summary.RunID)
	require.Len(t, doc.Reports, 2)
	assert.Equal(t, "Em làm rất tốt.", doc.Reports[0].Feedback)
}
