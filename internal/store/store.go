// Package store persists finished runs to SQLite so reports can be
// re-exported or inspected after the fact without rescoring.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/edulytics/reportgen/internal/batch"
	"github.com/edulytics/reportgen/internal/domain"
)

// ErrRunNotFound is returned when a run id is absent from the store.
var ErrRunNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	created_at TEXT NOT NULL,
	total      INTEGER NOT NULL,
	generated  INTEGER NOT NULL,
	fallback   INTEGER NOT NULL,
	deadline   INTEGER NOT NULL,
	invalid    INTEGER NOT NULL,
	elapsed_ms INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS reports (
	run_id           TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position         INTEGER NOT NULL,
	student_id       TEXT NOT NULL,
	name             TEXT NOT NULL,
	class            TEXT NOT NULL,
	total            INTEGER NOT NULL,
	correct          INTEGER NOT NULL,
	wrong            INTEGER NOT NULL,
	skipped          INTEGER NOT NULL,
	attempted        INTEGER NOT NULL,
	correct_basic    INTEGER NOT NULL,
	correct_advanced INTEGER NOT NULL,
	basic_percent    INTEGER NOT NULL,
	advanced_percent INTEGER NOT NULL,
	wrong_questions  TEXT NOT NULL,
	class_rank       TEXT NOT NULL,
	grade_rank       TEXT NOT NULL,
	remediation      TEXT NOT NULL,
	feedback         TEXT NOT NULL,
	outcome          TEXT NOT NULL,
	PRIMARY KEY (run_id, position)
);
`

// Store wraps the SQLite handle.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the
// schema. Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// modernc's driver serializes per connection; a single connection
	// avoids table-lock errors under concurrent writers.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// SaveRun persists a summary and its reports in one transaction.
func (s *Store) SaveRun(ctx context.Context, summary batch.Summary, reports []domain.StudentReport) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save run: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, created_at, total, generated, fallback, deadline, invalid, elapsed_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		summary.RunID, time.Now().UTC().Format(time.RFC3339),
		summary.Total, summary.Generated, summary.Fallback, summary.Deadline,
		summary.Invalid, summary.Elapsed.Milliseconds())
	if err != nil {
		return fmt.Errorf("insert run %s: %w", summary.RunID, err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO reports (run_id, position, student_id, name, class,
			total, correct, wrong, skipped, attempted,
			correct_basic, correct_advanced, basic_percent, advanced_percent,
			wrong_questions, class_rank, grade_rank, remediation, feedback, outcome)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare report insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range reports {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("report %d: %w", i, err)
		}
		wrongQuestions, err := json.Marshal(r.Score.WrongQuestions)
		if err != nil {
			return fmt.Errorf("encode wrong questions for %s: %w", r.StudentID, err)
		}
		_, err = stmt.ExecContext(ctx,
			summary.RunID, i, r.StudentID, r.Name, r.Class,
			r.Score.Total, r.Score.Correct, r.Score.Wrong, r.Score.Skipped,
			r.Score.Attempted,
			r.Score.CorrectBasic, r.Score.CorrectAdvanced,
			r.Score.BasicPercent, r.Score.AdvancedPercent,
			string(wrongQuestions),
			r.ClassRank, r.GradeRank, r.Score.Remediation,
			r.Feedback, r.Outcome.String())
		if err != nil {
			return fmt.Errorf("insert report %s: %w", r.StudentID, err)
		}
	}
	return tx.Commit()
}

// LoadRun returns a run's summary and reports in their original order.
func (s *Store) LoadRun(ctx context.Context, runID string) (batch.Summary, []domain.StudentReport, error) {
	var summary batch.Summary
	var elapsedMS int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id, total, generated, fallback, deadline, invalid, elapsed_ms FROM runs WHERE id = ?`,
		runID).Scan(&summary.RunID, &summary.Total, &summary.Generated,
		&summary.Fallback, &summary.Deadline, &summary.Invalid, &elapsedMS)
	if errors.Is(err, sql.ErrNoRows) {
		return summary, nil, fmt.Errorf("load run %s: %w", runID, ErrRunNotFound)
	}
	if err != nil {
		return summary, nil, fmt.Errorf("load run %s: %w", runID, err)
	}
	summary.Elapsed = time.Duration(elapsedMS) * time.Millisecond

	rows, err := s.db.QueryContext(ctx,
		`SELECT student_id, name, class, total, correct, wrong, skipped,
			attempted, correct_basic, correct_advanced,
			basic_percent, advanced_percent, wrong_questions,
			class_rank, grade_rank, remediation, feedback, outcome
		 FROM reports WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return summary, nil, fmt.Errorf("load reports %s: %w", runID, err)
	}
	defer rows.Close()

	var reports []domain.StudentReport
	for rows.Next() {
		var r domain.StudentReport
		var outcome, wrongQuestions string
		if err := rows.Scan(&r.StudentID, &r.Name, &r.Class,
			&r.Score.Total, &r.Score.Correct, &r.Score.Wrong, &r.Score.Skipped,
			&r.Score.Attempted, &r.Score.CorrectBasic, &r.Score.CorrectAdvanced,
			&r.Score.BasicPercent, &r.Score.AdvancedPercent, &wrongQuestions,
			&r.ClassRank, &r.GradeRank, &r.Score.Remediation,
			&r.Feedback, &outcome); err != nil {
			return summary, nil, fmt.Errorf("scan report: %w", err)
		}
		if err := json.Unmarshal([]byte(wrongQuestions), &r.Score.WrongQuestions); err != nil {
			return summary, nil, fmt.Errorf("decode wrong questions for %s: %w", r.StudentID, err)
		}
		r.Outcome = parseOutcome(outcome)
		reports = append(reports, r)
	}
	return summary, reports, rows.Err()
}

// ExportJSON writes one run as a pretty-printed JSON document.
func (s *Store) ExportJSON(ctx context.Context, runID string, w io.Writer) error {
	summary, reports, err := s.LoadRun(ctx, runID)
	if err != nil {
		return err
	}
	doc := struct {
		Summary batch.Summary          `json:"summary"`
		Reports []domain.StudentReport `json:"reports"`
	}{Summary: summary, Reports: reports}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(doc)
}

func parseOutcome(s string) domain.FeedbackOutcome {
	for _, o := range []domain.FeedbackOutcome{
		domain.OutcomeGenerated, domain.OutcomeFallback,
		domain.OutcomeDeadline, domain.OutcomeInvalid,
	} {
		if strings.EqualFold(o.String(), s) {
			return o
		}
	}
	return domain.OutcomePending
}
