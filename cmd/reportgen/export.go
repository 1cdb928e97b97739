package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/edulytics/reportgen/internal/batch"
	"github.com/edulytics/reportgen/internal/domain"
	"github.com/edulytics/reportgen/internal/store"
)

func newExportCmd() *cobra.Command {
	var runID string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Re-export a persisted run as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if cfg.Store.Path == "" {
				return fmt.Errorf("no store path configured")
			}
			runs, err := store.Open(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer runs.Close()
			return runs.ExportJSON(cmd.Context(), runID, os.Stdout)
		},
	}
	cmd.Flags().StringVar(&runID, "run-id", "", "run id to export")
	cmd.MarkFlagRequired("run-id")
	return cmd
}

func writeJSON(w io.Writer, summary batch.Summary, reports []domain.StudentReport) error {
	doc := struct {
		Summary batch.Summary          `json:"summary"`
		Reports []domain.StudentReport `json:"reports"`
	}{Summary: summary, Reports: reports}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(doc)
}

// writeCSV emits the scored table in the layout teachers paste into their
// gradebooks: one row per student, summary omitted.
func writeCSV(w io.Writer, reports []domain.StudentReport) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{
		"student_id", "name", "class", "correct", "total", "skipped",
		"basic_percent", "advanced_percent", "class_rank", "grade_rank",
		"remediation", "feedback", "outcome",
	}); err != nil {
		return err
	}
	for _, r := range reports {
		err := cw.Write([]string{
			r.StudentID, r.Name, r.Class,
			strconv.Itoa(r.Score.Correct), strconv.Itoa(r.Score.Total),
			strconv.Itoa(r.Score.Skipped),
			strconv.Itoa(r.Score.BasicPercent), strconv.Itoa(r.Score.AdvancedPercent),
			r.ClassRank, r.GradeRank,
			r.Score.Remediation, r.Feedback, r.Outcome.String(),
		})
		if err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
