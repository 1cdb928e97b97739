// Package feedback turns a scored sheet into a short teacher-voiced comment,
// via the Gemini API when credentials allow and a deterministic template
// when they do not. Generation never fails the pipeline: every student gets
// a comment.
package feedback

import (
	_ "embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/edulytics/reportgen/internal/domain"
)

//go:embed prompt.tmpl
var defaultPromptText string

// promptData is the view rendered into the generation prompt.
type promptData struct {
	Name            string
	Class           string
	Correct         int
	Total           int
	BasicPercent    int
	AdvancedPercent int
	ClassRank       string
	GradeRank       string
	Remediation     string
}

// PromptRenderer renders the generation prompt for one report.
type PromptRenderer struct {
	tmpl *template.Template
}

// NewPromptRenderer parses tmplText, or the embedded default when empty.
func NewPromptRenderer(tmplText string) (*PromptRenderer, error) {
	if tmplText == "" {
		tmplText = defaultPromptText
	}
	tmpl, err := template.New("prompt").Parse(tmplText)
	if err != nil {
		return nil, fmt.Errorf("parse prompt template: %w", err)
	}
	return &PromptRenderer{tmpl: tmpl}, nil
}

// Render produces the prompt for one report.
func (p *PromptRenderer) Render(report *domain.StudentReport) (string, error) {
	name := strings.TrimSpace(report.Name)
	if name == "" {
		name = "em"
	}
	var b strings.Builder
	err := p.tmpl.Execute(&b, promptData{
		Name:            name,
		Class:           report.Class,
		Correct:         report.Score.Correct,
		Total:           report.Score.Total,
		BasicPercent:    report.Score.BasicPercent,
		AdvancedPercent: report.Score.AdvancedPercent,
		ClassRank:       report.ClassRank,
		GradeRank:       report.GradeRank,
		Remediation:     report.Score.Remediation,
	})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return b.String(), nil
}
