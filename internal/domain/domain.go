// Package domain provides core types for the exam report pipeline.
// It defines answer sheets, the knowledge matrix, score results, and the
// per-student report records that flow from scoring through feedback
// generation. The types are designed so that scoring stays a pure function
// and every batch input maps to exactly one output record.
package domain

import "github.com/go-playground/validator/v10"

// validate is the package-level validator instance used for struct validation.
var validate = validator.New(validator.WithRequiredStructEnabled())

// PlaceholderStudentID substitutes for a blank or missing student id.
// Records with unusable ids are still processed; they are never dropped.
const PlaceholderStudentID = "unknown-student"

// StudentSheet is one student's raw answer row as read from the input table.
type StudentSheet struct {
	// StudentID identifies the student. May be blank in dirty input;
	// consumers substitute PlaceholderStudentID rather than dropping the row.
	StudentID string `json:"student_id"`

	// Name is the student's display name, used in prompts and fallback text.
	Name string `json:"name"`

	// Class is the class label (e.g. "9A3"). The leading digits identify the
	// grade for grade-level ranking.
	Class string `json:"class"`

	// RawAnswers holds one response character per question position.
	// It may be shorter than the question count; missing positions are
	// unanswered. In verdict mode each position is a verdict word instead.
	RawAnswers string `json:"raw_answers"`

	// RawKey is the answer key string this sheet is scored against.
	RawKey string `json:"raw_key"`
}

// FeedbackOutcome records how a report's feedback text was obtained.
type FeedbackOutcome uint8

const (
	// OutcomePending marks a report that has not been through feedback yet.
	OutcomePending FeedbackOutcome = iota

	// OutcomeGenerated marks feedback produced by the generation service.
	OutcomeGenerated

	// OutcomeFallback marks the deterministic fallback comment, substituted
	// after attempts were exhausted or the credential pool went dead.
	OutcomeFallback

	// OutcomeDeadline marks a fallback comment substituted because the batch
	// deadline elapsed before the record completed.
	OutcomeDeadline

	// OutcomeInvalid marks a record whose student id was blank; the record
	// is still scored and commented under the placeholder id.
	OutcomeInvalid
)

// String returns the string representation of a FeedbackOutcome.
func (o FeedbackOutcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeGenerated:
		return "generated"
	case OutcomeFallback:
		return "fallback"
	case OutcomeDeadline:
		return "deadline"
	case OutcomeInvalid:
		return "invalid"
	default:
		return "unknown"
	}
}

// StudentReport is the scored record for one student, carried through the
// batch orchestrator and finished with feedback text. The orchestrator owns
// the record exclusively after creation.
type StudentReport struct {
	StudentID string `json:"student_id" validate:"required"`
	Name      string `json:"name"`
	Class     string `json:"class"`

	Score ScoreResult `json:"score"`

	// ClassRank and GradeRank are dense "r/n" rankings by correct count,
	// within the class and within the grade respectively. Empty when the
	// sheet was not ranked (e.g. the student did not sit the exam).
	ClassRank string `json:"class_rank,omitempty"`
	GradeRank string `json:"grade_rank,omitempty"`

	Feedback string          `json:"feedback,omitempty"`
	Outcome  FeedbackOutcome `json:"outcome"`
}

// Validate checks the report for structural validity.
func (r *StudentReport) Validate() error { return validate.Struct(r) }
