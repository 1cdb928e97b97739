package domain

// ScoreResult is the immutable outcome of scoring one answer sheet.
// Invariant: Correct + Wrong + Skipped equals the question count the sheet
// was scored against.
type ScoreResult struct {
	Total   int `json:"total"`
	Correct int `json:"correct"`
	Wrong   int `json:"wrong"`
	Skipped int `json:"skipped"`

	// Attempted records whether the sheet carried any response at all.
	// The scorer sets it from the raw input, so it stays meaningful even
	// when blank answers are counted wrong rather than skipped.
	Attempted bool `json:"attempted"`

	// CorrectBasic and CorrectAdvanced count correct answers whose matrix
	// row falls in the respective tier. Questions without a usable level
	// contribute to neither.
	CorrectBasic    int `json:"correct_basic"`
	CorrectAdvanced int `json:"correct_advanced"`

	// BasicPercent and AdvancedPercent are half-up rounded integer
	// percentages of the tier totals, 0 when the tier has no questions.
	BasicPercent    int `json:"basic_percent"`
	AdvancedPercent int `json:"advanced_percent"`

	// WrongQuestions lists the 1-based indices answered wrong or skipped,
	// in ascending order.
	WrongQuestions []int `json:"wrong_questions,omitempty"`

	// Remediation is the flattened, deterministically ordered grouping of
	// topics to revisit, formatted "Subject - Topic: Lesson (link); ...".
	Remediation string `json:"remediation,omitempty"`
}
