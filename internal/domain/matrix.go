package domain

import (
	"fmt"
	"sort"
)

// Tier buckets cognitive-level tags into the two remediation groups used by
// the percentage analytics.
type Tier uint8

const (
	// TierNone marks a question whose matrix row carries no usable
	// cognitive level. It contributes to neither tier's totals.
	TierNone Tier = iota

	// TierBasic groups recall and comprehension levels.
	TierBasic

	// TierAdvanced groups application and higher levels.
	TierAdvanced
)

// String returns the string representation of a Tier.
func (t Tier) String() string {
	switch t {
	case TierBasic:
		return "basic"
	case TierAdvanced:
		return "advanced"
	default:
		return "none"
	}
}

// CognitiveLevel is the raw matrix tag for a question ("NB", "TH", "VD", ...).
type CognitiveLevel string

// basicLevels and advancedLevels enumerate the known tags per tier.
// Tags outside both sets are level-agnostic, never an error.
var (
	basicLevels    = map[CognitiveLevel]struct{}{"NB": {}, "TH": {}, "NBT": {}}
	advancedLevels = map[CognitiveLevel]struct{}{"VD": {}, "VDT": {}, "VDC": {}}
)

// Tier returns the remediation tier for the level tag.
func (l CognitiveLevel) Tier() Tier {
	if _, ok := basicLevels[l]; ok {
		return TierBasic
	}
	if _, ok := advancedLevels[l]; ok {
		return TierAdvanced
	}
	return TierNone
}

// TopicRecord describes one question in the knowledge matrix.
// Subject, Chapter and PracticeLink are optional; matrices for single-subject
// exams omit them.
type TopicRecord struct {
	Question     int            `json:"question" validate:"gt=0"` // 1-based
	Subject      string         `json:"subject,omitempty"`
	Topic        string         `json:"topic"`
	Chapter      string         `json:"chapter,omitempty"`
	Lesson       string         `json:"lesson"`
	Level        CognitiveLevel `json:"level"`
	PracticeLink string         `json:"practice_link,omitempty"`
}

// TopicMatrix maps 1-based question numbers to topic records.
// It is immutable once built and safe for concurrent readers.
type TopicMatrix struct {
	records       map[int]TopicRecord
	totalBasic    int
	totalAdvanced int
}

// NewTopicMatrix builds a matrix from loaded records. A duplicate question
// number is ambiguous and rejected with a DataShapeError so the ambiguity
// surfaces once at load time instead of silently at every score call.
func NewTopicMatrix(records []TopicRecord) (*TopicMatrix, error) {
	m := &TopicMatrix{records: make(map[int]TopicRecord, len(records))}
	for _, rec := range records {
		if rec.Question <= 0 {
			return nil, &DataShapeError{
				Field:   "question",
				Message: fmt.Sprintf("question number must be positive, got %d", rec.Question),
			}
		}
		if _, dup := m.records[rec.Question]; dup {
			return nil, &DataShapeError{
				Field:   "question",
				Message: fmt.Sprintf("duplicate matrix row for question %d", rec.Question),
			}
		}
		m.records[rec.Question] = rec
		switch rec.Level.Tier() {
		case TierBasic:
			m.totalBasic++
		case TierAdvanced:
			m.totalAdvanced++
		}
	}
	return m, nil
}

// Lookup returns the topic record for a 1-based question number.
func (m *TopicMatrix) Lookup(question int) (TopicRecord, bool) {
	rec, ok := m.records[question]
	return rec, ok
}

// TierTotals returns how many matrix questions fall in each tier.
func (m *TopicMatrix) TierTotals() (basic, advanced int) {
	return m.totalBasic, m.totalAdvanced
}

// Len returns the number of questions the matrix covers.
func (m *TopicMatrix) Len() int { return len(m.records) }

// Records returns the matrix rows in ascending question order.
// Used when a matrix must cross a serialization boundary.
func (m *TopicMatrix) Records() []TopicRecord {
	out := make([]TopicRecord, 0, len(m.records))
	for _, rec := range m.records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Question < out[j].Question })
	return out
}
