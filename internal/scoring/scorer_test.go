package scoring

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulytics/reportgen/internal/domain"
)

func testMatrix(t *testing.T, records []domain.TopicRecord) *domain.TopicMatrix {
	t.Helper()
	m, err := domain.NewTopicMatrix(records)
	require.NoError(t, err)
	return m
}

func TestScoreChoiceMode(t *testing.T) {
	matrix := testMatrix(t, []domain.TopicRecord{
		{Question: 1, Level: "NB", Topic: "Hàm số", Lesson: "Đơn điệu"},
		{Question: 2, Level: "TH", Topic: "Hàm số", Lesson: "Cực trị"},
		{Question: 3, Level: "VD", Topic: "Mũ và Logarit", Lesson: "Phương trình mũ"},
		{Question: 4, Level: "VDC", Topic: "Mũ và Logarit", Lesson: "Bất phương trình"},
		{Question: 5, Level: "NB", Topic: "Hàm số", Lesson: "Tiệm cận"},
	})

	scorer := NewScorer(Options{})
	sheet := domain.StudentSheet{RawAnswers: "ABCAB", RawKey: "ABCBA"}
	res := scorer.Score(sheet, matrix, 5)

	assert.Equal(t, 5, res.Total)
	assert.Equal(t, 3, res.Correct)
	assert.Equal(t, 2, res.Wrong)
	assert.Zero(t, res.Skipped)
	assert.Equal(t, 2, res.CorrectBasic)
	assert.Equal(t, 1, res.CorrectAdvanced)
	// 2 of 3 basic correct rounds up, 1 of 2 advanced is exact.
	assert.Equal(t, 67, res.BasicPercent)
	assert.Equal(t, 50, res.AdvancedPercent)
	assert.Equal(t, []int{4, 5}, res.WrongQuestions)
	assert.True(t, res.Attempted)
}

func TestScoreAllEmptyDefaultPolicy(t *testing.T) {
	scorer := NewScorer(Options{})
	key := strings.Repeat("A", 25)
	res := scorer.Score(domain.StudentSheet{RawAnswers: "", RawKey: key}, nil, 25)

	assert.Equal(t, 25, res.Total)
	assert.Zero(t, res.Correct)
	assert.Equal(t, 25, res.Wrong)
	assert.Zero(t, res.Skipped)
	// Counted wrong, but the student still never sat the exam.
	assert.False(t, res.Attempted)
}

func TestScoreAllEmptySkippedPolicy(t *testing.T) {
	scorer := NewScorer(Options{Blank: BlankCountsSkipped})
	res := scorer.Score(domain.StudentSheet{RawAnswers: "", RawKey: "ABCD"}, nil, 4)

	assert.Equal(t, 4, res.Skipped)
	assert.Zero(t, res.Wrong)
	assert.Zero(t, res.Correct)
	assert.False(t, res.Attempted)
}

func TestScoreSentinelsAlwaysWrong(t *testing.T) {
	scorer := NewScorer(Options{})
	// Key position 2 is "."; the sheet also holds "." there. A sentinel
	// never scores even when it coincides with the key.
	res := scorer.Score(domain.StudentSheet{RawAnswers: "A.*", RawKey: "A.B"}, nil, 3)

	assert.Equal(t, 1, res.Correct)
	assert.Equal(t, 2, res.Wrong)
	assert.Equal(t, []int{2, 3}, res.WrongQuestions)
}

func TestScoreBlankSentinelFollowsPolicy(t *testing.T) {
	scorer := NewScorer(Options{Blank: BlankCountsSkipped})
	res := scorer.Score(domain.StudentSheet{RawAnswers: "A B", RawKey: "ABB"}, nil, 3)

	assert.Equal(t, 2, res.Correct)
	assert.Equal(t, 1, res.Skipped)
	assert.Zero(t, res.Wrong)
}

func TestScoreShortAnswersAndKey(t *testing.T) {
	scorer := NewScorer(Options{})
	// Both shorter than total: uncovered positions count wrong, key gaps
	// cannot score.
	res := scorer.Score(domain.StudentSheet{RawAnswers: "AB", RawKey: "A"}, nil, 4)

	assert.Equal(t, 1, res.Correct)
	assert.Equal(t, 3, res.Wrong)
	assert.Equal(t, 4, res.Total)
}

func TestScoreCaseAndArtifactNormalization(t *testing.T) {
	scorer := NewScorer(Options{})
	// U+00D0 in the sheet must match an answer-key "Đ" (U+0110).
	res := scorer.Score(domain.StudentSheet{RawAnswers: "aÐ", RawKey: "AĐ"}, nil, 2)

	assert.Equal(t, 2, res.Correct)
	assert.Zero(t, res.Wrong)
}

func TestScorePercentZeroWhenTierEmpty(t *testing.T) {
	matrix := testMatrix(t, []domain.TopicRecord{
		{Question: 1, Level: "NB", Topic: "Số phức", Lesson: "Khái niệm"},
	})
	scorer := NewScorer(Options{})
	res := scorer.Score(domain.StudentSheet{RawAnswers: "A", RawKey: "A"}, matrix, 1)

	assert.Equal(t, 100, res.BasicPercent)
	assert.Zero(t, res.AdvancedPercent)
}

func TestScoreUnknownLevelCountsNeitherTier(t *testing.T) {
	matrix := testMatrix(t, []domain.TopicRecord{
		{Question: 1, Level: "??", Topic: "Tổ hợp", Lesson: "Chỉnh hợp"},
	})
	scorer := NewScorer(Options{})
	res := scorer.Score(domain.StudentSheet{RawAnswers: "A", RawKey: "A"}, matrix, 1)

	assert.Equal(t, 1, res.Correct)
	assert.Zero(t, res.CorrectBasic)
	assert.Zero(t, res.CorrectAdvanced)
}

func TestScoreVerdicts(t *testing.T) {
	scorer := NewScorer(Options{})
	verdicts := []string{VerdictCorrect, VerdictWrong, VerdictSkipped, "???"}
	res := scorer.ScoreVerdicts(verdicts, nil, 5)

	assert.Equal(t, 1, res.Correct)
	// Unknown cell and the missing fifth position both count wrong.
	assert.Equal(t, 3, res.Wrong)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, []int{2, 3, 4, 5}, res.WrongQuestions)
	assert.True(t, res.Attempted)
}

func TestScoreVerdictsAllSkippedNotAttempted(t *testing.T) {
	scorer := NewScorer(Options{})
	res := scorer.ScoreVerdicts([]string{VerdictSkipped, VerdictSkipped}, nil, 2)

	assert.Equal(t, 2, res.Skipped)
	assert.False(t, res.Attempted)
}

func TestRemediationGrouping(t *testing.T) {
	matrix := testMatrix(t, []domain.TopicRecord{
		{Question: 1, Level: "NB", Subject: "Toán", Topic: "Hàm số", Lesson: "Đơn điệu", PracticeLink: "https://ex.am/1"},
		{Question: 2, Level: "TH", Subject: "Toán", Topic: "Hàm số", Lesson: "Cực trị"},
		{Question: 3, Level: "VD", Subject: "Toán", Topic: "Hàm số", Lesson: "Đơn điệu"},
		{Question: 4, Level: "NB", Subject: "Toán", Topic: "Tích phân", Lesson: "Nguyên hàm"},
	})
	scorer := NewScorer(Options{})
	res := scorer.Score(domain.StudentSheet{RawAnswers: "XXXX", RawKey: "ABCD"}, matrix, 4)

	// Lessons deduplicate across questions 1 and 3 and keep the link.
	assert.Equal(t,
		"Toán - Hàm số: Cực trị - Đơn điệu (https://ex.am/1); Toán - Tích phân: Nguyên hàm",
		res.Remediation)
}

func TestRemediationEmptyWhenAllCorrect(t *testing.T) {
	matrix := testMatrix(t, []domain.TopicRecord{
		{Question: 1, Level: "NB", Topic: "Hàm số", Lesson: "Đơn điệu"},
	})
	scorer := NewScorer(Options{})
	res := scorer.Score(domain.StudentSheet{RawAnswers: "A", RawKey: "A"}, matrix, 1)
	assert.Empty(t, res.Remediation)
}
