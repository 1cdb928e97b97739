// Package scoring evaluates raw answer sheets against an answer key and
// knowledge matrix. Scoring is a pure function: no I/O, no shared state,
// safe to call concurrently for different sheets.
package scoring

import (
	"math"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/edulytics/reportgen/internal/domain"
)

// BlankPolicy selects how an empty response is counted. The source systems
// feeding this pipeline disagree on the intent, so the choice is explicit
// configuration rather than a silent default.
type BlankPolicy uint8

const (
	// BlankCountsWrong treats an empty response like any other miss.
	BlankCountsWrong BlankPolicy = iota

	// BlankCountsSkipped treats an empty response as an explicit skip.
	// Under this policy a sheet with no responses at all is entirely
	// skipped, not entirely wrong.
	BlankCountsSkipped
)

// Verdict strings found in pre-judged (verdict mode) sheets.
const (
	VerdictCorrect = "Đúng"
	VerdictWrong   = "Sai"
	VerdictSkipped = "Bỏ qua"
)

// sentinelResponses are placeholder characters emitted by the sheet scanner
// for unreadable or voided answers. They always count wrong, even when one
// happens to match the key character.
var sentinelResponses = map[string]struct{}{".": {}, "*": {}, "": {}}

// ocrArtifacts repairs characters mangled upstream of this pipeline.
// The sheet scanner's macro substitutes the visually similar U+00D0 for the
// Vietnamese "Đ" (U+0110).
var ocrArtifacts = strings.NewReplacer("Ð", "Đ", "ð", "đ")

// Options configures a Scorer.
type Options struct {
	Blank BlankPolicy
}

// Scorer scores answer sheets. The zero value scores with BlankCountsWrong.
type Scorer struct {
	opts Options
}

// NewScorer creates a scorer with the given options.
func NewScorer(opts Options) *Scorer { return &Scorer{opts: opts} }

// Normalize canonicalizes a response or key cell for positional comparison:
// trim, NFC composition, OCR artifact repair, upper-casing.
func Normalize(s string) string {
	s = strings.TrimSpace(s)
	s = norm.NFC.String(s)
	s = ocrArtifacts.Replace(s)
	return strings.ToUpper(s)
}

// Score evaluates one sheet's raw answers against its key.
//
// rawAnswers may be shorter than total; missing positions are unanswered.
// A key that does not cover an index leaves that index out of tier-based
// accounting but the position is still counted per the blank policy.
// Malformed matrix rows (no usable cognitive level) contribute to neither
// tier; they never fail the call.
func (s *Scorer) Score(sheet domain.StudentSheet, matrix *domain.TopicMatrix, total int) domain.ScoreResult {
	answers := splitResponses(sheet.RawAnswers)
	key := splitResponses(sheet.RawKey)

	// Sat-the-exam comes from the raw input, not from the counters: under
	// the default policy an empty sheet scores entirely wrong yet the
	// student still never sat it.
	attempted := strings.TrimSpace(sheet.RawAnswers) != ""

	if s.opts.Blank == BlankCountsSkipped && !attempted {
		// The one source variant that distinguishes skips treats a fully
		// empty sheet as skipped in its entirety rather than entirely wrong.
		return domain.ScoreResult{Total: total, Skipped: total}
	}

	res := domain.ScoreResult{Total: total, Attempted: attempted}
	var wrongOrSkipped []int

	for i := 0; i < total; i++ {
		question := i + 1

		var answer string
		if i < len(answers) {
			answer = answers[i]
		}
		var want string
		if i < len(key) {
			want = key[i]
		}

		switch s.classify(answer, want) {
		case verdictCorrect:
			res.Correct++
			s.countTier(&res, matrix, question)
		case verdictSkipped:
			res.Skipped++
			wrongOrSkipped = append(wrongOrSkipped, question)
		default:
			res.Wrong++
			wrongOrSkipped = append(wrongOrSkipped, question)
		}
	}

	finishResult(&res, matrix, wrongOrSkipped)
	return res
}

// ScoreVerdicts evaluates a pre-judged sheet whose cells carry per-question
// verdict strings instead of choice characters. Unknown cell values count
// wrong; skips come only from the explicit skip verdict.
func (s *Scorer) ScoreVerdicts(verdicts []string, matrix *domain.TopicMatrix, total int) domain.ScoreResult {
	res := domain.ScoreResult{Total: total}
	var wrongOrSkipped []int

	for i := 0; i < total; i++ {
		question := i + 1

		var cell string
		if i < len(verdicts) {
			cell = ocrArtifacts.Replace(strings.TrimSpace(verdicts[i]))
		}

		switch cell {
		case VerdictCorrect:
			res.Correct++
			res.Attempted = true
			s.countTier(&res, matrix, question)
		case VerdictWrong:
			res.Wrong++
			res.Attempted = true
			wrongOrSkipped = append(wrongOrSkipped, question)
		case VerdictSkipped:
			res.Skipped++
			wrongOrSkipped = append(wrongOrSkipped, question)
		default:
			res.Wrong++
			wrongOrSkipped = append(wrongOrSkipped, question)
		}
	}

	finishResult(&res, matrix, wrongOrSkipped)
	return res
}

type verdict uint8

const (
	verdictWrong verdict = iota
	verdictCorrect
	verdictSkipped
)

// classify decides one position. Sentinel responses are always wrong:
// the scanner emits them for voided answers, so a coincidental match with
// the key must not score.
func (s *Scorer) classify(answer, want string) verdict {
	answer = Normalize(answer)
	if _, sentinel := sentinelResponses[answer]; sentinel {
		if answer == "" && s.opts.Blank == BlankCountsSkipped {
			return verdictSkipped
		}
		return verdictWrong
	}
	if want = Normalize(want); want != "" && answer == want {
		return verdictCorrect
	}
	return verdictWrong
}

// countTier credits a correct answer to its matrix tier, if any.
func (s *Scorer) countTier(res *domain.ScoreResult, matrix *domain.TopicMatrix, question int) {
	if matrix == nil {
		return
	}
	rec, ok := matrix.Lookup(question)
	if !ok {
		return
	}
	switch rec.Level.Tier() {
	case domain.TierBasic:
		res.CorrectBasic++
	case domain.TierAdvanced:
		res.CorrectAdvanced++
	}
}

// finishResult fills percentages, wrong indices and remediation grouping.
func finishResult(res *domain.ScoreResult, matrix *domain.TopicMatrix, wrongOrSkipped []int) {
	var totalBasic, totalAdvanced int
	if matrix != nil {
		totalBasic, totalAdvanced = matrix.TierTotals()
	}
	res.BasicPercent = roundPercent(res.CorrectBasic, totalBasic)
	res.AdvancedPercent = roundPercent(res.CorrectAdvanced, totalAdvanced)
	res.WrongQuestions = wrongOrSkipped
	res.Remediation = remediationText(matrix, wrongOrSkipped)
}

// roundPercent returns the half-up rounded integer percentage, 0 for an
// empty denominator.
func roundPercent(part, whole int) int {
	if whole <= 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(whole) * 100))
}

// splitResponses breaks a raw string into per-question single-rune cells.
func splitResponses(raw string) []string {
	runes := []rune(raw)
	out := make([]string, len(runes))
	for i, r := range runes {
		out[i] = string(r)
	}
	return out
}
