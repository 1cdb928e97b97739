package feedback

import (
	"fmt"
	"strings"

	"github.com/edulytics/reportgen/internal/domain"
)

// FallbackComment builds a deterministic comment from the scores alone.
// It is used whenever generation cannot complete, so its tone mirrors the
// generated comments: addressed to the student, encouraging, concrete.
func FallbackComment(report *domain.StudentReport) string {
	score := report.Score
	if !score.Attempted {
		return "Em chưa tham gia bài kiểm tra lần này. Em hãy chủ động ôn tập và hoàn thành bài ở lần kiểm tra sau nhé."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Em làm đúng %d/%d câu", score.Correct, score.Total)
	if score.Total > 0 {
		fmt.Fprintf(&b, ", đạt %d%% mức cơ bản và %d%% mức vận dụng",
			score.BasicPercent, score.AdvancedPercent)
	}
	b.WriteString(". ")

	switch {
	case score.BasicPercent >= 80 && score.AdvancedPercent >= 50:
		b.WriteString("Em nắm kiến thức rất chắc, hãy tiếp tục phát huy và thử sức thêm với các bài vận dụng cao.")
	case score.BasicPercent >= 50:
		b.WriteString("Em đã nắm được phần lớn kiến thức cơ bản, cần luyện tập thêm các dạng bài vận dụng.")
	default:
		b.WriteString("Em cần củng cố lại kiến thức cơ bản trước khi luyện các dạng bài nâng cao.")
	}

	if r := strings.TrimSpace(score.Remediation); r != "" {
		b.WriteString(" Nội dung em nên ôn tập lại: ")
		b.WriteString(r)
		b.WriteString(".")
	}
	return b.String()
}
