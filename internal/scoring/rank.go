package scoring

import (
	"regexp"
	"sort"
	"strconv"

	"github.com/edulytics/reportgen/internal/domain"
)

// NotRanked marks a report whose student did not sit the exam.
const NotRanked = "Không thi"

var gradeDigits = regexp.MustCompile(`\d+`)

// GradeFromClass extracts the grade number from a class label such as
// "12A3" or "Lớp 10B". It returns the first digit run, or "" when the label
// carries none.
func GradeFromClass(class string) string {
	return gradeDigits.FindString(class)
}

// Rank fills ClassRank and GradeRank on every report in place, formatted as
// "rank/cohortSize". Ranking is dense: students with the same correct count
// share a rank and the next distinct count takes the next rank, not a gap.
// Reports for students who did not attempt the exam are marked NotRanked and
// do not shrink anyone else's cohort denominator, mirroring the published
// school-report convention.
func Rank(reports []domain.StudentReport) {
	byClass := make(map[string][]*domain.StudentReport)
	byGrade := make(map[string][]*domain.StudentReport)
	for i := range reports {
		r := &reports[i]
		byClass[r.Class] = append(byClass[r.Class], r)
		byGrade[GradeFromClass(r.Class)] = append(byGrade[GradeFromClass(r.Class)], r)
	}

	for _, cohort := range byClass {
		rankCohort(cohort, func(r *domain.StudentReport, s string) { r.ClassRank = s })
	}
	for _, cohort := range byGrade {
		rankCohort(cohort, func(r *domain.StudentReport, s string) { r.GradeRank = s })
	}
}

func rankCohort(cohort []*domain.StudentReport, set func(*domain.StudentReport, string)) {
	sort.SliceStable(cohort, func(i, j int) bool {
		return cohort[i].Score.Correct > cohort[j].Score.Correct
	})

	size := strconv.Itoa(len(cohort))
	rank := 0
	prev := -1
	for _, r := range cohort {
		if !r.Score.Attempted {
			set(r, NotRanked)
			continue
		}
		if r.Score.Correct != prev {
			rank++
			prev = r.Score.Correct
		}
		set(r, strconv.Itoa(rank)+"/"+size)
	}
}
