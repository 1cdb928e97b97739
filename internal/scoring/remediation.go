package scoring

import (
	"sort"
	"strings"

	"github.com/edulytics/reportgen/internal/domain"
)

// remediationText builds the "review these lessons" summary for a set of
// missed question numbers. Lessons are grouped under their subject and topic,
// deduplicated, and ordered lexicographically so two runs over the same sheet
// produce the same text.
func remediationText(matrix *domain.TopicMatrix, missed []int) string {
	if matrix == nil || len(missed) == 0 {
		return ""
	}

	type groupKey struct {
		subject string
		topic   string
	}
	groups := make(map[groupKey]map[string]string) // lesson display -> practice link

	for _, q := range missed {
		rec, ok := matrix.Lookup(q)
		if !ok {
			continue
		}
		lesson := lessonDisplay(rec)
		if lesson == "" {
			continue
		}
		key := groupKey{subject: strings.TrimSpace(rec.Subject), topic: strings.TrimSpace(rec.Topic)}
		if groups[key] == nil {
			groups[key] = make(map[string]string)
		}
		if link := strings.TrimSpace(rec.PracticeLink); link != "" || groups[key][lesson] == "" {
			groups[key][lesson] = link
		}
	}
	if len(groups) == 0 {
		return ""
	}

	keys := make([]groupKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].subject != keys[j].subject {
			return keys[i].subject < keys[j].subject
		}
		return keys[i].topic < keys[j].topic
	})

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		lessons := groups[k]
		names := make([]string, 0, len(lessons))
		for name := range lessons {
			names = append(names, name)
		}
		sort.Strings(names)

		rendered := make([]string, len(names))
		for i, name := range names {
			if link := lessons[name]; link != "" {
				rendered[i] = name + " (" + link + ")"
			} else {
				rendered[i] = name
			}
		}

		var b strings.Builder
		if k.subject != "" {
			b.WriteString(k.subject)
			b.WriteString(" - ")
		}
		if k.topic != "" {
			b.WriteString(k.topic)
			b.WriteString(": ")
		}
		b.WriteString(strings.Join(rendered, " - "))
		parts = append(parts, b.String())
	}
	return strings.Join(parts, "; ")
}

// lessonDisplay renders a matrix row's lesson, prefixed by chapter when set.
func lessonDisplay(rec domain.TopicRecord) string {
	lesson := strings.TrimSpace(rec.Lesson)
	chapter := strings.TrimSpace(rec.Chapter)
	switch {
	case lesson == "" && chapter == "":
		return ""
	case chapter == "":
		return lesson
	case lesson == "":
		return chapter
	default:
		return chapter + " - " + lesson
	}
}
