// Package sheet loads answer sheets and topic matrices from CSV exports.
// Malformed input surfaces as domain.DataShapeError with 1-based row
// numbers, matching how the files look in a spreadsheet.
package sheet

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/edulytics/reportgen/internal/domain"
)

// keyRowMarkers identify the answer-key row inside a sheet export. Exports
// come from several templates, so all known spellings are accepted.
var keyRowMarkers = []string{"key", "đáp án", "dap an", "dapan", "đáp-án"}

// column indices resolved from the header row.
type sheetColumns struct {
	studentID int
	name      int
	class     int
	answers   int
}

// VerdictSheet is one row of a pre-judged export: per-question verdict cells
// instead of a choice string.
type VerdictSheet struct {
	StudentID string
	Name      string
	Class     string
	Verdicts  []string
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(h)))
}

func headerIndex(header []string, names ...string) int {
	for i, h := range header {
		h = normalizeHeader(h)
		for _, name := range names {
			if h == name {
				return i
			}
		}
	}
	return -1
}

func resolveSheetColumns(header []string) (sheetColumns, error) {
	cols := sheetColumns{
		studentID: headerIndex(header, "student_id", "sbd", "số báo danh"),
		name:      headerIndex(header, "name", "họ và tên", "họ tên"),
		class:     headerIndex(header, "class", "lớp"),
		answers:   headerIndex(header, "answers", "bài làm", "đáp án chọn"),
	}
	if cols.studentID < 0 || cols.answers < 0 {
		return cols, &domain.DataShapeError{
			Row:     1,
			Field:   "header",
			Message: "sheet export must carry student_id and answers columns",
		}
	}
	return cols, nil
}

func cell(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func isKeyRow(studentID, name string) bool {
	for _, v := range []string{studentID, name} {
		v = normalizeHeader(v)
		for _, marker := range keyRowMarkers {
			if v == marker {
				return true
			}
		}
	}
	return false
}

// ReadSheets parses a choice-mode export. The answer key is the row whose
// student id or name matches a key marker; exactly one must be present and
// its answers are attached to every returned sheet.
func ReadSheets(r io.Reader) ([]domain.StudentSheet, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read sheet header: %w", err)
	}
	cols, err := resolveSheetColumns(header)
	if err != nil {
		return nil, err
	}

	var sheets []domain.StudentSheet
	var key string
	keyFound := false

	row := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			return nil, &domain.DataShapeError{Row: row, Field: "record", Message: err.Error()}
		}

		id := cell(record, cols.studentID)
		name := cell(record, cols.name)
		answers := cell(record, cols.answers)

		if isKeyRow(id, name) {
			if keyFound {
				return nil, &domain.DataShapeError{Row: row, Field: "key", Message: "duplicate answer-key row"}
			}
			if answers == "" {
				return nil, &domain.DataShapeError{Row: row, Field: "key", Message: "answer-key row carries no answers"}
			}
			key = answers
			keyFound = true
			continue
		}

		sheets = append(sheets, domain.StudentSheet{
			StudentID:  id,
			Name:       name,
			Class:      cell(record, cols.class),
			RawAnswers: answers,
		})
	}

	if !keyFound {
		return nil, &domain.DataShapeError{Row: 1, Field: "key", Message: "export contains no answer-key row"}
	}
	for i := range sheets {
		sheets[i].RawKey = key
	}
	return sheets, nil
}

// ReadVerdictSheets parses a pre-judged export: fixed identity columns
// followed by one verdict cell per question.
func ReadVerdictSheets(r io.Reader) ([]VerdictSheet, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read verdict header: %w", err)
	}
	idIdx := headerIndex(header, "student_id", "sbd", "số báo danh")
	nameIdx := headerIndex(header, "name", "họ và tên", "họ tên")
	classIdx := headerIndex(header, "class", "lớp")
	if idIdx < 0 {
		return nil, &domain.DataShapeError{Row: 1, Field: "header", Message: "verdict export must carry a student_id column"}
	}

	firstVerdict := maxIndex(idIdx, nameIdx, classIdx) + 1

	var sheets []VerdictSheet
	row := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			return nil, &domain.DataShapeError{Row: row, Field: "record", Message: err.Error()}
		}

		var verdicts []string
		if firstVerdict < len(record) {
			for _, v := range record[firstVerdict:] {
				verdicts = append(verdicts, strings.TrimSpace(v))
			}
		}
		sheets = append(sheets, VerdictSheet{
			StudentID: cell(record, idIdx),
			Name:      cell(record, nameIdx),
			Class:     cell(record, classIdx),
			Verdicts:  verdicts,
		})
	}
	return sheets, nil
}

// ReadMatrix parses a topic-matrix export into a validated TopicMatrix.
func ReadMatrix(r io.Reader) (*domain.TopicMatrix, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read matrix header: %w", err)
	}
	qIdx := headerIndex(header, "question", "câu", "câu hỏi")
	subjectIdx := headerIndex(header, "subject", "môn")
	topicIdx := headerIndex(header, "topic", "chuyên đề", "chủ đề")
	chapterIdx := headerIndex(header, "chapter", "chương")
	lessonIdx := headerIndex(header, "lesson", "bài", "nội dung")
	levelIdx := headerIndex(header, "level", "mức độ")
	linkIdx := headerIndex(header, "practice_link", "link luyện tập", "link")
	if qIdx < 0 || levelIdx < 0 {
		return nil, &domain.DataShapeError{Row: 1, Field: "header", Message: "matrix export must carry question and level columns"}
	}

	var records []domain.TopicRecord
	row := 1
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		row++
		if err != nil {
			return nil, &domain.DataShapeError{Row: row, Field: "record", Message: err.Error()}
		}

		rawQ := cell(record, qIdx)
		q, err := strconv.Atoi(rawQ)
		if err != nil {
			return nil, &domain.DataShapeError{Row: row, Field: "question", Message: "not a number: " + rawQ}
		}
		records = append(records, domain.TopicRecord{
			Question:     q,
			Subject:      cell(record, subjectIdx),
			Topic:        cell(record, topicIdx),
			Chapter:      cell(record, chapterIdx),
			Lesson:       cell(record, lessonIdx),
			Level:        domain.CognitiveLevel(strings.ToUpper(cell(record, levelIdx))),
			PracticeLink: cell(record, linkIdx),
		})
	}
	return domain.NewTopicMatrix(records)
}

func maxIndex(idx ...int) int {
	max := -1
	for _, i := range idx {
		if i > max {
			max = i
		}
	}
	return max
}
