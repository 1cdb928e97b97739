package sheet

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edulytics/reportgen/internal/domain"
)

func TestReadSheets(t *testing.T) {
	input := strings.Join([]string{
		"student_id,name,class,answers",
		"KEY,Đáp án,,ABCDA",
		"hs-001,Nguyễn Văn An,12A1,ABCDB",
		"hs-002,Trần Thị Bình,12A2,",
	}, "\n")

	sheets, err := ReadSheets(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, sheets, 2)

	assert.Equal(t, "hs-001", sheets[0].StudentID)
	assert.Equal(t, "Nguyễn Văn An", sheets[0].Name)
	assert.Equal(t, "12A1", sheets[0].Class)
	assert.Equal(t, "ABCDB", sheets[0].RawAnswers)
	assert.Equal(t, "ABCDA", sheets[0].RawKey)

	// Blank answers stay blank; the scorer decides what that means.
	assert.Empty(t, sheets[1].RawAnswers)
	assert.Equal(t, "ABCDA", sheets[1].RawKey)
}

func TestReadSheetsVietnameseHeader(t *testing.T) {
	input := strings.Join([]string{
		"SBD,Họ và tên,Lớp,Bài làm",
		"1001,Lê Văn Cường,11B1,AABB",
		",Đáp án,,ABAB",
	}, "\n")

	sheets, err := ReadSheets(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, sheets, 1)
	assert.Equal(t, "1001", sheets[0].StudentID)
	assert.Equal(t, "ABAB", sheets[0].RawKey)
}

func TestReadSheetsMissingKeyRow(t *testing.T) {
	input := "student_id,name,class,answers\nhs-001,An,12A1,ABCD\n"
	_, err := ReadSheets(strings.NewReader(input))
	require.Error(t, err)
	assert.True(t, domain.IsDataShapeError(err))
}

func TestReadSheetsDuplicateKeyRow(t *testing.T) {
	input := strings.Join([]string{
		"student_id,name,class,answers",
		"KEY,,,AB",
		"KEY,,,BA",
	}, "\n")
	_, err := ReadSheets(strings.NewReader(input))
	require.Error(t, err)
	assert.True(t, domain.IsDataShapeError(err))
}

func TestReadSheetsMissingColumns(t *testing.T) {
	input := "name,class\nAn,12A1\n"
	_, err := ReadSheets(strings.NewReader(input))
	require.Error(t, err)
	assert.True(t, domain.IsDataShapeError(err))
}

func TestReadVerdictSheets(t *testing.T) {
	input := strings.Join([]string{
		"student_id,name,class,q1,q2,q3",
		"hs-001,An,12A1,Đúng,Sai,Bỏ qua",
	}, "\n")

	sheets, err := ReadVerdictSheets(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, sheets, 1)
	assert.Equal(t, []string{"Đúng", "Sai", "Bỏ qua"}, sheets[0].Verdicts)
}

func TestReadMatrix(t *testing.T) {
	input := strings.Join([]string{
		"question,subject,topic,chapter,lesson,level,practice_link",
		"1,Toán,Hàm số,Chương 1,Đơn điệu,NB,https://ex.am/1",
		"2,Toán,Hàm số,Chương 1,Cực trị,VD,",
	}, "\n")

	matrix, err := ReadMatrix(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 2, matrix.Len())

	rec, ok := matrix.Lookup(1)
	require.True(t, ok)
	assert.Equal(t, domain.CognitiveLevel("NB"), rec.Level)
	assert.Equal(t, "https://ex.am/1", rec.PracticeLink)

	basic, advanced := matrix.TierTotals()
	assert.Equal(t, 1, basic)
	assert.Equal(t, 1, advanced)
}

func TestReadMatrixRejectsDuplicateQuestion(t *testing.T) {
	input := strings.Join([]string{
		"question,level",
		"1,NB",
		"1,VD",
	}, "\n")
	_, err := ReadMatrix(strings.NewReader(input))
	require.Error(t, err)
	assert.True(t, domain.IsDataShapeError(err))
}

func TestReadMatrixRejectsBadQuestionNumber(t *testing.T) {
	input := "question,level\nabc,NB\n"
	_, err := ReadMatrix(strings.NewReader(input))
	require.Error(t, err)
	assert.True(t, domain.IsDataShapeError(err))
}
