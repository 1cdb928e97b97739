package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCognitiveLevelTier(t *testing.T) {
	assert.Equal(t, TierBasic, CognitiveLevel("NB").Tier())
	assert.Equal(t, TierBasic, CognitiveLevel("TH").Tier())
	assert.Equal(t, TierBasic, CognitiveLevel("NBT").Tier())
	assert.Equal(t, TierAdvanced, CognitiveLevel("VD").Tier())
	assert.Equal(t, TierAdvanced, CognitiveLevel("VDT").Tier())
	assert.Equal(t, TierAdvanced, CognitiveLevel("VDC").Tier())
	assert.Equal(t, TierNone, CognitiveLevel("??").Tier())
	assert.Equal(t, TierNone, CognitiveLevel("").Tier())
}

func TestNewTopicMatrixTotalsAndOrder(t *testing.T) {
	m, err := NewTopicMatrix([]TopicRecord{
		{Question: 3, Level: "VD"},
		{Question: 1, Level: "NB"},
		{Question: 2, Level: "??"},
	})
	require.NoError(t, err)

	basic, advanced := m.TierTotals()
	assert.Equal(t, 1, basic)
	assert.Equal(t, 1, advanced)
	assert.Equal(t, 3, m.Len())

	records := m.Records()
	require.Len(t, records, 3)
	assert.Equal(t, 1, records[0].Question)
	assert.Equal(t, 3, records[2].Question)
}

func TestNewTopicMatrixRejectsDuplicates(t *testing.T) {
	_, err := NewTopicMatrix([]TopicRecord{
		{Question: 1, Level: "NB"},
		{Question: 1, Level: "VD"},
	})
	require.Error(t, err)
	assert.True(t, IsDataShapeError(err))
}

func TestNewTopicMatrixRejectsNonPositiveQuestion(t *testing.T) {
	_, err := NewTopicMatrix([]TopicRecord{{Question: 0, Level: "NB"}})
	require.Error(t, err)
	assert.True(t, IsDataShapeError(err))
}

func TestStudentReportValidate(t *testing.T) {
	r := &StudentReport{StudentID: "hs-001"}
	assert.NoError(t, r.Validate())

	r.StudentID = ""
	assert.Error(t, r.Validate())
}
