package quiz

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fmps-edu/sunbird-bulk-ops/internal/config"
	"github.com/fmps-edu/sunbird-bulk-ops/internal/sunbird"
)

const createHeader = "quiz_code,quiz_name,quiz_type,question_code,language"

func newTestCreator(t *testing.T, input string, api API) (*Creator, *memSink) {
	t.Helper()
	sink := &memSink{}
	cfg := config.QuizConfig{
		CSVPath:          input,
		AllowedLanguages: []string{"English", "French", "Arabic"},
	}
	return NewCreator(cfg, api, sink), sink
}

func TestCreator_CreatesAndPublishesQuiz(t *testing.T) {
	api := newMockAPI()
	// No existing content anywhere: the quiz shell and every question are
	// created fresh.
	api.searchContent = func(codes []string) ([]sunbird.ContentItem, error) { return nil, nil }
	input := writeCSV(t, createHeader,
		"QZ1,My Quiz,assess,QC1,English",
		"QZ1,My Quiz,assess,QC2,English")
	c, sink := newTestCreator(t, input, api)

	require.NoError(t, c.Run(context.Background()))

	require.Len(t, sink.rows, 2)
	for i := range sink.rows {
		assert.Equal(t, statusPublished, reportCell(t, sink, i, "status"))
	}
	assert.Equal(t, 1, api.callCount("CreateAssessment"))
	assert.Equal(t, 2, api.callCount("CreateAssessmentItem"))
	assert.Equal(t, 1, api.callCount("ReviewContent"))
	assert.Equal(t, 1, api.callCount("PublishContent"))
}

func TestCreator_ExistingContentSkipsWholeQuiz(t *testing.T) {
	api := newMockAPI()
	api.contentExists = func(code string) (bool, error) { return true, nil }
	input := writeCSV(t, createHeader, "QZ1,My Quiz,assess,QC1,English")
	c, sink := newTestCreator(t, input, api)

	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, statusSkipped, reportCell(t, sink, 0, "status"))
	assert.Equal(t, msgContentExists, reportCell(t, sink, 0, "error_message"))
	assert.Equal(t, 0, api.callCount("CreateAssessment"))
}

func TestCreator_ExistenceCheckErrorFailsQuiz(t *testing.T) {
	api := newMockAPI()
	api.contentExists = func(code string) (bool, error) {
		return false, &sunbird.APIError{Route: "search", StatusCode: 503, Errmsg: "search unavailable"}
	}
	input := writeCSV(t, createHeader, "QZ1,My Quiz,assess,QC1,English")
	c, sink := newTestCreator(t, input, api)

	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, statusCreateFailed, reportCell(t, sink, 0, "status"))
	assert.Equal(t, "search unavailable", reportCell(t, sink, 0, "error_message"))
	assert.Equal(t, 0, api.callCount("CreateAssessment"))
}

func TestCreator_ReusesExistingMCQItems(t *testing.T) {
	api := newMockAPI()
	api.searchContent = func(codes []string) ([]sunbird.ContentItem, error) {
		return []sunbird.ContentItem{
			{Identifier: "do_" + codes[0], Code: codes[0], Type: "mcq", ItemType: "UNIT", MaxScore: 3},
		}, nil
	}
	input := writeCSV(t, createHeader, "QZ1,My Quiz,practise,QC1,English")
	c, sink := newTestCreator(t, input, api)

	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, statusPublished, reportCell(t, sink, 0, "status"))
	assert.Equal(t, 0, api.callCount("CreateAssessmentItem"))
}

func TestCreator_AssessTypeSelectsSelfAssess(t *testing.T) {
	api := newMockAPI()
	api.searchContent = func(codes []string) ([]sunbird.ContentItem, error) { return nil, nil }
	var reqs []sunbird.CreateAssessmentRequest
	api.createContent = func(req sunbird.CreateAssessmentRequest) (sunbird.ContentRef, error) {
		reqs = append(reqs, req)
		return sunbird.ContentRef{Identifier: "do_" + req.Code, VersionKey: "vk1"}, nil
	}
	input := writeCSV(t, createHeader,
		"QZ1,Graded,assess,QC1,English",
		"QZ2,Practice,practise,QC2,French")
	c, _ := newTestCreator(t, input, api)

	require.NoError(t, c.Run(context.Background()))

	require.Len(t, reqs, 2)
	assert.Equal(t, "SelfAssess", reqs[0].ContentType)
	assert.Empty(t, reqs[0].PrimaryCategory)
	assert.Equal(t, "Resource", reqs[1].ContentType)
	assert.Equal(t, "Practise Assess", reqs[1].PrimaryCategory)
}

func TestCreator_InvalidLanguageFailsQuiz(t *testing.T) {
	api := newMockAPI()
	input := writeCSV(t, createHeader, "QZ1,My Quiz,assess,QC1,Klingon")
	c, sink := newTestCreator(t, input, api)

	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, statusCreateFailed, reportCell(t, sink, 0, "status"))
	assert.Contains(t, reportCell(t, sink, 0, "error_message"), "invalid language")
	assert.Equal(t, 0, api.callCount("CreateAssessment"))
}
