// Package quiz implements the quiz creation and update/publish workflows.
// Both are sequential: quizzes are processed one at a time with a throttle
// between publishes, and every input row ends up in the status report with
// its final status and error message.
package quiz

import (
	"context"
	"fmt"
	"strings"

	"github.com/fmps-edu/sunbird-bulk-ops/internal/csvio"
	"github.com/fmps-edu/sunbird-bulk-ops/internal/sunbird"
)

// Row statuses surfaced in the report. Downstream sheets filter on these
// exact strings.
const (
	statusPending        = "Pending"
	statusSkipped        = "Skipped"
	statusFailed         = "Failed"
	statusQuestionOK     = "Question Update Success"
	statusQuestionFailed = "Question Update Failed"
	statusQuizUpdated    = "Quiz Updated"
	statusPublished      = "Published"
	statusQuizFailed     = "Quiz Update Failed"
	statusCreated        = "Quiz Created"
	statusCreateFailed   = "Quiz Creation Failed"
	msgNone              = "none"
	msgQuestionNotFound  = "Question not found"
	msgNoQuestionsFound  = "No questions found"
	msgQuizNotFound      = "Quiz not found"
	msgContentExists     = "Content already exists"
)

// API is the content surface both workflows drive. *sunbird.Client bound to
// a session satisfies it via NewSessionAPI; tests substitute mocks.
type API interface {
	SearchContent(ctx context.Context, codes []string) ([]sunbird.ContentItem, error)
	ContentExists(ctx context.Context, code string) (bool, error)
	CreateAssessment(ctx context.Context, req sunbird.CreateAssessmentRequest) (sunbird.ContentRef, error)
	CreateAssessmentItem(ctx context.Context, metadata sunbird.AssessmentItem) (string, error)
	ReadAssessmentItem(ctx context.Context, identifier string) (sunbird.AssessmentItem, error)
	UpdateAssessmentItem(ctx context.Context, identifier string, metadata sunbird.AssessmentItem) error
	ReadContent(ctx context.Context, identifier string) (sunbird.QuizContent, error)
	UpdateContent(ctx context.Context, identifier string, upd sunbird.ContentUpdate) error
	ReviewContent(ctx context.Context, identifier string) error
	PublishContent(ctx context.Context, identifier string) error
}

type sessionAPI struct {
	client *sunbird.Client
	sess   sunbird.Session
}

// NewSessionAPI adapts a sunbird client plus session into the API the quiz
// workflows drive.
func NewSessionAPI(client *sunbird.Client, sess sunbird.Session) API {
	return &sessionAPI{client: client, sess: sess}
}

func (a *sessionAPI) SearchContent(ctx context.Context, codes []string) ([]sunbird.ContentItem, error) {
	return a.client.SearchContent(ctx, a.sess, codes)
}

func (a *sessionAPI) ContentExists(ctx context.Context, code string) (bool, error) {
	return a.client.ContentExists(ctx, a.sess, code)
}

func (a *sessionAPI) CreateAssessment(ctx context.Context, req sunbird.CreateAssessmentRequest) (sunbird.ContentRef, error) {
	return a.client.CreateAssessment(ctx, a.sess, req)
}

func (a *sessionAPI) CreateAssessmentItem(ctx context.Context, metadata sunbird.AssessmentItem) (string, error) {
	return a.client.CreateAssessmentItem(ctx, a.sess, metadata)
}

func (a *sessionAPI) ReadAssessmentItem(ctx context.Context, identifier string) (sunbird.AssessmentItem, error) {
	return a.client.ReadAssessmentItem(ctx, a.sess, identifier)
}

func (a *sessionAPI) UpdateAssessmentItem(ctx context.Context, identifier string, metadata sunbird.AssessmentItem) error {
	return a.client.UpdateAssessmentItem(ctx, a.sess, identifier, metadata)
}

func (a *sessionAPI) ReadContent(ctx context.Context, identifier string) (sunbird.QuizContent, error) {
	return a.client.ReadContent(ctx, a.sess, identifier)
}

func (a *sessionAPI) UpdateContent(ctx context.Context, identifier string, upd sunbird.ContentUpdate) error {
	return a.client.UpdateContent(ctx, a.sess, identifier, upd)
}

func (a *sessionAPI) ReviewContent(ctx context.Context, identifier string) error {
	return a.client.ReviewContent(ctx, a.sess, identifier)
}

func (a *sessionAPI) PublishContent(ctx context.Context, identifier string) error {
	return a.client.PublishContent(ctx, a.sess, identifier)
}

// statusRow pairs one input row with its evolving status. Report order is
// the input order.
type statusRow struct {
	cells  map[string]string
	status string
	errMsg string
}

func (r *statusRow) set(status, errMsg string) {
	r.status = status
	r.errMsg = errMsg
}

// loadRows parses the workflow CSV, rejecting missing headers and empty
// cells. Row numbers in errors are 1-based file lines so they match what
// the operator sees in a spreadsheet.
func loadRows(path string, required []string) (headers []string, rows []*statusRow, err error) {
	raw, err := csvio.ReadAll(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read input: %w", err)
	}
	headers = csvio.Headers(raw)
	if err := csvio.ValidateHeaders(headers, required); err != nil {
		return nil, nil, err
	}
	maps := csvio.RecordMaps(headers, raw[1:])
	rows = make([]*statusRow, len(maps))
	for i, m := range maps {
		for _, h := range required {
			if strings.TrimSpace(m[h]) == "" {
				return nil, nil, fmt.Errorf("empty value found at row %d: all columns must be non-empty", i+2)
			}
		}
		rows[i] = &statusRow{cells: m, status: statusPending, errMsg: msgNone}
	}
	return headers, rows, nil
}

// reportRows renders the status report: input columns in header order plus
// status and error_message.
func reportRows(headers []string, rows []*statusRow) ([]string, [][]string) {
	outHeader := append(append([]string{}, headers...), "status", "error_message")
	out := make([][]string, len(rows))
	for i, r := range rows {
		row := make([]string, 0, len(outHeader))
		for _, h := range headers {
			row = append(row, r.cells[h])
		}
		out[i] = append(row, r.status, r.errMsg)
	}
	return outHeader, out
}

// groupByQuiz partitions rows by trimmed quiz code, preserving first-seen
// quiz order and row order within each quiz.
func groupByQuiz(rows []*statusRow) (order []string, groups map[string][]*statusRow) {
	groups = make(map[string][]*statusRow)
	for _, r := range rows {
		code := strings.TrimSpace(r.cells["quiz_code"])
		if _, ok := groups[code]; !ok {
			order = append(order, code)
		}
		groups[code] = append(groups[code], r)
	}
	return order, groups
}
