package quiz

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/fmps-edu/sunbird-bulk-ops/internal/config"
	"github.com/fmps-edu/sunbird-bulk-ops/internal/logging"
	"github.com/fmps-edu/sunbird-bulk-ops/internal/report"
	"github.com/fmps-edu/sunbird-bulk-ops/internal/sunbird"
)

const updateReportName = "quiz-update-status"

var updateHeaders = []string{"quiz_code", "question_code", "language"}

// Updater drives the quiz update/publish workflow: restamp question
// languages, rewrite each quiz body from its current questions, then review
// and publish.
type Updater struct {
	cfg  config.QuizConfig
	api  API
	sink report.Sink
	log  *slog.Logger
}

func NewUpdater(cfg config.QuizConfig, api API, sink report.Sink) *Updater {
	return &Updater{cfg: cfg, api: api, sink: sink, log: logging.Component("quiz-update")}
}

// resolvedQuestion pairs one input row with the question identifier its
// code resolved to.
type resolvedQuestion struct {
	row        *statusRow
	identifier string
}

// Run processes the whole update CSV and writes the status report. Row- and
// quiz-level problems are settled into report rows; only input and report
// problems abort the run.
func (u *Updater) Run(ctx context.Context) error {
	headers, rows, err := loadRows(u.cfg.CSVPath, updateHeaders)
	if err != nil {
		return err
	}
	order, groups := groupByQuiz(rows)
	u.log.Info("starting quiz update run", "input", u.cfg.CSVPath, "rows", len(rows), "quizzes", len(order))

	resolved := make(map[string][]resolvedQuestion)
	for _, quizCode := range order {
		resolved[quizCode] = u.resolveQuestions(ctx, quizCode, groups[quizCode])
	}

	for _, quizCode := range order {
		questions := resolved[quizCode]
		if len(questions) == 0 {
			continue
		}
		u.updateQuiz(ctx, quizCode, groups[quizCode], questions)
		u.waitBetweenQuizzes(ctx)
	}

	outHeader, outRows := reportRows(headers, rows)
	if err := u.sink.Write(ctx, updateReportName, outHeader, outRows); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	u.log.Info("quiz update run finished", "rows", len(rows), "report", u.sink.URI(updateReportName))
	return nil
}

// resolveQuestions maps the quiz's question codes to identifiers in one
// search. Codes the search does not return are marked Skipped; a quiz whose
// search returns nothing, or fails outright, has all its rows marked Failed.
func (u *Updater) resolveQuestions(ctx context.Context, quizCode string, rows []*statusRow) []resolvedQuestion {
	codes := make([]string, len(rows))
	for i, r := range rows {
		codes[i] = strings.TrimSpace(r.cells["question_code"])
	}

	items, err := u.api.SearchContent(ctx, codes)
	if err != nil {
		msg := sunbird.ErrorMessage(err, "Failed to fetch questions")
		u.log.Error("question search failed", "quiz", quizCode, "error", msg)
		for _, r := range rows {
			r.set(statusFailed, msg)
		}
		return nil
	}
	if len(items) == 0 {
		u.log.Warn("no questions found", "quiz", quizCode)
		for _, r := range rows {
			r.set(statusFailed, msgNoQuestionsFound)
		}
		return nil
	}

	byCode := make(map[string]string, len(items))
	for _, item := range items {
		byCode[item.Code] = item.Identifier
	}

	var resolved []resolvedQuestion
	for _, r := range rows {
		code := strings.TrimSpace(r.cells["question_code"])
		id, ok := byCode[code]
		if !ok {
			r.set(statusSkipped, msgQuestionNotFound)
			continue
		}
		resolved = append(resolved, resolvedQuestion{row: r, identifier: id})
	}
	return resolved
}

// updateQuiz restamps every resolved question's language, rebuilds the quiz
// body from the updated items, and runs the review/publish pair.
func (u *Updater) updateQuiz(ctx context.Context, quizCode string, rows []*statusRow, questions []resolvedQuestion) {
	var (
		items      []sunbird.AssessmentItem
		formatted  []map[string]any
		references []map[string]string
	)

	for _, q := range questions {
		references = append(references, map[string]string{"identifier": q.identifier})
		item, formattedItem, err := u.updateQuestion(ctx, q)
		if err != nil {
			msg := sunbird.ErrorMessage(err, "Failed to update question")
			u.log.Error("question update failed",
				"quiz", quizCode,
				"question", q.row.cells["question_code"],
				"error", msg)
			q.row.set(statusQuestionFailed, msg)
			continue
		}
		items = append(items, item)
		formatted = append(formatted, formattedItem)
		q.row.set(statusQuestionOK, msgNone)
	}

	if err := u.publishQuiz(ctx, quizCode, rows, items, formatted, references); err != nil {
		msg := sunbird.ErrorMessage(err, "Failed to update quiz content")
		u.log.Error("quiz update failed", "quiz", quizCode, "error", msg)
		for _, r := range rows {
			r.set(statusQuizFailed, msg)
		}
	}
}

// updateQuestion validates the row's language, patches it onto the item,
// and returns the re-read item plus its in-body form.
func (u *Updater) updateQuestion(ctx context.Context, q resolvedQuestion) (sunbird.AssessmentItem, map[string]any, error) {
	language := strings.TrimSpace(q.row.cells["language"])
	if !slices.Contains(u.cfg.AllowedLanguages, language) {
		return nil, nil, fmt.Errorf("invalid language %q", language)
	}

	item, err := u.api.ReadAssessmentItem(ctx, q.identifier)
	if err != nil {
		return nil, nil, err
	}
	if err := setItemLanguage(item, language); err != nil {
		return nil, nil, err
	}
	if err := u.api.UpdateAssessmentItem(ctx, q.identifier, updateMetadata(item)); err != nil {
		return nil, nil, err
	}

	// Re-read so the body embedded in the quiz reflects what the server
	// actually stored.
	updated, err := u.api.ReadAssessmentItem(ctx, q.identifier)
	if err != nil {
		return nil, nil, err
	}
	formattedItem, err := formatQuestion(q.identifier, updated)
	if err != nil {
		return nil, nil, err
	}
	u.log.Info("question updated", "question", q.row.cells["question_code"], "identifier", q.identifier)
	return updated, formattedItem, nil
}

// publishQuiz rewrites the quiz body with the updated question set and runs
// review then publish. Rows that survived the question phase advance to
// Quiz Updated and finally Published.
func (u *Updater) publishQuiz(ctx context.Context, quizCode string, rows []*statusRow, items []sunbird.AssessmentItem, formatted []map[string]any, references []map[string]string) error {
	hits, err := u.api.SearchContent(ctx, []string{quizCode})
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		return fmt.Errorf("%s", msgQuizNotFound)
	}
	identifier := hits[0].Identifier

	content, err := u.api.ReadContent(ctx, identifier)
	if err != nil {
		return err
	}
	body, err := buildQuizBody(content.Name, content.TotalScore, items, formatted)
	if err != nil {
		return err
	}
	upd := sunbird.ContentUpdate{
		VersionKey:     content.VersionKey,
		TotalQuestions: content.TotalQuestions,
		TotalScore:     content.TotalScore,
		Questions:      references,
		EditorState:    content.EditorState,
		Plugins:        content.Plugins,
		Body:           body,
	}
	if err := u.api.UpdateContent(ctx, identifier, upd); err != nil {
		return err
	}
	for _, r := range rows {
		if r.errMsg == msgNone {
			r.set(statusQuizUpdated, msgNone)
		}
	}

	if err := u.api.ReviewContent(ctx, identifier); err != nil {
		return err
	}
	if err := u.api.PublishContent(ctx, identifier); err != nil {
		return err
	}
	for _, r := range rows {
		if r.status == statusQuizUpdated {
			r.set(statusPublished, msgNone)
		}
	}
	u.log.Info("quiz updated and published", "quiz", quizCode, "identifier", identifier)
	return nil
}

func (u *Updater) waitBetweenQuizzes(ctx context.Context) {
	if u.cfg.WaitInterval <= 0 {
		return
	}
	select {
	case <-time.After(u.cfg.WaitInterval):
	case <-ctx.Done():
	}
}
