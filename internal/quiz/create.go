package quiz

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/fmps-edu/sunbird-bulk-ops/internal/config"
	"github.com/fmps-edu/sunbird-bulk-ops/internal/logging"
	"github.com/fmps-edu/sunbird-bulk-ops/internal/report"
	"github.com/fmps-edu/sunbird-bulk-ops/internal/sunbird"
)

const createReportName = "quiz-create-status"

var createHeaders = []string{"quiz_code", "quiz_name", "quiz_type", "question_code", "language"}

const (
	statusQuestionCreated      = "Question Created"
	statusQuestionReused       = "Question Reused"
	statusQuestionCreateFailed = "Question Creation Failed"
)

// Framework and mime constants for new assessment shells.
const (
	assessmentFramework = "fmps"
	assessmentMimeType  = "application/vnd.ekstep.ecml-archive"
	assessmentCreator   = "Content Creator FMPS"
)

// Creator drives the quiz creation workflow: one content shell per quiz
// code, questions created or reused by code, then review and publish.
type Creator struct {
	cfg  config.QuizConfig
	api  API
	sink report.Sink
	log  *slog.Logger
}

func NewCreator(cfg config.QuizConfig, api API, sink report.Sink) *Creator {
	return &Creator{cfg: cfg, api: api, sink: sink, log: logging.Component("quiz-create")}
}

// Run processes the whole creation CSV and writes the status report.
func (c *Creator) Run(ctx context.Context) error {
	headers, rows, err := loadRows(c.cfg.CSVPath, createHeaders)
	if err != nil {
		return err
	}
	order, groups := groupByQuiz(rows)
	c.log.Info("starting quiz creation run", "input", c.cfg.CSVPath, "rows", len(rows), "quizzes", len(order))

	for _, quizCode := range order {
		c.createQuiz(ctx, quizCode, groups[quizCode])
		c.waitBetweenQuizzes(ctx)
	}

	outHeader, outRows := reportRows(headers, rows)
	if err := c.sink.Write(ctx, createReportName, outHeader, outRows); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	c.log.Info("quiz creation run finished", "rows", len(rows), "report", c.sink.URI(createReportName))
	return nil
}

// createQuiz builds one quiz end to end. A quiz whose code already has live
// content is skipped whole; question-level problems fail their rows but the
// quiz is still assembled from the questions that succeeded.
func (c *Creator) createQuiz(ctx context.Context, quizCode string, rows []*statusRow) {
	exists, err := c.api.ContentExists(ctx, quizCode)
	if err != nil {
		msg := sunbird.ErrorMessage(err, "Failed to check content existence")
		c.log.Error("content existence check failed", "quiz", quizCode, "error", msg)
		for _, r := range rows {
			r.set(statusCreateFailed, msg)
		}
		return
	}
	if exists {
		c.log.Info("content already exists, skipping quiz", "quiz", quizCode)
		for _, r := range rows {
			r.set(statusSkipped, msgContentExists)
		}
		return
	}

	first := rows[0].cells
	language := strings.TrimSpace(first["language"])
	if !slices.Contains(c.cfg.AllowedLanguages, language) {
		for _, r := range rows {
			r.set(statusCreateFailed, fmt.Sprintf("invalid language %q", language))
		}
		return
	}

	ref, err := c.api.CreateAssessment(ctx, c.assessmentRequest(quizCode, first, language))
	if err != nil {
		msg := sunbird.ErrorMessage(err, "Failed to create assessment")
		c.log.Error("assessment creation failed", "quiz", quizCode, "error", msg)
		for _, r := range rows {
			r.set(statusCreateFailed, msg)
		}
		return
	}
	c.log.Info("assessment created", "quiz", quizCode, "identifier", ref.Identifier)

	var (
		items      []sunbird.AssessmentItem
		formatted  []map[string]any
		references []map[string]string
		totalScore float64
	)
	for _, r := range rows {
		identifier, score, err := c.ensureQuestion(ctx, r)
		if err != nil {
			msg := sunbird.ErrorMessage(err, "Failed to create question")
			c.log.Error("question creation failed",
				"quiz", quizCode,
				"question", r.cells["question_code"],
				"error", msg)
			r.set(statusQuestionCreateFailed, msg)
			continue
		}
		item, err := c.api.ReadAssessmentItem(ctx, identifier)
		if err != nil {
			r.set(statusQuestionCreateFailed, sunbird.ErrorMessage(err, "Failed to read question"))
			continue
		}
		formattedItem, err := formatQuestion(identifier, item)
		if err != nil {
			r.set(statusQuestionCreateFailed, err.Error())
			continue
		}
		items = append(items, item)
		formatted = append(formatted, formattedItem)
		references = append(references, map[string]string{"identifier": identifier})
		totalScore += score
	}
	if len(references) == 0 {
		for _, r := range rows {
			if r.status == statusPending {
				r.set(statusCreateFailed, msgNoQuestionsFound)
			}
		}
		return
	}

	name := strings.TrimSpace(first["quiz_name"])
	body, err := buildQuizBody(name, totalScore, items, formatted)
	if err == nil {
		upd := sunbird.ContentUpdate{
			VersionKey:     ref.VersionKey,
			TotalQuestions: len(references),
			TotalScore:     totalScore,
			Questions:      references,
			Body:           body,
		}
		err = c.api.UpdateContent(ctx, ref.Identifier, upd)
	}
	if err == nil {
		err = c.api.ReviewContent(ctx, ref.Identifier)
	}
	if err == nil {
		err = c.api.PublishContent(ctx, ref.Identifier)
	}
	if err != nil {
		msg := sunbird.ErrorMessage(err, "Failed to create quiz")
		c.log.Error("quiz assembly failed", "quiz", quizCode, "error", msg)
		for _, r := range rows {
			r.set(statusCreateFailed, msg)
		}
		return
	}

	for _, r := range rows {
		if r.status == statusCreated || r.status == statusQuestionCreated || r.status == statusQuestionReused {
			r.set(statusPublished, msgNone)
		}
	}
	c.log.Info("quiz created and published", "quiz", quizCode, "identifier", ref.Identifier)
}

// assessmentRequest maps the quiz row onto the content-create payload. The
// "assess" type becomes a graded SelfAssess; anything else is a practise
// resource.
func (c *Creator) assessmentRequest(quizCode string, cells map[string]string, language string) sunbird.CreateAssessmentRequest {
	req := sunbird.CreateAssessmentRequest{
		Code:        quizCode,
		Name:        strings.TrimSpace(cells["quiz_name"]),
		MaxAttempts: 1,
		Language:    language,
		Framework:   assessmentFramework,
		MimeType:    assessmentMimeType,
		Creator:     assessmentCreator,
	}
	if n, err := strconv.Atoi(strings.TrimSpace(cells["max_attempts"])); err == nil && n > 0 {
		req.MaxAttempts = n
	}
	if strings.TrimSpace(cells["quiz_type"]) == "assess" {
		req.ContentType = "SelfAssess"
	} else {
		req.ContentType = "Resource"
		req.PrimaryCategory = "Practise Assess"
	}
	return req
}

// ensureQuestion reuses an existing MCQ item with the row's question code or
// creates a fresh one, returning its identifier and score contribution.
func (c *Creator) ensureQuestion(ctx context.Context, r *statusRow) (string, float64, error) {
	code := strings.TrimSpace(r.cells["question_code"])
	hits, err := c.api.SearchContent(ctx, []string{code})
	if err != nil {
		return "", 0, err
	}
	for _, hit := range hits {
		if hit.Type == "mcq" && hit.ItemType == "UNIT" {
			score := hit.MaxScore
			if score == 0 {
				score = 1
			}
			r.set(statusQuestionReused, msgNone)
			return hit.Identifier, score, nil
		}
	}

	identifier, err := c.api.CreateAssessmentItem(ctx, c.questionMetadata(r))
	if err != nil {
		return "", 0, err
	}
	r.set(statusQuestionCreated, msgNone)
	return identifier, 1, nil
}

// questionMetadata builds the metadata for a fresh single-answer MCQ item.
func (c *Creator) questionMetadata(r *statusRow) sunbird.AssessmentItem {
	code := strings.TrimSpace(r.cells["question_code"])
	title := strings.TrimSpace(r.cells["question_title"])
	if title == "" {
		title = code
	}
	language := strings.TrimSpace(r.cells["language"])
	return sunbird.AssessmentItem{
		"code":            code,
		"name":            title,
		"title":           title,
		"questionTitle":   title,
		"language":        []string{language},
		"type":            "mcq",
		"itemType":        "UNIT",
		"template":        "NA",
		"templateId":      "NA",
		"templateType":    "Horizontal",
		"category":        "MCQ",
		"qlevel":          "MEDIUM",
		"max_score":       1,
		"isShuffleOption": false,
		"isPartialScore":  false,
		"evalUnordered":   false,
		"version":         2,
	}
}

func (c *Creator) waitBetweenQuizzes(ctx context.Context) {
	if c.cfg.WaitInterval <= 0 {
		return
	}
	select {
	case <-time.After(c.cfg.WaitInterval):
	case <-ctx.Done():
	}
}
