package sunbird

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
)

// ContentRef identifies a piece of content and its optimistic-lock key.
type ContentRef struct {
	Identifier string
	VersionKey string
}

// ContentItem is a content search hit.
type ContentItem struct {
	Identifier string  `json:"identifier"`
	Code       string  `json:"code"`
	Type       string  `json:"type"`
	ItemType   string  `json:"itemType"`
	MaxScore   float64 `json:"max_score"`
}

type contentSearchResult struct {
	Count   int           `json:"count"`
	Items   []ContentItem `json:"items"`
	Content []ContentItem `json:"content"`
}

// SearchContent looks up content by code. codes may hold one or many codes;
// both hit the composite search endpoint with an identifier+code projection.
func (c *Client) SearchContent(ctx context.Context, sess Session, codes []string) ([]ContentItem, error) {
	body := map[string]any{
		"request": map[string]any{
			"filters": map[string]any{"code": codes},
		},
	}
	var res contentSearchResult
	if err := c.doJSON(ctx, http.MethodPost, routeSearch+"?fields=identifier,code", body, sess.CreatorToken, &res); err != nil {
		return nil, fmt.Errorf("search content: %w", err)
	}
	if len(res.Content) > 0 {
		return res.Content, nil
	}
	return res.Items, nil
}

// ContentExists reports whether any non-retired content with the given code
// was created by this session's creator. Unlike the original scripts, an
// unexpected transport error propagates instead of being read as "exists".
func (c *Client) ContentExists(ctx context.Context, sess Session, code string) (bool, error) {
	body := map[string]any{
		"request": map[string]any{
			"filters": map[string]any{
				"status": []string{
					"Draft", "FlagDraft", "Review", "Processing",
					"Live", "Unlisted", "FlagReview",
				},
				"code":      code,
				"createdBy": sess.CreatedBy,
			},
			"offset":  0,
			"limit":   1,
			"sort_by": map[string]string{"lastUpdatedOn": "desc"},
		},
	}
	var res contentSearchResult
	if err := c.doJSON(ctx, http.MethodPost, routeSearch, body, sess.CreatorToken, &res); err != nil {
		return false, fmt.Errorf("content existence check %s: %w", code, err)
	}
	return res.Count > 0, nil
}

// CreateAssessmentRequest is the content payload for a new quiz shell.
type CreateAssessmentRequest struct {
	Code            string
	Name            string
	MaxAttempts     int
	ContentType     string // "SelfAssess" | "Resource"
	PrimaryCategory string // set for practise assessments
	Language        string
	Framework       string
	MimeType        string
	Creator         string
	Organisation    []string
}

type createResult struct {
	Identifier string `json:"identifier"`
	VersionKey string `json:"versionKey"`
	NodeID     string `json:"node_id"`
}

// CreateAssessment creates the quiz content shell and returns its ref.
func (c *Client) CreateAssessment(ctx context.Context, sess Session, req CreateAssessmentRequest) (ContentRef, error) {
	content := map[string]any{
		"code":         req.Code,
		"name":         req.Name,
		"maxAttempts":  req.MaxAttempts,
		"description":  "Enter description for Assessment",
		"language":     []string{req.Language},
		"createdBy":    sess.CreatedBy,
		"organisation": req.Organisation,
		"createdFor":   []string{sess.ChannelID},
		"framework":    req.Framework,
		"mimeType":     req.MimeType,
		"creator":      req.Creator,
		"contentType":  req.ContentType,
	}
	if req.PrimaryCategory != "" {
		content["primaryCategory"] = req.PrimaryCategory
	}
	body := map[string]any{"request": map[string]any{"content": content}}

	var res createResult
	if err := c.doJSON(ctx, http.MethodPost, routeCreateContent, body, sess.CreatorToken, &res); err != nil {
		return ContentRef{}, fmt.Errorf("create assessment %s: %w", req.Code, err)
	}
	return ContentRef{Identifier: res.Identifier, VersionKey: res.VersionKey}, nil
}

// AssessmentItem is the mutable view of one question.
type AssessmentItem map[string]any

type assessmentItemResult struct {
	AssessmentItem AssessmentItem `json:"assessment_item"`
}

// ReadAssessmentItem fetches one question by identifier.
func (c *Client) ReadAssessmentItem(ctx context.Context, sess Session, identifier string) (AssessmentItem, error) {
	var res assessmentItemResult
	route := fmt.Sprintf("%s/%s", routeItemRead, identifier)
	if err := c.doJSON(ctx, http.MethodGet, route, nil, sess.CreatorToken, &res); err != nil {
		return nil, fmt.Errorf("read assessment item %s: %w", identifier, err)
	}
	return res.AssessmentItem, nil
}

// CreateAssessmentItem creates one question and returns its identifier.
func (c *Client) CreateAssessmentItem(ctx context.Context, sess Session, metadata AssessmentItem) (string, error) {
	body := map[string]any{
		"request": map[string]any{
			"assessment_item": map[string]any{
				"objectType":   "AssessmentItem",
				"metadata":     metadata,
				"outRelations": []any{},
			},
		},
	}
	var res createResult
	if err := c.doJSON(ctx, http.MethodPost, routeItemCreate, body, sess.CreatorToken, &res); err != nil {
		return "", fmt.Errorf("create assessment item: %w", err)
	}
	if res.NodeID != "" {
		return res.NodeID, nil
	}
	return res.Identifier, nil
}

// UpdateAssessmentItem patches one question's metadata.
func (c *Client) UpdateAssessmentItem(ctx context.Context, sess Session, identifier string, metadata AssessmentItem) error {
	body := map[string]any{
		"request": map[string]any{
			"assessment_item": map[string]any{
				"objectType":   "AssessmentItem",
				"metadata":     metadata,
				"outRelations": []any{},
			},
		},
	}
	route := fmt.Sprintf("%s/%s", routeItemUpdate, identifier)
	if err := c.doJSON(ctx, http.MethodPatch, route, body, sess.CreatorToken, nil); err != nil {
		return fmt.Errorf("update assessment item %s: %w", identifier, err)
	}
	return nil
}

// QuizContent is the projection of quiz content the update flow needs.
type QuizContent struct {
	Identifier     string
	VersionKey     string          `json:"versionKey"`
	TotalQuestions int             `json:"totalQuestions"`
	TotalScore     float64         `json:"totalScore"`
	EditorState    string          `json:"editorState"`
	Plugins        json.RawMessage `json:"plugins"`
	Name           string          `json:"name"`
}

type readContentResult struct {
	Content QuizContent `json:"content"`
}

// ReadContent fetches the quiz body fields needed for an update.
func (c *Client) ReadContent(ctx context.Context, sess Session, identifier string) (QuizContent, error) {
	route := fmt.Sprintf("%s/%s?fields=versionKey,totalQuestions,totalScore,editorState,plugins,name", routeReadContent, identifier)
	var res readContentResult
	if err := c.doJSON(ctx, http.MethodGet, route, nil, sess.CreatorToken, &res); err != nil {
		return QuizContent{}, fmt.Errorf("read content %s: %w", identifier, err)
	}
	res.Content.Identifier = identifier
	return res.Content, nil
}

// ContentUpdate carries the fields patched onto quiz content.
type ContentUpdate struct {
	VersionKey     string
	TotalQuestions int
	TotalScore     float64
	Questions      []map[string]string // [{"identifier": ...}]
	EditorState    string
	Plugins        json.RawMessage
	Body           string
	Copyright      string
	Organisation   []string
}

// UpdateContent patches a quiz's body and question set.
func (c *Client) UpdateContent(ctx context.Context, sess Session, identifier string, upd ContentUpdate) error {
	content := map[string]any{
		"versionKey":     upd.VersionKey,
		"lastUpdatedBy":  sess.CreatedBy,
		"stageIcons":     "",
		"totalQuestions": upd.TotalQuestions,
		"totalScore":     upd.TotalScore,
		"questions":      upd.Questions,
		"assets":         []any{},
		"editorState":    upd.EditorState,
		"pragma":         []any{},
		"plugins":        upd.Plugins,
		"body":           upd.Body,
		"copyright":      upd.Copyright,
		"organisation":   upd.Organisation,
		"consumerId":     sess.CreatedBy,
	}
	body := map[string]any{"request": map[string]any{"content": content}}
	route := fmt.Sprintf("%s/%s", routeUpdateContent, identifier)
	if err := c.doJSON(ctx, http.MethodPatch, route, body, sess.CreatorToken, nil); err != nil {
		return fmt.Errorf("update content %s: %w", identifier, err)
	}
	return nil
}

// ReviewContent submits content for review.
func (c *Client) ReviewContent(ctx context.Context, sess Session, identifier string) error {
	body := map[string]any{"request": map[string]any{"content": map[string]any{}}}
	route := fmt.Sprintf("%s/%s", routeReviewContent, identifier)
	if err := c.doJSON(ctx, http.MethodPost, route, body, sess.CreatorToken, nil); err != nil {
		return fmt.Errorf("review content %s: %w", identifier, err)
	}
	return nil
}

// PublishContent publishes reviewed content using the reviewer credential.
func (c *Client) PublishContent(ctx context.Context, sess Session, identifier string) error {
	body := map[string]any{
		"request": map[string]any{
			"content": map[string]any{"lastPublishedBy": sess.PublishedBy},
		},
	}
	route := fmt.Sprintf("%s/%s", routePublish, identifier)
	if err := c.doJSON(ctx, http.MethodPost, route, body, sess.ReviewerToken, nil); err != nil {
		return fmt.Errorf("publish content %s: %w", identifier, err)
	}
	return nil
}
