// Package sunbird is a client for the Sunbird LMS REST API surface used by
// the bulk scripts: authentication, user/profile/course resolution, batch
// lookup, enrollment submission, and content/assessment operations.
package sunbird

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fmps-edu/sunbird-bulk-ops/internal/config"
)

// API routes, relative to the configured base URL.
const (
	routeToken         = "/auth/realms/sunbird/protocol/openid-connect/token"
	routeRefreshToken  = "/auth/v1/refresh/token"
	routeUserSearch    = "/api/user/v1/search"
	routeUserToken     = "/api/auth/v1/user/token"
	routeSearch        = "/api/composite/v1/search"
	routeBatchList     = "/api/course/v1/batch/list"
	routeEnroll        = "/api/course/v1/enrol"
	routeCreateContent = "/api/content/v1/create"
	routeReadContent   = "/api/content/v1/read"
	routeUpdateContent = "/api/content/v1/update"
	routeReviewContent = "/api/content/v1/review"
	routePublish       = "/api/content/v1/publish"
	routeItemCreate    = "/api/assessment/v1/items/create"
	routeItemRead      = "/api/assessment/v1/items/read"
	routeItemUpdate    = "/api/assessment/v1/items/update"
)

// Client talks to one Sunbird instance. All methods take a context and
// return wrapped errors; upstream error envelopes surface as *APIError.
type Client struct {
	baseURL   string
	authKey   string
	channelID string
	client    *http.Client
	log       *slog.Logger
}

// New creates a client from API configuration.
func New(cfg config.APIConfig) *Client {
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		authKey:   cfg.AuthKey,
		channelID: cfg.ChannelID,
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		log: slog.With("component", "sunbird"),
	}
}

// ChannelID returns the configured tenant channel.
func (c *Client) ChannelID() string { return c.channelID }

// envelope is the standard Sunbird response wrapper.
type envelope struct {
	ID     string          `json:"id"`
	Params params          `json:"params"`
	Result json.RawMessage `json:"result"`
}

type params struct {
	Status string `json:"status"`
	Errmsg string `json:"errmsg"`
}

// doJSON performs a JSON request and decodes result into out (unless nil).
// userToken may be empty for calls scoped only by the static API key.
func (c *Client) doJSON(ctx context.Context, method, route string, body any, userToken string, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+route, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Channel-Id", c.channelID)
	if c.authKey != "" {
		req.Header.Set("Authorization", c.authKey)
	}
	if userToken != "" {
		req.Header.Set("x-authenticated-user-token", userToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, route, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read response: %w", method, route, err)
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil && resp.StatusCode < 300 {
		return fmt.Errorf("%s %s: decode response: %w", method, route, err)
	}

	if resp.StatusCode >= 300 {
		return &APIError{
			Route:      route,
			StatusCode: resp.StatusCode,
			Status:     env.Params.Status,
			Errmsg:     env.Params.Errmsg,
			Body:       string(respBody),
		}
	}

	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("%s %s: decode result: %w", method, route, err)
		}
	}
	return nil
}

// doForm posts a form-encoded body, used by the token endpoints which do not
// use the Sunbird envelope on the OIDC leg.
func (c *Client) doForm(ctx context.Context, route string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+route, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.authKey != "" {
		req.Header.Set("Authorization", c.authKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", route, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("POST %s: read response: %w", route, err)
	}

	if resp.StatusCode >= 300 {
		var env envelope
		_ = json.Unmarshal(respBody, &env)
		return &APIError{
			Route:      route,
			StatusCode: resp.StatusCode,
			Status:     env.Params.Status,
			Errmsg:     env.Params.Errmsg,
			Body:       string(respBody),
		}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("POST %s: decode response: %w", route, err)
		}
	}
	return nil
}
