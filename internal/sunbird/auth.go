package sunbird

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fmps-edu/sunbird-bulk-ops/internal/config"
)

// Session is the immutable outcome of one login. It is threaded as a value
// into every downstream call instead of living in mutable package state.
type Session struct {
	CreatorToken  string
	ReviewerToken string

	// CreatedBy and PublishedBy are derived from the token subjects.
	CreatedBy   string
	PublishedBy string

	// ChannelID is the creator's org scope when the token carries one,
	// otherwise the configured tenant channel.
	ChannelID string
}

type oidcTokenResponse struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshResult struct {
	AccessToken string `json:"access_token"`
}

// Login performs the two-step token flow for the creator and reviewer
// principals: a password grant for a refresh token, then a refresh exchange
// for the short-lived access token.
func (c *Client) Login(ctx context.Context, cfg config.AuthConfig) (Session, error) {
	creatorToken, err := c.accessToken(ctx, cfg, cfg.CreatorUsername, cfg.CreatorPassword)
	if err != nil {
		return Session{}, fmt.Errorf("creator login: %w", err)
	}
	reviewerToken, err := c.accessToken(ctx, cfg, cfg.ReviewerUsername, cfg.ReviewerPassword)
	if err != nil {
		return Session{}, fmt.Errorf("reviewer login: %w", err)
	}

	sess := Session{
		CreatorToken:  creatorToken,
		ReviewerToken: reviewerToken,
		ChannelID:     c.channelID,
	}

	if sub, org := decodeClaims(creatorToken); sub != "" {
		sess.CreatedBy = sub
		if org != "" {
			sess.ChannelID = org
		}
	}
	if sub, _ := decodeClaims(reviewerToken); sub != "" {
		sess.PublishedBy = sub
	}

	c.log.Info("authenticated", "channel", sess.ChannelID, "created_by", sess.CreatedBy)
	return sess, nil
}

// accessToken runs password grant -> refresh exchange for one principal.
func (c *Client) accessToken(ctx context.Context, cfg config.AuthConfig, username, password string) (string, error) {
	form := url.Values{
		"client_id":     {cfg.ClientID},
		"client_secret": {cfg.ClientSecret},
		"grant_type":    {cfg.GrantType},
		"username":      {username},
		"password":      {password},
	}
	var tok oidcTokenResponse
	if err := c.doForm(ctx, routeToken, form, &tok); err != nil {
		return "", err
	}
	if tok.RefreshToken == "" {
		return "", fmt.Errorf("token endpoint returned no refresh token")
	}

	refreshForm := url.Values{"refresh_token": {tok.RefreshToken}}
	var env struct {
		Result refreshResult `json:"result"`
	}
	if err := c.doForm(ctx, routeRefreshToken, refreshForm, &env); err != nil {
		return "", err
	}
	if env.Result.AccessToken == "" {
		return "", fmt.Errorf("refresh endpoint returned no access token")
	}
	return env.Result.AccessToken, nil
}

// decodeClaims pulls the bare user id out of the token subject and, when the
// content-creator role carries an org scope, that organisation id. The token
// is not verified here: it came straight from the issuer over TLS.
func decodeClaims(token string) (sub, orgID string) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", ""
	}

	if s, err := claims.GetSubject(); err == nil && s != "" {
		// subjects look like "f:realm:uuid"; keep the trailing id
		parts := strings.Split(s, ":")
		sub = parts[len(parts)-1]
	}

	roles, ok := claims["roles"].([]any)
	if !ok {
		return sub, ""
	}
	for _, r := range roles {
		role, ok := r.(map[string]any)
		if !ok || role["role"] != "CONTENT_CREATOR" {
			continue
		}
		scopes, ok := role["scope"].([]any)
		if !ok || len(scopes) == 0 {
			continue
		}
		if scope, ok := scopes[0].(map[string]any); ok {
			if id, ok := scope["organisationId"].(string); ok {
				return sub, id
			}
		}
	}
	return sub, ""
}
