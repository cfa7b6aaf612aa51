package sunbird

import (
	"context"
	"fmt"
	"net/http"
)

// UserIdentity is what the enrollment pipeline needs for one learner: the
// durable user id and a short-lived user-scoped access credential.
type UserIdentity struct {
	ID          string
	AccessToken string
}

type userSearchResult struct {
	Response struct {
		Count   int `json:"count"`
		Content []struct {
			Identifier string `json:"identifier"`
		} `json:"content"`
	} `json:"response"`
}

type userTokenResult struct {
	AccessToken string `json:"access_token"`
}

// ResolveUser looks up the user record for an email and obtains an access
// token scoped to that user for the enrollment call.
func (c *Client) ResolveUser(ctx context.Context, sess Session, email string) (UserIdentity, error) {
	body := map[string]any{
		"request": map[string]any{
			"filters": map[string]any{"email": email},
			"limit":   1,
		},
	}
	var res userSearchResult
	if err := c.doJSON(ctx, http.MethodPost, routeUserSearch, body, sess.CreatorToken, &res); err != nil {
		return UserIdentity{}, fmt.Errorf("search user %s: %w", email, err)
	}
	if res.Response.Count == 0 || len(res.Response.Content) == 0 {
		return UserIdentity{}, fmt.Errorf("user not found: %s", email)
	}
	userID := res.Response.Content[0].Identifier

	tokenBody := map[string]any{
		"request": map[string]any{"userId": userID},
	}
	var tok userTokenResult
	if err := c.doJSON(ctx, http.MethodPost, routeUserToken, tokenBody, sess.CreatorToken, &tok); err != nil {
		return UserIdentity{}, fmt.Errorf("user token for %s: %w", email, err)
	}
	if tok.AccessToken == "" {
		return UserIdentity{}, fmt.Errorf("no access token issued for %s", email)
	}

	return UserIdentity{ID: userID, AccessToken: tok.AccessToken}, nil
}
