package sunbird

import (
	"context"
	"fmt"
	"net/http"
)

type compositeSearchResult struct {
	Count int `json:"count"`
	Items []struct {
		Identifier string   `json:"identifier"`
		Code       string   `json:"code"`
		Courses    []string `json:"courses"`
	} `json:"items"`
	Content []struct {
		Identifier string `json:"identifier"`
		Code       string `json:"code"`
	} `json:"content"`
}

// SearchLearnerProfile resolves a learner-profile code to its identifier.
// Returns "" when no profile with that code exists.
func (c *Client) SearchLearnerProfile(ctx context.Context, sess Session, code string) (string, error) {
	body := map[string]any{
		"request": map[string]any{
			"filters": map[string]any{
				"objectType": "LearnerProfile",
				"code":       code,
			},
			"limit": 1,
		},
	}
	var res compositeSearchResult
	if err := c.doJSON(ctx, http.MethodPost, routeSearch, body, sess.CreatorToken, &res); err != nil {
		return "", fmt.Errorf("search learner profile %s: %w", code, err)
	}
	if res.Count == 0 || len(res.Items) == 0 {
		return "", nil
	}
	return res.Items[0].Identifier, nil
}

// ProfileCourses returns the course node references attached to a profile.
func (c *Client) ProfileCourses(ctx context.Context, sess Session, profileID string) ([]string, error) {
	body := map[string]any{
		"request": map[string]any{
			"filters": map[string]any{"identifier": profileID},
			"fields":  []string{"identifier", "courses"},
		},
	}
	var res compositeSearchResult
	if err := c.doJSON(ctx, http.MethodPost, routeSearch, body, sess.CreatorToken, &res); err != nil {
		return nil, fmt.Errorf("profile courses %s: %w", profileID, err)
	}
	if len(res.Items) == 0 {
		return nil, nil
	}
	return res.Items[0].Courses, nil
}

// ResolveCourseCodes maps course node references to human-readable course
// codes in one batched search. Nodes the search does not return are absent
// from the map.
func (c *Client) ResolveCourseCodes(ctx context.Context, sess Session, nodeIDs []string) (map[string]string, error) {
	body := map[string]any{
		"request": map[string]any{
			"filters": map[string]any{"identifier": nodeIDs},
			"fields":  []string{"identifier", "code"},
		},
	}
	var res compositeSearchResult
	if err := c.doJSON(ctx, http.MethodPost, routeSearch, body, sess.CreatorToken, &res); err != nil {
		return nil, fmt.Errorf("resolve course codes: %w", err)
	}

	codes := make(map[string]string, len(res.Content))
	for _, item := range res.Content {
		if item.Identifier != "" && item.Code != "" {
			codes[item.Identifier] = item.Code
		}
	}
	return codes, nil
}

type batchListResult struct {
	Response struct {
		Count   int `json:"count"`
		Content []struct {
			Identifier string `json:"identifier"`
			Status     int    `json:"status"`
		} `json:"content"`
	} `json:"response"`
}

// ActiveBatch returns the identifier of the open enrollment batch for a
// course node, or "" when the course has none.
func (c *Client) ActiveBatch(ctx context.Context, sess Session, nodeID string) (string, error) {
	body := map[string]any{
		"request": map[string]any{
			"filters": map[string]any{
				"courseId": nodeID,
				"status":   1, // ongoing
			},
			"sort_by": map[string]string{"createdDate": "desc"},
		},
	}
	var res batchListResult
	if err := c.doJSON(ctx, http.MethodPost, routeBatchList, body, sess.CreatorToken, &res); err != nil {
		return "", fmt.Errorf("batch list for %s: %w", nodeID, err)
	}
	if res.Response.Count == 0 || len(res.Response.Content) == 0 {
		return "", nil
	}
	return res.Response.Content[0].Identifier, nil
}

// Enroll submits one enrollment. The upstream rejects duplicates with an
// error message containing "user has already enrolled"; callers classify
// that case themselves.
func (c *Client) Enroll(ctx context.Context, nodeID, batchID, userID, userToken string) error {
	body := map[string]any{
		"request": map[string]any{
			"courseId": nodeID,
			"batchId":  batchID,
			"userId":   userID,
		},
	}
	if err := c.doJSON(ctx, http.MethodPost, routeEnroll, body, userToken, nil); err != nil {
		return fmt.Errorf("enroll user %s in %s: %w", userID, nodeID, err)
	}
	return nil
}
