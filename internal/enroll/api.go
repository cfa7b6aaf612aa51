package enroll

import (
	"context"

	"github.com/fmps-edu/sunbird-bulk-ops/internal/sunbird"
)

// sessionAPI binds a sunbird client to one immutable session so the
// orchestrator never carries credentials itself.
type sessionAPI struct {
	client *sunbird.Client
	sess   sunbird.Session
}

// NewSessionAPI adapts a sunbird client plus session into the API the
// orchestrator drives.
func NewSessionAPI(client *sunbird.Client, sess sunbird.Session) API {
	return &sessionAPI{client: client, sess: sess}
}

func (a *sessionAPI) ResolveUser(ctx context.Context, email string) (UserIdentity, error) {
	id, err := a.client.ResolveUser(ctx, a.sess, email)
	if err != nil {
		return UserIdentity{}, err
	}
	return UserIdentity{ID: id.ID, AccessToken: id.AccessToken}, nil
}

func (a *sessionAPI) SearchLearnerProfile(ctx context.Context, code string) (string, error) {
	return a.client.SearchLearnerProfile(ctx, a.sess, code)
}

func (a *sessionAPI) ProfileCourses(ctx context.Context, profileID string) ([]string, error) {
	return a.client.ProfileCourses(ctx, a.sess, profileID)
}

func (a *sessionAPI) ResolveCourseCodes(ctx context.Context, nodeIDs []string) (map[string]string, error) {
	return a.client.ResolveCourseCodes(ctx, a.sess, nodeIDs)
}

func (a *sessionAPI) ActiveBatch(ctx context.Context, nodeID string) (string, error) {
	return a.client.ActiveBatch(ctx, a.sess, nodeID)
}

func (a *sessionAPI) Enroll(ctx context.Context, nodeID, batchID, userID, userToken string) error {
	return a.client.Enroll(ctx, nodeID, batchID, userID, userToken)
}
