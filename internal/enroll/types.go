// Package enroll implements the bulk enrollment orchestrator: it reads a
// learner roster, resolves each row through the LMS, submits enrollments
// with bounded concurrency and partial-failure isolation, and writes a
// per-row status report.
package enroll

import "context"

// Status classifies one enrollment attempt.
type Status string

const (
	StatusSuccess Status = "Success"
	StatusFailure Status = "Failure"
	StatusSkipped Status = "Skipped"
)

// Reason strings surfaced in the status report. These are part of the
// report contract consumed by downstream spreadsheets; do not reword.
const (
	ReasonNone               = "none"
	ReasonMissingEmail       = "Username/Email input is missing"
	ReasonMissingProfileCode = "Learner Profile code input is missing"
	ReasonProfileNotFound    = "Learner profile does not exist"
	ReasonNoCourses          = "No courses found in learner profile"
	ReasonNoValidCourses     = "No valid courses found for learner profile"
	ReasonAlreadyEnrolled    = "User has already enrolled to this course"
	ReasonNoBatch            = "No batch found for course"
)

// Fallback messages when an upstream failure carries no usable text.
const (
	fallbackEnrollFailed  = "Failed to enroll to the course"
	fallbackProcessFailed = "Failed to process enrollments"
)

// placeholder fills result fields that have no meaningful value.
const placeholder = "none"

// Record is one normalized roster row. The email and profile cell are kept
// raw here; the per-user pipeline owns trimming and code parsing so that
// their failure modes land in the report.
type Record struct {
	Email       string
	ProfileCell string
}

// Result is the outcome of one (user, learner profile, course) attempt or
// skip. Every roster row yields at least one Result, even on total failure.
type Result struct {
	UserID         string
	LearnerProfile string
	CourseCode     string
	Status         Status
	Reason         string
}

// ReportHeader is the status report column order.
var ReportHeader = []string{"userId", "learnerProfile", "courseCode", "enrollmentStatus", "reason"}

// Row renders the result in report column order.
func (r Result) Row() []string {
	return []string{r.UserID, r.LearnerProfile, r.CourseCode, string(r.Status), r.Reason}
}

// UserIdentity is the resolved identity for one learner.
type UserIdentity struct {
	ID          string
	AccessToken string
}

// API is the LMS surface the orchestrator drives. *sunbird.Client bound to
// a session satisfies it via NewSessionAPI; tests substitute mocks.
type API interface {
	// ResolveUser maps an email to a durable user id plus a short-lived
	// user-scoped access credential.
	ResolveUser(ctx context.Context, email string) (UserIdentity, error)

	// SearchLearnerProfile returns the profile id for a code, or "" when
	// no such profile exists.
	SearchLearnerProfile(ctx context.Context, code string) (string, error)

	// ProfileCourses returns the course node references in a profile.
	ProfileCourses(ctx context.Context, profileID string) ([]string, error)

	// ResolveCourseCodes maps node references to course codes; nodes the
	// upstream cannot resolve are absent from the map.
	ResolveCourseCodes(ctx context.Context, nodeIDs []string) (map[string]string, error)

	// ActiveBatch returns the open batch id for a course node, or "".
	ActiveBatch(ctx context.Context, nodeID string) (string, error)

	// Enroll submits one enrollment.
	Enroll(ctx context.Context, nodeID, batchID, userID, userToken string) error
}
