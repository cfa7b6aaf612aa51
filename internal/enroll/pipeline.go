package enroll

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/fmps-edu/sunbird-bulk-ops/internal/csvio"
	"github.com/fmps-edu/sunbird-bulk-ops/internal/logging"
	"github.com/fmps-edu/sunbird-bulk-ops/internal/sunbird"
)

// processUser runs the full pipeline for one roster row: validate inputs,
// resolve identity, fan out over learner profiles, and settle every outcome
// into results. It updates the shared ledger and stats and never returns an
// empty slice.
func (o *Orchestrator) processUser(ctx context.Context, rec Record) []Result {
	email := strings.TrimSpace(rec.Email)
	log := logging.UserLogger(o.log, email)
	start := time.Now()

	if email == "" {
		o.stats.AddFailures(1)
		o.logProgress(log)
		return []Result{failure(email, placeholder, placeholder, ReasonMissingEmail)}
	}

	codes := csvio.ParseProfileCodes(rec.ProfileCell)
	if len(codes) == 0 {
		o.stats.AddFailures(1)
		o.logProgress(log)
		return []Result{failure(email, placeholder, placeholder, ReasonMissingProfileCode)}
	}

	user, err := o.api.ResolveUser(ctx, email)
	if err != nil {
		// One underlying failure, surfaced once per profile code but
		// counted once.
		msg := sunbird.ErrorMessage(err, fallbackProcessFailed)
		o.stats.AddFailures(1)
		results := make([]Result, 0, len(codes))
		for _, code := range codes {
			results = append(results, failure(email, code, placeholder, msg))
		}
		log.Error("identity resolution failed", "error", msg)
		o.logProgress(log)
		o.waitBetweenUsers(ctx)
		return results
	}

	// Never overwrite an existing set: earlier batches may have already
	// recorded enrollments for a repeated email.
	o.ledger.Ensure(email)

	// Profiles fan out concurrently and always settle: an error or panic
	// in one profile becomes its synthetic Failure, not an abort of its
	// siblings.
	perProfile := make([][]Result, len(codes))
	var wg sync.WaitGroup
	for i, code := range codes {
		wg.Add(1)
		go func(i int, code string) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					perProfile[i] = []Result{failure(email, code, placeholder,
						fmt.Sprintf("Profile processing failed: %v", r))}
				}
			}()
			results, err := o.processProfile(ctx, log, email, user, code)
			if err != nil {
				msg := sunbird.ErrorMessage(err, fallbackProcessFailed)
				perProfile[i] = []Result{failure(email, code, placeholder,
					"Profile processing failed: "+msg)}
				return
			}
			perProfile[i] = results
		}(i, code)
	}
	wg.Wait()

	flat := make([]Result, 0, len(codes))
	for _, results := range perProfile {
		flat = append(flat, results...)
	}

	var succ, fail int
	for _, r := range flat {
		switch r.Status {
		case StatusSuccess:
			succ++
		case StatusFailure:
			fail++
		}
	}
	o.stats.AddSuccesses(succ)
	o.stats.AddFailures(fail)
	o.countResults(flat)

	o.logProgress(log)
	log.Debug("user pipeline finished", "results", len(flat), "elapsed", time.Since(start))
	o.waitBetweenUsers(ctx)
	return flat
}

// processProfile resolves one learner-profile code and attempts enrollment
// into each of its courses, at most CourseConcurrency submissions in flight
// at once. A returned error means the whole profile task failed; the caller
// converts it into the profile's synthetic Failure.
func (o *Orchestrator) processProfile(ctx context.Context, log *slog.Logger, email string, user UserIdentity, code string) ([]Result, error) {
	profileID, err := o.api.SearchLearnerProfile(ctx, code)
	if err != nil {
		return nil, err
	}
	if profileID == "" {
		log.Info("learner profile does not exist", "profile", code)
		return []Result{skipped(email, code, placeholder, ReasonProfileNotFound)}, nil
	}

	nodeIDs, err := o.api.ProfileCourses(ctx, profileID)
	if err != nil {
		return nil, err
	}
	if len(nodeIDs) == 0 {
		log.Info("no courses in learner profile", "profile", code)
		return []Result{skipped(email, code, placeholder, ReasonNoCourses)}, nil
	}

	courseCodes, err := o.api.ResolveCourseCodes(ctx, nodeIDs)
	if err != nil {
		return nil, err
	}
	if len(courseCodes) == 0 {
		log.Info("no valid courses in learner profile", "profile", code)
		return []Result{skipped(email, code, placeholder, ReasonNoValidCourses)}, nil
	}

	// Keep the upstream node order for the report; unresolved nodes are
	// dropped here, not attempted.
	resolved := make([]string, 0, len(courseCodes))
	for _, nodeID := range nodeIDs {
		if _, ok := courseCodes[nodeID]; ok {
			resolved = append(resolved, nodeID)
		}
	}

	results := make([]Result, len(resolved))
	sem := semaphore.NewWeighted(int64(o.cfg.CourseConcurrency))
	var wg sync.WaitGroup
	for i, nodeID := range resolved {
		wg.Add(1)
		go func(i int, nodeID string) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					results[i] = failure(email, code, placeholder,
						fmt.Sprintf("Enrollment failed: %v", r))
				}
			}()
			if err := sem.Acquire(ctx, 1); err != nil {
				results[i] = failure(email, code, courseCodes[nodeID],
					fmt.Sprintf("Enrollment failed: %v", err))
				return
			}
			defer sem.Release(1)
			results[i] = o.attemptEnrollment(ctx, log, email, user, code, nodeID, courseCodes[nodeID])
		}(i, nodeID)
	}
	wg.Wait()

	return results, nil
}

// attemptEnrollment handles one (user, course) pair: the ledger dedup guard,
// batch lookup, submission, and error classification.
func (o *Orchestrator) attemptEnrollment(ctx context.Context, log *slog.Logger, email string, user UserIdentity, profileCode, nodeID, courseCode string) Result {
	if o.ledger.Has(email, nodeID) {
		log.Info("user already enrolled in course", "course", courseCode)
		return skipped(email, profileCode, courseCode, ReasonAlreadyEnrolled)
	}

	batchID, err := o.api.ActiveBatch(ctx, nodeID)
	if err != nil {
		return o.classifySubmitError(email, profileCode, courseCode, err, log)
	}
	if batchID == "" {
		log.Warn("no batch found for course", "course", courseCode)
		return failure(email, profileCode, courseCode, ReasonNoBatch)
	}

	if o.mets != nil {
		o.mets.InFlightSubmissions.Inc()
		defer o.mets.InFlightSubmissions.Dec()
	}
	if err := o.api.Enroll(ctx, nodeID, batchID, user.ID, user.AccessToken); err != nil {
		return o.classifySubmitError(email, profileCode, courseCode, err, log)
	}

	o.ledger.Record(email, nodeID)
	log.Info("enrolled in course", "course", courseCode, "batch", batchID)
	return Result{UserID: email, LearnerProfile: profileCode, CourseCode: courseCode, Status: StatusSuccess, Reason: ReasonNone}
}

// classifySubmitError turns a submission failure into a result, reading the
// upstream message to decide between Failure and the benign already-enrolled
// Skipped. The upstream exposes no structured error code for the duplicate
// case, so the message text is the only signal.
func (o *Orchestrator) classifySubmitError(email, profileCode, courseCode string, err error, log *slog.Logger) Result {
	msg := sunbird.ErrorMessage(err, fallbackEnrollFailed)
	log.Error("failed to enroll in course", "course", courseCode, "error", msg)
	if alreadyEnrolled(msg) {
		return skipped(email, profileCode, courseCode, msg)
	}
	return failure(email, profileCode, courseCode, msg)
}

// alreadyEnrolled reports whether the upstream message names the known
// benign duplicate-enrollment rejection.
func alreadyEnrolled(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "user has already enrolled")
}

func (o *Orchestrator) waitBetweenUsers(ctx context.Context) {
	if o.cfg.UserWaitInterval <= 0 {
		return
	}
	select {
	case <-time.After(o.cfg.UserWaitInterval):
	case <-ctx.Done():
	}
}

func (o *Orchestrator) logProgress(log *slog.Logger) {
	succ, fail := o.stats.Snapshot()
	log.Info("enrollment progress", "successes", succ, "failures", fail)
}

func (o *Orchestrator) countResults(results []Result) {
	if o.mets == nil {
		return
	}
	for _, r := range results {
		switch r.Status {
		case StatusSuccess:
			o.mets.EnrollmentsSucceeded.Inc()
		case StatusFailure:
			o.mets.EnrollmentsFailed.Inc()
		case StatusSkipped:
			// Upstream duplicate-enrollment messages vary; collapse them
			// to one label value to keep the cardinality bounded.
			reason := r.Reason
			if alreadyEnrolled(reason) {
				reason = ReasonAlreadyEnrolled
			}
			o.mets.IncSkipped(reason)
		}
	}
	o.mets.UsersProcessed.Inc()
}

func skipped(email, profile, course, reason string) Result {
	return Result{UserID: email, LearnerProfile: profile, CourseCode: course, Status: StatusSkipped, Reason: reason}
}

func failure(email, profile, course, reason string) Result {
	return Result{UserID: email, LearnerProfile: profile, CourseCode: course, Status: StatusFailure, Reason: reason}
}
