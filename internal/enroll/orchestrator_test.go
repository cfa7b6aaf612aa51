package enroll

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/fmps-edu/sunbird-bulk-ops/internal/config"
	"github.com/fmps-edu/sunbird-bulk-ops/internal/sunbird"
)

// mockAPI lets each test plug in just the calls it cares about and counts
// every invocation.
type mockAPI struct {
	mu    sync.Mutex
	calls map[string]int

	resolveUser        func(email string) (UserIdentity, error)
	searchProfile      func(code string) (string, error)
	profileCourses     func(profileID string) ([]string, error)
	resolveCourseCodes func(nodeIDs []string) (map[string]string, error)
	activeBatch        func(nodeID string) (string, error)
	enroll             func(nodeID, batchID, userID, userToken string) error
}

func newMockAPI() *mockAPI {
	return &mockAPI{calls: make(map[string]int)}
}

func (m *mockAPI) count(name string) {
	m.mu.Lock()
	m.calls[name]++
	m.mu.Unlock()
}

func (m *mockAPI) callCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[name]
}

func (m *mockAPI) ResolveUser(_ context.Context, email string) (UserIdentity, error) {
	m.count("ResolveUser")
	if m.resolveUser != nil {
		return m.resolveUser(email)
	}
	return UserIdentity{ID: "user-" + email, AccessToken: "token"}, nil
}

func (m *mockAPI) SearchLearnerProfile(_ context.Context, code string) (string, error) {
	m.count("SearchLearnerProfile")
	if m.searchProfile != nil {
		return m.searchProfile(code)
	}
	return "profile-" + code, nil
}

func (m *mockAPI) ProfileCourses(_ context.Context, profileID string) ([]string, error) {
	m.count("ProfileCourses")
	if m.profileCourses != nil {
		return m.profileCourses(profileID)
	}
	return []string{"do_1"}, nil
}

func (m *mockAPI) ResolveCourseCodes(_ context.Context, nodeIDs []string) (map[string]string, error) {
	m.count("ResolveCourseCodes")
	if m.resolveCourseCodes != nil {
		return m.resolveCourseCodes(nodeIDs)
	}
	codes := make(map[string]string, len(nodeIDs))
	for _, id := range nodeIDs {
		codes[id] = "COURSE-" + id
	}
	return codes, nil
}

func (m *mockAPI) ActiveBatch(_ context.Context, nodeID string) (string, error) {
	m.count("ActiveBatch")
	if m.activeBatch != nil {
		return m.activeBatch(nodeID)
	}
	return "batch-" + nodeID, nil
}

func (m *mockAPI) Enroll(_ context.Context, nodeID, batchID, userID, userToken string) error {
	m.count("Enroll")
	if m.enroll != nil {
		return m.enroll(nodeID, batchID, userID, userToken)
	}
	return nil
}

// memSink captures the report in memory.
type memSink struct {
	mu     sync.Mutex
	header []string
	rows   [][]string
}

func (s *memSink) Write(_ context.Context, _ string, header []string, rows [][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.header = header
	s.rows = rows
	return nil
}

func (s *memSink) URI(name string) string { return "mem://" + name }
func (s *memSink) Close() error           { return nil }

func writeRoster(t *testing.T, rows ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "roster.csv")
	content := strings.Join(append([]string{"learner_profile_code,email"}, rows...), "\n") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write roster: %v", err)
	}
	return path
}

func newTestOrchestrator(t *testing.T, input string, api API) (*Orchestrator, *memSink) {
	t.Helper()
	sink := &memSink{}
	cfg := config.EnrollConfig{
		InputPath:         input,
		BatchSize:         5,
		CourseConcurrency: 1,
	}
	return New(cfg, api, sink), sink
}

func findResult(t *testing.T, rows [][]string, profile string) []string {
	t.Helper()
	for _, row := range rows {
		if row[1] == profile {
			return row
		}
	}
	t.Fatalf("no report row for profile %q in %v", profile, rows)
	return nil
}

func TestRun_EnrollsAndReports(t *testing.T) {
	api := newMockAPI()
	o, sink := newTestOrchestrator(t, writeRoster(t, "LP1,a@x.com"), api)

	sum, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sum.Successes != 1 || sum.Failures != 0 {
		t.Errorf("summary = %+v, want 1 success, 0 failures", sum)
	}
	if len(sink.rows) != 1 {
		t.Fatalf("report rows = %d, want 1", len(sink.rows))
	}
	want := []string{"a@x.com", "LP1", "COURSE-do_1", "Success", "none"}
	for i, v := range want {
		if sink.rows[0][i] != v {
			t.Errorf("row[%d] = %q, want %q", i, sink.rows[0][i], v)
		}
	}
}

func TestRun_MissingEmailMakesNoNetworkCalls(t *testing.T) {
	api := newMockAPI()
	o, sink := newTestOrchestrator(t, writeRoster(t, `LP1,"  "`), api)

	sum, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sum.Failures != 1 {
		t.Errorf("failures = %d, want 1", sum.Failures)
	}
	if got := api.callCount("ResolveUser"); got != 0 {
		t.Errorf("ResolveUser called %d times, want 0", got)
	}
	if len(sink.rows) != 1 || sink.rows[0][4] != ReasonMissingEmail {
		t.Errorf("report rows = %v, want one row with reason %q", sink.rows, ReasonMissingEmail)
	}
}

func TestRun_MissingProfileCode(t *testing.T) {
	api := newMockAPI()
	o, sink := newTestOrchestrator(t, writeRoster(t, ",a@x.com"), api)

	if _, err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(sink.rows) != 1 || sink.rows[0][4] != ReasonMissingProfileCode {
		t.Errorf("report rows = %v, want one row with reason %q", sink.rows, ReasonMissingProfileCode)
	}
	if got := api.callCount("ResolveUser"); got != 0 {
		t.Errorf("ResolveUser called %d times, want 0", got)
	}
}

func TestRun_ProfileNotFoundIsSkippedNotFailed(t *testing.T) {
	api := newMockAPI()
	api.searchProfile = func(code string) (string, error) { return "", nil }
	o, sink := newTestOrchestrator(t, writeRoster(t, "LP404,a@x.com"), api)

	sum, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sum.Failures != 0 || sum.Successes != 0 {
		t.Errorf("summary = %+v, want no successes or failures for a skip", sum)
	}
	row := findResult(t, sink.rows, "LP404")
	if row[3] != string(StatusSkipped) || row[4] != ReasonProfileNotFound {
		t.Errorf("row = %v, want Skipped/%q", row, ReasonProfileNotFound)
	}
}

// A worked scenario: one cell naming two profiles, one of which does not
// exist. The existing profile enrolls, the other is reported Skipped, and
// both land in the report.
func TestRun_MixedProfilesInOneCell(t *testing.T) {
	api := newMockAPI()
	api.searchProfile = func(code string) (string, error) {
		if code == "LP2" {
			return "", nil
		}
		return "profile-" + code, nil
	}
	o, sink := newTestOrchestrator(t, writeRoster(t, `"LP1, LP2",a@x.com`), api)

	sum, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sum.Successes != 1 {
		t.Errorf("successes = %d, want 1", sum.Successes)
	}
	if len(sink.rows) != 2 {
		t.Fatalf("report rows = %d, want 2", len(sink.rows))
	}
	if row := findResult(t, sink.rows, "LP1"); row[3] != string(StatusSuccess) {
		t.Errorf("LP1 row = %v, want Success", row)
	}
	if row := findResult(t, sink.rows, "LP2"); row[3] != string(StatusSkipped) || row[4] != ReasonProfileNotFound {
		t.Errorf("LP2 row = %v, want Skipped/%q", row, ReasonProfileNotFound)
	}
}

func TestRun_LedgerSkipsRepeatedEnrollment(t *testing.T) {
	api := newMockAPI()
	// Same user appears twice, both rows resolve to the same course node.
	// Batch size 1 keeps the rows in separate sequential batches so the
	// second one observes the first one's ledger entry.
	o, sink := newTestOrchestrator(t, writeRoster(t, "LP1,a@x.com", "LP1,a@x.com"), api)
	o.cfg.BatchSize = 1

	sum, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := api.callCount("Enroll"); got != 1 {
		t.Errorf("Enroll called %d times, want 1", got)
	}
	if sum.Successes != 1 {
		t.Errorf("successes = %d, want 1", sum.Successes)
	}
	var skips int
	for _, row := range sink.rows {
		if row[3] == string(StatusSkipped) && row[4] == ReasonAlreadyEnrolled {
			skips++
		}
	}
	if skips != 1 {
		t.Errorf("already-enrolled skips = %d, want 1", skips)
	}
}

func TestRun_UpstreamAlreadyEnrolledBecomesSkip(t *testing.T) {
	api := newMockAPI()
	api.enroll = func(_, _, _, _ string) error {
		return &sunbird.APIError{Route: "enrol", StatusCode: 400, Errmsg: "User has already enrolled to this course"}
	}
	o, sink := newTestOrchestrator(t, writeRoster(t, "LP1,a@x.com"), api)

	sum, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sum.Failures != 0 {
		t.Errorf("failures = %d, want 0 for a benign duplicate", sum.Failures)
	}
	row := findResult(t, sink.rows, "LP1")
	if row[3] != string(StatusSkipped) || row[4] != "User has already enrolled to this course" {
		t.Errorf("row = %v, want Skipped with upstream message", row)
	}
}

func TestRun_NoBatchIsFailure(t *testing.T) {
	api := newMockAPI()
	api.activeBatch = func(nodeID string) (string, error) { return "", nil }
	o, sink := newTestOrchestrator(t, writeRoster(t, "LP1,a@x.com"), api)

	sum, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sum.Failures != 1 {
		t.Errorf("failures = %d, want 1", sum.Failures)
	}
	row := findResult(t, sink.rows, "LP1")
	if row[3] != string(StatusFailure) || row[4] != ReasonNoBatch {
		t.Errorf("row = %v, want Failure/%q", row, ReasonNoBatch)
	}
}

func TestRun_CourseConcurrencyIsCapped(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	api := newMockAPI()
	api.profileCourses = func(string) ([]string, error) {
		return []string{"do_1", "do_2", "do_3", "do_4", "do_5"}, nil
	}
	api.enroll = func(_, _, _, _ string) error {
		n := inFlight.Add(1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		defer inFlight.Add(-1)
		return nil
	}
	o, _ := newTestOrchestrator(t, writeRoster(t, "LP1,a@x.com"), api)

	if _, err := o.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := maxInFlight.Load(); got > 1 {
		t.Errorf("max in-flight submissions = %d, want at most 1", got)
	}
	if got := api.callCount("Enroll"); got != 5 {
		t.Errorf("Enroll called %d times, want 5", got)
	}
}

func TestRun_PanicInOneProfileDoesNotSinkSiblings(t *testing.T) {
	api := newMockAPI()
	api.searchProfile = func(code string) (string, error) {
		if code == "LPBOOM" {
			panic("exploded")
		}
		return "profile-" + code, nil
	}
	o, sink := newTestOrchestrator(t, writeRoster(t, `"LP1, LPBOOM",a@x.com`), api)

	sum, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sum.Successes != 1 || sum.Failures != 1 {
		t.Errorf("summary = %+v, want 1 success and 1 failure", sum)
	}
	row := findResult(t, sink.rows, "LPBOOM")
	if row[3] != string(StatusFailure) || !strings.HasPrefix(row[4], "Profile processing failed:") {
		t.Errorf("row = %v, want synthetic profile failure", row)
	}
	if row := findResult(t, sink.rows, "LP1"); row[3] != string(StatusSuccess) {
		t.Errorf("LP1 row = %v, want Success", row)
	}
}

func TestRun_IdentityFailureCountsOnce(t *testing.T) {
	api := newMockAPI()
	api.resolveUser = func(email string) (UserIdentity, error) {
		return UserIdentity{}, &sunbird.APIError{Route: "user/search", StatusCode: 500, Errmsg: "search is down"}
	}
	o, sink := newTestOrchestrator(t, writeRoster(t, `"LP1, LP2, LP3",a@x.com`), api)

	sum, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(sink.rows) != 3 {
		t.Fatalf("report rows = %d, want one per profile code", len(sink.rows))
	}
	for _, row := range sink.rows {
		if row[3] != string(StatusFailure) || row[4] != "search is down" {
			t.Errorf("row = %v, want Failure with upstream message", row)
		}
	}
	if sum.Failures != 1 {
		t.Errorf("failures = %d, want 1 for a single underlying failure", sum.Failures)
	}
}

func TestRun_EmptyRosterWritesHeaderOnlyReport(t *testing.T) {
	api := newMockAPI()
	o, sink := newTestOrchestrator(t, writeRoster(t), api)

	sum, err := o.Run(context.Background())
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if sum.Results != 0 {
		t.Errorf("results = %d, want 0", sum.Results)
	}
	if len(sink.rows) != 0 {
		t.Errorf("report rows = %v, want none", sink.rows)
	}
	if len(sink.header) == 0 {
		t.Error("report header missing")
	}
}

func TestRun_RejectsBadBatchSize(t *testing.T) {
	api := newMockAPI()
	o, _ := newTestOrchestrator(t, writeRoster(t, "LP1,a@x.com"), api)
	o.cfg.BatchSize = 0

	if _, err := o.Run(context.Background()); err == nil {
		t.Fatal("Run() with batch size 0 should fail")
	}
	if got := api.callCount("ResolveUser"); got != 0 {
		t.Errorf("ResolveUser called %d times, want 0", got)
	}
}

func TestRun_RejectsMissingHeaders(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.csv")
	if err := os.WriteFile(path, []byte("learner_profile_code\nLP1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	api := newMockAPI()
	o, _ := newTestOrchestrator(t, path, api)

	_, err := o.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "missing required headers") {
		t.Fatalf("Run() error = %v, want missing headers", err)
	}
}
