package sunbird

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fmps-edu/sunbird-bulk-ops/internal/config"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New(config.APIConfig{
		BaseURL:   srv.URL,
		AuthKey:   "Bearer static-key",
		ChannelID: "chan-1",
	})
}

func TestActiveBatch(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != routeBatchList {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("X-Channel-Id"); got != "chan-1" {
			t.Errorf("X-Channel-Id = %q", got)
		}
		w.Write([]byte(`{"result":{"response":{"count":1,"content":[{"identifier":"batch-42","status":1}]}}}`))
	}))

	batchID, err := c.ActiveBatch(context.Background(), Session{CreatorToken: "tok"}, "node-1")
	if err != nil {
		t.Fatalf("ActiveBatch() error = %v", err)
	}
	if batchID != "batch-42" {
		t.Errorf("batchID = %q, want batch-42", batchID)
	}
}

func TestActiveBatch_NoneOpen(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":{"response":{"count":0,"content":[]}}}`))
	}))

	batchID, err := c.ActiveBatch(context.Background(), Session{}, "node-1")
	if err != nil {
		t.Fatalf("ActiveBatch() error = %v", err)
	}
	if batchID != "" {
		t.Errorf("batchID = %q, want empty", batchID)
	}
}

func TestEnroll_SurfacesAPIError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-authenticated-user-token"); got != "user-tok" {
			t.Errorf("user token header = %q", got)
		}
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"params":{"status":"failed","errmsg":"User has already enrolled to the batch"}}`))
	}))

	err := c.Enroll(context.Background(), "node-1", "batch-1", "user-1", "user-tok")
	if err == nil {
		t.Fatal("Enroll() = nil, want error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error %v is not an *APIError", err)
	}
	if apiErr.Errmsg != "User has already enrolled to the batch" {
		t.Errorf("Errmsg = %q", apiErr.Errmsg)
	}
}

func TestSearchLearnerProfile_NotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":{"count":0,"items":[]}}`))
	}))

	id, err := c.SearchLearnerProfile(context.Background(), Session{}, "LP-MISSING")
	if err != nil {
		t.Fatalf("SearchLearnerProfile() error = %v", err)
	}
	if id != "" {
		t.Errorf("id = %q, want empty for missing profile", id)
	}
}

func TestResolveCourseCodes(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":{"count":2,"content":[{"identifier":"n1","code":"C1"},{"identifier":"n2","code":"C2"}]}}`))
	}))

	codes, err := c.ResolveCourseCodes(context.Background(), Session{}, []string{"n1", "n2"})
	if err != nil {
		t.Fatalf("ResolveCourseCodes() error = %v", err)
	}
	if len(codes) != 2 || codes["n1"] != "C1" || codes["n2"] != "C2" {
		t.Errorf("codes = %v", codes)
	}
}

func TestContentExists(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":{"count":1,"items":[{"identifier":"do_1","code":"QZ1"}]}}`))
	}))

	exists, err := c.ContentExists(context.Background(), Session{CreatedBy: "u1"}, "QZ1")
	if err != nil {
		t.Fatalf("ContentExists() error = %v", err)
	}
	if !exists {
		t.Error("ContentExists() = false, want true")
	}
}

func TestContentExists_TransportErrorPropagates(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := c.ContentExists(context.Background(), Session{}, "QZ1")
	if err == nil {
		t.Fatal("ContentExists() = nil, want transport error to propagate")
	}
}
