package importer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHTTPCommitterSuccess(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)

		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"id": "rec-42"})
	}))
	defer srv.Close()

	c := NewHTTPCommitter(srv.URL, "test-key", time.Second)
	rec := NormalizedRecord{
		Row: 5,
		Fields: map[string]any{
			"name":        "Asha",
			"dateOfBirth": time.Date(2012, 5, 30, 0, 0, 0, 0, time.UTC),
		},
	}

	out := c.Commit(context.Background(), testDef(), rec)

	if out.Status != StatusCommitted {
		t.Fatalf("Status = %q, want committed (%s)", out.Status, out.Message)
	}
	if out.AssignedID != "rec-42" {
		t.Errorf("AssignedID = %q, want %q", out.AssignedID, "rec-42")
	}
	if out.Row != 5 {
		t.Errorf("Row = %d, want 5", out.Row)
	}
	if gotPath != testDef().TargetPath {
		t.Errorf("request path = %q, want %q", gotPath, testDef().TargetPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
	// Dates travel as YYYY-MM-DD
	if gotBody["dateOfBirth"] != "2012-05-30" {
		t.Errorf("dateOfBirth on the wire = %v, want 2012-05-30", gotBody["dateOfBirth"])
	}
}

func TestHTTPCommitterFailureReason(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"error": "duplicate roll number"})
	}))
	defer srv.Close()

	c := NewHTTPCommitter(srv.URL, "", time.Second)
	out := c.Commit(context.Background(), testDef(), NormalizedRecord{Row: 2, Fields: map[string]any{}})

	if out.Status != StatusFailed {
		t.Fatalf("Status = %q, want failed", out.Status)
	}
	if !strings.Contains(out.Message, "duplicate roll number") {
		t.Errorf("Message = %q, want downstream reason included", out.Message)
	}
}

func TestHTTPCommitterPlainError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewHTTPCommitter(srv.URL, "", time.Second)
	out := c.Commit(context.Background(), testDef(), NormalizedRecord{Row: 1, Fields: map[string]any{}})

	if out.Status != StatusFailed {
		t.Fatalf("Status = %q, want failed", out.Status)
	}
	if !strings.Contains(out.Message, "500") {
		t.Errorf("Message = %q, want the status line", out.Message)
	}
}

func TestHTTPCommitterTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewHTTPCommitter(srv.URL, "", 20*time.Millisecond)
	out := c.Commit(context.Background(), testDef(), NormalizedRecord{Row: 3, Fields: map[string]any{}})

	if out.Status != StatusFailed {
		t.Fatalf("Status = %q, want failed", out.Status)
	}
	if !strings.Contains(out.Message, "timed out") {
		t.Errorf("Message = %q, want timeout mention", out.Message)
	}
}

func TestHTTPCommitterSurvivesSessionCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"id": "rec-1"})
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // session already cancelled; the dispatched call must still run

	c := NewHTTPCommitter(srv.URL, "", time.Second)
	out := c.Commit(ctx, testDef(), NormalizedRecord{Row: 1, Fields: map[string]any{}})

	if out.Status != StatusCommitted {
		t.Fatalf("Status = %q, want committed despite cancelled session context", out.Status)
	}
}
