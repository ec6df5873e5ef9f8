package importer

// commit.go persists normalized records via the downstream single-record
// creation endpoint.
//
// Each record is one POST. A rejected or timed-out call produces a failed
// outcome for that row only; it never aborts the rest of the batch. The
// request context is detached from session cancellation so that an already
// dispatched call drains to a real outcome instead of being torn down
// mid-flight.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"rosterimport/internal/schema"
)

// Committer submits one validated record downstream and reports the outcome.
// Implementations must return an outcome for every call; transport errors
// become failed outcomes, not Go errors.
type Committer interface {
	Commit(ctx context.Context, def schema.Definition, rec NormalizedRecord) CommitOutcome
}

// maxErrorBodyBytes caps how much of a downstream error response is read
// when extracting a failure reason.
const maxErrorBodyBytes = 8 * 1024

// HTTPCommitter posts JSON records to the downstream record API.
type HTTPCommitter struct {
	client  *http.Client
	baseURL string
	apiKey  string
	timeout time.Duration
}

// NewHTTPCommitter creates a committer for the given base URL.
// apiKey, when non-empty, is sent as a bearer token. timeout bounds each
// individual creation call.
func NewHTTPCommitter(baseURL, apiKey string, timeout time.Duration) *HTTPCommitter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPCommitter{
		client:  &http.Client{},
		baseURL: baseURL,
		apiKey:  apiKey,
		timeout: timeout,
	}
}

// createResponse is the expected success body from the downstream endpoint.
type createResponse struct {
	ID string `json:"id"`
}

// errorResponse is the expected failure body from the downstream endpoint.
type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Commit posts one record. The call survives session cancellation (the
// record was already dispatched, so its outcome must be recorded) but is
// bounded by the per-call timeout.
func (c *HTTPCommitter) Commit(ctx context.Context, def schema.Definition, rec NormalizedRecord) CommitOutcome {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.timeout)
	defer cancel()

	body, err := json.Marshal(payloadFields(rec))
	if err != nil {
		return failedOutcome(rec.Row, fmt.Sprintf("encode record: %v", err))
	}

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, c.baseURL+def.TargetPath, bytes.NewReader(body))
	if err != nil {
		return failedOutcome(rec.Row, fmt.Sprintf("build request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return failedOutcome(rec.Row, fmt.Sprintf("request timed out after %s", c.timeout))
		}
		return failedOutcome(rec.Row, fmt.Sprintf("request failed: %v", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		var created createResponse
		if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
			// Created but the id is unreadable; still a success for the row.
			return CommitOutcome{Row: rec.Row, Status: StatusCommitted}
		}
		return CommitOutcome{Row: rec.Row, Status: StatusCommitted, AssignedID: created.ID}
	}

	return failedOutcome(rec.Row, extractFailureReason(resp))
}

// payloadFields converts typed field values to their wire form.
// Dates travel as YYYY-MM-DD strings.
func payloadFields(rec NormalizedRecord) map[string]any {
	out := make(map[string]any, len(rec.Fields))
	for k, v := range rec.Fields {
		if t, ok := v.(time.Time); ok {
			out[k] = t.Format(isoDateLayout)
			continue
		}
		out[k] = v
	}
	return out
}

// extractFailureReason pulls a human-readable reason from a non-2xx response.
func extractFailureReason(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

	var er errorResponse
	if err := json.Unmarshal(body, &er); err == nil {
		if er.Error != "" {
			return fmt.Sprintf("%s: %s", resp.Status, er.Error)
		}
		if er.Message != "" {
			return fmt.Sprintf("%s: %s", resp.Status, er.Message)
		}
	}

	return resp.Status
}

func failedOutcome(row int, msg string) CommitOutcome {
	return CommitOutcome{Row: row, Status: StatusFailed, Message: msg}
}
