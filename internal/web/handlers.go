package web

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"rosterimport/internal/importer"
	"rosterimport/internal/schema"
)

// handleHealthz reports process liveness.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// schemaInfo is the JSON shape for schema discovery.
type schemaInfo struct {
	Key             string   `json:"key"`
	Label           string   `json:"label"`
	Columns         []string `json:"columns"`
	RequiredColumns []string `json:"requiredColumns"`
}

// handleListSchemas returns all registered import schemas.
func (s *Server) handleListSchemas(w http.ResponseWriter, r *http.Request) {
	defs := schema.All()
	infos := make([]schemaInfo, 0, len(defs))
	for _, def := range defs {
		infos = append(infos, schemaInfo{
			Key:             def.Key,
			Label:           def.Label,
			Columns:         def.Columns(),
			RequiredColumns: def.RequiredColumns(),
		})
	}
	writeJSON(w, http.StatusOK, infos)
}

// handleDownloadTemplate returns a CSV file containing only the header row
// for the requested schema, ready to be filled in and uploaded.
func (s *Server) handleDownloadTemplate(w http.ResponseWriter, r *http.Request) {
	schemaKey := chi.URLParam(r, "schemaKey")

	def, ok := schema.Get(schemaKey)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown schema key")
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="%s_template.csv"`, def.Key))

	cw := csv.NewWriter(w)
	cw.Write(def.Columns())
	cw.Flush()
}

// handleStartImport accepts a multipart file upload and starts an
// asynchronous import session. The whole file is read up front; progress
// and the final summary are fetched through the session endpoints.
func (s *Server) handleStartImport(w http.ResponseWriter, r *http.Request) {
	schemaKey := chi.URLParam(r, "schemaKey")

	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		writeError(w, http.StatusBadRequest, "file too large or invalid form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to read file")
		return
	}

	contentType := header.Header.Get("Content-Type")

	sessionID, err := s.service.Start(r.Context(), schemaKey, header.Filename, contentType, data)
	if err != nil {
		switch {
		case errors.Is(err, importer.ErrUnknownSchema):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, importer.ErrTooManyImports):
			w.Header().Set("Retry-After", "30")
			writeError(w, http.StatusTooManyRequests, err.Error())
		default:
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"sessionId": sessionID})
}

// handleImportProgress streams session progress via Server-Sent Events.
// Supports resumption via lastEventId query parameter for reconnection.
func (s *Server) handleImportProgress(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	// The event ID is the progress percentage, allowing clients to skip
	// already-received events after reconnection
	lastEventIDStr := r.URL.Query().Get("lastEventId")
	var lastEventID int
	if lastEventIDStr != "" {
		lastEventID, _ = strconv.Atoi(lastEventIDStr)
	}

	progressCh, err := s.service.SubscribeProgress(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	for {
		select {
		case progress, ok := <-progressCh:
			if !ok {
				// Channel closed, session reached a terminal state
				fmt.Fprintf(w, "event: complete\ndata: {}\n\n")
				flusher.Flush()
				return
			}

			currentPercent := progress.Percent()

			// Skip events the client already received before reconnecting
			if lastEventIDStr != "" && currentPercent <= lastEventID {
				continue
			}

			data, _ := json.Marshal(progress)
			fmt.Fprintf(w, "id: %d\nevent: progress\ndata: %s\n\n", currentPercent, data)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// handleImportSummary returns the final summary of a session, waiting for
// the session to finish if it is still running.
func (s *Server) handleImportSummary(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	summary, err := s.service.Summary(r.Context(), sessionID)
	if err != nil {
		switch {
		case errors.Is(err, importer.ErrSessionNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			writeError(w, http.StatusRequestTimeout, "session still running")
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, summary)
}

// handleCancelImport requests cancellation of an in-flight session.
func (s *Server) handleCancelImport(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	if err := s.service.Cancel(sessionID); err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

// handleExportErrors exports a finished session's error report as CSV.
func (s *Server) handleExportErrors(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	rowErrs, err := s.service.SessionErrors(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, importer.ErrSessionNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusConflict, err.Error())
		return
	}

	timestamp := time.Now().Format("20060102_150405")
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="import_errors_%s.csv"`, timestamp))

	cw := csv.NewWriter(w)
	cw.Write([]string{"_row", "_field", "_stage", "_error"})
	for _, e := range rowErrs {
		cw.Write([]string{strconv.Itoa(e.Row), e.Field, e.Stage, e.Message})
	}
	cw.Flush()
}

// handleHistory returns recently finished sessions, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", 50)

	summaries, err := s.service.History(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if summaries == nil {
		summaries = []importer.Summary{}
	}

	writeJSON(w, http.StatusOK, summaries)
}

// parseIntParam reads an integer query parameter with a fallback default.
func parseIntParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}
