package handlers

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tendant/clip-bridge/internal/metrics"
	"github.com/tendant/clip-bridge/pkg/pipeline"
)

// maxBodyBytes bounds the webhook body read into memory
const maxBodyBytes = 10 << 20

const errNoJSON = "No JSON data in request"

// Enqueuer accepts depot paths for background processing
type Enqueuer interface {
	Enqueue(ctx context.Context, path string) error
}

// WebhookHandler receives file-change notifications and queues matching files
type WebhookHandler struct {
	enqueuer Enqueuer
	metrics  *metrics.Metrics
	secret   string
}

// NewWebhookHandler creates a webhook handler. When secret is non-empty every
// request must carry it in the X-Webhook-Secret header.
func NewWebhookHandler(enqueuer Enqueuer, m *metrics.Metrics, secret string) *WebhookHandler {
	return &WebhookHandler{
		enqueuer: enqueuer,
		metrics:  m,
		secret:   secret,
	}
}

// HandleWebhook handles POST /webhook - queues matching files and returns immediately
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Received webhook request", "method", r.Method, "remote", r.RemoteAddr, "length", r.ContentLength)

	if r.Method != http.MethodPost {
		h.writeError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if h.secret != "" {
		got := r.Header.Get("X-Webhook-Secret")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			h.writeError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			slog.Error("Webhook body too large", "limit", tooLarge.Limit)
			h.writeError(w, "Request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		slog.Error("Failed to read webhook body", "err", err)
		h.writeError(w, errNoJSON, http.StatusBadRequest)
		return
	}

	events, ok := decodeEvents(body)
	if !ok {
		slog.Error(errNoJSON)
		h.writeError(w, errNoJSON, http.StatusBadRequest)
		return
	}

	paths := CollectPaths(events)

	queued := 0
	for _, path := range paths {
		if err := h.enqueuer.Enqueue(r.Context(), path); err != nil {
			slog.Warn("Failed to queue file", "path", path, "err", err)
			h.metrics.FilesDropped(1)
			continue
		}
		queued++
	}
	h.metrics.FilesQueued(queued)
	slog.Info("Queued files for processing", "queued", queued, "matched", len(paths), "events", len(events))

	h.metrics.WebhookRequest(http.StatusOK)
	h.writeJSON(w, http.StatusOK, pipeline.WebhookResponse{
		Message: fmt.Sprintf("Queued %d files for processing", queued),
	})
}

// HandleHealth handles GET /health
func (h *WebhookHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// decodeEvents splits a body into raw events. A single object is accepted as
// a one-event batch. Empty or absent data is rejected.
func decodeEvents(body []byte) ([]json.RawMessage, bool) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, false
	}

	switch body[0] {
	case '[':
		var events []json.RawMessage
		if err := json.Unmarshal(body, &events); err != nil || len(events) == 0 {
			return nil, false
		}
		return events, true
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(body, &obj); err != nil || len(obj) == 0 {
			return nil, false
		}
		return []json.RawMessage{body}, true
	default:
		return nil, false
	}
}

// CollectPaths returns the added and modified .clip paths of events, in
// order. Events without the expected shape are skipped.
func CollectPaths(events []json.RawMessage) []string {
	var paths []string
	for i, raw := range events {
		var event pipeline.WebhookEvent
		if err := json.Unmarshal(raw, &event); err != nil ||
			event.Objects == nil ||
			event.Objects.Files == nil ||
			(event.Objects.Files.Added == nil && event.Objects.Files.Modified == nil) {
			slog.Warn("Skipping update: No added or modified 'objects' or 'files' in update", "index", i)
			slog.Debug("Skipped update", "event", string(raw))
			continue
		}

		files := event.Objects.Files
		for _, action := range []struct {
			name    string
			entries []json.RawMessage
		}{
			{pipeline.ActionAdded, files.Added},
			{pipeline.ActionModified, files.Modified},
		} {
			for _, entry := range action.entries {
				var path string
				if err := json.Unmarshal(entry, &path); err != nil {
					slog.Warn("Skipping file entry that is not a path", "action", action.name, "entry", string(entry))
					continue
				}
				if IsTargetFile(path) {
					paths = append(paths, path)
				}
			}
		}
	}
	return paths
}

// IsTargetFile reports whether path names a .clip file
func IsTargetFile(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), pipeline.TargetExtension)
}

func (h *WebhookHandler) writeJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *WebhookHandler) writeError(w http.ResponseWriter, message string, code int) {
	h.metrics.WebhookRequest(code)
	h.writeJSON(w, code, pipeline.ErrorResponse{Error: message})
}
