package pipeline

import "encoding/json"

// WebhookEvent is one change notification delivered to POST /webhook.
// A request body is a JSON array of these.
type WebhookEvent struct {
	Objects *ObjectChanges `json:"objects,omitempty"`
}

// ObjectChanges groups the changed objects of an event by kind
type ObjectChanges struct {
	Files *FileChanges `json:"files,omitempty"`
}

// FileChanges lists changed file paths by action. Entries are kept raw so a
// single malformed entry can be skipped without rejecting the event.
// Actions other than added and modified are ignored.
type FileChanges struct {
	Added    []json.RawMessage `json:"added,omitempty"`
	Modified []json.RawMessage `json:"modified,omitempty"`
}

// WebhookResponse is returned when files were queued
type WebhookResponse struct {
	Message string `json:"message"`
}

// ErrorResponse is returned for rejected requests
type ErrorResponse struct {
	Error string `json:"error"`
}

// Action constants
const (
	ActionAdded    = "added"
	ActionModified = "modified"
)

// TargetExtension is the only file type the bridge processes (matched case-insensitively)
const TargetExtension = ".clip"

// NewFileEvent builds an event announcing the given paths as added.
func NewFileEvent(paths ...string) WebhookEvent {
	added := make([]json.RawMessage, 0, len(paths))
	for _, p := range paths {
		raw, _ := json.Marshal(p)
		added = append(added, raw)
	}
	return WebhookEvent{
		Objects: &ObjectChanges{
			Files: &FileChanges{Added: added},
		},
	}
}
