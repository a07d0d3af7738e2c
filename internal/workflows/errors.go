package workflows

import "errors"

var (
	// ErrInvalidRequest is returned when a job has no depot path
	ErrInvalidRequest = errors.New("invalid workflow request")

	// ErrDownloadFailed is returned when the file could not be fetched from the DAM
	ErrDownloadFailed = errors.New("download failed")

	// ErrExtractionFailed is returned when the extractor failed or its output was unusable
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrPublishFailed is returned when the preview or metadata upload failed
	ErrPublishFailed = errors.New("publish failed")
)
