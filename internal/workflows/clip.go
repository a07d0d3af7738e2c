package workflows

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/tendant/clip-bridge/internal/extractor"
	"github.com/tendant/clip-bridge/internal/metadata"
	"github.com/tendant/clip-bridge/internal/metrics"
)

// FileDownloader fetches a file from the DAM
type FileDownloader interface {
	DownloadFile(ctx context.Context, depotPath string, w io.Writer) error
}

// Extractor runs the extraction tool on a local file
type Extractor interface {
	Extract(ctx context.Context, path string) (*extractor.Result, error)
}

// Publisher sends the extraction output back to the DAM
type Publisher interface {
	PublishPreview(ctx context.Context, path string, image []byte) error
	PublishMetadata(ctx context.Context, path string, rec metadata.Record) error
}

// ClipWorkflow downloads a .clip file, extracts its metadata and preview, and
// publishes both to the DAM
type ClipWorkflow struct {
	downloader FileDownloader
	extractor  Extractor
	publisher  Publisher
	metrics    *metrics.Metrics
	tempDir    string
}

// NewClipWorkflow creates the clip processing workflow. Temporary files are
// created in tempDir, or the system default when empty.
func NewClipWorkflow(downloader FileDownloader, ext Extractor, publisher Publisher, m *metrics.Metrics, tempDir string) *ClipWorkflow {
	return &ClipWorkflow{
		downloader: downloader,
		extractor:  ext,
		publisher:  publisher,
		metrics:    m,
		tempDir:    tempDir,
	}
}

// Name returns the workflow name
func (w *ClipWorkflow) Name() string {
	return "ClipWorkflow"
}

// Execute processes one depot path. Download and extraction failures stop
// the job; the two publication steps are attempted independently.
func (w *ClipWorkflow) Execute(wctx *WorkflowContext) (*WorkflowResult, error) {
	log := slog.With("run_id", wctx.RunID, "path", wctx.Path)

	if wctx.Path == "" {
		return failed(metrics.OutcomeDownloadFailed, ErrInvalidRequest), ErrInvalidRequest
	}

	// Step 1: Download into a per-job temp file
	log.Info("Downloading file")
	tmp, err := os.CreateTemp(w.tempDir, "clip-*.clip")
	if err != nil {
		err = fmt.Errorf("%w: create temp file: %w", ErrDownloadFailed, err)
		log.Error("Error downloading file", "err", err)
		return failed(metrics.OutcomeDownloadFailed, err), err
	}
	defer func() {
		tmp.Close()
		if rmErr := os.Remove(tmp.Name()); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			log.Warn("Failed to remove temp file", "file", tmp.Name(), "err", rmErr)
		}
	}()

	start := time.Now()
	err = w.downloader.DownloadFile(wctx.Ctx, wctx.Path, tmp)
	w.metrics.ObserveStage(metrics.StageDownload, start)
	if err == nil {
		err = tmp.Close()
	}
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrDownloadFailed, err)
		log.Error("Error downloading file", "err", err)
		return failed(metrics.OutcomeDownloadFailed, err), err
	}

	// Step 2: Extract
	start = time.Now()
	result, err := w.extractor.Extract(wctx.Ctx, tmp.Name())
	w.metrics.ObserveStage(metrics.StageExtract, start)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrExtractionFailed, err)
		log.Error("Error extracting clip data", "err", err)
		return failed(metrics.OutcomeExtractFailed, err), err
	}
	record := metadata.Translate(result.Metadata)
	log.Debug("Clip data extracted", "fields", len(record), "preview_bytes", len(result.ImageData))

	// Step 3: Publish preview and metadata independently
	var errs []error

	start = time.Now()
	if err := w.publisher.PublishPreview(wctx.Ctx, wctx.Path, result.ImageData); err != nil {
		log.Error("Error sending preview", "err", err)
		errs = append(errs, err)
	} else {
		log.Info("Uploaded preview to DAM")
	}
	w.metrics.ObserveStage(metrics.StagePreview, start)

	start = time.Now()
	if err := w.publisher.PublishMetadata(wctx.Ctx, wctx.Path, record); err != nil {
		log.Error("Error sending metadata", "err", err)
		errs = append(errs, err)
	} else {
		log.Info("Successfully uploaded metadata to DAM")
	}
	w.metrics.ObserveStage(metrics.StageMetadata, start)

	if len(errs) > 0 {
		err := fmt.Errorf("%w: %w", ErrPublishFailed, errors.Join(errs...))
		res := failed(metrics.OutcomePublishFailed, err)
		res.Outputs["fields"] = len(record)
		return res, err
	}

	return &WorkflowResult{
		Success: true,
		Outcome: metrics.OutcomeSucceeded,
		Outputs: map[string]interface{}{
			"path":   wctx.Path,
			"fields": len(record),
		},
	}, nil
}

func failed(outcome string, err error) *WorkflowResult {
	return &WorkflowResult{
		Success: false,
		Outcome: outcome,
		Error:   err,
		Outputs: map[string]interface{}{},
	}
}
