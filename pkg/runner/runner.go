// Package runner embeds the clip pipeline in another program. Files are
// processed synchronously in the caller's goroutine, with no webhook server
// and no queue.
package runner

import (
	"context"
	"fmt"
	"time"

	"github.com/tendant/clip-bridge/internal/catalog"
	"github.com/tendant/clip-bridge/internal/dam"
	"github.com/tendant/clip-bridge/internal/extractor"
	"github.com/tendant/clip-bridge/internal/metadata"
	"github.com/tendant/clip-bridge/internal/publish"
	"github.com/tendant/clip-bridge/internal/workflows"
)

// Config holds the configuration for initializing the pipeline runner
type Config struct {
	DAMURL        string        // Base URL of the Helix DAM API
	AccountKey    string        // DAM account key
	ExtractorPath string        // Optional: defaults to clip_extractor on PATH
	ToolTimeout   time.Duration // Optional: zero means no limit
	DAMTimeout    time.Duration // Optional: zero means no limit
	PreviewMaxDim int           // Optional: zero keeps the preview at full size
	TempDir       string        // Optional: defaults to os.TempDir
}

// Result describes one processed file
type Result struct {
	Path    string
	RunID   string
	Outcome string
	Fields  int
}

// Runner processes depot paths one at a time
type Runner struct {
	runner  *workflows.WorkflowRunner
	catalog *catalog.Catalog
}

// New builds the metadata field catalog and returns a ready runner
func New(ctx context.Context, cfg Config) (*Runner, error) {
	if cfg.DAMURL == "" || cfg.AccountKey == "" {
		return nil, fmt.Errorf("DAM URL and account key are required")
	}
	if cfg.ExtractorPath == "" {
		cfg.ExtractorPath = extractor.DefaultTool
	}

	damClient := dam.NewClient(cfg.DAMURL, cfg.AccountKey, cfg.DAMTimeout)

	cat, err := catalog.Build(ctx, damClient, metadata.FieldNames())
	if err != nil {
		return nil, fmt.Errorf("failed to build field catalog: %w", err)
	}

	workflow := workflows.NewClipWorkflow(
		damClient,
		extractor.New(cfg.ExtractorPath, cfg.ToolTimeout),
		publish.NewPublisher(damClient, cat, cfg.PreviewMaxDim),
		nil,
		cfg.TempDir,
	)

	return &Runner{
		runner:  workflows.NewWorkflowRunner(workflow, nil, nil),
		catalog: cat,
	}, nil
}

// Process downloads, extracts and publishes one .clip file. The returned
// error wraps one of the workflows sentinel errors on failure.
func (r *Runner) Process(ctx context.Context, path string) (*Result, error) {
	res := r.runner.Run(ctx, path)

	out := &Result{Path: path, Outcome: res.Outcome}
	if runID, ok := res.Outputs["run_id"].(string); ok {
		out.RunID = runID
	}
	if fields, ok := res.Outputs["fields"].(int); ok {
		out.Fields = fields
	}
	return out, res.Error
}

// Fields returns the number of metadata fields resolved in the DAM
func (r *Runner) Fields() int {
	return r.catalog.Len()
}
