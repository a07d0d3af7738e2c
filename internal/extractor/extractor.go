// Package extractor runs the external clip_extractor tool and parses its output.
package extractor

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// DefaultTool is the extractor binary looked up on PATH when none is configured
const DefaultTool = "clip_extractor"

// Result is the parsed output of one extraction
type Result struct {
	// Metadata maps extractor field keys (ImageHeight, LayerCount, ...) to raw
	// JSON values. Numbers are json.Number.
	Metadata map[string]any
	// ImageData is the decoded preview image
	ImageData []byte
}

// ToolExecutionError is returned when the tool fails to run or exits non-zero.
// ExitCode is -1 when the process could not be started or was killed.
type ToolExecutionError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ToolExecutionError) Error() string {
	if e.Err != nil && e.ExitCode == -1 {
		return fmt.Sprintf("extractor failed to run: %v", e.Err)
	}
	return fmt.Sprintf("extractor failed with exit code %d: %s", e.ExitCode, strings.TrimSpace(e.Stderr))
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }

// ParseError is returned when the tool succeeded but its output is not the
// expected document. It usually means a tool version mismatch.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to parse extractor output: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("failed to parse extractor output: %s", e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Extractor invokes the tool as `<tool> -i <path> -f bytes -v`
type Extractor struct {
	tool    string
	timeout time.Duration
}

// New creates an Extractor. An empty tool means DefaultTool; a zero timeout
// lets the tool run as long as it needs.
func New(tool string, timeout time.Duration) *Extractor {
	if tool == "" {
		tool = DefaultTool
	}
	return &Extractor{tool: tool, timeout: timeout}
}

// Extract runs the tool against the file at path
func (e *Extractor) Extract(ctx context.Context, path string) (*Result, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	args := []string{"-i", path, "-f", "bytes", "-v"}
	slog.Debug("Running extractor", "command", e.tool+" "+strings.Join(args, " "))

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.tool, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	slog.Debug("Extractor output", "stderr", stderr.String())
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &ToolExecutionError{ExitCode: -1, Stderr: stderr.String(), Err: ctxErr}
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, &ToolExecutionError{ExitCode: exitErr.ExitCode(), Stderr: stderr.String(), Err: err}
		}
		return nil, &ToolExecutionError{ExitCode: -1, Stderr: stderr.String(), Err: err}
	}

	return Parse(stdout.Bytes())
}

type output struct {
	Metadata  map[string]any `json:"metadata"`
	ImageData *string        `json:"image_data"`
}

// Parse decodes the tool's stdout document
func Parse(data []byte) (*Result, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var out output
	if err := dec.Decode(&out); err != nil {
		return nil, &ParseError{Reason: "invalid JSON", Err: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, &ParseError{Reason: "invalid JSON", Err: errors.New("trailing data after document")}
	}
	if out.Metadata == nil {
		return nil, &ParseError{Reason: "missing metadata object"}
	}
	if out.ImageData == nil {
		return nil, &ParseError{Reason: "missing image_data"}
	}

	image, err := base64.StdEncoding.DecodeString(*out.ImageData)
	if err != nil {
		return nil, &ParseError{Reason: "image_data is not base64", Err: err}
	}

	return &Result{Metadata: out.Metadata, ImageData: image}, nil
}
