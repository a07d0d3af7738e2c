// Package publish pushes previews and metadata for a file to the DAM.
package publish

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"log/slog"
	"sort"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/tendant/clip-bridge/internal/catalog"
	"github.com/tendant/clip-bridge/internal/metadata"
)

// ErrUnresolvedField means a record names a field missing from the catalog
var ErrUnresolvedField = errors.New("field not in catalog")

// Sink is the part of the DAM the publisher writes to
type Sink interface {
	UploadPreview(ctx context.Context, depotPath string, image []byte) error
	UpdateFileMetadata(ctx context.Context, depotPath string, values map[string]string) error
}

// Error is returned when a publication step fails
type Error struct {
	Op   string // "preview" or "metadata"
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("publish %s for %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Publisher sends extraction results to the DAM
type Publisher struct {
	sink          Sink
	catalog       *catalog.Catalog
	maxPreviewDim int
}

// NewPublisher creates a Publisher. When maxPreviewDim is positive, previews
// larger than that in either dimension are scaled down to fit before upload.
func NewPublisher(sink Sink, cat *catalog.Catalog, maxPreviewDim int) *Publisher {
	return &Publisher{
		sink:          sink,
		catalog:       cat,
		maxPreviewDim: maxPreviewDim,
	}
}

// PublishPreview uploads the preview image for path
func (p *Publisher) PublishPreview(ctx context.Context, path string, img []byte) error {
	data := p.fitPreview(path, img)
	if err := p.sink.UploadPreview(ctx, path, data); err != nil {
		return &Error{Op: "preview", Path: path, Err: err}
	}
	return nil
}

// PublishMetadata upserts every record value on path in one call. Nothing is
// sent if any field is missing from the catalog.
func (p *Publisher) PublishMetadata(ctx context.Context, path string, rec metadata.Record) error {
	if len(rec) == 0 {
		slog.Debug("No metadata to publish", "path", path)
		return nil
	}

	values := make(map[string]string, len(rec))
	var missing []string
	for name, value := range rec {
		id, ok := p.catalog.Resolve(name)
		if !ok {
			missing = append(missing, name)
			continue
		}
		values[id] = value
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &Error{
			Op:   "metadata",
			Path: path,
			Err:  fmt.Errorf("%w: %s", ErrUnresolvedField, strings.Join(missing, ", ")),
		}
	}

	slog.Debug("Sending metadata to DAM", "path", path, "metadata", map[string]string(rec))
	if err := p.sink.UpdateFileMetadata(ctx, path, values); err != nil {
		return &Error{Op: "metadata", Path: path, Err: err}
	}
	return nil
}

// fitPreview scales img down to the configured bound. Anything it cannot
// decode or re-encode is returned unchanged.
func (p *Publisher) fitPreview(path string, img []byte) []byte {
	if p.maxPreviewDim <= 0 {
		return img
	}

	src, format, err := image.Decode(bytes.NewReader(img))
	if err != nil {
		slog.Warn("Preview not decodable, uploading as-is", "path", path, "err", err)
		return img
	}
	b := src.Bounds()
	if b.Dx() <= p.maxPreviewDim && b.Dy() <= p.maxPreviewDim {
		return img
	}

	fitted := imaging.Fit(src, p.maxPreviewDim, p.maxPreviewDim, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, fitted, imaging.PNG); err != nil {
		slog.Warn("Preview re-encode failed, uploading as-is", "path", path, "err", err)
		return img
	}
	slog.Debug("Preview scaled",
		"path", path,
		"format", format,
		"from", fmt.Sprintf("%dx%d", b.Dx(), b.Dy()),
		"to", fmt.Sprintf("%dx%d", fitted.Bounds().Dx(), fitted.Bounds().Dy()),
	)
	return buf.Bytes()
}
