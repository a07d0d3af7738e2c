// Package catalog maps human-readable metadata field names to the DAM field
// identifiers they are stored under.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/tendant/clip-bridge/internal/dam"
)

// FieldTypeText is the type given to fields the catalog creates
const FieldTypeText = "text"

// FieldStore lists and creates field definitions in the DAM
type FieldStore interface {
	ListMetadataFields(ctx context.Context) ([]dam.Field, error)
	CreateMetadataField(ctx context.Context, name, fieldType string) (*dam.Field, error)
}

// BuildError is returned when the catalog could not be completed
type BuildError struct {
	Field string // empty when listing failed
	Err   error
}

func (e *BuildError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("build field catalog: list fields: %v", e.Err)
	}
	return fmt.Sprintf("build field catalog: create field %q: %v", e.Field, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// Catalog is an immutable name to field id mapping. It is safe for
// concurrent use once built.
type Catalog struct {
	ids map[string]string
}

// Build resolves every name against the DAM, creating text fields for names
// that do not exist yet. It either returns a complete catalog or an error.
func Build(ctx context.Context, store FieldStore, names []string) (*Catalog, error) {
	existing, err := store.ListMetadataFields(ctx)
	if err != nil {
		return nil, &BuildError{Err: err}
	}

	byName := make(map[string]string, len(existing))
	for _, f := range existing {
		if _, dup := byName[f.Name]; !dup {
			byName[f.Name] = f.UUID
		}
	}

	wanted := append([]string(nil), names...)
	sort.Strings(wanted)

	ids := make(map[string]string, len(wanted))
	for _, name := range wanted {
		if id, ok := byName[name]; ok {
			ids[name] = id
			continue
		}
		field, err := store.CreateMetadataField(ctx, name, FieldTypeText)
		if err != nil {
			return nil, &BuildError{Field: name, Err: err}
		}
		slog.Info("Created metadata field", "name", name, "uuid", field.UUID)
		ids[name] = field.UUID
	}

	return &Catalog{ids: ids}, nil
}

// New builds a catalog from a known mapping. The map is copied.
func New(ids map[string]string) *Catalog {
	c := &Catalog{ids: make(map[string]string, len(ids))}
	for k, v := range ids {
		c.ids[k] = v
	}
	return c
}

// Resolve returns the field id for name
func (c *Catalog) Resolve(name string) (string, bool) {
	id, ok := c.ids[name]
	return id, ok
}

// Names returns the catalogued field names in sorted order
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.ids))
	for n := range c.ids {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of catalogued fields
func (c *Catalog) Len() int {
	return len(c.ids)
}
