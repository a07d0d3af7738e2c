package dam

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
)

// Field is a custom metadata field definition (file attribute template)
type Field struct {
	UUID string `json:"uuid"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type fieldList struct {
	Results []Field `json:"results"`
}

type createFieldRequest struct {
	Name            string   `json:"name"`
	Type            string   `json:"type"`
	AvailableValues []string `json:"available_values"`
}

type attributeValue struct {
	UUID  string `json:"uuid"`
	Value string `json:"value"`
}

type updateAttributesRequest struct {
	Propagatable     bool             `json:"propagatable"`
	CustomAttributes []attributeValue `json:"custom_attributes"`
}

// ListMetadataFields returns every custom field defined in the DAM
func (c *Client) ListMetadataFields(ctx context.Context) ([]Field, error) {
	req, err := c.newRequest(ctx, http.MethodGet, c.baseURL+templatesPath, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.do(req, "list fields")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var list fieldList
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("failed to decode field list: %w", err)
	}
	return list.Results, nil
}

// CreateMetadataField defines a new custom field and returns it
func (c *Client) CreateMetadataField(ctx context.Context, name, fieldType string) (*Field, error) {
	payload, err := json.Marshal(createFieldRequest{
		Name:            name,
		Type:            fieldType,
		AvailableValues: []string{},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.baseURL+templatesPath, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req, "create field")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var field Field
	if err := json.NewDecoder(resp.Body).Decode(&field); err != nil {
		return nil, fmt.Errorf("failed to decode created field: %w", err)
	}
	if field.UUID == "" {
		return nil, fmt.Errorf("no uuid in create field response for %q", name)
	}
	return &field, nil
}

// UpdateFileMetadata upserts custom field values (keyed by field uuid) on a
// single file. Values are not propagated to other files of the same asset.
func (c *Client) UpdateFileMetadata(ctx context.Context, depotPath string, values map[string]string) error {
	attrs := make([]attributeValue, 0, len(values))
	for id, v := range values {
		attrs = append(attrs, attributeValue{UUID: id, Value: v})
	}
	sort.Slice(attrs, func(i, j int) bool { return attrs[i].UUID < attrs[j].UUID })

	payload, err := json.Marshal(updateAttributesRequest{
		Propagatable:     false,
		CustomAttributes: attrs,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPut, c.fileURL(attributesPath, depotPath), bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req, "update metadata")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}
