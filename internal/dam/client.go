package dam

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// API paths relative to the DAM base URL
const (
	downloadPath   = "/api/p4/files/download"
	previewPath    = "/api/p4/files/preview"
	attributesPath = "/api/p4/files/custom_attributes"
	templatesPath  = "/api/company/file_attribute_templates"
)

// Client talks to the Helix DAM REST API
type Client struct {
	baseURL    string
	accountKey string
	httpClient *http.Client
}

// NewClient creates a DAM client. A zero timeout means requests never time out.
func NewClient(baseURL, accountKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		accountKey: accountKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// StatusError is returned when the DAM answers with a non-success status
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s failed with status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s failed with status %d: %s", e.Op, e.StatusCode, e.Body)
}

func (c *Client) fileURL(path, depotPath string) string {
	return fmt.Sprintf("%s%s?depot_path=%s", c.baseURL, path, url.QueryEscape(depotPath))
}

func (c *Client) newRequest(ctx context.Context, method, rawURL string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accountKey)
	return req, nil
}

// do sends req and returns the response when its status is 2xx.
// Any other status is drained into a *StatusError.
func (c *Client) do(req *http.Request, op string) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}
	return resp, nil
}
