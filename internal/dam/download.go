package dam

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// DownloadFile streams the file at depotPath into w
func (c *Client) DownloadFile(ctx context.Context, depotPath string, w io.Writer) error {
	req, err := c.newRequest(ctx, http.MethodGet, c.fileURL(downloadPath, depotPath), nil)
	if err != nil {
		return err
	}

	resp, err := c.do(req, "download")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("failed to read file body: %w", err)
	}
	return nil
}
