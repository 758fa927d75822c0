// Package media uploads incident photos to an object storage service and
// hands back stable public URLs.
package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Client implements submit.MediaStore against a bucket-per-path object
// store: objects are written to POST {base}/object/{bucket}/{name} and read
// back from {base}/object/public/{bucket}/{name}.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	bucket     string
	logger     *slog.Logger
}

// NewClient creates an object storage client for the given bucket.
func NewClient(baseURL, bucket, token string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		bucket:  bucket,
		logger:  logger,
	}
}

// Upload stores the photo bytes under a fresh uuid name and returns the
// object's public URL.
func (c *Client) Upload(ctx context.Context, data []byte) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("upload: empty payload")
	}

	contentType := http.DetectContentType(data)
	name := uuid.NewString() + extensionFor(contentType)

	target := fmt.Sprintf("%s/object/%s/%s", c.baseURL, c.bucket, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("upload request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("storage API error: status %d: %s", resp.StatusCode, body)
	}

	publicURL := fmt.Sprintf("%s/object/public/%s/%s", c.baseURL, c.bucket, name)
	c.logger.Debug("photo uploaded", "bytes", len(data), "content_type", contentType, "url", publicURL)
	return publicURL, nil
}

// extensionFor maps the sniffed content type to a file extension, defaulting
// to .bin for anything unrecognized.
func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ".bin"
	}
}
