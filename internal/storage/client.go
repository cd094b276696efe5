// Package storage uploads result tables to Supabase Storage
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const maxErrorBody = 4096

// HTTPClient is the subset of *http.Client the storage client needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// UploadError is returned when the storage API answers with a non-success status.
type UploadError struct {
	StatusCode int
	Body       string
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload failed with status %d: %s", e.StatusCode, e.Body)
}

// Client talks to the Supabase Storage object API with a service role key.
type Client struct {
	baseURL    string
	serviceKey string
	httpClient HTTPClient
}

// New creates a new Storage client
func New(supabaseURL, serviceKey string) *Client {
	return NewWithHTTPClient(supabaseURL, serviceKey, &http.Client{Timeout: 30 * time.Second})
}

// NewWithHTTPClient creates a Storage client that sends requests through httpClient.
func NewWithHTTPClient(supabaseURL, serviceKey string, httpClient HTTPClient) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(supabaseURL, "/") + "/storage/v1",
		serviceKey: serviceKey,
		httpClient: httpClient,
	}
}

// Upload writes data to bucket/path, replacing any existing object, and returns
// "bucket/path".
func (c *Client) Upload(ctx context.Context, bucket, path string, data []byte, contentType string) (string, error) {
	endpoint := fmt.Sprintf("%s/object/%s/%s", c.baseURL, bucket, path)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", &UploadError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	return bucket + "/" + path, nil
}

// GetPublicURL returns where the object is served from when the bucket is public.
func (c *Client) GetPublicURL(bucket, path string) string {
	return fmt.Sprintf("%s/object/public/%s/%s", c.baseURL, bucket, path)
}
