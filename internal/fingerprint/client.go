package fingerprint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

// Static errors for fingerprint client operations.
var (
	// ErrEndpointRequired is returned when the service endpoint is not provided.
	ErrEndpointRequired = errors.New("fingerprint: endpoint is required")
	// ErrAPIKeyNotSet is returned when no API key is configured.
	ErrAPIKeyNotSet = errors.New("fingerprint: API key is not set")
	// ErrNoRemoteIDReturned is returned when the submit response contains no ID.
	ErrNoRemoteIDReturned = errors.New("fingerprint: submit failed: no fingerprint ID returned")
	// ErrServerError is returned when the server returns a 5xx status code.
	ErrServerError = errors.New("fingerprint: server error")
	// ErrRateLimited is returned when the server returns a 429 status code.
	ErrRateLimited = errors.New("fingerprint: rate limited")
	// ErrRequestFailed is returned when the request fails with a non-2xx status code.
	ErrRequestFailed = errors.New("fingerprint: request failed")
)

// Client defines the interface for the external fingerprint service.
type Client interface {
	// Submit uploads a segment file for fingerprinting and returns the
	// service-assigned fingerprint ID.
	Submit(ctx context.Context, filePath string) (remoteID string, err error)
}

// HTTPClient is the HTTP implementation of the fingerprint Client interface.
type HTTPClient struct {
	apiKey      string
	endpoint    string
	httpClient  *http.Client
	maxRetries  int
	baseBackoff time.Duration
}

// ClientOption is a function that configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithAPIKey sets the API key for authentication.
func WithAPIKey(key string) ClientOption {
	return func(hc *HTTPClient) {
		hc.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) {
		hc.httpClient = c
	}
}

// WithMaxRetries sets the maximum number of retries for transient failures.
func WithMaxRetries(n int) ClientOption {
	return func(hc *HTTPClient) {
		hc.maxRetries = n
	}
}

// WithBaseBackoff sets the initial backoff duration for retries.
func WithBaseBackoff(d time.Duration) ClientOption {
	return func(hc *HTTPClient) {
		hc.baseBackoff = d
	}
}

// NewClient creates a new fingerprint HTTP client for the given service
// endpoint. The API key can be set via the WithAPIKey option; if not
// provided, it is read from the FINGERPRINT_API_KEY environment variable.
func NewClient(endpoint string, opts ...ClientOption) (*HTTPClient, error) {
	if endpoint == "" {
		return nil, ErrEndpointRequired
	}

	c := &HTTPClient{
		endpoint:    endpoint,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		maxRetries:  3,
		baseBackoff: 1 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.apiKey == "" {
		c.apiKey = os.Getenv("FINGERPRINT_API_KEY")
	}

	if c.apiKey == "" {
		return nil, ErrAPIKeyNotSet
	}

	return c, nil
}

// submitResponse is the service's response to a fingerprint submission.
type submitResponse struct {
	ID string `json:"id"`
}

// Submit uploads a segment file for fingerprinting and returns the
// service-assigned fingerprint ID. Transient failures (429, 5xx) are retried
// with exponential backoff.
func (c *HTTPClient) Submit(ctx context.Context, filePath string) (string, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.baseBackoff * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("fingerprint: submit cancelled: %w", ctx.Err())
			case <-time.After(backoff):
			}
		}

		remoteID, retryable, err := c.submitOnce(ctx, filePath)
		if err == nil {
			return remoteID, nil
		}
		lastErr = err
		if !retryable {
			return "", err
		}
	}

	return "", fmt.Errorf("fingerprint: submit failed after %d retries: %w", c.maxRetries, lastErr)
}

// submitOnce performs a single submission attempt. The file is re-opened per
// attempt because the request body cannot be replayed.
func (c *HTTPClient) submitOnce(ctx context.Context, filePath string) (remoteID string, retryable bool, err error) {
	f, err := os.Open(filePath) // #nosec G304 - path is produced by the extractor, not user input
	if err != nil {
		return "", false, fmt.Errorf("fingerprint: open segment file: %w", err)
	}
	defer func() { _ = f.Close() }()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("audio", filepath.Base(filePath))
		if err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, f); err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		_ = pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/fingerprints", pr)
	if err != nil {
		return "", false, fmt.Errorf("fingerprint: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", true, fmt.Errorf("fingerprint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", true, ErrRateLimited
	case resp.StatusCode >= 500:
		return "", true, fmt.Errorf("%w: status %d", ErrServerError, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", false, fmt.Errorf("%w: status %d: %s", ErrRequestFailed, resp.StatusCode, body)
	}

	var sr submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", false, fmt.Errorf("fingerprint: decode response: %w", err)
	}
	if sr.ID == "" {
		return "", false, ErrNoRemoteIDReturned
	}

	return sr.ID, false, nil
}

// Compile-time check that HTTPClient implements Client.
var _ Client = (*HTTPClient)(nil)
