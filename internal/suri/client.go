package suri

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/andresmejia3/suri/internal/types"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Endpoint paths of the face service.
const (
	DetectPath    = "/detect"
	RegisterPath  = "/face/register"
	RecognizePath = "/face/recognize"
)

// DefaultTimeout bounds every call when Options.Timeout is zero.
const DefaultTimeout = 30 * time.Second

// maxBodySize caps how much of a response we buffer.
const maxBodySize = 16 << 20

var logFields = log.Fields{
	"component": "suri",
}

// HTTPError is returned when the service answers with a non-2xx status.
type HTTPError struct {
	Endpoint   string
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Endpoint, e.StatusCode, bytes.TrimSpace(e.Body))
}

// Options configures a Client.
type Options struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
	// HTTPClient overrides the default client (Timeout is ignored when set).
	HTTPClient *http.Client
}

// Client talks to the face service over JSON/HTTP.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewClient validates the base URL and builds a Client.
func NewClient(opts Options) (*Client, error) {
	u, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid service URL %q: %w", opts.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid service URL %q: scheme must be http or https", opts.BaseURL)
	}

	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}

	ua := opts.UserAgent
	if ua == "" {
		ua = "suri"
	}

	return &Client{
		baseURL:    opts.BaseURL,
		userAgent:  ua,
		httpClient: hc,
	}, nil
}

// BaseURL returns the service root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Detect posts the image to /detect. Any status code is returned to the caller;
// only transport failures are errors. Result is nil when the body is not a detection.
func (c *Client) Detect(ctx context.Context, image string) (*types.Detection, error) {
	resp, err := c.post(ctx, DetectPath, types.DetectRequest{Image: image})
	if err != nil {
		return nil, err
	}

	det := &types.Detection{Response: *resp}
	var result types.DetectResult
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		log.WithFields(logFields).WithError(err).Debug("Detect body is not a detection result")
	} else {
		det.Result = &result
	}
	return det, nil
}

// Register posts an enrollment to /face/register. Non-2xx replies are returned as *HTTPError.
func (c *Client) Register(ctx context.Context, req types.RegisterRequest) (*types.Response, error) {
	return c.postOK(ctx, RegisterPath, req)
}

// Recognize posts a face to /face/recognize. Non-2xx replies are returned as *HTTPError.
func (c *Client) Recognize(ctx context.Context, req types.RecognizeRequest) (*types.Response, error) {
	return c.postOK(ctx, RecognizePath, req)
}

func (c *Client) postOK(ctx context.Context, path string, body any) (*types.Response, error) {
	resp, err := c.post(ctx, path, body)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return resp, &HTTPError{Endpoint: path, StatusCode: resp.StatusCode, Body: resp.Body}
	}
	return resp, nil
}

func (c *Client) post(ctx context.Context, path string, body any) (*types.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s request: %w", path, err)
	}

	endpoint, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return nil, fmt.Errorf("failed to build URL for %s: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	requestID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("X-Request-ID", requestID)

	entry := log.WithFields(logFields).WithFields(log.Fields{
		"url":        endpoint,
		"request_id": requestID,
		"bytes":      len(payload),
	})
	entry.Debug("Sending request")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", path, err)
	}

	entry.WithFields(log.Fields{
		"status":   resp.StatusCode,
		"duration": time.Since(start),
	}).Debug("Received response")

	return &types.Response{
		Endpoint:   path,
		StatusCode: resp.StatusCode,
		Body:       data,
	}, nil
}
