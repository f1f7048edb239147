package filevault

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// RequestIDHeader carries a per-request correlation ID.
const RequestIDHeader = "X-Request-ID"

// Client is the FileVault API client.
type Client struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a new FileVault client with the given configuration.
//
// Example:
//
//	client, err := filevault.NewClient(filevault.ClientConfig{
//	    BaseURL: "http://localhost:8000/api",
//	})
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, &ValidationError{Field: "BaseURL", Message: "is required"}
	}

	parsedURL, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, &ValidationError{Field: "BaseURL", Message: "must be a valid URL"}
	}

	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, &ValidationError{Field: "BaseURL", Message: "must use http or https protocol"}
	}

	if parsedURL.Host == "" {
		return nil, &ValidationError{Field: "BaseURL", Message: "must include a host"}
	}

	if cfg.RateLimit < 0 {
		return nil, &ValidationError{Field: "RateLimit", Message: "cannot be negative"}
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Minute
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "filevault-go"
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		fmt.Fprintln(os.Stderr, "[FileVault SDK] WARNING: TLS certificate verification is disabled. This is insecure.")
	}

	var rt http.RoundTripper = transport
	if cfg.WrapTransport != nil {
		rt = cfg.WrapTransport(rt)
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := int(cfg.RateLimit)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  userAgent,
		httpClient: &http.Client{Timeout: timeout, Transport: rt},
		limiter:    limiter,
	}, nil
}

// String returns a string representation of the client.
func (c *Client) String() string {
	return fmt.Sprintf("FileVaultClient(baseURL=%q)", c.baseURL)
}

// BaseURL returns the configured base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// validateFileID validates an opaque file ID before it is placed in a path.
func validateFileID(id string) error {
	if strings.TrimSpace(id) == "" {
		return &ValidationError{Field: "id", Message: "cannot be empty"}
	}
	if len(id) > 128 {
		return &ValidationError{Field: "id", Message: "cannot exceed 128 characters"}
	}
	if strings.ContainsAny(id, "/\\?#") || strings.Contains(id, "..") {
		return &ValidationError{Field: "id", Message: "cannot contain path components"}
	}
	return nil
}

// validateFilename validates an upload filename.
func validateFilename(name string) error {
	if name == "" {
		return &ValidationError{Field: "filename", Message: "cannot be empty"}
	}
	if len(name) > 255 {
		return &ValidationError{Field: "filename", Message: "cannot exceed 255 characters"}
	}
	if strings.Contains(name, "..") || strings.Contains(name, "/") || strings.Contains(name, "\\") {
		return &ValidationError{Field: "filename", Message: "cannot contain path components"}
	}
	return nil
}

// request makes an HTTP request to the API. path may be relative to the
// base URL or an absolute URL (download links).
func (c *Client) request(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	reqURL := path
	if !strings.HasPrefix(path, "http://") && !strings.HasPrefix(path, "https://") {
		reqURL = c.baseURL + path
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, newTransportError(err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set(RequestIDHeader, uuid.New().String())
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, newTransportError(err)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, newTransportError(err)
	}

	return resp, nil
}

// handleResponse checks for errors and decodes JSON response.
func handleResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errResp apiErrorResponse
		// Non-JSON error bodies fall back to the status text
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return newAPIError(resp.StatusCode, errResp)
	}

	if target != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return newDecodeError(err)
		}
	}

	return nil
}

// encodeListOptions renders filters as query parameters.
func encodeListOptions(opts ListOptions) url.Values {
	v := url.Values{}
	if opts.FileType != "" {
		v.Set("file_type", opts.FileType)
	}
	if opts.MinSize != nil {
		v.Set("min_size", fmt.Sprintf("%d", *opts.MinSize))
	}
	if opts.MaxSize != nil {
		v.Set("max_size", fmt.Sprintf("%d", *opts.MaxSize))
	}
	if opts.StartDate != "" {
		v.Set("start_date", opts.StartDate)
	}
	if opts.EndDate != "" {
		v.Set("end_date", opts.EndDate)
	}
	return v
}
