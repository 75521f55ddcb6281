// Package objectstore uploads media blobs to a Supabase Storage bucket and
// builds their public URLs.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	apperrors "github.com/lueurxax/feedpulse/internal/core/errors"
)

const (
	defaultTimeout      = 60 * time.Second
	defaultUploadRPS    = 5
	defaultMaxRetries   = 3
	defaultInitialDelay = 500 * time.Millisecond
	delayMultiplier     = 2

	objectPath       = "/storage/v1/object/"
	publicObjectPath = "/storage/v1/object/public/"

	headerAuthorization = "Authorization"
	headerAPIKey        = "apikey"
	headerContentType   = "Content-Type"
	headerUpsert        = "x-upsert"
	headerCacheControl  = "Cache-Control"
	cacheControlValue   = "max-age=3600"

	errBodyReadLimit = 1024
	errStatusBodyFmt = "%w: status %d, body: %s"
)

// Config configures the storage client.
type Config struct {
	BaseURL    string
	Key        string
	Bucket     string
	Timeout    time.Duration
	UploadRPS  float64
	MaxRetries int
}

// Client talks to the Supabase Storage REST API.
type Client struct {
	baseURL    string
	key        string
	bucket     string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	retryDelay time.Duration
}

func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	rps := cfg.UploadRPS
	if rps <= 0 {
		rps = defaultUploadRPS
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		key:        cfg.Key,
		bucket:     strings.Trim(cfg.Bucket, "/"),
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
		maxRetries: maxRetries,
		retryDelay: defaultInitialDelay,
	}
}

// Enabled reports whether the client has an endpoint and credentials.
func (c *Client) Enabled() bool {
	return c.baseURL != "" && c.key != "" && c.bucket != ""
}

// PublicURL returns the public URL of an object in the bucket.
func (c *Client) PublicURL(path string) string {
	return c.baseURL + publicObjectPath + c.bucket + "/" + escapePath(path)
}

// Upload stores data under path, overwriting any existing object. Transient
// failures are retried with exponential backoff.
func (c *Client) Upload(ctx context.Context, path string, data []byte) error {
	if !c.Enabled() {
		return ErrClientDisabled
	}

	var lastErr error

	delay := c.retryDelay

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("upload retry interrupted: %w", ctx.Err())
			case <-time.After(delay):
				delay *= delayMultiplier
			}
		}

		lastErr = c.upload(ctx, path, data)
		if lastErr == nil {
			return nil
		}

		if !errors.Is(lastErr, ErrServerError) {
			break
		}
	}

	return fmt.Errorf("%w: %s: %w", apperrors.ErrUploadFailed, path, lastErr)
}

func (c *Client) upload(ctx context.Context, path string, data []byte) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("upload rate limiter: %w", err)
	}

	endpoint := c.baseURL + objectPath + c.bucket + "/" + escapePath(path)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("create upload request: %w", err)
	}

	req.Header.Set(headerAuthorization, "Bearer "+c.key)
	req.Header.Set(headerAPIKey, c.key)
	req.Header.Set(headerContentType, http.DetectContentType(data))
	req.Header.Set(headerUpsert, "true")
	req.Header.Set(headerCacheControl, cacheControlValue)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrServerError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		_, _ = io.Copy(io.Discard, resp.Body)

		return nil
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, errBodyReadLimit))

	if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf(errStatusBodyFmt, ErrServerError, resp.StatusCode, string(body))
	}

	return fmt.Errorf(errStatusBodyFmt, ErrRejected, resp.StatusCode, string(body))
}

func escapePath(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}

	return strings.Join(segments, "/")
}
