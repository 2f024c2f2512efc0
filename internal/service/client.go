// Package service is the HTTP client for the remote embed/extract/compare
// service. Requests are multipart uploads; responses are JSON.
package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rbright/voxseal/internal/upload"
	"github.com/rbright/voxseal/internal/version"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "http://localhost:5000"

	PathEmbed   = "/embed"
	PathExtract = "/extract"
	PathCompare = "/compare_audio"

	// DefaultRatePerMinute matches the service's own per-client limit.
	DefaultRatePerMinute = 100

	RequestIDHeader = "X-Request-ID"
)

// Client talks to one service base URL. It never retries.
type Client struct {
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout bounds each request. Zero leaves requests unbounded.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			clone := *c.http
			clone.Timeout = timeout
			c.http = &clone
		}
	}
}

// WithRatePerMinute paces outgoing requests. Zero disables pacing.
func WithRatePerMinute(n int) Option {
	return func(c *Client) {
		if n <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), 1)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func New(baseURL string, opts ...Option) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{},
		logger:  slog.New(slog.DiscardHandler),
	}
	WithRatePerMinute(DefaultRatePerMinute)(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

// Endpoint is the absolute URL for path.
func (c *Client) Endpoint(path string) string { return c.baseURL + path }

// Embed hides audio inside image.
func (c *Client) Embed(ctx context.Context, image upload.File, audio upload.File) (EmbedResult, error) {
	body, err := c.post(ctx, PathEmbed, formFile{"image", image}, formFile{"audio", audio})
	if err != nil {
		return EmbedResult{}, err
	}
	return decodeEmbed(c.Endpoint(PathEmbed), body)
}

// Extract recovers the audio hidden in image.
func (c *Client) Extract(ctx context.Context, image upload.File) (ExtractResult, error) {
	body, err := c.post(ctx, PathExtract, formFile{"image", image})
	if err != nil {
		return ExtractResult{}, err
	}
	return decodeExtract(c.Endpoint(PathExtract), body)
}

// Compare scores whether a and b come from the same speaker.
func (c *Client) Compare(ctx context.Context, a upload.File, b upload.File) (CompareResult, error) {
	body, err := c.post(ctx, PathCompare, formFile{"audio1", a}, formFile{"audio2", b})
	if err != nil {
		return CompareResult{}, err
	}
	return decodeCompare(c.Endpoint(PathCompare), body)
}

// Ping reports whether anything answers HTTP at the base URL. Any status
// counts as reachable.
func (c *Client) Ping(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(ctx, req)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, &ConnectivityError{Endpoint: c.baseURL, Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

type formFile struct {
	field string
	file  upload.File
}

func (c *Client) post(ctx context.Context, path string, files ...formFile) ([]byte, error) {
	endpoint := c.Endpoint(path)

	payload, contentType, err := encodeMultipart(files)
	if err != nil {
		return nil, err
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
			}
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(ctx, req)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
		}
		return nil, &ConnectivityError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
		}
		return nil, &ConnectivityError{Endpoint: endpoint, Err: fmt.Errorf("read response body: %w", err)}
	}

	c.logger.Debug("service response",
		"endpoint", endpoint,
		"status", resp.StatusCode,
		"request_id", req.Header.Get(RequestIDHeader),
		"bytes", len(body),
		"duration_ms", time.Since(started).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		failure := decodeFailure(resp.StatusCode, body)
		failure.RequestID = req.Header.Get(RequestIDHeader)
		return nil, failure
	}
	return body, nil
}

func (c *Client) setHeaders(ctx context.Context, req *http.Request) {
	id := RequestID(ctx)
	if id == "" {
		id = uuid.NewString()
	}
	req.Header.Set(RequestIDHeader, id)
	req.Header.Set("User-Agent", version.UserAgent())
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// encodeMultipart buffers the form so the request carries a Content-Length.
// Each part keeps the file's own name and declared type.
func encodeMultipart(files []formFile) ([]byte, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for _, f := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
			quoteEscaper.Replace(f.field), quoteEscaper.Replace(f.file.Name())))
		contentType := f.file.MIMEType()
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		header.Set("Content-Type", contentType)

		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf("create form part %s: %w", f.field, err)
		}
		if _, err := io.Copy(part, f.file.Reader()); err != nil {
			return nil, "", fmt.Errorf("write form part %s: %w", f.field, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart writer: %w", err)
	}
	return buf.Bytes(), writer.FormDataContentType(), nil
}

type requestIDKey struct{}

// WithRequestID tags ctx so the outgoing request reuses id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
