package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nao1215/pageaudit/internal/model"
)

// Default settings used when no option overrides them.
const (
	DefaultTimeout      = 30 * time.Second
	DefaultUserAgent    = "Mozilla/5.0 (compatible; pageaudit/1.0; +https://github.com/nao1215/pageaudit)"
	DefaultMaxRedirects = 10
)

// Fetcher retrieves page content for a URL.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (*model.FetchedPage, error)
}

// HTTPFetcher fetches pages over HTTP(S).
// It performs exactly one request per call and never retries.
type HTTPFetcher struct {
	// client performs the requests. Its Timeout bounds each fetch.
	client *http.Client

	// userAgent is sent with every request.
	userAgent string

	// headers are extra request headers, e.g. a cookie for a staging site.
	headers map[string]string

	// maxBodySize limits the number of body bytes read.
	maxBodySize int64

	// logger for structured logging.
	logger *slog.Logger
}

// Option configures an HTTPFetcher.
type Option func(*HTTPFetcher)

// WithClient replaces the HTTP client.
func WithClient(client *http.Client) Option {
	return func(f *HTTPFetcher) {
		if client != nil {
			f.client = client
		}
	}
}

// WithTimeout sets the per-fetch timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *HTTPFetcher) {
		if d > 0 {
			f.client.Timeout = d
		}
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *HTTPFetcher) {
		if ua != "" {
			f.userAgent = ua
		}
	}
}

// WithHeaders sets additional request headers.
func WithHeaders(headers map[string]string) Option {
	return func(f *HTTPFetcher) {
		f.headers = headers
	}
}

// WithMaxBodySize sets the maximum number of body bytes read.
func WithMaxBodySize(size int64) Option {
	return func(f *HTTPFetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *HTTPFetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// New creates an HTTPFetcher.
func New(opts ...Option) *HTTPFetcher {
	f := &HTTPFetcher{
		client: &http.Client{
			Timeout:       DefaultTimeout,
			CheckRedirect: limitRedirects(DefaultMaxRedirects),
		},
		userAgent:   DefaultUserAgent,
		maxBodySize: model.MaxPageSize,
		logger:      slog.Default(),
	}

	for _, opt := range opts {
		opt(f)
	}

	return f
}

func limitRedirects(n int) func(*http.Request, []*http.Request) error {
	return func(_ *http.Request, via []*http.Request) error {
		if len(via) >= n {
			return fmt.Errorf("stopped after %d redirects", n)
		}
		return nil
	}
}

// Fetch retrieves pageURL. Any failure is returned as a *FetchError.
func (f *HTTPFetcher) Fetch(ctx context.Context, pageURL string) (*model.FetchedPage, error) {
	u, err := url.Parse(pageURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &FetchError{URL: pageURL, Reason: ReasonInvalidURL, Err: ErrInvalidURL}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &FetchError{URL: pageURL, Reason: ReasonInvalidURL, Err: err}
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Debug("fetch failed", "url", pageURL, "error", err)
		return nil, &FetchError{URL: pageURL, Reason: classifyTransportError(err), Err: err}
	}
	defer resp.Body.Close()

	if isBlocked(resp) {
		return nil, &FetchError{URL: pageURL, Reason: ReasonBlocked, StatusCode: resp.StatusCode}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: pageURL, Reason: ReasonStatus, StatusCode: resp.StatusCode}
	}

	// Read one extra byte to detect truncation.
	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize+1))
	if err != nil {
		return nil, &FetchError{URL: pageURL, Reason: classifyTransportError(err), Err: err}
	}
	truncated := int64(len(body)) > f.maxBodySize
	if truncated {
		body = body[:f.maxBodySize]
	}

	page := &model.FetchedPage{
		URL:          pageURL,
		FinalURL:     resp.Request.URL.String(),
		StatusCode:   resp.StatusCode,
		Headers:      resp.Header,
		ContentType:  resp.Header.Get("Content-Type"),
		Body:         body,
		Truncated:    truncated,
		FetchedAt:    time.Now(),
		ResponseTime: time.Since(start),
	}
	page.ComputeHash()

	f.logger.Debug("fetched page",
		"url", pageURL,
		"status", resp.StatusCode,
		"bytes", len(body),
		"elapsed", page.ResponseTime,
	)

	return page, nil
}

// isBlocked reports whether the response is an anti-automation refusal.
func isBlocked(resp *http.Response) bool {
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return true
	}
	return resp.Header.Get("Cf-Mitigated") == "challenge"
}

// classifyTransportError maps a client error to a Reason.
func classifyTransportError(err error) Reason {
	if errors.Is(err, context.DeadlineExceeded) {
		return ReasonTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ReasonTimeout
	}
	return ReasonNetwork
}

// NormalizeURL prepares user input for fetching: it trims whitespace, adds
// https:// when no scheme is given, lower-cases scheme and host, drops the
// fragment and turns an empty path into "/".
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidURL)
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	if u.Path == "" {
		u.Path = "/"
	}

	return u.String(), nil
}
