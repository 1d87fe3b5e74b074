package model

import (
	"crypto/sha256"
	"encoding/hex"
	"mime"
	"net/http"
	"strings"
	"time"
)

// FetchedPage is the raw result of fetching one URL.
// It is produced by the fetcher and consumed by the signal extractor;
// it is never persisted as-is.
type FetchedPage struct {
	// URL is the URL that was requested.
	URL string `json:"url"`

	// FinalURL is the URL after following redirects.
	FinalURL string `json:"final_url"`

	// StatusCode is the HTTP response status code.
	StatusCode int `json:"status_code"`

	// Headers contains the HTTP response headers in canonical form.
	Headers map[string][]string `json:"headers"`

	// ContentType is the raw Content-Type header value, including any charset parameter.
	ContentType string `json:"content_type"`

	// Body is the response body, capped by the fetcher's size limit.
	Body []byte `json:"-"`

	// Truncated is true when the body hit the size limit.
	Truncated bool `json:"truncated"`

	// Hash is the SHA-256 of Body. Used to tell whether a page changed between audits.
	Hash string `json:"hash"`

	// FetchedAt is when the response was received.
	FetchedAt time.Time `json:"fetched_at"`

	// ResponseTime is how long the request took, including reading the body.
	ResponseTime time.Duration `json:"response_time"`
}

// MaxPageSize is the default cap on a fetched body.
const MaxPageSize = 5 * 1024 * 1024 // 5 MB

// ComputeHash calculates and sets the SHA-256 hash of the body.
func (p *FetchedPage) ComputeHash() {
	if len(p.Body) == 0 {
		p.Hash = ""
		return
	}

	hash := sha256.Sum256(p.Body)
	p.Hash = hex.EncodeToString(hash[:])
}

// GetHeader returns the first value of the named header, or "".
// The name is case-insensitive.
func (p *FetchedPage) GetHeader(name string) string {
	return http.Header(p.Headers).Get(name)
}

// MediaType returns the lower-cased media type without parameters.
func (p *FetchedPage) MediaType() string {
	if p.ContentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(p.ContentType)
	if err != nil {
		// Fall back to everything before the first ';'.
		mediaType, _, _ = strings.Cut(p.ContentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

// IsHTML reports whether the content type indicates HTML.
// An empty content type is treated as HTML because many servers omit it.
func (p *FetchedPage) IsHTML() bool {
	switch p.MediaType() {
	case "", "text/html", "application/xhtml+xml":
		return true
	default:
		return false
	}
}

// EffectiveURL returns FinalURL when known, otherwise URL.
func (p *FetchedPage) EffectiveURL() string {
	if p.FinalURL != "" {
		return p.FinalURL
	}
	return p.URL
}
