// ===========================================
// Package validate - Input Validation & Sanitization
// ===========================================
// Gates everything user-controlled before it is persisted or used
// in egress requests: URL shape, destination liveness, free text.
// ===========================================

package validate

import (
	"context"
	"html"
	"net/http"
	"regexp"
	"time"

	"github.com/microcosm-cc/bluemonday"
)

// validURL accepts an optional http/https scheme, a host of at least
// one dot-separated label pair, an optional port and an optional
// path/query. Scheme-less input like "example.com/x" passes; the
// caller decides whether to default the scheme.
var validURL = regexp.MustCompile(`^((https?)://)?([a-zA-Z0-9-]+\.)+[a-zA-Z]{2,6}(:\d+)?(/[a-zA-Z0-9\-._~:/?#\[\]@!$&'()*+,;%=]*)*(\?[a-zA-Z0-9\-._~:/?#\[\]@!$&'()*+,;%=]*)?$`)

// sanitizer strips all HTML; nothing user-controlled is ever allowed
// to carry markup into storage or back out in responses.
var sanitizer = bluemonday.StrictPolicy()

// IsValidURL reports whether the string looks like a shortenable URL.
func IsValidURL(raw string) bool {
	return validURL.MatchString(raw)
}

// Sanitize strips active HTML/script content from user input. The
// policy entity-escapes the text it keeps, which would corrupt URLs
// carrying multi-parameter query strings ("&" becomes "&amp;"), so
// entities are decoded back after stripping. Markup-free input
// round-trips unchanged.
func Sanitize(text string) string {
	return html.UnescapeString(sanitizer.Sanitize(text))
}

// ===========================================
// Liveness Checker
// ===========================================

const (
	livenessTimeout = 3 * time.Second
	livenessRetries = 1
)

// LivenessChecker probes candidate destination URLs before they are
// accepted. Used only at creation/update time, never on the hot
// redirect path.
type LivenessChecker struct {
	http *http.Client
}

// NewLivenessChecker creates a checker with the standard timeout.
func NewLivenessChecker() *LivenessChecker {
	return &LivenessChecker{
		// CheckRedirect stops following so a redirect response
		// itself counts as live.
		http: &http.Client{
			Timeout: livenessTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// IsURLActive reports whether the destination responds. A 2xx or 3xx
// status counts as live; a network failure is retried once before
// the URL is declared dead.
func (lc *LivenessChecker) IsURLActive(ctx context.Context, rawURL string) bool {
	for attempt := 0; attempt <= livenessRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return false
		}

		resp, err := lc.http.Do(req)
		if err != nil {
			continue
		}
		resp.Body.Close()

		return resp.StatusCode >= 200 && resp.StatusCode < 400
	}

	return false
}
