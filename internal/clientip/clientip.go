// Package clientip extracts the best-effort originating address of a
// request from the layered proxy/CDN headers in front of the service.
package clientip

import (
	"net/http"
	"strings"
)

// Loopback is returned for every request in development, where no
// proxy chain exists and the real address is meaningless.
const Loopback = "127.0.0.1"

// headerOrder is the strict priority list of proxy headers. The
// first header with a non-empty value wins; only the first entry of
// a comma-separated X-Forwarded-For chain is the original client.
var headerOrder = []string{
	"X-Client-IP",
	"X-Forwarded-For",
	"CF-Connecting-IP",
	"Fastly-Client-IP",
	"True-Client-IP",
	"X-Real-IP",
	"X-Cluster-Client-IP",
	"AppEngine-User-IP",
	"X-Forwarded",
	"Forwarded-For",
	"CF-Pseudo-IPv4",
}

// Resolver resolves client addresses from request headers.
type Resolver struct {
	development bool
}

// NewResolver creates a resolver. In development mode every request
// resolves to the loopback address.
func NewResolver(development bool) *Resolver {
	return &Resolver{development: development}
}

// Resolve returns the first present, trimmed header value, or an
// empty string when no header carries an address. The value is not
// validated as an IP; validity is the caller's concern.
func (r *Resolver) Resolve(headers http.Header) string {
	if r.development {
		return Loopback
	}

	for _, name := range headerOrder {
		value := headers.Get(name)
		if value == "" {
			continue
		}
		if name == "X-Forwarded-For" {
			value = strings.Split(value, ",")[0]
		}
		return strings.TrimSpace(value)
	}

	return ""
}
