// Package geoip is the client for the external IP-geolocation
// service. It is called at most once per distinct unseen IP; lookup
// failures are non-fatal to the redirect path.
package geoip

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// ErrDisabled is returned when no lookup endpoint is configured.
// Visits are still recorded, just without geolocation enrichment.
var ErrDisabled = errors.New("geolocation lookups are disabled")

// FingerprintConfidence is the minimum lookup confidence at which
// the returned fingerprint is worth retaining.
const FingerprintConfidence = 0.5

// Result is the upstream lookup response.
type Result struct {
	Location    Location `json:"location"`
	Fingerprint string   `json:"fingerprint"`
	Confidence  float64  `json:"confidence"`
}

// Location holds the derived geographic origin of an address.
type Location struct {
	OriginCountry string `json:"originCountry"`
	OriginState   string `json:"originState,omitempty"`
	OriginCity    string `json:"originCity,omitempty"`
}

// Client queries the geolocation upstream over HTTP.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient creates a geolocation client. The timeout bounds every
// lookup so a slow upstream can't hold a redirect hostage.
func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
	}
}

// Lookup resolves the geographic origin of an IP address. The
// endpoint must answer GET {endpoint}/{ip} with the Result JSON
// shape; an unset endpoint returns ErrDisabled.
func (c *Client) Lookup(ctx context.Context, ip string) (*Result, error) {
	if c.endpoint == "" {
		return nil, ErrDisabled
	}

	reqURL := c.endpoint + "/" + url.PathEscape(ip)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build geo request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("geo lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("geo lookup returned status %d", resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode geo response: %w", err)
	}

	return &result, nil
}
