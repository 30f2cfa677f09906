// ===========================================
// Package models - Domain Models
// ===========================================
// Models are the data shapes shared between layers.
// They carry no business logic beyond simple state checks.
// ===========================================

package models

import (
	"time"

	"github.com/google/uuid"
)

// ===========================================
// Core Domain Models
// ===========================================

// Link represents a shortened URL.
// ShortID is the only externally addressable identifier and is
// immutable once created. The redirect path never mutates a Link.
type Link struct {
	ID          int64      `json:"id"`
	ShortID     string     `json:"short_id"`
	OriginalURL string     `json:"original_url"`
	OwnerID     uuid.UUID  `json:"owner_id"`
	CreatedAt   time.Time  `json:"created_at"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
}

// IsExpired checks if the link has passed its expiration time.
// Returns false if no expiration is set.
func (l *Link) IsExpired() bool {
	return HasExpired(l.ExpiresAt)
}

// HasExpired reports whether the given expiration timestamp has
// passed. Comparison is at minute granularity in UTC on both sides,
// and equality counts as expired: a link expiring "now" is gone.
func HasExpired(expiresAt *time.Time) bool {
	if expiresAt == nil {
		return false
	}
	now := time.Now().UTC().Truncate(time.Minute)
	exp := expiresAt.UTC().Truncate(time.Minute)
	return !exp.After(now)
}

// Geolocation is a dimension record keyed by raw IP address.
// At most one row exists per distinct IP; rows are immutable after
// insert. Fingerprint is only retained when the upstream lookup
// reported confidence >= 0.5.
type Geolocation struct {
	IPAddress   string    `json:"ip_address"`
	Country     string    `json:"country"`
	State       string    `json:"state,omitempty"`
	City        string    `json:"city,omitempty"`
	Fingerprint string    `json:"fingerprint,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Device is a dimension record keyed by the raw user-agent string.
// At most one row exists per distinct UA; rows are immutable after
// insert. Type holds the device class (mobile, tablet) or the
// browser name when no device class was detected.
type Device struct {
	UserAgent   string    `json:"user_agent"`
	Type        string    `json:"type"`
	Vendor      string    `json:"vendor,omitempty"`
	Model       string    `json:"model,omitempty"`
	Version     string    `json:"version,omitempty"`
	Interface   string    `json:"interface,omitempty"`
	IsAutomated bool      `json:"is_automated"`
	CreatedAt   time.Time `json:"created_at"`
}

// AnalyticsEvent is the append-only fact row written once per
// redirect traversal. SourceAddress and UserAgent reference the
// dimension tables by natural key, not by owning foreign key.
type AnalyticsEvent struct {
	ID            int64     `json:"id"`
	LinkID        int64     `json:"link_id"`
	CreatedAt     time.Time `json:"created_at"`
	SourceAddress string    `json:"source_address"`
	UserAgent     string    `json:"user_agent"`
	Referer       string    `json:"referer,omitempty"`
	UTMSource     string    `json:"utm_source,omitempty"`
	UTMMedium     string    `json:"utm_medium,omitempty"`
	UTMCampaign   string    `json:"utm_campaign,omitempty"`
	UTMTerm       string    `json:"utm_term,omitempty"`
	UTMContent    string    `json:"utm_content,omitempty"`
}

// ===========================================
// Request DTOs
// ===========================================

// CreateLinkRequest is the DTO for shortening a URL.
type CreateLinkRequest struct {
	URL string `json:"url" binding:"required"`

	// RFC 3339 expiration timestamp (optional).
	// Must be at least the configured lead time in the future.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// UpdateLinkRequest is the DTO for editing a link. Both fields are
// optional; the short id itself can never be changed.
type UpdateLinkRequest struct {
	URL       *string    `json:"url,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	// ClearExpiry removes the expiration instead of updating it.
	ClearExpiry bool `json:"clear_expiry,omitempty"`
}

// RegisterRequest carries the captcha-gated registration payload.
// Credential handling itself belongs to the auth provider.
type RegisterRequest struct {
	Email        string `json:"email" binding:"required,email"`
	Password     string `json:"password" binding:"required,min=8"`
	CaptchaToken string `json:"captcha_token" binding:"required"`
}

// ===========================================
// Response DTOs
// ===========================================

// CreateLinkResponse is returned after successfully shortening a URL.
type CreateLinkResponse struct {
	ShortID   string     `json:"short_id"`
	ShortURL  string     `json:"short_url"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// LinkPage is one page of a user's links.
type LinkPage struct {
	Links []Link `json:"links"`
	Total int64  `json:"total"`
	Page  int    `json:"page"`
}

// AnalyticsEventRow is one event joined with its dimension data as
// exposed to dashboard consumers. The source IP is masked.
type AnalyticsEventRow struct {
	CreatedAt   time.Time   `json:"created_at"`
	Referer     string      `json:"referer,omitempty"`
	Geolocation Geolocation `json:"geolocation"`
	Device      Device      `json:"device"`
}

// AnalyticsSummary aggregates a link's recorded events.
type AnalyticsSummary struct {
	ShortID           string              `json:"short_id"`
	OriginalURL       string              `json:"original_url"`
	TotalVisitors     int64               `json:"total_visitors"`
	UniqueVisitors    int64               `json:"unique_visitors"`
	AutomatedVisitors int64               `json:"automated_visitors"`
	Rows              []AnalyticsEventRow `json:"rows"`
}

// SeriesPoint is one bucket of the visit time series.
type SeriesPoint struct {
	Bucket string `json:"bucket"` // "2025-06-01", "2025-06" or "2025"
	Count  int64  `json:"count"`
}

// ===========================================
// Error Response
// ===========================================

// ErrorResponse provides a consistent error format across endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// Machine-readable error codes carried in ErrorResponse.Code.
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeRateLimited   = "RATE_LIMITED"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeConflict      = "CONFLICT"
	ErrCodeUnreachable   = "URL_UNREACHABLE"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// ===========================================
// Health Check Response
// ===========================================

// HealthResponse is returned by the /health endpoint.
type HealthResponse struct {
	Status   string            `json:"status"`
	Version  string            `json:"version"`
	Services map[string]string `json:"services"`
}
