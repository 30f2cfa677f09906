// ===========================================
// Package service - Business Logic Layer
// ===========================================
// Services orchestrate repositories, caches and external clients.
// ResolverService is the redirect-and-analytics-ingestion pipeline:
// every short link visit flows through Resolve exactly once.
// ===========================================

package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/user/shortlink/internal/database"
	"github.com/user/shortlink/internal/geoip"
	"github.com/user/shortlink/internal/models"
	"github.com/user/shortlink/internal/repository"
	"github.com/user/shortlink/internal/useragent"
	"go.uber.org/zap"
)

// Service errors. Handlers map these onto HTTP responses.
var (
	ErrReservedPath    = errors.New("reserved path")
	ErrRateLimited     = errors.New("rate limit exceeded")
	ErrNoClientAddress = errors.New("client address could not be determined")
	ErrLinkNotFound    = errors.New("link not found")
	ErrInvalidURL      = errors.New("invalid URL format")
	ErrURLDead         = errors.New("destination URL is unreachable")
	ErrInvalidExpiry   = errors.New("expiration is too soon or in the past")
)

// Paths that are crawler conventions, never short codes. A request
// for one of these is rejected before any lookup happens.
var reservedPaths = map[string]struct{}{
	"robots.txt":  {},
	"favicon.ico": {},
}

// ===========================================
// Collaborator contracts
// ===========================================
// The resolver depends on interfaces so the pipeline is testable
// with fake stores; the pgx/Redis-backed types satisfy them.

// LinkSource is the point lookup behind a short code.
type LinkSource interface {
	GetByShortID(ctx context.Context, shortID string) (*models.Link, error)
}

// DimensionStore covers the lazily created dimension rows and the
// append-only fact inserts.
type DimensionStore interface {
	GetGeolocation(ctx context.Context, ipAddress string) (*models.Geolocation, error)
	InsertGeolocation(ctx context.Context, geo *models.Geolocation) error
	GetDevice(ctx context.Context, userAgent string) (*models.Device, error)
	InsertDevice(ctx context.Context, device *models.Device) error
	InsertEvent(ctx context.Context, event *models.AnalyticsEvent) error
}

// GeoLookup is the external geolocation service. Failures here are
// the only non-fatal step of the pipeline.
type GeoLookup interface {
	Lookup(ctx context.Context, ip string) (*geoip.Result, error)
}

// RateLimiter gates the public redirect surface.
type RateLimiter interface {
	ShouldLimit(ctx context.Context, value string) (bool, error)
}

// AddressResolver extracts the originating client address.
type AddressResolver interface {
	Resolve(headers http.Header) string
}

// LinkCache is the cache-aside layer in front of link lookups.
// Cache failures are never fatal.
type LinkCache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Classifier turns a raw user-agent string into a classification.
type Classifier func(string) useragent.Classification

// RedirectResult is the outcome of a successful pipeline run.
type RedirectResult struct {
	Location string
	Found    bool // false means the not-found page, by design
}

// ResolverService implements the redirect pipeline.
type ResolverService struct {
	links       LinkSource
	dims        DimensionStore
	geo         GeoLookup
	limiter     RateLimiter
	addr        AddressResolver
	cache       LinkCache
	classify    Classifier
	notFoundURL string
	cacheTTL    time.Duration
	log         *zap.Logger
}

// NewResolverService wires the redirect pipeline.
func NewResolverService(
	links LinkSource,
	dims DimensionStore,
	geo GeoLookup,
	limiter RateLimiter,
	addr AddressResolver,
	cache LinkCache,
	classify Classifier,
	notFoundURL string,
	cacheTTL time.Duration,
	log *zap.Logger,
) *ResolverService {
	return &ResolverService{
		links:       links,
		dims:        dims,
		geo:         geo,
		limiter:     limiter,
		addr:        addr,
		cache:       cache,
		classify:    classify,
		notFoundURL: notFoundURL,
		cacheTTL:    cacheTTL,
		log:         log,
	}
}

// Resolve runs the full pipeline for one short code visit:
// reserved-path check, client address resolution, rate limit, link
// lookup, expiry check, dimension enrichment, UTM extraction, fact
// insert, redirect decision.
//
// A visit whose analytics cannot be recorded does not redirect; the
// only tolerated enrichment failure is the geolocation upstream.
func (s *ResolverService) Resolve(ctx context.Context, shortCode string, headers http.Header) (*RedirectResult, error) {
	// Step 1: reserved names are never link lookups.
	if _, reserved := reservedPaths[shortCode]; reserved {
		return nil, ErrReservedPath
	}

	// Step 2: without an address we can neither rate-limit nor
	// attribute the visit, so the request fails outright.
	address := s.addr.Resolve(headers)
	if address == "" {
		return nil, ErrNoClientAddress
	}

	// Step 3: rate limit before any data access.
	limited, err := s.limiter.ShouldLimit(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("rate limiter failed: %w", err)
	}
	if limited {
		return nil, ErrRateLimited
	}

	// Step 4: resolve the link. A code that never existed and a code
	// that expired produce the same not-found redirect; outside
	// observers can't tell the two apart.
	link, err := s.lookupLink(ctx, shortCode)
	if errors.Is(err, repository.ErrNotFound) {
		return &RedirectResult{Location: s.notFoundURL, Found: false}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("link lookup failed: %w", err)
	}

	// Step 5: expiry check, minute granularity.
	if link.IsExpired() {
		return &RedirectResult{Location: s.notFoundURL, Found: false}, nil
	}

	rawUA := headers.Get("User-Agent")

	// Steps 6-7: lazily create the dimension rows. The inserts are
	// idempotent on the natural key, so concurrent first visits are
	// safe even though lookup-then-insert is not exclusive.
	if err := s.ensureGeolocation(ctx, address); err != nil {
		return nil, err
	}
	if err := s.ensureDevice(ctx, rawUA); err != nil {
		return nil, err
	}

	// Step 8: campaign attribution comes from the destination URL's
	// own query string, i.e. how the link was tagged at creation
	// time, not how the visitor arrived.
	event := &models.AnalyticsEvent{
		LinkID:        link.ID,
		SourceAddress: address,
		UserAgent:     rawUA,
		Referer:       headers.Get("Referer"),
	}
	extractUTM(link.OriginalURL, event)

	// Step 9: the fact row. If this fails the visitor does not reach
	// the destination; analytics completeness wins over availability.
	if err := s.dims.InsertEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("analytics insert failed: %w", err)
	}

	return &RedirectResult{Location: link.OriginalURL, Found: true}, nil
}

// lookupLink is the cache-aside read behind the short code.
func (s *ResolverService) lookupLink(ctx context.Context, shortCode string) (*models.Link, error) {
	if s.cache != nil {
		var cached models.Link
		found, err := s.cache.GetJSON(ctx, database.CacheKey(shortCode), &cached)
		if err != nil {
			s.log.Warn("link cache read failed", zap.Error(err))
		}
		if found {
			return &cached, nil
		}
	}

	link, err := s.links.GetByShortID(ctx, shortCode)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		linkCopy := *link
		go func() {
			cacheCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := s.cache.SetJSON(cacheCtx, database.CacheKey(linkCopy.ShortID), &linkCopy, s.cacheTTL); err != nil {
				s.log.Warn("link cache write failed", zap.Error(err))
			}
		}()
	}

	return link, nil
}

// ensureGeolocation creates the geolocation row for an unseen IP.
// An unreachable upstream skips enrichment; a store failure aborts.
func (s *ResolverService) ensureGeolocation(ctx context.Context, address string) error {
	_, err := s.dims.GetGeolocation(ctx, address)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("geolocation lookup failed: %w", err)
	}

	result, lookupErr := s.geo.Lookup(ctx, address)
	if errors.Is(lookupErr, geoip.ErrDisabled) {
		return nil
	}
	if lookupErr != nil {
		s.log.Warn("geolocation upstream unavailable, skipping enrichment",
			zap.String("ip", address), zap.Error(lookupErr))
		return nil
	}

	geo := &models.Geolocation{
		IPAddress: address,
		Country:   result.Location.OriginCountry,
		State:     result.Location.OriginState,
		City:      result.Location.OriginCity,
	}
	if result.Confidence >= geoip.FingerprintConfidence {
		geo.Fingerprint = result.Fingerprint
	}

	if err := s.dims.InsertGeolocation(ctx, geo); err != nil {
		return fmt.Errorf("geolocation insert failed: %w", err)
	}

	return nil
}

// ensureDevice creates the device row for an unseen user agent.
func (s *ResolverService) ensureDevice(ctx context.Context, rawUA string) error {
	_, err := s.dims.GetDevice(ctx, rawUA)
	if err == nil {
		return nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("device lookup failed: %w", err)
	}

	c := s.classify(rawUA)
	device := &models.Device{
		UserAgent:   rawUA,
		Type:        c.Type,
		Vendor:      c.Vendor,
		Model:       c.Model,
		Version:     c.Version,
		Interface:   c.Interface,
		IsAutomated: c.IsAutomated,
	}

	if err := s.dims.InsertDevice(ctx, device); err != nil {
		return fmt.Errorf("device insert failed: %w", err)
	}

	return nil
}

// extractUTM pulls the campaign parameters out of the destination
// URL's query string into the event.
func extractUTM(destination string, event *models.AnalyticsEvent) {
	parsed, err := url.Parse(destination)
	if err != nil {
		return
	}

	query := parsed.Query()
	event.UTMSource = query.Get("utm_source")
	event.UTMMedium = query.Get("utm_medium")
	event.UTMCampaign = query.Get("utm_campaign")
	event.UTMTerm = query.Get("utm_term")
	event.UTMContent = query.Get("utm_content")
}
