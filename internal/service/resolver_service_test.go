package service

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/user/shortlink/internal/geoip"
	"github.com/user/shortlink/internal/models"
	"github.com/user/shortlink/internal/repository"
	"github.com/user/shortlink/internal/useragent"
)

// ===========================================
// Fakes
// ===========================================

type fakeLinkSource struct {
	links map[string]*models.Link
	err   error
}

func (f *fakeLinkSource) GetByShortID(ctx context.Context, shortID string) (*models.Link, error) {
	if f.err != nil {
		return nil, f.err
	}
	link, ok := f.links[shortID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return link, nil
}

type fakeDimensionStore struct {
	mu      sync.Mutex
	geos    map[string]*models.Geolocation
	devices map[string]*models.Device
	events  []*models.AnalyticsEvent

	geoInsertErr   error
	eventInsertErr error
}

func newFakeDimensionStore() *fakeDimensionStore {
	return &fakeDimensionStore{
		geos:    make(map[string]*models.Geolocation),
		devices: make(map[string]*models.Device),
	}
}

func (f *fakeDimensionStore) GetGeolocation(ctx context.Context, ipAddress string) (*models.Geolocation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	geo, ok := f.geos[ipAddress]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return geo, nil
}

func (f *fakeDimensionStore) InsertGeolocation(ctx context.Context, geo *models.Geolocation) error {
	if f.geoInsertErr != nil {
		return f.geoInsertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	// Idempotent on the natural key, like the ON CONFLICT insert.
	if _, ok := f.geos[geo.IPAddress]; !ok {
		f.geos[geo.IPAddress] = geo
	}
	return nil
}

func (f *fakeDimensionStore) GetDevice(ctx context.Context, userAgent string) (*models.Device, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	device, ok := f.devices[userAgent]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return device, nil
}

func (f *fakeDimensionStore) InsertDevice(ctx context.Context, device *models.Device) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.devices[device.UserAgent]; !ok {
		f.devices[device.UserAgent] = device
	}
	return nil
}

func (f *fakeDimensionStore) InsertEvent(ctx context.Context, event *models.AnalyticsEvent) error {
	if f.eventInsertErr != nil {
		return f.eventInsertErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
	return nil
}

type fakeGeoLookup struct {
	result *geoip.Result
	err    error
}

func (f *fakeGeoLookup) Lookup(ctx context.Context, ip string) (*geoip.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeRateLimiter struct {
	limited bool
	err     error
}

func (f *fakeRateLimiter) ShouldLimit(ctx context.Context, value string) (bool, error) {
	return f.limited, f.err
}

type fakeAddressResolver struct {
	address string
}

func (f *fakeAddressResolver) Resolve(headers http.Header) string {
	return f.address
}

// ===========================================
// Helpers
// ===========================================

type resolverFixture struct {
	links   *fakeLinkSource
	dims    *fakeDimensionStore
	geo     *fakeGeoLookup
	limiter *fakeRateLimiter
	addr    *fakeAddressResolver
	svc     *ResolverService
}

func newResolverFixture(links map[string]*models.Link) *resolverFixture {
	f := &resolverFixture{
		links: &fakeLinkSource{links: links},
		dims:  newFakeDimensionStore(),
		geo: &fakeGeoLookup{result: &geoip.Result{
			Location: geoip.Location{
				OriginCountry: "Germany",
				OriginState:   "Berlin",
				OriginCity:    "Berlin",
			},
			Fingerprint: "fp-1",
			Confidence:  0.9,
		}},
		limiter: &fakeRateLimiter{},
		addr:    &fakeAddressResolver{address: "203.0.113.7"},
	}
	f.svc = NewResolverService(
		f.links, f.dims, f.geo, f.limiter, f.addr,
		nil, useragent.Classify, "/404", time.Hour, zap.NewNop(),
	)
	return f
}

func visitHeaders() http.Header {
	h := http.Header{}
	h.Set("User-Agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	h.Set("Referer", "https://news.example.org/")
	return h
}

func futureExpiry(d time.Duration) *time.Time {
	t := time.Now().UTC().Add(d)
	return &t
}

// ===========================================
// Tests
// ===========================================

func TestResolve_RecordsVisitAndRedirects(t *testing.T) {
	f := newResolverFixture(map[string]*models.Link{
		"abc123": {ID: 1, ShortID: "abc123", OriginalURL: "https://example.com/landing"},
	})

	result, err := f.svc.Resolve(context.Background(), "abc123", visitHeaders())
	require.NoError(t, err)
	assert.True(t, result.Found)
	assert.Equal(t, "https://example.com/landing", result.Location)

	require.Len(t, f.dims.events, 1)
	event := f.dims.events[0]
	assert.Equal(t, int64(1), event.LinkID)
	assert.Equal(t, "203.0.113.7", event.SourceAddress)
	assert.Equal(t, "https://news.example.org/", event.Referer)

	// Both dimension rows were created for the first visit.
	assert.Contains(t, f.dims.geos, "203.0.113.7")
	assert.Contains(t, f.dims.devices, visitHeaders().Get("User-Agent"))
}

func TestResolve_UnknownCodeRedirectsToNotFound(t *testing.T) {
	f := newResolverFixture(nil)

	result, err := f.svc.Resolve(context.Background(), "nosuch", visitHeaders())
	require.NoError(t, err)
	assert.False(t, result.Found)
	assert.Equal(t, "/404", result.Location)
	assert.Empty(t, f.dims.events)
}

func TestResolve_ExpiredLinkLooksLikeNotFound(t *testing.T) {
	past := time.Now().UTC().Add(-time.Hour)
	f := newResolverFixture(map[string]*models.Link{
		"old123": {ID: 2, ShortID: "old123", OriginalURL: "https://example.com", ExpiresAt: &past},
	})

	expired, err := f.svc.Resolve(context.Background(), "old123", visitHeaders())
	require.NoError(t, err)

	missing, err := f.svc.Resolve(context.Background(), "nosuch", visitHeaders())
	require.NoError(t, err)

	// An expired code and a code that never existed are
	// indistinguishable to the visitor.
	assert.Equal(t, missing, expired)
	assert.Empty(t, f.dims.events)
}

func TestResolve_ReservedPathsNeverResolve(t *testing.T) {
	f := newResolverFixture(map[string]*models.Link{
		"robots.txt": {ID: 3, ShortID: "robots.txt", OriginalURL: "https://example.com"},
	})

	for _, path := range []string{"robots.txt", "favicon.ico"} {
		_, err := f.svc.Resolve(context.Background(), path, visitHeaders())
		assert.ErrorIs(t, err, ErrReservedPath, path)
	}
	assert.Empty(t, f.dims.events)
}

func TestResolve_MissingClientAddressFails(t *testing.T) {
	f := newResolverFixture(map[string]*models.Link{
		"abc123": {ID: 1, ShortID: "abc123", OriginalURL: "https://example.com"},
	})
	f.addr.address = ""

	_, err := f.svc.Resolve(context.Background(), "abc123", visitHeaders())
	assert.ErrorIs(t, err, ErrNoClientAddress)
}

func TestResolve_RateLimited(t *testing.T) {
	f := newResolverFixture(map[string]*models.Link{
		"abc123": {ID: 1, ShortID: "abc123", OriginalURL: "https://example.com"},
	})
	f.limiter.limited = true

	_, err := f.svc.Resolve(context.Background(), "abc123", visitHeaders())
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Empty(t, f.dims.events)
}

func TestResolve_ExtractsUTMFromDestination(t *testing.T) {
	f := newResolverFixture(map[string]*models.Link{
		"promo1": {
			ID:          4,
			ShortID:     "promo1",
			OriginalURL: "https://example.com/sale?utm_source=newsletter&utm_medium=email&utm_campaign=spring&utm_term=shoes&utm_content=banner",
		},
	})

	result, err := f.svc.Resolve(context.Background(), "promo1", visitHeaders())
	require.NoError(t, err)
	assert.True(t, result.Found)

	require.Len(t, f.dims.events, 1)
	event := f.dims.events[0]
	assert.Equal(t, "newsletter", event.UTMSource)
	assert.Equal(t, "email", event.UTMMedium)
	assert.Equal(t, "spring", event.UTMCampaign)
	assert.Equal(t, "shoes", event.UTMTerm)
	assert.Equal(t, "banner", event.UTMContent)
}

func TestResolve_NoUTMLeavesFieldsEmpty(t *testing.T) {
	f := newResolverFixture(map[string]*models.Link{
		"plain1": {ID: 5, ShortID: "plain1", OriginalURL: "https://example.com/page"},
	})

	_, err := f.svc.Resolve(context.Background(), "plain1", visitHeaders())
	require.NoError(t, err)

	require.Len(t, f.dims.events, 1)
	assert.Empty(t, f.dims.events[0].UTMSource)
	assert.Empty(t, f.dims.events[0].UTMCampaign)
}

func TestResolve_GeoUpstreamFailureIsNotFatal(t *testing.T) {
	f := newResolverFixture(map[string]*models.Link{
		"abc123": {ID: 1, ShortID: "abc123", OriginalURL: "https://example.com"},
	})
	f.geo.err = errors.New("upstream timeout")

	result, err := f.svc.Resolve(context.Background(), "abc123", visitHeaders())
	require.NoError(t, err)
	assert.True(t, result.Found)

	// The visit was still recorded, just without a geolocation row.
	require.Len(t, f.dims.events, 1)
	assert.NotContains(t, f.dims.geos, "203.0.113.7")
}

func TestResolve_DisabledGeoSkipsEnrichment(t *testing.T) {
	f := newResolverFixture(map[string]*models.Link{
		"abc123": {ID: 1, ShortID: "abc123", OriginalURL: "https://example.com"},
	})
	f.geo.err = geoip.ErrDisabled

	result, err := f.svc.Resolve(context.Background(), "abc123", visitHeaders())
	require.NoError(t, err)
	assert.True(t, result.Found)

	require.Len(t, f.dims.events, 1)
	assert.NotContains(t, f.dims.geos, "203.0.113.7")
}

func TestResolve_LowConfidenceDropsFingerprint(t *testing.T) {
	f := newResolverFixture(map[string]*models.Link{
		"abc123": {ID: 1, ShortID: "abc123", OriginalURL: "https://example.com"},
	})
	f.geo.result.Confidence = 0.4

	_, err := f.svc.Resolve(context.Background(), "abc123", visitHeaders())
	require.NoError(t, err)

	geo := f.dims.geos["203.0.113.7"]
	require.NotNil(t, geo)
	assert.Empty(t, geo.Fingerprint)
	assert.Equal(t, "Germany", geo.Country)
}

func TestResolve_GeoStoreFailureAborts(t *testing.T) {
	f := newResolverFixture(map[string]*models.Link{
		"abc123": {ID: 1, ShortID: "abc123", OriginalURL: "https://example.com"},
	})
	f.dims.geoInsertErr = errors.New("connection reset")

	_, err := f.svc.Resolve(context.Background(), "abc123", visitHeaders())
	require.Error(t, err)
	assert.Empty(t, f.dims.events)
}

func TestResolve_EventInsertFailureBlocksRedirect(t *testing.T) {
	f := newResolverFixture(map[string]*models.Link{
		"abc123": {ID: 1, ShortID: "abc123", OriginalURL: "https://example.com"},
	})
	f.dims.eventInsertErr = errors.New("connection reset")

	result, err := f.svc.Resolve(context.Background(), "abc123", visitHeaders())
	require.Error(t, err)
	assert.Nil(t, result)
}

func TestResolve_ConcurrentFirstVisits(t *testing.T) {
	f := newResolverFixture(map[string]*models.Link{
		"abc123": {ID: 1, ShortID: "abc123", OriginalURL: "https://example.com"},
	})

	// All visitors share one address and one user agent, so every
	// goroutine races on the same first-visit dimension inserts.
	const visitors = 16
	errs := make(chan error, visitors)
	var wg sync.WaitGroup
	for i := 0; i < visitors; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Resolve(context.Background(), "abc123", visitHeaders())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	// Every visit produced a fact row; exactly one row survived per
	// dimension key.
	assert.Len(t, f.dims.events, visitors)
	assert.Len(t, f.dims.geos, 1)
	assert.Len(t, f.dims.devices, 1)
}

func TestResolve_DimensionRowsCreatedOnce(t *testing.T) {
	f := newResolverFixture(map[string]*models.Link{
		"abc123": {ID: 1, ShortID: "abc123", OriginalURL: "https://example.com"},
	})

	for i := 0; i < 3; i++ {
		_, err := f.svc.Resolve(context.Background(), "abc123", visitHeaders())
		require.NoError(t, err)
	}

	// Three visits, three fact rows, one row per dimension key.
	assert.Len(t, f.dims.events, 3)
	assert.Len(t, f.dims.geos, 1)
	assert.Len(t, f.dims.devices, 1)
}
