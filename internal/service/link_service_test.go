package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/shortlink/internal/models"
)

func TestGenerateRandomCode(t *testing.T) {
	code, err := generateRandomCode(6)
	require.NoError(t, err)
	assert.Len(t, code, 6)

	for _, r := range code {
		assert.Contains(t, base62Chars, string(r))
	}
}

func TestGenerateRandomCode_Varies(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		code, err := generateRandomCode(6)
		require.NoError(t, err)
		seen[code] = true
	}
	// 50 draws from a 62^6 space should not collide.
	assert.Greater(t, len(seen), 45)
}

func TestPrepareDestination(t *testing.T) {
	// No liveness checker wired; only shape and sanitization apply.
	s := &LinkService{}

	t.Run("scheme preserved", func(t *testing.T) {
		got, err := s.prepareDestination(context.Background(), "https://example.com/page")
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/page", got)
	})

	t.Run("scheme defaulted", func(t *testing.T) {
		got, err := s.prepareDestination(context.Background(), "example.com/page")
		require.NoError(t, err)
		assert.Equal(t, "https://example.com/page", got)
	})

	t.Run("whitespace trimmed", func(t *testing.T) {
		got, err := s.prepareDestination(context.Background(), "  http://example.com  ")
		require.NoError(t, err)
		assert.Equal(t, "http://example.com", got)
	})

	t.Run("markup rejected", func(t *testing.T) {
		_, err := s.prepareDestination(context.Background(), "<script>alert(1)</script>")
		assert.ErrorIs(t, err, ErrInvalidURL)
	})

	t.Run("garbage rejected", func(t *testing.T) {
		_, err := s.prepareDestination(context.Background(), "not a url")
		assert.ErrorIs(t, err, ErrInvalidURL)
	})
}

func TestPrepareDestination_QueryStringRoundTrip(t *testing.T) {
	s := &LinkService{}

	submitted := "https://dest.com/?utm_source=newsletter&utm_campaign=spring"
	stored, err := s.prepareDestination(context.Background(), submitted)
	require.NoError(t, err)
	assert.Equal(t, submitted, stored)

	// Attribution reads the stored URL's own query string, so every
	// parameter after the first must survive storage.
	event := &models.AnalyticsEvent{}
	extractUTM(stored, event)
	assert.Equal(t, "newsletter", event.UTMSource)
	assert.Equal(t, "spring", event.UTMCampaign)
}

func TestCheckExpiry(t *testing.T) {
	s := &LinkService{}
	s.cfg.MinExpiryLead = 5 * time.Minute

	t.Run("nil is fine", func(t *testing.T) {
		assert.NoError(t, s.checkExpiry(nil))
	})

	t.Run("far future is fine", func(t *testing.T) {
		exp := time.Now().Add(time.Hour)
		assert.NoError(t, s.checkExpiry(&exp))
	})

	t.Run("under the lead time", func(t *testing.T) {
		exp := time.Now().Add(2 * time.Minute)
		assert.ErrorIs(t, s.checkExpiry(&exp), ErrInvalidExpiry)
	})

	t.Run("in the past", func(t *testing.T) {
		exp := time.Now().Add(-time.Hour)
		assert.ErrorIs(t, s.checkExpiry(&exp), ErrInvalidExpiry)
	})
}

func TestExtractUTM_IgnoresUnparseableURL(t *testing.T) {
	// A destination the URL parser rejects leaves the fields alone.
	event := &models.AnalyticsEvent{}
	extractUTM("http://%zz", event)
	assert.Empty(t, event.UTMSource)
}

func TestBase62Alphabet(t *testing.T) {
	assert.Len(t, base62Chars, 62)
	assert.False(t, strings.ContainsAny(base62Chars, "+/= "))
}
