package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/user/shortlink/internal/models"
	"github.com/user/shortlink/internal/repository"
	"go.uber.org/zap"
)

// ErrInvalidInterval is returned for an unknown series interval.
var ErrInvalidInterval = errors.New("interval must be daily, monthly or yearly")

// bucketFormats maps series intervals to TO_CHAR patterns. Only
// values from this table ever reach the query.
var bucketFormats = map[string]string{
	"daily":   "YYYY-MM-DD",
	"monthly": "YYYY-MM",
	"yearly":  "YYYY",
}

// bucketLayouts are the Go time layouts matching bucketFormats.
var bucketLayouts = map[string]string{
	"daily":   "2006-01-02",
	"monthly": "2006-01",
	"yearly":  "2006",
}

// maskTail matches the last two dot-separated numeric segments of an
// IPv4 address; they are replaced with "*.*" before leaving the API.
var maskTail = regexp.MustCompile(`(\d+)\.(\d+)$`)

// AnalyticsService serves the dashboard read surface over the fact
// and dimension tables the resolver writes.
type AnalyticsService struct {
	repo     *repository.AnalyticsRepository
	links    *repository.LinkRepository
	pageSize int
	log      *zap.Logger
}

// NewAnalyticsService creates a new analytics service.
func NewAnalyticsService(repo *repository.AnalyticsRepository, links *repository.LinkRepository, pageSize int, log *zap.Logger) *AnalyticsService {
	return &AnalyticsService{
		repo:     repo,
		links:    links,
		pageSize: pageSize,
		log:      log,
	}
}

// Summary returns counts and one page of events for a link the
// given user owns. Source addresses are masked on the way out.
func (s *AnalyticsService) Summary(ctx context.Context, linkID int64, ownerID uuid.UUID, page int) (*models.AnalyticsSummary, error) {
	link, err := s.links.GetByID(ctx, linkID, ownerID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrLinkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load link: %w", err)
	}

	total, unique, automated, err := s.repo.Counts(ctx, linkID)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate counts: %w", err)
	}

	if page < 1 {
		page = 1
	}
	rows, err := s.repo.ListEvents(ctx, linkID, s.pageSize, (page-1)*s.pageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	for i := range rows {
		rows[i].Geolocation.IPAddress = MaskIP(rows[i].Geolocation.IPAddress)
	}

	return &models.AnalyticsSummary{
		ShortID:           link.ShortID,
		OriginalURL:       link.OriginalURL,
		TotalVisitors:     total,
		UniqueVisitors:    unique,
		AutomatedVisitors: automated,
		Rows:              rows,
	}, nil
}

// Series returns the bucketed visit time series for a link the
// given user owns.
func (s *AnalyticsService) Series(ctx context.Context, linkID int64, ownerID uuid.UUID, interval string) ([]models.SeriesPoint, error) {
	format, ok := bucketFormats[interval]
	if !ok {
		return nil, ErrInvalidInterval
	}

	if _, err := s.links.GetByID(ctx, linkID, ownerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to load link: %w", err)
	}

	points, err := s.repo.Series(ctx, linkID, format)
	if err != nil {
		return nil, fmt.Errorf("failed to build series: %w", err)
	}

	return fillSeries(points, interval, time.Now().UTC()), nil
}

// fillSeries turns the sparse GROUP BY result into a continuous
// series: every bucket between the earliest recorded event and now
// is present, empty ones with a zero count. An empty input stays
// empty; there is no series before the first visit.
func fillSeries(points []models.SeriesPoint, interval string, now time.Time) []models.SeriesPoint {
	if len(points) == 0 {
		return points
	}

	layout := bucketLayouts[interval]
	start, err := time.Parse(layout, points[0].Bucket)
	if err != nil {
		return points
	}

	counts := make(map[string]int64, len(points))
	for _, p := range points {
		counts[p.Bucket] = p.Count
	}

	filled := make([]models.SeriesPoint, 0, len(points))
	for t := start; !t.After(now); t = nextBucket(t, interval) {
		bucket := t.Format(layout)
		filled = append(filled, models.SeriesPoint{Bucket: bucket, Count: counts[bucket]})
	}

	return filled
}

func nextBucket(t time.Time, interval string) time.Time {
	switch interval {
	case "monthly":
		return t.AddDate(0, 1, 0)
	case "yearly":
		return t.AddDate(1, 0, 0)
	default:
		return t.AddDate(0, 0, 1)
	}
}

// MaskIP hides the tail of an address for privacy: the last two
// octets of an IPv4 address, or the last group of an IPv6 address,
// become "*".
func MaskIP(address string) string {
	if maskTail.MatchString(address) {
		return maskTail.ReplaceAllString(address, "*.*")
	}
	if idx := strings.LastIndex(address, ":"); idx >= 0 {
		return address[:idx+1] + "*"
	}
	return address
}
