package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/user/shortlink/internal/config"
	"github.com/user/shortlink/internal/database"
	"github.com/user/shortlink/internal/models"
	"github.com/user/shortlink/internal/repository"
	"github.com/user/shortlink/internal/validate"
	"go.uber.org/zap"
)

// LinkService handles link management: create, list, edit, expire,
// delete. The redirect path never goes through this service.
type LinkService struct {
	repo    *repository.LinkRepository
	cache   *database.RedisDB
	checker *validate.LivenessChecker
	cfg     config.ShortenerConfig
	log     *zap.Logger
}

// NewLinkService creates a new link service.
func NewLinkService(
	repo *repository.LinkRepository,
	cache *database.RedisDB,
	checker *validate.LivenessChecker,
	cfg config.ShortenerConfig,
	log *zap.Logger,
) *LinkService {
	return &LinkService{
		repo:    repo,
		cache:   cache,
		checker: checker,
		cfg:     cfg,
		log:     log,
	}
}

// Create shortens a URL for the given owner.
//
// The destination is sanitized and validated, probed for liveness,
// and only then stored under a freshly generated short id.
func (s *LinkService) Create(ctx context.Context, ownerID uuid.UUID, req models.CreateLinkRequest) (*models.CreateLinkResponse, error) {
	destination, err := s.prepareDestination(ctx, req.URL)
	if err != nil {
		return nil, err
	}

	if err := s.checkExpiry(req.ExpiresAt); err != nil {
		return nil, err
	}

	shortID, err := s.generateUniqueCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to generate code: %w", err)
	}

	link := &models.Link{
		ShortID:     shortID,
		OriginalURL: destination,
		OwnerID:     ownerID,
		ExpiresAt:   req.ExpiresAt,
	}

	if err := s.repo.Create(ctx, link); err != nil {
		return nil, fmt.Errorf("failed to store link: %w", err)
	}

	return &models.CreateLinkResponse{
		ShortID:   shortID,
		ShortURL:  fmt.Sprintf("%s/%s", s.cfg.BaseURL, shortID),
		ExpiresAt: req.ExpiresAt,
	}, nil
}

// List returns one page of the owner's links, newest first.
func (s *LinkService) List(ctx context.Context, ownerID uuid.UUID, page int) (*models.LinkPage, error) {
	if page < 1 {
		page = 1
	}

	links, total, err := s.repo.ListByOwner(ctx, ownerID, s.cfg.PageSize, (page-1)*s.cfg.PageSize)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}

	return &models.LinkPage{Links: links, Total: total, Page: page}, nil
}

// Update edits a link's destination and/or expiry for its owner.
// The short id is immutable; only URL and expiry can change.
func (s *LinkService) Update(ctx context.Context, id int64, ownerID uuid.UUID, req models.UpdateLinkRequest) error {
	link, err := s.repo.GetByID(ctx, id, ownerID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrLinkNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load link: %w", err)
	}

	destination := link.OriginalURL
	if req.URL != nil {
		destination, err = s.prepareDestination(ctx, *req.URL)
		if err != nil {
			return err
		}
	}

	expiresAt := link.ExpiresAt
	switch {
	case req.ClearExpiry:
		expiresAt = nil
	case req.ExpiresAt != nil:
		if err := s.checkExpiry(req.ExpiresAt); err != nil {
			return err
		}
		expiresAt = req.ExpiresAt
	}

	if err := s.repo.Update(ctx, id, ownerID, destination, expiresAt); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrLinkNotFound
		}
		return fmt.Errorf("failed to update link: %w", err)
	}

	s.invalidateCache(link.ShortID)
	return nil
}

// Delete removes a link; its analytics cascade away with it.
func (s *LinkService) Delete(ctx context.Context, id int64, ownerID uuid.UUID) error {
	link, err := s.repo.GetByID(ctx, id, ownerID)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrLinkNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load link: %w", err)
	}

	if err := s.repo.Delete(ctx, id, ownerID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrLinkNotFound
		}
		return fmt.Errorf("failed to delete link: %w", err)
	}

	s.invalidateCache(link.ShortID)
	return nil
}

// prepareDestination sanitizes and validates a candidate URL, adds
// the https scheme when absent and probes the destination.
func (s *LinkService) prepareDestination(ctx context.Context, raw string) (string, error) {
	destination := validate.Sanitize(strings.TrimSpace(raw))
	if !validate.IsValidURL(destination) {
		return "", ErrInvalidURL
	}

	if !strings.HasPrefix(destination, "http://") && !strings.HasPrefix(destination, "https://") {
		destination = "https://" + destination
	}

	if s.checker != nil && !s.checker.IsURLActive(ctx, destination) {
		return "", ErrURLDead
	}

	return destination, nil
}

// checkExpiry enforces the minimum lead time on scheduled expiry.
func (s *LinkService) checkExpiry(expiresAt *time.Time) error {
	if expiresAt == nil {
		return nil
	}
	if expiresAt.Before(time.Now().Add(s.cfg.MinExpiryLead)) {
		return ErrInvalidExpiry
	}
	return nil
}

// invalidateCache drops the cached link so the redirect path sees
// updates immediately. Failures only shorten staleness, never break
// the write.
func (s *LinkService) invalidateCache(shortID string) {
	if s.cache == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.cache.Delete(ctx, database.CacheKey(shortID)); err != nil {
			s.log.Warn("cache invalidation failed", zap.String("short_id", shortID), zap.Error(err))
		}
	}()
}

// ===========================================
// Short Code Generation
// ===========================================
// Base62 over crypto/rand. Codes are case-sensitive and URL-safe;
// collisions are retried against the store.

const base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// generateUniqueCode creates a short id not yet present in the store.
func (s *LinkService) generateUniqueCode(ctx context.Context) (string, error) {
	const maxRetries = 5

	for i := 0; i < maxRetries; i++ {
		code, err := generateRandomCode(s.cfg.CodeLength)
		if err != nil {
			return "", err
		}

		exists, err := s.repo.Exists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}

	return "", errors.New("failed to generate unique code after retries")
}

// generateRandomCode creates a random base62 string.
func generateRandomCode(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	for i := range bytes {
		bytes[i] = base62Chars[bytes[i]%62]
	}

	return string(bytes), nil
}
