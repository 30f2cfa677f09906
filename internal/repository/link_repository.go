// ===========================================
// Package repository - Data Access Layer
// ===========================================
// Repositories abstract database operations. Handlers call services,
// services call repositories; all SQL lives here, parameterized.
// ===========================================

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/user/shortlink/internal/models"
)

// Common errors returned by repository methods.
// Callers check these with errors.Is().
var (
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")
)

// LinkRepository handles all link database operations.
type LinkRepository struct {
	db *pgxpool.Pool
}

// NewLinkRepository creates a new link repository.
func NewLinkRepository(db *pgxpool.Pool) *LinkRepository {
	return &LinkRepository{db: db}
}

// Create inserts a new link and fills in its generated id.
// Returns ErrAlreadyExists if the short id is taken.
func (r *LinkRepository) Create(ctx context.Context, link *models.Link) error {
	query := `
		INSERT INTO links (short_id, original_url, owner_id, created_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	if link.CreatedAt.IsZero() {
		link.CreatedAt = time.Now()
	}

	err := r.db.QueryRow(ctx, query,
		link.ShortID,
		link.OriginalURL,
		link.OwnerID,
		link.CreatedAt,
		link.ExpiresAt,
	).Scan(&link.ID)

	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to create link: %w", err)
	}

	return nil
}

// GetByShortID retrieves a link by its short id.
// At most one row exists; returns ErrNotFound when it doesn't.
func (r *LinkRepository) GetByShortID(ctx context.Context, shortID string) (*models.Link, error) {
	query := `
		SELECT id, short_id, original_url, owner_id, created_at, expires_at
		FROM links
		WHERE short_id = $1
		LIMIT 1
	`

	link := &models.Link{}
	err := r.db.QueryRow(ctx, query, shortID).Scan(
		&link.ID,
		&link.ShortID,
		&link.OriginalURL,
		&link.OwnerID,
		&link.CreatedAt,
		&link.ExpiresAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	return link, nil
}

// GetByID retrieves a link by its numeric id, scoped to an owner so
// one user can never address another user's links.
func (r *LinkRepository) GetByID(ctx context.Context, id int64, ownerID uuid.UUID) (*models.Link, error) {
	query := `
		SELECT id, short_id, original_url, owner_id, created_at, expires_at
		FROM links
		WHERE id = $1 AND owner_id = $2
		LIMIT 1
	`

	link := &models.Link{}
	err := r.db.QueryRow(ctx, query, id, ownerID).Scan(
		&link.ID,
		&link.ShortID,
		&link.OriginalURL,
		&link.OwnerID,
		&link.CreatedAt,
		&link.ExpiresAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get link: %w", err)
	}

	return link, nil
}

// ListByOwner returns one page of a user's links, newest first,
// along with the total count for pagination.
func (r *LinkRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]models.Link, int64, error) {
	query := `
		SELECT id, short_id, original_url, owner_id, created_at, expires_at
		FROM links
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, ownerID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list links: %w", err)
	}
	defer rows.Close()

	var links []models.Link
	for rows.Next() {
		var link models.Link
		if err := rows.Scan(
			&link.ID,
			&link.ShortID,
			&link.OriginalURL,
			&link.OwnerID,
			&link.CreatedAt,
			&link.ExpiresAt,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan link: %w", err)
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate links: %w", err)
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM links WHERE owner_id = $1`
	if err := r.db.QueryRow(ctx, countQuery, ownerID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count links: %w", err)
	}

	return links, total, nil
}

// Update changes a link's destination URL and/or expiry, scoped to
// the owner. The short id is immutable and never touched.
func (r *LinkRepository) Update(ctx context.Context, id int64, ownerID uuid.UUID, originalURL string, expiresAt *time.Time) error {
	query := `
		UPDATE links
		SET original_url = $1, expires_at = $2
		WHERE id = $3 AND owner_id = $4
	`

	result, err := r.db.Exec(ctx, query, originalURL, expiresAt, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to update link: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Delete removes a link; analytics rows cascade at the schema level.
func (r *LinkRepository) Delete(ctx context.Context, id int64, ownerID uuid.UUID) error {
	query := `DELETE FROM links WHERE id = $1 AND owner_id = $2`

	result, err := r.db.Exec(ctx, query, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete link: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteExpired removes all expired links.
// Called periodically from the cleanup job in cmd/server.
func (r *LinkRepository) DeleteExpired(ctx context.Context) (int64, error) {
	query := `
		DELETE FROM links
		WHERE expires_at IS NOT NULL
		  AND expires_at <= $1
	`

	result, err := r.db.Exec(ctx, query, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired links: %w", err)
	}

	return result.RowsAffected(), nil
}

// Exists checks if a short id is already taken.
func (r *LinkRepository) Exists(ctx context.Context, shortID string) (bool, error) {
	query := `SELECT 1 FROM links WHERE short_id = $1 LIMIT 1`

	var exists int
	err := r.db.QueryRow(ctx, query, shortID).Scan(&exists)

	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check existence: %w", err)
	}

	return true, nil
}

// isDuplicateKeyError checks for a unique constraint violation.
// PostgreSQL error code 23505 = unique_violation.
func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
