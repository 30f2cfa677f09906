package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/user/shortlink/internal/models"
)

// AnalyticsRepository handles the dimension tables and the
// append-only analytics fact table.
type AnalyticsRepository struct {
	db *pgxpool.Pool
}

// NewAnalyticsRepository creates a new analytics repository.
func NewAnalyticsRepository(db *pgxpool.Pool) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// ===========================================
// Geolocation dimension
// ===========================================

// GetGeolocation retrieves the dimension row for a raw IP address.
// Returns ErrNotFound for a first-time visitor.
func (r *AnalyticsRepository) GetGeolocation(ctx context.Context, ipAddress string) (*models.Geolocation, error) {
	query := `
		SELECT ip_address, country, COALESCE(state, ''), COALESCE(city, ''), COALESCE(fingerprint, ''), created_at
		FROM geolocations
		WHERE ip_address = $1
		LIMIT 1
	`

	geo := &models.Geolocation{}
	err := r.db.QueryRow(ctx, query, ipAddress).Scan(
		&geo.IPAddress,
		&geo.Country,
		&geo.State,
		&geo.City,
		&geo.Fingerprint,
		&geo.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get geolocation: %w", err)
	}

	return geo, nil
}

// InsertGeolocation creates the dimension row for an unseen IP.
//
// Concurrent first visits from the same address race on the
// lookup-then-insert pattern; ON CONFLICT DO NOTHING on the natural
// key makes the losing insert a no-op instead of an error, so at
// most one row survives.
func (r *AnalyticsRepository) InsertGeolocation(ctx context.Context, geo *models.Geolocation) error {
	query := `
		INSERT INTO geolocations (ip_address, country, state, city, fingerprint, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (ip_address) DO NOTHING
	`

	if geo.CreatedAt.IsZero() {
		geo.CreatedAt = time.Now()
	}

	_, err := r.db.Exec(ctx, query,
		geo.IPAddress,
		geo.Country,
		geo.State,
		geo.City,
		geo.Fingerprint,
		geo.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert geolocation: %w", err)
	}

	return nil
}

// ===========================================
// Device dimension
// ===========================================

// GetDevice retrieves the dimension row for a raw user-agent string.
// Returns ErrNotFound for a first-seen user agent.
func (r *AnalyticsRepository) GetDevice(ctx context.Context, userAgent string) (*models.Device, error) {
	query := `
		SELECT user_agent, type, COALESCE(vendor, ''), COALESCE(model, ''), COALESCE(version, ''), COALESCE(interface, ''), is_automated, created_at
		FROM devices
		WHERE user_agent = $1
		LIMIT 1
	`

	device := &models.Device{}
	err := r.db.QueryRow(ctx, query, userAgent).Scan(
		&device.UserAgent,
		&device.Type,
		&device.Vendor,
		&device.Model,
		&device.Version,
		&device.Interface,
		&device.IsAutomated,
		&device.CreatedAt,
	)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	return device, nil
}

// InsertDevice creates the dimension row for an unseen user agent.
// Same conflict-ignore treatment as InsertGeolocation.
func (r *AnalyticsRepository) InsertDevice(ctx context.Context, device *models.Device) error {
	query := `
		INSERT INTO devices (user_agent, type, vendor, model, version, interface, is_automated, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_agent) DO NOTHING
	`

	if device.CreatedAt.IsZero() {
		device.CreatedAt = time.Now()
	}

	_, err := r.db.Exec(ctx, query,
		device.UserAgent,
		device.Type,
		device.Vendor,
		device.Model,
		device.Version,
		device.Interface,
		device.IsAutomated,
		device.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert device: %w", err)
	}

	return nil
}

// ===========================================
// Analytics facts
// ===========================================

// InsertEvent appends one fact row for a redirect traversal.
func (r *AnalyticsRepository) InsertEvent(ctx context.Context, event *models.AnalyticsEvent) error {
	query := `
		INSERT INTO analytics (link_id, created_at, source_address, user_agent, referer,
		                       utm_source, utm_medium, utm_campaign, utm_term, utm_content)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	err := r.db.QueryRow(ctx, query,
		event.LinkID,
		event.CreatedAt,
		event.SourceAddress,
		event.UserAgent,
		event.Referer,
		event.UTMSource,
		event.UTMMedium,
		event.UTMCampaign,
		event.UTMTerm,
		event.UTMContent,
	).Scan(&event.ID)
	if err != nil {
		return fmt.Errorf("failed to insert analytics event: %w", err)
	}

	return nil
}

// ListEvents returns a link's events joined with their dimension
// rows, newest first. Dimension rows may be absent when upstream
// enrichment was skipped; joins are left outer for that reason.
func (r *AnalyticsRepository) ListEvents(ctx context.Context, linkID int64, limit, offset int) ([]models.AnalyticsEventRow, error) {
	query := `
		SELECT a.created_at, COALESCE(a.referer, ''),
		       a.source_address,
		       COALESCE(g.country, ''), COALESCE(g.state, ''), COALESCE(g.city, ''), COALESCE(g.fingerprint, ''),
		       a.user_agent,
		       COALESCE(d.type, ''), COALESCE(d.vendor, ''), COALESCE(d.model, ''),
		       COALESCE(d.version, ''), COALESCE(d.interface, ''), COALESCE(d.is_automated, false)
		FROM analytics a
		LEFT JOIN geolocations g ON g.ip_address = a.source_address
		LEFT JOIN devices d ON d.user_agent = a.user_agent
		WHERE a.link_id = $1
		ORDER BY a.created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, linkID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	defer rows.Close()

	var events []models.AnalyticsEventRow
	for rows.Next() {
		var row models.AnalyticsEventRow
		if err := rows.Scan(
			&row.CreatedAt,
			&row.Referer,
			&row.Geolocation.IPAddress,
			&row.Geolocation.Country,
			&row.Geolocation.State,
			&row.Geolocation.City,
			&row.Geolocation.Fingerprint,
			&row.Device.UserAgent,
			&row.Device.Type,
			&row.Device.Vendor,
			&row.Device.Model,
			&row.Device.Version,
			&row.Device.Interface,
			&row.Device.IsAutomated,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}

	return events, nil
}

// Counts returns the total, unique-visitor and automated-visitor
// counts for a link. Unique visitors are distinct source addresses;
// automated visitors are events whose device row is flagged.
func (r *AnalyticsRepository) Counts(ctx context.Context, linkID int64) (total, unique, automated int64, err error) {
	query := `
		SELECT COUNT(*),
		       COUNT(DISTINCT a.source_address),
		       COUNT(*) FILTER (WHERE d.is_automated)
		FROM analytics a
		LEFT JOIN devices d ON d.user_agent = a.user_agent
		WHERE a.link_id = $1
	`

	if err = r.db.QueryRow(ctx, query, linkID).Scan(&total, &unique, &automated); err != nil {
		return 0, 0, 0, fmt.Errorf("failed to count events: %w", err)
	}

	return total, unique, automated, nil
}

// Series returns visit counts grouped into daily, monthly or yearly
// buckets, ascending, non-empty buckets only; the service layer
// fills the gaps. The bucket pattern is a TO_CHAR format string
// validated by the service layer.
func (r *AnalyticsRepository) Series(ctx context.Context, linkID int64, bucketFormat string) ([]models.SeriesPoint, error) {
	query := `
		SELECT TO_CHAR(created_at, $2) AS bucket, COUNT(*) AS count
		FROM analytics
		WHERE link_id = $1
		GROUP BY bucket
		ORDER BY bucket
	`

	rows, err := r.db.Query(ctx, query, linkID, bucketFormat)
	if err != nil {
		return nil, fmt.Errorf("failed to query series: %w", err)
	}
	defer rows.Close()

	var points []models.SeriesPoint
	for rows.Next() {
		var p models.SeriesPoint
		if err := rows.Scan(&p.Bucket, &p.Count); err != nil {
			return nil, fmt.Errorf("failed to scan series point: %w", err)
		}
		points = append(points, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate series: %w", err)
	}

	return points, nil
}
