package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"campusd/internal/affluence"
	"campusd/internal/geo"
	"campusd/internal/infrastructure/database"
)

// timeFormat is how timestamps are stored (UTC, RFC 3339).
const timeFormat = time.RFC3339

// Snapshot is the most recent persisted aggregate result.
type Snapshot struct {
	Sites       []affluence.Site                `json:"sites"`
	Status      map[string]affluence.LiveStatus `json:"status"`
	RefreshedAt time.Time                       `json:"refreshed_at"`
}

// Repository persists the last aggregate result and the last resolved
// position, so a freshly started daemon can serve data before its first
// upstream round-trip.
//
// It implements geo.PositionStore.
type Repository struct {
	db *database.DB
}

// NewRepository creates a snapshot repository on an open database.
func NewRepository(db *database.DB) *Repository {
	return &Repository{db: db}
}

// LastPosition returns the most recently persisted position, or nil when
// none has been stored yet.
func (r *Repository) LastPosition(ctx context.Context) (*geo.Position, error) {
	const query = `SELECT latitude, longitude FROM positions WHERE id = 1`

	var pos geo.Position
	err := r.db.QueryRowContext(ctx, query).Scan(&pos.Latitude, &pos.Longitude)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading last position: %w", err)
	}
	return &pos, nil
}

// SavePosition upserts the single last-known position row.
func (r *Repository) SavePosition(ctx context.Context, pos geo.Position) error {
	const query = `INSERT INTO positions (id, latitude, longitude, resolved_at)
		VALUES (1, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			resolved_at = excluded.resolved_at`

	_, err := r.db.ExecContext(ctx, query,
		pos.Latitude, pos.Longitude, time.Now().UTC().Format(timeFormat))
	if err != nil {
		return fmt.Errorf("saving position: %w", err)
	}
	return nil
}

// Save replaces the stored snapshot with a fresh aggregate result.
//
// The whole replacement runs in one transaction: readers either see the
// previous complete snapshot or the new one, never a mix.
func (r *Repository) Save(ctx context.Context, sites []affluence.Site, status map[string]affluence.LiveStatus) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning snapshot transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // No-op after commit

	now := time.Now().UTC().Format(timeFormat)

	if _, err := tx.ExecContext(ctx, `DELETE FROM sites`); err != nil {
		return fmt.Errorf("clearing sites: %w", err)
	}

	const insertSite = `INSERT INTO sites
		(id, name, campus, latitude, longitude, slug, distance_km, position, refreshed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	for i, site := range sites {
		if _, err := tx.ExecContext(ctx, insertSite,
			site.ID, site.Name, site.Campus, site.Latitude, site.Longitude,
			site.Slug, nullFloat(site.DistanceKm), i, now); err != nil {
			return fmt.Errorf("inserting site %s: %w", site.ID, err)
		}
	}

	const insertStatus = `INSERT INTO live_status
		(site_id, is_open, occupancy_rate, closing_time, opening_text, refreshed_at)
		VALUES (?, ?, ?, ?, ?, ?)`
	for siteID, s := range status {
		if _, err := tx.ExecContext(ctx, insertStatus,
			siteID, s.IsOpen, nullInt(s.OccupancyRate), s.ClosingTime, s.OpeningText, now); err != nil {
			return fmt.Errorf("inserting status for %s: %w", siteID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing snapshot: %w", err)
	}
	return nil
}

// Latest returns the stored snapshot, or nil when the store is cold.
func (r *Repository) Latest(ctx context.Context) (*Snapshot, error) {
	const query = `SELECT id, name, campus, latitude, longitude, slug, distance_km, refreshed_at
		FROM sites ORDER BY position`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("reading sites: %w", err)
	}
	defer rows.Close()

	snap := &Snapshot{Status: make(map[string]affluence.LiveStatus)}
	var refreshedAt string
	for rows.Next() {
		var site affluence.Site
		var distance sql.NullFloat64
		if err := rows.Scan(&site.ID, &site.Name, &site.Campus,
			&site.Latitude, &site.Longitude, &site.Slug, &distance, &refreshedAt); err != nil {
			return nil, fmt.Errorf("scanning site: %w", err)
		}
		if distance.Valid {
			km := distance.Float64
			site.DistanceKm = &km
		}
		snap.Sites = append(snap.Sites, site)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sites: %w", err)
	}

	if len(snap.Sites) == 0 {
		return nil, nil
	}

	if t, err := time.Parse(timeFormat, refreshedAt); err == nil {
		snap.RefreshedAt = t
	}

	if err := r.loadStatuses(ctx, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// loadStatuses fills the snapshot's status map.
func (r *Repository) loadStatuses(ctx context.Context, snap *Snapshot) error {
	const query = `SELECT site_id, is_open, occupancy_rate, closing_time, opening_text
		FROM live_status`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("reading statuses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var siteID string
		var status affluence.LiveStatus
		var rate sql.NullInt64
		if err := rows.Scan(&siteID, &status.IsOpen, &rate,
			&status.ClosingTime, &status.OpeningText); err != nil {
			return fmt.Errorf("scanning status: %w", err)
		}
		if rate.Valid {
			v := int(rate.Int64)
			status.OccupancyRate = &v
		}
		snap.Status[siteID] = status
	}
	return rows.Err()
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}
