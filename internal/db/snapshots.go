package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"shuttle-tracker/internal/fleet"
)

// Snapshot identifies one published roster. Destination is nil when the
// snapshot does not carry one.
type Snapshot struct {
	ID          string
	Destination *fleet.Coordinates
}

// ResolveLatestRoster returns the most recent snapshot whose institution
// matches (case-insensitive).
func ResolveLatestRoster(ctx context.Context, db *sql.DB, institution string) (Snapshot, error) {
	institution = strings.TrimSpace(institution)
	if institution == "" {
		return Snapshot{}, fmt.Errorf("institution is required")
	}
	q := `
SELECT id, destination_lat, destination_lon
FROM roster_snapshots
WHERE institution ILIKE $1
ORDER BY created_at DESC
LIMIT 1`
	snap, err := scanSnapshot(db.QueryRowContext(ctx, q, institution))
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("no roster found for institution %q", institution)
	}
	return snap, err
}

func FetchSnapshot(ctx context.Context, db *sql.DB, id string) (Snapshot, error) {
	q := `SELECT id, destination_lat, destination_lon FROM roster_snapshots WHERE id = $1`
	snap, err := scanSnapshot(db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, fmt.Errorf("roster %q not found", id)
	}
	return snap, err
}

func scanSnapshot(row *sql.Row) (Snapshot, error) {
	var (
		s        Snapshot
		lat, lon sql.NullFloat64
	)
	if err := row.Scan(&s.ID, &lat, &lon); err != nil {
		return Snapshot{}, err
	}
	if lat.Valid && lon.Valid {
		s.Destination = &fleet.Coordinates{Lat: lat.Float64, Lon: lon.Float64}
	}
	return s, nil
}
