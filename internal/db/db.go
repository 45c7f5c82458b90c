package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"shuttle-tracker/internal/fleet"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

func Ping(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return db.PingContext(ctx)
}

// FetchDrivers returns a snapshot's drivers in roster order.
func FetchDrivers(ctx context.Context, db *sql.DB, rosterID string) ([]fleet.Driver, error) {
	q := `
SELECT id, name, capacity,
       COALESCE(vehicle, ''), COALESCE(color, ''), COALESCE(rating, 0),
       start_lat, start_lon
FROM roster_drivers
WHERE roster_id = $1
ORDER BY position, id`
	rows, err := db.QueryContext(ctx, q, rosterID)
	if err != nil {
		return nil, fmt.Errorf("query roster_drivers: %w", err)
	}
	defer rows.Close()

	var out []fleet.Driver
	for rows.Next() {
		var d fleet.Driver
		if err := rows.Scan(&d.ID, &d.Name, &d.Capacity, &d.Vehicle, &d.Color, &d.Rating, &d.Start.Lat, &d.Start.Lon); err != nil {
			return nil, fmt.Errorf("scan roster_drivers: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// FetchPassengers returns a snapshot's passengers in roster order. pickup_time
// may be a time or text column; both are read as text.
func FetchPassengers(ctx context.Context, db *sql.DB, rosterID string) ([]fleet.Passenger, error) {
	q := `
SELECT id, name, pickup_time::text, lat, lon
FROM roster_passengers
WHERE roster_id = $1
ORDER BY position, id`
	rows, err := db.QueryContext(ctx, q, rosterID)
	if err != nil {
		return nil, fmt.Errorf("query roster_passengers: %w", err)
	}
	defer rows.Close()

	var out []fleet.Passenger
	for rows.Next() {
		var p fleet.Passenger
		var pickup string
		if err := rows.Scan(&p.ID, &p.Name, &pickup, &p.Pickup.Lat, &p.Pickup.Lon); err != nil {
			return nil, fmt.Errorf("scan roster_passengers: %w", err)
		}
		at, err := fleet.ParseClock(pickup)
		if err != nil {
			return nil, fmt.Errorf("passenger %s: %w", p.ID, err)
		}
		p.PickupTime = at
		out = append(out, p)
	}
	return out, rows.Err()
}

// Source picks the snapshot to load. Institution wins over RosterID; an
// explicit Destination overrides the snapshot's.
type Source struct {
	Institution string
	RosterID    string
	Destination *fleet.Coordinates
}

// LoadRoster reads a full roster once. The session never re-fetches it.
func LoadRoster(ctx context.Context, db *sql.DB, src Source) (fleet.Roster, string, error) {
	var (
		snap Snapshot
		err  error
	)
	switch {
	case src.Institution != "":
		snap, err = ResolveLatestRoster(ctx, db, src.Institution)
	case src.RosterID != "":
		snap, err = FetchSnapshot(ctx, db, src.RosterID)
	default:
		err = fmt.Errorf("institution or roster id is required")
	}
	if err != nil {
		return fleet.Roster{}, "", err
	}

	r := fleet.Roster{}
	switch {
	case src.Destination != nil:
		r.Destination = *src.Destination
	case snap.Destination != nil:
		r.Destination = *snap.Destination
	default:
		return fleet.Roster{}, "", fmt.Errorf("roster %s has no destination", snap.ID)
	}
	if r.Drivers, err = FetchDrivers(ctx, db, snap.ID); err != nil {
		return fleet.Roster{}, "", err
	}
	if r.Passengers, err = FetchPassengers(ctx, db, snap.ID); err != nil {
		return fleet.Roster{}, "", err
	}
	return r, snap.ID, nil
}
