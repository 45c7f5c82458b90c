package fleet

import (
	"errors"
	"fmt"

	"github.com/mmcloughlin/geohash"
)

// Coordinates is a WGS84 point in degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Geohash encodes the point with the given precision (characters).
func (c Coordinates) Geohash(precision uint) string {
	return geohash.EncodeWithPrecision(c.Lat, c.Lon, precision)
}

type Driver struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Capacity int         `json:"capacity"`
	Vehicle  string      `json:"vehicle"`
	Color    string      `json:"color"`
	Rating   float64     `json:"rating"`
	Start    Coordinates `json:"startLocation"`
}

type Passenger struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	PickupTime Clock       `json:"pickupTime"`
	Pickup     Coordinates `json:"coordinates"`
}

// PickupStatus tracks whether a passenger has been collected.
type PickupStatus string

const (
	PickupPending PickupStatus = "pending"
	PickupDone    PickupStatus = "done"
)

// VehicleStatus is the overall tag shown next to a vehicle.
type VehicleStatus string

const (
	VehicleActive      VehicleStatus = "active"
	VehicleInactive    VehicleStatus = "inactive"
	VehicleMaintenance VehicleStatus = "maintenance"
)

func (s VehicleStatus) Valid() bool {
	switch s {
	case VehicleActive, VehicleInactive, VehicleMaintenance:
		return true
	}
	return false
}

// Roster is the driver and passenger lists a session is built from. Slice
// order is significant: it is the stable input order for auto assignment and
// for tie breaks between equally loaded drivers.
type Roster struct {
	Drivers     []Driver
	Passengers  []Passenger
	Destination Coordinates
}

var ErrInvalidRoster = errors.New("invalid roster")

// Validate rejects duplicate ids and non-positive capacities.
func (r Roster) Validate() error {
	seen := make(map[string]struct{}, len(r.Drivers))
	for _, d := range r.Drivers {
		if d.ID == "" {
			return fmt.Errorf("%w: driver with empty id", ErrInvalidRoster)
		}
		if _, dup := seen[d.ID]; dup {
			return fmt.Errorf("%w: duplicate driver %q", ErrInvalidRoster, d.ID)
		}
		if d.Capacity <= 0 {
			return fmt.Errorf("%w: driver %q capacity %d", ErrInvalidRoster, d.ID, d.Capacity)
		}
		seen[d.ID] = struct{}{}
	}
	seen = make(map[string]struct{}, len(r.Passengers))
	for _, p := range r.Passengers {
		if p.ID == "" {
			return fmt.Errorf("%w: passenger with empty id", ErrInvalidRoster)
		}
		if _, dup := seen[p.ID]; dup {
			return fmt.Errorf("%w: duplicate passenger %q", ErrInvalidRoster, p.ID)
		}
		seen[p.ID] = struct{}{}
	}
	return nil
}
