// Package route derives a driver's ordered waypoints from its passengers.
package route

import (
	"math"
	"sort"

	"shuttle-tracker/internal/fleet"
)

// Stop is one pickup on a route. Index is 1-based, matching the ordinal drawn
// on the stop marker.
type Stop struct {
	Index      int               `json:"index"`
	Passenger  fleet.Passenger   `json:"passenger"`
	PickupTime fleet.Clock       `json:"pickupTime"`
	Coords     fleet.Coordinates `json:"coordinates"`
}

// Route is start, pickups by ascending pickup time, destination. A driver
// without passengers has an empty route.
type Route struct {
	DriverID    string            `json:"driverId"`
	Start       fleet.Coordinates `json:"start"`
	Stops       []Stop            `json:"stops"`
	Destination fleet.Coordinates `json:"destination"`
}

// Build orders passengers by pickup time; equal times keep input order.
func Build(d fleet.Driver, passengers []fleet.Passenger, destination fleet.Coordinates) Route {
	r := Route{DriverID: d.ID}
	if len(passengers) == 0 {
		return r
	}
	sorted := make([]fleet.Passenger, len(passengers))
	copy(sorted, passengers)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].PickupTime < sorted[j].PickupTime
	})
	r.Start = d.Start
	r.Destination = destination
	r.Stops = make([]Stop, len(sorted))
	for i, p := range sorted {
		r.Stops[i] = Stop{Index: i + 1, Passenger: p, PickupTime: p.PickupTime, Coords: p.Pickup}
	}
	return r
}

func (r Route) Empty() bool { return len(r.Stops) == 0 }

// Waypoints returns the polyline: len(Stops)+2 points, or none when empty.
func (r Route) Waypoints() []fleet.Coordinates {
	if r.Empty() {
		return nil
	}
	pts := make([]fleet.Coordinates, 0, len(r.Stops)+2)
	pts = append(pts, r.Start)
	for _, s := range r.Stops {
		pts = append(pts, s.Coords)
	}
	return append(pts, r.Destination)
}

// LengthMeters is the straight-line length of the polyline.
func (r Route) LengthMeters() float64 {
	pts := r.Waypoints()
	total := 0.0
	for i := 1; i < len(pts); i++ {
		total += Haversine(pts[i-1], pts[i])
	}
	return total
}

// Haversine distance in meters
func Haversine(a, b fleet.Coordinates) float64 {
	const R = 6371000.0
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return R * c
}
