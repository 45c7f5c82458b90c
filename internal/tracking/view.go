package tracking

import (
	"fmt"

	"shuttle-tracker/internal/assign"
	"shuttle-tracker/internal/fleet"
	"shuttle-tracker/internal/route"
)

// Stats are the live counters shown for a vehicle.
type Stats struct {
	PickedUp     int    `json:"pickedUp"`
	Remaining    int    `json:"remaining"`
	CurrentDwell string `json:"currentDwell"`
}

type StopDetail struct {
	Index         int                `json:"index"`
	PassengerID   string             `json:"passengerId"`
	PassengerName string             `json:"passengerName"`
	PickupTime    string             `json:"pickupTime"`
	Coords        fleet.Coordinates  `json:"coordinates"`
	Status        fleet.PickupStatus `json:"status"`
}

type RouteDetail struct {
	Driver       fleet.Driver        `json:"driver"`
	Waypoints    []fleet.Coordinates `json:"waypoints"`
	Stops        []StopDetail        `json:"stops"`
	LengthMeters float64             `json:"lengthMeters"`
	Load         int                 `json:"load"`
	Capacity     int                 `json:"capacity"`
}

type VehicleMarker struct {
	DriverID string              `json:"driverId"`
	Name     string              `json:"name"`
	Color    string              `json:"color"`
	Coords   fleet.Coordinates   `json:"coordinates"`
	Geohash  string              `json:"geohash"`
	Badge    string              `json:"badge"`
	Status   fleet.VehicleStatus `json:"status"`
	Selected bool                `json:"selected"`
}

type StopMarker struct {
	Index         int                `json:"index"`
	PassengerName string             `json:"passengerName"`
	Coords        fleet.Coordinates  `json:"coordinates"`
	Status        fleet.PickupStatus `json:"status"`
}

// SelectVehicle makes driverID the selected vehicle and recenters the map on
// its current position. The map view is called without the session lock
// held, so it may read the session back.
func (s *Session) SelectVehicle(driverID string) error {
	s.mu.Lock()
	if _, ok := s.engine.Driver(driverID); !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: driver %q", assign.ErrUnknownEntity, driverID)
	}
	center, move := s.selectLocked(driverID)
	s.mu.Unlock()

	if move {
		s.view.Recenter(center, s.zoomDelta)
	}
	return nil
}

// selectLocked records the selection and reports where the map should
// recenter, if anywhere.
func (s *Session) selectLocked(driverID string) (fleet.Coordinates, bool) {
	s.selected = driverID
	if s.view == nil {
		return fleet.Coordinates{}, false
	}
	v, ok := s.sim.Vehicle(driverID)
	return v.Coords, ok
}

// Selected returns the selected driver, if any.
func (s *Session) Selected() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected, s.selected != ""
}

// ComputeStats counts driverID's assigned passengers by pickup status.
// Nothing is cached.
func (s *Session) ComputeStats(driverID string) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.sim.Vehicle(driverID)
	if !ok {
		return Stats{}, fmt.Errorf("%w: driver %q", assign.ErrUnknownEntity, driverID)
	}
	st := Stats{CurrentDwell: v.DwellText}
	for _, p := range s.engine.PassengersOf(driverID) {
		if ps, _ := s.sim.PickupStatus(p.ID); ps == fleet.PickupDone {
			st.PickedUp++
		} else {
			st.Remaining++
		}
	}
	return st, nil
}

// OpenRouteDetail is a read-only view of driverID's route with per-stop data.
func (s *Session) OpenRouteDetail(driverID string) (RouteDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.engine.Driver(driverID)
	if !ok {
		return RouteDetail{}, fmt.Errorf("%w: driver %q", assign.ErrUnknownEntity, driverID)
	}
	r := s.routes[driverID]
	detail := RouteDetail{
		Driver:       d,
		Waypoints:    r.Waypoints(),
		Stops:        make([]StopDetail, 0, len(r.Stops)),
		LengthMeters: r.LengthMeters(),
		Load:         s.engine.Load(driverID),
		Capacity:     d.Capacity,
	}
	for _, stop := range r.Stops {
		ps, _ := s.sim.PickupStatus(stop.Passenger.ID)
		detail.Stops = append(detail.Stops, StopDetail{
			Index:         stop.Index,
			PassengerID:   stop.Passenger.ID,
			PassengerName: stop.Passenger.Name,
			PickupTime:    stop.PickupTime.String(),
			Coords:        stop.Coords,
			Status:        ps,
		})
	}
	return detail, nil
}

// VehicleMarkers returns one marker per vehicle in roster order, badged with
// load/capacity.
func (s *Session) VehicleMarkers() []VehicleMarker {
	s.mu.Lock()
	defer s.mu.Unlock()
	drivers := s.engine.Drivers()
	out := make([]VehicleMarker, 0, len(drivers))
	for _, d := range drivers {
		v, _ := s.sim.Vehicle(d.ID)
		out = append(out, VehicleMarker{
			DriverID: d.ID,
			Name:     d.Name,
			Color:    d.Color,
			Coords:   v.Coords,
			Geohash:  v.Coords.Geohash(markerGeohashLen),
			Badge:    fmt.Sprintf("%d/%d", s.engine.Load(d.ID), d.Capacity),
			Status:   v.Status,
			Selected: d.ID == s.selected,
		})
	}
	return out
}

// StopMarkers returns the numbered pickup markers of driverID's route.
func (s *Session) StopMarkers(driverID string) []StopMarker {
	s.mu.Lock()
	r := s.routes[driverID]
	s.mu.Unlock()
	out := make([]StopMarker, 0, len(r.Stops))
	for _, stop := range r.Stops {
		ps, _ := s.sim.PickupStatus(stop.Passenger.ID)
		out = append(out, StopMarker{
			Index:         stop.Index,
			PassengerName: stop.Passenger.Name,
			Coords:        stop.Coords,
			Status:        ps,
		})
	}
	return out
}

// Routes returns every driver's route in roster order.
func (s *Session) Routes() []route.Route {
	s.mu.Lock()
	defer s.mu.Unlock()
	drivers := s.engine.Drivers()
	out := make([]route.Route, 0, len(drivers))
	for _, d := range drivers {
		out = append(out, s.routes[d.ID])
	}
	return out
}
