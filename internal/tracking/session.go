// Package tracking holds a live session: the assignment, each driver's route,
// the simulated vehicles and the currently selected vehicle.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"shuttle-tracker/internal/assign"
	"shuttle-tracker/internal/fleet"
	"shuttle-tracker/internal/publisher"
	"shuttle-tracker/internal/route"
	"shuttle-tracker/internal/sim"
)

const (
	DefaultZoomDelta = 0.01
	markerGeohashLen = 7
)

// MapView is the map widget a session drives when a vehicle is selected.
type MapView interface {
	Recenter(center fleet.Coordinates, zoomDelta float64)
}

// PositionPublisher forwards per-tick vehicle positions, e.g. to NATS.
type PositionPublisher interface {
	PublishPosition(msg publisher.PositionMessage) error
}

type Options struct {
	Strategy      assign.Strategy
	AssignMetrics assign.Metrics
	// Sim configures the simulator; its Sink is replaced by the session.
	Sim       sim.Options
	Publisher PositionPublisher
	MapView   MapView
	ZoomDelta float64
	Logger    *zap.Logger
}

type Session struct {
	ID string

	destination fleet.Coordinates
	view        MapView
	zoomDelta   float64
	feed        PositionPublisher
	log         *zap.Logger

	mu       sync.Mutex
	engine   *assign.Engine
	routes   map[string]route.Route
	selected string

	sim *sim.Simulator
}

// NewSession validates the roster and builds an idle session with an empty
// assignment.
func NewSession(r fleet.Roster, opts Options) (*Session, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	s := &Session{
		ID:          uuid.NewString(),
		destination: r.Destination,
		view:        opts.MapView,
		zoomDelta:   opts.ZoomDelta,
		feed:        opts.Publisher,
		routes:      make(map[string]route.Route, len(r.Drivers)),
	}
	if s.zoomDelta == 0 {
		s.zoomDelta = DefaultZoomDelta
	}
	s.log = log.With(zap.String("session", s.ID))

	s.engine = assign.NewEngine(r.Drivers, r.Passengers,
		assign.WithStrategy(opts.Strategy),
		assign.WithMetrics(opts.AssignMetrics),
		assign.WithLogger(s.log),
		assign.WithOnChange(s.rebuildRoutes),
	)
	for _, d := range r.Drivers {
		s.routes[d.ID] = route.Build(d, nil, r.Destination)
	}

	simOpts := opts.Sim
	simOpts.Sink = s
	if simOpts.Logger == nil {
		simOpts.Logger = s.log
	}
	s.sim = sim.New(r.Drivers, r.Passengers, simOpts)
	return s, nil
}

// Start begins the live phase and selects the first vehicle when nothing is
// selected yet.
func (s *Session) Start(ctx context.Context) error {
	if err := s.sim.Start(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	var (
		center fleet.Coordinates
		move   bool
	)
	if s.selected == "" {
		if ds := s.engine.Drivers(); len(ds) > 0 {
			center, move = s.selectLocked(ds[0].ID)
		}
	}
	s.mu.Unlock()

	if move {
		s.view.Recenter(center, s.zoomDelta)
	}
	s.log.Info("tracking session started")
	return nil
}

// Close stops the tick loop. No vehicle state changes afterwards.
func (s *Session) Close() {
	s.sim.Stop()
}

func (s *Session) Assign(passengerID, driverID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Assign(passengerID, driverID)
}

func (s *Session) Unassign(passengerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.Unassign(passengerID)
}

func (s *Session) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.ClearAll()
}

// AutoAssignAll returns the number of passengers placed.
func (s *Session) AutoAssignAll() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.AutoAssignAll()
}

func (s *Session) Load(driverID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Load(driverID)
}

func (s *Session) Assignment() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Snapshot()
}

func (s *Session) Unassigned() []fleet.Passenger {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Unassigned()
}

// Route returns the current route for driverID.
func (s *Session) Route(driverID string) (route.Route, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.routes[driverID]
	return r, ok
}

// MarkPickedUp records that a passenger has boarded.
func (s *Session) MarkPickedUp(passengerID string) error {
	return s.sim.MarkPickedUp(passengerID)
}

func (s *Session) SetVehicleStatus(driverID string, status fleet.VehicleStatus) error {
	return s.sim.SetStatus(driverID, status)
}

// rebuildRoutes runs from the engine's change hook, under s.mu.
func (s *Session) rebuildRoutes(driverIDs ...string) {
	for _, id := range driverIDs {
		d, ok := s.engine.Driver(id)
		if !ok {
			continue
		}
		s.routes[id] = route.Build(d, s.engine.PassengersOf(id), s.destination)
	}
}

// PublishVehicles forwards a tick's vehicles to the position feed with their
// current load attached.
func (s *Session) PublishVehicles(_ context.Context, vehicles []sim.VehicleState) error {
	if s.feed == nil {
		return nil
	}
	msgs := make([]publisher.PositionMessage, 0, len(vehicles))
	s.mu.Lock()
	for _, v := range vehicles {
		capacity, _ := s.engine.Capacity(v.DriverID)
		msgs = append(msgs, publisher.PositionMessage{
			SessionID: s.ID,
			DriverID:  v.DriverID,
			Timestamp: v.UpdatedAt,
			Lat:       v.Coords.Lat,
			Lon:       v.Coords.Lon,
			Geohash:   v.Coords.Geohash(markerGeohashLen),
			Dwell:     v.DwellText,
			Status:    string(v.Status),
			Load:      s.engine.Load(v.DriverID),
			Capacity:  capacity,
		})
	}
	s.mu.Unlock()

	var errs []error
	for _, m := range msgs {
		if err := s.feed.PublishPosition(m); err != nil {
			errs = append(errs, fmt.Errorf("driver %s: %w", m.DriverID, err))
		}
	}
	return errors.Join(errs...)
}
