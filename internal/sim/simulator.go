// Package sim moves vehicles on a fixed tick without a real location feed
// and keeps per-passenger pickup status.
package sim

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"shuttle-tracker/internal/fleet"
)

var (
	ErrStopped          = errors.New("simulator stopped")
	ErrAlreadyStarted   = errors.New("simulator already started")
	ErrUnknownPassenger = errors.New("unknown passenger")
	ErrUnknownVehicle   = errors.New("unknown vehicle")
)

const (
	DefaultInterval     = 5 * time.Second
	DefaultJitterDegree = 1e-4
	DefaultDwellMin     = time.Minute
	DefaultDwellMax     = 10 * time.Minute
)

// VehicleState is the live, simulated view of one driver's vehicle.
type VehicleState struct {
	DriverID  string              `json:"driverId"`
	Coords    fleet.Coordinates   `json:"coordinates"`
	Dwell     time.Duration       `json:"dwell"`
	DwellText string              `json:"dwellText"`
	Status    fleet.VehicleStatus `json:"status"`
	UpdatedAt time.Time           `json:"updatedAt"`
}

// Sink receives every vehicle after each tick.
type Sink interface {
	PublishVehicles(ctx context.Context, vehicles []VehicleState) error
}

type Metrics interface {
	TickObserve(d time.Duration)
	SetActiveVehicles(n int)
	PickupInc()
}

type Options struct {
	Interval time.Duration
	Jitter   JitterFunc
	Dwell    DwellFunc
	Sink     Sink
	Metrics  Metrics
	Logger   *zap.Logger
}

type runState int

const (
	stateIdle runState = iota
	stateRunning
	stateStopped
)

type Simulator struct {
	interval time.Duration
	jitter   JitterFunc
	dwell    DwellFunc
	sink     Sink
	metrics  Metrics
	log      *zap.Logger

	mu       sync.Mutex
	state    runState
	order    []string
	vehicles map[string]*VehicleState
	pickup   map[string]fleet.PickupStatus

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New places every vehicle at its driver's start location, inactive, and every
// passenger in pending. Missing jitter/dwell functions default to the random
// ones.
func New(drivers []fleet.Driver, passengers []fleet.Passenger, opts Options) *Simulator {
	s := &Simulator{
		interval: opts.Interval,
		jitter:   opts.Jitter,
		dwell:    opts.Dwell,
		sink:     opts.Sink,
		metrics:  opts.Metrics,
		log:      opts.Logger,
		vehicles: make(map[string]*VehicleState, len(drivers)),
		pickup:   make(map[string]fleet.PickupStatus, len(passengers)),
	}
	if s.interval <= 0 {
		s.interval = DefaultInterval
	}
	if s.jitter == nil || s.dwell == nil {
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		if s.jitter == nil {
			s.jitter = RandomJitter(rng, DefaultJitterDegree)
		}
		if s.dwell == nil {
			s.dwell = RandomDwell(rng, DefaultDwellMin, DefaultDwellMax)
		}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	for _, d := range drivers {
		s.order = append(s.order, d.ID)
		s.vehicles[d.ID] = &VehicleState{
			DriverID:  d.ID,
			Coords:    d.Start,
			DwellText: FormatDwell(0),
			Status:    fleet.VehicleInactive,
		}
	}
	for _, p := range passengers {
		s.pickup[p.ID] = fleet.PickupPending
	}
	return s
}

// Start activates every vehicle not in maintenance and launches the tick
// loop. The loop ends when ctx is cancelled or Stop is called.
func (s *Simulator) Start(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case stateRunning:
		s.mu.Unlock()
		return ErrAlreadyStarted
	case stateStopped:
		s.mu.Unlock()
		return ErrStopped
	}
	s.state = stateRunning
	active := 0
	for _, v := range s.vehicles {
		if v.Status != fleet.VehicleMaintenance {
			v.Status = fleet.VehicleActive
			active++
		}
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.SetActiveVehicles(active)
	}
	s.log.Info("simulator started", zap.Int("vehicles", len(s.order)), zap.Duration("interval", s.interval))

	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.Tick(ctx, now)
			}
		}
	}()
	return nil
}

// Stop cancels the tick loop and waits for it to exit. Vehicles go inactive
// and later ticks are ignored. Safe to call more than once.
func (s *Simulator) Stop() {
	s.mu.Lock()
	if s.state == stateStopped {
		s.mu.Unlock()
		return
	}
	s.state = stateStopped
	for _, v := range s.vehicles {
		if v.Status == fleet.VehicleActive {
			v.Status = fleet.VehicleInactive
		}
	}
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
	if s.metrics != nil {
		s.metrics.SetActiveVehicles(0)
	}
	s.log.Info("simulator stopped")
}

// Tick advances every active vehicle once. It does nothing unless the
// simulator is running.
func (s *Simulator) Tick(ctx context.Context, now time.Time) {
	start := time.Now()
	snapshot, ok := s.advance(now)
	if !ok {
		return
	}
	s.publish(ctx, snapshot)
	if s.metrics != nil {
		s.metrics.TickObserve(time.Since(start))
	}
}

func (s *Simulator) advance(now time.Time) ([]VehicleState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != stateRunning {
		return nil, false
	}
	snapshot := make([]VehicleState, 0, len(s.order))
	for _, id := range s.order {
		v := s.vehicles[id]
		if v.Status == fleet.VehicleActive {
			dLat, dLon := s.jitter()
			v.Coords.Lat += dLat
			v.Coords.Lon += dLon
			v.Dwell = s.dwell()
			v.DwellText = FormatDwell(v.Dwell)
			v.UpdatedAt = now
		}
		snapshot = append(snapshot, *v)
	}
	return snapshot, true
}

// publish hands a snapshot to the sink unless Stop ran since it was taken.
func (s *Simulator) publish(ctx context.Context, snapshot []VehicleState) {
	if s.sink == nil || !s.Running() {
		return
	}
	if err := s.sink.PublishVehicles(ctx, snapshot); err != nil {
		s.log.Warn("publish vehicles", zap.Error(err))
	}
}

// MarkPickedUp flips a passenger to done. There is no automatic arrival
// detection; callers decide when a pickup happened.
func (s *Simulator) MarkPickedUp(passengerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateStopped {
		return ErrStopped
	}
	st, ok := s.pickup[passengerID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPassenger, passengerID)
	}
	if st == fleet.PickupDone {
		return nil
	}
	s.pickup[passengerID] = fleet.PickupDone
	if s.metrics != nil {
		s.metrics.PickupInc()
	}
	return nil
}

func (s *Simulator) PickupStatus(passengerID string) (fleet.PickupStatus, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.pickup[passengerID]
	return st, ok
}

// SetStatus overrides a vehicle's tag, e.g. to park it in maintenance.
// Setting active on an idle simulator is deferred until Start.
func (s *Simulator) SetStatus(driverID string, status fleet.VehicleStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid vehicle status %q", status)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == stateStopped {
		return ErrStopped
	}
	v, ok := s.vehicles[driverID]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownVehicle, driverID)
	}
	if status == fleet.VehicleActive && s.state == stateIdle {
		status = fleet.VehicleInactive
	}
	v.Status = status
	if s.metrics != nil {
		s.metrics.SetActiveVehicles(s.activeLocked())
	}
	return nil
}

func (s *Simulator) Vehicle(driverID string) (VehicleState, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vehicles[driverID]
	if !ok {
		return VehicleState{}, false
	}
	return *v, true
}

// Vehicles returns every vehicle in roster order.
func (s *Simulator) Vehicles() []VehicleState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]VehicleState, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.vehicles[id])
	}
	return out
}

func (s *Simulator) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == stateRunning
}

func (s *Simulator) activeLocked() int {
	n := 0
	for _, v := range s.vehicles {
		if v.Status == fleet.VehicleActive {
			n++
		}
	}
	return n
}
