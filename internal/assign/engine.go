// Package assign keeps the passenger to driver mapping and enforces vehicle
// capacity.
package assign

import (
	"fmt"
	"slices"

	"go.uber.org/zap"

	"shuttle-tracker/internal/fleet"
)

// Metrics receives assignment counters.
type Metrics interface {
	AssignmentInc(op string)
	RejectionInc(reason string)
	SetUnassigned(n int)
}

// Engine is not safe for concurrent use; the owner serialises access.
type Engine struct {
	drivers    []fleet.Driver
	driverIdx  map[string]int
	passengers []fleet.Passenger
	passIdx    map[string]int

	byPassenger map[string]string // passengerID -> driverID
	load        map[string]int    // driverID -> assigned count

	strategy Strategy
	onChange func(driverIDs ...string)
	metrics  Metrics
	log      *zap.Logger
}

type Option func(*Engine)

// WithStrategy replaces the auto assignment heuristic.
func WithStrategy(s Strategy) Option {
	return func(e *Engine) {
		if s != nil {
			e.strategy = s
		}
	}
}

// WithOnChange registers a hook called with every driver whose passenger set
// changed, after the change is applied.
func WithOnChange(fn func(driverIDs ...string)) Option {
	return func(e *Engine) { e.onChange = fn }
}

func WithMetrics(m Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

func NewEngine(drivers []fleet.Driver, passengers []fleet.Passenger, opts ...Option) *Engine {
	drivers = slices.Clone(drivers)
	passengers = slices.Clone(passengers)
	e := &Engine{
		drivers:     drivers,
		driverIdx:   make(map[string]int, len(drivers)),
		passengers:  passengers,
		passIdx:     make(map[string]int, len(passengers)),
		byPassenger: make(map[string]string),
		load:        make(map[string]int, len(drivers)),
		strategy:    LeastLoaded{},
		log:         zap.NewNop(),
	}
	for i, d := range drivers {
		e.driverIdx[d.ID] = i
	}
	for i, p := range passengers {
		e.passIdx[p.ID] = i
	}
	for _, o := range opts {
		o(e)
	}
	e.reportUnassigned()
	return e
}

// Assign maps passengerID to driverID, moving it off any previous driver.
// Re-assigning a passenger to the driver it already rides with is a no-op.
func (e *Engine) Assign(passengerID, driverID string) error {
	if _, ok := e.passIdx[passengerID]; !ok {
		e.reject("unknown_entity")
		return fmt.Errorf("%w: passenger %q", ErrUnknownEntity, passengerID)
	}
	di, ok := e.driverIdx[driverID]
	if !ok {
		e.reject("unknown_entity")
		return fmt.Errorf("%w: driver %q", ErrUnknownEntity, driverID)
	}
	prev, had := e.byPassenger[passengerID]
	if had && prev == driverID {
		return nil
	}
	d := e.drivers[di]
	if e.load[driverID] >= d.Capacity {
		e.reject("capacity_exceeded")
		e.log.Debug("assignment rejected",
			zap.String("passenger", passengerID),
			zap.String("driver", driverID),
			zap.Int("capacity", d.Capacity))
		return fmt.Errorf("%w: driver %q holds %d/%d", ErrCapacityExceeded, driverID, e.load[driverID], d.Capacity)
	}
	if had {
		e.load[prev]--
	}
	e.byPassenger[passengerID] = driverID
	e.load[driverID]++
	e.count("assign")
	if had {
		e.changed(prev, driverID)
	} else {
		e.changed(driverID)
	}
	return nil
}

// Unassign removes the mapping for passengerID. Unknown or unassigned
// passengers are a no-op.
func (e *Engine) Unassign(passengerID string) {
	prev, had := e.byPassenger[passengerID]
	if !had {
		return
	}
	delete(e.byPassenger, passengerID)
	e.load[prev]--
	e.count("unassign")
	e.changed(prev)
}

// ClearAll drops every mapping and notifies every driver.
func (e *Engine) ClearAll() {
	e.byPassenger = make(map[string]string)
	e.load = make(map[string]int, len(e.drivers))
	e.count("clear_all")
	ids := make([]string, len(e.drivers))
	for i, d := range e.drivers {
		ids[i] = d.ID
	}
	e.changed(ids...)
}

// AutoAssignAll places every unassigned passenger, in roster order, using the
// configured strategy. Passengers that fit nowhere stay unassigned. It returns
// how many passengers were placed.
func (e *Engine) AutoAssignAll() int {
	touched := make(map[string]struct{})
	placed := 0
	candidates := make([]Candidate, 0, len(e.drivers))
	for _, p := range e.passengers {
		if _, had := e.byPassenger[p.ID]; had {
			continue
		}
		candidates = candidates[:0]
		for _, d := range e.drivers {
			if l := e.load[d.ID]; l < d.Capacity {
				candidates = append(candidates, Candidate{Driver: d, Load: l})
			}
		}
		id, ok := e.strategy.Pick(p, candidates)
		if !ok {
			continue
		}
		di, known := e.driverIdx[id]
		if !known || e.load[id] >= e.drivers[di].Capacity {
			e.log.Warn("strategy picked an unavailable driver", zap.String("driver", id))
			continue
		}
		e.byPassenger[p.ID] = id
		e.load[id]++
		touched[id] = struct{}{}
		placed++
	}
	e.log.Info("auto assignment finished",
		zap.Int("placed", placed),
		zap.Int("unassigned", len(e.passengers)-len(e.byPassenger)))
	if placed == 0 {
		return 0
	}
	e.count("auto_assign")
	ids := make([]string, 0, len(touched))
	for _, d := range e.drivers {
		if _, ok := touched[d.ID]; ok {
			ids = append(ids, d.ID)
		}
	}
	e.changed(ids...)
	return placed
}

// Load is the number of passengers assigned to driverID; zero for unknown ids.
func (e *Engine) Load(driverID string) int { return e.load[driverID] }

func (e *Engine) Capacity(driverID string) (int, bool) {
	i, ok := e.driverIdx[driverID]
	if !ok {
		return 0, false
	}
	return e.drivers[i].Capacity, true
}

// DriverFor reports which driver passengerID is assigned to.
func (e *Engine) DriverFor(passengerID string) (string, bool) {
	d, ok := e.byPassenger[passengerID]
	return d, ok
}

// PassengersOf returns driverID's passengers in roster order.
func (e *Engine) PassengersOf(driverID string) []fleet.Passenger {
	var out []fleet.Passenger
	for _, p := range e.passengers {
		if e.byPassenger[p.ID] == driverID {
			out = append(out, p)
		}
	}
	return out
}

// Unassigned returns passengers without a driver in roster order.
func (e *Engine) Unassigned() []fleet.Passenger {
	var out []fleet.Passenger
	for _, p := range e.passengers {
		if _, ok := e.byPassenger[p.ID]; !ok {
			out = append(out, p)
		}
	}
	return out
}

// Snapshot copies the current mapping.
func (e *Engine) Snapshot() map[string]string {
	out := make(map[string]string, len(e.byPassenger))
	for k, v := range e.byPassenger {
		out[k] = v
	}
	return out
}

func (e *Engine) Driver(id string) (fleet.Driver, bool) {
	i, ok := e.driverIdx[id]
	if !ok {
		return fleet.Driver{}, false
	}
	return e.drivers[i], true
}

func (e *Engine) Drivers() []fleet.Driver { return slices.Clone(e.drivers) }

func (e *Engine) changed(ids ...string) {
	e.reportUnassigned()
	if e.onChange != nil && len(ids) > 0 {
		e.onChange(ids...)
	}
}

func (e *Engine) count(op string) {
	if e.metrics != nil {
		e.metrics.AssignmentInc(op)
	}
}

func (e *Engine) reject(reason string) {
	if e.metrics != nil {
		e.metrics.RejectionInc(reason)
	}
}

func (e *Engine) reportUnassigned() {
	if e.metrics != nil {
		e.metrics.SetUnassigned(len(e.passengers) - len(e.byPassenger))
	}
}
