package sim

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shuttle-tracker/internal/fleet"
)

var (
	drivers = []fleet.Driver{
		{ID: "d1", Capacity: 4, Start: fleet.Coordinates{Lat: 10, Lon: 20}},
		{ID: "d2", Capacity: 4, Start: fleet.Coordinates{Lat: -5, Lon: 3}},
	}
	passengers = []fleet.Passenger{{ID: "p1"}, {ID: "p2"}}
)

type captureSink struct {
	mu    sync.Mutex
	calls [][]VehicleState
	err   error
}

func (c *captureSink) PublishVehicles(_ context.Context, vs []VehicleState) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, vs)
	return c.err
}

func (c *captureSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.calls)
}

func newTestSim(sink Sink) *Simulator {
	return New(drivers, passengers, Options{
		Interval: time.Hour,
		Jitter:   FixedJitter(0.0001, -0.0002),
		Dwell:    FixedDwell(3 * time.Minute),
		Sink:     sink,
	})
}

func TestNew_InitialState(t *testing.T) {
	s := newTestSim(nil)
	vs := s.Vehicles()
	require.Len(t, vs, 2)
	assert.Equal(t, "d1", vs[0].DriverID)
	assert.Equal(t, drivers[0].Start, vs[0].Coords)
	assert.Equal(t, fleet.VehicleInactive, vs[0].Status)
	assert.Equal(t, "0 min", vs[0].DwellText)

	st, ok := s.PickupStatus("p1")
	assert.True(t, ok)
	assert.Equal(t, fleet.PickupPending, st)
	assert.False(t, s.Running())
}

func TestTick_IgnoredBeforeStart(t *testing.T) {
	sink := &captureSink{}
	s := newTestSim(sink)
	s.Tick(context.Background(), time.Now())
	v, _ := s.Vehicle("d1")
	assert.Equal(t, drivers[0].Start, v.Coords)
	assert.Zero(t, sink.count())
}

func TestTick_MovesActiveVehicles(t *testing.T) {
	sink := &captureSink{}
	s := newTestSim(sink)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	now := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	s.Tick(context.Background(), now)
	s.Tick(context.Background(), now.Add(5*time.Second))

	v, ok := s.Vehicle("d1")
	require.True(t, ok)
	assert.InDelta(t, 10.0002, v.Coords.Lat, 1e-9)
	assert.InDelta(t, 19.9996, v.Coords.Lon, 1e-9)
	assert.Equal(t, 3*time.Minute, v.Dwell)
	assert.Equal(t, "3 min", v.DwellText)
	assert.Equal(t, fleet.VehicleActive, v.Status)
	assert.Equal(t, now.Add(5*time.Second), v.UpdatedAt)

	require.Equal(t, 2, sink.count())
	assert.Len(t, sink.calls[1], 2)
}

func TestTick_MaintenanceVehicleStaysPut(t *testing.T) {
	s := newTestSim(nil)
	require.NoError(t, s.SetStatus("d2", fleet.VehicleMaintenance))
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()

	s.Tick(context.Background(), time.Now())

	v, _ := s.Vehicle("d2")
	assert.Equal(t, fleet.VehicleMaintenance, v.Status)
	assert.Equal(t, drivers[1].Start, v.Coords)
}

func TestTick_SinkErrorDoesNotStopSimulation(t *testing.T) {
	sink := &captureSink{err: errors.New("boom")}
	s := newTestSim(sink)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()
	s.Tick(context.Background(), time.Now())
	s.Tick(context.Background(), time.Now())
	assert.Equal(t, 2, sink.count())
}

func TestTick_NoPublishOnceStopped(t *testing.T) {
	sink := &captureSink{}
	s := newTestSim(sink)
	require.NoError(t, s.Start(context.Background()))

	snapshot, ok := s.advance(time.Now())
	require.True(t, ok)
	require.Len(t, snapshot, 2)

	s.Stop()
	s.publish(context.Background(), snapshot)
	assert.Zero(t, sink.count())
}

func TestStart_Twice(t *testing.T) {
	s := newTestSim(nil)
	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyStarted)
	s.Stop()
	assert.ErrorIs(t, s.Start(context.Background()), ErrStopped)
}

func TestStop_HaltsTickLoop(t *testing.T) {
	sink := &captureSink{}
	s := New(drivers, passengers, Options{
		Interval: 5 * time.Millisecond,
		Jitter:   FixedJitter(1, 1),
		Dwell:    FixedDwell(time.Minute),
		Sink:     sink,
	})
	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return sink.count() >= 2 }, 2*time.Second, 5*time.Millisecond)

	s.Stop()
	after := sink.count()
	frozen, _ := s.Vehicle("d1")

	time.Sleep(30 * time.Millisecond)
	s.Tick(context.Background(), time.Now())

	assert.Equal(t, after, sink.count())
	v, _ := s.Vehicle("d1")
	assert.Equal(t, frozen.Coords, v.Coords)
	assert.Equal(t, fleet.VehicleInactive, v.Status)
	assert.False(t, s.Running())

	// idempotent
	s.Stop()
}

func TestStart_ContextCancelEndsLoop(t *testing.T) {
	sink := &captureSink{}
	s := New(drivers, passengers, Options{Interval: 5 * time.Millisecond, Jitter: FixedJitter(0, 0), Dwell: FixedDwell(0), Sink: sink})
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	require.Eventually(t, func() bool { return sink.count() >= 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	s.Stop()
}

func TestMarkPickedUp(t *testing.T) {
	s := newTestSim(nil)

	require.NoError(t, s.MarkPickedUp("p1"))
	require.NoError(t, s.MarkPickedUp("p1"))
	st, _ := s.PickupStatus("p1")
	assert.Equal(t, fleet.PickupDone, st)
	st, _ = s.PickupStatus("p2")
	assert.Equal(t, fleet.PickupPending, st)

	assert.ErrorIs(t, s.MarkPickedUp("ghost"), ErrUnknownPassenger)

	s.Stop()
	assert.ErrorIs(t, s.MarkPickedUp("p2"), ErrStopped)
}

func TestTickNeverChangesPickupStatus(t *testing.T) {
	s := newTestSim(nil)
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()
	for i := 0; i < 10; i++ {
		s.Tick(context.Background(), time.Now())
	}
	for _, p := range passengers {
		st, _ := s.PickupStatus(p.ID)
		assert.Equal(t, fleet.PickupPending, st)
	}
}

func TestSetStatus(t *testing.T) {
	s := newTestSim(nil)
	assert.Error(t, s.SetStatus("d1", fleet.VehicleStatus("parked")))
	assert.ErrorIs(t, s.SetStatus("ghost", fleet.VehicleMaintenance), ErrUnknownVehicle)

	// active before start is deferred
	require.NoError(t, s.SetStatus("d1", fleet.VehicleActive))
	v, _ := s.Vehicle("d1")
	assert.Equal(t, fleet.VehicleInactive, v.Status)

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.SetStatus("d1", fleet.VehicleMaintenance))
	require.NoError(t, s.SetStatus("d1", fleet.VehicleActive))
	v, _ = s.Vehicle("d1")
	assert.Equal(t, fleet.VehicleActive, v.Status)

	s.Stop()
	assert.ErrorIs(t, s.SetStatus("d1", fleet.VehicleActive), ErrStopped)
}

func TestRandomJitterBounded(t *testing.T) {
	j := RandomJitter(rand.New(rand.NewSource(42)), 1e-4)
	for i := 0; i < 1000; i++ {
		dLat, dLon := j()
		assert.LessOrEqual(t, dLat, 1e-4)
		assert.GreaterOrEqual(t, dLat, -1e-4)
		assert.LessOrEqual(t, dLon, 1e-4)
		assert.GreaterOrEqual(t, dLon, -1e-4)
	}
}

func TestRandomDwellBounded(t *testing.T) {
	d := RandomDwell(rand.New(rand.NewSource(7)), time.Minute, 10*time.Minute)
	seen := map[time.Duration]bool{}
	for i := 0; i < 2000; i++ {
		v := d()
		assert.GreaterOrEqual(t, v, time.Minute)
		assert.LessOrEqual(t, v, 10*time.Minute)
		assert.Zero(t, v%time.Minute)
		seen[v] = true
	}
	assert.Len(t, seen, 10)
}

func TestFormatDwell(t *testing.T) {
	assert.Equal(t, "0 min", FormatDwell(0))
	assert.Equal(t, "7 min", FormatDwell(7*time.Minute+20*time.Second))
}
