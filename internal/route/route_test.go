package route

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shuttle-tracker/internal/fleet"
)

var (
	campus = fleet.Coordinates{Lat: 40.4168, Lon: -3.7038}
	depot  = fleet.Coordinates{Lat: 40.4500, Lon: -3.6900}
)

func passenger(id, at string, lat, lon float64) fleet.Passenger {
	return fleet.Passenger{ID: id, Name: "P " + id, PickupTime: fleet.MustClock(at), Pickup: fleet.Coordinates{Lat: lat, Lon: lon}}
}

func TestBuild_Empty(t *testing.T) {
	r := Build(fleet.Driver{ID: "d1", Start: depot}, nil, campus)
	assert.True(t, r.Empty())
	assert.Empty(t, r.Waypoints())
	assert.Zero(t, r.LengthMeters())
	assert.Equal(t, "d1", r.DriverID)
}

func TestBuild_Shape(t *testing.T) {
	ps := []fleet.Passenger{
		passenger("c", "08:45", 40.43, -3.70),
		passenger("a", "08:15", 40.44, -3.69),
		passenger("b", "08:30", 40.435, -3.695),
	}
	r := Build(fleet.Driver{ID: "d1", Start: depot}, ps, campus)

	pts := r.Waypoints()
	require.Len(t, pts, len(ps)+2)
	assert.Equal(t, depot, pts[0])
	assert.Equal(t, campus, pts[len(pts)-1])

	ids := make([]string, len(r.Stops))
	for i, s := range r.Stops {
		ids[i] = s.Passenger.ID
		assert.Equal(t, i+1, s.Index)
		assert.Equal(t, s.Coords, pts[i+1])
		if i > 0 {
			assert.LessOrEqual(t, r.Stops[i-1].PickupTime, s.PickupTime)
		}
	}
	assert.Equal(t, []string{"a", "b", "c"}, ids)
	// input slice untouched
	assert.Equal(t, "c", ps[0].ID)
}

func TestBuild_EqualTimesKeepInputOrder(t *testing.T) {
	ps := []fleet.Passenger{
		passenger("x", "08:30", 0, 0),
		passenger("y", "08:00", 0, 0),
		passenger("z", "08:30", 0, 0),
	}
	r := Build(fleet.Driver{ID: "d"}, ps, campus)
	assert.Equal(t, "y", r.Stops[0].Passenger.ID)
	assert.Equal(t, "x", r.Stops[1].Passenger.ID)
	assert.Equal(t, "z", r.Stops[2].Passenger.ID)
}

func TestHaversine(t *testing.T) {
	assert.InDelta(t, 0, Haversine(campus, campus), 1e-9)
	// one degree of latitude is ~111.2 km
	d := Haversine(fleet.Coordinates{Lat: 0, Lon: 0}, fleet.Coordinates{Lat: 1, Lon: 0})
	assert.InDelta(t, 111195, d, 50)
}

func TestLengthMeters(t *testing.T) {
	r := Build(fleet.Driver{ID: "d", Start: fleet.Coordinates{Lat: 0, Lon: 0}},
		[]fleet.Passenger{passenger("a", "08:00", 1, 0)},
		fleet.Coordinates{Lat: 2, Lon: 0})
	assert.InDelta(t, 2*111195, r.LengthMeters(), 100)
}
