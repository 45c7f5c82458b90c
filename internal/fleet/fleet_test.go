package fleet

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Clock
		wantErr bool
	}{
		{name: "hours and minutes", in: "08:15", want: 8*3600 + 15*60},
		{name: "with seconds", in: "08:15:30", want: 8*3600 + 15*60 + 30},
		{name: "past midnight", in: "25:00", want: 25 * 3600},
		{name: "padded", in: " 7:05 ", want: 7*3600 + 5*60},
		{name: "missing minutes", in: "8", wantErr: true},
		{name: "bad minutes", in: "08:75", wantErr: true},
		{name: "not a number", in: "ab:cd", wantErr: true},
		{name: "negative", in: "-1:00", wantErr: true},
		{name: "fractional seconds", in: "08:15:00.5", want: 8*3600 + 15*60},
		{name: "microseconds", in: "08:15:30.000250", want: 8*3600 + 15*60 + 30},
		{name: "empty fraction", in: "08:15:30.", wantErr: true},
		{name: "fraction on minutes", in: "08:15.5", wantErr: true},
		{name: "plus sign", in: "+8:00", wantErr: true},
		{name: "signed minutes", in: "08:+5", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClockStringAndJSON(t *testing.T) {
	assert.Equal(t, "08:30", MustClock("8:30").String())
	assert.Equal(t, "08:30:05", MustClock("8:30:05").String())

	b, err := MustClock("08:45").MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"08:45"`, string(b))

	var c Clock
	require.NoError(t, c.UnmarshalJSON([]byte(`"09:10"`)))
	assert.Equal(t, MustClock("09:10"), c)
	assert.Error(t, c.UnmarshalJSON([]byte(`"nope"`)))
}

func TestCoordinatesGeohash(t *testing.T) {
	c := Coordinates{Lat: 57.64911, Lon: 10.40744}
	assert.Equal(t, "u4pruydqqvj", c.Geohash(11))
	assert.Equal(t, "u4pru", c.Geohash(5))
}

func TestRosterValidate(t *testing.T) {
	ok := Roster{
		Drivers:    []Driver{{ID: "d1", Capacity: 2}, {ID: "d2", Capacity: 1}},
		Passengers: []Passenger{{ID: "p1"}, {ID: "p2"}},
	}
	assert.NoError(t, ok.Validate())

	tests := []struct {
		name   string
		roster Roster
	}{
		{name: "zero capacity", roster: Roster{Drivers: []Driver{{ID: "d1", Capacity: 0}}}},
		{name: "duplicate driver", roster: Roster{Drivers: []Driver{{ID: "d1", Capacity: 1}, {ID: "d1", Capacity: 1}}}},
		{name: "empty driver id", roster: Roster{Drivers: []Driver{{Capacity: 1}}}},
		{name: "duplicate passenger", roster: Roster{Passengers: []Passenger{{ID: "p"}, {ID: "p"}}}},
		{name: "empty passenger id", roster: Roster{Passengers: []Passenger{{}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.roster.Validate()
			assert.True(t, errors.Is(err, ErrInvalidRoster), "got %v", err)
		})
	}
}

func TestVehicleStatusValid(t *testing.T) {
	assert.True(t, VehicleActive.Valid())
	assert.True(t, VehicleMaintenance.Valid())
	assert.False(t, VehicleStatus("parked").Valid())
}
