package assign

import "shuttle-tracker/internal/fleet"

// Candidate is a driver that still has at least one free seat.
type Candidate struct {
	Driver fleet.Driver
	Load   int
}

// Strategy picks a driver for a passenger during auto assignment. Candidates
// are passed in roster order. Returning ok=false leaves the passenger
// unassigned.
type Strategy interface {
	Pick(p fleet.Passenger, candidates []Candidate) (driverID string, ok bool)
}

// LeastLoaded picks the candidate with the fewest assigned passengers, first
// in roster order on ties. It ignores geography.
type LeastLoaded struct{}

func (LeastLoaded) Pick(_ fleet.Passenger, candidates []Candidate) (string, bool) {
	best := -1
	for i, c := range candidates {
		if best < 0 || c.Load < candidates[best].Load {
			best = i
		}
	}
	if best < 0 {
		return "", false
	}
	return candidates[best].Driver.ID, true
}
