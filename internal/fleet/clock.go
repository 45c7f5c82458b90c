package fleet

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Clock is a time of day in seconds since midnight. Values past 24h are
// allowed for service days that run over midnight.
type Clock int

// ParseClock parses HH:MM or HH:MM:SS[.fff]. Fractions are truncated.
func ParseClock(s string) (Clock, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	// Fractional seconds, as Postgres prints them for time(n), are dropped.
	if len(parts) == 3 {
		if sec, frac, ok := strings.Cut(parts[2], "."); ok {
			if frac == "" || strings.Trim(frac, "0123456789") != "" {
				return 0, fmt.Errorf("invalid clock %q", s)
			}
			parts[2] = sec
		}
	}
	vals := make([]int, 3)
	for i, p := range parts {
		if p == "" || p[0] == '+' || p[0] == '-' {
			return 0, fmt.Errorf("invalid clock %q", s)
		}
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("invalid clock %q", s)
		}
		vals[i] = v
	}
	if vals[1] > 59 || vals[2] > 59 {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	return Clock(vals[0]*3600 + vals[1]*60 + vals[2]), nil
}

// MustClock is ParseClock for literals; it panics on malformed input.
func MustClock(s string) Clock {
	c, err := ParseClock(s)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Clock) String() string {
	sec := int(c)
	h, m, s := sec/3600, (sec%3600)/60, sec%60
	if s == 0 {
		return fmt.Sprintf("%02d:%02d", h, m)
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func (c Clock) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Clock) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	v, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = v
	return nil
}
