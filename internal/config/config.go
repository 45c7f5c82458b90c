package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"shuttle-tracker/internal/fleet"
)

type Config struct {
	DatabaseURL string
	Institution string
	RosterID    string
	// Destination is nil when the roster snapshot should supply it.
	Destination *fleet.Coordinates

	TickInterval time.Duration
	JitterDegree float64
	DwellMin     time.Duration
	DwellMax     time.Duration
	ZoomDelta    float64
	AutoAssign   bool
	Seed         int64

	NATSURL           string
	NATSSubjectPrefix string
	LogNATSSubjects   bool
	MetricsAddr       string

	LogLevel  string
	LogFormat string
}

func Load() (*Config, error) {
	// Load .env into environment (ignore if missing)
	_ = godotenv.Load()

	cfg := &Config{}

	// Database URL: prefer DATABASE_URL / PG_DSN, else build from PG* vars
	dsn := firstNonEmpty(
		os.Getenv("DATABASE_URL"),
		os.Getenv("PG_DSN"),
	)
	if dsn == "" {
		host := getenvDefault("PGHOST", "127.0.0.1")
		port := getenvDefault("PGPORT", "5432")
		user := getenvDefault("PGUSER", "postgres")
		pass := os.Getenv("PGPASSWORD")
		db := os.Getenv("PGDATABASE")
		if db == "" {
			return nil, errors.New("PGDATABASE or DATABASE_URL must be set")
		}
		sslmode := getenvDefault("PGSSLMODE", "disable")
		if pass != "" {
			cfg.DatabaseURL = fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", urlEscape(user), urlEscape(pass), host, port, db, sslmode)
		} else {
			cfg.DatabaseURL = fmt.Sprintf("postgres://%s@%s:%s/%s?sslmode=%s", urlEscape(user), host, port, db, sslmode)
		}
	} else {
		cfg.DatabaseURL = dsn
	}

	cfg.Institution = strings.TrimSpace(os.Getenv("INSTITUTION"))
	cfg.RosterID = strings.TrimSpace(os.Getenv("ROSTER_ID"))
	if cfg.Institution == "" && cfg.RosterID == "" {
		return nil, errors.New("INSTITUTION or ROSTER_ID must be set")
	}

	latS, lonS := os.Getenv("DESTINATION_LAT"), os.Getenv("DESTINATION_LON")
	if latS != "" || lonS != "" {
		lat, err := strconv.ParseFloat(latS, 64)
		if err != nil || lat < -90 || lat > 90 {
			return nil, fmt.Errorf("invalid DESTINATION_LAT: %q", latS)
		}
		lon, err := strconv.ParseFloat(lonS, 64)
		if err != nil || lon < -180 || lon > 180 {
			return nil, fmt.Errorf("invalid DESTINATION_LON: %q", lonS)
		}
		cfg.Destination = &fleet.Coordinates{Lat: lat, Lon: lon}
	}

	// Simulator tick
	if v := os.Getenv("TICK_INTERVAL_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			return nil, fmt.Errorf("invalid TICK_INTERVAL_MS: %q", v)
		}
		cfg.TickInterval = time.Duration(ms) * time.Millisecond
	} else {
		cfg.TickInterval = 5 * time.Second
	}

	if v := os.Getenv("JITTER_DEGREES"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return nil, fmt.Errorf("invalid JITTER_DEGREES: %q", v)
		}
		cfg.JitterDegree = f
	} else {
		cfg.JitterDegree = 1e-4
	}

	minM, err := getenvInt("DWELL_MIN_MINUTES", 1)
	if err != nil || minM < 1 {
		return nil, fmt.Errorf("invalid DWELL_MIN_MINUTES: %q", os.Getenv("DWELL_MIN_MINUTES"))
	}
	maxM, err := getenvInt("DWELL_MAX_MINUTES", 10)
	if err != nil || maxM < minM {
		return nil, fmt.Errorf("invalid DWELL_MAX_MINUTES: %q", os.Getenv("DWELL_MAX_MINUTES"))
	}
	cfg.DwellMin = time.Duration(minM) * time.Minute
	cfg.DwellMax = time.Duration(maxM) * time.Minute

	if v := os.Getenv("RECENTER_ZOOM_DELTA"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return nil, fmt.Errorf("invalid RECENTER_ZOOM_DELTA: %q", v)
		}
		cfg.ZoomDelta = f
	} else {
		cfg.ZoomDelta = 0.01
	}

	cfg.AutoAssign = true
	if v := os.Getenv("AUTO_ASSIGN"); v != "" {
		cfg.AutoAssign = parseBool(v)
	}

	if v := os.Getenv("RNG_SEED"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid RNG_SEED: %q", v)
		}
		cfg.Seed = n
	}

	// An explicitly empty NATS_URL disables the position feed.
	if v, ok := os.LookupEnv("NATS_URL"); ok {
		cfg.NATSURL = strings.TrimSpace(v)
	} else {
		cfg.NATSURL = "nats://127.0.0.1:4222"
	}
	cfg.NATSSubjectPrefix = getenvDefault("NATS_SUBJECT_PREFIX", "vehicles")
	if v := os.Getenv("LOG_NATS_SUBJECTS"); v != "" {
		cfg.LogNATSSubjects = parseBool(v)
	}

	// Metrics listen address (e.g., ":9102"). Empty disables the metrics server.
	cfg.MetricsAddr = os.Getenv("METRICS_ADDR")

	cfg.LogLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.LogFormat = getenvDefault("LOG_FORMAT", "json")

	return cfg, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	}
	return false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func urlEscape(s string) string {
	// Minimal escape for DSN user/pass with special chars
	r := strings.NewReplacer("@", "%40", ":", "%3A", "/", "%2F", "?", "%3F", "#", "%23")
	return r.Replace(s)
}
