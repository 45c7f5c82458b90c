package main

import (
	"context"
	"log"
	"math/rand"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"shuttle-tracker/internal/config"
	"shuttle-tracker/internal/db"
	"shuttle-tracker/internal/fleet"
	"shuttle-tracker/internal/logger"
	"shuttle-tracker/internal/metrics"
	"shuttle-tracker/internal/publisher"
	"shuttle-tracker/internal/sim"
	"shuttle-tracker/internal/tracking"
)

func main() {
	// Load configuration from .env and environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	lg := logger.New(cfg.LogLevel, cfg.LogFormat)
	defer lg.Sync()

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	roster, rosterID := loadRoster(ctx, cfg, lg)
	lg.Info("roster loaded",
		zap.String("roster", rosterID),
		zap.Int("drivers", len(roster.Drivers)),
		zap.Int("passengers", len(roster.Passengers)))

	// Metrics setup
	var mcol *metrics.Collector
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector(cfg.TickInterval)
		srv := mcol.Serve(cfg.MetricsAddr, lg)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	opts := tracking.Options{
		MapView:   logMapView{log: lg},
		ZoomDelta: cfg.ZoomDelta,
		Logger:    lg,
		Sim:       simOptions(cfg),
	}
	if mcol != nil {
		opts.AssignMetrics = mcol
		opts.Sim.Metrics = mcol
	}

	if cfg.NATSURL != "" {
		pub, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix, cfg.LogNATSSubjects, publisherMetrics(mcol), lg)
		if err != nil {
			lg.Fatal("nats error", zap.Error(err))
		}
		defer pub.Close()
		opts.Publisher = pub
	}

	session, err := tracking.NewSession(roster, opts)
	if err != nil {
		lg.Fatal("session error", zap.Error(err))
	}
	if cfg.AutoAssign {
		placed := session.AutoAssignAll()
		if left := len(session.Unassigned()); left > 0 {
			lg.Warn("passengers left without a seat", zap.Int("placed", placed), zap.Int("unassigned", left))
		}
	}
	if err := session.Start(ctx); err != nil {
		lg.Fatal("start session", zap.Error(err))
	}

	// Block until context cancelled
	<-ctx.Done()
	session.Close()
	lg.Info("shutdown complete")
}

func loadRoster(ctx context.Context, cfg *config.Config, lg *zap.Logger) (fleet.Roster, string) {
	sqlDB, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		lg.Fatal("db open error", zap.Error(err))
	}
	defer sqlDB.Close()
	if err := db.Ping(ctx, sqlDB); err != nil {
		lg.Fatal("db ping error", zap.Error(err))
	}
	roster, id, err := db.LoadRoster(ctx, sqlDB, db.Source{
		Institution: cfg.Institution,
		RosterID:    cfg.RosterID,
		Destination: cfg.Destination,
	})
	if err != nil {
		lg.Fatal("load roster", zap.Error(err))
	}
	return roster, id
}

func simOptions(cfg *config.Config) sim.Options {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	return sim.Options{
		Interval: cfg.TickInterval,
		Jitter:   sim.RandomJitter(rng, cfg.JitterDegree),
		Dwell:    sim.RandomDwell(rng, cfg.DwellMin, cfg.DwellMax),
	}
}

// publisherMetrics avoids handing the publisher a typed nil collector.
func publisherMetrics(c *metrics.Collector) publisher.PublisherMetrics {
	if c == nil {
		return nil
	}
	return c
}

// logMapView stands in for a map widget when running headless.
type logMapView struct{ log *zap.Logger }

func (v logMapView) Recenter(center fleet.Coordinates, zoomDelta float64) {
	v.log.Info("map recenter",
		zap.Float64("lat", center.Lat),
		zap.Float64("lon", center.Lon),
		zap.Float64("zoom_delta", zoomDelta))
}
