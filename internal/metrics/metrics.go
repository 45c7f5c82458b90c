package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type Collector struct {
	reg *prometheus.Registry

	ActiveVehicles      prometheus.Gauge
	UnassignedPassenger prometheus.Gauge

	Assignments *prometheus.CounterVec // op label: assign|unassign|clear_all|auto_assign
	Rejections  *prometheus.CounterVec // reason label: unknown_entity|capacity_exceeded
	Pickups     prometheus.Counter

	Ticks        prometheus.Counter
	TickDuration prometheus.Histogram

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
	PublishDuration prometheus.Histogram

	TickInterval prometheus.Gauge // seconds
}

func NewCollector(tickInterval time.Duration) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		ActiveVehicles: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_active_vehicles",
			Help: "Number of vehicles currently moving in the simulation.",
		}),
		UnassignedPassenger: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_unassigned_passengers",
			Help: "Passengers without a driver.",
		}),
		Assignments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_assignment_operations_total",
			Help: "Assignment mutations that changed state.",
		}, []string{"op"}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_assignment_rejections_total",
			Help: "Rejected assignment requests.",
		}, []string{"reason"}),
		Pickups: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_pickups_total",
			Help: "Passengers marked as picked up.",
		}),
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_ticks_total",
			Help: "Simulator ticks processed.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracker_tick_duration_seconds",
			Help:    "Duration of simulation tick computations.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 15),
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracker_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		TickInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_tick_interval_seconds",
			Help: "Simulator tick interval in seconds.",
		}),
	}

	reg.MustRegister(
		c.ActiveVehicles, c.UnassignedPassenger,
		c.Assignments, c.Rejections, c.Pickups,
		c.Ticks, c.TickDuration,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected, c.PublishDuration,
		c.TickInterval,
	)

	c.TickInterval.Set(tickInterval.Seconds())

	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string, log *zap.Logger) *http.Server {
	if log == nil {
		log = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server error", zap.Error(err))
		}
	}()
	log.Info("metrics listening", zap.String("addr", addr))
	return srv
}

// The methods below satisfy the hook interfaces of the assign, sim and
// publisher packages.

func (c *Collector) AssignmentInc(op string)    { c.Assignments.WithLabelValues(op).Inc() }
func (c *Collector) RejectionInc(reason string) { c.Rejections.WithLabelValues(reason).Inc() }
func (c *Collector) SetUnassigned(n int)        { c.UnassignedPassenger.Set(float64(n)) }

func (c *Collector) TickObserve(d time.Duration) {
	c.Ticks.Inc()
	c.TickDuration.Observe(d.Seconds())
}
func (c *Collector) SetActiveVehicles(n int) { c.ActiveVehicles.Set(float64(n)) }
func (c *Collector) PickupInc()              { c.Pickups.Inc() }

func (c *Collector) NATSPublishedInc()              { c.NATSPublished.Inc() }
func (c *Collector) NATSPublishErrInc()             { c.NATSPublishErrs.Inc() }
func (c *Collector) PublishObserve(d time.Duration) { c.PublishDuration.Observe(d.Seconds()) }
func (c *Collector) NATSSetConnected(b bool) {
	if b {
		c.NATSConnected.Set(1)
	} else {
		c.NATSConnected.Set(0)
	}
}
