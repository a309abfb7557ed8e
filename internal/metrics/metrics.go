// Package metrics records client-side Prometheus metrics for perch and can
// expose them on an optional /metrics listener.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder is the metrics surface used by the API client, the refresh
// policy and the action coordinator.
type Recorder interface {
	RecordRequest(op string, status int, duration time.Duration)
	RecordFetch(resource string, err error)
	RecordPollTick(outcome string)
	RecordAction(action, outcome string)
}

// Collector implements Recorder on top of Prometheus collectors.
type Collector struct {
	requests       *prometheus.CounterVec
	requestLatency *prometheus.HistogramVec
	fetches        *prometheus.CounterVec
	pollTicks      *prometheus.CounterVec
	actions        *prometheus.CounterVec
}

var _ Recorder = (*Collector)(nil)

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "perch_api_requests_total",
			Help: "API requests by operation and HTTP status (0 = transport error).",
		}, []string{"op", "status"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "perch_api_request_duration_seconds",
			Help:    "API request latency by operation.",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "perch_cache_fetches_total",
			Help: "Cache slice refreshes by resource and result.",
		}, []string{"resource", "result"}),
		pollTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "perch_notification_poll_ticks_total",
			Help: "Notification poll ticks by outcome.",
		}, []string{"outcome"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "perch_actions_total",
			Help: "User actions by name and outcome.",
		}, []string{"action", "outcome"}),
	}

	reg.MustRegister(
		c.requests,
		c.requestLatency,
		c.fetches,
		c.pollTicks,
		c.actions,
	)
	return c
}

// RecordRequest counts one API round trip.
func (c *Collector) RecordRequest(op string, status int, duration time.Duration) {
	c.requests.WithLabelValues(op, strconv.Itoa(status)).Inc()
	c.requestLatency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordFetch counts one cache refresh for resource.
func (c *Collector) RecordFetch(resource string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.fetches.WithLabelValues(resource, result).Inc()
}

// RecordPollTick counts one notification poll tick.
func (c *Collector) RecordPollTick(outcome string) {
	c.pollTicks.WithLabelValues(outcome).Inc()
}

// RecordAction counts one coordinated user action.
func (c *Collector) RecordAction(action, outcome string) {
	c.actions.WithLabelValues(action, outcome).Inc()
}

// Nop discards everything.
type Nop struct{}

var _ Recorder = Nop{}

func (Nop) RecordRequest(string, int, time.Duration) {}
func (Nop) RecordFetch(string, error)                {}
func (Nop) RecordPollTick(string)                    {}
func (Nop) RecordAction(string, string)              {}

// OrNop returns r, or Nop when r is nil.
func OrNop(r Recorder) Recorder {
	if r == nil {
		return Nop{}
	}
	return r
}

// Handler returns the Prometheus scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger *slog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listener started", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
