// Package metric provides Prometheus metrics for aerie-cli.
package metric

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "aerie_cli"

// Request outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeTransport = "transport_error"
)

// Registry holds all application metrics. A nil *Registry is valid and
// records nothing.
type Registry struct {
	registry *prometheus.Registry

	// Host request metrics
	HostRequests        *prometheus.CounterVec
	HostRequestDuration *prometheus.HistogramVec

	// Session metrics
	Logins            *prometheus.CounterVec
	SessionLoads      *prometheus.CounterVec
	SessionsActivated prometheus.Counter
	RoleChanges       prometheus.Counter
}

// NewRegistry creates a registry with every metric registered.
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		HostRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "host_requests_total",
			Help:      "Requests sent to the host, by route and outcome.",
		}, []string{"route", "outcome"}),
		HostRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "host_request_duration_seconds",
			Help:      "Host request latency, by route.",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"route"}),
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "logins_total",
			Help:      "Login attempts, by result.",
		}, []string{"result"}),
		SessionLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_loads_total",
			Help:      "Active session loads from disk, by result.",
		}, []string{"result"}),
		SessionsActivated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_activated_total",
			Help:      "Sessions that became the active session.",
		}),
		RoleChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "role_changes_total",
			Help:      "Successful active role changes.",
		}),
	}

	r.registry.MustRegister(
		r.HostRequests,
		r.HostRequestDuration,
		r.Logins,
		r.SessionLoads,
		r.SessionsActivated,
		r.RoleChanges,
	)
	return r
}

// Register adds extra collectors, such as a Collector, to the registry.
func (r *Registry) Register(cs ...prometheus.Collector) error {
	if r == nil {
		return nil
	}
	for _, c := range cs {
		if err := r.registry.Register(c); err != nil {
			return fmt.Errorf("metric: register: %w", err)
		}
	}
	return nil
}

// Gatherer exposes the underlying registry for tests and exporters.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// ObserveRequest records one host request.
func (r *Registry) ObserveRequest(route, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.HostRequests.WithLabelValues(route, outcome).Inc()
	r.HostRequestDuration.WithLabelValues(route).Observe(d.Seconds())
}

// ObserveLogin records a login attempt result.
func (r *Registry) ObserveLogin(result string) {
	if r == nil {
		return
	}
	r.Logins.WithLabelValues(result).Inc()
}

// ObserveSessionLoad records how loading the active session ended.
func (r *Registry) ObserveSessionLoad(result string) {
	if r == nil {
		return
	}
	r.SessionLoads.WithLabelValues(result).Inc()
}

// ObserveActivation records a new active session.
func (r *Registry) ObserveActivation() {
	if r == nil {
		return
	}
	r.SessionsActivated.Inc()
}

// ObserveRoleChange records a successful role change.
func (r *Registry) ObserveRoleChange() {
	if r == nil {
		return
	}
	r.RoleChanges.Inc()
}

// WriteFile writes the registry in the text exposition format, suitable for
// the node_exporter textfile collector. The write is atomic.
func (r *Registry) WriteFile(path string) error {
	if r == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("metric: create dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("metric: write textfile: %w", err)
	}
	return nil
}
