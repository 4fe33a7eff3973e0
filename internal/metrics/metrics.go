// Package metrics exposes Prometheus counters for the events store and the
// admin surface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	storeOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plaza_store_operations_total",
			Help: "Event store operations by outcome",
		},
		[]string{"operation", "status"},
	)

	storeFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "plaza_store_default_fallbacks_total",
			Help: "Loads that fell back to the default events",
		},
	)

	adminOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plaza_admin_operations_total",
			Help: "Admin CRUD operations by outcome",
		},
		[]string{"operation", "status"},
	)

	loginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plaza_admin_login_attempts_total",
			Help: "Admin login attempts",
		},
		[]string{"result"},
	)

	eventsByStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "plaza_events",
			Help: "Number of stored events per status",
		},
		[]string{"status"},
	)

	liveClients = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "plaza_live_clients",
			Help: "Connected live-update clients",
		},
		[]string{"transport"},
	)

	enquiries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "plaza_enquiries_total",
			Help: "Contact form submissions",
		},
		[]string{"result"},
	)
)

// Status labels
const (
	StatusOK    = "ok"
	StatusError = "error"
)

func outcome(err error) string {
	if err != nil {
		return StatusError
	}
	return StatusOK
}

// TrackStore counts a store load/save/clear
func TrackStore(operation string, err error) {
	storeOperations.WithLabelValues(operation, outcome(err)).Inc()
}

// TrackFallback counts a load that returned the defaults
func TrackFallback() {
	storeFallbacks.Inc()
}

// TrackAdmin counts an admin operation
func TrackAdmin(operation string, err error) {
	adminOperations.WithLabelValues(operation, outcome(err)).Inc()
}

// TrackLogin counts a login attempt
func TrackLogin(ok bool) {
	result := "rejected"
	if ok {
		result = "accepted"
	}
	loginAttempts.WithLabelValues(result).Inc()
}

// SetEventCounts replaces the per-status gauge values
func SetEventCounts(counts map[string]int) {
	eventsByStatus.Reset()
	for status, n := range counts {
		eventsByStatus.WithLabelValues(status).Set(float64(n))
	}
}

// ClientConnected adjusts the live client gauge for transport
func ClientConnected(transport string, delta int) {
	liveClients.WithLabelValues(transport).Add(float64(delta))
}

// TrackEnquiry counts a contact form submission
func TrackEnquiry(accepted bool) {
	result := "invalid"
	if accepted {
		result = "accepted"
	}
	enquiries.WithLabelValues(result).Inc()
}
