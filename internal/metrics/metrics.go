// internal/metrics/metrics.go
//
// Prometheus collectors for the grid server. Collectors register lazily
// on first use so tests and the server can share the default registry.

package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registerOnce sync.Once

	placements = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gridboard",
			Subsystem: "placements",
			Name:      "total",
			Help:      "Placement decisions by result.",
		},
		[]string{"result"},
	)
	online = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "gridboard",
			Subsystem: "presence",
			Name:      "online_participants",
			Help:      "Participants with at least one live connection.",
		},
	)
	observers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "gridboard",
			Subsystem: "hub",
			Name:      "observers",
			Help:      "Connections currently receiving broadcasts.",
		},
	)
	droppedObservers = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gridboard",
			Subsystem: "hub",
			Name:      "dropped_observers_total",
			Help:      "Observers disconnected because their send queue was full.",
		},
	)
	journalErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gridboard",
			Subsystem: "journal",
			Name:      "errors_total",
			Help:      "Placements that could not be written to the journal.",
		},
	)
)

func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(placements, online, observers, droppedObservers, journalErrors)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	Register()
	return promhttp.Handler()
}

// RecordPlacement counts one decision; result is "ok" or the failure kind.
func RecordPlacement(result string) {
	Register()
	placements.WithLabelValues(result).Inc()
}

func SetOnline(n int) {
	Register()
	online.Set(float64(n))
}

func SetObservers(n int) {
	Register()
	observers.Set(float64(n))
}

func ObserverDropped() {
	Register()
	droppedObservers.Inc()
}

func JournalError() {
	Register()
	journalErrors.Inc()
}
