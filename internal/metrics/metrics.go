package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	BookingsTotal       *prometheus.CounterVec
	CancellationsTotal  prometheus.Counter
	ReschedulesTotal    *prometheus.CounterVec
	ResolutionsTotal    *prometheus.CounterVec
	SlotsGeneratedTotal prometheus.Counter
	SlotsSkippedTotal   prometheus.Counter
	SlotsDeletedTotal   prometheus.Counter
	NotificationsTotal  prometheus.Counter
}

func NewCollector(serviceName string) *Collector {
	return &Collector{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by method, path, and status code.",
		}, []string{"method", "path", "status"}),

		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: serviceName,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		}, []string{"method", "path", "status"}),

		BookingsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "scheduling",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome (booked, conflict, locked).",
		}, []string{"outcome"}),

		CancellationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "scheduling",
			Name:      "cancellations_total",
			Help:      "Appointments moved to cancelled, any initiator.",
		}),

		ReschedulesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "scheduling",
			Name:      "reschedules_total",
			Help:      "Reschedule attempts by outcome (moved, conflict, failed).",
		}, []string{"outcome"}),

		ResolutionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "scheduling",
			Name:      "resolutions_total",
			Help:      "Appointments resolved by terminal status.",
		}, []string{"status"}),

		SlotsGeneratedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "scheduling",
			Name:      "slots_generated_total",
			Help:      "Slots created by the generator.",
		}),

		SlotsSkippedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "scheduling",
			Name:      "slots_skipped_total",
			Help:      "Generator candidates skipped because the slot already existed.",
		}),

		SlotsDeletedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "scheduling",
			Name:      "slots_deleted_total",
			Help:      "Slots removed by doctor delete or day clear.",
		}),

		NotificationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: serviceName,
			Subsystem: "scheduling",
			Name:      "notifications_total",
			Help:      "Patient/doctor notification events published.",
		}),
	}
}

// ObserveRequest records one completed HTTP request.
func (c *Collector) ObserveRequest(method, path string, status int, duration time.Duration) {
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	c.RequestsTotal.With(labels).Inc()
	c.RequestDuration.With(labels).Observe(duration.Seconds())
}

func Handler() http.Handler {
	return promhttp.Handler()
}
