package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "leihlokal"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	layoutPasses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "layout_passes_total",
			Help:      "Grid layout passes computed.",
		},
	)

	overflowBookings = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "overflow_bookings",
			Help:      "Bookings that did not fit into any lane in the last layout, by item.",
		},
		[]string{"item"},
	)

	dragRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drag_requests_total",
			Help:      "Finished drag gestures by outcome.",
		},
		[]string{"outcome"},
	)

	monthLoads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "month_loads_total",
			Help:      "Month fetches by result.",
		},
		[]string{"result"},
	)

	syncJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sheets_sync_jobs_total",
			Help:      "Spreadsheet sync jobs by result.",
		},
		[]string{"result"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, layoutPasses, overflowBookings, dragRequests, monthLoads, syncJobs)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// ObserveLayout records one layout pass and its overflow per item.
func ObserveLayout(overflowByItem map[string]int) {
	layoutPasses.Inc()
	overflowBookings.Reset()
	for item, n := range overflowByItem {
		overflowBookings.WithLabelValues(item).Set(float64(n))
	}
}

// IncDrag counts a finished drag: "created" or "discarded".
func IncDrag(outcome string) {
	dragRequests.WithLabelValues(outcome).Inc()
}

// IncMonthLoad counts a month fetch: "ok", "unsupported", "error" or "stale".
func IncMonthLoad(result string) {
	monthLoads.WithLabelValues(result).Inc()
}

func IncSync(result string) {
	syncJobs.WithLabelValues(result).Inc()
}
