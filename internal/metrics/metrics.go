package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "catalogctl"
)

var (
	requestDurationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

	// HTTP client metrics
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Count of catalog API requests by status code.",
	}, []string{"code", "method"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Latency of catalog API requests.",
		Buckets:   requestDurationBuckets,
	}, []string{"code", "method"})

	HTTPRequestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "http_requests_in_flight",
		Help:      "Catalog API requests currently in flight.",
	})

	// Connector Metrics
	ConnectorsListed = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connectors_listed",
		Help:      "Number of connectors returned by the last listing.",
	})
)

// InstrumentClient returns a copy of client whose transport records request metrics.
func InstrumentClient(client *http.Client) *http.Client {
	if client == nil {
		client = &http.Client{}
	}
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	instrumented := *client
	instrumented.Transport = promhttp.InstrumentRoundTripperInFlight(HTTPRequestsInFlight,
		promhttp.InstrumentRoundTripperCounter(HTTPRequestsTotal,
			promhttp.InstrumentRoundTripperDuration(HTTPRequestDuration, base),
		),
	)
	return &instrumented
}
