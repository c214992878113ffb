package exoserver

import (
	"net/http"
	"strconv"

	"github.com/felixge/httpsnoop"
	"github.com/prometheus/client_golang/prometheus"
)

// instruments the HTTP handler, recording into the worker's own registry
// (the same one the rate meter counters live in)
func instrumentHTTPServer(actual http.Handler, registry *prometheus.Registry, workerId string) http.Handler {
	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "exohost_http_requests_total",
		Help:        "HTTP server's handled requests",
		ConstLabels: prometheus.Labels{"worker": workerId},
	}, []string{"code", "method"})

	registry.MustRegister(httpRequests)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stats := httpsnoop.CaptureMetrics(actual, w, r)

		httpRequests.With(prometheus.Labels{
			"code":   strconv.Itoa(stats.Code),
			"method": r.Method,
		}).Inc()
	})
}
