package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/quay/zlog"
)

var (
	requestCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "casm",
			Subsystem: "httpapi",
			Name:      "requests_total",
			Help:      "Total HTTP requests served, by method, path, and status.",
		},
		[]string{"method", "path", "status"},
	)
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "casm",
			Subsystem: "httpapi",
			Name:      "request_duration_seconds",
			Help:      "Time spent serving HTTP requests.",
		},
		[]string{"method", "path"},
	)
)

// requestLogger records a log line and metrics for every request. The
// metrics path label uses the route pattern so parameterized routes don't
// explode cardinality.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		ctx := zlog.ContextWithValues(req.Context(),
			"component", "httpapi",
			"method", req.Method,
			"path", req.URL.Path)
		ww := middleware.NewWrapResponseWriter(w, req.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, req.WithContext(ctx))
		elapsed := time.Since(start)

		pattern := chiRoutePattern(req)
		requestCounter.WithLabelValues(req.Method, pattern, strconv.Itoa(ww.Status())).Inc()
		requestDuration.WithLabelValues(req.Method, pattern).Observe(elapsed.Seconds())
		zlog.Info(ctx).
			Int("status", ww.Status()).
			Dur("duration", elapsed).
			Msg("served request")
	})
}

func chiRoutePattern(req *http.Request) string {
	if rctx := chi.RouteContext(req.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return req.URL.Path
}
