package nvd

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var requestCounter = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "casm",
		Subsystem: "nvd",
		Name:      "requests_total",
		Help:      "Requests issued against the NVD APIs, by response status.",
	},
	[]string{"status"},
)
