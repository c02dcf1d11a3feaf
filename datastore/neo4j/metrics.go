package neo4j

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var queryCounter = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "casm",
		Subsystem: "neo4j",
		Name:      "queries_total",
		Help:      "Queries executed against the graph, by outcome.",
	},
	[]string{"outcome"},
)
