package index

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const queryTypeLabel = "query_type"

const (
	queryTypeBoundingBox = "bounding_box"
	queryTypeSphere      = "sphere"
	queryTypeFrustum     = "frustum"
	queryTypeRaycast     = "raycast"
	queryTypeNearest     = "nearest"
	queryTypeKNearest    = "k_nearest"
)

var (
	indexedObjects = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "index_objects",
		Help: "The number of objects in the canonical object table.",
	})

	indexInserts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "index_inserts",
		Help: "The number of object insertions.",
	})

	indexRemoves = promauto.NewCounter(prometheus.CounterOpts{
		Name: "index_removes",
		Help: "The number of object removals.",
	})

	indexQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "index_queries",
		Help: "The number of executed queries.",
	}, []string{
		queryTypeLabel,
	})

	indexQueryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "index_query_duration_seconds",
		Help:    "The wall-clock duration of queries.",
		Buckets: prometheus.ExponentialBuckets(1e-6, 4, 12),
	}, []string{
		queryTypeLabel,
	})
)

func observeQuery(queryType string, start time.Time) {
	indexQueries.With(prometheus.Labels{queryTypeLabel: queryType}).Inc()
	indexQueryDuration.With(prometheus.Labels{queryTypeLabel: queryType}).
		Observe(time.Since(start).Seconds())
}
