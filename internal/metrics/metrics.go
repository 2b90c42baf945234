package metrics

import (
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Catalog Gauges
	GamesTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "gamelens_games_total",
		Help: "Total number of cached games.",
	})
	ReferencesTotal = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "gamelens_references_total",
		Help: "Total number of cached reference rows by category.",
	}, []string{"category"}) // genre, platform, developer, publisher

	// Cache behaviour
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamelens_cache_lookups_total",
		Help: "Local storage lookups by operation and result.",
	}, []string{"op", "result"}) // op: search, get; result: hit, miss

	// Upstream
	UpstreamRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamelens_upstream_requests_total",
		Help: "Requests sent to the upstream game API.",
	}, []string{"endpoint", "status"}) // status: HTTP code or "error"

	UpstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gamelens_upstream_request_duration_seconds",
		Help:    "Duration of upstream game API requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})

	AssetDownloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamelens_asset_downloads_total",
		Help: "Cover image downloads by result.",
	}, []string{"result"}) // stored, failed

	// Normalization
	ReferencesCreated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamelens_references_created_total",
		Help: "Reference rows inserted by category.",
	}, []string{"category"})

	CommitConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gamelens_commit_conflicts_total",
		Help: "Rows another writer committed first, by kind.",
	}, []string{"kind"}) // reference, game
)

var referenceTables = map[string]string{
	"genre":     "genres",
	"platform":  "platforms",
	"developer": "developers",
	"publisher": "publishers",
}

// UpdateDBMetrics refreshes gauges that reflect the current state of the database.
func UpdateDBMetrics(db *sql.DB) error {
	var games int
	if err := db.QueryRow("SELECT COUNT(*) FROM games").Scan(&games); err != nil {
		return err
	}
	GamesTotal.Set(float64(games))

	for category, table := range referenceTables {
		var n int
		if err := db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n); err != nil {
			return err
		}
		ReferencesTotal.WithLabelValues(category).Set(float64(n))
	}

	return nil
}

// RecordUpstream records one upstream request outcome.
func RecordUpstream(endpoint, status string, start time.Time) {
	UpstreamRequests.WithLabelValues(endpoint, status).Inc()
	UpstreamDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}
