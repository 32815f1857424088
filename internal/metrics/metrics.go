package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	MessagesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatcore_messages_sent_total",
		Help: "Messages appended successfully.",
	})
	PresenceTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chatcore_presence_transitions_total",
		Help: "Presence status transitions by target status.",
	}, []string{"status"})
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatcore_cache_hits_total",
		Help: "Cache lookups served from redis.",
	})
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chatcore_cache_misses_total",
		Help: "Cache lookups that fell through to the store.",
	})
)

// Handler returns an http.Handler for Prometheus scraping
func Handler() http.Handler {
	return promhttp.Handler()
}
