package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP
var (
	HTTPInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// Публикация
var (
	PublicationsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "albumvault_publications_started_total",
		Help: "Ledger containers created for approved drafts.",
	})

	BlobUploads = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "albumvault_blob_uploads_total",
			Help: "Encrypted content uploads by outcome.",
		},
		[]string{"outcome"},
	)

	BlobConfirmations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "albumvault_blob_confirmations_total",
			Help: "Per-blob publish confirmations by wallet result.",
		},
		[]string{"result"},
	)

	AlbumsFinalized = promauto.NewCounter(prometheus.CounterOpts{
		Name: "albumvault_albums_finalized_total",
		Help: "Drafts turned into published albums.",
	})
)

// Доступ
var (
	SessionKeys = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "albumvault_session_keys_total",
			Help: "Session key requests by source (cache, minted, failed, rejected).",
		},
		[]string{"source"},
	)

	DecryptedItems = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "albumvault_decrypted_items_total",
			Help: "Decrypted items by outcome.",
		},
		[]string{"outcome"},
	)

	CollaboratorDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "albumvault_collaborator_call_duration_seconds",
			Help:    "Latency of ledger, sealing, blob store and wallet calls.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"collaborator", "op"},
	)
)
