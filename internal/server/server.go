package server

import (
	"net/http"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"gihan9a/filerelay/internal/config"
	"gihan9a/filerelay/internal/remote"
	"gihan9a/filerelay/internal/utils"
)

// RelayServer exposes a single remote file over a small HTTP API
type RelayServer struct {
	config          *config.Config
	store           remote.FileStore
	ref             remote.FileRef
	logger          log.Logger
	registry        *prometheus.Registry
	requestDuration *prometheus.HistogramVec
}

// NewRelayServer creates a RelayServer for the file named in config.
// Metrics are registered with registry, which also backs /metrics.
func NewRelayServer(config *config.Config, store remote.FileStore, logger log.Logger, registry *prometheus.Registry) *RelayServer {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	server := &RelayServer{
		config: config,
		store:  store,
		ref: remote.FileRef{
			Owner:  config.GitHub.Owner,
			Repo:   config.GitHub.Repo,
			Path:   config.GitHub.FilePath,
			Branch: config.GitHub.Branch,
		},
		logger:   logger,
		registry: registry,
		requestDuration: utils.RegisterOrGet(registry, prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "filerelay",
				Name:      "http_request_duration_seconds",
				Help:      "Duration of relay HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route", "status_code"},
		)),
	}

	if config.CORS.Enabled {
		level.Info(logger).Log("msg", "CORS enabled", "allow_origins", config.CORS.AllowOrigins)
	}

	return server
}

// SetupRoutes configures the HTTP routes for the server
func (s *RelayServer) SetupRoutes() http.Handler {
	router := mux.NewRouter()
	router.Use(s.instrument)

	router.HandleFunc("/file", s.handleGetFile).Methods(http.MethodGet)
	router.HandleFunc("/file", s.handleUpdateFile).Methods(http.MethodPost)
	router.HandleFunc("/file/diff", s.handleDiffFile).Methods(http.MethodPost)
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	return s.withCORS(router)
}
