package rest

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fortuna/concordia/internal/cache"
	"github.com/fortuna/concordia/internal/importjob"
	"github.com/fortuna/concordia/internal/store"
)

// Server represents the REST API server
type Server struct {
	port    string
	server  *http.Server
	handler *Handler
}

// NewServer creates a new REST API server
func NewServer(port string, db *store.Database, redisCache *cache.RedisCache, importSvc *importjob.Service, logger *zap.Logger) *Server {
	handler := NewHandler(db, redisCache)
	importHandler := NewImportHandler(importSvc)

	router := mux.NewRouter()

	// Apply middleware
	router.Use(RecoveryMiddleware(logger))
	router.Use(LoggingMiddleware(logger))
	router.Use(CORSMiddleware)

	// Health check
	router.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	// Prometheus scrape endpoint
	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	// API v1 routes
	api := router.PathPrefix("/api/v1").Subrouter()

	// Import runs
	api.HandleFunc("/runs", handler.GetRecentRuns).Methods("GET")
	api.HandleFunc("/runs/latest", handler.GetLatestRun).Methods("GET")
	api.HandleFunc("/runs/{buildID}", handler.GetRun).Methods("GET")

	// Games
	api.HandleFunc("/games", handler.GetGames).Methods("GET")

	// Teams and alias review
	api.HandleFunc("/teams", handler.GetTeams).Methods("GET")
	api.HandleFunc("/teams/{teamID}", handler.GetTeam).Methods("GET")
	api.HandleFunc("/aliases/pending", handler.GetPendingAliases).Methods("GET")
	api.HandleFunc("/aliases/{aliasID}/review", handler.ReviewAlias).Methods("POST")

	// Quarantine
	api.HandleFunc("/quarantine", handler.GetQuarantine).Methods("GET")

	// Import operations
	api.HandleFunc("/imports", importHandler.HandleImportRequest).Methods("POST")
	api.HandleFunc("/imports/status", importHandler.HandleImportStatus).Methods("GET")

	return &Server{
		port:    port,
		handler: handler,
		server: &http.Server{
			Addr:    fmt.Sprintf(":%s", port),
			Handler: router,
		},
	}
}

// Start starts the REST API server
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
