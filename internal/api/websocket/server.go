package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development (TODO: restrict in production)
	},
}

// Server represents the WebSocket server
type Server struct {
	port   string
	server *http.Server
	hub    *Hub
	logger *zap.Logger
}

// NewServer creates a new WebSocket server
func NewServer(logger *zap.Logger) *Server {
	return &Server{
		hub:    NewHub(),
		logger: logger,
	}
}

// Start starts the WebSocket server
func (s *Server) Start(port string) error {
	s.port = port

	// Start the hub in a goroutine
	go s.hub.Run()

	// Set up HTTP routes
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/imports/progress", s.handleImportProgress)
	mux.HandleFunc("/ws/health", s.handleHealth)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%s", port),
		Handler: mux,
	}

	s.logger.Info("websocket server listening", zap.String("port", port))
	return s.server.ListenAndServe()
}

// handleImportProgress handles WebSocket connections for import job progress
func (s *Server) handleImportProgress(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("failed to upgrade connection", zap.Error(err))
		return
	}

	client := &Client{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, 256),
	}

	client.hub.register <- client

	// Start client goroutines
	go client.writePump()
	go client.readPump()
}

// handleHealth returns WebSocket server health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"status": "healthy", "clients": %d}`, s.hub.ClientCount())
}

type progressMessage struct {
	Type       string    `json:"type"`
	JobID      string    `json:"job_id"`
	ProviderID string    `json:"provider_id"`
	Stage      string    `json:"stage"`
	Current    int       `json:"current"`
	Total      int       `json:"total"`
	Timestamp  time.Time `json:"timestamp"`
}

// BroadcastJobProgress sends an import job progress update to all
// connected clients.
func (s *Server) BroadcastJobProgress(jobID, providerID, stage string, current, total int) {
	msg := progressMessage{
		Type:       "import_progress",
		JobID:      jobID,
		ProviderID: providerID,
		Stage:      stage,
		Current:    current,
		Total:      total,
		Timestamp:  time.Now().UTC(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Warn("failed to marshal progress message", zap.Error(err))
		return
	}

	s.hub.Broadcast(data)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
