package management

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"sync"
	"time"

	"httpcore/internal/config"
	"httpcore/internal/metrics"
)

// ConnCounter reports the number of currently open connections on a
// backend.
type ConnCounter interface {
	ActiveConns() int
}

// API provides runtime management endpoints
type API struct {
	config *config.Management
	logger *slog.Logger
	server *http.Server
	mux    *http.ServeMux
	mu     sync.RWMutex

	// References to managed components
	backend     ConnCounter
	backendName string

	startTime time.Time
}

// NewAPI creates a new management API
func NewAPI(cfg *config.Management, logger *slog.Logger) *API {
	if cfg == nil {
		cfg = &config.Management{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    9090,
		}
	}

	api := &API{
		config:    cfg,
		logger:    logger.With("component", "management-api"),
		mux:       http.NewServeMux(),
		startTime: time.Now(),
	}

	api.setupRoutes()

	return api
}

// SetBackend sets the connection backend reference
func (api *API) SetBackend(name string, backend ConnCounter) {
	api.mu.Lock()
	defer api.mu.Unlock()
	api.backendName = name
	api.backend = backend
}

// setupRoutes configures all management endpoints
func (api *API) setupRoutes() {
	api.mux.HandleFunc("/health", api.handleHealth)
	api.mux.HandleFunc("/health/live", api.handleLiveness)
	api.mux.HandleFunc("/health/ready", api.handleReadiness)

	api.mux.HandleFunc("/info", api.handleInfo)
	api.mux.HandleFunc("/stats", api.handleStats)

	api.mux.Handle("/metrics", metrics.Handler())
}

// Start starts the management API server
func (api *API) Start(ctx context.Context) error {
	if !api.config.Enabled {
		return nil
	}

	addr := fmt.Sprintf("%s:%d", api.config.Host, api.config.Port)
	api.server = &http.Server{
		Addr:    addr,
		Handler: api.mux,
	}

	go func() {
		api.logger.Info("Starting management API", "address", addr)
		if err := api.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			api.logger.Error("Management API error", "error", err)
		}
	}()

	return nil
}

// Stop stops the management API server
func (api *API) Stop(ctx context.Context) error {
	if api.server == nil {
		return nil
	}

	api.logger.Info("Stopping management API")
	return api.server.Shutdown(ctx)
}

// Handler returns the management mux, mainly for tests.
func (api *API) Handler() http.Handler {
	return api.mux
}

// Response types
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
}

type InfoResponse struct {
	Version   string    `json:"version"`
	Backend   string    `json:"backend"`
	StartTime time.Time `json:"startTime"`
	Uptime    string    `json:"uptime"`
	GoVersion string    `json:"goVersion"`
}

type StatsResponse struct {
	Uptime            string `json:"uptime"`
	ActiveConnections int    `json:"activeConnections"`
	Goroutines        int    `json:"goroutines"`
	HeapBytes         uint64 `json:"heapBytes"`
}

// Handler implementations
func (api *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Uptime:    time.Since(api.startTime).String(),
	}

	api.writeJSON(w, http.StatusOK, resp)
}

func (api *API) handleLiveness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (api *API) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	api.mu.RLock()
	ready := api.backend != nil
	api.mu.RUnlock()

	if ready {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("Not Ready"))
	}
}

func (api *API) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	api.mu.RLock()
	backend := api.backendName
	api.mu.RUnlock()

	resp := InfoResponse{
		Version:   "1.0.0",
		Backend:   backend,
		StartTime: api.startTime,
		Uptime:    time.Since(api.startTime).String(),
		GoVersion: runtime.Version(),
	}

	api.writeJSON(w, http.StatusOK, resp)
}

func (api *API) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		api.writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	api.mu.RLock()
	backend := api.backend
	api.mu.RUnlock()

	active := 0
	if backend != nil {
		active = backend.ActiveConns()
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	resp := StatsResponse{
		Uptime:            time.Since(api.startTime).String(),
		ActiveConnections: active,
		Goroutines:        runtime.NumGoroutine(),
		HeapBytes:         mem.HeapAlloc,
	}

	api.writeJSON(w, http.StatusOK, resp)
}

// Helper methods
func (api *API) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		api.logger.Error("Failed to encode response", "error", err)
	}
}

func (api *API) writeError(w http.ResponseWriter, status int, message string) {
	api.writeJSON(w, status, map[string]string{
		"error": message,
	})
}
