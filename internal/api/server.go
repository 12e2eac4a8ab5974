// Package api serves the optional admin status surface: per-server pool
// stats, cluster health, Prometheus /metrics, and a small dashboard.
// Disabled by default (config.AdminConfig.Enabled) — the driver itself
// never listens on a port; this is wiring for the orientctl companion
// binary only.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/orientgo/driver/internal/client"
	"github.com/orientgo/driver/internal/connpool"
	"github.com/orientgo/driver/internal/health"
	"github.com/orientgo/driver/internal/metrics"
)

// Server is the admin status HTTP server.
type Server struct {
	client      *client.Client
	healthCheck *health.Checker
	metrics     *metrics.Collector
	httpServer  *http.Server
	startTime   time.Time
	logger      *slog.Logger
}

// NewServer creates a new admin status server over an already-constructed
// Client and Checker.
func NewServer(c *client.Client, hc *health.Checker, m *metrics.Collector, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		client:      c,
		healthCheck: hc,
		metrics:     m,
		startTime:   time.Now(),
		logger:      logger,
	}
}

// Start starts the HTTP status server.
func (s *Server) Start(port int) error {
	r := mux.NewRouter()

	r.HandleFunc("/servers", s.listServers).Methods("GET")
	r.HandleFunc("/servers/{address}", s.getServer).Methods("GET")

	r.HandleFunc("/status", s.statusHandler).Methods("GET")
	r.HandleFunc("/health", s.healthHandler).Methods("GET")
	r.HandleFunc("/ready", s.readyHandler).Methods("GET")

	if s.metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{}))
	}

	// Dashboard is served at exactly "/" and "/dashboard".
	r.HandleFunc("/", s.dashboardHandler).Methods("GET")
	r.HandleFunc("/dashboard", s.dashboardHandler).Methods("GET")

	addr := fmt.Sprintf("0.0.0.0:%d", port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.logger.Info("admin status server listening", "addr", addr)

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("admin status server error", "error", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the status server.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

type serverInfo struct {
	Address string               `json:"address"`
	Stats   *connpool.Stats      `json:"pool_stats,omitempty"`
	Health  *health.ServerHealth `json:"health,omitempty"`
}

func (s *Server) listServers(w http.ResponseWriter, r *http.Request) {
	servers := s.client.Cluster().Servers()
	stats := s.client.PoolStats()
	statuses := s.healthCheck.GetAllStatuses()

	result := make([]serverInfo, 0, len(servers))
	for _, srv := range servers {
		info := serverInfo{Address: srv.Address}
		if st, ok := stats[srv.Address]; ok {
			info.Stats = &st
		}
		if h, ok := statuses[srv.Address]; ok {
			info.Health = &h
		}
		result = append(result, info)
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) getServer(w http.ResponseWriter, r *http.Request) {
	addr := mux.Vars(r)["address"]

	info := serverInfo{Address: addr}
	if st, ok := s.client.PoolStats()[addr]; ok {
		info.Stats = &st
	}
	h := s.healthCheck.GetStatus(addr)
	info.Health = &h

	writeJSON(w, http.StatusOK, info)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	statuses := s.healthCheck.GetAllStatuses()
	allHealthy := s.healthCheck.OverallHealthy()

	status := http.StatusOK
	if !allHealthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]interface{}{
		"status":  boolToStatus(allHealthy),
		"servers": statuses,
	})
}

func (s *Server) readyHandler(w http.ResponseWriter, r *http.Request) {
	servers := s.client.Cluster().Servers()
	if len(servers) == 0 {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
		return
	}

	for _, srv := range servers {
		if s.healthCheck.IsHealthy(srv.Address) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
			return
		}
	}

	writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not_ready"})
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	uptime := time.Since(s.startTime).Seconds()
	servers := s.client.Cluster().Servers()

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"uptime_seconds": int(uptime),
		"go_version":     runtime.Version(),
		"goroutines":     runtime.NumGoroutine(),
		"memory_mb":      float64(mem.Alloc) / 1024 / 1024,
		"num_servers":    len(servers),
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func boolToStatus(b bool) string {
	if b {
		return "healthy"
	}
	return "unhealthy"
}
