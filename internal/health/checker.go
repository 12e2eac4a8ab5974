// Package health periodically probes every server in the cluster's
// selector and reports per-server reachability: a bounded-worker-pool
// sweep with a consecutive-failure threshold, driving the protocol
// Handshake as the reachability probe.
package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/orientgo/driver/internal/cluster"
	"github.com/orientgo/driver/internal/config"
	"github.com/orientgo/driver/internal/metrics"
	"github.com/orientgo/driver/internal/transport"
)

// Status is a server's last-known reachability.
type Status int

const (
	StatusUnknown Status = iota
	StatusHealthy
	StatusUnhealthy
)

func (s Status) String() string {
	switch s {
	case StatusHealthy:
		return "healthy"
	case StatusUnhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// ServerHealth holds the health state of one server.
type ServerHealth struct {
	Status              Status    `json:"status"`
	LastCheck           time.Time `json:"last_check"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastError           string    `json:"last_error,omitempty"`
}

// Checker performs periodic reachability checks on every server the
// cluster knows about.
type Checker struct {
	mu      sync.RWMutex
	servers map[string]*ServerHealth

	cluster *cluster.Cluster
	metrics *metrics.Collector
	dial    config.DialOptions

	interval          time.Duration
	failureThreshold  int
	connectionTimeout time.Duration

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewChecker creates a health checker for the given cluster.
func NewChecker(cl *cluster.Cluster, m *metrics.Collector, dial config.DialOptions, interval time.Duration, failureThreshold int) *Checker {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	if failureThreshold <= 0 {
		failureThreshold = 3
	}
	return &Checker{
		servers:           make(map[string]*ServerHealth),
		cluster:           cl,
		metrics:           m,
		dial:              dial,
		interval:          interval,
		failureThreshold:  failureThreshold,
		connectionTimeout: dial.ConnectTimeout,
		stopCh:            make(chan struct{}),
	}
}

// Start begins periodic health checking.
func (c *Checker) Start() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run()
	}()
	slog.Info("health checker started", "interval", c.interval, "threshold", c.failureThreshold)
}

// Stop stops the health checker. Safe to call multiple times.
func (c *Checker) Stop() {
	c.stopOnce.Do(func() {
		close(c.stopCh)
	})
	c.wg.Wait()
	slog.Info("health checker stopped")
}

func (c *Checker) run() {
	c.checkAll()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.checkAll()
		case <-c.stopCh:
			return
		}
	}
}

func (c *Checker) checkAll() {
	servers := c.cluster.Servers()

	const maxWorkers = 10
	sem := make(chan struct{}, maxWorkers)
	var wg sync.WaitGroup

	for _, srv := range servers {
		srv := srv
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			healthy := c.pingServer(srv.Address)
			c.updateStatus(srv.Address, healthy)
		}()
	}
	wg.Wait()
}

// pingServer dials a fresh connection and sends the protocol Handshake;
// the server never replies to it, so any successful write plus a clean
// handshake dial is treated as reachable. A connect failure or handshake
// write error marks the server unhealthy.
func (c *Checker) pingServer(addr string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), c.connectionTimeout)
	defer cancel()

	conn, err := transport.DialSync(ctx, addr, c.dial, nil)
	if err != nil {
		c.setLastError(addr, err.Error())
		return false
	}
	defer conn.Close()

	c.setLastError(addr, "")
	return true
}

func (c *Checker) setLastError(addr, errMsg string) {
	c.mu.Lock()
	sh := c.getOrCreate(addr)
	if errMsg != "" {
		sh.LastError = errMsg
	}
	c.mu.Unlock()
}

func (c *Checker) updateStatus(addr string, healthy bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sh := c.getOrCreate(addr)
	sh.LastCheck = time.Now()

	if healthy {
		if sh.ConsecutiveFailures > 0 {
			slog.Info("server recovered", "server", addr, "failures", sh.ConsecutiveFailures)
		}
		sh.Status = StatusHealthy
		sh.ConsecutiveFailures = 0
		sh.LastError = ""
	} else {
		sh.ConsecutiveFailures++
		if sh.ConsecutiveFailures >= c.failureThreshold {
			if sh.Status != StatusUnhealthy {
				slog.Warn("server marked unhealthy", "server", addr, "failures", sh.ConsecutiveFailures, "error", sh.LastError)
			}
			sh.Status = StatusUnhealthy
		}
	}

	if c.metrics != nil {
		c.metrics.SetServerHealth(addr, sh.Status == StatusHealthy)
	}
}

func (c *Checker) getOrCreate(addr string) *ServerHealth {
	sh, ok := c.servers[addr]
	if !ok {
		sh = &ServerHealth{Status: StatusUnknown}
		c.servers[addr] = sh
	}
	return sh
}

// IsHealthy returns whether a server is healthy (or unknown, treated as
// healthy so a never-checked server does not block selection).
func (c *Checker) IsHealthy(addr string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	sh, ok := c.servers[addr]
	if !ok {
		return true
	}
	return sh.Status != StatusUnhealthy
}

// GetStatus returns the health status for a server.
func (c *Checker) GetStatus(addr string) ServerHealth {
	c.mu.RLock()
	defer c.mu.RUnlock()

	sh, ok := c.servers[addr]
	if !ok {
		return ServerHealth{Status: StatusUnknown}
	}
	return *sh
}

// GetAllStatuses returns health statuses for every known server.
func (c *Checker) GetAllStatuses() map[string]ServerHealth {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]ServerHealth, len(c.servers))
	for addr, sh := range c.servers {
		result[addr] = *sh
	}
	return result
}

// OverallHealthy returns true if every known server is healthy.
func (c *Checker) OverallHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, sh := range c.servers {
		if sh.Status == StatusUnhealthy {
			return false
		}
	}
	return true
}
