// Package cluster tracks the set of known server addresses and selects
// one to dial: an atomic.Value snapshot gives lock-free reads, with
// mutations serialized on a dedicated write mutex.
package cluster

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/orientgo/driver/internal/config"
)

// Server is one member of the cluster's server list.
type Server struct {
	Address string
}

// clusterSnapshot is an immutable point-in-time view of the server list.
// Stored in atomic.Value so Select/Servers are lock-free on the hot path.
type clusterSnapshot struct {
	servers []*Server
}

// Cluster holds the cluster's server list and selects one to dial.
// Select() and Servers() are lock-free via atomic.Value; mutations
// serialize on a write mutex and swap in a new snapshot.
type Cluster struct {
	snap atomic.Value // holds *clusterSnapshot
	wmu  sync.Mutex
}

// New builds a Cluster from the configured seed servers.
func New(cfg *config.Config) (*Cluster, error) {
	if len(cfg.Servers) == 0 {
		return nil, fmt.Errorf("cluster: at least one server is required")
	}
	servers := make([]*Server, 0, len(cfg.Servers))
	for _, sc := range cfg.Servers {
		servers = append(servers, &Server{Address: sc.Address})
	}
	c := &Cluster{}
	c.snap.Store(&clusterSnapshot{servers: servers})
	return c, nil
}

func (c *Cluster) load() *clusterSnapshot {
	return c.snap.Load().(*clusterSnapshot)
}

// Select returns the server to dial. Currently always the first server in
// the list; Servers() is exposed so a future topology-aware selector (load
// balancing, affinity, health-weighted choice) can be layered in without
// changing this method's signature.
func (c *Cluster) Select() (*Server, error) {
	snap := c.load()
	if len(snap.servers) == 0 {
		return nil, fmt.Errorf("cluster: no servers available")
	}
	return snap.servers[0], nil
}

// Servers returns the full current server list, the extension hook a
// future selector would consult instead of Select's first-server rule.
func (c *Cluster) Servers() []*Server {
	snap := c.load()
	out := make([]*Server, len(snap.servers))
	copy(out, snap.servers)
	return out
}

// SetServers atomically replaces the server list, used by config hot-reload.
func (c *Cluster) SetServers(addrs []string) {
	c.wmu.Lock()
	defer c.wmu.Unlock()

	servers := make([]*Server, 0, len(addrs))
	for _, a := range addrs {
		servers = append(servers, &Server{Address: a})
	}
	c.snap.Store(&clusterSnapshot{servers: servers})
}
