package orientgo

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigAndConnect(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orientctl.yaml")
	yaml := `
servers:
  - address: "127.0.0.1:2424"
pool:
  min_conns: 1
  max_conns: 5
dial:
  connect_timeout: 2s
auth:
  username: root
  password: root
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if len(cfg.Servers) != 1 || cfg.Servers[0].Address != "127.0.0.1:2424" {
		t.Fatalf("unexpected servers: %+v", cfg.Servers)
	}

	c, err := Connect(cfg, nil, nil)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	servers := c.Cluster().Servers()
	if len(servers) != 1 || servers[0].Address != "127.0.0.1:2424" {
		t.Fatalf("unexpected cluster servers: %+v", servers)
	}

	c.Close()
}

func TestLoadConfigRequiresServers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(path, []byte("servers: []\n"), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected validation error for empty server list")
	}
}
