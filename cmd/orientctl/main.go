// Command orientctl is a thin wiring binary around the driver: it loads a
// cluster configuration, starts the background health checker, and
// optionally serves the admin status surface (pool stats, health,
// Prometheus metrics, a small dashboard). It exists to exercise the
// driver end-to-end and as a template for embedding it in a larger
// service; applications are expected to import the driver package
// directly rather than shell out to this binary.
package main

import (
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/orientgo/driver/internal/api"
	"github.com/orientgo/driver/internal/client"
	"github.com/orientgo/driver/internal/config"
	"github.com/orientgo/driver/internal/health"
	"github.com/orientgo/driver/internal/metrics"
)

func main() {
	configPath := flag.String("config", "configs/orientctl.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: config.ParseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)
	logger.Info("orientctl starting", "config", *configPath, "servers", len(cfg.Servers))

	var m *metrics.Collector
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	c, err := client.New(cfg, m, logger)
	if err != nil {
		logger.Error("failed to construct client", "error", err)
		os.Exit(1)
	}

	hc := health.NewChecker(c.Cluster(), m, cfg.Dial, 0, 0)
	hc.Start()

	var apiServer *api.Server
	if cfg.Admin.Enabled {
		apiServer = api.NewServer(c, hc, m, logger)
		if err := apiServer.Start(cfg.Admin.Port); err != nil {
			logger.Error("failed to start admin status server", "error", err)
			os.Exit(1)
		}
	}

	configWatcher, err := config.NewWatcher(*configPath, logger, func(newCfg *config.Config) {
		logger.Info("reloading configuration")
		addrs := make([]string, len(newCfg.Servers))
		for i, s := range newCfg.Servers {
			addrs[i] = s.Address
		}
		c.Cluster().SetServers(addrs)
	})
	if err != nil {
		logger.Warn("config hot-reload not available", "error", err)
	}

	logger.Info("orientctl ready")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received signal, shutting down", "signal", sig.String())

	if configWatcher != nil {
		configWatcher.Stop()
	}
	if apiServer != nil {
		apiServer.Stop()
	}
	hc.Stop()
	c.Close()

	logger.Info("orientctl stopped")
}
