package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	svcmetrics "OptiBase/internal/service/metrics"
	"OptiBase/pkg/config"
	xhttp "OptiBase/pkg/http"
	applogger "OptiBase/pkg/logger"
)

// sysmetrics is the supervised helper: it samples runtime and disk gauges on
// an interval and exposes them for scraping on its own port.
func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Printf("config load failed: %v", err)
		return 1
	}
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
		Output: cfg.Logger.Output,
	})
	if err != nil {
		log.Printf("logger init failed: %v", err)
		return 1
	}

	svcmetrics.RegisterSystem()

	srv := xhttp.NewServer(l, nil,
		xhttp.WithHost(cfg.Monitor.Host),
		xhttp.WithPort(cfg.Helper.Port),
	)
	if err := srv.Start(); err != nil {
		l.Error("helper server start failed", applogger.Error(err))
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	l.Info("system metrics helper running",
		applogger.String("path", cfg.Storage.Root),
		applogger.Duration("interval", cfg.Helper.SampleInterval),
		applogger.Int("port", cfg.Helper.Port),
	)

	ticker := time.NewTicker(cfg.Helper.SampleInterval)
	defer ticker.Stop()
	sample(l, cfg.Storage.Root)
	for {
		select {
		case <-ctx.Done():
			l.Info("system metrics helper stopping")
			if err := srv.Stop(context.Background()); err != nil {
				l.Warn("helper server stop error", applogger.Error(err))
			}
			return 0
		case <-ticker.C:
			sample(l, cfg.Storage.Root)
		}
	}
}

// sample refreshes the gauges; a failed reading is logged and retried on the
// next tick.
func sample(l *applogger.Logger, path string) {
	if _, err := svcmetrics.SampleSystem(path); err != nil {
		l.Warn("system sample failed", applogger.Error(err))
	}
}
