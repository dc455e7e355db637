package server

import (
	"context"

	"OptiBase/internal/session"
	"OptiBase/internal/usecase"
	pkgch "OptiBase/pkg/clickhouse"
	"OptiBase/pkg/config"
	xhttp "OptiBase/pkg/http"
	applogger "OptiBase/pkg/logger"
)

// App bundles the wired components behind the run modes the CLI exposes.
type App struct {
	cfg      *config.Config
	l        *applogger.Logger
	orch     *session.Orchestrator
	stream   *usecase.StreamUpdater
	bulk     *usecase.BulkReconciler
	raw      *usecase.RawReconciler
	monitor  *xhttp.Server
	chClient *pkgch.Client
}

// New creates the application. monitor and chClient may be nil when the
// monitor or the mirror is disabled.
func New(
	cfg *config.Config,
	l *applogger.Logger,
	orch *session.Orchestrator,
	stream *usecase.StreamUpdater,
	bulk *usecase.BulkReconciler,
	raw *usecase.RawReconciler,
	monitor *xhttp.Server,
	chClient *pkgch.Client,
) *App {
	return &App{
		cfg:      cfg,
		l:        l,
		orch:     orch,
		stream:   stream,
		bulk:     bulk,
		raw:      raw,
		monitor:  monitor,
		chClient: chClient,
	}
}

// RunSession drives one full trading session and returns the process exit
// code. Cancelling ctx interrupts the session; the orchestrator decides what
// an interrupt means for the phase it is in.
func (a *App) RunSession(ctx context.Context) int {
	a.startMonitor()
	rc := a.orch.Run(ctx)
	a.stopMonitor()
	return rc
}

// StreamOnce runs a single streaming pass for the date.
func (a *App) StreamOnce(ctx context.Context, date string) (int, error) {
	return a.stream.RunOnce(ctx, date, a.cfg.Market.Indices, a.cfg.Market.ExpiryBuckets)
}

// BulkEOD reconciles one date from the split tree. An empty indices list
// means every index directory found under the split root.
func (a *App) BulkEOD(ctx context.Context, date string, indices []string) (int, error) {
	return a.bulk.Run(ctx, date, indices)
}

// RawEOD reconciles one date straight from raw leg files. Empty lists fall
// back to the configured market universe.
func (a *App) RawEOD(ctx context.Context, date string, indices, expiries, offsets []string, dryRun bool) (int, error) {
	if len(indices) == 0 {
		indices = a.cfg.Market.Indices
	}
	if len(expiries) == 0 {
		expiries = a.cfg.Market.ExpiryBuckets
	}
	if len(offsets) == 0 {
		offsets = a.cfg.Market.Offsets
	}
	return a.raw.Run(ctx, date, indices, expiries, offsets, dryRun)
}

// Close releases infrastructure clients.
func (a *App) Close() {
	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.l.Warn("clickhouse close error", applogger.Error(err))
		}
	}
}

// startMonitor brings up the ops server. A failure is logged, not fatal.
func (a *App) startMonitor() {
	if a.monitor == nil {
		return
	}
	if err := a.monitor.Start(); err != nil {
		a.l.Warn("monitor start failed", applogger.Error(err))
	}
}

func (a *App) stopMonitor() {
	if a.monitor == nil {
		return
	}
	if err := a.monitor.Stop(context.Background()); err != nil {
		a.l.Warn("monitor stop error", applogger.Error(err))
	}
}
