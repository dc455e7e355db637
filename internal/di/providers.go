package di

import (
	"context"
	"fmt"
	"time"

	"OptiBase/internal/domain/models"
	domrepo "OptiBase/internal/domain/repository"
	"OptiBase/internal/handler/api"
	internalrepo "OptiBase/internal/repository"
	"OptiBase/internal/service/cache"
	"OptiBase/internal/service/legsrc"
	svcmetrics "OptiBase/internal/service/metrics"
	"OptiBase/internal/service/splitsrc"
	"OptiBase/internal/session"
	"OptiBase/internal/usecase"
	pkgch "OptiBase/pkg/clickhouse"
	"OptiBase/pkg/config"
	xhttp "OptiBase/pkg/http"
	applogger "OptiBase/pkg/logger"
	"OptiBase/pkg/metrics"
	"OptiBase/pkg/server"
)

// mirrorTable is the analytics table receiving end-of-day merges.
const mirrorTable = "weekday_master_updates"

// snapshotTTL bounds how stale the monitor's master view may get.
const snapshotTTL = 15 * time.Second

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
		Output: cfg.Logger.Output,
	})
}

// ProvideLocation resolves the market timezone.
func ProvideLocation(cfg *config.Config) (*time.Location, error) {
	return time.LoadLocation(cfg.Market.Timezone)
}

// ProvideWindow parses the trading window.
func ProvideWindow(cfg *config.Config) (models.SessionWindow, error) {
	return models.NewSessionWindow(cfg.Market.SessionStart, cfg.Market.SessionEnd)
}

// ProvideMetrics creates the Prometheus merge recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideMasterStore creates the CSV master store.
func ProvideMasterStore(cfg *config.Config, l *applogger.Logger, m domrepo.Metrics) domrepo.MasterStore {
	store := internalrepo.NewFileMasterStore(cfg.Storage.Root, cfg.Storage.AtomicWrites)
	store.SetLogger(l)
	store.SetMetrics(m)
	return store
}

// ProvideLedger creates the per-master date ledger.
func ProvideLedger() domrepo.Ledger {
	return internalrepo.NewFileLedger()
}

// ProvideSplitReader creates the split daily file reader.
func ProvideSplitReader(cfg *config.Config, loc *time.Location, window models.SessionWindow) *splitsrc.Reader {
	return splitsrc.NewReader(cfg.Storage.SplitRoot, loc, window)
}

// ProvideLegsReader creates the raw option-leg file reader.
func ProvideLegsReader(cfg *config.Config, loc *time.Location) *legsrc.Reader {
	return legsrc.NewReader(cfg.Sources.RawRoots, cfg.Sources.RawPattern, loc)
}

// ProvideClickHouseClient connects the mirror database and ensures its
// schema. Returns nil when the mirror is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.Mirror.Enabled {
		return nil, nil
	}
	ch := cfg.Mirror.ClickHouse
	client, err := pkgch.NewClient(
		pkgch.WithHost(ch.Host),
		pkgch.WithPort(ch.Port),
		pkgch.WithDatabase(ch.Database),
		pkgch.WithCredentials(ch.User, ch.Password),
		pkgch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout),
		pkgch.WithAsyncInsert(ch.AsyncInsert, false),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.MirrorSchema(ch.Database, mirrorTable)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideMirror creates the analytics mirror, nil when disabled.
func ProvideMirror(client *pkgch.Client, cfg *config.Config, loc *time.Location) domrepo.Mirror {
	if client == nil {
		return nil
	}
	table := cfg.Mirror.ClickHouse.Database + "." + mirrorTable
	return internalrepo.NewClickHouseMirror(client.DB(), table, loc)
}

// ProvideStreamUpdater creates the per-minute streaming path.
func ProvideStreamUpdater(store domrepo.MasterStore, split *splitsrc.Reader, cfg *config.Config, l *applogger.Logger, m domrepo.Metrics) *usecase.StreamUpdater {
	u := usecase.NewStreamUpdater(store, split, cfg.Market.Offsets, usecase.StreamOptions{
		Enabled:     cfg.Session.Streaming,
		SummaryOnly: cfg.Logger.SummaryOnly,
		LogTotals:   cfg.Logger.LastTotals,
	})
	u.SetLogger(l)
	u.SetMetrics(m)
	return u
}

// ProvideBulkReconciler creates the split-scan end-of-day path.
func ProvideBulkReconciler(store domrepo.MasterStore, ledger domrepo.Ledger, split *splitsrc.Reader, cfg *config.Config, l *applogger.Logger, m domrepo.Metrics) *usecase.BulkReconciler {
	b := usecase.NewBulkReconciler(store, ledger, split, cfg.Storage.SplitRoot)
	b.SetLogger(l)
	b.SetMetrics(m)
	return b
}

// ProvideRawReconciler creates the raw-legs end-of-day path.
func ProvideRawReconciler(store domrepo.MasterStore, ledger domrepo.Ledger, legs *legsrc.Reader, window models.SessionWindow, mirror domrepo.Mirror, l *applogger.Logger, m domrepo.Metrics) *usecase.RawReconciler {
	r := usecase.NewRawReconciler(store, ledger, legs, window)
	r.SetLogger(l)
	r.SetMetrics(m)
	r.SetMirror(mirror)
	return r
}

// ProvideHelper creates the supervised helper process.
func ProvideHelper(cfg *config.Config) *session.Helper {
	return session.NewHelper(cfg.Helper.Command, cfg.Helper.Args)
}

// ProvideOrchestrator assembles the session state machine. Bulk
// reconciliation is the session's end-of-day path.
func ProvideOrchestrator(cfg *config.Config, loc *time.Location, window models.SessionWindow, stream *usecase.StreamUpdater, bulk *usecase.BulkReconciler, helper *session.Helper, l *applogger.Logger) *session.Orchestrator {
	svcmetrics.Register()
	o := session.NewOrchestrator(session.Options{
		Location:            loc,
		Window:              window,
		Indices:             cfg.Market.Indices,
		Expiries:            cfg.Market.ExpiryBuckets,
		StorageRoot:         cfg.Storage.Root,
		SplitRoot:           cfg.Storage.SplitRoot,
		Preflight:           cfg.Session.Preflight,
		Streaming:           cfg.Session.Streaming,
		EODEnabled:          cfg.Session.EODEnabled,
		WaitPollMax:         cfg.Session.WaitPollMax,
		IdlePoll:            cfg.Session.IdlePoll,
		HelperCheckInterval: cfg.Session.HelperCheckInterval,
	}, stream, bulk, helper)
	o.SetLogger(l)
	return o
}

// ProvideSnapshotCache creates the monitor's master snapshot cache.
func ProvideSnapshotCache() *cache.SnapshotCache {
	return cache.NewSnapshotCache(snapshotTTL)
}

// ProvideMonitorHandler creates the ops API handler.
func ProvideMonitorHandler(l *applogger.Logger, orch *session.Orchestrator, store domrepo.MasterStore, snaps *cache.SnapshotCache) xhttp.Handler {
	return api.NewMonitorHandler(l, orch, store, snaps)
}

// ProvideMonitorServer creates the monitor HTTP server, nil when disabled.
func ProvideMonitorServer(cfg *config.Config, l *applogger.Logger, handler xhttp.Handler) *xhttp.Server {
	if !cfg.Monitor.Enabled {
		return nil
	}
	return xhttp.NewServer(l, handler,
		xhttp.WithHost(cfg.Monitor.Host),
		xhttp.WithPort(cfg.Monitor.Port),
		xhttp.WithTimeouts(cfg.Monitor.ReadTimeout, cfg.Monitor.WriteTimeout, cfg.Monitor.ShutdownTimeout),
	)
}

// ProvideApp creates the application server.
func ProvideApp(cfg *config.Config, l *applogger.Logger, orch *session.Orchestrator, stream *usecase.StreamUpdater, bulk *usecase.BulkReconciler, raw *usecase.RawReconciler, monitor *xhttp.Server, chClient *pkgch.Client) *server.App {
	return server.New(cfg, l, orch, stream, bulk, raw, monitor, chClient)
}
