//go:build wireinject
// +build wireinject

package di

import (
	"OptiBase/pkg/config"
	"OptiBase/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideLocation,
		ProvideWindow,
		ProvideMetrics,

		// Storage and sources
		ProvideMasterStore,
		ProvideLedger,
		ProvideSplitReader,
		ProvideLegsReader,

		// Analytics mirror
		ProvideClickHouseClient,
		ProvideMirror,

		// Use cases
		ProvideStreamUpdater,
		ProvideBulkReconciler,
		ProvideRawReconciler,

		// Session
		ProvideHelper,
		ProvideOrchestrator,

		// Monitor
		ProvideSnapshotCache,
		ProvideMonitorHandler,
		ProvideMonitorServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
