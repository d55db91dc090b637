//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"TrendScanner/internal/domain/repository"
	internalrepo "TrendScanner/internal/repository"
	"TrendScanner/pkg/config"
	"TrendScanner/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,
		ProvideRedisClient,
		ProvideCache,
		ProvideClickHouseClient,

		// Repositories
		ProvideBarStore,
		ProvideMarketData,
		wire.Bind(new(repository.MarketData), new(*internalrepo.CachedMarketData)),
		ProvideScanStore,

		// Scan engine
		ProvidePresets,
		ProvideAnalyzers,
		ProvideScanner,

		// Delivery
		ProvideHub,
		ProvideSinks,
		ProvideDispatcher,
		ProvideDeliveryPipeline,

		// Use cases
		ProvideScanCycle,
		ProvideQueue,
		ProvideScanJobs,
		ProvideScheduler,

		// Application server
		ProvideHandlers,
		ProvideHTTPServer,
		ProvideApp,
	)
	return &server.App{}, nil
}
