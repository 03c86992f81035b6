//go:build wireinject
// +build wireinject

package di

import (
	"CustodianSync/pkg/config"
	"CustodianSync/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideRedisCache,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideConnectionStore,
		ProvideFeedStore,
		ProvideEventPublisher,
		ProvideFieldCipher,
		ProvidePortfolioSource,

		// Domain services
		ProvideRegistry,
		ProvideSummaryCache,
		ProvideFeedService,
		ProvideReconQueue,
		ProvideCorrelationService,
		ProvideMetricStream,
		ProvideMetricCollector,
		ProvideMetricsHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
