//go:build wireinject
// +build wireinject

package di

import (
	"SignalScan/pkg/config"
	"SignalScan/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories (with business logic)
		ProvideSignalStore,
		ProvideSignalPublisher,

		// Provider-facing services
		ProvideRateWindow,
		ProvideIndicatorProvider,
		ProvideQuoteSource,

		// Use cases
		ProvideAggregator,
		ProvideLevelCalculator,
		ProvideQuoteCollector,
		ProvideSignalProcessor,
		ProvidePublishPipeline,
		ProvideScanOrchestrator,
		ProvideScanScheduler,
		ProvideKafkaSignalsHandler,

		// HTTP handler
		ProvideScanHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
