//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"ForexPulse/pkg/config"
	"ForexPulse/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideRegistry,
		ProvideMetrics,

		// Infrastructure clients
		ProvideStorage,
		ProvideRedis,
		ProvideCache,
		ProvideSharedGuard,
		ProvideRedisPinger,
		ProvidePublisher,

		// Providers and services
		ProvidePriceProvider,
		ProvideNewsProvider,
		ProvideMacroProvider,
		ProvideAnalyzer,
		ProvideClassifier,
		ProvideAggregator,
		ProvideModelStore,

		// Use cases
		ProvideIngestion,
		ProvideTrainer,
		ProvidePredictor,
		ProvideJobRunner,
		ProvideScheduler,
		ProvideQuery,

		// Transport
		ProvideHandler,
		ProvideHTTPServer,
		ProvideKafkaConsumer,

		// Application server
		ProvideApp,
	)
	return nil, nil, nil
}
