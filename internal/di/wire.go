//go:build wireinject
// +build wireinject

package di

import (
	"DeskSync/pkg/config"
	"DeskSync/pkg/server"

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
		ProvideRedisCache,
		ProvideCache,
		ProvideBackend,
		ProvideStream,
		ProvideKafkaProducer,

		// Activity export
		ProvideActivityQueue,
		ProvideActivityExporter,

		// Sessions and HTTP surface
		ProvideSessionManager,
		ProvideHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
