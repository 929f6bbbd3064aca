//go:build wireinject
// +build wireinject

package di

import (
	"MarketSync/pkg/config"
	"MarketSync/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires every dependency from cfg. Run `wire` in this directory
// after changing a provider signature.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// ambient
		ProvideLogger,
		ProvideSnapshotSink,
		ProvideMetrics,

		// storage and upstream access
		ProvideCacheBackend,
		ProvideStore,
		ProvideHTTPClient,
		ProvideTokenManager,
		ProvideMarketClient,

		// session state
		ProvideMarketView,
		ProvideSnapshotPublisher,

		// presentation
		ProvideHub,
		ProvideMarketHandler,
		ProvideHTTPServer,

		ProvideApp,
	)
	return nil, nil, nil
}
