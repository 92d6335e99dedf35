package fx

import (
	"club-ladder/internal/config"
	"club-ladder/internal/database"
	"club-ladder/internal/logger"
	"club-ladder/internal/repository"
	"club-ladder/internal/server"
	"club-ladder/internal/service"

	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	// repos
	fx.Provide(repository.NewPlayerRepository),
	fx.Provide(repository.NewMatchRepository),
	fx.Provide(repository.NewLedgerRepository),
	// svc
	fx.Provide(service.NewLedgerService),
	fx.Provide(service.NewPlayerService),
	// server
	fx.Provide(server.New),
)
