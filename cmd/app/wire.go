//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/yanqian/trip-planner/internal/bootstrap"
	"github.com/yanqian/trip-planner/internal/domain/access"
	"github.com/yanqian/trip-planner/internal/domain/planner"
	"github.com/yanqian/trip-planner/internal/infra/config"
	httpiface "github.com/yanqian/trip-planner/internal/interface/http"
	"github.com/yanqian/trip-planner/pkg/logger"
)

func initializeApp() (*bootstrap.App, error) {
	wire.Build(
		config.Load,
		logger.New,
		providePlannerConfig,
		provideInterpreterConfig,
		provideGuideConfig,
		provideAccessService,
		provideTokenCounter,
		provideChatClient,
		provideEmbedder,
		providePostgresPool,
		provideCleanup,
		provideVersionRepository,
		provideSnippetRepository,
		provideSessionStore,
		providePOISupplier,
		provideArchive,
		provideGuideService,
		providePlannerDeps,
		planner.NewInterpreter,
		planner.NewService,
		wire.Bind(new(httpiface.TokenValidator), new(*access.Service)),
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil
}
