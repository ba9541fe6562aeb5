package app

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/guttosm/twpulse/config"
	"github.com/guttosm/twpulse/internal/api"
	"github.com/guttosm/twpulse/internal/service"
	"github.com/guttosm/twpulse/internal/storage"
)

// InitializeApp wires the read API over the persisted series and returns
// the router plus a cleanup function for graceful shutdown.
//
// Responsibilities:
//   - Connects to PostgreSQL using InitPostgres().
//   - Builds repository, service and handler layers.
//   - Registers health and readiness probes.
func InitializeApp() (*gin.Engine, func(), error) {
	cfg := config.AppConfig

	db, err := postgresOpener(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize postgres: %w", err)
	}

	repo := storage.NewSeriesRepository(db)
	svc := service.NewSeriesService(repo)
	router := api.NewRouter(api.NewHandler(svc))
	api.NewHealthHandler(db.PingContext).Register(router)

	cleanup := func() {
		_ = db.Close()
	}

	return router, cleanup, nil
}
