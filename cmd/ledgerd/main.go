package main

import (
	"context"
	"fmt"
	"os"

	"github.com/attestly/ledger/cmd/ledgerd/container"
	"github.com/attestly/ledger/cmd/ledgerd/repository"
	"github.com/attestly/ledger/cmd/ledgerd/routes"
	"github.com/attestly/ledger/common/bootstrap"
	"github.com/attestly/ledger/common/server"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func main() {
	ctx := context.Background()

	// Bootstrap common components (DB, logger, redis, queue, cache, telemetry)
	components, err := bootstrap.Setup(ctx, "ledgerd",
		bootstrap.WithDBInitHook(repository.InitSchema),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap ledgerd: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	// Initialize service container (singleton pattern - all services created once)
	serviceContainer, err := container.NewContainer(components)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize service container: %v\n", err)
		os.Exit(1)
	}

	// Initialize Echo server
	e := setupEcho()

	// Setup middleware
	setupMiddleware(e)

	// Setup health check
	setupHealthCheck(e)

	// Register all routes
	registerRoutes(e, serviceContainer)

	// Start server with graceful shutdown
	srv := server.New("ledgerd", components.Config.Service.Port, e, components.Logger)
	if err := srv.Start(); err != nil {
		components.Logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// setupEcho initializes the Echo server with basic configuration
func setupEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	return e
}

// setupMiddleware configures all middleware for the Echo server
func setupMiddleware(e *echo.Echo) {
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())
	e.Use(middleware.RequestID())
}

// setupHealthCheck registers the health check endpoint
func setupHealthCheck(e *echo.Echo) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{
			"status":  "ok",
			"service": "ledgerd",
		})
	})
}

// registerRoutes registers all application routes using the service container
func registerRoutes(e *echo.Echo, serviceContainer *container.Container) {
	routes.RegisterRecordRoutes(e, serviceContainer)
	routes.RegisterOfferRoutes(e, serviceContainer)
}
