package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pluginsite/registry/cmd/hookserver/container"
	"github.com/pluginsite/registry/cmd/hookserver/routes"
	"github.com/pluginsite/registry/common/bootstrap"
	"github.com/pluginsite/registry/common/db"
	"github.com/pluginsite/registry/common/server"
)

func main() {
	port := flag.Int("p", 0, "listen port (overrides PORT)")
	flag.Parse()

	ctx := context.Background()

	// Bootstrap common components and apply the schema on startup
	components, err := bootstrap.Setup(ctx, "hookserver",
		bootstrap.WithDBInitHook(func(d *db.DB) error {
			return db.Migrate(context.Background(), d)
		}),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap hookserver: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	if *port != 0 {
		components.Config.Service.Port = *port
	}

	// Initialize service container (singleton pattern - all services created once)
	ctn, err := container.NewContainer(components)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize service container: %v\n", err)
		os.Exit(1)
	}

	e := setupEcho()
	setupMiddleware(e)
	setupHealthCheck(e)

	h := routes.RegisterHookRoutes(e, ctn)

	srv := server.New(
		components.Config.Service.Name,
		components.Config.Service.Port,
		e,
		components.Logger,
	)
	srv.OnShutdown(h.Drain)

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
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
}

// setupHealthCheck registers the health check endpoint
func setupHealthCheck(e *echo.Echo) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{
			"status":  "ok",
			"service": "hookserver",
		})
	})
}
