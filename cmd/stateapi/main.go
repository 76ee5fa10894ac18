package main

import (
	"context"
	"fmt"
	"os"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/lyzr/teststate/cmd/stateapi/container"
	"github.com/lyzr/teststate/cmd/stateapi/middleware"
	"github.com/lyzr/teststate/cmd/stateapi/routes"
	"github.com/lyzr/teststate/common/bootstrap"
	"github.com/lyzr/teststate/common/server"
)

func main() {
	ctx := context.Background()

	// Bootstrap common components (store, logger, cache backend, telemetry)
	components, err := bootstrap.Setup(ctx, "stateapi")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to bootstrap stateapi: %v\n", err)
		os.Exit(1)
	}
	defer components.Shutdown(ctx)

	serviceContainer := container.NewContainer(components)

	e := NewEcho(serviceContainer)

	srv := server.New("stateapi", components.Config.Service.Port, e, components.Logger)
	if err := srv.Start(); err != nil {
		components.Logger.Error("Server error", "error", err)
		components.Shutdown(ctx)
		os.Exit(1)
	}
}

// NewEcho builds the router with middleware and every route registered
func NewEcho(c *container.Container) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestID())
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(c.Logger))

	routes.Register(e, c)
	return e
}
