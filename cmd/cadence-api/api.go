// Package main provides the Cadence API server.
package main

import (
	"log/slog"
	"strconv"

	"github.com/dukex/cadence/pkg/cmd"
	"github.com/dukex/cadence/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	logger   *slog.Logger
	engine   *cmd.Engine
	validate *validator.Validate
}

func NewAPI(logger *slog.Logger, engine *cmd.Engine) *API {
	return &API{
		logger:   logger,
		engine:   engine,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(
		a.engine.Runner,
		a.engine.Dispatcher,
		a.engine.Enroller,
		a.engine.Lifecycle,
		a.engine.Store,
		a.validate,
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker(healthcheck.Config{
		Probe: func(c fiber.Ctx) bool {
			return a.engine.Store.HealthCheck(c.Context()) == nil
		},
	}))

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Cadence API")
	})

	handlers.Register(app)

	return app
}

func (a *API) Start(port int) error {
	a.logger.Info("Listening", "port", port)

	return a.App().Listen(":" + strconv.Itoa(port))
}
