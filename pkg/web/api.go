package web

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/agorahq/agora/pkg/plugin"
	"github.com/agorahq/agora/pkg/process"
	"github.com/agorahq/agora/pkg/registry"
)

type API struct {
	logger    *slog.Logger
	plugins   *plugin.Manager
	processes *process.Manager
	registry  *registry.Registry
	validate  *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	plugins *plugin.Manager,
	processes *process.Manager,
	reg *registry.Registry,
) *API {
	return &API{
		logger:    logger,
		plugins:   plugins,
		processes: processes,
		registry:  reg,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := NewAPIHandlers(a.plugins, a.processes, a.registry, a.validate, a.logger)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Agora API")
	})

	app.Get("/registry", handlers.GetRegistry)

	p := app.Group("/plugins")
	p.Get("/", handlers.GetPlugins)
	p.Post("/", handlers.CreatePlugin)
	p.Put("/", handlers.ReconfigurePlugin)
	p.Delete("/", handlers.DeletePlugin)

	app.Post("/actions", handlers.InvokeAction)

	pr := app.Group("/processes")
	pr.Get("/", handlers.GetProcesses)
	pr.Post("/", handlers.StartProcess)
	pr.Get("/:id", handlers.GetProcess)
	pr.Post("/:id/close", handlers.CloseProcess)
	pr.Delete("/:id", handlers.DeleteProcess)

	app.Post("/hooks/:plugin/:slug", handlers.ReceiveWebhook)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	return app.Listen(":" + strconv.Itoa(port))
}
