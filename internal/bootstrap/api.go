package bootstrap

import (
	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"

	httpin "jobscout/adapter/in/http"
	"jobscout/infra/middleware"
)

// NewAPI builds the admin HTTP application over shared dependencies.
func NewAPI(deps *Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler:          middleware.ErrorHandler(),
		DisableStartupMessage: deps.Config.IsProduction(),
		JSONEncoder:           json.Marshal,
		JSONDecoder:           json.Unmarshal,
		BodyLimit:             1 * 1024 * 1024,
	})

	app.Use(middleware.Recover())
	app.Use(middleware.RequestID())
	app.Use(middleware.RequestLogger())

	httpin.NewHealthHandler(deps.DB, deps.Redis).Register(app)

	app.Use("/admin", middleware.APIKeyAuth(deps.Config.AdminAPIKey))
	httpin.NewAdminHandler(deps.Queue).Register(app)

	return app
}
