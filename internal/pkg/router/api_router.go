package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/subalert/subalert/app/repository"
	apiv1 "github.com/subalert/subalert/internal/api/v1"
	"github.com/subalert/subalert/internal/pkg/middleware"
)

type ApiRouter struct {
	repos *repository.Repositories
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api", limiter.New())
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "SubAlert API",
		})
	})

	// API v1 routes
	v1 := api.Group("/v1", middleware.APIKeyAuthMiddleware())
	apiServer := apiv1.NewAPIServer(h.repos)
	apiv1.RegisterHandlers(v1, apiServer)
}

func NewApiRouter(repos *repository.Repositories) *ApiRouter {
	return &ApiRouter{repos: repos}
}
