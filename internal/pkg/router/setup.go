package router

import (
	"github.com/gofiber/fiber/v2"

	"github.com/subalert/subalert/app/repository"
)

// Router installs one route group onto the fiber app.
type Router interface {
	InstallRouter(app *fiber.App)
}

// InstallRouter wires all route groups: the plain HTTP surface first, then the
// key-protected management API.
func InstallRouter(app *fiber.App, repos *repository.Repositories) {
	setup(app, NewHttpRouter(), NewApiRouter(repos))
}

func setup(app *fiber.App, router ...Router) {
	for _, r := range router {
		r.InstallRouter(app)
	}
}
