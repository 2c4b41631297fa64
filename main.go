package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/subalert/subalert/app/models"
	"github.com/subalert/subalert/app/repository"
	"github.com/subalert/subalert/internal/pkg/cache"
	"github.com/subalert/subalert/internal/pkg/database"
	"github.com/subalert/subalert/internal/pkg/dispatcher"
	"github.com/subalert/subalert/internal/pkg/env"
	"github.com/subalert/subalert/internal/pkg/router"
)

func main() {
	app, manager := NewApplication()

	// Let a cycle in progress finish its in-flight sends before exiting.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-quit
		manager.Stop()
		_ = app.Shutdown()
	}()

	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	if err != nil {
		log.Fatal(err)
	}
}

func NewApplication() (*fiber.App, *dispatcher.Manager) {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()

	if err := models.LoadSettings(database.GetDB()); err != nil {
		log.Printf("Warning: could not load settings, using defaults: %v", err)
	}

	repos := repository.NewFactory(database.GetDB()).GetRepositories()
	manager := dispatcher.GetManager(repos)
	manager.Start()

	app := fiber.New(fiber.Config{
		AppName: "SubAlert",
	})
	app.Use(recover.New(), logger.New())

	router.InstallRouter(app, repos)

	return app, manager
}
