package apiv1

import (
	"github.com/gofiber/fiber/v2"
)

// RegisterHandlers attaches the v1 management routes to the given group.
func RegisterHandlers(router fiber.Router, s *APIServer) {
	router.Get("/ping", s.GetPing)

	router.Post("/subscriptions", s.PostSubscription)
	router.Get("/subscriptions/:uuid", s.GetSubscription)
	router.Get("/subscriptions/:uuid/reminders", s.GetSubscriptionReminders)

	router.Post("/reminders", s.PostReminder)
	router.Get("/reminders/:uuid", s.GetReminder)
	router.Put("/reminders/:uuid", s.PutReminder)
	router.Get("/reminders/:uuid/logs", s.GetReminderLogs)

	router.Get("/settings", s.GetSettings)
	router.Put("/settings", s.PutSettings)
}
