package apiv1

import (
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/subalert/subalert/app/models"
	"github.com/subalert/subalert/app/repository"
	"github.com/subalert/subalert/internal/pkg/schedule"
)

// APIServer serves the key-protected management API: subscriptions, reminders,
// delivery logs and runtime settings.
type APIServer struct {
	repos    *repository.Repositories
	validate *validator.Validate
}

// NewAPIServer creates a new API server instance
func NewAPIServer(repos *repository.Repositories) *APIServer {
	return &APIServer{
		repos:    repos,
		validate: validator.New(),
	}
}

// GetPing handles the ping endpoint
func (s *APIServer) GetPing(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"ping": "pong"})
}

type subscriptionPayload struct {
	UserID          uint     `json:"user_id" validate:"required"`
	ServiceName     string   `json:"service_name" validate:"required,max=191"`
	Description     string   `json:"description"`
	Price           float64  `json:"price" validate:"gte=0"`
	Currency        string   `json:"currency" validate:"omitempty,len=3"`
	BillingCycle    string   `json:"billing_cycle" validate:"required,oneof=monthly quarterly semi_annually annually lifetime"`
	StartDate       string   `json:"start_date" validate:"required"`
	NextBillingDate *string  `json:"next_billing_date"`
	EndDate         *string  `json:"end_date"`
	AutoRenew       *bool    `json:"auto_renew"`
	Notes           string   `json:"notes"`
}

// PostSubscription creates a subscription.
func (s *APIServer) PostSubscription(c *fiber.Ctx) error {
	var payload subscriptionPayload
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "Invalid JSON body")
	}
	if err := s.validate.Struct(payload); err != nil {
		return badRequest(c, err.Error())
	}

	start, err := parseDate(payload.StartDate)
	if err != nil {
		return badRequest(c, "start_date must be YYYY-MM-DD")
	}

	sub := &models.Subscription{
		UserID:       payload.UserID,
		ServiceName:  payload.ServiceName,
		Description:  payload.Description,
		Price:        payload.Price,
		Currency:     payload.Currency,
		BillingCycle: payload.BillingCycle,
		StartDate:    start,
		Status:       models.SubscriptionStatusActive,
		AutoRenew:    payload.AutoRenew == nil || *payload.AutoRenew,
		Notes:        payload.Notes,
	}
	if sub.Currency == "" {
		sub.Currency = "USD"
	}
	if sub.NextBillingDate, err = parseOptionalDate(payload.NextBillingDate); err != nil {
		return badRequest(c, "next_billing_date must be YYYY-MM-DD")
	}
	if sub.EndDate, err = parseOptionalDate(payload.EndDate); err != nil {
		return badRequest(c, "end_date must be YYYY-MM-DD")
	}

	if err := s.repos.Subscription.Create(sub); err != nil {
		return internalError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(sub)
}

// GetSubscription returns one subscription by UUID.
func (s *APIServer) GetSubscription(c *fiber.Ctx) error {
	sub, err := s.repos.Subscription.GetByUUID(c.Params("uuid"))
	if err != nil {
		return notFoundOrError(c, err, "Subscription not found")
	}
	return c.JSON(sub)
}

// GetSubscriptionReminders lists the reminders attached to a subscription.
func (s *APIServer) GetSubscriptionReminders(c *fiber.Ctx) error {
	sub, err := s.repos.Subscription.GetByUUID(c.Params("uuid"))
	if err != nil {
		return notFoundOrError(c, err, "Subscription not found")
	}
	reminders, err := s.repos.Reminder.GetBySubscriptionID(sub.ID)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(fiber.Map{"reminders": reminders})
}

type reminderPayload struct {
	SubscriptionUUID string                  `json:"subscription_uuid" validate:"required,uuid4"`
	Type             string                  `json:"type" validate:"required,oneof=billing expiry custom"`
	Name             string                  `json:"name" validate:"required,max=191"`
	AdvanceDays      int                     `json:"advance_days" validate:"gte=0"`
	Channels         []string                `json:"channels" validate:"min=1,dive,oneof=email sms feishu wechat"`
	ReminderTime     string                  `json:"reminder_time"`
	RecipientConfig  *models.RecipientConfig `json:"recipient_config"`
	TemplateConfig   *models.TemplateConfig  `json:"template_config"`
	RepeatEnabled    bool                    `json:"repeat_enabled"`
	RepeatConfig     *models.RepeatConfig    `json:"repeat_config"`
}

// PostReminder creates a reminder and computes its first send instant.
func (s *APIServer) PostReminder(c *fiber.Ctx) error {
	var payload reminderPayload
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "Invalid JSON body")
	}
	if err := s.validate.Struct(payload); err != nil {
		return badRequest(c, err.Error())
	}

	sub, err := s.repos.Subscription.GetByUUID(payload.SubscriptionUUID)
	if err != nil {
		return notFoundOrError(c, err, "Subscription not found")
	}

	reminder := &models.Reminder{
		SubscriptionID:  sub.ID,
		Type:            payload.Type,
		Name:            payload.Name,
		AdvanceDays:     payload.AdvanceDays,
		Channels:        payload.Channels,
		ReminderTime:    payload.ReminderTime,
		RecipientConfig: payload.RecipientConfig,
		TemplateConfig:  payload.TemplateConfig,
		Status:          models.ReminderStatusEnabled,
		RepeatEnabled:   payload.RepeatEnabled,
		RepeatConfig:    payload.RepeatConfig,
	}
	if reminder.ReminderTime == "" {
		reminder.ReminderTime = "09:00:00"
	}

	nextSend, err := schedule.ComputeNextSend(reminder, sub, time.Now())
	if err != nil {
		return badRequest(c, err.Error())
	}
	reminder.NextSendAt = nextSend

	if err := s.repos.Reminder.Create(reminder); err != nil {
		return internalError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(reminder)
}

// GetReminder returns one reminder by UUID.
func (s *APIServer) GetReminder(c *fiber.Ctx) error {
	reminder, err := s.repos.Reminder.GetByUUID(c.Params("uuid"))
	if err != nil {
		return notFoundOrError(c, err, "Reminder not found")
	}
	return c.JSON(reminder)
}

type reminderUpdatePayload struct {
	Status          *string                 `json:"status" validate:"omitempty,oneof=enabled disabled"`
	AdvanceDays     *int                    `json:"advance_days" validate:"omitempty,gte=0"`
	Channels        []string                `json:"channels" validate:"omitempty,min=1,dive,oneof=email sms feishu wechat"`
	ReminderTime    *string                 `json:"reminder_time"`
	RecipientConfig *models.RecipientConfig `json:"recipient_config"`
	TemplateConfig  *models.TemplateConfig  `json:"template_config"`
	RepeatEnabled   *bool                   `json:"repeat_enabled"`
	RepeatConfig    *models.RepeatConfig    `json:"repeat_config"`
}

// PutReminder applies a partial update and recomputes the send schedule.
// Delivery log entries already in the retry pipeline are not touched.
func (s *APIServer) PutReminder(c *fiber.Ctx) error {
	var payload reminderUpdatePayload
	if err := c.BodyParser(&payload); err != nil {
		return badRequest(c, "Invalid JSON body")
	}
	if err := s.validate.Struct(payload); err != nil {
		return badRequest(c, err.Error())
	}

	reminder, err := s.repos.Reminder.GetByUUID(c.Params("uuid"))
	if err != nil {
		return notFoundOrError(c, err, "Reminder not found")
	}

	if payload.Status != nil {
		reminder.Status = *payload.Status
	}
	if payload.AdvanceDays != nil {
		reminder.AdvanceDays = *payload.AdvanceDays
	}
	if payload.Channels != nil {
		reminder.Channels = payload.Channels
	}
	if payload.ReminderTime != nil {
		reminder.ReminderTime = *payload.ReminderTime
	}
	if payload.RecipientConfig != nil {
		reminder.RecipientConfig = payload.RecipientConfig
	}
	if payload.TemplateConfig != nil {
		reminder.TemplateConfig = payload.TemplateConfig
	}
	if payload.RepeatEnabled != nil {
		reminder.RepeatEnabled = *payload.RepeatEnabled
	}
	if payload.RepeatConfig != nil {
		reminder.RepeatConfig = payload.RepeatConfig
	}

	nextSend, err := schedule.ComputeNextSend(reminder, reminder.Subscription, time.Now())
	if err != nil {
		return badRequest(c, err.Error())
	}
	reminder.NextSendAt = nextSend

	if err := s.repos.Reminder.Update(reminder); err != nil {
		return internalError(c, err)
	}
	return c.JSON(reminder)
}

// GetReminderLogs lists delivery attempts for a reminder, newest first.
func (s *APIServer) GetReminderLogs(c *fiber.Ctx) error {
	reminder, err := s.repos.Reminder.GetByUUID(c.Params("uuid"))
	if err != nil {
		return notFoundOrError(c, err, "Reminder not found")
	}

	offset := c.QueryInt("offset", 0)
	limit := c.QueryInt("limit", 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}

	logs, err := s.repos.ReminderLog.GetByReminderID(reminder.ID, offset, limit)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(fiber.Map{"logs": logs})
}

// GetSettings returns the runtime dispatch settings.
func (s *APIServer) GetSettings(c *fiber.Ctx) error {
	settings, err := s.repos.Setting.Get()
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(settings)
}

// PutSettings replaces the runtime dispatch settings. Changed intervals take
// effect on the next manager restart; batch and retry knobs apply immediately.
func (s *APIServer) PutSettings(c *fiber.Ctx) error {
	var settings models.AppSettings
	if err := c.BodyParser(&settings); err != nil {
		return badRequest(c, "Invalid JSON body")
	}
	if err := s.repos.Setting.Save(&settings); err != nil {
		return badRequest(c, err.Error())
	}
	return c.JSON(&settings)
}

func parseDate(value string) (time.Time, error) {
	return time.Parse("2006-01-02", value)
}

func parseOptionalDate(value *string) (*time.Time, error) {
	if value == nil || *value == "" {
		return nil, nil
	}
	t, err := parseDate(*value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "bad_request", "message": message})
}

func internalError(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal_server_error", "message": err.Error()})
}

func notFoundOrError(c *fiber.Ctx, err error, message string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "not_found", "message": message})
	}
	return internalError(c, err)
}
