package http

import (
	"time"

	"training_server/core/port/in"
	"training_server/pkg/apperr"
	"training_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type ReminderHandler struct {
	reminders in.ReminderService
	now       func() time.Time
}

func NewReminderHandler(reminders in.ReminderService) *ReminderHandler {
	return &ReminderHandler{reminders: reminders, now: time.Now}
}

func (h *ReminderHandler) Register(app fiber.Router) {
	r := app.Group("/reminders")
	r.Get("/filter", h.Filter)
	r.Post("/dispatch", h.Dispatch)
}

// referenceTime reads the optional ?now= RFC 3339 override.
func (h *ReminderHandler) referenceTime(c *fiber.Ctx) (time.Time, error) {
	raw := c.Query("now")
	if raw == "" {
		return h.now(), nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, apperr.InvalidInput("now", "must be an RFC 3339 timestamp")
	}
	return t, nil
}

func (h *ReminderHandler) Filter(c *fiber.Ctx) error {
	now, err := h.referenceTime(c)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, fiber.Map{"filter": h.reminders.DayBeforeFilter(now)})
}

func (h *ReminderHandler) Dispatch(c *fiber.Ctx) error {
	now, err := h.referenceTime(c)
	if err != nil {
		return response.Fail(c, err)
	}

	queued, err := h.reminders.DispatchDayBeforeReminders(c.UserContext(), now)
	if err != nil && queued == 0 {
		return response.Fail(c, err)
	}

	body := fiber.Map{"queued": queued}
	if err != nil {
		body["error"] = apperr.AsAppError(err).Message
	}
	return response.OK(c, body)
}
