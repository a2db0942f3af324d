package http

import (
	"training_server/core/domain"
	"training_server/infra/middleware"
	"training_server/pkg/apperr"

	"github.com/gofiber/fiber/v2"
)

// ActorFromContext builds the acting user from the locals set by the auth middleware.
func ActorFromContext(c *fiber.Ctx) (domain.Actor, error) {
	userID, _ := c.Locals(middleware.LocalUserID).(string)
	if userID == "" {
		return domain.Actor{}, apperr.Unauthorized("")
	}
	assertion, _ := c.Locals(middleware.LocalUserAssertion).(string)
	locale, _ := c.Locals(middleware.LocalLocale).(string)
	return domain.Actor{UserID: userID, UserAssertion: assertion, Locale: locale}, nil
}

func parseRecord(c *fiber.Ctx) (*domain.EventRecord, error) {
	var rec domain.EventRecord
	if err := c.BodyParser(&rec); err != nil {
		return nil, apperr.BadRequest("invalid event record: " + err.Error())
	}
	return &rec, nil
}
