package http

import (
	"training_server/core/domain"
	"training_server/core/port/in"
	"training_server/pkg/apperr"
	"training_server/pkg/response"

	"github.com/gofiber/fiber/v2"
)

type EventHandler struct {
	syncService in.EventSyncService
}

func NewEventHandler(syncService in.EventSyncService) *EventHandler {
	return &EventHandler{syncService: syncService}
}

func (h *EventHandler) Register(app fiber.Router) {
	events := app.Group("/events")
	events.Post("/", h.CreateEvent)
	events.Put("/:id", h.UpdateEvent)
	events.Post("/:id/cancel", h.CancelEvent)
	events.Get("/:id/sync-log", h.SyncHistory)
}

// CreateEvent mirrors a new training event and returns it with its calendar event id.
func (h *EventHandler) CreateEvent(c *fiber.Ctx) error {
	actor, err := ActorFromContext(c)
	if err != nil {
		return response.Fail(c, err)
	}
	rec, err := parseRecord(c)
	if err != nil {
		return response.Fail(c, err)
	}

	created, err := h.syncService.CreateEvent(c.UserContext(), actor, rec)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.Created(c, created)
}

func (h *EventHandler) UpdateEvent(c *fiber.Ctx) error {
	actor, err := ActorFromContext(c)
	if err != nil {
		return response.Fail(c, err)
	}
	rec, err := parseRecord(c)
	if err != nil {
		return response.Fail(c, err)
	}
	if id := c.Params("id"); rec.ID == "" {
		rec.ID = id
	} else if rec.ID != id {
		return response.Fail(c, apperr.InvalidInput("id", "path and body ids differ"))
	}

	updated, err := h.syncService.UpdateEvent(c.UserContext(), actor, rec)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, updated)
}

type cancelRequest struct {
	Event   *domain.EventRecord `json:"event"`
	Comment string              `json:"comment"`
}

func (h *EventHandler) CancelEvent(c *fiber.Ctx) error {
	actor, err := ActorFromContext(c)
	if err != nil {
		return response.Fail(c, err)
	}

	var req cancelRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid cancel request: "+err.Error())
	}
	if req.Event == nil {
		return response.Fail(c, apperr.MissingField("event"))
	}
	rec := req.Event
	if rec.ID == "" {
		rec.ID = c.Params("id")
	}

	cancelled, err := h.syncService.CancelEvent(c.UserContext(), actor, rec, req.Comment)
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, fiber.Map{"cancelled": cancelled})
}

func (h *EventHandler) SyncHistory(c *fiber.Ctx) error {
	if _, err := ActorFromContext(c); err != nil {
		return response.Fail(c, err)
	}

	entries, err := h.syncService.SyncHistory(c.UserContext(), c.Params("id"), c.QueryInt("limit", 20))
	if err != nil {
		return response.Fail(c, err)
	}
	return response.OK(c, fiber.Map{"entries": entries})
}
