package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/ticketon/backend/internal/model"
	"github.com/ticketon/backend/internal/repository"
)

// PublicHandler serves the unauthenticated browse endpoints.  These
// sit behind the Redis response cache, so they stay cheap under the
// read-heavy traffic of customers shopping for events.
type PublicHandler struct {
	Events *repository.EventRepo
}

func NewPublicHandler(events *repository.EventRepo) *PublicHandler {
	return &PublicHandler{Events: events}
}

type eventResp struct {
	ID          uint64    `json:"id"`
	OrganizerID uint64    `json:"organizer_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Location    string    `json:"location"`
	Price       int64     `json:"price"`
	SeatTotal   int       `json:"seat_total"`
	SeatLeft    int       `json:"seat_left"`
	StartDate   time.Time `json:"start_date"`
	EndDate     time.Time `json:"end_date"`
}

func toEventResp(ev *model.Event) eventResp {
	return eventResp{
		ID:          ev.ID,
		OrganizerID: ev.OrganizerID,
		Title:       ev.Title,
		Description: ev.Description,
		Location:    ev.Location,
		Price:       ev.Price,
		SeatTotal:   ev.SeatTotal,
		SeatLeft:    ev.SeatLeft,
		StartDate:   ev.StartDate,
		EndDate:     ev.EndDate,
	}
}

// ListEvents returns all visible events, newest first.
func (h *PublicHandler) ListEvents(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	events, err := h.Events.List(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]eventResp, 0, len(events))
	for i := range events {
		out = append(out, toEventResp(&events[i]))
	}
	return c.JSON(http.StatusOK, echo.Map{"events": out})
}

// GetEvent returns one visible event by id.
func (h *PublicHandler) GetEvent(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ev, err := h.Events.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrEventNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, toEventResp(ev))
}
