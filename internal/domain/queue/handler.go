package queue

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/clinicdesk/internal/clock"
	"github.com/clinicdesk/clinicdesk/internal/domain/patient"
)

// Source supplies the patient snapshot the queue views are computed from.
type Source interface {
	Patients() []patient.Patient
}

// Handler serves the waiting-room display payload.
type Handler struct {
	src Source
	clk clock.Clock
}

func NewHandler(src Source, clk clock.Clock) *Handler {
	return &Handler{src: src, clk: clk}
}

// RegisterRoutes registers the queue endpoint on the group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/queue", h.Display)
}

// DisplayPayload is the queue screen's full state. Date is included so a
// display left running overnight can detect the day change.
type DisplayPayload struct {
	Date string `json:"date"`
	Partitions
}

// Display returns today's queue partitions.
func (h *Handler) Display(c echo.Context) error {
	payload := DisplayPayload{
		Date:       clock.Today(h.clk),
		Partitions: Partition(h.src.Patients(), clock.Today(h.clk)),
	}
	return c.JSON(http.StatusOK, payload)
}
