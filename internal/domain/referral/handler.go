package referral

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/clinicdesk/internal/clock"
	"github.com/clinicdesk/clinicdesk/internal/domain/billing"
	"github.com/clinicdesk/clinicdesk/internal/domain/patient"
)

// Ledger is the slice of the store the referral handlers need.
type Ledger interface {
	Patients() []patient.Patient
	UpdateReferral(id string, status patient.ReferralStatus, paidDate, paidTo string) (patient.Patient, error)
}

// Handler serves the referral commission endpoints.
type Handler struct {
	ledger      Ledger
	clk         clock.Clock
	errNotFound error
}

// NewHandler binds the handler to the ledger. notFound is the store's
// missing-record sentinel.
func NewHandler(ledger Ledger, clk clock.Clock, notFound error) *Handler {
	return &Handler{ledger: ledger, clk: clk, errNotFound: notFound}
}

// RegisterRoutes registers the referral endpoints on the group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/referrals", h.List)
	g.GET("/referrals/summary", h.Summary)
	g.GET("/referrals/parties", h.Parties)
	g.PUT("/referrals/:id", h.Update)
}

func (h *Handler) filter(c echo.Context) (Filter, error) {
	f := Filter{
		PRO:    c.QueryParam("pro"),
		Status: patient.ReferralStatus(c.QueryParam("status")),
	}
	if c.QueryParam("filter") != "" {
		r, err := billing.RangeFromRequest(c, h.clk)
		if err != nil {
			return Filter{}, err
		}
		f.Range = &r
	}
	return f, nil
}

// List returns the filtered commission ledger, newest first.
func (h *Handler) List(c echo.Context) error {
	f, err := h.filter(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, List(h.ledger.Patients(), f))
}

// Summary returns the settlement totals for the same filters as List.
func (h *Handler) Summary(c echo.Context) error {
	f, err := h.filter(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, Summarize(h.ledger.Patients(), f))
}

// Parties returns the known referring parties for filter dropdowns.
func (h *Handler) Parties(c echo.Context) error {
	return c.JSON(http.StatusOK, Parties(h.ledger.Patients()))
}

// UpdateInput is the settlement edit payload.
type UpdateInput struct {
	Status   patient.ReferralStatus `json:"status"`
	PaidDate string                 `json:"paidDate"`
	PaidTo   string                 `json:"paidTo"`
}

// Update edits a commission's settlement fields.
func (h *Handler) Update(c echo.Context) error {
	var in UpdateInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	switch in.Status {
	case patient.ReferralPending, patient.ReferralPartial, patient.ReferralPaid:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "status must be Pending, Partial or Paid")
	}
	p, err := h.ledger.UpdateReferral(c.Param("id"), in.Status, in.PaidDate, in.PaidTo)
	if err != nil {
		if errors.Is(err, h.errNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "patient not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, p)
}
