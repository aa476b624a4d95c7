package billing

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/clinicdesk/internal/clock"
	"github.com/clinicdesk/clinicdesk/internal/domain/expense"
	"github.com/clinicdesk/clinicdesk/internal/domain/patient"
)

// Source supplies the snapshots the aggregation endpoints fold over.
type Source interface {
	Patients() []patient.Patient
	Expenses() []expense.Expense
}

// Handler serves the billing and dashboard aggregates.
type Handler struct {
	src Source
	clk clock.Clock
}

func NewHandler(src Source, clk clock.Clock) *Handler {
	return &Handler{src: src, clk: clk}
}

// RegisterRoutes registers the billing endpoints on the group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/billing/summary", h.Summary)
	g.GET("/billing/breakdown", h.Breakdown)
	g.GET("/dashboard", h.Dashboard)
}

// RangeFromRequest resolves the filter query parameters into a date range.
// filter=today and filter=month use the clock; filter=custom requires from
// and to. The default is today.
func RangeFromRequest(c echo.Context, clk clock.Clock) (DateRange, error) {
	switch c.QueryParam("filter") {
	case "", "today":
		return Today(clk), nil
	case "month":
		return ThisMonth(clk), nil
	case "custom":
		r := DateRange{From: c.QueryParam("from"), To: c.QueryParam("to")}
		if r.From == "" || r.To == "" {
			return DateRange{}, echo.NewHTTPError(http.StatusBadRequest, "custom filter requires from and to")
		}
		if r.From > r.To {
			return DateRange{}, echo.NewHTTPError(http.StatusBadRequest, "from must not be after to")
		}
		return r, nil
	default:
		return DateRange{}, echo.NewHTTPError(http.StatusBadRequest, "filter must be today, month or custom")
	}
}

// Summary returns the headline figures for the requested range.
func (h *Handler) Summary(c echo.Context) error {
	r, err := RangeFromRequest(c, h.clk)
	if err != nil {
		return err
	}
	resp := struct {
		Range DateRange `json:"range"`
		Summary
		ExpenseTotal int64 `json:"expenseTotal"`
	}{
		Range:        r,
		Summary:      Summarize(h.src.Patients(), r),
		ExpenseTotal: ExpenseTotal(h.src.Expenses(), r),
	}
	return c.JSON(http.StatusOK, resp)
}

// Breakdown returns the per-payment-mode chart data for the range.
func (h *Handler) Breakdown(c echo.Context) error {
	r, err := RangeFromRequest(c, h.clk)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, PaymentModeBreakdown(h.src.Patients(), r))
}

// Dashboard returns today's stats plus the most recent registrations.
func (h *Handler) Dashboard(c echo.Context) error {
	patients := h.src.Patients()
	resp := struct {
		Stats  DashboardStats    `json:"stats"`
		Recent []patient.Patient `json:"recentPatients"`
	}{
		Stats:  TodayStats(patients, h.src.Expenses(), h.clk),
		Recent: RecentPatients(patients, 5),
	}
	return c.JSON(http.StatusOK, resp)
}
