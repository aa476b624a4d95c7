package export

import (
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/clinicdesk/internal/clock"
	"github.com/clinicdesk/clinicdesk/internal/domain/billing"
	"github.com/clinicdesk/clinicdesk/internal/domain/expense"
	"github.com/clinicdesk/clinicdesk/internal/domain/patient"
	"github.com/clinicdesk/clinicdesk/internal/domain/ratecard"
	"github.com/clinicdesk/clinicdesk/internal/domain/referral"
)

// Source supplies the snapshots the export endpoints render.
type Source interface {
	Patients() []patient.Patient
	RateCard() []ratecard.Item
	Expenses() []expense.Expense
}

// Handler serves the CSV download endpoints. Each export renders the same
// filtered, sorted dataset as the matching JSON endpoint.
type Handler struct {
	src Source
	clk clock.Clock
}

func NewHandler(src Source, clk clock.Clock) *Handler {
	return &Handler{src: src, clk: clk}
}

// RegisterRoutes registers the export endpoints on the group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/export/patients", h.Patients)
	g.GET("/export/billing", h.Billing)
	g.GET("/export/expenses", h.Expenses)
	g.GET("/export/referrals", h.Referrals)
	g.GET("/export/rate-card", h.RateCard)
}

func csvResponse(c echo.Context, filename, body string) error {
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`.csv"`)
	return c.Blob(http.StatusOK, "text/csv; charset=utf-8", []byte(body))
}

func (h *Handler) Patients(c echo.Context) error {
	ps := h.src.Patients()
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].Date > ps[j].Date })
	return csvResponse(c, "patients", Patients(ps, h.src.RateCard()))
}

func (h *Handler) Billing(c echo.Context) error {
	r, err := billing.RangeFromRequest(c, h.clk)
	if err != nil {
		return err
	}
	return csvResponse(c, "billing", Billing(h.src.Patients(), h.src.RateCard(), r))
}

func (h *Handler) Expenses(c echo.Context) error {
	es := h.src.Expenses()
	sort.SliceStable(es, func(i, j int) bool { return es[i].Date > es[j].Date })
	return csvResponse(c, "expenses", Expenses(es))
}

func (h *Handler) Referrals(c echo.Context) error {
	f := referral.Filter{
		PRO:    c.QueryParam("pro"),
		Status: patient.ReferralStatus(c.QueryParam("status")),
	}
	if c.QueryParam("filter") != "" {
		r, err := billing.RangeFromRequest(c, h.clk)
		if err != nil {
			return err
		}
		f.Range = &r
	}
	return csvResponse(c, "referrals", Referrals(referral.List(h.src.Patients(), f)))
}

func (h *Handler) RateCard(c echo.Context) error {
	return csvResponse(c, "rate-card", RateCard(h.src.RateCard()))
}
