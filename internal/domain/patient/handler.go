package patient

import (
	"errors"
	"net/http"
	"sort"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/clinicdesk/pkg/pagination"
)

// Registry is the slice of the store the patient handlers need.
type Registry interface {
	Patients() []Patient
	AddPatient(in NewInput) (Patient, error)
	UpdatePatient(p Patient) error
	DeletePatient(id string) error
	UpdateQueueStatus(id string, to QueueStatus) (Patient, error)
}

// Handler serves the patient register endpoints.
type Handler struct {
	reg Registry
	// sentinel errors from the store, injected to avoid a package cycle
	errNotFound error
	errNotToday error
}

// NewHandler binds the handler to the registry. notFound and notToday are
// the store's sentinel errors for queue actions.
func NewHandler(reg Registry, notFound, notToday error) *Handler {
	return &Handler{reg: reg, errNotFound: notFound, errNotToday: notToday}
}

// RegisterRoutes registers the patient endpoints on the group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/patients", h.List)
	g.POST("/patients", h.Create)
	g.PUT("/patients/:id", h.Update)
	g.DELETE("/patients/:id", h.Delete)
	g.POST("/patients/:id/queue-status", h.QueueStatus)
	g.GET("/patients/suggestions/doctors", h.DoctorSuggestions)
}

// List returns patients newest-date first, optionally filtered by exact
// date or a case-blind name search, paginated.
func (h *Handler) List(c echo.Context) error {
	all := h.reg.Patients()

	date := c.QueryParam("date")
	search := strings.ToLower(c.QueryParam("search"))
	filtered := make([]Patient, 0, len(all))
	for _, p := range all {
		if date != "" && p.Date != date {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(p.Contact, search) {
			continue
		}
		filtered = append(filtered, p)
	}
	sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].Date > filtered[j].Date })

	params := pagination.FromContext(c)
	lo, hi := params.Slice(len(filtered))
	return c.JSON(http.StatusOK, pagination.NewResponse(filtered[lo:hi], len(filtered), params.Limit, params.Offset))
}

// Create registers a new visit and returns the stored record, token number
// included.
func (h *Handler) Create(c echo.Context) error {
	var in NewInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.reg.AddPatient(in)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, p)
}

// Update replaces an existing record's editable fields.
func (h *Handler) Update(c echo.Context) error {
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.ID = c.Param("id")
	if err := h.reg.UpdatePatient(p); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// Delete removes a record. Deleting an id that is already gone succeeds.
func (h *Handler) Delete(c echo.Context) error {
	if err := h.reg.DeletePatient(c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// QueueStatus moves a patient through the queue state machine.
func (h *Handler) QueueStatus(c echo.Context) error {
	var body struct {
		Status QueueStatus `json:"status"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p, err := h.reg.UpdateQueueStatus(c.Param("id"), body.Status)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, p)
	case errors.Is(err, h.errNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	case errors.Is(err, h.errNotToday):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	}
}

// DoctorSuggestions returns the unique referring doctor names seen so far,
// sorted, for form autocompletion.
func (h *Handler) DoctorSuggestions(c echo.Context) error {
	seen := map[string]struct{}{}
	out := []string{}
	for _, p := range h.reg.Patients() {
		if p.DoctorRef == "" {
			continue
		}
		if _, ok := seen[p.DoctorRef]; ok {
			continue
		}
		seen[p.DoctorRef] = struct{}{}
		out = append(out, p.DoctorRef)
	}
	sort.Strings(out)
	return c.JSON(http.StatusOK, out)
}
