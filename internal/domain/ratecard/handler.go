package ratecard

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Catalogue is the slice of the store the rate card handlers need.
type Catalogue interface {
	RateCard() []Item
	AddRateItem(studyName string, mrp, landingPrice int64) (Item, error)
	UpdateRateItem(item Item) error
	DeleteRateItem(id string) error
}

// Handler serves the study catalogue endpoints.
type Handler struct {
	cat Catalogue
}

func NewHandler(cat Catalogue) *Handler {
	return &Handler{cat: cat}
}

// RegisterRoutes registers the rate card endpoints on the group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/rate-card", h.List)
	g.POST("/rate-card", h.Create)
	g.PUT("/rate-card/:id", h.Update)
	g.DELETE("/rate-card/:id", h.Delete)
}

func (h *Handler) List(c echo.Context) error {
	return c.JSON(http.StatusOK, h.cat.RateCard())
}

// NewItemInput is the creation payload; the id is assigned by the store.
type NewItemInput struct {
	StudyName    string `json:"studyName"`
	MRP          int64  `json:"mrp"`
	LandingPrice int64  `json:"landingPrice"`
}

func (h *Handler) Create(c echo.Context) error {
	var in NewItemInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if in.StudyName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "studyName is required")
	}
	if in.MRP < 0 || in.LandingPrice < 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "prices must not be negative")
	}
	item, err := h.cat.AddRateItem(in.StudyName, in.MRP, in.LandingPrice)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, item)
}

func (h *Handler) Update(c echo.Context) error {
	var item Item
	if err := c.Bind(&item); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	item.ID = c.Param("id")
	if err := h.cat.UpdateRateItem(item); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Delete(c echo.Context) error {
	if err := h.cat.DeleteRateItem(c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
