package expense

import (
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/clinicdesk/pkg/pagination"
)

// Book is the slice of the store the expense handlers need.
type Book interface {
	Expenses() []Expense
	AddExpense(in NewInput) (Expense, error)
	UpdateExpense(e Expense) error
	DeleteExpense(id string) error
}

// Handler serves the expense book endpoints.
type Handler struct {
	book Book
}

func NewHandler(book Book) *Handler {
	return &Handler{book: book}
}

// RegisterRoutes registers the expense endpoints on the group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/expenses", h.List)
	g.POST("/expenses", h.Create)
	g.PUT("/expenses/:id", h.Update)
	g.DELETE("/expenses/:id", h.Delete)
}

// List returns expenses newest first, paginated.
func (h *Handler) List(c echo.Context) error {
	all := h.book.Expenses()
	sort.SliceStable(all, func(i, j int) bool { return all[i].Date > all[j].Date })

	params := pagination.FromContext(c)
	lo, hi := params.Slice(len(all))
	return c.JSON(http.StatusOK, pagination.NewResponse(all[lo:hi], len(all), params.Limit, params.Offset))
}

func (h *Handler) Create(c echo.Context) error {
	var in NewInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e, err := h.book.AddExpense(in)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return c.JSON(http.StatusCreated, e)
}

func (h *Handler) Update(c echo.Context) error {
	var e Expense
	if err := c.Bind(&e); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	e.ID = c.Param("id")
	if err := h.book.UpdateExpense(e); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Delete(c echo.Context) error {
	if err := h.book.DeleteExpense(c.Param("id")); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}
