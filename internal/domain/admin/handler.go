// Package admin exposes the data-management surface: backup download,
// restore, demo data, full reset and clinic settings.
package admin

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/clinicdesk/internal/clock"
	"github.com/clinicdesk/clinicdesk/internal/platform/auth"
	"github.com/clinicdesk/clinicdesk/internal/platform/backup"
	"github.com/clinicdesk/clinicdesk/internal/platform/storage"
)

// Admin is the slice of the store the admin handlers need.
type Admin interface {
	Snapshot() *storage.Envelope
	Restore(env *storage.Envelope) error
	LoadDemo() error
	ClearAll() error
	Settings() storage.Settings
	UpdateSettings(s storage.Settings) error
}

// Handler serves the admin endpoints. Everything here except reading
// settings is restricted to the admin role, and the destructive operations
// additionally require an explicit confirmation header.
type Handler struct {
	store Admin
	clk   clock.Clock
	log   zerolog.Logger
}

func NewHandler(store Admin, clk clock.Clock, log zerolog.Logger) *Handler {
	return &Handler{store: store, clk: clk, log: log.With().Str("component", "admin").Logger()}
}

// RegisterRoutes registers the admin endpoints on the group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.GET("/settings", h.GetSettings)
	g.PUT("/settings", h.UpdateSettings, auth.RequireRole(auth.RoleAdmin))

	adminGroup := g.Group("/admin", auth.RequireRole(auth.RoleAdmin))
	adminGroup.GET("/backup", h.Backup)
	adminGroup.POST("/restore", h.Restore, requireConfirm)
	adminGroup.POST("/demo-data", h.DemoData, requireConfirm)
	adminGroup.POST("/clear", h.Clear, requireConfirm)
}

// requireConfirm gates destructive operations behind an X-Confirm: yes
// header so a stray API call cannot wipe the clinic's records.
func requireConfirm(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Request().Header.Get("X-Confirm") != "yes" {
			return echo.NewHTTPError(http.StatusPreconditionRequired, "destructive operation requires X-Confirm: yes header")
		}
		return next(c)
	}
}

// Backup streams the current state as a downloadable JSON file.
func (h *Handler) Backup(c echo.Context) error {
	raw, err := backup.Marshal(h.store.Snapshot())
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+backup.Filename(h.clk)+`"`)
	return c.Blob(http.StatusOK, echo.MIMEApplicationJSON, raw)
}

// Restore replaces patients, rate card and expenses from an uploaded
// backup. The body may be the raw JSON or a multipart upload under the
// "file" field.
func (h *Handler) Restore(c echo.Context) error {
	raw, err := h.readBackupBody(c)
	if err != nil {
		return err
	}
	env, err := backup.Parse(raw)
	if err != nil {
		if errors.Is(err, backup.ErrBadBackup) {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := h.store.Restore(env); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	h.log.Info().Msg("backup restored")
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) readBackupBody(c echo.Context) ([]byte, error) {
	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "cannot open uploaded file")
		}
		defer f.Close()
		raw, err := io.ReadAll(f)
		if err != nil {
			return nil, echo.NewHTTPError(http.StatusBadRequest, "cannot read uploaded file")
		}
		return raw, nil
	}
	raw, err := io.ReadAll(c.Request().Body)
	if err != nil || len(raw) == 0 {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "empty restore body")
	}
	return raw, nil
}

// DemoData replaces all records with the showcase dataset.
func (h *Handler) DemoData(c echo.Context) error {
	if err := h.store.LoadDemo(); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// Clear resets the clinic to factory defaults.
func (h *Handler) Clear(c echo.Context) error {
	if err := h.store.ClearAll(); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// GetSettings returns the clinic settings.
func (h *Handler) GetSettings(c echo.Context) error {
	return c.JSON(http.StatusOK, h.store.Settings())
}

// UpdateSettings replaces the clinic settings.
func (h *Handler) UpdateSettings(c echo.Context) error {
	var s storage.Settings
	if err := c.Bind(&s); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.store.UpdateSettings(s); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, s)
}
