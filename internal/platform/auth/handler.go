package auth

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Handler serves the login endpoints.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes registers the auth endpoints on the group.
func (h *Handler) RegisterRoutes(g *echo.Group) {
	g.POST("/auth/login", h.Login)
	g.POST("/auth/guest", h.Guest)
	g.GET("/auth/me", h.Me)
}

// LoginInput is the login form payload.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the issued token and the user profile.
type LoginResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Login checks credentials and issues a bearer token.
func (h *Handler) Login(c echo.Context) error {
	var in LoginInput
	if err := c.Bind(&in); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	token, user, err := h.svc.Login(in.Email, in.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, LoginResponse{Token: token, User: user})
}

// Guest issues a showcase token without credentials.
func (h *Handler) Guest(c echo.Context) error {
	token, user, err := h.svc.LoginAsGuest()
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, LoginResponse{Token: token, User: user})
}

// Me returns the profile encoded in the presented token.
func (h *Handler) Me(c echo.Context) error {
	claims := ClaimsFromContext(c.Request().Context())
	if claims == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
	}
	return c.JSON(http.StatusOK, User{
		ID:    claims.Subject,
		Email: claims.Email,
		Name:  claims.Name,
		Role:  claims.Role,
	})
}
