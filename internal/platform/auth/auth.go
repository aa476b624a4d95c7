// Package auth implements the clinic's login and bearer-token middleware.
// Users come from a small built-in directory rather than an identity
// provider; a successful login issues an HS256 JWT the frontend presents as
// a bearer token.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/clinicdesk/clinicdesk/internal/clock"
)

// Role is the access level of a logged-in user.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEmployee Role = "employee"
)

// User is a directory entry, password excluded.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

type account struct {
	User
	password string
}

// directory holds the built-in users. There is no signup flow; the clinic
// runs with a fixed admin and front-desk account. IDs are stable so the
// token subject correlates across sessions of the same account.
var directory = []account{
	{User: User{ID: "1", Email: "admin@bsc.com", Name: "Dr. Admin", Role: RoleAdmin}, password: "admin123"},
	{User: User{ID: "2", Email: "staff@bsc.com", Name: "Front Desk", Role: RoleEmployee}, password: "staff123"},
}

// ErrInvalidCredentials is returned on a failed login.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Claims is the JWT payload issued at login.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Name  string `json:"name"`
	Role  Role   `json:"role"`
}

// Service issues and validates tokens.
type Service struct {
	secret []byte
	clk    clock.Clock
	ttl    time.Duration
}

// NewService builds an auth service signing with secret. Tokens last 12
// hours, one clinic shift with margin.
func NewService(secret []byte, clk clock.Clock) *Service {
	return &Service{secret: secret, clk: clk, ttl: 12 * time.Hour}
}

// Login checks the credentials against the directory and issues a signed
// token plus the user profile.
func (s *Service) Login(email, password string) (string, User, error) {
	for _, acc := range directory {
		if acc.Email == email && acc.password == password {
			token, err := s.issue(acc.User)
			return token, acc.User, err
		}
	}
	return "", User{}, ErrInvalidCredentials
}

// LoginAsGuest issues an admin-role token for showcasing the app without
// real credentials.
func (s *Service) LoginAsGuest() (string, User, error) {
	u := User{ID: "guest", Email: "guest@demo.com", Name: "Showcase Guest", Role: RoleAdmin}
	token, err := s.issue(u)
	return token, u, err
}

func (s *Service) issue(u User) (string, error) {
	now := s.clk.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
		Email: u.Email,
		Name:  u.Name,
		Role:  u.Role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Verify parses and validates a bearer token string.
func (s *Service) Verify(tokenStr string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

type contextKey string

const claimsKey contextKey = "auth_claims"

// publicPaths bypass authentication: the health check, the login endpoint,
// and the waiting-room display feed (an unattended screen with no operator
// to log in).
var publicPaths = map[string]bool{
	"/health":            true,
	"/api/v1/health":     true,
	"/api/v1/auth/login": true,
	"/api/v1/auth/guest": true,
	"/api/v1/queue":      true,
	"/api/v1/ws":         true,
}

// Skipper reports whether the request path bypasses authentication.
func Skipper(c echo.Context) bool {
	return publicPaths[c.Path()]
}

// Middleware validates the Authorization header and stores the claims on
// the request context.
func Middleware(s *Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if Skipper(c) {
				return next(c)
			}
			header := c.Request().Header.Get("Authorization")
			if header == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing authorization header")
			}
			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid authorization format")
			}
			claims, err := s.Verify(parts[1])
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			ctx := context.WithValue(c.Request().Context(), claimsKey, claims)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// RequireRole gates a route group to the given roles. Admin always passes.
func RequireRole(roles ...Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims := ClaimsFromContext(c.Request().Context())
			if claims == nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "not authenticated")
			}
			if claims.Role == RoleAdmin {
				return next(c)
			}
			for _, r := range roles {
				if claims.Role == r {
					return next(c)
				}
			}
			return echo.NewHTTPError(http.StatusForbidden, "insufficient role")
		}
	}
}

// ClaimsFromContext returns the validated claims, or nil on public routes.
func ClaimsFromContext(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsKey).(*Claims)
	return claims
}
