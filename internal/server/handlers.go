// Package server provides the portal's HTTP handlers and server setup.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"vendorrisk/internal/auth"
	"vendorrisk/internal/conditional"
	"vendorrisk/internal/core"
	"vendorrisk/internal/portal"
)

// Handler holds the HTTP handlers
type Handler struct {
	svc       *portal.Service
	auth      *auth.Authenticator
	registry  conditional.Registry
	responses *conditional.ResponseCache
	ready     func(context.Context) error
}

// NewHandler creates a new handler with the given dependencies
func NewHandler(deps Deps) *Handler {
	return &Handler{
		svc:       deps.Service,
		auth:      deps.Auth,
		registry:  deps.Registry,
		responses: deps.Responses,
		ready:     deps.Ready,
	}
}

func (h *Handler) cached(key conditional.KeyFunc) echo.MiddlewareFunc {
	return conditional.Middleware(h.registry, h.responses, key)
}

func (h *Handler) cachedUnless(skip middleware.Skipper, key conditional.KeyFunc) echo.MiddlewareFunc {
	return conditional.WithConfig(conditional.Config{
		Skipper:   skip,
		Registry:  h.registry,
		Responses: h.responses,
		Key:       key,
	})
}

// caller returns the authenticated user. Routes using it sit behind the
// auth middleware, so a nil user is a wiring bug.
func caller(c echo.Context) (*portal.User, error) {
	u := auth.UserFrom(c)
	if u == nil {
		return nil, core.NewAuthenticationError("Unauthorized - No token provided")
	}
	return u, nil
}

func ok(c echo.Context, message string, data any) error {
	return c.JSON(http.StatusOK, core.OKWithMessage(message, data))
}

// Health handles GET /health
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// readyTimeout bounds the readiness probe's database round trip.
const readyTimeout = 2 * time.Second

// Ready handles GET /health/ready. It reports 503 while the database is
// unreachable.
func (h *Handler) Ready(c echo.Context) error {
	if h.ready != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), readyTimeout)
		defer cancel()
		if err := h.ready(ctx); err != nil {
			slog.Warn("readiness check failed", append([]any{"error", err}, core.LogAttrs(ctx)...)...)
			return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		}
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ready"})
}

// Signup handles POST /api/auth/signup
func (h *Handler) Signup(c echo.Context) error {
	var in portal.SignupInput
	if err := c.Bind(&in); err != nil {
		return core.NewInvalidRequestError("invalid request body", err)
	}
	var hash string
	if in.Password != "" {
		var err error
		if hash, err = auth.HashPassword(in.Password); err != nil {
			return core.NewInternalError("Signup failed", err)
		}
	}
	u, err := h.svc.Signup(c.Request().Context(), in, hash)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, core.OKWithMessage("User created", u))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type sessionUser struct {
	ID                 string                    `json:"id"`
	Name               string                    `json:"name"`
	Role               portal.Role               `json:"role"`
	VerificationStatus portal.VerificationStatus `json:"verificationStatus"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  sessionUser `json:"user"`
}

// Login handles POST /api/auth/login. The token is returned in the body and
// set as an HTTP-only cookie.
func (h *Handler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return core.NewInvalidRequestError("invalid request body", err)
	}
	token, u, err := h.auth.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return err
	}

	c.SetCookie(&http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.IsTLS(),
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(auth.DefaultTokenTTL / time.Second),
	})
	return ok(c, "Login successful", loginResponse{
		Token: token,
		User: sessionUser{
			ID:                 u.ID,
			Name:               u.Name,
			Role:               u.Role,
			VerificationStatus: u.VerificationStatus,
		},
	})
}

// Logout handles POST /api/auth/logout
func (h *Handler) Logout(c echo.Context) error {
	c.SetCookie(&http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	return ok(c, "Logged out", nil)
}
