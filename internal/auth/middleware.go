package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/labstack/echo/v4"

	"vendorrisk/internal/core"
	"vendorrisk/internal/portal"
)

// CookieName is the cookie a browser session carries its token in.
const CookieName = "token"

const userContextKey = "auth.user"

// UserLookup loads the account a token names.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (*portal.User, error)
	GetUserByEmail(ctx context.Context, email string) (*portal.User, error)
}

// Authenticator logs users in and authenticates requests.
type Authenticator struct {
	issuer *Issuer
	users  UserLookup
}

// New creates an Authenticator.
func New(issuer *Issuer, users UserLookup) *Authenticator {
	return &Authenticator{issuer: issuer, users: users}
}

// Login checks the credentials and returns a session token for the user.
func (a *Authenticator) Login(ctx context.Context, email, password string) (string, *portal.User, error) {
	u, err := a.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, portal.ErrNotFound) {
			return "", nil, core.NewNotFoundError("User not found")
		}
		return "", nil, fmt.Errorf("get user: %w", err)
	}
	if !CheckPassword(u.PasswordHash, password) {
		return "", nil, core.NewAuthenticationError("Invalid credentials")
	}
	token, err := a.issuer.Issue(u.ID, u.Role)
	if err != nil {
		return "", nil, core.NewInternalError("Login failed", err)
	}
	return token, u, nil
}

// tokenFrom prefers the session cookie over the Authorization header.
func tokenFrom(c echo.Context) string {
	if cookie, err := c.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// Middleware authenticates the request and stores the caller's account in
// the context for UserFrom.
func (a *Authenticator) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := tokenFrom(c)
			if token == "" {
				return core.NewAuthenticationError("Unauthorized - No token provided")
			}
			claims, err := a.issuer.Parse(token)
			if err != nil {
				slog.Debug("rejected session token", "error", err)
				return core.NewAuthenticationError("Unauthorized - Invalid token")
			}

			u, err := a.users.GetUser(c.Request().Context(), claims.UserID)
			if err != nil {
				if errors.Is(err, portal.ErrNotFound) {
					return core.NewNotFoundError("User not found")
				}
				return core.NewInternalError("Failed to load user", err)
			}
			c.Set(userContextKey, u)
			return next(c)
		}
	}
}

// UserFrom returns the account Middleware authenticated, nil outside it.
func UserFrom(c echo.Context) *portal.User {
	u, _ := c.Get(userContextKey).(*portal.User)
	return u
}

// RequireRoles rejects callers whose role is not listed. It must run after
// Middleware.
func RequireRoles(roles ...portal.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			u := UserFrom(c)
			if u == nil || !slices.Contains(roles, u.Role) {
				return core.NewForbiddenError("Forbidden - Access denied")
			}
			return next(c)
		}
	}
}
