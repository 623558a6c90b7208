package server

import (
	"github.com/labstack/echo/v4"

	"vendorrisk/internal/auth"
	"vendorrisk/internal/cachekeys"
	"vendorrisk/internal/conditional"
	"vendorrisk/internal/core"
	"vendorrisk/internal/portal"
)

// ownKey keys a view scoped to the calling user.
func ownKey(key func(id string) string) conditional.KeyFunc {
	return func(c echo.Context) (string, error) {
		u := auth.UserFrom(c)
		if u == nil {
			return "", core.NewAuthenticationError("Unauthorized - No token provided")
		}
		return key(u.ID), nil
	}
}

// paramKey keys a view by a route parameter.
func paramKey(name string, key func(id string) string) conditional.KeyFunc {
	return func(c echo.Context) (string, error) {
		v := c.Param(name)
		if v == "" {
			return "", core.NewInvalidRequestError(name+" is required", nil)
		}
		return key(v), nil
	}
}

// statusVendorID is the caller for vendors and ?vendorId= for everyone else.
func statusVendorID(c echo.Context) string {
	if u := auth.UserFrom(c); u != nil && u.Role == portal.RoleVendor {
		return u.ID
	}
	return c.QueryParam("vendorId")
}

func questionnaireStatusKey(c echo.Context) (string, error) {
	id := statusVendorID(c)
	if id == "" {
		return "", core.NewInvalidRequestError("vendorId is required", nil)
	}
	return cachekeys.QuestionnaireStatus(id), nil
}

func viewerSummaryKey(c echo.Context) (string, error) {
	u := auth.UserFrom(c)
	if u == nil {
		return "", core.NewAuthenticationError("Unauthorized - No token provided")
	}
	return cachekeys.VendorSummary(c.Param("vendorId"), u.ID), nil
}

// hasVendorFilter reports a filtered vendor list, which is never cached.
func hasVendorFilter(c echo.Context) bool {
	return c.QueryParam("name") != "" || c.QueryParam("email") != ""
}
