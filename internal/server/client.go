package server

import (
	"github.com/labstack/echo/v4"
)

// ClientDashboardStats handles GET /api/client/dashboard/stats
func (h *Handler) ClientDashboardStats(c echo.Context) error {
	u, err := caller(c)
	if err != nil {
		return err
	}
	stats, err := h.svc.ClientDashboardStats(c.Request().Context(), u.ID)
	if err != nil {
		return err
	}
	return ok(c, "Client dashboard stats fetched.", stats)
}

// ClientVendorList handles GET /api/client/vendors?name=&email=
func (h *Handler) ClientVendorList(c echo.Context) error {
	u, err := caller(c)
	if err != nil {
		return err
	}
	vendors, err := h.svc.ClientVendorList(c.Request().Context(), u.ID, c.QueryParam("name"), c.QueryParam("email"))
	if err != nil {
		return err
	}
	return ok(c, "Vendors fetched successfully.", vendors)
}

// ClientSummaries handles GET /api/client/summary
func (h *Handler) ClientSummaries(c echo.Context) error {
	u, err := caller(c)
	if err != nil {
		return err
	}
	summaries, err := h.svc.ClientSummaries(c.Request().Context(), u.ID)
	if err != nil {
		return err
	}
	return ok(c, "Summaries fetched successfully.", summaries)
}

// ClientVendors handles GET /api/client/client-vendors
func (h *Handler) ClientVendors(c echo.Context) error {
	u, err := caller(c)
	if err != nil {
		return err
	}
	vendors, err := h.svc.ClientVendors(c.Request().Context(), u.ID)
	if err != nil {
		return err
	}
	return ok(c, "Vendors for the logged-in client fetched successfully.", vendors)
}
