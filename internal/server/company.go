package server

import (
	"strings"

	"github.com/labstack/echo/v4"

	"vendorrisk/internal/core"
	"vendorrisk/internal/portal"
)

// AllUsers handles GET /api/company/users
func (h *Handler) AllUsers(c echo.Context) error {
	users, err := h.svc.AllUsers(c.Request().Context())
	if err != nil {
		return err
	}
	return ok(c, "Users fetched successfully.", users)
}

// PendingUsers handles GET /api/company/pending-users
func (h *Handler) PendingUsers(c echo.Context) error {
	users, err := h.svc.PendingUsers(c.Request().Context())
	if err != nil {
		return err
	}
	return ok(c, "Pending users fetched successfully.", users)
}

type verificationRequest struct {
	Action string `json:"action"`
}

// SetVerification handles PATCH /api/company/approve/:userId
func (h *Handler) SetVerification(c echo.Context) error {
	var req verificationRequest
	if err := c.Bind(&req); err != nil {
		return core.NewInvalidRequestError("invalid request body", err)
	}
	u, err := h.svc.SetVerification(c.Request().Context(), c.Param("userId"), req.Action)
	if err != nil {
		return err
	}
	verb := "approved"
	if req.Action == portal.ActionReject {
		verb = "rejected"
	}
	return ok(c, "User "+verb+" successfully.", u)
}

// VendorsByClient handles GET /api/company/vendors-by-client
func (h *Handler) VendorsByClient(c echo.Context) error {
	groups, err := h.svc.VendorsByClient(c.Request().Context())
	if err != nil {
		return err
	}
	return ok(c, "Vendors grouped by client fetched successfully.", groups)
}

// CompanyStats handles GET /api/company/stats
func (h *Handler) CompanyStats(c echo.Context) error {
	stats, err := h.svc.CompanyStats(c.Request().Context())
	if err != nil {
		return err
	}
	return ok(c, "Company dashboard stats fetched.", stats)
}

// CompanyVendorDetails handles GET /api/company/vendor/:vendorId
func (h *Handler) CompanyVendorDetails(c echo.Context) error {
	d, err := h.svc.VendorDetails(c.Request().Context(), c.Param("vendorId"), false)
	if err != nil {
		return err
	}
	return ok(c, "Vendor details fetched.", d)
}

type summaryUploadRequest struct {
	VendorID string `json:"vendorId"`
	Content  string `json:"content"`
}

// UploadSummary handles POST /api/company/summary/upload
func (h *Handler) UploadSummary(c echo.Context) error {
	var req summaryUploadRequest
	if err := c.Bind(&req); err != nil {
		return core.NewInvalidRequestError("invalid request body", err)
	}
	s, err := h.svc.UploadSummary(c.Request().Context(), strings.TrimSpace(req.VendorID), req.Content)
	if err != nil {
		return err
	}
	return ok(c, "Summary uploaded successfully", s)
}

// DeleteUser handles DELETE /api/company/delete-user/:userId
func (h *Handler) DeleteUser(c echo.Context) error {
	if err := h.svc.DeleteUser(c.Request().Context(), c.Param("userId")); err != nil {
		return err
	}
	return ok(c, "User deleted successfully", nil)
}

type fileURLResponse struct {
	URL string `json:"url"`
}

// FileURL handles GET /api/company/file-url/:fileKey
func (h *Handler) FileURL(c echo.Context) error {
	url, err := h.svc.FileURL(c.Request().Context(), c.Param("fileKey"))
	if err != nil {
		return err
	}
	return ok(c, "", fileURLResponse{URL: url})
}

// ClientDetails handles GET /api/company/client/:clientId
func (h *Handler) ClientDetails(c echo.Context) error {
	d, err := h.svc.ClientDetails(c.Request().Context(), c.Param("clientId"))
	if err != nil {
		return err
	}
	return ok(c, "Client details fetched.", d)
}
