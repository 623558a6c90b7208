package server

import (
	"github.com/labstack/echo/v4"
)

// QuestionnaireStatus handles GET /api/shared/questionnaire-status. Vendors
// get their own status; other roles pass ?vendorId=.
func (h *Handler) QuestionnaireStatus(c echo.Context) error {
	status, err := h.svc.QuestionnaireStatus(c.Request().Context(), statusVendorID(c))
	if err != nil {
		return err
	}
	return ok(c, "", status)
}

// VendorAnswers handles GET /api/shared/vendor/:vendorId/answers
func (h *Handler) VendorAnswers(c echo.Context) error {
	u, err := caller(c)
	if err != nil {
		return err
	}
	answers, err := h.svc.VendorAnswers(c.Request().Context(), u, c.Param("vendorId"))
	if err != nil {
		return err
	}
	return ok(c, "", answers)
}

// VendorSummary handles GET /api/shared/vendor-summary/:vendorId
func (h *Handler) VendorSummary(c echo.Context) error {
	u, err := caller(c)
	if err != nil {
		return err
	}
	s, err := h.svc.VendorSummaryFor(c.Request().Context(), u, c.Param("vendorId"))
	if err != nil {
		return err
	}
	return ok(c, "Latest vendor summary fetched.", summaryData(s))
}

// ApprovedClients handles GET /api/shared/clients
func (h *Handler) ApprovedClients(c echo.Context) error {
	clients, err := h.svc.ApprovedClients(c.Request().Context())
	if err != nil {
		return err
	}
	return ok(c, "", clients)
}
