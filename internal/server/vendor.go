package server

import (
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"

	"vendorrisk/internal/core"
	"vendorrisk/internal/files"
	"vendorrisk/internal/portal"
)

// uploadContentType trusts the part's declared type unless it is generic,
// then falls back to the file extension.
func uploadContentType(fh *multipart.FileHeader) string {
	ct := fh.Header.Get(echo.HeaderContentType)
	if ct == "" || ct == echo.MIMEOctetStream {
		if byExt := mime.TypeByExtension(filepath.Ext(fh.Filename)); byExt != "" {
			return byExt
		}
	}
	return ct
}

// SubmitAnswer handles POST /api/vendor/questionnaire (multipart form).
func (h *Handler) SubmitAnswer(c echo.Context) error {
	u, err := caller(c)
	if err != nil {
		return err
	}
	in := portal.AnswerInput{
		QuestionKey: c.FormValue("questionKey"),
		AnswerType:  portal.AnswerType(c.FormValue("answerType")),
		Comment:     c.FormValue("comment"),
	}

	fh, err := c.FormFile("file")
	switch {
	case errors.Is(err, http.ErrMissingFile):
	case err != nil:
		return core.NewInvalidRequestError("invalid multipart form", err)
	default:
		contentType := uploadContentType(fh)
		if err := files.Validate(contentType, fh.Size); err != nil {
			return err
		}
		f, err := fh.Open()
		if err != nil {
			return core.NewInvalidRequestError("failed to read uploaded file", err)
		}
		defer f.Close()
		in.File = &portal.Upload{Name: fh.Filename, ContentType: contentType, Body: f}
	}

	a, created, err := h.svc.SubmitAnswer(c.Request().Context(), u.ID, in)
	if err != nil {
		return err
	}
	message := "Questionnaire answer updated successfully."
	if created {
		message = "Questionnaire answer created successfully."
	}
	return ok(c, message, a)
}

// VendorQuestionnaire handles GET /api/vendor/questionnaire
func (h *Handler) VendorQuestionnaire(c echo.Context) error {
	u, err := caller(c)
	if err != nil {
		return err
	}
	answers, err := h.svc.VendorQuestionnaire(c.Request().Context(), u.ID)
	if err != nil {
		return err
	}
	return ok(c, "Questionnaires fetched successfully.", answers)
}

// UpdateAnswer handles PATCH /api/vendor/questionnaire/:id
func (h *Handler) UpdateAnswer(c echo.Context) error {
	u, err := caller(c)
	if err != nil {
		return err
	}
	var in portal.AnswerUpdate
	if err := c.Bind(&in); err != nil {
		return core.NewInvalidRequestError("invalid request body", err)
	}
	a, err := h.svc.UpdateAnswer(c.Request().Context(), u.ID, c.Param("id"), in)
	if err != nil {
		return err
	}
	return ok(c, "Questionnaire updated.", a)
}

// DeleteAnswer handles DELETE /api/vendor/questionnaire/:id
func (h *Handler) DeleteAnswer(c echo.Context) error {
	u, err := caller(c)
	if err != nil {
		return err
	}
	if err := h.svc.DeleteAnswer(c.Request().Context(), u.ID, c.Param("id")); err != nil {
		return err
	}
	return ok(c, "Questionnaire deleted successfully.", nil)
}

// VendorDetails handles GET /api/vendor/details
func (h *Handler) VendorDetails(c echo.Context) error {
	u, err := caller(c)
	if err != nil {
		return err
	}
	d, err := h.svc.VendorDetails(c.Request().Context(), u.ID, true)
	if err != nil {
		return err
	}
	return ok(c, "Vendor details fetched.", d)
}

// summaryContent is the latest summary as the portal shows it.
type summaryContent struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	Content   string    `json:"content"`
}

func summaryData(s *portal.Summary) *summaryContent {
	if s == nil {
		return nil
	}
	return &summaryContent{ID: s.ID, CreatedAt: s.CreatedAt, Content: s.ParsedContent}
}

// OwnSummary handles GET /api/vendor/vendor-summary
func (h *Handler) OwnSummary(c echo.Context) error {
	u, err := caller(c)
	if err != nil {
		return err
	}
	s, err := h.svc.OwnSummary(c.Request().Context(), u.ID)
	if err != nil {
		return err
	}
	return ok(c, "Latest summary fetched for logged-in vendor.", summaryData(s))
}

// VendorDashboardStats handles GET /api/vendor/dashboard/stats
func (h *Handler) VendorDashboardStats(c echo.Context) error {
	u, err := caller(c)
	if err != nil {
		return err
	}
	stats, err := h.svc.VendorDashboardStats(c.Request().Context(), u.ID)
	if err != nil {
		return err
	}
	return ok(c, "Vendor dashboard stats fetched.", stats)
}

type setClientRequest struct {
	ClientID string `json:"clientId"`
}

// SetClient handles PATCH /api/vendor/set-client
func (h *Handler) SetClient(c echo.Context) error {
	u, err := caller(c)
	if err != nil {
		return err
	}
	var req setClientRequest
	if err := c.Bind(&req); err != nil {
		return core.NewInvalidRequestError("invalid request body", err)
	}
	v, err := h.svc.SetClient(c.Request().Context(), u.ID, req.ClientID)
	if err != nil {
		return err
	}
	return ok(c, "Client assigned successfully", v)
}
