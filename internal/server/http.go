package server

import (
	"context"
	"log/slog"
	"net/http"
	"path"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vendorrisk/internal/auth"
	"vendorrisk/internal/cachekeys"
	"vendorrisk/internal/conditional"
	"vendorrisk/internal/core"
	"vendorrisk/internal/portal"
)

// UploadsPath is where locally stored documents are served.
const UploadsPath = "/api/uploads"

// Server wraps the Echo server
type Server struct {
	echo    *echo.Echo
	handler *Handler
}

// Config holds server configuration options
type Config struct {
	MetricsEnabled  bool   // Whether to expose Prometheus metrics endpoint
	MetricsEndpoint string // HTTP path for metrics endpoint (default: /metrics)
	BodyLimit       string // Max request body size in echo notation (default: 12M)
	UploadsDir      string // Directory served under UploadsPath; empty disables it
}

// Deps are the services the handlers call.
type Deps struct {
	Service   *portal.Service
	Auth      *auth.Authenticator
	Registry  conditional.Registry
	Responses *conditional.ResponseCache
	// Ready checks the database for GET /health/ready; nil always reports ready.
	Ready func(context.Context) error
}

// New creates a new HTTP server
func New(deps Deps, cfg *Config) *Server {
	if cfg == nil {
		cfg = &Config{}
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handleError

	handler := NewHandler(deps)

	// Global middleware stack (order matters)
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		RequestIDHandler: func(c echo.Context, id string) {
			c.SetRequest(c.Request().WithContext(core.WithRequestID(c.Request().Context(), id)))
		},
	}))
	e.Use(middleware.RequestLoggerWithConfig(requestLoggerConfig()))
	e.Use(middleware.Recover())

	bodyLimit := cfg.BodyLimit
	if bodyLimit == "" {
		bodyLimit = "12M"
	}
	e.Use(middleware.BodyLimit(bodyLimit))

	// Public routes
	e.GET("/health", handler.Health)
	e.GET("/health/ready", handler.Ready)
	if cfg.MetricsEnabled {
		metricsPath := "/metrics"
		if cfg.MetricsEndpoint != "" {
			// Normalize path to prevent traversal attacks
			metricsPath = path.Clean(cfg.MetricsEndpoint)
		}
		e.GET(metricsPath, echo.WrapHandler(promhttp.Handler()))
	}
	if cfg.UploadsDir != "" {
		e.Static(UploadsPath, cfg.UploadsDir)
	}

	registerRoutes(e.Group("/api"), handler, deps.Auth)

	return &Server{
		echo:    e,
		handler: handler,
	}
}

func registerRoutes(api *echo.Group, h *Handler, authn *auth.Authenticator) {
	authenticated := authn.Middleware()
	company := auth.RequireRoles(portal.RoleCompany)
	client := auth.RequireRoles(portal.RoleClient)
	vendor := auth.RequireRoles(portal.RoleVendor)

	a := api.Group("/auth")
	a.POST("/signup", h.Signup)
	a.POST("/login", h.Login)
	a.POST("/logout", h.Logout)

	v := api.Group("/vendor", authenticated, vendor)
	v.POST("/questionnaire", h.SubmitAnswer)
	v.GET("/questionnaire", h.VendorQuestionnaire, h.cached(ownKey(cachekeys.VendorQuestionnaire)))
	v.PATCH("/questionnaire/:id", h.UpdateAnswer)
	v.DELETE("/questionnaire/:id", h.DeleteAnswer)
	v.GET("/details", h.VendorDetails)
	v.GET("/vendor-summary", h.OwnSummary, h.cached(ownKey(cachekeys.VendorSummaryForVendor)))
	v.GET("/dashboard/stats", h.VendorDashboardStats, h.cached(ownKey(cachekeys.VendorDashboardStats)))
	v.PATCH("/set-client", h.SetClient)

	c := api.Group("/client", authenticated, client)
	c.GET("/dashboard/stats", h.ClientDashboardStats, h.cached(ownKey(cachekeys.ClientDashboardStats)))
	c.GET("/vendors", h.ClientVendorList, h.cachedUnless(hasVendorFilter, ownKey(cachekeys.ClientVendorList)))
	c.GET("/summary", h.ClientSummaries, h.cached(ownKey(cachekeys.ClientSummaries)))
	c.GET("/client-vendors", h.ClientVendors, h.cached(ownKey(cachekeys.ClientVendors)))

	co := api.Group("/company", authenticated, company)
	co.GET("/users", h.AllUsers, h.cached(conditional.Static(cachekeys.AllUsers())))
	co.GET("/pending-users", h.PendingUsers, h.cached(conditional.Static(cachekeys.PendingUsers())))
	co.PATCH("/approve/:userId", h.SetVerification)
	co.GET("/vendors-by-client", h.VendorsByClient, h.cached(conditional.Static(cachekeys.AllVendors())))
	co.GET("/stats", h.CompanyStats, h.cached(conditional.Static(cachekeys.CompanyDashboardStats())))
	co.GET("/vendor/:vendorId", h.CompanyVendorDetails, h.cached(paramKey("vendorId", cachekeys.VendorSummaryForCompany)))
	co.POST("/summary/upload", h.UploadSummary)
	co.DELETE("/delete-user/:userId", h.DeleteUser)
	co.GET("/file-url/:fileKey", h.FileURL)
	co.GET("/client/:clientId", h.ClientDetails, h.cached(paramKey("clientId", cachekeys.ClientDetails)))

	s := api.Group("/shared", authenticated)
	s.GET("/questionnaire-status", h.QuestionnaireStatus,
		auth.RequireRoles(portal.RoleCompany, portal.RoleClient, portal.RoleVendor),
		h.cached(questionnaireStatusKey))
	s.GET("/vendor/:vendorId/answers", h.VendorAnswers,
		auth.RequireRoles(portal.RoleCompany, portal.RoleClient, portal.RoleVendor),
		conditional.ETag())
	s.GET("/vendor-summary/:vendorId", h.VendorSummary,
		auth.RequireRoles(portal.RoleCompany, portal.RoleClient),
		h.cached(viewerSummaryKey))
	s.GET("/clients", h.ApprovedClients, h.cached(conditional.Static(cachekeys.AllClients())))
}

// Start starts the HTTP server on the given address
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// ServeHTTP implements the http.Handler interface, allowing Server to be used with httptest
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}

func requestLoggerConfig() middleware.RequestLoggerConfig {
	return middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURIPath:   true,
		LogRequestID: true,
		LogStatus:    true,
		LogLatency:   true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"path", v.URIPath,
				"status", v.Status,
				"latency", v.Latency,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				slog.Warn("request", append(attrs, "error", v.Error)...)
				return nil
			}
			slog.Info("request", attrs...)
			return nil
		},
	}
}
