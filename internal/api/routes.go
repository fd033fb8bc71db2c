// routes.go - Route registration helpers
package api

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pdf-toolbox/backend/internal/logging"
	"github.com/sirupsen/logrus"
)

// HealthPath is excluded from request logging.
const HealthPath = "/api/health"

// RegisterRoutes registers all API routes with the Echo instance. Process,
// merge and balance accept any method so a wrong one gets the JSON 405.
func RegisterRoutes(e *echo.Echo, h *Handler) {
	g := e.Group("/api")
	g.Any("/process", h.HandleProcess)
	g.Any("/merge", h.HandleMerge)
	g.Any("/balance", h.HandleBalance)
	g.GET("/tools", h.HandleTools)
	g.GET("/health", h.HandleHealth)
}

// SetupMiddleware installs the error handler, panic recovery, request ids
// and, when enabled, request logging.
func SetupMiddleware(e *echo.Echo, logger *logrus.Logger, requestLogging bool) {
	e.HTTPErrorHandler = ErrorHandler

	e.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{
		StackSize: 4 << 10,
		LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
			logging.ForRequest(logger, c).WithError(err).WithField("stack", string(stack)).Error("Handler panicked")
			return err
		},
	}))
	e.Use(logging.RequestID())

	if requestLogging {
		e.Use(logging.RequestLogger(logger, func(c echo.Context) bool {
			return c.Request().URL.Path == HealthPath
		}))
	}
}
