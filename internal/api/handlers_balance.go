// handlers_balance.go - Vendor account balance
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pdf-toolbox/backend/internal/logging"
	"github.com/pdf-toolbox/backend/internal/relay"
)

// HandleBalance reports the vendor account's remaining file allowance.
func (h *Handler) HandleBalance(c echo.Context) error {
	if c.Request().Method != http.MethodGet {
		return NewMethodNotAllowedError()
	}
	if !h.credentialsConfigured() {
		return NewInternalError(msgBalanceNoKeys, nil)
	}

	balance, err := h.relay.Balance(c.Request().Context())
	if err != nil {
		cause, message := relay.ClassifyBalance(err)
		logging.ForRequest(h.logger, c).WithError(err).WithField("cause", string(cause)).Error("Balance lookup failed")
		return NewInternalError(message, err)
	}
	return c.JSON(http.StatusOK, balance)
}
