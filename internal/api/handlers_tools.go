// handlers_tools.go - Tool catalog
package api

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"
)

// MIMEMsgpack is the content type of MessagePack responses.
const MIMEMsgpack = "application/msgpack"

// HandleTools lists the tool catalog as JSON, or as MessagePack when the
// client asks for it.
func (h *Handler) HandleTools(c echo.Context) error {
	tools := h.catalog.All()

	if strings.Contains(c.Request().Header.Get(echo.HeaderAccept), MIMEMsgpack) {
		data, err := msgpack.Marshal(tools)
		if err != nil {
			return NewInternalError("failed to encode msgpack", err)
		}
		return c.Blob(http.StatusOK, MIMEMsgpack, data)
	}
	return c.JSON(http.StatusOK, tools)
}
