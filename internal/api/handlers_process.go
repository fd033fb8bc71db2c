// handlers_process.go - Upload, relay and download handlers
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pdf-toolbox/backend/internal/logging"
	"github.com/pdf-toolbox/backend/internal/models"
	"github.com/pdf-toolbox/backend/internal/relay"
	"github.com/sirupsen/logrus"
)

// HandleProcess accepts a multipart batch for any catalog tool and returns
// the processed file.
func (h *Handler) HandleProcess(c echo.Context) error {
	if c.Request().Method != http.MethodPost {
		return NewMethodNotAllowedError()
	}
	if !h.credentialsConfigured() {
		return NewInternalError(msgKeysNotConfigured, nil)
	}

	received := time.Now()
	log := logging.ForRequest(h.logger, c)
	up, err := h.parseUpload(c)
	defer h.cleanup(log, up.files)
	if err != nil {
		return err
	}

	if up.tool == "" {
		return NewBadRequestError(msgToolRequired)
	}
	tool, ok := h.catalog.Lookup(up.tool)
	if !ok {
		return NewBadRequestError(fmt.Sprintf("Unsupported tool: %s", up.tool))
	}
	if len(up.files) == 0 {
		return NewBadRequestError(msgNoFiles)
	}
	if err := tool.CheckFileCount(len(up.files)); err != nil {
		var countErr *models.FileCountError
		if errors.As(err, &countErr) {
			countErr.Tool = tool.ID
		}
		return NewBadRequestError(err.Error())
	}

	rotation := 0
	if tool.TaskType == "rotate" {
		if rotation, err = parseRotation(up.rotation); err != nil {
			return err
		}
	}

	log = log.WithFields(logrus.Fields{"tool": tool.ID, "files": len(up.files)})
	return h.run(c, log, received, relay.Request{Tool: tool, Files: up.files, Rotation: rotation}, func(err error) (relay.Cause, string) {
		return relay.Classify(err, tool.ID)
	})
}

// HandleMerge is the single-purpose merge endpoint. It ignores any tool
// field and always merges.
func (h *Handler) HandleMerge(c echo.Context) error {
	if c.Request().Method != http.MethodPost {
		return NewMethodNotAllowedError()
	}
	if !h.credentialsConfigured() {
		return NewInternalError(msgKeysNotConfigured, nil)
	}

	received := time.Now()
	log := logging.ForRequest(h.logger, c)
	up, err := h.parseUpload(c)
	defer h.cleanup(log, up.files)
	if err != nil {
		return err
	}

	tool, ok := h.catalog.Lookup("merge")
	if !ok {
		return NewInternalError("Merge tool is not available", nil)
	}
	if len(up.files) == 0 {
		return NewBadRequestError(msgNoFiles)
	}
	if len(up.files) < 2 {
		return NewBadRequestError(msgMergeMinimum)
	}
	if err := tool.CheckFileCount(len(up.files)); err != nil {
		return NewBadRequestError(err.Error())
	}
	tool.OutputName = "merged.pdf"

	log = log.WithFields(logrus.Fields{"tool": tool.ID, "files": len(up.files)})
	return h.run(c, log, received, relay.Request{Tool: tool, Files: up.files}, relay.ClassifyMerge)
}

// run relays the batch and writes either the full result or a classified
// error. Nothing is written until the download has completed.
func (h *Handler) run(c echo.Context, log *logrus.Entry, received time.Time, req relay.Request, classify func(error) (relay.Cause, string)) error {
	ctx := c.Request().Context()
	if h.relayTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithDeadline(ctx, received.Add(h.relayTimeout))
		defer cancel()
	}

	began := time.Now()
	result, err := h.relay.Run(ctx, req)
	if err != nil {
		cause, message := classify(err)
		log.WithError(err).WithField("cause", string(cause)).Error("Processing failed")
		return NewInternalError(message, err)
	}

	log.WithFields(logrus.Fields{
		"bytes":           len(result.Data),
		"remaining_files": result.RemainingFiles,
		"duration":        time.Since(began).String(),
	}).Info("Processing completed")

	header := c.Response().Header()
	header.Set(echo.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, result.Filename))
	header.Set(echo.HeaderContentLength, strconv.Itoa(len(result.Data)))
	return c.Blob(http.StatusOK, result.ContentType, result.Data)
}

// parseRotation validates rotation_angle. An empty value selects the default.
func parseRotation(raw string) (int, error) {
	if raw == "" {
		return relay.DefaultRotation, nil
	}
	angle, err := strconv.Atoi(raw)
	if err != nil || !relay.ValidRotation(angle) {
		return 0, NewBadRequestError(fmt.Sprintf("Invalid rotation angle: %s. Must be one of 0, 90, 180, 270", raw))
	}
	return angle, nil
}
