package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pdf-toolbox/backend/internal/logging"
	"github.com/pdf-toolbox/backend/internal/models"
	"github.com/pdf-toolbox/backend/internal/storage"
	"github.com/sirupsen/logrus"
)

const (
	// maxFieldSize bounds plain form values such as tool and rotation_angle.
	maxFieldSize = 1024
	// maxDrainSize bounds how much of a rejected body is read so the client
	// receives the error instead of a reset connection.
	maxDrainSize = 64 * 1024 * 1024
)

// Dependencies holds all handler dependencies
type Dependencies struct {
	Catalog ToolCatalog
	Spool   storage.Spool
	// Relay is nil when vendor credentials are not configured.
	Relay       Relayer
	MaxFileSize int64
	// RelayTimeout bounds a request from arrival to the end of the relay.
	// Zero disables the deadline.
	RelayTimeout time.Duration
	Version      string
	Logger       *logrus.Logger
}

// Handler handles API requests. It keeps no state between requests.
type Handler struct {
	catalog     ToolCatalog
	spool       storage.Spool
	relay        Relayer
	maxFileSize  int64
	relayTimeout time.Duration
	version      string
	logger       *logrus.Logger
}

// NewHandler creates a new API handler.
func NewHandler(deps Dependencies) *Handler {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Handler{
		catalog:     deps.Catalog,
		spool:       deps.Spool,
		relay:        deps.Relay,
		maxFileSize:  deps.MaxFileSize,
		relayTimeout: deps.RelayTimeout,
		version:      deps.Version,
		logger:       logger,
	}
}

func (h *Handler) credentialsConfigured() bool {
	return h.relay != nil
}

// upload is a parsed multipart request. Files are already on disk.
type upload struct {
	tool     string
	rotation string
	files    []*models.SpooledFile
}

// parseUpload streams every "files" part into the spool. The returned upload
// is never nil, so files spooled before a failure can still be removed.
func (h *Handler) parseUpload(c echo.Context) (*upload, error) {
	up := &upload{}

	mr, err := c.Request().MultipartReader()
	if errors.Is(err, http.ErrNotMultipart) {
		return up, nil
	}
	if err != nil {
		return up, NewBadRequestError("Invalid multipart form data")
	}

	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			return up, nil
		}
		if err != nil {
			return up, &APIError{Status: http.StatusBadRequest, Message: "Invalid multipart form data", Details: err.Error()}
		}

		switch part.FormName() {
		case "files":
			if part.FileName() == "" {
				break
			}
			f, err := h.spool.Save(part.FileName(), part.Header.Get(echo.HeaderContentType), part)
			if errors.Is(err, storage.ErrFileTooLarge) {
				part.Close()
				drain(c.Request().Body)
				return up, NewBadRequestError(fmt.Sprintf("Files too large: %s. Maximum file size is %d MB.",
					part.FileName(), h.maxFileSize/(1024*1024)))
			}
			if err != nil {
				part.Close()
				return up, NewInternalError("Failed to store uploaded file", err)
			}
			up.files = append(up.files, f)
		case "tool":
			up.tool, err = readField(part)
		case "rotation_angle":
			up.rotation, err = readField(part)
		}
		part.Close()
		if err != nil {
			return up, &APIError{Status: http.StatusBadRequest, Message: "Invalid multipart form data", Details: err.Error()}
		}
	}
}

func drain(body io.Reader) {
	io.CopyN(io.Discard, body, maxDrainSize)
}

func readField(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxFieldSize))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// cleanup removes spooled files. Failures are logged only; the sweep
// collects anything left behind.
func (h *Handler) cleanup(log *logrus.Entry, files []*models.SpooledFile) {
	if len(files) == 0 {
		return
	}
	if err := h.spool.RemoveAll(files); err != nil {
		log.WithError(err).Warn("Failed to remove temporary files")
	}
}
