// Package client talks to a running PDF toolbox server.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pdf-toolbox/backend/internal/models"
	"github.com/vmihailenco/msgpack/v5"
)

const (
	mimeMsgpack    = "application/msgpack"
	defaultTimeout = 10 * time.Minute
)

// ResponseError is a non-200 reply from the server.
type ResponseError struct {
	StatusCode int
	Message    string `json:"error"`
	Details    string `json:"details,omitempty"`
}

func (e *ResponseError) Error() string {
	if e.Details != "" && e.Details != e.Message {
		return fmt.Sprintf("%s (%s)", e.Message, e.Details)
	}
	return e.Message
}

// Client is a server client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the server at baseURL. A nil httpClient uses a
// client with a generous timeout for large uploads.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// Health is the server's health report.
type Health struct {
	Status                string `json:"status"`
	Version               string `json:"version"`
	CredentialsConfigured bool   `json:"credentialsConfigured"`
}

// Health fetches the server health report.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.getJSON(ctx, "/api/health", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Balance fetches the vendor account balance.
func (c *Client) Balance(ctx context.Context) (*models.Balance, error) {
	var out models.Balance
	if err := c.getJSON(ctx, "/api/balance", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Tools fetches the tool catalog in MessagePack.
func (c *Client) Tools(ctx context.Context) ([]models.Tool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tools", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", mimeMsgpack)

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var tools []models.Tool
	if err := msgpack.NewDecoder(resp.Body).Decode(&tools); err != nil {
		return nil, fmt.Errorf("decoding tools: %w", err)
	}
	return tools, nil
}

// ProcessRequest is a batch to submit.
type ProcessRequest struct {
	Tool  string
	Files []string
	// Rotation is sent for the rotate tool only.
	Rotation int
}

// Download is a processed result.
type Download struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Process uploads the files and returns the processed output. The request
// body is streamed, so files are never held in memory together.
func (c *Client) Process(ctx context.Context, pr ProcessRequest) (*Download, error) {
	return c.submit(ctx, "/api/process", pr)
}

// Merge submits files to the dedicated merge endpoint.
func (c *Client) Merge(ctx context.Context, files []string) (*Download, error) {
	return c.submit(ctx, "/api/merge", ProcessRequest{Files: files})
}

func (c *Client) submit(ctx context.Context, path string, pr ProcessRequest) (*Download, error) {
	body, writer := io.Pipe()
	mw := multipart.NewWriter(writer)
	go func() {
		writer.CloseWithError(writeForm(mw, pr))
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		body.Close()
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.do(req)
	if err != nil {
		body.Close()
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading result: %w", err)
	}

	out := &Download{
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
	}
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil {
		out.Filename = filepath.Base(params["filename"])
	}
	return out, nil
}

func writeForm(mw *multipart.Writer, pr ProcessRequest) error {
	if pr.Tool != "" {
		if err := mw.WriteField("tool", pr.Tool); err != nil {
			return err
		}
	}
	if pr.Tool == "rotate" {
		if err := mw.WriteField("rotation_angle", strconv.Itoa(pr.Rotation)); err != nil {
			return err
		}
	}
	for _, path := range pr.Files {
		if err := writeFile(mw, path); err != nil {
			return err
		}
	}
	return mw.Close()
}

func writeFile(mw *multipart.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	contentType := mime.TypeByExtension(filepath.Ext(path))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, escapeQuotes(filepath.Base(path))))
	h.Set("Content-Type", contentType)

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, f)
	return err
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s: %w", path, err)
	}
	return nil
}

// do sends req and converts any non-200 reply to a *ResponseError.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusOK {
		return resp, nil
	}
	defer resp.Body.Close()

	respErr := &ResponseError{StatusCode: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err := json.Unmarshal(raw, respErr); err != nil || respErr.Message == "" {
		respErr.Message = fmt.Sprintf("server returned %s", resp.Status)
	}
	return nil, respErr
}
