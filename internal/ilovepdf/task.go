package ilovepdf

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
)

const (
	opStart    = "start"
	opUpload   = "upload"
	opProcess  = "process"
	opDownload = "download"
)

type taskState int

const (
	stateNew taskState = iota
	stateStarted
	stateProcessed
	stateDownloaded
)

// File is a document uploaded to a task.
type File struct {
	ServerFilename string `json:"server_filename"`
	Filename       string `json:"filename"`
	Rotate         int    `json:"rotate,omitempty"`
}

// ProcessResult is the vendor's summary of a processed task.
type ProcessResult struct {
	DownloadFilename string `json:"download_filename"`
	FileSize         int64  `json:"filesize"`
	OutputFileSize   int64  `json:"output_filesize"`
	OutputFileNumber int    `json:"output_filenumber"`
	Timer            string `json:"timer"`
	Status           string `json:"status"`
}

// Task is one vendor job. Methods must be called in lifecycle order:
// Start, AddFile (one or more), Process, Download.
type Task struct {
	client         *Client
	tool           string
	server         string
	id             string
	remainingFiles int
	files          []File
	state          taskState
}

// ID returns the vendor task identifier, empty before Start.
func (t *Task) ID() string { return t.id }

// Tool returns the vendor tool name.
func (t *Task) Tool() string { return t.tool }

// RemainingFiles is the account's remaining file allowance reported by Start.
func (t *Task) RemainingFiles() int { return t.remainingFiles }

// Files returns the files uploaded so far.
func (t *Task) Files() []File {
	out := make([]File, len(t.files))
	copy(out, t.files)
	return out
}

type startResponse struct {
	Server         string `json:"server"`
	Task           string `json:"task"`
	RemainingFiles int    `json:"remaining_files"`
}

// Start asks the vendor for a task and the server that will run it.
func (t *Task) Start(ctx context.Context) error {
	endpoint := fmt.Sprintf("%s/v1/start/%s/%s", t.client.baseURL.String(), t.tool, t.client.region)
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("ilovepdf: start: %w", err)
	}

	var out startResponse
	if err := t.client.doJSON(ctx, opStart, req, &out); err != nil {
		return err
	}
	if out.Task == "" {
		return fmt.Errorf("ilovepdf: start: response carried no task id")
	}

	t.server = t.client.serverURL(out.Server)
	t.id = out.Task
	t.remainingFiles = out.RemainingFiles
	t.files = nil
	t.state = stateStarted

	t.client.logger.WithField("tool", t.tool).WithField("task", t.id).Debug("iLovePDF task started")
	return nil
}

// AddFile uploads the file at path. filename is the name the vendor reports
// back and uses inside archives.
func (t *Task) AddFile(ctx context.Context, path, filename string) (*File, error) {
	if t.state != stateStarted {
		return nil, ErrTaskNotStarted
	}
	if filename == "" {
		filename = filepath.Base(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("ilovepdf: upload: %w", err)
	}
	defer f.Close()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	go func() {
		pw.CloseWithError(writeUpload(mw, t.id, filename, f))
	}()

	req, err := http.NewRequest(http.MethodPost, t.server+"/v1/upload", pr)
	if err != nil {
		pr.Close()
		return nil, fmt.Errorf("ilovepdf: upload: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var out struct {
		ServerFilename string `json:"server_filename"`
	}
	if err := t.client.doJSON(ctx, opUpload, req, &out); err != nil {
		pr.Close()
		return nil, err
	}
	if out.ServerFilename == "" {
		return nil, fmt.Errorf("ilovepdf: upload: response carried no server filename")
	}

	t.files = append(t.files, File{ServerFilename: out.ServerFilename, Filename: filename})
	return &t.files[len(t.files)-1], nil
}

func writeUpload(mw *multipart.Writer, taskID, filename string, r io.Reader) error {
	if err := mw.WriteField("task", taskID); err != nil {
		return err
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, r); err != nil {
		return err
	}
	return mw.Close()
}

// ProcessOptions are the tool parameters sent with the process call.
type ProcessOptions struct {
	// Params are tool specific settings merged into the request body.
	Params map[string]any
	// Rotate is applied to every file, in degrees.
	Rotate int
}

// Process runs the tool over the uploaded files.
func (t *Task) Process(ctx context.Context, opts ProcessOptions) (*ProcessResult, error) {
	if t.state != stateStarted {
		return nil, ErrTaskNotStarted
	}
	if len(t.files) == 0 {
		return nil, ErrNoFiles
	}

	files := t.Files()
	for i := range files {
		files[i].Rotate = opts.Rotate
	}

	body := make(map[string]any, len(opts.Params)+3)
	for k, v := range opts.Params {
		body[k] = v
	}
	body["task"] = t.id
	body["tool"] = t.tool
	body["files"] = files

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("ilovepdf: process: encoding request: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, t.server+"/v1/process", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("ilovepdf: process: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out ProcessResult
	if err := t.client.doJSON(ctx, opProcess, req, &out); err != nil {
		return nil, err
	}
	t.state = stateProcessed
	return &out, nil
}

// Download fetches the processed output.
func (t *Task) Download(ctx context.Context) ([]byte, error) {
	if t.state < stateProcessed {
		return nil, ErrNotProcessed
	}
	req, err := http.NewRequest(http.MethodGet, fmt.Sprintf("%s/v1/download/%s", t.server, t.id), nil)
	if err != nil {
		return nil, fmt.Errorf("ilovepdf: download: %w", err)
	}

	resp, err := t.client.do(ctx, opDownload, req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if isTimeout(ctx, err) {
			return nil, fmt.Errorf("ilovepdf: download: request timeout: %w", err)
		}
		return nil, fmt.Errorf("ilovepdf: download: %w", err)
	}
	t.state = stateDownloaded
	return data, nil
}
