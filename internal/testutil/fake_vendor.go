// fake_vendor.go - In-process iLovePDF API double for testing
package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/golang-jwt/jwt/v5"
)

const (
	FakePublicKey = "project_public_test"
	FakeSecretKey = "secret_key_test"
)

// Vendor operations recorded by FakeVendor.
const (
	OpStart    = "start"
	OpUpload   = "upload"
	OpProcess  = "process"
	OpDownload = "download"
)

type failure struct {
	status  int
	message string
}

// FakeVendor serves the iLovePDF task endpoints over httptest. Tokens are
// verified against FakeSecretKey, so a client built with other keys gets 401.
type FakeVendor struct {
	server *httptest.Server

	mu             sync.Mutex
	calls          map[string]int
	failures       map[string]failure
	remainingFiles int
	output         []byte
	tasks          map[string][]string
	lastProcess    map[string]any
	lastTool       string
	lastRegion     string
	nextTask       int
}

// NewFakeVendor starts a fake vendor that is closed with the test.
func NewFakeVendor(t testing.TB) *FakeVendor {
	t.Helper()
	f := &FakeVendor{
		calls:          make(map[string]int),
		failures:       make(map[string]failure),
		remainingFiles: 2450,
		output:         []byte("%PDF-1.7 processed"),
		tasks:          make(map[string][]string),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/start/{tool}/{region}", f.handleStart)
	mux.HandleFunc("POST /v1/upload", f.handleUpload)
	mux.HandleFunc("POST /v1/process", f.handleProcess)
	mux.HandleFunc("GET /v1/download/{task}", f.handleDownload)

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

// URL is the base URL to configure the client with.
func (f *FakeVendor) URL() string {
	return f.server.URL
}

// Fail makes every call to op answer with status and message.
func (f *FakeVendor) Fail(op string, status int, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op] = failure{status: status, message: message}
}

// SetRemainingFiles sets the allowance reported by start.
func (f *FakeVendor) SetRemainingFiles(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remainingFiles = n
}

// SetOutput sets the bytes returned by download.
func (f *FakeVendor) SetOutput(data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.output = data
}

// Calls returns how many times op was requested.
func (f *FakeVendor) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// TotalCalls returns the number of requests of any kind.
func (f *FakeVendor) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

// LastProcess returns the decoded body of the most recent process call.
func (f *FakeVendor) LastProcess() map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastProcess
}

// LastStart returns the tool and region of the most recent start call.
func (f *FakeVendor) LastStart() (tool, region string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastTool, f.lastRegion
}

// Uploaded returns the contents uploaded to a task, in order.
func (f *FakeVendor) Uploaded(task string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.tasks[task]...)
}

// begin records the call and reports whether the handler should continue.
func (f *FakeVendor) begin(op string, w http.ResponseWriter, r *http.Request) bool {
	f.mu.Lock()
	f.calls[op]++
	fail, failing := f.failures[op]
	f.mu.Unlock()

	if !f.authorized(r) {
		writeError(w, http.StatusUnauthorized, "Unauthorized", "Invalid token")
		return false
	}
	if failing {
		writeError(w, fail.status, http.StatusText(fail.status), fail.message)
		return false
	}
	return true
}

func (f *FakeVendor) authorized(r *http.Request) bool {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return []byte(FakeSecretKey), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	return err == nil && token.Valid && claims.ID == FakePublicKey
}

func (f *FakeVendor) handleStart(w http.ResponseWriter, r *http.Request) {
	if !f.begin(OpStart, w, r) {
		return
	}
	f.mu.Lock()
	f.nextTask++
	task := fmt.Sprintf("task-%d", f.nextTask)
	f.tasks[task] = nil
	f.lastTool = r.PathValue("tool")
	f.lastRegion = r.PathValue("region")
	remaining := f.remainingFiles
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"server":          strings.TrimPrefix(f.server.URL, "http://"),
		"task":            task,
		"remaining_files": remaining,
	})
}

func (f *FakeVendor) handleUpload(w http.ResponseWriter, r *http.Request) {
	if !f.begin(OpUpload, w, r) {
		return
	}
	task := r.FormValue("task")
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "BadRequest", "file is required")
		return
	}
	defer file.Close()
	data, _ := io.ReadAll(file)

	f.mu.Lock()
	uploaded, ok := f.tasks[task]
	if ok {
		f.tasks[task] = append(uploaded, string(data))
	}
	n := len(f.tasks[task])
	f.mu.Unlock()

	if !ok {
		writeError(w, http.StatusBadRequest, "BadRequest", "unknown task")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"server_filename": fmt.Sprintf("%s-%d-%s", task, n, header.Filename),
	})
}

func (f *FakeVendor) handleProcess(w http.ResponseWriter, r *http.Request) {
	if !f.begin(OpProcess, w, r) {
		return
	}
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "BadRequest", "invalid json")
		return
	}
	f.mu.Lock()
	f.lastProcess = body
	f.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"download_filename": "output.pdf",
		"status":            "TaskSuccess",
		"timer":             "0.010",
	})
}

func (f *FakeVendor) handleDownload(w http.ResponseWriter, r *http.Request) {
	if !f.begin(OpDownload, w, r) {
		return
	}
	f.mu.Lock()
	out := f.output
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	w.Write(out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, typ, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]string{"type": typ, "message": message},
	})
}
