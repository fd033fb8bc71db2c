// Package batch implements the uploader-side checks applied to a set of
// files before anything is sent to the relay.
package batch

import (
	"errors"
	"fmt"
	"math"
	"mime"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pdf-toolbox/backend/internal/models"
)

const (
	MaxFileSize  int64 = 100 * 1024 * 1024 // per file
	MaxTotalSize int64 = 500 * 1024 * 1024 // whole batch
)

// ErrNoTool is returned when files are added before a tool is chosen.
var ErrNoTool = errors.New("Please select a tool first")

// Candidate is a file offered to the batch.
type Candidate struct {
	Name        string
	Size        int64
	ContentType string
	Path        string // optional, set by the CLI
}

// OversizeError lists files above MaxFileSize.
type OversizeError struct {
	Names []string
}

func (e *OversizeError) Error() string {
	return fmt.Sprintf("Files too large: %s. Maximum file size is %s.",
		strings.Join(e.Names, ", "), FormatFileSize(MaxFileSize))
}

// TotalSizeError reports a batch that would grow past MaxTotalSize.
type TotalSizeError struct {
	Current int64
	Adding  int64
}

func (e *TotalSizeError) Error() string {
	return fmt.Sprintf("Total file size too large. Maximum total size is %s. Current: %s, Adding: %s",
		FormatFileSize(MaxTotalSize), FormatFileSize(e.Current), FormatFileSize(e.Adding))
}

// TypeError reports files whose content type the tool does not accept.
type TypeError struct {
	Tool     string
	Accepted []string
	Rejected []string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("Only %s files are allowed for %s", strings.Join(e.Accepted, ", "), e.Tool)
}

// Batch is the ordered set of files waiting to be submitted for one tool.
// It is not safe for concurrent use.
type Batch struct {
	tool  *models.Tool
	files []Candidate
	err   error
}

// New returns an empty batch with no tool selected.
func New() *Batch {
	return &Batch{}
}

// SelectTool switches the active tool and discards the current files.
func (b *Batch) SelectTool(t models.Tool) {
	b.tool = &t
	b.files = nil
	b.err = nil
}

// Tool returns the active tool, if any.
func (b *Batch) Tool() (models.Tool, bool) {
	if b.tool == nil {
		return models.Tool{}, false
	}
	return *b.tool, true
}

// Files returns a copy of the accepted files in order.
func (b *Batch) Files() []Candidate {
	out := make([]Candidate, len(b.files))
	copy(out, b.files)
	return out
}

// Err returns the message set by the last rejected operation.
func (b *Batch) Err() error {
	return b.err
}

// TotalSize returns the combined size of the accepted files.
func (b *Batch) TotalSize() int64 {
	return sumSizes(b.files)
}

// Add validates incoming and appends it to the batch. The incoming set is
// accepted or rejected as a whole; on rejection the batch is unchanged and
// the error is also recorded in Err.
func (b *Batch) Add(incoming []Candidate) error {
	if err := b.check(incoming); err != nil {
		b.err = err
		return err
	}
	b.files = append(b.files, incoming...)
	b.err = nil
	return nil
}

func (b *Batch) check(incoming []Candidate) error {
	if b.tool == nil {
		return ErrNoTool
	}

	var oversized []string
	for _, c := range incoming {
		if c.Size > MaxFileSize {
			oversized = append(oversized, c.Name)
		}
	}
	if len(oversized) > 0 {
		return &OversizeError{Names: oversized}
	}

	current := sumSizes(b.files)
	adding := sumSizes(incoming)
	if current+adding > MaxTotalSize {
		return &TotalSizeError{Current: current, Adding: adding}
	}

	var rejected []string
	for _, c := range incoming {
		if !b.tool.AcceptsType(c.ContentType) {
			rejected = append(rejected, c.Name)
		}
	}
	if len(rejected) > 0 {
		return &TypeError{Tool: b.tool.Name, Accepted: b.tool.AcceptedExtensions(), Rejected: rejected}
	}

	if n := len(b.files) + len(incoming); n > b.tool.MaxFiles {
		return b.tool.CheckFileCount(n)
	}
	return nil
}

// Remove drops the file at index i.
func (b *Batch) Remove(i int) {
	if i < 0 || i >= len(b.files) {
		return
	}
	b.files = append(b.files[:i:i], b.files[i+1:]...)
	b.err = nil
}

// Clear empties the batch but keeps the tool.
func (b *Batch) Clear() {
	b.files = nil
	b.err = nil
}

// Reset is called after a successful submission.
func (b *Batch) Reset() {
	b.Clear()
}

// CheckSubmit verifies the batch may be sent to the relay.
func (b *Batch) CheckSubmit() error {
	if b.tool == nil {
		b.err = ErrNoTool
		return ErrNoTool
	}
	if err := b.tool.CheckFileCount(len(b.files)); err != nil {
		b.err = err
		return err
	}
	return nil
}

func sumSizes(files []Candidate) int64 {
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return total
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB"}

// FormatFileSize renders bytes in binary units with up to two decimals.
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "0 Bytes"
	}
	v := float64(bytes)
	i := 0
	for v >= 1024 && i < len(sizeUnits)-1 {
		v /= 1024
		i++
	}
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64) + " " + sizeUnits[i]
}

// knownTypes covers extensions the platform MIME table may lack.
var knownTypes = map[string]string{
	".pdf":  "application/pdf",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".html": "text/html",
	".htm":  "text/html",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".pptx": "application/vnd.openxmlformats-officedocument.presentationml.presentation",
}

// ContentTypeOf guesses a file's MIME type from its extension, the way a
// browser fills in File.type. Unknown extensions yield "".
func ContentTypeOf(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if t, ok := knownTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		mediaType, _, err := mime.ParseMediaType(t)
		if err == nil {
			return mediaType
		}
	}
	return ""
}
