package models

import (
	"fmt"
	"slices"
	"strings"
)

// Category is the output category of a tool.
type Category string

const (
	CategoryDocument Category = "document"
	CategoryImage    Category = "image"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return c == CategoryDocument || c == CategoryImage
}

// Tool describes one file-processing operation offered by the vendor.
// Tools are static: they are built once at startup and never mutated.
type Tool struct {
	ID          string         `json:"id" yaml:"id" msgpack:"id"`
	Name        string         `json:"name" yaml:"name" msgpack:"name"`
	Description string         `json:"description" yaml:"description" msgpack:"description"`
	Accepts     []string       `json:"accepts" yaml:"accepts" msgpack:"accepts"`
	MinFiles    int            `json:"minFiles" yaml:"min_files" msgpack:"minFiles"`
	MaxFiles    int            `json:"maxFiles" yaml:"max_files" msgpack:"maxFiles"`
	Category    Category       `json:"category" yaml:"category" msgpack:"category"`
	TaskType    string         `json:"-" yaml:"task_type" msgpack:"-"`
	OutputName  string         `json:"outputName,omitempty" yaml:"output_name,omitempty" msgpack:"outputName,omitempty"`
	Params      map[string]any `json:"-" yaml:"params,omitempty" msgpack:"-"`
}

// AcceptsType reports whether the MIME type is in the tool's accepted set.
func (t Tool) AcceptsType(contentType string) bool {
	return slices.Contains(t.Accepts, strings.ToLower(strings.TrimSpace(contentType)))
}

// AcceptedExtensions returns the subtype of every accepted MIME type,
// e.g. "pdf" for application/pdf.
func (t Tool) AcceptedExtensions() []string {
	exts := make([]string, 0, len(t.Accepts))
	for _, a := range t.Accepts {
		if i := strings.LastIndex(a, "/"); i >= 0 {
			exts = append(exts, a[i+1:])
		} else {
			exts = append(exts, a)
		}
	}
	return exts
}

// OutputContentType returns the MIME type of the tool's result.
func (t Tool) OutputContentType() string {
	if t.Category == CategoryImage {
		return "image/jpeg"
	}
	return "application/pdf"
}

// OutputFilename returns the download name of the tool's result.
func (t Tool) OutputFilename() string {
	if t.OutputName != "" {
		return t.OutputName
	}
	ext := "pdf"
	if t.Category == CategoryImage {
		ext = "jpg"
	}
	return fmt.Sprintf("processed-%s.%s", t.ID, ext)
}

// CheckFileCount validates n against the tool's bounds.
func (t Tool) CheckFileCount(n int) error {
	if n < t.MinFiles {
		return &FileCountError{Tool: t.Name, Limit: t.MinFiles, Got: n, Kind: CountBelowMin}
	}
	if n > t.MaxFiles {
		return &FileCountError{Tool: t.Name, Limit: t.MaxFiles, Got: n, Kind: CountAboveMax}
	}
	return nil
}

// CountKind tells which bound a FileCountError violated.
type CountKind int

const (
	CountBelowMin CountKind = iota
	CountAboveMax
)

// FileCountError is returned when a batch falls outside a tool's min/max file count.
// The browser, the CLI and the server all report it with the same text.
type FileCountError struct {
	Tool  string
	Limit int
	Got   int
	Kind  CountKind
}

func (e *FileCountError) Error() string {
	if e.Kind == CountBelowMin {
		return fmt.Sprintf("At least %d file(s) required for %s", e.Limit, e.Tool)
	}
	return fmt.Sprintf("Maximum %d file(s) allowed for %s", e.Limit, e.Tool)
}
