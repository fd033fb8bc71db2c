// Package pdfcheck performs local sanity checks on PDF files before they are
// sent to the vendor.
package pdfcheck

import (
	"fmt"
	"os"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var disableConfigDir sync.Once

// Info summarises a PDF file.
type Info struct {
	Path  string
	Size  int64
	Pages int
}

// Checker validates PDFs with pdfcpu in relaxed mode.
type Checker struct{}

// New creates a Checker. pdfcpu's on-disk configuration directory is
// disabled so the check never writes outside the spool.
func New() *Checker {
	disableConfigDir.Do(api.DisableConfigDir)
	return &Checker{}
}

func config() *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	return conf
}

// Validate reports whether the file at path parses as a PDF.
func (c *Checker) Validate(path string) error {
	if err := api.ValidateFile(path, config()); err != nil {
		return fmt.Errorf("pdfcheck: %w", err)
	}
	return nil
}

// PageCount returns the number of pages in the file at path.
func (c *Checker) PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("pdfcheck: %w", err)
	}
	return n, nil
}

// Inspect validates the file and reports its size and page count.
func (c *Checker) Inspect(path string) (*Info, error) {
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("pdfcheck: %w", err)
	}
	if err := c.Validate(path); err != nil {
		return nil, err
	}
	pages, err := c.PageCount(path)
	if err != nil {
		return nil, err
	}
	return &Info{Path: path, Size: fi.Size(), Pages: pages}, nil
}
