// Package catalog holds the static table of tools offered to clients and
// the limits the server enforces for each of them.
package catalog

import (
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/pdf-toolbox/backend/internal/models"
	"gopkg.in/yaml.v3"
)

var (
	pdfOnly   = []string{"application/pdf"}
	imageIn   = []string{"image/jpeg", "image/jpg", "image/png"}
	imageConv = []string{"image/jpeg", "image/jpg", "image/png", "image/gif"}
	officeIn  = []string{
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		"application/vnd.openxmlformats-officedocument.presentationml.presentation",
	}
)

// defaultTools is the table compiled into the binary.
func defaultTools() []models.Tool {
	doc := models.CategoryDocument
	img := models.CategoryImage
	return []models.Tool{
		{ID: "merge", Name: "Merge PDF", Description: "Combine multiple PDF files into one document",
			Accepts: pdfOnly, MinFiles: 2, MaxFiles: 10, Category: doc, TaskType: "merge", OutputName: "merged.pdf"},
		{ID: "compress", Name: "Compress PDF", Description: "Reduce PDF file size while maintaining quality",
			Accepts: pdfOnly, MinFiles: 1, MaxFiles: 1, Category: doc, TaskType: "compress",
			Params: map[string]any{"compression_level": "recommended"}},
		{ID: "split", Name: "Split PDF", Description: "Split PDF into multiple files by pages",
			Accepts: pdfOnly, MinFiles: 1, MaxFiles: 1, Category: doc, TaskType: "split",
			Params: map[string]any{"split_mode": "fixed_range", "fixed_range": 1}},
		{ID: "rotate", Name: "Rotate PDF", Description: "Rotate PDF pages by 90, 180, or 270 degrees",
			Accepts: pdfOnly, MinFiles: 1, MaxFiles: 1, Category: doc, TaskType: "rotate"},
		{ID: "unlock", Name: "Unlock PDF", Description: "Remove password protection from PDF",
			Accepts: pdfOnly, MinFiles: 1, MaxFiles: 1, Category: doc, TaskType: "unlock"},
		{ID: "repair", Name: "Repair PDF", Description: "Fix corrupted or damaged PDF files",
			Accepts: pdfOnly, MinFiles: 1, MaxFiles: 1, Category: doc, TaskType: "repair"},
		{ID: "pdfjpg", Name: "PDF to JPG", Description: "Convert PDF pages to JPG images",
			Accepts: pdfOnly, MinFiles: 1, MaxFiles: 1, Category: img, TaskType: "pdfjpg",
			Params: map[string]any{"pdfjpg_mode": "pages"}},
		{ID: "imagepdf", Name: "JPG to PDF", Description: "Convert JPG images to PDF",
			Accepts: imageIn, MinFiles: 1, MaxFiles: 10, Category: doc, TaskType: "imagepdf"},
		{ID: "pdfocr", Name: "PDF OCR", Description: "Extract text from scanned PDF documents",
			Accepts: pdfOnly, MinFiles: 1, MaxFiles: 1, Category: doc, TaskType: "pdfocr",
			Params: map[string]any{"ocr_languages": []string{"eng"}}},
		{ID: "extract", Name: "Extract PDF", Description: "Extract text and images from PDF",
			Accepts: pdfOnly, MinFiles: 1, MaxFiles: 1, Category: doc, TaskType: "extract"},
		{ID: "officepdf", Name: "Office to PDF", Description: "Convert Word, Excel, PowerPoint to PDF",
			Accepts: officeIn, MinFiles: 1, MaxFiles: 1, Category: doc, TaskType: "officepdf"},
		{ID: "htmlpdf", Name: "HTML to PDF", Description: "Convert HTML files to PDF",
			Accepts: []string{"text/html"}, MinFiles: 1, MaxFiles: 1, Category: doc, TaskType: "htmlpdf"},
		{ID: "pdfa", Name: "Convert to PDF/A", Description: "Convert PDF to PDF/A format for archiving",
			Accepts: pdfOnly, MinFiles: 1, MaxFiles: 1, Category: doc, TaskType: "pdfa",
			Params: map[string]any{"conformance": "pdfa-2b"}},
		{ID: "validatepdfa", Name: "Validate PDF/A", Description: "Check if PDF is PDF/A compliant",
			Accepts: pdfOnly, MinFiles: 1, MaxFiles: 1, Category: doc, TaskType: "validatepdfa"},
		{ID: "compressimage", Name: "Compress Image", Description: "Reduce image file size while maintaining quality",
			Accepts: imageConv, MinFiles: 1, MaxFiles: 1, Category: img, TaskType: "compressimage"},
		{ID: "convertimage", Name: "Convert Image", Description: "Convert between different image formats",
			Accepts: imageConv, MinFiles: 1, MaxFiles: 1, Category: img, TaskType: "convertimage",
			Params: map[string]any{"to": "jpg"}},
	}
}

// Catalog is an ordered, read-only set of tools.
type Catalog struct {
	tools []models.Tool
	byID  map[string]int
}

// New builds a catalog from the given tools, rejecting invalid entries.
func New(tools []models.Tool) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]int, len(tools))}
	for _, t := range tools {
		if err := validateTool(t); err != nil {
			return nil, err
		}
		if _, dup := c.byID[t.ID]; dup {
			return nil, fmt.Errorf("duplicate tool id: %s", t.ID)
		}
		c.byID[t.ID] = len(c.tools)
		c.tools = append(c.tools, t)
	}
	return c, nil
}

// Default returns the compiled-in catalog.
func Default() *Catalog {
	c, err := New(defaultTools())
	if err != nil {
		panic(fmt.Sprintf("catalog: invalid default table: %v", err))
	}
	return c
}

// Lookup returns the tool with the given identifier.
func (c *Catalog) Lookup(id string) (models.Tool, bool) {
	i, ok := c.byID[id]
	if !ok {
		return models.Tool{}, false
	}
	return c.tools[i], true
}

// All returns every tool in table order.
func (c *Catalog) All() []models.Tool {
	return slices.Clone(c.tools)
}

// ByCategory returns the tools whose output category is cat.
func (c *Catalog) ByCategory(cat models.Category) []models.Tool {
	var out []models.Tool
	for _, t := range c.tools {
		if t.Category == cat {
			out = append(out, t)
		}
	}
	return out
}

// Len returns the number of tools.
func (c *Catalog) Len() int {
	return len(c.tools)
}

func validateTool(t models.Tool) error {
	switch {
	case t.ID == "":
		return fmt.Errorf("tool id is required")
	case t.TaskType == "":
		return fmt.Errorf("tool %s: task type is required", t.ID)
	case t.MinFiles < 1:
		return fmt.Errorf("tool %s: min files must be at least 1", t.ID)
	case t.MaxFiles < t.MinFiles:
		return fmt.Errorf("tool %s: max files (%d) below min files (%d)", t.ID, t.MaxFiles, t.MinFiles)
	case !t.Category.Valid():
		return fmt.Errorf("tool %s: unknown category %q", t.ID, t.Category)
	case len(t.Accepts) == 0:
		return fmt.Errorf("tool %s: accepted types are required", t.ID)
	}
	return nil
}

// Override is one entry of a YAML override file.
// Zero-valued fields leave the default untouched.
type Override struct {
	ID          string          `yaml:"id"`
	Disabled    bool            `yaml:"disabled"`
	Name        string          `yaml:"name"`
	Description string          `yaml:"description"`
	Accepts     []string        `yaml:"accepts"`
	MinFiles    int             `yaml:"min_files"`
	MaxFiles    int             `yaml:"max_files"`
	Category    models.Category `yaml:"category"`
	TaskType    string          `yaml:"task_type"`
	OutputName  string          `yaml:"output_name"`
	Params      map[string]any  `yaml:"params"`
}

type overrideFile struct {
	Tools []Override `yaml:"tools"`
}

// LoadFile applies the overrides in a YAML file on top of the default table.
// A missing file yields the default catalog.
func LoadFile(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog overrides: %w", err)
	}
	defer file.Close()

	return LoadFromReader(file)
}

// LoadFromReader applies YAML overrides read from r on top of the default table.
func LoadFromReader(r io.Reader) (*Catalog, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var overrides overrideFile
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("failed to parse catalog overrides: %w", err)
	}

	return New(applyOverrides(defaultTools(), overrides.Tools))
}

func applyOverrides(tools []models.Tool, overrides []Override) []models.Tool {
	index := make(map[string]int, len(tools))
	for i, t := range tools {
		index[t.ID] = i
	}
	disabled := make(map[string]bool)

	for _, o := range overrides {
		if o.Disabled {
			disabled[o.ID] = true
			continue
		}
		i, ok := index[o.ID]
		if !ok {
			tools = append(tools, models.Tool{ID: o.ID})
			i = len(tools) - 1
			index[o.ID] = i
		}
		merge(&tools[i], o)
	}

	out := tools[:0]
	for _, t := range tools {
		if !disabled[t.ID] {
			out = append(out, t)
		}
	}
	return out
}

func merge(t *models.Tool, o Override) {
	if o.Name != "" {
		t.Name = o.Name
	}
	if o.Description != "" {
		t.Description = o.Description
	}
	if len(o.Accepts) > 0 {
		t.Accepts = o.Accepts
	}
	if o.MinFiles != 0 {
		t.MinFiles = o.MinFiles
	}
	if o.MaxFiles != 0 {
		t.MaxFiles = o.MaxFiles
	}
	if o.Category != "" {
		t.Category = o.Category
	}
	if o.TaskType != "" {
		t.TaskType = o.TaskType
	}
	if o.OutputName != "" {
		t.OutputName = o.OutputName
	}
	if o.Params != nil {
		t.Params = o.Params
	}
}
