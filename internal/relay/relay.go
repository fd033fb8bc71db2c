// Package relay drives a vendor task for one batch of spooled files.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdf-toolbox/backend/internal/models"
	"github.com/sirupsen/logrus"
)

// Step names one remote phase of a relay.
type Step string

const (
	StepPreflight Step = "preflight"
	StepStart     Step = "start"
	StepUpload    Step = "upload"
	StepProcess   Step = "process"
	StepDownload  Step = "download"
)

// Defaults for the balance report.
const (
	DefaultTotalCredits = 2500
	DefaultPlan         = "Free Tier"
	DefaultPrice        = "$0"

	balanceProbeTool = "compress"
)

// ValidRotations are the rotation angles accepted for the rotate tool.
var ValidRotations = []int{0, 90, 180, 270}

// DefaultRotation is used when a rotate request names no angle.
const DefaultRotation = 90

// StepError reports the phase in which a relay failed.
type StepError struct {
	Step Step
	File string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// Checker validates a local file before it is sent anywhere.
type Checker interface {
	Validate(path string) error
}

// Options configures a Relay.
type Options struct {
	TotalCredits int
	Plan         string
	Price        string
	// Preflight, when set, validates PDF inputs locally before the vendor
	// is contacted.
	Preflight Checker
}

// Request is one batch to process.
type Request struct {
	Tool     models.Tool
	Files    []*models.SpooledFile
	Rotation int
}

// Result is the downloaded output of a processed batch.
type Result struct {
	Data           []byte
	ContentType    string
	Filename       string
	RemainingFiles int
}

// Relay forwards batches to a vendor. It holds no per-request state.
type Relay struct {
	vendor Vendor
	opts   Options
	logger *logrus.Logger
}

// New creates a relay.
func New(vendor Vendor, opts Options, logger *logrus.Logger) *Relay {
	if opts.TotalCredits <= 0 {
		opts.TotalCredits = DefaultTotalCredits
	}
	if opts.Plan == "" {
		opts.Plan = DefaultPlan
	}
	if opts.Price == "" {
		opts.Price = DefaultPrice
	}
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Relay{vendor: vendor, opts: opts, logger: logger}
}

// ValidRotation reports whether angle is an accepted rotation.
func ValidRotation(angle int) bool {
	for _, r := range ValidRotations {
		if r == angle {
			return true
		}
	}
	return false
}

// Run starts a task, uploads every file in order, processes and downloads.
// The first failure aborts the remaining steps.
func (r *Relay) Run(ctx context.Context, req Request) (*Result, error) {
	if len(req.Files) == 0 {
		return nil, errors.New("no files to process")
	}
	log := r.logger.WithFields(logrus.Fields{
		"tool":  req.Tool.ID,
		"files": len(req.Files),
	})
	began := time.Now()

	if r.opts.Preflight != nil {
		for _, f := range req.Files {
			if !isPDF(f) {
				continue
			}
			if err := r.opts.Preflight.Validate(f.Path); err != nil {
				return nil, &StepError{Step: StepPreflight, File: f.Name, Err: fmt.Errorf("invalid file %s: %w", f.Name, err)}
			}
		}
	}

	task := r.vendor.NewTask(req.Tool.TaskType)
	if err := task.Start(ctx); err != nil {
		return nil, &StepError{Step: StepStart, Err: err}
	}

	for _, f := range req.Files {
		if err := task.AddFile(ctx, f.Path, f.Name); err != nil {
			return nil, &StepError{Step: StepUpload, File: f.Name, Err: err}
		}
	}

	rotate := 0
	if req.Tool.TaskType == "rotate" {
		rotate = req.Rotation
	}
	if err := task.Process(ctx, req.Tool.Params, rotate); err != nil {
		return nil, &StepError{Step: StepProcess, Err: err}
	}

	data, err := task.Download(ctx)
	if err != nil {
		return nil, &StepError{Step: StepDownload, Err: err}
	}

	log.WithFields(logrus.Fields{
		"output_bytes": len(data),
		"duration":     time.Since(began).String(),
	}).Info("Relay completed")

	return &Result{
		Data:           data,
		ContentType:    req.Tool.OutputContentType(),
		Filename:       req.Tool.OutputFilename(),
		RemainingFiles: task.RemainingFiles(),
	}, nil
}

// Balance starts a probe task to read the account's remaining allowance.
func (r *Relay) Balance(ctx context.Context) (*models.Balance, error) {
	task := r.vendor.NewTask(balanceProbeTool)
	if err := task.Start(ctx); err != nil {
		return nil, &StepError{Step: StepStart, Err: err}
	}

	remaining := task.RemainingFiles()
	return &models.Balance{
		RemainingFiles: remaining,
		UsedCredits:    max(0, r.opts.TotalCredits-remaining),
		TotalCredits:   r.opts.TotalCredits,
		Plan:           r.opts.Plan,
		Price:          r.opts.Price,
		Success:        true,
	}, nil
}

func isPDF(f *models.SpooledFile) bool {
	return f.ContentType == "application/pdf" || strings.EqualFold(filepath.Ext(f.Name), ".pdf")
}
