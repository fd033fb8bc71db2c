package relay

import (
	"context"

	"github.com/pdf-toolbox/backend/internal/ilovepdf"
)

// Task is one remote job as seen by the relay.
type Task interface {
	Start(ctx context.Context) error
	AddFile(ctx context.Context, path, filename string) error
	Process(ctx context.Context, params map[string]any, rotate int) error
	Download(ctx context.Context) ([]byte, error)
	RemainingFiles() int
}

// Vendor creates remote tasks.
type Vendor interface {
	NewTask(tool string) Task
}

// NewILovePDFVendor adapts an iLovePDF client to Vendor.
func NewILovePDFVendor(c *ilovepdf.Client) Vendor {
	return ilovepdfVendor{client: c}
}

type ilovepdfVendor struct {
	client *ilovepdf.Client
}

func (v ilovepdfVendor) NewTask(tool string) Task {
	return ilovepdfTask{task: v.client.NewTask(tool)}
}

type ilovepdfTask struct {
	task *ilovepdf.Task
}

func (t ilovepdfTask) Start(ctx context.Context) error {
	return t.task.Start(ctx)
}

func (t ilovepdfTask) AddFile(ctx context.Context, path, filename string) error {
	_, err := t.task.AddFile(ctx, path, filename)
	return err
}

func (t ilovepdfTask) Process(ctx context.Context, params map[string]any, rotate int) error {
	_, err := t.task.Process(ctx, ilovepdf.ProcessOptions{Params: params, Rotate: rotate})
	return err
}

func (t ilovepdfTask) Download(ctx context.Context) ([]byte, error) {
	return t.task.Download(ctx)
}

func (t ilovepdfTask) RemainingFiles() int {
	return t.task.RemainingFiles()
}
