package relay

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/pdf-toolbox/backend/internal/catalog"
	"github.com/pdf-toolbox/backend/internal/models"
	"github.com/pdf-toolbox/backend/internal/pdfcheck"
	"github.com/pdf-toolbox/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeVendor struct {
	calls     []string
	failAt    string
	remaining int
	output    []byte
	params    map[string]any
	rotate    int
	tool      string
}

func (v *fakeVendor) NewTask(tool string) Task {
	v.tool = tool
	return &fakeTask{v: v}
}

type fakeTask struct {
	v *fakeVendor
}

func (t *fakeTask) record(call string) error {
	t.v.calls = append(t.v.calls, call)
	if t.v.failAt == call {
		return fmt.Errorf("%s exploded", call)
	}
	return nil
}

func (t *fakeTask) Start(ctx context.Context) error {
	return t.record("start")
}

func (t *fakeTask) AddFile(ctx context.Context, path, filename string) error {
	return t.record("add:" + filename)
}

func (t *fakeTask) Process(ctx context.Context, params map[string]any, rotate int) error {
	t.v.params = params
	t.v.rotate = rotate
	return t.record("process")
}

func (t *fakeTask) Download(ctx context.Context) ([]byte, error) {
	if err := t.record("download"); err != nil {
		return nil, err
	}
	return t.v.output, nil
}

func (t *fakeTask) RemainingFiles() int { return t.v.remaining }

type rejectAll struct{ checked []string }

func (r *rejectAll) Validate(path string) error {
	r.checked = append(r.checked, path)
	return errors.New("not a pdf")
}

func tool(t *testing.T, id string) models.Tool {
	t.Helper()
	tl, ok := catalog.Default().Lookup(id)
	require.True(t, ok)
	return tl
}

func files(names ...string) []*models.SpooledFile {
	out := make([]*models.SpooledFile, len(names))
	for i, n := range names {
		out[i] = &models.SpooledFile{ID: n, Name: n, Path: "/spool/" + n, ContentType: "application/pdf"}
	}
	return out
}

func TestRun_Success(t *testing.T) {
	v := &fakeVendor{remaining: 2400, output: []byte("%PDF merged")}
	r := New(v, Options{}, nil)

	res, err := r.Run(context.Background(), Request{Tool: tool(t, "merge"), Files: files("a.pdf", "b.pdf", "c.pdf")})
	require.NoError(t, err)

	assert.Equal(t, []string{"start", "add:a.pdf", "add:b.pdf", "add:c.pdf", "process", "download"}, v.calls)
	assert.Equal(t, "merge", v.tool)
	assert.Equal(t, []byte("%PDF merged"), res.Data)
	assert.Equal(t, "application/pdf", res.ContentType)
	assert.Equal(t, "merged.pdf", res.Filename)
	assert.Equal(t, 2400, res.RemainingFiles)
}

func TestRun_ToolParamsAndRotation(t *testing.T) {
	v := &fakeVendor{}
	r := New(v, Options{}, nil)

	_, err := r.Run(context.Background(), Request{Tool: tool(t, "compress"), Files: files("a.pdf"), Rotation: 180})
	require.NoError(t, err)
	assert.Equal(t, "recommended", v.params["compression_level"])
	assert.Equal(t, 0, v.rotate, "rotation only applies to the rotate tool")

	_, err = r.Run(context.Background(), Request{Tool: tool(t, "rotate"), Files: files("a.pdf"), Rotation: 270})
	require.NoError(t, err)
	assert.Equal(t, 270, v.rotate)

	res, err := r.Run(context.Background(), Request{Tool: tool(t, "pdfjpg"), Files: files("a.pdf")})
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", res.ContentType)
	assert.Equal(t, "processed-pdfjpg.jpg", res.Filename)
}

func TestRun_FailureAbortsRemainingSteps(t *testing.T) {
	tests := []struct {
		failAt string
		step   Step
		calls  []string
	}{
		{"start", StepStart, []string{"start"}},
		{"add:b.pdf", StepUpload, []string{"start", "add:a.pdf", "add:b.pdf"}},
		{"process", StepProcess, []string{"start", "add:a.pdf", "add:b.pdf", "process"}},
		{"download", StepDownload, []string{"start", "add:a.pdf", "add:b.pdf", "process", "download"}},
	}
	for _, tt := range tests {
		t.Run(tt.failAt, func(t *testing.T) {
			v := &fakeVendor{failAt: tt.failAt}
			r := New(v, Options{}, nil)

			res, err := r.Run(context.Background(), Request{Tool: tool(t, "merge"), Files: files("a.pdf", "b.pdf")})
			assert.Nil(t, res)
			var stepErr *StepError
			require.ErrorAs(t, err, &stepErr)
			assert.Equal(t, tt.step, stepErr.Step)
			assert.Equal(t, tt.calls, v.calls)
		})
	}
}

func TestRun_Preflight(t *testing.T) {
	v := &fakeVendor{}
	checker := &rejectAll{}
	r := New(v, Options{Preflight: checker}, nil)

	_, err := r.Run(context.Background(), Request{Tool: tool(t, "compress"), Files: files("bad.pdf")})
	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, StepPreflight, stepErr.Step)
	assert.Equal(t, "bad.pdf", stepErr.File)
	assert.Empty(t, v.calls, "vendor must not be contacted")
	assert.Equal(t, []string{"/spool/bad.pdf"}, checker.checked)

	cause, _ := Classify(err, "compress")
	assert.Equal(t, CauseInvalidFile, cause)

	// Non-PDF inputs skip preflight.
	img := &models.SpooledFile{ID: "x", Name: "x.png", Path: "/spool/x.png", ContentType: "image/png"}
	_, err = r.Run(context.Background(), Request{Tool: tool(t, "imagepdf"), Files: []*models.SpooledFile{img}})
	require.NoError(t, err)
}

func TestRun_PreflightAcceptsValidPDF(t *testing.T) {
	path := testutil.WritePDF(t, t.TempDir(), "good.pdf")
	v := &fakeVendor{output: []byte("out")}
	r := New(v, Options{Preflight: pdfcheck.New()}, nil)

	f := &models.SpooledFile{ID: "g", Name: "good.pdf", Path: path, ContentType: "application/pdf"}
	res, err := r.Run(context.Background(), Request{Tool: tool(t, "compress"), Files: []*models.SpooledFile{f}})
	require.NoError(t, err)
	assert.Equal(t, []byte("out"), res.Data)
	assert.Equal(t, []string{"start", "add:good.pdf", "process", "download"}, v.calls)
}

func TestRun_NoFiles(t *testing.T) {
	v := &fakeVendor{}
	_, err := New(v, Options{}, nil).Run(context.Background(), Request{Tool: tool(t, "compress")})
	assert.Error(t, err)
	assert.Empty(t, v.calls)
}

func TestBalance(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		v := &fakeVendor{remaining: 2450}
		b, err := New(v, Options{}, nil).Balance(context.Background())
		require.NoError(t, err)
		assert.Equal(t, &models.Balance{
			RemainingFiles: 2450,
			UsedCredits:    50,
			TotalCredits:   2500,
			Plan:           "Free Tier",
			Price:          "$0",
			Success:        true,
		}, b)
		assert.Equal(t, "compress", v.tool)
		assert.Equal(t, []string{"start"}, v.calls)
	})

	t.Run("used never negative", func(t *testing.T) {
		v := &fakeVendor{remaining: 4000}
		b, err := New(v, Options{TotalCredits: 3000, Plan: "Premium", Price: "$4"}, nil).Balance(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 0, b.UsedCredits)
		assert.Equal(t, 3000, b.TotalCredits)
		assert.Equal(t, "Premium", b.Plan)
	})

	t.Run("start failure", func(t *testing.T) {
		v := &fakeVendor{failAt: "start"}
		_, err := New(v, Options{}, nil).Balance(context.Background())
		var stepErr *StepError
		require.ErrorAs(t, err, &stepErr)
		assert.Equal(t, StepStart, stepErr.Step)
	})
}

func TestValidRotation(t *testing.T) {
	for _, a := range []int{0, 90, 180, 270} {
		assert.True(t, ValidRotation(a), a)
	}
	for _, a := range []int{-90, 45, 360} {
		assert.False(t, ValidRotation(a), a)
	}
}
