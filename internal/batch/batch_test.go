package batch

import (
	"errors"
	"fmt"
	"testing"

	"github.com/pdf-toolbox/backend/internal/catalog"
	"github.com/pdf-toolbox/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mb = 1024 * 1024

func pdf(name string, size int64) Candidate {
	return Candidate{Name: name, Size: size, ContentType: "application/pdf"}
}

func newBatch(t *testing.T, toolID string) *Batch {
	t.Helper()
	tool, ok := catalog.Default().Lookup(toolID)
	require.True(t, ok, toolID)
	b := New()
	b.SelectTool(tool)
	return b
}

func TestAdd_NoTool(t *testing.T) {
	b := New()
	err := b.Add([]Candidate{pdf("a.pdf", 10)})
	assert.ErrorIs(t, err, ErrNoTool)
	assert.Empty(t, b.Files())
	assert.Equal(t, ErrNoTool, b.Err())
}

func TestAdd_Accepts(t *testing.T) {
	b := newBatch(t, "merge")
	require.NoError(t, b.Add([]Candidate{pdf("a.pdf", 10)}))
	require.NoError(t, b.Add([]Candidate{pdf("b.pdf", 20), pdf("c.pdf", 30)}))

	files := b.Files()
	require.Len(t, files, 3)
	assert.Equal(t, []string{"a.pdf", "b.pdf", "c.pdf"}, []string{files[0].Name, files[1].Name, files[2].Name})
	assert.Equal(t, int64(60), b.TotalSize())
	assert.NoError(t, b.Err())
}

func TestAdd_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		tool     string
		existing []Candidate
		incoming []Candidate
		target   any
		msg      string
	}{
		{
			name:     "single oversized file",
			tool:     "merge",
			incoming: []Candidate{pdf("ok.pdf", 1), pdf("huge.pdf", MaxFileSize+1)},
			target:   new(*OversizeError),
			msg:      "Files too large: huge.pdf. Maximum file size is 100 MB.",
		},
		{
			name:     "aggregate ceiling",
			tool:     "merge",
			existing: []Candidate{pdf("a.pdf", 90*mb), pdf("b.pdf", 90*mb), pdf("c.pdf", 90*mb), pdf("d.pdf", 90*mb)},
			incoming: []Candidate{pdf("e.pdf", 90*mb), pdf("f.pdf", 90*mb)},
			target:   new(*TotalSizeError),
			msg:      "Total file size too large. Maximum total size is 500 MB. Current: 360 MB, Adding: 180 MB",
		},
		{
			name:     "type mismatch rejects whole set",
			tool:     "merge",
			incoming: []Candidate{pdf("a.pdf", 1), {Name: "b.png", Size: 1, ContentType: "image/png"}},
			target:   new(*TypeError),
			msg:      "Only pdf files are allowed for Merge PDF",
		},
		{
			name:     "image tool lists extensions",
			tool:     "compressimage",
			incoming: []Candidate{pdf("a.pdf", 1)},
			target:   new(*TypeError),
			msg:      "Only jpeg, jpg, png, gif files are allowed for Compress Image",
		},
		{
			name:     "max count",
			tool:     "compress",
			existing: []Candidate{pdf("a.pdf", 1)},
			incoming: []Candidate{pdf("b.pdf", 1)},
			target:   new(*models.FileCountError),
			msg:      "Maximum 1 file(s) allowed for Compress PDF",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBatch(t, tt.tool)
			if len(tt.existing) > 0 {
				require.NoError(t, b.Add(tt.existing))
			}
			before := b.Files()

			err := b.Add(tt.incoming)
			require.Error(t, err)
			assert.True(t, errors.As(err, tt.target), "unexpected error type %T", err)
			assert.Equal(t, tt.msg, err.Error())
			assert.Equal(t, before, b.Files(), "batch must be unchanged on rejection")
			assert.Equal(t, err, b.Err())
		})
	}
}

func TestAdd_AggregateCeilingNeverChangesBatch(t *testing.T) {
	for existing := 0; existing <= 5; existing++ {
		t.Run(fmt.Sprintf("%d existing", existing), func(t *testing.T) {
			b := newBatch(t, "merge")
			var current []Candidate
			for i := 0; i < existing; i++ {
				current = append(current, pdf(fmt.Sprintf("f%d.pdf", i), 99*mb))
			}
			if len(current) > 0 {
				require.NoError(t, b.Add(current))
			}
			before := b.Files()

			var incoming []Candidate
			for added := int64(0); b.TotalSize()+added <= MaxTotalSize; added += MaxFileSize {
				incoming = append(incoming, pdf(fmt.Sprintf("new%d.pdf", len(incoming)), MaxFileSize))
			}
			err := b.Add(incoming)
			var sizeErr *TotalSizeError
			require.ErrorAs(t, err, &sizeErr)
			assert.Equal(t, before, b.Files())
		})
	}
}

func TestAdd_SuccessClearsError(t *testing.T) {
	b := newBatch(t, "merge")
	require.Error(t, b.Add([]Candidate{{Name: "x.txt", Size: 1, ContentType: "text/plain"}}))
	require.Error(t, b.Err())

	require.NoError(t, b.Add([]Candidate{pdf("a.pdf", 1)}))
	assert.NoError(t, b.Err())
}

func TestCheckSubmit(t *testing.T) {
	b := New()
	assert.ErrorIs(t, b.CheckSubmit(), ErrNoTool)

	b = newBatch(t, "merge")
	require.NoError(t, b.Add([]Candidate{pdf("a.pdf", 1)}))
	err := b.CheckSubmit()
	var countErr *models.FileCountError
	require.ErrorAs(t, err, &countErr)
	assert.Equal(t, "At least 2 file(s) required for Merge PDF", err.Error())

	require.NoError(t, b.Add([]Candidate{pdf("b.pdf", 1)}))
	assert.NoError(t, b.CheckSubmit())

	b.Reset()
	assert.Empty(t, b.Files())
	tool, ok := b.Tool()
	assert.True(t, ok)
	assert.Equal(t, "merge", tool.ID)
}

func TestSelectToolDiscardsFiles(t *testing.T) {
	b := newBatch(t, "merge")
	require.NoError(t, b.Add([]Candidate{pdf("a.pdf", 1), pdf("b.pdf", 1)}))

	compress, _ := catalog.Default().Lookup("compress")
	b.SelectTool(compress)
	assert.Empty(t, b.Files())
	assert.NoError(t, b.Err())
}

func TestRemove(t *testing.T) {
	b := newBatch(t, "merge")
	require.NoError(t, b.Add([]Candidate{pdf("a.pdf", 1), pdf("b.pdf", 2), pdf("c.pdf", 3)}))

	b.Remove(1)
	files := b.Files()
	require.Len(t, files, 2)
	assert.Equal(t, "a.pdf", files[0].Name)
	assert.Equal(t, "c.pdf", files[1].Name)

	b.Remove(-1)
	b.Remove(5)
	assert.Len(t, b.Files(), 2)

	b.Clear()
	assert.Empty(t, b.Files())
}

func TestFormatFileSize(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 Bytes"},
		{512, "512 Bytes"},
		{1024, "1 KB"},
		{1536, "1.5 KB"},
		{100 * mb, "100 MB"},
		{5 * 1024 * mb, "5 GB"},
		{3 * 1024 * 1024 * mb, "3072 GB"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatFileSize(tt.in), "%d", tt.in)
	}
}

func TestContentTypeOf(t *testing.T) {
	assert.Equal(t, "application/pdf", ContentTypeOf("Report.PDF"))
	assert.Equal(t, "image/jpeg", ContentTypeOf("photo.jpeg"))
	assert.Equal(t, "text/html", ContentTypeOf("page.htm"))
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", ContentTypeOf("letter.docx"))
	assert.Equal(t, "", ContentTypeOf("noextension"))
}
