package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTool_OutputFilename(t *testing.T) {
	tests := []struct {
		name string
		tool Tool
		want string
	}{
		{"fixed output name", Tool{ID: "merge", Category: CategoryDocument, OutputName: "merged.pdf"}, "merged.pdf"},
		{"document default", Tool{ID: "compress", Category: CategoryDocument}, "processed-compress.pdf"},
		{"image default", Tool{ID: "pdfjpg", Category: CategoryImage}, "processed-pdfjpg.jpg"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.tool.OutputFilename())
		})
	}
}

func TestTool_OutputContentType(t *testing.T) {
	assert.Equal(t, "application/pdf", Tool{Category: CategoryDocument}.OutputContentType())
	assert.Equal(t, "image/jpeg", Tool{Category: CategoryImage}.OutputContentType())
}

func TestTool_AcceptsType(t *testing.T) {
	tool := Tool{Accepts: []string{"image/jpeg", "image/png"}}
	assert.True(t, tool.AcceptsType("image/png"))
	assert.True(t, tool.AcceptsType(" IMAGE/JPEG "))
	assert.False(t, tool.AcceptsType("application/pdf"))
	assert.False(t, tool.AcceptsType(""))
	assert.Equal(t, []string{"jpeg", "png"}, tool.AcceptedExtensions())
}

func TestTool_CheckFileCount(t *testing.T) {
	tool := Tool{ID: "merge", Name: "Merge PDF", MinFiles: 2, MaxFiles: 10}

	assert.NoError(t, tool.CheckFileCount(2))
	assert.NoError(t, tool.CheckFileCount(10))

	err := tool.CheckFileCount(1)
	var countErr *FileCountError
	if assert.True(t, errors.As(err, &countErr)) {
		assert.Equal(t, CountBelowMin, countErr.Kind)
		assert.Equal(t, "At least 2 file(s) required for Merge PDF", err.Error())
	}

	err = tool.CheckFileCount(11)
	if assert.True(t, errors.As(err, &countErr)) {
		assert.Equal(t, CountAboveMax, countErr.Kind)
		assert.Equal(t, "Maximum 10 file(s) allowed for Merge PDF", err.Error())
	}
}
