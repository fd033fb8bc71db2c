// multipart.go - Multipart request body builder for handler tests
package testutil

import (
	"bytes"
	"mime/multipart"
	"net/textproto"
	"testing"
)

// FilePart is one uploaded file in a multipart body.
type FilePart struct {
	Field       string
	Name        string
	ContentType string
	Data        []byte
}

// PDFPart returns a "files" part with PDF content.
func PDFPart(name string) FilePart {
	return FilePart{Field: "files", Name: name, ContentType: "application/pdf", Data: []byte("%PDF-1.4 " + name)}
}

// MultipartBody encodes fields and files and returns the body with its
// content type.
func MultipartBody(t testing.TB, fields map[string]string, files ...FilePart) (*bytes.Buffer, string) {
	t.Helper()
	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)

	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			t.Fatalf("Failed to write field %s: %v", k, err)
		}
	}
	for _, f := range files {
		field := f.Field
		if field == "" {
			field = "files"
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+f.Name+`"`)
		if f.ContentType != "" {
			h.Set("Content-Type", f.ContentType)
		}
		part, err := writer.CreatePart(h)
		if err != nil {
			t.Fatalf("Failed to create part %s: %v", f.Name, err)
		}
		part.Write(f.Data)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Failed to close multipart writer: %v", err)
	}
	return body, writer.FormDataContentType()
}
