package ilovepdf

import (
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pdf-toolbox/backend/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, vendor *testutil.FakeVendor) *Client {
	t.Helper()
	c, err := NewClient(Config{
		PublicKey:         testutil.FakePublicKey,
		SecretKey:         testutil.FakeSecretKey,
		BaseURL:           vendor.URL(),
		Region:            "eu",
		RequestsPerSecond: -1,
	}, nil)
	require.NoError(t, err)
	return c
}

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestNewClient(t *testing.T) {
	_, err := NewClient(Config{PublicKey: "pub"}, nil)
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = NewClient(Config{PublicKey: "pub", SecretKey: "sec", BaseURL: "not a url"}, nil)
	assert.Error(t, err)

	c, err := NewClient(Config{PublicKey: "pub", SecretKey: "sec"}, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.baseURL.String())
	assert.Equal(t, DefaultRegion, c.region)
}

func TestToken(t *testing.T) {
	c, err := NewClient(Config{PublicKey: "pub", SecretKey: "sec"}, nil)
	require.NoError(t, err)

	raw, err := c.token()
	require.NoError(t, err)

	claims := &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte("sec"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "pub", claims.ID)
	assert.WithinDuration(t, time.Now().Add(tokenTTL), claims.ExpiresAt.Time, time.Minute)
}

func TestToken_ToleratesLaggingClock(t *testing.T) {
	c, err := NewClient(Config{PublicKey: "pub", SecretKey: "sec"}, nil)
	require.NoError(t, err)
	now := time.Now()
	c.now = func() time.Time { return now }

	raw, err := c.token()
	require.NoError(t, err)

	// A verifier whose clock runs a few seconds behind must accept the token.
	lagging := now.Add(-5 * time.Second)
	claims := &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return []byte("sec"), nil
	}, jwt.WithTimeFunc(func() time.Time { return lagging }))
	require.NoError(t, err)
	assert.True(t, claims.NotBefore.Time.Before(lagging))
	assert.True(t, claims.IssuedAt.Time.Before(lagging))
}

func TestServerURL(t *testing.T) {
	c, err := NewClient(Config{PublicKey: "pub", SecretKey: "sec"}, nil)
	require.NoError(t, err)

	assert.Equal(t, "https://api11.ilovepdf.com", c.serverURL("api11.ilovepdf.com"))
	assert.Equal(t, "http://127.0.0.1:8080", c.serverURL("http://127.0.0.1:8080/"))
	assert.Equal(t, DefaultBaseURL, c.serverURL(""))
}

func TestTaskLifecycle(t *testing.T) {
	vendor := testutil.NewFakeVendor(t)
	vendor.SetRemainingFiles(1234)
	vendor.SetOutput([]byte("%PDF-1.7 merged"))
	c := newTestClient(t, vendor)
	ctx := context.Background()

	task := c.NewTask("merge")
	require.NoError(t, task.Start(ctx))
	assert.NotEmpty(t, task.ID())
	assert.Equal(t, 1234, task.RemainingFiles())

	tool, region := vendor.LastStart()
	assert.Equal(t, "merge", tool)
	assert.Equal(t, "eu", region)

	first, err := task.AddFile(ctx, writeTemp(t, "a.pdf", "first"), "one.pdf")
	require.NoError(t, err)
	assert.Equal(t, "one.pdf", first.Filename)
	assert.NotEmpty(t, first.ServerFilename)

	_, err = task.AddFile(ctx, writeTemp(t, "b.pdf", "second"), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, vendor.Uploaded(task.ID()))
	assert.Equal(t, "b.pdf", task.Files()[1].Filename)

	result, err := task.Process(ctx, ProcessOptions{
		Params: map[string]any{"compression_level": "recommended"},
		Rotate: 180,
	})
	require.NoError(t, err)
	assert.Equal(t, "TaskSuccess", result.Status)

	body := vendor.LastProcess()
	assert.Equal(t, task.ID(), body["task"])
	assert.Equal(t, "merge", body["tool"])
	assert.Equal(t, "recommended", body["compression_level"])
	files, ok := body["files"].([]any)
	require.True(t, ok)
	require.Len(t, files, 2)
	for _, f := range files {
		assert.EqualValues(t, 180, f.(map[string]any)["rotate"])
	}

	data, err := task.Download(ctx)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.7 merged", string(data))
}

func TestTaskOrdering(t *testing.T) {
	vendor := testutil.NewFakeVendor(t)
	c := newTestClient(t, vendor)
	ctx := context.Background()

	task := c.NewTask("compress")
	_, err := task.AddFile(ctx, writeTemp(t, "a.pdf", "x"), "a.pdf")
	assert.ErrorIs(t, err, ErrTaskNotStarted)
	_, err = task.Process(ctx, ProcessOptions{})
	assert.ErrorIs(t, err, ErrTaskNotStarted)
	_, err = task.Download(ctx)
	assert.ErrorIs(t, err, ErrNotProcessed)

	require.NoError(t, task.Start(ctx))
	_, err = task.Process(ctx, ProcessOptions{})
	assert.ErrorIs(t, err, ErrNoFiles)
	assert.Equal(t, 0, vendor.Calls(testutil.OpProcess))
}

func TestAuthenticationFailure(t *testing.T) {
	vendor := testutil.NewFakeVendor(t)
	c, err := NewClient(Config{
		PublicKey:         testutil.FakePublicKey,
		SecretKey:         "wrong",
		BaseURL:           vendor.URL(),
		RequestsPerSecond: -1,
	}, nil)
	require.NoError(t, err)

	err = c.NewTask("compress").Start(context.Background())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "Invalid token", apiErr.Message)
	assert.Contains(t, err.Error(), "authentication failed")
}

func TestAPIErrorHints(t *testing.T) {
	tests := []struct {
		op     string
		status int
		hint   string
	}{
		{opStart, http.StatusPaymentRequired, "quota limit reached"},
		{opStart, http.StatusTooManyRequests, "quota limit reached"},
		{opStart, http.StatusNotFound, "unsupported tool"},
		{opUpload, http.StatusBadRequest, "file rejected"},
		{opDownload, http.StatusNotFound, ""},
		{opProcess, http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		err := &APIError{Op: tt.op, StatusCode: tt.status, Message: "boom"}
		assert.Equal(t, tt.hint, err.Hint(), "%s %d", tt.op, tt.status)
		assert.Contains(t, err.Error(), "boom")
	}
}


func TestVendorFailures(t *testing.T) {
	vendor := testutil.NewFakeVendor(t)
	vendor.Fail(testutil.OpProcess, http.StatusPaymentRequired, "Not enough credits")
	c := newTestClient(t, vendor)
	ctx := context.Background()

	task := c.NewTask("compress")
	require.NoError(t, task.Start(ctx))
	_, err := task.AddFile(ctx, writeTemp(t, "a.pdf", "x"), "a.pdf")
	require.NoError(t, err)

	_, err = task.Process(ctx, ProcessOptions{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusPaymentRequired, apiErr.StatusCode)
	assert.Contains(t, err.Error(), "quota limit reached: Not enough credits")

	_, err = task.Download(ctx)
	assert.ErrorIs(t, err, ErrNotProcessed)
	assert.Equal(t, 0, vendor.Calls(testutil.OpDownload))
}

func TestTimeout(t *testing.T) {
	vendor := testutil.NewFakeVendor(t)
	c := newTestClient(t, vendor)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	err := c.NewTask("compress").Start(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Contains(t, err.Error(), "timeout")
}
