package objectstore

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/lueurxax/feedpulse/internal/core/errors"
)

const (
	testKey    = "service-role-key"
	testBucket = "media"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := New(Config{BaseURL: srv.URL + "/", Key: testKey, Bucket: testBucket, UploadRPS: 1000, MaxRetries: 2})
	c.retryDelay = time.Millisecond

	return c
}

func TestUpload_RequestShape(t *testing.T) {
	var (
		gotMethod, gotPath, gotAuth, gotUpsert, gotType string
		gotBody                                         []byte
	)

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotAuth = r.Header.Get(headerAuthorization)
		gotUpsert = r.Header.Get(headerUpsert)
		gotType = r.Header.Get(headerContentType)
		gotBody, _ = io.ReadAll(r.Body)

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"Key":"media/12/345"}`))
	})

	data := []byte("\x89PNG\r\n\x1a\n....")
	require.NoError(t, c.Upload(context.Background(), "12/345", data))

	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/storage/v1/object/media/12/345", gotPath)
	assert.Equal(t, "Bearer "+testKey, gotAuth)
	assert.Equal(t, "true", gotUpsert)
	assert.Equal(t, "image/png", gotType)
	assert.Equal(t, data, gotBody)
}

func TestUpload_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)

			return
		}

		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, c.Upload(context.Background(), "1/2", []byte("x")))
	assert.Equal(t, int32(3), calls.Load())
}

func TestUpload_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	err := c.Upload(context.Background(), "1/2", []byte("x"))
	require.ErrorIs(t, err, apperrors.ErrUploadFailed)
	require.ErrorIs(t, err, ErrServerError)
	assert.Equal(t, int32(3), calls.Load())
}

func TestUpload_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32

	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":"Unauthorized"}`))
	})

	err := c.Upload(context.Background(), "1/2", []byte("x"))
	require.ErrorIs(t, err, ErrRejected)
	assert.Contains(t, err.Error(), "Unauthorized")
	assert.Equal(t, int32(1), calls.Load())
}

func TestUpload_Disabled(t *testing.T) {
	c := New(Config{})

	assert.False(t, c.Enabled())
	require.ErrorIs(t, c.Upload(context.Background(), "1/2", nil), ErrClientDisabled)
}

func TestPublicURL(t *testing.T) {
	c := New(Config{BaseURL: "https://project.supabase.co/", Key: testKey, Bucket: "/media/"})

	assert.Equal(t, "https://project.supabase.co/storage/v1/object/public/media/12/345", c.PublicURL("12/345"))
	assert.Equal(t, "https://project.supabase.co/storage/v1/object/public/media/a%20b/1", c.PublicURL("/a b/1"))
}
