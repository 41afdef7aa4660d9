package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lanbeam/lanbeam/internal/blob"
	"github.com/lanbeam/lanbeam/internal/ingest"
	"github.com/lanbeam/lanbeam/internal/presence"
	"github.com/lanbeam/lanbeam/internal/ratelimit"
	"github.com/lanbeam/lanbeam/internal/session"
)

type envelope struct {
	Code    int    `json:"code"`
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		Size int64  `json:"size"`
	} `json:"data"`
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	router, store := newTestRouter(t, 1000)

	body, contentType := multipartBody(t, "file", "notes.txt", "hello world")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)

	var resp envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Code)
	assert.Equal(t, "success", resp.Status)
	assert.NotEmpty(t, resp.Data.ID)
	assert.Equal(t, "notes.txt", resp.Data.Name)
	assert.Equal(t, int64(11), resp.Data.Size)

	// The stored bytes are committed, not just indexed.
	record, err := store.Lookup(resp.Data.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(11), record.Size)

	// Retrieval returns the exact bytes with download headers.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/files/"+resp.Data.ID, nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hello world", w.Body.String())
	assert.Equal(t, "11", w.Header().Get("Content-Length"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "notes.txt")
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/plain"))
}

func TestUpload_NoFilePart(t *testing.T) {
	router, _ := newTestRouter(t, 1000)

	t.Run("no multipart body", func(t *testing.T) {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/upload", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "No file provided")
	})

	t.Run("multipart body without a file field", func(t *testing.T) {
		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		require.NoError(t, writer.WriteField("comment", "just text"))
		require.NoError(t, writer.Close())

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
		req.Header.Set("Content-Type", writer.FormDataContentType())
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "No file provided")
	})
}

func TestUpload_EmptyFile(t *testing.T) {
	router, _ := newTestRouter(t, 1000)

	body, contentType := multipartBody(t, "file", "empty.txt", "")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "No file data received")
}

func TestDownload_UnknownID(t *testing.T) {
	router, _ := newTestRouter(t, 1000)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/files/does-not-exist", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "File not found")
}

func TestDownload_StorageInconsistency(t *testing.T) {
	router, store := newTestRouter(t, 1000)

	body, contentType := multipartBody(t, "file", "doomed.txt", "content")
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", contentType)
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	// Pull the bytes out from under the index.
	record, err := store.Lookup(resp.Data.ID)
	require.NoError(t, err)
	require.NoError(t, os.Remove(record.Path))

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/files/"+resp.Data.ID, nil)
	router.ServeHTTP(w, req)

	// Corruption is surfaced as a server error, not a 404.
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestListFiles(t *testing.T) {
	router, _ := newTestRouter(t, 1000)

	for _, name := range []string{"a.txt", "b.txt"} {
		body, contentType := multipartBody(t, "file", name, "content of "+name)
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
		req.Header.Set("Content-Type", contentType)
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusCreated, w.Code)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Code int `json:"code"`
		Data []struct {
			Name string `json:"name"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Data, 2)
}

func TestRateLimit(t *testing.T) {
	router, _ := newTestRouter(t, 2)

	statuses := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
		router.ServeHTTP(w, req)
		statuses = append(statuses, w.Code)
	}

	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, statuses)
}

func TestRateLimit_RejectionBody(t *testing.T) {
	router, _ := newTestRouter(t, 1)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
		router.ServeHTTP(w, req)

		if i == 1 {
			assert.Equal(t, http.StatusTooManyRequests, w.Code)
			assert.Contains(t, w.Body.String(), "rate limit exceeded")
		}
	}
}

func TestHealth(t *testing.T) {
	router, _ := newTestRouter(t, 1000)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")
}

func TestCORSPreflight(t *testing.T) {
	router, _ := newTestRouter(t, 1000)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/files", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

// Helper functions

func newTestRouter(t *testing.T, maxRequests int) (*gin.Engine, *blob.Store) {
	gin.SetMode(gin.TestMode)

	store, err := blob.New(t.TempDir())
	require.NoError(t, err)

	pipeline := ingest.New(store)
	registry := presence.New(0)
	guard := ratelimit.New(maxRequests, time.Minute)

	return setupRouter(store, pipeline, registry, guard, session.DefaultIntervals()), store
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fmt.Fprint(part, content)
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	return body, writer.FormDataContentType()
}
