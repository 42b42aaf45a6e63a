package client

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressReader_ReportsProgress(t *testing.T) {
	data := []byte("hello world this is test data")
	reader := bytes.NewReader(data)

	var progressCalls []struct{ current, total int64 }
	pr := &progressReader{
		reader: reader,
		total:  int64(len(data)),
		onProgress: func(current, total int64) {
			progressCalls = append(progressCalls, struct{ current, total int64 }{current, total})
		},
	}

	result, err := io.ReadAll(pr)
	require.NoError(t, err)
	assert.Equal(t, data, result)

	// Progress should have been called at least once
	assert.NotEmpty(t, progressCalls)

	// Final progress should equal total
	lastCall := progressCalls[len(progressCalls)-1]
	assert.Equal(t, int64(len(data)), lastCall.current)
	assert.Equal(t, int64(len(data)), lastCall.total)
}

func TestProgressReader_NilCallback(t *testing.T) {
	data := []byte("hello world")
	reader := bytes.NewReader(data)

	pr := &progressReader{
		reader:     reader,
		total:      int64(len(data)),
		onProgress: nil, // No callback
	}

	result, err := io.ReadAll(pr)
	require.NoError(t, err)
	assert.Equal(t, data, result)
}

func TestProgressReader_SmallReads(t *testing.T) {
	data := []byte("hello world")
	reader := bytes.NewReader(data)

	var progressValues []int64
	pr := &progressReader{
		reader: reader,
		total:  int64(len(data)),
		onProgress: func(current, total int64) {
			progressValues = append(progressValues, current)
		},
	}

	// Read one byte at a time
	buf := make([]byte, 1)
	for {
		n, err := pr.Read(buf)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	}

	// Progress should increase monotonically
	for i := 1; i < len(progressValues); i++ {
		assert.GreaterOrEqual(t, progressValues[i], progressValues[i-1])
	}
}

func TestAPIClient_SendsActorAndParsesEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "alice", r.Header.Get("X-Actor"))
		assert.Equal(t, http.MethodPatch, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"status":"implemented"}`, string(body))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"item_id":"i1"}}`))
	}))
	defer srv.Close()

	status := "implemented"
	api := NewAPIClientWithConfig(srv.URL, "alice")
	resp, err := api.Patch("/api/projects/p1/checklist/i1", patchItemRequest{Status: &status})
	require.NoError(t, err)
	assert.JSONEq(t, `{"item_id":"i1"}`, string(resp.Data))
}

func TestAPIClient_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"expected boolean","code":"VALIDATION_ERROR","field":"scope_answers.x"}`))
	}))
	defer srv.Close()

	_, err := NewAPIClientWithConfig(srv.URL, "").Get("/api/projects")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "scope_answers.x", apiErr.Field)
	assert.Contains(t, err.Error(), "[scope_answers.x]")
}

func TestAPIClient_NonJSONError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "404 page not found", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := NewAPIClientWithConfig(srv.URL, "").Get("/nope")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "404 page not found", apiErr.Message)
}

func TestAPIClient_UploadFile(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if !assert.NoError(t, err) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "policy text", string(data))
		assert.Equal(t, "renamed.txt", header.Filename)
		assert.Equal(t, "bob", r.Header.Get("X-Actor"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"file_name":"renamed.txt"}}`))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "policy.txt")
	require.NoError(t, os.WriteFile(path, []byte("policy text"), 0o644))

	var last int64
	resp, err := NewAPIClientWithConfig(srv.URL, "bob").UploadFile("/upload", path, "renamed.txt", func(current, total int64) {
		last = current
	})
	require.NoError(t, err)
	assert.Contains(t, string(resp.Data), "renamed.txt")
	assert.Equal(t, int64(len("policy text")), last)
}

func TestAPIClient_DownloadUsesSuggestedName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Disposition", `attachment; filename="p1-report.csv"`)
		_, _ = w.Write([]byte("item_id\n"))
	}))
	defer srv.Close()

	t.Chdir(t.TempDir())
	written, err := NewAPIClientWithConfig(srv.URL, "").Download("/report", "", nil)
	require.NoError(t, err)
	assert.Equal(t, "p1-report.csv", written)

	data, err := os.ReadFile(written)
	require.NoError(t, err)
	assert.Equal(t, "item_id\n", string(data))
}

func TestAPIClient_DownloadError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":"evidence blob not found","code":"NOT_FOUND"}`))
	}))
	defer srv.Close()

	_, err := NewAPIClientWithConfig(srv.URL, "").Download("/x", filepath.Join(t.TempDir(), "out"), nil)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "evidence blob not found", apiErr.Message)
}
