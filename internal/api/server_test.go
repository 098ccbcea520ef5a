package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/statchunk/internal/chunker"
	"github.com/dgallion1/statchunk/internal/config"
	"github.com/dgallion1/statchunk/internal/pipeline"
	"github.com/dgallion1/statchunk/internal/stats"
	"github.com/dgallion1/statchunk/internal/store/badger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "secret"

const statute = `17-1-101. Executive director.
(1) The governor shall appoint an executive director of the department.
(2) The executive director shall manage all correctional facilities.
17-1-102. Definitions.
As used in this article, unless the context otherwise requires, the following definitions apply.
`

func newTestServer(t *testing.T) *Server {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.Config{
		APIKey:             testKey,
		MinTokens:          50,
		MaxTokens:          800,
		StoreBackend:       config.BackendBadger,
		DefaultCollection:  "statutes",
		WorkerCount:        1,
		MaxQueueSize:       10,
		MaxConcurrentStore: 2,
		StoreBatchSize:     10,
		MaxUploadBytes:     1 << 20,
		JobTTL:             time.Hour,
		StatsWindow:        time.Hour,
	}

	idx, err := badger.Open("", log)
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	b, err := chunker.New(cfg.Chunker())
	require.NoError(t, err)

	orch := pipeline.NewOrchestrator(cfg, idx, b, stats.NewWindow(cfg.StatsWindow), log)
	orch.Start(context.Background())
	t.Cleanup(orch.Stop)

	return NewServer(orch, b, log, cfg)
}

func do(t *testing.T, s *Server, req *http.Request) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	if req.Header.Get("Authorization") == "" {
		req.Header.Set("Authorization", "Bearer "+testKey)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	var body map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	}
	return rec, body
}

func jsonRequest(method, path string, v any) *http.Request {
	data, _ := json.Marshal(v)
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func uploadRequest(t *testing.T, path, field string, fields map[string]string, files map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for name, content := range files {
		fw, err := mw.CreateFormFile(field, name)
		require.NoError(t, err)
		_, err = io.WriteString(fw, content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// waitJob polls the status endpoint until the job reaches a terminal state.
func waitJob(t *testing.T, s *Server, jobID string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		rec, body := do(t, s, httptest.NewRequest(http.MethodGet, "/api/ingest/"+jobID+"/status", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		if pipeline.JobStatus(body["status"].(string)).Terminal() {
			return body
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish", jobID)
	return nil
}

func TestHealth_NoAuth(t *testing.T) {
	s := newTestServer(t)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestAuth(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/documents", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec, body := do(t, s, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "invalid api key", body["error"])
}

func TestChunk(t *testing.T) {
	s := newTestServer(t)
	rec, body := do(t, s, jsonRequest(http.MethodPost, "/api/chunk", map[string]any{"text": statute}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 3, body["count"])

	chunks := body["chunks"].([]any)
	first := chunks[0].(map[string]any)
	assert.Equal(t, "17-1-101", first["section_number"])
	assert.Equal(t, "(1)", first["subsection"])
	assert.Equal(t, "17-1-101. Executive director.", first["full_citation"])
}

func TestChunk_NoSections(t *testing.T) {
	s := newTestServer(t)
	rec, _ := do(t, s, jsonRequest(http.MethodPost, "/api/chunk", map[string]any{"text": "nothing here"}))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestChunk_InvalidBounds(t *testing.T) {
	s := newTestServer(t)
	rec, _ := do(t, s, jsonRequest(http.MethodPost, "/api/chunk", map[string]any{
		"text":       statute,
		"min_tokens": 900,
	}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestChunk_BadJSON(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/chunk", strings.NewReader("{"))
	rec, _ := do(t, s, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPrepare(t *testing.T) {
	s := newTestServer(t)
	rec, body := do(t, s, jsonRequest(http.MethodPost, "/api/prepare", map[string]any{"text": statute}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	ids := body["ids"].([]any)
	assert.Equal(t, []any{"17-1-101_(1)", "17-1-101_(2)", "17-1-102"}, ids)
	assert.Len(t, body["documents"], 3)
	assert.Len(t, body["metadatas"], 3)
}

func TestIngestLifecycle(t *testing.T) {
	s := newTestServer(t)

	req := uploadRequest(t, "/api/ingest", "file",
		map[string]string{"doc_id": "title17"},
		map[string]string{"title17.txt": statute})
	rec, body := do(t, s, req)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	assert.Equal(t, "title17", body["doc_id"])
	assert.Equal(t, "statutes", body["collection"])
	jobID := body["job_id"].(string)
	assert.Equal(t, "/api/ingest/"+jobID+"/status", body["poll_url"])

	final := waitJob(t, s, jobID)
	assert.Equal(t, string(pipeline.StatusCompleted), final["status"])

	rec, body = do(t, s, httptest.NewRequest(http.MethodGet, "/api/documents", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	docs := body["documents"].([]any)
	require.Len(t, docs, 1)
	assert.Equal(t, "title17", docs[0].(map[string]any)["doc_id"])

	rec, body = do(t, s, httptest.NewRequest(http.MethodGet, "/api/documents/title17/chunks", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, body["count"])

	rec, body = do(t, s, httptest.NewRequest(http.MethodDelete, "/api/documents/title17", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 3, body["chunks_deleted"])

	rec, _ = do(t, s, httptest.NewRequest(http.MethodDelete, "/api/documents/title17", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = do(t, s, httptest.NewRequest(http.MethodGet, "/api/documents/title17/chunks", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIngest_DuplicateSkipped(t *testing.T) {
	s := newTestServer(t)

	for i, want := range []pipeline.JobStatus{pipeline.StatusCompleted, pipeline.StatusDupSkipped} {
		req := uploadRequest(t, "/api/ingest", "file", nil, map[string]string{"title17.txt": statute})
		rec, body := do(t, s, req)
		require.Equal(t, http.StatusAccepted, rec.Code, "upload %d", i)
		final := waitJob(t, s, body["job_id"].(string))
		assert.Equal(t, string(want), final["status"], "upload %d", i)
	}
}

func TestIngest_Rejections(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		fields map[string]string
		file   string
		want   int
	}{
		{"unsupported extension", nil, "statute.exe", http.StatusBadRequest},
		{"bad collection", map[string]string{"collection": "../etc"}, "a.txt", http.StatusBadRequest},
		{"bad doc id", map[string]string{"doc_id": "a b"}, "a.txt", http.StatusBadRequest},
		{"bad force", map[string]string{"force": "maybe"}, "a.txt", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := uploadRequest(t, "/api/ingest", "file", tt.fields, map[string]string{tt.file: statute})
			rec, _ := do(t, s, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestIngest_MissingFile(t *testing.T) {
	s := newTestServer(t)
	req := uploadRequest(t, "/api/ingest", "file", map[string]string{"doc_id": "x"}, nil)
	rec, _ := do(t, s, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBatchIngest(t *testing.T) {
	s := newTestServer(t)
	req := uploadRequest(t, "/api/ingest/batch", "files",
		map[string]string{"collection": "colorado"},
		map[string]string{"a.txt": statute, "b.exe": "x"})
	rec, body := do(t, s, req)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	jobs := body["jobs"].([]any)
	require.Len(t, jobs, 2)
	var accepted, rejected int
	for _, j := range jobs {
		m := j.(map[string]any)
		if id, ok := m["job_id"].(string); ok {
			accepted++
			assert.Equal(t, "colorado", m["collection"])
			waitJob(t, s, id)
		} else {
			rejected++
			assert.Equal(t, "b.exe", m["filename"])
		}
	}
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 1, rejected)
}

func TestIngestStatus_NotFound(t *testing.T) {
	s := newTestServer(t)
	rec, _ := do(t, s, httptest.NewRequest(http.MethodGet, "/api/ingest/nope/status", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIndexStats(t *testing.T) {
	s := newTestServer(t)
	rec, body := do(t, s, httptest.NewRequest(http.MethodGet, "/api/stats/index", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, config.BackendBadger, body["backend"])
	assert.Contains(t, body, "queue_depth")
	assert.Contains(t, body, "writes")
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "passwd", sanitizeFilename("../../etc/passwd"))
	assert.Equal(t, "a.txt", sanitizeFilename("a.txt"))
	assert.Equal(t, "unnamed", sanitizeFilename(""))
}
