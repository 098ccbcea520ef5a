package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/statchunk/internal/parser"
	"github.com/dgallion1/statchunk/internal/pipeline"
	"github.com/dgallion1/statchunk/internal/store"
)

// uploadError carries the status code for a rejected upload.
type uploadError struct {
	code int
	msg  string
}

func (e *uploadError) Error() string { return e.msg }

// ingestParams are the multipart form values shared by single and batch
// ingest.
type ingestParams struct {
	collection string
	force      bool
}

// collectionParam returns the requested collection or the default.
func (s *Server) collectionParam(v string) (string, error) {
	if v == "" {
		v = s.cfg.DefaultCollection
	}
	return v, store.ValidateName("collection", v)
}

// parseIngestForm parses the multipart body and its shared fields. The
// caller removes the form's temp files.
func (s *Server) parseIngestForm(w http.ResponseWriter, r *http.Request, maxBody int64) (ingestParams, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return ingestParams{}, &uploadError{http.StatusBadRequest, "invalid multipart form: " + err.Error()}
	}

	var p ingestParams
	var err error
	if p.collection, err = s.collectionParam(r.FormValue("collection")); err != nil {
		return p, &uploadError{http.StatusBadRequest, err.Error()}
	}
	if v := r.FormValue("force"); v != "" {
		if p.force, err = strconv.ParseBool(v); err != nil {
			return p, &uploadError{http.StatusBadRequest, "invalid force value: " + v}
		}
	}
	return p, nil
}

// readUpload checks the extension and size of one uploaded file and returns
// its sanitized name and bytes.
func (s *Server) readUpload(fh *multipart.FileHeader) (string, []byte, error) {
	filename := sanitizeFilename(fh.Filename)
	if !parser.IsSupportedExtension(filename) {
		return filename, nil, &uploadError{http.StatusBadRequest, fmt.Sprintf("unsupported file type: %s", filepath.Ext(filename))}
	}

	f, err := fh.Open()
	if err != nil {
		return filename, nil, &uploadError{http.StatusInternalServerError, "failed to open file"}
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return filename, nil, &uploadError{http.StatusInternalServerError, "failed to read file"}
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return filename, nil, &uploadError{http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds max size (%d bytes)", s.cfg.MaxUploadBytes)}
	}
	return filename, data, nil
}

func writeUploadError(w http.ResponseWriter, err error) {
	var ue *uploadError
	if errors.As(err, &ue) {
		jsonError(w, ue.msg, ue.code)
		return
	}
	jsonError(w, err.Error(), http.StatusInternalServerError)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	// Allow 1MB of form overhead on top of the file.
	p, err := s.parseIngestForm(w, r, s.cfg.MaxUploadBytes+1<<20)
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	if err != nil {
		writeUploadError(w, err)
		return
	}

	docID := r.FormValue("doc_id")
	if docID != "" {
		if err := store.ValidateName("doc_id", docID); err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		jsonError(w, "file is required", http.StatusBadRequest)
		return
	}
	filename, data, err := s.readUpload(files[0])
	if err != nil {
		writeUploadError(w, err)
		return
	}

	job := pipeline.NewJob(p.collection, docID, filename, r.FormValue("title"), data, p.force)
	if err := s.orchestrator.Submit(job); err != nil {
		jsonError(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, http.StatusAccepted, jobAccepted(job))
}

func (s *Server) handleBatchIngest(w http.ResponseWriter, r *http.Request) {
	p, err := s.parseIngestForm(w, r, s.cfg.MaxUploadBytes*10+10<<20)
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}
	if err != nil {
		writeUploadError(w, err)
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		jsonError(w, "at least one file is required", http.StatusBadRequest)
		return
	}

	// Each file succeeds or fails on its own; the response lists both.
	results := make([]map[string]any, 0, len(files))
	for _, fh := range files {
		filename, data, err := s.readUpload(fh)
		if err == nil {
			job := pipeline.NewJob(p.collection, "", filename, "", data, p.force)
			if err = s.orchestrator.Submit(job); err == nil {
				res := jobAccepted(job)
				res["filename"] = filename
				results = append(results, res)
				continue
			}
		}
		results = append(results, map[string]any{
			"filename": filename,
			"error":    err.Error(),
		})
	}

	writeJSON(w, http.StatusAccepted, map[string]any{"jobs": results})
}

func (s *Server) handleIngestStatus(w http.ResponseWriter, r *http.Request) {
	job := s.orchestrator.GetJob(chi.URLParam(r, "jobID"))
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job.Snapshot())
}

func jobAccepted(job *pipeline.Job) map[string]any {
	snap := job.Snapshot()
	return map[string]any{
		"job_id":     snap.ID,
		"doc_id":     snap.DocID,
		"collection": snap.Collection,
		"status":     snap.Status,
		"poll_url":   "/api/ingest/" + snap.ID + "/status",
	}
}

// sanitizeFilename keeps only the base name of an uploaded file.
func sanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	name = strings.ReplaceAll(name, "..", "_")
	if name == "" || name == "." || name == "/" {
		name = "unnamed"
	}
	return name
}
