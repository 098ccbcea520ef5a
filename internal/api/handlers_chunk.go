package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dgallion1/statchunk/internal/chunker"
	"github.com/dgallion1/statchunk/internal/doctree"
)

type chunkRequest struct {
	Text      string `json:"text"`
	MinTokens *int   `json:"min_tokens,omitempty"`
	MaxTokens *int   `json:"max_tokens,omitempty"`
}

// chunkText decodes a chunkRequest and runs the builder, writing the error
// response itself when it returns false.
func (s *Server) chunkText(w http.ResponseWriter, r *http.Request) ([]doctree.Chunk, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)

	var req chunkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonError(w, "invalid json body: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}

	b := s.builder
	if req.MinTokens != nil || req.MaxTokens != nil {
		cfg := b.Config()
		if req.MinTokens != nil {
			cfg.MinTokens = *req.MinTokens
		}
		if req.MaxTokens != nil {
			cfg.MaxTokens = *req.MaxTokens
		}
		var err error
		if b, err = chunker.New(cfg); err != nil {
			jsonError(w, err.Error(), http.StatusBadRequest)
			return nil, false
		}
	}

	chunks, err := b.Parse(req.Text)
	if errors.Is(err, chunker.ErrNoChunks) {
		jsonError(w, err.Error(), http.StatusUnprocessableEntity)
		return nil, false
	}
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	return chunks, true
}

func (s *Server) handleChunk(w http.ResponseWriter, r *http.Request) {
	chunks, ok := s.chunkText(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"chunks": chunks,
		"count":  len(chunks),
	})
}

func (s *Server) handlePrepare(w http.ResponseWriter, r *http.Request) {
	chunks, ok := s.chunkText(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, chunker.Prepare(chunks))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
