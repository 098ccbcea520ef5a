package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/statchunk/internal/store"
)

// handleListDocuments lists the documents of a collection.
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	collection, err := s.collectionParam(r.URL.Query().Get("collection"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	docs, err := s.orchestrator.Index().ListDocuments(r.Context(), collection)
	if err != nil {
		jsonError(w, "failed to list documents: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if docs == nil {
		docs = []store.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"collection": collection,
		"documents":  docs,
	})
}

// handleDocumentChunks returns the stored records of one document.
func (s *Server) handleDocumentChunks(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	collection, err := s.collectionParam(r.URL.Query().Get("collection"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	recs, err := s.orchestrator.Index().Chunks(r.Context(), collection, docID)
	if err != nil {
		jsonError(w, "failed to read chunks: "+err.Error(), http.StatusInternalServerError)
		return
	}
	if len(recs) == 0 {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"collection": collection,
		"doc_id":     docID,
		"chunks":     recs,
		"count":      len(recs),
	})
}

// handleDeleteDocument deletes a document and all its chunks.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := chi.URLParam(r, "docID")
	collection, err := s.collectionParam(r.URL.Query().Get("collection"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := store.ValidateName("doc_id", docID); err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}

	n, err := s.orchestrator.Index().DeleteDocument(r.Context(), collection, docID)
	if errors.Is(err, store.ErrNotFound) {
		jsonError(w, "document not found", http.StatusNotFound)
		return
	}
	if err != nil {
		jsonError(w, "failed to delete document: "+err.Error(), http.StatusInternalServerError)
		return
	}

	s.log.Info("document deleted", "collection", collection, "doc_id", docID, "chunks", n)
	writeJSON(w, http.StatusOK, map[string]any{
		"collection":     collection,
		"doc_id":         docID,
		"chunks_deleted": n,
	})
}
