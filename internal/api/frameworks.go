package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/skillgap/internal/retrieval"
	"github.com/kalambet/skillgap/internal/storage"
)

type frameworkRequest struct {
	FrameworkName string         `json:"framework_name" validate:"required,max=200"`
	FrameworkText string         `json:"framework_text" validate:"required"`
	Metadata      map[string]any `json:"metadata"`
}

func (s *server) handleAddFramework(w http.ResponseWriter, r *http.Request) {
	var req frameworkRequest
	if !s.decodeJSONLimit(w, r, &req, maxUploadSize) {
		return
	}

	name := strings.TrimSpace(req.FrameworkName)
	meta := map[string]any{}
	for k, v := range req.Metadata {
		meta[k] = v
	}
	meta["name"] = name

	q, err := queueDocument(s.deps.Store, storage.KindFramework, "", name, req.FrameworkText, meta)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to add framework: %v", err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"framework_id": q.DocumentID,
		"job_id":       q.JobID,
		"status":       "queued",
		"message":      "Skill framework added successfully",
	})
}

func (s *server) handleListFrameworks(w http.ResponseWriter, r *http.Request) {
	limit := parseIntParam(r, "limit", 20, 100)
	offset := parseIntParam(r, "offset", 0, 0)

	docs, err := s.deps.Store.ListDocuments(storage.KindFramework, limit, offset)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to list frameworks: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (s *server) handleDeleteFramework(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	doc, err := s.deps.Store.GetDocument(id)
	if errors.Is(err, storage.ErrNotFound) || (err == nil && doc.Kind != storage.KindFramework) {
		httpError(w, http.StatusNotFound, "not_found", "framework not found")
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to get framework: %v", err)
		return
	}

	if err := s.deps.Store.DeleteDocument(id); err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to delete framework: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type searchResponse struct {
	Query      string                   `json:"query"`
	Collection string                   `json:"collection"`
	Results    []retrieval.ContextChunk `json:"results"`
}

func (s *server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.deps.Search == nil {
		httpError(w, http.StatusServiceUnavailable, "api_error", "retrieval is not configured")
		return
	}

	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "q is required")
		return
	}
	collection := r.URL.Query().Get("collection")
	if collection == "" {
		collection = retrieval.CollectionFrameworks
	}
	if !retrieval.ValidCollection(collection) {
		httpError(w, http.StatusBadRequest, "invalid_request_error",
			"collection must be one of [%s]", strings.Join(retrieval.Collections, " "))
		return
	}

	chunks, err := s.deps.Search.Search(r.Context(), collection, q, parseIntParam(r, "limit", 5, 50))
	if err != nil {
		httpError(w, http.StatusBadGateway, "api_error", "search failed: %v", err)
		return
	}
	if chunks == nil {
		chunks = []retrieval.ContextChunk{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Query: q, Collection: collection, Results: chunks})
}
