// Package api serves the skill-gap REST API and the MCP tool server.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/kalambet/skillgap/internal/analyzer"
	"github.com/kalambet/skillgap/internal/retrieval"
	"github.com/kalambet/skillgap/internal/storage"
)

// Version is reported by the service info endpoint and the MCP server.
const Version = "1.0.0"

// Analyzer runs gap analyses and best-effort profile extraction.
type Analyzer interface {
	Analyze(ctx context.Context, req analyzer.Request) (analyzer.Result, error)
	ExtractProfileInfo(ctx context.Context, text string) (string, error)
}

// Searcher queries the vector index.
type Searcher interface {
	Search(ctx context.Context, collection, query string, topK int) ([]retrieval.ContextChunk, error)
	Count(ctx context.Context, collection string) (int, error)
}

type Deps struct {
	Store    *storage.Store
	Analyzer Analyzer
	Search   Searcher // optional; search endpoints return 503 when nil
	Provider string
	Model    string
	Token    string // optional bearer token for /api
}

type server struct {
	deps      Deps
	validator *validator.Validate
}

// NewHandler returns the HTTP API. Routes under /api require deps.Token as a
// bearer token when it is set.
func NewHandler(deps Deps) http.Handler {
	s := &server{deps: deps, validator: newValidator()}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleInfo)
	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Use(RequireToken(deps.Token))

		r.Post("/profiles/upload", s.handleUploadProfile)
		r.Post("/profiles/upload-file", s.handleUploadProfileFile)
		r.Post("/profiles/create", s.handleCreateProfile)
		r.Get("/profiles", s.handleListProfiles)
		r.Get("/profiles/{id}", s.handleGetProfile)
		r.Put("/profiles/{id}", s.handleUpdateProfile)
		r.Delete("/profiles/{id}", s.handleDeleteProfile)
		r.Get("/profiles/{id}/reports", s.handleProfileReports)
		r.Get("/reports/{id}", s.handleGetReport)

		r.Post("/analyze", s.handleAnalyze)

		r.Post("/frameworks/add", s.handleAddFramework)
		r.Get("/frameworks", s.handleListFrameworks)
		r.Delete("/frameworks/{id}", s.handleDeleteFramework)

		r.Get("/search", s.handleSearch)
	})

	return r
}

func (s *server) handleInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Skill Gap Identification System API",
		"version": Version,
		"endpoints": map[string]string{
			"upload_profile": "/api/profiles/upload",
			"upload_file":    "/api/profiles/upload-file",
			"create_profile": "/api/profiles/create",
			"analyze_gap":    "/api/analyze",
			"add_framework":  "/api/frameworks/add",
			"search":         "/api/search",
			"health":         "/health",
		},
	})
}

type healthResponse struct {
	Status   string         `json:"status"`
	Store    string         `json:"store"`
	Vectors  map[string]int `json:"vectors,omitempty"`
	// Jobs counts indexing jobs by status.
	Jobs     map[string]int `json:"jobs,omitempty"`
	Provider string         `json:"provider,omitempty"`
	Model    string         `json:"model,omitempty"`
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := healthResponse{
		Status:   "healthy",
		Store:    "ok",
		Provider: s.deps.Provider,
		Model:    s.deps.Model,
	}
	code := http.StatusOK

	if err := s.deps.Store.Ping(ctx); err != nil {
		resp.Status = "degraded"
		resp.Store = err.Error()
		code = http.StatusServiceUnavailable
		writeJSON(w, code, resp)
		return
	}

	if jobs, err := s.deps.Store.JobCounts(); err == nil {
		resp.Jobs = jobs
	}
	if s.deps.Search != nil {
		resp.Vectors = map[string]int{}
		for _, c := range retrieval.Collections {
			n, err := s.deps.Search.Count(ctx, c)
			if err != nil {
				resp.Vectors[c] = -1
				continue
			}
			resp.Vectors[c] = n
		}
	}

	writeJSON(w, code, resp)
}
