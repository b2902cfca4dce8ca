package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/kalambet/skillgap/internal/analyzer"
	"github.com/kalambet/skillgap/internal/storage"
)

type targetRoleInput struct {
	RoleName       string       `json:"role_name" validate:"required,max=200"`
	Description    string       `json:"description"`
	SkillFramework string       `json:"skill_framework"`
	RequiredSkills []skillInput `json:"required_skills" validate:"dive"`
}

type analyzeRequest struct {
	UserProfileID string          `json:"user_profile_id" validate:"required"`
	UserQuery     string          `json:"user_query"`
	TargetRole    targetRoleInput `json:"target_role"`
	UseRAG        *bool           `json:"use_rag"`
	Mode          string          `json:"mode" validate:"omitempty,oneof=llm rules"`
}

func (s *server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	if s.deps.Analyzer == nil {
		httpError(w, http.StatusServiceUnavailable, "api_error", "analysis is not configured")
		return
	}

	mode, err := analyzer.ParseMode(req.Mode)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
		return
	}

	profile, err := s.deps.Store.GetProfile(req.UserProfileID)
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "not_found", "profile %s not found", req.UserProfileID)
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to get profile: %v", err)
		return
	}

	useRAG := true
	if req.UseRAG != nil {
		useRAG = *req.UseRAG
	}

	res, err := s.deps.Analyzer.Analyze(r.Context(), analyzer.Request{
		Profile: profile,
		TargetRole: storage.TargetRole{
			RoleName:       strings.TrimSpace(req.TargetRole.RoleName),
			Description:    req.TargetRole.Description,
			SkillFramework: req.TargetRole.SkillFramework,
			RequiredSkills: toSkills(req.TargetRole.RequiredSkills),
		},
		UserQuery: req.UserQuery,
		UseRAG:    useRAG,
		Mode:      mode,
	})
	switch {
	case errors.Is(err, analyzer.ErrAnalysisFailed):
		slog.Warn("analysis failed", "profile_id", profile.ID, "error", err)
		httpError(w, http.StatusBadGateway, "analysis_failed", "%v", err)
		return
	case errors.Is(err, analyzer.ErrNoRequiredSkills):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%v", err)
		return
	case err != nil:
		httpError(w, http.StatusInternalServerError, "api_error", "analysis error: %v", err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}
