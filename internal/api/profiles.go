package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/kalambet/skillgap/internal/analyzer"
	"github.com/kalambet/skillgap/internal/document"
	"github.com/kalambet/skillgap/internal/gap"
	"github.com/kalambet/skillgap/internal/storage"
)

const unknown = "Unknown"

type uploadRequest struct {
	ProfileText string `json:"profile_text" validate:"required"`
	Name        string `json:"name" validate:"max=200"`
	CurrentRole string `json:"current_role" validate:"max=200"`
}

type uploadResponse struct {
	ProfileID     string `json:"profile_id"`
	Status        string `json:"status"`
	DocumentID    string `json:"document_id"`
	JobID         string `json:"job_id,omitempty"`
	Filename      string `json:"filename,omitempty"`
	ExtractedInfo string `json:"extracted_info"`
	Message       string `json:"message"`
}

type skillInput struct {
	Name            string          `json:"name" validate:"required"`
	Proficiency     gap.Proficiency `json:"proficiency"`
	YearsExperience *float64        `json:"years_experience" validate:"omitempty,gte=0"`
	Certification   string          `json:"certification"`
}

func (in skillInput) skill() gap.Skill {
	return gap.Skill{
		Name:            strings.TrimSpace(in.Name),
		Proficiency:     in.Proficiency,
		YearsExperience: in.YearsExperience,
		Certification:   in.Certification,
	}
}

func toSkills(in []skillInput) []gap.Skill {
	out := make([]gap.Skill, 0, len(in))
	for _, s := range in {
		out = append(out, s.skill())
	}
	return out
}

type profileRequest struct {
	Name            string       `json:"name" validate:"required,max=200"`
	CurrentRole     string       `json:"current_role" validate:"required,max=200"`
	Skills          []skillInput `json:"skills" validate:"dive"`
	Certifications  []string     `json:"certifications"`
	ExperienceYears *float64     `json:"experience_years" validate:"omitempty,gte=0"`
	Bio             string       `json:"bio"`
	RawText         string       `json:"raw_text"`
}

func (req profileRequest) profile(id string) storage.Profile {
	certs := req.Certifications
	if certs == nil {
		certs = []string{}
	}
	return storage.Profile{
		ID:              id,
		Name:            strings.TrimSpace(req.Name),
		CurrentRole:     strings.TrimSpace(req.CurrentRole),
		ExperienceYears: req.ExperienceYears,
		Bio:             req.Bio,
		RawText:         req.RawText,
		Skills:          toSkills(req.Skills),
		Certifications:  certs,
	}
}

func (s *server) handleUploadProfile(w http.ResponseWriter, r *http.Request) {
	var req uploadRequest
	if !s.decodeJSONLimit(w, r, &req, maxUploadSize) {
		return
	}

	resp, err := s.storeUploadedText(r.Context(), req.ProfileText, req.Name, req.CurrentRole, "")
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to upload profile: %v", err)
		return
	}
	resp.Message = "Profile uploaded and processed successfully"
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleUploadProfileFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid multipart form: %v", err)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "file is required")
		return
	}
	defer file.Close()

	if !document.Supported(header.Filename) {
		httpError(w, http.StatusUnsupportedMediaType, "invalid_request_error",
			"unsupported file type %q; supported: %s", header.Filename, strings.Join(document.Extensions, ", "))
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "reading upload: %v", err)
		return
	}
	text, err := document.Extract(header.Filename, data)
	if errors.Is(err, document.ErrEmpty) {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "%s contains no text", header.Filename)
		return
	}
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "could not read %s: %v", header.Filename, err)
		return
	}

	resp, err := s.storeUploadedText(r.Context(), text, r.FormValue("name"), r.FormValue("current_role"), header.Filename)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to upload profile: %v", err)
		return
	}
	resp.Message = "Profile file uploaded and processed successfully"
	writeJSON(w, http.StatusOK, resp)
}

// storeUploadedText creates a profile around free text and queues the text
// for indexing. Extraction is best effort.
func (s *server) storeUploadedText(ctx context.Context, text, name, currentRole, filename string) (uploadResponse, error) {
	var extracted string
	if s.deps.Analyzer != nil {
		info, err := s.deps.Analyzer.ExtractProfileInfo(ctx, text)
		if err != nil {
			slog.Warn("profile extraction failed", "error", err)
		} else {
			extracted = info
		}
	}

	p := storage.Profile{
		ID:             uuid.New().String(),
		Name:           orUnknown(name),
		CurrentRole:    orUnknown(currentRole),
		RawText:        text,
		Skills:         []gap.Skill{},
		Certifications: []string{},
	}
	if err := s.deps.Store.SaveProfile(p); err != nil {
		return uploadResponse{}, err
	}

	meta := map[string]any{
		"profile_id":   p.ID,
		"name":         p.Name,
		"current_role": p.CurrentRole,
	}
	docName := p.Name
	if filename != "" {
		meta["filename"] = filename
		docName = filename
	}
	q, err := queueDocument(s.deps.Store, storage.KindProfile, p.ID, docName, text, meta)
	if err != nil {
		return uploadResponse{}, err
	}

	slog.Info("profile uploaded", "profile_id", p.ID, "document_id", q.DocumentID, "bytes", len(text))
	return uploadResponse{
		ProfileID:     p.ID,
		Status:        "uploaded",
		DocumentID:    q.DocumentID,
		JobID:         q.JobID,
		Filename:      filename,
		ExtractedInfo: extracted,
	}, nil
}

func orUnknown(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return unknown
	}
	return s
}

func (s *server) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	p := req.profile(uuid.New().String())
	if err := s.deps.Store.SaveProfile(p); err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to create profile: %v", err)
		return
	}

	resp := map[string]string{
		"profile_id": p.ID,
		"status":     "created",
		"message":    "Profile created successfully",
	}
	q, err := queueDocument(s.deps.Store, storage.KindProfile, p.ID, p.Name, analyzer.FormatProfile(p),
		map[string]any{"profile_id": p.ID, "name": p.Name})
	if err != nil {
		slog.Warn("could not queue profile for indexing", "profile_id", p.ID, "error", err)
	} else {
		resp["document_id"] = q.DocumentID
	}

	writeJSON(w, http.StatusCreated, resp)
}

func (s *server) handleListProfiles(w http.ResponseWriter, r *http.Request) {
	skip := parseIntParam(r, "skip", 0, 0)
	limit := parseIntParam(r, "limit", 100, 1000)

	profiles, err := s.deps.Store.ListProfiles(skip, limit)
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to list profiles: %v", err)
		return
	}
	if profiles == nil {
		profiles = []storage.Profile{}
	}
	writeJSON(w, http.StatusOK, profiles)
}

func (s *server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.deps.Store.GetProfile(chi.URLParam(r, "id"))
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "not_found", "profile not found")
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to get profile: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	err := s.deps.Store.UpdateProfile(req.profile(chi.URLParam(r, "id")))
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "not_found", "profile not found")
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to update profile: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated", "message": "Profile updated successfully"})
}

func (s *server) handleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	err := s.deps.Store.DeleteProfile(chi.URLParam(r, "id"))
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "not_found", "profile not found")
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to delete profile: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted", "message": "Profile deleted successfully"})
}

func (s *server) handleProfileReports(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.deps.Store.GetProfile(id); errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "not_found", "profile not found")
		return
	} else if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to get profile: %v", err)
		return
	}

	reports, err := s.deps.Store.ListReports(id, parseIntParam(r, "limit", 50, 200))
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to list reports: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func (s *server) handleGetReport(w http.ResponseWriter, r *http.Request) {
	rep, err := s.deps.Store.GetReport(chi.URLParam(r, "id"))
	if errors.Is(err, storage.ErrNotFound) {
		httpError(w, http.StatusNotFound, "not_found", "report not found")
		return
	}
	if err != nil {
		httpError(w, http.StatusInternalServerError, "api_error", "failed to get report: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
