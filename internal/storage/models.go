package storage

import (
	"errors"
	"time"

	"github.com/kalambet/skillgap/internal/gap"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Profile is a user's declared background. Skills keep their stored order,
// which decides tie-breaks when matching.
type Profile struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	CurrentRole     string      `json:"current_role,omitempty"`
	ExperienceYears *float64    `json:"experience_years,omitempty"`
	Bio             string      `json:"bio,omitempty"`
	RawText         string      `json:"raw_text,omitempty"`
	Skills          []gap.Skill `json:"skills"`
	Certifications  []string    `json:"certifications"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

type TargetRole struct {
	ID             string      `json:"id"`
	RoleName       string      `json:"role_name"`
	Description    string      `json:"description,omitempty"`
	SkillFramework string      `json:"skill_framework,omitempty"`
	RequiredSkills []gap.Skill `json:"required_skills"`
	CreatedAt      time.Time   `json:"created_at"`
}

// Report is a persisted gap analysis.
type Report struct {
	ID            string `json:"id"`
	ProfileID     string `json:"user_profile_id"`
	TargetRoleID  string `json:"target_role_id,omitempty"`
	UserQuery     string `json:"user_query,omitempty"`
	LowConfidence bool   `json:"low_confidence"`
	gap.Report
	CreatedAt time.Time `json:"created_at"`
}

// Document kinds. They double as vector collection names.
const (
	KindProfile   = "profile"
	KindFramework = "framework"
)

// Document is raw text queued for retrieval indexing.
type Document struct {
	ID         string     `json:"id"`
	Kind       string     `json:"kind"`
	SourceID   string     `json:"source_id,omitempty"`
	Name       string     `json:"name"`
	Content    string     `json:"content,omitempty"`
	Metadata   string     `json:"metadata"` // JSON object stored as text
	ChunkCount int        `json:"chunk_count"`
	IndexedAt  *time.Time `json:"indexed_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
