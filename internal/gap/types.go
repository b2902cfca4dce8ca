// Package gap recovers a structured skill-gap analysis from the semi-tabular
// text a language model returns: required skills, per-skill gap items, a
// numeric readiness score and an ordered upskilling path.
//
// Every function in this package is pure. Malformed or unexpected input
// degrades to empty results or documented defaults; nothing here panics or
// returns an error.
package gap

import (
	"fmt"
	"strings"
)

// Proficiency is an ordered skill level. The zero value means the level is
// unknown or was not stated.
type Proficiency int

const (
	ProficiencyNone Proficiency = iota
	Beginner
	Intermediate
	Advanced
	Expert
)

var proficiencyNames = [...]string{"", "beginner", "intermediate", "advanced", "expert"}

// Rank returns 1..4 for known levels and 0 when absent.
func (p Proficiency) Rank() int {
	if p < ProficiencyNone || p > Expert {
		return 0
	}
	return int(p)
}

func (p Proficiency) String() string {
	return proficiencyNames[p.Rank()]
}

// Known reports whether p holds a level.
func (p Proficiency) Known() bool { return p.Rank() > 0 }

func (p Proficiency) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText accepts any free text and normalizes it, so stored values and
// user input with decorations ("Advanced (5 yrs)") round-trip to a level.
func (p *Proficiency) UnmarshalText(b []byte) error {
	*p = NormalizeProficiency(string(b))
	return nil
}

// Status classifies a single skill against the target role.
type Status string

const (
	StatusMet     Status = "met"
	StatusMissing Status = "missing"
	StatusWeak    Status = "weak"
)

func (s Status) Valid() bool {
	switch s {
	case StatusMet, StatusMissing, StatusWeak:
		return true
	}
	return false
}

func (s *Status) UnmarshalText(b []byte) error {
	v := Status(strings.ToLower(strings.TrimSpace(string(b))))
	if !v.Valid() {
		return fmt.Errorf("invalid gap status %q", string(b))
	}
	*s = v
	return nil
}

// Severity is how urgently a gap should be addressed.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

func (s *Severity) UnmarshalText(b []byte) error {
	v := Severity(strings.ToLower(strings.TrimSpace(string(b))))
	if !v.Valid() {
		return fmt.Errorf("invalid gap severity %q", string(b))
	}
	*s = v
	return nil
}

// ParseSeverity maps free text onto a Severity, defaulting to medium.
func ParseSeverity(text string) Severity {
	v := Severity(strings.ToLower(strings.TrimSpace(text)))
	if v.Valid() {
		return v
	}
	return SeverityMedium
}

// Skill is a named skill with an optional level. Two skills are the same
// skill when their NormalizeName values are equal.
type Skill struct {
	Name            string      `json:"skill_name"`
	Proficiency     Proficiency `json:"proficiency_level,omitempty"`
	YearsExperience *float64    `json:"years_experience,omitempty"`
	Certification   string      `json:"certification,omitempty"`
}

// Item is one row of a gap analysis.
type Item struct {
	SkillName           string      `json:"skill_name"`
	Status              Status      `json:"status"`
	CurrentProficiency  Proficiency `json:"current_proficiency,omitempty"`
	RequiredProficiency Proficiency `json:"required_proficiency,omitempty"`
	Severity            Severity    `json:"gap_severity"`
	Recommendation      string      `json:"recommendation"`
}

// Buckets groups items by status, preserving their order.
type Buckets struct {
	Met     []Item `json:"skills_met"`
	Missing []Item `json:"skills_missing"`
	Weak    []Item `json:"skills_weak"`
}

// Bucket splits items by status. Items with an invalid status are dropped.
func Bucket(items []Item) Buckets {
	b := Buckets{Met: []Item{}, Missing: []Item{}, Weak: []Item{}}
	for _, it := range items {
		switch it.Status {
		case StatusMet:
			b.Met = append(b.Met, it)
		case StatusMissing:
			b.Missing = append(b.Missing, it)
		case StatusWeak:
			b.Weak = append(b.Weak, it)
		}
	}
	return b
}

// Report is the finished analysis handed to callers and persisted.
type Report struct {
	UserName       string   `json:"user_name"`
	CurrentRole    string   `json:"current_role,omitempty"`
	TargetRole     string   `json:"target_role"`
	SkillsMet      []Item   `json:"skills_met"`
	SkillsMissing  []Item   `json:"skills_missing"`
	SkillsWeak     []Item   `json:"skills_weak"`
	OverallScore   float64  `json:"overall_gap_score"`
	UpskillingPath []string `json:"upskilling_path"`
	Narrative      string   `json:"analysis_summary"`
}

// NormalizeName is the identity key for skills: lowercased, trimmed, inner
// whitespace collapsed.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}
