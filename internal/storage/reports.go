package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kalambet/skillgap/internal/gap"
)

// SaveTargetRole inserts a target role with its required skills.
func (s *Store) SaveTargetRole(r TargetRole) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning target role transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO target_roles (id, role_name, description, skill_framework, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.RoleName, r.Description, r.SkillFramework, formatTime(r.CreatedAt),
	); err != nil {
		return fmt.Errorf("inserting target role %s: %w", r.ID, err)
	}

	for i, sk := range r.RequiredSkills {
		if _, err := tx.Exec(`INSERT INTO required_skills (role_id, position, name, proficiency) VALUES (?, ?, ?, ?)`,
			r.ID, i, sk.Name, sk.Proficiency.String()); err != nil {
			return fmt.Errorf("inserting required skill %q: %w", sk.Name, err)
		}
	}
	return tx.Commit()
}

func (s *Store) GetTargetRole(id string) (TargetRole, error) {
	var r TargetRole
	var createdAt string
	err := s.db.QueryRow(`
		SELECT id, role_name, description, skill_framework, created_at
		FROM target_roles WHERE id = ?`, id,
	).Scan(&r.ID, &r.RoleName, &r.Description, &r.SkillFramework, &createdAt)
	if err == sql.ErrNoRows {
		return TargetRole{}, ErrNotFound
	}
	if err != nil {
		return TargetRole{}, err
	}
	if r.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return TargetRole{}, err
	}

	rows, err := s.db.Query(`SELECT name, proficiency FROM required_skills WHERE role_id = ? ORDER BY position ASC`, id)
	if err != nil {
		return TargetRole{}, err
	}
	defer rows.Close()

	r.RequiredSkills = []gap.Skill{}
	for rows.Next() {
		var sk gap.Skill
		var prof string
		if err := rows.Scan(&sk.Name, &prof); err != nil {
			return TargetRole{}, err
		}
		sk.Proficiency = gap.NormalizeProficiency(prof)
		r.RequiredSkills = append(r.RequiredSkills, sk)
	}
	return r, rows.Err()
}

const reportColumns = `id, profile_id, target_role_id, target_role, user_query, skills_met, skills_missing, skills_weak,
	upskilling_path, analysis_summary, overall_gap_score, low_confidence, created_at`

func (s *Store) SaveReport(r Report) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	met, err := marshalList(r.SkillsMet)
	if err != nil {
		return err
	}
	missing, err := marshalList(r.SkillsMissing)
	if err != nil {
		return err
	}
	weak, err := marshalList(r.SkillsWeak)
	if err != nil {
		return err
	}
	path, err := marshalList(r.UpskillingPath)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`INSERT INTO reports (`+reportColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.ProfileID, r.TargetRoleID, r.TargetRole, r.UserQuery, met, missing, weak,
		path, r.Narrative, r.OverallScore, r.LowConfidence, formatTime(r.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting report %s: %w", r.ID, err)
	}
	return nil
}

func (s *Store) GetReport(id string) (Report, error) {
	r, err := s.scanReport(s.db.QueryRow(`SELECT `+reportColumns+` FROM reports WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return Report{}, ErrNotFound
	}
	return r, err
}

// ListReports returns a profile's reports, newest first.
func (s *Store) ListReports(profileID string, limit int) ([]Report, error) {
	rows, err := s.db.Query(`SELECT `+reportColumns+` FROM reports WHERE profile_id = ? ORDER BY created_at DESC, id ASC LIMIT ?`, profileID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []Report{}
	for rows.Next() {
		r, err := s.scanReport(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// AllReports returns every report oldest first, for export.
func (s *Store) AllReports() ([]Report, error) {
	rows, err := s.db.Query(`SELECT ` + reportColumns + ` FROM reports ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Report
	for rows.Next() {
		r, err := s.scanReport(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *Store) scanReport(row rowScanner) (Report, error) {
	var r Report
	var met, missing, weak, path, createdAt string
	if err := row.Scan(&r.ID, &r.ProfileID, &r.TargetRoleID, &r.TargetRole, &r.UserQuery, &met, &missing, &weak,
		&path, &r.Narrative, &r.OverallScore, &r.LowConfidence, &createdAt); err != nil {
		return Report{}, err
	}
	for _, f := range []struct {
		name string
		raw  string
		dst  any
	}{
		{"skills_met", met, &r.SkillsMet},
		{"skills_missing", missing, &r.SkillsMissing},
		{"skills_weak", weak, &r.SkillsWeak},
		{"upskilling_path", path, &r.UpskillingPath},
	} {
		if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
			return Report{}, fmt.Errorf("decoding %s for report %s: %w", f.name, r.ID, err)
		}
	}
	var err error
	if r.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return Report{}, err
	}
	return r, nil
}
