package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/kalambet/skillgap/internal/gap"
)

const profileColumns = `id, name, current_role, experience_years, bio, raw_text, certifications, created_at, updated_at`

// SaveProfile inserts a new profile together with its skills.
func (s *Store) SaveProfile(p Profile) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	certs, err := marshalList(p.Certifications)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning profile transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO profiles (`+profileColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.CurrentRole, p.ExperienceYears, p.Bio, p.RawText, certs,
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	); err != nil {
		return fmt.Errorf("inserting profile %s: %w", p.ID, err)
	}
	if err := insertProfileSkills(tx, p.ID, p.Skills); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateProfile replaces the stored profile and its skill list.
func (s *Store) UpdateProfile(p Profile) error {
	certs, err := marshalList(p.Certifications)
	if err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning profile transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`
		UPDATE profiles SET name = ?, current_role = ?, experience_years = ?, bio = ?, raw_text = ?, certifications = ?, updated_at = ?
		WHERE id = ?`,
		p.Name, p.CurrentRole, p.ExperienceYears, p.Bio, p.RawText, certs, formatTime(time.Now()), p.ID,
	)
	if err != nil {
		return fmt.Errorf("updating profile %s: %w", p.ID, err)
	}
	if err := expectOne(res); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM profile_skills WHERE profile_id = ?`, p.ID); err != nil {
		return fmt.Errorf("clearing skills for %s: %w", p.ID, err)
	}
	if err := insertProfileSkills(tx, p.ID, p.Skills); err != nil {
		return err
	}
	return tx.Commit()
}

func insertProfileSkills(tx *sql.Tx, profileID string, skills []gap.Skill) error {
	stmt, err := tx.Prepare(`
		INSERT INTO profile_skills (profile_id, position, name, proficiency, years_experience, certification)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing skill insert: %w", err)
	}
	defer stmt.Close()

	for i, sk := range skills {
		if _, err := stmt.Exec(profileID, i, sk.Name, sk.Proficiency.String(), sk.YearsExperience, sk.Certification); err != nil {
			return fmt.Errorf("inserting skill %q: %w", sk.Name, err)
		}
	}
	return nil
}

func (s *Store) GetProfile(id string) (Profile, error) {
	p, err := scanProfile(s.db.QueryRow(`SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, err
	}
	if p.Skills, err = s.profileSkills(id); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// ListProfiles returns profiles oldest first, skipping skip and returning at
// most limit.
func (s *Store) ListProfiles(skip, limit int) ([]Profile, error) {
	rows, err := s.db.Query(`SELECT `+profileColumns+` FROM profiles ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?`, limit, skip)
	if err != nil {
		return nil, err
	}

	var results []Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		results = append(results, p)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, err
	}

	// Skills are loaded after the cursor is closed; the store runs on a
	// single connection.
	for i := range results {
		if results[i].Skills, err = s.profileSkills(results[i].ID); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// DeleteProfile removes a profile, its skills, its reports and any documents
// and vectors indexed from its text.
func (s *Store) DeleteProfile(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning delete transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM profiles WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting profile %s: %w", id, err)
	}
	if err := expectOne(res); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM context_vectors WHERE source_id IN (SELECT id FROM documents WHERE source_id = ?)`, id); err != nil {
		return fmt.Errorf("deleting vectors for profile %s: %w", id, err)
	}
	if _, err := tx.Exec(`DELETE FROM documents WHERE source_id = ?`, id); err != nil {
		return fmt.Errorf("deleting documents for profile %s: %w", id, err)
	}
	return tx.Commit()
}

func (s *Store) CountProfiles() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM profiles`).Scan(&n)
	return n, err
}

func (s *Store) profileSkills(profileID string) ([]gap.Skill, error) {
	rows, err := s.db.Query(`
		SELECT name, proficiency, years_experience, certification
		FROM profile_skills WHERE profile_id = ? ORDER BY position ASC`, profileID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	skills := []gap.Skill{}
	for rows.Next() {
		var sk gap.Skill
		var prof string
		var years sql.NullFloat64
		if err := rows.Scan(&sk.Name, &prof, &years, &sk.Certification); err != nil {
			return nil, err
		}
		sk.Proficiency = gap.NormalizeProficiency(prof)
		if years.Valid {
			v := years.Float64
			sk.YearsExperience = &v
		}
		skills = append(skills, sk)
	}
	return skills, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (Profile, error) {
	var p Profile
	var years sql.NullFloat64
	var certs, createdAt, updatedAt string
	if err := row.Scan(&p.ID, &p.Name, &p.CurrentRole, &years, &p.Bio, &p.RawText, &certs, &createdAt, &updatedAt); err != nil {
		return Profile{}, err
	}
	if years.Valid {
		v := years.Float64
		p.ExperienceYears = &v
	}
	if err := json.Unmarshal([]byte(certs), &p.Certifications); err != nil {
		return Profile{}, fmt.Errorf("decoding certifications for %s: %w", p.ID, err)
	}
	var err error
	if p.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return Profile{}, err
	}
	if p.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return Profile{}, err
	}
	return p, nil
}

func marshalList[T any](v []T) (string, error) {
	if v == nil {
		v = []T{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding list: %w", err)
	}
	return string(b), nil
}
