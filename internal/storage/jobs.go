package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Job statuses.
const (
	JobPending   = "pending"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

const defaultMaxAttempts = 3

// EnqueueJob adds a pending job. A zero RunAfter means run immediately.
func (s *Store) EnqueueJob(job Job) error {
	now := time.Now()
	if job.RunAfter.IsZero() {
		job.RunAfter = now
	}
	if job.MaxAttempts == 0 {
		job.MaxAttempts = defaultMaxAttempts
	}
	_, err := s.db.Exec(`
		INSERT INTO jobs (id, type, payload_json, status, attempts, max_attempts, run_after, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?, ?, ?)`,
		job.ID, job.Type, job.PayloadJSON, JobPending, job.MaxAttempts,
		formatTime(job.RunAfter), formatTime(now), formatTime(now),
	)
	if err != nil {
		return fmt.Errorf("enqueueing %s job: %w", job.Type, err)
	}
	return nil
}

// ClaimNextJob moves the oldest runnable job of one of types to running and
// returns it, or nil when nothing is runnable. Selection and update happen
// in one statement, so two workers never claim the same job.
func (s *Store) ClaimNextJob(types []string) (*Job, error) {
	if len(types) == 0 {
		return nil, nil
	}
	now := formatTime(time.Now())

	args := []any{JobRunning, now, JobPending, now}
	for _, t := range types {
		args = append(args, t)
	}
	query := `UPDATE jobs SET status = ?, updated_at = ?
		WHERE id = (
			SELECT id FROM jobs
			WHERE status = ? AND run_after <= ? AND type IN (?` + strings.Repeat(",?", len(types)-1) + `)
			ORDER BY run_after, created_at
			LIMIT 1
		)
		RETURNING id, type, payload_json, status, attempts, max_attempts, run_after, created_at, updated_at, last_error`

	var (
		j                          Job
		runAfter, created, updated string
		lastError                  sql.NullString
	)
	err := s.db.QueryRow(query, args...).Scan(
		&j.ID, &j.Type, &j.PayloadJSON, &j.Status, &j.Attempts, &j.MaxAttempts,
		&runAfter, &created, &updated, &lastError,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claiming job: %w", err)
	}

	j.LastError = lastError.String
	if j.RunAfter, err = parseTime("run_after", runAfter); err != nil {
		return nil, err
	}
	if j.CreatedAt, err = parseTime("created_at", created); err != nil {
		return nil, err
	}
	if j.UpdatedAt, err = parseTime("updated_at", updated); err != nil {
		return nil, err
	}
	return &j, nil
}

// CompleteJob marks a job done.
func (s *Store) CompleteJob(id string) error {
	res, err := s.db.Exec(`UPDATE jobs SET status = ?, updated_at = ? WHERE id = ?`, JobCompleted, formatTime(time.Now()), id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// retryDelay is the wait before attempt n+1 after n failures: 2s, 4s, 8s...
func retryDelay(attempts int) time.Duration {
	return time.Second << min(attempts, 10)
}

// FailJob records a failed attempt. The job is rescheduled with exponential
// backoff until max_attempts is reached, then marked failed.
func (s *Store) FailJob(id string, errMsg string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning fail transaction: %w", err)
	}
	defer tx.Rollback()

	var attempts, maxAttempts int
	err = tx.QueryRow(`SELECT attempts, max_attempts FROM jobs WHERE id = ?`, id).Scan(&attempts, &maxAttempts)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	attempts++
	now := time.Now()
	status, runAfter := JobPending, now.Add(retryDelay(attempts))
	if attempts >= maxAttempts {
		status, runAfter = JobFailed, now
	}
	if _, err := tx.Exec(`UPDATE jobs SET status = ?, attempts = ?, last_error = ?, run_after = ?, updated_at = ? WHERE id = ?`,
		status, attempts, errMsg, formatTime(runAfter), formatTime(now), id); err != nil {
		return err
	}
	return tx.Commit()
}

// JobCounts returns the number of jobs per status.
func (s *Store) JobCounts() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
