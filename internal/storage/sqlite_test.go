package storage

import (
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen_MigratesOnceAcrossReopens(t *testing.T) {
	dir := t.TempDir()
	var history [][]int
	for range 2 {
		s, err := Open(dir)
		if err != nil {
			t.Fatalf("Open(%s): %v", dir, err)
		}
		versions, err := s.AppliedMigrations()
		s.Close()
		if err != nil {
			t.Fatalf("AppliedMigrations: %v", err)
		}
		history = append(history, versions)
	}

	if len(history[0]) == 0 {
		t.Fatal("no migrations recorded on first open")
	}
	if !slices.Equal(history[0], history[1]) {
		t.Errorf("reopen changed migration history: %v then %v", history[0], history[1])
	}
	if !slices.IsSorted(history[0]) {
		t.Errorf("versions not ascending: %v", history[0])
	}
}

func TestSchemaObjects(t *testing.T) {
	s := openTestStore(t)

	want := map[string][]string{
		"table": {"profiles", "profile_skills", "target_roles", "required_skills", "reports", "documents", "jobs", "context_vectors", "schema_version"},
		"index": {
			"idx_profiles_created", "idx_reports_profile_created", "idx_documents_kind",
			"idx_documents_source_id", "idx_jobs_status_run_after",
			"idx_context_vectors_source_id", "idx_context_vectors_source_type",
		},
	}
	for kind, names := range want {
		for _, name := range names {
			var n int
			if err := s.db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = ? AND name = ?`, kind, name).Scan(&n); err != nil {
				t.Fatalf("sqlite_master lookup: %v", err)
			}
			if n != 1 {
				t.Errorf("%s %s missing", kind, name)
			}
		}
	}
}

func TestPragmasApplied(t *testing.T) {
	s := openTestStore(t)

	var fk int
	if err := s.db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("PRAGMA foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("foreign_keys = %d, want 1", fk)
	}

	var timeout int
	if err := s.db.QueryRow("PRAGMA busy_timeout").Scan(&timeout); err != nil {
		t.Fatalf("PRAGMA busy_timeout: %v", err)
	}
	if timeout != 5000 {
		t.Errorf("busy_timeout = %d, want 5000", timeout)
	}
}

func TestFileDatabaseUsesWAL(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "data")
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	var mode string
	if err := s.db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("PRAGMA journal_mode: %v", err)
	}
	if !strings.EqualFold(mode, "wal") {
		t.Errorf("journal_mode = %q, want wal", mode)
	}
}

func TestParseMigrationVersion(t *testing.T) {
	tests := []struct {
		name    string
		want    int
		wantErr bool
	}{
		{"001_init.sql", 1, false},
		{"012_add_reports.sql", 12, false},
		{"init.sql", 0, true},
		{"abc_init.sql", 0, true},
	}
	for _, tt := range tests {
		got, err := parseMigrationVersion(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseMigrationVersion(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseMigrationVersion(%q) = %d, want %d", tt.name, got, tt.want)
		}
	}
}
