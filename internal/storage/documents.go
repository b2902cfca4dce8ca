package storage

import (
	"database/sql"
	"fmt"
	"time"
)

const documentColumns = `id, kind, source_id, name, content, metadata, chunk_count, indexed_at, created_at`

func (s *Store) SaveDocument(d Document) error {
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	if d.Metadata == "" {
		d.Metadata = "{}"
	}
	_, err := s.db.Exec(`INSERT INTO documents (`+documentColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, NULL, ?)`,
		d.ID, d.Kind, d.SourceID, d.Name, d.Content, d.Metadata, d.ChunkCount, formatTime(d.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting document %s: %w", d.ID, err)
	}
	return nil
}

func (s *Store) GetDocument(id string) (Document, error) {
	d, err := scanDocument(s.db.QueryRow(`SELECT `+documentColumns+` FROM documents WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return Document{}, ErrNotFound
	}
	return d, err
}

// ListDocuments returns documents of kind, newest first. Content is omitted.
func (s *Store) ListDocuments(kind string, limit, offset int) ([]Document, error) {
	rows, err := s.db.Query(`SELECT `+documentColumns+` FROM documents WHERE kind = ? ORDER BY created_at DESC, id ASC LIMIT ? OFFSET ?`,
		kind, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []Document{}
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		d.Content = ""
		results = append(results, d)
	}
	return results, rows.Err()
}

// DocumentsBySource returns the ids of documents derived from sourceID, such
// as the indexed text of a profile.
func (s *Store) DocumentsBySource(sourceID string) ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM documents WHERE source_id = ? ORDER BY created_at ASC`, sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkDocumentIndexed records how many chunks were written for a document.
func (s *Store) MarkDocumentIndexed(id string, chunks int) error {
	res, err := s.db.Exec(`UPDATE documents SET chunk_count = ?, indexed_at = ? WHERE id = ?`, chunks, formatTime(time.Now()), id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// DeleteDocument removes a document and the vectors indexed from it.
func (s *Store) DeleteDocument(id string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning delete transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}
	if err := expectOne(res); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM context_vectors WHERE source_id = ?`, id); err != nil {
		return fmt.Errorf("deleting vectors for %s: %w", id, err)
	}
	return tx.Commit()
}

func scanDocument(row rowScanner) (Document, error) {
	var d Document
	var indexedAt sql.NullString
	var createdAt string
	if err := row.Scan(&d.ID, &d.Kind, &d.SourceID, &d.Name, &d.Content, &d.Metadata, &d.ChunkCount, &indexedAt, &createdAt); err != nil {
		return Document{}, err
	}
	var err error
	if d.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return Document{}, err
	}
	if indexedAt.Valid {
		t, err := parseTime("indexed_at", indexedAt.String)
		if err != nil {
			return Document{}, err
		}
		d.IndexedAt = &t
	}
	return d, nil
}
