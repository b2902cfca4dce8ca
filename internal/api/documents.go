package api

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/kalambet/skillgap/internal/ingest"
	"github.com/kalambet/skillgap/internal/storage"
)

type queuedDocument struct {
	DocumentID string
	JobID      string
}

// queueDocument stores text for retrieval and schedules it for indexing.
// sourceID links profile text back to its profile; frameworks leave it empty.
func queueDocument(store *storage.Store, kind, sourceID, name, content string, metadata map[string]any) (queuedDocument, error) {
	meta := "{}"
	if len(metadata) > 0 {
		b, err := json.Marshal(metadata)
		if err != nil {
			return queuedDocument{}, fmt.Errorf("marshaling metadata: %w", err)
		}
		meta = string(b)
	}

	doc := storage.Document{
		ID:       uuid.New().String(),
		Kind:     kind,
		SourceID: sourceID,
		Name:     name,
		Content:  content,
		Metadata: meta,
	}
	if err := store.SaveDocument(doc); err != nil {
		return queuedDocument{}, err
	}

	jobID, err := ingest.Enqueue(store, doc.ID)
	if err != nil {
		return queuedDocument{DocumentID: doc.ID}, fmt.Errorf("saved document but failed to queue indexing: %w", err)
	}
	return queuedDocument{DocumentID: doc.ID, JobID: jobID}, nil
}
