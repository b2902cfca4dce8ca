package retrieval

import (
	"context"
	"time"
)

// Collections partition the vector store by the kind of text indexed. They
// are stored in the source_type column.
const (
	CollectionProfiles   = "profile"
	CollectionFrameworks = "framework"
)

// Collections lists every collection in display order.
var Collections = []string{CollectionProfiles, CollectionFrameworks}

// ValidCollection reports whether name is a known collection.
func ValidCollection(name string) bool {
	return name == CollectionProfiles || name == CollectionFrameworks
}

// Filter narrows a Search. Zero fields match everything.
type Filter struct {
	Collection string
	// SourceIDs restricts results to chunks of these documents.
	SourceIDs []string
}

// VectorStore is the interface for vector storage and similarity search
// backends. SQLiteStore is the only implementation; records keep the same
// shape whatever the backend.
type VectorStore interface {
	// Insert adds records. Record IDs are unique; re-inserting an ID fails.
	Insert(ctx context.Context, records []Record) error

	// Search returns the top-K records most similar to vector, best first.
	Search(ctx context.Context, vector []float32, topK int, filter Filter) ([]ScoredRecord, error)

	// DeleteBySource removes every chunk of a document and reports how many
	// were removed.
	DeleteBySource(ctx context.Context, sourceID string) (int, error)

	// Count returns the number of records in collection, or in all
	// collections when collection is empty.
	Count(ctx context.Context, collection string) (int, error)
}

// Record represents a row in the vector store.
type Record struct {
	ID         string
	SourceID   string
	SourceType string
	TextChunk  string
	Embedding  []float32
	CreatedAt  time.Time
	Tags       string // JSON object of document metadata plus chunk_index
}

// ScoredRecord is a Record with a similarity score attached.
type ScoredRecord struct {
	Record
	Score float32
}
