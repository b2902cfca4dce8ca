package retrieval

import (
	"context"
	"fmt"
	"time"
)

// ContextChunk is a retrieved context fragment with its similarity score.
type ContextChunk struct {
	ID         string    `json:"id"`
	SourceID   string    `json:"source_id"`
	Collection string    `json:"collection"`
	Text       string    `json:"text"`
	Score      float32   `json:"score"`
	Tags       string    `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// Retriever combines embedding and vector search to find relevant context.
type Retriever struct {
	embedder *Embedder
	store    VectorStore
}

// NewRetriever creates a Retriever backed by the given Embedder and VectorStore.
func NewRetriever(embedder *Embedder, store VectorStore) *Retriever {
	return &Retriever{embedder: embedder, store: store}
}

// Search embeds query and returns up to topK chunks from collection, best
// first. An empty collection searches all of them.
func (r *Retriever) Search(ctx context.Context, collection, query string, topK int) ([]ContextChunk, error) {
	return r.search(ctx, Filter{Collection: collection}, query, topK)
}

// SearchSources is Search restricted to chunks of the given documents. It
// returns nothing when sourceIDs is empty.
func (r *Retriever) SearchSources(ctx context.Context, collection string, sourceIDs []string, query string, topK int) ([]ContextChunk, error) {
	if len(sourceIDs) == 0 {
		return nil, nil
	}
	return r.search(ctx, Filter{Collection: collection, SourceIDs: sourceIDs}, query, topK)
}

// Count returns the number of indexed chunks in collection (all when empty).
func (r *Retriever) Count(ctx context.Context, collection string) (int, error) {
	return r.store.Count(ctx, collection)
}

func (r *Retriever) search(ctx context.Context, f Filter, query string, topK int) ([]ContextChunk, error) {
	if f.Collection != "" && !ValidCollection(f.Collection) {
		return nil, fmt.Errorf("unknown collection %q", f.Collection)
	}
	if topK <= 0 {
		return nil, nil
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}
	scored, err := r.store.Search(ctx, vec, topK, f)
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", collectionLabel(f.Collection), err)
	}
	return dedupChunks(scored), nil
}

// dedupChunks converts scored records to chunks, keeping only the first
// (highest scoring) occurrence of identical text.
func dedupChunks(scored []ScoredRecord) []ContextChunk {
	seen := make(map[string]bool, len(scored))
	chunks := make([]ContextChunk, 0, len(scored))
	for _, s := range scored {
		if seen[s.TextChunk] {
			continue
		}
		seen[s.TextChunk] = true
		chunks = append(chunks, ContextChunk{
			ID:         s.ID,
			SourceID:   s.SourceID,
			Collection: s.SourceType,
			Text:       s.TextChunk,
			Score:      s.Score,
			Tags:       s.Tags,
			CreatedAt:  s.CreatedAt,
		})
	}
	return chunks
}

func collectionLabel(c string) string {
	if c == "" {
		return "all collections"
	}
	return c
}
