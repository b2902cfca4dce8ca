package retrieval

import (
	"context"
	"fmt"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/skillgap/internal/engine"
)

const (
	embedBatchSize = 16
	// embedParallel caps concurrent batch requests to the engine.
	embedParallel = 4
)

// Embedder turns text into vectors with one embedding model.
type Embedder struct {
	engine engine.Engine
	model  string
}

func NewEmbedder(e engine.Engine, model string) *Embedder {
	return &Embedder{engine: e, model: model}
}

func (e *Embedder) Model() string { return e.model }

// Embed vectorizes a single query string.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.engine.Embed(ctx, e.model, []string{text})
	switch {
	case err != nil:
		return nil, fmt.Errorf("embedding with %s: %w", e.model, err)
	case len(vecs) != 1:
		return nil, fmt.Errorf("embedding with %s: %d vectors for one text", e.model, len(vecs))
	}
	return vecs[0], nil
}

// EmbedBatch vectorizes texts, splitting them into fixed-size batches that
// run concurrently. The result lines up with texts; no input gives nil.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	out := make([][]float32, len(texts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedParallel)

	offset := 0
	for batch := range slices.Chunk(texts, embedBatchSize) {
		dst := out[offset : offset+len(batch)]
		first := offset
		offset += len(batch)

		g.Go(func() error {
			vecs, err := e.engine.Embed(gctx, e.model, batch)
			if err != nil {
				return fmt.Errorf("embedding texts %d..%d: %w", first, first+len(batch)-1, err)
			}
			if len(vecs) != len(batch) {
				return fmt.Errorf("embedding texts %d..%d: engine returned %d vectors", first, first+len(batch)-1, len(vecs))
			}
			copy(dst, vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
