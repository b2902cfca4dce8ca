// Package reranking re-scores retrieved framework and profile chunks with a
// local chat model before they are composed into an analysis prompt.
package reranking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kalambet/skillgap/internal/engine"
	"github.com/kalambet/skillgap/internal/retrieval"
)

const concurrency = 3

// Reranker orders chunks by relevance to query.
type Reranker interface {
	Rerank(ctx context.Context, query string, chunks []retrieval.ContextChunk) ([]retrieval.ContextChunk, error)
}

// Config tunes an LLMReranker.
type Config struct {
	Model string
	// Threshold drops chunks scored below it. Chunks that could not be
	// scored keep their similarity score and are compared the same way.
	Threshold float64
	Timeout   time.Duration
}

// New returns an LLMReranker, or a pass-through when disabled.
func New(eng engine.Engine, cfg Config, enabled bool) Reranker {
	if !enabled || eng == nil {
		return Passthrough{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &LLMReranker{engine: eng, cfg: cfg, logger: slog.Default()}
}

// LLMReranker asks the model for a 0..1 relevance score per chunk.
type LLMReranker struct {
	engine engine.Engine
	cfg    Config
	logger *slog.Logger
}

var errNoScore = errors.New("no score in response")

// Rerank scores every chunk, drops those under the threshold and sorts the
// rest best first. When the timeout fires before all chunks are scored, the
// input is returned unchanged.
func (r *LLMReranker) Rerank(ctx context.Context, query string, chunks []retrieval.ContextChunk) ([]retrieval.ContextChunk, error) {
	if len(chunks) == 0 {
		return chunks, nil
	}

	tctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	scored := make([]retrieval.ContextChunk, len(chunks))
	copy(scored, chunks)

	var mu sync.Mutex
	failed := 0

	g, gctx := errgroup.WithContext(tctx)
	g.SetLimit(concurrency)
	for i := range scored {
		g.Go(func() error {
			score, err := r.score(gctx, query, scored[i].Text)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				r.logger.Debug("rerank: keeping similarity score", "chunk_id", scored[i].ID, "error", err)
				mu.Lock()
				failed++
				mu.Unlock()
				return nil
			}
			scored[i].Score = float32(score)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		r.logger.Warn("rerank timed out, using retrieval order", "chunks", len(chunks), "timeout", r.cfg.Timeout)
		return chunks, nil
	}
	if failed == len(chunks) {
		return chunks, nil
	}

	out := scored[:0]
	for _, c := range scored {
		if float64(c.Score) >= r.cfg.Threshold {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

func (r *LLMReranker) score(ctx context.Context, query, text string) (float64, error) {
	prompt := "You judge whether a passage helps assess someone's skills for a career move.\n" +
		"Query: " + query + "\n" +
		"Passage: " + text + "\n" +
		`Rate the passage's relevance to the query from 0.0 to 1.0. Reply with only {"score": <number>}.`

	zero := 0.0
	resp, err := r.engine.Chat(ctx, r.cfg.Model, []engine.Message{
		{Role: "user", Content: prompt},
	}, engine.ChatOptions{Temperature: &zero, JSON: true})
	if err != nil {
		return 0, err
	}
	return parseScore(resp)
}

// parseScore pulls {"score": x} out of a reply that may be wrapped in code
// fences or chatter. The result is clamped to [0,1].
func parseScore(resp string) (float64, error) {
	s := strings.TrimSpace(resp)
	if i := strings.Index(s, "```"); i >= 0 {
		s = strings.TrimPrefix(s[i+3:], "json")
		if j := strings.Index(s, "```"); j >= 0 {
			s = s[:j]
		}
	}

	start, end := strings.Index(s, "{"), strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return 0, errNoScore
	}
	var obj struct {
		Score *float64 `json:"score"`
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), &obj); err != nil {
		return 0, fmt.Errorf("decoding score: %w", err)
	}
	if obj.Score == nil {
		return 0, errNoScore
	}
	return min(max(*obj.Score, 0), 1), nil
}

// Passthrough leaves chunks as retrieved.
type Passthrough struct{}

func (Passthrough) Rerank(_ context.Context, _ string, chunks []retrieval.ContextChunk) ([]retrieval.ContextChunk, error) {
	return chunks, nil
}
