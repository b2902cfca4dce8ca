// Package engine is the narrow view of a local Ollama server that retrieval,
// reranking and local generation share.
package engine

import (
	"context"

	"github.com/kalambet/skillgap/internal/ollama"
)

type (
	// Message is one chat turn.
	Message = ollama.Message
	// PullProgress is a single status line from a model download.
	PullProgress = ollama.PullProgress
)

// ChatOptions tunes a chat call. JSON constrains the reply to a JSON object.
type ChatOptions struct {
	Temperature *float64
	JSON        bool
}

// Engine is implemented by Local and by test doubles.
type Engine interface {
	Chat(ctx context.Context, model string, messages []Message, opts ChatOptions) (string, error)
	// Embed returns vectors in the order of texts.
	Embed(ctx context.Context, model string, texts []string) ([][]float32, error)
	IsRunning(ctx context.Context) bool
	HasModel(ctx context.Context, name string) bool
	// PullModel downloads name. onProgress may be nil.
	PullModel(ctx context.Context, name string, onProgress func(PullProgress)) error
}
