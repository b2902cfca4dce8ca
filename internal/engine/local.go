package engine

import (
	"context"

	"github.com/kalambet/skillgap/internal/ollama"
)

var _ Engine = (*Local)(nil)

// Local talks to an Ollama server.
type Local struct {
	*ollama.Client
}

func NewLocal(baseURL string) *Local {
	return &Local{Client: ollama.New(baseURL)}
}

func (l *Local) Chat(ctx context.Context, model string, messages []Message, opts ChatOptions) (string, error) {
	o := ollama.ChatOptions{Temperature: opts.Temperature}
	if opts.JSON {
		o.Format = "json"
	}
	return l.Client.Chat(ctx, model, messages, o)
}

func (l *Local) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	return l.Client.Embed(ctx, model, texts...)
}
