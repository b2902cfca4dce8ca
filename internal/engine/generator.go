package engine

import (
	"context"
	"fmt"
)

// Generator turns a single prompt into a completion using a local model. It
// satisfies the same Generate contract as the hosted LLM client.
type Generator struct {
	engine      Engine
	model       string
	temperature float64
}

func NewGenerator(e Engine, model string, temperature float64) *Generator {
	return &Generator{engine: e, model: model, temperature: temperature}
}

func (g *Generator) Generate(ctx context.Context, prompt string) (string, error) {
	temp := g.temperature
	out, err := g.engine.Chat(ctx, g.model, []Message{{Role: "user", Content: prompt}}, ChatOptions{Temperature: &temp})
	if err != nil {
		return "", fmt.Errorf("generating with %s: %w", g.model, err)
	}
	return out, nil
}

// Model returns the model name used for generation.
func (g *Generator) Model() string { return g.model }
