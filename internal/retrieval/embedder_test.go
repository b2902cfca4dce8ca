package retrieval

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/kalambet/skillgap/internal/engine"
)

type mockEngine struct {
	embedFn func(ctx context.Context, model string, texts []string) ([][]float32, error)
}

func (m *mockEngine) Chat(_ context.Context, _ string, _ []engine.Message, _ engine.ChatOptions) (string, error) {
	return "", errors.New("not implemented")
}
func (m *mockEngine) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	return m.embedFn(ctx, model, texts)
}
func (m *mockEngine) IsRunning(_ context.Context) bool          { return false }
func (m *mockEngine) HasModel(_ context.Context, _ string) bool { return false }
func (m *mockEngine) PullModel(_ context.Context, _ string, _ func(engine.PullProgress)) error {
	return errors.New("not implemented")
}

func makeVector(dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(i) * 0.001
	}
	return v
}

// fixedEmbedder returns one dim-sized vector per input text.
func fixedEmbedder(dim int) *mockEngine {
	return &mockEngine{embedFn: func(_ context.Context, _ string, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i := range texts {
			out[i] = makeVector(dim)
		}
		return out, nil
	}}
}

func failingEngine(msg string) *mockEngine {
	return &mockEngine{embedFn: func(context.Context, string, []string) ([][]float32, error) {
		return nil, errors.New(msg)
	}}
}

func TestEmbedder_Embed(t *testing.T) {
	var gotModel string
	eng := &mockEngine{embedFn: func(_ context.Context, model string, texts []string) ([][]float32, error) {
		gotModel = model
		return [][]float32{makeVector(384)}, nil
	}}

	vec, err := NewEmbedder(eng, "nomic-embed-text").Embed(context.Background(), "Go and Kubernetes")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 384 || gotModel != "nomic-embed-text" {
		t.Errorf("dim=%d model=%q", len(vec), gotModel)
	}

	_, err = NewEmbedder(failingEngine("connection refused"), "nomic-embed-text").Embed(context.Background(), "x")
	if err == nil || !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("err = %v, want the engine error wrapped", err)
	}

	empty := &mockEngine{embedFn: func(context.Context, string, []string) ([][]float32, error) { return nil, nil }}
	if _, err := NewEmbedder(empty, "m").Embed(context.Background(), "x"); err == nil {
		t.Error("expected an error when no vector comes back")
	}
}

func TestEmbedder_EmbedBatchSplitsAndKeepsOrder(t *testing.T) {
	var (
		mu    sync.Mutex
		sizes []int
	)
	eng := &mockEngine{embedFn: func(_ context.Context, _ string, texts []string) ([][]float32, error) {
		mu.Lock()
		sizes = append(sizes, len(texts))
		mu.Unlock()
		out := make([][]float32, len(texts))
		for i, text := range texts {
			out[i] = []float32{float32(len(text))}
		}
		return out, nil
	}}

	texts := make([]string, 2*embedBatchSize+8)
	for i := range texts {
		texts[i] = strings.Repeat("x", i+1)
	}
	vecs, err := NewEmbedder(eng, "m").EmbedBatch(context.Background(), texts)
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	for i, v := range vecs {
		if v[0] != float32(i+1) {
			t.Fatalf("vecs[%d] = %v, out of order", i, v)
		}
	}

	slices.Sort(sizes)
	if want := []int{8, embedBatchSize, embedBatchSize}; !slices.Equal(sizes, want) {
		t.Errorf("batch sizes = %v, want %v", sizes, want)
	}
}

func TestEmbedder_EmbedBatchErrors(t *testing.T) {
	short := &mockEngine{embedFn: func(context.Context, string, []string) ([][]float32, error) {
		return [][]float32{makeVector(4)}, nil
	}}
	tests := []struct {
		name string
		eng  *mockEngine
		want string
	}{
		{"engine failure", failingEngine("model not loaded"), "model not loaded"},
		{"too few vectors", short, "returned 1 vectors"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEmbedder(tt.eng, "m").EmbedBatch(context.Background(), []string{"a", "b", "c"})
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestEmbedder_EmbedBatchEmpty(t *testing.T) {
	eng := &mockEngine{embedFn: func(context.Context, string, []string) ([][]float32, error) {
		t.Error("engine called for empty input")
		return nil, nil
	}}
	vecs, err := NewEmbedder(eng, "m").EmbedBatch(context.Background(), nil)
	if err != nil || vecs != nil {
		t.Errorf("EmbedBatch(nil) = %v, %v", vecs, err)
	}
}
