package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kalambet/skillgap/internal/retrieval"
	"github.com/kalambet/skillgap/internal/storage"
)

// JobIndexDocument is the job type that chunks, embeds and indexes a document.
const JobIndexDocument = "index_document"

// JobStore abstracts the job queue and document operations.
type JobStore interface {
	EnqueueJob(job storage.Job) error
	ClaimNextJob(types []string) (*storage.Job, error)
	CompleteJob(id string) error
	FailJob(id string, errMsg string) error
	GetDocument(id string) (storage.Document, error)
	MarkDocumentIndexed(id string, chunks int) error
}

// BatchEmbedder generates embeddings for many texts, in input order.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorWriter replaces a document's chunks in the vector store.
type VectorWriter interface {
	Insert(ctx context.Context, records []retrieval.Record) error
	DeleteBySource(ctx context.Context, sourceID string) (int, error)
}

// Worker processes index_document jobs from the SQLite job queue.
type Worker struct {
	store    JobStore
	embedder BatchEmbedder
	vectors  VectorWriter
	splitter *retrieval.Splitter
	poll     time.Duration
	logger   *slog.Logger
}

// NewWorker creates a Worker with the given dependencies.
// If pollInterval is <= 0, it defaults to 500ms. A nil splitter uses the
// default chunk size and overlap.
func NewWorker(store JobStore, embedder BatchEmbedder, vectors VectorWriter, splitter *retrieval.Splitter, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	if splitter == nil {
		splitter = retrieval.NewSplitter(0, 0)
	}
	return &Worker{
		store:    store,
		embedder: embedder,
		vectors:  vectors,
		splitter: splitter,
		poll:     pollInterval,
		logger:   slog.Default(),
	}
}

type indexPayload struct {
	DocumentID string `json:"document_id"`
}

// Enqueue schedules docID for indexing and returns the job id.
func Enqueue(store JobStore, docID string) (string, error) {
	payload, err := json.Marshal(indexPayload{DocumentID: docID})
	if err != nil {
		return "", err
	}
	job := storage.Job{
		ID:          uuid.New().String(),
		Type:        JobIndexDocument,
		PayloadJSON: string(payload),
	}
	if err := store.EnqueueJob(job); err != nil {
		return "", fmt.Errorf("enqueueing index job for %s: %w", docID, err)
	}
	return job.ID, nil
}

// Run drains the queue, then checks again every poll interval, until ctx
// is done.
func (w *Worker) Run(ctx context.Context) {
	tick := time.NewTicker(w.poll)
	defer tick.Stop()
	for {
		w.drain(ctx)
		select {
		case <-ctx.Done():
			return
		case <-tick.C:
		}
	}
}

func (w *Worker) drain(ctx context.Context) {
	for ctx.Err() == nil {
		ran, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("ingest: queue error", "error", err)
			return
		}
		if !ran {
			return
		}
	}
}

// RunOnce handles at most one index_document job and reports whether it
// found one. A failed job is handed back to the queue for retry and is not
// an error here; only queue bookkeeping failures are returned.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob([]string{JobIndexDocument})
	if err != nil || job == nil {
		return false, err
	}

	log := w.logger.With("job_id", job.ID, "attempt", job.Attempts+1)
	began := time.Now()
	if err := w.processJob(ctx, job); err != nil {
		log.Warn("ingest: indexing failed", "error", err)
		if ferr := w.store.FailJob(job.ID, err.Error()); ferr != nil {
			return true, fmt.Errorf("recording failure of job %s: %w", job.ID, ferr)
		}
		return true, nil
	}
	if err := w.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	log.Debug("ingest: job done", "took", time.Since(began))
	return true, nil
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	var payload indexPayload
	if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
		return fmt.Errorf("parsing payload: %w", err)
	}

	doc, err := w.store.GetDocument(payload.DocumentID)
	if err != nil {
		return fmt.Errorf("loading document %s: %w", payload.DocumentID, err)
	}

	chunks := w.splitter.Split(doc.Content)

	var vecs [][]float32
	if len(chunks) > 0 {
		if vecs, err = w.embedder.EmbedBatch(ctx, chunks); err != nil {
			return fmt.Errorf("embedding %d chunks: %w", len(chunks), err)
		}
	}

	// A retried job must not leave the previous attempt's chunks behind.
	if _, err := w.vectors.DeleteBySource(ctx, doc.ID); err != nil {
		return fmt.Errorf("clearing old chunks: %w", err)
	}

	now := time.Now().UTC()
	records := make([]retrieval.Record, len(chunks))
	for i, chunk := range chunks {
		tags, err := chunkTags(doc, i)
		if err != nil {
			return err
		}
		records[i] = retrieval.Record{
			ID:         retrieval.ChunkID(doc.ID, i),
			SourceID:   doc.ID,
			SourceType: doc.Kind,
			TextChunk:  chunk,
			Embedding:  vecs[i],
			CreatedAt:  now,
			Tags:       tags,
		}
	}

	if err := w.vectors.Insert(ctx, records); err != nil {
		return fmt.Errorf("inserting vectors: %w", err)
	}

	if err := w.store.MarkDocumentIndexed(doc.ID, len(records)); err != nil {
		return fmt.Errorf("marking document indexed: %w", err)
	}

	w.logger.Info("document indexed", "document_id", doc.ID, "kind", doc.Kind, "chunks", len(records))
	return nil
}

// chunkTags copies the document metadata and adds the chunk position and
// document name.
func chunkTags(doc storage.Document, index int) (string, error) {
	tags := map[string]any{}
	if doc.Metadata != "" {
		if err := json.Unmarshal([]byte(doc.Metadata), &tags); err != nil {
			return "", fmt.Errorf("decoding metadata of %s: %w", doc.ID, err)
		}
		if tags == nil {
			tags = map[string]any{}
		}
	}
	tags["chunk_index"] = index
	if doc.Name != "" {
		tags["document_name"] = doc.Name
	}
	b, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encoding tags: %w", err)
	}
	return string(b), nil
}
