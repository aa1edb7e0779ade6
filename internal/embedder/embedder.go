// Package embedder implements spec.md §4.3: consume doc_ids from the
// parser→embedder hop, chunk each document's text with overlap, pool each
// chunk's tokens into a vector via the external model.Model, and bulk
// persist the resulting chunks.
package embedder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/oklog/ulid/v2"

	"github.com/FranksOps/foxeye/internal/bus"
	"github.com/FranksOps/foxeye/internal/embedder/model"
	"github.com/FranksOps/foxeye/internal/metrics"
	"github.com/FranksOps/foxeye/internal/store"
)

// Service consumes doc_ids and turns each into persisted chunk embeddings.
type Service struct {
	Store   store.Store
	Model   model.Model
	Overlap int
	Logger  *slog.Logger
}

// New constructs a Service with the default chunk overlap.
func New(s store.Store, m model.Model, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{Store: s, Model: m, Overlap: DefaultOverlap, Logger: logger}
}

// HandleDocument is the bus.Handler for the parser→embedder hop: load the
// document, chunk and embed its content, and bulk-insert the resulting
// chunks. Per spec.md §4.3, a missing document or any model failure is
// reported and the message is dropped (the handler returns nil so the
// caller acks rather than redelivers a message that can never succeed).
func (s *Service) HandleDocument(ctx context.Context, docID string) error {
	if docID == "" {
		s.Logger.Warn("embedder: empty doc_id, dropping")
		metrics.EmbedOutcomesTotal.WithLabelValues("empty_id").Inc()
		return nil
	}

	doc, ok, err := s.Store.GetDocument(ctx, docID)
	if err != nil {
		return fmt.Errorf("context: %w", err)
	}
	if !ok {
		s.Logger.Warn("embedder: document not found, dropping", "doc_id", docID)
		metrics.EmbedOutcomesTotal.WithLabelValues("missing_document").Inc()
		return nil
	}

	chunks, err := Chunk(ctx, s.Model, doc.Content, s.Overlap)
	if err != nil {
		s.Logger.Warn("embedder: tokenization failed, dropping", "doc_id", docID, "error", err)
		metrics.EmbedOutcomesTotal.WithLabelValues("tokenize_error").Inc()
		return nil
	}
	if len(chunks) == 0 {
		s.Logger.Warn("embedder: document produced zero chunks, dropping", "doc_id", docID)
		metrics.EmbedOutcomesTotal.WithLabelValues("empty_document").Inc()
		return nil
	}

	rows := make([]store.Chunk, 0, len(chunks))
	for _, c := range chunks {
		vec, err := s.Model.Embed(ctx, c.TokenIDs)
		if err != nil {
			s.Logger.Warn("embedder: forward pass failed, dropping", "doc_id", docID, "error", err)
			metrics.EmbedOutcomesTotal.WithLabelValues("embed_error").Inc()
			return nil
		}
		rows = append(rows, store.Chunk{
			ChunkID:    ulid.Make().String(),
			DocID:      docID,
			ChunkStart: int64(c.Start),
			ChunkEnd:   int64(c.End),
			Embedding:  vec,
		})
	}

	if err := s.Store.InsertChunks(ctx, rows); err != nil {
		return fmt.Errorf("context: %w", err)
	}

	metrics.EmbedBatchSize.Observe(float64(len(rows)))
	metrics.EmbedOutcomesTotal.WithLabelValues("success").Inc()
	s.Logger.Info("embedder: persisted chunks", "doc_id", docID, "chunks", len(rows))
	return nil
}

// Run drives HandleDocument from the parser→embedder bus hop until ctx is
// cancelled.
func (s *Service) Run(ctx context.Context, b *bus.Bus, consumerName string) error {
	return b.Consume(ctx, bus.ParserToEmbedder, consumerName, false, s.HandleDocument)
}
