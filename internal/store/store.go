// Package store implements the relational entities from spec.md §3/§6: the
// URL frontier, documents, and their chunk embeddings, all backed by
// Postgres with the pgvector extension for similarity search.
package store

import (
	"context"
	"time"
)

// FrontierURL is one row of crawler_queue: a URL waiting to be crawled.
type FrontierURL struct {
	URLID     string
	URL       string
	Host      string
	Depth     int
	CreatedAt time.Time
}

// Document is one row of document: the durable parsed-page record.
type Document struct {
	DocID   string
	URL     string
	Title   string
	Content string
}

// Chunk is one row of chunk: a windowed embedding of a document's text.
type Chunk struct {
	ChunkID    string
	DocID      string
	ChunkStart int64
	ChunkEnd   int64
	Embedding  []float32
}

// RankedChunk is one row returned by RankChunks' top-1-chunk-per-document
// similarity query, as consumed by internal/search.
type RankedChunk struct {
	ChunkID          string
	ChunkStart       int64
	ChunkEnd         int64
	CosineSimilarity float64
	URL              string
	Content          string
	Title            string
}

// Store is the relational contract the crawler, parser, embedder, and
// search services depend on.
type Store interface {
	// EnqueueURLs bulk-inserts frontier rows, ignoring conflicts on url
	// (spec.md §3: frontier insertion is idempotent).
	EnqueueURLs(ctx context.Context, urls []FrontierURL) error

	// PopHostQueue destructively pops up to limit rows for host, ordered by
	// created_at ascending (spec.md §4.1 populate()).
	PopHostQueue(ctx context.Context, host string, limit int) ([]FrontierURL, error)

	// UpsertDocument inserts or updates a document by URL, returning its
	// doc_id (fresh on insert, existing on conflict) per spec.md §4.2.
	UpsertDocument(ctx context.Context, url, title, content string) (docID string, err error)

	// GetDocument loads a document's text by id.
	GetDocument(ctx context.Context, docID string) (Document, bool, error)

	// InsertChunks bulk-inserts chunks for one document, all-or-nothing.
	InsertChunks(ctx context.Context, chunks []Chunk) error

	// DocumentsWithoutChunks lists doc_ids with zero chunk rows, used by the
	// parser's startup reconciliation pass (spec.md §4.2/§9).
	DocumentsWithoutChunks(ctx context.Context) ([]string, error)

	// RankChunks returns the top `limit` documents (offset by `offset`)
	// ranked by cosine similarity to queryEmbedding, reduced to one
	// (highest-similarity) chunk per document, per spec.md §4.4.
	RankChunks(ctx context.Context, queryEmbedding []float32, limit, offset int) ([]RankedChunk, error)

	Close()
}
