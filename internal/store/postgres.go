package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/pgvector/pgvector-go"
)

// ensure postgresStore implements Store
var _ Store = (*postgresStore)(nil)

type postgresStore struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS crawler_queue (
	url_id TEXT PRIMARY KEY,
	url TEXT UNIQUE NOT NULL,
	host TEXT NOT NULL,
	depth INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS crawler_queue_host_created_at_idx ON crawler_queue (host, created_at ASC);

CREATE TABLE IF NOT EXISTS document (
	doc_id TEXT PRIMARY KEY,
	url TEXT UNIQUE NOT NULL,
	title TEXT NOT NULL,
	content TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS chunk (
	chunk_id TEXT PRIMARY KEY,
	doc_id TEXT NOT NULL REFERENCES document(doc_id),
	chunk_start BIGINT NOT NULL,
	chunk_end BIGINT NOT NULL,
	embedding vector NOT NULL
);

CREATE INDEX IF NOT EXISTS chunk_doc_id_idx ON chunk (doc_id);
`

// New bootstraps a Postgres-backed Store: connect, ping, create schema.
func New(ctx context.Context, dsn string) (Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("context: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("context: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("context: %w", err)
	}

	return &postgresStore{pool: pool}, nil
}

func (s *postgresStore) Close() {
	s.pool.Close()
}

func (s *postgresStore) EnqueueURLs(ctx context.Context, urls []FrontierURL) error {
	if len(urls) == 0 {
		return nil
	}

	ids := make([]string, len(urls))
	rawURLs := make([]string, len(urls))
	hosts := make([]string, len(urls))
	depths := make([]int32, len(urls))

	for i, u := range urls {
		ids[i] = ulid.Make().String()
		rawURLs[i] = u.URL
		hosts[i] = u.Host
		depths[i] = int32(u.Depth)
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO crawler_queue (url_id, url, host, depth)
		SELECT * FROM unnest($1::text[], $2::text[], $3::text[], $4::int[])
		ON CONFLICT (url) DO NOTHING
	`, ids, rawURLs, hosts, depths)
	if err != nil {
		return fmt.Errorf("context: %w", err)
	}
	return nil
}

func (s *postgresStore) PopHostQueue(ctx context.Context, host string, limit int) ([]FrontierURL, error) {
	rows, err := s.pool.Query(ctx, `
		DELETE FROM crawler_queue
		WHERE url_id IN (
			SELECT url_id FROM crawler_queue
			WHERE host = $1
			ORDER BY created_at ASC
			LIMIT $2
		)
		RETURNING url_id, url, host, depth, created_at
	`, host, limit)
	if err != nil {
		return nil, fmt.Errorf("context: %w", err)
	}
	defer rows.Close()

	var out []FrontierURL
	for rows.Next() {
		var f FrontierURL
		if err := rows.Scan(&f.URLID, &f.URL, &f.Host, &f.Depth, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("context: %w", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("context: %w", err)
	}
	return out, nil
}

func (s *postgresStore) UpsertDocument(ctx context.Context, url, title, content string) (string, error) {
	docID := ulid.Make().String()

	var returnedID string
	err := s.pool.QueryRow(ctx, `
		INSERT INTO document (doc_id, url, title, content)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (url) DO UPDATE SET content = EXCLUDED.content, title = EXCLUDED.title
		RETURNING doc_id
	`, docID, url, title, content).Scan(&returnedID)
	if err != nil {
		return "", fmt.Errorf("context: %w", err)
	}
	return returnedID, nil
}

func (s *postgresStore) GetDocument(ctx context.Context, docID string) (Document, bool, error) {
	var d Document
	err := s.pool.QueryRow(ctx, `
		SELECT doc_id, url, title, content FROM document WHERE doc_id = $1
	`, docID).Scan(&d.DocID, &d.URL, &d.Title, &d.Content)
	if err == pgx.ErrNoRows {
		return Document{}, false, nil
	}
	if err != nil {
		return Document{}, false, fmt.Errorf("context: %w", err)
	}
	return d, true, nil
}

func (s *postgresStore) InsertChunks(ctx context.Context, chunks []Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("context: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, c := range chunks {
		_, err := tx.Exec(ctx, `
			INSERT INTO chunk (chunk_id, doc_id, chunk_start, chunk_end, embedding)
			VALUES ($1, $2, $3, $4, $5)
		`, c.ChunkID, c.DocID, c.ChunkStart, c.ChunkEnd, pgvector.NewVector(c.Embedding))
		if err != nil {
			return fmt.Errorf("context: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("context: %w", err)
	}
	return nil
}

func (s *postgresStore) DocumentsWithoutChunks(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT d.doc_id FROM document d
		LEFT JOIN chunk c ON c.doc_id = d.doc_id
		WHERE c.chunk_id IS NULL
	`)
	if err != nil {
		return nil, fmt.Errorf("context: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("context: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("context: %w", err)
	}
	return ids, nil
}

func (s *postgresStore) RankChunks(ctx context.Context, queryEmbedding []float32, limit, offset int) ([]RankedChunk, error) {
	rows, err := s.pool.Query(ctx, `
		WITH ranked_chunks AS (
			SELECT
				chunk_id,
				chunk.doc_id,
				chunk_start,
				chunk_end,
				embedding,
				1 - (embedding <=> $1) AS cosine_similarity,
				ROW_NUMBER() OVER (PARTITION BY chunk.doc_id ORDER BY embedding <=> $1) AS rank
			FROM chunk
		)
		SELECT
			rc.chunk_id,
			rc.chunk_start,
			rc.chunk_end,
			rc.cosine_similarity,
			d.url,
			d.content,
			d.title
		FROM ranked_chunks rc
		JOIN document d ON rc.doc_id = d.doc_id
		WHERE rc.rank = 1
		ORDER BY rc.cosine_similarity DESC
		LIMIT $2 OFFSET $3
	`, pgvector.NewVector(queryEmbedding), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("context: %w", err)
	}
	defer rows.Close()

	var out []RankedChunk
	for rows.Next() {
		var r RankedChunk
		if err := rows.Scan(&r.ChunkID, &r.ChunkStart, &r.ChunkEnd, &r.CosineSimilarity, &r.URL, &r.Content, &r.Title); err != nil {
			return nil, fmt.Errorf("context: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("context: %w", err)
	}
	return out, nil
}
