package store

import (
	"context"
	"os"
	"testing"
)

func TestPostgresStore(t *testing.T) {
	// Only run this test if FOXEYE_TEST_PG_DSN is set and points at a
	// Postgres instance with the pgvector extension available.
	dsn := os.Getenv("FOXEYE_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("Skipping Postgres store test: FOXEYE_TEST_PG_DSN not set")
	}

	ctx := context.Background()
	s, err := New(ctx, dsn)
	if err != nil {
		t.Fatalf("Failed to create Postgres store: %v", err)
	}
	defer s.Close()

	t.Run("frontier idempotence", func(t *testing.T) {
		urls := []FrontierURL{{URL: "http://example-pg.test/a", Host: "example-pg.test", Depth: 1}}
		if err := s.EnqueueURLs(ctx, urls); err != nil {
			t.Fatalf("EnqueueURLs: %v", err)
		}
		// Second insert of the same URL must be a no-op.
		if err := s.EnqueueURLs(ctx, urls); err != nil {
			t.Fatalf("EnqueueURLs (duplicate): %v", err)
		}

		popped, err := s.PopHostQueue(ctx, "example-pg.test", 10)
		if err != nil {
			t.Fatalf("PopHostQueue: %v", err)
		}
		if len(popped) != 1 {
			t.Fatalf("expected exactly 1 row after duplicate insert, got %d", len(popped))
		}
	})

	t.Run("document upsert returns same id", func(t *testing.T) {
		id1, err := s.UpsertDocument(ctx, "http://example-pg.test/doc", "T1", "content one")
		if err != nil {
			t.Fatalf("UpsertDocument: %v", err)
		}
		id2, err := s.UpsertDocument(ctx, "http://example-pg.test/doc", "T2", "content two")
		if err != nil {
			t.Fatalf("UpsertDocument (conflict): %v", err)
		}
		if id1 != id2 {
			t.Fatalf("expected re-parse to return the same doc_id, got %s and %s", id1, id2)
		}

		doc, ok, err := s.GetDocument(ctx, id1)
		if err != nil || !ok {
			t.Fatalf("GetDocument: ok=%v err=%v", ok, err)
		}
		if doc.Title != "T2" || doc.Content != "content two" {
			t.Errorf("expected the conflict update to win, got %+v", doc)
		}
	})

	t.Run("reconciliation finds chunkless documents", func(t *testing.T) {
		docID, err := s.UpsertDocument(ctx, "http://example-pg.test/orphan", "T", "orphan content")
		if err != nil {
			t.Fatalf("UpsertDocument: %v", err)
		}

		ids, err := s.DocumentsWithoutChunks(ctx)
		if err != nil {
			t.Fatalf("DocumentsWithoutChunks: %v", err)
		}

		found := false
		for _, id := range ids {
			if id == docID {
				found = true
			}
		}
		if !found {
			t.Errorf("expected %s in DocumentsWithoutChunks, got %v", docID, ids)
		}

		if err := s.InsertChunks(ctx, []Chunk{{
			ChunkID: "chunk1", DocID: docID, ChunkStart: 0, ChunkEnd: 5,
			Embedding: make([]float32, 4),
		}}); err != nil {
			t.Fatalf("InsertChunks: %v", err)
		}

		ids, err = s.DocumentsWithoutChunks(ctx)
		if err != nil {
			t.Fatalf("DocumentsWithoutChunks: %v", err)
		}
		for _, id := range ids {
			if id == docID {
				t.Errorf("expected %s to be excluded once it has chunks", docID)
			}
		}
	})
}
