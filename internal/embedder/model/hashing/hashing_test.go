package hashing

import (
	"context"
	"math"
	"testing"

	"github.com/FranksOps/foxeye/internal/embedder/model"
)

func TestTokenize_OffsetsMatchText(t *testing.T) {
	e := WithConfig(model.Config{})
	text := "hello   world"

	tok, err := e.Tokenize(context.Background(), text, true)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	if len(tok.TokenIDs) != 2 || len(tok.Offsets) != 2 {
		t.Fatalf("expected 2 tokens, got %d", len(tok.TokenIDs))
	}

	for i, off := range tok.Offsets {
		word := string([]rune(text)[off.Start:off.End])
		if i == 0 && word != "hello" {
			t.Errorf("expected first token offset to cover %q, got %q", "hello", word)
		}
		if i == 1 && word != "world" {
			t.Errorf("expected second token offset to cover %q, got %q", "world", word)
		}
	}
}

func TestEmbed_DeterministicAndNormalized(t *testing.T) {
	e := WithConfig(model.Config{HiddenSize: 64, Pooling: model.PoolingMean, Normalize: true})

	tok, err := e.Tokenize(context.Background(), "the quick brown fox", true)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}

	v1, err := e.Embed(context.Background(), tok.TokenIDs)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	v2, err := e.Embed(context.Background(), tok.TokenIDs)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}

	for i := range v1 {
		if v1[i] != v2[i] {
			t.Fatalf("expected deterministic embeddings, differ at index %d", i)
		}
	}

	var sumSq float64
	for _, x := range v1 {
		sumSq += float64(x) * float64(x)
	}
	if math.Abs(sumSq-1) > 1e-4 {
		t.Errorf("expected a unit-norm vector, got squared norm %f", sumSq)
	}
}

func TestEmbed_CLSUsesFirstTokenOnly(t *testing.T) {
	e := WithConfig(model.Config{HiddenSize: 32, Pooling: model.PoolingCLS, Normalize: false})

	tok, err := e.Tokenize(context.Background(), "alpha beta gamma", true)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}

	full, err := e.Embed(context.Background(), tok.TokenIDs)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	firstOnly, err := e.Embed(context.Background(), tok.TokenIDs[:1])
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}

	for i := range full {
		if full[i] != firstOnly[i] {
			t.Fatalf("expected CLS pooling to ignore trailing tokens, differ at index %d", i)
		}
	}
}

func TestEmbed_EmptyInput(t *testing.T) {
	e := WithConfig(model.Config{HiddenSize: 16})
	v, err := e.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(v) != 16 {
		t.Fatalf("expected a zero vector of the configured size, got len %d", len(v))
	}
	for _, x := range v {
		if x != 0 {
			t.Errorf("expected an all-zero vector for empty input")
		}
	}
}
