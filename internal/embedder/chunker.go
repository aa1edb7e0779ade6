package embedder

import (
	"context"
	"fmt"

	"github.com/FranksOps/foxeye/internal/embedder/model"
)

// DefaultOverlap is the number of tokens a chunk shares with the chunk that
// follows it, per spec.md §4.3.
const DefaultOverlap = 52

// TextChunk is one windowed slice of a document's tokens, with the
// character offsets of that window in the original text.
type TextChunk struct {
	TokenIDs []int32
	Start    int
	End      int
}

// Chunk tokenizes text once and walks the token sequence in non-overlapping
// strides of (m.Config().MaxInputTokens - overlap), extending each stride by
// up to overlap tokens borrowed from the following stride so that adjacent
// chunks share context. Character offsets for each chunk come straight from
// the tokenizer's offset table.
func Chunk(ctx context.Context, m model.Model, text string, overlap int) ([]TextChunk, error) {
	if overlap < 0 {
		overlap = 0
	}

	tok, err := m.Tokenize(ctx, text, true)
	if err != nil {
		return nil, fmt.Errorf("context: %w", err)
	}
	if len(tok.TokenIDs) == 0 {
		return nil, nil
	}

	w := m.Config().MaxInputTokens
	if w <= 0 {
		return nil, fmt.Errorf("chunker: model max input tokens must be positive, got %d", w)
	}
	stride := w - overlap
	if stride <= 0 {
		stride = w
	}

	n := len(tok.TokenIDs)
	var chunks []TextChunk

	for first := 0; first < n; first += stride {
		last := first + w
		if last > n {
			last = n
		}

		chunks = append(chunks, TextChunk{
			TokenIDs: tok.TokenIDs[first:last],
			Start:    tok.Offsets[first].Start,
			End:      tok.Offsets[last-1].End,
		})

		if last == n {
			break
		}
	}

	return chunks, nil
}
