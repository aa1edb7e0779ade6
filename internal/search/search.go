// Package search implements spec.md §4.4: embed the query with the same
// model used at index time, rank chunks by cosine similarity reduced to
// top-1-per-document, and extract a densest-window extractive snippet for
// each hit.
package search

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/FranksOps/foxeye/internal/embedder/model"
	"github.com/FranksOps/foxeye/internal/store"
)

// MinWindow is the minimum snippet window, in words, below which the raw
// chunk slice is returned unsummarised, per spec.md §4.4.
const MinWindow = 100

// cleanupPattern mirrors the parser's text cleanup regex (spec.md §4.2),
// reused here before snippet tokenization.
var cleanupPattern = regexp.MustCompile(`\[.*?\]|[^\x00-\x7F]+| {4}|[\t\n\r]`)

// stopwords is a conventional English stopword set excluded from keyword
// hits during snippet selection.
var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"for": {}, "from": {}, "has": {}, "he": {}, "in": {}, "is": {}, "it": {}, "its": {},
	"of": {}, "on": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {}, "will": {},
	"with": {}, "this": {}, "but": {}, "not": {}, "or": {}, "which": {}, "their": {}, "they": {},
}

// Input is the decoded POST /search request body.
type Input struct {
	Query  string `json:"query"`
	Limit  int    `json:"limit"`
	Offset int    `json:"offset"`
}

// Result is one hit returned by POST /search.
type Result struct {
	URL     string  `json:"url"`
	Score   float64 `json:"score"`
	Summary string  `json:"summary"`
	Title   string  `json:"title"`
}

// Searcher embeds queries and ranks chunks against a document store. The
// model is shared across concurrent HTTP requests and is mutex-guarded
// because its tokenizer state is mutated during tokenization, per spec.md
// §4.4.
type Searcher struct {
	mu    sync.Mutex
	store store.Store
	model model.Model
}

// New constructs a Searcher.
func New(s store.Store, m model.Model) *Searcher {
	return &Searcher{store: s, model: m}
}

// embedQuery tokenizes and embeds query with the same model used at index
// time, truncated to the model's max input tokens.
func (s *Searcher) embedQuery(ctx context.Context, query string) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, err := s.model.Tokenize(ctx, query, true)
	if err != nil {
		return nil, fmt.Errorf("context: %w", err)
	}

	ids := tok.TokenIDs
	if max := s.model.Config().MaxInputTokens; max > 0 && len(ids) > max {
		ids = ids[:max]
	}

	vec, err := s.model.Embed(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("context: %w", err)
	}
	return vec, nil
}

// Search implements the full query path: embed, retrieve, and summarise
// each hit.
func (s *Searcher) Search(ctx context.Context, input Input) ([]Result, error) {
	embedding, err := s.embedQuery(ctx, input.Query)
	if err != nil {
		return nil, err
	}

	ranked, err := s.store.RankChunks(ctx, embedding, input.Limit, input.Offset)
	if err != nil {
		return nil, fmt.Errorf("context: %w", err)
	}

	results := make([]Result, 0, len(ranked))
	for _, c := range ranked {
		results = append(results, Result{
			URL:     c.URL,
			Score:   c.CosineSimilarity,
			Title:   c.Title,
			Summary: snippetFor(c, input.Query),
		})
	}
	return results, nil
}

// snippetFor extracts the bounded chunk text and runs it through summarise,
// applying spec.md §4.4's bounds guards: out-of-range offsets yield an
// empty summary rather than a crash, and a chunk_start > chunk_end is
// clamped the way the original implementation does (reinterpreted relative
// to the end of the content) before the final bounds check.
func snippetFor(c store.RankedChunk, query string) string {
	content := []rune(c.Content)

	start := int(c.ChunkStart)
	end := int(c.ChunkEnd)
	if start > end {
		end = len(content) - start
	}
	if start < 0 || end < start || end > len(content) || start > len(content) {
		return ""
	}

	raw := string(content[start:end])
	q := query + " " + c.Title
	if summary, ok := summarise(raw, q, MinWindow); ok {
		return summary
	}
	return raw
}

// summarise implements spec.md §4.4's snippet-selection algorithm: find the
// densest run of non-stopword query-term hits and return that word window.
func summarise(text, query string, minWindow int) (string, bool) {
	cleaned := cleanupPattern.ReplaceAllString(text, "")
	cleaned = strings.ToLower(cleaned)
	query = strings.ToLower(query)

	words := strings.Fields(cleaned)
	if len(words) < minWindow+1 {
		return "", false
	}

	type hit struct {
		gap   int
		index int
	}
	var hits []hit
	last := 0
	for i, w := range words {
		if _, stop := stopwords[w]; stop {
			continue
		}
		if !strings.Contains(query, w) {
			continue
		}
		if last == 0 {
			hits = append(hits, hit{gap: 0, index: i})
			last = i
			continue
		}
		hits = append(hits, hit{gap: i - last, index: i})
		last = i
	}

	if len(hits) == 0 {
		return "", false
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].gap < hits[j].gap })

	start := hits[0].index
	end := 0
	for _, h := range hits {
		if h.index-start > minWindow {
			end = h.index
		}
	}

	if start < end && end < len(words) {
		return strings.Join(words[start:end], " "), true
	}
	return "", false
}
