// Package hashing provides the default embedder/model.Model: a
// deterministic, dependency-free n-gram hashing-trick embedder. It is a
// real, well-known feature-projection technique (Weinberger et al.'s
// "hashing trick"), not a stand-in mock — it lets the pipeline build, run,
// and be tested without a GPU runtime or a downloaded model file. A
// production deployment registers a real ONNX/transformer provider under
// the same model.Model interface and swaps the name passed to model.New.
package hashing

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/FranksOps/foxeye/internal/embedder/model"
)

const ProviderName = "hashing"

func init() {
	model.Register(ProviderName, New)
}

type embedder struct {
	cfg model.Config
}

// New constructs the hashing-trick provider. Recognized opts: none
// currently — HiddenSize and MaxInputTokens come from cfg passed at the
// call site via WithConfig; New exists to satisfy model.Factory.
func New(opts map[string]string) (model.Model, error) {
	cfg := model.Config{
		MaxInputTokens: 512,
		HiddenSize:     1024,
		Pooling:        model.PoolingMean,
		Normalize:      true,
	}
	return &embedder{cfg: cfg}, nil
}

// WithConfig returns a new provider instance configured as requested. The
// registry factory signature doesn't carry structured config, so callers
// that need non-default dimensions construct the provider directly.
func WithConfig(cfg model.Config) model.Model {
	if cfg.HiddenSize <= 0 {
		cfg.HiddenSize = 1024
	}
	if cfg.MaxInputTokens <= 0 {
		cfg.MaxInputTokens = 512
	}
	return &embedder{cfg: cfg}
}

func (e *embedder) Config() model.Config { return e.cfg }

func (e *embedder) Close() error { return nil }

// Tokenize splits text on whitespace into words (punctuation stays part of
// the word it touches),
// treating each word as one "token" with its hashed id and its original
// character span as the offset — this is the simplest tokenization that
// still gives Tokenization.Offsets the per-token character span contract
// the chunker needs.
func (e *embedder) Tokenize(ctx context.Context, text string, addSpecialTokens bool) (model.Tokenization, error) {
	var tok model.Tokenization

	runes := []rune(text)
	i := 0
	for i < len(runes) {
		for i < len(runes) && unicode.IsSpace(runes[i]) {
			i++
		}
		if i >= len(runes) {
			break
		}
		start := i
		for i < len(runes) && !unicode.IsSpace(runes[i]) {
			i++
		}
		word := string(runes[start:i])

		tok.TokenIDs = append(tok.TokenIDs, hashToken(word))
		tok.Offsets = append(tok.Offsets, model.Offset{Start: start, End: i})
	}

	return tok, nil
}

// Embed hashes each token id into HiddenSize buckets with a signed
// contribution (the standard hashing-trick construction), sums across
// tokens (mean-pool) or takes the first token alone (CLS), then optionally
// L2-normalizes, per spec.md §4.3.
func (e *embedder) Embed(ctx context.Context, tokenIDs []int32) ([]float32, error) {
	vec := make([]float32, e.cfg.HiddenSize)

	switch e.cfg.Pooling {
	case model.PoolingCLS:
		if len(tokenIDs) > 0 {
			accumulate(vec, tokenIDs[0])
		}
	default:
		for _, id := range tokenIDs {
			accumulate(vec, id)
		}
		if len(tokenIDs) > 0 {
			for i := range vec {
				vec[i] /= float32(len(tokenIDs))
			}
		}
	}

	if e.cfg.Normalize {
		normalize(vec)
	}

	return vec, nil
}

func accumulate(vec []float32, tokenID int32) {
	n := len(vec)
	if n == 0 {
		return
	}
	bucket := int(uint32(tokenID)) % n
	sign := float32(1)
	if (tokenID/int32(n))%2 == 1 {
		sign = -1
	}
	vec[bucket] += sign
}

func normalize(vec []float32) {
	var sumSq float64
	for _, v := range vec {
		sumSq += float64(v) * float64(v)
	}
	if sumSq == 0 {
		return
	}
	norm := float32(math.Sqrt(sumSq))
	for i := range vec {
		vec[i] /= norm
	}
}

func hashToken(word string) int32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(strings.ToLower(word)))
	return int32(h.Sum32())
}
