// Package model defines the external tokenizer/transformer contract that
// spec.md §1 scopes out: "the tokenizer/transformer model download and
// inference (consumed only via the embed(text) -> vector operation)". It is
// a small provider registry, mirroring the provider-registry shape used
// elsewhere in the retrieved example pack for swappable model backends, so
// a real ONNX/transformer provider can register against the same interface
// a production deployment needs without this package knowing about it.
package model

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrProviderNotFound is returned by New when no provider was registered
// under the requested name.
var ErrProviderNotFound = errors.New("model: provider not found")

// Pooling selects how a [tokens, hidden] tensor reduces to [hidden].
type Pooling int

const (
	// PoolingMean averages the hidden state across all token positions.
	PoolingMean Pooling = iota
	// PoolingCLS takes only the first token's hidden state.
	PoolingCLS
)

// Config configures a Model instance at construction time.
type Config struct {
	// MaxInputTokens is the model's maximum sequence length (W in spec.md §4.3).
	MaxInputTokens int
	// HiddenSize is the dimensionality of the pooled embedding vector.
	HiddenSize int
	// Pooling selects mean-pool or CLS-only reduction.
	Pooling Pooling
	// Normalize, if true, L2-normalizes the pooled vector.
	Normalize bool
}

// Offset is a token's [start, end) character span in the original text, as
// produced by the tokenizer's offset-mapping table.
type Offset struct {
	Start int
	End   int
}

// Tokenization is the result of tokenizing one string: token ids and their
// corresponding character offsets, in order.
type Tokenization struct {
	TokenIDs []int32
	Offsets  []Offset
}

// Model is the external collaborator contract: tokenize text, then embed a
// slice of token ids into a single pooled vector of length HiddenSize.
type Model interface {
	Config() Config
	Tokenize(ctx context.Context, text string, addSpecialTokens bool) (Tokenization, error)
	Embed(ctx context.Context, tokenIDs []int32) ([]float32, error)
	Close() error
}

// Factory constructs a Model from free-form provider options.
type Factory func(opts map[string]string) (Model, error)

var (
	mu        sync.RWMutex
	providers = map[string]Factory{}
)

// Register makes a model provider available under name. Typically called
// from an init() function in the provider's package.
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	providers[name] = factory
}

// Providers lists the names of all registered providers.
func Providers() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	return names
}

// New constructs a Model from the provider registered under name.
func New(name string, opts map[string]string) (Model, error) {
	mu.RLock()
	factory, ok := providers[name]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("model: %w: %q", ErrProviderNotFound, name)
	}
	m, err := factory(opts)
	if err != nil {
		return nil, fmt.Errorf("context: %w", err)
	}
	return m, nil
}
