// Package legalrag provides a top-level convenience entry point for building
// an iterative retrieval generator with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/legalrag"
//
//	g, err := legalrag.New(store, legalrag.WithGroq("gsk-..."))
//	g, err := legalrag.New(store, legalrag.WithOpenAI("sk-..."))
//	g, err := legalrag.New(store, legalrag.WithProvider(myProvider))
//
// The full server wiring lives under cmd/legalrag; use this package when
// embedding the generator in another program.
package legalrag

import (
	"errors"

	"go.uber.org/zap"

	"github.com/BaSui01/legalrag/llm"
	"github.com/BaSui01/legalrag/llm/providers/groq"
	"github.com/BaSui01/legalrag/llm/providers/openai"
	"github.com/BaSui01/legalrag/rag"
)

// Option configures the generator created by [New].
type Option func(*options)

type options struct {
	provider llm.Provider
	history  rag.HistoryStore
	cfg      rag.GeneratorConfig
	logger   *zap.Logger
}

// WithProvider sets a pre-built LLM provider.
func WithProvider(p llm.Provider) Option {
	return func(o *options) { o.provider = p }
}

// WithGroq creates a Groq provider with the given API key.
func WithGroq(apiKey string) Option {
	return func(o *options) {
		o.provider = groq.NewGroqProvider(groq.Config{APIKey: apiKey}, o.logger)
	}
}

// WithOpenAI creates an OpenAI provider with the given API key.
func WithOpenAI(apiKey string) Option {
	return func(o *options) {
		o.provider = openai.NewOpenAIProvider(openai.Config{APIKey: apiKey}, o.logger)
	}
}

// WithHistory enables conversation persistence.
func WithHistory(h rag.HistoryStore) Option {
	return func(o *options) { o.history = h }
}

// WithConfig overrides the default generator configuration.
func WithConfig(cfg rag.GeneratorConfig) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithLogger sets a custom zap logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// New creates a [rag.Generator] over the given chunk store.
// At minimum, a provider must be specified via [WithGroq], [WithOpenAI],
// or [WithProvider].
func New(store rag.ChunkStore, opts ...Option) (*rag.Generator, error) {
	o := &options{cfg: rag.DefaultGeneratorConfig()}
	for _, opt := range opts {
		opt(o)
	}

	if store == nil {
		return nil, errors.New("legalrag: chunk store is required")
	}
	if o.provider == nil {
		return nil, errors.New("legalrag: llm provider is required")
	}

	return rag.NewGenerator(o.cfg, o.provider, store, o.history, o.logger), nil
}
