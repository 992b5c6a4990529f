package factory

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/legalrag/config"
	"github.com/BaSui01/legalrag/llm"
	"github.com/BaSui01/legalrag/llm/providers/groq"
	"github.com/BaSui01/legalrag/llm/providers/openai"
)

// New 根据配置选择 LLM 后端。
// 支持 groq、openai、mock 三种 provider，速率配置大于零时自动套限流包装。
func New(cfg config.LLMConfig, logger *zap.Logger) (llm.Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var provider llm.Provider
	switch cfg.Provider {
	case "groq", "":
		provider = groq.NewGroqProvider(groq.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}, logger)
	case "openai":
		provider = openai.NewOpenAIProvider(openai.Config{
			APIKey:  cfg.APIKey,
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
			Timeout: cfg.Timeout,
		}, logger)
	case "mock":
		provider = llm.NewMockProvider()
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}

	if cfg.RequestsPerSecond > 0 {
		provider = llm.NewRateLimitedProvider(provider, cfg.RequestsPerSecond, cfg.Burst)
	}

	return provider, nil
}
