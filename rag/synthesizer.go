package rag

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/legalrag/llm"
)

const responsePrompt = `You are a specialized legal AI assistant. Answer the user's question based on the provided document context.

Key Instructions:
1. Provide a comprehensive answer based on the document context
2. If information is incomplete, clearly state what's missing
3. Cite specific documents and sections when possible
4. For legal matters, recommend consulting qualified legal counsel
5. Be precise about legal terms, dates, and requirements

User Question: %s

Document Context:
%s

Provide a clear, detailed answer based on the available information.`

// AnswerSynthesizer 基于最终证据集合成带引用的答案
type AnswerSynthesizer struct {
	provider llm.Provider
	logger   *zap.Logger
}

// NewAnswerSynthesizer 创建答案合成器
func NewAnswerSynthesizer(provider llm.Provider, logger *zap.Logger) *AnswerSynthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnswerSynthesizer{
		provider: provider,
		logger:   logger.With(zap.String("component", "answer_synthesizer")),
	}
}

// Synthesize 生成最终答案，返回答案文本、模型名与 Token 用量
func (s *AnswerSynthesizer) Synthesize(ctx context.Context, question, evidence string) (string, string, Usage, error) {
	prompt := fmt.Sprintf(responsePrompt, question, evidence)

	resp, err := s.provider.Completion(ctx, &llm.ChatRequest{
		Messages:    []llm.Message{llm.NewUserMessage(prompt)},
		Temperature: 0.3,
		MaxTokens:   1500,
	})
	if err != nil {
		return "", "", Usage{}, err
	}

	usage := Usage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}

	return resp.Content(), resp.Model, usage, nil
}
