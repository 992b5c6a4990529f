package rag

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/BaSui01/legalrag/llm"
)

const assessmentPrompt = `You are evaluating whether retrieved document chunks contain sufficient information to answer a user's question.

User Question: %s

Retrieved Information:
%s

Evaluate:
1. Is there enough information to provide a complete answer?
2. What specific information is missing (if any)?
3. What additional search terms might find missing information?

Respond with JSON:
` + "```json" + `
{
  "sufficient": true/false,
  "confidence": 0.0-1.0,
  "missing_info": "description of missing information",
  "additional_queries": ["query1", "query2"]
}
` + "```"

// SufficiencyAssessor 评估已积累证据是否足以回答问题。
// 模型输出不可解析时采用保守回退: 有证据则 sufficient=true/confidence=0.5，
// 无证据则 false/0.0，且不提出追加查询。
type SufficiencyAssessor struct {
	provider llm.Provider
	logger   *zap.Logger
}

// NewSufficiencyAssessor 创建充分性评估器
func NewSufficiencyAssessor(provider llm.Provider, logger *zap.Logger) *SufficiencyAssessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SufficiencyAssessor{
		provider: provider,
		logger:   logger.With(zap.String("component", "sufficiency_assessor")),
	}
}

// Assess 评估上下文对问题的充分性
func (a *SufficiencyAssessor) Assess(ctx context.Context, question, evidence string, evidenceCount int) Assessment {
	prompt := fmt.Sprintf(assessmentPrompt, question, evidence)

	resp, err := a.provider.Completion(ctx, &llm.ChatRequest{
		Messages:    []llm.Message{llm.NewUserMessage(prompt)},
		Temperature: 0.2,
		MaxTokens:   300,
	})
	if err != nil {
		a.logger.Error("sufficiency assessment failed", zap.Error(err))
		return fallbackAssessment(evidenceCount)
	}

	assessment, err := parseAssessment(resp.Content())
	if err != nil {
		a.logger.Warn("assessment returned unparseable output, using conservative fallback",
			zap.Error(err))
		return fallbackAssessment(evidenceCount)
	}

	return assessment
}

func parseAssessment(content string) (Assessment, error) {
	raw := stripJSONFence(content)

	var payload struct {
		Sufficient        bool     `json:"sufficient"`
		Confidence        float64  `json:"confidence"`
		MissingInfo       string   `json:"missing_info"`
		AdditionalQueries []string `json:"additional_queries"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return Assessment{}, err
	}

	return Assessment{
		Sufficient:        payload.Sufficient,
		Confidence:        payload.Confidence,
		MissingInfo:       payload.MissingInfo,
		AdditionalQueries: payload.AdditionalQueries,
	}, nil
}

func fallbackAssessment(evidenceCount int) Assessment {
	confidence := 0.0
	if evidenceCount > 0 {
		confidence = 0.5
	}
	return Assessment{
		Sufficient:  evidenceCount > 0,
		Confidence:  confidence,
		MissingInfo: "Could not assess information sufficiency",
	}
}
