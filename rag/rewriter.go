package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/legalrag/llm"
)

const queryRewriterPrompt = `You are an expert at converting user questions into effective search queries for legal documents.

Your task: Convert the user's question into 1-3 specific search queries that will help find relevant information.

Guidelines:
1. Extract key concepts, entities, and legal terms
2. Consider synonyms and related terms
3. Think about what document sections would contain this information
4. Generate queries of different specificity levels

User Question: %s

Respond with a JSON array of search queries, ordered by priority:
` + "```json" + `
[
  "specific search query 1",
  "broader search query 2",
  "alternative angle query 3"
]
` + "```"

// RewriteCache 查询改写结果缓存。
// 缓存层失败对改写流程透明，实现方自行记录日志。
type RewriteCache interface {
	GetQueries(ctx context.Context, question string) ([]string, bool)
	PutQueries(ctx context.Context, question string, queries []string)
}

// QueryRewriter 将用户问题改写为检索查询。
// 模型输出不可解析时回退为仅含原问题的单元素列表，循环永不因缺少查询而停滞。
type QueryRewriter struct {
	provider llm.Provider
	cache    RewriteCache
	logger   *zap.Logger
}

// NewQueryRewriter 创建查询改写器
func NewQueryRewriter(provider llm.Provider, logger *zap.Logger) *QueryRewriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryRewriter{
		provider: provider,
		logger:   logger.With(zap.String("component", "query_rewriter")),
	}
}

// WithCache 启用改写结果缓存
func (r *QueryRewriter) WithCache(cache RewriteCache) *QueryRewriter {
	r.cache = cache
	return r
}

// Rewrite 改写问题，返回按优先级排列的检索查询
func (r *QueryRewriter) Rewrite(ctx context.Context, question string) []string {
	if r.cache != nil {
		if queries, ok := r.cache.GetQueries(ctx, question); ok && len(queries) > 0 {
			r.logger.Debug("rewrite cache hit", zap.String("question", question))
			return queries
		}
	}

	prompt := fmt.Sprintf(queryRewriterPrompt, question)

	resp, err := r.provider.Completion(ctx, &llm.ChatRequest{
		Messages:    []llm.Message{llm.NewUserMessage(prompt)},
		Temperature: 0.3,
		MaxTokens:   500,
	})
	if err != nil {
		r.logger.Error("query rewrite failed", zap.Error(err))
		return []string{question}
	}

	queries, err := parseQueryList(resp.Content())
	if err != nil || len(queries) == 0 {
		r.logger.Warn("query rewrite returned unparseable output, falling back to original question",
			zap.Error(err))
		return []string{question}
	}

	if r.cache != nil {
		r.cache.PutQueries(ctx, question, queries)
	}

	return queries
}

func parseQueryList(content string) ([]string, error) {
	raw := stripJSONFence(content)

	var items []any
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, err
	}

	var queries []string
	for _, item := range items {
		q := strings.TrimSpace(fmt.Sprintf("%v", item))
		if q != "" {
			queries = append(queries, q)
		}
	}
	return queries, nil
}

// stripJSONFence 剥离包裹 JSON 的 Markdown 代码围栏
func stripJSONFence(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
	} else {
		return content
	}

	if idx := strings.Index(content, "```"); idx >= 0 {
		content = content[:idx]
	}
	return strings.TrimSpace(content)
}
