package rag

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/legalrag/llm"
)

// GeneratorConfig 迭代式 RAG 生成器配置
type GeneratorConfig struct {
	// 最大检索迭代轮数，硬上限，与模型是否配合无关
	MaxIterations int `json:"max_iterations"`
	// 每轮检索的切块预算
	ChunksPerIteration int `json:"chunks_per_iteration"`
	// 提前终止所需的置信度下限
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	// 上下文 Token 预算
	ContextTokenBudget int `json:"context_token_budget"`
}

// DefaultGeneratorConfig 返回默认生成器配置
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		MaxIterations:       3,
		ChunksPerIteration:  5,
		ConfidenceThreshold: 0.7,
		ContextTokenBudget:  6000,
	}
}

// GenerateOptions 单次问答的可选参数
type GenerateOptions struct {
	// 会话标识，非空时问答记录写入历史存储
	SessionID string
	// 限定检索范围的文档标识
	DocumentIDs []string
}

// Generator 迭代式 RAG 生成器。
//
// 状态机: Rewriting → Retrieving → Assessing → (Retrieving | Synthesizing) → Done。
// 每轮将问题改写产生的查询并发分发检索，跨轮按切块标识去重累积证据，
// 由充分性评估决定继续检索或进入合成。调用方总能拿到结构完整的 RAGResult，
// 任何内部异常都被转换为带 error 标记的降级结果。
type Generator struct {
	cfg         GeneratorConfig
	rewriter    *QueryRewriter
	retriever   *LexicalRetriever
	assessor    *SufficiencyAssessor
	synthesizer *AnswerSynthesizer
	ctxBuilder  *ContextBuilder
	history     HistoryStore
	logger      *zap.Logger
}

// NewGenerator 创建迭代式 RAG 生成器。
// history 可以为 nil，此时不持久化对话记录。
func NewGenerator(
	cfg GeneratorConfig,
	provider llm.Provider,
	store ChunkStore,
	history HistoryStore,
	logger *zap.Logger,
) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 3
	}
	if cfg.ChunksPerIteration <= 0 {
		cfg.ChunksPerIteration = 5
	}
	if cfg.ConfidenceThreshold <= 0 {
		cfg.ConfidenceThreshold = 0.7
	}

	logger = logger.With(zap.String("component", "rag_generator"))

	return &Generator{
		cfg:         cfg,
		rewriter:    NewQueryRewriter(provider, logger),
		retriever:   NewLexicalRetriever(store, logger),
		assessor:    NewSufficiencyAssessor(provider, logger),
		synthesizer: NewAnswerSynthesizer(provider, logger),
		ctxBuilder:  NewContextBuilder(cfg.ContextTokenBudget),
		history:     history,
		logger:      logger,
	}
}

// WithRewriteCache 为查询改写启用缓存
func (g *Generator) WithRewriteCache(cache RewriteCache) *Generator {
	g.rewriter.WithCache(cache)
	return g
}

// GenerateResponse 执行完整的迭代式 RAG 流程并返回最终结果
func (g *Generator) GenerateResponse(ctx context.Context, question string, opts GenerateOptions) (result *RAGResult) {
	runID := uuid.NewString()
	logger := g.logger.With(zap.String("run_id", runID))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("rag run panicked", zap.Any("panic", r))
			result = errorResult(question, fmt.Sprintf("%v", r))
		}
	}()

	logger.Info("starting iterative rag run", zap.String("question", truncate(question, 100)))

	// 阶段一: 查询改写，仅执行一次
	searchQueries := g.rewriter.Rewrite(ctx, question)
	logger.Info("generated search queries", zap.Int("count", len(searchQueries)))

	// 阶段二: 迭代检索与评估
	var evidence []Match
	seen := make(map[string]struct{})
	iteration := 0

	for iteration < g.cfg.MaxIterations {
		iteration++
		logger.Info("retrieval iteration",
			zap.Int("iteration", iteration),
			zap.Int("queries", len(searchQueries)))

		newMatches := g.retrieveChunks(ctx, searchQueries, opts.DocumentIDs, seen)
		evidence = append(evidence, newMatches...)

		assessment := g.assessor.Assess(ctx, question, g.ctxBuilder.Build(evidence), len(evidence))
		logger.Info("sufficiency assessment",
			zap.Bool("sufficient", assessment.Sufficient),
			zap.Float64("confidence", assessment.Confidence),
			zap.Int("additional_queries", len(assessment.AdditionalQueries)))

		if (assessment.Sufficient && assessment.Confidence > g.cfg.ConfidenceThreshold) ||
			len(assessment.AdditionalQueries) == 0 {
			break
		}

		searchQueries = assessment.AdditionalQueries
	}

	// 阶段三: 合成最终答案
	finalContext := g.ctxBuilder.Build(evidence)
	answer, model, usage, err := g.synthesizer.Synthesize(ctx, question, finalContext)
	if err != nil {
		logger.Error("answer synthesis failed", zap.Error(err))
		return errorResult(question, err.Error())
	}

	result = &RAGResult{
		Content:          answer,
		Sources:          buildSources(evidence),
		Query:            question,
		ModelUsed:        model,
		Usage:            usage,
		IterationsUsed:   iteration,
		TotalChunksFound: len(evidence),
		Timestamp:        time.Now().UTC(),
		Error:            false,
	}

	// 历史写入失败只记日志，不影响返回结果
	if opts.SessionID != "" && g.history != nil {
		if err := g.history.AppendExchange(ctx, opts.SessionID, question, result); err != nil {
			logger.Error("failed to persist conversation history",
				zap.String("session_id", opts.SessionID),
				zap.Error(err))
		}
	}

	return result
}

// retrieveChunks 并发执行多路查询并合并去重。
// 单路检索失败仅贡献零条结果，不中断整轮；去重集合跨轮累积。
func (g *Generator) retrieveChunks(
	ctx context.Context,
	queries []string,
	documentIDs []string,
	seen map[string]struct{},
) []Match {
	if len(queries) == 0 {
		return nil
	}

	perQuery := g.cfg.ChunksPerIteration / len(queries)
	if perQuery < 1 {
		perQuery = 1
	}

	results := make([][]Match, len(queries))
	group, groupCtx := errgroup.WithContext(ctx)

	for i, query := range queries {
		group.Go(func() error {
			results[i] = g.retriever.RetrieveRelevantChunks(groupCtx, query, perQuery, documentIDs, nil)
			return nil
		})
	}
	_ = group.Wait()

	var merged []Match
	for _, matches := range results {
		for _, m := range matches {
			if _, dup := seen[m.Chunk.ID]; dup {
				continue
			}
			seen[m.Chunk.ID] = struct{}{}
			merged = append(merged, m)
		}
	}

	// 合并步骤是唯一的确定性排序点: 评分降序，同分保持发现顺序
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Score > merged[j].Score
	})

	if len(merged) > g.cfg.ChunksPerIteration {
		for _, m := range merged[g.cfg.ChunksPerIteration:] {
			delete(seen, m.Chunk.ID)
		}
		merged = merged[:g.cfg.ChunksPerIteration]
	}

	return merged
}

func buildSources(evidence []Match) []Source {
	sources := make([]Source, 0, len(evidence))
	for _, m := range evidence {
		sources = append(sources, Source{
			DocumentName: orDefault(m.Chunk.Filename, "Unknown"),
			DocumentID:   m.Chunk.DocumentID,
			ChunkType:    orDefault(m.Chunk.ChunkType, "general"),
			Similarity:   m.Similarity,
			Preview:      preview(m.Chunk.Text, 200),
		})
	}
	return sources
}

func errorResult(question, message string) *RAGResult {
	return &RAGResult{
		Content:   "I apologize, but I encountered an error while processing your query: " + message,
		Sources:   []Source{},
		Query:     question,
		Timestamp: time.Now().UTC(),
		Error:     true,
	}
}

// preview 截取前 limit 个字符，按 rune 边界切分避免产生非法 UTF-8
func preview(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit]) + "..."
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
