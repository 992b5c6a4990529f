package rag

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// LexicalRetriever 基于词法匹配的切块检索器。
// 对切块存储只读，存储错误被吞掉并返回空结果，不中断上层检索循环。
type LexicalRetriever struct {
	store    ChunkStore
	analyzer *QueryAnalyzer
	logger   *zap.Logger
}

// NewLexicalRetriever 创建词法检索器
func NewLexicalRetriever(store ChunkStore, logger *zap.Logger) *LexicalRetriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LexicalRetriever{
		store:    store,
		analyzer: NewQueryAnalyzer(),
		logger:   logger.With(zap.String("component", "lexical_retriever")),
	}
}

// RetrieveRelevantChunks 检索与查询相关的切块，按评分降序返回至多 limit 条。
// 仅保留总分超过 MinChunkScore 的切块，同分时较新的切块在前。
func (r *LexicalRetriever) RetrieveRelevantChunks(
	ctx context.Context,
	query string,
	limit int,
	documentIDs []string,
	chunkTypes []string,
) []Match {
	if limit <= 0 {
		limit = 5
	}

	analysis := r.analyzer.Analyze(query)
	patterns := BuildSearchPatterns(analysis)

	textAny := analysis.KeyTerms
	if len(textAny) == 0 {
		textAny = []string{query}
	}

	chunks, err := r.store.GetChunks(ctx, ChunkFilter{
		DocumentIDs: documentIDs,
		ChunkTypes:  chunkTypes,
		TextAny:     textAny,
	})
	if err != nil {
		r.logger.Error("chunk store query failed",
			zap.String("query", query),
			zap.Error(err))
		return nil
	}

	matches := make([]Match, 0, len(chunks))
	for _, chunk := range chunks {
		score, matchedTerms := ScoreChunk(chunk.Text, patterns)
		if score <= MinChunkScore {
			continue
		}
		matches = append(matches, Match{
			Chunk:        chunk,
			Score:        score,
			Similarity:   lexicalSimilarity(query, chunk.Text),
			MatchedTerms: matchedTerms,
		})
	}

	// 稳定排序: 评分降序，同分按创建时间较新者在前
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Chunk.CreatedAt.After(matches[j].Chunk.CreatedAt)
	})

	if len(matches) > limit {
		matches = matches[:limit]
	}

	r.logger.Debug("retrieved relevant chunks",
		zap.String("query", query),
		zap.Int("candidates", len(chunks)),
		zap.Int("matches", len(matches)))

	return matches
}

// lexicalSimilarity 无向量存储时的词法相似度。
// 全查询子串命中 0.9，前三词宽松命中 0.7，其余通过过滤的行给基线 0.5。
func lexicalSimilarity(query, text string) float64 {
	queryLower := strings.ToLower(strings.TrimSpace(query))
	textLower := strings.ToLower(text)

	if queryLower != "" && strings.Contains(textLower, queryLower) {
		return 0.9
	}

	words := strings.Fields(queryLower)
	if len(words) > 3 {
		words = words[:3]
	}
	loose := strings.Join(words, " ")
	if loose != "" && strings.Contains(textLower, loose) {
		return 0.7
	}

	return 0.5
}
