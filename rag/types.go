package rag

import (
	"context"
	"time"
)

// Intent 问题意图分类
type Intent string

const (
	IntentDefinition  Intent = "definition"  // 定义类: 某术语是什么
	IntentConditions  Intent = "conditions"  // 条件类: 什么情况下适用
	IntentPermission  Intent = "permission"  // 许可类: 是否被允许
	IntentObligation  Intent = "obligation"  // 义务类: 必须做什么
	IntentConsequence Intent = "consequence" // 后果类: 违反会发生什么
	IntentGeneral     Intent = "general"     // 无法归类的兜底意图
)

// TermCategory 检索词类别
type TermCategory string

const (
	CategoryConcept  TermCategory = "concept"
	CategoryAction   TermCategory = "action"
	CategoryEntity   TermCategory = "entity"
	CategoryModifier TermCategory = "modifier"
	CategoryGeneral  TermCategory = "general"
)

// SearchTerm 带权重与同义词的检索词，生命周期仅限一次查询分析
type SearchTerm struct {
	Term     string       `json:"term"`
	Weight   float64      `json:"weight"`
	Category TermCategory `json:"category"`
	Synonyms []string     `json:"synonyms,omitempty"`
}

// QueryAnalysis 查询分析结果
type QueryAnalysis struct {
	OriginalQuery string       `json:"original_query"`
	Intent        Intent       `json:"intent"`
	Focus         []string     `json:"focus,omitempty"`
	KeyTerms      []string     `json:"key_terms"`
	SearchTerms   []SearchTerm `json:"search_terms"`
	Phrases       []string     `json:"phrases,omitempty"`
}

// Chunk 文档切块，由外部摄取管道产出，对核心只读
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Filename   string    `json:"filename"`
	FileType   string    `json:"file_type,omitempty"`
	ChunkType  string    `json:"chunk_type"`
	Text       string    `json:"text"`
	StartChar  int       `json:"start_char"`
	EndChar    int       `json:"end_char"`
	CreatedAt  time.Time `json:"created_at"`
}

// Match 检索命中的切块及其评分
type Match struct {
	Chunk        Chunk    `json:"chunk"`
	Score        float64  `json:"score"`
	Similarity   float64  `json:"similarity_score"`
	MatchedTerms []string `json:"matched_terms,omitempty"`
}

// Assessment 信息充分性评估结果，每轮迭代产出一次
type Assessment struct {
	Sufficient        bool     `json:"sufficient"`
	Confidence        float64  `json:"confidence"`
	MissingInfo       string   `json:"missing_info,omitempty"`
	AdditionalQueries []string `json:"additional_queries,omitempty"`
}

// Source 答案引用的来源信息
type Source struct {
	DocumentName string  `json:"document_name"`
	DocumentID   string  `json:"document_id"`
	ChunkType    string  `json:"chunk_type"`
	Similarity   float64 `json:"similarity_score"`
	Preview      string  `json:"chunk_preview"`
}

// Usage Token 用量统计
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// RAGResult 一次问答的最终结果，调用方总能拿到结构完整的结果
type RAGResult struct {
	Content          string    `json:"content"`
	Sources          []Source  `json:"sources"`
	Query            string    `json:"query"`
	ModelUsed        string    `json:"model_used,omitempty"`
	Usage            Usage     `json:"usage"`
	IterationsUsed   int       `json:"iterations_used"`
	TotalChunksFound int       `json:"total_chunks_found"`
	Timestamp        time.Time `json:"timestamp"`
	Error            bool      `json:"error"`
}

// ChunkFilter 切块查询过滤条件
// TextAny 中的词条按 OR 语义做大小写不敏感的子串过滤
type ChunkFilter struct {
	DocumentIDs []string
	ChunkTypes  []string
	TextAny     []string
	Limit       int
}

// ChunkStore 切块存储的只读访问接口
type ChunkStore interface {
	GetChunks(ctx context.Context, filter ChunkFilter) ([]Chunk, error)
}

// HistoryStore 对话历史存储接口，写入失败由调用方记录日志后忽略
type HistoryStore interface {
	AppendExchange(ctx context.Context, sessionID, question string, result *RAGResult) error
}
