// Package mocks 提供测试用的内存版存储实现。
package mocks

import (
	"context"
	"strings"
	"sync"

	"github.com/BaSui01/legalrag/rag"
)

// MemoryChunkStore 内存切块存储，过滤语义与数据库实现一致
type MemoryChunkStore struct {
	mu     sync.RWMutex
	chunks []rag.Chunk
	err    error
	calls  int
}

// NewMemoryChunkStore 创建内存切块存储
func NewMemoryChunkStore(chunks ...rag.Chunk) *MemoryChunkStore {
	return &MemoryChunkStore{chunks: chunks}
}

// Add 追加切块
func (s *MemoryChunkStore) Add(chunks ...rag.Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, chunks...)
}

// FailWith 使后续 GetChunks 调用返回指定错误
func (s *MemoryChunkStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// Calls 返回 GetChunks 的调用次数
func (s *MemoryChunkStore) Calls() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls
}

// GetChunks 按过滤条件返回切块
func (s *MemoryChunkStore) GetChunks(ctx context.Context, filter rag.ChunkFilter) ([]rag.Chunk, error) {
	s.mu.Lock()
	s.calls++
	err := s.err
	chunks := make([]rag.Chunk, len(s.chunks))
	copy(chunks, s.chunks)
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}

	var out []rag.Chunk
	for _, c := range chunks {
		if len(filter.DocumentIDs) > 0 && !contains(filter.DocumentIDs, c.DocumentID) {
			continue
		}
		if len(filter.ChunkTypes) > 0 && !contains(filter.ChunkTypes, c.ChunkType) {
			continue
		}
		if len(filter.TextAny) > 0 && !matchesAny(c.Text, filter.TextAny) {
			continue
		}
		out = append(out, c)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}

	return out, nil
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}

func matchesAny(text string, terms []string) bool {
	lower := strings.ToLower(text)
	for _, term := range terms {
		if strings.Contains(lower, strings.ToLower(term)) {
			return true
		}
	}
	return false
}

// RecordedExchange 记录的一次问答写入
type RecordedExchange struct {
	SessionID string
	Question  string
	Result    *rag.RAGResult
}

// RecordingHistoryStore 记录型历史存储，支持错误注入
type RecordingHistoryStore struct {
	mu        sync.Mutex
	exchanges []RecordedExchange
	err       error
}

// NewRecordingHistoryStore 创建记录型历史存储
func NewRecordingHistoryStore() *RecordingHistoryStore {
	return &RecordingHistoryStore{}
}

// FailWith 使后续写入返回指定错误
func (s *RecordingHistoryStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

// AppendExchange 记录一次问答
func (s *RecordingHistoryStore) AppendExchange(ctx context.Context, sessionID, question string, result *rag.RAGResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.exchanges = append(s.exchanges, RecordedExchange{
		SessionID: sessionID,
		Question:  question,
		Result:    result,
	})
	return nil
}

// Exchanges 返回记录的全部写入
func (s *RecordingHistoryStore) Exchanges() []RecordedExchange {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RecordedExchange, len(s.exchanges))
	copy(out, s.exchanges)
	return out
}
