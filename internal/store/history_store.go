package store

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/legalrag/rag"
)

// HistoryStore 基于 GORM 的对话历史存储
type HistoryStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewHistoryStore 创建历史存储
func NewHistoryStore(db *gorm.DB, logger *zap.Logger) *HistoryStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryStore{
		db:     db,
		logger: logger.With(zap.String("component", "history_store")),
	}
}

// exchangeMetadata 随助手消息一起落库的 RAG 元数据
type exchangeMetadata struct {
	Sources        []rag.Source `json:"sources"`
	IterationsUsed int          `json:"iterations_used"`
	TotalChunks    int          `json:"total_chunks"`
	ModelUsed      string       `json:"model_used,omitempty"`
}

// AppendExchange 在单个事务中写入一问一答两条消息
func (s *HistoryStore) AppendExchange(ctx context.Context, sessionID, question string, result *rag.RAGResult) error {
	metadata, err := json.Marshal(exchangeMetadata{
		Sources:        result.Sources,
		IterationsUsed: result.IterationsUsed,
		TotalChunks:    result.TotalChunksFound,
		ModelUsed:      result.ModelUsed,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal exchange metadata: %w", err)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		userMsg := ChatMessage{
			SessionID: sessionID,
			Role:      "user",
			Content:   question,
		}
		if err := tx.Create(&userMsg).Error; err != nil {
			return fmt.Errorf("failed to save user message: %w", err)
		}

		assistantMsg := ChatMessage{
			SessionID: sessionID,
			Role:      "assistant",
			Content:   result.Content,
			Metadata:  string(metadata),
		}
		if err := tx.Create(&assistantMsg).Error; err != nil {
			return fmt.Errorf("failed to save assistant message: %w", err)
		}

		return nil
	})
}

// SessionMessages 返回会话内全部消息，按时间升序
func (s *HistoryStore) SessionMessages(ctx context.Context, sessionID string) ([]ChatMessage, error) {
	var messages []ChatMessage
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("session message query failed: %w", err)
	}
	return messages, nil
}

// EnsureSession 会话不存在时创建
func (s *HistoryStore) EnsureSession(ctx context.Context, sessionID, title string) error {
	session := ChatSession{ID: sessionID, Title: title}
	err := s.db.WithContext(ctx).
		Where("id = ?", sessionID).
		FirstOrCreate(&session).Error
	if err != nil {
		return fmt.Errorf("failed to ensure session: %w", err)
	}
	return nil
}
