package store

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/legalrag/rag"
)

// ChunkStore 基于 GORM 的切块存储，对检索层只读
type ChunkStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewChunkStore 创建切块存储
func NewChunkStore(db *gorm.DB, logger *zap.Logger) *ChunkStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChunkStore{
		db:     db,
		logger: logger.With(zap.String("component", "chunk_store")),
	}
}

// GetChunks 按过滤条件查询切块，文本条件为大小写不敏感的 OR 子串匹配
func (s *ChunkStore) GetChunks(ctx context.Context, filter rag.ChunkFilter) ([]rag.Chunk, error) {
	q := s.db.WithContext(ctx).
		Model(&Chunk{}).
		Select("chunks.id, chunks.document_id, chunks.chunk_type, chunks.text, chunks.start_char, chunks.end_char, chunks.created_at, documents.filename, documents.file_type").
		Joins("JOIN documents ON documents.id = chunks.document_id")

	if len(filter.DocumentIDs) > 0 {
		q = q.Where("chunks.document_id IN ?", filter.DocumentIDs)
	}
	if len(filter.ChunkTypes) > 0 {
		q = q.Where("chunks.chunk_type IN ?", filter.ChunkTypes)
	}
	if len(filter.TextAny) > 0 {
		var conds []string
		var args []any
		for _, term := range filter.TextAny {
			conds = append(conds, "LOWER(chunks.text) LIKE ?")
			args = append(args, "%"+strings.ToLower(term)+"%")
		}
		q = q.Where(strings.Join(conds, " OR "), args...)
	}

	q = q.Order("chunks.created_at DESC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var rows []struct {
		Chunk
		Filename string
		FileType string
	}
	if err := q.Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("chunk query failed: %w", err)
	}

	chunks := make([]rag.Chunk, 0, len(rows))
	for _, row := range rows {
		chunks = append(chunks, rag.Chunk{
			ID:         row.ID,
			DocumentID: row.DocumentID,
			Filename:   row.Filename,
			FileType:   row.FileType,
			ChunkType:  row.ChunkType,
			Text:       row.Text,
			StartChar:  row.StartChar,
			EndChar:    row.EndChar,
			CreatedAt:  row.CreatedAt,
		})
	}

	return chunks, nil
}

// ChunksByDocument 返回指定文档的全部切块，按起始偏移升序
func (s *ChunkStore) ChunksByDocument(ctx context.Context, documentID string) ([]rag.Chunk, error) {
	var rows []struct {
		Chunk
		Filename string
		FileType string
	}

	err := s.db.WithContext(ctx).
		Model(&Chunk{}).
		Select("chunks.id, chunks.document_id, chunks.chunk_type, chunks.text, chunks.start_char, chunks.end_char, chunks.created_at, documents.filename, documents.file_type").
		Joins("JOIN documents ON documents.id = chunks.document_id").
		Where("chunks.document_id = ?", documentID).
		Order("chunks.start_char ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("document chunk query failed: %w", err)
	}

	chunks := make([]rag.Chunk, 0, len(rows))
	for _, row := range rows {
		chunks = append(chunks, rag.Chunk{
			ID:         row.ID,
			DocumentID: row.DocumentID,
			Filename:   row.Filename,
			FileType:   row.FileType,
			ChunkType:  row.ChunkType,
			Text:       row.Text,
			StartChar:  row.StartChar,
			EndChar:    row.EndChar,
			CreatedAt:  row.CreatedAt,
		})
	}

	return chunks, nil
}
