package rag

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// emptyContextNotice 证据集为空时的上下文占位文本
const emptyContextNotice = "No relevant documents found in the corpus."

// TokenCounter 基于 tiktoken 的 Token 计数器。
// 编码器加载失败时退化为 len/4 估算。
type TokenCounter struct {
	once sync.Once
	enc  *tiktoken.Tiktoken
}

// NewTokenCounter 创建 Token 计数器
func NewTokenCounter() *TokenCounter {
	return &TokenCounter{}
}

// Count 统计文本的 Token 数
func (c *TokenCounter) Count(text string) int {
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err == nil {
			c.enc = enc
		}
	})

	if c.enc != nil {
		return len(c.enc.Encode(text, nil, nil))
	}
	// 粗略估算: 平均 4 字符一个 Token
	return len(text) / 4
}

// ContextBuilder 将证据集拼装为提示词上下文
type ContextBuilder struct {
	counter     *TokenCounter
	tokenBudget int
}

// NewContextBuilder 创建上下文构建器，budget <= 0 表示不限制
func NewContextBuilder(tokenBudget int) *ContextBuilder {
	return &ContextBuilder{
		counter:     NewTokenCounter(),
		tokenBudget: tokenBudget,
	}
}

// Build 构建上下文字符串。
// 每个切块一个区块，带来源文件名、章节类型、三位小数的相似度与正文，
// 区块之间以分隔线分开。超出 Token 预算后停止追加。
func (b *ContextBuilder) Build(matches []Match) string {
	if len(matches) == 0 {
		return emptyContextNotice
	}

	parts := []string{"RELEVANT DOCUMENT INFORMATION:\n"}
	used := b.counter.Count(parts[0])

	for i, m := range matches {
		filename := m.Chunk.Filename
		if filename == "" {
			filename = "Unknown"
		}
		chunkType := m.Chunk.ChunkType
		if chunkType == "" {
			chunkType = "general"
		}

		block := fmt.Sprintf(
			"\nDocument %d:\n- Source: %s\n- Section: %s\n- Relevance: %.3f\n- Content: %s\n---\n",
			i+1, filename, chunkType, m.Similarity, m.Chunk.Text,
		)

		if b.tokenBudget > 0 {
			cost := b.counter.Count(block)
			if used+cost > b.tokenBudget && i > 0 {
				break
			}
			used += cost
		}

		parts = append(parts, block)
	}

	return strings.Join(parts, "\n")
}
