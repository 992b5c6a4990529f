package rag_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/BaSui01/legalrag/llm"
	"github.com/BaSui01/legalrag/rag"
	"github.com/BaSui01/legalrag/testutil/mocks"
)

const severanceClause = "Severance: If terminated without cause, Employee receives three (3) months base salary."

func severanceStore() *mocks.MemoryChunkStore {
	return mocks.NewMemoryChunkStore(
		rag.Chunk{
			ID:         "chunk-sev",
			DocumentID: "doc-emp",
			Filename:   "employment_agreement.txt",
			ChunkType:  "termination",
			Text:       severanceClause,
		},
		rag.Chunk{
			ID:         "chunk-law",
			DocumentID: "doc-emp",
			Filename:   "employment_agreement.txt",
			ChunkType:  "general",
			Text:       "The governing jurisdiction shall be Delaware.",
		},
	)
}

// panicChunkStore 检验编排层的兜底恢复
type panicChunkStore struct{}

func (panicChunkStore) GetChunks(ctx context.Context, filter rag.ChunkFilter) ([]rag.Chunk, error) {
	panic("store corrupted")
}

func TestGenerateAnswersFromSingleIteration(t *testing.T) {
	provider := llm.NewMockProvider().
		WithResponse(`["severance terminated without cause"]`).
		WithResponse(`{"sufficient": true, "confidence": 0.9, "missing_info": "", "additional_queries": []}`).
		WithResponse("Employee receives three months base salary as severance.")

	g := rag.NewGenerator(rag.DefaultGeneratorConfig(), provider, severanceStore(), nil, nil)
	result := g.GenerateResponse(context.Background(), "What is the severance if terminated without cause?", rag.GenerateOptions{})

	if result.Error {
		t.Fatalf("unexpected error result: %q", result.Content)
	}
	if result.Content != "Employee receives three months base salary as severance." {
		t.Errorf("Content = %q", result.Content)
	}
	if result.IterationsUsed != 1 {
		t.Errorf("IterationsUsed = %d, want 1", result.IterationsUsed)
	}
	if result.TotalChunksFound < 1 {
		t.Errorf("TotalChunksFound = %d, want >= 1", result.TotalChunksFound)
	}
	if len(result.Sources) == 0 {
		t.Fatalf("no sources cited")
	}
	first := result.Sources[0]
	if first.DocumentName != "employment_agreement.txt" || first.ChunkType != "termination" {
		t.Errorf("first source = %+v", first)
	}
	if !strings.Contains(first.Preview, "three (3) months") {
		t.Errorf("preview does not quote the clause: %q", first.Preview)
	}
}

func TestGenerateDeduplicatesAcrossIterations(t *testing.T) {
	store := mocks.NewMemoryChunkStore(rag.Chunk{
		ID:   "chunk-1",
		Text: "Severance pay compensation for termination is three months.",
	})

	provider := llm.NewMockProvider().
		WithResponse(`["severance pay", "termination severance"]`).
		WithResponse(`{"sufficient": false, "confidence": 0.2, "missing_info": "amounts unclear", "additional_queries": ["severance compensation"]}`).
		WithResponse(`{"sufficient": true, "confidence": 0.9, "missing_info": "", "additional_queries": []}`).
		WithResponse("Three months of severance pay.")

	g := rag.NewGenerator(rag.DefaultGeneratorConfig(), provider, store, nil, nil)
	result := g.GenerateResponse(context.Background(), "How much severance?", rag.GenerateOptions{})

	if result.Error {
		t.Fatalf("unexpected error result: %q", result.Content)
	}
	if result.IterationsUsed != 2 {
		t.Errorf("IterationsUsed = %d, want 2", result.IterationsUsed)
	}
	if result.TotalChunksFound != 1 {
		t.Errorf("TotalChunksFound = %d, want 1 (deduplicated)", result.TotalChunksFound)
	}
	if len(result.Sources) != 1 {
		t.Errorf("Sources = %d entries, want 1", len(result.Sources))
	}
}

func TestGenerateStopsWithoutAdditionalQueries(t *testing.T) {
	provider := llm.NewMockProvider().
		WithResponse(`["severance terms"]`).
		WithResponse(`{"sufficient": false, "confidence": 0.1, "missing_info": "nothing relevant", "additional_queries": []}`).
		WithResponse("The corpus does not describe severance terms.")

	g := rag.NewGenerator(rag.DefaultGeneratorConfig(), provider, severanceStore(), nil, nil)
	result := g.GenerateResponse(context.Background(), "What are the severance terms?", rag.GenerateOptions{})

	if result.Error {
		t.Fatalf("unexpected error result: %q", result.Content)
	}
	if result.IterationsUsed != 1 {
		t.Errorf("IterationsUsed = %d, want 1 (no follow-up queries)", result.IterationsUsed)
	}
	if provider.CallCount() != 3 {
		t.Errorf("provider calls = %d, want 3 (rewrite, assess, synthesize)", provider.CallCount())
	}
}

func TestGenerateHitsIterationCeiling(t *testing.T) {
	insufficient := `{"sufficient": false, "confidence": 0.3, "missing_info": "more needed", "additional_queries": ["severance details"]}`
	provider := llm.NewMockProvider().
		WithResponse(`["severance"]`).
		WithResponse(insufficient).
		WithResponse(insufficient).
		WithResponse(insufficient).
		WithResponse("Best effort answer from partial evidence.")

	g := rag.NewGenerator(rag.DefaultGeneratorConfig(), provider, severanceStore(), nil, nil)
	result := g.GenerateResponse(context.Background(), "How much severance?", rag.GenerateOptions{})

	if result.Error {
		t.Fatalf("unexpected error result: %q", result.Content)
	}
	if result.IterationsUsed != 3 {
		t.Errorf("IterationsUsed = %d, want 3 (ceiling)", result.IterationsUsed)
	}
	// 改写 1 次 + 评估 3 次 + 合成 1 次
	if provider.CallCount() != 5 {
		t.Errorf("provider calls = %d, want 5", provider.CallCount())
	}
}

func TestGenerateEmptyCorpus(t *testing.T) {
	provider := llm.NewMockProvider().
		WithResponse(`["severance policy"]`).
		WithResponse("the model rambled instead of returning JSON").
		WithResponse("I could not find relevant information in the document corpus.")

	g := rag.NewGenerator(rag.DefaultGeneratorConfig(), provider, mocks.NewMemoryChunkStore(), nil, nil)
	result := g.GenerateResponse(context.Background(), "What is the severance policy?", rag.GenerateOptions{})

	if result.Error {
		t.Fatalf("empty corpus must not be an error result: %q", result.Content)
	}
	if result.TotalChunksFound != 0 {
		t.Errorf("TotalChunksFound = %d, want 0", result.TotalChunksFound)
	}
	if len(result.Sources) != 0 {
		t.Errorf("Sources = %v, want empty", result.Sources)
	}
	// 保守回退无追加查询，循环在首轮后退出
	if result.IterationsUsed != 1 {
		t.Errorf("IterationsUsed = %d, want 1", result.IterationsUsed)
	}
}

func TestGenerateSynthesisFailure(t *testing.T) {
	provider := llm.NewMockProvider().
		WithResponse(`["severance"]`).
		WithResponse(`{"sufficient": true, "confidence": 0.9, "missing_info": "", "additional_queries": []}`).
		WithError(&llm.Error{Code: llm.ErrModelOverloaded, Message: "overloaded"})

	g := rag.NewGenerator(rag.DefaultGeneratorConfig(), provider, severanceStore(), nil, nil)
	result := g.GenerateResponse(context.Background(), "How much severance?", rag.GenerateOptions{})

	if !result.Error {
		t.Fatalf("expected error result")
	}
	if !strings.HasPrefix(result.Content, "I apologize, but I encountered an error while processing your query:") {
		t.Errorf("Content = %q", result.Content)
	}
	if len(result.Sources) != 0 {
		t.Errorf("error result must not cite sources: %v", result.Sources)
	}
}

func TestGenerateRecoversFromPanic(t *testing.T) {
	provider := llm.NewMockProvider().WithResponse(`["severance"]`)

	g := rag.NewGenerator(rag.DefaultGeneratorConfig(), provider, panicChunkStore{}, nil, nil)
	result := g.GenerateResponse(context.Background(), "How much severance?", rag.GenerateOptions{})

	if result == nil {
		t.Fatal("result is nil after panic")
	}
	if !result.Error {
		t.Errorf("expected error result after panic")
	}
	if !strings.Contains(result.Content, "store corrupted") {
		t.Errorf("Content = %q", result.Content)
	}
}

func TestGenerateRecordsHistory(t *testing.T) {
	history := mocks.NewRecordingHistoryStore()
	provider := llm.NewMockProvider().
		WithResponse(`["severance terminated without cause"]`).
		WithResponse(`{"sufficient": true, "confidence": 0.9, "missing_info": "", "additional_queries": []}`).
		WithResponse("Three months base salary.")

	g := rag.NewGenerator(rag.DefaultGeneratorConfig(), provider, severanceStore(), history, nil)
	question := "What is the severance if terminated without cause?"
	result := g.GenerateResponse(context.Background(), question, rag.GenerateOptions{SessionID: "sess-1"})

	if result.Error {
		t.Fatalf("unexpected error result: %q", result.Content)
	}
	exchanges := history.Exchanges()
	if len(exchanges) != 1 {
		t.Fatalf("recorded %d exchanges, want 1", len(exchanges))
	}
	ex := exchanges[0]
	if ex.SessionID != "sess-1" || ex.Question != question {
		t.Errorf("exchange = %+v", ex)
	}
	if ex.Result == nil || ex.Result.Content != "Three months base salary." {
		t.Errorf("recorded result = %+v", ex.Result)
	}
}

func TestGenerateWithoutSessionSkipsHistory(t *testing.T) {
	history := mocks.NewRecordingHistoryStore()
	provider := llm.NewMockProvider().
		WithResponse(`["severance"]`).
		WithResponse(`{"sufficient": true, "confidence": 0.9, "missing_info": "", "additional_queries": []}`).
		WithResponse("Answer.")

	g := rag.NewGenerator(rag.DefaultGeneratorConfig(), provider, severanceStore(), history, nil)
	g.GenerateResponse(context.Background(), "How much severance?", rag.GenerateOptions{})

	if n := len(history.Exchanges()); n != 0 {
		t.Errorf("recorded %d exchanges without a session, want 0", n)
	}
}

func TestGenerateHistoryFailureDoesNotFailRun(t *testing.T) {
	history := mocks.NewRecordingHistoryStore()
	history.FailWith(errors.New("database unavailable"))

	provider := llm.NewMockProvider().
		WithResponse(`["severance"]`).
		WithResponse(`{"sufficient": true, "confidence": 0.9, "missing_info": "", "additional_queries": []}`).
		WithResponse("Answer.")

	g := rag.NewGenerator(rag.DefaultGeneratorConfig(), provider, severanceStore(), history, nil)
	result := g.GenerateResponse(context.Background(), "How much severance?", rag.GenerateOptions{SessionID: "sess-1"})

	if result.Error {
		t.Errorf("history failure leaked into the result: %q", result.Content)
	}
	if result.Content != "Answer." {
		t.Errorf("Content = %q", result.Content)
	}
}

func TestGenerateSourcePreviewValidUTF8(t *testing.T) {
	// 截断点落在多字节字符中间时，引用预览仍须是合法 UTF-8
	store := mocks.NewMemoryChunkStore(rag.Chunk{
		ID:         "chunk-sec",
		DocumentID: "doc-emp",
		Filename:   "employment_agreement.txt",
		Text:       "Severance: " + strings.Repeat("§", 250),
	})
	provider := llm.NewMockProvider().
		WithResponse(`["severance amounts"]`).
		WithResponse(`{"sufficient": true, "confidence": 0.9, "missing_info": "", "additional_queries": []}`).
		WithResponse("Answer.")

	g := rag.NewGenerator(rag.DefaultGeneratorConfig(), provider, store, nil, nil)
	result := g.GenerateResponse(context.Background(), "How much severance?", rag.GenerateOptions{})

	if result.Error {
		t.Fatalf("unexpected error result: %q", result.Content)
	}
	if len(result.Sources) == 0 {
		t.Fatal("no sources cited")
	}
	preview := result.Sources[0].Preview
	if !utf8.ValidString(preview) {
		t.Errorf("preview contains invalid UTF-8: %q", preview)
	}
	if !strings.HasSuffix(preview, "...") {
		t.Errorf("long chunk preview missing ellipsis: %q", preview)
	}
	if n := utf8.RuneCountInString(strings.TrimSuffix(preview, "...")); n != 200 {
		t.Errorf("preview kept %d characters, want 200", n)
	}
}

func TestGenerateScopesRetrievalToDocuments(t *testing.T) {
	store := mocks.NewMemoryChunkStore(
		rag.Chunk{ID: "in", DocumentID: "doc-a", Filename: "a.txt", Text: severanceClause},
		rag.Chunk{ID: "out", DocumentID: "doc-b", Filename: "b.txt", Text: severanceClause},
	)
	provider := llm.NewMockProvider().
		WithResponse(`["severance terminated without cause"]`).
		WithResponse(`{"sufficient": true, "confidence": 0.9, "missing_info": "", "additional_queries": []}`).
		WithResponse("Answer.")

	g := rag.NewGenerator(rag.DefaultGeneratorConfig(), provider, store, nil, nil)
	result := g.GenerateResponse(context.Background(), "How much severance?", rag.GenerateOptions{DocumentIDs: []string{"doc-a"}})

	if len(result.Sources) != 1 {
		t.Fatalf("Sources = %d entries, want 1", len(result.Sources))
	}
	if result.Sources[0].DocumentID != "doc-a" {
		t.Errorf("source document = %q, want doc-a", result.Sources[0].DocumentID)
	}
}
