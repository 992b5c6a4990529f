package rag

import (
	"strings"
	"testing"
)

func TestBuildEmptyEvidence(t *testing.T) {
	b := NewContextBuilder(0)
	got := b.Build(nil)
	if got != "No relevant documents found in the corpus." {
		t.Errorf("empty evidence context = %q", got)
	}
}

func TestBuildBlockFormat(t *testing.T) {
	b := NewContextBuilder(0)
	got := b.Build([]Match{
		{
			Chunk: Chunk{
				Filename:  "nosa.txt",
				ChunkType: "termination",
				Text:      "This agreement terminates upon notice.",
			},
			Similarity: 0.9,
		},
	})

	if !strings.HasPrefix(got, "RELEVANT DOCUMENT INFORMATION:\n") {
		t.Errorf("missing header, got %q", got)
	}
	for _, want := range []string{
		"\nDocument 1:\n",
		"- Source: nosa.txt\n",
		"- Section: termination\n",
		"- Relevance: 0.900\n",
		"- Content: This agreement terminates upon notice.\n---\n",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("context missing %q in %q", want, got)
		}
	}
}

func TestBuildDefaultsForMissingMetadata(t *testing.T) {
	b := NewContextBuilder(0)
	got := b.Build([]Match{
		{Chunk: Chunk{Text: "Clause text."}, Similarity: 0.5},
	})

	if !strings.Contains(got, "- Source: Unknown\n") {
		t.Errorf("missing Unknown source default: %q", got)
	}
	if !strings.Contains(got, "- Section: general\n") {
		t.Errorf("missing general section default: %q", got)
	}
}

func TestBuildNumbersBlocksSequentially(t *testing.T) {
	b := NewContextBuilder(0)
	matches := []Match{
		{Chunk: Chunk{Text: "First clause."}, Similarity: 0.9},
		{Chunk: Chunk{Text: "Second clause."}, Similarity: 0.7},
		{Chunk: Chunk{Text: "Third clause."}, Similarity: 0.5},
	}
	got := b.Build(matches)

	for _, want := range []string{"Document 1:", "Document 2:", "Document 3:"} {
		if !strings.Contains(got, want) {
			t.Errorf("context missing %q", want)
		}
	}
}

func TestBuildRespectsTokenBudget(t *testing.T) {
	// 预算刚够表头和首块，其余被截断
	b := NewContextBuilder(30)
	long := strings.Repeat("termination clause text ", 20)
	got := b.Build([]Match{
		{Chunk: Chunk{Text: long}, Similarity: 0.9},
		{Chunk: Chunk{Text: long}, Similarity: 0.8},
		{Chunk: Chunk{Text: long}, Similarity: 0.7},
	})

	if !strings.Contains(got, "Document 1:") {
		t.Errorf("first block must always be included: %q", got)
	}
	if strings.Contains(got, "Document 2:") {
		t.Errorf("budget exceeded but second block still present")
	}
}

func TestTokenCounterPositiveForText(t *testing.T) {
	c := NewTokenCounter()
	n := c.Count("The contributor grants a license to the recipient.")
	if n <= 0 {
		t.Errorf("token count = %d, want > 0", n)
	}
	if c.Count("") != 0 {
		t.Errorf("empty string should count zero tokens")
	}
}
