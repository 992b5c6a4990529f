package rag

import (
	"context"
	"reflect"
	"testing"

	"github.com/BaSui01/legalrag/llm"
)

func TestAssessParsesFencedJSON(t *testing.T) {
	provider := llm.NewMockProvider().WithResponse("```json\n{\"sufficient\": true, \"confidence\": 0.85, \"missing_info\": \"\", \"additional_queries\": []}\n```")
	a := NewSufficiencyAssessor(provider, nil)

	got := a.Assess(context.Background(), "q", "context", 3)
	if !got.Sufficient || got.Confidence != 0.85 {
		t.Errorf("Assess = %+v", got)
	}
	if len(got.AdditionalQueries) != 0 {
		t.Errorf("unexpected additional queries: %v", got.AdditionalQueries)
	}
}

func TestAssessParsesAdditionalQueries(t *testing.T) {
	provider := llm.NewMockProvider().WithResponse(`{
		"sufficient": false,
		"confidence": 0.4,
		"missing_info": "no severance amounts found",
		"additional_queries": ["severance amount", "termination compensation"]
	}`)
	a := NewSufficiencyAssessor(provider, nil)

	got := a.Assess(context.Background(), "q", "context", 2)
	if got.Sufficient {
		t.Errorf("Sufficient = true, want false")
	}
	want := []string{"severance amount", "termination compensation"}
	if !reflect.DeepEqual(got.AdditionalQueries, want) {
		t.Errorf("AdditionalQueries = %v, want %v", got.AdditionalQueries, want)
	}
	if got.MissingInfo != "no severance amounts found" {
		t.Errorf("MissingInfo = %q", got.MissingInfo)
	}
}

func TestAssessFallbackWithEvidence(t *testing.T) {
	provider := llm.NewMockProvider().WithResponse("I think the context looks pretty good overall.")
	a := NewSufficiencyAssessor(provider, nil)

	got := a.Assess(context.Background(), "q", "context", 4)
	if !got.Sufficient || got.Confidence != 0.5 {
		t.Errorf("fallback with evidence = %+v, want sufficient/0.5", got)
	}
	if len(got.AdditionalQueries) != 0 {
		t.Errorf("fallback must not propose additional queries: %v", got.AdditionalQueries)
	}
	if got.MissingInfo != "Could not assess information sufficiency" {
		t.Errorf("MissingInfo = %q", got.MissingInfo)
	}
}

func TestAssessFallbackWithoutEvidence(t *testing.T) {
	provider := llm.NewMockProvider().WithError(&llm.Error{Code: llm.ErrUpstreamTimeout, Message: "timeout"})
	a := NewSufficiencyAssessor(provider, nil)

	got := a.Assess(context.Background(), "q", "context", 0)
	if got.Sufficient || got.Confidence != 0.0 {
		t.Errorf("fallback without evidence = %+v, want insufficient/0.0", got)
	}
	if len(got.AdditionalQueries) != 0 {
		t.Errorf("fallback must not propose additional queries: %v", got.AdditionalQueries)
	}
}

func TestAssessRequestParams(t *testing.T) {
	provider := llm.NewMockProvider().WithResponse(`{"sufficient": true, "confidence": 1.0}`)
	a := NewSufficiencyAssessor(provider, nil)

	a.Assess(context.Background(), "What is the notice period?", "RELEVANT DOCUMENT INFORMATION:", 1)

	calls := provider.Calls()
	if len(calls) != 1 {
		t.Fatalf("got %d calls, want 1", len(calls))
	}
	req := calls[0]
	if req.Temperature != 0.2 || req.MaxTokens != 300 {
		t.Errorf("request params = temp %v / max %d, want 0.2 / 300", req.Temperature, req.MaxTokens)
	}
}

func TestStripJSONFenceVariants(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"json fence", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"bare fence", "```\n[1, 2]\n```", `[1, 2]`},
		{"no fence", `{"a": 1}`, `{"a": 1}`},
		{"surrounding whitespace", "  ```json\n[]\n```  ", `[]`},
		{"unterminated fence", "```json\n{\"a\": 1}", `{"a": 1}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := stripJSONFence(tc.in); got != tc.want {
				t.Errorf("stripJSONFence(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
