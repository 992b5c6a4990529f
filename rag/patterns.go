package rag

import (
	"sort"
	"strings"
)

// PatternType 检索模式类型
type PatternType string

const (
	PatternExactPhrase      PatternType = "exact_phrase"
	PatternCoreConcepts     PatternType = "core_concepts"
	PatternSynonymExpansion PatternType = "synonym_expansion"
	PatternIntentKeywords   PatternType = "intent_based"
	PatternBroadKeywords    PatternType = "broad_keywords"
)

// 经验调参常量，修改属于调优决策而非缺陷修复
const (
	exactPhraseWeight  = 3.0
	coreConceptWeight  = 2.5
	synonymWeight      = 2.0
	intentWeight       = 1.8
	broadKeywordWeight = 1.0

	// 核心概念的最低词权重
	coreTermCutoff = 1.5

	phraseHitMultiplier  = 10.0
	conceptHitMultiplier = 8.0
	intentHitMultiplier  = 6.0
	broadHitCap          = 5.0

	// 保留切块的最低总分
	MinChunkScore = 0.5
)

// SearchPattern 加权匹配规则，按权重降序排列后驱动评分
type SearchPattern struct {
	Type   PatternType `json:"type"`
	Terms  []string    `json:"terms"`
	Weight float64     `json:"weight"`
	Label  string      `json:"label,omitempty"`
}

// BuildSearchPatterns 根据查询分析构建检索模式列表，高权重在前
func BuildSearchPatterns(analysis QueryAnalysis) []SearchPattern {
	var patterns []SearchPattern

	// 1. 精确短语匹配（最高优先级）
	for _, phrase := range analysis.Phrases {
		patterns = append(patterns, SearchPattern{
			Type:   PatternExactPhrase,
			Terms:  []string{phrase},
			Weight: exactPhraseWeight,
			Label:  "exact phrase: " + phrase,
		})
	}

	// 2. 核心概念匹配
	var coreTerms []string
	for _, t := range analysis.SearchTerms {
		if t.Weight >= coreTermCutoff {
			coreTerms = append(coreTerms, t.Term)
		}
	}
	if len(coreTerms) > 0 {
		patterns = append(patterns, SearchPattern{
			Type:   PatternCoreConcepts,
			Terms:  coreTerms,
			Weight: coreConceptWeight,
			Label:  "core concepts",
		})
	}

	// 3. 同义词扩展
	for _, t := range analysis.SearchTerms {
		if len(t.Synonyms) == 0 {
			continue
		}
		terms := append([]string{t.Term}, t.Synonyms...)
		patterns = append(patterns, SearchPattern{
			Type:   PatternSynonymExpansion,
			Terms:  terms,
			Weight: synonymWeight,
			Label:  "synonyms for: " + t.Term,
		})
	}

	// 4. 意图关键词
	if analysis.Intent != IntentGeneral {
		if kws := IntentKeywords(analysis.Intent); len(kws) > 0 {
			patterns = append(patterns, SearchPattern{
				Type:   PatternIntentKeywords,
				Terms:  kws,
				Weight: intentWeight,
				Label:  "intent: " + string(analysis.Intent),
			})
		}
	}

	// 5. 宽泛关键词
	if len(analysis.SearchTerms) > 0 {
		all := make([]string, 0, len(analysis.SearchTerms))
		for _, t := range analysis.SearchTerms {
			all = append(all, t.Term)
		}
		patterns = append(patterns, SearchPattern{
			Type:   PatternBroadKeywords,
			Terms:  all,
			Weight: broadKeywordWeight,
			Label:  "broad keywords",
		})
	}

	sort.SliceStable(patterns, func(i, j int) bool {
		return patterns[i].Weight > patterns[j].Weight
	})

	return patterns
}

// ScoreChunk 对单个切块按所有模式累加评分。
// 纯函数，相同输入总是产生相同评分。
func ScoreChunk(text string, patterns []SearchPattern) (float64, []string) {
	lower := strings.ToLower(text)
	var total float64
	seen := make(map[string]struct{})
	var matched []string

	record := func(term string) {
		if _, ok := seen[term]; ok {
			return
		}
		seen[term] = struct{}{}
		matched = append(matched, term)
	}

	for _, p := range patterns {
		switch p.Type {
		case PatternExactPhrase:
			phrase := strings.ToLower(p.Terms[0])
			if strings.Contains(lower, phrase) {
				total += p.Weight * phraseHitMultiplier
				record(p.Terms[0])
			}

		case PatternCoreConcepts:
			found := 0
			for _, c := range p.Terms {
				if strings.Contains(lower, strings.ToLower(c)) {
					found++
					record(c)
				}
			}
			if found > 0 {
				total += (float64(found) / float64(len(p.Terms))) * p.Weight * conceptHitMultiplier
			}

		case PatternSynonymExpansion:
			found := 0
			for _, s := range p.Terms {
				if strings.Contains(lower, strings.ToLower(s)) {
					found++
					record(s)
				}
			}
			if found > 0 {
				total += p.Weight * float64(found)
			}

		case PatternIntentKeywords:
			hit := false
			for _, kw := range p.Terms {
				if strings.Contains(lower, strings.ToLower(kw)) {
					hit = true
					record(kw)
				}
			}
			if hit {
				total += p.Weight * intentHitMultiplier
			}

		case PatternBroadKeywords:
			found := 0
			for _, kw := range p.Terms {
				if strings.Contains(lower, strings.ToLower(kw)) {
					found++
					record(kw)
				}
			}
			if found > 0 {
				boost := float64(found) * p.Weight
				if boost > broadHitCap {
					boost = broadHitCap
				}
				total += boost
			}
		}
	}

	return total, matched
}
