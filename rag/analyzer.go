package rag

import (
	"regexp"
	"strings"
)

// 法律与技术术语同义词表，进程启动时构建一次，运行期不可变
var conceptSynonyms = map[string][]string{
	// 法律概念
	"accept":          {"agree", "consent", "approve", "acknowledge", "embrace", "adopt"},
	"acceptance":      {"agreement", "consent", "approval", "acknowledgment", "adoption"},
	"responsibility":  {"obligation", "duty", "liability", "accountability", "commitment"},
	"obligations":     {"duties", "responsibilities", "commitments", "requirements", "mandates"},
	"rights":          {"privileges", "entitlements", "permissions", "authorities", "powers"},
	"license":         {"permit", "authorization", "permission", "grant", "allow"},
	"licensed":        {"permitted", "authorized", "allowed", "granted", "entitled"},
	"distribute":      {"provide", "share", "disseminate", "deliver", "supply"},
	"distribution":    {"sharing", "dissemination", "delivery", "provision", "supply"},
	"redistribute":    {"reshare", "redisseminate", "redelivery", "resupply"},
	"modification":    {"change", "alteration", "amendment", "update", "revision"},
	"modifications":   {"changes", "alterations", "amendments", "updates", "revisions"},
	"sublicense":      {"sublicensing", "sub-license", "relicense", "secondary license"},
	"requirements":    {"conditions", "obligations", "mandates", "specifications", "criteria"},
	"comply":          {"adhere", "conform", "observe", "follow", "satisfy"},
	"compliance":      {"adherence", "conformity", "observance", "satisfaction"},
	"noncompliance":   {"violation", "breach", "non-adherence", "non-conformity"},
	"cure":            {"fix", "remedy", "correct", "resolve", "address"},
	"terminate":       {"end", "cancel", "discontinue", "cease", "stop"},
	"termination":     {"ending", "cancellation", "discontinuation", "cessation"},
	"governing":       {"controlling", "ruling", "applicable", "relevant"},
	"warranty":        {"guarantee", "assurance", "promise", "commitment"},
	"indemnity":       {"protection", "compensation", "reimbursement", "coverage"},
	"export":          {"international", "foreign", "overseas", "external"},
	"endorsement":     {"approval", "support", "backing", "recommendation"},
	"commercial":      {"business", "trade", "market", "profit"},
	"advantage":       {"benefit", "edge", "superiority", "gain"},
	"registration":    {"enrollment", "signup", "recording", "listing"},
	"representations": {"statements", "declarations", "assertions", "claims"},
	"purpose":         {"objective", "goal", "aim", "intention", "reason"},
	"subject":         {"covered", "relevant", "applicable", "related"},
	"contributor":     {"provider", "supplier", "giver", "author"},
	"agency":          {"organization", "department", "bureau", "authority"},
	"government":      {"federal", "state", "public", "official"},

	// 动作类
	"trigger":    {"cause", "initiate", "activate", "start", "prompt"},
	"perform":    {"execute", "carry out", "conduct", "do", "implement"},
	"activities": {"actions", "operations", "tasks", "work", "processes"},
	"define":     {"specify", "describe", "explain", "clarify", "identify"},
	"provide":    {"supply", "give", "offer", "furnish", "deliver"},
	"include":    {"contain", "comprise", "incorporate", "encompass"},
	"remove":     {"delete", "eliminate", "take away", "extract"},
	"request":    {"ask for", "seek", "require", "demand"},
	"offer":      {"provide", "give", "supply", "present"},
	"fail":       {"not succeed", "be unable", "neglect", "omit"},

	// 法律主体
	"recipient":    {"user", "licensee", "party", "entity"},
	"contributors": {"providers", "suppliers", "authors", "creators"},
	"parties":      {"entities", "organizations", "participants"},

	// 技术术语
	"software":    {"code", "program", "application", "system"},
	"source code": {"source", "code", "programming code"},
	"copyright":   {"intellectual property", "authorship", "ownership"},
	"notice":      {"notification", "announcement", "statement", "message"},
	"patent":      {"intellectual property", "invention", "IP"},

	// 时间与条件
	"when":        {"if", "upon", "during", "while", "as"},
	"conditions":  {"circumstances", "situations", "requirements", "terms"},
	"happens":     {"occurs", "takes place", "arises", "comes about"},
	"stated":      {"mentioned", "specified", "declared", "indicated"},
	"limitations": {"restrictions", "constraints", "bounds", "limits"},
	"placed":      {"imposed", "applied", "set", "established"},
}

// 停用词表
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {},
	"on": {}, "at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "be": {}, "been": {}, "being": {},
	"have": {}, "has": {}, "had": {}, "do": {}, "does": {}, "did": {}, "will": {},
	"would": {}, "could": {}, "should": {}, "may": {}, "might": {}, "can": {},
	"must": {}, "this": {}, "that": {}, "these": {}, "those": {}, "i": {},
	"you": {}, "he": {}, "she": {}, "it": {}, "we": {}, "they": {}, "me": {},
	"him": {}, "her": {}, "us": {}, "them": {}, "my": {}, "your": {}, "his": {},
	"its": {}, "our": {}, "their": {},
}

// 高权重术语集合
var highImportanceTerms = map[string]struct{}{
	"contributor":  {},
	"recipient":    {},
	"software":     {},
	"modification": {},
	"license":      {},
}

// 法律领域焦点词
var legalFocuses = []string{
	"patent", "copyright", "license", "agreement", "contract",
	"modification", "distribution", "sublicense", "warranty",
	"indemnity", "compliance", "termination", "export",
}

// 领域复合短语
var compoundPhrases = []string{
	"subject software",
	"source code",
	"government agency",
	"patent rights",
	"copyright notice",
	"open source",
	"user registration",
	"commercial advantage",
	"export license",
	"governing law",
}

// 各意图关联的关键词
var intentKeywords = map[Intent][]string{
	IntentDefinition:  {"define", "definition", "means", "refers to", "is defined as", "the term"},
	IntentConditions:  {"if", "when", "upon", "where", "provided that", "subject to", "conditions", "requirements"},
	IntentPermission:  {"may", "can", "permitted to", "authorized to", "licensed to", "right to"},
	IntentObligation:  {"shall", "must", "will", "required to", "obligated to", "responsibility", "duty"},
	IntentConsequence: {"result in", "lead to", "cause", "trigger", "penalty", "consequence", "happens"},
}

var (
	nonWordRe      = regexp.MustCompile(`[^\w\s]`)
	quotedPhraseRe = regexp.MustCompile(`"([^"]*)"`)
)

// QueryAnalyzer 将原始问题分类为意图并提取加权检索词。
// 无状态且只读共享词表，可并发使用，analyze 永不返回错误。
type QueryAnalyzer struct{}

// NewQueryAnalyzer 创建查询分析器
func NewQueryAnalyzer() *QueryAnalyzer {
	return &QueryAnalyzer{}
}

// Analyze 分析查询，提取意图、关键术语与检索词
func (a *QueryAnalyzer) Analyze(query string) QueryAnalysis {
	lower := strings.ToLower(strings.TrimSpace(query))

	intent, focus := detectIntent(lower)
	keyTerms := extractKeyTerms(lower)
	searchTerms := buildSearchTerms(keyTerms, focus)
	phrases := extractPhrases(lower)

	return QueryAnalysis{
		OriginalQuery: query,
		Intent:        intent,
		Focus:         focus,
		KeyTerms:      keyTerms,
		SearchTerms:   searchTerms,
		Phrases:       phrases,
	}
}

// detectIntent 按固定优先级检测意图，先命中者生效。
// 优先级顺序承担消歧职责，调整顺序会改变含重叠标记的查询的分类结果。
func detectIntent(query string) (Intent, []string) {
	var focus []string
	for _, f := range legalFocuses {
		if strings.Contains(query, f) {
			focus = append(focus, f)
		}
	}

	words := fieldSet(query)

	switch {
	case strings.Contains(query, "what is") || strings.Contains(query, "what does") ||
		strings.Contains(query, "define") || strings.Contains(query, "definition") ||
		strings.Contains(query, "meaning of"):
		return IntentDefinition, focus
	case hasWord(words, "when") || strings.Contains(query, "under what") || hasWord(words, "if"):
		return IntentConditions, focus
	case hasWord(words, "can") || hasWord(words, "may") || strings.Contains(query, "able to"):
		return IntentPermission, focus
	case strings.Contains(query, "requirements") || hasWord(words, "must") || hasWord(words, "shall"):
		return IntentObligation, focus
	case strings.Contains(query, "what happens") || strings.Contains(query, "consequence"):
		return IntentConsequence, focus
	default:
		return IntentGeneral, focus
	}
}

func fieldSet(query string) map[string]struct{} {
	cleaned := nonWordRe.ReplaceAllString(query, " ")
	set := make(map[string]struct{})
	for _, w := range strings.Fields(cleaned) {
		set[w] = struct{}{}
	}
	return set
}

func hasWord(words map[string]struct{}, w string) bool {
	_, ok := words[w]
	return ok
}

// extractKeyTerms 提取有意义的词条，并附加领域复合短语中出现的相邻二元组
func extractKeyTerms(query string) []string {
	cleaned := nonWordRe.ReplaceAllString(query, " ")
	words := strings.Fields(cleaned)

	var terms []string
	for _, w := range words {
		if _, stop := stopWords[w]; stop {
			continue
		}
		if len(w) <= 2 {
			continue
		}
		terms = append(terms, w)
	}

	for i := 0; i+1 < len(words); i++ {
		bigram := words[i] + " " + words[i+1]
		for _, phrase := range compoundPhrases {
			if strings.Contains(phrase, bigram) {
				terms = append(terms, bigram)
				break
			}
		}
	}

	return terms
}

// buildSearchTerms 为每个关键术语赋权并附加同义词
func buildSearchTerms(keyTerms []string, focus []string) []SearchTerm {
	focusSet := make(map[string]struct{}, len(focus))
	for _, f := range focus {
		focusSet[f] = struct{}{}
	}

	terms := make([]SearchTerm, 0, len(keyTerms))
	for _, term := range keyTerms {
		lower := strings.ToLower(term)

		weight := 1.0
		if _, ok := highImportanceTerms[lower]; ok {
			weight = 2.0
		} else if _, ok := focusSet[lower]; ok {
			weight = 1.8
		} else if len(term) > 8 {
			weight = 1.5
		}

		terms = append(terms, SearchTerm{
			Term:     term,
			Weight:   weight,
			Category: categorizeTerm(lower),
			Synonyms: conceptSynonyms[lower],
		})
	}

	return terms
}

func categorizeTerm(term string) TermCategory {
	switch term {
	case "responsibility", "obligation", "rights", "license", "agreement":
		return CategoryConcept
	case "accept", "distribute", "modify", "sublicense", "terminate":
		return CategoryAction
	case "contributor", "recipient", "software", "agency", "government":
		return CategoryEntity
	case "commercial", "export", "patent", "copyright":
		return CategoryModifier
	default:
		return CategoryGeneral
	}
}

// extractPhrases 提取引号短语与已知复合法律短语
func extractPhrases(query string) []string {
	var phrases []string

	for _, m := range quotedPhraseRe.FindAllStringSubmatch(query, -1) {
		if m[1] != "" {
			phrases = append(phrases, m[1])
		}
	}

	for _, phrase := range compoundPhrases {
		if strings.Contains(query, phrase) {
			phrases = append(phrases, phrase)
		}
	}

	return phrases
}

// IntentKeywords 返回意图关联的关键词列表，未知意图返回 nil
func IntentKeywords(intent Intent) []string {
	return intentKeywords[intent]
}
