package rag

import (
	"regexp"
	"strings"

	"github.com/FilingLensAI/filinglens-mvp/engine/domain"
)

// Router classifies a question and extracts structured-path hints. The
// heuristic implementation below can be swapped for a learned model without
// touching the orchestrator.
type Router interface {
	Classify(question string) Route
}

// metricTerms signal a quantitative lookup the structured store can answer.
var metricTerms = []string{
	"revenue", "net income", "gross margin", "operating margin", "eps",
	"earnings per share", "total assets", "liabilities", "cash flow",
	"free cash flow", "operating income", "cost of revenue", "r&d",
	"research and development", "capex", "dividend", "shares outstanding",
	"headcount", "employees", "page count", "pages", "how many",
}

// comparativeTerms signal comparison or aggregation intent.
var comparativeTerms = []string{
	"compare", "versus", "vs", "higher", "lower", "largest", "smallest",
	"grew", "growth", "change", "increase", "decrease", "average", "total",
	"sum", "count", "more than", "less than", "between",
}

var (
	numeralPattern = regexp.MustCompile(`\d`)
	periodPattern  = regexp.MustCompile(`\b(FY\s?(\d{4})|Q([1-4])\s?(\d{4})|fiscal\s+(?:year\s+)?(\d{4}))\b`)
	tickerPattern  = regexp.MustCompile(`\b[A-Z]{2,6}\b`)
)

// tickerStoplist holds all-caps words that are not entity symbols.
var tickerStoplist = map[string]bool{
	"EPS": true, "GAAP": true, "SEC": true, "USD": true, "YOY": true,
	"FY": true, "CEO": true, "CFO": true, "API": true,
}

// HeuristicRouter is the default deterministic classifier.
type HeuristicRouter struct{}

// Classify routes to the structured path when the question carries
// quantitative intent, and to the semantic path otherwise.
func (HeuristicRouter) Classify(question string) Route {
	lower := strings.ToLower(question)

	route := Route{
		Class:  domain.ClassSemantic,
		Entity: extractEntity(question),
		Period: extractPeriod(question),
		Metric: extractMetric(lower),
	}

	score := 0
	if route.Metric != "" {
		score += 2
	}
	for _, term := range comparativeTerms {
		if containsWord(lower, term) {
			score++
			break
		}
	}
	if numeralPattern.MatchString(question) {
		score++
	}
	if route.Period != "" {
		score++
	}
	if score >= 2 {
		route.Class = domain.ClassStructured
	}
	return route
}

func extractMetric(lower string) string {
	for _, term := range metricTerms {
		if containsWord(lower, term) {
			return term
		}
	}
	return ""
}

// extractEntity returns the first all-caps token that looks like a symbol.
func extractEntity(question string) string {
	for _, m := range tickerPattern.FindAllString(question, -1) {
		if !tickerStoplist[m] {
			return m
		}
	}
	return ""
}

// extractPeriod normalizes any recognized fiscal-period mention to the
// canonical FYyyyy / Qnyyyy form used in document identifiers.
func extractPeriod(question string) string {
	m := periodPattern.FindStringSubmatch(question)
	if m == nil {
		return ""
	}
	switch {
	case m[2] != "": // FY2023
		return "FY" + m[2]
	case m[3] != "": // Q3 2023
		return "Q" + m[3] + m[4]
	case m[5] != "": // fiscal year 2023
		return "FY" + m[5]
	}
	return ""
}

// containsWord reports whether term appears in s on word boundaries.
func containsWord(s, term string) bool {
	idx := 0
	for {
		i := strings.Index(s[idx:], term)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(term)
		beforeOK := start == 0 || !isWordByte(s[start-1])
		afterOK := end == len(s) || !isWordByte(s[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}
