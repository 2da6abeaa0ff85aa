package assess

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/ronaldeddings/unified-agent/internal/event"
)

var fencedBlockRE = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")
var bareObjectRE = regexp.MustCompile(`(?s)\{[^{}]*\}`)

// ParseRating extracts a Rating from a provider's raw text response,
// trying direct JSON, then a fenced code block, then a regex-located bare
// object. questionAware selects which schema key (questionRelevance vs
// relevance) is required for a candidate to validate. It never panics or
// returns an error; an unparseable response yields (nil, false).
func ParseRating(output string, questionAware bool) (*event.Rating, bool) {
	trimmed := strings.TrimSpace(output)

	if r, ok := tryParse(trimmed, questionAware); ok {
		return r, true
	}

	if m := fencedBlockRE.FindStringSubmatch(trimmed); m != nil {
		if r, ok := tryParse(m[1], questionAware); ok {
			return r, true
		}
	}

	requiredKey := "relevance"
	if questionAware {
		requiredKey = "questionRelevance"
	}
	for _, m := range bareObjectRE.FindAllString(trimmed, -1) {
		if !strings.Contains(m, requiredKey) {
			continue
		}
		if r, ok := tryParse(m, questionAware); ok {
			return r, true
		}
	}

	return nil, false
}

func tryParse(candidate string, questionAware bool) (*event.Rating, bool) {
	if !gjson.Valid(candidate) {
		return nil, false
	}
	root := gjson.Parse(candidate)
	if !root.IsObject() {
		return nil, false
	}

	requiredKey := "relevance"
	if questionAware {
		requiredKey = "questionRelevance"
	}
	if !root.Get(requiredKey).Exists() || !root.Get("signalDensity").Exists() || !root.Get("overallScore").Exists() {
		return nil, false
	}

	r := &event.Rating{Rationale: root.Get("rationale").String()}
	r.SignalDensity = clampPtr(root.Get("signalDensity"))
	r.OverallScore = clampPtr(root.Get("overallScore"))

	if questionAware {
		r.QuestionRelevance = clampPtr(root.Get(requiredKey))
		r.ContextValue = clampPtr(root.Get("contextValue"))
	} else {
		r.Relevance = clampPtr(root.Get(requiredKey))
		r.Reusability = clampPtr(root.Get("reusability"))
	}

	return r, true
}

func clampPtr(v gjson.Result) *int {
	if !v.Exists() {
		return nil
	}
	n := int(v.Int())
	if n < 1 {
		n = 1
	}
	if n > 10 {
		n = 10
	}
	return &n
}
