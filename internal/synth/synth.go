// Package synth groups selected chunks into a fixed set of narrative topics
// and renders alternating question/answer turns for each (C16).
package synth

import (
	"sort"
	"strings"

	"github.com/ronaldeddings/unified-agent/internal/event"
)

// Topic is one of the fixed narrative sections a build can carry.
type Topic string

const (
	TopicOverview      Topic = "overview"
	TopicArchitecture  Topic = "architecture"
	TopicFileStructure Topic = "file-structure"
	TopicPatterns      Topic = "patterns"
	TopicDependencies  Topic = "dependencies"
	TopicDeployment    Topic = "deployment"
	TopicDecisions     Topic = "decisions"
	TopicRecentChanges Topic = "recent-changes"
	TopicKnownIssues   Topic = "known-issues"
)

// narrativeOrder is the fixed emission order of spec §4.11; topics with no
// surviving chunks are omitted from the output.
var narrativeOrder = []Topic{
	TopicOverview, TopicArchitecture, TopicFileStructure, TopicPatterns,
	TopicDependencies, TopicDeployment, TopicDecisions, TopicRecentChanges, TopicKnownIssues,
}

var topicKeywords = map[Topic][]string{
	TopicOverview:      {"overview", "summary", "introduction", "purpose", "goal"},
	TopicArchitecture:  {"architecture", "design", "component", "module", "service", "layer"},
	TopicFileStructure: {"directory", "folder", "file", "package", "layout", "structure"},
	TopicPatterns:      {"pattern", "convention", "idiom", "style", "approach"},
	TopicDependencies:  {"dependency", "library", "package", "import", "module", "require"},
	TopicDeployment:    {"deploy", "release", "build", "docker", "pipeline", "ci", "cd"},
	TopicDecisions:     {"decide", "decision", "chose", "tradeoff", "rationale", "because"},
	TopicRecentChanges: {"changed", "updated", "refactor", "fix", "added", "removed"},
	TopicKnownIssues:   {"bug", "issue", "error", "fail", "broken", "todo", "fixme"},
}

// Turn is one rendered question/answer pair for a topic.
type Turn struct {
	Topic     Topic
	Question  string
	Answer    string
	Timestamp *event.ParsedEvent // latest-contributing event, for ordering downstream
}

// Synthesize classifies, dedupes, and orders chunks into narrative turns.
func Synthesize(chunks []event.Chunk) []Turn {
	byTopic := classify(chunks)

	var turns []Turn
	for _, topic := range narrativeOrder {
		group, ok := byTopic[topic]
		if !ok || len(group) == 0 {
			continue
		}
		group = dedupe(group)
		group = resolveContradictions(group)
		turns = append(turns, render(topic, group))
	}
	return turns
}

func classify(chunks []event.Chunk) map[Topic][]event.Chunk {
	out := make(map[Topic][]event.Chunk)
	for _, c := range chunks {
		topic := bestTopic(c)
		out[topic] = append(out[topic], c)
	}
	return out
}

func bestTopic(c event.Chunk) Topic {
	text := strings.ToLower(chunkText(c))

	best := TopicOverview
	bestScore := -1
	for _, topic := range narrativeOrder {
		score := 0
		for _, kw := range topicKeywords[topic] {
			score += strings.Count(text, kw)
		}
		if score > bestScore {
			bestScore = score
			best = topic
		}
	}
	return best
}

func chunkText(c event.Chunk) string {
	var b strings.Builder
	for i, ev := range c.Events {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(ev.Content)
	}
	return b.String()
}

// dedupe drops chunks whose tokenized content is >= 0.6 Jaccard-similar to
// an already-kept chunk in the same topic group.
func dedupe(chunks []event.Chunk) []event.Chunk {
	var kept []event.Chunk
	var keptTokens []map[string]struct{}

	for _, c := range chunks {
		tokens := tokenSet(chunkText(c))
		dup := false
		for _, k := range keptTokens {
			if jaccard(tokens, k) >= 0.6 {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, c)
			keptTokens = append(keptTokens, tokens)
		}
	}
	return kept
}

func tokenSet(text string) map[string]struct{} {
	fields := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1
	}
	intersection := 0
	for k := range a {
		if _, ok := b[k]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// resolveContradictions orders chunks by their latest event timestamp,
// newest first. It does not detect contradictions between chunks and drops
// none of them: every chunk that survived dedupe is kept.
func resolveContradictions(chunks []event.Chunk) []event.Chunk {
	// Already deduped for near-identical content; remaining entries are
	// distinct enough to all survive. Sort by latest timestamp descending so
	// downstream rendering reflects the most current information first
	// within the topic group.
	sorted := make([]event.Chunk, len(chunks))
	copy(sorted, chunks)
	sort.SliceStable(sorted, func(i, j int) bool {
		ti, tj := latestTimestamp(sorted[i]), latestTimestamp(sorted[j])
		if ti == nil || tj == nil {
			return false
		}
		return ti.Timestamp.After(*tj.Timestamp)
	})
	return sorted
}

func latestTimestamp(c event.Chunk) *event.ParsedEvent {
	var latest *event.ParsedEvent
	for i := range c.Events {
		ev := &c.Events[i]
		if ev.Timestamp == nil {
			continue
		}
		if latest == nil || ev.Timestamp.After(*latest.Timestamp) {
			latest = ev
		}
	}
	return latest
}

func render(topic Topic, chunks []event.Chunk) Turn {
	var answer strings.Builder
	for i, c := range chunks {
		if i > 0 {
			answer.WriteString("\n\n")
		}
		answer.WriteString(chunkText(c))
	}

	var ts *event.ParsedEvent
	for _, c := range chunks {
		if t := latestTimestamp(c); t != nil {
			ts = t
			break
		}
	}

	return Turn{
		Topic:     topic,
		Question:  questionFor(topic),
		Answer:    answer.String(),
		Timestamp: ts,
	}
}

func questionFor(topic Topic) string {
	switch topic {
	case TopicOverview:
		return "Can you give me an overview of this project?"
	case TopicArchitecture:
		return "What's the architecture of this codebase?"
	case TopicFileStructure:
		return "How is the codebase organized?"
	case TopicPatterns:
		return "What patterns and conventions does this codebase follow?"
	case TopicDependencies:
		return "What are the key dependencies this project relies on?"
	case TopicDeployment:
		return "How is this project built and deployed?"
	case TopicDecisions:
		return "What important decisions were made and why?"
	case TopicRecentChanges:
		return "What has changed recently?"
	case TopicKnownIssues:
		return "Are there any known issues or open bugs?"
	default:
		return "What else should I know?"
	}
}
