// Package assess builds rating prompts for chunks and coordinates
// multi-agent assessment (spec §4.4).
package assess

import (
	"fmt"
	"strings"

	"github.com/ronaldeddings/unified-agent/internal/event"
)

const genericSchemaHint = `Respond with a single JSON object and nothing else:
{"relevance": <1-10>, "signalDensity": <1-10>, "reusability": <1-10>, "overallScore": <1-10>, "rationale": "<one sentence>"}`

const questionSchemaHint = `Respond with a single JSON object and nothing else:
{"questionRelevance": <1-10>, "signalDensity": <1-10>, "contextValue": <1-10>, "overallScore": <1-10>, "rationale": "<one sentence>"}`

// BuildGenericPrompt renders the provider-agnostic rating prompt for a
// chunk: a role/tool-labeled event dump plus the generic rubric.
func BuildGenericPrompt(c event.Chunk) string {
	var b strings.Builder
	b.WriteString("You are assessing a slice of a coding-assistant conversation for how worth keeping it is in a distilled session history.\n\n")
	writeEventDump(&b, c)
	b.WriteString("\nRate this chunk on:\n")
	b.WriteString("- relevance: how central this is to the task's outcome\n")
	b.WriteString("- signalDensity: ratio of decision/code/error content to filler\n")
	b.WriteString("- reusability: how useful this would be to a future session picking up the same task\n\n")
	b.WriteString(genericSchemaHint)
	return b.String()
}

// BuildQuestionPrompt renders the question-aware variant: the header
// includes the user's question and the rubric swaps relevance/reusability
// for questionRelevance/contextValue.
func BuildQuestionPrompt(c event.Chunk, question string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are assessing a slice of a coding-assistant conversation for how useful it is in answering this question:\n%q\n\n", question)
	writeEventDump(&b, c)
	b.WriteString("\nRate this chunk on:\n")
	b.WriteString("- questionRelevance: how directly this helps answer the question above\n")
	b.WriteString("- signalDensity: ratio of decision/code/error content to filler\n")
	b.WriteString("- contextValue: how much background/context this adds even if not a direct answer\n\n")
	b.WriteString(questionSchemaHint)
	return b.String()
}

func writeEventDump(b *strings.Builder, c event.Chunk) {
	for i, ev := range c.Events {
		if i > 0 {
			b.WriteString("---\n")
		}
		label := string(ev.Role)
		if ev.ToolName != "" {
			label = fmt.Sprintf("%s[%s]", label, ev.ToolName)
		}
		fmt.Fprintf(b, "[%s] %s\n", label, ev.Content)
	}
}
