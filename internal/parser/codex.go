package parser

import (
	"io"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/ronaldeddings/unified-agent/internal/event"
)

// Codex parses the Codex CLI's newline-delimited session JSONL format.
type Codex struct{}

func NewCodex() *Codex { return &Codex{} }

func (Codex) Platform() event.Platform { return event.PlatformCodex }

func (Codex) Detect(filePath string) bool {
	return strings.Contains(filePath, ".codex") && strings.HasSuffix(filePath, ".jsonl")
}

func (c Codex) Parse(source io.Reader, emit func(event.ParsedEvent)) error {
	return scanLines(source, func(line string) {
		if ev, ok := parseCodexRecord(line); ok {
			emit(ev)
		}
	})
}

func parseCodexRecord(line string) (event.ParsedEvent, bool) {
	if !gjson.Valid(line) {
		return event.ParsedEvent{}, false
	}
	root := gjson.Parse(line)
	typ := root.Get("type").String()

	switch typ {
	case "item.completed":
		return parseCodexItem(root), true
	case "turn.completed":
		meta := map[string]any{
			"model":        root.Get("usage.model").String(),
			"inputTokens":  root.Get("usage.input_tokens").Int(),
			"outputTokens": root.Get("usage.output_tokens").Int(),
		}
		return event.ParsedEvent{
			Type:     "usage",
			Metadata: meta,
			Raw:      line,
		}, true
	case "":
		return event.ParsedEvent{}, false
	default:
		return event.ParsedEvent{Type: typ, Content: line, Raw: line}, true
	}
}

func parseCodexItem(root gjson.Result) event.ParsedEvent {
	item := root.Get("item")
	itemType := item.Get("type").String()

	switch itemType {
	case "command_execution", "function_call":
		name := item.Get("name").String()
		status := item.Get("status").String()
		return event.ParsedEvent{
			Type:       "tool_use",
			Role:       event.RoleTool,
			Content:    codexOutputText(item),
			ToolName:   name,
			ToolInput:  jsonValue(item.Get("arguments")),
			ToolOutput: codexOutputText(item),
			IsError:    status == "failed",
			Raw:        root.Raw,
		}
	case "reasoning":
		return event.ParsedEvent{
			Type:    "assistant",
			Role:    event.RoleAssistant,
			Content: codexContentText(item),
			Raw:     root.Raw,
		}
	default:
		role := item.Get("role").String()
		switch role {
		case "assistant":
			return event.ParsedEvent{
				Type:    "assistant",
				Role:    event.RoleAssistant,
				Content: codexContentText(item),
				Raw:     root.Raw,
			}
		case "user":
			return event.ParsedEvent{
				Type:    "user",
				Role:    event.RoleUser,
				Content: codexContentText(item),
				Raw:     root.Raw,
			}
		default:
			return event.ParsedEvent{Type: itemType, Content: item.Raw, Raw: root.Raw}
		}
	}
}

func codexOutputText(item gjson.Result) string {
	out := item.Get("output")
	if out.Type == gjson.String {
		return out.String()
	}
	if out.IsArray() {
		return codexJoinTextBlocks(out)
	}
	return out.Raw
}

func codexContentText(item gjson.Result) string {
	content := item.Get("content")
	if content.Type == gjson.String {
		return content.String()
	}
	if content.IsArray() {
		return codexJoinTextBlocks(content)
	}
	return item.Get("text").String()
}

func codexJoinTextBlocks(arr gjson.Result) string {
	var sb strings.Builder
	arr.ForEach(func(_, part gjson.Result) bool {
		text := part.Get("text")
		if !text.Exists() && part.Type == gjson.String {
			text = part
		}
		if text.Exists() {
			if sb.Len() > 0 {
				sb.WriteString("\n")
			}
			sb.WriteString(text.String())
		}
		return true
	})
	return sb.String()
}
