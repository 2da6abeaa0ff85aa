package parser

import (
	"io"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/ronaldeddings/unified-agent/internal/event"
)

// Claude parses Claude Code's newline-delimited session JSONL format.
type Claude struct{}

func NewClaude() *Claude { return &Claude{} }

func (Claude) Platform() event.Platform { return event.PlatformClaude }

func (Claude) Detect(filePath string) bool {
	return strings.Contains(filePath, ".claude") && strings.HasSuffix(filePath, ".jsonl")
}

func (c Claude) Parse(source io.Reader, emit func(event.ParsedEvent)) error {
	return scanLines(source, func(line string) {
		if ev, ok := parseClaudeRecord(line); ok {
			emit(ev)
		}
	})
}

func parseClaudeRecord(line string) (event.ParsedEvent, bool) {
	if !gjson.Valid(line) {
		return event.ParsedEvent{}, false
	}
	root := gjson.Parse(line)
	typ := root.Get("type").String()

	switch typ {
	case "assistant":
		return parseClaudeAssistant(root), true
	case "user":
		return parseClaudeUser(root), true
	case "system":
		return event.ParsedEvent{
			Type:     "system",
			Role:     event.RoleSystem,
			Content:  root.Get("content").String(),
			Metadata: map[string]any{},
			Raw:      line,
		}, true
	case "summary":
		meta := map[string]any{}
		if sub := root.Get("summary.subtype"); sub.Exists() {
			meta["subtype"] = sub.String()
		}
		return event.ParsedEvent{
			Type:     "summary",
			Content:  root.Get("summary").Raw,
			Metadata: meta,
			Raw:      line,
		}, true
	case "":
		return event.ParsedEvent{}, false
	default:
		return event.ParsedEvent{
			Type:    typ,
			Content: line,
			Raw:     line,
		}, true
	}
}

func parseClaudeAssistant(root gjson.Result) event.ParsedEvent {
	blocks := root.Get("message.content")
	var text strings.Builder
	var toolName string
	var toolInput any
	var toolCalls []event.ToolCall

	if blocks.IsArray() {
		blocks.ForEach(func(_, block gjson.Result) bool {
			switch block.Get("type").String() {
			case "text":
				if text.Len() > 0 {
					text.WriteString("\n")
				}
				text.WriteString(block.Get("text").String())
			case "tool_use":
				name := block.Get("name").String()
				input := jsonValue(block.Get("input"))
				toolCalls = append(toolCalls, event.ToolCall{Name: name, Input: input})
				if toolName == "" {
					toolName = name
					toolInput = input
				}
			}
			return true
		})
	} else if blocks.Type == gjson.String {
		text.WriteString(blocks.String())
	}

	meta := map[string]any{}
	if len(toolCalls) > 0 {
		meta["toolCalls"] = toolCalls
	}

	return event.ParsedEvent{
		Type:      "assistant",
		Role:      event.RoleAssistant,
		Content:   text.String(),
		ToolName:  toolName,
		ToolInput: toolInput,
		Metadata:  meta,
		Raw:       root.Raw,
	}
}

func parseClaudeUser(root gjson.Result) event.ParsedEvent {
	blocks := root.Get("message.content")

	if blocks.IsArray() {
		var toolResult *gjson.Result
		blocks.ForEach(func(_, block gjson.Result) bool {
			if block.Get("type").String() == "tool_result" {
				b := block
				toolResult = &b
				return false
			}
			return true
		})
		if toolResult != nil {
			return event.ParsedEvent{
				Type:       "tool_result",
				Role:       event.RoleTool,
				Content:    toolResultText(*toolResult),
				ToolOutput: toolResultText(*toolResult),
				IsError:    toolResult.Get("is_error").Bool(),
				Raw:        root.Raw,
			}
		}
		var text strings.Builder
		blocks.ForEach(func(_, block gjson.Result) bool {
			if block.Get("type").String() == "text" {
				if text.Len() > 0 {
					text.WriteString("\n")
				}
				text.WriteString(block.Get("text").String())
			}
			return true
		})
		return event.ParsedEvent{
			Type:    "user",
			Role:    event.RoleUser,
			Content: text.String(),
			Raw:     root.Raw,
		}
	}

	// message.content as a bare string.
	content := blocks.String()
	if content == "" {
		content = root.Get("message").String()
	}
	return event.ParsedEvent{
		Type:    "user",
		Role:    event.RoleUser,
		Content: content,
		Raw:     root.Raw,
	}
}

func toolResultText(block gjson.Result) string {
	content := block.Get("content")
	if content.Type == gjson.String {
		return content.String()
	}
	if content.IsArray() {
		var sb strings.Builder
		content.ForEach(func(_, part gjson.Result) bool {
			if part.Get("type").String() == "text" {
				if sb.Len() > 0 {
					sb.WriteString("\n")
				}
				sb.WriteString(part.Get("text").String())
			}
			return true
		})
		return sb.String()
	}
	return content.Raw
}

func jsonValue(r gjson.Result) any {
	if !r.Exists() {
		return nil
	}
	return r.Value()
}
