package parser

import (
	"io"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/ronaldeddings/unified-agent/internal/event"
)

// Gemini parses the Gemini CLI's session format, which may be a single JSON
// array document or newline-delimited JSON records.
type Gemini struct{}

func NewGemini() *Gemini { return &Gemini{} }

func (Gemini) Platform() event.Platform { return event.PlatformGemini }

func (Gemini) Detect(filePath string) bool {
	return strings.Contains(filePath, ".gemini") && strings.HasSuffix(filePath, ".json")
}

func (g Gemini) Parse(source io.Reader, emit func(event.ParsedEvent)) error {
	data, err := io.ReadAll(source)
	if err != nil {
		return err
	}
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return nil
	}

	if trimmed[0] == '[' {
		gjson.Parse(trimmed).ForEach(func(_, rec gjson.Result) bool {
			if ev, ok := parseGeminiRecord(rec); ok {
				emit(ev)
			}
			return true
		})
		return nil
	}

	return scanLines(strings.NewReader(trimmed), func(line string) {
		if !gjson.Valid(line) {
			return
		}
		if ev, ok := parseGeminiRecord(gjson.Parse(line)); ok {
			emit(ev)
		}
	})
}

func parseGeminiRecord(rec gjson.Result) (event.ParsedEvent, bool) {
	if !rec.Exists() {
		return event.ParsedEvent{}, false
	}

	// Secondary typed shape: {type: message|tool_call|tool_use|tool_result, ...}
	if typ := rec.Get("type").String(); typ != "" {
		switch typ {
		case "message":
			return event.ParsedEvent{
				Type:    "message",
				Role:    geminiRole(rec.Get("role").String()),
				Content: rec.Get("content").String(),
				Raw:     rec.Raw,
			}, true
		case "tool_call", "tool_use":
			return event.ParsedEvent{
				Type:      "tool_call",
				Role:      event.RoleAssistant,
				ToolName:  rec.Get("name").String(),
				ToolInput: jsonValue(rec.Get("args")),
				Content:   rec.Get("args").Raw,
				Raw:       rec.Raw,
			}, true
		case "tool_result":
			return event.ParsedEvent{
				Type:       "tool_result",
				Role:       event.RoleTool,
				ToolOutput: rec.Get("result").String(),
				Content:    rec.Get("result").String(),
				Raw:        rec.Raw,
			}, true
		}
	}

	role := rec.Get("role").String()
	if role == "" {
		return event.ParsedEvent{Type: "unknown", Content: rec.Raw, Raw: rec.Raw}, true
	}

	parts := rec.Get("content.parts")
	if !parts.Exists() {
		parts = rec.Get("parts")
	}

	var text strings.Builder
	var toolName string
	var toolInput any
	emitted := false
	var outType = "message"

	if parts.IsArray() {
		parts.ForEach(func(_, part gjson.Result) bool {
			if fc := part.Get("functionCall"); fc.Exists() {
				toolName = fc.Get("name").String()
				toolInput = jsonValue(fc.Get("args"))
				outType = "tool_call"
				emitted = true
				return true
			}
			if fr := part.Get("functionResponse"); fr.Exists() {
				outType = "tool_result"
				toolName = fr.Get("name").String()
				if text.Len() > 0 {
					text.WriteString("\n")
				}
				text.WriteString(fr.Get("response").Raw)
				emitted = true
				return true
			}
			if t := part.Get("text"); t.Exists() {
				if text.Len() > 0 {
					text.WriteString("\n")
				}
				text.WriteString(t.String())
			}
			return true
		})
	}
	_ = emitted

	ev := event.ParsedEvent{
		Type:      outType,
		Role:      geminiRole(role),
		Content:   text.String(),
		ToolName:  toolName,
		ToolInput: toolInput,
		Raw:       rec.Raw,
	}
	if outType == "tool_result" {
		ev.Role = event.RoleTool
		ev.ToolOutput = text.String()
	}
	return ev, true
}

func geminiRole(r string) event.Role {
	switch r {
	case "model":
		return event.RoleAssistant
	case "user":
		return event.RoleUser
	case "system":
		return event.RoleSystem
	default:
		return ""
	}
}
