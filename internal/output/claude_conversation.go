package output

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/ronaldeddings/unified-agent/internal/event"
	"github.com/ronaldeddings/unified-agent/internal/synth"
)

type claudeRecord struct {
	UUID        string         `json:"uuid"`
	ParentUUID  *string        `json:"parentUuid"`
	SessionID   string         `json:"sessionId"`
	CWD         string         `json:"cwd"`
	Timestamp   string         `json:"timestamp"`
	Version     string         `json:"version"`
	GitBranch   string         `json:"gitBranch"`
	IsSidechain bool           `json:"isSidechain"`
	UserType    string         `json:"userType"`
	Type        string         `json:"type"`
	Message     map[string]any `json:"message"`
}

// GenerateClaudeConversation emits a newline-delimited Claude-native session
// transcript: a preamble user/assistant pair, then one Q&A pair per
// synthesized topic (or per chunk when turns is empty).
func GenerateClaudeConversation(ds event.DistilledSession, turns []synth.Turn, path string, opts Options) (string, error) {
	branch := currentBranch(opts.CWD)
	walker := newTimestampWalker()

	var records []any
	var parent *string

	appendTurn := func(role event.Role, message map[string]any) string {
		id := uuid.NewString()
		rec := claudeRecord{
			UUID:        id,
			ParentUUID:  parent,
			SessionID:   opts.SessionID,
			CWD:         opts.CWD,
			Timestamp:   walker.next(role).Format("2006-01-02T15:04:05.000Z"),
			Version:     opts.Version,
			GitBranch:   branch,
			IsSidechain: false,
			UserType:    "external",
			Type:        string(role),
			Message:     message,
		}
		records = append(records, rec)
		return id
	}

	userMsg := func(text string) map[string]any {
		return map[string]any{"role": "user", "content": text}
	}
	assistantMsg := func(text string) map[string]any {
		return map[string]any{
			"model": opts.Model, "id": "msg_" + uuid.NewString(), "type": "message",
			"role": "assistant", "content": []any{map[string]any{"type": "text", "text": text}},
			"stop_reason": "end_turn", "stop_sequence": nil,
			"usage": map[string]any{
				"input_tokens": ds.TotalTokens, "output_tokens": 0, "service_tier": "standard",
			},
		}
	}

	id := appendTurn(event.RoleUser, userMsg("Summarize the distilled build for this project."))
	parent = &id
	id = appendTurn(event.RoleAssistant, assistantMsg(overviewText(ds)))
	parent = &id

	for _, pair := range pairsFromTurns(ds, turns) {
		id = appendTurn(event.RoleUser, userMsg(pair.question))
		parent = &id
		id = appendTurn(event.RoleAssistant, assistantMsg(pair.answer))
		parent = &id
	}

	return writeNDJSON(path, records)
}

func overviewText(ds event.DistilledSession) string {
	return fmt.Sprintf(
		"This is a distilled build of %d prior session(s) across %v, covering %d chunks (%d tokens). %d chunks were dropped during distillation.",
		len(ds.SourceSessionIDs), ds.SourcePlatforms, len(ds.Chunks), ds.TotalTokens, ds.DroppedChunks,
	)
}
