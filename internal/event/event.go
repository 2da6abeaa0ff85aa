// Package event defines the canonical shapes that flow through every stage
// of the distillation pipeline: parsed session records, scored runtime
// events, chunks, assessments, and the final distilled session artifacts.
package event

import "time"

// Role identifies who produced an event. The empty role is valid for
// records the parsers could not classify.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Platform identifies the originating coding-assistant CLI.
type Platform string

const (
	PlatformClaude Platform = "claude"
	PlatformCodex  Platform = "codex"
	PlatformGemini Platform = "gemini"
)

// ToolCall records one tool invocation embedded in an assistant turn.
type ToolCall struct {
	Name   string `json:"name"`
	Input  any    `json:"input,omitempty"`
	Output any    `json:"output,omitempty"`
}

// ParsedEvent is the immutable output of a platform parser (C2). Once
// emitted it is never mutated; later pipeline stages wrap it rather than
// editing it in place.
type ParsedEvent struct {
	Type       string         `json:"type"`
	Role       Role           `json:"role,omitempty"`
	Content    string         `json:"content"`
	Timestamp  *time.Time     `json:"timestamp,omitempty"`
	ToolName   string         `json:"toolName,omitempty"`
	ToolInput  any            `json:"toolInput,omitempty"`
	ToolOutput string         `json:"toolOutput,omitempty"`
	IsError    bool           `json:"isError,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Raw        string         `json:"raw,omitempty"`
}

// CanonicalEvent extends ParsedEvent with the fields the persistence path
// attaches: a real-time importance score, chunk membership once chunked,
// consensus once assessed, and provenance back to the source session.
type CanonicalEvent struct {
	ParsedEvent

	ImportanceScore  *int       `json:"importanceScore,omitempty"`
	ChunkID          string     `json:"chunkId,omitempty"`
	ConsensusScore   *float64   `json:"consensusScore,omitempty"`
	SourceSessionID  string     `json:"sourceSessionId,omitempty"`
	SourcePlatform   Platform   `json:"sourcePlatform,omitempty"`
	ToolCalls        []ToolCall `json:"toolCalls,omitempty"`
}

// Chunk is a bounded, ordered group of events used as the atomic unit of
// assessment and selection. A chunk is created once by the chunker (C7) and
// never mutated afterwards; re-running a build upserts chunk rows by id.
type Chunk struct {
	ID             string        `json:"id"`
	SessionID      string        `json:"sessionId"`
	Events         []ParsedEvent `json:"events"`
	StartIndex     int           `json:"startIndex"`
	EndIndex       int           `json:"endIndex"`
	ImportanceAvg  float64       `json:"importanceAvg"`
	TokenEstimate  int           `json:"tokenEstimate"`
	SourcePlatform Platform      `json:"sourcePlatform,omitempty"`
}

// Provider identifies an assessing coding-assistant CLI.
type Provider string

const (
	ProviderClaude Provider = "claude"
	ProviderCodex  Provider = "codex"
	ProviderGemini Provider = "gemini"
)

// Assessment is one provider's rating of one chunk.
type Assessment struct {
	ID        string    `json:"id"`
	ChunkID   string    `json:"chunkId"`
	Provider  Provider  `json:"provider"`
	Score     int       `json:"score"` // 1..10
	Rationale string    `json:"rationale"`
	Model     string    `json:"model,omitempty"`
	TokensUsed int      `json:"tokensUsed,omitempty"`
	LatencyMs int64     `json:"latencyMs"`
	CreatedAt time.Time `json:"createdAt"`
}

// Rating is the wire shape a provider's CLI is asked to emit. The
// question-aware variant swaps Relevance->ContextValue and
// Reusability->QuestionRelevance; both are carried on the same struct with
// the unused field left nil so callers don't need two near-identical types.
type Rating struct {
	Relevance         *int   `json:"relevance,omitempty"`
	SignalDensity     *int   `json:"signalDensity,omitempty"`
	Reusability       *int   `json:"reusability,omitempty"`
	ContextValue      *int   `json:"contextValue,omitempty"`
	QuestionRelevance *int   `json:"questionRelevance,omitempty"`
	OverallScore      *int   `json:"overallScore,omitempty"`
	Rationale         string `json:"rationale"`
}

// SyncQueueEntry is one row of the local write-ahead queue backing the
// defensive memory wrapper (C14).
type SyncQueueEntry struct {
	ID        int64      `json:"id"`
	Operation string     `json:"operation"`
	Payload   string     `json:"payload"`
	CreatedAt time.Time  `json:"createdAt"`
	SyncedAt  *time.Time `json:"syncedAt,omitempty"`
}

// DistilledSession is a selected, chronologically-ordered chunk set fitting
// within a token budget, ready to be serialized as a replayable session
// file by an output generator (C17).
type DistilledSession struct {
	SourceSessionIDs  []string   `json:"sourceSessionIds"`
	SourcePlatforms   []Platform `json:"sourcePlatforms"`
	Chunks            []Chunk    `json:"chunks"`
	TotalTokens       int        `json:"totalTokens"`
	DroppedChunks     int        `json:"droppedChunks"`
	DistilledAt       time.Time  `json:"distilledAt"`
}

// SearchStats reports the provenance of a question-driven distillation.
type SearchStats struct {
	FTSMatches      int `json:"ftsMatches"`
	MemoryMatches   int `json:"memoryMatches"`
	TotalCandidates int `json:"totalCandidates"`
	AfterReRank     int `json:"afterReRank"`
}

// QueryDistillResult extends DistilledSession with the question that drove
// the search and the resulting search statistics.
type QueryDistillResult struct {
	DistilledSession
	Question    string      `json:"question"`
	SearchStats SearchStats `json:"searchStats"`
}

// ScannedSession describes one on-disk session file discovered by the
// scanner (C4), keyed uniquely by FilePath.
type ScannedSession struct {
	Platform    Platform  `json:"platform"`
	FilePath    string    `json:"filePath"`
	FileSize    int64     `json:"fileSize"`
	ModifiedAt  time.Time `json:"modifiedAt"`
	SessionID   string    `json:"sessionId,omitempty"`
}
