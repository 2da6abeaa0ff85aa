package output

import "github.com/ronaldeddings/unified-agent/internal/event"

type codexMetaRecord struct {
	Type            string           `json:"type"`
	Version         int              `json:"version"`
	SourceSessionID []string         `json:"sourceSessionIds"`
	SourcePlatforms []event.Platform `json:"sourcePlatforms"`
	ChunkCount      int              `json:"chunkCount"`
	TotalTokens     int              `json:"totalTokens"`
	DistilledAt     string           `json:"distilledAt"`
}

type codexContextRecord struct {
	Type     string         `json:"type"`
	Role     string         `json:"role"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// GenerateCodex emits the Codex-native NDJSON shape: a metadata header
// followed by one context record per chunk.
func GenerateCodex(ds event.DistilledSession, path string, _ Options) (string, error) {
	header := codexMetaRecord{
		Type:            "metadata",
		Version:         1,
		SourceSessionID: ds.SourceSessionIDs,
		SourcePlatforms: ds.SourcePlatforms,
		ChunkCount:      len(ds.Chunks),
		TotalTokens:     ds.TotalTokens,
		DistilledAt:     ds.DistilledAt.Format("2006-01-02T15:04:05.000Z"),
	}

	records := []any{header}
	for _, c := range ds.Chunks {
		records = append(records, codexContextRecord{
			Type:    "context",
			Role:    "assistant",
			Content: concatEvents(c),
			Metadata: map[string]any{
				"chunkId":       c.ID,
				"sessionId":     c.SessionID,
				"importanceAvg": c.ImportanceAvg,
				"tokenEstimate": c.TokenEstimate,
				"startIndex":    c.StartIndex,
				"endIndex":      c.EndIndex,
			},
		})
	}

	return writeNDJSON(path, records)
}
