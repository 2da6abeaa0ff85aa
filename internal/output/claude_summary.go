package output

import (
	"fmt"

	"github.com/ronaldeddings/unified-agent/internal/event"
)

type claudeSummaryHeader struct {
	Type            string           `json:"type"`
	IsSidechain     bool             `json:"is_sidechain"`
	CompactBoundary bool             `json:"compact_boundary"`
	SourceSessionID []string         `json:"sourceSessionIds"`
	SourcePlatforms []event.Platform `json:"sourcePlatforms"`
	TotalTokens     int              `json:"totalTokens"`
	ChunkCount      int              `json:"chunkCount"`
	DistilledAt     string           `json:"distilledAt"`
}

type claudeSummaryRecord struct {
	Type     string         `json:"type"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// GenerateClaudeSummary emits the compact alternative to the full
// conversation: one header record plus one summary/assistant record per
// chunk, independent of topic synthesis.
func GenerateClaudeSummary(ds event.DistilledSession, path string, _ Options) (string, error) {
	header := claudeSummaryHeader{
		Type:            "summary/system/compact_boundary",
		IsSidechain:     true,
		CompactBoundary: true,
		SourceSessionID: ds.SourceSessionIDs,
		SourcePlatforms: ds.SourcePlatforms,
		TotalTokens:     ds.TotalTokens,
		ChunkCount:      len(ds.Chunks),
		DistilledAt:     ds.DistilledAt.Format("2006-01-02T15:04:05.000Z"),
	}

	records := []any{header}
	for _, c := range ds.Chunks {
		records = append(records, claudeSummaryRecord{
			Type:    "summary/assistant",
			Content: fmt.Sprintf("<system-reminder>%s</system-reminder>", concatEvents(c)),
			Metadata: map[string]any{
				"chunkId":       c.ID,
				"startIndex":    c.StartIndex,
				"endIndex":      c.EndIndex,
				"importanceAvg": c.ImportanceAvg,
				"tokenEstimate": c.TokenEstimate,
			},
		})
	}

	return writeNDJSON(path, records)
}
