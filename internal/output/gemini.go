package output

import "github.com/ronaldeddings/unified-agent/internal/event"

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role"`
	Parts []geminiPart `json:"parts"`
}

type geminiDoc struct {
	Metadata map[string]any  `json:"metadata"`
	Contents []geminiContent `json:"contents"`
}

func geminiRole(r event.Role) string {
	if r == event.RoleAssistant {
		return "model"
	}
	return "user"
}

// GenerateGemini emits the Gemini-native single JSON document: consecutive
// same-role events inside a chunk are merged into one parts entry, but a
// chunk boundary always starts a fresh content entry.
func GenerateGemini(ds event.DistilledSession, path string, _ Options) (string, error) {
	doc := geminiDoc{
		Metadata: map[string]any{
			"sourceSessionIds": ds.SourceSessionIDs,
			"sourcePlatforms":  ds.SourcePlatforms,
			"chunkCount":       len(ds.Chunks),
			"totalTokens":      ds.TotalTokens,
			"distilledAt":      ds.DistilledAt.Format("2006-01-02T15:04:05.000Z"),
		},
	}

	for _, c := range ds.Chunks {
		var contents []geminiContent
		for _, ev := range c.Events {
			role := geminiRole(ev.Role)
			if len(contents) > 0 && contents[len(contents)-1].Role == role {
				last := &contents[len(contents)-1]
				last.Parts[0].Text += "\n" + ev.Content
				continue
			}
			contents = append(contents, geminiContent{Role: role, Parts: []geminiPart{{Text: ev.Content}}})
		}
		doc.Contents = append(doc.Contents, contents...)
	}

	return writeJSON(path, doc)
}
