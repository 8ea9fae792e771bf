package extract

import (
	"sort"

	"github.com/shelfware/veridict/internal/domain"
)

// FieldMapExtractor handles the shared payload shape of automated sources
// (scrapers, catalog feeds, transcription jobs):
//
//	{"fields": {"title": "Mistborn", "author": "Brandon Sanderson", ...}}
//
// Every entry under "fields" becomes one candidate tagged with the
// extractor's method. Entries with empty keys or nil values are skipped.
type FieldMapExtractor struct {
	Method domain.Method
}

func (e *FieldMapExtractor) Extract(payload map[string]any) ([]Candidate, error) {
	fields, ok := payload["fields"].(map[string]any)
	if !ok || len(fields) == 0 {
		return nil, nil
	}

	// Sorted for deterministic candidate order across retries.
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	var candidates []Candidate
	for _, name := range names {
		value := fields[name]
		if name == "" || value == nil {
			continue
		}
		candidates = append(candidates, Candidate{
			Field:  name,
			Value:  value,
			Method: e.Method,
		})
	}
	return candidates, nil
}
