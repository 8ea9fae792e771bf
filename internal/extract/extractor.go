// Package extract turns raw evidence payloads into typed field candidates.
// One extractor exists per source kind; payload shapes are the contract
// with the upstream collaborators (scrapers, transcription jobs, edit
// forms) and are documented on each implementation.
package extract

import (
	"fmt"

	"github.com/shelfware/veridict/internal/domain"
)

// Candidate is one (field, value) claim produced from a payload, tagged
// with the method that produced it.
type Candidate struct {
	Field  string
	Value  any
	Method domain.Method
}

// Extractor derives candidates from one evidence payload. Implementations
// must be pure: no I/O, no retained state, so extraction can be retried
// and replayed freely.
type Extractor interface {
	Extract(payload map[string]any) ([]Candidate, error)
}

// ForKind returns the extractor for a source kind.
func ForKind(kind domain.SourceKind) (Extractor, error) {
	switch kind {
	case domain.SourceKindScrape:
		return &FieldMapExtractor{Method: domain.MethodScrapeParse}, nil
	case domain.SourceKindCatalog:
		return &FieldMapExtractor{Method: domain.MethodCatalogImport}, nil
	case domain.SourceKindTranscription:
		return &FieldMapExtractor{Method: domain.MethodAudioTranscription}, nil
	case domain.SourceKindHuman:
		return &HumanEditExtractor{}, nil
	default:
		return nil, fmt.Errorf("unknown source kind: %s (valid options: scrape, catalog, transcription, human)", kind)
	}
}
