package domain

import (
	"time"

	"github.com/google/uuid"
)

// SourceKind selects the extraction policy applied to a source's payloads.
type SourceKind string

const (
	SourceKindScrape        SourceKind = "scrape"
	SourceKindTranscription SourceKind = "transcription"
	SourceKindCatalog       SourceKind = "catalog"
	SourceKindHuman         SourceKind = "human"
)

func ValidSourceKind(k string) bool {
	switch SourceKind(k) {
	case SourceKindScrape, SourceKindTranscription, SourceKindCatalog, SourceKindHuman:
		return true
	}
	return false
}

// OperatorSourceName is the reserved source that owns human overrides
// submitted through the audit API.
const OperatorSourceName = "operator"

// DefaultModifier is the baseline trust multiplier for a new source.
const DefaultModifier = 1.0

// Source is a registered producer of evidence. Sources are permanent
// provenance identifiers and are never deleted.
type Source struct {
	ID              uuid.UUID  `json:"id"`
	Name            string     `json:"name"`
	Kind            SourceKind `json:"kind"`
	DefaultModifier float64    `json:"default_modifier"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
