package domain

import (
	"time"

	"github.com/google/uuid"
)

// Method is the technique that produced a candidate value.
type Method string

const (
	MethodScrapeParse        Method = "scrape_parse"
	MethodCatalogImport      Method = "catalog_import"
	MethodAudioTranscription Method = "audio_transcription"
	MethodHumanOverride      Method = "human_override"
)

// fallbackMethodWeight is used for methods missing from the table so a
// misconfigured extractor degrades instead of failing ingestion.
const fallbackMethodWeight = 0.3

// methodWeights is the static baseline confidence per resolution method.
var methodWeights = map[Method]float64{
	MethodScrapeParse:        0.5,
	MethodCatalogImport:      0.7,
	MethodAudioTranscription: 0.9,
	// Informational only: override assertions get the sentinel weight
	// regardless (see service.ComputeWeight).
	MethodHumanOverride: 1.0,
}

// BaseWeight returns the method's baseline confidence. Human overrides
// carry the sentinel weight instead (see service.ComputeWeight).
func (m Method) BaseWeight() float64 {
	if w, ok := methodWeights[m]; ok {
		return w
	}
	return fallbackMethodWeight
}

// Assertion is a structured claim about one field's value, derived from an
// evidence event. Weight inputs are frozen at creation; only IsActive may
// change afterwards. Assertions are soft-deleted, never removed.
type Assertion struct {
	ID               uuid.UUID  `json:"id"`
	EvidenceEventID  uuid.UUID  `json:"evidence_event_id"`
	SourceID         uuid.UUID  `json:"source_id"`
	EntityID         *uuid.UUID `json:"entity_id,omitempty"`
	Field            string     `json:"field"`
	Value            any        `json:"value"`
	ValueFingerprint string     `json:"value_fingerprint"`
	ResolutionMethod Method     `json:"resolution_method"`
	MethodWeight     float64    `json:"method_weight"`
	SourceModifier   float64    `json:"source_modifier"`
	Weight           float64    `json:"weight"`
	IsHumanOverride  bool       `json:"is_human_override"`
	IsActive         bool       `json:"is_active"`
	CreatedAt        time.Time  `json:"created_at"`
}

// AssertionRecord is an assertion annotated for the audit trail.
type AssertionRecord struct {
	Assertion
	IsCurrentWinner bool `json:"is_current_winner"`
}
