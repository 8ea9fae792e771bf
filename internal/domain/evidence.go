package domain

import (
	"time"

	"github.com/google/uuid"
)

// EvidenceEvent is one raw report received from a source. Events are
// immutable and never deleted; if the referenced entity is removed the
// event survives with EntityID cleared.
type EvidenceEvent struct {
	ID         uuid.UUID      `json:"id"`
	SourceID   uuid.UUID      `json:"source_id"`
	EntityID   *uuid.UUID     `json:"entity_id,omitempty"`
	RawPayload map[string]any `json:"raw_payload"`
	CreatedAt  time.Time      `json:"created_at"`
}
