package domain

import (
	"time"

	"github.com/google/uuid"
)

// ResolvedValue is the materialized current value for one (entity, field)
// pair. It is derived state: replaying resolution over the assertion store
// must always reproduce it.
type ResolvedValue struct {
	EntityID    uuid.UUID `json:"entity_id"`
	Field       string    `json:"field"`
	Value       any       `json:"value"`
	AssertionID uuid.UUID `json:"assertion_id"`
	ResolvedAt  time.Time `json:"resolved_at"`
}
