package domain

import (
	"context"

	"github.com/google/uuid"
)

type SourceStore interface {
	Create(ctx context.Context, s *Source) error
	GetByID(ctx context.Context, id uuid.UUID) (*Source, error)
	GetByName(ctx context.Context, name string) (*Source, error)
	UpdateModifier(ctx context.Context, id uuid.UUID, modifier float64) error
}

type EvidenceStore interface {
	Create(ctx context.Context, e *EvidenceEvent) error
	GetByID(ctx context.Context, id uuid.UUID) (*EvidenceEvent, error)
	ListByEntity(ctx context.Context, entityID uuid.UUID) ([]EvidenceEvent, error)
	// ClearEntity nulls the entity reference on every event for the entity,
	// preserving the events themselves as provenance.
	ClearEntity(ctx context.Context, entityID uuid.UUID) (int64, error)
}

type AssertionStore interface {
	Create(ctx context.Context, a *Assertion) error
	GetByID(ctx context.Context, id uuid.UUID) (*Assertion, error)
	// ExistsActiveDuplicate reports whether an active assertion already
	// exists for the ingestion dedup key.
	ExistsActiveDuplicate(ctx context.Context, entityID uuid.UUID, field, fingerprint string, sourceID uuid.UUID, method Method) (bool, error)
	ListActiveByPair(ctx context.Context, entityID uuid.UUID, field string) ([]Assertion, error)
	// ListByPair returns the full active+inactive history, newest first.
	ListByPair(ctx context.Context, entityID uuid.UUID, field string) ([]Assertion, error)
	ListFieldsByEntity(ctx context.Context, entityID uuid.UUID) ([]string, error)
	Deactivate(ctx context.Context, id uuid.UUID) error
	// ClearEntity deactivates the entity's assertions and nulls their entity
	// reference, keeping them for audit.
	ClearEntity(ctx context.Context, entityID uuid.UUID) (int64, error)
}

type ResolvedValueStore interface {
	Upsert(ctx context.Context, rv *ResolvedValue) error
	GetByPair(ctx context.Context, entityID uuid.UUID, field string) (*ResolvedValue, error)
	GetAllByEntity(ctx context.Context, entityID uuid.UUID) ([]ResolvedValue, error)
	// Delete removes the cache row for a pair; deleting an absent row is not
	// an error.
	Delete(ctx context.Context, entityID uuid.UUID, field string) error
	DeleteByEntity(ctx context.Context, entityID uuid.UUID) (int64, error)
}
