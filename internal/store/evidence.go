package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shelfware/veridict/internal/domain"
)

type EvidenceStore struct {
	db *pgxpool.Pool
}

func NewEvidenceStore(db *pgxpool.Pool) *EvidenceStore {
	return &EvidenceStore{db: db}
}

func (s *EvidenceStore) Create(ctx context.Context, e *domain.EvidenceEvent) error {
	return s.db.QueryRow(ctx,
		`INSERT INTO evidence_events (source_id, entity_id, raw_payload)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at`,
		e.SourceID, e.EntityID, e.RawPayload,
	).Scan(&e.ID, &e.CreatedAt)
}

func (s *EvidenceStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.EvidenceEvent, error) {
	e := &domain.EvidenceEvent{}
	err := s.db.QueryRow(ctx,
		`SELECT id, source_id, entity_id, raw_payload, created_at
		 FROM evidence_events WHERE id = $1`,
		id,
	).Scan(&e.ID, &e.SourceID, &e.EntityID, &e.RawPayload, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return e, nil
}

func (s *EvidenceStore) ListByEntity(ctx context.Context, entityID uuid.UUID) ([]domain.EvidenceEvent, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, source_id, entity_id, raw_payload, created_at
		 FROM evidence_events WHERE entity_id = $1
		 ORDER BY created_at DESC`,
		entityID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.EvidenceEvent
	for rows.Next() {
		var e domain.EvidenceEvent
		if err := rows.Scan(&e.ID, &e.SourceID, &e.EntityID, &e.RawPayload, &e.CreatedAt); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (s *EvidenceStore) ClearEntity(ctx context.Context, entityID uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE evidence_events SET entity_id = NULL WHERE entity_id = $1`,
		entityID,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
