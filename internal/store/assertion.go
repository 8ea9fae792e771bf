package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shelfware/veridict/internal/domain"
)

type AssertionStore struct {
	db *pgxpool.Pool
}

func NewAssertionStore(db *pgxpool.Pool) *AssertionStore {
	return &AssertionStore{db: db}
}

const assertionColumns = `id, evidence_event_id, source_id, entity_id, field, value, value_fingerprint,
	resolution_method, method_weight, source_modifier, weight, is_human_override, is_active, created_at`

func (s *AssertionStore) Create(ctx context.Context, a *domain.Assertion) error {
	value, err := json.Marshal(a.Value)
	if err != nil {
		return fmt.Errorf("marshal assertion value: %w", err)
	}

	err = s.db.QueryRow(ctx,
		`INSERT INTO assertions (evidence_event_id, source_id, entity_id, field, value, value_fingerprint,
		                         resolution_method, method_weight, source_modifier, weight, is_human_override, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, TRUE)
		 RETURNING id, is_active, created_at`,
		a.EvidenceEventID, a.SourceID, a.EntityID, a.Field, value, a.ValueFingerprint,
		a.ResolutionMethod, a.MethodWeight, a.SourceModifier, a.Weight, a.IsHumanOverride,
	).Scan(&a.ID, &a.IsActive, &a.CreatedAt)
	if err != nil {
		// idx_assertions_dedup: a concurrent identical submission won the
		// insert race.
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func scanAssertion(row pgx.Row) (*domain.Assertion, error) {
	a := &domain.Assertion{}
	var value []byte
	err := row.Scan(&a.ID, &a.EvidenceEventID, &a.SourceID, &a.EntityID, &a.Field, &value, &a.ValueFingerprint,
		&a.ResolutionMethod, &a.MethodWeight, &a.SourceModifier, &a.Weight, &a.IsHumanOverride, &a.IsActive, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(value, &a.Value); err != nil {
		return nil, fmt.Errorf("unmarshal assertion value: %w", err)
	}
	return a, nil
}

func (s *AssertionStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Assertion, error) {
	a, err := scanAssertion(s.db.QueryRow(ctx,
		`SELECT `+assertionColumns+` FROM assertions WHERE id = $1`,
		id,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return a, nil
}

func (s *AssertionStore) ExistsActiveDuplicate(ctx context.Context, entityID uuid.UUID, field, fingerprint string, sourceID uuid.UUID, method domain.Method) (bool, error) {
	var exists bool
	err := s.db.QueryRow(ctx,
		`SELECT EXISTS (
		   SELECT 1 FROM assertions
		   WHERE entity_id = $1 AND field = $2 AND value_fingerprint = $3
		     AND source_id = $4 AND resolution_method = $5 AND is_active
		 )`,
		entityID, field, fingerprint, sourceID, method,
	).Scan(&exists)
	return exists, err
}

func (s *AssertionStore) listByPair(ctx context.Context, entityID uuid.UUID, field string, activeOnly bool) ([]domain.Assertion, error) {
	query := `SELECT ` + assertionColumns + `
		 FROM assertions WHERE entity_id = $1 AND field = $2`
	if activeOnly {
		query += ` AND is_active`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, query, entityID, field)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assertions []domain.Assertion
	for rows.Next() {
		a, err := scanAssertion(rows)
		if err != nil {
			return nil, err
		}
		assertions = append(assertions, *a)
	}
	return assertions, rows.Err()
}

func (s *AssertionStore) ListActiveByPair(ctx context.Context, entityID uuid.UUID, field string) ([]domain.Assertion, error) {
	return s.listByPair(ctx, entityID, field, true)
}

func (s *AssertionStore) ListByPair(ctx context.Context, entityID uuid.UUID, field string) ([]domain.Assertion, error) {
	return s.listByPair(ctx, entityID, field, false)
}

func (s *AssertionStore) ListFieldsByEntity(ctx context.Context, entityID uuid.UUID) ([]string, error) {
	rows, err := s.db.Query(ctx,
		`SELECT DISTINCT field FROM assertions WHERE entity_id = $1`,
		entityID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fields []string
	for rows.Next() {
		var f string
		if err := rows.Scan(&f); err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, rows.Err()
}

func (s *AssertionStore) Deactivate(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE assertions SET is_active = FALSE WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *AssertionStore) ClearEntity(ctx context.Context, entityID uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`UPDATE assertions SET entity_id = NULL, is_active = FALSE WHERE entity_id = $1`,
		entityID,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
