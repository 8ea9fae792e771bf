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

type ResolvedValueStore struct {
	db *pgxpool.Pool
}

func NewResolvedValueStore(db *pgxpool.Pool) *ResolvedValueStore {
	return &ResolvedValueStore{db: db}
}

func (s *ResolvedValueStore) Upsert(ctx context.Context, rv *domain.ResolvedValue) error {
	value, err := json.Marshal(rv.Value)
	if err != nil {
		return fmt.Errorf("marshal resolved value: %w", err)
	}

	return s.db.QueryRow(ctx,
		`INSERT INTO resolved_values (entity_id, field, value, assertion_id, resolved_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (entity_id, field) DO UPDATE
		 SET value = EXCLUDED.value, assertion_id = EXCLUDED.assertion_id, resolved_at = NOW()
		 RETURNING resolved_at`,
		rv.EntityID, rv.Field, value, rv.AssertionID,
	).Scan(&rv.ResolvedAt)
}

func scanResolved(row pgx.Row) (*domain.ResolvedValue, error) {
	rv := &domain.ResolvedValue{}
	var value []byte
	err := row.Scan(&rv.EntityID, &rv.Field, &value, &rv.AssertionID, &rv.ResolvedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(value, &rv.Value); err != nil {
		return nil, fmt.Errorf("unmarshal resolved value: %w", err)
	}
	return rv, nil
}

func (s *ResolvedValueStore) GetByPair(ctx context.Context, entityID uuid.UUID, field string) (*domain.ResolvedValue, error) {
	rv, err := scanResolved(s.db.QueryRow(ctx,
		`SELECT entity_id, field, value, assertion_id, resolved_at
		 FROM resolved_values WHERE entity_id = $1 AND field = $2`,
		entityID, field,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return rv, nil
}

func (s *ResolvedValueStore) GetAllByEntity(ctx context.Context, entityID uuid.UUID) ([]domain.ResolvedValue, error) {
	rows, err := s.db.Query(ctx,
		`SELECT entity_id, field, value, assertion_id, resolved_at
		 FROM resolved_values WHERE entity_id = $1
		 ORDER BY field`,
		entityID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []domain.ResolvedValue
	for rows.Next() {
		rv, err := scanResolved(rows)
		if err != nil {
			return nil, err
		}
		values = append(values, *rv)
	}
	return values, rows.Err()
}

func (s *ResolvedValueStore) Delete(ctx context.Context, entityID uuid.UUID, field string) error {
	_, err := s.db.Exec(ctx,
		`DELETE FROM resolved_values WHERE entity_id = $1 AND field = $2`,
		entityID, field,
	)
	return err
}

func (s *ResolvedValueStore) DeleteByEntity(ctx context.Context, entityID uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx,
		`DELETE FROM resolved_values WHERE entity_id = $1`,
		entityID,
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
