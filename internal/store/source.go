package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shelfware/veridict/internal/domain"
)

type SourceStore struct {
	db *pgxpool.Pool
}

func NewSourceStore(db *pgxpool.Pool) *SourceStore {
	return &SourceStore{db: db}
}

func (s *SourceStore) Create(ctx context.Context, src *domain.Source) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO sources (name, kind, default_modifier)
		 VALUES ($1, $2, $3)
		 RETURNING id, created_at, updated_at`,
		src.Name, src.Kind, src.DefaultModifier,
	).Scan(&src.ID, &src.CreatedAt, &src.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

func (s *SourceStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Source, error) {
	src := &domain.Source{}
	err := s.db.QueryRow(ctx,
		`SELECT id, name, kind, default_modifier, created_at, updated_at
		 FROM sources WHERE id = $1`,
		id,
	).Scan(&src.ID, &src.Name, &src.Kind, &src.DefaultModifier, &src.CreatedAt, &src.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return src, nil
}

func (s *SourceStore) GetByName(ctx context.Context, name string) (*domain.Source, error) {
	src := &domain.Source{}
	err := s.db.QueryRow(ctx,
		`SELECT id, name, kind, default_modifier, created_at, updated_at
		 FROM sources WHERE name = $1`,
		name,
	).Scan(&src.ID, &src.Name, &src.Kind, &src.DefaultModifier, &src.CreatedAt, &src.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return src, nil
}

func (s *SourceStore) UpdateModifier(ctx context.Context, id uuid.UUID, modifier float64) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE sources SET default_modifier = $1, updated_at = NOW() WHERE id = $2`,
		modifier, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
