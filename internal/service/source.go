package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shelfware/veridict/internal/domain"
	"github.com/shelfware/veridict/internal/store"
	"go.uber.org/zap"
)

var (
	ErrSourceNameMissing = errors.New("name is required")
	ErrInvalidSourceKind = errors.New("invalid source kind")
	ErrInvalidModifier   = errors.New("modifier must be positive")
	ErrDuplicateSource   = errors.New("source name already registered")
	ErrUnknownSource     = errors.New("unknown source")
)

type SourceService struct {
	sources domain.SourceStore
	logger  *zap.Logger
}

func NewSourceService(sources domain.SourceStore, logger *zap.Logger) *SourceService {
	return &SourceService{sources: sources, logger: logger}
}

// Register creates a permanent source identifier. A zero modifier defaults
// to the baseline 1.0.
func (s *SourceService) Register(ctx context.Context, name string, kind domain.SourceKind, modifier float64) (*domain.Source, error) {
	if name == "" {
		return nil, ErrSourceNameMissing
	}
	if !domain.ValidSourceKind(string(kind)) {
		return nil, ErrInvalidSourceKind
	}
	if modifier < 0 {
		return nil, ErrInvalidModifier
	}
	if modifier == 0 {
		modifier = domain.DefaultModifier
	}

	src := &domain.Source{
		Name:            name,
		Kind:            kind,
		DefaultModifier: modifier,
	}
	if err := s.sources.Create(ctx, src); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, ErrDuplicateSource
		}
		return nil, err
	}

	s.logger.Info("source registered",
		zap.String("source_id", src.ID.String()),
		zap.String("name", src.Name),
		zap.String("kind", string(src.Kind)),
		zap.Float64("default_modifier", src.DefaultModifier))

	return src, nil
}

func (s *SourceService) Get(ctx context.Context, id uuid.UUID) (*domain.Source, error) {
	src, err := s.sources.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnknownSource
		}
		return nil, err
	}
	return src, nil
}

// UpdateModifier tunes a source's baseline trust. Only future assertions
// see the new value; stored weights are frozen history.
func (s *SourceService) UpdateModifier(ctx context.Context, id uuid.UUID, modifier float64) error {
	if modifier <= 0 {
		return ErrInvalidModifier
	}

	if err := s.sources.UpdateModifier(ctx, id, modifier); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUnknownSource
		}
		return err
	}

	s.logger.Info("source modifier updated",
		zap.String("source_id", id.String()),
		zap.Float64("modifier", modifier))

	return nil
}
