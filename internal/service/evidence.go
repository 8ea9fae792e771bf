package service

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shelfware/veridict/internal/domain"
	"github.com/shelfware/veridict/internal/extract"
	"github.com/shelfware/veridict/internal/store"
	"go.uber.org/zap"
)

var ErrPayloadMissing = errors.New("raw_payload is required")

// ResolutionQueue decouples ingestion from the resolution pass. Enqueue is
// fire-and-forget; Resolve blocks until the pair has been recomputed.
type ResolutionQueue interface {
	Enqueue(entityID uuid.UUID, field string)
	Resolve(ctx context.Context, entityID uuid.UUID, field string) error
}

// SubmitResult reports what one evidence submission produced.
type SubmitResult struct {
	Event      *domain.EvidenceEvent
	Assertions []domain.Assertion
	// Duplicates counts candidates skipped by idempotent dedup.
	Duplicates int
}

type EvidenceService struct {
	sources    domain.SourceStore
	evidence   domain.EvidenceStore
	assertions domain.AssertionStore
	resolver   ResolutionQueue
	logger     *zap.Logger
}

func NewEvidenceService(ss domain.SourceStore, es domain.EvidenceStore, as domain.AssertionStore, resolver ResolutionQueue, logger *zap.Logger) *EvidenceService {
	return &EvidenceService{
		sources:    ss,
		evidence:   es,
		assertions: as,
		resolver:   resolver,
		logger:     logger,
	}
}

// Submit durably appends one evidence event, derives assertions from it,
// and triggers resolution for every touched (entity, field) pair. With
// wait set the call blocks until those pairs have been re-resolved;
// otherwise resolution runs asynchronously. Submissions are idempotent:
// re-sending the same report creates a new event but no duplicate active
// assertions.
func (s *EvidenceService) Submit(ctx context.Context, sourceID uuid.UUID, entityID *uuid.UUID, payload map[string]any, wait bool) (*SubmitResult, error) {
	if len(payload) == 0 {
		return nil, ErrPayloadMissing
	}

	src, err := s.sources.GetByID(ctx, sourceID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrUnknownSource
		}
		return nil, err
	}

	event := &domain.EvidenceEvent{
		SourceID:   src.ID,
		EntityID:   entityID,
		RawPayload: payload,
	}
	if err := s.evidence.Create(ctx, event); err != nil {
		return nil, err
	}

	result := &SubmitResult{Event: event}

	extractor, err := extract.ForKind(src.Kind)
	if err != nil {
		// The event is already durable; provenance survives even when no
		// assertions can be derived from it.
		s.logger.Warn("no extractor for source kind",
			zap.String("source_id", src.ID.String()),
			zap.String("kind", string(src.Kind)))
		return result, nil
	}

	candidates, err := extractor.Extract(payload)
	if err != nil {
		s.logger.Warn("extraction failed, event recorded without assertions",
			zap.String("event_id", event.ID.String()),
			zap.Error(err))
		return result, nil
	}

	pairs := make(map[string]struct{})
	for _, c := range candidates {
		a, created, err := s.assertFromCandidate(ctx, event, src, c)
		if err != nil {
			return nil, err
		}
		if !created {
			result.Duplicates++
			continue
		}
		result.Assertions = append(result.Assertions, *a)
		if a.EntityID != nil {
			pairs[a.Field] = struct{}{}
		}
	}

	s.logger.Info("evidence submitted",
		zap.String("event_id", event.ID.String()),
		zap.String("source", src.Name),
		zap.Int("assertions", len(result.Assertions)),
		zap.Int("duplicates", result.Duplicates))

	if entityID == nil {
		// Pre-association evidence never feeds resolution until an external
		// collaborator re-associates it.
		return result, nil
	}

	for field := range pairs {
		if wait {
			if err := s.resolver.Resolve(ctx, *entityID, field); err != nil {
				return nil, err
			}
		} else {
			s.resolver.Enqueue(*entityID, field)
		}
	}

	return result, nil
}

// assertFromCandidate persists one candidate as an assertion, freezing the
// weight inputs at this instant. Returns created=false for idempotent
// duplicates.
func (s *EvidenceService) assertFromCandidate(ctx context.Context, event *domain.EvidenceEvent, src *domain.Source, c extract.Candidate) (*domain.Assertion, bool, error) {
	fingerprint := domain.Fingerprint(c.Value)
	isOverride := c.Method == domain.MethodHumanOverride

	// Fast path; the unique index on the dedup key catches what two
	// concurrent submissions race past here.
	if event.EntityID != nil {
		exists, err := s.assertions.ExistsActiveDuplicate(ctx, *event.EntityID, c.Field, fingerprint, src.ID, c.Method)
		if err != nil {
			return nil, false, err
		}
		if exists {
			return nil, false, nil
		}
	}

	methodWeight := c.Method.BaseWeight()
	a := &domain.Assertion{
		EvidenceEventID:  event.ID,
		SourceID:         src.ID,
		EntityID:         event.EntityID,
		Field:            c.Field,
		Value:            c.Value,
		ValueFingerprint: fingerprint,
		ResolutionMethod: c.Method,
		MethodWeight:     methodWeight,
		SourceModifier:   src.DefaultModifier,
		Weight:           ComputeWeight(methodWeight, src.DefaultModifier, isOverride),
		IsHumanOverride:  isOverride,
	}
	if err := s.assertions.Create(ctx, a); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return a, true, nil
}
