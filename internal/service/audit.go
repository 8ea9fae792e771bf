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
	ErrNotResolved       = errors.New("field not resolved")
	ErrAssertionNotFound = errors.New("assertion not found")
	ErrFieldMissing      = errors.New("field is required")
	ErrValueMissing      = errors.New("value is required")
)

// AuditService is the read/correction surface: current values, full
// assertion history, human overrides, retraction, and entity removal.
type AuditService struct {
	sources    domain.SourceStore
	evidence   domain.EvidenceStore
	assertions domain.AssertionStore
	resolved   domain.ResolvedValueStore
	submitter  *EvidenceService
	resolver   ResolutionQueue
	logger     *zap.Logger
}

func NewAuditService(ss domain.SourceStore, es domain.EvidenceStore, as domain.AssertionStore, rs domain.ResolvedValueStore, submitter *EvidenceService, resolver ResolutionQueue, logger *zap.Logger) *AuditService {
	return &AuditService{
		sources:    ss,
		evidence:   es,
		assertions: as,
		resolved:   rs,
		submitter:  submitter,
		resolver:   resolver,
		logger:     logger,
	}
}

// GetResolvedValue returns the current accepted value for a pair.
func (s *AuditService) GetResolvedValue(ctx context.Context, entityID uuid.UUID, field string) (*domain.ResolvedValue, error) {
	rv, err := s.resolved.GetByPair(ctx, entityID, field)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotResolved
		}
		return nil, err
	}
	return rv, nil
}

// GetAllResolved returns every resolved field for an entity, e.g. to
// assemble a full book record.
func (s *AuditService) GetAllResolved(ctx context.Context, entityID uuid.UUID) (map[string]any, error) {
	values, err := s.resolved.GetAllByEntity(ctx, entityID)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(values))
	for _, rv := range values {
		out[rv.Field] = rv.Value
	}
	return out, nil
}

// ListEvidence returns the raw evidence events currently associated with
// the entity, newest first. Events disassociated by RemoveEntity are not
// included.
func (s *AuditService) ListEvidence(ctx context.Context, entityID uuid.UUID) ([]domain.EvidenceEvent, error) {
	return s.evidence.ListByEntity(ctx, entityID)
}

// ExplainField returns the pair's complete assertion history, newest
// first, with the current winner flagged. Deactivated assertions are
// included: the audit trail explains past decisions too.
func (s *AuditService) ExplainField(ctx context.Context, entityID uuid.UUID, field string) ([]domain.AssertionRecord, error) {
	assertions, err := s.assertions.ListByPair(ctx, entityID, field)
	if err != nil {
		return nil, err
	}

	var winnerID uuid.UUID
	rv, err := s.resolved.GetByPair(ctx, entityID, field)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if rv != nil {
		winnerID = rv.AssertionID
	}

	records := make([]domain.AssertionRecord, 0, len(assertions))
	for _, a := range assertions {
		records = append(records, domain.AssertionRecord{
			Assertion:       a,
			IsCurrentWinner: a.ID == winnerID,
		})
	}
	return records, nil
}

// SubmitOverride records a human correction through the reserved operator
// source and blocks until the pair reflects it.
func (s *AuditService) SubmitOverride(ctx context.Context, entityID uuid.UUID, field string, value any) (uuid.UUID, error) {
	if field == "" {
		return uuid.Nil, ErrFieldMissing
	}
	if value == nil {
		return uuid.Nil, ErrValueMissing
	}

	operator, err := s.operatorSource(ctx)
	if err != nil {
		return uuid.Nil, err
	}

	payload := map[string]any{"field": field, "value": value}
	result, err := s.submitter.Submit(ctx, operator.ID, &entityID, payload, true)
	if err != nil {
		return uuid.Nil, err
	}

	if len(result.Assertions) > 0 {
		return result.Assertions[0].ID, nil
	}

	// Idempotent resubmission: the matching active override already exists.
	fingerprint := domain.Fingerprint(value)
	active, err := s.assertions.ListActiveByPair(ctx, entityID, field)
	if err != nil {
		return uuid.Nil, err
	}
	for _, a := range active {
		if a.IsHumanOverride && a.ValueFingerprint == fingerprint && a.SourceID == operator.ID {
			return a.ID, nil
		}
	}
	return uuid.Nil, ErrAssertionNotFound
}

// operatorSource returns the reserved source that owns human overrides,
// registering it on first use.
func (s *AuditService) operatorSource(ctx context.Context) (*domain.Source, error) {
	src, err := s.sources.GetByName(ctx, domain.OperatorSourceName)
	if err == nil {
		return src, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	src = &domain.Source{
		Name:            domain.OperatorSourceName,
		Kind:            domain.SourceKindHuman,
		DefaultModifier: domain.DefaultModifier,
	}
	if createErr := s.sources.Create(ctx, src); createErr != nil {
		if errors.Is(createErr, store.ErrDuplicate) {
			// Lost a registration race; the winner's row is authoritative.
			return s.sources.GetByName(ctx, domain.OperatorSourceName)
		}
		return nil, createErr
	}
	return src, nil
}

// DeactivateAssertion retracts an assertion (soft delete) and re-resolves
// its pair. Deactivating an already-inactive assertion is a no-op.
func (s *AuditService) DeactivateAssertion(ctx context.Context, id uuid.UUID) error {
	a, err := s.assertions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrAssertionNotFound
		}
		return err
	}

	if err := s.assertions.Deactivate(ctx, id); err != nil {
		return err
	}

	s.logger.Info("assertion deactivated",
		zap.String("assertion_id", id.String()),
		zap.String("field", a.Field))

	if a.EntityID != nil {
		return s.resolver.Resolve(ctx, *a.EntityID, a.Field)
	}
	return nil
}

// RemoveEntity clears the entity from evidence and assertions (both are
// kept for audit) and drops its cache rows. Resolution for the entity's
// pairs becomes a permanent no-op.
func (s *AuditService) RemoveEntity(ctx context.Context, entityID uuid.UUID) error {
	events, err := s.evidence.ClearEntity(ctx, entityID)
	if err != nil {
		return err
	}
	assertions, err := s.assertions.ClearEntity(ctx, entityID)
	if err != nil {
		return err
	}
	cached, err := s.resolved.DeleteByEntity(ctx, entityID)
	if err != nil {
		return err
	}

	s.logger.Info("entity removed",
		zap.String("entity_id", entityID.String()),
		zap.Int64("events_cleared", events),
		zap.Int64("assertions_cleared", assertions),
		zap.Int64("cache_rows_deleted", cached))

	return nil
}
