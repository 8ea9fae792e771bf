package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shelfware/veridict/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	defaultResolverWorkers   = 4
	defaultResolverQueueSize = 1024
	resolveTimeout           = 30 * time.Second
)

// Pair identifies one (entity, field) resolution unit.
type Pair struct {
	EntityID uuid.UUID
	Field    string
}

// pairLocks serializes resolution per pair while letting different pairs
// run in parallel. Entries are reference-counted so the map does not grow
// with the catalog.
type pairLocks struct {
	mu    sync.Mutex
	locks map[Pair]*pairLock
}

type pairLock struct {
	mu   sync.Mutex
	refs int
}

func newPairLocks() *pairLocks {
	return &pairLocks{locks: make(map[Pair]*pairLock)}
}

func (pl *pairLocks) lock(p Pair) {
	pl.mu.Lock()
	l, ok := pl.locks[p]
	if !ok {
		l = &pairLock{}
		pl.locks[p] = l
	}
	l.refs++
	pl.mu.Unlock()

	l.mu.Lock()
}

func (pl *pairLocks) unlock(p Pair) {
	pl.mu.Lock()
	l := pl.locks[p]
	l.refs--
	if l.refs == 0 {
		delete(pl.locks, p)
	}
	pl.mu.Unlock()

	l.mu.Unlock()
}

// ResolverService recomputes the resolved value for invalidated pairs. Each
// pass is a full rebuild from the active-assertion set, never an
// incremental patch, so the cache cannot drift from the assertion store.
type ResolverService struct {
	assertions domain.AssertionStore
	resolved   domain.ResolvedValueStore
	logger     *zap.Logger

	workers int
	queue   chan Pair
	locks   *pairLocks

	cancel context.CancelFunc
	group  *errgroup.Group
}

func NewResolverService(as domain.AssertionStore, rs domain.ResolvedValueStore, logger *zap.Logger, workers, queueSize int) *ResolverService {
	if workers <= 0 {
		workers = defaultResolverWorkers
	}
	if queueSize <= 0 {
		queueSize = defaultResolverQueueSize
	}
	return &ResolverService{
		assertions: as,
		resolved:   rs,
		logger:     logger,
		workers:    workers,
		queue:      make(chan Pair, queueSize),
		locks:      newPairLocks(),
	}
}

// Start launches the resolver worker pool.
func (s *ResolverService) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	g, ctx := errgroup.WithContext(ctx)
	s.group = g

	for i := 0; i < s.workers; i++ {
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case p := <-s.queue:
					runCtx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
					if err := s.Resolve(runCtx, p.EntityID, p.Field); err != nil {
						s.logger.Error("resolution pass failed",
							zap.String("entity_id", p.EntityID.String()),
							zap.String("field", p.Field),
							zap.Error(err))
					}
					cancel()
				}
			}
		})
	}

	s.logger.Info("resolver started", zap.Int("workers", s.workers))
}

// Stop drains the worker pool.
func (s *ResolverService) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	_ = s.group.Wait()
	s.logger.Info("resolver stopped")
}

// Enqueue schedules a resolution pass for the pair. When the queue is
// saturated the pass runs inline instead so an invalidation is never lost.
func (s *ResolverService) Enqueue(entityID uuid.UUID, field string) {
	p := Pair{EntityID: entityID, Field: field}
	select {
	case s.queue <- p:
	default:
		ctx, cancel := context.WithTimeout(context.Background(), resolveTimeout)
		defer cancel()
		if err := s.Resolve(ctx, entityID, field); err != nil {
			s.logger.Error("inline resolution pass failed",
				zap.String("entity_id", entityID.String()),
				zap.String("field", field),
				zap.Error(err))
		}
	}
}

// Resolve recomputes the winner for one pair. Passes for the same pair are
// serialized; a submission that lands mid-pass re-triggers resolution
// afterwards, so the last pass always sees the final assertion set.
func (s *ResolverService) Resolve(ctx context.Context, entityID uuid.UUID, field string) error {
	p := Pair{EntityID: entityID, Field: field}
	s.locks.lock(p)
	defer s.locks.unlock(p)

	active, err := s.assertions.ListActiveByPair(ctx, entityID, field)
	if err != nil {
		return err
	}

	// No active assertions (including entity removed mid-flight): clear any
	// stale cache entry.
	if len(active) == 0 {
		if err := s.resolved.Delete(ctx, entityID, field); err != nil {
			return err
		}
		s.logger.Debug("pair cleared",
			zap.String("entity_id", entityID.String()),
			zap.String("field", field))
		return nil
	}

	winner := selectWinner(active)
	rv := &domain.ResolvedValue{
		EntityID:    entityID,
		Field:       field,
		Value:       winner.Value,
		AssertionID: winner.ID,
	}
	if err := s.resolved.Upsert(ctx, rv); err != nil {
		return err
	}

	s.logger.Debug("pair resolved",
		zap.String("entity_id", entityID.String()),
		zap.String("field", field),
		zap.String("assertion_id", winner.ID.String()),
		zap.Float64("weight", winner.Weight),
		zap.Bool("override", winner.IsHumanOverride))

	return nil
}

// ResolveEntity rebuilds every pair the entity has assertions for.
func (s *ResolverService) ResolveEntity(ctx context.Context, entityID uuid.UUID) error {
	fields, err := s.assertions.ListFieldsByEntity(ctx, entityID)
	if err != nil {
		return err
	}
	for _, field := range fields {
		if err := s.Resolve(ctx, entityID, field); err != nil {
			return err
		}
	}
	return nil
}

// selectWinner picks the current accepted assertion from a non-empty
// active set:
//
//  1. The most recently created human override wins outright.
//  2. Otherwise assertions are grouped by value fingerprint and each
//     group's weights accumulate, so independent corroboration of the same
//     value outranks a lone high-weight dissenter.
//  3. Ties between groups break on the greatest individual member weight,
//     then on the most recently created member.
//
// The returned assertion is the explaining member of the winning group:
// its highest-weight, most recent assertion.
func selectWinner(active []domain.Assertion) *domain.Assertion {
	// Newest first; store order is already newest-first but resolution must
	// not depend on it.
	sorted := make([]domain.Assertion, len(active))
	copy(sorted, active)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	for i := range sorted {
		if sorted[i].IsHumanOverride {
			// First hit is the most recent override; older overrides stay
			// active in the audit trail but never win.
			return &sorted[i]
		}
	}

	type group struct {
		total float64
		rep   *domain.Assertion
	}
	groups := make(map[string]*group)
	for i := range sorted {
		a := &sorted[i]
		g, ok := groups[a.ValueFingerprint]
		if !ok {
			g = &group{}
			groups[a.ValueFingerprint] = g
		}
		g.total += a.Weight
		// Newest-first iteration: a strict > keeps the most recent among
		// equal-weight members as the representative.
		if g.rep == nil || a.Weight > g.rep.Weight {
			g.rep = a
		}
	}

	var best *group
	for _, g := range groups {
		if best == nil {
			best = g
			continue
		}
		switch {
		case g.total > best.total:
			best = g
		case g.total == best.total && g.rep.Weight > best.rep.Weight:
			best = g
		case g.total == best.total && g.rep.Weight == best.rep.Weight &&
			g.rep.CreatedAt.After(best.rep.CreatedAt):
			best = g
		}
	}
	return best.rep
}
