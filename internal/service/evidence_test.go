package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shelfware/veridict/internal/domain"
	"github.com/shelfware/veridict/internal/store"
	"go.uber.org/zap"
)

// mockSourceStore implements domain.SourceStore for testing.
type mockSourceStore struct {
	mu      sync.Mutex
	sources map[uuid.UUID]*domain.Source
}

func newMockSourceStore() *mockSourceStore {
	return &mockSourceStore{sources: make(map[uuid.UUID]*domain.Source)}
}

func (m *mockSourceStore) Create(ctx context.Context, s *domain.Source) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.sources {
		if existing.Name == s.Name {
			return store.ErrDuplicate
		}
	}
	s.ID = uuid.New()
	s.CreatedAt = time.Now()
	stored := *s
	m.sources[s.ID] = &stored
	return nil
}

func (m *mockSourceStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sources[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *s
	return &copied, nil
}

func (m *mockSourceStore) GetByName(ctx context.Context, name string) (*domain.Source, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sources {
		if s.Name == name {
			copied := *s
			return &copied, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *mockSourceStore) UpdateModifier(ctx context.Context, id uuid.UUID, modifier float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sources[id]
	if !ok {
		return store.ErrNotFound
	}
	s.DefaultModifier = modifier
	return nil
}

// mockEvidenceStore implements domain.EvidenceStore for testing.
type mockEvidenceStore struct {
	mu     sync.Mutex
	events map[uuid.UUID]*domain.EvidenceEvent
}

func newMockEvidenceStore() *mockEvidenceStore {
	return &mockEvidenceStore{events: make(map[uuid.UUID]*domain.EvidenceEvent)}
}

func (m *mockEvidenceStore) Create(ctx context.Context, e *domain.EvidenceEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.ID = uuid.New()
	e.CreatedAt = time.Now()
	stored := *e
	m.events[e.ID] = &stored
	return nil
}

func (m *mockEvidenceStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.EvidenceEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	copied := *e
	return &copied, nil
}

func (m *mockEvidenceStore) ListByEntity(ctx context.Context, entityID uuid.UUID) ([]domain.EvidenceEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.EvidenceEvent
	for _, e := range m.events {
		if e.EntityID != nil && *e.EntityID == entityID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (m *mockEvidenceStore) ClearEntity(ctx context.Context, entityID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, e := range m.events {
		if e.EntityID != nil && *e.EntityID == entityID {
			e.EntityID = nil
			n++
		}
	}
	return n, nil
}

type evidenceFixture struct {
	sources    *mockSourceStore
	events     *mockEvidenceStore
	assertions *mockAssertionStore
	resolved   *mockResolvedStore
	resolver   *ResolverService
	svc        *EvidenceService
}

func setupEvidenceTest() *evidenceFixture {
	f := &evidenceFixture{
		sources:    newMockSourceStore(),
		events:     newMockEvidenceStore(),
		assertions: newMockAssertionStore(),
		resolved:   newMockResolvedStore(),
	}
	logger := zap.NewNop()
	f.resolver = NewResolverService(f.assertions, f.resolved, logger, 0, 0)
	f.svc = NewEvidenceService(f.sources, f.events, f.assertions, f.resolver, logger)
	return f
}

func (f *evidenceFixture) registerSource(t *testing.T, name string, kind domain.SourceKind, modifier float64) *domain.Source {
	t.Helper()
	src := &domain.Source{Name: name, Kind: kind, DefaultModifier: modifier}
	if err := f.sources.Create(context.Background(), src); err != nil {
		t.Fatalf("register source %s: %v", name, err)
	}
	return src
}

func TestEvidenceService_Submit(t *testing.T) {
	f := setupEvidenceTest()
	ctx := context.Background()
	src := f.registerSource(t, "goodreads-scrape", domain.SourceKindScrape, 0.8)
	entityID := uuid.New()

	result, err := f.svc.Submit(ctx, src.ID, &entityID, map[string]any{
		"fields": map[string]any{
			"title":  "Mistborn",
			"author": "Brandon Sanderson",
		},
	}, true)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Event == nil || result.Event.ID == uuid.Nil {
		t.Fatal("expected a durable evidence event")
	}
	if len(result.Assertions) != 2 {
		t.Fatalf("expected 2 assertions, got %d", len(result.Assertions))
	}

	for _, a := range result.Assertions {
		if a.MethodWeight != 0.5 || a.SourceModifier != 0.8 || a.Weight != 0.4 {
			t.Fatalf("unexpected frozen weights: %+v", a)
		}
		if a.EvidenceEventID != result.Event.ID {
			t.Fatal("assertion not linked to its evidence event")
		}
	}

	// wait=true resolved both pairs synchronously.
	for _, field := range []string{"title", "author"} {
		if _, err := f.resolved.GetByPair(ctx, entityID, field); err != nil {
			t.Fatalf("expected %s resolved, got %v", field, err)
		}
	}
}

func TestEvidenceService_Submit_UnknownSource(t *testing.T) {
	f := setupEvidenceTest()

	_, err := f.svc.Submit(context.Background(), uuid.New(), nil, map[string]any{"fields": map[string]any{}}, false)
	if !errors.Is(err, ErrUnknownSource) {
		t.Fatalf("expected ErrUnknownSource, got %v", err)
	}
}

func TestEvidenceService_Submit_EmptyPayload(t *testing.T) {
	f := setupEvidenceTest()
	src := f.registerSource(t, "s", domain.SourceKindScrape, 1.0)

	_, err := f.svc.Submit(context.Background(), src.ID, nil, nil, false)
	if !errors.Is(err, ErrPayloadMissing) {
		t.Fatalf("expected ErrPayloadMissing, got %v", err)
	}
}

func TestEvidenceService_Submit_Idempotent(t *testing.T) {
	f := setupEvidenceTest()
	ctx := context.Background()
	src := f.registerSource(t, "mam-scrape", domain.SourceKindScrape, 0.9)
	entityID := uuid.New()

	payload := map[string]any{
		"fields": map[string]any{"title": "Mistborn", "author": "Brandon Sanderson"},
	}

	first, err := f.svc.Submit(ctx, src.ID, &entityID, payload, true)
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	second, err := f.svc.Submit(ctx, src.ID, &entityID, payload, true)
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}

	// The repeat gets its own event but no new assertions.
	if second.Event.ID == first.Event.ID {
		t.Fatal("expected a fresh evidence event per submission")
	}
	if len(second.Assertions) != 0 {
		t.Fatalf("expected 0 new assertions, got %d", len(second.Assertions))
	}
	if second.Duplicates != 2 {
		t.Fatalf("expected 2 duplicates, got %d", second.Duplicates)
	}

	active, err := f.assertions.ListActiveByPair(ctx, entityID, "title")
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected 1 active title assertion, got %d", len(active))
	}
}

// blindProbeAssertionStore reports no existing duplicate regardless of
// state, reproducing the interleaving where two identical submissions both
// pass the existence check before either inserts. The insert itself must
// then be the arbiter.
type blindProbeAssertionStore struct {
	*mockAssertionStore
}

func (s *blindProbeAssertionStore) ExistsActiveDuplicate(ctx context.Context, entityID uuid.UUID, field, fingerprint string, sourceID uuid.UUID, method domain.Method) (bool, error) {
	return false, nil
}

func TestEvidenceService_Submit_DedupRacePastExistenceCheck(t *testing.T) {
	f := setupEvidenceTest()
	logger := zap.NewNop()
	f.svc = NewEvidenceService(f.sources, f.events, &blindProbeAssertionStore{f.assertions}, f.resolver, logger)
	ctx := context.Background()
	src := f.registerSource(t, "goodreads-scrape", domain.SourceKindScrape, 0.8)
	entityID := uuid.New()

	payload := map[string]any{"fields": map[string]any{"title": "Mistborn"}}

	first, err := f.svc.Submit(ctx, src.ID, &entityID, payload, true)
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if len(first.Assertions) != 1 {
		t.Fatalf("expected 1 assertion, got %d", len(first.Assertions))
	}

	second, err := f.svc.Submit(ctx, src.ID, &entityID, payload, true)
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if len(second.Assertions) != 0 || second.Duplicates != 1 {
		t.Fatalf("expected insert-path dedup, got %d assertions / %d duplicates",
			len(second.Assertions), second.Duplicates)
	}

	active, err := f.assertions.ListActiveByPair(ctx, entityID, "title")
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected 1 active assertion for the dedup key, got %d", len(active))
	}
}

func TestEvidenceService_Submit_ConcurrentDuplicates(t *testing.T) {
	f := setupEvidenceTest()
	ctx := context.Background()
	src := f.registerSource(t, "mam-scrape", domain.SourceKindScrape, 0.9)
	entityID := uuid.New()

	payload := map[string]any{"fields": map[string]any{"title": "Mistborn"}}

	const submitters = 16
	var wg sync.WaitGroup
	errs := make(chan error, submitters)
	for i := 0; i < submitters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Submit(ctx, src.ID, &entityID, payload, true); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("submit: %v", err)
	}

	// Every submission got its own event, but the weight accumulation input
	// stays a single assertion.
	active, err := f.assertions.ListActiveByPair(ctx, entityID, "title")
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("expected 1 active assertion for the dedup key, got %d", len(active))
	}
}

func TestEvidenceService_Submit_NormalizedValuesDedup(t *testing.T) {
	f := setupEvidenceTest()
	ctx := context.Background()
	src := f.registerSource(t, "s", domain.SourceKindScrape, 1.0)
	entityID := uuid.New()

	first, err := f.svc.Submit(ctx, src.ID, &entityID,
		map[string]any{"fields": map[string]any{"title": "Mistborn: The Final Empire"}}, true)
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	if len(first.Assertions) != 1 {
		t.Fatalf("expected 1 assertion, got %d", len(first.Assertions))
	}

	// Same value modulo case and whitespace: same fingerprint, so deduped.
	second, err := f.svc.Submit(ctx, src.ID, &entityID,
		map[string]any{"fields": map[string]any{"title": "  mistborn:  the final EMPIRE"}}, true)
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if len(second.Assertions) != 0 || second.Duplicates != 1 {
		t.Fatalf("expected normalized duplicate, got %d assertions / %d duplicates",
			len(second.Assertions), second.Duplicates)
	}
}

func TestEvidenceService_Submit_PreAssociation(t *testing.T) {
	f := setupEvidenceTest()
	ctx := context.Background()
	src := f.registerSource(t, "openlibrary-feed", domain.SourceKindCatalog, 1.0)

	result, err := f.svc.Submit(ctx, src.ID, nil,
		map[string]any{"fields": map[string]any{"title": "Mistborn"}}, true)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Event.EntityID != nil {
		t.Fatal("expected event without entity association")
	}
	if len(result.Assertions) != 1 {
		t.Fatalf("expected 1 assertion, got %d", len(result.Assertions))
	}
	if result.Assertions[0].EntityID != nil {
		t.Fatal("expected assertion without entity association")
	}
}

func TestEvidenceService_Submit_ModifierFrozenAtIngestion(t *testing.T) {
	f := setupEvidenceTest()
	ctx := context.Background()
	src := f.registerSource(t, "audio-transcribe", domain.SourceKindTranscription, 1.0)
	entityID := uuid.New()

	first, err := f.svc.Submit(ctx, src.ID, &entityID,
		map[string]any{"fields": map[string]any{"title": "Mistborn"}}, true)
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}

	if err := f.sources.UpdateModifier(ctx, src.ID, 0.5); err != nil {
		t.Fatalf("update modifier: %v", err)
	}

	second, err := f.svc.Submit(ctx, src.ID, &entityID,
		map[string]any{"fields": map[string]any{"title": "Mistborn: The Final Empire"}}, true)
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}

	// Frozen history: the earlier assertion keeps its original weight.
	old, err := f.assertions.GetByID(ctx, first.Assertions[0].ID)
	if err != nil {
		t.Fatalf("get first assertion: %v", err)
	}
	if old.SourceModifier != 1.0 || old.Weight != 0.9 {
		t.Fatalf("expected frozen weight 0.9, got %+v", old)
	}
	if second.Assertions[0].SourceModifier != 0.5 || second.Assertions[0].Weight != 0.45 {
		t.Fatalf("expected new weight 0.45, got %+v", second.Assertions[0])
	}
}

func TestEvidenceService_Submit_ExtractionFailureKeepsEvent(t *testing.T) {
	f := setupEvidenceTest()
	ctx := context.Background()
	src := f.registerSource(t, "operator", domain.SourceKindHuman, 1.0)
	entityID := uuid.New()

	// Human payload without field/value fails extraction; the event must
	// still be recorded as provenance.
	result, err := f.svc.Submit(ctx, src.ID, &entityID,
		map[string]any{"note": "unstructured"}, true)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if result.Event == nil {
		t.Fatal("expected event to survive extraction failure")
	}
	if len(result.Assertions) != 0 {
		t.Fatalf("expected no assertions, got %d", len(result.Assertions))
	}
	if _, err := f.events.GetByID(ctx, result.Event.ID); err != nil {
		t.Fatalf("expected event persisted, got %v", err)
	}
}
