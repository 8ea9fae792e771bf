package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shelfware/veridict/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type auditFixture struct {
	*evidenceFixture
	audit *AuditService
}

func setupAuditTest() *auditFixture {
	ef := setupEvidenceTest()
	audit := NewAuditService(ef.sources, ef.events, ef.assertions, ef.resolved, ef.svc, ef.resolver, zap.NewNop())
	return &auditFixture{evidenceFixture: ef, audit: audit}
}

// Exercises the full correction flow: two automated sources disagree, the
// stronger one wins, then a human override supersedes both and the audit
// trail explains all of it.
func TestAuditService_OverrideFlow(t *testing.T) {
	f := setupAuditTest()
	ctx := context.Background()
	entityID := uuid.New()

	goodreads := f.registerSource(t, "goodreads-scrape", domain.SourceKindScrape, 0.8)
	transcribe := f.registerSource(t, "audio-transcribe", domain.SourceKindTranscription, 1.0)

	_, err := f.svc.Submit(ctx, goodreads.ID, &entityID,
		map[string]any{"fields": map[string]any{"title": "Missborn"}}, true)
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, transcribe.ID, &entityID,
		map[string]any{"fields": map[string]any{"title": "Mistborn"}}, true)
	require.NoError(t, err)

	// Transcription (0.9 * 1.0) beats the scrape (0.5 * 0.8).
	rv, err := f.audit.GetResolvedValue(ctx, entityID, "title")
	require.NoError(t, err)
	assert.Equal(t, "Mistborn", rv.Value)

	overrideID, err := f.audit.SubmitOverride(ctx, entityID, "title", "Mistborn: The Final Empire")
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, overrideID)

	// The override wins immediately and the operator source now exists.
	rv, err = f.audit.GetResolvedValue(ctx, entityID, "title")
	require.NoError(t, err)
	assert.Equal(t, "Mistborn: The Final Empire", rv.Value)
	assert.Equal(t, overrideID, rv.AssertionID)

	operator, err := f.sources.GetByName(ctx, domain.OperatorSourceName)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceKindHuman, operator.Kind)

	// Explain shows the complete history with exactly one winner.
	records, err := f.audit.ExplainField(ctx, entityID, "title")
	require.NoError(t, err)
	require.Len(t, records, 3)

	winners := 0
	for _, r := range records {
		if r.IsCurrentWinner {
			winners++
			assert.Equal(t, overrideID, r.ID)
			assert.True(t, r.IsHumanOverride)
		}
	}
	assert.Equal(t, 1, winners)
	// Newest first.
	assert.Equal(t, overrideID, records[0].ID)
}

func TestAuditService_SubmitOverride_Idempotent(t *testing.T) {
	f := setupAuditTest()
	ctx := context.Background()
	entityID := uuid.New()

	first, err := f.audit.SubmitOverride(ctx, entityID, "narrator", "Michael Kramer")
	require.NoError(t, err)
	second, err := f.audit.SubmitOverride(ctx, entityID, "narrator", "Michael Kramer")
	require.NoError(t, err)
	assert.Equal(t, first, second, "resubmission must resolve to the existing override")

	active, err := f.assertions.ListActiveByPair(ctx, entityID, "narrator")
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestAuditService_SubmitOverride_Validation(t *testing.T) {
	f := setupAuditTest()
	ctx := context.Background()
	entityID := uuid.New()

	_, err := f.audit.SubmitOverride(ctx, entityID, "", "x")
	assert.ErrorIs(t, err, ErrFieldMissing)
	_, err = f.audit.SubmitOverride(ctx, entityID, "title", nil)
	assert.ErrorIs(t, err, ErrValueMissing)
}

func TestAuditService_DeactivateAssertion(t *testing.T) {
	f := setupAuditTest()
	ctx := context.Background()
	entityID := uuid.New()
	src := f.registerSource(t, "goodreads-scrape", domain.SourceKindScrape, 0.8)

	result, err := f.svc.Submit(ctx, src.ID, &entityID,
		map[string]any{"fields": map[string]any{"title": "Missborn"}}, true)
	require.NoError(t, err)
	require.Len(t, result.Assertions, 1)

	require.NoError(t, f.audit.DeactivateAssertion(ctx, result.Assertions[0].ID))

	// Sole assertion retracted: the field is no longer resolved, but the
	// history still explains it.
	_, err = f.audit.GetResolvedValue(ctx, entityID, "title")
	assert.ErrorIs(t, err, ErrNotResolved)

	records, err := f.audit.ExplainField(ctx, entityID, "title")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.False(t, records[0].IsActive)
	assert.False(t, records[0].IsCurrentWinner)

	// Deactivating again is a no-op.
	assert.NoError(t, f.audit.DeactivateAssertion(ctx, result.Assertions[0].ID))
	// Unknown id is an error.
	assert.ErrorIs(t, f.audit.DeactivateAssertion(ctx, uuid.New()), ErrAssertionNotFound)
}

func TestAuditService_RemoveEntity(t *testing.T) {
	f := setupAuditTest()
	ctx := context.Background()
	entityID := uuid.New()
	src := f.registerSource(t, "openlibrary-feed", domain.SourceKindCatalog, 1.0)

	result, err := f.svc.Submit(ctx, src.ID, &entityID,
		map[string]any{"fields": map[string]any{"title": "Mistborn", "author": "Brandon Sanderson"}}, true)
	require.NoError(t, err)

	require.NoError(t, f.audit.RemoveEntity(ctx, entityID))

	// Cache dropped, history disassociated, raw evidence preserved.
	values, err := f.audit.GetAllResolved(ctx, entityID)
	require.NoError(t, err)
	assert.Empty(t, values)

	records, err := f.audit.ExplainField(ctx, entityID, "title")
	require.NoError(t, err)
	assert.Empty(t, records)

	event, err := f.events.GetByID(ctx, result.Event.ID)
	require.NoError(t, err)
	assert.Nil(t, event.EntityID)

	// Later submissions for the removed entity still work; removal is not a
	// tombstone.
	_, err = f.svc.Submit(ctx, src.ID, &entityID,
		map[string]any{"fields": map[string]any{"title": "Mistborn"}}, true)
	require.NoError(t, err)
}

func TestAuditService_ListEvidence(t *testing.T) {
	f := setupAuditTest()
	ctx := context.Background()
	entityID := uuid.New()
	src := f.registerSource(t, "goodreads-scrape", domain.SourceKindScrape, 0.8)

	_, err := f.svc.Submit(ctx, src.ID, &entityID,
		map[string]any{"fields": map[string]any{"title": "Mistborn"}}, true)
	require.NoError(t, err)
	_, err = f.svc.Submit(ctx, src.ID, &entityID,
		map[string]any{"fields": map[string]any{"author": "Brandon Sanderson"}}, true)
	require.NoError(t, err)

	events, err := f.audit.ListEvidence(ctx, entityID)
	require.NoError(t, err)
	assert.Len(t, events, 2)

	// Removal disassociates the events; the history endpoint goes empty
	// while the raw events survive.
	require.NoError(t, f.audit.RemoveEntity(ctx, entityID))
	events, err = f.audit.ListEvidence(ctx, entityID)
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestAuditService_GetAllResolved(t *testing.T) {
	f := setupAuditTest()
	ctx := context.Background()
	entityID := uuid.New()
	src := f.registerSource(t, "mam-scrape", domain.SourceKindScrape, 0.9)

	_, err := f.svc.Submit(ctx, src.ID, &entityID,
		map[string]any{"fields": map[string]any{
			"title":    "Mistborn",
			"author":   "Brandon Sanderson",
			"narrator": "Michael Kramer",
		}}, true)
	require.NoError(t, err)

	values, err := f.audit.GetAllResolved(ctx, entityID)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"title":    "Mistborn",
		"author":   "Brandon Sanderson",
		"narrator": "Michael Kramer",
	}, values)
}
