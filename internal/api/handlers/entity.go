package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shelfware/veridict/internal/domain"
	"github.com/shelfware/veridict/internal/service"
)

type EntityHandler struct {
	audit    *service.AuditService
	resolver *service.ResolverService
}

func NewEntityHandler(audit *service.AuditService, resolver *service.ResolverService) *EntityHandler {
	return &EntityHandler{audit: audit, resolver: resolver}
}

func entityID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid entity id")
		return uuid.Nil, false
	}
	return id, true
}

func (h *EntityHandler) GetAllResolved(w http.ResponseWriter, r *http.Request) {
	id, ok := entityID(w, r)
	if !ok {
		return
	}

	values, err := h.audit.GetAllResolved(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get resolved values")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entity_id": id.String(),
		"fields":    values,
	})
}

func (h *EntityHandler) GetResolvedValue(w http.ResponseWriter, r *http.Request) {
	id, ok := entityID(w, r)
	if !ok {
		return
	}
	field := chi.URLParam(r, "field")

	rv, err := h.audit.GetResolvedValue(r.Context(), id, field)
	if err != nil {
		if errors.Is(err, service.ErrNotResolved) {
			writeError(w, http.StatusNotFound, "field not resolved")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get resolved value")
		return
	}

	writeJSON(w, http.StatusOK, rv)
}

func (h *EntityHandler) ListEvidence(w http.ResponseWriter, r *http.Request) {
	id, ok := entityID(w, r)
	if !ok {
		return
	}

	events, err := h.audit.ListEvidence(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list evidence")
		return
	}
	if events == nil {
		events = []domain.EvidenceEvent{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entity_id": id.String(),
		"events":    events,
	})
}

type explainFieldResponse struct {
	EntityID   string                   `json:"entity_id"`
	Field      string                   `json:"field"`
	Assertions []domain.AssertionRecord `json:"assertions"`
}

func (h *EntityHandler) ExplainField(w http.ResponseWriter, r *http.Request) {
	id, ok := entityID(w, r)
	if !ok {
		return
	}
	field := chi.URLParam(r, "field")

	records, err := h.audit.ExplainField(r.Context(), id, field)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to explain field")
		return
	}
	if records == nil {
		records = []domain.AssertionRecord{}
	}

	writeJSON(w, http.StatusOK, explainFieldResponse{
		EntityID:   id.String(),
		Field:      field,
		Assertions: records,
	})
}

type submitOverrideRequest struct {
	Field string `json:"field"`
	Value any    `json:"value"`
}

func (h *EntityHandler) SubmitOverride(w http.ResponseWriter, r *http.Request) {
	id, ok := entityID(w, r)
	if !ok {
		return
	}

	var req submitOverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	assertionID, err := h.audit.SubmitOverride(r.Context(), id, req.Field, req.Value)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrFieldMissing),
			errors.Is(err, service.ErrValueMissing):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to submit override")
		}
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"assertion_id": assertionID.String()})
}

// Resolve forces a full rebuild of every pair the entity has assertions
// for. The cache is derived state, so this is always safe.
func (h *EntityHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id, ok := entityID(w, r)
	if !ok {
		return
	}

	if err := h.resolver.ResolveEntity(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to resolve entity")
		return
	}

	values, err := h.audit.GetAllResolved(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get resolved values")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entity_id": id.String(),
		"fields":    values,
	})
}

func (h *EntityHandler) Remove(w http.ResponseWriter, r *http.Request) {
	id, ok := entityID(w, r)
	if !ok {
		return
	}

	if err := h.audit.RemoveEntity(r.Context(), id); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to remove entity")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
