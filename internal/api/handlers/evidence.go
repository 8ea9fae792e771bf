package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/shelfware/veridict/internal/domain"
	"github.com/shelfware/veridict/internal/service"
)

type EvidenceHandler struct {
	svc *service.EvidenceService
}

func NewEvidenceHandler(svc *service.EvidenceService) *EvidenceHandler {
	return &EvidenceHandler{svc: svc}
}

type submitEvidenceRequest struct {
	SourceID   string         `json:"source_id"`
	EntityID   string         `json:"entity_id,omitempty"`
	RawPayload map[string]any `json:"raw_payload"`
	// Wait blocks the request until the triggered resolution passes finish.
	Wait bool `json:"wait,omitempty"`
}

type submitEvidenceResponse struct {
	EventID    string             `json:"event_id"`
	Assertions []domain.Assertion `json:"assertions"`
	Duplicates int                `json:"duplicates"`
}

func (h *EvidenceHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req submitEvidenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sourceID, err := uuid.Parse(req.SourceID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid source_id")
		return
	}

	var entityID *uuid.UUID
	if req.EntityID != "" {
		id, err := uuid.Parse(req.EntityID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid entity_id")
			return
		}
		entityID = &id
	}

	result, err := h.svc.Submit(r.Context(), sourceID, entityID, req.RawPayload, req.Wait)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrPayloadMissing):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrUnknownSource):
			writeError(w, http.StatusBadRequest, "unknown source: register it first")
		default:
			writeError(w, http.StatusInternalServerError, "failed to submit evidence")
		}
		return
	}

	assertions := result.Assertions
	if assertions == nil {
		assertions = []domain.Assertion{}
	}

	writeJSON(w, http.StatusCreated, submitEvidenceResponse{
		EventID:    result.Event.ID.String(),
		Assertions: assertions,
		Duplicates: result.Duplicates,
	})
}
