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

type SourceHandler struct {
	svc *service.SourceService
}

func NewSourceHandler(svc *service.SourceService) *SourceHandler {
	return &SourceHandler{svc: svc}
}

type registerSourceRequest struct {
	Name            string  `json:"name"`
	Kind            string  `json:"kind"`
	DefaultModifier float64 `json:"default_modifier,omitempty"`
}

func (h *SourceHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	src, err := h.svc.Register(r.Context(), req.Name, domain.SourceKind(req.Kind), req.DefaultModifier)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSourceNameMissing),
			errors.Is(err, service.ErrInvalidSourceKind),
			errors.Is(err, service.ErrInvalidModifier):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrDuplicateSource):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "failed to register source")
		}
		return
	}

	writeJSON(w, http.StatusCreated, src)
}

func (h *SourceHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid source id")
		return
	}

	src, err := h.svc.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrUnknownSource) {
			writeError(w, http.StatusNotFound, "source not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get source")
		return
	}

	writeJSON(w, http.StatusOK, src)
}

type updateModifierRequest struct {
	Modifier float64 `json:"modifier"`
}

func (h *SourceHandler) UpdateModifier(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid source id")
		return
	}

	var req updateModifierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.svc.UpdateModifier(r.Context(), id, req.Modifier); err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidModifier):
			writeError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrUnknownSource):
			writeError(w, http.StatusNotFound, "source not found")
		default:
			writeError(w, http.StatusInternalServerError, "failed to update modifier")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"id": id.String(), "modifier": req.Modifier})
}
