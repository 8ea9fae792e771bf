package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shelfware/veridict/internal/service"
)

type AssertionHandler struct {
	audit *service.AuditService
}

func NewAssertionHandler(audit *service.AuditService) *AssertionHandler {
	return &AssertionHandler{audit: audit}
}

// Deactivate is the manual retraction path, e.g. when a scraper later
// confirms a value was wrong.
func (h *AssertionHandler) Deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid assertion id")
		return
	}

	if err := h.audit.DeactivateAssertion(r.Context(), id); err != nil {
		if errors.Is(err, service.ErrAssertionNotFound) {
			writeError(w, http.StatusNotFound, "assertion not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to deactivate assertion")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"assertion_id": id.String(), "status": "deactivated"})
}
