package handlers

import (
	"net/http"
	"strconv"

	httperrors "github.com/dropDatabas3/gatekeeper/internal/http/errors"
	"github.com/dropDatabas3/gatekeeper/internal/identity"
	"github.com/dropDatabas3/gatekeeper/internal/store/core"
)

type AuditHandler struct {
	Store core.AuditStore
}

// List devuelve las entradas recientes del tenant del actor.
func (h *AuditHandler) List(w http.ResponseWriter, r *http.Request) {
	a, _ := identity.ActorFrom(r.Context())

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			httperrors.WriteError(w, httperrors.ErrInvalidParameter.WithDetail("limit must be a positive integer"))
			return
		}
		limit = n
	}

	entries, err := h.Store.ListAudit(r.Context(), a.TenantID(), limit)
	if err != nil {
		httperrors.WriteError(w, err)
		return
	}
	if entries == nil {
		entries = []core.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
