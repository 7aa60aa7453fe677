package handlers

import (
	"net/http"

	"github.com/dropDatabas3/gatekeeper/internal/access"
	httperrors "github.com/dropDatabas3/gatekeeper/internal/http/errors"
	"github.com/dropDatabas3/gatekeeper/internal/identity"
)

type MeHandler struct {
	Policy *access.Policy
}

type meResponse struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	Role     string   `json:"role"`
	TenantID string   `json:"tenant_id"`
	Tenant   string   `json:"tenant_name"`
	Plan     string   `json:"plan"`
	Modules  []string `json:"modules"`
}

// Get devuelve el principal resuelto y sus módulos efectivos.
func (h *MeHandler) Get(w http.ResponseWriter, r *http.Request) {
	a, ok := identity.ActorFrom(r.Context())
	if !ok || a.Principal == nil {
		httperrors.WriteError(w, httperrors.ErrUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, meResponse{
		ID:       a.Principal.ID,
		Email:    a.Principal.Email,
		Role:     a.Principal.Role,
		TenantID: a.Tenant.ID,
		Tenant:   a.Tenant.Name,
		Plan:     a.Tenant.Plan,
		Modules:  h.Policy.ModulesFor(a.Principal.Role, a.Tenant.Settings.ModulesEnabled),
	})
}
