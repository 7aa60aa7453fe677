package handlers

import (
	"net/http"

	httperrors "github.com/dropDatabas3/gatekeeper/internal/http/errors"
	"github.com/dropDatabas3/gatekeeper/internal/session"
)

// PortalHandler atiende la sesión stateless del portal de clientes.
type PortalHandler struct {
	Codec        *session.Codec
	CookieName   string
	SecureCookie bool
}

// Me decodifica la cookie firmada. Cookie ausente, rota o vencida son
// indistinguibles: 401 en todos los casos.
func (h *PortalHandler) Me(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie(h.CookieName)
	if err != nil {
		httperrors.WriteError(w, httperrors.ErrSessionExpired)
		return
	}
	p, ok := h.Codec.Decode(c.Value)
	if !ok {
		httperrors.WriteError(w, httperrors.ErrSessionExpired)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"subject_ref": p.SubjectRef,
		"tenant_id":   p.TenantID,
		"purpose":     p.Purpose,
		"expires_at":  p.ExpiresAt,
	})
}

// Logout instala la cookie de borrado. No hay estado del lado del servidor.
func (h *PortalHandler) Logout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, buildDeletionCookie(h.CookieName, h.SecureCookie))
	w.WriteHeader(http.StatusNoContent)
}
