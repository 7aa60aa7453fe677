package middlewares

import (
	"fmt"
	"net/http"

	"github.com/dropDatabas3/gatekeeper/internal/access"
	httperrors "github.com/dropDatabas3/gatekeeper/internal/http/errors"
	"github.com/dropDatabas3/gatekeeper/internal/identity"
)

// RequireModule es la puerta de entrada a un módulo funcional. Se aplica una
// vez por grupo de rutas; los handlers de negocio no vuelven a chequear.
func RequireModule(policy *access.Policy, module string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a, ok := identity.ActorFrom(r.Context())
			if !ok || a.Principal == nil || a.Tenant == nil {
				httperrors.WriteError(w, httperrors.ErrUnauthorized)
				return
			}
			if !policy.Allowed(a.Principal.Role, module, a.Tenant.Settings.ModulesEnabled) {
				httperrors.WriteError(w, httperrors.ErrModuleAccessDenied.WithDetail(
					fmt.Sprintf("role %q cannot access module %q", a.Principal.Role, module),
				))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
