package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/dropDatabas3/gatekeeper/internal/apikey"
	httperrors "github.com/dropDatabas3/gatekeeper/internal/http/errors"
	"github.com/dropDatabas3/gatekeeper/internal/identity"
	"github.com/dropDatabas3/gatekeeper/internal/observability/logger"
)

// BearerAuth verifica el JWT del IdP upstream, resuelve principal+tenant una
// sola vez y deja el Actor en el context. Credencial mala y perfil
// inexistente responden lo mismo (401 genérico); la causa real va a logs.
func BearerAuth(verifier identity.Verifier, resolver *identity.Resolver) Middleware {
	log := logger.Named("auth")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				httperrors.WriteError(w, httperrors.ErrUnauthorized)
				return
			}

			principalID, err := verifier.VerifyBearerToken(r.Context(), raw)
			if err != nil {
				log.Debug("bearer verification failed", zap.Error(err))
				httperrors.WriteError(w, httperrors.ErrInvalidCredentials)
				return
			}

			p, t, err := resolver.Resolve(r.Context(), principalID)
			if err != nil {
				switch {
				case errors.Is(err, identity.ErrIdentityNotFound):
					log.Debug("no profile for verified credential", zap.String("principal_id", principalID))
					httperrors.WriteError(w, httperrors.ErrInvalidCredentials)
				case errors.Is(err, identity.ErrAccountSuspended):
					httperrors.WriteError(w, httperrors.ErrAccountSuspended)
				default:
					httperrors.WriteError(w, httperrors.ErrInternal.WithCause(err))
				}
				return
			}

			ctx := identity.WithActor(r.Context(), &identity.Actor{Principal: p, Tenant: t})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// APIKeyAuth autentica callers programáticos (Authorization: Bearer gk_...).
func APIKeyAuth(svc *apikey.Service) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := bearerToken(r)
			if !ok {
				httperrors.WriteError(w, httperrors.ErrUnauthorized)
				return
			}

			k, err := svc.Verify(r.Context(), raw)
			if err != nil {
				if errors.Is(err, apikey.ErrInvalidKey) {
					httperrors.WriteError(w, httperrors.ErrInvalidCredentials)
				} else {
					httperrors.WriteError(w, httperrors.ErrInternal.WithCause(err))
				}
				return
			}

			ctx := identity.WithActor(r.Context(), &identity.Actor{APIKey: k})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole corta con 403 si el rol del actor no está en la lista.
func RequireRole(roles ...string) Middleware {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a, ok := identity.ActorFrom(r.Context())
			if !ok || a.Principal == nil {
				httperrors.WriteError(w, httperrors.ErrUnauthorized)
				return
			}
			if !allowed[a.Principal.Role] {
				httperrors.WriteError(w, httperrors.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireScope protege rutas autenticadas por clave de API.
func RequireScope(required string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a, ok := identity.ActorFrom(r.Context())
			if !ok || a.APIKey == nil {
				httperrors.WriteError(w, httperrors.ErrUnauthorized)
				return
			}
			if !apikey.HasScope(a.APIKey.Scopes, required) {
				httperrors.WriteError(w, httperrors.ErrInsufficientScopes.WithDetail("required scope: "+required))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if h == "" {
		return "", false
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
