package identity

import (
	"context"

	"github.com/dropDatabas3/gatekeeper/internal/store/core"
)

// Actor es el resultado de autenticar una request. Se resuelve una sola vez
// por request y viaja en el context; nadie vuelve a consultar la base.
type Actor struct {
	Principal *core.Principal
	Tenant    *core.Tenant

	// APIKey no es nil cuando la request se autenticó con clave de API.
	// En ese caso Principal es nil y la autorización se decide por scopes.
	APIKey *core.APIKey
}

// TenantID funciona para ambos tipos de actor.
func (a *Actor) TenantID() string {
	if a.APIKey != nil {
		return a.APIKey.TenantID
	}
	if a.Principal != nil {
		return a.Principal.TenantID
	}
	return ""
}

// ActorID identifica al actor en el audit trail.
func (a *Actor) ActorID() string {
	if a.APIKey != nil {
		return "apikey:" + a.APIKey.ID
	}
	if a.Principal != nil {
		return a.Principal.ID
	}
	return ""
}

type ctxKey struct{}

func WithActor(ctx context.Context, a *Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

func ActorFrom(ctx context.Context) (*Actor, bool) {
	a, ok := ctx.Value(ctxKey{}).(*Actor)
	return a, ok && a != nil
}
