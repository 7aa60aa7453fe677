package identity

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/gatekeeper/internal/store/core"
)

var (
	// ErrIdentityNotFound: credencial válida pero sin perfil en la plataforma.
	ErrIdentityNotFound = errors.New("identity not found")
	// ErrAccountSuspended: la cuenta existe pero is_active=false.
	ErrAccountSuspended = errors.New("account suspended")
)

// Resolver carga principal + tenant para un principal ID ya verificado.
type Resolver struct {
	store core.PrincipalStore
}

func NewResolver(store core.PrincipalStore) *Resolver {
	return &Resolver{store: store}
}

// Resolve hace un único round trip (JOIN principals->tenants). Al ser una
// lectura pura, un fallo transitorio del store se reintenta una vez con
// backoff corto antes de rendirse.
func (r *Resolver) Resolve(ctx context.Context, principalID string) (*core.Principal, *core.Tenant, error) {
	p, t, err := r.store.GetPrincipal(ctx, principalID)
	if err != nil && !errors.Is(err, core.ErrNotFound) && ctx.Err() == nil {
		select {
		case <-time.After(150 * time.Millisecond):
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		}
		p, t, err = r.store.GetPrincipal(ctx, principalID)
	}
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, nil, ErrIdentityNotFound
		}
		return nil, nil, err
	}
	if !p.IsActive {
		return nil, nil, ErrAccountSuspended
	}
	return p, t, nil
}
