package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/gatekeeper/internal/access"
	"github.com/dropDatabas3/gatekeeper/internal/apikey"
	"github.com/dropDatabas3/gatekeeper/internal/http/handlers"
	"github.com/dropDatabas3/gatekeeper/internal/identity"
	"github.com/dropDatabas3/gatekeeper/internal/magiclink"
	"github.com/dropDatabas3/gatekeeper/internal/rate"
	"github.com/dropDatabas3/gatekeeper/internal/session"
	"github.com/dropDatabas3/gatekeeper/internal/store/core"
)

// memStore implementa core.Store completo en memoria para los tests HTTP.
type memStore struct {
	mu         sync.Mutex
	principals map[string]*core.Principal
	tenants    map[string]*core.Tenant
	keys       map[string]*core.APIKey
	links      map[string]*core.MagicLinkToken
	audit      []core.AuditEntry
}

func newMemStore() *memStore {
	return &memStore{
		principals: make(map[string]*core.Principal),
		tenants:    make(map[string]*core.Tenant),
		keys:       make(map[string]*core.APIKey),
		links:      make(map[string]*core.MagicLinkToken),
	}
}

func (m *memStore) GetPrincipal(_ context.Context, id string) (*core.Principal, *core.Tenant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.principals[id]
	if !ok {
		return nil, nil, core.ErrNotFound
	}
	t := m.tenants[p.TenantID]
	pc, tc := *p, *t
	return &pc, &tc, nil
}

func (m *memStore) CreateAPIKey(_ context.Context, k *core.APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *k
	m.keys[k.ID] = &cp
	return nil
}

func (m *memStore) GetAPIKey(_ context.Context, tenantID, keyID string) (*core.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[keyID]
	if !ok || k.TenantID != tenantID {
		return nil, core.ErrNotFound
	}
	cp := *k
	return &cp, nil
}

func (m *memStore) GetAPIKeyByHash(_ context.Context, hash string) (*core.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range m.keys {
		if k.KeyHash == hash {
			cp := *k
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (m *memStore) ListAPIKeys(_ context.Context, tenantID string) ([]core.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.APIKey
	for _, k := range m.keys {
		if k.TenantID == tenantID {
			out = append(out, *k)
		}
	}
	return out, nil
}

func (m *memStore) RotateAPIKey(_ context.Context, tenantID, keyID, newHash, newPrefix string) (*core.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[keyID]
	if !ok || k.TenantID != tenantID || !k.IsActive {
		return nil, core.ErrNotFound
	}
	k.KeyHash, k.KeyPrefix = newHash, newPrefix
	cp := *k
	return &cp, nil
}

func (m *memStore) RevokeAPIKey(_ context.Context, tenantID, keyID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k, ok := m.keys[keyID]
	if !ok || k.TenantID != tenantID {
		return core.ErrNotFound
	}
	k.IsActive = false
	return nil
}

func (m *memStore) TouchAPIKey(_ context.Context, keyID string, usedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if k, ok := m.keys[keyID]; ok {
		k.LastUsedAt = &usedAt
	}
	return nil
}

func (m *memStore) CreateMagicLink(_ context.Context, t *core.MagicLinkToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *t
	m.links[t.TokenHash] = &cp
	return nil
}

func (m *memStore) RedeemMagicLink(_ context.Context, hash, purpose string, now time.Time) (*core.MagicLinkToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.links[hash]
	if !ok || t.Purpose != purpose || t.UsedAt != nil || !t.ExpiresAt.After(now) {
		return nil, core.ErrNotFound
	}
	used := now
	t.UsedAt = &used
	cp := *t
	return &cp, nil
}

func (m *memStore) AppendAudit(_ context.Context, e *core.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audit = append(m.audit, *e)
	return nil
}

func (m *memStore) ListAudit(_ context.Context, tenantID string, limit int) ([]core.AuditEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []core.AuditEntry
	for _, e := range m.audit {
		if e.TenantID == tenantID {
			out = append(out, e)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) Ping(context.Context) error { return nil }
func (m *memStore) Close()                     {}

// staticVerifier mapea tokens de prueba a principal IDs.
type staticVerifier struct{ tokens map[string]string }

func (v *staticVerifier) VerifyBearerToken(_ context.Context, tok string) (string, error) {
	if id, ok := v.tokens[tok]; ok {
		return id, nil
	}
	return "", identity.ErrBadCredential
}

type fixture struct {
	router *Router
	store  *memStore
	keys   *apikey.Service
}

func newFixture(t *testing.T, presets rate.Presets) *fixture {
	t.Helper()

	store := newMemStore()
	store.tenants["t1"] = &core.Tenant{ID: "t1", Name: "Acme", Plan: "pro"}
	store.principals["admin-1"] = &core.Principal{ID: "admin-1", TenantID: "t1", Role: "admin", Email: "a@acme.io", IsActive: true}
	store.principals["sales-1"] = &core.Principal{ID: "sales-1", TenantID: "t1", Role: "sales", Email: "s@acme.io", IsActive: true}
	store.principals["frozen-1"] = &core.Principal{ID: "frozen-1", TenantID: "t1", Role: "sales", Email: "f@acme.io", IsActive: false}

	verifier := &staticVerifier{tokens: map[string]string{
		"tok-admin":  "admin-1",
		"tok-sales":  "sales-1",
		"tok-frozen": "frozen-1",
		"tok-ghost":  "ghost-1", // credencial válida sin perfil
	}}

	if presets == nil {
		presets = rate.Presets{
			rate.ClassAuth:       {Max: 1000, Window: time.Minute},
			rate.ClassSensitive:  {Max: 1000, Window: time.Minute},
			rate.ClassPublicForm: {Max: 1000, Window: time.Minute},
			rate.ClassAPI:        {Max: 1000, Window: time.Minute},
			rate.ClassAdmin:      {Max: 1000, Window: time.Minute},
		}
	}
	limiter := rate.NewMemoryLimiter(presets)

	keys := apikey.NewService(store, []byte("pepper"), nil)
	links := magiclink.NewService(store, nil, nil)
	codec := session.NewCodec([]byte("session-secret"))
	policy := access.DefaultPolicy()
	resolver := identity.NewResolver(store)

	router := NewRouter(RouterDeps{
		Verifier: verifier,
		Resolver: resolver,
		Policy:   policy,
		Limiter:  limiter,
		APIKeys:  keys,
		Store:    store,
		Me:       &handlers.MeHandler{Policy: policy},
		Keys:     &handlers.APIKeysHandler{Service: keys},
		Links: &handlers.MagicLinksHandler{
			Service:    links,
			Codec:      codec,
			CookieName: "gk_portal_session",
			CookieTTL:  time.Hour,
		},
		Portal: &handlers.PortalHandler{Codec: codec, CookieName: "gk_portal_session"},
		Audit:  &handlers.AuditHandler{Store: store},
	})
	return &fixture{router: router, store: store, keys: keys}
}

func (f *fixture) do(method, path, bearer string, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	rec := httptest.NewRecorder()
	f.router.Handler().ServeHTTP(rec, req)
	return rec
}

func TestAuth_StatusCodes(t *testing.T) {
	f := newFixture(t, nil)

	// sin credencial
	assert.Equal(t, http.StatusUnauthorized, f.do("GET", "/v1/me", "", "").Code)
	// credencial inválida
	assert.Equal(t, http.StatusUnauthorized, f.do("GET", "/v1/me", "tok-bogus", "").Code)
	// credencial válida sin perfil: misma respuesta genérica
	assert.Equal(t, http.StatusUnauthorized, f.do("GET", "/v1/me", "tok-ghost", "").Code)
	// cuenta suspendida: 403, no 401
	assert.Equal(t, http.StatusForbidden, f.do("GET", "/v1/me", "tok-frozen", "").Code)
	// OK
	rec := f.do("GET", "/v1/me", "tok-admin", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var me struct {
		Role    string   `json:"role"`
		Modules []string `json:"modules"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	assert.Equal(t, "admin", me.Role)
	assert.Len(t, me.Modules, len(access.AllModules))
}

func TestAPIKeys_AdminOnlyLifecycle(t *testing.T) {
	f := newFixture(t, nil)

	// sales no puede emitir claves
	rec := f.do("POST", "/v1/apikeys", "tok-sales", `{"name":"ci","scopes":["crm:*"]}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// admin sí
	rec = f.do("POST", "/v1/apikeys", "tok-admin", `{"name":"ci","scopes":["crm:*"]}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Key struct {
			ID        string `json:"id"`
			KeyPrefix string `json:"key_prefix"`
		} `json:"key"`
		RawKey string `json:"raw_key"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.RawKey)
	assert.True(t, strings.HasPrefix(created.RawKey, "gk_"))

	// el listado no expone material de la clave
	rec = f.do("GET", "/v1/apikeys", "tok-admin", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), created.RawKey)
	assert.Contains(t, rec.Body.String(), created.Key.KeyPrefix)

	// rotate devuelve un crudo nuevo
	rec = f.do("POST", "/v1/apikeys/"+created.Key.ID+"/rotate", "tok-admin", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var rotated struct {
		RawKey string `json:"raw_key"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rotated))
	assert.NotEqual(t, created.RawKey, rotated.RawKey)

	// revoke es 204 e idempotente; id ajeno es 404
	assert.Equal(t, http.StatusNoContent, f.do("DELETE", "/v1/apikeys/"+created.Key.ID, "tok-admin", "").Code)
	assert.Equal(t, http.StatusNoContent, f.do("DELETE", "/v1/apikeys/"+created.Key.ID, "tok-admin", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do("DELETE", "/v1/apikeys/nope", "tok-admin", "").Code)
}

func TestMagicLink_RedeemFlowWithPortalSession(t *testing.T) {
	f := newFixture(t, nil)

	rec := f.do("POST", "/v1/links", "tok-admin", `{"purpose":"portal_invite","subject_ref":"client-9"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	var issued struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &issued))
	require.NotEmpty(t, issued.Token)

	// canje válido instala la cookie del portal
	rec = f.do("POST", "/v1/links/redeem", "", `{"token":"`+issued.Token+`","purpose":"portal_invite"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == "gk_portal_session" {
			cookie = c
		}
	}
	require.NotNil(t, cookie, "portal session cookie missing")
	assert.True(t, cookie.HttpOnly)

	// segundo canje del mismo token: 401 genérico
	rec = f.do("POST", "/v1/links/redeem", "", `{"token":"`+issued.Token+`","purpose":"portal_invite"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// la cookie abre el portal
	req := httptest.NewRequest("GET", "/v1/portal/me", nil)
	req.AddCookie(cookie)
	rec2 := httptest.NewRecorder()
	f.router.Handler().ServeHTTP(rec2, req)
	require.Equal(t, http.StatusOK, rec2.Code)
	assert.Contains(t, rec2.Body.String(), "client-9")

	// sin cookie: 401
	assert.Equal(t, http.StatusUnauthorized, f.do("GET", "/v1/portal/me", "", "").Code)

	// logout responde cookie de borrado
	rec = f.do("POST", "/v1/portal/logout", "", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, -1, cookies[0].MaxAge)
}

func TestRateLimit_429WithRetryAfter(t *testing.T) {
	f := newFixture(t, rate.Presets{
		rate.ClassPublicForm: {Max: 2, Window: time.Minute},
		rate.ClassAPI:        {Max: 1000, Window: time.Minute},
		rate.ClassAdmin:      {Max: 1000, Window: time.Minute},
		rate.ClassSensitive:  {Max: 1000, Window: time.Minute},
	})

	body := `{"token":"x","purpose":"portal_invite"}`
	assert.Equal(t, http.StatusUnauthorized, f.do("POST", "/v1/links/redeem", "", body).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do("POST", "/v1/links/redeem", "", body).Code)

	rec := f.do("POST", "/v1/links/redeem", "", body)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestModuleGate(t *testing.T) {
	f := newFixture(t, nil)

	okHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("business"))
	})
	f.router.Mount("finance", okHandler)
	f.router.Mount("crm", okHandler)

	// sales entra a crm pero no a finance
	assert.Equal(t, http.StatusOK, f.do("GET", "/v1/modules/crm/anything", "tok-sales", "").Code)
	assert.Equal(t, http.StatusForbidden, f.do("GET", "/v1/modules/finance/anything", "tok-sales", "").Code)
	// admin entra a todo
	assert.Equal(t, http.StatusOK, f.do("GET", "/v1/modules/finance/anything", "tok-admin", "").Code)
	// sin credencial no se llega ni al gate
	assert.Equal(t, http.StatusUnauthorized, f.do("GET", "/v1/modules/crm/anything", "", "").Code)
}

func TestAPIKeyAuthAndScopes(t *testing.T) {
	f := newFixture(t, nil)

	issued, err := f.keys.Issue(context.Background(), "t1", "admin-1", "integration", []string{"crm:*"}, nil)
	require.NoError(t, err)

	echo := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	f.router.MountAPIKeyed("/v1/export/crm", "crm:export", echo)
	f.router.MountAPIKeyed("/v1/export/finance", "finance:export", echo)

	// scope cubierto por el wildcard crm:*
	assert.Equal(t, http.StatusOK, f.do("GET", "/v1/export/crm", issued.RawKey, "").Code)
	// scope no otorgado
	assert.Equal(t, http.StatusForbidden, f.do("GET", "/v1/export/finance", issued.RawKey, "").Code)
	// clave inválida
	assert.Equal(t, http.StatusUnauthorized, f.do("GET", "/v1/export/crm", "gk_bogus", "").Code)
}

func TestAuditTrail(t *testing.T) {
	f := newFixture(t, nil)

	// generar actividad auditada directamente contra el store
	f.store.audit = append(f.store.audit, core.AuditEntry{
		ID: "e1", TenantID: "t1", ActorID: "admin-1", Action: "apikey.issued", ResourceType: "api_key", CreatedAt: time.Now().UTC(),
	})

	// solo admin puede leer
	assert.Equal(t, http.StatusForbidden, f.do("GET", "/v1/audit", "tok-sales", "").Code)

	rec := f.do("GET", "/v1/audit", "tok-admin", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "apikey.issued")

	// limit inválido
	assert.Equal(t, http.StatusBadRequest, f.do("GET", "/v1/audit?limit=-2", "tok-admin", "").Code)
}

func TestOpsEndpoints(t *testing.T) {
	f := newFixture(t, nil)
	assert.Equal(t, http.StatusOK, f.do("GET", "/healthz", "", "").Code)
	assert.Equal(t, http.StatusOK, f.do("GET", "/readyz", "", "").Code)
	assert.Equal(t, http.StatusOK, f.do("GET", "/metrics", "", "").Code)
	assert.Equal(t, http.StatusNotFound, f.do("GET", "/nope", "", "").Code)
}
