package apikey

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dropDatabas3/gatekeeper/internal/store/core"
)

// fakeKeyStore: implementación en memoria de core.APIKeyStore.
type fakeKeyStore struct {
	mu   sync.Mutex
	keys map[string]*core.APIKey // por id
}

func newFakeKeyStore() *fakeKeyStore {
	return &fakeKeyStore{keys: make(map[string]*core.APIKey)}
}

func (f *fakeKeyStore) CreateAPIKey(_ context.Context, k *core.APIKey) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *k
	f.keys[k.ID] = &cp
	return nil
}

func (f *fakeKeyStore) GetAPIKey(_ context.Context, tenantID, keyID string) (*core.APIKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k, ok := f.keys[keyID]
	if !ok || k.TenantID != tenantID {
		return nil, core.ErrNotFound
	}
	cp := *k
	return &cp, nil
}

func (f *fakeKeyStore) GetAPIKeyByHash(_ context.Context, keyHash string) (*core.APIKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range f.keys {
		if k.KeyHash == keyHash {
			cp := *k
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (f *fakeKeyStore) ListAPIKeys(_ context.Context, tenantID string) ([]core.APIKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []core.APIKey
	for _, k := range f.keys {
		if k.TenantID == tenantID {
			out = append(out, *k)
		}
	}
	return out, nil
}

func (f *fakeKeyStore) RotateAPIKey(_ context.Context, tenantID, keyID, newHash, newPrefix string) (*core.APIKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k, ok := f.keys[keyID]
	if !ok || k.TenantID != tenantID || !k.IsActive {
		return nil, core.ErrNotFound
	}
	k.KeyHash = newHash
	k.KeyPrefix = newPrefix
	k.UpdatedAt = time.Now().UTC()
	cp := *k
	return &cp, nil
}

func (f *fakeKeyStore) RevokeAPIKey(_ context.Context, tenantID, keyID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	k, ok := f.keys[keyID]
	if !ok || k.TenantID != tenantID {
		return core.ErrNotFound
	}
	k.IsActive = false
	return nil
}

func (f *fakeKeyStore) TouchAPIKey(_ context.Context, keyID string, usedAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if k, ok := f.keys[keyID]; ok {
		k.LastUsedAt = &usedAt
	}
	return nil
}

func newTestService() (*Service, *fakeKeyStore) {
	store := newFakeKeyStore()
	return NewService(store, []byte("pepper"), nil), store
}

func TestIssueAndVerify(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	issued, err := svc.Issue(ctx, "t1", "admin-1", "ci key", []string{"crm:*"}, nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !strings.HasPrefix(issued.RawKey, "gk_") {
		t.Fatalf("raw key missing prefix: %q", issued.RawKey)
	}
	if issued.Key.KeyPrefix != issued.RawKey[:12] {
		t.Fatalf("stored prefix %q != first 12 chars of raw", issued.Key.KeyPrefix)
	}
	if issued.Key.KeyHash == issued.RawKey {
		t.Fatalf("raw key stored verbatim")
	}

	k, err := svc.Verify(ctx, issued.RawKey)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if k.ID != issued.Key.ID {
		t.Fatalf("verified wrong key")
	}
}

func TestVerify_RejectsGarbage(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	for _, raw := range []string{"", "nope", "gk_doesnotexist"} {
		if _, err := svc.Verify(ctx, raw); err != ErrInvalidKey {
			t.Fatalf("Verify(%q) = %v, want ErrInvalidKey", raw, err)
		}
	}
}

func TestVerify_ExpiredAndRevoked(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	past := time.Now().UTC().Add(-time.Hour)
	expired, err := svc.Issue(ctx, "t1", "admin-1", "old", nil, &past)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := svc.Verify(ctx, expired.RawKey); err != ErrInvalidKey {
		t.Fatalf("expired key verified: %v", err)
	}

	issued, err := svc.Issue(ctx, "t1", "admin-1", "to revoke", nil, nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := svc.Revoke(ctx, "t1", "admin-1", issued.Key.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := svc.Verify(ctx, issued.RawKey); err != ErrInvalidKey {
		t.Fatalf("revoked key verified: %v", err)
	}

	// revocar de nuevo es un no-op, no un error
	if err := svc.Revoke(ctx, "t1", "admin-1", issued.Key.ID); err != nil {
		t.Fatalf("second revoke should be idempotent: %v", err)
	}
}

func TestRotate_InvalidatesOldRaw(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	issued, err := svc.Issue(ctx, "t1", "admin-1", "rotating", nil, nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	rotated, err := svc.Rotate(ctx, "t1", "admin-1", issued.Key.ID)
	if err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if rotated.RawKey == issued.RawKey {
		t.Fatalf("rotate returned the same raw key")
	}
	if rotated.Key.ID != issued.Key.ID {
		t.Fatalf("rotate changed the key id")
	}

	if _, err := svc.Verify(ctx, issued.RawKey); err != ErrInvalidKey {
		t.Fatalf("old raw key still verifies after rotate")
	}
	if _, err := svc.Verify(ctx, rotated.RawKey); err != nil {
		t.Fatalf("new raw key does not verify: %v", err)
	}
}

func TestRotate_WrongTenantIsNotFound(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	issued, err := svc.Issue(ctx, "t1", "admin-1", "mine", nil, nil)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if _, err := svc.Rotate(ctx, "t2", "admin-2", issued.Key.ID); err != ErrKeyNotFound {
		t.Fatalf("cross-tenant rotate = %v, want ErrKeyNotFound", err)
	}
	if err := svc.Revoke(ctx, "t2", "admin-2", issued.Key.ID); err != ErrKeyNotFound {
		t.Fatalf("cross-tenant revoke = %v, want ErrKeyNotFound", err)
	}
}
