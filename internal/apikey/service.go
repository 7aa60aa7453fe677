package apikey

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dropDatabas3/gatekeeper/internal/audit"
	"github.com/dropDatabas3/gatekeeper/internal/observability/logger"
	"github.com/dropDatabas3/gatekeeper/internal/security/token"
	"github.com/dropDatabas3/gatekeeper/internal/store/core"
)

const (
	rawPrefix    = "gk_"
	rawBytes     = 32
	prefixLength = 12
)

var (
	// ErrInvalidKey cubre clave inexistente, inactiva o vencida. A propósito
	// no distingue los casos hacia el caller.
	ErrInvalidKey = errors.New("invalid api key")
	// ErrKeyNotFound es para operaciones de gestión scoped por tenant.
	ErrKeyNotFound = errors.New("api key not found")
)

// Issued empareja la metadata persistida con el valor crudo, que se entrega
// una única vez y no vuelve a ser recuperable.
type Issued struct {
	Key    *core.APIKey
	RawKey string
}

// Service administra el ciclo de vida de las claves de API. El digest
// persistido es HMAC-SHA256(pepper, raw): determinístico para lookup,
// inservible sin el pepper del servidor.
type Service struct {
	store    core.APIKeyStore
	pepper   []byte
	recorder *audit.Recorder
}

func NewService(store core.APIKeyStore, pepper []byte, recorder *audit.Recorder) *Service {
	p := make([]byte, len(pepper))
	copy(p, pepper)
	return &Service{store: store, pepper: p, recorder: recorder}
}

func (s *Service) Issue(ctx context.Context, tenantID, createdBy, name string, scopes []string, expiresAt *time.Time) (*Issued, error) {
	raw, err := s.generate()
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	k := &core.APIKey{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Name:      strings.TrimSpace(name),
		KeyHash:   token.MACBase64URL(s.pepper, raw),
		KeyPrefix: raw[:prefixLength],
		Scopes:    NormalizeScopes(scopes),
		IsActive:  true,
		ExpiresAt: expiresAt,
		CreatedBy: createdBy,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.CreateAPIKey(ctx, k); err != nil {
		return nil, err
	}

	s.record(ctx, tenantID, createdBy, "apikey.issued", k)
	return &Issued{Key: k, RawKey: raw}, nil
}

// Rotate reemplaza hash y prefix de la misma fila. La clave anterior queda
// inválida en el mismo instante en que la nueva existe.
func (s *Service) Rotate(ctx context.Context, tenantID, actorID, keyID string) (*Issued, error) {
	raw, err := s.generate()
	if err != nil {
		return nil, err
	}

	k, err := s.store.RotateAPIKey(ctx, tenantID, keyID, token.MACBase64URL(s.pepper, raw), raw[:prefixLength])
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}

	s.record(ctx, tenantID, actorID, "apikey.rotated", k)
	return &Issued{Key: k, RawKey: raw}, nil
}

// Revoke es idempotente sobre claves ya revocadas.
func (s *Service) Revoke(ctx context.Context, tenantID, actorID, keyID string) error {
	if err := s.store.RevokeAPIKey(ctx, tenantID, keyID); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return ErrKeyNotFound
		}
		return err
	}
	s.record(ctx, tenantID, actorID, "apikey.revoked", &core.APIKey{ID: keyID, TenantID: tenantID})
	return nil
}

func (s *Service) List(ctx context.Context, tenantID string) ([]core.APIKey, error) {
	return s.store.ListAPIKeys(ctx, tenantID)
}

func (s *Service) Get(ctx context.Context, tenantID, keyID string) (*core.APIKey, error) {
	k, err := s.store.GetAPIKey(ctx, tenantID, keyID)
	if errors.Is(err, core.ErrNotFound) {
		return nil, ErrKeyNotFound
	}
	return k, err
}

// Verify autentica un valor crudo presentado por un caller. El touch de
// last_used_at sale en una goroutine aparte con su propio deadline: el
// request path nunca espera esa escritura.
func (s *Service) Verify(ctx context.Context, raw string) (*core.APIKey, error) {
	if !strings.HasPrefix(raw, rawPrefix) {
		return nil, ErrInvalidKey
	}

	k, err := s.store.GetAPIKeyByHash(ctx, token.MACBase64URL(s.pepper, raw))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, ErrInvalidKey
		}
		return nil, err
	}
	if !k.IsValid() {
		return nil, ErrInvalidKey
	}

	go func(keyID string) {
		tctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := s.store.TouchAPIKey(tctx, keyID, time.Now().UTC()); err != nil {
			logger.Named("apikey").Warn("last_used_at touch failed", zap.Error(err))
		}
	}(k.ID)

	return k, nil
}

func (s *Service) generate() (string, error) {
	t, err := token.GenerateOpaque(rawBytes)
	if err != nil {
		return "", err
	}
	return rawPrefix + t, nil
}

// record emite al audit trail nombre e id de la clave, nunca material.
func (s *Service) record(ctx context.Context, tenantID, actorID, action string, k *core.APIKey) {
	if s.recorder == nil {
		return
	}
	details := map[string]any{"key_id": k.ID}
	if k.Name != "" {
		details["name"] = k.Name
	}
	s.recorder.Record(ctx, tenantID, actorID, action, "api_key", k.ID, details)
}
