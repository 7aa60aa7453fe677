package magiclink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/gatekeeper/internal/audit"
	"github.com/dropDatabas3/gatekeeper/internal/metrics"
	"github.com/dropDatabas3/gatekeeper/internal/security/secretbox"
	"github.com/dropDatabas3/gatekeeper/internal/security/token"
	"github.com/dropDatabas3/gatekeeper/internal/store/core"
)

const rawBytes = 32

var (
	// ErrInvalidToken conflata inexistente, vencido y ya usado. El canje es
	// una operación de verificación: el caller no aprende cuál fue el caso.
	ErrInvalidToken = errors.New("invalid or unusable token")
	// ErrUnknownPurpose: el propósito pedido no existe.
	ErrUnknownPurpose = errors.New("unknown token purpose")
)

// Redemption es lo que obtiene quien canjea un token válido.
type Redemption struct {
	TokenID    string
	TenantID   string
	Purpose    Purpose
	SubjectRef string
	Metadata   map[string]any
}

// Service emite y canjea magic links. Solo el digest SHA-256 del token toca
// la base; la metadata puede sellarse en reposo con AES-GCM.
type Service struct {
	store    core.MagicLinkStore
	box      *secretbox.Box // nil -> metadata en claro
	recorder *audit.Recorder
}

func NewService(store core.MagicLinkStore, box *secretbox.Box, recorder *audit.Recorder) *Service {
	return &Service{store: store, box: box, recorder: recorder}
}

// Issue genera el token crudo, persiste su digest y devuelve el crudo una
// única vez. ttl <= 0 usa el default del propósito.
func (s *Service) Issue(ctx context.Context, tenantID, createdBy string, purpose Purpose, subjectRef string, metadata map[string]any, ttl time.Duration) (string, *core.MagicLinkToken, error) {
	if !purpose.Valid() {
		return "", nil, ErrUnknownPurpose
	}
	if ttl <= 0 {
		ttl = purpose.DefaultTTL()
	}

	raw, err := token.GenerateOpaque(rawBytes)
	if err != nil {
		return "", nil, err
	}

	meta, err := s.sealMetadata(metadata)
	if err != nil {
		return "", nil, err
	}

	now := time.Now().UTC()
	t := &core.MagicLinkToken{
		ID:         uuid.NewString(),
		TenantID:   tenantID,
		TokenHash:  token.SHA256Base64URL(raw),
		Purpose:    string(purpose),
		SubjectRef: subjectRef,
		Metadata:   meta,
		ExpiresAt:  now.Add(ttl),
		CreatedBy:  createdBy,
		CreatedAt:  now,
	}
	if err := s.store.CreateMagicLink(ctx, t); err != nil {
		return "", nil, err
	}

	if s.recorder != nil {
		s.recorder.Record(ctx, tenantID, createdBy, "magiclink.issued", "magic_link", t.ID, map[string]any{
			"purpose":     string(purpose),
			"subject_ref": subjectRef,
			"expires_at":  t.ExpiresAt,
		})
	}
	return raw, t, nil
}

// Redeem consume el token: un solo UPDATE condicional en el store decide el
// ganador entre canjes concurrentes. Todo fallo de verificación es el mismo
// ErrInvalidToken.
func (s *Service) Redeem(ctx context.Context, raw string, purpose Purpose) (*Redemption, error) {
	if !purpose.Valid() {
		return nil, ErrUnknownPurpose
	}

	t, err := s.store.RedeemMagicLink(ctx, token.SHA256Base64URL(raw), string(purpose), time.Now().UTC())
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			metrics.TokenRedemptions.WithLabelValues(string(purpose), "rejected").Inc()
			return nil, ErrInvalidToken
		}
		return nil, err
	}

	meta, err := s.openMetadata(t.Metadata)
	if err != nil {
		return nil, fmt.Errorf("open metadata: %w", err)
	}

	metrics.TokenRedemptions.WithLabelValues(string(purpose), "redeemed").Inc()
	if s.recorder != nil {
		s.recorder.Record(ctx, t.TenantID, t.SubjectRef, "magiclink.redeemed", "magic_link", t.ID, map[string]any{
			"purpose": t.Purpose,
		})
	}

	return &Redemption{
		TokenID:    t.ID,
		TenantID:   t.TenantID,
		Purpose:    Purpose(t.Purpose),
		SubjectRef: t.SubjectRef,
		Metadata:   meta,
	}, nil
}

func (s *Service) sealMetadata(metadata map[string]any) (string, error) {
	if len(metadata) == 0 {
		return "", nil
	}
	b, err := json.Marshal(metadata)
	if err != nil {
		return "", err
	}
	if s.box == nil {
		return string(b), nil
	}
	return s.box.Seal(string(b))
}

func (s *Service) openMetadata(stored string) (map[string]any, error) {
	if stored == "" {
		return nil, nil
	}
	plain := stored
	if s.box != nil {
		var err error
		plain, err = s.box.Open(stored)
		if err != nil {
			return nil, err
		}
	}
	var meta map[string]any
	if err := json.Unmarshal([]byte(plain), &meta); err != nil {
		return nil, err
	}
	return meta, nil
}
