package core

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// PrincipalStore resuelve identidad y tenant (read-only).
type PrincipalStore interface {
	GetPrincipal(ctx context.Context, principalID string) (*Principal, *Tenant, error)
}

type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, k *APIKey) error
	GetAPIKey(ctx context.Context, tenantID, keyID string) (*APIKey, error)
	GetAPIKeyByHash(ctx context.Context, keyHash string) (*APIKey, error)
	ListAPIKeys(ctx context.Context, tenantID string) ([]APIKey, error)
	RotateAPIKey(ctx context.Context, tenantID, keyID, newHash, newPrefix string) (*APIKey, error)
	RevokeAPIKey(ctx context.Context, tenantID, keyID string) error
	TouchAPIKey(ctx context.Context, keyID string, usedAt time.Time) error
}

type MagicLinkStore interface {
	CreateMagicLink(ctx context.Context, t *MagicLinkToken) error
	RedeemMagicLink(ctx context.Context, tokenHash, purpose string, now time.Time) (*MagicLinkToken, error)
}

type AuditStore interface {
	AppendAudit(ctx context.Context, e *AuditEntry) error
	ListAudit(ctx context.Context, tenantID string, limit int) ([]AuditEntry, error)
}

// Store agrupa todas las piezas que persiste el core.
type Store interface {
	PrincipalStore
	APIKeyStore
	MagicLinkStore
	AuditStore

	Ping(ctx context.Context) error
	Close()
}
