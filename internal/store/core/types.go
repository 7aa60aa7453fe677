package core

import "time"

// Principal es un actor autenticado dentro de un tenant.
// tenant_id is immutable after creation; accounts are deactivated, never deleted.
type Principal struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	Role      string    `json:"role"`
	Email     string    `json:"email"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

// TenantSettings holds the per-tenant overrides that matter to this core.
// ModulesEnabled, when non-empty, fully replaces the role default module list.
type TenantSettings struct {
	ModulesEnabled []string `json:"modules_enabled,omitempty"`
}

type Tenant struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Plan      string         `json:"plan"`
	MaxUsers  int            `json:"max_users"`
	Settings  TenantSettings `json:"settings"`
	CreatedAt time.Time      `json:"created_at"`
}

// APIKey: solo se persiste el digest y el prefix; el valor crudo se entrega
// una única vez (al emitir y al rotar).
type APIKey struct {
	ID         string     `json:"id"`
	TenantID   string     `json:"tenant_id"`
	Name       string     `json:"name"`
	KeyHash    string     `json:"-"`
	KeyPrefix  string     `json:"key_prefix"`
	Scopes     []string   `json:"scopes"`
	IsActive   bool       `json:"is_active"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedBy  string     `json:"created_by"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// IsExpired reports whether the key has a deadline in the past.
func (k *APIKey) IsExpired() bool {
	return k.ExpiresAt != nil && !k.ExpiresAt.After(time.Now().UTC())
}

// IsValid: activa y no vencida.
func (k *APIKey) IsValid() bool {
	return k.IsActive && !k.IsExpired()
}

// MagicLinkToken is the stored half of a single-use capability token.
// State machine: issued -> redeemed (used_at set) or issued -> expired
// (derived from expires_at, never stored).
type MagicLinkToken struct {
	ID         string     `json:"id"`
	TenantID   string     `json:"tenant_id"`
	TokenHash  string     `json:"-"`
	Purpose    string     `json:"purpose"`
	SubjectRef string     `json:"subject_ref"`
	Metadata   string     `json:"-"` // serialized (optionally sealed) payload
	ExpiresAt  time.Time  `json:"expires_at"`
	UsedAt     *time.Time `json:"used_at,omitempty"`
	CreatedBy  string     `json:"created_by"`
	CreatedAt  time.Time  `json:"created_at"`
}

// AuditEntry is append-only; this core never updates or deletes rows.
type AuditEntry struct {
	ID           string         `json:"id"`
	TenantID     string         `json:"tenant_id"`
	ActorID      string         `json:"actor_id"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type"`
	ResourceID   string         `json:"resource_id,omitempty"`
	Details      map[string]any `json:"details,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}
