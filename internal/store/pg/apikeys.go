package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/dropDatabas3/gatekeeper/internal/store/core"
)

func (s *Store) CreateAPIKey(ctx context.Context, k *core.APIKey) error {
	const q = `
		INSERT INTO api_keys (id, tenant_id, name, key_hash, key_prefix, scopes, is_active, expires_at, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`
	_, err := s.pool.Exec(ctx, q,
		k.ID, k.TenantID, k.Name, k.KeyHash, k.KeyPrefix, k.Scopes, k.IsActive, k.ExpiresAt, k.CreatedBy, k.CreatedAt,
	)
	if err != nil && isUniqueViolation(err) {
		return core.ErrConflict
	}
	return err
}

func (s *Store) GetAPIKey(ctx context.Context, tenantID, keyID string) (*core.APIKey, error) {
	const q = `
		SELECT id, tenant_id, name, key_hash, key_prefix, scopes, is_active, expires_at, last_used_at, created_by, created_at, updated_at
		FROM api_keys
		WHERE id = $1 AND tenant_id = $2`
	return s.scanAPIKey(s.pool.QueryRow(ctx, q, keyID, tenantID))
}

func (s *Store) GetAPIKeyByHash(ctx context.Context, keyHash string) (*core.APIKey, error) {
	const q = `
		SELECT id, tenant_id, name, key_hash, key_prefix, scopes, is_active, expires_at, last_used_at, created_by, created_at, updated_at
		FROM api_keys
		WHERE key_hash = $1`
	return s.scanAPIKey(s.pool.QueryRow(ctx, q, keyHash))
}

func (s *Store) ListAPIKeys(ctx context.Context, tenantID string) ([]core.APIKey, error) {
	const q = `
		SELECT id, tenant_id, name, key_hash, key_prefix, scopes, is_active, expires_at, last_used_at, created_by, created_at, updated_at
		FROM api_keys
		WHERE tenant_id = $1
		ORDER BY created_at DESC`
	rows, err := s.pool.Query(ctx, q, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.APIKey
	for rows.Next() {
		k, err := scanAPIKeyRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *k)
	}
	return out, rows.Err()
}

// RotateAPIKey cambia hash y prefix en la misma fila, solo si la clave sigue
// activa y pertenece al tenant. Cero filas -> ErrNotFound.
func (s *Store) RotateAPIKey(ctx context.Context, tenantID, keyID, newHash, newPrefix string) (*core.APIKey, error) {
	const q = `
		UPDATE api_keys
		SET key_hash = $3, key_prefix = $4, updated_at = now()
		WHERE id = $1 AND tenant_id = $2 AND is_active = true
		RETURNING id, tenant_id, name, key_hash, key_prefix, scopes, is_active, expires_at, last_used_at, created_by, created_at, updated_at`
	k, err := s.scanAPIKey(s.pool.QueryRow(ctx, q, keyID, tenantID, newHash, newPrefix))
	if err != nil && isUniqueViolation(err) {
		return nil, core.ErrConflict
	}
	return k, err
}

// RevokeAPIKey es idempotente: revocar una clave ya revocada no es error,
// pero una clave inexistente en el tenant sí.
func (s *Store) RevokeAPIKey(ctx context.Context, tenantID, keyID string) error {
	const q = `UPDATE api_keys SET is_active = false, updated_at = now() WHERE id = $1 AND tenant_id = $2`
	ct, err := s.pool.Exec(ctx, q, keyID, tenantID)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *Store) TouchAPIKey(ctx context.Context, keyID string, usedAt time.Time) error {
	const q = `UPDATE api_keys SET last_used_at = $2 WHERE id = $1`
	_, err := s.pool.Exec(ctx, q, keyID, usedAt)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAPIKeyRow(r rowScanner) (*core.APIKey, error) {
	var k core.APIKey
	err := r.Scan(
		&k.ID, &k.TenantID, &k.Name, &k.KeyHash, &k.KeyPrefix, &k.Scopes,
		&k.IsActive, &k.ExpiresAt, &k.LastUsedAt, &k.CreatedBy, &k.CreatedAt, &k.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &k, nil
}

func (s *Store) scanAPIKey(row pgx.Row) (*core.APIKey, error) {
	k, err := scanAPIKeyRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return k, nil
}
