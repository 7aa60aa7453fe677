package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dropDatabas3/gatekeeper/internal/store/core"
)

func (s *Store) CreateMagicLink(ctx context.Context, t *core.MagicLinkToken) error {
	const q = `
		INSERT INTO magic_link_tokens (id, tenant_id, token_hash, purpose, subject_ref, metadata, expires_at, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := s.pool.Exec(ctx, q,
		t.ID, t.TenantID, t.TokenHash, t.Purpose, t.SubjectRef, t.Metadata, t.ExpiresAt, t.CreatedBy, t.CreatedAt,
	)
	if err != nil && isUniqueViolation(err) {
		return core.ErrConflict
	}
	return err
}

// RedeemMagicLink marca used_at en un único UPDATE condicional; la base
// serializa los canjes concurrentes y exactamente uno obtiene la fila.
// Cero filas -> ErrNotFound (inexistente, vencido o ya usado, sin distinguir).
func (s *Store) RedeemMagicLink(ctx context.Context, tokenHash, purpose string, now time.Time) (*core.MagicLinkToken, error) {
	const q = `
		UPDATE magic_link_tokens
		SET used_at = $3
		WHERE token_hash = $1 AND purpose = $2 AND used_at IS NULL AND expires_at > $3
		RETURNING id, tenant_id, token_hash, purpose, subject_ref, metadata, expires_at, used_at, created_by, created_at`

	var t core.MagicLinkToken
	err := s.pool.QueryRow(ctx, q, tokenHash, purpose, now).Scan(
		&t.ID, &t.TenantID, &t.TokenHash, &t.Purpose, &t.SubjectRef, &t.Metadata,
		&t.ExpiresAt, &t.UsedAt, &t.CreatedBy, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, err
	}
	return &t, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
