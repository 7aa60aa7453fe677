package pg

import (
	"context"

	"github.com/dropDatabas3/gatekeeper/internal/store/core"
)

func (s *Store) AppendAudit(ctx context.Context, e *core.AuditEntry) error {
	const q = `
		INSERT INTO audit_log (id, tenant_id, actor_id, action, resource_type, resource_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := s.pool.Exec(ctx, q,
		e.ID, e.TenantID, e.ActorID, e.Action, e.ResourceType, e.ResourceID, e.Details, e.CreatedAt,
	)
	return err
}

func (s *Store) ListAudit(ctx context.Context, tenantID string, limit int) ([]core.AuditEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	const q = `
		SELECT id, tenant_id, actor_id, action, resource_type, COALESCE(resource_id, ''), details, created_at
		FROM audit_log
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
	rows, err := s.pool.Query(ctx, q, tenantID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []core.AuditEntry
	for rows.Next() {
		var e core.AuditEntry
		if err := rows.Scan(&e.ID, &e.TenantID, &e.ActorID, &e.Action, &e.ResourceType, &e.ResourceID, &e.Details, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
