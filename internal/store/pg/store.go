package pg

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/dropDatabas3/gatekeeper/internal/observability/logger"
	"github.com/dropDatabas3/gatekeeper/internal/store/core"
)

type Store struct{ pool *pgxpool.Pool }

// Config de tuning del pool. Cero -> defaults de pgxpool.
type Config struct {
	MaxConns        int
	MinConns        int
	ConnMaxLifetime time.Duration
}

func New(ctx context.Context, dsn string, cfg Config) (*Store, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		pcfg.MinConns = int32(cfg.MinConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		pcfg.MaxConnLifetime = cfg.ConnMaxLifetime
		pcfg.MaxConnIdleTime = cfg.ConnMaxLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	// Non-blocking startup: la app puede arrancar con la DB caída.
	if err := pool.Ping(ctx); err != nil {
		logger.Named("pg").Warn("startup ping failed", zap.Error(err))
	} else {
		logger.Named("pg").Info("pool ready", zap.Int32("max_conns", pcfg.MaxConns))
	}

	return &Store{pool: pool}, nil
}

// Pool expone el pool interno (migraciones, métricas).
func (s *Store) Pool() *pgxpool.Pool {
	if s == nil {
		return nil
	}
	return s.pool
}

func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close cierra el pool (idempotente).
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// GetPrincipal resuelve principal + tenant en un solo round trip.
func (s *Store) GetPrincipal(ctx context.Context, principalID string) (*core.Principal, *core.Tenant, error) {
	const q = `
		SELECT p.id, p.tenant_id, p.role, p.email, p.is_active, p.created_at,
		       t.id, t.name, t.plan, t.max_users, COALESCE(t.settings->'modules_enabled', 'null'::jsonb), t.created_at
		FROM principals p
		JOIN tenants t ON t.id = p.tenant_id
		WHERE p.id = $1`

	var p core.Principal
	var t core.Tenant
	var modules []string
	err := s.pool.QueryRow(ctx, q, principalID).Scan(
		&p.ID, &p.TenantID, &p.Role, &p.Email, &p.IsActive, &p.CreatedAt,
		&t.ID, &t.Name, &t.Plan, &t.MaxUsers, &modules, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, core.ErrNotFound
		}
		return nil, nil, err
	}
	t.Settings.ModulesEnabled = modules
	return &p, &t, nil
}
