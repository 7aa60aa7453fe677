package rate

import (
	"context"
	"fmt"
	"strings"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

type Result struct {
	Allowed     bool
	Remaining   int64
	RetryAfter  time.Duration
	WindowTTL   time.Duration
	CurrentHits int64
}

// Limiter cuenta hits por clave dentro de la ventana fija de cada clase.
// Un error del backend NO es un deny implícito: el caller decide (el
// middleware falla cerrado con 503).
type Limiter interface {
	Allow(ctx context.Context, key string, class RouteClass) (Result, error)
}

// RedisLimiter: fixed window sencillo (INCR + EXPIRE).
type RedisLimiter struct {
	Client  *rdb.Client
	Prefix  string
	Presets Presets
}

func NewRedisLimiter(client *rdb.Client, prefix string, presets Presets) *RedisLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	if presets == nil {
		presets = DefaultPresets()
	}
	return &RedisLimiter{Client: client, Prefix: prefix, Presets: presets}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, class RouteClass) (Result, error) {
	p := l.Presets.Lookup(class)
	now := time.Now().UTC()
	winStart := now.Truncate(p.Window)
	redisKey := fmt.Sprintf("%s%s:%s:%d", l.Prefix, class, strings.ReplaceAll(key, " ", "_"), winStart.Unix())

	// INCR y EXPIRE viajan en el mismo pipeline atómico: si setear el
	// vencimiento falla, Exec lo reporta y la clave no queda huérfana.
	// Renovar el TTL en cada hit no afecta el conteo (la clave lleva el
	// inicio de ventana en el nombre).
	pipe := l.Client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, p.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, err
	}

	hits := incr.Val()
	allowed := hits <= p.Max
	remaining := p.Max - hits
	if remaining < 0 {
		remaining = 0
	}

	windowEnd := winStart.Add(p.Window)
	res := Result{
		Allowed:     allowed,
		Remaining:   remaining,
		CurrentHits: hits,
		WindowTTL:   windowEnd.Sub(now),
	}
	if !allowed {
		res.RetryAfter = windowEnd.Sub(now)
	}
	return res, nil
}
