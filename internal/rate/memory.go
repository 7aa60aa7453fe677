package rate

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryLimiter implementa la misma ventana fija sobre go-cache, para
// despliegues single-node y tests. La clave incluye el inicio de ventana,
// así el contador caduca solo.
type MemoryLimiter struct {
	cache   *gocache.Cache
	presets Presets
}

func NewMemoryLimiter(presets Presets) *MemoryLimiter {
	if presets == nil {
		presets = DefaultPresets()
	}
	return &MemoryLimiter{
		cache:   gocache.New(5*time.Minute, 10*time.Minute),
		presets: presets,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, class RouteClass) (Result, error) {
	p := l.presets.Lookup(class)
	now := time.Now().UTC()
	winStart := now.Truncate(p.Window)
	ck := fmt.Sprintf("%s:%s:%d", class, key, winStart.Unix())

	// Add e Increment compiten con la expiración de la entrada; insistir
	// hasta que uno de los dos cuente de verdad este hit.
	var hits int64
	for {
		if err := l.cache.Add(ck, int64(1), p.Window); err == nil {
			hits = 1
			break
		}
		if n, err := l.cache.IncrementInt64(ck, 1); err == nil {
			hits = n
			break
		}
	}

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
