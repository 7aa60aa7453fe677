package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dropDatabas3/gatekeeper/internal/metrics"
	"github.com/dropDatabas3/gatekeeper/internal/observability/logger"
	"github.com/dropDatabas3/gatekeeper/internal/store/core"
)

// Recorder escribe el audit trail en best effort: Record nunca bloquea y
// nunca propaga error al caller. Con la cola llena, la entrada se descarta,
// se loguea y se cuenta. La operación de negocio jamás falla por auditoría.
type Recorder struct {
	store core.AuditStore
	log   *zap.Logger

	mu     sync.Mutex
	queue  chan *core.AuditEntry
	closed bool
	done   chan struct{}
}

func NewRecorder(store core.AuditStore, queueSize int) *Recorder {
	if queueSize <= 0 {
		queueSize = 1024
	}
	r := &Recorder{
		store: store,
		queue: make(chan *core.AuditEntry, queueSize),
		log:   logger.Named("audit"),
		done:  make(chan struct{}),
	}
	go r.worker()
	return r
}

// Record encola la entrada. El ctx de la request NO viaja al worker: la
// escritura sobrevive a la respuesta HTTP. Después de Close, las entradas
// tardías se descartan igual que con la cola llena; Record jamás entra en
// pánico aunque el shutdown corra en paralelo con requests en vuelo.
func (r *Recorder) Record(_ context.Context, tenantID, actorID, action, resourceType, resourceID string, details map[string]any) {
	e := &core.AuditEntry{
		ID:           uuid.NewString(),
		TenantID:     tenantID,
		ActorID:      actorID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      details,
		CreatedAt:    time.Now().UTC(),
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		metrics.AuditDropped.Inc()
		r.log.Warn("recorder closed, entry dropped",
			zap.String("action", action),
			zap.String("tenant_id", tenantID),
		)
		return
	}
	select {
	case r.queue <- e:
		r.mu.Unlock()
	default:
		r.mu.Unlock()
		metrics.AuditDropped.Inc()
		r.log.Warn("queue full, entry dropped",
			zap.String("action", action),
			zap.String("tenant_id", tenantID),
		)
	}
}

func (r *Recorder) worker() {
	defer close(r.done)
	for e := range r.queue {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := r.store.AppendAudit(ctx, e); err != nil {
			r.log.Warn("append failed", zap.String("action", e.Action), zap.Error(err))
		}
		cancel()
	}
}

// Close drena la cola y espera al worker, o hasta que ctx expire.
// Idempotente.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
