package middlewares

import (
	"net"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	httperrors "github.com/dropDatabas3/gatekeeper/internal/http/errors"
	"github.com/dropDatabas3/gatekeeper/internal/identity"
	"github.com/dropDatabas3/gatekeeper/internal/metrics"
	"github.com/dropDatabas3/gatekeeper/internal/observability/logger"
	"github.com/dropDatabas3/gatekeeper/internal/rate"
)

// RateLimit aplica el preset de la clase sobre una clave estable: actor
// autenticado si hay, IP del cliente si no. Si el backend del limiter
// falla, la request NO pasa (503).
func RateLimit(limiter rate.Limiter, class rate.RouteClass) Middleware {
	log := logger.Named("rate")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)

			res, err := limiter.Allow(r.Context(), key, class)
			if err != nil {
				log.Error("limiter backend unavailable", zap.Error(err), zap.String("class", string(class)))
				httperrors.WriteError(w, httperrors.ErrServiceUnavailable.WithCause(err))
				return
			}
			if !res.Allowed {
				metrics.RateLimitRejections.WithLabelValues(string(class)).Inc()
				secs := int(res.RetryAfter.Seconds())
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(secs))
				httperrors.WriteError(w, httperrors.ErrRateLimitExceeded)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	if a, ok := identity.ActorFrom(r.Context()); ok {
		return a.ActorID()
	}
	return "ip:" + clientIP(r)
}

// clientIP toma el primer hop de X-Forwarded-For si existe (el core corre
// detrás del proxy de la plataforma), si no el RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i > 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
