package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dropDatabas3/gatekeeper/internal/access"
	"github.com/dropDatabas3/gatekeeper/internal/apikey"
	httperrors "github.com/dropDatabas3/gatekeeper/internal/http/errors"
	"github.com/dropDatabas3/gatekeeper/internal/http/handlers"
	"github.com/dropDatabas3/gatekeeper/internal/http/middlewares"
	"github.com/dropDatabas3/gatekeeper/internal/identity"
	"github.com/dropDatabas3/gatekeeper/internal/rate"
	"github.com/dropDatabas3/gatekeeper/internal/store/core"
)

// RouterDeps junta todo lo que el router necesita ya construido.
type RouterDeps struct {
	Verifier identity.Verifier
	Resolver *identity.Resolver
	Policy   *access.Policy
	Limiter  rate.Limiter
	APIKeys  *apikey.Service
	Store    core.Store

	Me     *handlers.MeHandler
	Keys   *handlers.APIKeysHandler
	Links  *handlers.MagicLinksHandler
	Portal *handlers.PortalHandler
	Audit  *handlers.AuditHandler
}

// Router expone el chi.Mux y el punto de montaje para los handlers de
// negocio de la plataforma.
type Router struct {
	mux  *chi.Mux
	deps RouterDeps
}

func NewRouter(deps RouterDeps) *Router {
	mux := chi.NewRouter()

	// base: todo request pasa por acá
	mux.Use(middlewares.RequestID(), middlewares.Logging(), middlewares.Recover())

	mux.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrRouteNotFound)
	})
	mux.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	// ops
	mux.Get("/healthz", handlers.Healthz)
	mux.Get("/readyz", handlers.Readyz(deps.Store))
	mux.Handle("/metrics", promhttp.Handler())

	bearer := middlewares.BearerAuth(deps.Verifier, deps.Resolver)
	rateAPI := middlewares.RateLimit(deps.Limiter, rate.ClassAPI)
	rateAdmin := middlewares.RateLimit(deps.Limiter, rate.ClassAdmin)
	rateSensitive := middlewares.RateLimit(deps.Limiter, rate.ClassSensitive)
	ratePublic := middlewares.RateLimit(deps.Limiter, rate.ClassPublicForm)
	adminOnly := middlewares.RequireRole("admin", "owner")

	// superficie autenticada con bearer JWT
	mux.Route("/v1", func(v1 chi.Router) {
		v1.Group(func(g chi.Router) {
			g.Use(bearer, rateAPI)
			g.Get("/me", deps.Me.Get)
			g.Get("/apikeys", deps.Keys.List)
		})

		v1.Group(func(g chi.Router) {
			g.Use(bearer, rateAdmin, adminOnly)
			g.Post("/apikeys", deps.Keys.Create)
			g.Post("/apikeys/{id}/rotate", deps.Keys.Rotate)
			g.Delete("/apikeys/{id}", deps.Keys.Revoke)
			g.Get("/audit", deps.Audit.List)
		})

		v1.Group(func(g chi.Router) {
			g.Use(bearer, rateSensitive)
			g.Post("/links", deps.Links.Issue)
		})

		// rutas públicas: la clave del limiter es la IP
		v1.Group(func(g chi.Router) {
			g.Use(ratePublic)
			g.Post("/links/redeem", deps.Links.Redeem)
			g.Get("/portal/me", deps.Portal.Me)
			g.Post("/portal/logout", deps.Portal.Logout)
		})
	})

	return &Router{mux: mux, deps: deps}
}

// Mount cuelga un handler de negocio externo detrás de la puerta del módulo:
// bearer auth + gate de módulo + preset api. Es el único camino para exponer
// rutas de negocio a través de este servicio.
func (rt *Router) Mount(module string, handler http.Handler) {
	gate := middlewares.Chain(handler,
		middlewares.BearerAuth(rt.deps.Verifier, rt.deps.Resolver),
		middlewares.RateLimit(rt.deps.Limiter, rate.ClassAPI),
		middlewares.RequireModule(rt.deps.Policy, module),
	)
	rt.mux.Mount("/v1/modules/"+module, gate)
}

// MountAPIKeyed expone un handler para callers programáticos con clave de
// API y scope requerido.
func (rt *Router) MountAPIKeyed(pattern, requiredScope string, handler http.Handler) {
	gate := middlewares.Chain(handler,
		middlewares.APIKeyAuth(rt.deps.APIKeys),
		middlewares.RateLimit(rt.deps.Limiter, rate.ClassAPI),
		middlewares.RequireScope(requiredScope),
	)
	rt.mux.Mount(pattern, gate)
}

func (rt *Router) Handler() http.Handler { return rt.mux }
