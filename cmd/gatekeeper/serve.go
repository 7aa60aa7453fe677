package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	rdb "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/gatekeeper/internal/access"
	"github.com/dropDatabas3/gatekeeper/internal/apikey"
	"github.com/dropDatabas3/gatekeeper/internal/audit"
	"github.com/dropDatabas3/gatekeeper/internal/config"
	"github.com/dropDatabas3/gatekeeper/internal/email"
	gkhttp "github.com/dropDatabas3/gatekeeper/internal/http"
	"github.com/dropDatabas3/gatekeeper/internal/http/handlers"
	"github.com/dropDatabas3/gatekeeper/internal/identity"
	"github.com/dropDatabas3/gatekeeper/internal/magiclink"
	"github.com/dropDatabas3/gatekeeper/internal/observability/logger"
	"github.com/dropDatabas3/gatekeeper/internal/rate"
	"github.com/dropDatabas3/gatekeeper/internal/security/secretbox"
	"github.com/dropDatabas3/gatekeeper/internal/session"
	"github.com/dropDatabas3/gatekeeper/internal/store/pg"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(parent context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logger.Named("serve")

	store, err := pg.New(ctx, cfg.Postgres.DSN, pg.Config{
		MaxConns:        cfg.Postgres.MaxConns,
		MinConns:        cfg.Postgres.MinConns,
		ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
	})
	if err != nil {
		return err
	}
	defer store.Close()

	var limiter rate.Limiter
	if cfg.Redis.Addr != "" {
		client := rdb.NewClient(&rdb.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = client.Close() }()
		limiter = rate.NewRedisLimiter(client, cfg.Rate.Prefix, rate.DefaultPresets())
		log.Info("rate limiter: redis", zap.String("addr", cfg.Redis.Addr))
	} else {
		limiter = rate.NewMemoryLimiter(rate.DefaultPresets())
		log.Warn("rate limiter: in-memory (single node only)")
	}

	recorder := audit.NewRecorder(store, cfg.Audit.QueueSize)

	var box *secretbox.Box
	if cfg.MagicLinks.SealAtRest {
		box, err = secretbox.NewFromBase64(cfg.MagicLinks.SealKey)
		if err != nil {
			return err
		}
	}

	keys := apikey.NewService(store, []byte(cfg.APIKeys.Pepper), recorder)
	links := magiclink.NewService(store, box, recorder)
	codec := session.NewCodec([]byte(cfg.Session.Secret))
	verifier := identity.NewJWTVerifier([]byte(cfg.Auth.JWTSecret), cfg.Auth.Issuer)
	resolver := identity.NewResolver(store)
	policy := access.DefaultPolicy()

	var sender email.Sender
	if cfg.SMTP.Host != "" {
		s := email.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, cfg.SMTP.Username, cfg.SMTP.Password)
		s.TLSMode = cfg.SMTP.TLSMode
		sender = s
	}

	secure := cfg.Env == "prod"
	router := gkhttp.NewRouter(gkhttp.RouterDeps{
		Verifier: verifier,
		Resolver: resolver,
		Policy:   policy,
		Limiter:  limiter,
		APIKeys:  keys,
		Store:    store,
		Me:       &handlers.MeHandler{Policy: policy},
		Keys:     &handlers.APIKeysHandler{Service: keys},
		Links: &handlers.MagicLinksHandler{
			Service:      links,
			Sender:       sender,
			BaseURL:      cfg.MagicLinks.BaseURL,
			Codec:        codec,
			CookieName:   cfg.Session.CookieName,
			CookieTTL:    cfg.Session.TTL,
			SecureCookie: secure,
		},
		Portal: &handlers.PortalHandler{
			Codec:        codec,
			CookieName:   cfg.Session.CookieName,
			SecureCookie: secure,
		},
		Audit: &handlers.AuditHandler{Store: store},
	})

	srv := gkhttp.NewServer(cfg.HTTP.Addr, router.Handler(),
		cfg.HTTP.ReadTimeout, cfg.HTTP.WriteTimeout, cfg.HTTP.ShutdownTimeout)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	err = g.Wait()

	// drenar el audit trail recién cuando ya no entran requests
	drainCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if cerr := recorder.Close(drainCtx); cerr != nil && err == nil {
		err = cerr
	}

	log.Info("stopped")
	return err
}
