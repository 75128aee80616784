package bootstrap

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/baechuer/community-service/internal/application/identity"
	"github.com/baechuer/community-service/internal/audit"
	"github.com/baechuer/community-service/internal/config"
	"github.com/baechuer/community-service/internal/domain"
	"github.com/baechuer/community-service/internal/infrastructure/db/postgres"
	"github.com/baechuer/community-service/internal/infrastructure/memory"
	rabbitmq_pub "github.com/baechuer/community-service/internal/infrastructure/messaging/rabbitmq"
	"github.com/baechuer/community-service/internal/infrastructure/redis"
	"github.com/baechuer/community-service/internal/infrastructure/security"
	"github.com/baechuer/community-service/internal/logger"
	http_handlers "github.com/baechuer/community-service/internal/transport/http/handlers"
	"github.com/baechuer/community-service/internal/transport/http/middleware"
	"github.com/baechuer/community-service/internal/transport/http/response"
	"github.com/baechuer/community-service/internal/transport/http/router"
	"github.com/baechuer/community-service/internal/validation"
)

/*
========================
 Public entry (prod)
========================
*/

func NewServer() (*http.Server, func(), error) {
	return newServer(defaultDeps())
}

// NewServerWithDeps allows injecting dependencies for testing
func NewServerWithDeps(deps Deps) (*http.Server, func(), error) {
	return newServer(deps)
}

/*
========================
 Dependency injection
========================
*/

type Deps struct {
	LoadConfig func() (*config.Config, error)

	NewDB   func(addr string, debug bool) (*sql.DB, error)
	Migrate func(ctx context.Context, db *sql.DB) error

	NewRedis func(addr, password string, db int) *redis.Client

	NewPublisher func(url, exchange string) (Publisher, error)

	NewRouter func(router.Deps) (http.Handler, error)
}

// Publisher is an event publisher that owns a broker connection.
type Publisher interface {
	identity.EventPublisher
	Close() error
}

const migrateTimeout = 30 * time.Second

/*
========================
 Core bootstrap logic
========================
*/

func newServer(deps Deps) (*http.Server, func(), error) {
	// 0) config
	cfg, err := deps.LoadConfig()
	if err != nil {
		return nil, nil, err
	}

	var cleanupFns []func()
	fail := func(err error) (*http.Server, func(), error) {
		runCleanup(cleanupFns)
		return nil, nil, err
	}
	checks := map[string]http_handlers.ReadyCheck{}

	// 1) store: postgres, or in-process for dev
	var store identity.Store
	if cfg.DBAddr == config.MemoryDSN {
		logger.Logger.Warn().Msg("using in-memory store; data is lost on restart")
		store = memory.NewStore()
	} else {
		db, err := deps.NewDB(cfg.DBAddr, cfg.DBDebug)
		if err != nil {
			return nil, nil, err
		}
		cleanupFns = append(cleanupFns, func() { _ = db.Close() })

		ctx, cancel := context.WithTimeout(context.Background(), migrateTimeout)
		err = deps.Migrate(ctx, db)
		cancel()
		if err != nil {
			return fail(err)
		}

		pg := postgres.NewStore(db, cfg.DBLockTimeout)
		checks["db"] = pg.Ping
		store = pg
	}

	// 2) redis (best-effort)
	var (
		redisCli    *redis.Client
		revocations identity.RevocationStore
		ottStore    identity.OneTimeTokenStore
	)
	if cfg.RedisAddr != "" && deps.NewRedis != nil {
		c := deps.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := c.Ping(context.Background()); err != nil {
			logger.Logger.Warn().Err(err).Msg("redis unavailable; using in-memory token stores")
			_ = c.Close()
		} else {
			logger.Logger.Info().Msg("redis connected")
			redisCli = c
			cleanupFns = append(cleanupFns, func() { _ = c.Close() })
			checks["redis"] = c.Ping
		}
	}
	if redisCli != nil {
		revocations = redis.NewRevocationStore(redisCli)
		ottStore = redis.NewOneTimeTokenStore(redisCli)
	} else {
		revocations = memory.NewRevocationStore()
		ottStore = memory.NewOneTimeTokenStore()
	}

	// 3) publisher
	var pub identity.EventPublisher
	switch {
	case cfg.RabbitURL == "":
		logger.Logger.Warn().Msg("RABBIT_URL not set; using noop publisher")
		pub = memory.NewNoopPublisher()
	default:
		p, err := deps.NewPublisher(cfg.RabbitURL, cfg.RabbitExchange)
		if err != nil {
			if !cfg.IsDev() {
				return fail(err)
			}
			logger.Logger.Warn().Err(err).Msg("rabbitmq unavailable; using noop publisher")
			pub = memory.NewNoopPublisher()
		} else {
			cleanupFns = append(cleanupFns, func() { _ = p.Close() })
			pub = p
		}
	}

	// 4) security
	logger.Logger.Info().Str("issuer", cfg.JWTIssuer).Msg("initializing jwt issuer")
	hasher := security.NewBcryptHasher(cfg.BcryptCost)
	issuer := security.NewJWTIssuer(cfg.JWTSecret, cfg.JWTIssuer)

	validator, err := validation.New()
	if err != nil {
		return fail(err)
	}

	// 5) service
	svc := identity.NewService(
		store,
		validator,
		hasher,
		issuer,
		revocations,
		ottStore,
		pub,
		identity.Config{
			AccessTTL:           cfg.AccessTokenTTL,
			RefreshTTL:          cfg.RefreshTokenTTL,
			VerifyEmailBaseURL:  cfg.VerifyEmailBaseURL,
			VerifyEmailTokenTTL: cfg.VerifyEmailTokenTTL,
		},
	).WithAudit(audit.New(logger.Logger).Record)

	// seed (dev only)
	if cfg.IsDev() {
		n := postgres.SeedUsers(context.Background(), store, hasher)
		logger.Logger.Info().Int("created", n).Msg("dev seed complete")
	}

	// 6) handlers + middleware
	authH := http_handlers.NewAuthHandler(svc)
	usersH := http_handlers.NewUsersHandler(svc)
	healthH := http_handlers.NewHealthHandler(checks)

	authMW := middleware.Auth(issuer, response.WriteError)
	adminMW := middleware.RequireAtLeast(domain.RoleAdmin, response.WriteError)

	// rate limit: redis when connected, per-process buckets otherwise
	var shared middleware.RateLimiter
	if redisCli != nil {
		shared = redis.NewFixedWindowLimiter(redisCli)
	}
	local := middleware.NewLocalLimiter()
	rl := func(key string, limit int) func(http.Handler) http.Handler {
		return middleware.RateLimitFixedWindow(
			shared,
			local,
			middleware.FixedWindowConfig{
				RouteKey: key,
				Limit:    limit,
				Window:   cfg.RateLimitWindow,
			},
			response.WriteError,
		)
	}

	// 7) router
	mux, err := deps.NewRouter(router.Deps{
		Health: healthH,
		Auth:   authH,
		Users:  usersH,

		Global: []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.AccessLog,
			middleware.Metrics,
			middleware.FloodGuard(cfg.GlobalRateLimit, cfg.RateLimitWindow, response.WriteError),
			middleware.BodyLimit(cfg.MaxBodyBytes, response.WriteError),
		},

		AuthMW:  authMW,
		AdminMW: adminMW,

		SignUpLimit:  rl("sign_up", cfg.SignUpRateLimit),
		LoginLimit:   rl("login", cfg.LoginRateLimit),
		DefaultLimit: rl("default", cfg.DefaultRateLimit),
	})
	if err != nil {
		return fail(err)
	}

	// 8) server
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	cleanup := func() {
		runCleanup(cleanupFns)
		cleanupFns = nil
	}

	return srv, cleanup, nil
}

/*
========================
 Default deps (prod)
========================
*/

func defaultDeps() Deps {
	return Deps{
		LoadConfig: config.Load,
		NewDB:      config.NewDB,
		Migrate:    postgres.Migrate,
		NewRedis:   redis.New,
		NewPublisher: func(url, exchange string) (Publisher, error) {
			return rabbitmq_pub.NewPublisher(url, exchange)
		},
		NewRouter: router.New,
	}
}

/*
========================
 helpers
========================
*/

func runCleanup(fns []func()) {
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}
