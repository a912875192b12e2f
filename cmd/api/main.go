package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/substratehq/substrate/modules/auth"
	"github.com/substratehq/substrate/modules/billing"
	"github.com/substratehq/substrate/modules/project"
	"github.com/substratehq/substrate/pkg/config"
	"github.com/substratehq/substrate/pkg/email"
	"github.com/substratehq/substrate/pkg/httpserver"
	"github.com/substratehq/substrate/pkg/jwt"
	"github.com/substratehq/substrate/pkg/logger"
	"github.com/substratehq/substrate/pkg/pg"
	"github.com/substratehq/substrate/pkg/ratelimit"
	"github.com/substratehq/substrate/pkg/redis"
)

type appConfig struct {
	JWTSigningKey string `env:"JWT_SIGNING_KEY,required"`
	PlanSeedPath  string `env:"PLAN_SEED_PATH" envDefault:"plans.yaml"`

	GatewayFailureRate float64       `env:"PAYMENT_FAILURE_RATE" envDefault:"0.1"`
	GatewayMaxLatency  time.Duration `env:"PAYMENT_MAX_LATENCY" envDefault:"1s"`
	GatewayTimeout     time.Duration `env:"PAYMENT_TIMEOUT" envDefault:"5s"`

	AuthRateLimit       int           `env:"AUTH_RATE_LIMIT" envDefault:"10"`
	AuthRateLimitWindow time.Duration `env:"AUTH_RATE_LIMIT_WINDOW" envDefault:"1m"`
}

func main() {
	ctx := context.Background()

	var logCfg logger.Config
	config.MustLoad(&logCfg)
	log := logger.NewFromConfig(logCfg, logger.WithService("substrate-api"))

	if err := run(ctx, log); err != nil {
		log.ErrorContext(ctx, "api terminated", logger.Error(err))
		os.Exit(1)
	}
}

func run(ctx context.Context, log *slog.Logger) error {
	var (
		appCfg   appConfig
		pgCfg    pg.Config
		redisCfg redis.Config
		httpCfg  httpserver.Config
		emailCfg email.Config
		authCfg  auth.Config
	)
	config.MustLoad(&appCfg)
	config.MustLoad(&pgCfg)
	config.MustLoad(&redisCfg)
	config.MustLoad(&httpCfg)
	config.MustLoad(&emailCfg)
	config.MustLoad(&authCfg)

	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
		return err
	}

	redisClient, err := redis.Connect(ctx, redisCfg)
	if err != nil {
		return err
	}
	defer redisClient.Close() //nolint:errcheck

	tokens, err := jwt.New(appCfg.JWTSigningKey)
	if err != nil {
		return err
	}

	// Plan catalog, seeded from YAML at every boot so price changes ship
	// with a deploy.
	planStore := billing.NewPgPlanStore(pool)
	catalog := billing.NewCatalog(planStore)
	seeded, err := catalog.SeedFromFile(ctx, appCfg.PlanSeedPath)
	if err != nil {
		return err
	}
	log.InfoContext(ctx, "plan catalog seeded", "plans", seeded)

	// Email: Postmark when configured, log-only otherwise.
	var mailer email.Sender
	if emailCfg.PostmarkServerToken != "" {
		mailer, err = email.NewPostmarkSender(emailCfg)
		if err != nil {
			return err
		}
	} else {
		mailer = email.NewLogSender(log)
		log.WarnContext(ctx, "postmark not configured, receipts go to the log")
	}

	userStore := auth.NewPgUserStore(pool)
	authService := auth.NewService(userStore, tokens, authCfg)

	engine := billing.NewEngine(
		billing.NewPgSubscriptionStore(pool),
		billing.NewPgInvoiceStore(pool),
		planStore,
		billing.NewMockGateway(
			billing.WithFailureRate(appCfg.GatewayFailureRate),
			billing.WithMaxLatency(appCfg.GatewayMaxLatency),
		),
		billing.WithGatewayTimeout(appCfg.GatewayTimeout),
		billing.WithLogger(log),
		billing.WithReceipts(mailer, func(ctx context.Context, id uuid.UUID) (string, error) {
			user, err := authService.UserByID(ctx, id)
			if err != nil {
				return "", err
			}
			return user.Email, nil
		}),
	)

	projectService := project.NewService(project.NewPgStore(pool))

	// Credential endpoints get a per-IP fixed window backed by Redis.
	loginLimiter, err := ratelimit.NewFixedWindow(
		ratelimit.NewRedisStore(redisClient),
		appCfg.AuthRateLimit, appCfg.AuthRateLimitWindow)
	if err != nil {
		return err
	}

	guard := auth.Middleware(tokens)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", httpserver.HealthCheckHandler(log,
		pg.Healthcheck(pool),
		redis.Healthcheck(redisClient),
	))

	r.Mount("/auth", auth.NewRouter(tokens, auth.RouterConfig{
		Service:   authService,
		RateLimit: ratelimit.Middleware(loginLimiter, ratelimit.ByClientIP),
	}))
	r.Mount("/projects", project.NewRouter(project.RouterConfig{
		Service: projectService,
		Auth:    guard,
		UserID:  auth.UserID,
	}))
	r.Mount("/", billing.NewRouter(billing.RouterConfig{
		Service: engine,
		Catalog: catalog,
		Auth:    guard,
		UserID:  auth.UserID,
	}))

	return httpserver.New(httpCfg, log).Run(ctx, r)
}
