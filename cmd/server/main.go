package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/oggyb/guestmatch/internal/app"
	"github.com/oggyb/guestmatch/internal/auth"
	"github.com/oggyb/guestmatch/internal/cache"
	"github.com/oggyb/guestmatch/internal/config"
	"github.com/oggyb/guestmatch/internal/db"
	"github.com/oggyb/guestmatch/internal/httpapi"
	"github.com/oggyb/guestmatch/internal/logger"
	"github.com/oggyb/guestmatch/internal/notify"
	"github.com/oggyb/guestmatch/internal/ratelimit"
	"github.com/oggyb/guestmatch/internal/remote"
	"github.com/oggyb/guestmatch/internal/repository"
	"github.com/oggyb/guestmatch/internal/server"
	"github.com/oggyb/guestmatch/internal/service/chat"
	"github.com/oggyb/guestmatch/internal/service/membership"
	"github.com/oggyb/guestmatch/internal/service/payment"
	"github.com/oggyb/guestmatch/internal/service/relationship"
	"github.com/oggyb/guestmatch/internal/service/swipe"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		return err
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	defer redisCache.Close()
	if err := redisCache.Ping(ctx); err != nil {
		return err
	}

	appCtx := app.New(database, redisCache, log, cfg)

	// Relationship transitions and directory lookups
	switch cfg.Transitions.Backend {
	case "remote":
		pool, err := remote.NewPool(ctx, cfg.Transitions.RemoteURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		backend := remote.New(pool)
		appCtx.Transitions = backend
		appCtx.Directory = backend
		log.Info("relationship transitions run as stored procedures")
	default:
		appCtx.Transitions = repository.NewRelationshipRepository(database)
		appCtx.Directory = repository.NewMembershipRepository(database)
	}

	dispatcher, err := newDispatcher(ctx, cfg, appCtx, log)
	if err != nil {
		return err
	}
	appCtx.Notifier = dispatcher
	defer dispatcher.Wait()

	verifier := payment.NewVerifier(
		repository.NewPaymentRepository(database),
		payment.NewStripeClient(cfg.Payment.StripeBaseURL, cfg.Payment.StripeKey, cfg.Payment.Timeout, log.With("component", "stripe")),
		dispatcher,
		log.With("component", "payment"),
	)
	tokens := auth.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if cfg.Auth.JWTSecret == "" {
		log.Warn("AUTH_JWT_SECRET is empty; every authenticated call will be rejected")
	}

	limiter := ratelimit.New(cfg.RateLimit.SwipesPerSecond, cfg.RateLimit.Burst)
	grpcServer, health := server.NewGRPCServer(log,
		[]grpc.UnaryServerInterceptor{
			auth.UnaryInterceptor(tokens, server.HealthCheckMethod),
			ratelimit.UnaryInterceptor(limiter, swipe.ThrottledMethods()...),
		},
		membership.NewRegistrar(appCtx),
		swipe.NewRegistrar(appCtx),
		relationship.NewRegistrar(appCtx),
		chat.NewRegistrar(appCtx),
		payment.NewRegistrar(appCtx, verifier),
	)

	httpApp := httpapi.New(httpapi.NewHandler(verifier, tokens, map[string]httpapi.Pinger{
		"db": func(ctx context.Context) error {
			sqlDB, err := database.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"redis": redisCache.Ping,
	}, log.With("component", "http")))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting gRPC server", "addr", cfg.GRPC.Host+":"+cfg.GRPC.Port)
		return server.StartGRPCServer(gctx, cfg, grpcServer)
	})
	g.Go(func() error {
		addr := cfg.HTTP.Host + ":" + cfg.HTTP.Port
		log.Info("starting HTTP server", "addr", addr)
		return httpApp.Listen(addr)
	})
	g.Go(func() error {
		<-gctx.Done()
		health.Shutdown()
		return httpApp.ShutdownWithTimeout(10 * time.Second)
	})
	g.Go(func() error {
		limiter.RunSweeper(gctx, time.Minute)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("shutdown complete, draining notifications")
	return nil
}

// newDispatcher wires the notification ledger and whichever channels are
// configured. A channel without credentials is left out.
func newDispatcher(ctx context.Context, cfg *config.Config, appCtx *app.AppContext, log *slog.Logger) (*notify.Dispatcher, error) {
	notifLog := log.With("component", "notify")
	notifRepo := repository.NewNotificationRepository(appCtx.DB)

	var ledger notify.Ledger = notifRepo
	if cfg.Notify.Ledger == "redis" {
		ledger = appCtx.RedisCache
	}

	var channels []notify.Channel
	if email := notify.NewEmailChannel(cfg, notifLog); email != nil {
		channels = append(channels, email)
	} else {
		notifLog.Warn("email notifications disabled (no SMTP_HOST)")
	}

	push, err := notify.NewPushChannel(ctx, []byte(cfg.Notify.FCMCredentials), notifLog)
	if err != nil {
		return nil, err
	}
	if push != nil {
		channels = append(channels, push)
	} else {
		notifLog.Warn("push notifications disabled (no FIREBASE_CREDENTIALS_JSON)")
	}

	return notify.NewDispatcher(notifRepo, ledger, channels, notify.Options{
		Windows: notify.DefaultWindows(cfg.Notify.LikeWindow),
		Timeout: cfg.Notify.DispatchTimeout,
		AppURL:  cfg.Notify.AppURL,
		Logger:  notifLog,
	}), nil
}
