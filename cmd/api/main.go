package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/kidpech/tracelens/internal/app"
	"github.com/kidpech/tracelens/internal/app/diagnostics"
	"github.com/kidpech/tracelens/internal/config"
	"github.com/kidpech/tracelens/internal/demo/mail"
	"github.com/kidpech/tracelens/internal/demo/payment"
	"github.com/kidpech/tracelens/internal/demo/probe"
	"github.com/kidpech/tracelens/internal/infrastructure/auth"
	"github.com/kidpech/tracelens/internal/infrastructure/logging"
	"github.com/kidpech/tracelens/internal/infrastructure/monitoring"
	"github.com/kidpech/tracelens/internal/infrastructure/ratelimit"
	redisinfra "github.com/kidpech/tracelens/internal/infrastructure/redis"
	"github.com/kidpech/tracelens/internal/infrastructure/sessionstore"
	"github.com/kidpech/tracelens/internal/tracelens"
)

type nativeSessions interface {
	tracelens.SessionStore
	probe.SessionManager
}

func main() {
	configPath := pflag.StringP("config", "c", "", "optional YAML file with trace-lens settings")
	adminSubject := pflag.String("issue-admin-token", "", "print an admin access token for this subject and exit")
	pflag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if *adminSubject != "" {
		if err := issueAdminToken(cfg.Auth, *adminSubject, os.Stdout); err != nil {
			log.Fatal(err)
		}
		return
	}

	baseLogger, err := logging.New(cfg.App.Env)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logging.Sync(baseLogger)

	if err := monitoring.InitSentry(cfg.Monitoring, cfg.App); err != nil {
		baseLogger.Warn("sentry init failed", zap.Error(err))
	}
	monitoring.Init()
	defer monitoring.Flush()

	var redisClient *redisinfra.Client
	if client, err := redisinfra.Connect(ctx, cfg.Redis, baseLogger); err == nil {
		redisClient = client
		defer client.Close()
	} else if !errors.Is(err, redisinfra.ErrNotConfigured) {
		baseLogger.Warn("redis connect failed, using in-memory sessions and limits", zap.Error(err))
	}

	var sessions nativeSessions = sessionstore.NewMemory(cfg.Sessions.TTL)
	if redisClient != nil {
		sessions = sessionstore.NewRedis(redisClient.Native, cfg.Sessions.RedisKey, cfg.Sessions.TTL)
	}

	logger := baseLogger
	var (
		diagHandler *diagnostics.Handler
		resolver    *tracelens.Resolver
		jobs        []func(context.Context)
	)
	if cfg.TraceLens.Enabled {
		tl := cfg.TraceLens
		registry, err := tracelens.NewRegistry(tl.MaxBufferSize)
		if err != nil {
			baseLogger.Fatal("trace-lens registry", zap.Error(err))
		}
		monitoring.RegisterActiveBuffers(registry.ActiveCount)

		capture := tracelens.NewCaptureCore(registry, logging.ParseLevel(tl.CaptureLevel), baseLogger.Named("tracelens"))
		logger = logging.Attach(baseLogger, capture)

		render := diagnostics.NewRenderer(tl.SanitizeHTML)
		dispatcher, err := tracelens.NewDispatcher(registry, tracelens.DispatcherConfig{
			PollInterval: tl.PollInterval,
			Timeout:      tl.StreamTimeout,
			Render:       render,
		}, baseLogger.Named("tracelens.stream"))
		if err != nil {
			baseLogger.Fatal("trace-lens dispatcher", zap.Error(err))
		}
		reaper, err := tracelens.NewReaper(registry, tl.BufferTTL, tl.CleanupInterval, baseLogger.Named("tracelens.reaper"))
		if err != nil {
			baseLogger.Fatal("trace-lens reaper", zap.Error(err))
		}
		jobs = append(jobs, reaper.Run)

		resolver = tracelens.NewResolver(tracelens.ResolverConfig{
			HeaderName:       tl.SessionHeaderName,
			CookieName:       tl.SessionCookieName,
			NativeCookieName: cfg.Sessions.CookieName,
		}, sessions, baseLogger.Named("tracelens.resolver"))
		diagHandler = diagnostics.NewHandler(registry, dispatcher, resolver, render, baseLogger.Named("tracelens.http"))

		strategies := make([]string, 0, 3)
		for _, s := range resolver.Strategies() {
			strategies = append(strategies, s.String())
		}
		baseLogger.Info("TraceLens is enabled",
			zap.String("stream", tl.EndpointPath+"/stream"),
			zap.Strings("strategies", strategies),
			zap.Int("max_buffer_size", registry.Capacity()),
			zap.Duration("buffer_ttl", tl.BufferTTL),
		)
	}
	logging.ReplaceGlobals(logger)

	var ipLimiter, subjectLimiter ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		if redisClient != nil {
			ipLimiter = ratelimit.NewRedisLimiter(redisClient.Native, cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.RedisPrefix+":ip")
			subjectLimiter = ratelimit.NewRedisLimiter(redisClient.Native, cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.RedisPrefix+":subject")
		} else {
			ipLimiter = ratelimit.NewMemoryLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)
			subjectLimiter = ratelimit.NewMemoryLimiter(cfg.RateLimit.RequestsPerMinute, cfg.RateLimit.Burst)
		}
	}

	router := app.NewRouter(app.RouterDeps{
		Config:         cfg,
		Diagnostics:    diagHandler,
		Resolver:       resolver,
		PaymentHandler: payment.NewHandler(payment.NewService(300*time.Millisecond, 100*time.Millisecond)),
		MailHandler:    mail.NewHandler(mail.NewService(100*time.Millisecond, 200*time.Millisecond)),
		ProbeHandler:   probe.NewHandler(sessions, cfg.Sessions.CookieName, cfg.Sessions.TTL, time.Second),
		AuthManager:    auth.NewManager(cfg.Auth),
		Logger:         logger,
		IPLimiter:      ipLimiter,
		SubjectLimiter: subjectLimiter,
	})

	server := &app.Server{Engine: router, Addr: ":" + cfg.App.Port, Logger: baseLogger, Jobs: jobs}
	if err := server.Run(ctx); err != nil {
		baseLogger.Fatal("server error", zap.Error(err))
	}
}
