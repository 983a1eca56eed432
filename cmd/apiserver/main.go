package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hireloop/moderation/internal/audit"
	"github.com/hireloop/moderation/internal/config"
	"github.com/hireloop/moderation/internal/gate"
	"github.com/hireloop/moderation/internal/httpapi"
	"github.com/hireloop/moderation/internal/ledger"
	"github.com/hireloop/moderation/internal/logging"
	"github.com/hireloop/moderation/internal/messaging"
	"github.com/hireloop/moderation/internal/ratelimit"
	"github.com/hireloop/moderation/internal/suspension"
)

func main() {
	cfg, policy, err := config.LoadWithPolicy()
	if err != nil {
		logging.NewLogger("info").WithError(err).Fatal("invalid configuration")
	}
	log := logging.NewLoggerWithService("moderation-api", cfg.LogLevel)

	// --- Ledger store ---
	var (
		store   ledger.Store = ledger.NewMemoryStore()
		limiter *ratelimit.Limiter
		rdb     *redis.Client
	)
	if cfg.RedisAddr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(ctx).Err()
		cancel()
		if err != nil {
			log.WithError(err).Fatal("failed to connect to Redis")
		}
		ttl, adjusted := policy.LedgerTTL(cfg.LedgerTTL)
		if adjusted {
			log.WithFields(logging.Fields{
				"configured": cfg.LedgerTTL.String(),
				"ttl":        ttl.String(),
			}).Warn("LEDGER_TTL shorter than reset_horizon plus suspension_duration, raised")
		}
		store = ledger.NewRedisStore(rdb, ttl, log)
		limiter = ratelimit.NewLimiter(rdb, log)
	} else {
		log.Warn("REDIS_ADDR not set, ledger kept in memory and rate limiting disabled")
	}

	// --- NATS ---
	notifiers := suspension.Fanout{suspension.LogNotifier{Logger: log}}
	var (
		natsClient *messaging.NATSClient
		review     httpapi.ReviewSubmitter
	)
	if cfg.NATSURL != "" {
		natsConfig := messaging.DefaultNATSConfig()
		natsConfig.URL = cfg.NATSURL
		natsConfig.Name = "moderation-api"
		natsClient, err = messaging.NewNATSClient(natsConfig, log)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to NATS")
		}
		notifiers = append(notifiers, messaging.NewSuspensionNotifier(natsClient))
		review = messaging.NewReviewPublisher(natsClient)
	}

	// --- Audit ---
	var recorder audit.Recorder = audit.LogRecorder{Logger: log}
	var auditStore *audit.PostgresStore
	if cfg.PostgresDSN != "" {
		auditStore, err = audit.Open(context.Background(), cfg.PostgresDSN)
		if err != nil {
			log.WithError(err).Fatal("failed to open audit store")
		}
		recorder = auditStore
	}

	l := ledger.New(store, policy.ResetHorizon, ledger.WithLogger(log))
	machine := suspension.NewMachine(l, policy.Suspension,
		suspension.WithNotifier(notifiers),
		suspension.WithLogger(log))

	gateOpts := []gate.Option{gate.WithLogger(log)}
	if policy.EnforceSpam {
		gateOpts = append(gateOpts, gate.WithSpamScorer(policy.Scorer()))
	}
	serverGate := gate.New("server", policy.Matcher(), machine, gateOpts...)

	if cfg.AdminToken == "" {
		log.Warn("ADMIN_TOKEN not set, admin endpoints will refuse every request")
	}

	srv := &http.Server{
		Addr: cfg.ListenAddr,
		Handler: httpapi.NewRouter(httpapi.Deps{
			Gate:       serverGate,
			Limiter:    limiter,
			RateRule:   ratelimit.WriteRule(cfg.RateLimitRequests, cfg.RateLimitWindow),
			Recorder:   recorder,
			Review:     review,
			AdminToken: cfg.AdminToken,
			Logger:     log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server failed")
		}
	}()

	log.WithFields(logging.Fields{
		"listen_addr":       cfg.ListenAddr,
		"redis":             cfg.RedisAddr != "",
		"nats":              cfg.NATSURL != "",
		"postgres":          cfg.PostgresDSN != "",
		"warning_threshold": policy.Suspension.WarningThreshold,
		"suspension":        policy.Suspension.Duration.String(),
		"reset_horizon":     policy.ResetHorizon.String(),
		"banned_terms":      len(policy.Matcher().Terms()),
	}).Info("moderation API running")

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.WithField("signal", sig.String()).Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Warn("http shutdown")
	}
	if natsClient != nil {
		natsClient.Close()
	}
	if auditStore != nil {
		auditStore.Close()
	}
	if rdb != nil {
		rdb.Close()
	}
}
