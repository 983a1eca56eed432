package main

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hireloop/moderation/internal/config"
	"github.com/hireloop/moderation/internal/logging"
	"github.com/hireloop/moderation/internal/messaging"
	"github.com/hireloop/moderation/internal/metrics"
	"github.com/hireloop/moderation/internal/review"
)

const queueGroup = "moderators"

func main() {
	cfg, policy, err := config.LoadWithPolicy()
	if err != nil {
		logging.NewLogger("info").WithError(err).Fatal("invalid configuration")
	}
	log := logging.NewLoggerWithService("moderator", cfg.LogLevel)

	// NATS setup.
	natsConfig := messaging.DefaultNATSConfig()
	if cfg.NATSURL != "" {
		natsConfig.URL = cfg.NATSURL
	}
	natsConfig.Name = "moderator"

	natsClient, err := messaging.NewNATSClient(natsConfig, log)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to NATS")
	}

	worker := review.NewWorker(policy.Assessor(), natsClient, log)
	if err := natsClient.SubscribeModerationCheck(queueGroup, worker.HandleFunc()); err != nil {
		log.WithError(err).Fatal("failed to subscribe to moderation checks")
	}

	// Suspension events are logged for the admin on-call.
	if err := natsClient.SubscribeSuspensions(func(actorID string, _ []byte) {
		log.WithField("actor_id", actorID).Warn("actor suspended")
	}); err != nil {
		log.WithError(err).Fatal("failed to subscribe to suspensions")
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("metrics server failed")
		}
	}()

	log.WithFields(logging.Fields{
		"nats_url":     natsConfig.URL,
		"metrics_addr": cfg.MetricsAddr,
		"queue":        queueGroup,
	}).Info("moderation service running")

	// Graceful shutdown.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.WithField("signal", sig.String()).Info("shutting down")

	natsClient.Close()
}
