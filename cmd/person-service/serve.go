package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/omnixys/omnixys-person-service/internal/api"
	"github.com/omnixys/omnixys-person-service/internal/app"
	"github.com/omnixys/omnixys-person-service/internal/config"
	"github.com/omnixys/omnixys-person-service/internal/identity"
	"github.com/omnixys/omnixys-person-service/internal/logging"
	"github.com/omnixys/omnixys-person-service/internal/tracing"
	"github.com/omnixys/omnixys-person-service/pkg/keycloakclient"
	"github.com/omnixys/omnixys-person-service/pkg/rabbitmq"
)

func runServe(parent context.Context, configDir string) error {
	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		return fmt.Errorf("config load failed: %w", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	log := logger.WithField("component", "bootstrap")
	log.WithFields(logrus.Fields{
		"port":           cfg.ServerPort,
		"storage_driver": cfg.StorageDriver,
		"event_delivery": cfg.EventDelivery,
	}).Info("starting person-service")

	// Cancelled by SIGINT/SIGTERM or by a shutdown command from the bus.
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Setup(ctx, cfg.OTELServiceName, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.WithError(err).Warn("tracer shutdown failed")
		}
	}()

	stores, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer stores.close()

	publisher, closePublisher := newEventPublisher(ctx, cfg, stores, logger)
	defer closePublisher()

	limiter, closeLimiter := newRateLimiter(ctx, cfg, log)
	defer closeLimiter()

	keycloak := keycloakclient.NewClient(cfg.KeycloakBaseURL(), cfg.KeycloakRealm, cfg.KeycloakClientID, cfg.KeycloakClientSecret, logger)
	identityProvider := identity.NewKeycloakProvider(keycloak, cfg.KeycloakAdminUsername, cfg.KeycloakAdminPassword, logger)

	writer := app.NewWriteService(app.WriteDependencies{
		Persons:             stores.persons,
		Contacts:            stores.contacts,
		Identity:            identityProvider,
		Publisher:           publisher,
		Logger:              logger,
		EmployeeEmailDomain: cfg.EmployeeEmailDomain,
	})
	reader := app.NewReadService(stores.persons, stores.contacts, logger)

	closeConsumer := startSystemConsumer(cfg, stop, logger)
	defer closeConsumer()

	router := api.NewRouter(api.NewPersonHandlers(writer, reader, logger), api.RouterOptions{
		Authenticate: api.KeycloakAuthMiddleware(api.AuthConfig{
			JWKSURL:          cfg.KeycloakJWKSURL(),
			ExpectedIssuer:   cfg.KeycloakIssuerURL(),
			ExpectedAudience: cfg.KeycloakAudience,
		}, logger),
		RateLimiter: api.MutationRateLimit(limiter, cfg.MutationRateLimitPerMinute),
		Logger:      logger,
	})

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.ServerPort),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.WithFields(logrus.Fields{"component": "http", "addr": server.Addr}).Info("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server stopped unexpectedly: %w", err)
		}
	}
	logger.WithField("component", "http").Info("shutdown started")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"component": "http", "err": err}).Error("shutdown failed")
	}
	logger.WithField("component", "http").Info("shutdown complete")
	return nil
}

// newEventPublisher returns the publisher for the configured delivery mode.
// Outbox delivery also starts the dispatcher and the maintenance jobs; both
// stop when ctx is cancelled or the returned close runs.
func newEventPublisher(ctx context.Context, cfg config.Config, stores *storage, logger *logrus.Logger) (app.EventPublisher, func()) {
	log := logger.WithField("component", "bootstrap")

	if cfg.EventDelivery == config.EventDeliveryOutbox && stores.outbox != nil {
		dispatcher := app.NewOutboxDispatcher(stores.outbox, func() (rabbitmq.Publisher, error) {
			producer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL, logger)
			if err != nil {
				return nil, err
			}
			return producer, nil
		}, logger)
		go dispatcher.Run(ctx)

		jobs := app.NewJobs(stores.outbox, time.Duration(cfg.OutboxRetentionHours)*time.Hour, logger)
		scheduler := app.NewScheduler(jobs, cfg.OutboxPurgeSchedule, logger)
		scheduler.Start()

		log.Info("event delivery through the outbox")
		return app.NewOutboxEventPublisher(stores.outbox, cfg.EventExchange), func() {
			<-scheduler.Stop().Done()
		}
	}

	var producer rabbitmq.Publisher
	eventProducer, err := rabbitmq.NewEventProducer(cfg.RabbitMQURL, logger)
	if err != nil {
		log.WithError(err).Warn("rabbitmq producer unavailable; using fallback")
		producer = &rabbitmq.EventProducerFallback{Log: logger}
	} else {
		log.Info("rabbitmq producer connected")
		producer = eventProducer
	}
	return app.NewBrokerEventPublisher(producer, cfg.EventExchange), producer.Close
}

// newRateLimiter connects to Redis when configured. Without Redis the
// mutation rate limit is disabled.
func newRateLimiter(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (app.RateLimiter, func()) {
	noop := func() {}
	if cfg.MutationRateLimitPerMinute <= 0 {
		return nil, noop
	}
	if strings.TrimSpace(cfg.RedisURL) == "" {
		log.WithField("env", "REDIS_URL").Warn("redis url missing; mutation rate limiting disabled")
		return nil, noop
	}

	redisOptions, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.WithError(err).Warn("redis url parse failed; mutation rate limiting disabled")
		return nil, noop
	}
	client := redis.NewClient(redisOptions)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.WithError(err).Warn("redis ping failed; mutation rate limiting disabled")
		client.Close()
		return nil, noop
	}

	log.Info("redis connected")
	return app.NewRedisMutationRateLimiter(client, cfg.RedisRateLimitPrefix), func() { client.Close() }
}

// startSystemConsumer binds the shutdown/restart/start commands. A broker
// outage only disables the commands.
func startSystemConsumer(cfg config.Config, shutdown func(), logger *logrus.Logger) func() {
	log := logger.WithField("component", "bootstrap")

	consumer, err := rabbitmq.NewConsumer(cfg.RabbitMQURL, logger)
	if err != nil {
		log.WithError(err).Warn("rabbitmq consumer unavailable; system commands disabled")
		return func() {}
	}

	handler := app.NewSystemCommandHandler(shutdown, logger)
	if err := consumer.ConsumeWithBindings(cfg.EventExchange, cfg.EventQueue, handler.Bindings()); err != nil {
		log.WithError(err).Warn("system command consumer start failed")
		consumer.Close()
		return func() {}
	}

	log.WithField("queue", cfg.EventQueue).Info("system command consumer started")
	return consumer.Close
}
