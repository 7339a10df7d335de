package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"

	"propreg/internal/chain"
	"propreg/internal/identity"
	"propreg/internal/platform/config"
	"propreg/internal/platform/httpserver"
	"propreg/internal/platform/metrics"
	"propreg/internal/platform/otel"
	"propreg/internal/platform/postgres"
	"propreg/internal/platform/redis"
	propertyhandler "propreg/internal/property/handler"
	propertymetrics "propreg/internal/property/metrics"
	"propreg/internal/property/service"
	"propreg/internal/property/store"
	ratelimitmetrics "propreg/internal/ratelimit/metrics"
	ratelimit "propreg/internal/ratelimit/middleware"
	"propreg/internal/ratelimit/models"
	"propreg/internal/ratelimit/store/bucket"
	httptransport "propreg/internal/transport/http"
	"propreg/pkg/domain"
	audit "propreg/pkg/platform/audit"
	"propreg/pkg/platform/audit/publisher"
	"propreg/pkg/platform/audit/publishers/kafka"
	"propreg/pkg/platform/audit/publishers/logsink"
	authmw "propreg/pkg/platform/middleware/auth"
)

const serviceName = "propreg"

// app holds the long-lived resources built from Config.
type app struct {
	cfg       config.Config
	logger    *slog.Logger
	registry  *prometheus.Registry
	db        *sql.DB
	redis     *redis.Client
	kafka     *kafka.Sink
	publisher *publisher.Publisher
	clock     *chain.Clock
	router    http.Handler
	closers   []func()
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	shutdownTracing, err := otel.Setup(ctx, serviceName, cfg.Tracing.Endpoint)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	a, err := build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	srv := httpserver.New(cfg.Server.Addr, a.router)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.InfoContext(gctx, "starting propreg", "addr", cfg.Server.Addr)
		return httpserver.Run(gctx, srv, cfg.Server.ShutdownTimeout)
	})
	g.Go(func() error {
		return a.clock.Run(gctx)
	})
	return g.Wait()
}

// build wires every component. On error, anything already opened is closed.
func build(ctx context.Context, cfg config.Config, logger *slog.Logger) (a *app, err error) {
	a = &app{cfg: cfg, logger: logger, registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	propMetrics := propertymetrics.New(a.registry)

	backend, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	var revocations authmw.TokenRevocationChecker = identity.NewMemoryRevocations()
	var buckets ratelimit.BucketStore = bucket.New()
	a.redis, err = redis.New(ctx, cfg.Redis, logger)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if a.redis != nil {
		a.closers = append(a.closers, func() { _ = a.redis.Close() })
		revocations = identity.NewRedisRevocations(a.redis.Client)
		buckets = bucket.NewRedis(a.redis.Client)
	}

	backend = a.cachedStore(ctx, backend, propMetrics)

	sink, err := a.openAuditSink(ctx)
	if err != nil {
		return nil, err
	}
	a.publisher = publisher.NewPublisher(sink,
		publisher.WithAsyncBuffer(cfg.Audit.BufferSize),
		publisher.WithLogger(logger),
		publisher.WithDeliveryTimeout(cfg.Audit.DeliveryTimeout),
		publisher.WithDrainTimeout(cfg.Audit.DrainTimeout),
		publisher.WithBreaker(cfg.Audit.BreakerThreshold, cfg.Audit.BreakerCooldown),
		publisher.WithRegisterer(a.registry),
	)
	a.closers = append(a.closers, a.publisher.Close)

	a.clock = chain.NewClock(domain.BlockHeight(cfg.Chain.StartHeight), cfg.Chain.BlockInterval, logger)

	svc, err := service.New(backend,
		service.WithLogger(logger),
		service.WithMetrics(propMetrics),
		service.WithAuditPublisher(a.publisher),
		service.WithHeightSource(a.clock),
		service.WithTx(service.NewBoundedTx(backend, cfg.Server.TxTimeout)),
	)
	if err != nil {
		return nil, err
	}

	tokens := identity.NewTokenService(cfg.Auth.SigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
	limiter := ratelimit.New(buckets, logger,
		ratelimit.WithDisabled(cfg.RateLimit.Disabled),
		ratelimit.WithMetrics(ratelimitmetrics.New(a.registry)),
		ratelimit.WithLimit(models.ClassRead, models.Limit{Requests: cfg.RateLimit.ReadRequests, Window: cfg.RateLimit.Window}),
		ratelimit.WithLimit(models.ClassWrite, models.Limit{Requests: cfg.RateLimit.WriteRequests, Window: cfg.RateLimit.Window}),
	)
	a.router = httptransport.NewRouter(httptransport.Deps{
		Logger:      logger,
		Tokens:      tokens,
		Revocations: revocations,
		Metrics:     metrics.New(a.registry),
		Gatherer:    a.registry,
		RateLimit:   limiter.PerCaller,
		Health:      a.healthChecks(),
		Handlers:    []httptransport.Mountable{propertyhandler.New(svc, logger)},
	})
	return a, nil
}

func (a *app) openStore(ctx context.Context) (service.Store, error) {
	db, err := postgres.Open(ctx, a.cfg.Database, a.logger)
	if err != nil {
		return nil, err
	}
	if db == nil {
		a.logger.WarnContext(ctx, "no database configured, using in-memory registry")
		return store.NewInMemory(), nil
	}
	a.db = db
	a.closers = append(a.closers, func() { _ = db.Close() })
	if err := store.Migrate(ctx, db); err != nil {
		return nil, err
	}
	return store.NewPostgres(db), nil
}

// cachedStore puts the Redis cache in front of the Postgres store. The
// in-memory registry restarts empty and reissues ids, so records cached from
// an earlier process would be served as if they still existed.
func (a *app) cachedStore(ctx context.Context, backend service.Store, observer store.CacheObserver) service.Store {
	if a.redis == nil {
		return backend
	}
	if a.db == nil {
		a.logger.InfoContext(ctx, "property cache disabled without a database")
		return backend
	}
	return store.NewRedisCache(backend, a.redis.Client, a.cfg.Redis.CacheTTL, a.logger, observer)
}

func (a *app) openAuditSink(ctx context.Context) (audit.Sink, error) {
	if len(a.cfg.Kafka.Brokers) == 0 {
		a.logger.InfoContext(ctx, "no kafka brokers configured, audit events go to the log")
		return logsink.New(a.logger), nil
	}
	sink, err := kafka.New(a.cfg.Kafka.Brokers, a.cfg.Kafka.Topic,
		kafka.WithLogger(a.logger),
		kafka.WithDeliveryTimeout(a.cfg.Audit.DeliveryTimeout),
	)
	if err != nil {
		return nil, err
	}
	a.kafka = sink
	a.closers = append(a.closers, sink.Close)
	if err := sink.EnsureTopic(ctx, a.cfg.Kafka.Partitions, a.cfg.Kafka.ReplicationFactor); err != nil {
		return nil, err
	}
	return sink, nil
}

func (a *app) healthChecks() map[string]httptransport.HealthCheck {
	checks := map[string]httptransport.HealthCheck{}
	if a.db != nil {
		checks["postgres"] = a.db.PingContext
	}
	if a.redis != nil {
		checks["redis"] = a.redis.Health
	}
	if a.kafka != nil {
		checks["kafka"] = a.kafka.Ping
	}
	return checks
}

// close releases resources in reverse order of acquisition. The publisher is
// drained before the sink it writes to is closed.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
