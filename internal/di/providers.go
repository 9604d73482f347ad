package di

import (
	"fmt"
	"time"

	"DeskSync/internal/domain/repository"
	"DeskSync/internal/handler/api"
	internalrepo "DeskSync/internal/repository"
	"DeskSync/internal/service/backendapi"
	"DeskSync/internal/service/stream"
	"DeskSync/internal/usecase"
	"DeskSync/pkg/cache"
	"DeskSync/pkg/config"
	xhttp "DeskSync/pkg/http"
	pkgkafka "DeskSync/pkg/kafka"
	applogger "DeskSync/pkg/logger"
	"DeskSync/pkg/metrics"
	"DeskSync/pkg/queue"
	"DeskSync/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates the Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideRedisCache creates the Redis client wrapper, nil when Redis is
// not configured (single-replica deployments run memory-only).
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.Cache.Redis.Enabled {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Cache.Redis.Addr),
		cache.WithRedisPassword(cfg.Cache.Redis.Password),
		cache.WithRedisDB(cfg.Cache.Redis.DB),
		cache.WithRedisPrefix("desksync"),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideCache builds the response cache: memory-only by default, layered
// memory+Redis when a shared store is available.
func ProvideCache(cfg *config.Config, rc *cache.RedisCache) cache.Service {
	if !cfg.Cache.Enabled {
		return nil
	}
	if rc != nil {
		return cache.NewLayeredCache(rc, cache.WithLayeredMemorySize(4096))
	}
	return cache.NewMemoryCache(cache.WithMemoryMaxSize(4096))
}

// ProvideBackend creates the REST adapter for the trading backend.
func ProvideBackend(cfg *config.Config, lgr *applogger.Logger, c cache.Service) *backendapi.Client {
	var opts []backendapi.Option
	if c != nil {
		ttl := cfg.Cache.TTL
		if ttl <= 0 {
			ttl = 5 * time.Second
		}
		opts = append(opts, backendapi.WithCache(c, ttl))
	}
	return backendapi.New(cfg, lgr, opts...)
}

// ProvideStream creates the push-event stream client.
func ProvideStream(cfg *config.Config, lgr *applogger.Logger) *stream.Client {
	return stream.New(
		cfg.Stream.URL,
		cfg.Backend.APIKey,
		cfg.Stream.ReconnectDelay,
		cfg.Stream.PingInterval,
		lgr,
	)
}

// ProvideKafkaProducer creates the activity topic producer, nil when
// activity export is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Activity.Enabled || len(cfg.Activity.Kafka.Brokers) == 0 {
		return nil, nil
	}
	k := cfg.Activity.Kafka
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(k.Brokers),
		pkgkafka.WithCompression(k.Compression),
		pkgkafka.WithRequiredAcks(k.RequiredAcks),
		pkgkafka.WithBatchSize(k.Producer.BatchSize),
		pkgkafka.WithBatchBytes(k.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(k.Producer.Linger),
		pkgkafka.WithTimeouts(k.Producer.WriteTimeout, k.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(k.Producer.MaxAttempts),
		pkgkafka.WithAsync(k.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideActivityQueue creates the Redis-backed activity buffer with its
// Kafka publish job registered. Nil when Redis or export is disabled; the
// exporter then publishes to Kafka directly.
func ProvideActivityQueue(cfg *config.Config, producer *pkgkafka.Producer, rc *cache.RedisCache, lgr *applogger.Logger) *queue.RedisQueue {
	if producer == nil || rc == nil {
		return nil
	}
	q := cfg.Activity.Queue
	rq := queue.NewRedisQueue(lgr, &queue.Config{
		Workers:    q.Workers,
		RetryLimit: q.RetryMax,
		RetryDelay: q.BackoffMin,
	}, rc.Client())
	rq.RegisterJob(internalrepo.NewActivityPublishJob(producer, cfg.Activity.Kafka.Topic))
	return rq
}

// ProvideActivityExporter creates the audit event publisher.
func ProvideActivityExporter(cfg *config.Config, rq *queue.RedisQueue, producer *pkgkafka.Producer, lgr *applogger.Logger) repository.ActivityPublisher {
	var qs queue.Publisher
	if rq != nil {
		qs = rq
	}
	return internalrepo.NewActivityExporter(qs, producer, cfg.Activity.Kafka.Topic, lgr)
}

// ProvideSessionManager wires the per-session dependency bundle.
func ProvideSessionManager(
	cfg *config.Config,
	backend *backendapi.Client,
	st *stream.Client,
	activity repository.ActivityPublisher,
	m repository.Metrics,
	rc *cache.RedisCache,
	lgr *applogger.Logger,
) *usecase.SessionManager {
	deps := usecase.SessionDeps{
		Backend:          backend,
		Gateway:          backend,
		Directory:        backend,
		Stream:           st,
		Activity:         activity,
		Metrics:          m,
		Logger:           lgr,
		FetchTimeout:     cfg.Sync.FetchTimeout,
		FastInterval:     cfg.Sync.FastInterval,
		StandardInterval: cfg.Sync.StandardInterval,
		SlowInterval:     cfg.Sync.SlowInterval,
		RefreshRate:      cfg.Sync.RefreshRate,
		RefreshBurst:     cfg.Sync.RefreshBurst,
		LockTTL:          cfg.Mutations.LockTTL,
	}
	if rc != nil {
		// cross-replica balance locks require a shared store
		deps.BalanceLock = rc
	}
	return usecase.NewSessionManager(deps, cfg.Sessions.IdleTimeout)
}

// ProvideHandler creates the HTTP handler surface.
func ProvideHandler(
	sessions *usecase.SessionManager,
	backend *backendapi.Client,
	cfg *config.Config,
	lgr *applogger.Logger,
) xhttp.Handler {
	return api.NewDashboardHandler(sessions, backend, backend, cfg, lgr)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	lgr *applogger.Logger,
	st *stream.Client,
	sessions *usecase.SessionManager,
	rq *queue.RedisQueue,
	handler xhttp.Handler,
) *server.App {
	// Aggregate warn/error logs into the activity queue when it exists
	if rq != nil {
		lgr.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          "error_logs",
			Publisher:      rq,
		})
	}
	return server.New(cfg, lgr, st, sessions, rq, handler)
}
