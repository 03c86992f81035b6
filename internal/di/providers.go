package di

import (
	"context"
	"fmt"

	"CustodianSync/internal/adapter"
	"CustodianSync/internal/correlation"
	"CustodianSync/internal/domain/models"
	"CustodianSync/internal/domain/repository"
	"CustodianSync/internal/handler/api"
	mid "CustodianSync/internal/middleware"
	"CustodianSync/internal/pipeline"
	"CustodianSync/internal/recon"
	"CustodianSync/internal/registry"
	internalrepo "CustodianSync/internal/repository"
	"CustodianSync/internal/service/cipher"
	"CustodianSync/internal/service/profiler"
	"CustodianSync/internal/service/ratelimit"
	"CustodianSync/internal/usecase"
	pkgcache "CustodianSync/pkg/cache"
	pkgch "CustodianSync/pkg/clickhouse"
	"CustodianSync/pkg/config"
	pkgkafka "CustodianSync/pkg/kafka"
	applogger "CustodianSync/pkg/logger"
	"CustodianSync/pkg/metrics"
	"CustodianSync/pkg/queue"
	"CustodianSync/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	level := "info"
	if cfg.Environment == "development" {
		level = "debug"
	}
	return applogger.New(&applogger.Config{Level: level, Format: "json", Output: "stdout"})
}

// ProvideClickHouseClient creates a ClickHouse client.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideRedisCache creates the Redis client wrapper.
func ProvideRedisCache(cfg *config.Config) (*pkgcache.RedisCache, error) {
	return pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(cfg.Redis.Host),
		pkgcache.WithRedisPort(cfg.Redis.Port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
	)
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideConnectionStore creates the Redis connection store.
func ProvideConnectionStore(rc *pkgcache.RedisCache) repository.ConnectionStore {
	return internalrepo.NewRedisConnectionStore(rc.Client())
}

// ProvideFeedStore creates the ClickHouse feed store.
func ProvideFeedStore(chClient *pkgch.Client, logger *applogger.Logger) repository.FeedStore {
	store := internalrepo.NewCHFeedStore(chClient)
	if chs, ok := store.(interface{ SetLogger(*applogger.Logger) }); ok {
		chs.SetLogger(logger)
	}
	return store
}

// ProvideEventPublisher creates the Kafka event publisher.
func ProvideEventPublisher(producer *pkgkafka.Producer) repository.EventPublisher {
	return internalrepo.NewKafkaPublisher(producer)
}

// ProvideFieldCipher creates the cipher service client, nil when no
// service is configured.
func ProvideFieldCipher(cfg *config.Config) repository.FieldCipher {
	if cfg.Cipher.ServiceURL == "" {
		return nil
	}
	return cipher.New(cfg.Cipher.ServiceURL, cfg.Cipher.Timeout)
}

// ProvidePortfolioSource creates the portfolio service client.
func ProvidePortfolioSource(cfg *config.Config) repository.PortfolioSource {
	return internalrepo.NewHTTPPortfolioSource(cfg.Portfolio.ServiceURL, cfg.Portfolio.Timeout)
}

// ProvideRegistry wires tokens, rate limiting and the adapter factory
// into the connection registry. The token manager resolves connections
// through the registry itself.
func ProvideRegistry(
	cfg *config.Config,
	store repository.ConnectionStore,
	fieldCipher repository.FieldCipher,
	pub repository.EventPublisher,
	logger *applogger.Logger,
	m repository.Metrics,
) *registry.Registry {
	var reg *registry.Registry
	tokens := registry.NewTokenManager(func(ctx context.Context, id string) (*models.CustodianConnection, error) {
		return reg.GetConnection(ctx, id)
	}, cfg.Custodian.RestTimeout)

	factory := adapter.NewFactory(&adapter.Options{
		Logger:          logger,
		Metrics:         m,
		Tokens:          tokens,
		Limiter:         ratelimit.New(),
		PageSize:        cfg.Custodian.PageSize,
		PageDelay:       cfg.Custodian.PageDelay,
		OrderDelay:      cfg.Custodian.OrderDelay,
		MaxFilesPerFeed: cfg.Custodian.MaxFilesPerFeed,
		RestTimeout:     cfg.Custodian.RestTimeout,
		SftpTimeout:     cfg.Custodian.SftpTimeout,
		Retry: adapter.RetryPolicy{
			MaxAttempts:       cfg.Custodian.RetryMaxAttempts,
			BaseDelay:         cfg.Custodian.RetryBaseDelay,
			MaxDelay:          cfg.Custodian.RetryMaxDelay,
			DefaultRetryAfter: cfg.Custodian.DefaultRetryAfter,
		},
	})

	reg = registry.New(store, factory, fieldCipher, pub, logger, m)
	return reg
}

// ProvideSummaryCache builds the two-level summary cache: in-process
// LRU in front of Redis.
func ProvideSummaryCache(rc *pkgcache.RedisCache) pkgcache.Service {
	return pkgcache.NewLayeredCache(rc)
}

// ProvideFeedService builds the orchestration use case.
func ProvideFeedService(
	reg *registry.Registry,
	portfolio repository.PortfolioSource,
	store repository.FeedStore,
	pub repository.EventPublisher,
	summaryCache pkgcache.Service,
	logger *applogger.Logger,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.FeedService {
	proc := pipeline.NewProcessor(logger, m)
	engine := recon.NewEngine(portfolio, recon.Tolerances{
		MarketValueBps: cfg.Recon.Tolerances.MarketValueBps,
		PriceBps:       cfg.Recon.Tolerances.PriceBps,
		CashAbsolute:   cfg.Recon.Tolerances.CashAbsolute,
		QuantityExact:  cfg.Recon.Tolerances.QuantityExact,
	}, pub, logger, m)
	return usecase.NewFeedService(reg, proc, engine, store, pub, logger, m).
		WithSummaryCache(summaryCache, cfg.Recon.SummaryCacheTTL)
}

// ProvideReconQueue builds the Redis-backed worker queue for async
// reconciliation runs.
func ProvideReconQueue(
	cfg *config.Config,
	logger *applogger.Logger,
	rc *pkgcache.RedisCache,
	svc *usecase.FeedService,
) *queue.RedisQueue {
	q := queue.NewRedisQueue(logger, &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		QueueSize:  cfg.Queue.Size,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, rc.Client(), queue.ModeProducerConsumer)
	q.RegisterJob(usecase.NewReconciliationJob(svc, logger))
	return q
}

// ProvideCorrelationService builds the correlation analysis service.
func ProvideCorrelationService(
	cfg *config.Config,
	store repository.FeedStore,
	pub repository.EventPublisher,
	logger *applogger.Logger,
) *correlation.Service {
	return correlation.NewService(correlation.Options{
		MinSampleSize: cfg.Correlation.MinSampleSize,
		CacheTTL:      cfg.Correlation.CacheTTL,
		WithLags:      cfg.Correlation.WithLags,
	}, store, pub, logger)
}

// ProvideMetricStream creates the profiler WebSocket stream.
func ProvideMetricStream(cfg *config.Config) repository.MetricStream {
	return profiler.New(
		cfg.Correlation.Stream.Token,
		cfg.Correlation.Stream.URL,
		cfg.Correlation.Stream.Profiles,
		cfg.Correlation.Stream.ReconnectDelay,
		cfg.Correlation.Stream.PingInterval,
	)
}

// ProvideMetricCollector builds the stream-to-bus sample path.
func ProvideMetricCollector(
	stream repository.MetricStream,
	pub repository.EventPublisher,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.MetricCollector {
	processor := usecase.NewSampleProcessor(pub, cfg.Kafka.MetricsTopic, m)
	pipe := mid.NewRealtimePipeline(processor, m,
		mid.WithMaxRPS(50),
		mid.WithBufferSize(2000),
	)
	return usecase.NewMetricCollector(stream, processor, m, pipe)
}

// ProvideMetricsHandler registers the consumer handler for the metrics
// topic.
func ProvideMetricsHandler(corr *correlation.Service, m repository.Metrics, cfg *config.Config) *usecase.KafkaMetricsHandler {
	return usecase.NewKafkaMetricsHandler(cfg.Kafka.MetricsTopic, corr, m)
}

// ProvideApp creates the application server with routes registered.
func ProvideApp(
	cfg *config.Config,
	logger *applogger.Logger,
	reg *registry.Registry,
	svc *usecase.FeedService,
	corr *correlation.Service,
	collector *usecase.MetricCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaMetricsHandler,
	reconQueue *queue.RedisQueue,
	chClient *pkgch.Client,
	feedStore repository.FeedStore,
	pub repository.EventPublisher,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}

	// Aggregate error logs onto the event bus when a topic is set.
	if cfg.Logging.AggregationTopic != "" {
		if lp, ok := pub.(applogger.Publisher); ok {
			logger.AddCollector(&applogger.CollectionConfig{
				TimeInterval:   cfg.Logging.FlushInterval,
				CountThreshold: cfg.Logging.CountThreshold,
				Topic:          cfg.Logging.AggregationTopic,
				Publisher:      lp,
			})
		}
	}

	app := server.New(cfg, reg, collector, consumer, kh, reconQueue, chClient, feedStore, pub)
	app.SetHTTPHandler(server.RouteSet{
		api.NewConnectionsHandler(logger, reg),
		api.NewReconciliationHandler(logger, svc, reconQueue),
		api.NewCorrelationHandler(logger, corr),
	})
	return app
}
