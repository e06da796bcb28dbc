package di

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"ForexPulse/internal/domain/models"
	domrepo "ForexPulse/internal/domain/repository"
	"ForexPulse/internal/handler/api"
	internalrepo "ForexPulse/internal/repository"
	"ForexPulse/internal/service/guard"
	"ForexPulse/internal/service/providers"
	"ForexPulse/internal/service/ratelimit"
	"ForexPulse/internal/services/aggregator"
	"ForexPulse/internal/services/analytics"
	"ForexPulse/internal/services/model"
	"ForexPulse/internal/services/news"
	"ForexPulse/internal/usecase"
	"ForexPulse/pkg/cache"
	pkgch "ForexPulse/pkg/clickhouse"
	"ForexPulse/pkg/config"
	xhttp "ForexPulse/pkg/http"
	pkgkafka "ForexPulse/pkg/kafka"
	"ForexPulse/pkg/logger"
	"ForexPulse/pkg/metrics"
	pkgpg "ForexPulse/pkg/postgres"
	"ForexPulse/pkg/queue"
	"ForexPulse/pkg/server"
)

const storeInitTimeout = 10 * time.Second

func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(logger.String("env", cfg.Environment)), nil
}

func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) domrepo.Metrics {
	return metrics.New(reg)
}

// ProvideStorage opens the configured backend and ensures its tables exist.
func ProvideStorage(cfg *config.Config, l *logger.Logger) (domrepo.Storage, func(), error) {
	var store domrepo.Storage
	switch cfg.Store.Backend {
	case "memory":
		store = internalrepo.NewMemoryStore()
	case "clickhouse":
		client, err := pkgch.NewClient(
			pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
			pkgch.WithDatabase(cfg.ClickHouse.Database),
			pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
			pkgch.WithPool(10, 5, 5*time.Minute),
			pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
			pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
			pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("clickhouse client: %w", err)
		}
		ch := internalrepo.NewCHStore(client)
		ch.SetLogger(l)
		store = ch
	default:
		ctx, cancel := context.WithTimeout(context.Background(), storeInitTimeout)
		db, err := pkgpg.Open(ctx, cfg.Postgres.DSN, pkgpg.Pool{
			MaxOpen:     cfg.Postgres.MaxOpenConns,
			MaxIdle:     cfg.Postgres.MaxIdleConns,
			MaxLifetime: cfg.Postgres.ConnMaxLifetime,
		})
		cancel()
		if err != nil {
			return nil, nil, err
		}
		store = internalrepo.NewPostgresStore(db, cfg.Server.ReadTimeout, l)
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeInitTimeout)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("%s schema: %w", cfg.Store.Backend, err)
	}
	cleanup := func() {
		if err := store.Close(); err != nil {
			l.Warn("store close error", logger.Error(err))
		}
	}
	return store, cleanup, nil
}

// ProvideRedis returns nil when redis is disabled.
func ProvideRedis(cfg *config.Config, l *logger.Logger) (*cache.RedisCache, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	rc, err := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Prefix,
		cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, 2),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	return rc, func() {
		if err := rc.Close(); err != nil {
			l.Warn("redis close error", logger.Error(err))
		}
	}, nil
}

// ProvideCache layers an in-process cache over redis when redis is available.
func ProvideCache(cfg *config.Config, rc *cache.RedisCache) cache.Service {
	if rc == nil {
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Redis.LocalSize))
	}
	return cache.NewLayeredCache(rc,
		cache.WithLocalSize(cfg.Redis.LocalSize),
		cache.WithLocalTTL(cfg.Redis.LocalTTL),
	)
}

// ProvideSharedGuard is nil unless redis backs a cross-process lease.
func ProvideSharedGuard(rc *cache.RedisCache, l *logger.Logger) guard.Guard {
	if rc == nil {
		return nil
	}
	return guard.NewRedisLease(rc, l)
}

// ProvideRedisPinger keeps a nil *RedisCache from becoming a non-nil interface.
func ProvideRedisPinger(rc *cache.RedisCache) usecase.Pinger {
	if rc == nil {
		return nil
	}
	return rc
}

func ProvidePublisher(cfg *config.Config, l *logger.Logger) (domrepo.EventPublisher, func(), error) {
	if !cfg.Kafka.Enabled {
		return internalrepo.NopPublisher{}, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(pkgkafka.ProducerConfig{
		Brokers:      cfg.Kafka.Brokers,
		RequiredAcks: cfg.Kafka.RequiredAcks,
		Compression:  cfg.Kafka.Compression,
		MaxAttempts:  cfg.Kafka.Producer.MaxAttempts,
		BatchSize:    cfg.Kafka.Producer.BatchSize,
		BatchBytes:   int64(cfg.Kafka.Producer.BatchBytes),
		Linger:       cfg.Kafka.Producer.Linger,
		WriteTimeout: cfg.Kafka.Producer.WriteTimeout,
		ReadTimeout:  cfg.Kafka.Producer.ReadTimeout,
	}, l)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	pub := internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topics.News, cfg.Kafka.Topics.Signals)
	return pub, func() {
		if err := pub.Close(); err != nil {
			l.Warn("kafka producer close error", logger.Error(err))
		}
	}, nil
}

func ProvidePriceProvider(cfg *config.Config, m domrepo.Metrics, l *logger.Logger) domrepo.PriceProvider {
	return providers.NewPriceProvider(cfg, m, l)
}

func ProvideNewsProvider(cfg *config.Config, m domrepo.Metrics, l *logger.Logger) domrepo.NewsProvider {
	return providers.NewNewsProvider(cfg, m, l)
}

func ProvideMacroProvider(cfg *config.Config, m domrepo.Metrics, l *logger.Logger) domrepo.MacroProvider {
	return providers.NewMacroProvider(cfg, m, l)
}

func ProvideAnalyzer() *news.Analyzer {
	return news.NewAnalyzer(news.NewVaderScorer())
}

func ProvideClassifier() *analytics.RegimeClassifier {
	return analytics.NewRegimeClassifier()
}

func ProvideAggregator(store domrepo.Storage, m domrepo.Metrics, l *logger.Logger) *aggregator.Aggregator {
	return aggregator.New(store, m, aggregator.WithLogger(l))
}

func ProvideModelStore(cfg *config.Config) *model.FileStore {
	return model.NewFileStore(cfg.Model.Dir)
}

func ProvideIngestion(
	cfg *config.Config,
	store domrepo.Storage,
	prices domrepo.PriceProvider,
	newsSrc domrepo.NewsProvider,
	macro domrepo.MacroProvider,
	analyzer *news.Analyzer,
	agg *aggregator.Aggregator,
	c cache.Service,
	pub domrepo.EventPublisher,
	m domrepo.Metrics,
	l *logger.Logger,
) *usecase.IngestionUseCase {
	return usecase.NewIngestionUseCase(usecase.IngestionDeps{
		Store:       store,
		Prices:      prices,
		News:        newsSrc,
		Macro:       macro,
		Analyzer:    analyzer,
		Aggregator:  agg,
		Cache:       c,
		Publisher:   pub,
		Metrics:     m,
		Logger:      l,
		Instruments: cfg.Symbols(),
	})
}

func ProvideTrainer(cfg *config.Config, store domrepo.Storage, artifacts *model.FileStore, m domrepo.Metrics, l *logger.Logger) *usecase.TrainerUseCase {
	// Training and inference both read the full 1m history.
	return usecase.NewTrainerUseCase(store, store, artifacts, m, l, model.DefaultTrainConfig(cfg.Model.HorizonMinutes), 0)
}

func ProvidePredictor(
	cfg *config.Config,
	store domrepo.Storage,
	artifacts *model.FileStore,
	classifier *analytics.RegimeClassifier,
	pub domrepo.EventPublisher,
	m domrepo.Metrics,
	l *logger.Logger,
) *usecase.PredictorUseCase {
	return usecase.NewPredictorUseCase(usecase.PredictorDeps{
		Bars:       store,
		Context:    store,
		Signals:    store,
		Artifacts:  artifacts,
		Classifier: classifier,
		Publisher:  pub,
		Metrics:    m,
		Logger:     l,
		Config: usecase.PredictorConfig{
			MinBars:          cfg.Model.MinBars,
			NeutralThreshold: cfg.Model.NeutralThreshold,
			AlertThreshold:   cfg.Alerts.ConfidenceThreshold,
		},
	})
}

func ProvideJobRunner(store domrepo.Storage, shared guard.Guard, m domrepo.Metrics, l *logger.Logger) *usecase.JobRunner {
	return usecase.NewJobRunner(ratelimit.New(), shared, store, m, l)
}

func ProvideScheduler(
	cfg *config.Config,
	runner *usecase.JobRunner,
	ing *usecase.IngestionUseCase,
	pred *usecase.PredictorUseCase,
	l *logger.Logger,
) *queue.Scheduler {
	s := queue.NewScheduler(l)
	jobs := usecase.ScheduledJobs(runner, ing, pred, cfg.Symbols(), usecase.JobIntervals{
		Prices:  cfg.Scheduler.PricesInterval,
		News:    cfg.Scheduler.NewsInterval,
		Macro:   cfg.Scheduler.MacroInterval,
		Predict: cfg.Scheduler.PredictInterval,
	}, l)
	for _, j := range jobs {
		s.RegisterJob(j)
	}
	return s
}

func ProvideQuery(cfg *config.Config, store domrepo.Storage, redis usecase.Pinger) *usecase.QueryUseCase {
	instruments := make([]models.Instrument, 0, len(cfg.Instruments))
	for _, in := range cfg.Instruments {
		instruments = append(instruments, models.Instrument{Symbol: in.Symbol, AssetClass: in.AssetClass, TickSize: in.TickSize})
	}
	return usecase.NewQueryUseCase(store, redis, instruments)
}

func ProvideHandler(cfg *config.Config, q *usecase.QueryUseCase, l *logger.Logger) *api.Handler {
	return api.NewHandler(l, q, cfg.Environment, cfg.Server.NewsPushPoll)
}

func ProvideHTTPServer(cfg *config.Config, h *api.Handler, reg *prometheus.Registry, l *logger.Logger) *xhttp.Server {
	return xhttp.NewServer(h,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowRequest(cfg.Server.SlowRequest),
		xhttp.WithLogger(l),
		xhttp.WithRegistry(reg),
		xhttp.WithCORS(cfg.Server.CORSOrigins...),
	)
}

// ProvideKafkaConsumer returns nil unless the 1m bar topic is consumed.
func ProvideKafkaConsumer(cfg *config.Config, store domrepo.Storage, agg *aggregator.Aggregator, m domrepo.Metrics, l *logger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(pkgkafka.ConsumerConfig{
		Brokers:    cfg.Kafka.Brokers,
		GroupID:    cfg.Kafka.Consumer.GroupID,
		Workers:    cfg.Kafka.Consumer.Workers,
		RetryMax:   cfg.Kafka.Consumer.RetryMax,
		BackoffMin: cfg.Kafka.Consumer.BackoffMin,
		BackoffMax: cfg.Kafka.Consumer.BackoffMax,
		DLQTopic:   cfg.Kafka.Consumer.DLQTopic,
	}, l)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.Register(usecase.NewKafkaBarsHandler(cfg.Kafka.Topics.Bars, store, agg, m))
	return consumer, nil
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	store domrepo.Storage,
	ing *usecase.IngestionUseCase,
	trainer *usecase.TrainerUseCase,
	pred *usecase.PredictorUseCase,
	agg *aggregator.Aggregator,
	sched *queue.Scheduler,
	srv *xhttp.Server,
	consumer *pkgkafka.Consumer,
) *server.App {
	return server.New(server.Components{
		Config:     cfg,
		Logger:     l,
		Store:      store,
		Ingestion:  ing,
		Trainer:    trainer,
		Predictor:  pred,
		Aggregator: agg,
		Scheduler:  sched,
		HTTPServer: srv,
		Consumer:   consumer,
	})
}
