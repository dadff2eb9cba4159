package di

import (
	"context"
	"fmt"
	"time"

	"SignalScan/internal/domain/repository"
	dservice "SignalScan/internal/domain/service"
	"SignalScan/internal/handler/api"
	mid "SignalScan/internal/middleware"
	internalrepo "SignalScan/internal/repository"
	"SignalScan/internal/service/finnhub"
	"SignalScan/internal/service/ratelimit"
	"SignalScan/internal/service/taapi"
	"SignalScan/internal/usecase"
	pkgcache "SignalScan/pkg/cache"
	pkgch "SignalScan/pkg/clickhouse"
	"SignalScan/pkg/config"
	pkgkafka "SignalScan/pkg/kafka"
	applogger "SignalScan/pkg/logger"
	"SignalScan/pkg/metrics"
	"SignalScan/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	lc := &applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	}
	if cfg.Environment == "development" {
		lc.Level = "debug"
		lc.Format = "console"
	}
	return applogger.New(lc)
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client. Schema setup
// lives in the signal store's Init.
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

// ProvideKafkaProducer creates a Kafka producer. Returns nil when no
// brokers are configured (clickhouse-only deployments).
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
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
// The signal sink consumer only runs for the kafka backend.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if len(cfg.Kafka.Brokers) == 0 || cfg.Backend.Type != "kafka" {
		return nil, nil
	}
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

// ProvideSignalStore creates the ClickHouse signal store and ensures
// its schema exists.
func ProvideSignalStore(chClient *pkgch.Client, cfg *config.Config, l *applogger.Logger) (repository.SignalStore, error) {
	store := internalrepo.NewClickHouseSignalStore(chClient, cfg.ClickHouse.Database)
	store.SetLogger(l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("signal store init: %w", err)
	}
	return store, nil
}

// ProvideSignalPublisher creates the Kafka signal publisher. Nil when
// Kafka is not configured.
func ProvideSignalPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.SignalPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaSignalPublisher(producer, cfg.Kafka.Topic)
}

// ProvideKafkaSignalsHandler registers the sink handler for the signals topic.
func ProvideKafkaSignalsHandler(store repository.SignalStore, metrics repository.Metrics, cfg *config.Config) *usecase.KafkaSignalsHandler {
	return usecase.NewKafkaSignalsHandler(cfg.Kafka.Topic, store, metrics)
}

// ProvideRateWindow creates the provider rate-limit window shared by
// the indicator client and the status endpoint.
func ProvideRateWindow(cfg *config.Config) *ratelimit.Window {
	return ratelimit.New(cfg.RateLimit.MaxRequests, cfg.RateLimit.Window, cfg.RateLimit.SafetyBuffer)
}

// ProvideIndicatorProvider creates the taapi-backed indicator client.
func ProvideIndicatorProvider(cfg *config.Config, window *ratelimit.Window, l *applogger.Logger, m repository.Metrics) dservice.IndicatorProvider {
	return taapi.New(cfg, window, l, m)
}

// ProvideQuoteSource creates the Finnhub WebSocket stream. Nil when the
// stream is disabled.
func ProvideQuoteSource(cfg *config.Config) dservice.QuoteSource {
	if !cfg.Finnhub.Enabled {
		return nil
	}
	return finnhub.New(
		cfg.Finnhub.APIKey,
		cfg.Finnhub.WebSocketURL,
		cfg.Scanner.Symbols,
		cfg.Finnhub.ReconnectDelay,
		cfg.Finnhub.PingInterval,
	)
}

// ProvideQuoteCollector creates the live quote collector use case.
func ProvideQuoteCollector(stream dservice.QuoteSource, m repository.Metrics, cfg *config.Config) *usecase.QuoteCollector {
	if stream == nil {
		return nil
	}
	return usecase.NewQuoteCollector(stream, m, cfg.Finnhub.QuoteTTL)
}

// ProvideAggregator creates the signal aggregator with the configured
// vote scheme.
func ProvideAggregator(cfg *config.Config) *usecase.SignalAggregator {
	return usecase.NewSignalAggregator(usecase.AggregatorWeights{
		VoteFull:        cfg.Aggregator.VoteFull,
		VoteLean:        cfg.Aggregator.VoteLean,
		StrengthDivisor: cfg.Aggregator.StrengthDivisor,
		RSIOversold:     cfg.Aggregator.RSIOversold,
		RSIOverbought:   cfg.Aggregator.RSIOverbought,
		RSILeanLow:      cfg.Aggregator.RSILeanLow,
		RSILeanHigh:     cfg.Aggregator.RSILeanHigh,
		ADXTrend:        cfg.Aggregator.ADXTrend,
	})
}

// ProvideLevelCalculator creates the entry/stop/target calculator.
func ProvideLevelCalculator() *usecase.LevelCalculator {
	return usecase.NewLevelCalculator()
}

// ProvideSignalProcessor creates the backend delivery use case.
func ProvideSignalProcessor(
	pub repository.SignalPublisher,
	store repository.SignalStore,
	metrics repository.Metrics,
	cfg *config.Config,
) *usecase.SignalProcessor {
	return usecase.NewSignalProcessor(pub, store, metrics, cfg.Backend.Type)
}

// ProvidePublishPipeline builds the middleware pipeline between the
// scanner and the backend.
func ProvidePublishPipeline(proc *usecase.SignalProcessor, metrics repository.Metrics) *mid.PublishPipeline {
	return mid.NewPublishPipeline(proc, metrics,
		mid.WithMinGap(30*time.Second),
		mid.WithBufferSize(500),
	)
}

// ProvideScanOrchestrator creates the scan orchestrator use case.
func ProvideScanOrchestrator(
	provider dservice.IndicatorProvider,
	agg *usecase.SignalAggregator,
	levels *usecase.LevelCalculator,
	collector *usecase.QuoteCollector,
	pipe *mid.PublishPipeline,
	metrics repository.Metrics,
	l *applogger.Logger,
	cfg *config.Config,
) *usecase.ScanOrchestrator {
	// a nil *QuoteCollector must stay a nil interface
	var quotes usecase.QuoteReader
	if collector != nil {
		quotes = collector
	}
	return usecase.NewScanOrchestrator(
		provider,
		agg,
		levels,
		quotes,
		pipe,
		metrics,
		l,
		cfg.Scanner.Symbols,
		cfg.Scanner.MaxStocks,
		repository.NormalizeTimeframe(cfg.Scanner.Timeframe),
		cfg.Scanner.BatchSize,
		cfg.Scanner.BatchDelay,
		cfg.Scanner.MinSignalStrength,
		cfg.Scanner.TopResults,
	)
}

// ProvideScanScheduler creates the periodic scan scheduler. Nil when
// scheduling is disabled.
func ProvideScanScheduler(orch *usecase.ScanOrchestrator, l *applogger.Logger, cfg *config.Config) *usecase.ScanScheduler {
	if !cfg.Scanner.Schedule.Enabled {
		return nil
	}
	return usecase.NewScanScheduler(orch, l, cfg.Scanner.Schedule.Interval)
}

// ProvideScanHandler creates the HTTP handler with its optional wiring.
// With Redis enabled the response cache is layered (memory in front);
// otherwise it is memory only.
func ProvideScanHandler(
	l *applogger.Logger,
	orch *usecase.ScanOrchestrator,
	window *ratelimit.Window,
	store repository.SignalStore,
	collector *usecase.QuoteCollector,
	sched *usecase.ScanScheduler,
	cfg *config.Config,
) (*api.ScanEchoHandler, error) {
	h := api.NewScanEchoHandler(l, orch, window)
	h.SetStore(store)
	if collector != nil {
		h.SetQuotes(collector)
	}
	if sched != nil {
		h.SetScheduler(sched)
	}
	if cfg.Cache.Enabled {
		redisCache, err := pkgcache.NewRedisCache(
			pkgcache.WithRedisAddr(cfg.Cache.Addr),
			pkgcache.WithRedisPassword(cfg.Cache.Password),
			pkgcache.WithRedisDB(cfg.Cache.DB),
		)
		if err != nil {
			return nil, fmt.Errorf("response cache: %w", err)
		}
		h.SetCache(pkgcache.NewLayeredCache(redisCache), cfg.Cache.ReportTTL)
	} else {
		h.SetCache(pkgcache.NewMemoryCache(), cfg.Cache.ReportTTL)
	}
	return h, nil
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	collector *usecase.QuoteCollector,
	consumer *pkgkafka.Consumer,
	kh *usecase.KafkaSignalsHandler,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	pipe *mid.PublishPipeline,
	sched *usecase.ScanScheduler,
	handler *api.ScanEchoHandler,
	proc *usecase.SignalProcessor,
) *server.App {
	// Attach hook to consumer: example NoopHook for now; can be replaced via config
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	app := server.New(cfg, collector, consumer, kh, chClient)
	app.SetLogger(l)
	app.SetHTTPHandler(handler)
	app.SetPipeline(pipe)
	if sched != nil {
		app.SetScheduler(sched)
	}
	app.SignalProc = proc

	// Ship aggregated error logs to Kafka when a producer exists
	if producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.LogsTopic,
			Publisher:      internalrepo.NewKafkaLogSink(producer),
		})
	}
	return app
}
