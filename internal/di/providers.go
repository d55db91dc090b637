package di

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"

	"TrendScanner/internal/domain/models"
	"TrendScanner/internal/domain/repository"
	"TrendScanner/internal/handler/api"
	"TrendScanner/internal/handler/ws"
	mid "TrendScanner/internal/middleware"
	internalrepo "TrendScanner/internal/repository"
	apimetrics "TrendScanner/internal/service/metrics"
	"TrendScanner/internal/service/scheduler"
	"TrendScanner/internal/service/yahoo"
	"TrendScanner/internal/usecase"
	"TrendScanner/pkg/cache"
	pkgch "TrendScanner/pkg/clickhouse"
	"TrendScanner/pkg/config"
	xhttp "TrendScanner/pkg/http"
	pkgkafka "TrendScanner/pkg/kafka"
	applogger "TrendScanner/pkg/logger"
	"TrendScanner/pkg/metrics"
	"TrendScanner/pkg/queue"
	"TrendScanner/pkg/server"
)

// ProvideKafkaProducer creates a Kafka producer, or nil when nothing publishes to Kafka.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Sinks.Kafka && cfg.Log.CollectorTopic == "" {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatch(cfg.Kafka.BatchSize, cfg.Kafka.BatchTimeout),
		pkgkafka.WithWriteTimeout(cfg.Kafka.WriteTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideLogger creates the application logger. Repeated warnings and errors
// are aggregated to Kafka when a collector topic is configured.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Log.CollectorTopic != "" && producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Log.CollectorInterval,
			CountThreshold: cfg.Log.CollectorThreshold,
			Topic:          cfg.Log.CollectorTopic,
			Publisher:      internalrepo.NewKafkaLogPublisher(producer),
		})
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder on the default registry.
func ProvideMetrics() repository.Metrics {
	return metrics.New(nil)
}

// ProvideRedisClient connects to redis when the cache or the job queue needs it.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, error) {
	if !cfg.UsesRedis() {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr(),
		Password:     cfg.Cache.Redis.Password,
		DB:           cfg.Cache.Redis.DB,
		PoolSize:     10,
		MinIdleConns: 2,
		PoolTimeout:  30 * time.Second,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.RedisAddr(), err)
	}
	return client, nil
}

// ProvideCache selects the cache backend.
func ProvideCache(cfg *config.Config, rdb *redis.Client) (cache.Service, error) {
	switch cfg.Cache.Type {
	case "memory":
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Cache.MemorySize)), nil
	case "redis":
		return cache.NewRedisCache(rdb, cfg.Cache.Redis.Prefix), nil
	case "layered":
		return cache.NewLayeredCache(
			cache.NewRedisCache(rdb, cfg.Cache.Redis.Prefix),
			cache.WithLayeredMemorySize(cfg.Cache.MemorySize),
			cache.WithLayeredMemoryTTL(time.Minute),
		), nil
	}
	return nil, fmt.Errorf("unknown cache type %q", cfg.Cache.Type)
}

// ProvideClickHouseClient creates a ClickHouse client and its schema, or nil
// when no component reads or writes ClickHouse.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.Sinks.ClickHouse && cfg.MarketData.Source != "clickhouse" && !cfg.MarketData.Archive {
		return nil, nil
	}
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

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, pkgch.SchemaStatements(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideBarStore creates the ClickHouse bar archive, or nil without a client.
func ProvideBarStore(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger) *internalrepo.CHBarStore {
	if ch == nil {
		return nil
	}
	store := internalrepo.NewCHBarStore(ch, cfg.ClickHouse.Database)
	store.SetLogger(l)
	return store
}

// ProvideMarketData builds the configured source behind the series cache.
func ProvideMarketData(cfg *config.Config, c cache.Service, bars *internalrepo.CHBarStore, l *applogger.Logger) (*internalrepo.CachedMarketData, error) {
	var source repository.MarketData
	switch cfg.MarketData.Source {
	case "yahoo":
		source = yahoo.New(yahoo.Config{
			BaseURL:     cfg.MarketData.BaseURL,
			Timeout:     cfg.MarketData.Timeout,
			Concurrency: cfg.MarketData.Concurrency,
			RPS:         cfg.MarketData.RPS,
			Retries:     cfg.MarketData.Retries,
		}, l)
	case "clickhouse":
		if bars == nil {
			return nil, fmt.Errorf("clickhouse market data requires a clickhouse client")
		}
		source = internalrepo.NewBarStoreMarketData(bars)
	default:
		return nil, fmt.Errorf("unknown market data source %q", cfg.MarketData.Source)
	}

	md := internalrepo.NewCachedMarketData(source, c, cfg.Scanner.CacheTTL, l)
	if cfg.MarketData.Archive && cfg.MarketData.Source != "clickhouse" && bars != nil {
		md = md.WithArchive(bars)
	}
	return md, nil
}

// ProvidePresets merges configured overrides into the built-in presets.
func ProvidePresets(cfg *config.Config) (models.Presets, error) {
	return MergePresets(models.BuiltinPresets(), cfg.Presets)
}

// MergePresets applies overrides by parameter name. A preset that is not
// built in starts from the preset named by its "base" key, default otherwise.
func MergePresets(presets models.Presets, overrides map[string]map[string]interface{}) (models.Presets, error) {
	out := make(models.Presets, len(presets)+len(overrides))
	for name, p := range presets {
		out[name] = p
	}
	for name, over := range overrides {
		fields := make(map[string]interface{}, len(over))
		base := name
		if _, builtin := presets[name]; !builtin {
			base = models.PresetDefault
		}
		for k, v := range over {
			if k == "base" {
				if s, ok := v.(string); ok && s != "" {
					base = s
				}
				continue
			}
			fields[k] = v
		}

		p, ok := presets[base]
		if !ok {
			return nil, fmt.Errorf("preset %q: %w: base %q", name, models.ErrUnknownPreset, base)
		}
		raw, err := yaml.Marshal(fields)
		if err != nil {
			return nil, fmt.Errorf("preset %q: %w", name, err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(raw))
		dec.KnownFields(true)
		if err := dec.Decode(&p); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("preset %q: %w", name, err)
		}
		p.Name = name
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("preset %q: %w", name, err)
		}
		out[name] = p
	}
	return out, nil
}

func ProvideAnalyzers(presets models.Presets, l *applogger.Logger) (usecase.Analyzers, error) {
	return usecase.NewAnalyzers(presets, l)
}

// ProvideScanner creates the scan use case.
func ProvideScanner(cfg *config.Config, data repository.MarketData, analyzers usecase.Analyzers, m repository.Metrics, l *applogger.Logger) (*usecase.Scanner, error) {
	if _, err := analyzers.Get(cfg.Scanner.Preset); err != nil {
		return nil, fmt.Errorf("scanner.preset: %w", err)
	}
	return usecase.NewScanner(data, analyzers, m, l,
		usecase.ScanDefaults{
			Tickers:  cfg.Scanner.Tickers,
			Preset:   cfg.Scanner.Preset,
			Lookback: cfg.Scanner.Lookback,
		},
		usecase.WithWorkers(cfg.Scanner.Workers),
		usecase.WithScanTimeout(cfg.Scanner.Timeout),
	), nil
}

func ProvideScanStore(cfg *config.Config, c cache.Service) *internalrepo.CacheScanStore {
	return internalrepo.NewCacheScanStore(c, cfg.Scanner.CacheTTL, cfg.Queue.JobTTL)
}

// ProvideHub creates the websocket broadcaster, or nil when disabled.
func ProvideHub(cfg *config.Config, l *applogger.Logger, store *internalrepo.CacheScanStore) *ws.Hub {
	if !cfg.Sinks.WebSocket {
		return nil
	}
	return ws.NewHub(l, "/ws/scan", store.Latest)
}

// ProvideSinks collects the enabled result sinks.
func ProvideSinks(cfg *config.Config, hub *ws.Hub, producer *pkgkafka.Producer, ch *pkgch.Client) []repository.ResultSink {
	var sinks []repository.ResultSink
	if hub != nil {
		sinks = append(sinks, hub)
	}
	if cfg.Sinks.Kafka && producer != nil {
		sinks = append(sinks, internalrepo.NewKafkaResultSink(producer, cfg.Kafka.RecordsTopic, cfg.Kafka.SummaryTopic))
	}
	if cfg.Sinks.ClickHouse && ch != nil {
		sinks = append(sinks, internalrepo.NewCHScanSink(ch, cfg.ClickHouse.Database))
	}
	if cfg.Sinks.CSVPath != "" {
		sinks = append(sinks, internalrepo.NewCSVFileSink(cfg.Sinks.CSVPath))
	}
	return sinks
}

func ProvideDispatcher(sinks []repository.ResultSink, m repository.Metrics, l *applogger.Logger) *usecase.ResultDispatcher {
	return usecase.NewResultDispatcher(sinks, m, l)
}

// ProvideDeliveryPipeline buffers results whose delivery failed.
func ProvideDeliveryPipeline(cfg *config.Config, d *usecase.ResultDispatcher, m repository.Metrics, l *applogger.Logger) *mid.DeliveryPipeline {
	return mid.NewDeliveryPipeline(d, m,
		mid.WithBufferSize(cfg.Sinks.BufferSize),
		mid.WithMaxAttempts(cfg.Sinks.MaxAttempts),
		mid.WithPipelineLogger(l),
	)
}

// ProvideScanCycle creates the scheduled cycle over the configured universe.
func ProvideScanCycle(cfg *config.Config, scanner *usecase.Scanner, store *internalrepo.CacheScanStore, data *internalrepo.CachedMarketData, p *mid.DeliveryPipeline, l *applogger.Logger) *usecase.ScanCycle {
	return usecase.NewScanCycle(scanner, store, data, p, l, models.ScanRequest{
		Tickers:  cfg.Scanner.Tickers,
		Preset:   cfg.Scanner.Preset,
		Lookback: cfg.Scanner.Lookback,
		Interval: cfg.Scanner.Interval,
	})
}

// ProvideQueue creates the redis job queue, or nil when jobs are disabled.
func ProvideQueue(cfg *config.Config, rdb *redis.Client, l *applogger.Logger) *queue.RedisQueue {
	if !cfg.Queue.Enabled || rdb == nil {
		return nil
	}
	return queue.NewRedisQueue(rdb, queue.Config{
		KeyPrefix:  cfg.Queue.KeyPrefix,
		Workers:    cfg.Queue.Workers,
		RetryLimit: cfg.Queue.RetryLimit,
		RetryDelay: cfg.Queue.RetryDelay,
	}, l)
}

// ProvideScanJobs registers the ad-hoc scan job on the queue.
func ProvideScanJobs(scanner *usecase.Scanner, store *internalrepo.CacheScanStore, q *queue.RedisQueue, l *applogger.Logger) *usecase.ScanJobs {
	if q == nil {
		return nil
	}
	jobs := usecase.NewScanJobs(scanner, store, q, l)
	q.Register(jobs)
	return jobs
}

func ProvideScheduler(cfg *config.Config, l *applogger.Logger) *scheduler.Scheduler {
	return scheduler.New(l, cfg.Scanner.Timeout)
}

// ProvideHandlers collects the HTTP route groups.
func ProvideHandlers(
	cfg *config.Config,
	l *applogger.Logger,
	scanner *usecase.Scanner,
	cycle *usecase.ScanCycle,
	jobs *usecase.ScanJobs,
	store *internalrepo.CacheScanStore,
	data *internalrepo.CachedMarketData,
	hub *ws.Hub,
) []xhttp.Handler {
	handlers := []xhttp.Handler{
		api.NewScannerEchoHandler(l, scanner, cycle, jobs, store, data, api.RateLimit{
			Capacity: cfg.Server.RateLimit.Capacity,
			Refill:   cfg.Server.RateLimit.RefillPerSec,
		}),
	}
	if hub != nil {
		handlers = append(handlers, hub)
	}
	return handlers
}

// ProvideHTTPServer creates the Echo server.
func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, handlers []xhttp.Handler) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
	}
	if cfg.Metrics.Enabled {
		apimetrics.Register()
		opts = append(opts, xhttp.WithMetrics(cfg.Metrics.Path, nil, nil))
	}
	return xhttp.NewServer(l, handlers, opts...)
}

// ProvideApp creates the application and hands it every client to close.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	cycle *usecase.ScanCycle,
	pipeline *mid.DeliveryPipeline,
	sched *scheduler.Scheduler,
	srv *xhttp.Server,
	q *queue.RedisQueue,
	dispatcher *usecase.ResultDispatcher,
	c cache.Service,
	rdb *redis.Client,
	ch *pkgch.Client,
	producer *pkgkafka.Producer,
) *server.App {
	var consumer server.Consumer
	if q != nil {
		consumer = q
	}

	// the log collector flushes through the producer, so it goes first
	closers := []server.Closer{
		{Name: "logger", Close: func() error {
			l.RemoveCollector()
			return nil
		}},
		{Name: "sinks", Close: dispatcher.Close},
	}
	// the kafka sink owns the producer when it is enabled
	if producer != nil && !cfg.Sinks.Kafka {
		closers = append(closers, server.Closer{Name: "kafka", Close: producer.Close})
	}
	if cl, ok := c.(io.Closer); ok {
		closers = append(closers, server.Closer{Name: "cache", Close: cl.Close})
	}
	if ch != nil {
		closers = append(closers, server.Closer{Name: "clickhouse", Close: ch.Close})
	}
	// redis backed caches close the shared client themselves
	if rdb != nil && cfg.Cache.Type == "memory" {
		closers = append(closers, server.Closer{Name: "redis", Close: rdb.Close})
	}
	return server.New(cfg, l, cycle, pipeline, sched, srv, consumer, closers)
}
