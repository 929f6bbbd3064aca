package di

import (
	"context"
	"fmt"
	"time"

	"MarketSync/internal/domain/repository"
	"MarketSync/internal/handler/api"
	"MarketSync/internal/handler/ws"
	internalrepo "MarketSync/internal/repository"
	"MarketSync/internal/service/auth"
	"MarketSync/internal/service/kvstore"
	"MarketSync/internal/service/marketapi"
	"MarketSync/internal/service/ratelimit"
	"MarketSync/internal/usecase"
	"MarketSync/pkg/cache"
	pkgch "MarketSync/pkg/clickhouse"
	"MarketSync/pkg/config"
	xhttp "MarketSync/pkg/http"
	pkgkafka "MarketSync/pkg/kafka"
	"MarketSync/pkg/logger"
	"MarketSync/pkg/metrics"
	"MarketSync/pkg/server"
)

const snapshotTable = "quote_snapshots"

// ProvideLogger builds the process logger. The cleanup stops any error collector
// attached later by the Kafka sink.
func ProvideLogger(cfg *config.Config) (*logger.Logger, func(), error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	return l, l.RemoveCollector, nil
}

// ProvideCacheBackend opens the key-value backend selected by storage.type.
func ProvideCacheBackend(cfg *config.Config, l *logger.Logger) (cache.Backend, func(), error) {
	var (
		b   cache.Backend
		err error
	)
	switch cfg.Storage.Type {
	case "memory":
		b = cache.NewMemoryCache()
	case "redis":
		r := cfg.Storage.Redis
		b, err = cache.NewRedisCache(
			cache.WithRedisHost(r.Host),
			cache.WithRedisPort(r.Port),
			cache.WithRedisPassword(r.Password),
			cache.WithRedisDB(r.DB),
			cache.WithRedisPrefix(r.Prefix),
		)
	default:
		b, err = cache.NewSQLiteCache(cfg.Storage.SQLite.Path)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%s storage: %w", cfg.Storage.Type, err)
	}
	l.Info("storage ready", logger.String("type", cfg.Storage.Type))

	return b, func() {
		if err := b.Close(); err != nil {
			l.Warn("storage close error", logger.Error(err))
		}
	}, nil
}

func ProvideStore(b cache.Backend, l *logger.Logger) *kvstore.Store {
	return kvstore.New(b, l)
}

// ProvideMetrics registers the Prometheus collectors on the default registry.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

func ProvideHTTPClient(cfg *config.Config) *xhttp.Client {
	return xhttp.NewClient(
		xhttp.WithTimeout(cfg.API.Timeout),
		xhttp.WithUserAgent(cfg.API.UserAgent),
	)
}

func ProvideTokenManager(cfg *config.Config, hc *xhttp.Client, store *kvstore.Store, m repository.Metrics, l *logger.Logger) *auth.Manager {
	historical := auth.NewHTTPAcquirer(hc, cfg.Auth.Historical.URL, auth.HistoricalCredentials{
		Username: cfg.Auth.Historical.Username,
		Password: cfg.Auth.Historical.Password,
	})
	live := auth.NewHTTPAcquirer(hc, cfg.Auth.Live.URL, auth.LiveCredentials{
		APIKey: cfg.Auth.Live.APIKey,
	})
	return auth.NewManager(historical, live, store,
		auth.WithMetrics(m),
		auth.WithLogger(l),
	)
}

func ProvideMarketClient(cfg *config.Config, hc *xhttp.Client, tokens *auth.Manager, m repository.Metrics, l *logger.Logger) *marketapi.Client {
	return marketapi.NewClient(hc, tokens, marketapi.Endpoints{
		HistoricalBase: cfg.API.HistoricalBaseURL,
		LiveData:       cfg.API.LiveDataURL,
		MarketStatus:   cfg.API.MarketStatusURL,
	},
		marketapi.WithLogger(l),
		marketapi.WithMetrics(m),
		marketapi.WithDetailCacheTTL(cfg.API.DetailCacheTTL),
	)
}

func ProvideMarketView(cfg *config.Config, store *kvstore.Store, m repository.Metrics, l *logger.Logger) *usecase.MarketView {
	prefs := usecase.PreferencesConfig{
		ThemeTTL:     kvstore.Days(cfg.Preferences.ThemeTTLDays),
		WatchlistTTL: kvstore.NoExpiry,
	}
	if cfg.Preferences.WatchlistTTLDays > 0 {
		prefs.WatchlistTTL = kvstore.Days(cfg.Preferences.WatchlistTTLDays)
	}
	return usecase.NewMarketView(store, prefs, l, m)
}

// ProvideSnapshotSink connects the downstream sink selected by sink.type, or
// returns nil for "none". A Kafka sink also ships aggregated error logs.
func ProvideSnapshotSink(cfg *config.Config, l *logger.Logger) (repository.SnapshotSink, func(), error) {
	switch cfg.Sink.Type {
	case "kafka":
		k := cfg.Sink.Kafka
		producer, err := pkgkafka.NewProducer(
			pkgkafka.WithBrokers(k.Brokers),
			pkgkafka.WithRequiredAcks(k.RequiredAcks),
			pkgkafka.WithCompression(k.Compression),
			pkgkafka.WithBatching(k.BatchSize, k.Linger),
			pkgkafka.WithHashByKey(true),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("kafka producer: %w", err)
		}
		if k.LogTopic != "" {
			l.AddCollector(&logger.CollectionConfig{
				TimeInterval:   30 * time.Second,
				CountThreshold: 100,
				Topic:          k.LogTopic,
				Publisher:      producer,
			})
		}
		l.Info("kafka sink ready", logger.Strings("brokers", k.Brokers), logger.String("topic", k.Topic))
		return internalrepo.NewKafkaSnapshotSink(producer, k.Topic), func() {
			l.RemoveCollector()
			if err := producer.Close(); err != nil {
				l.Warn("kafka producer close error", logger.Error(err))
			}
		}, nil

	case "clickhouse":
		c := cfg.Sink.ClickHouse
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		client, err := pkgch.NewClient(ctx,
			pkgch.WithAddress(c.Host, c.Port),
			pkgch.WithDatabase(c.Database),
			pkgch.WithCredentials(c.User, c.Password),
			pkgch.WithTimeouts(c.DialTimeout, c.ReadTimeout),
			pkgch.WithHTTP(c.UseHTTP),
			pkgch.WithAsyncInsert(c.AsyncInsert),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("clickhouse client: %w", err)
		}
		table := c.Database + "." + snapshotTable
		schema := append([]string{"CREATE DATABASE IF NOT EXISTS " + c.Database}, internalrepo.SnapshotSchema(table)...)
		if err := client.InitSchema(ctx, schema); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
		}
		sink, err := internalrepo.NewClickHouseSnapshotSink(client.DB(), table)
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		l.Info("clickhouse sink ready", logger.String("table", table))
		return sink, func() {
			if err := client.Close(); err != nil {
				l.Warn("clickhouse close error", logger.Error(err))
			}
		}, nil
	}
	return nil, func() {}, nil
}

// ProvideSnapshotPublisher returns nil when no sink is configured.
func ProvideSnapshotPublisher(cfg *config.Config, sink repository.SnapshotSink, m repository.Metrics, l *logger.Logger) *usecase.SnapshotPublisher {
	if sink == nil {
		return nil
	}
	return usecase.NewSnapshotPublisher(sink, m, l,
		usecase.WithQueueSize(cfg.Sink.QueueSize),
		usecase.WithPublishTimeout(cfg.Sink.PublishTimeout),
	)
}

func ProvideHub(view *usecase.MarketView, l *logger.Logger) *ws.Hub {
	return ws.NewHub(view, l)
}

func ProvideMarketHandler(cfg *config.Config, l *logger.Logger, view *usecase.MarketView, client *marketapi.Client) *api.MarketEchoHandler {
	var opts []api.HandlerOption
	if rl := cfg.Server.RateLimit; rl.Burst > 0 {
		opts = append(opts, api.WithUpstreamLimiter(ratelimit.New(rl.Burst, rl.PerSecond)))
	}
	return api.NewMarketEchoHandler(l, view, client, opts...)
}

func ProvideHTTPServer(cfg *config.Config, l *logger.Logger, market *api.MarketEchoHandler, hub *ws.Hub) *xhttp.Server {
	return xhttp.NewServer(xhttp.Handlers{market, hub}, l,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
	)
}

func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	view *usecase.MarketView,
	client *marketapi.Client,
	m repository.Metrics,
	publisher *usecase.SnapshotPublisher,
	srv *xhttp.Server,
	hub *ws.Hub,
) *server.App {
	return server.New(cfg, l, view, client, m, publisher, srv, hub)
}
