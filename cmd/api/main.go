package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"repfinds.local/gee"
	"repfinds.local/gee/middleware"
	"repfinds.local/internal/app/linkconv"
	lccache "repfinds.local/internal/app/linkconv/cache"
	"repfinds.local/internal/app/linkconv/fetch"
	"repfinds.local/internal/app/linkconv/httpapi"
	"repfinds.local/internal/app/linkconv/repo"
	"repfinds.local/internal/app/linkconv/stats"
	"repfinds.local/internal/platform/auth"
	platformcache "repfinds.local/internal/platform/cache"
	"repfinds.local/internal/platform/config"
	"repfinds.local/internal/platform/db"
	"repfinds.local/internal/platform/httpmiddleware"
	"repfinds.local/internal/platform/httpserver"
	"repfinds.local/internal/platform/logging"
	"repfinds.local/internal/platform/metrics"
	"repfinds.local/internal/platform/migrate"
	"repfinds.local/internal/platform/ratelimit"
	"repfinds.local/internal/platform/trace"
)

var (
	version   = "dev"
	commit    = "none"
	buildTime = "unknown"
)

func main() {
	cfg := config.Load()
	logging.Setup(os.Stdout, cfg.LogLevel, cfg.LogFormat, cfg.ServiceName)

	if err := run(cfg); err != nil {
		log.Fatal(err)
	}
}

func run(cfg config.Config) error {
	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.Init()
	if cfg.TracingEnabled {
		shutdown, err := trace.Init(trace.Options{
			Endpoint:    cfg.OtlpGrpcEndpoint,
			ServiceName: cfg.OtlpServiceName,
			Version:     version,
			SampleRatio: cfg.TraceSampleRatio,
		})
		if err != nil {
			slog.Error("trace init failed", "err", err)
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					slog.Error("trace shutdown failed", "err", err)
				}
			}()
		}
	} else {
		slog.Warn("tracing disabled by config", "TRACING_ENABLED", false)
	}

	//DB，只有统计需要
	var dbPool *pgxpool.Pool
	if cfg.StatsEnabled {
		pool, err := openDB(cfg)
		if err != nil {
			return err
		}
		defer pool.Close()
		dbPool = pool
	} else {
		slog.Warn("stats disabled by config, postgres not used", "STATS_ENABLED", false)
	}

	//Redis 连不上时降级：只用进程内缓存，不限流
	redisClient, errRedis := platformcache.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if errRedis != nil {
		slog.Warn("redis unavailable, running without L2 cache and rate limiting", "addr", cfg.RedisAddr, "err", errRedis)
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimitEnabled && redisClient != nil {
		limiter = ratelimit.NewLimiter(redisClient)
	} else if !cfg.RateLimitEnabled {
		slog.Warn("rate limit disabled by config", "RATELIMIT_ENABLED", false)
	}

	catalog, err := linkconv.LoadCatalogFile(cfg.AgentCatalogFile, cfg.ShortlinkBase)
	if err != nil {
		return err
	}
	codec, err := linkconv.NewCompactCodec(cfg.CompactAlphabet)
	if err != nil {
		return err
	}
	conv := linkconv.NewConverter(catalog, newFetcher(cfg))

	links, closeLinks, err := newLinkConverter(cfg, conv, redisClient)
	if err != nil {
		return err
	}
	defer closeLinks()

	collector, startConsumer := newStats(cfg, dbPool)

	ts, err := auth.NewHS256Service(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL)
	if err != nil {
		return err
	}

	deps := httpapi.Deps{
		Links:     links,
		Converter: conv,
		Codec:     codec,
		Collector: collector,
		Tokens:    ts,
		Limiter:   limiter,
		ConvertRule: httpmiddleware.Rule{
			Prefix: "convert",
			Limit:  cfg.ConvertRateLimit,
			Window: cfg.ConvertRateWindow,
		},
		ConvertTimeout:   cfg.ConvertTimeout,
		BatchMaxLinks:    cfg.BatchMaxLinks,
		BatchConcurrency: cfg.BatchConcurrency,
	}
	if dbPool != nil {
		deps.Stats = repo.NewEventsRepo(dbPool)
	}

	r := gee.New()
	r.Use(gee.Recovery(), middleware.ReqID(), middleware.AccessLog(), httpmiddleware.Metrics(), httpmiddleware.TraceName())
	httpapi.RegisterPublicRoutes(r, deps)
	httpapi.RegisterAPIRoutes(r.Group("/api/v1"), deps)

	publicHandler := http.Handler(r)
	if cfg.TracingEnabled {
		publicHandler = otelhttp.NewHandler(r, "http")
	}
	publicSrv := httpserver.New(cfg, publicHandler)
	adminSrv := httpserver.NewWithAddr(cfg.AdminAddr, cfg, newAdminMux(cfg, dbPool, redisClient))

	consumerCtx, cancelConsumer := context.WithCancel(context.Background())
	defer cancelConsumer()
	consumerDone := startConsumer(consumerCtx)

	errch := make(chan error, 2)
	go func() { errch <- httpserver.Run(stopCtx, publicSrv, cfg.ShutdownTimeout) }()
	go func() { errch <- httpserver.Run(stopCtx, adminSrv, cfg.ShutdownTimeout) }()

	err = <-errch
	stop()
	select {
	case err2 := <-errch:
		if err == nil {
			err = err2
		}
	case <-time.After(cfg.ShutdownTimeout + time.Second):
	}

	// 服务停了再关 collector
	collector.Close()
	cancelConsumer()
	select {
	case <-consumerDone:
	case <-time.After(cfg.ShutdownTimeout):
		slog.Warn("stats consumer did not finish in time")
	}
	return err
}

func openDB(cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	pool, err := db.New(ctx, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	slog.Info("postgres connected")

	if cfg.MigrateOnStart {
		mctx, mcancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer mcancel()
		res, err := migrate.Up(mctx, pool, migrate.Options{Dir: cfg.MigrationsDir})
		if err != nil {
			pool.Close()
			return nil, err
		}
		slog.Info("migrations done", "dir", res.Dir, "applied", len(res.AppliedFiles), "skipped", len(res.SkippedFiles))
	}
	return pool, nil
}

// newFetcher FETCH_ENABLED=false 时返回 nil，转换只走离线步骤
func newFetcher(cfg config.Config) linkconv.Fetcher {
	if !cfg.FetchEnabled {
		slog.Warn("outbound fetch disabled by config", "FETCH_ENABLED", false)
		return nil
	}
	return fetch.New(fetch.Options{
		Timeout:      cfg.FetchTimeout,
		UserAgent:    cfg.FetchUserAgent,
		MaxBody:      cfg.FetchMaxBody,
		MaxRedirects: cfg.FetchMaxRedirects,
	})
}

func newLinkConverter(cfg config.Config, conv *linkconv.Converter, client *redis.Client) (linkconv.LinkConverter, func(), error) {
	if !cfg.ConvertCacheEnabled {
		return conv, func() {}, nil
	}
	local, err := lccache.NewLocalCache(100_000, 1<<26, 0, 0) // 10万条，64MB
	if err != nil {
		return nil, nil, err
	}
	// 预期 100 万个不同输入，1% 误判
	door := lccache.NewDoorkeeper(1_000_000, 0.01)
	rc := lccache.NewResultCache(client, local, door, cfg.ConvertCacheTTL, cfg.ConvertNegativeTTL)
	resolver := lccache.NewCachedResolver(conv, rc)
	return resolver, resolver.Close, nil
}

// newStats 返回 collector 和启动 consumer 的函数，启动后返回的 channel 在 consumer 退出时关闭。
// channel consumer 在 collector 关闭后读完剩余事件才退出；kafka consumer 跟随 ctx 退出，未读的消息留在 topic 里。
func newStats(cfg config.Config, dbPool *pgxpool.Pool) (stats.Collector, func(context.Context) <-chan struct{}) {
	if dbPool == nil {
		return stats.Discard{}, func(context.Context) <-chan struct{} {
			done := make(chan struct{})
			close(done)
			return done
		}
	}
	sink := repo.NewEventsRepo(dbPool)

	if cfg.KafkaEnabled {
		slog.Info("link events via kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
		collector := stats.NewKafkaCollector(cfg.KafkaBrokers, cfg.KafkaTopic)
		consumer := stats.NewKafkaConsumer(cfg.KafkaBrokers, cfg.KafkaTopic, sink)
		return collector, func(ctx context.Context) <-chan struct{} {
			done := make(chan struct{})
			go func() {
				defer close(done)
				defer consumer.Close()
				consumer.Run(ctx)
			}()
			return done
		}
	}

	slog.Info("link events via in-process channel")
	collector := stats.NewChannelCollector(10_000)
	consumer := stats.NewConsumer(sink, collector)
	return collector, func(context.Context) <-chan struct{} {
		done := make(chan struct{})
		go func() {
			defer close(done)
			consumer.Run(context.Background())
		}()
		return done
	}
}
