package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/LeventeLantos/signal-relay/internal/api"
	"github.com/LeventeLantos/signal-relay/internal/cache"
	"github.com/LeventeLantos/signal-relay/internal/commands"
	"github.com/LeventeLantos/signal-relay/internal/config"
	"github.com/LeventeLantos/signal-relay/internal/dispatcher"
	"github.com/LeventeLantos/signal-relay/internal/messenger"
	"github.com/LeventeLantos/signal-relay/internal/metrics"
	"github.com/LeventeLantos/signal-relay/internal/monitor"
	"github.com/LeventeLantos/signal-relay/internal/notifier"
	"github.com/LeventeLantos/signal-relay/internal/repo"
	"github.com/LeventeLantos/signal-relay/internal/resend"
	"github.com/LeventeLantos/signal-relay/internal/safety"
	"github.com/LeventeLantos/signal-relay/internal/signald"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadAll()
	if err != nil {
		log.Fatal(err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	sentryEnabled := false
	if cfg.Sentry.DSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Env,
		})
		if err != nil {
			logger.Error("sentry init failed", "err", err)
		} else {
			sentryEnabled = true
			defer sentry.Flush(2 * time.Second)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("pgx", cfg.Database.PostgresURL)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Fatal(err)
	}
	repos := repo.NewPostgresRepo(db)

	var replies cache.ReplyIDs
	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Fatal(err)
		}
		replies = cache.NewRedisReplyIDs(rdb, cfg.Redis.TTL)
	} else {
		replies = cache.NewMemoryReplyIDs()
		logger.Warn("redis not configured, hotline reply ids reset on restart")
	}

	pool := signald.NewPool(signald.PoolConfig{
		SocketPath:            cfg.Signald.SocketPath,
		Size:                  cfg.Signald.PoolSize,
		ConnectionInterval:    cfg.Signald.ConnectionInterval,
		MaxConnectionAttempts: cfg.Signald.MaxConnectionAttempts,
		AcquireTimeout:        cfg.Signald.AcquireTimeout,
	}, logger)
	if err := pool.Open(ctx); err != nil {
		if errors.Is(err, signald.ErrDaemonUnavailable) {
			log.Fatalf("signald socket never appeared at %s", cfg.Signald.SocketPath)
		}
		log.Fatal(err)
	}
	defer pool.Close()

	correlator := signald.NewCorrelator()
	go correlator.Run(pool.Subscribe())

	client := signald.NewClient(pool, correlator, signald.ClientConfig{
		VerificationTimeout:    cfg.Signald.VerificationTimeout,
		TrustRequestTimeout:    cfg.Signald.TrustRequestTimeout,
		IdentityRequestTimeout: cfg.Signald.IdentityRequestTimeout,
		VersionTimeout:         cfg.Signald.VersionTimeout,
	}, logger)

	channels, err := repos.FindAll(ctx)
	if err != nil {
		log.Fatal(err)
	}
	for _, ch := range channels {
		if err := client.Subscribe(ctx, ch.PhoneNumber); err != nil {
			log.Fatalf("subscribe %s: %v", ch.PhoneNumber, err)
		}
	}
	logger.Info("subscribed channels", "count", len(channels))

	var webhook *notifier.WebhookClient
	if cfg.Relay.MaintainerWebhook != "" {
		webhook = notifier.NewWebhookClient(cfg.Relay.MaintainerWebhook)
	}
	notif := notifier.New(client, webhook, notifier.Config{
		SupportChannel:  cfg.Relay.SupportChannel,
		SysadminNumbers: cfg.Relay.SysadminNumbers,
		SentryEnabled:   sentryEnabled,
	}, logger)

	pool.OnDown(func(err error) {
		logger.Error("signald connection lost for good", "err", err)
		notif.NotifyMaintainers(context.Background(), "signald connection lost and could not be re-established")
	})

	counters := metrics.NewCounters()
	queue := resend.NewQueue(client, cfg.Relay.MinResendInterval, cfg.Relay.MaxResendInterval, logger)
	safetySvc := safety.NewService(client, repos, repos, repos, logger)

	msgr := messenger.New(client, repos, replies, counters, messenger.Config{
		BroadcastBatchSize:     cfg.Relay.BroadcastBatchSize,
		BroadcastBatchInterval: cfg.Relay.BroadcastBatchInterval,
		WelcomeDelay:           cfg.Relay.WelcomeDelay,
		SysadminNumbers:        cfg.Relay.SysadminNumbers,
	}, logger)

	disp := dispatcher.New(
		repos, repos,
		commands.RelayOnly{},
		msgr, safetySvc, queue, client, notif, counters,
		dispatcher.Config{DefaultLanguage: cfg.Relay.DefaultLanguage},
		logger,
	)
	go disp.Run(ctx, pool.Subscribe())

	mon, err := monitor.New(cfg.Relay.MonitorInterval, cfg.Relay.MonitorThreshold, client, notif, logger)
	if err != nil {
		log.Fatal(err)
	}
	mon.Start()
	defer mon.Stop()

	handler := api.NewHandler(mon, counters, queue)
	srv := &http.Server{
		Addr:    cfg.Server.Address,
		Handler: loggingMiddleware(api.Router(handler)),
	}

	go func() {
		logger.Info("http server listening", "addr", cfg.Server.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "err", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}
