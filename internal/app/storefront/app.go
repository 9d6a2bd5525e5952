// Package storefront собирает процесс магазина: хранилище, ядро, диспетчер событий,
// HTTP API, потребителя очереди событий и расписание сводки.
package storefront

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-playground/validator"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/streadway/amqp"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/storefront-bot/internal/config"
	"github.com/magabrotheeeer/storefront-bot/internal/lib/gameid"
	"github.com/magabrotheeeer/storefront-bot/internal/lib/sl"
	"github.com/magabrotheeeer/storefront-bot/internal/metrics"
	"github.com/magabrotheeeer/storefront-bot/internal/notifier"
	"github.com/magabrotheeeer/storefront-bot/internal/rabbitmq"
	"github.com/magabrotheeeer/storefront-bot/internal/services/activity"
	"github.com/magabrotheeeer/storefront-bot/internal/services/conversation"
	"github.com/magabrotheeeer/storefront-bot/internal/services/digest"
	"github.com/magabrotheeeer/storefront-bot/internal/services/dispatcher"
	"github.com/magabrotheeeer/storefront-bot/internal/services/order"
	"github.com/magabrotheeeer/storefront-bot/internal/services/principal"
	"github.com/magabrotheeeer/storefront-bot/internal/services/redemption"
	engine "github.com/magabrotheeeer/storefront-bot/internal/services/storefront"
	"github.com/magabrotheeeer/storefront-bot/internal/storage"
	"github.com/magabrotheeeer/storefront-bot/internal/storage/memory"
	"github.com/magabrotheeeer/storefront-bot/internal/storage/postgresql"
	"github.com/magabrotheeeer/storefront-bot/internal/storage/redisstore"
)

const shutdownTimeout = 15 * time.Second

type App struct {
	cfg        *config.Config
	server     *http.Server
	logger     *slog.Logger
	store      storage.Store
	conn       *amqp.Connection
	ch         *amqp.Channel
	dispatcher *dispatcher.Dispatcher
	digest     *digest.Service
	metrics    *metrics.Metrics
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "app.storefront.New"

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	store := OpenStore(ctx, cfg, logger)
	m.SetDurable(store.Durable())

	principals := principal.New(store, cfg.RootPrincipalID, logger)
	if err := principals.Seed(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a := &App{
		cfg:     cfg,
		logger:  logger,
		store:   store,
		metrics: m,
	}

	var sender notifier.Sender = notifier.NewLog(logger)
	if cfg.RabbitMQURL != "" {
		conn, err := rabbitmq.Connect(ctx, cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		ch, err := rabbitmq.SetupChannel(conn, cfg.Exchange, cfg.Prefetch, rabbitmq.Queues(cfg.RabbitMQ))
		if err != nil {
			_ = conn.Close()
			_ = store.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		a.conn, a.ch = conn, ch
		sender = notifier.NewAMQP(ch, cfg.Exchange, cfg.OutboundRoutingKey)
	} else {
		logger.Warn("rabbitmq url is empty, notifications are only logged")
	}
	notify := notifier.WithMetrics(sender, m, logger)

	validate := validator.New()
	if err := gameid.Register(validate); err != nil {
		a.close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	activityLog := activity.New(store, logger)
	ledger := order.New(store, principals, activityLog, logger)
	core := engine.New(engine.Deps{
		Store:         store,
		Principals:    principals,
		Conversations: conversation.New(),
		Redemptions:   redemption.New(store, principals, activityLog, logger),
		Orders:        ledger,
		Activity:      activityLog,
		Notifier:      notify,
		Catalog:       cfg.Catalog,
		Support:       cfg.SupportContact,
		Log:           logger,
	})

	a.dispatcher = dispatcher.New(core, notify, validate, m, cfg.EventsPerSecond, cfg.Burst, logger)
	a.digest = digest.NewService(ledger, activityLog, notify, cfg.RootPrincipalID, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, a.dispatcher, core, validate,
		rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.RequestBurst), reg)

	a.server = &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return a, nil
}

// OpenStore открывает выбранное хранилище. Если оно недоступно, магазин
// продолжает работу на памяти и пишет предупреждение: данные не переживут перезапуск.
func OpenStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) storage.Store {
	var (
		store storage.Store
		err   error
	)
	switch cfg.Backend {
	case config.BackendRedis:
		store, err = redisstore.InitServer(ctx, cfg.RedisConnection)
	case config.BackendPostgres:
		store, err = postgresql.New(ctx, cfg.PostgresDSN, cfg.StorageTimeout)
	default:
		return memory.New()
	}
	if err != nil {
		logger.Warn("storage backend unavailable, falling back to memory",
			slog.String("backend", cfg.Backend), sl.Err(err))
		return memory.New()
	}
	logger.Info("storage backend ready", slog.String("backend", store.Backend()))
	return store
}

func (a *App) Run(ctx context.Context) error {
	if a.ch != nil {
		workers := a.cfg.Prefetch
		if err := rabbitmq.ConsumerMessage(ctx, a.ch, a.cfg.EventsQueue, workers, a.logger, a.dispatcher.HandleMessage); err != nil {
			a.logger.Error("failed to start events consumer", sl.Err(err))
			a.close()
			return err
		}
		a.logger.Info("events consumer started", slog.String("queue", a.cfg.EventsQueue))
	}

	stopDigest := func() {}
	if !a.cfg.DigestDisabled {
		stop, err := a.digest.Start(ctx, a.cfg.DigestSchedule)
		if err != nil {
			a.close()
			return err
		}
		stopDigest = stop
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	var err error
	select {
	case err = <-errCh:
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err = a.server.Shutdown(timeoutCtx)
	}

	stopDigest()
	a.close()
	return err
}

func (a *App) close() {
	if a.ch != nil {
		if err := a.ch.Close(); err != nil {
			a.logger.Error("failed to close channel", sl.Err(err))
		}
	}
	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			a.logger.Error("failed to close connection", sl.Err(err))
		}
	}
	if err := a.store.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
}
