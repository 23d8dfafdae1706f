// Command switchd runs the subscription switch worker. It completes or
// discards switch orders when their payment status changes and mails switch
// summaries to customers. Completed switches are optionally posted to a
// webhook. Metrics and health probes are served on OPS_ADDR.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"github.com/dmitrymomot/switchkit/pkg/audit"
	"github.com/dmitrymomot/switchkit/pkg/broadcast"
	"github.com/dmitrymomot/switchkit/pkg/cart"
	"github.com/dmitrymomot/switchkit/pkg/config"
	"github.com/dmitrymomot/switchkit/pkg/email"
	"github.com/dmitrymomot/switchkit/pkg/logger"
	"github.com/dmitrymomot/switchkit/pkg/opsserver"
	"github.com/dmitrymomot/switchkit/pkg/pg"
	"github.com/dmitrymomot/switchkit/pkg/pgstore"
	"github.com/dmitrymomot/switchkit/pkg/queue"
	"github.com/dmitrymomot/switchkit/pkg/redis"
	"github.com/dmitrymomot/switchkit/pkg/subscription"
	"github.com/dmitrymomot/switchkit/pkg/switcher"
	"github.com/dmitrymomot/switchkit/pkg/webhook"
)

type appConfig struct {
	Logger   logger.Config
	Postgres pg.Config
	Redis    redis.Config
	Queue    queue.Config
	Email    email.Config
	Ops      opsserver.Config
	Webhook  webhook.Config
	Switch   switcher.Settings

	// CatalogFile is a YAML product list imported into Postgres on start.
	CatalogFile      string        `env:"CATALOG_FILE"`
	CatalogCacheSize int           `env:"CATALOG_CACHE_SIZE" envDefault:"1024" validate:"min=1"`
	CatalogCacheTTL  time.Duration `env:"CATALOG_CACHE_TTL" envDefault:"5m"`
	CartTTL          time.Duration `env:"CART_TTL" envDefault:"168h"`
	NotifyLanguage   string        `env:"NOTIFY_LANGUAGE" envDefault:"en"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	var cfg appConfig
	if err := config.Load(&cfg); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(append(logger.FromConfig(cfg.Logger), logger.WithContextExtractors(logger.OrderExtractor()))...)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pg.Connect(ctx, cfg.Postgres)
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := pg.Migrate(ctx, pool, pgstore.Migrations(), cfg.Postgres, log); err != nil {
		return err
	}

	rdb, err := redis.Connect(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	defer rdb.Close()

	catalog, err := loadCatalog(ctx, pool, cfg)
	if err != nil {
		return err
	}

	sender, err := email.NewSender(cfg.Email)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	tasks := pgstore.NewQueueStorage(pool)
	enqueuer, err := queue.NewEnqueuer(tasks)
	if err != nil {
		return err
	}

	events := broadcast.NewMemoryBroadcaster[switcher.SwitchCompletedEvent](64)
	defer events.Close()

	repo := pgstore.New(pool)
	listeners := []switcher.Listener{switcher.PaymentMethodListener(repo)}
	if cfg.Webhook.Enabled() {
		listeners = append(listeners, switcher.WebhookListener(enqueuer, cfg.Webhook.URL))
	}
	svc, err := switcher.New(repo, catalog,
		switcher.WithSettings(cfg.Switch),
		switcher.WithCartStore(cart.NewRedisStore(redis.NewStorage(rdb, cfg.Redis.KeyPrefix), cfg.CartTTL)),
		switcher.WithNotes(audit.NewLogger(pgstore.NewAuditStorage(pool))),
		switcher.WithEnqueuer(enqueuer),
		switcher.WithBroadcaster(events),
		switcher.WithListeners(listeners...),
		switcher.WithMetrics(switcher.NewMetrics(registry)),
		switcher.WithLogger(log),
	)
	if err != nil {
		return err
	}

	worker, err := queue.NewWorkerFromConfig(tasks, cfg.Queue, queue.WithWorkerLogger(log))
	if err != nil {
		return err
	}
	worker.RegisterHandlers(svc.TaskHandlers()...)
	if cfg.Webhook.Enabled() {
		worker.RegisterHandlers(switcher.WebhookHandler(webhook.NewSenderFromConfig(cfg.Webhook), log))
	}

	ops := opsserver.NewFromConfig(cfg.Ops,
		opsserver.WithLogger(log),
		opsserver.WithGatherer(registry),
		opsserver.WithCheck("postgres", pg.Healthcheck(pool)),
		opsserver.WithCheck("redis", redis.Healthcheck(rdb)),
	)

	notify := switcher.NotifyListener(sender, switcher.WithNotifyLanguage(language.Make(cfg.NotifyLanguage)))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(worker.Run(ctx))
	g.Go(func() error { return ops.Run(ctx) })
	g.Go(func() error {
		broadcast.Listen(ctx, events.Subscribe(ctx), notify, func(err error) {
			log.ErrorContext(ctx, "failed to send switch summary", logger.Error(err))
		})
		return nil
	})

	log.InfoContext(ctx, "switchd started")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("switchd stopped")
	return nil
}

// loadCatalog imports CatalogFile when set and returns the cached Postgres catalog.
func loadCatalog(ctx context.Context, pool *pgxpool.Pool, cfg appConfig) (subscription.Catalog, error) {
	products := pgstore.NewCatalog(pool)
	if cfg.CatalogFile != "" {
		f, err := os.Open(cfg.CatalogFile)
		if err != nil {
			return nil, fmt.Errorf("open catalog: %w", err)
		}
		defer f.Close()

		loaded, err := subscription.LoadCatalog(ctx, subscription.NewYAMLCatalogSource(f))
		if err != nil {
			return nil, err
		}
		all, err := loaded.Load(ctx)
		if err != nil {
			return nil, err
		}
		list := make([]subscription.Product, 0, len(all))
		for _, p := range all {
			list = append(list, p)
		}
		if err := products.Import(ctx, list...); err != nil {
			return nil, err
		}
	}
	return subscription.NewCachedCatalog(products, cfg.CatalogCacheSize, cfg.CatalogCacheTTL), nil
}
