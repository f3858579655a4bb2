package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"hostel-market/bot"
	"hostel-market/config"
	"hostel-market/db"
	"hostel-market/export"
	"hostel-market/flow"
	"hostel-market/metrics"
	"hostel-market/notify"
	"hostel-market/services"
	"hostel-market/session"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

func main() {
	log.SetFormatter(&log.JSONFormatter{})

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("config")
	}
	if lvl, err := log.ParseLevel(cfg.Server.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Check for migrate subcommand
	if len(os.Args) > 1 && os.Args[1] == "migrate" {
		runMigrate(ctx, cfg)
		return
	}

	if cfg.Telegram.Token == "" {
		log.Fatal("TOKEN not set")
	}
	if err := run(ctx, cfg); err != nil {
		log.WithError(err).Fatal("bot exited")
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	checks := map[string]metrics.HealthFunc{}

	var (
		store   services.Store
		journal notify.Journal
	)
	switch cfg.Shop.Store {
	case "postgres":
		pool, err := db.Open(ctx, cfg.DB)
		if err != nil {
			return err
		}
		defer pool.Close()
		if cfg.Server.AutoMigrate {
			if err := applyMigrations(ctx, pool); err != nil {
				return err
			}
		}
		store = services.NewPgStore(pool)
		journal = services.NewPgJournal(pool)
		checks["postgres"] = pool.Ping
	default:
		store = services.NewMemoryStore()
		log.Warn("Using the in-memory store; data is lost on restart")
	}

	var sessions session.Store
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return err
		}
		sessions = session.NewRedisStore(rdb, cfg.Dialog.TTL)
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	} else {
		sessions = session.NewMemoryStore(cfg.Dialog.TTL)
	}

	b, err := bot.New(cfg.Telegram.Token, nil)
	if err != nil {
		return err
	}

	var notifyOpts []notify.Option
	if journal != nil {
		notifyOpts = append(notifyOpts, notify.WithJournal(journal))
	}
	notifier := notify.New(b, notifyOpts...)
	admins := services.NewAdminSet(cfg.Telegram.AdminIDs, cfg.Telegram.AdminLoginHash)
	if len(cfg.Telegram.AdminIDs) == 0 {
		log.Warn("ADMIN_IDS is empty; admins can only join with /login")
	}

	kernel := flow.New(store, sessions, notifier, admins, flow.Options{
		Variant:        flow.Variant(cfg.Shop.Variant),
		MaxAttempts:    cfg.Dialog.MaxAttempts,
		PageSize:       cfg.Shop.PageSize,
		SupportContact: cfg.Shop.SupportContact,
		ExchangeRate:   cfg.Shop.ExchangeRate,
	}, flow.WithExporter(export.NewSalesLog(cfg.Shop.SalesLogFile)))
	b.SetHandler(kernel)

	if cfg.Server.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Server.MetricsAddr, metrics.NewRouter(checks)); err != nil {
				log.WithError(err).Error("metrics server")
			}
		}()
	}

	log.WithFields(log.Fields{
		"variant": cfg.Shop.Variant,
		"store":   cfg.Shop.Store,
		"redis":   cfg.Redis.Addr != "",
	}).Info("Starting shop bot")
	return b.Run(ctx)
}

func runMigrate(ctx context.Context, cfg *config.Config) {
	pool, err := db.Open(ctx, cfg.DB)
	if err != nil {
		log.WithError(err).Fatal("db")
	}
	defer pool.Close()
	if err := applyMigrations(ctx, pool); err != nil {
		log.WithError(err).Fatal("migrate")
	}
	log.Info("Migrations applied")
}
