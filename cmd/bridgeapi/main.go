package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"indexbridge/internal/config"
	"indexbridge/internal/httpapi"
	"indexbridge/internal/lifecycle"
	"indexbridge/internal/migrate"
	"indexbridge/internal/pipeline"
	"indexbridge/internal/scheduler"
	"indexbridge/internal/search"
	"indexbridge/internal/servicepool"
	"indexbridge/internal/store"
	"indexbridge/internal/watch"
	"indexbridge/internal/webhook"
	"indexbridge/internal/worker"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to optional YAML config base")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{}))

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	if err := migrate.Run(cfg.Database.URL, cfg.Database.MigrationsDir); err != nil {
		log.Fatalf("migrations failed: %v", err)
	}

	db, err := sql.Open("pgx", cfg.Database.URL)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(cfg.Database.PoolSize + cfg.Database.MaxOverflow)
	db.SetMaxIdleConns(cfg.Database.PoolSize)
	db.SetConnMaxLifetime(30 * time.Minute)

	st := store.New(db)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	pool, err := servicepool.New(ctx, cfg, st)
	if err != nil {
		log.Fatalf("build service pool: %v", err)
	}
	defer pool.Close()

	pipe := &pipeline.Pipeline{
		Store:               st,
		Embed:               pool.Embed,
		Vector:              pool.Vector,
		BM25:                pool.BM25,
		StripTrackingParams: cfg.Canonicalize.StripTrackingParams,
	}

	lifecycleTracker := &lifecycle.Tracker{Store: st}

	webhookRouter := &webhook.Router{
		Secret:    cfg.Secrets.WebhookSecret,
		Lifecycle: lifecycleTracker,
		Indexer:   st,
	}
	if cfg.AutoWatch.Enabled {
		webhookRouter.Watch = &watch.Mirror{
			Client:         pool.Change,
			Enabled:        true,
			WebhookURL:     cfg.External.ChangeDetectionURL,
			CheckIntervalS: cfg.AutoWatch.CheckIntervalSeconds,
			Log:            logger,
		}
	}

	orchestrator := &search.Orchestrator{
		Vector:           pool.Vector,
		Embed:            pool.Embed,
		BM25:             pool.BM25,
		RRFK:             cfg.Search.RRFK,
		OversampleFactor: cfg.Search.OversampleFactor,
	}

	sched := &scheduler.Scheduler{
		Store:                st,
		Zombies:              st,
		Cache:                pool.Cache,
		ContentTTLDays:       cfg.Retention.ContentTTLDays,
		ZombieTimeoutMinutes: cfg.Retention.ZombieTimeoutMinutes,
		Log:                  logger,
	}
	if err := sched.Start(cfg.Retention.SweepCron); err != nil {
		log.Fatalf("start scheduler: %v", err)
	}
	defer sched.Stop()

	batchWorker := &worker.Worker{
		Store:        st,
		Pipeline:     pipe,
		BatchSize:    cfg.Worker.BatchSize,
		PollInterval: time.Duration(cfg.Worker.PollIntervalMs) * time.Millisecond,
		JobTimeout:   time.Duration(cfg.Worker.JobTimeoutMs) * time.Millisecond,
		Log:          logger,
	}
	go batchWorker.Run(ctx)

	rescrapeJob := &watch.RescrapeJob{Store: st, Scraper: pool.Scraper, Pipeline: pipe}
	go runRescrapePoller(ctx, st, rescrapeJob, logger)

	srv := httpapi.NewServer(cfg, st, webhookRouter, orchestrator, lifecycleTracker, pool.Cache, pool.Redis, logger)

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
	}()

	if err := srv.Listen(); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

// runRescrapePoller periodically lists pending change events and drives
// each through the rescrape job. The Phase-1 conditional claim in
// RescrapeJob.Run makes this safe to run from multiple processes without
// any separate queue broker.
func runRescrapePoller(ctx context.Context, st *store.Store, job *watch.RescrapeJob, log *slog.Logger) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ids, err := st.ListPendingChangeEvents(ctx, 20)
			if err != nil {
				log.Error("list pending change events", "error", err)
				continue
			}
			for _, id := range ids {
				if _, err := job.Run(ctx, id); err != nil {
					log.Error("rescrape job failed", "change_event_id", id, "error", err)
				}
			}
		}
	}
}
