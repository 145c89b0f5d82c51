// Package scheduler runs the periodic retention sweep (expired content,
// old indexing jobs) and the zombie change-event sweep on a cron
// schedule, using robfig/cron/v3 the way the rest of the pack reaches for
// it for timer-driven background work instead of a hand-rolled ticker
// loop.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"indexbridge/internal/cache"
)

// Store is the subset of *store.Store the scheduler depends on.
type Store interface {
	DeleteExpiredContent(ctx context.Context, cutoff time.Time) ([]string, error)
	DeleteIndexingJobsOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// ZombieSweeper marks stuck change events failed.
type ZombieSweeper interface {
	SweepZombieChangeEvents(ctx context.Context, olderThan time.Time) (int, error)
}

type Scheduler struct {
	Store               Store
	Zombies              ZombieSweeper
	Cache                *cache.Cache
	ContentTTLDays       int
	ZombieTimeoutMinutes int
	Log                  *slog.Logger

	cron *cron.Cron
}

// Start schedules the sweeps on cronExpr and begins running them in the
// background. Call Stop to drain in-flight runs on shutdown.
func (s *Scheduler) Start(cronExpr string) error {
	s.cron = cron.New()
	_, err := s.cron.AddFunc(cronExpr, s.runSweeps)
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		ctx := s.cron.Stop()
		<-ctx.Done()
	}
}

func (s *Scheduler) runSweeps() {
	ctx := context.Background()
	log := s.log()

	if s.ContentTTLDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -s.ContentTTLDays)
		urls, err := s.Store.DeleteExpiredContent(ctx, cutoff)
		if err != nil {
			log.Error("scheduler: retention sweep failed", "error", err)
		} else {
			for _, u := range urls {
				if s.Cache != nil {
					_ = s.Cache.Invalidate(ctx, u)
				}
			}
			if len(urls) > 0 {
				log.Info("scheduler: retention sweep removed expired content", "count", len(urls))
			}
		}
	}

	jobCutoff := time.Now().AddDate(0, 0, -jobRetentionDays)
	if n, err := s.Store.DeleteIndexingJobsOlderThan(ctx, jobCutoff); err != nil {
		log.Error("scheduler: indexing job retention sweep failed", "error", err)
	} else if n > 0 {
		log.Info("scheduler: removed finished indexing jobs", "count", n)
	}

	if s.Zombies != nil {
		threshold := time.Duration(s.zombieTimeout()) * time.Minute
		n, err := s.Zombies.SweepZombieChangeEvents(ctx, time.Now().Add(-threshold))
		if err != nil {
			log.Error("scheduler: zombie sweep failed", "error", err)
		} else if n > 0 {
			log.Info("scheduler: zombie sweep failed stuck change events", "count", n)
		}
	}
}

func (s *Scheduler) zombieTimeout() int {
	if s.ZombieTimeoutMinutes <= 0 {
		return 15
	}
	return s.ZombieTimeoutMinutes
}

// jobRetentionDays bounds how long finished indexing_jobs rows are kept;
// fixed rather than configurable since nothing in the configuration
// surface names it separately from content retention.
const jobRetentionDays = 7

func (s *Scheduler) log() *slog.Logger {
	if s.Log == nil {
		return slog.Default()
	}
	return s.Log
}
