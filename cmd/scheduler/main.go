// The scheduler binary runs the background half of the routing engine: the
// asynq worker for reservation expiry and board selection, plus the
// database sweep that backstops lost tasks.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"realty_portal_backend/internal/notification"
	"realty_portal_backend/internal/routing/ranking"
	"realty_portal_backend/internal/routing/repository"
	"realty_portal_backend/internal/routing/service"
	"realty_portal_backend/internal/scheduler"
	"realty_portal_backend/platform/config"
	"realty_portal_backend/platform/db"
	"realty_portal_backend/platform/events"
	"realty_portal_backend/platform/logger"

	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		log.Error("database connection failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	connOpt, err := scheduler.RedisConnOpt(cfg)
	if err != nil {
		log.Error("redis configuration invalid", "error", err)
		os.Exit(1)
	}
	tasks := scheduler.NewClient(connOpt, cfg.GetAsynqQueueName())
	defer tasks.Close()

	bus := events.NewInMemoryBus(log)

	repo := repository.New(pool)
	policy := ranking.New(cfg.GetPinStickinessPoints())
	engine := service.NewEngine(repo, policy, tasks, bus, cfg, log)

	if cfg.GetEmailEnabled() {
		notifier := notification.NewNotifier(notification.NewSMTPSender(cfg), nil, cfg.GetOpsEmailAddress(), log)
		notifier.Subscribe(bus)
	}

	worker := scheduler.NewWorker(connOpt, cfg, engine, log)
	sweeper := scheduler.NewSweeper(engine, cfg.GetSweepInterval(), log)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return worker.Run()
	})
	group.Go(func() error {
		return sweeper.Run(groupCtx)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		worker.Shutdown()
		return nil
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("scheduler exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("scheduler stopped")
}
