package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	apphttp "realty_portal_backend/internal/http"
	"realty_portal_backend/internal/http/router"
	"realty_portal_backend/internal/intake"
	"realty_portal_backend/internal/notification"
	"realty_portal_backend/internal/roster"
	routinghandler "realty_portal_backend/internal/routing/handler"
	"realty_portal_backend/internal/routing/ranking"
	"realty_portal_backend/internal/routing/repository"
	"realty_portal_backend/internal/routing/service"
	"realty_portal_backend/internal/scheduler"
	"realty_portal_backend/platform/config"
	"realty_portal_backend/platform/db"
	"realty_portal_backend/platform/events"
	"realty_portal_backend/platform/logger"
	"realty_portal_backend/platform/validator"

	"github.com/gin-gonic/gin"
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

	if err := db.RunMigrations(ctx, cfg, "migrations"); err != nil {
		log.Error("migrations failed", "error", err)
		os.Exit(1)
	}

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

	v := validator.New()
	intakeService := intake.NewService(engine, v, log)

	health := db.NewPoolAdapter(pool)
	ginEngine, rc := router.New(router.Options{
		Config: cfg,
		Logger: log,
		Health: func(c *gin.Context) {
			if err := health.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
				return
			}
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		},
	})

	modules := []apphttp.Module{
		routinghandler.NewModule(engine),
		intake.NewModule(intakeService, log),
		roster.NewModule(engine),
	}
	for _, m := range modules {
		m.RegisterRoutes(rc)
	}

	server := &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           ginEngine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("api listening", "addr", cfg.GetHTTPAddr())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown failed", "error", err)
	}
}
