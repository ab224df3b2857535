package scheduler

import (
	"context"

	"realty_portal_backend/internal/routing/domain"
	"realty_portal_backend/platform/config"
	"realty_portal_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Engine is the routing surface the worker depends on.
type Engine interface {
	ExpireDue(ctx context.Context, leadID uuid.UUID) error
	SelectFromBoard(ctx context.Context, leadID uuid.UUID) (domain.Lead, error)
	Redispatch(ctx context.Context, leadID uuid.UUID) error
	SweepDue(ctx context.Context) (int, error)
}

// Worker consumes routing tasks from the queue.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *logger.Logger
}

func NewWorker(connOpt asynq.RedisConnOpt, cfg config.SchedulerConfig, engine Engine, log *logger.Logger) *Worker {
	server := asynq.NewServer(connOpt, asynq.Config{
		Concurrency: cfg.GetAsynqConcurrency(),
		Queues:      map[string]int{cfg.GetAsynqQueueName(): 1},
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.Error("task failed", "type", task.Type(), "error", err)
		}),
	})

	w := &Worker{server: server, mux: asynq.NewServeMux(), log: log}
	w.mux.HandleFunc(TypeReservationExpire, w.handleExpire(engine))
	w.mux.HandleFunc(TypeBoardSelect, w.handleBoardSelect(engine))
	w.mux.HandleFunc(TypeLeadRedispatch, w.handleRedispatch(engine))
	return w
}

// Run starts the worker and blocks until Shutdown.
func (w *Worker) Run() error {
	return w.server.Run(w.mux)
}

func (w *Worker) Shutdown() {
	w.server.Shutdown()
}

func (w *Worker) handleExpire(engine Engine) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		leadID, err := parseLeadPayload(task)
		if err != nil {
			// A malformed payload will never succeed; drop it.
			w.log.Error("dropping malformed task", "type", task.Type(), "error", err)
			return nil
		}
		return engine.ExpireDue(ctx, leadID)
	}
}

func (w *Worker) handleRedispatch(engine Engine) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		leadID, err := parseLeadPayload(task)
		if err != nil {
			w.log.Error("dropping malformed task", "type", task.Type(), "error", err)
			return nil
		}
		return engine.Redispatch(ctx, leadID)
	}
}

func (w *Worker) handleBoardSelect(engine Engine) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		leadID, err := parseLeadPayload(task)
		if err != nil {
			w.log.Error("dropping malformed task", "type", task.Type(), "error", err)
			return nil
		}
		_, err = engine.SelectFromBoard(ctx, leadID)
		return err
	}
}
