package handler

import (
	"context"

	apphttp "realty_portal_backend/internal/http"
	"realty_portal_backend/internal/routing/domain"
	"realty_portal_backend/internal/routing/service"

	"github.com/google/uuid"
)

// Engine is the routing surface the HTTP layer depends on.
type Engine interface {
	Accept(ctx context.Context, leadID, realtorID uuid.UUID) (domain.Lead, error)
	Reject(ctx context.Context, leadID, realtorID uuid.UUID) (domain.Lead, error)
	CompleteVisit(ctx context.Context, leadID, realtorID uuid.UUID) error
	Candidate(ctx context.Context, leadID, realtorID uuid.UUID) (domain.Candidature, error)
	BoardLeads(ctx context.Context) ([]service.BoardLead, error)
	QueuePosition(ctx context.Context, realtorID uuid.UUID) (domain.QueueEntry, error)
	ScoreHistory(ctx context.Context, realtorID uuid.UUID) ([]domain.ScoreEvent, error)
	Standings(ctx context.Context) ([]domain.QueueEntry, error)
	Stats(ctx context.Context) (service.QueueStats, error)
	DeadLetters(ctx context.Context) ([]domain.Lead, error)
	ForceRelease(ctx context.Context, leadID uuid.UUID) (domain.Lead, error)
	MoveUp(ctx context.Context, realtorID uuid.UUID) ([]domain.QueueEntry, error)
	MoveDown(ctx context.Context, realtorID uuid.UUID) ([]domain.QueueEntry, error)
	PinPosition(ctx context.Context, realtorID uuid.UUID, position int) ([]domain.QueueEntry, error)
	Unpin(ctx context.Context, realtorID uuid.UUID) ([]domain.QueueEntry, error)
	SetRealtorStatus(ctx context.Context, realtorID uuid.UUID, status domain.EntryStatus) (domain.QueueEntry, error)
	AdjustScore(ctx context.Context, realtorID uuid.UUID, points int, reason string) (domain.QueueEntry, error)
	GrantBonusLeads(ctx context.Context, realtorID uuid.UUID, bonusLeads int) (domain.QueueEntry, error)
	GrantRatingBonus(ctx context.Context, realtorID uuid.UUID, description string) error
}

// Module wires the routing endpoints into the router.
type Module struct {
	handler *Handler
}

func NewModule(engine Engine) *Module {
	return &Module{handler: New(engine)}
}

func (m *Module) RegisterRoutes(rc apphttp.RouterContext) {
	leads := rc.Protected.Group("/leads")
	leads.POST("/:id/accept", m.handler.AcceptLead)
	leads.POST("/:id/reject", m.handler.RejectLead)
	leads.POST("/:id/visit", m.handler.CompleteVisit)

	board := rc.Protected.Group("/board")
	board.GET("/leads", m.handler.ListBoard)
	board.POST("/leads/:id/candidatures", m.handler.SubmitCandidature)

	queue := rc.Protected.Group("/queue")
	queue.GET("", m.handler.Standings)
	queue.GET("/stats", m.handler.QueueStats)
	queue.GET("/me", m.handler.MyQueuePosition)
	queue.GET("/me/scores", m.handler.MyScoreHistory)

	rc.Admin.GET("/leads/dead-letters", m.handler.ListDeadLetters)
	rc.Admin.POST("/leads/:id/release", m.handler.ForceRelease)
	rc.Admin.POST("/queue/:realtorId/move-up", m.handler.MoveUp)
	rc.Admin.POST("/queue/:realtorId/move-down", m.handler.MoveDown)
	rc.Admin.PUT("/queue/:realtorId/pin", m.handler.Pin)
	rc.Admin.DELETE("/queue/:realtorId/pin", m.handler.Unpin)
	rc.Admin.PUT("/queue/:realtorId/status", m.handler.SetEntryStatus)
	rc.Admin.POST("/queue/:realtorId/score", m.handler.AdjustScore)
	rc.Admin.PUT("/queue/:realtorId/bonus-leads", m.handler.GrantBonusLeads)
	rc.Admin.POST("/queue/:realtorId/rating-bonus", m.handler.GrantRatingBonus)
}
