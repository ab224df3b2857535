// Package roster manages realtor registration in the routing pool.
package roster

import (
	"context"
	"net/http"

	apphttp "realty_portal_backend/internal/http"
	"realty_portal_backend/internal/routing/domain"
	"realty_portal_backend/internal/routing/transport"
	"realty_portal_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Engine is the routing surface roster depends on.
type Engine interface {
	RegisterRealtor(ctx context.Context, realtorID uuid.UUID, active bool, bonusLeads int) (domain.QueueEntry, error)
	QueuePosition(ctx context.Context, realtorID uuid.UUID) (domain.QueueEntry, error)
}

type UpsertRealtorRequest struct {
	Active     bool `json:"active"`
	BonusLeads int  `json:"bonusLeads" binding:"min=0"`
}

type Handler struct {
	engine Engine
}

func NewHandler(engine Engine) *Handler {
	return &Handler{engine: engine}
}

// UpsertRealtor registers a realtor or updates their participation flags.
// Counters and score survive re-registration.
// PUT /admin/roster/realtors/:realtorId
func (h *Handler) UpsertRealtor(c *gin.Context) {
	realtorID, err := uuid.Parse(c.Param("realtorId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid realtor id", nil)
		return
	}
	var req UpsertRealtorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	entry, err := h.engine.RegisterRealtor(c.Request.Context(), realtorID, req.Active, req.BonusLeads)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToQueueEntryResponse(entry))
}

// GetRealtor returns a realtor's current standing.
// GET /admin/roster/realtors/:realtorId
func (h *Handler) GetRealtor(c *gin.Context) {
	realtorID, err := uuid.Parse(c.Param("realtorId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid realtor id", nil)
		return
	}

	entry, err := h.engine.QueuePosition(c.Request.Context(), realtorID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToQueueEntryResponse(entry))
}

// Module wires roster endpoints into the admin group.
type Module struct {
	handler *Handler
}

func NewModule(engine Engine) *Module {
	return &Module{handler: NewHandler(engine)}
}

func (m *Module) RegisterRoutes(rc apphttp.RouterContext) {
	group := rc.Admin.Group("/roster/realtors")
	group.PUT("/:realtorId", m.handler.UpsertRealtor)
	group.GET("/:realtorId", m.handler.GetRealtor)
}
