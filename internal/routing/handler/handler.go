// Package handler exposes the routing engine over HTTP.
package handler

import (
	"net/http"

	"realty_portal_backend/internal/routing/domain"
	"realty_portal_backend/internal/routing/transport"
	"realty_portal_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Handler struct {
	engine Engine
}

func New(engine Engine) *Handler {
	return &Handler{engine: engine}
}

// AcceptLead finalizes the caller's hold on a lead.
// POST /leads/:id/accept
func (h *Handler) AcceptLead(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}
	leadID, ok := parseLeadID(c)
	if !ok {
		return
	}

	lead, err := h.engine.Accept(c.Request.Context(), leadID, id.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToLeadResponse(lead))
}

// RejectLead returns the caller's held lead to the pool.
// POST /leads/:id/reject
func (h *Handler) RejectLead(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}
	leadID, ok := parseLeadID(c)
	if !ok {
		return
	}

	lead, err := h.engine.Reject(c.Request.Context(), leadID, id.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToLeadResponse(lead))
}

// CompleteVisit records a finished property visit for an accepted lead.
// POST /leads/:id/visit
func (h *Handler) CompleteVisit(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}
	leadID, ok := parseLeadID(c)
	if !ok {
		return
	}

	if httpkit.HandleError(c, h.engine.CompleteVisit(c.Request.Context(), leadID, id.UserID())) {
		return
	}
	c.Status(http.StatusNoContent)
}

// SubmitCandidature applies the caller for a board lead.
// POST /board/leads/:id/candidatures
func (h *Handler) SubmitCandidature(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}
	leadID, ok := parseLeadID(c)
	if !ok {
		return
	}

	cand, err := h.engine.Candidate(c.Request.Context(), leadID, id.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	c.JSON(http.StatusCreated, transport.ToCandidatureResponse(cand))
}

// ListBoard returns open board leads with candidature counts.
// GET /board/leads
func (h *Handler) ListBoard(c *gin.Context) {
	items, err := h.engine.BoardLeads(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToBoardLeadResponses(items))
}

// MyQueuePosition returns the caller's slot in the serving order.
// GET /queue/me
func (h *Handler) MyQueuePosition(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	entry, err := h.engine.QueuePosition(c.Request.Context(), id.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToQueueEntryResponse(entry))
}

// MyScoreHistory returns the caller's recent score ledger entries.
// GET /queue/me/scores
func (h *Handler) MyScoreHistory(c *gin.Context) {
	id := httpkit.MustGetIdentity(c)
	if id == nil {
		return
	}

	evs, err := h.engine.ScoreHistory(c.Request.Context(), id.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToScoreEventResponses(evs))
}

// Standings returns the full serving order.
// GET /queue
func (h *Handler) Standings(c *gin.Context) {
	ranked, err := h.engine.Standings(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToQueueEntryResponses(ranked))
}

// QueueStats returns the aggregate dashboard projection.
// GET /queue/stats
func (h *Handler) QueueStats(c *gin.Context) {
	stats, err := h.engine.Stats(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToQueueStatsResponse(stats))
}

// ListDeadLetters returns leads waiting on operator intervention.
// GET /admin/leads/dead-letters
func (h *Handler) ListDeadLetters(c *gin.Context) {
	leads, err := h.engine.DeadLetters(c.Request.Context())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToLeadResponses(leads))
}

// ForceRelease returns a held or parked lead to the pool.
// POST /admin/leads/:id/release
func (h *Handler) ForceRelease(c *gin.Context) {
	leadID, ok := parseLeadID(c)
	if !ok {
		return
	}

	lead, err := h.engine.ForceRelease(c.Request.Context(), leadID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToLeadResponse(lead))
}

// MoveUp bumps a realtor one slot up.
// POST /admin/queue/:realtorId/move-up
func (h *Handler) MoveUp(c *gin.Context) {
	realtorID, ok := parseRealtorID(c)
	if !ok {
		return
	}

	ranked, err := h.engine.MoveUp(c.Request.Context(), realtorID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToQueueEntryResponses(ranked))
}

// MoveDown bumps a realtor one slot down.
// POST /admin/queue/:realtorId/move-down
func (h *Handler) MoveDown(c *gin.Context) {
	realtorID, ok := parseRealtorID(c)
	if !ok {
		return
	}

	ranked, err := h.engine.MoveDown(c.Request.Context(), realtorID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToQueueEntryResponses(ranked))
}

// Pin holds a realtor at an explicit slot.
// PUT /admin/queue/:realtorId/pin
func (h *Handler) Pin(c *gin.Context) {
	realtorID, ok := parseRealtorID(c)
	if !ok {
		return
	}
	var req transport.PinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	ranked, err := h.engine.PinPosition(c.Request.Context(), realtorID, req.Position)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToQueueEntryResponses(ranked))
}

// Unpin removes a manual position override.
// DELETE /admin/queue/:realtorId/pin
func (h *Handler) Unpin(c *gin.Context) {
	realtorID, ok := parseRealtorID(c)
	if !ok {
		return
	}

	ranked, err := h.engine.Unpin(c.Request.Context(), realtorID)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToQueueEntryResponses(ranked))
}

// SetEntryStatus toggles a realtor's queue participation.
// PUT /admin/queue/:realtorId/status
func (h *Handler) SetEntryStatus(c *gin.Context) {
	realtorID, ok := parseRealtorID(c)
	if !ok {
		return
	}
	var req transport.SetEntryStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	entry, err := h.engine.SetRealtorStatus(c.Request.Context(), realtorID, domain.EntryStatus(req.Status))
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToQueueEntryResponse(entry))
}

// AdjustScore applies a manual score correction.
// POST /admin/queue/:realtorId/score
func (h *Handler) AdjustScore(c *gin.Context) {
	realtorID, ok := parseRealtorID(c)
	if !ok {
		return
	}
	var req transport.AdjustScoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	entry, err := h.engine.AdjustScore(c.Request.Context(), realtorID, req.Points, req.Reason)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToQueueEntryResponse(entry))
}

// GrantBonusLeads sets a realtor's extra concurrent-hold allowance.
// PUT /admin/queue/:realtorId/bonus-leads
func (h *Handler) GrantBonusLeads(c *gin.Context) {
	realtorID, ok := parseRealtorID(c)
	if !ok {
		return
	}
	var req transport.BonusLeadsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	entry, err := h.engine.GrantBonusLeads(c.Request.Context(), realtorID, req.BonusLeads)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, transport.ToQueueEntryResponse(entry))
}

// GrantRatingBonus awards the customer-rating bonus.
// POST /admin/queue/:realtorId/rating-bonus
func (h *Handler) GrantRatingBonus(c *gin.Context) {
	realtorID, ok := parseRealtorID(c)
	if !ok {
		return
	}
	var req transport.RatingBonusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	if httpkit.HandleError(c, h.engine.GrantRatingBonus(c.Request.Context(), realtorID, req.Description)) {
		return
	}
	c.Status(http.StatusNoContent)
}

func parseLeadID(c *gin.Context) (uuid.UUID, bool) {
	leadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead id", nil)
		return uuid.Nil, false
	}
	return leadID, true
}

func parseRealtorID(c *gin.Context) (uuid.UUID, bool) {
	realtorID, err := uuid.Parse(c.Param("realtorId"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid realtor id", nil)
		return uuid.Nil, false
	}
	return realtorID, true
}
