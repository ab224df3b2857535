package intake

import (
	"net/http"

	apphttp "realty_portal_backend/internal/http"
	"realty_portal_backend/internal/routing/transport"
	"realty_portal_backend/platform/httpkit"
	"realty_portal_backend/platform/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type SubmitLeadRequest struct {
	PropertyID         uuid.UUID  `json:"propertyId" binding:"required"`
	ContactName        string     `json:"contactName" binding:"required"`
	ContactEmail       *string    `json:"contactEmail"`
	ContactPhone       string     `json:"contactPhone" binding:"required"`
	Source             string     `json:"source"`
	ExclusiveRealtorID *uuid.UUID `json:"exclusiveRealtorId"`
}

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// SubmitLead accepts a public inquiry.
// POST /intake/leads
func (h *Handler) SubmitLead(c *gin.Context) {
	var req SubmitLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}

	lead, err := h.service.SubmitLead(c.Request.Context(), SubmitLeadInput{
		PropertyID:         req.PropertyID,
		ContactName:        req.ContactName,
		ContactEmail:       req.ContactEmail,
		ContactPhone:       req.ContactPhone,
		Source:             req.Source,
		ExclusiveRealtorID: req.ExclusiveRealtorID,
	})
	if httpkit.HandleError(c, err) {
		return
	}
	c.JSON(http.StatusCreated, transport.ToLeadResponse(lead))
}

// Module wires the public intake endpoint with its own rate limiter.
type Module struct {
	handler *Handler
	limiter *httpkit.IntakeRateLimiter
}

func NewModule(service *Service, log *logger.Logger) *Module {
	return &Module{
		handler: NewHandler(service),
		limiter: httpkit.NewIntakeRateLimiter(log),
	}
}

func (m *Module) RegisterRoutes(rc apphttp.RouterContext) {
	group := rc.Public.Group("/intake")
	group.Use(m.limiter.RateLimit())
	group.POST("/leads", m.handler.SubmitLead)
}
