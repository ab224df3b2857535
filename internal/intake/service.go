// Package intake accepts new property inquiries from public channels,
// normalizes contact data, and hands leads to the routing engine.
package intake

import (
	"context"
	"strings"

	"realty_portal_backend/internal/routing/domain"
	"realty_portal_backend/internal/routing/service"
	"realty_portal_backend/platform/apperr"
	"realty_portal_backend/platform/logger"
	"realty_portal_backend/platform/phone"
	"realty_portal_backend/platform/validator"

	"github.com/google/uuid"
)

// Engine is the routing surface intake depends on.
type Engine interface {
	CreateLead(ctx context.Context, input service.CreateLeadInput) (domain.Lead, error)
}

type Service struct {
	engine    Engine
	validator *validator.Validator
	log       *logger.Logger
}

func NewService(engine Engine, v *validator.Validator, log *logger.Logger) *Service {
	return &Service{engine: engine, validator: v, log: log}
}

type SubmitLeadInput struct {
	PropertyID         uuid.UUID `validate:"required"`
	ContactName        string    `validate:"required,min=2,max=200"`
	ContactEmail       *string   `validate:"omitempty,email"`
	ContactPhone       string    `validate:"required,min=6,max=30"`
	Source             string    `validate:"max=100"`
	ExclusiveRealtorID *uuid.UUID
}

// SubmitLead validates and normalizes an inquiry, then creates and
// dispatches the lead.
func (s *Service) SubmitLead(ctx context.Context, input SubmitLeadInput) (domain.Lead, error) {
	if err := s.validator.Struct(input); err != nil {
		return domain.Lead{}, apperr.Validation("invalid lead submission").WithDetails(err.Error())
	}

	// A number that cannot be normalized is kept as submitted; losing a
	// lead over formatting would cost more than the noise.
	normalized := phone.NormalizeE164(input.ContactPhone)
	if !strings.HasPrefix(normalized, "+") {
		s.log.DataQualityWarning("contact_phone", "phone kept as submitted: "+normalized)
	}

	return s.engine.CreateLead(ctx, service.CreateLeadInput{
		PropertyID:         input.PropertyID,
		ContactName:        input.ContactName,
		ContactEmail:       input.ContactEmail,
		ContactPhone:       normalized,
		Source:             input.Source,
		ExclusiveRealtorID: input.ExclusiveRealtorID,
	})
}
