// Package transport defines the routing API's request and response shapes.
package transport

import (
	"time"

	"realty_portal_backend/internal/routing/domain"
	"realty_portal_backend/internal/routing/service"

	"github.com/google/uuid"
)

type LeadResponse struct {
	ID                 uuid.UUID  `json:"id"`
	PropertyID         uuid.UUID  `json:"propertyId"`
	ContactName        string     `json:"contactName"`
	ContactEmail       *string    `json:"contactEmail,omitempty"`
	ContactPhone       string     `json:"contactPhone"`
	Status             string     `json:"status"`
	RoutingMode        string     `json:"routingMode"`
	ExclusiveRealtorID *uuid.UUID `json:"exclusiveRealtorId,omitempty"`
	ReservedFor        *uuid.UUID `json:"reservedFor,omitempty"`
	ReservedUntil      *time.Time `json:"reservedUntil,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
	UpdatedAt          time.Time  `json:"updatedAt"`
}

func ToLeadResponse(lead domain.Lead) LeadResponse {
	return LeadResponse{
		ID:                 lead.ID,
		PropertyID:         lead.PropertyID,
		ContactName:        lead.ContactName,
		ContactEmail:       lead.ContactEmail,
		ContactPhone:       lead.ContactPhone,
		Status:             string(lead.Status),
		RoutingMode:        string(lead.RoutingMode),
		ExclusiveRealtorID: lead.ExclusiveRealtorID,
		ReservedFor:        lead.ReservedFor,
		ReservedUntil:      lead.ReservedUntil,
		CreatedAt:          lead.CreatedAt,
		UpdatedAt:          lead.UpdatedAt,
	}
}

func ToLeadResponses(leads []domain.Lead) []LeadResponse {
	out := make([]LeadResponse, 0, len(leads))
	for _, lead := range leads {
		out = append(out, ToLeadResponse(lead))
	}
	return out
}

type QueueEntryResponse struct {
	RealtorID          uuid.UUID `json:"realtorId"`
	Position           *int      `json:"position,omitempty"`
	Score              int       `json:"score"`
	Status             string    `json:"status"`
	ActiveLeads        int       `json:"activeLeads"`
	BonusLeads         int       `json:"bonusLeads"`
	TotalAccepted      int       `json:"totalAccepted"`
	TotalRejected      int       `json:"totalRejected"`
	TotalExpired       int       `json:"totalExpired"`
	AvgResponseSeconds *float64  `json:"avgResponseSeconds,omitempty"`
	Pinned             bool      `json:"pinned"`
}

func ToQueueEntryResponse(entry domain.QueueEntry) QueueEntryResponse {
	return QueueEntryResponse{
		RealtorID:          entry.RealtorID,
		Position:           entry.Position,
		Score:              entry.Score,
		Status:             string(entry.Status),
		ActiveLeads:        entry.ActiveLeads,
		BonusLeads:         entry.BonusLeads,
		TotalAccepted:      entry.TotalAccepted,
		TotalRejected:      entry.TotalRejected,
		TotalExpired:       entry.TotalExpired,
		AvgResponseSeconds: entry.AvgResponseSeconds,
		Pinned:             entry.IsPinned(),
	}
}

func ToQueueEntryResponses(entries []domain.QueueEntry) []QueueEntryResponse {
	out := make([]QueueEntryResponse, 0, len(entries))
	for _, entry := range entries {
		out = append(out, ToQueueEntryResponse(entry))
	}
	return out
}

type QueueStatsResponse struct {
	TotalRealtors      int      `json:"totalRealtors"`
	ActiveRealtors     int      `json:"activeRealtors"`
	AtCapacity         int      `json:"atCapacity"`
	ActiveLeads        int      `json:"activeLeads"`
	TotalAccepted      int      `json:"totalAccepted"`
	TotalRejected      int      `json:"totalRejected"`
	TotalExpired       int      `json:"totalExpired"`
	AvgResponseSeconds *float64 `json:"avgResponseSeconds,omitempty"`
}

func ToQueueStatsResponse(stats service.QueueStats) QueueStatsResponse {
	return QueueStatsResponse{
		TotalRealtors:      stats.TotalRealtors,
		ActiveRealtors:     stats.ActiveRealtors,
		AtCapacity:         stats.AtCapacity,
		ActiveLeads:        stats.ActiveLeads,
		TotalAccepted:      stats.TotalAccepted,
		TotalRejected:      stats.TotalRejected,
		TotalExpired:       stats.TotalExpired,
		AvgResponseSeconds: stats.AvgResponseSeconds,
	}
}

type ScoreEventResponse struct {
	ID          uuid.UUID `json:"id"`
	Action      string    `json:"action"`
	Points      int       `json:"points"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
}

func ToScoreEventResponses(events []domain.ScoreEvent) []ScoreEventResponse {
	out := make([]ScoreEventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, ScoreEventResponse{
			ID:          ev.ID,
			Action:      string(ev.Action),
			Points:      ev.Points,
			Description: ev.Description,
			CreatedAt:   ev.CreatedAt,
		})
	}
	return out
}

type CandidatureResponse struct {
	ID        uuid.UUID `json:"id"`
	LeadID    uuid.UUID `json:"leadId"`
	RealtorID uuid.UUID `json:"realtorId"`
	CreatedAt time.Time `json:"createdAt"`
}

func ToCandidatureResponse(c domain.Candidature) CandidatureResponse {
	return CandidatureResponse{ID: c.ID, LeadID: c.LeadID, RealtorID: c.RealtorID, CreatedAt: c.CreatedAt}
}

type BoardLeadResponse struct {
	Lead         LeadResponse `json:"lead"`
	Candidatures int          `json:"candidatures"`
}

func ToBoardLeadResponses(items []service.BoardLead) []BoardLeadResponse {
	out := make([]BoardLeadResponse, 0, len(items))
	for _, item := range items {
		out = append(out, BoardLeadResponse{Lead: ToLeadResponse(item.Lead), Candidatures: item.Candidatures})
	}
	return out
}

type AdjustScoreRequest struct {
	Points int    `json:"points" binding:"required"`
	Reason string `json:"reason" binding:"required,min=3,max=500"`
}

type PinRequest struct {
	Position int `json:"position" binding:"required,min=1"`
}

type SetEntryStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=ACTIVE INACTIVE"`
}

type BonusLeadsRequest struct {
	BonusLeads int `json:"bonusLeads" binding:"min=0"`
}

type RatingBonusRequest struct {
	Description string `json:"description" binding:"max=500"`
}
