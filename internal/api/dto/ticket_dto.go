package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string                `json:"title" validate:"required,max=200"`
	Description string                `json:"description" validate:"max=10000"`
	Category    string                `json:"category" validate:"required,max=100"`
	Type        domain.TicketType     `json:"type" validate:"required,oneof=incident service_request question problem change"`
	Priority    domain.TicketPriority `json:"priority" validate:"omitempty,oneof=low medium high critical"`
	Urgency     domain.TicketUrgency  `json:"urgency" validate:"omitempty,oneof=low medium high"`
	FormID      *string               `json:"form_id"`
}

// TicketResponse describes a ticket.
type TicketResponse struct {
	ID             string                `json:"id"`
	Title          string                `json:"title"`
	Description    string                `json:"description"`
	Category       string                `json:"category"`
	Type           domain.TicketType     `json:"type"`
	Priority       domain.TicketPriority `json:"priority"`
	Urgency        domain.TicketUrgency  `json:"urgency"`
	FormID         *string               `json:"form_id"`
	Status         domain.TicketStatus   `json:"status"`
	ApprovalStatus domain.ApprovalStatus `json:"approval_status"`
	AssignedTo     *string               `json:"assigned_to"`
	CreatedBy      string                `json:"created_by"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// HistoryEntryResponse is one audit entry.
type HistoryEntryResponse struct {
	ID        string               `json:"id"`
	UserID    *string              `json:"user_id"`
	Action    domain.HistoryAction `json:"action"`
	OldValue  any                  `json:"old_value"`
	NewValue  any                  `json:"new_value"`
	CreatedAt time.Time            `json:"created_at"`
}

// NewTicketResponse maps a ticket.
func NewTicketResponse(ticket *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:             ticket.ID,
		Title:          ticket.Title,
		Description:    ticket.Description,
		Category:       ticket.Category,
		Type:           ticket.Type,
		Priority:       ticket.Priority,
		Urgency:        ticket.Urgency,
		FormID:         ticket.FormID,
		Status:         ticket.Status,
		ApprovalStatus: ticket.ApprovalStatus,
		AssignedTo:     ticket.AssignedTo,
		CreatedBy:      ticket.CreatedBy,
		CreatedAt:      ticket.CreatedAt,
		UpdatedAt:      ticket.UpdatedAt,
	}
}

// NewHistoryEntryResponse maps a history entry using the snapshots stored with it.
func NewHistoryEntryResponse(entry domain.TicketHistory) HistoryEntryResponse {
	oldValue, newValue := entry.Change.Values()
	return HistoryEntryResponse{
		ID:        entry.ID,
		UserID:    entry.UserID,
		Action:    entry.Change.Action(),
		OldValue:  oldValue,
		NewValue:  newValue,
		CreatedAt: entry.CreatedAt,
	}
}
