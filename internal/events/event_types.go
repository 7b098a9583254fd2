package events

import (
	"time"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketAssigned      EventType = "ticket_assigned"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventApprovalDecided     EventType = "approval_decided"
)

// AllEventTypes lists every event the engine publishes.
var AllEventTypes = []EventType{
	EventTicketCreated,
	EventTicketAssigned,
	EventTicketStatusChanged,
	EventApprovalDecided,
}

// Actor identifies who caused an event. A nil UserID means the system.
type Actor struct {
	UserID *string `json:"user_id,omitempty"`
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string      `json:"id"`
	Type      EventType   `json:"type"`
	TicketID  string      `json:"ticket_id"`
	Actor     Actor       `json:"actor"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Category       string                `json:"category"`
	Type           domain.TicketType     `json:"type"`
	Priority       domain.TicketPriority `json:"priority"`
	Title          string                `json:"title"`
	Status         domain.TicketStatus   `json:"status"`
	ApprovalStatus domain.ApprovalStatus `json:"approval_status"`
}

// TicketAssignedPayload payload.
type TicketAssignedPayload struct {
	AssignedTo string `json:"assigned_to"`
	RuleID     string `json:"rule_id"`
	RuleName   string `json:"rule_name"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus      domain.TicketStatus   `json:"old_status"`
	NewStatus      domain.TicketStatus   `json:"new_status"`
	ApprovalStatus domain.ApprovalStatus `json:"approval_status"`
}

// ApprovalDecidedPayload payload.
type ApprovalDecidedPayload struct {
	RequestID string               `json:"request_id"`
	StageName string               `json:"stage_name"`
	OldStatus domain.RequestStatus `json:"old_status"`
	NewStatus domain.RequestStatus `json:"new_status"`
}
