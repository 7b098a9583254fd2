package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen         TicketStatus = "open"
	TicketStatusNeedApproval TicketStatus = "need_approval"
	TicketStatusInProgress   TicketStatus = "in_progress"
	TicketStatusOnHold       TicketStatus = "on_hold"
	TicketStatusResolved     TicketStatus = "resolved"
	TicketStatusClosed       TicketStatus = "closed"
	TicketStatusRejected     TicketStatus = "rejected"
)

// IsOpen reports whether the ticket still counts against its assignee's workload.
func (s TicketStatus) IsOpen() bool {
	return s != TicketStatusResolved && s != TicketStatusClosed
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "low"
	TicketPriorityMedium   TicketPriority = "medium"
	TicketPriorityHigh     TicketPriority = "high"
	TicketPriorityCritical TicketPriority = "critical"
)

// TicketType classifies the kind of request.
type TicketType string

const (
	TicketTypeIncident       TicketType = "incident"
	TicketTypeServiceRequest TicketType = "service_request"
	TicketTypeQuestion       TicketType = "question"
	TicketTypeProblem        TicketType = "problem"
	TicketTypeChange         TicketType = "change"
)

// TicketUrgency is the requester's view of how soon the ticket matters.
type TicketUrgency string

const (
	TicketUrgencyLow    TicketUrgency = "low"
	TicketUrgencyMedium TicketUrgency = "medium"
	TicketUrgencyHigh   TicketUrgency = "high"
)

// Ticket is the aggregate for helpdesk requests.
//
// ApprovalStatus is derived from the ticket's approval requests and is only
// written by the approval workflow.
type Ticket struct {
	ID             string
	Title          string
	Description    string
	Category       string
	Type           TicketType
	Priority       TicketPriority
	Urgency        TicketUrgency
	FormID         *string
	Status         TicketStatus
	ApprovalStatus ApprovalStatus
	AssignedTo     *string
	CreatedBy      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityCritical:
		return true
	}
	return false
}

// Valid reports whether t is a known ticket type.
func (t TicketType) Valid() bool {
	switch t {
	case TicketTypeIncident, TicketTypeServiceRequest, TicketTypeQuestion, TicketTypeProblem, TicketTypeChange:
		return true
	}
	return false
}

// Valid reports whether u is a known urgency.
func (u TicketUrgency) Valid() bool {
	switch u {
	case TicketUrgencyLow, TicketUrgencyMedium, TicketUrgencyHigh:
		return true
	}
	return false
}
