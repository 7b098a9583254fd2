package domain

import "time"

// ApprovalStatus is the aggregate approval state of a ticket.
type ApprovalStatus string

const (
	ApprovalStatusNone     ApprovalStatus = "none"
	ApprovalStatusPending  ApprovalStatus = "pending"
	ApprovalStatusApproved ApprovalStatus = "approved"
	ApprovalStatusRejected ApprovalStatus = "rejected"
)

// IsTerminal reports whether the approval phase of the ticket is over.
func (s ApprovalStatus) IsTerminal() bool {
	return s == ApprovalStatusApproved || s == ApprovalStatusRejected
}

// RequestStatus is the state of a single approval request.
type RequestStatus string

const (
	RequestStatusPending      RequestStatus = "pending"
	RequestStatusApproved     RequestStatus = "approved"
	RequestStatusRejected     RequestStatus = "rejected"
	RequestStatusNeedMoreInfo RequestStatus = "need_more_info"
	RequestStatusSkipped      RequestStatus = "skipped"
)

// ApprovalStage is one step of a form's approval template.
type ApprovalStage struct {
	ID         string
	FormID     string
	Name       string
	Order      int
	IsRequired bool
	Approver   AssignTarget
	CreatedAt  time.Time
}

// ApprovalRequest tracks one approver's decision for a (ticket, stage) pair.
type ApprovalRequest struct {
	ID          string
	TicketID    string
	StageID     string
	ApproverID  *string
	Status      RequestStatus
	Comments    *string
	RequestedAt time.Time
	RespondedAt *time.Time
	UpdatedAt   time.Time
}

// StagedRequest pairs a request with the stage it was created for.
type StagedRequest struct {
	Request ApprovalRequest
	Stage   ApprovalStage
}

// AggregateApprovalStatus derives a ticket's approval status from all of its requests.
// Any rejection wins; otherwise every required request must be approved or skipped.
func AggregateApprovalStatus(requests []StagedRequest) ApprovalStatus {
	for _, r := range requests {
		if r.Request.Status == RequestStatusRejected {
			return ApprovalStatusRejected
		}
	}
	for _, r := range requests {
		if !r.Stage.IsRequired {
			continue
		}
		if r.Request.Status != RequestStatusApproved && r.Request.Status != RequestStatusSkipped {
			return ApprovalStatusPending
		}
	}
	return ApprovalStatusApproved
}

// TicketStatusFor returns the ticket status implied by an aggregate approval status.
// The boolean is false when the aggregate leaves the current status unchanged.
func TicketStatusFor(aggregate ApprovalStatus) (TicketStatus, bool) {
	switch aggregate {
	case ApprovalStatusApproved:
		return TicketStatusInProgress, true
	case ApprovalStatusRejected:
		return TicketStatusRejected, true
	default:
		return "", false
	}
}
