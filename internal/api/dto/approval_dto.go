package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
)

// DecisionRequest carries optional approver comments for approve and reject.
type DecisionRequest struct {
	Comments *string `json:"comments" validate:"omitempty,max=2000"`
}

// NeedMoreInfoRequest requires the approver to say what is missing.
type NeedMoreInfoRequest struct {
	Comments string `json:"comments" validate:"required,max=2000"`
}

// ApprovalRequestResponse describes one approval request with its stage.
type ApprovalRequestResponse struct {
	ID          string               `json:"id"`
	TicketID    string               `json:"ticket_id"`
	StageID     string               `json:"stage_id"`
	StageName   string               `json:"stage_name,omitempty"`
	StageOrder  int                  `json:"stage_order,omitempty"`
	IsRequired  bool                 `json:"is_required"`
	ApproverID  *string              `json:"approver_id"`
	Status      domain.RequestStatus `json:"status"`
	Comments    *string              `json:"comments"`
	RequestedAt time.Time            `json:"requested_at"`
	RespondedAt *time.Time           `json:"responded_at"`
}

// NewApprovalRequestResponse maps a bare request.
func NewApprovalRequestResponse(request *domain.ApprovalRequest) ApprovalRequestResponse {
	return ApprovalRequestResponse{
		ID:          request.ID,
		TicketID:    request.TicketID,
		StageID:     request.StageID,
		ApproverID:  request.ApproverID,
		Status:      request.Status,
		Comments:    request.Comments,
		RequestedAt: request.RequestedAt,
		RespondedAt: request.RespondedAt,
	}
}

// NewStagedRequestResponse maps a request together with its stage.
func NewStagedRequestResponse(staged domain.StagedRequest) ApprovalRequestResponse {
	resp := NewApprovalRequestResponse(&staged.Request)
	resp.StageName = staged.Stage.Name
	resp.StageOrder = staged.Stage.Order
	resp.IsRequired = staged.Stage.IsRequired
	return resp
}
