package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-workflow/internal/api/dto"
	"github.com/spec-kit/helpdesk-workflow/internal/domain"
	"github.com/spec-kit/helpdesk-workflow/internal/service"
)

// ApprovalsHandler exposes approver and requester actions on approval requests.
type ApprovalsHandler struct {
	approvals *service.ApprovalService
}

// NewApprovalsHandler constructs handler.
func NewApprovalsHandler(approvalService *service.ApprovalService) *ApprovalsHandler {
	return &ApprovalsHandler{approvals: approvalService}
}

// Approve POST /api/approvals/:id/approve.
func (h *ApprovalsHandler) Approve(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.DecisionRequest
	if err := parseBody(c, &req, dto.Validate); err != nil {
		return err
	}
	request, err := h.approvals.Approve(c.UserContext(), c.Params("id"), principal.UserID(), req.Comments)
	return respondRequest(c, request, err)
}

// Reject POST /api/approvals/:id/reject.
func (h *ApprovalsHandler) Reject(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.DecisionRequest
	if err := parseBody(c, &req, dto.Validate); err != nil {
		return err
	}
	request, err := h.approvals.Reject(c.UserContext(), c.Params("id"), principal.UserID(), req.Comments)
	return respondRequest(c, request, err)
}

// NeedMoreInfo POST /api/approvals/:id/need-more-info.
func (h *ApprovalsHandler) NeedMoreInfo(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	var req dto.NeedMoreInfoRequest
	if err := parseBody(c, &req, dto.Validate); err != nil {
		return err
	}
	request, err := h.approvals.NeedMoreInfo(c.UserContext(), c.Params("id"), principal.UserID(), req.Comments)
	return respondRequest(c, request, err)
}

// Resubmit POST /api/approvals/:id/resubmit.
func (h *ApprovalsHandler) Resubmit(c *fiber.Ctx) error {
	principal, err := currentPrincipal(c)
	if err != nil {
		return err
	}
	request, err := h.approvals.Resubmit(c.UserContext(), c.Params("id"), principal.UserID())
	return respondRequest(c, request, err)
}

func respondRequest(c *fiber.Ctx, request *domain.ApprovalRequest, err error) error {
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewApprovalRequestResponse(request)})
}
