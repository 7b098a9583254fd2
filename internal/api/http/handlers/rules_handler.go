package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-workflow/internal/api/dto"
	"github.com/spec-kit/helpdesk-workflow/internal/service"
	apperrors "github.com/spec-kit/helpdesk-workflow/pkg/util"
)

// RulesHandler previews assignment rule matching.
type RulesHandler struct {
	assignment *service.AssignmentService
}

// NewRulesHandler constructs handler.
func NewRulesHandler(assignmentService *service.AssignmentService) *RulesHandler {
	return &RulesHandler{assignment: assignmentService}
}

// Match GET /api/assignment-rules/match?category=&priority=&type=.
// It is a dry run: nothing is written.
func (h *RulesHandler) Match(c *fiber.Ctx) error {
	var query dto.RuleMatchQuery
	if err := c.QueryParser(&query); err != nil {
		return apperrors.NewValidationError("invalid query", nil)
	}
	if err := dto.Validate(query); err != nil {
		return err
	}

	rule, err := h.assignment.FindMatchingRule(c.UserContext(), query.Category, query.Priority, query.Type)
	if err != nil {
		return err
	}
	if rule == nil {
		return c.JSON(fiber.Map{"data": dto.RuleMatchResponse{Matched: false}})
	}
	assignee, err := h.assignment.ResolveAssignee(c.UserContext(), rule.AssignTo)
	if err != nil {
		return err
	}
	resp := dto.RuleMatchResponse{
		Matched:    true,
		RuleID:     rule.ID,
		RuleName:   rule.Name,
		Priority:   rule.Priority,
		AssigneeID: assignee,
	}
	if rule.AssignTo != nil {
		resp.AssignType = rule.AssignTo.Kind()
		resp.AssignID = rule.AssignTo.TargetID()
	}
	return c.JSON(fiber.Map{"data": resp})
}
