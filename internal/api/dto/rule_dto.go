package dto

import "github.com/spec-kit/helpdesk-workflow/internal/domain"

// RuleMatchQuery are the ticket attributes a rule is matched against.
type RuleMatchQuery struct {
	Category string                `query:"category" json:"category" validate:"required"`
	Priority domain.TicketPriority `query:"priority" json:"priority" validate:"required,oneof=low medium high critical"`
	Type     domain.TicketType     `query:"type" json:"type" validate:"required,oneof=incident service_request question problem change"`
}

// RuleMatchResponse reports the rule that would apply and who it resolves to.
type RuleMatchResponse struct {
	Matched    bool              `json:"matched"`
	RuleID     string            `json:"rule_id,omitempty"`
	RuleName   string            `json:"rule_name,omitempty"`
	Priority   int               `json:"priority,omitempty"`
	AssignType domain.AssignKind `json:"assign_type,omitempty"`
	AssignID   string            `json:"assign_id,omitempty"`
	AssigneeID *string           `json:"assignee_id,omitempty"`
}
