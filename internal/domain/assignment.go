package domain

import (
	"fmt"
	"time"
)

// AssignKind tags the AssignTarget variants.
type AssignKind string

const (
	AssignKindAgent      AssignKind = "agent"
	AssignKindTeam       AssignKind = "team"
	AssignKindRoundRobin AssignKind = "round_robin"
)

// AssignTarget is the closed set of ways a rule or stage names who should own work.
// Implementations: AgentTarget, TeamTarget, RoundRobinTarget.
type AssignTarget interface {
	Kind() AssignKind
	// TargetID is the agent id for agents and the team id otherwise.
	TargetID() string
	assignTarget()
}

// AgentTarget assigns directly to a user.
type AgentTarget struct {
	AgentID string
}

// TeamTarget assigns to a team's leader, falling back to its earliest member.
type TeamTarget struct {
	TeamID string
}

// RoundRobinTarget assigns to the team member with the fewest open tickets.
type RoundRobinTarget struct {
	TeamID string
}

func (AgentTarget) Kind() AssignKind      { return AssignKindAgent }
func (TeamTarget) Kind() AssignKind       { return AssignKindTeam }
func (RoundRobinTarget) Kind() AssignKind { return AssignKindRoundRobin }

func (t AgentTarget) TargetID() string      { return t.AgentID }
func (t TeamTarget) TargetID() string       { return t.TeamID }
func (t RoundRobinTarget) TargetID() string { return t.TeamID }

func (AgentTarget) assignTarget()      {}
func (TeamTarget) assignTarget()       {}
func (RoundRobinTarget) assignTarget() {}

// NewAssignTarget rebuilds a target from its stored (kind, id) pair.
func NewAssignTarget(kind AssignKind, id string) (AssignTarget, error) {
	if id == "" {
		return nil, fmt.Errorf("assign target %q: empty id", kind)
	}
	switch kind {
	case AssignKindAgent:
		return AgentTarget{AgentID: id}, nil
	case AssignKindTeam:
		return TeamTarget{TeamID: id}, nil
	case AssignKindRoundRobin:
		return RoundRobinTarget{TeamID: id}, nil
	default:
		return nil, fmt.Errorf("unknown assign kind %q", kind)
	}
}

// RuleConditions restricts which tickets a rule applies to. An empty list matches anything.
type RuleConditions struct {
	Categories []string
	Priorities []TicketPriority
	Types      []TicketType
}

// Matches reports whether all three condition lists accept the ticket fields.
func (c RuleConditions) Matches(category string, priority TicketPriority, ticketType TicketType) bool {
	return matchesAny(c.Categories, category) &&
		matchesAny(c.Priorities, priority) &&
		matchesAny(c.Types, ticketType)
}

func matchesAny[T comparable](allowed []T, value T) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, candidate := range allowed {
		if candidate == value {
			return true
		}
	}
	return false
}

// AssignmentRule routes new tickets to an owner. Lower Priority is evaluated first.
type AssignmentRule struct {
	ID         string
	Name       string
	Priority   int
	Conditions RuleConditions
	AssignTo   AssignTarget
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
