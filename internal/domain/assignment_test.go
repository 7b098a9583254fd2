package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuleConditionsMatches(t *testing.T) {
	c := RuleConditions{
		Categories: []string{"IT", "Network"},
		Priorities: []TicketPriority{TicketPriorityHigh, TicketPriorityCritical},
	}
	assert.True(t, c.Matches("Network", TicketPriorityHigh, TicketTypeQuestion))
	assert.False(t, c.Matches("HR", TicketPriorityHigh, TicketTypeQuestion))
	assert.False(t, c.Matches("IT", TicketPriorityLow, TicketTypeQuestion))
	assert.True(t, RuleConditions{}.Matches("", TicketPriorityLow, TicketTypeChange))
}

func TestNewAssignTarget(t *testing.T) {
	target, err := NewAssignTarget(AssignKindRoundRobin, "team-1")
	require.NoError(t, err)
	assert.Equal(t, RoundRobinTarget{TeamID: "team-1"}, target)
	assert.Equal(t, AssignKindRoundRobin, target.Kind())
	assert.Equal(t, "team-1", target.TargetID())

	_, err = NewAssignTarget("queue", "x")
	assert.Error(t, err)
	_, err = NewAssignTarget(AssignKindAgent, "")
	assert.Error(t, err)
}
