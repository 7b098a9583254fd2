package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staged(order int, required bool, status RequestStatus) StagedRequest {
	return StagedRequest{
		Request: ApprovalRequest{ID: string(rune('a' + order)), Status: status},
		Stage:   ApprovalStage{Order: order, IsRequired: required},
	}
}

func TestAggregateApprovalStatus(t *testing.T) {
	cases := []struct {
		name     string
		requests []StagedRequest
		want     ApprovalStatus
	}{
		{"all required approved", []StagedRequest{staged(1, true, RequestStatusApproved), staged(2, true, RequestStatusApproved)}, ApprovalStatusApproved},
		{"one pending", []StagedRequest{staged(1, true, RequestStatusApproved), staged(2, true, RequestStatusPending)}, ApprovalStatusPending},
		{"need more info blocks", []StagedRequest{staged(1, true, RequestStatusNeedMoreInfo)}, ApprovalStatusPending},
		{"optional pending ignored", []StagedRequest{staged(1, true, RequestStatusApproved), staged(2, false, RequestStatusPending)}, ApprovalStatusApproved},
		{"skipped counts as done", []StagedRequest{staged(1, false, RequestStatusSkipped), staged(2, true, RequestStatusApproved)}, ApprovalStatusApproved},
		{"rejection dominates", []StagedRequest{staged(1, true, RequestStatusApproved), staged(2, true, RequestStatusPending), staged(3, false, RequestStatusRejected)}, ApprovalStatusRejected},
		{"rejection beats need more info", []StagedRequest{staged(1, true, RequestStatusNeedMoreInfo), staged(2, true, RequestStatusRejected)}, ApprovalStatusRejected},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			first := AggregateApprovalStatus(tc.requests)
			assert.Equal(t, tc.want, first)
			assert.Equal(t, first, AggregateApprovalStatus(tc.requests))
		})
	}
}

func TestTicketStatusFor(t *testing.T) {
	status, ok := TicketStatusFor(ApprovalStatusApproved)
	assert.True(t, ok)
	assert.Equal(t, TicketStatusInProgress, status)

	status, ok = TicketStatusFor(ApprovalStatusRejected)
	assert.True(t, ok)
	assert.Equal(t, TicketStatusRejected, status)

	_, ok = TicketStatusFor(ApprovalStatusPending)
	assert.False(t, ok)
}

func TestStageQueue(t *testing.T) {
	q := NewStageQueue([]StagedRequest{
		staged(3, true, RequestStatusPending),
		staged(1, true, RequestStatusApproved),
		staged(4, true, RequestStatusNeedMoreInfo),
		staged(2, true, RequestStatusPending),
	})

	next, ok := q.Peek()
	require.True(t, ok)
	assert.Equal(t, 2, next.Stage.Order)

	again, _ := q.Peek()
	assert.Equal(t, next.Stage.Order, again.Stage.Order)

	_, ok = NewStageQueue([]StagedRequest{
		staged(1, true, RequestStatusApproved),
		staged(2, false, RequestStatusSkipped),
	}).Peek()
	assert.False(t, ok)
}
