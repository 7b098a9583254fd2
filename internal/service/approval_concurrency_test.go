package service

import (
	"context"
	"sync"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
	"github.com/spec-kit/helpdesk-workflow/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-workflow/pkg/util"
)

// racingRequests runs before once, right before the first Transition reaches the store.
type racingRequests struct {
	repository.ApprovalRequestRepository
	before func(ctx context.Context, request *domain.ApprovalRequest)
}

func (r *racingRequests) Transition(ctx context.Context, request *domain.ApprovalRequest, from domain.RequestStatus) error {
	if hook := r.before; hook != nil {
		r.before = nil
		hook(ctx, request)
	}
	return r.ApprovalRequestRepository.Transition(ctx, request, from)
}

// racingTickets runs before once, right before the first UpdateApprovalState reaches the store.
type racingTickets struct {
	repository.TicketRepository
	before func(ctx context.Context, ticketID string)
}

func (r *racingTickets) UpdateApprovalState(ctx context.Context, ticketID string, from domain.ApprovalStatus, status domain.TicketStatus, approval domain.ApprovalStatus) error {
	if hook := r.before; hook != nil {
		r.before = nil
		hook(ctx, ticketID)
	}
	return r.TicketRepository.UpdateApprovalState(ctx, ticketID, from, status, approval)
}

func (f *fixture) approvalServiceWith(tickets repository.TicketRepository, requests repository.ApprovalRequestRepository) *ApprovalService {
	return NewApprovalService(ApprovalDependencies{
		TicketRepo:  tickets,
		RequestRepo: requests,
		StageRepo:   f.store.Stages(),
		UserRepo:    f.store.Users(),
		Audit:       f.audit,
		Notifier:    f.notifier,
		Dispatcher:  f.dispatcher,
		Clock:       f.clock,
	})
}

func countAction(history []domain.TicketHistory, action domain.HistoryAction) int {
	n := 0
	for _, entry := range history {
		if entry.Change.Action() == action {
			n++
		}
	}
	return n
}

func TestApprove_ConcurrentStagesCompleteOnce(t *testing.T) {
	for i := 0; i < 25; i++ {
		f := newFixture(t)
		f.addApprovers("form-purchase", "alice", "bob")

		f.notifier.EXPECT().Notify(gomock.Any(), notificationFor("alice", domain.NotificationApprovalRequested))
		ticket := f.createTicket(t, "form-purchase")
		staged := f.requests(t, ticket.ID)
		require.Len(t, staged, 2)

		// whichever decision lands first may remind the other approver
		f.notifier.EXPECT().Notify(gomock.Any(), notificationFor("alice", domain.NotificationApprovalRequested)).AnyTimes()
		f.notifier.EXPECT().Notify(gomock.Any(), notificationFor("bob", domain.NotificationApprovalRequested)).AnyTimes()
		f.notifier.EXPECT().Notify(gomock.Any(), notificationFor("owner", domain.NotificationApprovalApproved)).Times(1)

		start := make(chan struct{})
		errs := make([]error, 2)
		var wg sync.WaitGroup
		for idx, approver := range []string{"alice", "bob"} {
			wg.Add(1)
			go func(idx int, requestID, approver string) {
				defer wg.Done()
				<-start
				_, errs[idx] = f.approvals.Approve(context.Background(), requestID, approver, nil)
			}(idx, staged[idx].Request.ID, approver)
		}
		close(start)
		wg.Wait()

		require.NoError(t, errs[0])
		require.NoError(t, errs[1])

		current := f.ticket(t, ticket.ID)
		assert.Equal(t, domain.ApprovalStatusApproved, current.ApprovalStatus)
		assert.Equal(t, domain.TicketStatusInProgress, current.Status)

		history := f.history(t, ticket.ID)
		assert.Equal(t, 1, countAction(history, domain.ActionStatusChanged))
		assert.Equal(t, 2, countAction(history, domain.ActionApprovalApproved))
	}
}

func TestApprove_SameRequestRaceIsInvalidState(t *testing.T) {
	f := newFixture(t)
	f.addApprovers("form-purchase", "alice")
	ctx := context.Background()

	f.notifier.EXPECT().Notify(gomock.Any(), notificationFor("alice", domain.NotificationApprovalRequested))
	ticket := f.createTicket(t, "form-purchase")
	requestID := f.requests(t, ticket.ID)[0].Request.ID

	requests := &racingRequests{ApprovalRequestRepository: f.store.Requests()}
	requests.before = func(ctx context.Context, request *domain.ApprovalRequest) {
		competing := *request
		competing.Status = domain.RequestStatusRejected
		require.NoError(t, f.store.Requests().Transition(ctx, &competing, domain.RequestStatusPending))
	}
	approvals := f.approvalServiceWith(f.store.Tickets(), requests)

	_, err := approvals.Approve(ctx, requestID, "alice", nil)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidState))

	stored, err := f.store.Requests().GetByID(ctx, requestID)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusRejected, stored.Status)
	assert.Zero(t, countAction(f.history(t, ticket.ID), domain.ActionApprovalApproved))

	again := *stored
	again.Status = domain.RequestStatusApproved
	assert.ErrorIs(t, f.store.Requests().Transition(ctx, &again, domain.RequestStatusPending), repository.ErrStaleWrite)
}

func TestApprove_LostTicketRaceRecomputes(t *testing.T) {
	f := newFixture(t)
	f.addApprovers("form-purchase", "alice")
	ctx := context.Background()

	f.notifier.EXPECT().Notify(gomock.Any(), notificationFor("alice", domain.NotificationApprovalRequested))
	ticket := f.createTicket(t, "form-purchase")
	requestID := f.requests(t, ticket.ID)[0].Request.ID

	tickets := &racingTickets{TicketRepository: f.store.Tickets()}
	tickets.before = func(ctx context.Context, ticketID string) {
		require.NoError(t, f.store.Tickets().UpdateApprovalState(ctx, ticketID,
			domain.ApprovalStatusPending, domain.TicketStatusInProgress, domain.ApprovalStatusApproved))
	}
	approvals := f.approvalServiceWith(tickets, f.store.Requests())

	// the competing writer completed the chain, so this call neither notifies the owner
	// nor records a second status change
	approved, err := approvals.Approve(ctx, requestID, "alice", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.RequestStatusApproved, approved.Status)

	current := f.ticket(t, ticket.ID)
	assert.Equal(t, domain.ApprovalStatusApproved, current.ApprovalStatus)
	assert.Equal(t, domain.TicketStatusInProgress, current.Status)
	assert.Zero(t, countAction(f.history(t, ticket.ID), domain.ActionStatusChanged))
}

func TestSyncTicket_KeepsConcurrentFieldEdits(t *testing.T) {
	f := newFixture(t)
	f.addApprovers("form-purchase", "alice")
	ctx := context.Background()

	f.notifier.EXPECT().Notify(gomock.Any(), notificationFor("alice", domain.NotificationApprovalRequested))
	ticket := f.createTicket(t, "form-purchase")
	requestID := f.requests(t, ticket.ID)[0].Request.ID

	requests := &racingRequests{ApprovalRequestRepository: f.store.Requests()}
	requests.before = func(ctx context.Context, _ *domain.ApprovalRequest) {
		edited, err := f.store.Tickets().GetByID(ctx, ticket.ID)
		require.NoError(t, err)
		edited.Title = "Laptop purchase (14 inch)"
		edited.AssignedTo = strPtr("desk-agent")
		require.NoError(t, f.store.Tickets().Update(ctx, edited))
	}
	approvals := f.approvalServiceWith(f.store.Tickets(), requests)

	f.notifier.EXPECT().Notify(gomock.Any(), notificationFor("owner", domain.NotificationApprovalApproved))
	_, err := approvals.Approve(ctx, requestID, "alice", nil)
	require.NoError(t, err)

	current := f.ticket(t, ticket.ID)
	assert.Equal(t, domain.ApprovalStatusApproved, current.ApprovalStatus)
	assert.Equal(t, "Laptop purchase (14 inch)", current.Title)
	require.NotNil(t, current.AssignedTo)
	assert.Equal(t, "desk-agent", *current.AssignedTo)
}
