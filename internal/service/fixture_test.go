package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
	"github.com/spec-kit/helpdesk-workflow/internal/events"
	"github.com/spec-kit/helpdesk-workflow/internal/repository/memstore"
	"github.com/spec-kit/helpdesk-workflow/internal/service/mock_service"
)

type fixedClock struct{ now time.Time }

func (c *fixedClock) Now() time.Time { return c.now }

func (c *fixedClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type fixture struct {
	store      *memstore.Store
	notifier   *mock_service.MockNotifier
	clock      *fixedClock
	dispatcher events.Dispatcher
	audit      *AuditRecorder
	assignment *AssignmentService
	chain      *ApprovalChainBuilder
	approvals  *ApprovalService
	tickets    *TicketService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(func() { ctrl.Finish() })

	f := &fixture{
		store:      memstore.New(),
		notifier:   mock_service.NewMockNotifier(ctrl),
		clock:      &fixedClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)},
		dispatcher: events.NewInMemoryDispatcher(),
	}
	f.audit = NewAuditRecorder(f.store.History())
	f.assignment = NewAssignmentService(AssignmentDependencies{
		RuleRepo:   f.store.Rules(),
		TeamRepo:   f.store.Teams(),
		TicketRepo: f.store.Tickets(),
		Audit:      f.audit,
		Notifier:   f.notifier,
		Dispatcher: f.dispatcher,
		Clock:      f.clock,
	})
	f.chain = NewApprovalChainBuilder(ApprovalChainDependencies{
		StageRepo:   f.store.Stages(),
		RequestRepo: f.store.Requests(),
		Resolver:    f.assignment,
		Audit:       f.audit,
		Notifier:    f.notifier,
	})
	f.approvals = NewApprovalService(ApprovalDependencies{
		TicketRepo:  f.store.Tickets(),
		RequestRepo: f.store.Requests(),
		StageRepo:   f.store.Stages(),
		UserRepo:    f.store.Users(),
		Audit:       f.audit,
		Notifier:    f.notifier,
		Dispatcher:  f.dispatcher,
		Clock:       f.clock,
	})
	f.tickets = NewTicketService(TicketDependencies{
		TicketRepo:  f.store.Tickets(),
		RequestRepo: f.store.Requests(),
		Audit:       f.audit,
		Assignment:  f.assignment,
		Chain:       f.chain,
		Dispatcher:  f.dispatcher,
		Clock:       f.clock,
	})

	f.store.PutUser(domain.User{ID: "owner", Name: "Olivia Owner", Role: domain.UserRoleRequester})
	return f
}

// addApprovers registers one agent stage per approver on formID, in order.
func (f *fixture) addApprovers(formID string, approvers ...string) {
	for i, approver := range approvers {
		f.store.PutUser(domain.User{ID: approver, Name: "Approver " + approver, Role: domain.UserRoleAgent})
		f.store.PutStage(domain.ApprovalStage{
			ID:         fmt.Sprintf("%s-stage-%d", formID, i+1),
			FormID:     formID,
			Name:       fmt.Sprintf("Stage %d", i+1),
			Order:      i + 1,
			IsRequired: true,
			Approver:   domain.AgentTarget{AgentID: approver},
		})
	}
}

// createTicket files a ticket on formID for the owner. Expectations for notifications
// sent during creation must be set by the caller.
func (f *fixture) createTicket(t *testing.T, formID string) *domain.Ticket {
	t.Helper()
	input := TicketCreateInput{
		Title:    "Laptop purchase",
		Category: "IT",
		Type:     domain.TicketTypeServiceRequest,
		Priority: domain.TicketPriorityMedium,
	}
	if formID != "" {
		input.FormID = &formID
	}
	ticket, err := f.tickets.CreateTicket(context.Background(), "owner", input)
	require.NoError(t, err)
	return ticket
}

// requests returns the ticket's requests in stage order.
func (f *fixture) requests(t *testing.T, ticketID string) []domain.StagedRequest {
	t.Helper()
	staged, err := f.approvals.ListForTicket(context.Background(), ticketID)
	require.NoError(t, err)
	return staged
}

func (f *fixture) ticket(t *testing.T, ticketID string) *domain.Ticket {
	t.Helper()
	ticket, err := f.store.Tickets().GetByID(context.Background(), ticketID)
	require.NoError(t, err)
	return ticket
}

func (f *fixture) history(t *testing.T, ticketID string) []domain.TicketHistory {
	t.Helper()
	entries, err := f.audit.ListByTicket(context.Background(), ticketID, 100, 0)
	require.NoError(t, err)
	return entries
}

// notificationFor matches a notification by recipient and type.
func notificationFor(userID string, kind domain.NotificationType) gomock.Matcher {
	return notificationMatcher{userID: userID, kind: kind}
}

type notificationMatcher struct {
	userID string
	kind   domain.NotificationType
}

func (m notificationMatcher) Matches(x interface{}) bool {
	n, ok := x.(domain.Notification)
	return ok && n.UserID == m.userID && n.Type == m.kind
}

func (m notificationMatcher) String() string {
	return fmt.Sprintf("%s notification for %s", m.kind, m.userID)
}

func strPtr(s string) *string { return &s }
