package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
	"github.com/spec-kit/helpdesk-workflow/internal/events"
	"github.com/spec-kit/helpdesk-workflow/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-workflow/pkg/util"
)

// TicketService coordinates ticket intake: creation, auto-assignment and the approval chain.
type TicketService struct {
	tickets    repository.TicketRepository
	requests   repository.ApprovalRequestRepository
	audit      *AuditRecorder
	assignment *AssignmentService
	chain      *ApprovalChainBuilder
	dispatcher events.Dispatcher
	clock      Clock
	logger     *zap.Logger
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo  repository.TicketRepository
	RequestRepo repository.ApprovalRequestRepository
	Audit       *AuditRecorder
	Assignment  *AssignmentService
	Chain       *ApprovalChainBuilder
	Dispatcher  events.Dispatcher
	Clock       Clock
	Logger      *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Category    string
	Type        domain.TicketType
	Priority    domain.TicketPriority
	Urgency     domain.TicketUrgency
	FormID      *string
}

// TicketScope selects whose tickets a listing returns.
type TicketScope string

const (
	TicketScopeMine     TicketScope = "mine"
	TicketScopeAssigned TicketScope = "assigned"
	// TicketScopeAll is limited to staff.
	TicketScopeAll TicketScope = "all"
)

// TicketListFilter narrows a ticket listing.
type TicketListFilter struct {
	Scope       TicketScope
	Category    *string
	Statuses    []domain.TicketStatus
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	clock := deps.Clock
	if clock == nil {
		clock = RealClock()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		requests:   deps.RequestRepo,
		audit:      deps.Audit,
		assignment: deps.Assignment,
		chain:      deps.Chain,
		dispatcher: deps.Dispatcher,
		clock:      clock,
		logger:     logger,
	}
}

// CreateTicket files a ticket for userID, auto-assigns it and starts its approval chain
// when the selected form has approval stages.
func (s *TicketService) CreateTicket(ctx context.Context, userID string, input TicketCreateInput) (*domain.Ticket, error) {
	ticket, err := s.newTicket(userID, input)
	if err != nil {
		return nil, err
	}

	needsApproval, err := s.chain.RequiresApproval(ctx, ticket.FormID)
	if err != nil {
		return nil, err
	}
	if needsApproval {
		ticket.Status = domain.TicketStatusNeedApproval
		ticket.ApprovalStatus = domain.ApprovalStatusPending
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	now := s.clock.Now()
	if err := s.audit.Record(ctx, ticket.ID, &userID, domain.TicketCreated{
		Status:         ticket.Status,
		ApprovalStatus: ticket.ApprovalStatus,
	}, now); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: ticket.ID,
		Actor:    events.Actor{UserID: &userID},
		Payload: events.TicketCreatedPayload{
			Category:       ticket.Category,
			Type:           ticket.Type,
			Priority:       ticket.Priority,
			Title:          ticket.Title,
			Status:         ticket.Status,
			ApprovalStatus: ticket.ApprovalStatus,
		},
	})

	if _, err := s.assignment.AutoAssign(ctx, ticket, now.Add(historyStep)); err != nil {
		return nil, err
	}

	if !needsApproval {
		return ticket, nil
	}
	staged, err := s.chain.Build(ctx, ticket, userID, now.Add(2*historyStep))
	if err != nil {
		return nil, err
	}
	if err := s.settleInitialApproval(ctx, ticket, userID, staged, now.Add(3*historyStep)); err != nil {
		return nil, err
	}
	return ticket, nil
}

// GetTicket returns a ticket the viewer is allowed to see.
func (s *TicketService) GetTicket(ctx context.Context, viewer *domain.User, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapNotFound(err, "ticket", "ticket_id", ticketID)
	}
	allowed, err := s.canView(ctx, viewer, ticket)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, apperrors.NewUnauthorizedActor("access denied", map[string]any{"ticket_id": ticketID})
	}
	return ticket, nil
}

// ListHistory returns the audit trail of a ticket, newest first.
func (s *TicketService) ListHistory(ctx context.Context, viewer *domain.User, ticketID string, limit, offset int) ([]domain.TicketHistory, error) {
	if _, err := s.GetTicket(ctx, viewer, ticketID); err != nil {
		return nil, err
	}
	entries, err := s.audit.ListByTicket(ctx, ticketID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return entries, nil
}

// ListTickets returns the viewer's tickets, most recently updated first. Requesters only
// see what they filed or what is assigned to them.
func (s *TicketService) ListTickets(ctx context.Context, viewer *domain.User, filter TicketListFilter) ([]domain.Ticket, error) {
	if viewer == nil {
		return nil, apperrors.NewUnauthorized("user required")
	}
	repoFilter := repository.TicketFilter{
		Category:    filter.Category,
		Statuses:    filter.Statuses,
		CreatedFrom: filter.CreatedFrom,
		CreatedTo:   filter.CreatedTo,
		Limit:       filter.Limit,
		Offset:      filter.Offset,
	}
	switch filter.Scope {
	case "", TicketScopeMine:
		repoFilter.CreatedBy = &viewer.ID
	case TicketScopeAssigned:
		repoFilter.AssignedTo = &viewer.ID
	case TicketScopeAll:
		if !viewer.IsStaff() {
			return nil, apperrors.NewUnauthorizedActor("only staff can list every ticket", map[string]any{"scope": filter.Scope})
		}
	default:
		return nil, apperrors.NewValidationError("invalid scope", map[string]any{"scope": "one of mine, assigned, all"})
	}
	tickets, err := s.tickets.ListWithFilter(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

func (s *TicketService) newTicket(userID string, input TicketCreateInput) (*domain.Ticket, error) {
	ticket := &domain.Ticket{
		Title:          strings.TrimSpace(input.Title),
		Description:    strings.TrimSpace(input.Description),
		Category:       strings.TrimSpace(input.Category),
		Type:           input.Type,
		Priority:       input.Priority,
		Urgency:        input.Urgency,
		FormID:         input.FormID,
		Status:         domain.TicketStatusOpen,
		ApprovalStatus: domain.ApprovalStatusNone,
		CreatedBy:      userID,
	}
	if ticket.Priority == "" {
		ticket.Priority = domain.TicketPriorityMedium
	}
	if ticket.Urgency == "" {
		ticket.Urgency = domain.TicketUrgencyMedium
	}
	if ticket.FormID != nil && strings.TrimSpace(*ticket.FormID) == "" {
		ticket.FormID = nil
	}

	details := map[string]any{}
	if userID == "" {
		details["created_by"] = "required"
	}
	if ticket.Title == "" {
		details["title"] = "required"
	}
	if ticket.Category == "" {
		details["category"] = "required"
	}
	if !ticket.Type.Valid() {
		details["type"] = "invalid"
	}
	if !ticket.Priority.Valid() {
		details["priority"] = "invalid"
	}
	if !ticket.Urgency.Valid() {
		details["urgency"] = "invalid"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid ticket", details)
	}
	return ticket, nil
}

// settleInitialApproval covers chains that are complete on creation, e.g. when every
// stage was optional and had nobody to ask.
func (s *TicketService) settleInitialApproval(ctx context.Context, ticket *domain.Ticket, actorID string, staged []domain.StagedRequest, at time.Time) error {
	aggregate := domain.AggregateApprovalStatus(staged)
	if aggregate == ticket.ApprovalStatus {
		return nil
	}
	oldStatus := ticket.Status
	newStatus := oldStatus
	if status, ok := domain.TicketStatusFor(aggregate); ok {
		newStatus = status
	}
	if err := s.tickets.UpdateApprovalState(ctx, ticket.ID, ticket.ApprovalStatus, newStatus, aggregate); err != nil {
		return mapTicketWriteErr(err, ticket.ID)
	}
	ticket.ApprovalStatus = aggregate
	ticket.Status = newStatus
	if ticket.Status == oldStatus {
		return nil
	}
	if err := s.audit.Record(ctx, ticket.ID, &actorID, domain.StatusChanged{
		OldStatus:      oldStatus,
		NewStatus:      ticket.Status,
		ApprovalStatus: aggregate,
	}, at); err != nil {
		return apperrors.MapError(err)
	}
	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: ticket.ID,
		Actor:    events.Actor{UserID: &actorID},
		Payload: events.TicketStatusChangedPayload{
			OldStatus:      oldStatus,
			NewStatus:      ticket.Status,
			ApprovalStatus: aggregate,
		},
	})
	return nil
}

func (s *TicketService) canView(ctx context.Context, viewer *domain.User, ticket *domain.Ticket) (bool, error) {
	if viewer == nil {
		return false, nil
	}
	if viewer.IsStaff() || ticket.CreatedBy == viewer.ID {
		return true, nil
	}
	if ticket.AssignedTo != nil && *ticket.AssignedTo == viewer.ID {
		return true, nil
	}
	requests, err := s.requests.ListByTicket(ctx, ticket.ID)
	if err != nil {
		return false, apperrors.MapError(err)
	}
	for _, request := range requests {
		if request.ApproverID != nil && *request.ApproverID == viewer.ID {
			return true, nil
		}
	}
	return false, nil
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.clock.Now()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event", string(event.Type)), zap.Error(err))
	}
}
