package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
	"github.com/spec-kit/helpdesk-workflow/internal/events"
	"github.com/spec-kit/helpdesk-workflow/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-workflow/pkg/util"
)

// ApprovalService drives approval requests through their lifecycle and keeps the
// ticket's aggregate approval status in sync.
type ApprovalService struct {
	tickets    repository.TicketRepository
	requests   repository.ApprovalRequestRepository
	stages     repository.ApprovalStageRepository
	users      repository.UserRepository
	audit      *AuditRecorder
	notifier   Notifier
	dispatcher events.Dispatcher
	clock      Clock
	logger     *zap.Logger
}

// ApprovalDependencies bundles repositories and collaborators.
type ApprovalDependencies struct {
	TicketRepo  repository.TicketRepository
	RequestRepo repository.ApprovalRequestRepository
	StageRepo   repository.ApprovalStageRepository
	UserRepo    repository.UserRepository
	Audit       *AuditRecorder
	Notifier    Notifier
	Dispatcher  events.Dispatcher
	Clock       Clock
	Logger      *zap.Logger
}

// NewApprovalService creates the service.
func NewApprovalService(deps ApprovalDependencies) *ApprovalService {
	clock := deps.Clock
	if clock == nil {
		clock = RealClock()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApprovalService{
		tickets:    deps.TicketRepo,
		requests:   deps.RequestRepo,
		stages:     deps.StageRepo,
		users:      deps.UserRepo,
		audit:      deps.Audit,
		notifier:   deps.Notifier,
		dispatcher: deps.Dispatcher,
		clock:      clock,
		logger:     logger,
	}
}

// decision carries everything loaded for one approver action.
type decision struct {
	request *domain.ApprovalRequest
	ticket  *domain.Ticket
	stage   *domain.ApprovalStage
}

// Approve approves a pending request on behalf of its designated approver.
func (s *ApprovalService) Approve(ctx context.Context, requestID, approverID string, comments *string) (*domain.ApprovalRequest, error) {
	return s.decide(ctx, requestID, approverID, domain.RequestStatusApproved, normalizeComments(comments))
}

// Reject rejects a pending request on behalf of its designated approver.
func (s *ApprovalService) Reject(ctx context.Context, requestID, approverID string, comments *string) (*domain.ApprovalRequest, error) {
	return s.decide(ctx, requestID, approverID, domain.RequestStatusRejected, normalizeComments(comments))
}

// NeedMoreInfo sends a pending request back to the requester. Comments are mandatory.
func (s *ApprovalService) NeedMoreInfo(ctx context.Context, requestID, approverID, comments string) (*domain.ApprovalRequest, error) {
	trimmed := strings.TrimSpace(comments)
	if trimmed == "" {
		return nil, apperrors.NewValidationError("comments are required when requesting more information", map[string]any{"field": "comments"})
	}
	return s.decide(ctx, requestID, approverID, domain.RequestStatusNeedMoreInfo, &trimmed)
}

// Resubmit puts a request that needs more information back into review.
// Only the ticket owner may resubmit.
func (s *ApprovalService) Resubmit(ctx context.Context, requestID, actorID string) (*domain.ApprovalRequest, error) {
	d, err := s.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if d.ticket.CreatedBy != actorID {
		return nil, apperrors.NewUnauthorizedActor("only the ticket owner can resubmit", map[string]any{"request_id": requestID})
	}
	if d.request.Status != domain.RequestStatusNeedMoreInfo {
		return nil, invalidTransition(d.request, domain.RequestStatusPending)
	}
	if d.ticket.ApprovalStatus.IsTerminal() {
		return nil, closedChain(d.ticket)
	}

	now := s.clock.Now()
	before := snapshot(d.request, d.stage)
	d.request.Status = domain.RequestStatusPending
	d.request.Comments = nil
	d.request.RespondedAt = nil
	d.request.UpdatedAt = now
	if err := s.requests.Transition(ctx, d.request, domain.RequestStatusNeedMoreInfo); err != nil {
		return nil, mapRequestWriteErr(err, d.request)
	}
	if err := s.audit.Record(ctx, d.ticket.ID, &actorID, domain.ApprovalResubmitted{
		Old: before,
		New: snapshot(d.request, d.stage),
	}, now); err != nil {
		return nil, apperrors.MapError(err)
	}
	if _, _, err := s.syncTicket(ctx, d.ticket, actorID, now.Add(historyStep)); err != nil {
		return nil, err
	}
	notifyApprover(ctx, s.notifier, s.logger, d.ticket, domain.StagedRequest{Request: *d.request, Stage: *d.stage})
	s.publishDecision(ctx, actorID, d, before.Status)
	return d.request, nil
}

// ListForTicket returns the ticket's requests joined with their stages, in stage order.
func (s *ApprovalService) ListForTicket(ctx context.Context, ticketID string) ([]domain.StagedRequest, error) {
	if _, err := s.tickets.GetByID(ctx, ticketID); err != nil {
		return nil, mapNotFound(err, "ticket", "ticket_id", ticketID)
	}
	staged, err := s.loadStaged(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	queueOrder(staged)
	return staged, nil
}

func (s *ApprovalService) decide(ctx context.Context, requestID, approverID string, to domain.RequestStatus, comments *string) (*domain.ApprovalRequest, error) {
	d, err := s.load(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if d.request.ApproverID == nil || *d.request.ApproverID != approverID {
		return nil, apperrors.NewUnauthorizedActor("only the designated approver can act on this request", map[string]any{"request_id": requestID})
	}
	if d.request.Status != domain.RequestStatusPending {
		return nil, invalidTransition(d.request, to)
	}
	if d.ticket.ApprovalStatus.IsTerminal() {
		return nil, closedChain(d.ticket)
	}

	now := s.clock.Now()
	before := snapshot(d.request, d.stage)
	d.request.Status = to
	d.request.Comments = comments
	d.request.RespondedAt = &now
	d.request.UpdatedAt = now
	if err := s.requests.Transition(ctx, d.request, domain.RequestStatusPending); err != nil {
		return nil, mapRequestWriteErr(err, d.request)
	}

	approverName := s.userName(ctx, approverID)
	after := snapshot(d.request, d.stage)
	var change domain.HistoryChange
	switch to {
	case domain.RequestStatusApproved:
		change = domain.ApprovalApproved{Old: before, New: after, ApproverName: approverName, Comments: comments}
	case domain.RequestStatusRejected:
		change = domain.ApprovalRejected{Old: before, New: after, ApproverName: approverName, Comments: comments}
	default:
		change = domain.ApprovalNeedMoreInfo{Old: before, New: after, ApproverName: approverName, Comments: *comments}
	}
	if err := s.audit.Record(ctx, d.ticket.ID, &approverID, change, now); err != nil {
		return nil, apperrors.MapError(err)
	}

	staged, changed, err := s.syncTicket(ctx, d.ticket, approverID, now.Add(historyStep))
	if err != nil {
		return nil, err
	}

	switch to {
	case domain.RequestStatusApproved:
		if d.ticket.ApprovalStatus == domain.ApprovalStatusApproved {
			// only the decision that completed the chain tells the owner
			if changed {
				s.notifyOwner(ctx, d.ticket, domain.NotificationApprovalApproved, "Ticket approved",
					fmt.Sprintf("All approvals for ticket %q are complete.", d.ticket.Title))
			}
		} else if next, ok := domain.NewStageQueue(staged).Peek(); ok {
			notifyApprover(ctx, s.notifier, s.logger, d.ticket, next)
		}
	case domain.RequestStatusRejected:
		s.notifyOwner(ctx, d.ticket, domain.NotificationApprovalRejected, "Ticket rejected",
			fmt.Sprintf("Ticket %q was rejected by %s at stage %q.", d.ticket.Title, approverName, d.stage.Name))
	case domain.RequestStatusNeedMoreInfo:
		s.notifyOwner(ctx, d.ticket, domain.NotificationApprovalInfoRequested, "More information requested",
			fmt.Sprintf("%s needs more information on ticket %q: %s", approverName, d.ticket.Title, *comments))
	}
	s.publishDecision(ctx, approverID, d, before.Status)
	return d.request, nil
}

// syncTicket recomputes the aggregate from a fresh read of every request and writes
// status and approval_status when they changed. The write is conditional on the stored
// aggregate, so when two decisions race only one of them records the status change; the
// other re-reads the ticket and recomputes. changed reports whether this call wrote.
func (s *ApprovalService) syncTicket(ctx context.Context, ticket *domain.Ticket, actorID string, statusAt time.Time) ([]domain.StagedRequest, bool, error) {
	for attempt := 1; ; attempt++ {
		staged, err := s.loadStaged(ctx, ticket.ID)
		if err != nil {
			return nil, false, err
		}
		aggregate := domain.AggregateApprovalStatus(staged)
		oldStatus := ticket.Status
		newStatus := oldStatus
		if status, ok := domain.TicketStatusFor(aggregate); ok {
			newStatus = status
		}
		if aggregate == ticket.ApprovalStatus && newStatus == oldStatus {
			return staged, false, nil
		}

		err = s.tickets.UpdateApprovalState(ctx, ticket.ID, ticket.ApprovalStatus, newStatus, aggregate)
		if errors.Is(err, repository.ErrStaleWrite) && attempt < maxSyncAttempts {
			fresh, getErr := s.tickets.GetByID(ctx, ticket.ID)
			if getErr != nil {
				return nil, false, mapNotFound(getErr, "ticket", "ticket_id", ticket.ID)
			}
			*ticket = *fresh
			continue
		}
		if err != nil {
			return nil, false, mapTicketWriteErr(err, ticket.ID)
		}

		ticket.ApprovalStatus = aggregate
		ticket.Status = newStatus
		if newStatus == oldStatus {
			return staged, true, nil
		}
		if err := s.audit.Record(ctx, ticket.ID, &actorID, domain.StatusChanged{
			OldStatus:      oldStatus,
			NewStatus:      newStatus,
			ApprovalStatus: aggregate,
		}, statusAt); err != nil {
			return nil, false, apperrors.MapError(err)
		}
		s.publish(ctx, events.EventTicketStatusChanged, ticket.ID, actorID, events.TicketStatusChangedPayload{
			OldStatus:      oldStatus,
			NewStatus:      newStatus,
			ApprovalStatus: aggregate,
		})
		return staged, true, nil
	}
}

func (s *ApprovalService) load(ctx context.Context, requestID string) (*decision, error) {
	request, err := s.requests.GetByID(ctx, requestID)
	if err != nil {
		return nil, mapNotFound(err, "approval request", "request_id", requestID)
	}
	ticket, err := s.tickets.GetByID(ctx, request.TicketID)
	if err != nil {
		return nil, mapNotFound(err, "ticket", "ticket_id", request.TicketID)
	}
	stage, err := s.stages.GetByID(ctx, request.StageID)
	if err != nil {
		return nil, mapNotFound(err, "approval stage", "stage_id", request.StageID)
	}
	return &decision{request: request, ticket: ticket, stage: stage}, nil
}

func (s *ApprovalService) loadStaged(ctx context.Context, ticketID string) ([]domain.StagedRequest, error) {
	requests, err := s.requests.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	stages := make(map[string]domain.ApprovalStage, len(requests))
	staged := make([]domain.StagedRequest, 0, len(requests))
	for _, request := range requests {
		stage, ok := stages[request.StageID]
		if !ok {
			loaded, err := s.stages.GetByID(ctx, request.StageID)
			if err != nil {
				return nil, mapNotFound(err, "approval stage", "stage_id", request.StageID)
			}
			stage = *loaded
			stages[request.StageID] = stage
		}
		staged = append(staged, domain.StagedRequest{Request: request, Stage: stage})
	}
	return staged, nil
}

func (s *ApprovalService) userName(ctx context.Context, userID string) string {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("approver lookup failed", zap.String("user_id", userID), zap.Error(err))
		}
		return userID
	}
	return user.Name
}

func (s *ApprovalService) notifyOwner(ctx context.Context, ticket *domain.Ticket, kind domain.NotificationType, title, message string) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, domain.Notification{
		UserID:   ticket.CreatedBy,
		Type:     kind,
		Title:    title,
		Message:  message,
		TicketID: &ticket.ID,
	})
}

func (s *ApprovalService) publishDecision(ctx context.Context, actorID string, d *decision, from domain.RequestStatus) {
	s.publish(ctx, events.EventApprovalDecided, d.ticket.ID, actorID, events.ApprovalDecidedPayload{
		RequestID: d.request.ID,
		StageName: d.stage.Name,
		OldStatus: from,
		NewStatus: d.request.Status,
	})
}

func (s *ApprovalService) publish(ctx context.Context, eventType events.EventType, ticketID, actorID string, payload any) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Actor:     events.Actor{UserID: &actorID},
		Timestamp: s.clock.Now(),
		Payload:   payload,
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event", string(eventType)), zap.Error(err))
	}
}

func snapshot(request *domain.ApprovalRequest, stage *domain.ApprovalStage) domain.ApprovalSnapshot {
	return domain.ApprovalSnapshot{Status: request.Status, StageName: stage.Name}
}

// queueOrder sorts requests by stage order, the order StageQueue pops them in.
func queueOrder(staged []domain.StagedRequest) {
	sort.SliceStable(staged, func(i, j int) bool {
		if staged[i].Stage.Order != staged[j].Stage.Order {
			return staged[i].Stage.Order < staged[j].Stage.Order
		}
		return staged[i].Request.ID < staged[j].Request.ID
	})
}

func normalizeComments(comments *string) *string {
	if comments == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*comments)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func invalidTransition(request *domain.ApprovalRequest, to domain.RequestStatus) error {
	return apperrors.NewInvalidState(
		fmt.Sprintf("cannot move approval request from %s to %s", request.Status, to),
		map[string]any{"request_id": request.ID, "status": request.Status},
	)
}

func closedChain(ticket *domain.Ticket) error {
	return apperrors.NewInvalidState("approval chain is already "+string(ticket.ApprovalStatus),
		map[string]any{"ticket_id": ticket.ID, "approval_status": ticket.ApprovalStatus})
}

func mapRequestWriteErr(err error, request *domain.ApprovalRequest) error {
	switch {
	case errors.Is(err, repository.ErrStaleWrite):
		return apperrors.NewInvalidState("approval request changed concurrently", map[string]any{"request_id": request.ID})
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound("approval request", map[string]any{"request_id": request.ID})
	default:
		return apperrors.MapError(err)
	}
}

func mapTicketWriteErr(err error, ticketID string) error {
	switch {
	case errors.Is(err, repository.ErrStaleWrite):
		return apperrors.NewInvalidState("ticket approval state changed concurrently", map[string]any{"ticket_id": ticketID})
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
	default:
		return apperrors.MapError(err)
	}
}

func mapNotFound(err error, resource, key, id string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound(resource, map[string]any{key: id})
	}
	return apperrors.MapError(err)
}
