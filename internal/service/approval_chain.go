package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
	"github.com/spec-kit/helpdesk-workflow/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-workflow/pkg/util"
)

// AssigneeResolver resolves an assignment target to a user id.
type AssigneeResolver interface {
	ResolveAssignee(ctx context.Context, target domain.AssignTarget) (*string, error)
}

// ApprovalChainBuilder creates the approval requests of a ticket from its form's stages.
type ApprovalChainBuilder struct {
	stages   repository.ApprovalStageRepository
	requests repository.ApprovalRequestRepository
	resolver AssigneeResolver
	audit    *AuditRecorder
	notifier Notifier
	logger   *zap.Logger
}

// ApprovalChainDependencies bundles collaborators of the builder.
type ApprovalChainDependencies struct {
	StageRepo   repository.ApprovalStageRepository
	RequestRepo repository.ApprovalRequestRepository
	Resolver    AssigneeResolver
	Audit       *AuditRecorder
	Notifier    Notifier
	Logger      *zap.Logger
}

// NewApprovalChainBuilder creates the builder.
func NewApprovalChainBuilder(deps ApprovalChainDependencies) *ApprovalChainBuilder {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApprovalChainBuilder{
		stages:   deps.StageRepo,
		requests: deps.RequestRepo,
		resolver: deps.Resolver,
		audit:    deps.Audit,
		notifier: deps.Notifier,
		logger:   logger,
	}
}

// RequiresApproval reports whether the form has any approval stage.
func (b *ApprovalChainBuilder) RequiresApproval(ctx context.Context, formID *string) (bool, error) {
	if formID == nil || *formID == "" {
		return false, nil
	}
	stages, err := b.stages.ListByForm(ctx, *formID)
	if err != nil {
		return false, apperrors.MapError(err)
	}
	return len(stages) > 0, nil
}

// Build creates one request per stage of the ticket's form and notifies the approver of
// the first pending stage. Requests and their history entry are stamped with at. It
// returns the created requests in stage order.
func (b *ApprovalChainBuilder) Build(ctx context.Context, ticket *domain.Ticket, actorID string, at time.Time) ([]domain.StagedRequest, error) {
	if ticket.FormID == nil || *ticket.FormID == "" {
		return nil, nil
	}
	stages, err := b.stages.ListByForm(ctx, *ticket.FormID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if len(stages) == 0 {
		return nil, nil
	}

	created := make([]domain.StagedRequest, 0, len(stages))
	snapshots := make([]domain.StageSnapshot, 0, len(stages))
	for _, stage := range stages {
		approverID, err := b.resolveApprover(ctx, ticket.ID, stage)
		if err != nil {
			return nil, err
		}
		request := domain.ApprovalRequest{
			TicketID:    ticket.ID,
			StageID:     stage.ID,
			ApproverID:  approverID,
			Status:      domain.RequestStatusPending,
			RequestedAt: at,
			UpdatedAt:   at,
		}
		if approverID == nil && !stage.IsRequired {
			request.Status = domain.RequestStatusSkipped
		}
		if err := b.requests.Create(ctx, &request); err != nil {
			return nil, apperrors.MapError(err)
		}
		created = append(created, domain.StagedRequest{Request: request, Stage: stage})
		snapshots = append(snapshots, domain.StageSnapshot{
			StageName:  stage.Name,
			Order:      stage.Order,
			ApproverID: approverID,
			Status:     request.Status,
		})
	}

	if err := b.audit.Record(ctx, ticket.ID, &actorID, domain.ApprovalRequested{Stages: snapshots}, at); err != nil {
		return nil, apperrors.MapError(err)
	}

	queue := domain.NewStageQueue(created)
	if first, ok := queue.Peek(); ok {
		notifyApprover(ctx, b.notifier, b.logger, ticket, first)
	}
	return created, nil
}

func (b *ApprovalChainBuilder) resolveApprover(ctx context.Context, ticketID string, stage domain.ApprovalStage) (*string, error) {
	approverID, err := b.resolver.ResolveAssignee(ctx, stage.Approver)
	if err != nil {
		if !apperrors.HasCode(err, apperrors.CodeNotFound) {
			return nil, err
		}
		approverID = nil
	}
	if approverID == nil && stage.IsRequired {
		b.logger.Warn("required approval stage has no approver",
			zap.String("ticket_id", ticketID),
			zap.String("stage_id", stage.ID),
			zap.String("stage", stage.Name))
	}
	return approverID, nil
}

// notifyApprover asks the approver of a pending request for a decision.
func notifyApprover(ctx context.Context, notifier Notifier, logger *zap.Logger, ticket *domain.Ticket, next domain.StagedRequest) {
	if next.Request.ApproverID == nil {
		logger.Warn("next approval stage has no approver",
			zap.String("ticket_id", ticket.ID),
			zap.String("stage", next.Stage.Name))
		return
	}
	if notifier == nil {
		return
	}
	notifier.Notify(ctx, domain.Notification{
		UserID:   *next.Request.ApproverID,
		Type:     domain.NotificationApprovalRequested,
		Title:    "Approval requested",
		Message:  fmt.Sprintf("Ticket %q is waiting for your approval at stage %q.", ticket.Title, next.Stage.Name),
		TicketID: &ticket.ID,
	})
}
