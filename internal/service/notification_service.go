package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
	"github.com/spec-kit/helpdesk-workflow/internal/events"
	"github.com/spec-kit/helpdesk-workflow/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-workflow/pkg/util"
)

//go:generate mockgen -destination=mock_service/notifier.go -package=mock_service . Notifier

// Notifier delivers best-effort notifications. Implementations must not fail the caller.
type Notifier interface {
	Notify(ctx context.Context, notification domain.Notification)
}

// NotificationService stores notifications and fans them out on a pub/sub channel.
type NotificationService struct {
	repo        repository.NotificationRepository
	broadcaster events.Broadcaster
	channel     string
	logger      *zap.Logger
}

// NewNotificationService creates the service. broadcaster may be nil.
func NewNotificationService(repo repository.NotificationRepository, broadcaster events.Broadcaster, channel string, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationService{
		repo:        repo,
		broadcaster: broadcaster,
		channel:     channel,
		logger:      logger,
	}
}

// Notify persists and broadcasts a notification. Failures are logged and dropped.
func (n *NotificationService) Notify(ctx context.Context, notification domain.Notification) {
	if notification.UserID == "" {
		return
	}
	if err := n.repo.Create(ctx, &notification); err != nil {
		n.logger.Warn("notification not stored",
			zap.String("user_id", notification.UserID),
			zap.String("type", string(notification.Type)),
			zap.Error(err))
		return
	}
	if n.broadcaster == nil || n.channel == "" {
		return
	}
	if err := n.broadcaster.PublishJSON(ctx, n.channel, notification); err != nil {
		n.logger.Warn("notification not broadcast",
			zap.String("notification_id", notification.ID),
			zap.String("channel", n.channel),
			zap.Error(err))
	}
}

// ListForUser returns the latest notifications of a user.
func (n *NotificationService) ListForUser(ctx context.Context, userID string, limit int) ([]domain.Notification, error) {
	items, err := n.repo.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return items, nil
}

// MarkAsRead toggles the read flag on one of the user's notifications.
func (n *NotificationService) MarkAsRead(ctx context.Context, userID, notificationID string) error {
	if err := n.repo.MarkAsRead(ctx, notificationID, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.NewNotFound("notification", map[string]any{"notification_id": notificationID})
		}
		return apperrors.MapError(err)
	}
	return nil
}
