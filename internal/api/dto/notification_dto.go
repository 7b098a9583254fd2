package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
)

// NotificationResponse describes one notification.
type NotificationResponse struct {
	ID        string                  `json:"id"`
	Type      domain.NotificationType `json:"type"`
	Title     string                  `json:"title"`
	Message   string                  `json:"message"`
	TicketID  *string                 `json:"ticket_id"`
	Read      bool                    `json:"read"`
	CreatedAt time.Time               `json:"created_at"`
}

// NewNotificationResponse maps a notification.
func NewNotificationResponse(n domain.Notification) NotificationResponse {
	return NotificationResponse{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Message:   n.Message,
		TicketID:  n.TicketID,
		Read:      n.Read,
		CreatedAt: n.CreatedAt,
	}
}
