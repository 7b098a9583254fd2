package domain

import "time"

// NotificationType tags what a notification is about.
type NotificationType string

const (
	NotificationTicketAssigned        NotificationType = "ticket_assigned"
	NotificationApprovalRequested     NotificationType = "approval_requested"
	NotificationApprovalApproved      NotificationType = "approval_approved"
	NotificationApprovalRejected      NotificationType = "approval_rejected"
	NotificationApprovalInfoRequested NotificationType = "approval_info_requested"
)

// Notification is an in-app message for a single user.
type Notification struct {
	ID        string           `json:"id" bson:"_id,omitempty"`
	UserID    string           `json:"user_id" bson:"user_id"`
	Type      NotificationType `json:"type" bson:"type"`
	Title     string           `json:"title" bson:"title"`
	Message   string           `json:"message" bson:"message"`
	TicketID  *string          `json:"ticket_id,omitempty" bson:"ticket_id,omitempty"`
	Read      bool             `json:"read" bson:"read"`
	CreatedAt time.Time        `json:"created_at" bson:"created_at"`
}
