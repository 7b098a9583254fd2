package service

import (
	"context"
	"time"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
	"github.com/spec-kit/helpdesk-workflow/internal/repository"
)

// AuditRecorder appends ticket history. It does not validate or deduplicate;
// callers emit exactly one entry per change.
type AuditRecorder struct {
	history repository.TicketHistoryRepository
}

// NewAuditRecorder creates the recorder.
func NewAuditRecorder(history repository.TicketHistoryRepository) *AuditRecorder {
	return &AuditRecorder{history: history}
}

// Record appends one entry. userID is nil for system actions.
func (a *AuditRecorder) Record(ctx context.Context, ticketID string, userID *string, change domain.HistoryChange, at time.Time) error {
	return a.history.Create(ctx, &domain.TicketHistory{
		TicketID:  ticketID,
		UserID:    userID,
		Change:    change,
		CreatedAt: at,
	})
}

// ListByTicket returns a page of entries, newest first.
func (a *AuditRecorder) ListByTicket(ctx context.Context, ticketID string, limit, offset int) ([]domain.TicketHistory, error) {
	return a.history.ListByTicket(ctx, ticketID, limit, offset)
}
