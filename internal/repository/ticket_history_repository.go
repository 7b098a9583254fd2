package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
)

// TicketHistoryRepository stores audit entries. Entries are never updated or deleted.
type TicketHistoryRepository interface {
	// Create appends history. history.CreatedAt must be set by the caller.
	Create(ctx context.Context, history *domain.TicketHistory) error
	// ListByTicket returns newest entries first; equal timestamps come back newest insert first.
	ListByTicket(ctx context.Context, ticketID string, limit, offset int) ([]domain.TicketHistory, error)
}

type ticketHistoryRepository struct {
	pool *pgxpool.Pool
}

// NewTicketHistoryRepository builds repository.
func NewTicketHistoryRepository(pool *pgxpool.Pool) TicketHistoryRepository {
	return &ticketHistoryRepository{pool: pool}
}

func (r *ticketHistoryRepository) Create(ctx context.Context, history *domain.TicketHistory) error {
	oldValue, newValue, err := domain.EncodeHistoryChange(history.Change)
	if err != nil {
		return err
	}
	const query = `
        INSERT INTO ticket_history (ticket_id, user_id, action, old_value, new_value, created_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id`
	return r.pool.QueryRow(ctx, query,
		history.TicketID,
		history.UserID,
		history.Change.Action(),
		oldValue,
		newValue,
		history.CreatedAt,
	).Scan(&history.ID)
}

func (r *ticketHistoryRepository) ListByTicket(ctx context.Context, ticketID string, limit, offset int) ([]domain.TicketHistory, error) {
	limit, offset = normalizePage(limit, offset, 100)
	const query = `
        SELECT id, ticket_id, user_id, action, old_value, new_value, created_at
        FROM ticket_history WHERE ticket_id=$1
        ORDER BY created_at DESC, seq DESC
        LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, ticketID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.TicketHistory
	for rows.Next() {
		var (
			history  domain.TicketHistory
			action   string
			oldValue []byte
			newValue []byte
		)
		if err := rows.Scan(
			&history.ID,
			&history.TicketID,
			&history.UserID,
			&action,
			&oldValue,
			&newValue,
			&history.CreatedAt,
		); err != nil {
			return nil, err
		}
		change, err := domain.DecodeHistoryChange(domain.HistoryAction(action), oldValue, newValue)
		if err != nil {
			return nil, err
		}
		history.Change = change
		result = append(result, history)
	}
	return result, rows.Err()
}
