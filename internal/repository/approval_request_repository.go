package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
)

// ApprovalRequestRepository persists per-ticket approval requests.
type ApprovalRequestRepository interface {
	Create(ctx context.Context, request *domain.ApprovalRequest) error
	GetByID(ctx context.Context, id string) (*domain.ApprovalRequest, error)
	ListByTicket(ctx context.Context, ticketID string) ([]domain.ApprovalRequest, error)
	// Transition writes request only if its stored status still equals from.
	// It returns ErrStaleWrite when another writer got there first.
	Transition(ctx context.Context, request *domain.ApprovalRequest, from domain.RequestStatus) error
}

type approvalRequestRepository struct {
	pool *pgxpool.Pool
}

// NewApprovalRequestRepository builds repository.
func NewApprovalRequestRepository(pool *pgxpool.Pool) ApprovalRequestRepository {
	return &approvalRequestRepository{pool: pool}
}

const requestColumns = `id, ticket_id, stage_id, approver_id, status, comments, requested_at, responded_at, updated_at`

func (r *approvalRequestRepository) Create(ctx context.Context, request *domain.ApprovalRequest) error {
	const query = `
        INSERT INTO approval_requests (ticket_id, stage_id, approver_id, status, comments, requested_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, updated_at`
	return r.pool.QueryRow(ctx, query,
		request.TicketID,
		request.StageID,
		request.ApproverID,
		request.Status,
		request.Comments,
		request.RequestedAt,
	).Scan(&request.ID, &request.UpdatedAt)
}

func (r *approvalRequestRepository) GetByID(ctx context.Context, id string) (*domain.ApprovalRequest, error) {
	request, err := scanRequest(r.pool.QueryRow(ctx, `SELECT `+requestColumns+` FROM approval_requests WHERE id=$1`, id))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return request, nil
}

func (r *approvalRequestRepository) ListByTicket(ctx context.Context, ticketID string) ([]domain.ApprovalRequest, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+requestColumns+` FROM approval_requests WHERE ticket_id=$1 ORDER BY requested_at ASC, id ASC`, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ApprovalRequest
	for rows.Next() {
		request, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *request)
	}
	return result, rows.Err()
}

func (r *approvalRequestRepository) Transition(ctx context.Context, request *domain.ApprovalRequest, from domain.RequestStatus) error {
	const query = `
        UPDATE approval_requests SET status=$1, comments=$2, responded_at=$3, updated_at=NOW()
        WHERE id=$4 AND status=$5
        RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		request.Status,
		request.Comments,
		request.RespondedAt,
		request.ID,
		from,
	).Scan(&request.UpdatedAt)
	if err == nil {
		return nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return err
	}
	if _, getErr := r.GetByID(ctx, request.ID); getErr != nil {
		return getErr
	}
	return ErrStaleWrite
}

func scanRequest(row pgx.Row) (*domain.ApprovalRequest, error) {
	var request domain.ApprovalRequest
	if err := row.Scan(
		&request.ID,
		&request.TicketID,
		&request.StageID,
		&request.ApproverID,
		&request.Status,
		&request.Comments,
		&request.RequestedAt,
		&request.RespondedAt,
		&request.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &request, nil
}
