package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
)

// ApprovalStageRepository reads approval templates.
type ApprovalStageRepository interface {
	GetByID(ctx context.Context, id string) (*domain.ApprovalStage, error)
	// ListByForm returns the stages of a form ordered by their sequence position.
	ListByForm(ctx context.Context, formID string) ([]domain.ApprovalStage, error)
}

type approvalStageRepository struct {
	pool *pgxpool.Pool
}

// NewApprovalStageRepository builds repository.
func NewApprovalStageRepository(pool *pgxpool.Pool) ApprovalStageRepository {
	return &approvalStageRepository{pool: pool}
}

const stageColumns = `id, form_id, name, stage_order, is_required, approver_type, approver_id, created_at`

func (r *approvalStageRepository) GetByID(ctx context.Context, id string) (*domain.ApprovalStage, error) {
	stage, err := scanStage(r.pool.QueryRow(ctx, `SELECT `+stageColumns+` FROM approval_stages WHERE id=$1`, id))
	if err != nil {
		return nil, mapNoRows(err)
	}
	return stage, nil
}

func (r *approvalStageRepository) ListByForm(ctx context.Context, formID string) ([]domain.ApprovalStage, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+stageColumns+` FROM approval_stages WHERE form_id=$1 ORDER BY stage_order ASC, id ASC`, formID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ApprovalStage
	for rows.Next() {
		stage, err := scanStage(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *stage)
	}
	return result, rows.Err()
}

func scanStage(row pgx.Row) (*domain.ApprovalStage, error) {
	var (
		stage        domain.ApprovalStage
		approverType string
		approverID   string
	)
	if err := row.Scan(
		&stage.ID,
		&stage.FormID,
		&stage.Name,
		&stage.Order,
		&stage.IsRequired,
		&approverType,
		&approverID,
		&stage.CreatedAt,
	); err != nil {
		return nil, err
	}
	target, err := domain.NewAssignTarget(domain.AssignKind(approverType), approverID)
	if err != nil {
		return nil, err
	}
	stage.Approver = target
	return &stage, nil
}
