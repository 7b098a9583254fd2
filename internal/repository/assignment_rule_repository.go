package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
)

// AssignmentRuleRepository reads routing rules. Rule administration happens elsewhere.
type AssignmentRuleRepository interface {
	ListActive(ctx context.Context) ([]domain.AssignmentRule, error)
}

type assignmentRuleRepository struct {
	pool *pgxpool.Pool
}

// NewAssignmentRuleRepository builds repository.
func NewAssignmentRuleRepository(pool *pgxpool.Pool) AssignmentRuleRepository {
	return &assignmentRuleRepository{pool: pool}
}

func (r *assignmentRuleRepository) ListActive(ctx context.Context) ([]domain.AssignmentRule, error) {
	const query = `
        SELECT id, name, priority, categories, priorities, types, assign_type, assign_id, is_active, created_at, updated_at
        FROM assignment_rules WHERE is_active=TRUE`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.AssignmentRule
	for rows.Next() {
		var (
			rule       domain.AssignmentRule
			priorities []string
			types      []string
			assignType string
			assignID   string
		)
		if err := rows.Scan(
			&rule.ID,
			&rule.Name,
			&rule.Priority,
			&rule.Conditions.Categories,
			&priorities,
			&types,
			&assignType,
			&assignID,
			&rule.IsActive,
			&rule.CreatedAt,
			&rule.UpdatedAt,
		); err != nil {
			return nil, err
		}
		for _, p := range priorities {
			rule.Conditions.Priorities = append(rule.Conditions.Priorities, domain.TicketPriority(p))
		}
		for _, t := range types {
			rule.Conditions.Types = append(rule.Conditions.Types, domain.TicketType(t))
		}
		target, err := domain.NewAssignTarget(domain.AssignKind(assignType), assignID)
		if err != nil {
			return nil, err
		}
		rule.AssignTo = target
		result = append(result, rule)
	}
	return result, rows.Err()
}
