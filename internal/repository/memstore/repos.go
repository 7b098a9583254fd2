package memstore

import (
	"context"
	"slices"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
	"github.com/spec-kit/helpdesk-workflow/internal/repository"
)

type ticketRepo struct{ s *Store }

func (r *ticketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ticket.ID = uuid.NewString()
	ticket.CreatedAt = r.s.now()
	ticket.UpdatedAt = ticket.CreatedAt
	r.s.tickets[ticket.ID] = *ticket
	return nil
}

func (r *ticketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.tickets[ticket.ID]
	if !ok {
		return repository.ErrNotFound
	}
	ticket.CreatedAt = stored.CreatedAt
	ticket.CreatedBy = stored.CreatedBy
	ticket.FormID = stored.FormID
	ticket.UpdatedAt = r.s.now()
	r.s.tickets[ticket.ID] = *ticket
	return nil
}

func (r *ticketRepo) UpdateApprovalState(_ context.Context, ticketID string, from domain.ApprovalStatus, status domain.TicketStatus, approval domain.ApprovalStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.tickets[ticketID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.ApprovalStatus != from {
		return repository.ErrStaleWrite
	}
	stored.Status = status
	stored.ApprovalStatus = approval
	stored.UpdatedAt = r.s.now()
	r.s.tickets[ticketID] = stored
	return nil
}

func (r *ticketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ticket, ok := r.s.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &ticket, nil
}

func (r *ticketRepo) ListWithFilter(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	all := sortedValues(r.s.tickets, func(a, b domain.Ticket) bool { return a.UpdatedAt.After(b.UpdatedAt) })
	var matched []domain.Ticket
	for _, t := range all {
		if filter.CreatedBy != nil && t.CreatedBy != *filter.CreatedBy {
			continue
		}
		if filter.AssignedTo != nil && (t.AssignedTo == nil || *t.AssignedTo != *filter.AssignedTo) {
			continue
		}
		if filter.Category != nil && t.Category != *filter.Category {
			continue
		}
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, t.Status) {
			continue
		}
		if filter.CreatedFrom != nil && t.CreatedAt.Before(*filter.CreatedFrom) {
			continue
		}
		if filter.CreatedTo != nil && t.CreatedAt.After(*filter.CreatedTo) {
			continue
		}
		matched = append(matched, t)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	return paginate(matched, limit, filter.Offset), nil
}

func (r *ticketRepo) CountOpenByAssignee(_ context.Context, userID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	count := 0
	for _, t := range r.s.tickets {
		if t.AssignedTo != nil && *t.AssignedTo == userID && t.Status.IsOpen() {
			count++
		}
	}
	return count, nil
}

type stageRepo struct{ s *Store }

func (r *stageRepo) GetByID(_ context.Context, id string) (*domain.ApprovalStage, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	stage, ok := r.s.stages[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &stage, nil
}

func (r *stageRepo) ListByForm(_ context.Context, formID string) ([]domain.ApprovalStage, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.ApprovalStage
	for _, stage := range sortedValues(r.s.stages, func(a, b domain.ApprovalStage) bool {
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return a.ID < b.ID
	}) {
		if stage.FormID == formID {
			result = append(result, stage)
		}
	}
	return result, nil
}

type requestRepo struct{ s *Store }

func (r *requestRepo) Create(_ context.Context, request *domain.ApprovalRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	request.ID = uuid.NewString()
	request.UpdatedAt = r.s.now()
	r.s.requests[request.ID] = *request
	return nil
}

func (r *requestRepo) GetByID(_ context.Context, id string) (*domain.ApprovalRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	request, ok := r.s.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &request, nil
}

func (r *requestRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.ApprovalRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.ApprovalRequest
	for _, request := range sortedValues(r.s.requests, func(a, b domain.ApprovalRequest) bool {
		if !a.RequestedAt.Equal(b.RequestedAt) {
			return a.RequestedAt.Before(b.RequestedAt)
		}
		return a.ID < b.ID
	}) {
		if request.TicketID == ticketID {
			result = append(result, request)
		}
	}
	return result, nil
}

func (r *requestRepo) Transition(_ context.Context, request *domain.ApprovalRequest, from domain.RequestStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.requests[request.ID]
	if !ok {
		return repository.ErrNotFound
	}
	if stored.Status != from {
		return repository.ErrStaleWrite
	}
	stored.Status = request.Status
	stored.Comments = request.Comments
	stored.RespondedAt = request.RespondedAt
	stored.UpdatedAt = r.s.now()
	r.s.requests[request.ID] = stored
	request.UpdatedAt = stored.UpdatedAt
	return nil
}

type ruleRepo struct{ s *Store }

func (r *ruleRepo) ListActive(_ context.Context) ([]domain.AssignmentRule, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.AssignmentRule
	for _, rule := range r.s.rules {
		if rule.IsActive {
			result = append(result, rule)
		}
	}
	return result, nil
}

type teamRepo struct{ s *Store }

func (r *teamRepo) GetByID(_ context.Context, id string) (*domain.Team, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	team, ok := r.s.teams[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &team, nil
}

func (r *teamRepo) ListMembers(_ context.Context, teamID string) ([]domain.TeamMember, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	members := slices.Clone(r.s.members[teamID])
	slices.SortStableFunc(members, func(a, b domain.TeamMember) int {
		if c := a.JoinedAt.Compare(b.JoinedAt); c != 0 {
			return c
		}
		switch {
		case a.UserID < b.UserID:
			return -1
		case a.UserID > b.UserID:
			return 1
		}
		return 0
	})
	return members, nil
}

type userRepo struct{ s *Store }

func (r *userRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	user, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &user, nil
}

type historyRepo struct{ s *Store }

func (r *historyRepo) Create(_ context.Context, history *domain.TicketHistory) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.seq++
	history.ID = uuid.NewString()
	r.s.history = append(r.s.history, historyRow{seq: r.s.seq, entry: *history})
	return nil
}

func (r *historyRepo) ListByTicket(_ context.Context, ticketID string, limit, offset int) ([]domain.TicketHistory, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var rows []historyRow
	for _, row := range r.s.history {
		if row.entry.TicketID == ticketID {
			rows = append(rows, row)
		}
	}
	slices.SortFunc(rows, func(a, b historyRow) int {
		if c := b.entry.CreatedAt.Compare(a.entry.CreatedAt); c != 0 {
			return c
		}
		return int(b.seq - a.seq)
	})
	if limit <= 0 {
		limit = 100
	}
	rows = paginate(rows, limit, offset)
	result := make([]domain.TicketHistory, 0, len(rows))
	for _, row := range rows {
		result = append(result, row.entry)
	}
	return result, nil
}

type notificationRepo struct{ s *Store }

func (r *notificationRepo) Create(_ context.Context, notification *domain.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	notification.ID = uuid.NewString()
	notification.Read = false
	notification.CreatedAt = r.s.now()
	r.s.notifications = append(r.s.notifications, *notification)
	return nil
}

func (r *notificationRepo) ListByUser(_ context.Context, userID string, limit int) ([]domain.Notification, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.Notification
	for i := len(r.s.notifications) - 1; i >= 0; i-- {
		if r.s.notifications[i].UserID == userID {
			result = append(result, r.s.notifications[i])
		}
	}
	if limit <= 0 {
		limit = 50
	}
	return paginate(result, limit, 0), nil
}

func (r *notificationRepo) MarkAsRead(_ context.Context, id, userID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.notifications {
		if r.s.notifications[i].ID == id && r.s.notifications[i].UserID == userID {
			r.s.notifications[i].Read = true
			return nil
		}
	}
	return repository.ErrNotFound
}
