// Package memstore keeps every repository in process memory. It backs the
// service when no Postgres DSN is configured and is the fixture store for tests.
// Each call reads or writes one record atomically; there are no cross-record
// transactions, matching the guarantees the workflow engine is written against.
package memstore

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
	"github.com/spec-kit/helpdesk-workflow/internal/repository"
)

// Store holds all records.
type Store struct {
	mu sync.RWMutex

	tickets       map[string]domain.Ticket
	stages        map[string]domain.ApprovalStage
	requests      map[string]domain.ApprovalRequest
	rules         map[string]domain.AssignmentRule
	teams         map[string]domain.Team
	members       map[string][]domain.TeamMember
	users         map[string]domain.User
	history       []historyRow
	notifications []domain.Notification
	seq           int64
	now           func() time.Time
}

type historyRow struct {
	seq   int64
	entry domain.TicketHistory
}

// New returns an empty store.
func New() *Store {
	return &Store{
		tickets:  make(map[string]domain.Ticket),
		stages:   make(map[string]domain.ApprovalStage),
		requests: make(map[string]domain.ApprovalRequest),
		rules:    make(map[string]domain.AssignmentRule),
		teams:    make(map[string]domain.Team),
		members:  make(map[string][]domain.TeamMember),
		users:    make(map[string]domain.User),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Tickets returns the ticket repository view.
func (s *Store) Tickets() repository.TicketRepository { return &ticketRepo{s} }

// Stages returns the approval stage repository view.
func (s *Store) Stages() repository.ApprovalStageRepository { return &stageRepo{s} }

// Requests returns the approval request repository view.
func (s *Store) Requests() repository.ApprovalRequestRepository { return &requestRepo{s} }

// Rules returns the assignment rule repository view.
func (s *Store) Rules() repository.AssignmentRuleRepository { return &ruleRepo{s} }

// Teams returns the team repository view.
func (s *Store) Teams() repository.TeamRepository { return &teamRepo{s} }

// Users returns the user repository view.
func (s *Store) Users() repository.UserRepository { return &userRepo{s} }

// History returns the ticket history repository view.
func (s *Store) History() repository.TicketHistoryRepository { return &historyRepo{s} }

// Notifications returns the notification repository view.
func (s *Store) Notifications() repository.NotificationRepository { return &notificationRepo{s} }

// PutUser inserts or replaces a user.
func (s *Store) PutUser(user domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = s.now()
	}
	s.users[user.ID] = user
}

// PutTeam inserts or replaces a team.
func (s *Store) PutTeam(team domain.Team) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if team.CreatedAt.IsZero() {
		team.CreatedAt = s.now()
		team.UpdatedAt = team.CreatedAt
	}
	s.teams[team.ID] = team
}

// AddTeamMember appends a membership row.
func (s *Store) AddTeamMember(member domain.TeamMember) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if member.Role == "" {
		member.Role = domain.TeamRoleMember
	}
	s.members[member.TeamID] = append(s.members[member.TeamID], member)
}

// PutStage inserts or replaces an approval stage.
func (s *Store) PutStage(stage domain.ApprovalStage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stage.ID == "" {
		stage.ID = uuid.NewString()
	}
	if stage.CreatedAt.IsZero() {
		stage.CreatedAt = s.now()
	}
	s.stages[stage.ID] = stage
}

// PutRule inserts or replaces an assignment rule.
func (s *Store) PutRule(rule domain.AssignmentRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = s.now()
		rule.UpdatedAt = rule.CreatedAt
	}
	s.rules[rule.ID] = rule
}

func sortedValues[V any](m map[string]V, less func(a, b V) bool) []V {
	out := make([]V, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func paginate[V any](items []V, limit, offset int) []V {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
