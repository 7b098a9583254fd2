package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-workflow/internal/domain"
	"github.com/spec-kit/helpdesk-workflow/internal/events"
	"github.com/spec-kit/helpdesk-workflow/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-workflow/pkg/util"
)

// AssignmentService matches tickets against assignment rules and resolves who owns them.
type AssignmentService struct {
	rules      repository.AssignmentRuleRepository
	teams      repository.TeamRepository
	tickets    repository.TicketRepository
	audit      *AuditRecorder
	notifier   Notifier
	dispatcher events.Dispatcher
	clock      Clock
	logger     *zap.Logger
}

// AssignmentDependencies bundles repositories.
type AssignmentDependencies struct {
	RuleRepo   repository.AssignmentRuleRepository
	TeamRepo   repository.TeamRepository
	TicketRepo repository.TicketRepository
	Audit      *AuditRecorder
	Notifier   Notifier
	Dispatcher events.Dispatcher
	Clock      Clock
	Logger     *zap.Logger
}

// NewAssignmentService creates the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	clock := deps.Clock
	if clock == nil {
		clock = RealClock()
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		rules:      deps.RuleRepo,
		teams:      deps.TeamRepo,
		tickets:    deps.TicketRepo,
		audit:      deps.Audit,
		notifier:   deps.Notifier,
		dispatcher: deps.Dispatcher,
		clock:      clock,
		logger:     logger,
	}
}

// FindMatchingRule returns the first active rule, in priority order, whose conditions
// accept the ticket attributes. It returns nil when no rule matches.
func (s *AssignmentService) FindMatchingRule(ctx context.Context, category string, priority domain.TicketPriority, ticketType domain.TicketType) (*domain.AssignmentRule, error) {
	rules, err := s.rules.ListActive(ctx)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	sort.SliceStable(rules, func(i, j int) bool {
		a, b := rules[i], rules[j]
		if a.Priority != b.Priority {
			return a.Priority < b.Priority
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	for i := range rules {
		if !rules[i].IsActive {
			continue
		}
		if rules[i].Conditions.Matches(category, priority, ticketType) {
			rule := rules[i]
			return &rule, nil
		}
	}
	return nil, nil
}

// ResolveAssignee turns an assignment target into a concrete user id.
// A nil id means nobody could be resolved.
func (s *AssignmentService) ResolveAssignee(ctx context.Context, target domain.AssignTarget) (*string, error) {
	switch t := target.(type) {
	case domain.AgentTarget:
		if t.AgentID == "" {
			return nil, nil
		}
		id := t.AgentID
		return &id, nil
	case domain.TeamTarget:
		team, err := s.teams.GetByID(ctx, t.TeamID)
		if err != nil {
			return nil, s.mapTeamErr(err, t.TeamID)
		}
		if team.LeaderID != nil && *team.LeaderID != "" {
			id := *team.LeaderID
			return &id, nil
		}
		members, err := s.teams.ListMembers(ctx, t.TeamID)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		if len(members) == 0 {
			return nil, nil
		}
		id := members[0].UserID
		return &id, nil
	case domain.RoundRobinTarget:
		if _, err := s.teams.GetByID(ctx, t.TeamID); err != nil {
			return nil, s.mapTeamErr(err, t.TeamID)
		}
		return s.leastLoadedMember(ctx, t.TeamID)
	case nil:
		return nil, nil
	default:
		return nil, apperrors.NewInternalError(fmt.Errorf("unsupported assign target %T", target))
	}
}

// AutoAssign applies the first matching rule to a freshly created ticket. It writes the
// assignee, records history at the given time and notifies the assignee. The returned
// rule is nil when nothing was assigned.
func (s *AssignmentService) AutoAssign(ctx context.Context, ticket *domain.Ticket, at time.Time) (*domain.AssignmentRule, error) {
	rule, err := s.FindMatchingRule(ctx, ticket.Category, ticket.Priority, ticket.Type)
	if err != nil {
		return nil, err
	}
	if rule == nil {
		s.logger.Debug("no assignment rule matched",
			zap.String("ticket_id", ticket.ID),
			zap.String("category", ticket.Category))
		return nil, nil
	}
	assignee, err := s.ResolveAssignee(ctx, rule.AssignTo)
	if err != nil {
		return nil, err
	}
	if assignee == nil {
		s.logger.Info("assignment rule resolved nobody",
			zap.String("ticket_id", ticket.ID),
			zap.String("rule_id", rule.ID))
		return nil, nil
	}

	oldAssignee := ticket.AssignedTo
	ticket.AssignedTo = assignee
	ticket.UpdatedAt = at
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	if err := s.audit.Record(ctx, ticket.ID, nil, domain.AutoAssigned{
		RuleID:      rule.ID,
		RuleName:    rule.Name,
		OldAssignee: oldAssignee,
		NewAssignee: *assignee,
	}, at); err != nil {
		return nil, apperrors.MapError(err)
	}
	if s.notifier != nil {
		s.notifier.Notify(ctx, domain.Notification{
			UserID:   *assignee,
			Type:     domain.NotificationTicketAssigned,
			Title:    "New ticket assigned",
			Message:  fmt.Sprintf("Ticket %q was assigned to you by rule %q.", ticket.Title, rule.Name),
			TicketID: &ticket.ID,
		})
	}
	s.publishAssignmentEvent(ctx, ticket.ID, events.TicketAssignedPayload{
		AssignedTo: *assignee,
		RuleID:     rule.ID,
		RuleName:   rule.Name,
	})
	return rule, nil
}

func (s *AssignmentService) leastLoadedMember(ctx context.Context, teamID string) (*string, error) {
	members, err := s.teams.ListMembers(ctx, teamID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	var (
		chosen *string
		best   int
	)
	for _, member := range members {
		count, err := s.tickets.CountOpenByAssignee(ctx, member.UserID)
		if err != nil {
			return nil, apperrors.MapError(err)
		}
		if chosen == nil || count < best {
			id := member.UserID
			chosen = &id
			best = count
		}
	}
	return chosen, nil
}

func (s *AssignmentService) mapTeamErr(err error, teamID string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NewNotFound("team", map[string]any{"team_id": teamID})
	}
	return apperrors.MapError(err)
}

func (s *AssignmentService) publishAssignmentEvent(ctx context.Context, ticketID string, payload events.TicketAssignedPayload) {
	if s.dispatcher == nil {
		return
	}
	event := events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventTicketAssigned,
		TicketID:  ticketID,
		Timestamp: s.clock.Now(),
		Payload:   payload,
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed", zap.String("event", string(event.Type)), zap.Error(err))
	}
}
