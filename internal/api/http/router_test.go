package http

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-workflow/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-workflow/internal/auth"
	"github.com/spec-kit/helpdesk-workflow/internal/domain"
	"github.com/spec-kit/helpdesk-workflow/internal/events"
	"github.com/spec-kit/helpdesk-workflow/internal/observability"
	"github.com/spec-kit/helpdesk-workflow/internal/ratelimit"
	"github.com/spec-kit/helpdesk-workflow/internal/repository/memstore"
	"github.com/spec-kit/helpdesk-workflow/internal/service"
)

type testServer struct {
	app     *fiber.App
	store   *memstore.Store
	tokens  *auth.TokenManager
	metrics *observability.Metrics
}

func newTestServer(t *testing.T, limiter ratelimit.Limiter) *testServer {
	t.Helper()
	logger := zap.NewNop()
	store := memstore.New()
	dispatcher := events.NewInMemoryDispatcher()
	audit := service.NewAuditRecorder(store.History())
	notifier := service.NewNotificationService(store.Notifications(), nil, "", logger)

	assignment := service.NewAssignmentService(service.AssignmentDependencies{
		RuleRepo:   store.Rules(),
		TeamRepo:   store.Teams(),
		TicketRepo: store.Tickets(),
		Audit:      audit,
		Notifier:   notifier,
		Dispatcher: dispatcher,
	})
	chain := service.NewApprovalChainBuilder(service.ApprovalChainDependencies{
		StageRepo:   store.Stages(),
		RequestRepo: store.Requests(),
		Resolver:    assignment,
		Audit:       audit,
		Notifier:    notifier,
	})
	approvals := service.NewApprovalService(service.ApprovalDependencies{
		TicketRepo:  store.Tickets(),
		RequestRepo: store.Requests(),
		StageRepo:   store.Stages(),
		UserRepo:    store.Users(),
		Audit:       audit,
		Notifier:    notifier,
		Dispatcher:  dispatcher,
	})
	tickets := service.NewTicketService(service.TicketDependencies{
		TicketRepo:  store.Tickets(),
		RequestRepo: store.Requests(),
		Audit:       audit,
		Assignment:  assignment,
		Chain:       chain,
		Dispatcher:  dispatcher,
	})

	tokens := auth.NewTokenManager("test-secret", 5)
	metrics := observability.NewMetrics()

	var rateLimit fiber.Handler
	if limiter != nil {
		rateLimit = RateLimitMiddleware(limiter, logger, metrics)
	}

	app := fiber.New()
	RegisterMiddlewares(app, logger, metrics, time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("helpdesk-workflow", "test", metrics),
		Tickets:        handlers.NewTicketsHandler(tickets, approvals),
		Approvals:      handlers.NewApprovalsHandler(approvals),
		Rules:          handlers.NewRulesHandler(assignment),
		Notifications:  handlers.NewNotificationsHandler(notifier),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, store.Users()),
		RateLimit:      rateLimit,
	})

	store.PutUser(domain.User{ID: "owner", Name: "Olivia Owner", Role: domain.UserRoleRequester})
	store.PutUser(domain.User{ID: "manager", Name: "Max Manager", Role: domain.UserRoleAgent})
	store.PutUser(domain.User{ID: "outsider", Name: "Oscar Outsider", Role: domain.UserRoleRequester})
	store.PutStage(domain.ApprovalStage{
		ID:         "stage-1",
		FormID:     "purchase",
		Name:       "Manager",
		Order:      1,
		IsRequired: true,
		Approver:   domain.AgentTarget{AgentID: "manager"},
	})

	return &testServer{app: app, store: store, tokens: tokens, metrics: metrics}
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path, userID string, body any) (*http.Response, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	if userID != "" {
		user, err := s.store.Users().GetByID(req.Context(), userID)
		require.NoError(t, err)
		token, _, err := s.tokens.GenerateToken(user.ID, user.Role)
		require.NoError(t, err)
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp, env
}

func decodeData[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

type ticketBody struct {
	ID             string `json:"id"`
	Status         string `json:"status"`
	ApprovalStatus string `json:"approval_status"`
	Priority       string `json:"priority"`
}

type approvalsBody struct {
	ApprovalStatus string `json:"approval_status"`
	Requests       []struct {
		ID         string  `json:"id"`
		StageName  string  `json:"stage_name"`
		ApproverID *string `json:"approver_id"`
		Status     string  `json:"status"`
	} `json:"requests"`
}

func purchaseTicket() map[string]any {
	return map[string]any{
		"title":    "New laptop",
		"category": "IT",
		"type":     "service_request",
		"form_id":  "purchase",
	}
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, nil)

	resp, _ := s.do(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = s.do(t, http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, env := s.do(t, http.MethodGet, "/health/metrics", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	snapshot := decodeData[observability.Snapshot](t, env)
	assert.NotEmpty(t, snapshot.Requests)
}

func TestAPIRequiresBearerToken(t *testing.T) {
	s := newTestServer(t, nil)

	resp, env := s.do(t, http.MethodPost, "/api/tickets", "", purchaseTicket())

	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	s := newTestServer(t, nil)

	resp, env := s.do(t, http.MethodGet, "/nowhere", "", nil)

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.NotNil(t, env.Error)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestCreateTicketValidation(t *testing.T) {
	s := newTestServer(t, nil)

	resp, env := s.do(t, http.MethodPost, "/api/tickets", "owner", map[string]any{
		"category": "IT",
		"type":     "bogus",
	})

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
	assert.Contains(t, env.Error.Details, "title")
	assert.Contains(t, env.Error.Details, "type")
}

func TestApprovalFlowOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)

	resp, env := s.do(t, http.MethodPost, "/api/tickets", "owner", purchaseTicket())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeData[ticketBody](t, env)
	assert.Equal(t, "need_approval", created.Status)
	assert.Equal(t, "pending", created.ApprovalStatus)
	assert.Equal(t, "medium", created.Priority)

	resp, env = s.do(t, http.MethodGet, "/api/tickets/"+created.ID+"/approvals", "owner", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	chain := decodeData[approvalsBody](t, env)
	require.Len(t, chain.Requests, 1)
	request := chain.Requests[0]
	assert.Equal(t, "Manager", request.StageName)
	require.NotNil(t, request.ApproverID)
	assert.Equal(t, "manager", *request.ApproverID)

	resp, env = s.do(t, http.MethodPost, "/api/approvals/"+request.ID+"/approve", "outsider", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHORIZED_ACTOR", env.Error.Code)

	resp, _ = s.do(t, http.MethodPost, "/api/approvals/"+request.ID+"/approve", "manager", map[string]any{"comments": "ok"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, env = s.do(t, http.MethodPost, "/api/approvals/"+request.ID+"/reject", "manager", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_STATE", env.Error.Code)

	resp, env = s.do(t, http.MethodGet, "/api/tickets/"+created.ID, "owner", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	ticket := decodeData[ticketBody](t, env)
	assert.Equal(t, "in_progress", ticket.Status)
	assert.Equal(t, "approved", ticket.ApprovalStatus)

	resp, env = s.do(t, http.MethodGet, "/api/tickets/"+created.ID+"/history", "owner", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	history := decodeData[[]struct {
		Action string `json:"action"`
	}](t, env)
	require.NotEmpty(t, history)
	assert.Equal(t, "status_changed", history[0].Action)
	assert.Equal(t, "ticket_created", history[len(history)-1].Action)

	resp, _ = s.do(t, http.MethodGet, "/api/tickets/"+created.ID, "outsider", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestListTicketsOverHTTP(t *testing.T) {
	s := newTestServer(t, nil)

	resp, env := s.do(t, http.MethodPost, "/api/tickets", "owner", purchaseTicket())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeData[ticketBody](t, env)

	resp, env = s.do(t, http.MethodGet, "/api/tickets", "owner", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	own := decodeData[[]ticketBody](t, env)
	require.Len(t, own, 1)
	assert.Equal(t, created.ID, own[0].ID)

	resp, env = s.do(t, http.MethodGet, "/api/tickets", "outsider", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decodeData[[]ticketBody](t, env))

	resp, env = s.do(t, http.MethodGet, "/api/tickets?scope=all", "outsider", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHORIZED_ACTOR", env.Error.Code)

	resp, env = s.do(t, http.MethodGet, "/api/tickets?scope=all&status=need_approval,in_progress", "manager", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeData[[]ticketBody](t, env), 1)

	resp, env = s.do(t, http.MethodGet, "/api/tickets?scope=all&status=closed", "manager", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decodeData[[]ticketBody](t, env))

	resp, env = s.do(t, http.MethodGet, "/api/tickets?scope=nobody", "owner", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
}

func TestNeedMoreInfoRequiresComments(t *testing.T) {
	s := newTestServer(t, nil)

	_, env := s.do(t, http.MethodPost, "/api/tickets", "owner", purchaseTicket())
	created := decodeData[ticketBody](t, env)
	_, env = s.do(t, http.MethodGet, "/api/tickets/"+created.ID+"/approvals", "owner", nil)
	requestID := decodeData[approvalsBody](t, env).Requests[0].ID

	resp, env := s.do(t, http.MethodPost, "/api/approvals/"+requestID+"/need-more-info", "manager", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.NotNil(t, env.Error)
	assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)

	resp, _ = s.do(t, http.MethodPost, "/api/approvals/"+requestID+"/need-more-info", "manager", map[string]any{"comments": "Which model?"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, env = s.do(t, http.MethodPost, "/api/approvals/"+requestID+"/resubmit", "owner", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var resubmitted struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &resubmitted))
	assert.Equal(t, "pending", resubmitted.Status)
}

func TestNotificationsForApprover(t *testing.T) {
	s := newTestServer(t, nil)
	_, _ = s.do(t, http.MethodPost, "/api/tickets", "owner", purchaseTicket())

	resp, env := s.do(t, http.MethodGet, "/api/notifications", "manager", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	items := decodeData[[]struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Read bool   `json:"read"`
	}](t, env)
	require.Len(t, items, 1)
	assert.Equal(t, "approval_requested", items[0].Type)
	assert.False(t, items[0].Read)

	resp, _ = s.do(t, http.MethodPost, "/api/notifications/"+items[0].ID+"/read", "manager", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = s.do(t, http.MethodPost, "/api/notifications/"+items[0].ID+"/read", "owner", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRuleMatchRequiresStaff(t *testing.T) {
	s := newTestServer(t, nil)
	s.store.PutRule(domain.AssignmentRule{
		ID:         "rule-it",
		Name:       "IT desk",
		Priority:   1,
		Conditions: domain.RuleConditions{Categories: []string{"IT"}},
		AssignTo:   domain.AgentTarget{AgentID: "manager"},
		IsActive:   true,
	})
	path := "/api/assignment-rules/match?category=IT&priority=high&type=incident"

	resp, env := s.do(t, http.MethodGet, path, "owner", nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.NotNil(t, env.Error)

	resp, env = s.do(t, http.MethodGet, path, "manager", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var match struct {
		Matched    bool    `json:"matched"`
		RuleID     string  `json:"rule_id"`
		AssigneeID *string `json:"assignee_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &match))
	assert.True(t, match.Matched)
	assert.Equal(t, "rule-it", match.RuleID)
	require.NotNil(t, match.AssigneeID)
	assert.Equal(t, "manager", *match.AssigneeID)

	resp, env = s.do(t, http.MethodGet, "/api/assignment-rules/match?category=HR&priority=high&type=incident", "manager", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.Unmarshal(env.Data, &match))
	assert.False(t, match.Matched)
}

func TestRateLimitedWrites(t *testing.T) {
	s := newTestServer(t, ratelimit.NewMemoryLimiter(1, time.Minute))

	resp, _ := s.do(t, http.MethodPost, "/api/tickets", "owner", purchaseTicket())
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("X-RateLimit-Limit"))
	assert.Equal(t, "0", resp.Header.Get("X-RateLimit-Remaining"))

	resp, env := s.do(t, http.MethodPost, "/api/tickets", "owner", purchaseTicket())
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.NotNil(t, env.Error)
	assert.Equal(t, "RATE_LIMITED", env.Error.Code)
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderRetryAfter))
	assert.Equal(t, int64(1), s.metrics.Snapshot().RateLimited)

	// Reads are not limited.
	resp, _ = s.do(t, http.MethodGet, "/api/notifications", "owner", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Other callers have their own window.
	resp, _ = s.do(t, http.MethodPost, "/api/tickets", "outsider", purchaseTicket())
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}
