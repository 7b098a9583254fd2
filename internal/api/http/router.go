package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-workflow/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-workflow/internal/auth"
	"github.com/spec-kit/helpdesk-workflow/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Tickets        *handlers.TicketsHandler
	Approvals      *handlers.ApprovalsHandler
	Rules          *handlers.RulesHandler
	Notifications  *handlers.NotificationsHandler
	AuthMiddleware *auth.AuthMiddleware
	// RateLimit guards mutating routes. Nil disables limiting.
	RateLimit fiber.Handler
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	app.Get("/health/metrics", cfg.Health.Metrics)

	api := app.Group("/api", cfg.AuthMiddleware.Handle)

	limited := func(h fiber.Handler) []fiber.Handler {
		if cfg.RateLimit == nil {
			return []fiber.Handler{h}
		}
		return []fiber.Handler{cfg.RateLimit, h}
	}

	tickets := api.Group("/tickets")
	tickets.Get("/", cfg.Tickets.ListTickets)
	tickets.Post("/", limited(cfg.Tickets.CreateTicket)...)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Get("/:id/history", cfg.Tickets.ListHistory)
	tickets.Get("/:id/approvals", cfg.Tickets.ListApprovals)

	approvals := api.Group("/approvals")
	approvals.Post("/:id/approve", limited(cfg.Approvals.Approve)...)
	approvals.Post("/:id/reject", limited(cfg.Approvals.Reject)...)
	approvals.Post("/:id/need-more-info", limited(cfg.Approvals.NeedMoreInfo)...)
	approvals.Post("/:id/resubmit", limited(cfg.Approvals.Resubmit)...)

	rules := api.Group("/assignment-rules", auth.RequireRole(domain.UserRoleAgent, domain.UserRoleAdmin))
	rules.Get("/match", cfg.Rules.Match)

	notifications := api.Group("/notifications")
	notifications.Get("/", cfg.Notifications.List)
	notifications.Post("/:id/read", limited(cfg.Notifications.MarkAsRead)...)
}
