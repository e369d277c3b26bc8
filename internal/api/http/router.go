package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/spec-kit/sla-escalation-service/internal/api/http/handlers"
	"github.com/spec-kit/sla-escalation-service/internal/auth"
	"github.com/spec-kit/sla-escalation-service/internal/domain"
	"github.com/spec-kit/sla-escalation-service/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Staff          *handlers.StaffHandler
	SLA            *handlers.SLAHandler
	Tickets        *handlers.TicketsHandler
	Escalations    *handlers.EscalationsHandler
	Notifications  *handlers.NotificationsHandler
	AuthMiddleware *auth.AuthMiddleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	app.Post("/auth/staff/login", cfg.Staff.Login)

	authenticated := func(extra ...fiber.Handler) []fiber.Handler {
		return append([]fiber.Handler{cfg.AuthMiddleware.Handle, auth.RequireAnyRole()}, extra...)
	}
	staffOnly := auth.RequireStaffRole()
	admins := auth.RequireStaffRole(domain.StaffRoleAdmin)
	serviceOrSupervisor := auth.RequireServiceOrStaffRole(domain.StaffRoleSupervisor, domain.StaffRoleAdmin)
	serviceOrStaff := auth.RequireServiceOrStaffRole()

	staff := app.Group("/staff", authenticated(staffOnly)...)
	staff.Get("/me", cfg.Staff.Me)
	staff.Patch("/me/duty", cfg.Staff.SetDuty)

	admin := app.Group("/admin", authenticated(admins)...)
	admin.Post("/staff", cfg.Staff.CreateStaff)
	admin.Get("/staff", cfg.Staff.ListStaff)
	admin.Put("/staff/:id", cfg.Staff.UpdateStaff)
	admin.Post("/sla/scan", cfg.SLA.Scan)

	sla := app.Group("/sla/configs", authenticated()...)
	sla.Get("/", serviceOrStaff, cfg.SLA.ListConfigs)
	sla.Get("/:priority", serviceOrStaff, cfg.SLA.GetConfig)
	sla.Get("/:priority/resolve", serviceOrStaff, cfg.SLA.ResolveConfig)
	sla.Put("/:priority", admins, cfg.SLA.UpsertConfig)
	sla.Delete("/:priority", admins, cfg.SLA.DeleteConfig)

	tickets := app.Group("/tickets", authenticated(serviceOrStaff)...)
	tickets.Post("/", cfg.Tickets.OpenTicket)
	tickets.Get("/:id", cfg.Tickets.GetTicket)
	tickets.Post("/:id/first-response", cfg.Tickets.RecordFirstResponse)
	tickets.Post("/:id/close", cfg.Tickets.CloseTicket)
	tickets.Post("/:id/priority", cfg.Tickets.ChangePriority)

	conversations := app.Group("/conversations", authenticated(serviceOrStaff)...)
	conversations.Get("/:id/tickets", cfg.Tickets.ListConversationTickets)
	conversations.Post("/:id/reopen", cfg.Tickets.Reopen)
	conversations.Post("/:id/inbound", cfg.Tickets.InboundMessage)

	escalations := app.Group("/escalations", authenticated()...)
	escalations.Post("/", serviceOrSupervisor, cfg.Escalations.Enqueue)
	escalations.Get("/", serviceOrStaff, cfg.Escalations.List)
	escalations.Get("/:id", serviceOrStaff, cfg.Escalations.Get)
	escalations.Post("/:id/accept", staffOnly, cfg.Escalations.Accept)
	escalations.Post("/:id/transfer", serviceOrStaff, cfg.Escalations.Transfer)
	escalations.Post("/:id/resolve", serviceOrStaff, cfg.Escalations.Resolve)
	escalations.Post("/:id/abandon", serviceOrStaff, cfg.Escalations.Abandon)
	escalations.Post("/:id/expire", serviceOrSupervisor, cfg.Escalations.Expire)

	notifications := app.Group("/notifications", authenticated(staffOnly)...)
	notifications.Get("/", cfg.Notifications.List)
	notifications.Get("/unread-count", cfg.Notifications.UnreadCount)
	notifications.Post("/read-all", cfg.Notifications.MarkAllRead)
	notifications.Post("/dismiss-all", cfg.Notifications.DismissAll)
	notifications.Post("/:id/read", cfg.Notifications.MarkRead)
	notifications.Post("/:id/dismiss", cfg.Notifications.Dismiss)
}
