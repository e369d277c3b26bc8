package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-escalation-service/internal/api/dto"
	"github.com/spec-kit/sla-escalation-service/internal/domain"
	"github.com/spec-kit/sla-escalation-service/internal/service"
	apperrors "github.com/spec-kit/sla-escalation-service/pkg/util/errorutil"
)

// TicketsHandler manages ticket lifecycle endpoints.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// OpenTicket POST /tickets.
func (h *TicketsHandler) OpenTicket(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.OpenTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Priority == "" {
		req.Priority = domain.FallbackPriority
	}
	ticket, err := h.service.Open(c.UserContext(), actorOf(principal), service.TicketOpenInput{
		ConversationID: req.ConversationID,
		Priority:       req.Priority,
		Category:       req.Category,
		Metadata:       req.Metadata,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	details, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketDetail(details)})
}

// RecordFirstResponse POST /tickets/:id/first-response.
func (h *TicketsHandler) RecordFirstResponse(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.RecordFirstResponse(c.UserContext(), actorOf(principal), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// CloseTicket POST /tickets/:id/close.
func (h *TicketsHandler) CloseTicket(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.Close(c.UserContext(), actorOf(principal), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ChangePriority POST /tickets/:id/priority.
func (h *TicketsHandler) ChangePriority(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.ChangePriorityRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.ChangePriority(c.UserContext(), actorOf(principal), c.Params("id"), req.Priority)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// ListConversationTickets GET /conversations/:id/tickets.
func (h *TicketsHandler) ListConversationTickets(c *fiber.Ctx) error {
	tickets, err := h.service.ListByConversation(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	items := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, ticketResponse(&tickets[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Reopen POST /conversations/:id/reopen.
func (h *TicketsHandler) Reopen(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.ReopenTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.PreviousTicketID == "" {
		return apperrors.NewValidationError("previous_ticket_id required", nil)
	}
	ticket, err := h.service.Reopen(c.UserContext(), actorOf(principal), c.Params("id"), req.PreviousTicketID, req.Priority)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": ticketResponse(ticket)})
}

// InboundMessage POST /conversations/:id/inbound.
func (h *TicketsHandler) InboundMessage(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.InboundMessageRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}
	ticket, created, err := h.service.HandleInboundMessage(c.UserContext(), actorOf(principal), c.Params("id"), req.Priority)
	if err != nil {
		return err
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return c.Status(status).JSON(fiber.Map{"data": dto.InboundMessageResponse{
		Ticket:  ticketResponse(ticket),
		Created: created,
	}})
}

func ticketResponse(ticket *domain.Ticket) dto.TicketResponse {
	return dto.TicketResponse{
		ID:              ticket.ID,
		ConversationID:  ticket.ConversationID,
		Sequence:        ticket.Sequence,
		Priority:        ticket.Priority,
		Status:          ticket.Status,
		Category:        ticket.Category,
		Metadata:        ticket.Metadata,
		CreatedAt:       ticket.CreatedAt,
		UpdatedAt:       ticket.UpdatedAt,
		FirstResponseAt: ticket.FirstResponseAt,
		SLAViolatedAt:   ticket.SLAViolatedAt,
		ClosedAt:        ticket.ClosedAt,
	}
}

func ticketDetail(details *service.TicketDetails) dto.TicketDetailResponse {
	resp := dto.TicketDetailResponse{
		TicketResponse: ticketResponse(details.Ticket),
		Violations:     make([]dto.ViolationResponse, 0, len(details.Violations)),
		Events:         make([]dto.TicketEventResponse, 0, len(details.Events)),
	}
	for _, v := range details.Violations {
		resp.Violations = append(resp.Violations, dto.ViolationResponse{
			ID:            v.ID,
			ViolationType: v.ViolationType,
			ExpectedAt:    v.ExpectedAt,
			ViolatedAt:    v.ViolatedAt,
		})
	}
	for _, e := range details.Events {
		resp.Events = append(resp.Events, dto.TicketEventResponse{
			ID:               e.ID,
			EventType:        e.EventType,
			PreviousTicketID: e.PreviousTicketID,
			PreviousSequence: e.PreviousSequence,
			Payload:          e.Payload,
			CreatedAt:        e.CreatedAt,
		})
	}
	return resp
}
