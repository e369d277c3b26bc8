package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-escalation-service/internal/api/dto"
	"github.com/spec-kit/sla-escalation-service/internal/domain"
	"github.com/spec-kit/sla-escalation-service/internal/service"
	apperrors "github.com/spec-kit/sla-escalation-service/pkg/util/errorutil"
)

// EscalationsHandler exposes the human-agent queue.
type EscalationsHandler struct {
	service *service.EscalationService
}

// NewEscalationsHandler constructs handler.
func NewEscalationsHandler(escalationService *service.EscalationService) *EscalationsHandler {
	return &EscalationsHandler{service: escalationService}
}

// Enqueue POST /escalations.
func (h *EscalationsHandler) Enqueue(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.EnqueueEscalationRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.TTLSeconds < 0 {
		return apperrors.NewValidationError("ttl_seconds must not be negative", nil)
	}
	item, err := h.service.Enqueue(c.UserContext(), actorOf(principal), service.EnqueueInput{
		ConversationID: req.ConversationID,
		Priority:       req.Priority,
		Reason:         req.Reason,
		SectorID:       req.SectorID,
		ExpiresAt:      req.ExpiresAt,
		TTL:            time.Duration(req.TTLSeconds) * time.Second,
		Metadata:       req.Metadata,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": escalationResponse(item)})
}

// List GET /escalations?status=pending,assigned&sector_id=&assigned_to=.
func (h *EscalationsHandler) List(c *fiber.Ctx) error {
	filter := service.EscalationListFilter{
		SectorID:   optionalQuery(c, "sector_id"),
		AssignedTo: optionalQuery(c, "assigned_to"),
	}
	if raw := c.Query("status"); raw != "" {
		for _, status := range strings.Split(raw, ",") {
			if status = strings.TrimSpace(status); status != "" {
				filter.Statuses = append(filter.Statuses, domain.EscalationStatus(status))
			}
		}
	}
	filter.Limit, filter.Offset = parsePaging(c)

	items, err := h.service.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	resp := make([]dto.EscalationResponse, 0, len(items))
	for i := range items {
		resp = append(resp, escalationResponse(&items[i]))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// Get GET /escalations/:id.
func (h *EscalationsHandler) Get(c *fiber.Ctx) error {
	item, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": escalationResponse(item)})
}

// Accept POST /escalations/:id/accept. The caller becomes the assignee.
func (h *EscalationsHandler) Accept(c *fiber.Ctx) error {
	staff, err := requireStaff(c)
	if err != nil {
		return err
	}
	item, err := h.service.Accept(c.UserContext(), c.Params("id"), staff.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": escalationResponse(item)})
}

// Transfer POST /escalations/:id/transfer. Agents may only hand over items
// they hold; supervisors and admins may move anyone's.
func (h *EscalationsHandler) Transfer(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.TransferEscalationRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	from := req.FromUserID
	if staff := principal.Staff; staff != nil {
		if from == "" {
			from = staff.ID
		}
		if from != staff.ID && staff.Role == domain.StaffRoleAgent {
			return apperrors.NewForbidden("agents may only transfer their own escalations")
		}
	}
	if from == "" {
		return apperrors.NewValidationError("from_user_id required", nil)
	}
	item, err := h.service.Transfer(c.UserContext(), actorOf(principal), c.Params("id"), from, req.ToUserID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": escalationResponse(item)})
}

// Resolve POST /escalations/:id/resolve.
func (h *EscalationsHandler) Resolve(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	var req dto.ResolveEscalationRequest
	if len(c.Body()) > 0 {
		if err := parseBody(c, &req); err != nil {
			return err
		}
	}
	item, err := h.service.Resolve(c.UserContext(), actorOf(principal), c.Params("id"), req.Notes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": escalationResponse(item)})
}

// Abandon POST /escalations/:id/abandon.
func (h *EscalationsHandler) Abandon(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	item, err := h.service.Abandon(c.UserContext(), actorOf(principal), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": escalationResponse(item)})
}

// Expire POST /escalations/:id/expire.
func (h *EscalationsHandler) Expire(c *fiber.Ctx) error {
	principal, err := requirePrincipal(c)
	if err != nil {
		return err
	}
	item, err := h.service.Expire(c.UserContext(), actorOf(principal), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": escalationResponse(item)})
}

func escalationResponse(item *domain.EscalationQueueItem) dto.EscalationResponse {
	return dto.EscalationResponse{
		ID:              item.ID,
		ConversationID:  item.ConversationID,
		SectorID:        item.SectorID,
		Priority:        item.Priority,
		Reason:          item.Reason,
		Status:          item.Status,
		AssignedTo:      item.AssignedTo,
		AssignedAt:      item.AssignedAt,
		ResolvedAt:      item.ResolvedAt,
		ResolvedBy:      item.ResolvedBy,
		ResolutionNotes: item.ResolutionNotes,
		Metadata:        item.Metadata,
		CreatedAt:       item.CreatedAt,
		UpdatedAt:       item.UpdatedAt,
		ExpiresAt:       item.ExpiresAt,
	}
}
