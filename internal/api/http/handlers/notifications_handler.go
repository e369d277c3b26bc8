package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-escalation-service/internal/api/dto"
	"github.com/spec-kit/sla-escalation-service/internal/domain"
	"github.com/spec-kit/sla-escalation-service/internal/service"
)

// NotificationsHandler serves the caller's escalation notifications.
type NotificationsHandler struct {
	service *service.NotificationService
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(notificationService *service.NotificationService) *NotificationsHandler {
	return &NotificationsHandler{service: notificationService}
}

// List GET /notifications.
func (h *NotificationsHandler) List(c *fiber.Ctx) error {
	staff, err := requireStaff(c)
	if err != nil {
		return err
	}
	filter := service.NotificationListFilter{
		IncludeRead:      parseBoolQuery(c, "include_read", false),
		IncludeDismissed: parseBoolQuery(c, "include_dismissed", false),
	}
	filter.Limit, filter.Offset = parsePaging(c)

	items, err := h.service.List(c.UserContext(), staff.ID, filter)
	if err != nil {
		return err
	}
	resp := make([]dto.NotificationResponse, 0, len(items))
	for i := range items {
		resp = append(resp, notificationResponse(&items[i]))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// UnreadCount GET /notifications/unread-count.
func (h *NotificationsHandler) UnreadCount(c *fiber.Ctx) error {
	staff, err := requireStaff(c)
	if err != nil {
		return err
	}
	count, err := h.service.CountUnread(c.UserContext(), staff.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"unread": count}})
}

// MarkRead POST /notifications/:id/read.
func (h *NotificationsHandler) MarkRead(c *fiber.Ctx) error {
	staff, err := requireStaff(c)
	if err != nil {
		return err
	}
	if err := h.service.MarkRead(c.UserContext(), staff.ID, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "read"}})
}

// MarkAllRead POST /notifications/read-all.
func (h *NotificationsHandler) MarkAllRead(c *fiber.Ctx) error {
	staff, err := requireStaff(c)
	if err != nil {
		return err
	}
	updated, err := h.service.MarkAllRead(c.UserContext(), staff.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"updated": updated}})
}

// Dismiss POST /notifications/:id/dismiss.
func (h *NotificationsHandler) Dismiss(c *fiber.Ctx) error {
	staff, err := requireStaff(c)
	if err != nil {
		return err
	}
	if err := h.service.Dismiss(c.UserContext(), staff.ID, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"status": "dismissed"}})
}

// DismissAll POST /notifications/dismiss-all.
func (h *NotificationsHandler) DismissAll(c *fiber.Ctx) error {
	staff, err := requireStaff(c)
	if err != nil {
		return err
	}
	updated, err := h.service.DismissAll(c.UserContext(), staff.ID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"updated": updated}})
}

func notificationResponse(n *domain.EscalationNotification) dto.NotificationResponse {
	return dto.NotificationResponse{
		ID:               n.ID,
		EscalationID:     n.EscalationID,
		NotificationType: n.NotificationType,
		ReadAt:           n.ReadAt,
		DismissedAt:      n.DismissedAt,
		CreatedAt:        n.CreatedAt,
	}
}
