package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-escalation-service/internal/api/dto"
	"github.com/spec-kit/sla-escalation-service/internal/domain"
	"github.com/spec-kit/sla-escalation-service/internal/service"
)

// SLAHandler exposes deadline configuration and manual scans.
type SLAHandler struct {
	configs *service.SLAConfigService
	scanner *service.SLAScanner
}

// NewSLAHandler constructs handler.
func NewSLAHandler(configs *service.SLAConfigService, scanner *service.SLAScanner) *SLAHandler {
	return &SLAHandler{configs: configs, scanner: scanner}
}

// ListConfigs GET /sla/configs.
func (h *SLAHandler) ListConfigs(c *fiber.Ctx) error {
	configs, err := h.configs.List(c.UserContext())
	if err != nil {
		return err
	}
	resp := make([]dto.SLAConfigResponse, 0, len(configs))
	for i := range configs {
		resp = append(resp, slaConfigResponse(&configs[i]))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// GetConfig GET /sla/configs/:priority.
func (h *SLAHandler) GetConfig(c *fiber.Ctx) error {
	cfg, err := h.configs.Get(c.UserContext(), domain.TicketPriority(c.Params("priority")))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": slaConfigResponse(cfg)})
}

// ResolveConfig GET /sla/configs/:priority/resolve applies the medium fallback.
func (h *SLAHandler) ResolveConfig(c *fiber.Ctx) error {
	cfg, err := h.configs.Resolve(c.UserContext(), domain.TicketPriority(c.Params("priority")))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": slaConfigResponse(cfg)})
}

// UpsertConfig PUT /sla/configs/:priority.
func (h *SLAHandler) UpsertConfig(c *fiber.Ctx) error {
	var req dto.SLAConfigRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	cfg, err := h.configs.Upsert(c.UserContext(), domain.TicketPriority(c.Params("priority")), req.FirstResponseMinutes, req.ResolutionMinutes)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": slaConfigResponse(cfg)})
}

// DeleteConfig DELETE /sla/configs/:priority.
func (h *SLAHandler) DeleteConfig(c *fiber.Ctx) error {
	if err := h.configs.Delete(c.UserContext(), domain.TicketPriority(c.Params("priority"))); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Scan POST /admin/sla/scan runs one scanner pass.
func (h *SLAHandler) Scan(c *fiber.Ctx) error {
	summary, err := h.scanner.Scan(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": summary})
}

func slaConfigResponse(cfg *domain.SLAConfig) dto.SLAConfigResponse {
	return dto.SLAConfigResponse{
		Priority:             cfg.Priority,
		FirstResponseMinutes: cfg.FirstResponseMinutes,
		ResolutionMinutes:    cfg.ResolutionMinutes,
		UpdatedAt:            cfg.UpdatedAt,
	}
}
