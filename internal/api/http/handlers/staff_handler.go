package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-escalation-service/internal/api/dto"
	"github.com/spec-kit/sla-escalation-service/internal/domain"
	"github.com/spec-kit/sla-escalation-service/internal/service"
	apperrors "github.com/spec-kit/sla-escalation-service/pkg/util/errorutil"
)

// StaffHandler exposes staff/auth endpoints.
type StaffHandler struct {
	authService  *service.AuthService
	staffService *service.StaffService
}

// NewStaffHandler constructs handler.
func NewStaffHandler(authService *service.AuthService, staffService *service.StaffService) *StaffHandler {
	return &StaffHandler{authService: authService, staffService: staffService}
}

// Login handles POST /auth/staff/login.
func (h *StaffHandler) Login(c *fiber.Ctx) error {
	var req dto.StaffLoginRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("email and password required", nil)
	}

	staff, token, exp, err := h.authService.LoginStaff(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"data": fiber.Map{
			"staff": staffResponse(staff),
			"auth":  dto.AuthResponse{Token: token, ExpiresAt: exp},
		},
	})
}

// Me handles GET /staff/me.
func (h *StaffHandler) Me(c *fiber.Ctx) error {
	staff, err := requireStaff(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": staffResponse(staff)})
}

// SetDuty handles PATCH /staff/me/duty.
func (h *StaffHandler) SetDuty(c *fiber.Ctx) error {
	staff, err := requireStaff(c)
	if err != nil {
		return err
	}
	var req dto.DutyRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.OnDuty == nil {
		return apperrors.NewValidationError("on_duty required", nil)
	}
	updated, err := h.staffService.SetOnDuty(c.UserContext(), staff.ID, *req.OnDuty)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": staffResponse(updated)})
}

// CreateStaff handles POST /admin/staff.
func (h *StaffHandler) CreateStaff(c *fiber.Ctx) error {
	admin, err := requireStaff(c)
	if err != nil {
		return err
	}
	var req dto.StaffCreateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	if req.Name == "" || req.Email == "" || req.Password == "" {
		return apperrors.NewValidationError("name, email, password required", nil)
	}
	if req.Role == "" {
		req.Role = domain.StaffRoleAgent
	}
	staff, err := h.staffService.CreateStaffMember(c.UserContext(), admin, service.StaffInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		SectorID: req.SectorID,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": staffResponse(staff)})
}

// ListStaff handles GET /admin/staff.
func (h *StaffHandler) ListStaff(c *fiber.Ctx) error {
	admin, err := requireStaff(c)
	if err != nil {
		return err
	}
	filters := service.StaffListFilters{
		SectorID: optionalQuery(c, "sector_id"),
		OnDuty:   parseOptionalBoolQuery(c, "on_duty"),
		Active:   parseOptionalBoolQuery(c, "active"),
	}
	if roleStr := c.Query("role"); roleStr != "" {
		role := domain.StaffRole(roleStr)
		filters.Role = &role
	}
	filters.Limit, filters.Offset = parsePaging(c)

	list, err := h.staffService.ListStaffMembers(c.UserContext(), admin, filters)
	if err != nil {
		return err
	}
	resp := make([]dto.StaffResponse, 0, len(list))
	for i := range list {
		resp = append(resp, staffResponse(&list[i]))
	}
	return c.JSON(fiber.Map{"data": resp})
}

// UpdateStaff handles PUT /admin/staff/:id.
func (h *StaffHandler) UpdateStaff(c *fiber.Ctx) error {
	admin, err := requireStaff(c)
	if err != nil {
		return err
	}
	var req dto.StaffUpdateRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	updated, err := h.staffService.UpdateStaffMember(c.UserContext(), admin, c.Params("id"), service.StaffInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
		SectorID: req.SectorID,
		Active:   req.Active,
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": staffResponse(updated)})
}

func staffResponse(staff *domain.StaffMember) dto.StaffResponse {
	return dto.StaffResponse{
		ID:       staff.ID,
		Name:     staff.Name,
		Email:    staff.Email,
		Role:     staff.Role,
		SectorID: staff.SectorID,
		OnDuty:   staff.OnDuty,
		Active:   staff.Active,
	}
}
