package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-escalation-service/internal/domain"
)

// RequireStaffRole ensures the staff principal has one of the allowed roles.
func RequireStaffRole(allowed ...domain.StaffRole) fiber.Handler {
	allowedSet := roleSet(allowed)

	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if !ok || principal.SubjectType != domain.SubjectTypeStaff || principal.Staff == nil {
			return fiber.NewError(http.StatusForbidden, "staff role required")
		}
		if len(allowedSet) == 0 {
			return c.Next()
		}
		if _, exists := allowedSet[principal.Staff.Role]; !exists {
			return fiber.NewError(http.StatusForbidden, "insufficient role")
		}
		return c.Next()
	}
}

// RequireServiceOrStaffRole admits integrations holding the service key and
// staff with one of the allowed roles.
func RequireServiceOrStaffRole(allowed ...domain.StaffRole) fiber.Handler {
	staffCheck := RequireStaffRole(allowed...)
	return func(c *fiber.Ctx) error {
		principal, ok := PrincipalFromContext(c)
		if ok && principal.SubjectType == domain.SubjectTypeService {
			return c.Next()
		}
		return staffCheck(c)
	}
}

// RequireAnyRole ensures caller is authenticated.
func RequireAnyRole() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, ok := PrincipalFromContext(c); !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		return c.Next()
	}
}

func roleSet(roles []domain.StaffRole) map[domain.StaffRole]struct{} {
	set := make(map[domain.StaffRole]struct{}, len(roles))
	for _, role := range roles {
		set[role] = struct{}{}
	}
	return set
}
