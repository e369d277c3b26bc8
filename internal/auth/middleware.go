package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/sla-escalation-service/internal/domain"
	"github.com/spec-kit/sla-escalation-service/internal/repository"
	apperrors "github.com/spec-kit/sla-escalation-service/pkg/util/errorutil"
)

const (
	principalKey     = "auth_principal"
	serviceKeyHeader = "X-Service-Key"
)

// Principal represents the authenticated caller.
type Principal struct {
	SubjectType domain.SubjectType
	Staff       *domain.StaffMember
	Role        *domain.StaffRole
}

// StaffID returns the staff id or an empty string for service principals.
func (p *Principal) StaffID() string {
	if p == nil || p.Staff == nil {
		return ""
	}
	return p.Staff.ID
}

// AuthMiddleware validates bearer tokens or the integration key and loads principals.
type AuthMiddleware struct {
	tokens     *TokenManager
	staff      repository.StaffRepository
	serviceKey string
}

// NewAuthMiddleware constructs middleware. An empty serviceKey disables
// integration access.
func NewAuthMiddleware(tokens *TokenManager, staff repository.StaffRepository, serviceKey string) *AuthMiddleware {
	return &AuthMiddleware{tokens: tokens, staff: staff, serviceKey: serviceKey}
}

// Handle enforces authentication for protected routes.
func (m *AuthMiddleware) Handle(c *fiber.Ctx) error {
	if key := c.Get(serviceKeyHeader); key != "" {
		if m.serviceKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(m.serviceKey)) != 1 {
			return apperrors.NewUnauthorized("invalid service key")
		}
		c.Locals(principalKey, &Principal{SubjectType: domain.SubjectTypeService})
		return c.Next()
	}

	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return apperrors.NewUnauthorized("missing authorization header")
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return apperrors.NewUnauthorized("invalid authorization header")
	}

	principal, err := m.Authenticate(c.UserContext(), parts[1])
	if err != nil {
		return err
	}

	c.Locals(principalKey, principal)
	return c.Next()
}

// Authenticate resolves a staff token into a principal. The websocket gateway
// uses it for query-string tokens.
func (m *AuthMiddleware) Authenticate(ctx context.Context, token string) (*Principal, error) {
	claims, err := m.tokens.ParseToken(token)
	if err != nil {
		return nil, apperrors.NewUnauthorized("invalid token")
	}
	if claims.Subject != domain.SubjectTypeStaff {
		return nil, apperrors.NewUnauthorized("unknown subject")
	}

	staff, err := m.staff.GetByID(ctx, claims.SubjectID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewUnauthorized("staff not found")
		}
		return nil, apperrors.MapError(err)
	}
	if !staff.Active {
		return nil, apperrors.NewUnauthorized("staff inactive")
	}
	return &Principal{SubjectType: domain.SubjectTypeStaff, Staff: staff, Role: &staff.Role}, nil
}

// PrincipalFromContext retrieves the authenticated entity.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
