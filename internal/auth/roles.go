package auth

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/maintenance-service/internal/domain"
)

var roleCapabilities = map[domain.OperatorRole][]domain.Capability{
	domain.OperatorRoleTechnician:  nil,
	domain.OperatorRoleStorekeeper: {domain.CapabilityManageStock, domain.CapabilityManageCatalog},
	domain.OperatorRoleSupervisor:  {domain.CapabilityApproveTickets, domain.CapabilitySuperviseWork, domain.CapabilityManageStock},
	domain.OperatorRoleManager:     allCapabilities(),
	domain.OperatorRoleAdmin:       allCapabilities(),
}

func allCapabilities() []domain.Capability {
	return []domain.Capability{
		domain.CapabilityApproveTickets,
		domain.CapabilitySuperviseWork,
		domain.CapabilityManageStock,
		domain.CapabilityManageCatalog,
	}
}

// ValidRole reports whether role is a known operator role.
func ValidRole(role domain.OperatorRole) bool {
	_, ok := roleCapabilities[role]
	return ok
}

// CapabilitiesFor returns the capabilities granted to role.
func CapabilitiesFor(role domain.OperatorRole) []domain.Capability {
	return append([]domain.Capability(nil), roleCapabilities[role]...)
}

// ActorFor builds the core actor for an authenticated operator.
func ActorFor(operator *domain.Operator) domain.Actor {
	return domain.Actor{ID: operator.ID, Role: operator.Role, Capabilities: CapabilitiesFor(operator.Role)}
}

// RequireCapability ensures the actor holds capability.
func RequireCapability(capability domain.Capability) fiber.Handler {
	return func(c *fiber.Ctx) error {
		actor, ok := ActorFromContext(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		if !actor.Can(capability) {
			return fiber.NewError(http.StatusForbidden, "missing capability "+string(capability))
		}
		return c.Next()
	}
}

// RequireRole ensures the actor has one of the allowed roles.
func RequireRole(allowed ...domain.OperatorRole) fiber.Handler {
	allowedSet := make(map[domain.OperatorRole]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[role] = struct{}{}
	}

	return func(c *fiber.Ctx) error {
		actor, ok := ActorFromContext(c)
		if !ok {
			return fiber.NewError(http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
		}
		if _, exists := allowedSet[actor.Role]; !exists {
			return fiber.NewError(http.StatusForbidden, "insufficient role")
		}
		return c.Next()
	}
}
