package domain

// Capability is a permission granted to an actor by the caller.
type Capability string

const (
	CapabilityApproveTickets Capability = "approve_tickets"
	CapabilitySuperviseWork  Capability = "supervise_work"
	CapabilityManageStock    Capability = "manage_stock"
	CapabilityManageCatalog  Capability = "manage_catalog"
)

// Actor is the already-authorized identity on whose behalf an operation runs.
type Actor struct {
	ID           string
	Role         OperatorRole
	Capabilities []Capability
}

// Can reports whether the actor holds the capability.
func (a Actor) Can(c Capability) bool {
	for _, held := range a.Capabilities {
		if held == c {
			return true
		}
	}
	return false
}
