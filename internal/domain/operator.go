package domain

import "time"

// OperatorRole enumerates plant staff roles.
type OperatorRole string

const (
	OperatorRoleTechnician  OperatorRole = "TECHNICIAN"
	OperatorRoleStorekeeper OperatorRole = "STOREKEEPER"
	OperatorRoleSupervisor  OperatorRole = "SUPERVISOR"
	OperatorRoleManager     OperatorRole = "MANAGER"
	OperatorRoleAdmin       OperatorRole = "ADMIN"
)

// Operator models a member of the maintenance staff who can sign in.
type Operator struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         OperatorRole
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
