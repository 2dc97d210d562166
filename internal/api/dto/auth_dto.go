package dto

import (
	"time"

	"github.com/spec-kit/maintenance-service/internal/domain"
)

// LoginRequest payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries a bearer token.
type LoginResponse struct {
	AccessToken string           `json:"access_token"`
	ExpiresAt   time.Time        `json:"expires_at"`
	Operator    OperatorResponse `json:"operator"`
}

// CreateOperatorRequest payload.
type CreateOperatorRequest struct {
	Name     string              `json:"name"`
	Email    string              `json:"email"`
	Password string              `json:"password"`
	Role     domain.OperatorRole `json:"role"`
}

// OperatorResponse represents a staff account without its credentials.
type OperatorResponse struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Email        string              `json:"email"`
	Role         domain.OperatorRole `json:"role"`
	Capabilities []domain.Capability `json:"capabilities"`
	Active       bool                `json:"active"`
}
