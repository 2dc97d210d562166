package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/maintenance-service/internal/auth"
	"github.com/spec-kit/maintenance-service/internal/clock"
	"github.com/spec-kit/maintenance-service/internal/config"
	"github.com/spec-kit/maintenance-service/internal/domain"
	"github.com/spec-kit/maintenance-service/internal/repository"
	apperrors "github.com/spec-kit/maintenance-service/pkg/util"
)

// AuthService signs operators in and manages their accounts.
type AuthService struct {
	operators  repository.OperatorRepository
	tokenMgr   *auth.TokenManager
	bcryptCost int
	clock      clock.Clock
	logger     *zap.Logger
}

// OperatorDraft describes a new staff account.
type OperatorDraft struct {
	Name     string
	Email    string
	Password string
	Role     domain.OperatorRole
}

// LoginResult is a signed access token for an operator.
type LoginResult struct {
	Operator  domain.Operator
	Token     string
	ExpiresAt time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, operators repository.OperatorRepository, clk clock.Clock, logger *zap.Logger) *AuthService {
	if clk == nil {
		clk = clock.Real()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		operators:  operators,
		tokenMgr:   auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL()),
		bcryptCost: cfg.BcryptCost,
		clock:      clk,
		logger:     logger,
	}
}

// Login authenticates an operator by email and password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	operator, err := s.operators.GetByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if domain.KindOf(err) == domain.KindNotFound {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		return nil, err
	}
	if !operator.Active {
		return nil, apperrors.NewUnauthorized("operator inactive")
	}
	if err := auth.VerifyPassword(operator.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return nil, apperrors.NewUnauthorized("invalid credentials")
		}
		s.logger.Error("stored password hash unreadable", zap.String("operator_id", operator.ID), zap.Error(err))
		return nil, apperrors.NewUnauthorized("invalid credentials")
	}
	token, exp, err := s.tokenMgr.GenerateToken(operator.ID, operator.Role)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Operator: *operator, Token: token, ExpiresAt: exp}, nil
}

// CreateOperator registers a staff account.
func (s *AuthService) CreateOperator(ctx context.Context, draft OperatorDraft) (*domain.Operator, error) {
	draft.Name = strings.TrimSpace(draft.Name)
	draft.Email = strings.ToLower(strings.TrimSpace(draft.Email))
	switch {
	case draft.Name == "":
		return nil, domain.NewValidationError("name", "is required")
	case !strings.Contains(draft.Email, "@"):
		return nil, domain.NewValidationError("email", "must be a valid address")
	case !auth.ValidRole(draft.Role):
		return nil, domain.NewValidationError("role", "unknown role "+string(draft.Role))
	}

	hash, err := auth.HashPassword(draft.Password, s.bcryptCost)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	operator := &domain.Operator{
		ID:           uuid.NewString(),
		Name:         draft.Name,
		Email:        draft.Email,
		PasswordHash: hash,
		Role:         draft.Role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.operators.Create(ctx, operator); err != nil {
		return nil, err
	}
	return operator, nil
}

// SeedAdmin creates the bootstrap admin account when it does not exist yet.
// An empty password skips seeding.
func (s *AuthService) SeedAdmin(ctx context.Context, email, password string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil
	}
	if _, err := s.operators.GetByEmail(ctx, email); err == nil {
		return nil
	} else if domain.KindOf(err) != domain.KindNotFound {
		return err
	}
	operator, err := s.CreateOperator(ctx, OperatorDraft{Name: "Administrator", Email: email, Password: password, Role: domain.OperatorRoleAdmin})
	if err != nil {
		return err
	}
	s.logger.Info("seeded admin operator", zap.String("operator_id", operator.ID), zap.String("email", operator.Email))
	return nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}
