package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/spec-kit/maintenance-service/internal/domain"
	"github.com/spec-kit/maintenance-service/internal/repository"
)

// Operators is an in-memory repository.OperatorRepository.
type Operators struct {
	mu   sync.RWMutex
	byID map[string]domain.Operator
}

var _ repository.OperatorRepository = (*Operators)(nil)

// NewOperators returns an empty operator directory.
func NewOperators() *Operators {
	return &Operators{byID: make(map[string]domain.Operator)}
}

func (o *Operators) Create(_ context.Context, operator *domain.Operator) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	for _, existing := range o.byID {
		if strings.EqualFold(existing.Email, operator.Email) {
			return domain.NewValidationError("email", "email already registered")
		}
	}
	o.byID[operator.ID] = *operator
	return nil
}

func (o *Operators) GetByID(_ context.Context, id string) (*domain.Operator, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	operator, ok := o.byID[id]
	if !ok {
		return nil, domain.NewNotFound("operator", id)
	}
	return &operator, nil
}

func (o *Operators) GetByEmail(_ context.Context, email string) (*domain.Operator, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	for _, operator := range o.byID {
		if strings.EqualFold(operator.Email, email) {
			op := operator
			return &op, nil
		}
	}
	return nil, domain.NewNotFound("operator", email)
}
