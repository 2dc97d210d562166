package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/spec-kit/maintenance-service/internal/domain"
	"github.com/spec-kit/maintenance-service/internal/repository"
)

// scriptedStore replays one error per WithinTx call.
type scriptedStore struct {
	repository.Store
	results []error
	calls   int
}

func (s *scriptedStore) WithinTx(_ context.Context, _ repository.TxFunc) error {
	s.calls++
	if s.calls > len(s.results) {
		return nil
	}
	return s.results[s.calls-1]
}

func fastRetry(attempts uint) RetryPolicy {
	return RetryPolicy{MaxAttempts: attempts, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestRunnerRetriesConflicts(t *testing.T) {
	conflict := fmt.Errorf("%w: ticket locked", domain.ErrConcurrencyConflict)
	store := &scriptedStore{results: []error{conflict, conflict}}
	r := newRunner(store, fastRetry(3), zap.NewNop(), nil)

	if err := r.run(context.Background(), "approve", nil); err != nil {
		t.Fatalf("expected success on third attempt, got %v", err)
	}
	if store.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", store.calls)
	}
}

func TestRunnerGivesUpAfterMaxAttempts(t *testing.T) {
	conflict := fmt.Errorf("%w: ticket locked", domain.ErrConcurrencyConflict)
	store := &scriptedStore{results: []error{conflict, conflict, conflict, conflict}}
	core, logs := observer.New(zapcore.WarnLevel)
	r := newRunner(store, fastRetry(2), zap.New(core), nil)

	err := r.run(context.Background(), "start", nil)
	if !errors.Is(err, domain.ErrConcurrencyConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if store.calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", store.calls)
	}
	if logs.FilterMessage("operation failed").Len() != 1 {
		t.Fatalf("expected one failure log, got %d", logs.Len())
	}
}

func TestRunnerDoesNotRetryDomainErrors(t *testing.T) {
	store := &scriptedStore{results: []error{&domain.InsufficientStockError{MaterialID: "m1"}}}
	core, logs := observer.New(zapcore.WarnLevel)
	r := newRunner(store, fastRetry(5), zap.New(core), nil)

	err := r.run(context.Background(), "issue_material", nil)
	if domain.KindOf(err) != domain.KindInsufficientStock {
		t.Fatalf("expected insufficient stock, got %v", err)
	}
	if store.calls != 1 {
		t.Fatalf("expected a single attempt, got %d", store.calls)
	}
	if logs.Len() != 0 {
		t.Fatalf("domain errors should not be logged as failures, got %d entries", logs.Len())
	}
}

func TestRunnerStopsOnCancelledContext(t *testing.T) {
	conflict := fmt.Errorf("%w: ticket locked", domain.ErrConcurrencyConflict)
	store := &scriptedStore{results: []error{conflict, conflict, conflict}}
	r := newRunner(store, RetryPolicy{MaxAttempts: 3, InitialInterval: time.Second, MaxInterval: time.Second}, zap.NewNop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := r.run(ctx, "hold", nil); err == nil {
		t.Fatal("expected an error for a cancelled context")
	}
	if store.calls > 1 {
		t.Fatalf("expected no retries after cancellation, got %d attempts", store.calls)
	}
}
