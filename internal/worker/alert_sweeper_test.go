package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/maintenance-service/internal/alerts"
)

type stubSource struct {
	mu        sync.Mutex
	report    alerts.Report
	err       error
	evaluated int
	published int
}

func (s *stubSource) EvaluateAlerts(context.Context) (*alerts.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.evaluated++
	if s.err != nil {
		return nil, s.err
	}
	report := s.report
	return &report, nil
}

func (s *stubSource) PublishAlerts(context.Context, alerts.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.published++
}

func (s *stubSource) counts() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.evaluated, s.published
}

func TestSweepOncePublishesOnlyNonEmptyReports(t *testing.T) {
	source := &stubSource{}
	sweeper := NewAlertSweeper(source, time.Minute, zap.NewNop())

	if _, err := sweeper.SweepOnce(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if _, published := source.counts(); published != 0 {
		t.Fatalf("empty report should not be published")
	}

	source.report = alerts.Report{OutOfStock: []alerts.Item{{Code: "BRG-1"}}}
	if _, err := sweeper.SweepOnce(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if _, published := source.counts(); published != 1 {
		t.Fatalf("expected one publish, got %d", published)
	}
}

func TestSweepOnceReturnsErrors(t *testing.T) {
	source := &stubSource{err: errors.New("store down")}
	if _, err := NewAlertSweeper(source, time.Minute, nil).SweepOnce(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestRunStopsWithContext(t *testing.T) {
	source := &stubSource{}
	sweeper := NewAlertSweeper(source, 5*time.Millisecond, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		sweeper.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for {
		if evaluated, _ := source.counts(); evaluated >= 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("sweeper never ran")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
