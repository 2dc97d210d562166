package worker

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type countingRegistrar struct{ calls int }

func (r *countingRegistrar) RegisterHandlers() { r.calls++ }

func TestBackgroundStartRegistersAndStops(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	registrar := &countingRegistrar{}
	source := &stubSource{}
	ctx, cancel := context.WithCancel(context.Background())

	done := Background{
		Notifications: registrar,
		Sweeper:       NewAlertSweeper(source, 5*time.Millisecond, zap.NewNop()),
		Logger:        zap.New(core),
	}.Start(ctx)

	if registrar.calls != 1 {
		t.Fatalf("RegisterHandlers called %d times", registrar.calls)
	}
	deadline := time.After(2 * time.Second)
	for {
		if evaluated, _ := source.counts(); evaluated >= 1 {
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
		t.Fatal("background workers did not stop")
	}
	if logs.FilterMessage("background workers stopped").Len() != 1 {
		t.Fatalf("missing stop log, got %v", logs.All())
	}
}

func TestBackgroundStartWithoutJobs(t *testing.T) {
	select {
	case <-Background{}.Start(context.Background()):
	case <-time.After(time.Second):
		t.Fatal("empty background did not finish")
	}
}
