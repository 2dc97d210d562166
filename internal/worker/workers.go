package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// HandlerRegistrar subscribes event handlers to the dispatcher.
type HandlerRegistrar interface {
	RegisterHandlers()
}

// Background holds the jobs that run alongside the API.
type Background struct {
	Notifications HandlerRegistrar
	Sweeper       *AlertSweeper
	Logger        *zap.Logger
}

// Start registers notification handlers, then runs the alert sweeper until
// ctx is cancelled. The returned channel closes once every job has stopped.
func (b Background) Start(ctx context.Context) <-chan struct{} {
	logger := b.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if b.Notifications != nil {
		b.Notifications.RegisterHandlers()
		logger.Info("notification handlers registered")
	}

	var wg sync.WaitGroup
	if b.Sweeper != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Sweeper.Run(ctx)
		}()
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		logger.Info("background workers stopped")
		close(done)
	}()
	return done
}
