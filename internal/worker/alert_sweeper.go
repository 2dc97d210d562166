package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/maintenance-service/internal/alerts"
)

// AlertSource evaluates and publishes stock alerts.
type AlertSource interface {
	EvaluateAlerts(ctx context.Context) (*alerts.Report, error)
	PublishAlerts(ctx context.Context, report alerts.Report)
}

// AlertSweeper periodically re-evaluates stock alerts so expiry windows are
// noticed even when no stock moves.
type AlertSweeper struct {
	source   AlertSource
	interval time.Duration
	logger   *zap.Logger
}

// NewAlertSweeper builds a sweeper. A non-positive interval disables Run.
func NewAlertSweeper(source AlertSource, interval time.Duration, logger *zap.Logger) *AlertSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AlertSweeper{source: source, interval: interval, logger: logger}
}

// SweepOnce evaluates alerts and publishes a non-empty report.
func (s *AlertSweeper) SweepOnce(ctx context.Context) (*alerts.Report, error) {
	report, err := s.source.EvaluateAlerts(ctx)
	if err != nil {
		return nil, err
	}
	if !report.Empty() {
		s.source.PublishAlerts(ctx, *report)
	}
	s.logger.Debug("alert sweep finished",
		zap.Int("low_stock", len(report.LowStock)),
		zap.Int("out_of_stock", len(report.OutOfStock)),
		zap.Int("expiring_soon", len(report.ExpiringSoon)),
		zap.Int("over_stock", len(report.OverStock)))
	return report, nil
}

// Run sweeps on every tick until ctx is cancelled.
func (s *AlertSweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("alert sweeper disabled")
		return
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.SweepOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.Warn("alert sweep failed", zap.Error(err))
			}
		}
	}
}
