package service

import (
	"context"
	"log/slog"
	"time"
)

// DefaultScanInterval is how often the overdue scan runs.
const DefaultScanInterval = 24 * time.Hour

// OverdueScanner runs the overdue scan on a fixed interval.
type OverdueScanner struct {
	circulation *CirculationService
	interval    time.Duration
	logger      *slog.Logger
}

func NewOverdueScanner(circulation *CirculationService, interval time.Duration, logger *slog.Logger) *OverdueScanner {
	if interval <= 0 {
		interval = DefaultScanInterval
	}
	return &OverdueScanner{
		circulation: circulation,
		interval:    interval,
		logger:      logger,
	}
}

// Run scans once immediately and then on every tick until ctx is done.
func (s *OverdueScanner) Run(ctx context.Context) {
	s.logger.Info("Overdue scanner started", "interval", s.interval.String())

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		if _, err := s.circulation.ScanOverdue(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("Overdue scan failed", "error", err)
		}

		select {
		case <-ctx.Done():
			s.logger.Info("Overdue scanner stopped")
			return
		case <-ticker.C:
		}
	}
}
