package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/opsgrid/patchwin-api/pkg/config"
)

// StartAutoRun launches the internal monthly trigger. Once per checkInterval
// it asks whether today is the configured run day and whether the site
// already has a run this month; if not, it fires one. This replaces an
// external cron entry for deployments that want the service self-contained.
func (s *RealignService) StartAutoRun(ctx context.Context, cfg config.RealignConfig, checkInterval time.Duration) {
	if !cfg.AutoEnabled {
		return
	}
	if checkInterval <= 0 {
		checkInterval = time.Hour
	}

	go func() {
		ticker := time.NewTicker(checkInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.maybeAutoRun(ctx, cfg)
			}
		}
	}()
}

func (s *RealignService) maybeAutoRun(ctx context.Context, cfg config.RealignConfig) {
	now := s.clock()
	if now.Day() != cfg.RunDay {
		return
	}

	done, err := s.runs.HasRunInMonth(ctx, cfg.SiteID, now)
	if err != nil {
		s.logger.Error("auto-run check failed", zap.Error(err))
		return
	}
	if done {
		return
	}

	s.logger.Info("starting scheduled realignment run",
		zap.String("site_id", cfg.SiteID), zap.Int("run_day", cfg.RunDay))
	if _, err := s.Run(ctx, RunRequest{SiteID: cfg.SiteID, Pattern: cfg.Pattern, Recipient: cfg.Recipient}); err != nil {
		s.logger.Error("scheduled realignment run failed", zap.Error(err))
	}
}
