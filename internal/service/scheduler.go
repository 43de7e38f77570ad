package service

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"tdgate/internal/constants"
)

// Cleaner is the retention sweep the scheduler drives.
type Cleaner interface {
	CleanupOldArtifacts(ctx context.Context, retentionHours int) error
}

type Scheduler struct {
	cleaner        Cleaner
	retentionHours int
	intervalHours  int
	logger         *logrus.Logger
	stopCh         chan struct{}
}

func NewScheduler(cleaner Cleaner, retentionHours, intervalHours int, logger *logrus.Logger) *Scheduler {
	if intervalHours <= 0 {
		intervalHours = constants.DefaultCleanupIntervalHours
	}
	if retentionHours <= 0 {
		retentionHours = constants.DefaultArtifactRetentionHours
	}
	return &Scheduler{
		cleaner:        cleaner,
		retentionHours: retentionHours,
		intervalHours:  intervalHours,
		logger:         logger,
		stopCh:         make(chan struct{}),
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(time.Duration(s.intervalHours) * time.Hour)
	defer ticker.Stop()

	s.logger.Info("Starting cleanup scheduler")

	s.runCleanup(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler context cancelled, stopping")
			return
		case <-s.stopCh:
			s.logger.Info("Scheduler stop signal received, stopping")
			return
		case <-ticker.C:
			s.runCleanup(ctx)
		}
	}
}

func (s *Scheduler) Stop() {
	close(s.stopCh)
}

func (s *Scheduler) runCleanup(ctx context.Context) {
	s.logger.WithField("retentionHours", s.retentionHours).Info("Running scheduled cleanup")

	if err := s.cleaner.CleanupOldArtifacts(ctx, s.retentionHours); err != nil {
		s.logger.WithError(err).Error("Failed to cleanup old artifacts")
	} else {
		s.logger.Info("Successfully completed cleanup")
	}
}
