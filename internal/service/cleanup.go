package service

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"tdgate/internal/constants"
)

// ArtifactCleaner removes session artifacts past their retention
// window. Engine state underneath each session survives; only the
// materialized voice and photo copies are collected.
type ArtifactCleaner struct {
	sessionsDir string
	logger      *logrus.Logger
}

func NewArtifactCleaner(sessionsDir string, logger *logrus.Logger) *ArtifactCleaner {
	return &ArtifactCleaner{sessionsDir: sessionsDir, logger: logger}
}

// CleanupOldArtifacts deletes artifact files older than the retention
// period across every session directory. Unreadable entries are skipped
// and logged, never fatal.
func (c *ArtifactCleaner) CleanupOldArtifacts(ctx context.Context, retentionHours int) error {
	cutoff := time.Now().Add(-time.Duration(retentionHours) * time.Hour)

	sessions, err := os.ReadDir(c.sessionsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	removed := 0
	for _, session := range sessions {
		if !session.IsDir() {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		for _, sub := range []string{constants.VoiceDirName, constants.PhotoDirName} {
			removed += c.sweepDir(filepath.Join(c.sessionsDir, session.Name(), sub), cutoff)
		}
	}

	c.logger.WithFields(logrus.Fields{
		"removed":        removed,
		"retentionHours": retentionHours,
	}).Info("Artifact cleanup finished")
	return nil
}

func (c *ArtifactCleaner) sweepDir(dir string, cutoff time.Time) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			c.logger.WithError(err).WithField("dir", dir).Warn("Failed to read artifact directory")
		}
		return 0
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := os.Remove(path); err != nil {
			c.logger.WithError(err).WithField("path", path).Warn("Failed to remove expired artifact")
			continue
		}
		removed++
	}
	return removed
}
