package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel)
	return logger
}

func writeAged(t *testing.T, path string, age time.Duration) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0750))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0600))
	stamp := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, stamp, stamp))
}

func TestCleanupOldArtifacts_RemovesExpiredOnly(t *testing.T) {
	sessionsDir := t.TempDir()
	old := filepath.Join(sessionsDir, "abc123", "voice", "old.wav")
	fresh := filepath.Join(sessionsDir, "abc123", "voice", "fresh.wav")
	oldPhoto := filepath.Join(sessionsDir, "abc123", "photos", "old.jpg")
	writeAged(t, old, 48*time.Hour)
	writeAged(t, fresh, time.Hour)
	writeAged(t, oldPhoto, 48*time.Hour)

	cleaner := NewArtifactCleaner(sessionsDir, quietLogger())
	require.NoError(t, cleaner.CleanupOldArtifacts(context.Background(), 24))

	_, err := os.Stat(old)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(oldPhoto)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(fresh)
	assert.NoError(t, err)
}

func TestCleanupOldArtifacts_LeavesEngineStateAlone(t *testing.T) {
	sessionsDir := t.TempDir()
	engineFile := filepath.Join(sessionsDir, "abc123", "tdlib", "db.sqlite")
	writeAged(t, engineFile, 96*time.Hour)

	cleaner := NewArtifactCleaner(sessionsDir, quietLogger())
	require.NoError(t, cleaner.CleanupOldArtifacts(context.Background(), 24))

	_, err := os.Stat(engineFile)
	assert.NoError(t, err)
}

func TestCleanupOldArtifacts_MissingDirIsNoop(t *testing.T) {
	cleaner := NewArtifactCleaner(filepath.Join(t.TempDir(), "nope"), quietLogger())
	assert.NoError(t, cleaner.CleanupOldArtifacts(context.Background(), 24))
}

type mockCleaner struct {
	mock.Mock
}

func (m *mockCleaner) CleanupOldArtifacts(ctx context.Context, retentionHours int) error {
	args := m.Called(ctx, retentionHours)
	return args.Error(0)
}

func TestScheduler_RunCleanup(t *testing.T) {
	cleaner := &mockCleaner{}
	scheduler := NewScheduler(cleaner, 24, 6, quietLogger())
	ctx := context.Background()

	cleaner.On("CleanupOldArtifacts", ctx, 24).Return(nil).Once()

	scheduler.runCleanup(ctx)

	cleaner.AssertExpectations(t)
}

func TestScheduler_RunCleanupError(t *testing.T) {
	cleaner := &mockCleaner{}
	scheduler := NewScheduler(cleaner, 24, 6, quietLogger())
	ctx := context.Background()

	cleaner.On("CleanupOldArtifacts", ctx, 24).Return(assert.AnError).Once()

	scheduler.runCleanup(ctx)

	cleaner.AssertExpectations(t)
}

func TestScheduler_StartStop(t *testing.T) {
	cleaner := &mockCleaner{}
	scheduler := NewScheduler(cleaner, 24, 6, quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cleaner.On("CleanupOldArtifacts", mock.Anything, 24).Return(nil).Maybe()

	done := make(chan struct{})
	go func() {
		scheduler.Start(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	scheduler.Stop()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestNewScheduler_Defaults(t *testing.T) {
	scheduler := NewScheduler(&mockCleaner{}, 0, 0, quietLogger())
	assert.Equal(t, 24, scheduler.retentionHours)
	assert.Equal(t, 6, scheduler.intervalHours)
}
