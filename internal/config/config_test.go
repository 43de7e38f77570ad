package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tdgate/internal/constants"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadConfig_Valid(t *testing.T) {
	path := writeConfig(t, `{
		"engine": {"api_id": 855178, "api_hash": "abc123", "sessions_dir": "/var/lib/tdgate/sessions"},
		"database": {"path": "/var/lib/tdgate/tdgate.db"},
		"server": {"port": 9000},
		"log_level": "debug"
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, int32(855178), cfg.Engine.APIID)
	assert.Equal(t, "abc123", cfg.Engine.APIHash)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "http://localhost:9000", cfg.Server.PublicBaseURL)
	assert.Equal(t, constants.DefaultArtifactRetentionHours, cfg.RetentionHours)
	assert.Equal(t, constants.DefaultAuthRetryAttempts, cfg.Retry.MaxAttempts)
	assert.Equal(t, "tdgate", cfg.Engine.DeviceModel)
}

func TestLoadConfig_MissingFields(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{
			name:    "missing api id",
			content: `{"engine": {"api_hash": "x", "sessions_dir": "/s"}, "database": {"path": "/d"}}`,
			wantErr: ErrMissingAPIID,
		},
		{
			name:    "missing api hash",
			content: `{"engine": {"api_id": 1, "sessions_dir": "/s"}, "database": {"path": "/d"}}`,
			wantErr: ErrMissingAPIHash,
		},
		{
			name:    "missing sessions dir",
			content: `{"engine": {"api_id": 1, "api_hash": "x"}, "database": {"path": "/d"}}`,
			wantErr: ErrMissingSessionsDir,
		},
		{
			name:    "missing database path",
			content: `{"engine": {"api_id": 1, "api_hash": "x", "sessions_dir": "/s"}}`,
			wantErr: ErrMissingDBPath,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			assert.Equal(t, tt.wantErr, err)
		})
	}
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	_, err := LoadConfig(writeConfig(t, `{not json`))
	assert.Error(t, err)
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	t.Setenv("TDGATE_API_HASH", "env-hash")
	t.Setenv("TDGATE_PORT", "8123")
	t.Setenv("TDGATE_PUBLIC_BASE_URL", "https://gate.example.com")

	path := writeConfig(t, `{
		"engine": {"api_id": 1, "api_hash": "file-hash", "sessions_dir": "/s"},
		"database": {"path": "/d"}
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "env-hash", cfg.Engine.APIHash)
	assert.Equal(t, 8123, cfg.Server.Port)
	assert.Equal(t, "https://gate.example.com", cfg.Server.PublicBaseURL)
}
