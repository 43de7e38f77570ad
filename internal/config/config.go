package config

import (
	"encoding/json"
	"os"
	"strconv"

	"tdgate/internal/constants"
	"tdgate/internal/models"
)

var (
	ErrMissingAPIID       = models.ConfigError{Message: "missing engine api_id"}
	ErrMissingAPIHash     = models.ConfigError{Message: "missing engine api_hash"}
	ErrMissingSessionsDir = models.ConfigError{Message: "missing sessions directory"}
	ErrMissingDBPath      = models.ConfigError{Message: "missing database path"}
)

func LoadConfig(path string) (*models.Config, error) {
	file, err := os.ReadFile(path) // #nosec G304 - operator-supplied config path
	if err != nil {
		return nil, err
	}

	var config models.Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, err
	}

	applyEnvironmentOverrides(&config)

	if err := validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

func validate(c *models.Config) error {
	if c.Engine.APIID == 0 {
		return ErrMissingAPIID
	}
	if c.Engine.APIHash == "" {
		return ErrMissingAPIHash
	}
	if c.Engine.SessionsDir == "" {
		return ErrMissingSessionsDir
	}
	if c.Database.Path == "" {
		return ErrMissingDBPath
	}

	if c.Engine.DeviceModel == "" {
		c.Engine.DeviceModel = "tdgate"
	}
	if c.Engine.AppVersion == "" {
		c.Engine.AppVersion = "1.0"
	}
	if c.Server.Port <= 0 {
		c.Server.Port = constants.DefaultServerPort
	}
	if c.Server.PublicBaseURL == "" {
		c.Server.PublicBaseURL = "http://localhost:" + strconv.Itoa(c.Server.Port)
	}
	if c.RetentionHours <= 0 {
		c.RetentionHours = constants.DefaultArtifactRetentionHours
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = constants.DefaultAuthRetryAttempts
	}
	if c.Retry.InitialBackoffMs <= 0 {
		c.Retry.InitialBackoffMs = constants.DefaultRetryPauseMs
	}
	if c.Retry.MaxBackoffMs <= 0 {
		c.Retry.MaxBackoffMs = 10 * constants.DefaultRetryPauseMs
	}
	return nil
}

func applyEnvironmentOverrides(c *models.Config) {
	if v := os.Getenv("TDGATE_API_ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 32); err == nil {
			c.Engine.APIID = int32(id)
		}
	}

	// SECURITY: the API hash should come from the environment, not the
	// config file checked into deployment repos.
	if v := os.Getenv("TDGATE_API_HASH"); v != "" {
		c.Engine.APIHash = v
	}

	if v := os.Getenv("TDGATE_SESSIONS_DIR"); v != "" {
		c.Engine.SessionsDir = v
	}
	if v := os.Getenv("TDGATE_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("TDGATE_PUBLIC_BASE_URL"); v != "" {
		c.Server.PublicBaseURL = v
	}
	if v := os.Getenv("TDGATE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
}
