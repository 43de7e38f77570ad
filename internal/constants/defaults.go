package constants

// Default engine polling configuration values
const (
	DefaultReceiveTimeoutSec   = 2
	DefaultPollIntervalMs      = 50
	DefaultCollectWindowSec    = 10
	DefaultEventQueueSize      = 256
	DefaultAuthRetryAttempts   = 3
	DefaultCloseWaitAttempts   = 5
	DefaultFileRetryAttempts   = 5
	DefaultFileCollectSec      = 15
	DefaultSendCollectSec      = 5
	DefaultVoiceSendCollectSec = 30
	DefaultHistoryAttempts     = 3
	DefaultRetryPauseMs        = 1000
)

// Default API limits
const (
	DefaultChatListLimit    = 20
	DefaultMessageLimit     = 50
	MaxChatListLimit        = 100
	MaxMessageLimit         = 200
	MaxVoiceUploadSizeBytes = 16 * 1024 * 1024
)

// Request validation bounds
const (
	MinAccountIDDigits   = 7
	MaxAccountIDDigits   = 20
	MaxMessageTextLength = 4096
)

// Waveform rendering
const (
	WaveformSampleCount      = 60
	WaveformDefaultAmplitude = 0.05
)

// Artifact retention
const (
	DefaultArtifactRetentionHours = 24
	DefaultCleanupIntervalHours   = 6
)

// Default server values
const (
	DefaultServerPort           = 8000
	DefaultServerReadTimeoutSec = 15
	DefaultServerWriteTimeout   = 60
	DefaultServerIdleTimeoutSec = 60
	DefaultGracefulShutdownSec  = 30
)

// Database retry and field-encryption parameters
const (
	DefaultDatabaseRetryAttempts = 3
	DefaultRetryBackoffMs        = 100
	DefaultMaxBackoffMs          = 2000

	EncryptionNonceSize  = 12
	EncryptionKeySize    = 32
	EncryptionIterations = 100000
	EncryptionSalt       = "tdgate-db-salt-v1"
	EncryptionLookupSalt = "tdgate-lookup-v1"
)

// Sentinel order key used by the engine for "start from the top".
const MaxOrderKey = "9223372036854775807"

// Session artifact subdirectories.
const (
	VoiceDirName = "voice"
	PhotoDirName = "photos"
)
