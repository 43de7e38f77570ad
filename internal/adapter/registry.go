package adapter

import (
	"context"
	"crypto/md5" // #nosec G501 - directory naming, not security
	"encoding/hex"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"tdgate/internal/models"
	"tdgate/internal/privacy"
	"tdgate/pkg/audio"
	"tdgate/pkg/engine"
)

// SessionStore persists session registry entries across restarts.
type SessionStore interface {
	SaveSession(ctx context.Context, rec models.SessionRecord) error
	GetSession(ctx context.Context, sessionKey string) (*models.SessionRecord, error)
	UpdateAuthState(ctx context.Context, sessionKey, authState string) error
	DeleteSession(ctx context.Context, sessionKey string) error
}

// SessionKey derives the stable directory and routing key for an
// account id.
func SessionKey(accountID string) string {
	sum := md5.Sum([]byte(accountID)) // #nosec G401 - key derivation for paths, not auth
	return hex.EncodeToString(sum[:])
}

// RegistryConfig carries the per-process pieces every adapter shares.
type RegistryConfig struct {
	Engine        models.EngineConfig
	PublicBaseURL string
	Client        engine.Client
	Transcoder    audio.Transcoder
	Store         SessionStore
	Logger        *logrus.Logger
	Timing        Timing
}

// Registry maps account ids to live adapters, at most one per session.
// All HTTP handlers go through it; concurrent requests for the same
// account share an adapter.
type Registry struct {
	cfg    RegistryConfig
	logger *logrus.Entry

	mu       sync.Mutex
	adapters map[string]*Adapter
}

func NewRegistry(cfg RegistryConfig) *Registry {
	return &Registry{
		cfg:      cfg,
		logger:   cfg.Logger.WithField("component", "registry"),
		adapters: make(map[string]*Adapter),
	}
}

// GetOrCreate returns the live adapter for an account, creating one on
// first use. Creation registers the session in the store.
func (r *Registry) GetOrCreate(ctx context.Context, accountID string) (*Adapter, error) {
	key := SessionKey(accountID)

	r.mu.Lock()
	defer r.mu.Unlock()

	if a, ok := r.adapters[key]; ok && !a.Closed() {
		return a, nil
	}

	a, err := r.create(key, accountID)
	if err != nil {
		return nil, err
	}
	r.adapters[key] = a
	r.logger.WithFields(logrus.Fields{
		"session": key,
		"account": privacy.MaskAccountID(accountID),
	}).Info("Session adapter created")

	if r.cfg.Store != nil {
		now := time.Now().Unix()
		rec := models.SessionRecord{
			SessionKey: key,
			AccountID:  accountID,
			AuthState:  string(models.StatusUnknown),
			CreatedAt:  now,
			LastSeenAt: now,
		}
		if err := r.cfg.Store.SaveSession(ctx, rec); err != nil {
			r.logger.WithError(err).WithField("session", key).Warn("Failed to persist session record")
		}
	}
	return a, nil
}

// Lookup returns the live adapter for an account without creating one.
func (r *Registry) Lookup(accountID string) (*Adapter, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.adapters[SessionKey(accountID)]
	if !ok || a.Closed() {
		return nil, false
	}
	return a, true
}

// HasSession reports whether an engine session directory exists for the
// account, live adapter or not. False means the account never
// authenticated here.
func (r *Registry) HasSession(accountID string) bool {
	if _, ok := r.Lookup(accountID); ok {
		return true
	}
	info, err := os.Stat(r.sessionPath(SessionKey(accountID)))
	return err == nil && info.IsDir()
}

// Destroy closes the account's engine session and removes it from the
// registry and the store. The session directory stays on disk until the
// retention sweep collects its artifacts.
func (r *Registry) Destroy(ctx context.Context, accountID string) {
	key := SessionKey(accountID)

	r.mu.Lock()
	a, ok := r.adapters[key]
	delete(r.adapters, key)
	r.mu.Unlock()

	if ok {
		a.Destroy()
	}
	if r.cfg.Store != nil {
		if err := r.cfg.Store.DeleteSession(ctx, key); err != nil {
			r.logger.WithError(err).WithField("session", key).Warn("Failed to delete session record")
		}
	}
	r.logger.WithField("session", key).Info("Session destroyed")
}

// RecordAuthState mirrors an observed authorization state to the store.
func (r *Registry) RecordAuthState(ctx context.Context, accountID, authState string) {
	if r.cfg.Store == nil {
		return
	}
	key := SessionKey(accountID)
	if err := r.cfg.Store.UpdateAuthState(ctx, key, authState); err != nil {
		r.logger.WithError(err).WithField("session", key).Warn("Failed to update session auth state")
	}
}

// Shutdown destroys every live adapter. Used on process exit.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	adapters := make([]*Adapter, 0, len(r.adapters))
	for _, a := range r.adapters {
		adapters = append(adapters, a)
	}
	r.adapters = make(map[string]*Adapter)
	r.mu.Unlock()

	for _, a := range adapters {
		a.Destroy()
	}
}

func (r *Registry) sessionPath(key string) string {
	return filepath.Join(r.cfg.Engine.SessionsDir, key)
}

// create builds the adapter config for one session. Caller holds r.mu.
func (r *Registry) create(key, accountID string) (*Adapter, error) {
	sessionPath := r.sessionPath(key)

	params := engine.Parameters{
		UseTestDC:          r.cfg.Engine.UseTestDC,
		DatabaseDirectory:  filepath.Join(sessionPath, "tdlib"),
		UseMessageDatabase: true,
		UseSecretChats:     false,
		APIID:              r.cfg.Engine.APIID,
		APIHash:            r.cfg.Engine.APIHash,
		SystemLanguageCode: "en",
		DeviceModel:        r.cfg.Engine.DeviceModel,
		ApplicationVersion: r.cfg.Engine.AppVersion,
	}

	return New(Config{
		SessionKey:    key,
		AccountID:     accountID,
		SessionPath:   sessionPath,
		PublicBaseURL: r.cfg.PublicBaseURL,
		Engine:        params,
		Client:        r.cfg.Client,
		Transcoder:    r.cfg.Transcoder,
		Logger:        r.cfg.Logger,
		Timing:        r.cfg.Timing,
	})
}
