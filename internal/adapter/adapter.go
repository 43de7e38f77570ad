package adapter

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"tdgate/internal/constants"
	"tdgate/pkg/audio"
	"tdgate/pkg/engine"
)

// Timing groups the per-operation windows and attempt budgets. They are
// constants of the adapter, not caller-supplied deadlines; tests shrink
// them.
type Timing struct {
	ReceiveTimeout    time.Duration
	CollectWindow     time.Duration
	DetailWindow      time.Duration
	FileWindow        time.Duration
	SendWindow        time.Duration
	VoiceSendWindow   time.Duration
	RetryPause        time.Duration
	AuthAttempts      int
	FileAttempts      int
	HistoryAttempts   int
	CloseWaitAttempts int
}

// DefaultTiming returns the production windows.
func DefaultTiming() Timing {
	return Timing{
		ReceiveTimeout:    time.Duration(constants.DefaultReceiveTimeoutSec) * time.Second,
		CollectWindow:     time.Duration(constants.DefaultCollectWindowSec) * time.Second,
		DetailWindow:      2 * time.Second,
		FileWindow:        time.Duration(constants.DefaultFileCollectSec) * time.Second,
		SendWindow:        time.Duration(constants.DefaultSendCollectSec) * time.Second,
		VoiceSendWindow:   time.Duration(constants.DefaultVoiceSendCollectSec) * time.Second,
		RetryPause:        time.Duration(constants.DefaultRetryPauseMs) * time.Millisecond,
		AuthAttempts:      constants.DefaultAuthRetryAttempts,
		FileAttempts:      constants.DefaultFileRetryAttempts,
		HistoryAttempts:   constants.DefaultHistoryAttempts,
		CloseWaitAttempts: constants.DefaultCloseWaitAttempts,
	}
}

// Config wires one adapter to its session.
type Config struct {
	SessionKey    string
	AccountID     string
	SessionPath   string
	PublicBaseURL string
	Engine        engine.Parameters
	Client        engine.Client
	Transcoder    audio.Transcoder
	Logger        *logrus.Logger
	Timing        Timing
}

// Adapter turns the engine's untyped event channel into typed, awaitable
// operations for a single session. Operations are serialized; each holds
// the adapter for its full collection window.
type Adapter struct {
	cfg    Config
	logger *logrus.Entry

	mu       sync.Mutex
	clientID int64
	pump     *pump
	closed   bool

	chatMu    sync.Mutex
	chatCache map[int64]*chatEntry

	fileMu    sync.Mutex
	fileCache map[int64]*fileResolution

	sentIDs map[int64]struct{}

	extSubs map[<-chan engine.Event]*subscription
}

// New creates the adapter, allocates a fresh engine client handle, and
// starts the background pump. The session directory and its artifact
// subdirectories are created if absent.
func New(cfg Config) (*Adapter, error) {
	if cfg.Timing.AuthAttempts == 0 {
		cfg.Timing = DefaultTiming()
	}

	for _, dir := range []string{
		cfg.SessionPath,
		filepath.Join(cfg.SessionPath, constants.VoiceDirName),
		filepath.Join(cfg.SessionPath, constants.PhotoDirName),
	} {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create session directory %s: %w", dir, err)
		}
	}

	a := &Adapter{
		cfg: cfg,
		logger: cfg.Logger.WithFields(logrus.Fields{
			"session": cfg.SessionKey,
		}),
		chatCache: make(map[int64]*chatEntry),
		fileCache: make(map[int64]*fileResolution),
		sentIDs:   make(map[int64]struct{}),
	}

	if _, err := cfg.Client.Execute(engine.SetLogVerbosityLevel(1)); err != nil {
		a.logger.WithError(err).Warn("Failed to set engine log verbosity")
	}

	a.attachClient(cfg.Client.CreateClient())
	a.logger.WithField("client_id", a.clientID).Info("Created engine client")
	return a, nil
}

// attachClient binds the adapter to a client handle and (re)starts the
// pump for it. Caller must hold a.mu or be inside construction.
func (a *Adapter) attachClient(clientID int64) {
	if a.pump != nil {
		a.pump.stop()
	}
	a.clientID = clientID
	a.pump = newPump(a.cfg.Client, clientID, a.cfg.Timing.ReceiveTimeout, a.logger)
	a.pump.addPassive(a.observeChat)
	a.pump.start()
}

// recreateClient replaces a dead client handle with a fresh one. The
// chat and file caches survive; they are scoped to the adapter, not the
// handle.
func (a *Adapter) recreateClient() {
	old := a.clientID
	a.attachClient(a.cfg.Client.CreateClient())
	a.logger.WithFields(logrus.Fields{
		"old_client_id": old,
		"new_client_id": a.clientID,
	}).Info("Recreated engine client")
}

// ClientID exposes the current engine handle for registry bookkeeping.
func (a *Adapter) ClientID() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.clientID
}

// Closed reports whether Destroy has run.
func (a *Adapter) Closed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

// SessionKey returns the opaque session key this adapter serves.
func (a *Adapter) SessionKey() string {
	return a.cfg.SessionKey
}

// AccountID returns the account identifier this adapter serves.
func (a *Adapter) AccountID() string {
	return a.cfg.AccountID
}

func (a *Adapter) send(req engine.Request) {
	if err := a.cfg.Client.Send(a.clientID, req); err != nil {
		a.logger.WithError(err).WithField("request", req.RequestType()).Error("Failed to send engine command")
	}
}

// Subscribe exposes the live event stream for external consumers such
// as the websocket broadcaster. The caller must Unsubscribe with the
// returned channel when done. A client recreation orphans existing
// subscriptions; consumers observe silence and reconnect.
func (a *Adapter) Subscribe() <-chan engine.Event {
	a.mu.Lock()
	defer a.mu.Unlock()
	sub := a.pump.subscribe()
	if a.extSubs == nil {
		a.extSubs = make(map[<-chan engine.Event]*subscription)
	}
	a.extSubs[sub.ch] = sub
	return sub.ch
}

// Unsubscribe detaches a channel handed out by Subscribe.
func (a *Adapter) Unsubscribe(ch <-chan engine.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if sub, ok := a.extSubs[ch]; ok {
		a.pump.unsubscribe(sub)
		delete(a.extSubs, ch)
	}
}
