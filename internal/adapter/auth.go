package adapter

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"tdgate/internal/models"
	"tdgate/pkg/engine"
)

// statusByState maps the engine's authorization state names to the
// normalized statuses exposed over HTTP, 1:1.
var statusByState = map[string]models.AuthStatus{
	engine.AuthReady:            models.StatusAuthenticated,
	engine.AuthWaitParameters:   models.StatusParametersSet,
	engine.AuthWaitPhoneNumber:  models.StatusWaitPhone,
	engine.AuthWaitCode:         models.StatusWaitCode,
	engine.AuthWaitPassword:     models.StatusWaitPassword,
	engine.AuthWaitRegistration: models.StatusWaitRegistration,
	engine.AuthWaitEmailAddress: models.StatusWaitEmail,
	engine.AuthWaitEmailCode:    models.StatusWaitEmailCode,
	engine.AuthWaitPremium:      models.StatusWaitPremium,
	engine.AuthClosed:           models.StatusClosed,
}

// CheckSession queries the engine's authorization state, answering the
// needs-parameters handshake inline. A protocol error or a closed state
// recreates the client and retries the check, up to the attempt budget;
// exhaustion reports "unknown" rather than failing.
func (a *Adapter) CheckSession(ctx context.Context) models.SessionState {
	a.mu.Lock()
	defer a.mu.Unlock()

	for attempt := 1; attempt <= a.cfg.Timing.AuthAttempts; attempt++ {
		a.logger.WithField("attempt", attempt).Debug("Checking session")

		sub := a.pump.subscribe()
		a.send(engine.GetAuthorizationState())

		var (
			state      string
			engineErr  *engine.ErrorEvent
			sentParams bool
		)
		a.pump.drain(sub, a.cfg.Timing.CollectWindow, func(ev engine.Event) bool {
			switch ev := ev.(type) {
			case *engine.UpdateAuthorizationState:
				next := ev.AuthorizationState.Type
				if next == engine.AuthWaitParameters && !sentParams {
					// Answer the handshake and keep collecting for the
					// state it produces.
					a.send(engine.SetParameters(a.cfg.Engine))
					sentParams = true
					return false
				}
				state = next
				return true
			case *engine.ErrorEvent:
				engineErr = ev
				return true
			}
			return false
		})
		a.pump.unsubscribe(sub)

		if engineErr != nil {
			a.logger.WithFields(logrus.Fields{
				"code":    engineErr.Code,
				"message": engineErr.Message,
			}).Error("Engine error during session check")
			if attempt < a.cfg.Timing.AuthAttempts {
				a.closeClient()
				a.recreateClient()
				a.pause(ctx)
			}
			continue
		}

		if state == engine.AuthClosed {
			// The handle is already dead; a fresh one answers the retry
			// and any later check.
			a.logger.Info("Session closed, recreating client")
			a.recreateClient()
			if attempt < a.cfg.Timing.AuthAttempts {
				a.pause(ctx)
				continue
			}
			return models.SessionState{IsAuthenticated: false, AuthState: state}
		}

		if state != "" {
			a.logger.WithField("auth_state", state).Debug("Session check state")
			return models.SessionState{
				IsAuthenticated: state == engine.AuthReady,
				AuthState:       state,
			}
		}
	}

	a.logger.Warn("No authorization state received after retries")
	return models.SessionState{IsAuthenticated: false, AuthState: string(models.StatusUnknown)}
}

// Authenticate sends exactly the commands implied by the present
// credential fields, in a fixed order, then maps the next authorization
// state to a status. An empty credential set degenerates to a bare
// state query.
func (a *Adapter) Authenticate(ctx context.Context, creds models.Credentials) models.AuthResult {
	a.mu.Lock()
	defer a.mu.Unlock()

	sub := a.pump.subscribe()
	defer a.pump.unsubscribe(sub)

	if creds.Empty() {
		a.send(engine.GetAuthorizationState())
	}
	if creds.PhoneNumber != "" {
		a.send(engine.SetAuthenticationPhoneNumber(creds.PhoneNumber))
	}
	if creds.Code != "" {
		a.send(engine.CheckAuthenticationCode(creds.Code))
	}
	if creds.Password != "" {
		a.send(engine.CheckAuthenticationPassword(creds.Password))
	}
	if creds.FirstName != "" && creds.LastName != "" {
		a.send(engine.RegisterUser(creds.FirstName, creds.LastName))
	}
	if creds.Email != "" {
		a.send(engine.SetAuthenticationEmailAddress(creds.Email))
	}
	if creds.EmailCode != "" {
		a.send(engine.CheckAuthenticationEmailCode(creds.EmailCode))
	}

	for attempt := 1; attempt <= a.cfg.Timing.AuthAttempts; attempt++ {
		var status models.AuthStatus
		a.pump.drain(sub, a.cfg.Timing.CollectWindow, func(ev engine.Event) bool {
			update, ok := ev.(*engine.UpdateAuthorizationState)
			if !ok {
				return false
			}
			state := update.AuthorizationState.Type
			a.logger.WithField("auth_state", state).Debug("Auth state")

			switch state {
			case engine.AuthWaitParameters:
				a.send(engine.SetParameters(a.cfg.Engine))
				status = models.StatusParametersSet
			case engine.AuthClosed:
				a.logger.Info("Session closed, recreating client")
				a.recreateClient()
				status = models.StatusClosed
			default:
				if s, ok := statusByState[state]; ok {
					status = s
				} else {
					status = models.StatusUnknown
				}
			}
			return true
		})

		if status != "" {
			return models.AuthResult{Status: status}
		}
		a.pause(ctx)
	}

	a.logger.Warn("No authorization state received after retries")
	return models.AuthResult{Status: models.StatusUnknown}
}

// Destroy closes the engine client, waiting a bounded number of polls
// for the closed confirmation. Teardown proceeds either way; the
// adapter is unusable afterwards.
func (a *Adapter) Destroy() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}

	a.closeClient()
	a.pump.stop()
	a.clientID = 0
	a.closed = true
}

// closeClient sends close and waits briefly for the terminal state.
// Caller must hold a.mu.
func (a *Adapter) closeClient() {
	sub := a.pump.subscribe()
	defer a.pump.unsubscribe(sub)

	a.send(engine.Close())
	a.logger.WithField("client_id", a.clientID).Info("Destroying engine client")

	for i := 0; i < a.cfg.Timing.CloseWaitAttempts; i++ {
		confirmed := false
		a.pump.drain(sub, a.cfg.Timing.ReceiveTimeout, func(ev engine.Event) bool {
			update, ok := ev.(*engine.UpdateAuthorizationState)
			if ok && update.AuthorizationState.Type == engine.AuthClosed {
				confirmed = true
				return true
			}
			return false
		})
		if confirmed {
			a.logger.WithField("client_id", a.clientID).Info("Engine client closed")
			return
		}
	}
}

// pause sleeps the inter-attempt delay, honoring context cancellation.
func (a *Adapter) pause(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(a.cfg.Timing.RetryPause):
	}
}
