package adapter

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"tdgate/pkg/engine"
)

// subscriberBuffer bounds each collector's private queue. A collector
// that falls behind loses its oldest events, never the pump.
const subscriberBuffer = 64

// pump is the sole reader of the engine's shared event channel for one
// client handle. It runs in the background so events emitted between
// operations are not lost, filters out events belonging to other client
// handles, and fans every surviving event out to all active collectors.
// Passive handlers run against every event, whether or not anyone is
// collecting.
type pump struct {
	client   engine.Client
	clientID int64
	timeout  time.Duration
	passive  []func(engine.Event)
	logger   *logrus.Entry

	mu   sync.Mutex
	subs map[*subscription]struct{}

	stopCh chan struct{}
	wg     sync.WaitGroup
}

type subscription struct {
	ch chan engine.Event
}

func newPump(client engine.Client, clientID int64, timeout time.Duration, logger *logrus.Entry) *pump {
	return &pump{
		client:   client,
		clientID: clientID,
		timeout:  timeout,
		subs:     make(map[*subscription]struct{}),
		logger:   logger,
		stopCh:   make(chan struct{}),
	}
}

// addPassive registers a handler invoked for every event the pump sees.
// Must be called before start.
func (p *pump) addPassive(fn func(engine.Event)) {
	p.passive = append(p.passive, fn)
}

func (p *pump) start() {
	p.wg.Add(1)
	go p.run()
}

func (p *pump) stop() {
	select {
	case <-p.stopCh:
	default:
		close(p.stopCh)
	}
	p.wg.Wait()
}

func (p *pump) run() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		default:
		}

		ev, err := p.client.Receive(p.timeout)
		if err != nil {
			// Transport errors count as "no event this poll".
			p.logger.WithError(err).Debug("Engine receive failed")
			continue
		}
		if ev == nil {
			continue
		}
		// Events carry the owning client handle; anything addressed to a
		// different handle belongs to another session.
		if ev.ClientID() != 0 && ev.ClientID() != p.clientID {
			continue
		}

		for _, fn := range p.passive {
			fn(ev)
		}

		p.dispatch(ev)
	}
}

func (p *pump) dispatch(ev engine.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for sub := range p.subs {
		select {
		case sub.ch <- ev:
		default:
			// Subscriber is saturated; shed its oldest event to keep the
			// newest visible.
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- ev:
			default:
			}
		}
	}
}

func (p *pump) subscribe() *subscription {
	sub := &subscription{ch: make(chan engine.Event, subscriberBuffer)}
	p.mu.Lock()
	p.subs[sub] = struct{}{}
	p.mu.Unlock()
	return sub
}

func (p *pump) unsubscribe(sub *subscription) {
	p.mu.Lock()
	delete(p.subs, sub)
	p.mu.Unlock()
}

// drain feeds events from an existing subscription to scan for up to
// window, returning early once scan reports it is done. Callers that
// correlate a command with its echo must subscribe before sending, or
// the echo can arrive in the gap and be lost. Every event inside the
// window reaches scan, including types the caller does not care about;
// scan must discard those itself.
func (p *pump) drain(sub *subscription, window time.Duration, scan func(engine.Event) bool) {
	timer := time.NewTimer(window)
	defer timer.Stop()

	for {
		select {
		case ev := <-sub.ch:
			if scan(ev) {
				return
			}
		case <-timer.C:
			return
		case <-p.stopCh:
			return
		}
	}
}

// collect is drain with a subscription scoped to the call, for
// operations that issue their command inside send below.
func (p *pump) collect(window time.Duration, scan func(engine.Event) bool) {
	sub := p.subscribe()
	defer p.unsubscribe(sub)
	p.drain(sub, window, scan)
}
