package adapter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"tdgate/pkg/engine"
)

func newTestPump(client *fakeClient, clientID int64) *pump {
	return newPump(client, clientID, 10*time.Millisecond, testLogger().WithField("test", true))
}

func TestPump_BroadcastsToAllSubscribers(t *testing.T) {
	client := newFakeClient()
	p := newTestPump(client, 1)
	p.start()
	defer p.stop()

	sub1 := p.subscribe()
	sub2 := p.subscribe()
	defer p.unsubscribe(sub1)
	defer p.unsubscribe(sub2)

	client.emit(authStateEvent(engine.AuthReady))

	for _, sub := range []*subscription{sub1, sub2} {
		var got engine.Event
		p.drain(sub, 200*time.Millisecond, func(ev engine.Event) bool {
			got = ev
			return true
		})
		assert.IsType(t, &engine.UpdateAuthorizationState{}, got)
	}
}

func TestPump_DropsForeignClientEvents(t *testing.T) {
	client := newFakeClient()
	p := newTestPump(client, 1)
	p.start()
	defer p.stop()

	sub := p.subscribe()
	defer p.unsubscribe(sub)

	foreign := authStateEvent(engine.AuthReady)
	foreign.Client = 99
	client.emit(foreign)
	mine := authStateEvent(engine.AuthWaitCode)
	mine.Client = 1
	client.emit(mine)

	var got []string
	p.drain(sub, 200*time.Millisecond, func(ev engine.Event) bool {
		got = append(got, ev.(*engine.UpdateAuthorizationState).AuthorizationState.Type)
		return true
	})
	assert.Equal(t, []string{engine.AuthWaitCode}, got)
}

func TestPump_PassiveHandlerSeesEveryEvent(t *testing.T) {
	client := newFakeClient()
	p := newTestPump(client, 1)

	seen := make(chan engine.Event, 4)
	p.addPassive(func(ev engine.Event) { seen <- ev })
	p.start()
	defer p.stop()

	// No subscribers; the passive handler still runs.
	client.emit(authStateEvent(engine.AuthReady))

	select {
	case <-seen:
	case <-time.After(500 * time.Millisecond):
		t.Fatal("passive handler did not run")
	}
}

func TestPump_SaturatedSubscriberShedsOldest(t *testing.T) {
	client := newFakeClient()
	p := newTestPump(client, 1)
	p.start()
	defer p.stop()

	sub := p.subscribe()
	defer p.unsubscribe(sub)

	for i := 0; i < subscriberBuffer+5; i++ {
		client.emit(&engine.OkEvent{Meta: engine.Meta{Type: engine.TypeOk}})
	}
	// Allow the pump to work through the backlog.
	time.Sleep(100 * time.Millisecond)

	count := 0
	p.drain(sub, 50*time.Millisecond, func(engine.Event) bool {
		count++
		return false
	})
	assert.LessOrEqual(t, count, subscriberBuffer)
	assert.Greater(t, count, 0)
}

func TestPump_DrainStopsAtWindow(t *testing.T) {
	client := newFakeClient()
	p := newTestPump(client, 1)
	p.start()
	defer p.stop()

	sub := p.subscribe()
	defer p.unsubscribe(sub)

	start := time.Now()
	p.drain(sub, 50*time.Millisecond, func(engine.Event) bool { return false })
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
