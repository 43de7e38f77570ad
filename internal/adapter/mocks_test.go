package adapter

import (
	"context"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"tdgate/pkg/audio"
	"tdgate/pkg/engine"
)

// fakeClient scripts the engine: Send records the request and feeds the
// responder's events into the receive queue, Receive pops them with the
// usual timeout semantics.
type fakeClient struct {
	mu      sync.Mutex
	nextID  int64
	sent    []engine.Request
	onSend  func(clientID int64, req engine.Request) []engine.Event
	events  chan engine.Event
	sendErr error
}

func newFakeClient() *fakeClient {
	return &fakeClient{events: make(chan engine.Event, 256)}
}

func (c *fakeClient) CreateClient() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nextID++
	return c.nextID
}

func (c *fakeClient) Send(clientID int64, req engine.Request) error {
	c.mu.Lock()
	c.sent = append(c.sent, req)
	handler := c.onSend
	err := c.sendErr
	c.mu.Unlock()
	if err != nil {
		return err
	}
	if handler != nil {
		for _, ev := range handler(clientID, req) {
			c.events <- ev
		}
	}
	return nil
}

func (c *fakeClient) Receive(timeout time.Duration) (engine.Event, error) {
	select {
	case ev := <-c.events:
		return ev, nil
	case <-time.After(timeout):
		return nil, nil
	}
}

func (c *fakeClient) Execute(req engine.Request) (engine.Event, error) {
	return &engine.OkEvent{}, nil
}

// emit injects an event as if the engine produced it spontaneously.
func (c *fakeClient) emit(ev engine.Event) {
	c.events <- ev
}

func (c *fakeClient) sentTypes() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	types := make([]string, len(c.sent))
	for i, req := range c.sent {
		types[i] = req.RequestType()
	}
	return types
}

func (c *fakeClient) countSent(reqType string) int {
	n := 0
	for _, t := range c.sentTypes() {
		if t == reqType {
			n++
		}
	}
	return n
}

// fakeTranscoder materializes conversions by writing a marker file and
// returns a fixed waveform.
type fakeTranscoder struct {
	mu         sync.Mutex
	transcodes int
	waveform   []float64
	fail       bool
}

func (f *fakeTranscoder) Transcode(_ context.Context, srcPath string, _ audio.Format, dstPath string, _ audio.Format, _ string) error {
	f.mu.Lock()
	f.transcodes++
	f.mu.Unlock()
	if f.fail {
		return os.ErrInvalid
	}
	data, err := os.ReadFile(srcPath)
	if err != nil {
		data = []byte("converted")
	}
	return os.WriteFile(dstPath, data, 0600)
}

func (f *fakeTranscoder) ExtractWaveform(string, int) ([]float64, error) {
	if f.fail {
		return nil, os.ErrInvalid
	}
	if f.waveform != nil {
		return f.waveform, nil
	}
	return audio.DefaultWaveform(), nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// testTiming shrinks the production windows so tests finish quickly.
func testTiming() Timing {
	return Timing{
		ReceiveTimeout:    10 * time.Millisecond,
		CollectWindow:     300 * time.Millisecond,
		DetailWindow:      150 * time.Millisecond,
		FileWindow:        300 * time.Millisecond,
		SendWindow:        300 * time.Millisecond,
		VoiceSendWindow:   500 * time.Millisecond,
		RetryPause:        5 * time.Millisecond,
		AuthAttempts:      2,
		FileAttempts:      2,
		HistoryAttempts:   2,
		CloseWaitAttempts: 2,
	}
}

func newTestAdapter(t *testing.T, client *fakeClient) *Adapter {
	t.Helper()
	a, err := New(Config{
		SessionKey:    "abc123",
		AccountID:     "+15550100",
		SessionPath:   t.TempDir(),
		PublicBaseURL: "http://localhost:8000",
		Engine:        engine.Parameters{APIID: 1, APIHash: "hash"},
		Client:        client,
		Transcoder:    &fakeTranscoder{},
		Logger:        testLogger(),
		Timing:        testTiming(),
	})
	require.NoError(t, err)
	t.Cleanup(a.Destroy)
	return a
}

func authStateEvent(state string) *engine.UpdateAuthorizationState {
	return &engine.UpdateAuthorizationState{
		Meta:               engine.Meta{Type: engine.TypeUpdateAuthorizationState},
		AuthorizationState: engine.AuthorizationState{Type: state},
	}
}

func textMessage(id, chatID int64, text string, outgoing bool, date int64) engine.Message {
	return engine.Message{
		ID:         id,
		ChatID:     chatID,
		IsOutgoing: outgoing,
		Date:       date,
		Content: engine.MessageContent{
			Type: engine.ContentText,
			Text: &engine.FormattedText{Type: "formattedText", Text: text},
		},
	}
}

func voiceMessage(id, chatID, fileID int64, outgoing bool, date int64) engine.Message {
	return engine.Message{
		ID:         id,
		ChatID:     chatID,
		IsOutgoing: outgoing,
		Date:       date,
		Content: engine.MessageContent{
			Type: engine.ContentVoiceNote,
			VoiceNote: &engine.VoiceNote{
				Duration: 3,
				Voice:    engine.File{ID: fileID},
			},
		},
	}
}
