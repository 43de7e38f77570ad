package engine

import (
	"encoding/json"
	"fmt"
	"time"
)

// Client is the typed boundary to the messaging engine. Commands go in
// through Send, events come back asynchronously and out of order on the
// channel behind Receive. The channel is global across all client ids;
// callers must filter events by ClientID.
type Client interface {
	// CreateClient allocates a fresh engine client handle.
	CreateClient() int64
	// Send pushes a command for the given client handle. Delivery of the
	// resulting events is asynchronous.
	Send(clientID int64, req Request) error
	// Receive pulls at most one event from the shared channel, waiting up
	// to timeout. Returns (nil, nil) when nothing arrived.
	Receive(timeout time.Duration) (Event, error)
	// Execute runs a setup-only synchronous command.
	Execute(req Request) (Event, error)
}

// RawLibrary is the untyped byte-level primitive set exported by the
// engine library. A production build binds this to the real shared
// library; tests substitute an in-memory fake.
type RawLibrary interface {
	CreateClientID() int64
	Send(clientID int64, data []byte)
	Receive(timeoutSeconds float64) []byte
	Execute(data []byte) []byte
}

type client struct {
	lib RawLibrary
}

// NewClient wraps the raw library primitives in the typed Client
// boundary, handling the JSON-object-per-call framing.
func NewClient(lib RawLibrary) Client {
	return &client{lib: lib}
}

func (c *client) CreateClient() int64 {
	return c.lib.CreateClientID()
}

func (c *client) Send(clientID int64, req Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal %s request: %w", req.RequestType(), err)
	}
	c.lib.Send(clientID, data)
	return nil
}

func (c *client) Receive(timeout time.Duration) (Event, error) {
	data := c.lib.Receive(timeout.Seconds())
	if len(data) == 0 {
		return nil, nil
	}
	return DecodeEvent(data)
}

func (c *client) Execute(req Request) (Event, error) {
	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", req.RequestType(), err)
	}
	result := c.lib.Execute(data)
	if len(result) == 0 {
		return nil, nil
	}
	return DecodeEvent(result)
}
