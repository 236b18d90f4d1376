package telephony

import (
	"context"
	"errors"
)

// Identity is the single shared calling identity for all agents. Capability
// tokens are scoped to it and the line guard serializes calls on it.
const Identity = "loan-agent"

// ErrUnsupportedTransport is returned by connection operations the underlying
// transport cannot signal mid-call.
var ErrUnsupportedTransport = errors.New("telephony: not supported by this transport")

// Device is the calling subsystem: an opaque collaborator that establishes
// and manages the actual voice connection. Business logic never talks to a
// provider SDK directly; it goes through this boundary.
type Device interface {
	// Connect places an outbound call to a dialable number. Session events
	// are delivered through ev; a returned error means the call was never
	// placed.
	Connect(ctx context.Context, to string, ev ConnEvents) (Conn, error)
}

// Conn is one active call.
type Conn interface {
	// Disconnect actively tears down the call. The OnDisconnect event still
	// fires so local and remote hangups converge on the same path.
	Disconnect(ctx context.Context) error

	// Mute sets the local mute state.
	Mute(muted bool) error

	// SendDigits forwards DTMF keypad characters.
	SendDigits(digits string) error
}

// ConnEvents carries per-call callbacks. Handlers are invoked from the
// transport's delivery goroutine; nil handlers are skipped.
type ConnEvents struct {
	OnAccept     func()
	OnDisconnect func()
	OnError      func(err error)
}

// DeviceEvents carries device lifecycle callbacks.
type DeviceEvents struct {
	OnReady func()
	OnError func(err error)
}

// DeviceFactory constructs a Device from a freshly issued capability token.
// Implementations report readiness through ev once the subsystem can dial.
type DeviceFactory func(ctx context.Context, token string, ev DeviceEvents) (Device, error)
