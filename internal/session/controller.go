package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"collections-portal/internal/accounts"
	"collections-portal/internal/callhistory"
	"collections-portal/internal/telephony"
)

// State of the call session. Failed is reachable from Initializing, Dialing
// and Connected; every terminal path leaves the controller reusable for the
// next dial without reinitializing the subsystem.
type State string

const (
	StateUninitialized State = "uninitialized"
	StateInitializing  State = "initializing"
	StateReady         State = "ready"
	StateDialing       State = "dialing"
	StateConnected     State = "connected"
	StateEnded         State = "ended"
	StateFailed        State = "failed"
)

var (
	ErrNoNumber     = errors.New("session: no phone number to call")
	ErrNotReady     = errors.New("session: device is not ready")
	ErrCallActive   = errors.New("session: a call is already in progress")
	ErrLineBusy     = errors.New("session: line held by another session")
	ErrNoActiveCall = errors.New("session: no active call")
	ErrBadDigit     = errors.New("session: digit must be one keypad character")
)

// TokenSource fetches a capability token for device construction.
type TokenSource func(ctx context.Context) (string, error)

// MicCheck requests microphone permission. Nil skips the check (the REST
// transport carries no local audio).
type MicCheck func(ctx context.Context) error

// Config wires the controller's collaborators.
type Config struct {
	Tokens   TokenSource
	Mic      MicCheck
	Factory  telephony.DeviceFactory
	Guard    Guard
	Accounts *accounts.Service
	History  *callhistory.Log
	Notifier Notifier
}

// Controller wraps the single active outbound call: token fetch, device
// construction, accept/disconnect/error transitions, elapsed timer, mute and
// hold toggles, and DTMF forwarding. At most one session is active at a time;
// a second dial while one is in flight is a precondition error, never an
// overwrite.
type Controller struct {
	mu sync.Mutex

	cfg   Config
	clock func() time.Time

	state  State
	device telephony.Device
	conn   telephony.Conn

	muted     bool
	onHold    bool
	startTime time.Time

	// number is the displayed destination field; keypad digits append to it
	// regardless of call state.
	number string

	guardHeld bool

	statusMsg   string
	statusLevel Level
}

func NewController(cfg Config) (*Controller, error) {
	if cfg.Tokens == nil || cfg.Factory == nil {
		return nil, errors.New("session: token source and device factory are required")
	}
	if cfg.Accounts == nil || cfg.History == nil {
		return nil, errors.New("session: account store and call history are required")
	}
	if cfg.Notifier == nil {
		cfg.Notifier = NopNotifier{}
	}
	return &Controller{cfg: cfg, clock: time.Now, state: StateUninitialized}, nil
}

// Init requests microphone permission, fetches a capability token and
// constructs the device. Any failure lands in Failed with the dial action
// disabled; recovery is a fresh Init.
func (c *Controller) Init(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateUninitialized, StateFailed:
	default:
		c.mu.Unlock()
		return fmt.Errorf("session: already initialized (state %s)", c.state)
	}
	c.state = StateInitializing
	c.setStatusLocked("Requesting microphone access...", LevelCalling)
	c.mu.Unlock()

	if c.cfg.Mic != nil {
		if err := c.cfg.Mic(ctx); err != nil {
			c.initFailed(err)
			return err
		}
	}

	c.mu.Lock()
	c.setStatusLocked("Fetching token and initializing device...", LevelCalling)
	c.mu.Unlock()

	token, err := c.cfg.Tokens(ctx)
	if err != nil {
		c.initFailed(err)
		return err
	}

	dev, err := c.cfg.Factory(ctx, token, telephony.DeviceEvents{
		OnReady: c.onDeviceReady,
		OnError: c.onDeviceError,
	})
	if err != nil {
		c.initFailed(err)
		return err
	}

	c.mu.Lock()
	c.device = dev
	c.mu.Unlock()
	return nil
}

func (c *Controller) initFailed(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateFailed
	c.setStatusLocked("Initialization failed: "+err.Error(), LevelError)
}

func (c *Controller) onDeviceReady() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateInitializing {
		return
	}
	c.state = StateReady
	c.setStatusLocked("Ready to make calls", LevelReady)
}

func (c *Controller) onDeviceError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateFailed
	c.setStatusLocked("Device Error: "+err.Error(), LevelError)
}

// Dial places an outbound call. Precondition failures (empty number, device
// not ready, call already active, line busy) are reported to the user and do
// not change state.
func (c *Controller) Dial(ctx context.Context, to string) error {
	to = strings.TrimSpace(to)

	c.mu.Lock()
	if to == "" {
		c.cfg.Notifier.Toast("Please enter a phone number to call.", LevelWarning)
		c.mu.Unlock()
		return ErrNoNumber
	}
	switch c.state {
	case StateReady, StateEnded:
	case StateDialing, StateConnected:
		c.cfg.Notifier.Toast("A call is already in progress.", LevelWarning)
		c.mu.Unlock()
		return ErrCallActive
	default:
		c.cfg.Notifier.Toast("Device is not ready. Please wait.", LevelWarning)
		c.mu.Unlock()
		return ErrNotReady
	}
	if c.device == nil {
		c.cfg.Notifier.Toast("Device is not ready. Please wait.", LevelWarning)
		c.mu.Unlock()
		return ErrNotReady
	}
	c.mu.Unlock()

	if c.cfg.Guard != nil {
		ok, err := c.cfg.Guard.Acquire(ctx)
		if err != nil {
			return fmt.Errorf("session: line guard: %w", err)
		}
		if !ok {
			c.mu.Lock()
			c.cfg.Notifier.Toast("The line is in use by another session.", LevelWarning)
			c.mu.Unlock()
			return ErrLineBusy
		}
	}

	c.mu.Lock()
	switch c.state {
	case StateReady, StateEnded:
	default:
		c.mu.Unlock()
		c.releaseGuard()
		return ErrCallActive
	}
	c.state = StateDialing
	c.guardHeld = c.cfg.Guard != nil
	c.number = to
	c.setStatusLocked("Connecting call...", LevelCalling)
	dev := c.device
	c.mu.Unlock()

	conn, err := dev.Connect(ctx, to, telephony.ConnEvents{
		OnAccept:     func() { c.onAccept(to) },
		OnDisconnect: c.onRemoteDisconnect,
		OnError:      c.onCallError,
	})
	if err != nil {
		c.mu.Lock()
		c.setStatusLocked("Call error: "+err.Error(), LevelError)
		c.logAttemptLocked(to, callhistory.StatusFailed)
		released := c.teardownLocked()
		c.mu.Unlock()
		if released {
			c.releaseGuard()
		}
		return err
	}

	c.mu.Lock()
	if c.state == StateDialing || c.state == StateConnected {
		c.conn = conn
	}
	c.mu.Unlock()
	return nil
}

// onAccept runs the call-connected side effects in order: reveal the end-call
// control, start the elapsed timer, resolve the destination to a borrower,
// append exactly one history entry, and mark the account contacted when the
// destination matched. The lock is held throughout so a digit, hold or mute
// issued immediately after connect cannot interleave with these effects.
func (c *Controller) onAccept(to string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateDialing {
		return
	}
	c.state = StateConnected
	c.startTime = c.clock()
	c.setStatusLocked("Call connected!", LevelConnected)

	ctx := context.Background()
	acct, found, err := c.cfg.Accounts.FindByPhone(ctx, to)
	if err != nil {
		slog.Warn("borrower lookup failed", "to", to, "err", err)
	}

	name := "Unknown"
	details := ""
	if found {
		name = acct.BorrowerName
		details = "Account: " + acct.AccountNumber
	}
	if err := c.cfg.History.Append(ctx, callhistory.Entry{
		Method:       "Outbound Call",
		TargetPhone:  to,
		BorrowerName: name,
		Status:       callhistory.StatusInitiated,
		Details:      details,
	}); err != nil {
		slog.Warn("call history append failed", "to", to, "err", err)
	}

	if found {
		today := c.clock().Format("2006-01-02")
		if err := c.cfg.Accounts.MarkContacted(ctx, to, today); err != nil {
			slog.Warn("mark contacted failed", "to", to, "err", err)
		}
	}
}

func (c *Controller) onRemoteDisconnect() {
	c.mu.Lock()
	active := c.state == StateDialing || c.state == StateConnected
	var released bool
	if active {
		c.setStatusLocked("Call ended", LevelReady)
		released = c.teardownLocked()
	}
	c.mu.Unlock()
	if released {
		c.releaseGuard()
	}
}

func (c *Controller) onCallError(err error) {
	c.mu.Lock()
	active := c.state == StateDialing || c.state == StateConnected
	var released bool
	if active {
		c.setStatusLocked("Call error: "+err.Error(), LevelError)
		c.logAttemptLocked(c.number, callhistory.StatusFailed)
		released = c.teardownLocked()
	}
	c.mu.Unlock()
	if released {
		c.releaseGuard()
	}
}

// End is the user-initiated end-call action: it actively disconnects the
// underlying call first, then converges on the same teardown as a remote
// disconnect.
func (c *Controller) End(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	var disconnectErr error
	if conn != nil {
		// The disconnect event fires teardown; the pass below is a no-op then.
		disconnectErr = conn.Disconnect(ctx)
	}

	c.mu.Lock()
	var released bool
	if c.state == StateDialing || c.state == StateConnected {
		c.setStatusLocked("Call ended", LevelReady)
		released = c.teardownLocked()
	}
	c.mu.Unlock()
	if released {
		c.releaseGuard()
	}
	return disconnectErr
}

// teardownLocked clears the active connection, the elapsed timer and the
// mute/hold flags, and leaves the controller reusable. Returns whether the
// caller must release the line guard.
func (c *Controller) teardownLocked() bool {
	c.conn = nil
	c.muted = false
	c.onHold = false
	c.startTime = time.Time{}
	c.state = StateEnded
	released := c.guardHeld
	c.guardHeld = false
	return released
}

func (c *Controller) releaseGuard() {
	if c.cfg.Guard == nil {
		return
	}
	if err := c.cfg.Guard.Release(context.Background()); err != nil {
		slog.Warn("line guard release failed", "err", err)
	}
}

func (c *Controller) logAttemptLocked(to string, status callhistory.EntryStatus) {
	if err := c.cfg.History.Append(context.Background(), callhistory.Entry{
		Method:      "Outbound Call",
		TargetPhone: to,
		Status:      status,
	}); err != nil {
		slog.Warn("call history append failed", "to", to, "err", err)
	}
}

// ToggleMute flips the mute state and forwards it to the connection. No
// effect without an active connection.
func (c *Controller) ToggleMute() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return false, ErrNoActiveCall
	}
	c.muted = !c.muted
	if err := c.conn.Mute(c.muted); err != nil {
		c.muted = !c.muted
		return c.muted, err
	}
	return c.muted, nil
}

// ToggleHold flips the hold state and signals it with the fixed tone
// sequence *8 (hold) / *9 (resume). This is a convention the receiving side
// must interpret, not a media-level hold; known limitation.
func (c *Controller) ToggleHold() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return false, ErrNoActiveCall
	}
	c.onHold = !c.onHold
	digits := "*9"
	if c.onHold {
		digits = "*8"
	}
	if err := c.conn.SendDigits(digits); err != nil {
		c.onHold = !c.onHold
		return c.onHold, err
	}
	return c.onHold, nil
}

// SendDigit appends one keypad character to the displayed destination field
// and, when a call is active, forwards it as DTMF.
func (c *Controller) SendDigit(d string) error {
	if len(d) != 1 || !strings.ContainsAny(d, "0123456789*#") {
		return ErrBadDigit
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.number += d
	if c.conn != nil {
		return c.conn.SendDigits(d)
	}
	return nil
}

func (c *Controller) setStatusLocked(message string, level Level) {
	c.statusMsg = message
	c.statusLevel = level
	c.cfg.Notifier.Status(message, level)
}

// Snapshot is the status surface served to the UI.
type Snapshot struct {
	State       State  `json:"state"`
	Status      string `json:"status"`
	StatusLevel Level  `json:"statusLevel"`
	Number      string `json:"number"`
	Elapsed     string `json:"elapsed"`
	Muted       bool   `json:"muted"`
	OnHold      bool   `json:"onHold"`
	MuteLabel   string `json:"muteLabel"`
	HoldLabel   string `json:"holdLabel"`
	ShowDial    bool   `json:"showDial"`
	ShowEndCall bool   `json:"showEndCall"`
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	active := c.state == StateDialing || c.state == StateConnected
	s := Snapshot{
		State:       c.state,
		Status:      c.statusMsg,
		StatusLevel: c.statusLevel,
		Number:      c.number,
		Elapsed:     c.elapsedLocked(),
		Muted:       c.muted,
		OnHold:      c.onHold,
		MuteLabel:   "Mute",
		HoldLabel:   "Hold",
		ShowDial:    !active,
		ShowEndCall: active,
	}
	if c.muted {
		s.MuteLabel = "Unmute"
	}
	if c.onHold {
		s.HoldLabel = "Resume"
	}
	return s
}

// State returns the current session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Elapsed formats the in-call duration as mm:ss; "00:00" outside a call.
func (c *Controller) Elapsed() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsedLocked()
}

func (c *Controller) elapsedLocked() string {
	if c.startTime.IsZero() {
		return "00:00"
	}
	elapsed := int(c.clock().Sub(c.startTime).Seconds())
	if elapsed < 0 {
		elapsed = 0
	}
	return fmt.Sprintf("%02d:%02d", elapsed/60, elapsed%60)
}
