package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"collections-portal/internal/accounts"
	"collections-portal/internal/callhistory"
	"collections-portal/internal/telephony"
)

type fakeConn struct {
	ev           telephony.ConnEvents
	muteCalls    []bool
	digits       []string
	disconnected bool
}

func (c *fakeConn) Disconnect(ctx context.Context) error {
	c.disconnected = true
	if c.ev.OnDisconnect != nil {
		c.ev.OnDisconnect()
	}
	return nil
}

func (c *fakeConn) Mute(muted bool) error {
	c.muteCalls = append(c.muteCalls, muted)
	return nil
}

func (c *fakeConn) SendDigits(digits string) error {
	c.digits = append(c.digits, digits)
	return nil
}

type fakeDevice struct {
	conns      []*fakeConn
	connectErr error
	autoAccept bool
}

func (d *fakeDevice) Connect(ctx context.Context, to string, ev telephony.ConnEvents) (telephony.Conn, error) {
	if d.connectErr != nil {
		return nil, d.connectErr
	}
	conn := &fakeConn{ev: ev}
	d.conns = append(d.conns, conn)
	if d.autoAccept && ev.OnAccept != nil {
		ev.OnAccept()
	}
	return conn, nil
}

type fixture struct {
	ctrl     *Controller
	device   *fakeDevice
	accounts *accounts.Service
	history  *callhistory.Log
}

func newFixture(t *testing.T, autoAccept bool) *fixture {
	t.Helper()
	dev := &fakeDevice{autoAccept: autoAccept}
	acc := accounts.NewService(accounts.NewMemoryRepo())
	hist := callhistory.NewLog(callhistory.NewMemoryRepo())

	ctrl, err := NewController(Config{
		Tokens: func(ctx context.Context) (string, error) { return "tok", nil },
		Factory: func(ctx context.Context, token string, ev telephony.DeviceEvents) (telephony.Device, error) {
			ev.OnReady()
			return dev, nil
		},
		Accounts: acc,
		History:  hist,
	})
	if err != nil {
		t.Fatalf("controller construction failed: %v", err)
	}
	ctrl.clock = func() time.Time { return time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC) }
	return &fixture{ctrl: ctrl, device: dev, accounts: acc, history: hist}
}

func (f *fixture) initReady(t *testing.T) {
	t.Helper()
	if err := f.ctrl.Init(context.Background()); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if got := f.ctrl.State(); got != StateReady {
		t.Fatalf("expected ready, got %s", got)
	}
}

func (f *fixture) lastConn(t *testing.T) *fakeConn {
	t.Helper()
	if len(f.device.conns) == 0 {
		t.Fatalf("no connection placed")
	}
	return f.device.conns[len(f.device.conns)-1]
}

func TestInit_MicDeniedFails(t *testing.T) {
	f := newFixture(t, false)
	f.ctrl.cfg.Mic = func(ctx context.Context) error { return errors.New("permission denied") }

	if err := f.ctrl.Init(context.Background()); err == nil {
		t.Fatalf("expected init error")
	}
	if got := f.ctrl.State(); got != StateFailed {
		t.Fatalf("expected failed, got %s", got)
	}
	if err := f.ctrl.Dial(context.Background(), "+111"); !errors.Is(err, ErrNotReady) {
		t.Fatalf("dial must stay disabled, got %v", err)
	}
}

func TestInit_TokenFetchFailureFails(t *testing.T) {
	f := newFixture(t, false)
	f.ctrl.cfg.Tokens = func(ctx context.Context) (string, error) { return "", errors.New("gateway down") }

	if err := f.ctrl.Init(context.Background()); err == nil {
		t.Fatalf("expected init error")
	}
	if got := f.ctrl.State(); got != StateFailed {
		t.Fatalf("expected failed, got %s", got)
	}
}

func TestDial_Preconditions(t *testing.T) {
	f := newFixture(t, true)
	f.initReady(t)

	if err := f.ctrl.Dial(context.Background(), "  "); !errors.Is(err, ErrNoNumber) {
		t.Fatalf("expected ErrNoNumber, got %v", err)
	}
	if got := f.ctrl.State(); got != StateReady {
		t.Fatalf("precondition failure must not change state, got %s", got)
	}

	if err := f.ctrl.Dial(context.Background(), "+111"); err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	if err := f.ctrl.Dial(context.Background(), "+222"); !errors.Is(err, ErrCallActive) {
		t.Fatalf("expected ErrCallActive on dial while connected, got %v", err)
	}
	if len(f.device.conns) != 1 {
		t.Fatalf("active connection must not be overwritten, got %d", len(f.device.conns))
	}
}

func TestDial_NotReadyWithoutInit(t *testing.T) {
	f := newFixture(t, true)
	if err := f.ctrl.Dial(context.Background(), "+111"); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}

func TestAccept_MatchingAccountSideEffects(t *testing.T) {
	f := newFixture(t, true)
	f.initReady(t)
	_, err := f.accounts.Add(context.Background(), accounts.Account{
		BorrowerName:  "Mao Sophal",
		AccountNumber: "LA001234",
		PhoneNumber:   "+1234567890",
	})
	if err != nil {
		t.Fatalf("add failed: %v", err)
	}

	if err := f.ctrl.Dial(context.Background(), "+1234567890"); err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	if got := f.ctrl.State(); got != StateConnected {
		t.Fatalf("expected connected, got %s", got)
	}

	entries, _ := f.history.List(context.Background())
	if len(entries) != 1 {
		t.Fatalf("expected exactly one history entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Status != callhistory.StatusInitiated || e.BorrowerName != "Mao Sophal" {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if e.Details != "Account: LA001234" {
		t.Fatalf("expected account details, got %q", e.Details)
	}

	all, _ := f.accounts.List(context.Background())
	if all[0].LastContacted != "2024-03-15" {
		t.Fatalf("expected lastContacted set to today, got %q", all[0].LastContacted)
	}
}

func TestAccept_AlternatePhoneAlsoMatches(t *testing.T) {
	f := newFixture(t, true)
	f.initReady(t)
	_, _ = f.accounts.Add(context.Background(), accounts.Account{
		BorrowerName:   "Chea Sokha",
		AccountNumber:  "LA001236",
		PhoneNumber:    "+1777888999",
		AlternatePhone: "+1666555444",
	})

	if err := f.ctrl.Dial(context.Background(), "+1666555444"); err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	all, _ := f.accounts.List(context.Background())
	if all[0].LastContacted != "2024-03-15" {
		t.Fatalf("expected alternate-phone match to mark contacted, got %q", all[0].LastContacted)
	}
}

func TestAccept_UnknownDestination(t *testing.T) {
	f := newFixture(t, true)
	f.initReady(t)
	_, _ = f.accounts.Add(context.Background(), accounts.Account{
		BorrowerName:  "Mao Sophal",
		AccountNumber: "LA001234",
		PhoneNumber:   "+1234567890",
	})

	if err := f.ctrl.Dial(context.Background(), "+15550009999"); err != nil {
		t.Fatalf("dial failed: %v", err)
	}

	entries, _ := f.history.List(context.Background())
	if len(entries) != 1 || entries[0].BorrowerName != "Unknown" {
		t.Fatalf("expected one Unknown entry, got %+v", entries)
	}
	all, _ := f.accounts.List(context.Background())
	if all[0].LastContacted != "" {
		t.Fatalf("no account may be mutated, got %q", all[0].LastContacted)
	}
}

func TestToggleMute_IdempotentPair(t *testing.T) {
	f := newFixture(t, true)
	f.initReady(t)
	if err := f.ctrl.Dial(context.Background(), "+111"); err != nil {
		t.Fatalf("dial failed: %v", err)
	}

	muted, err := f.ctrl.ToggleMute()
	if err != nil || !muted {
		t.Fatalf("expected muted after first toggle, got %v %v", muted, err)
	}
	muted, err = f.ctrl.ToggleMute()
	if err != nil || muted {
		t.Fatalf("expected unmuted after second toggle, got %v %v", muted, err)
	}
	conn := f.lastConn(t)
	if len(conn.muteCalls) != 2 || conn.muteCalls[0] != true || conn.muteCalls[1] != false {
		t.Fatalf("expected forwarded mute values [true false], got %v", conn.muteCalls)
	}
}

func TestToggleMute_NoConnectionNoEffect(t *testing.T) {
	f := newFixture(t, true)
	f.initReady(t)
	if _, err := f.ctrl.ToggleMute(); !errors.Is(err, ErrNoActiveCall) {
		t.Fatalf("expected ErrNoActiveCall, got %v", err)
	}
}

func TestToggleHold_SignalsToneConvention(t *testing.T) {
	f := newFixture(t, true)
	f.initReady(t)
	if err := f.ctrl.Dial(context.Background(), "+111"); err != nil {
		t.Fatalf("dial failed: %v", err)
	}

	onHold, err := f.ctrl.ToggleHold()
	if err != nil || !onHold {
		t.Fatalf("expected on hold, got %v %v", onHold, err)
	}
	if got := f.ctrl.Snapshot().HoldLabel; got != "Resume" {
		t.Fatalf("expected Resume label, got %q", got)
	}
	onHold, err = f.ctrl.ToggleHold()
	if err != nil || onHold {
		t.Fatalf("expected resumed, got %v %v", onHold, err)
	}
	conn := f.lastConn(t)
	if len(conn.digits) != 2 || conn.digits[0] != "*8" || conn.digits[1] != "*9" {
		t.Fatalf("expected hold/resume tones [*8 *9], got %v", conn.digits)
	}
}

func TestSendDigit_AppendsAlwaysForwardsInCall(t *testing.T) {
	f := newFixture(t, true)
	f.initReady(t)

	if err := f.ctrl.SendDigit("5"); err != nil {
		t.Fatalf("digit outside call failed: %v", err)
	}
	if got := f.ctrl.Snapshot().Number; got != "5" {
		t.Fatalf("expected digit appended to display, got %q", got)
	}

	if err := f.ctrl.Dial(context.Background(), "+111"); err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	if err := f.ctrl.SendDigit("#"); err != nil {
		t.Fatalf("digit in call failed: %v", err)
	}
	conn := f.lastConn(t)
	if len(conn.digits) != 1 || conn.digits[0] != "#" {
		t.Fatalf("expected forwarded DTMF [#], got %v", conn.digits)
	}
	if got := f.ctrl.Snapshot().Number; got != "+111#" {
		t.Fatalf("expected display updated, got %q", got)
	}

	if err := f.ctrl.SendDigit("12"); !errors.Is(err, ErrBadDigit) {
		t.Fatalf("expected ErrBadDigit, got %v", err)
	}
}

func endedSnapshotChecks(t *testing.T, f *fixture) {
	t.Helper()
	s := f.ctrl.Snapshot()
	if s.Elapsed != "00:00" {
		t.Fatalf("expected elapsed reset to 00:00, got %q", s.Elapsed)
	}
	if s.Muted || s.OnHold || s.MuteLabel != "Mute" || s.HoldLabel != "Hold" {
		t.Fatalf("expected cleared mute/hold display, got %+v", s)
	}
	if !s.ShowDial || s.ShowEndCall {
		t.Fatalf("expected dial control restored, got %+v", s)
	}
	if f.ctrl.State() != StateEnded {
		t.Fatalf("expected ended, got %s", f.ctrl.State())
	}
}

func TestEnd_LocalEndCallResetsEverything(t *testing.T) {
	f := newFixture(t, true)
	f.initReady(t)
	if err := f.ctrl.Dial(context.Background(), "+111"); err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	_, _ = f.ctrl.ToggleMute()
	_, _ = f.ctrl.ToggleHold()

	if err := f.ctrl.End(context.Background()); err != nil {
		t.Fatalf("end failed: %v", err)
	}
	if !f.lastConn(t).disconnected {
		t.Fatalf("end-call must actively disconnect the connection")
	}
	endedSnapshotChecks(t, f)
}

func TestEnd_RemoteDisconnectResetsEverything(t *testing.T) {
	f := newFixture(t, true)
	f.initReady(t)
	if err := f.ctrl.Dial(context.Background(), "+111"); err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	_, _ = f.ctrl.ToggleMute()

	f.lastConn(t).ev.OnDisconnect()
	endedSnapshotChecks(t, f)
}

func TestCallError_TearsDownReusable(t *testing.T) {
	f := newFixture(t, true)
	f.initReady(t)
	if err := f.ctrl.Dial(context.Background(), "+111"); err != nil {
		t.Fatalf("dial failed: %v", err)
	}

	f.lastConn(t).ev.OnError(errors.New("carrier rejected"))
	if f.ctrl.State() != StateEnded {
		t.Fatalf("expected ended after call error, got %s", f.ctrl.State())
	}

	entries, _ := f.history.List(context.Background())
	if len(entries) != 2 || entries[0].Status != callhistory.StatusFailed {
		t.Fatalf("expected failed entry at head, got %+v", entries)
	}

	// Session must stay reusable after an error.
	if err := f.ctrl.Dial(context.Background(), "+222"); err != nil {
		t.Fatalf("redial after error failed: %v", err)
	}
}

func TestElapsed_RunsWhileConnected(t *testing.T) {
	f := newFixture(t, true)
	f.initReady(t)

	base := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	now := base
	f.ctrl.clock = func() time.Time { return now }

	if err := f.ctrl.Dial(context.Background(), "+111"); err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	now = base.Add(95 * time.Second)
	if got := f.ctrl.Elapsed(); got != "01:35" {
		t.Fatalf("expected 01:35, got %q", got)
	}
}

type fakeGuard struct {
	allow    bool
	acquired int
	released int
}

func (g *fakeGuard) Acquire(ctx context.Context) (bool, error) {
	g.acquired++
	return g.allow, nil
}

func (g *fakeGuard) Release(ctx context.Context) error {
	g.released++
	return nil
}

func TestDial_LineGuard(t *testing.T) {
	f := newFixture(t, true)
	guard := &fakeGuard{allow: false}
	f.ctrl.cfg.Guard = guard
	f.initReady(t)

	if err := f.ctrl.Dial(context.Background(), "+111"); !errors.Is(err, ErrLineBusy) {
		t.Fatalf("expected ErrLineBusy, got %v", err)
	}
	if f.ctrl.State() != StateReady {
		t.Fatalf("line-busy must not change state, got %s", f.ctrl.State())
	}

	guard.allow = true
	if err := f.ctrl.Dial(context.Background(), "+111"); err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	if err := f.ctrl.End(context.Background()); err != nil {
		t.Fatalf("end failed: %v", err)
	}
	if guard.released != 1 {
		t.Fatalf("expected guard released on end, got %d", guard.released)
	}
}
