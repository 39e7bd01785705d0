package spektrum

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

// fakeTransport is a scriptable Transport for supervisor tests.
type fakeTransport struct {
	mu      sync.Mutex
	writes  [][]byte
	pingErr error

	inbound   chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		inbound: make(chan []byte, 16),
		closed:  make(chan struct{}),
	}
}

func (t *fakeTransport) Read(ctx context.Context) ([]byte, error) {
	select {
	case data := <-t.inbound:
		return data, nil
	case <-t.closed:
		return nil, errors.New("transport closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (t *fakeTransport) Write(_ context.Context, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.writes = append(t.writes, append([]byte(nil), data...))
	return nil
}

func (t *fakeTransport) Ping(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pingErr
}

func (t *fakeTransport) Close(string) error {
	t.closeOnce.Do(func() { close(t.closed) })
	return nil
}

// fail simulates a server-side drop: the read loop observes an error.
func (t *fakeTransport) fail() {
	t.closeOnce.Do(func() { close(t.closed) })
}

func (t *fakeTransport) isClosed() bool {
	select {
	case <-t.closed:
		return true
	default:
		return false
	}
}

func (t *fakeTransport) setPingErr(err error) {
	t.mu.Lock()
	t.pingErr = err
	t.mu.Unlock()
}

func (t *fakeTransport) writeCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.writes)
}

func (t *fakeTransport) writeAt(i int) []byte {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.writes[i]
}

// serverSend delivers a raw frame as if the server pushed it.
func (t *fakeTransport) serverSend(tb testing.TB, raw string) {
	tb.Helper()
	select {
	case t.inbound <- []byte(raw):
	case <-time.After(2 * time.Second):
		tb.Fatalf("inbound buffer full")
	}
}

// fakeDialer hands out fake transports, optionally failing the first dials.
type fakeDialer struct {
	mu         sync.Mutex
	errs       []error
	dials      int
	transports []*fakeTransport
}

func (d *fakeDialer) Dial(context.Context, string) (Transport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if len(d.errs) > 0 {
		err := d.errs[0]
		d.errs = d.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	tr := newFakeTransport()
	d.transports = append(d.transports, tr)
	return tr, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials
}

func (d *fakeDialer) transportCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.transports)
}

func (d *fakeDialer) transportAt(i int) *fakeTransport {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.transports[i]
}

func testConfig(d *fakeDialer) Config {
	cfg := DefaultConfig()
	cfg.URL = "ws://test/ws"
	cfg.Dialer = d
	cfg.Store = NopStore{}
	cfg.ReconnectInitialDelay = 5 * time.Millisecond
	cfg.ReconnectMaxDelay = 20 * time.Millisecond
	cfg.MaxReconnectAttempts = 3
	cfg.HeartbeatInterval = 0
	cfg.LivenessInterval = 0
	cfg.HandshakeTimeout = time.Second
	return cfg
}

func testCredential() Credential {
	return Credential{
		PlayerID:   uuid.New(),
		PlayerName: "alice",
		LobbyID:    uuid.New(),
		JoinCode:   "123456",
		CreatedAt:  time.Now(),
	}
}

func waitForState(t *testing.T, c *Client, want ConnectionState) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.State() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("state = %v, want %v", c.State(), want)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

// awaitTransport waits until the dialer has produced n transports and
// returns the newest one.
func awaitTransport(t *testing.T, d *fakeDialer, n int) *fakeTransport {
	t.Helper()
	waitFor(t, fmt.Sprintf("transport %d", n), func() bool { return d.transportCount() >= n })
	return d.transportAt(n - 1)
}

func connectedReply(cred Credential) string {
	return fmt.Sprintf(`{"type":"Connected","player_id":%q,"name":%q,"round_duration":30,"players":[["alice",0]]}`,
		cred.PlayerID, cred.PlayerName)
}

// openConnected drives a client through connect + handshake on a fresh
// transport.
func openConnected(t *testing.T, c *Client, d *fakeDialer, cred Credential) *fakeTransport {
	t.Helper()
	errCh := make(chan error, 1)
	go func() { errCh <- c.Connect(context.Background(), cred) }()
	tr := awaitTransport(t, d, d.transportCount()+1)
	tr.serverSend(t, connectedReply(cred))
	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Connect: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Connect did not return")
	}
	waitForState(t, c, StateConnected)
	return tr
}

func TestConnectPerformsHandshake(t *testing.T) {
	d := &fakeDialer{}
	c := NewClient(testConfig(d))
	defer c.Close()

	cred := testCredential()
	tr := openConnected(t, c, d, cred)

	waitFor(t, "handshake write", func() bool { return tr.writeCount() >= 1 })
	var msg ClientMessage
	if err := json.Unmarshal(tr.writeAt(0), &msg); err != nil {
		t.Fatalf("decode handshake: %v", err)
	}
	if msg.Type != MsgConnect || msg.PlayerID != cred.PlayerID.String() {
		t.Fatalf("unexpected handshake: %+v", msg)
	}
	if got := c.Snapshot().Generation; got != 1 {
		t.Fatalf("generation = %d, want 1", got)
	}
}

func TestSendRequiresOpenTransport(t *testing.T) {
	d := &fakeDialer{}
	c := NewClient(testConfig(d))
	defer c.Close()

	err := c.SubmitAnswer("blue")
	if !errors.Is(err, NewError(ErrorNotConnected, "")) {
		t.Fatalf("expected not_connected, got %v", err)
	}
}

func TestDialFailureSchedulesRetry(t *testing.T) {
	d := &fakeDialer{errs: []error{errors.New("refused"), errors.New("refused"), errors.New("refused")}}
	cfg := testConfig(d)
	// Long delay keeps the client observable in RECONNECTING.
	cfg.ReconnectInitialDelay = 500 * time.Millisecond
	cfg.ReconnectMaxDelay = time.Second
	c := NewClient(cfg)
	defer c.Close()

	err := c.Connect(context.Background(), testCredential())
	if !IsConnectionError(err) {
		t.Fatalf("expected connection error, got %v", err)
	}

	waitForState(t, c, StateReconnecting)
	snap := c.Snapshot()
	if snap.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", snap.Attempts)
	}
	if snap.NextRetry.IsZero() {
		t.Fatalf("expected a scheduled retry")
	}
	// Jitter is upward-only: the delay sits in [initial, 1.25*initial].
	until := time.Until(snap.NextRetry)
	if until > 625*time.Millisecond {
		t.Fatalf("retry scheduled too far out: %v", until)
	}
	if until < 400*time.Millisecond {
		t.Fatalf("retry scheduled below the base delay: %v", until)
	}
}

func TestRetryCeiling(t *testing.T) {
	boom := errors.New("refused")
	d := &fakeDialer{errs: []error{boom, boom, boom, boom}}
	c := NewClient(testConfig(d))
	defer c.Close()

	_ = c.Connect(context.Background(), testCredential())
	waitForState(t, c, StateError)

	if got := d.dialCount(); got != 3 {
		t.Fatalf("dials = %d, want 3", got)
	}
	time.Sleep(60 * time.Millisecond)
	if got := d.dialCount(); got != 3 {
		t.Fatalf("dials after settling = %d, want 3 (no timer may survive ERROR)", got)
	}
	snap := c.Snapshot()
	if !snap.NextRetry.IsZero() {
		t.Fatalf("retry still scheduled in ERROR state")
	}
	if !errors.Is(snap.Err, NewError(ErrorRetriesExhausted, "")) {
		t.Fatalf("unexpected terminal error: %v", snap.Err)
	}
}

func TestStaleTransportEventsIgnored(t *testing.T) {
	d := &fakeDialer{}
	c := NewClient(testConfig(d))
	defer c.Close()

	cred := testCredential()
	t1 := openConnected(t, c, d, cred)

	if err := c.ManualReconnect(); err != nil {
		t.Fatalf("ManualReconnect: %v", err)
	}
	t2 := awaitTransport(t, d, 2)
	t2.serverSend(t, connectedReply(cred))
	waitForState(t, c, StateConnected)

	// The superseded transport must have been closed when the new attempt
	// started, and its late callbacks must not move the state machine.
	waitFor(t, "old transport closed", t1.isClosed)
	t1.fail()
	time.Sleep(30 * time.Millisecond)
	if got := c.State(); got != StateConnected {
		t.Fatalf("stale close changed state to %v", got)
	}
	if got := d.dialCount(); got != 2 {
		t.Fatalf("stale close triggered dial, count = %d", got)
	}
}

func TestUnexpectedCloseReconnects(t *testing.T) {
	d := &fakeDialer{}
	c := NewClient(testConfig(d))
	defer c.Close()

	cred := testCredential()
	t1 := openConnected(t, c, d, cred)

	t1.fail()
	t2 := awaitTransport(t, d, 2)
	t2.serverSend(t, connectedReply(cred))
	waitForState(t, c, StateConnected)
	waitFor(t, "attempts reset", func() bool { return c.Snapshot().Attempts == 0 })
}

func TestVisibilityPauseResume(t *testing.T) {
	signals := NewSignals()
	d := &fakeDialer{errs: []error{errors.New("refused")}}
	cfg := testConfig(d)
	cfg.Env = signals
	cfg.ReconnectInitialDelay = 500 * time.Millisecond
	cfg.ReconnectMaxDelay = time.Second
	c := NewClient(cfg)
	defer c.Close()

	cred := testCredential()
	_ = c.Connect(context.Background(), cred)
	waitForState(t, c, StateReconnecting)

	signals.SetVisible(false)
	waitForState(t, c, StateSuspended)
	if !c.Snapshot().NextRetry.IsZero() {
		t.Fatalf("retry timer survived suspension")
	}
	time.Sleep(30 * time.Millisecond)
	if got := d.dialCount(); got != 1 {
		t.Fatalf("dialed while hidden, count = %d", got)
	}

	signals.SetVisible(true)
	tr := awaitTransport(t, d, 1)
	tr.serverSend(t, connectedReply(cred))
	waitForState(t, c, StateConnected)
	if got := c.Snapshot().Attempts; got != 0 {
		t.Fatalf("attempts = %d after resume, want 0", got)
	}
	if got := d.dialCount(); got != 2 {
		t.Fatalf("dials = %d, want 2", got)
	}
}

func TestOfflinePauseResume(t *testing.T) {
	signals := NewSignals()
	d := &fakeDialer{}
	cfg := testConfig(d)
	cfg.Env = signals
	c := NewClient(cfg)
	defer c.Close()

	cred := testCredential()
	t1 := openConnected(t, c, d, cred)

	signals.SetOnline(false)
	waitForState(t, c, StateOffline)
	waitFor(t, "transport closed on offline", t1.isClosed)

	signals.SetOnline(true)
	t2 := awaitTransport(t, d, 2)
	t2.serverSend(t, connectedReply(cred))
	waitForState(t, c, StateConnected)
	if got := c.Snapshot().Attempts; got != 0 {
		t.Fatalf("attempts = %d after resume, want 0", got)
	}
}

func TestHiddenWhileConnectedKeepsTransport(t *testing.T) {
	signals := NewSignals()
	d := &fakeDialer{}
	cfg := testConfig(d)
	cfg.Env = signals
	c := NewClient(cfg)
	defer c.Close()

	var deltas int
	var mu sync.Mutex
	c.OnStateDelta(func(StateDeltaEvent) {
		mu.Lock()
		deltas++
		mu.Unlock()
	})

	cred := testCredential()
	t1 := openConnected(t, c, d, cred)

	signals.SetVisible(false)
	waitForState(t, c, StateSuspended)
	if t1.isClosed() {
		t.Fatalf("transport closed on hide; it must stay open")
	}

	// Inbound traffic keeps flowing to the application while suspended.
	t1.serverSend(t, `{"type":"StateDelta","phase":"score"}`)
	waitFor(t, "delta delivered", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return deltas == 1
	})

	signals.SetVisible(true)
	waitForState(t, c, StateConnected)
	if got := d.dialCount(); got != 1 {
		t.Fatalf("resume redialed; dials = %d, want 1", got)
	}
}

func TestGameClosedIsTerminal(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	d := &fakeDialer{}
	cfg := testConfig(d)
	cfg.Store = store
	c := NewClient(cfg)
	defer c.Close()

	cred := testCredential()
	t1 := openConnected(t, c, d, cred)
	waitFor(t, "session persisted", func() bool {
		got, err := store.Load(cred.Key())
		return err == nil && got != nil
	})

	t1.serverSend(t, `{"type":"GameClosed","reason":"admin closed the game"}`)
	waitForState(t, c, StateDisconnected)

	if c.CanReconnect() {
		t.Fatalf("CanReconnect() = true after GameClosed")
	}
	if err := c.ManualReconnect(); !errors.Is(err, NewError(ErrorNoCredential, "")) {
		t.Fatalf("expected no_credential, got %v", err)
	}
	if got, _ := store.Load(cred.Key()); got != nil {
		t.Fatalf("credential survived GameClosed")
	}
	time.Sleep(30 * time.Millisecond)
	if got := d.dialCount(); got != 1 {
		t.Fatalf("retry after GameClosed, dials = %d", got)
	}
}

func TestSessionErrorClearsCredential(t *testing.T) {
	d := &fakeDialer{}
	c := NewClient(testConfig(d))
	defer c.Close()

	cred := testCredential()
	t1 := openConnected(t, c, d, cred)

	t1.serverSend(t, `{"type":"Error","message":"LobbyNotFound: lobby expired"}`)
	waitForState(t, c, StateError)

	if c.CanReconnect() {
		t.Fatalf("CanReconnect() = true after LobbyNotFound")
	}
	if err := c.ManualReconnect(); !errors.Is(err, NewError(ErrorNoCredential, "")) {
		t.Fatalf("expected no_credential, got %v", err)
	}
	if !IsSessionInvalid(c.Snapshot().Err) {
		t.Fatalf("snapshot error is not session-invalidating: %v", c.Snapshot().Err)
	}
}

func TestManualReconnectBypassesBackoff(t *testing.T) {
	boom := errors.New("refused")
	d := &fakeDialer{errs: []error{boom, boom, boom}}
	cfg := testConfig(d)
	c := NewClient(cfg)
	defer c.Close()

	cred := testCredential()
	_ = c.Connect(context.Background(), cred)
	waitForState(t, c, StateError)
	if !c.CanReconnect() {
		t.Fatalf("credential should survive exhausted retries")
	}

	if err := c.ManualReconnect(); err != nil {
		t.Fatalf("ManualReconnect: %v", err)
	}
	tr := awaitTransport(t, d, 1)
	tr.serverSend(t, connectedReply(cred))
	waitForState(t, c, StateConnected)
	if got := c.Snapshot().Attempts; got != 0 {
		t.Fatalf("attempts = %d after manual reconnect, want 0", got)
	}
}

func TestLivenessTimeoutTriggersReconnect(t *testing.T) {
	d := &fakeDialer{}
	cfg := testConfig(d)
	cfg.LivenessInterval = 10 * time.Millisecond
	cfg.LivenessTimeout = 40 * time.Millisecond
	cfg.ReconnectInitialDelay = 500 * time.Millisecond
	cfg.ReconnectMaxDelay = time.Second
	c := NewClient(cfg)
	defer c.Close()

	var phase string
	var mu sync.Mutex
	c.OnStateDelta(func(ev StateDeltaEvent) {
		mu.Lock()
		defer mu.Unlock()
		if ev.Phase != nil {
			phase = *ev.Phase
		}
	})

	cred := testCredential()
	t1 := openConnected(t, c, d, cred)
	t1.serverSend(t, `{"type":"StateDelta","phase":"question","alternatives":["red","blue"]}`)

	// Silence beyond the liveness bound is a synthetic disconnect, not a
	// terminal error.
	waitForState(t, c, StateReconnecting)
	mu.Lock()
	got := phase
	mu.Unlock()
	if got != PhaseQuestion {
		t.Fatalf("phase = %q, want %q", got, PhaseQuestion)
	}
}

func TestHeartbeatProbeFailure(t *testing.T) {
	d := &fakeDialer{}
	cfg := testConfig(d)
	cfg.HeartbeatInterval = 10 * time.Millisecond
	cfg.HeartbeatTimeout = 50 * time.Millisecond
	cfg.ReconnectInitialDelay = 500 * time.Millisecond
	cfg.ReconnectMaxDelay = time.Second
	c := NewClient(cfg)
	defer c.Close()

	cred := testCredential()
	t1 := openConnected(t, c, d, cred)
	t1.setPingErr(errors.New("no pong"))

	waitForState(t, c, StateReconnecting)
	snap := c.Snapshot()
	if !errors.Is(snap.Err, NewError(ErrorTimeout, "")) {
		t.Fatalf("expected timeout error, got %v", snap.Err)
	}
}

func TestConnectSuperseded(t *testing.T) {
	d := &fakeDialer{}
	c := NewClient(testConfig(d))
	defer c.Close()

	first := make(chan error, 1)
	go func() { first <- c.Connect(context.Background(), testCredential()) }()
	awaitTransport(t, d, 1)

	cred2 := testCredential()
	second := make(chan error, 1)
	go func() { second <- c.Connect(context.Background(), cred2) }()

	select {
	case err := <-first:
		if !errors.Is(err, NewError(ErrorSuperseded, "")) {
			t.Fatalf("expected superseded, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("first Connect still pending")
	}

	t2 := awaitTransport(t, d, 2)
	t2.serverSend(t, connectedReply(cred2))
	if err := <-second; err != nil {
		t.Fatalf("second Connect: %v", err)
	}
}

func TestDisconnectIsPermanent(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	d := &fakeDialer{}
	cfg := testConfig(d)
	cfg.Store = store
	c := NewClient(cfg)
	defer c.Close()

	cred := testCredential()
	t1 := openConnected(t, c, d, cred)

	c.Disconnect()
	waitForState(t, c, StateDisconnected)
	waitFor(t, "leave written", func() bool { return t1.writeCount() >= 2 })
	var msg ClientMessage
	if err := json.Unmarshal(t1.writeAt(1), &msg); err != nil {
		t.Fatalf("decode leave: %v", err)
	}
	if msg.Type != MsgLeave {
		t.Fatalf("second write = %q, want Leave", msg.Type)
	}
	if got, _ := store.Load(cred.Key()); got != nil {
		t.Fatalf("credential survived Disconnect")
	}
	time.Sleep(30 * time.Millisecond)
	if got := d.dialCount(); got != 1 {
		t.Fatalf("retry after Disconnect, dials = %d", got)
	}
	if err := c.SubmitAnswer("red"); !errors.Is(err, NewError(ErrorNotConnected, "")) {
		t.Fatalf("expected not_connected after Disconnect, got %v", err)
	}
}

func TestMalformedInboundDoesNotKillConnection(t *testing.T) {
	d := &fakeDialer{}
	c := NewClient(testConfig(d))
	defer c.Close()

	var errCount int
	var mu sync.Mutex
	c.OnError(func(error) {
		mu.Lock()
		errCount++
		mu.Unlock()
	})

	cred := testCredential()
	t1 := openConnected(t, c, d, cred)

	t1.serverSend(t, `{not json`)
	t1.serverSend(t, `{"phase":"question"}`) // missing type
	waitFor(t, "errors surfaced", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return errCount == 2
	})
	if got := c.State(); got != StateConnected {
		t.Fatalf("malformed frame changed state to %v", got)
	}
}

func TestCloseRejectsFurtherOperations(t *testing.T) {
	d := &fakeDialer{}
	c := NewClient(testConfig(d))
	c.Close()

	if err := c.Connect(context.Background(), testCredential()); !errors.Is(err, NewError(ErrorClientClosed, "")) {
		t.Fatalf("expected client_closed, got %v", err)
	}
	if err := c.ManualReconnect(); !errors.Is(err, NewError(ErrorClientClosed, "")) {
		t.Fatalf("expected client_closed, got %v", err)
	}
}

func TestHandshakeTimeoutSchedulesRetry(t *testing.T) {
	d := &fakeDialer{}
	cfg := testConfig(d)
	cfg.HandshakeTimeout = 30 * time.Millisecond
	cfg.ReconnectInitialDelay = 500 * time.Millisecond
	cfg.ReconnectMaxDelay = 500 * time.Millisecond
	c := NewClient(cfg)
	defer c.Close()

	errCh := make(chan error, 1)
	go func() { errCh <- c.Connect(context.Background(), testCredential()) }()

	// The transport opens but the server never acknowledges the handshake.
	awaitTransport(t, d, 1)

	select {
	case err := <-errCh:
		if !errors.Is(err, NewError(ErrorTimeout, "")) {
			t.Fatalf("Connect = %v, want timeout", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Connect did not return after handshake timeout")
	}

	waitForState(t, c, StateReconnecting)
	if got := c.Snapshot().Attempts; got != 1 {
		t.Fatalf("attempts = %d, want 1", got)
	}
}

func TestHandshakeClearsSnapshotError(t *testing.T) {
	d := &fakeDialer{}
	c := NewClient(testConfig(d))
	defer c.Close()

	cred := testCredential()
	tr := openConnected(t, c, d, cred)

	tr.fail()
	waitFor(t, "failure in snapshot", func() bool { return c.Snapshot().Err != nil })

	tr2 := awaitTransport(t, d, 2)
	tr2.serverSend(t, connectedReply(cred))
	waitForState(t, c, StateConnected)
	waitFor(t, "snapshot error cleared", func() bool { return c.Snapshot().Err == nil })
}

func TestStaleRetrySignalIgnoredWhileConnected(t *testing.T) {
	d := &fakeDialer{}
	c := NewClient(testConfig(d))
	defer c.Close()

	openConnected(t, c, d, testCredential())
	dials := d.dialCount()

	// A retry timer stopped just after firing still delivers its signal;
	// an established connection must not redial on it.
	c.post(evRetry{})

	time.Sleep(50 * time.Millisecond)
	if got := d.dialCount(); got != dials {
		t.Fatalf("dials = %d, want %d", got, dials)
	}
	if got := c.State(); got != StateConnected {
		t.Fatalf("state = %v, want connected", got)
	}
}

func TestStateStringCoverage(t *testing.T) {
	states := map[ConnectionState]string{
		StateInitial:      "initial",
		StateConnecting:   "connecting",
		StateConnected:    "connected",
		StateDisconnected: "disconnected",
		StateError:        "error",
		StateReconnecting: "reconnecting",
		StateSuspended:    "suspended",
		StateOffline:      "offline",
	}
	for state, want := range states {
		if got := state.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", state, got, want)
		}
	}
}
