package spektrum

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/kottz/spektrum-client-go/spektrum/internal"
)

// Transport is the bidirectional channel behind one connection attempt. A
// transport lives for exactly one generation; callbacks from a superseded
// transport are discarded by the client.
type Transport interface {
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	// Ping sends a probe and waits for its acknowledgement.
	Ping(ctx context.Context) error
	Close(reason string) error
}

// Dialer opens a transport to the game server.
type Dialer interface {
	Dial(ctx context.Context, url string) (Transport, error)
}

type wsDialer struct {
	writeTimeout time.Duration
}

func (d wsDialer) Dial(ctx context.Context, url string) (Transport, error) {
	ws, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return internal.NewConn(ws, 0, d.writeTimeout), nil
}

// sessionValidity tracks whether the held credential is believed usable.
type sessionValidity int

const (
	sessionUnknown sessionValidity = iota
	sessionValid
	sessionInvalid
)

// Events processed by the run loop. Everything transport-originated carries
// the generation it was issued against.
type (
	reqConnect struct {
		cred  Credential
		reply chan error
	}
	reqDisconnect struct{ done chan struct{} }
	reqReconnect  struct{ reply chan error }
	reqSend       struct {
		msg   ClientMessage
		reply chan error
	}
	reqClose struct{}

	evOpened struct {
		gen uint64
		tr  Transport
	}
	evDialFailed struct {
		gen uint64
		err error
	}
	evClosed struct {
		gen uint64
		err error
	}
	evInbound struct {
		gen uint64
		msg ServerMessage
	}
	evBadMessage struct {
		gen uint64
		err error
	}
	evPong        struct{ gen uint64 }
	evProbeFailed struct {
		gen uint64
		err error
	}
	evHandshakeTimeout struct{ gen uint64 }
	evRetry            struct{}
	evHeartbeat        struct{}
	evLiveness         struct{}
	evEnv              struct{ env EnvEvent }
)

// Client supervises the single logical connection to the game server: it
// opens and closes transports, schedules retries, classifies failures, and
// forwards validated inbound messages to the registered callbacks.
//
// All mutable state is owned by one run goroutine. Public operations and
// transport callbacks post events into its queue and never touch the fields
// directly, so events are applied strictly in delivery order.
type Client struct {
	cfg        Config
	logger     Logger
	dialer     Dialer
	store      SessionStore
	backoff    Backoff
	dispatcher Dispatcher

	events chan any
	done   chan struct{}

	// Run-loop owned. Never read or written outside the loop.
	state         ConnectionState
	generation    uint64
	transport     Transport
	writeCh       chan []byte
	cred          Credential
	hasCred       bool
	desired       bool
	validity      sessionValidity
	visible       bool
	online        bool
	attempts      int
	nextRetry     time.Time
	lastActivity  time.Time
	awaitingHello bool
	lastErr       error
	pending       *pendingConnect
	retryTimer    *time.Timer
	hbTimer       *time.Timer
	liveTimer     *time.Timer
	helloTimer    *time.Timer
	stopping      bool

	mu           sync.Mutex
	snap         Snapshot
	canReconnect bool
	onState      func(StateEvent)

	closeOnce sync.Once
}

// pendingConnect is a Connect call waiting for the handshake reply of the
// attempt it initiated.
type pendingConnect struct {
	reply chan error
}

// NewClient constructs a client and starts its event loop. Callers must
// Close it when done.
func NewClient(cfg Config) *Client {
	c := &Client{
		cfg:    cfg,
		logger: noopLogger{},
		dialer: cfg.Dialer,
		store:  cfg.Store,
		backoff: Backoff{
			Initial: cfg.ReconnectInitialDelay,
			Max:     cfg.ReconnectMaxDelay,
		},
		events:  make(chan any, 64),
		done:    make(chan struct{}),
		state:   StateInitial,
		visible: true,
		online:  true,
	}
	if c.dialer == nil {
		c.dialer = wsDialer{writeTimeout: cfg.WriteTimeout}
	}
	if c.store == nil {
		c.store = DefaultStore()
	}
	c.publish()
	go c.run()
	if cfg.Env != nil {
		go c.watchEnv(cfg.Env)
	}
	return c
}

// SetLogger overrides the logger (optional). Call before Connect.
func (c *Client) SetLogger(l Logger) {
	if l != nil {
		c.logger = l
	}
}

// Callback registration. Register before Connect; callbacks run on the
// client's event loop and must not block.

func (c *Client) OnConnected(fn func(ConnectedEvent))   { c.dispatcher.SetOnConnected(fn) }
func (c *Client) OnStateDelta(fn func(StateDeltaEvent)) { c.dispatcher.SetOnStateDelta(fn) }
func (c *Client) OnAnswered(fn func(AnsweredEvent))     { c.dispatcher.SetOnAnswered(fn) }
func (c *Client) OnPlayerLeft(fn func(PlayerLeftEvent)) { c.dispatcher.SetOnPlayerLeft(fn) }
func (c *Client) OnGameOver(fn func(GameOverEvent))     { c.dispatcher.SetOnGameOver(fn) }
func (c *Client) OnGameClosed(fn func(GameClosedEvent)) { c.dispatcher.SetOnGameClosed(fn) }
func (c *Client) OnKicked(fn func(KickedEvent))         { c.dispatcher.SetOnKicked(fn) }
func (c *Client) OnAdminInfo(fn func(AdminInfoEvent))   { c.dispatcher.SetOnAdminInfo(fn) }
func (c *Client) OnAdminNextQuestions(fn func(AdminNextQuestionsEvent)) {
	c.dispatcher.SetOnAdminNextQuestions(fn)
}
func (c *Client) OnError(fn func(error)) { c.dispatcher.SetOnError(fn) }

// OnStateChange registers a callback fired on every state transition.
func (c *Client) OnStateChange(fn func(StateEvent)) {
	c.mu.Lock()
	c.onState = fn
	c.mu.Unlock()
}

// Connect requests a connection with the given credential. It returns once
// the server acknowledges the handshake, or with the error that ended this
// attempt. A newer Connect or Disconnect supersedes a waiting one.
func (c *Client) Connect(ctx context.Context, cred Credential) error {
	if c.cfg.URL == "" {
		return NewError(ErrorInvalidConfig, "empty URL")
	}
	if !cred.Valid() {
		return NewError(ErrorNoCredential, "credential has no player id")
	}
	reply := make(chan error, 1)
	if !c.post(reqConnect{cred: cred, reply: reply}) {
		return NewError(ErrorClientClosed, "client is closed")
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return NewError(ErrorClientClosed, "client is closed")
	}
}

// Disconnect performs a user-initiated, permanent teardown: the credential
// is forgotten and no automatic retries follow.
func (c *Client) Disconnect() {
	done := make(chan struct{})
	if !c.post(reqDisconnect{done: done}) {
		return
	}
	select {
	case <-done:
	case <-c.done:
	}
}

// ManualReconnect forces an immediate attempt with the last-known
// credential, bypassing any scheduled backoff. It fails fast when no
// credential is held.
func (c *Client) ManualReconnect() error {
	reply := make(chan error, 1)
	if !c.post(reqReconnect{reply: reply}) {
		return NewError(ErrorClientClosed, "client is closed")
	}
	select {
	case err := <-reply:
		return err
	case <-c.done:
		return NewError(ErrorClientClosed, "client is closed")
	}
}

// Send transmits an application message if the transport is open. Messages
// are never queued for a future connection.
func (c *Client) Send(msg ClientMessage) error {
	reply := make(chan error, 1)
	if !c.post(reqSend{msg: msg, reply: reply}) {
		return NewError(ErrorClientClosed, "client is closed")
	}
	select {
	case err := <-reply:
		return err
	case <-c.done:
		return NewError(ErrorClientClosed, "client is closed")
	}
}

// SubmitAnswer sends an answer for the current question.
func (c *Client) SubmitAnswer(answer string) error {
	return c.Send(AnswerMessage(answer))
}

// Admin helpers. The server rejects these unless the credential is the
// lobby admin's.

func (c *Client) StartGame() error { return c.Send(AdminActionMessage(AdminAction{Type: ActionStartGame})) }
func (c *Client) EndRound() error  { return c.Send(AdminActionMessage(AdminAction{Type: ActionEndRound})) }
func (c *Client) SkipQuestion() error {
	return c.Send(AdminActionMessage(AdminAction{Type: ActionSkipQuestion}))
}
func (c *Client) StartRound(alternatives []string) error {
	return c.Send(AdminActionMessage(AdminAction{Type: ActionStartRound, SpecifiedAlternatives: alternatives}))
}
func (c *Client) EndGame(reason string) error {
	return c.Send(AdminActionMessage(AdminAction{Type: ActionEndGame, Reason: reason}))
}
func (c *Client) CloseGame(reason string) error {
	return c.Send(AdminActionMessage(AdminAction{Type: ActionCloseGame, Reason: reason}))
}
func (c *Client) KickPlayer(name string) error {
	return c.Send(AdminActionMessage(AdminAction{Type: ActionKickPlayer, PlayerName: name}))
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap.State
}

// Snapshot returns a read-only view of the connection status.
func (c *Client) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap
}

// CanReconnect reports whether a manual reconnect could succeed: a
// credential is held and the session has not been declared invalid.
func (c *Client) CanReconnect() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.canReconnect
}

// Close disposes the client: all timers stop, the transport closes, and
// every public operation fails afterwards. Unlike Disconnect it keeps the
// stored credential.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		select {
		case c.events <- reqClose{}:
			<-c.done
		case <-c.done:
		}
	})
	return nil
}

// post delivers an event to the run loop; it reports false once the client
// is closed.
func (c *Client) post(ev any) bool {
	select {
	case c.events <- ev:
		return true
	case <-c.done:
		return false
	}
}

func (c *Client) run() {
	for ev := range c.events {
		c.handle(ev)
		c.publish()
		if c.stopping {
			close(c.done)
			return
		}
	}
}

func (c *Client) watchEnv(src EnvSource) {
	for {
		select {
		case ev, ok := <-src.Events():
			if !ok {
				return
			}
			if !c.post(evEnv{env: ev}) {
				return
			}
		case <-c.done:
			return
		}
	}
}

// handle is the single state-transition function. Stale generation tags are
// rejected here, before any field is touched.
func (c *Client) handle(ev any) {
	switch ev := ev.(type) {
	case reqConnect:
		c.handleConnectRequest(ev)
	case reqDisconnect:
		c.handleDisconnectRequest(ev)
	case reqReconnect:
		c.handleReconnectRequest(ev)
	case reqSend:
		c.handleSendRequest(ev)
	case reqClose:
		c.handleCloseRequest()

	case evOpened:
		if ev.gen != c.generation {
			// A superseded attempt finally produced a transport; at most
			// one may be live, so it is closed on the spot.
			go ev.tr.Close("superseded")
			return
		}
		c.handleOpened(ev.tr)
	case evDialFailed:
		if ev.gen != c.generation {
			return
		}
		c.connectionLost(WrapError(ErrorConnection, "dial failed", ev.err))
	case evClosed:
		if ev.gen != c.generation || c.transport == nil {
			return
		}
		if isExpectedClose(ev.err) {
			// The server ended the session cleanly; this is not a failure
			// and must not trigger retries.
			c.teardownTransport("server closed connection")
			c.desired = false
			c.rejectPending(NewError(ErrorDisconnected, "server closed connection"))
			c.setState(StateDisconnected, nil)
			return
		}
		c.connectionLost(WrapError(ErrorConnection, "transport closed unexpectedly", ev.err))
	case evInbound:
		if ev.gen != c.generation || c.transport == nil {
			return
		}
		c.handleInbound(ev.msg)
	case evBadMessage:
		if ev.gen != c.generation {
			return
		}
		c.lastErr = ev.err
		c.logger.Warn("dropping malformed server message", map[string]any{"error": ev.err.Error()})
		c.dispatcher.fireError(ev.err)
	case evPong:
		if ev.gen != c.generation || c.transport == nil {
			return
		}
		c.lastActivity = time.Now()
	case evProbeFailed:
		if ev.gen != c.generation || c.transport == nil {
			return
		}
		c.connectionLost(WrapError(ErrorTimeout, "heartbeat probe failed", ev.err))
	case evHandshakeTimeout:
		if ev.gen != c.generation || c.transport == nil || !c.awaitingHello {
			return
		}
		c.connectionLost(NewError(ErrorTimeout, "no handshake reply from server"))

	case evRetry:
		c.retryTimer = nil
		c.nextRetry = time.Time{}
		// A manual reconnect or fresh connect may already have dialed while
		// this timer fired; only a waiting client redials here.
		if c.state != StateReconnecting || !c.shouldReconnect() {
			return
		}
		c.startDial()
	case evHeartbeat:
		c.handleHeartbeat()
	case evLiveness:
		c.handleLiveness()
	case evEnv:
		c.handleEnv(ev.env)
	}
}

func (c *Client) handleConnectRequest(ev reqConnect) {
	c.rejectPending(NewError(ErrorSuperseded, "superseded by a newer connect"))
	c.pending = &pendingConnect{reply: ev.reply}
	c.cred = ev.cred
	c.hasCred = true
	c.desired = true
	c.validity = sessionUnknown
	c.attempts = 0
	c.stopRetry()
	c.teardownTransport("superseded by new connect")
	c.startWhenPermitted()
}

func (c *Client) handleReconnectRequest(ev reqReconnect) {
	if !c.hasCred {
		ev.reply <- NewError(ErrorNoCredential, "no credential held")
		return
	}
	ev.reply <- nil
	c.desired = true
	c.validity = sessionUnknown
	c.attempts = 0
	c.stopRetry()
	c.teardownTransport("manual reconnect")
	c.startWhenPermitted()
}

// startWhenPermitted opens a transport now, or parks in SUSPENDED/OFFLINE
// until the environment allows connecting again.
func (c *Client) startWhenPermitted() {
	switch {
	case !c.visible:
		c.setState(StateSuspended, nil)
	case !c.online:
		c.setState(StateOffline, nil)
	default:
		c.startDial()
	}
}

func (c *Client) handleDisconnectRequest(ev reqDisconnect) {
	c.desired = false
	c.rejectPending(NewError(ErrorDisconnected, "superseded by disconnect"))
	c.stopRetry()
	if c.writeCh != nil {
		// Best-effort leave notification; the writer drains the queue
		// before the transport closes underneath it.
		if data, err := json.Marshal(LeaveMessage()); err == nil {
			select {
			case c.writeCh <- data:
			default:
			}
		}
	}
	c.teardownTransport("user leave")
	c.forgetCredential()
	c.validity = sessionUnknown
	c.attempts = 0
	c.setState(StateDisconnected, nil)
	close(ev.done)
}

func (c *Client) handleSendRequest(ev reqSend) {
	if c.transport == nil || c.writeCh == nil {
		err := NewError(ErrorNotConnected, "connection not available")
		c.lastErr = err
		ev.reply <- err
		return
	}
	data, err := json.Marshal(ev.msg)
	if err != nil {
		ev.reply <- WrapError(ErrorSerialization, "failed to encode message", err)
		return
	}
	select {
	case c.writeCh <- data:
		ev.reply <- nil
	default:
		err := NewError(ErrorNotConnected, "write queue full")
		c.lastErr = err
		ev.reply <- err
	}
}

func (c *Client) handleCloseRequest() {
	c.rejectPending(NewError(ErrorClientClosed, "client is closed"))
	c.stopRetry()
	c.teardownTransport("client closing")
	c.stopping = true
}

// startDial bumps the generation and opens a transport asynchronously. The
// bump invalidates every callback still in flight from older transports.
func (c *Client) startDial() {
	c.generation++
	gen := c.generation
	c.setState(StateConnecting, nil)
	go c.dial(gen)
}

func (c *Client) dial(gen uint64) {
	ctx := context.Background()
	if c.cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.DialTimeout)
		defer cancel()
	}
	tr, err := c.dialer.Dial(ctx, c.cfg.URL)
	if err != nil {
		c.post(evDialFailed{gen: gen, err: err})
		return
	}
	c.post(evOpened{gen: gen, tr: tr})
}

func (c *Client) handleOpened(tr Transport) {
	if !c.online {
		// The network dropped while the dial was in flight.
		go tr.Close("offline")
		return
	}
	gen := c.generation
	c.transport = tr
	c.attempts = 0
	c.lastActivity = time.Now()
	c.awaitingHello = true

	c.writeCh = make(chan []byte, 16)
	go c.writeLoop(gen, tr, c.writeCh)
	go c.readLoop(gen, tr)

	if data, err := json.Marshal(ConnectMessage(c.cred.PlayerID)); err == nil {
		c.writeCh <- data
	}
	if c.cfg.HandshakeTimeout > 0 {
		c.helloTimer = time.AfterFunc(c.cfg.HandshakeTimeout, func() {
			c.post(evHandshakeTimeout{gen: gen})
		})
	}

	if c.visible {
		c.setState(StateConnected, nil)
		c.armHeartbeat()
		c.armLiveness()
	} else {
		// Opened while hidden: keep the transport but stay suspended with
		// probing paused until the application is visible again.
		c.setState(StateSuspended, nil)
	}
	c.logger.Info("transport open", map[string]any{"generation": gen})
}

func (c *Client) handleInbound(msg ServerMessage) {
	c.lastActivity = time.Now()

	if code, invalid := ClassifyServerMessage(msg); invalid {
		c.invalidateSession(code, msg)
		return
	}

	if msg.Type == MsgConnected {
		c.awaitingHello = false
		c.stopTimer(&c.helloTimer)
		c.validity = sessionValid
		c.lastErr = nil
		c.resolvePending()
		if err := c.store.Save(c.cred); err != nil {
			c.logger.Warn("failed to persist session", map[string]any{"error": err.Error()})
		}
	}

	c.dispatcher.Dispatch(msg)
}

// invalidateSession handles a server signal meaning the credential can never
// be used again: teardown with no retry, credential wiped.
func (c *Client) invalidateSession(code ErrorCode, msg ServerMessage) {
	reason := msg.Reason
	if reason == "" {
		reason = msg.Message
	}
	err := NewError(code, reason)
	c.logger.Info("session invalidated by server", map[string]any{
		"type":   msg.Type,
		"reason": reason,
	})

	c.stopRetry()
	c.teardownTransport("session ended")
	c.rejectPending(err)
	c.forgetCredential()
	c.desired = false
	c.validity = sessionInvalid
	c.lastErr = err

	switch msg.Type {
	case MsgGameClosed, MsgPlayerKicked:
		// Clean, server-decided endings.
		c.setState(StateDisconnected, err)
	default:
		c.setState(StateError, err)
	}

	// The application still learns why it was thrown out.
	c.dispatcher.Dispatch(msg)
}

// connectionLost is the shared unexpected-disconnect path: transport errors,
// dial failures, heartbeat and liveness violations all land here so they
// obey identical visibility and network guards.
func (c *Client) connectionLost(err error) {
	c.teardownTransport("connection lost")
	c.rejectPending(err)
	c.lastErr = err

	switch {
	case !c.desired || c.validity == sessionInvalid:
		c.setState(StateDisconnected, err)
	case !c.visible:
		// Not an error condition; no retry budget is consumed while
		// hidden, reconnection happens on resume.
		c.setState(StateSuspended, err)
	case !c.online:
		c.setState(StateOffline, err)
	default:
		c.attempts++
		if c.attempts >= c.cfg.MaxReconnectAttempts {
			c.desired = false
			exhausted := WrapError(ErrorRetriesExhausted, "automatic reconnect attempts exhausted", err)
			c.lastErr = exhausted
			c.setState(StateError, exhausted)
			return
		}
		c.scheduleRetry(err)
	}
}

func (c *Client) scheduleRetry(err error) {
	delay := c.backoff.Delay(c.attempts - 1)
	c.nextRetry = time.Now().Add(delay)
	c.retryTimer = time.AfterFunc(delay, func() {
		c.post(evRetry{})
	})
	c.setState(StateReconnecting, err)
	c.logger.Info("retry scheduled", map[string]any{
		"attempt": c.attempts,
		"delay":   delay.String(),
	})
}

// shouldReconnect is the single gate consulted before every automatic
// attempt.
func (c *Client) shouldReconnect() bool {
	return c.desired && c.validity != sessionInvalid && c.visible && c.online
}

func (c *Client) handleHeartbeat() {
	c.hbTimer = nil
	if c.transport == nil || !c.visible {
		return
	}
	gen := c.generation
	tr := c.transport
	timeout := c.cfg.HeartbeatTimeout
	go func() {
		ctx := context.Background()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}
		if err := tr.Ping(ctx); err != nil {
			c.post(evProbeFailed{gen: gen, err: err})
			return
		}
		c.post(evPong{gen: gen})
	}()
	c.armHeartbeat()
}

func (c *Client) handleLiveness() {
	c.liveTimer = nil
	if c.transport == nil || !c.visible {
		return
	}
	if c.cfg.LivenessTimeout > 0 && time.Since(c.lastActivity) > c.cfg.LivenessTimeout {
		c.connectionLost(NewError(ErrorTimeout, "no traffic within liveness bound"))
		return
	}
	c.armLiveness()
}

func (c *Client) handleEnv(ev EnvEvent) {
	switch ev.Kind {
	case EnvHidden:
		if !c.visible {
			return
		}
		c.visible = false
		c.stopTimer(&c.hbTimer)
		c.stopTimer(&c.liveTimer)
		c.stopRetry()
		if c.desired && !c.terminal() {
			c.setState(StateSuspended, nil)
		}
	case EnvVisible:
		if c.visible {
			return
		}
		c.visible = true
		if c.state != StateSuspended {
			return
		}
		if c.transport != nil {
			c.lastActivity = time.Now()
			c.setState(StateConnected, nil)
			c.armHeartbeat()
			c.armLiveness()
			return
		}
		if c.shouldReconnect() {
			c.attempts = 0
			c.startDial()
		} else if !c.online {
			c.setState(StateOffline, nil)
		}
	case EnvOffline:
		if !c.online {
			return
		}
		c.online = false
		c.stopTimer(&c.hbTimer)
		c.stopTimer(&c.liveTimer)
		c.stopRetry()
		c.teardownTransport("network offline")
		if c.desired && !c.terminal() {
			c.setState(StateOffline, nil)
		}
	case EnvOnline:
		if c.online {
			return
		}
		c.online = true
		if c.state != StateOffline {
			return
		}
		if c.shouldReconnect() {
			c.attempts = 0
			c.startDial()
		} else if !c.visible && c.desired {
			c.setState(StateSuspended, nil)
		}
	}
}

// terminal reports states the environment must not drag the client out of.
func (c *Client) terminal() bool {
	switch c.state {
	case StateInitial, StateDisconnected, StateError:
		return true
	default:
		return false
	}
}

func (c *Client) readLoop(gen uint64, tr Transport) {
	for {
		data, err := tr.Read(context.Background())
		if err != nil {
			c.post(evClosed{gen: gen, err: err})
			return
		}
		msg, perr := ParseServerMessage(data)
		if perr != nil {
			// A malformed frame is surfaced but never kills the loop or
			// the connection.
			c.post(evBadMessage{gen: gen, err: perr})
			continue
		}
		if !c.post(evInbound{gen: gen, msg: msg}) {
			return
		}
	}
}

func (c *Client) writeLoop(gen uint64, tr Transport, ch chan []byte) {
	for data := range ch {
		if err := tr.Write(context.Background(), data); err != nil {
			c.post(evClosed{gen: gen, err: err})
			return
		}
	}
}

func (c *Client) armHeartbeat() {
	if c.cfg.HeartbeatInterval <= 0 || c.hbTimer != nil {
		return
	}
	c.hbTimer = time.AfterFunc(c.cfg.HeartbeatInterval, func() {
		c.post(evHeartbeat{})
	})
}

func (c *Client) armLiveness() {
	if c.cfg.LivenessInterval <= 0 || c.liveTimer != nil {
		return
	}
	c.liveTimer = time.AfterFunc(c.cfg.LivenessInterval, func() {
		c.post(evLiveness{})
	})
}

// teardownTransport closes the current transport and stops every
// connection-scoped timer. Safe to call when nothing is open.
func (c *Client) teardownTransport(reason string) {
	c.stopTimer(&c.hbTimer)
	c.stopTimer(&c.liveTimer)
	c.stopTimer(&c.helloTimer)
	c.awaitingHello = false
	if c.writeCh != nil {
		close(c.writeCh)
		c.writeCh = nil
	}
	if c.transport != nil {
		tr := c.transport
		c.transport = nil
		go tr.Close(reason)
	}
}

func (c *Client) stopRetry() {
	c.stopTimer(&c.retryTimer)
	c.nextRetry = time.Time{}
}

func (c *Client) stopTimer(t **time.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

func (c *Client) forgetCredential() {
	if !c.hasCred {
		return
	}
	if err := c.store.Remove(c.cred.Key()); err != nil {
		c.logger.Warn("failed to remove stored session", map[string]any{"error": err.Error()})
	}
	c.cred = Credential{}
	c.hasCred = false
}

func (c *Client) rejectPending(err error) {
	if c.pending == nil {
		return
	}
	c.pending.reply <- err
	c.pending = nil
}

func (c *Client) resolvePending() {
	if c.pending == nil {
		return
	}
	c.pending.reply <- nil
	c.pending = nil
}

func (c *Client) setState(next ConnectionState, err error) {
	if next == c.state {
		return
	}
	old := c.state
	c.state = next
	c.logger.Debug("state change", map[string]any{"from": old.String(), "to": next.String()})

	c.mu.Lock()
	fn := c.onState
	c.mu.Unlock()
	if fn != nil {
		fn(StateEvent{OldState: old, NewState: next, Error: err})
	}
}

// publish refreshes the externally visible snapshot after every event.
func (c *Client) publish() {
	c.mu.Lock()
	c.snap = Snapshot{
		State:         c.state,
		Err:           c.lastErr,
		Attempts:      c.attempts,
		NextRetry:     c.nextRetry,
		Generation:    c.generation,
		HasCredential: c.hasCred,
	}
	c.canReconnect = c.hasCred && c.validity != sessionInvalid
	c.mu.Unlock()
}

// isExpectedClose reports a clean, intentional closure as opposed to a
// failure that warrants reconnection.
func isExpectedClose(err error) bool {
	if err == nil {
		return true
	}
	return websocket.CloseStatus(err) == websocket.StatusNormalClosure
}
