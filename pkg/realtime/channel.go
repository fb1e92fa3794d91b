package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/aretw0/waypoint/internal/logging"
)

// Handler receives server-pushed events (everything that is not protocol traffic).
// Events are delivered in order on a dedicated goroutine, so a handler may
// call back into the Channel. The loop never waits for a slow handler.
type Handler interface {
	HandleEvent(event string, payload map[string]any)
}

// HandlerFunc adapts a plain function to Handler.
type HandlerFunc func(event string, payload map[string]any)

// HandleEvent calls f.
func (f HandlerFunc) HandleEvent(event string, payload map[string]any) { f(event, payload) }

// Snapshot is a point-in-time copy of the session state.
type Snapshot struct {
	Topic               string
	JoinRef             string
	Connected           bool
	Connecting          bool
	PendingHeartbeatRef string
	ReconnectScheduled  bool
	Dials               int
}

type inbound struct {
	event   string
	payload map[string]any
}

// Channel keeps a topic subscription alive over a persistent socket.
//
// Every mutable field below the loop marker is owned by the loop goroutine.
// Timers, the socket reader and public methods only post closures to it.
type Channel struct {
	url     *url.URL
	dialer  Dialer
	handler Handler
	token   func() string
	logger  *slog.Logger

	joinTimeout       time.Duration
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
	reconnectDelay    time.Duration

	ops       chan func()
	done      chan struct{}
	closeOnce sync.Once

	inboxMu sync.Mutex
	inbox   []inbound
	wake    chan struct{}

	// loop-owned
	topic            string
	userID           string
	conn             Conn
	generation       uint64
	ref              uint64
	joinRef          string
	connected        bool
	connecting       bool
	pendingHeartbeat string
	joinWaiters      []func(error)
	dials            int

	joinTimer         *time.Timer
	heartbeatTimer    *time.Timer
	heartbeatDeadline *time.Timer
	reconnectTimer    *time.Timer
}

// New creates a channel for the socket at rawURL and starts its loop.
// No connection is made until Connect.
func New(rawURL string, opts ...Option) (*Channel, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid socket url: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, fmt.Errorf("invalid socket url scheme %q", u.Scheme)
	}

	c := &Channel{
		url:               u,
		dialer:            WebsocketDialer{},
		handler:           HandlerFunc(func(string, map[string]any) {}),
		token:             func() string { return "" },
		logger:            logging.NewNop(),
		joinTimeout:       DefaultJoinTimeout,
		heartbeatInterval: DefaultHeartbeatInterval,
		heartbeatTimeout:  DefaultHeartbeatTimeout,
		reconnectDelay:    DefaultReconnectDelay,
		ops:               make(chan func(), 64),
		wake:              make(chan struct{}, 1),
		done:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}

	go c.loop()
	go c.deliver()
	return c, nil
}

func (c *Channel) loop() {
	for {
		select {
		case fn := <-c.ops:
			fn()
		case <-c.done:
			return
		}
	}
}

func (c *Channel) deliver() {
	for {
		select {
		case <-c.wake:
		case <-c.done:
			return
		}

		c.inboxMu.Lock()
		batch := c.inbox
		c.inbox = nil
		c.inboxMu.Unlock()

		for _, ev := range batch {
			select {
			case <-c.done:
				return
			default:
			}
			c.handler.HandleEvent(ev.event, ev.payload)
		}
	}
}

// enqueue hands ev to the delivery goroutine without blocking the loop.
func (c *Channel) enqueue(ev inbound) {
	c.inboxMu.Lock()
	c.inbox = append(c.inbox, ev)
	c.inboxMu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// post schedules fn on the loop. It reports false once the channel is closed.
func (c *Channel) post(fn func()) bool {
	select {
	case c.ops <- fn:
		return true
	case <-c.done:
		return false
	}
}

// call runs fn on the loop and waits for it.
func (c *Channel) call(fn func()) bool {
	finished := make(chan struct{})
	if !c.post(func() {
		fn()
		close(finished)
	}) {
		return false
	}
	select {
	case <-finished:
		return true
	case <-c.done:
		return false
	}
}

// Connect subscribes to the account/user topic and blocks until the join is
// acknowledged, rejected, or times out. Connecting to the topic already
// joined is a no-op; connecting to a different one replaces it.
func (c *Channel) Connect(ctx context.Context, accountID, userID string) error {
	if accountID == "" || userID == "" {
		return ErrNoUser
	}

	result := make(chan error, 1)
	resolve := func(err error) {
		select {
		case result <- err:
		default:
		}
	}

	ok := c.call(func() {
		topic := Topic(accountID, userID)
		if c.topic == topic && c.connected {
			resolve(nil)
			return
		}
		if c.topic == topic && c.connecting {
			c.joinWaiters = append(c.joinWaiters, resolve)
			return
		}
		if c.topic != "" {
			c.cancelReconnect()
			c.teardown(ErrDisconnected)
		}
		c.topic = topic
		c.userID = userID
		c.open(resolve)
	})
	if !ok {
		return ErrClosed
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect leaves the topic and closes the socket. The topic is forgotten,
// so no reconnection follows. Calling it repeatedly is harmless.
func (c *Channel) Disconnect() {
	c.call(func() {
		c.cancelReconnect()
		c.teardown(ErrDisconnected)
		c.topic = ""
		c.userID = ""
	})
}

// Close disconnects and stops the loop. Pending timers are cancelled.
func (c *Channel) Close() error {
	c.Disconnect()
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return nil
}

// Snapshot returns the current session state.
func (c *Channel) Snapshot() Snapshot {
	var s Snapshot
	c.call(func() {
		s = Snapshot{
			Topic:               c.topic,
			JoinRef:             c.joinRef,
			Connected:           c.connected,
			Connecting:          c.connecting,
			PendingHeartbeatRef: c.pendingHeartbeat,
			ReconnectScheduled:  c.reconnectTimer != nil,
			Dials:               c.dials,
		}
	})
	return s
}

// Push sends an application event on the joined topic.
func (c *Channel) Push(event string, payload map[string]any) error {
	var err error
	if !c.call(func() {
		if !c.connected {
			err = ErrNotConnected
			return
		}
		err = c.send(Message{JoinRef: c.joinRef, Ref: c.nextRef(), Topic: c.topic, Event: event, Payload: payload})
	}) {
		return ErrClosed
	}
	return err
}

// --- loop-side helpers; everything below runs on the loop goroutine ---

func (c *Channel) nextRef() string {
	c.ref++
	return strconv.FormatUint(c.ref, 10)
}

func (c *Channel) socketURL() string {
	u := *c.url
	q := u.Query()
	q.Set("vsn", ProtocolVersion)
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Channel) send(msg Message) error {
	if c.conn == nil {
		return ErrDisconnected
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	return c.conn.WriteMessage(data)
}

// open dials a fresh socket and joins the current topic.
func (c *Channel) open(waiter func(error)) {
	c.generation++
	gen := c.generation
	c.connecting = true
	c.dials++
	if waiter != nil {
		c.joinWaiters = append(c.joinWaiters, waiter)
	}

	target := c.socketURL()
	c.logger.Debug("dialing realtime socket", "url", target, "topic", c.topic)

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.joinTimeout)
		defer cancel()
		conn, err := c.dialer.Dial(ctx, target, nil)
		posted := c.post(func() {
			if gen != c.generation {
				if conn != nil {
					_ = conn.Close()
				}
				return
			}
			if err != nil {
				c.logger.Warn("realtime dial failed", "topic", c.topic, "err", err)
				c.failJoin(err)
				return
			}
			c.conn = conn
			go c.read(conn, gen)
			c.join(gen)
		})
		if !posted && conn != nil {
			_ = conn.Close()
		}
	}()
}

func (c *Channel) join(gen uint64) {
	ref := c.nextRef()
	c.joinRef = ref

	payload := map[string]any{"response_format": ResponseFormat}
	if token := c.token(); token != "" {
		payload["token"] = token
	}

	if err := c.send(Message{JoinRef: ref, Ref: ref, Topic: c.topic, Event: EventJoin, Payload: payload}); err != nil {
		c.failJoin(fmt.Errorf("failed to send join: %w", err))
		return
	}

	c.joinTimer = time.AfterFunc(c.joinTimeout, func() {
		c.post(func() {
			if gen == c.generation && c.joinRef == ref && !c.connected {
				c.logger.Warn("realtime join timed out", "topic", c.topic, "ref", ref)
				c.failJoin(ErrJoinTimeout)
			}
		})
	})
}

// failJoin resolves waiters with err, drops the socket and retries unless
// the failure is an authentication one.
func (c *Channel) failJoin(err error) {
	c.teardown(err)
	if errors.Is(err, ErrUnauthorized) {
		c.logger.Error("realtime join unauthorized; not reconnecting", "topic", c.topic, "err", err)
		c.topic = ""
		return
	}
	c.scheduleReconnect()
}

func (c *Channel) joined() {
	stopTimer(&c.joinTimer)
	c.connected = true
	c.connecting = false
	waiters := c.joinWaiters
	c.joinWaiters = nil
	for _, w := range waiters {
		w(nil)
	}
	c.logger.Info("realtime channel joined", "topic", c.topic)
	c.scheduleHeartbeat(c.generation)
}

func (c *Channel) scheduleHeartbeat(gen uint64) {
	stopTimer(&c.heartbeatTimer)
	c.heartbeatTimer = time.AfterFunc(c.heartbeatInterval, func() {
		c.post(func() {
			if gen == c.generation && c.connected {
				c.heartbeat(gen)
			}
		})
	})
}

func (c *Channel) heartbeat(gen uint64) {
	if c.pendingHeartbeat != "" {
		c.logger.Warn("previous heartbeat unacknowledged; reconnecting", "ref", c.pendingHeartbeat)
		c.dropAndReconnect()
		return
	}

	ref := c.nextRef()
	if err := c.send(Message{Ref: ref, Topic: SystemTopic, Event: EventHeartbeat}); err != nil {
		c.logger.Warn("failed to send heartbeat", "err", err)
		c.dropAndReconnect()
		return
	}
	c.pendingHeartbeat = ref

	stopTimer(&c.heartbeatDeadline)
	c.heartbeatDeadline = time.AfterFunc(c.heartbeatTimeout, func() {
		c.post(func() {
			if gen == c.generation && c.pendingHeartbeat == ref {
				c.logger.Warn("heartbeat timed out; reconnecting", "ref", ref)
				c.dropAndReconnect()
			}
		})
	})
	c.scheduleHeartbeat(gen)
}

// read pumps frames from conn into the loop until the socket fails.
func (c *Channel) read(conn Conn, gen uint64) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			c.post(func() {
				if gen == c.generation {
					c.logger.Warn("realtime socket read failed", "err", err)
					c.dropAndReconnect()
				}
			})
			return
		}
		if !c.post(func() {
			if gen == c.generation {
				c.handleFrame(data)
			}
		}) {
			return
		}
	}
}

func (c *Channel) handleFrame(data []byte) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Warn("dropping realtime frame", "err", err)
		return
	}

	// Frames for other topics belong to a stale connection.
	if msg.Topic != c.topic && msg.Topic != SystemTopic {
		c.logger.Debug("ignoring frame for foreign topic", "topic", msg.Topic, "event", msg.Event)
		return
	}

	switch msg.Event {
	case EventReply:
		c.handleReply(msg)
	case EventError:
		c.logger.Warn("realtime channel errored", "topic", msg.Topic, "payload", msg.Payload)
		if msg.Topic == c.topic {
			c.dropAndReconnect()
		}
	case EventClose:
		if msg.Topic == c.topic && (msg.JoinRef == "" || msg.JoinRef == c.joinRef) {
			c.logger.Info("realtime channel closed by server", "topic", msg.Topic)
			c.dropAndReconnect()
		}
	default:
		if msg.Topic != c.topic {
			return
		}
		c.enqueue(inbound{event: msg.Event, payload: msg.Payload})
	}
}

func (c *Channel) handleReply(msg Message) {
	r := parseReply(msg.Payload)

	switch {
	case msg.Topic == c.topic && c.joinRef != "" && msg.Ref == c.joinRef && !c.connected:
		if r.ok() {
			c.joined()
			return
		}
		if unauthorizedReasons[r.reason()] {
			c.failJoin(fmt.Errorf("%w: %s", ErrUnauthorized, r.reason()))
			return
		}
		c.failJoin(fmt.Errorf("%w: %s", ErrJoinRejected, r.reason()))

	case msg.Topic == SystemTopic && c.pendingHeartbeat != "" && msg.Ref == c.pendingHeartbeat:
		c.pendingHeartbeat = ""
		stopTimer(&c.heartbeatDeadline)
	}
}

// dropAndReconnect tears the session down but keeps the topic, so the next
// successful reconnect resumes the same logical subscription.
func (c *Channel) dropAndReconnect() {
	c.teardown(ErrDisconnected)
	c.scheduleReconnect()
}

func (c *Channel) scheduleReconnect() {
	if c.topic == "" || c.userID == "" || c.reconnectTimer != nil {
		return
	}
	c.logger.Info("scheduling realtime reconnect", "topic", c.topic, "delay", c.reconnectDelay)
	var timer *time.Timer
	timer = time.AfterFunc(c.reconnectDelay, func() {
		c.post(func() {
			if c.reconnectTimer != timer {
				return
			}
			c.reconnectTimer = nil
			if c.topic != "" && c.userID != "" && !c.connected && !c.connecting {
				c.open(nil)
			}
		})
	})
	c.reconnectTimer = timer
}

func (c *Channel) cancelReconnect() {
	stopTimer(&c.reconnectTimer)
}

// teardown closes the socket, clears per-connection state and resolves
// pending Connect calls with reason. The topic is left alone; Disconnect
// clears it separately.
func (c *Channel) teardown(reason error) {
	stopTimer(&c.joinTimer)
	stopTimer(&c.heartbeatTimer)
	stopTimer(&c.heartbeatDeadline)

	if c.conn != nil {
		_ = c.conn.Close()
		c.conn = nil
	}
	c.generation++
	c.connected = false
	c.connecting = false
	c.joinRef = ""
	c.pendingHeartbeat = ""

	waiters := c.joinWaiters
	c.joinWaiters = nil
	for _, w := range waiters {
		w(reason)
	}
}

func stopTimer(t **time.Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}
