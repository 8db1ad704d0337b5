package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/basehub/basehub-go/logging"
)

const (
	// DefaultHeartbeatInterval is how often a ping frame is sent while
	// connected.
	DefaultHeartbeatInterval = 30 * time.Second
	// DefaultRetryDelay seeds the reconnect backoff.
	DefaultRetryDelay = 1 * time.Second
	// DefaultMaxRetries bounds consecutive reconnect attempts.
	DefaultMaxRetries = 5
)

// Options configures a realtime Client.
type Options struct {
	// URL is the websocket endpoint, e.g. wss://hub.example.com:8000/realtime.
	URL string
	// TokenFunc supplies the bearer token for the authentication handshake.
	// The handshake falls back to AnonKey, then to an empty credential.
	TokenFunc func() string
	AnonKey   string

	AutoReconnect     bool
	MaxRetries        int
	RetryDelay        time.Duration
	HeartbeatInterval time.Duration

	// Dialer defaults to DefaultDialer; tests inject a fake.
	Dialer Dialer
	Logger *logging.Logger
}

// Client multiplexes many logical channel subscriptions over at most one
// live socket, with automatic authentication, heartbeat, and reconnection.
type Client struct {
	opts Options

	mu             sync.Mutex
	writeMu        sync.Mutex
	conn           Conn
	connecting     bool
	reconnecting   bool
	retryCount     int
	subs           map[string]*subscription
	subSeq         uint64
	heartbeatStop  chan struct{}
	reconnectTimer *time.Timer
}

func New(opts Options) *Client {
	if opts.Dialer == nil {
		opts.Dialer = DefaultDialer
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	return &Client{opts: opts, subs: map[string]*subscription{}}
}

// Connect opens the socket and sends the authentication handshake. It is
// idempotent while connected or connecting. The handshake is fire-and-
// forget: Connect returns once the socket is open and the frame is sent,
// without waiting for a server acknowledgment.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.conn != nil || c.connecting {
		c.mu.Unlock()
		return nil
	}
	c.connecting = true
	c.mu.Unlock()

	conn, err := c.opts.Dialer(ctx, c.opts.URL)
	if err != nil {
		c.opts.Logger.Warn("realtime connect failed", logging.Field("error", err))
		c.mu.Lock()
		c.connecting = false
		c.mu.Unlock()
		c.maybeScheduleReconnect()
		return err
	}

	if err := c.writeFrame(conn, c.authFrame()); err != nil {
		_ = conn.Close()
		c.mu.Lock()
		c.connecting = false
		c.mu.Unlock()
		c.maybeScheduleReconnect()
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.connecting = false
	c.reconnecting = false
	c.retryCount = 0
	c.heartbeatStop = make(chan struct{})
	stop := c.heartbeatStop
	c.mu.Unlock()

	c.opts.Logger.Info("realtime connected", logging.Field("url", c.opts.URL))
	go c.heartbeatLoop(conn, stop)
	go c.readLoop(conn)
	return nil
}

func (c *Client) authFrame() frame {
	token := ""
	if c.opts.TokenFunc != nil {
		token = c.opts.TokenFunc()
	}
	if token == "" {
		token = c.opts.AnonKey
	}
	return frame{Type: frameAuthenticate, Token: &token}
}

// Subscribe registers a callback for a channel, optionally narrowed to one
// event. The subscription is registered locally even while disconnected; it
// only receives messages once the socket is open. There is no automatic
// re-subscription replay on reconnect.
func (c *Client) Subscribe(channel string, callback Callback, opts SubscribeOptions) string {
	c.mu.Lock()
	c.subSeq++
	// Creation time plus a sequence keeps identities unique even for
	// repeated subscriptions to the same channel/event.
	id := fmt.Sprintf("%s:%s:%d:%d", channel, opts.Event, time.Now().UnixNano(), c.subSeq)
	sub := &subscription{
		id:       id,
		channel:  channel,
		event:    opts.Event,
		filter:   opts.Filter,
		callback: callback,
	}
	c.subs[id] = sub
	conn := c.conn
	c.mu.Unlock()

	c.opts.Logger.Debug("subscribed",
		logging.Field("id", id),
		logging.Field("channel", channel),
		logging.Field("event", opts.Event),
	)

	if conn != nil {
		if err := c.writeFrame(conn, frame{
			Type:    frameSubscribe,
			Channel: channel,
			Event:   opts.Event,
			Filter:  opts.Filter,
		}); err != nil {
			c.opts.Logger.Warn("subscribe frame failed", logging.Field("error", err))
		}
	}
	return id
}

// Unsubscribe removes a subscription. Unknown ids are a no-op.
func (c *Client) Unsubscribe(id string) {
	c.mu.Lock()
	sub, ok := c.subs[id]
	if ok {
		delete(c.subs, id)
	}
	conn := c.conn
	c.mu.Unlock()
	if !ok {
		return
	}

	c.opts.Logger.Debug("unsubscribed", logging.Field("id", id))
	if conn != nil {
		if err := c.writeFrame(conn, frame{
			Type:    frameUnsubscribe,
			Channel: sub.channel,
			Event:   sub.event,
		}); err != nil {
			c.opts.Logger.Warn("unsubscribe frame failed", logging.Field("error", err))
		}
	}
}

// Disconnect cancels any pending reconnect, stops the heartbeat, clears all
// subscriptions, closes the socket, and returns the client to idle. It is
// the only way to stop auto-reconnect before retries are exhausted.
func (c *Client) Disconnect() {
	c.mu.Lock()
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	if c.heartbeatStop != nil {
		close(c.heartbeatStop)
		c.heartbeatStop = nil
	}
	conn := c.conn
	c.conn = nil
	c.connecting = false
	c.reconnecting = false
	c.retryCount = 0
	c.subs = map[string]*subscription{}
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close()
	}
	c.opts.Logger.Info("realtime disconnected")
}

// State returns a snapshot of the connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		Connected:    c.conn != nil,
		Connecting:   c.connecting,
		Reconnecting: c.reconnecting,
	}
}

func (c *Client) readLoop(conn Conn) {
	for {
		data, err := conn.ReadMessage()
		if err != nil {
			c.handleClose(conn, err)
			return
		}
		c.dispatch(data)
	}
}

// dispatch fans an inbound frame out to every subscription whose channel
// matches and whose event filter is unset or equal to the frame's event.
// One message can trigger multiple callbacks.
func (c *Client) dispatch(data []byte) {
	msg := frame{}
	if err := json.Unmarshal(data, &msg); err != nil {
		c.opts.Logger.Debug("ignoring malformed realtime frame",
			logging.Field("error", err),
			logging.Field("data", logging.FormatHTTPPayload(data)),
		)
		return
	}
	if msg.Type == framePong {
		return
	}

	c.mu.Lock()
	matched := make([]*subscription, 0, len(c.subs))
	for _, sub := range c.subs {
		if sub.channel != msg.Channel {
			continue
		}
		if sub.event != "" && sub.event != msg.Event {
			continue
		}
		matched = append(matched, sub)
	}
	c.mu.Unlock()

	if len(matched) == 0 {
		return
	}
	delivered := Message{
		Type:    msg.Type,
		Channel: msg.Channel,
		Event:   msg.Event,
		Payload: msg.Payload,
	}
	for _, sub := range matched {
		sub.callback(delivered)
	}
}

func (c *Client) heartbeatLoop(conn Conn, stop <-chan struct{}) {
	ticker := time.NewTicker(c.opts.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := c.writeFrame(conn, frame{Type: framePing}); err != nil {
				c.opts.Logger.Debug("heartbeat write failed", logging.Field("error", err))
				_ = conn.Close()
				return
			}
		}
	}
}

// handleClose reacts to a socket loss that was not a manual Disconnect.
func (c *Client) handleClose(conn Conn, cause error) {
	c.mu.Lock()
	if c.conn != conn {
		// Stale read loop from a connection already replaced or torn down.
		c.mu.Unlock()
		return
	}
	c.conn = nil
	if c.heartbeatStop != nil {
		close(c.heartbeatStop)
		c.heartbeatStop = nil
	}
	c.mu.Unlock()
	_ = conn.Close()

	c.opts.Logger.Warn("realtime connection lost", logging.Field("error", cause))
	c.maybeScheduleReconnect()
}

// maybeScheduleReconnect arms the reconnect timer with exponential backoff:
// the retry counter increments before the delay is computed, and only a
// successful open resets it. Once retries are exhausted the client stays
// disconnected until Connect is called explicitly.
func (c *Client) maybeScheduleReconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.opts.AutoReconnect || c.conn != nil || c.connecting {
		return
	}
	if c.retryCount >= c.opts.MaxRetries {
		c.reconnecting = false
		c.opts.Logger.Warn("realtime reconnect attempts exhausted",
			logging.Field("retries", c.retryCount),
		)
		return
	}

	c.retryCount++
	delay := c.opts.RetryDelay * time.Duration(1<<uint(c.retryCount))
	c.reconnecting = true
	c.opts.Logger.Debug("scheduling realtime reconnect",
		logging.Field("attempt", c.retryCount),
		logging.Field("delay", delay.String()),
	)
	c.reconnectTimer = time.AfterFunc(delay, func() {
		c.mu.Lock()
		c.reconnectTimer = nil
		c.mu.Unlock()
		_ = c.Connect(context.Background())
	})
}

func (c *Client) writeFrame(conn Conn, f frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteJSON(f)
}
