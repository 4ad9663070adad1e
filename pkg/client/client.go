// Package client is the Go session client: it mirrors the server-side
// lifecycle, demultiplexes framework and application messages, and
// surfaces everything through user-supplied callbacks.
package client

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/pairlink/pairlink-server/pkg/contract"
)

// State is the socket connection state, tracked independently of the
// session phase.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateError        State = "error"
)

// Handlers carries the typed event callbacks. Nil callbacks are skipped.
// Message callbacks run on the client's read goroutine; they must not
// block. OnConnectionState runs on a goroutine of its own.
type Handlers struct {
	OnConnectionState func(State)
	OnSessionJoin     func(contract.Welcome)
	OnOpponentJoined  func(appData []byte)
	OnOpponentLeft    func()
	OnSessionStart    func()
	OnSessionEnd      func(winnerID string, winnerNumber int, reason contract.EndReason)
	OnPlayAgainStatus func(votedCount, totalParticipants int)
	OnSessionReset    func(appData []byte)
	OnError           func(message string)
	OnAppMessage      func(contract.AppMessage)
}

// Options tweaks client behavior. The zero value disables reconnection;
// sessions are short-lived, and the server keeps no state across a
// reconnect, so mid-play reconnection is only safe while waiting.
type Options struct {
	ReconnectEnabled     bool
	ReconnectDelay       time.Duration
	MaxReconnectAttempts int
	DialTimeout          time.Duration
	Codec                contract.Codec
	Logger               *zerolog.Logger
}

// Client owns one socket to a session server.
type Client struct {
	mu sync.Mutex

	handlers Handlers
	opts     Options
	codec    contract.Codec
	log      zerolog.Logger

	url   string
	state State
	conn  *websocket.Conn

	phase             contract.Phase
	participantID     string
	participantNumber int

	reconnectAttempts int
	reconnectTimer    *time.Timer
	closing           bool

	readCancel context.CancelFunc
}

// New builds a client. Connect starts it.
func New(handlers Handlers, opts Options) *Client {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 10 * time.Second
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 2 * time.Second
	}
	codec := opts.Codec
	if codec == nil {
		codec = contract.JSON
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = opts.Logger.With().Str("component", "session-client").Logger()
	}
	return &Client{
		handlers: handlers,
		opts:     opts,
		codec:    codec,
		log:      logger,
		state:    StateDisconnected,
		phase:    contract.PhaseWaiting,
	}
}

// State returns the current socket state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Phase returns the session phase as last reported by the server.
func (c *Client) Phase() contract.Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Identity returns the latched participant id and number from the most
// recent welcome. Zero values before the first welcome.
func (c *Client) Identity() (string, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.participantID, c.participantNumber
}

// Connect dials the session server and starts the read loop.
func (c *Client) Connect(ctx context.Context, url string) error {
	c.mu.Lock()
	if c.state == StateConnected || c.state == StateConnecting {
		c.mu.Unlock()
		return nil
	}
	c.url = url
	c.closing = false
	c.setStateLocked(StateConnecting)
	c.mu.Unlock()

	return c.dial(ctx)
}

func (c *Client) dial(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, c.opts.DialTimeout)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, c.url, nil)
	if err != nil {
		c.mu.Lock()
		c.setStateLocked(StateError)
		c.scheduleReconnectLocked()
		c.mu.Unlock()
		return err
	}

	readCtx, readCancel := context.WithCancel(context.Background())

	c.mu.Lock()
	c.conn = conn
	c.readCancel = readCancel
	c.reconnectAttempts = 0
	c.setStateLocked(StateConnected)
	c.mu.Unlock()

	go c.readLoop(readCtx, conn)
	return nil
}

// Disconnect cancels any pending reconnect, closes the socket, and
// resets the mirrored session state.
func (c *Client) Disconnect() {
	c.mu.Lock()
	c.closing = true
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	conn := c.conn
	c.conn = nil
	if c.readCancel != nil {
		c.readCancel()
		c.readCancel = nil
	}
	c.phase = contract.PhaseWaiting
	c.participantID = ""
	c.participantNumber = 0
	c.setStateLocked(StateDisconnected)
	c.mu.Unlock()

	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
	}
}

// SendReady signals readiness.
func (c *Client) SendReady() {
	c.send(contract.ParticipantReady{Type: contract.TypeParticipantReady})
}

// SendBotIdentify announces this client as a bot. Implies readiness.
func (c *Client) SendBotIdentify() {
	c.send(contract.BotIdentify{Type: contract.TypeBotIdentify})
}

// SendPlayAgainVote registers a yes-vote for resetting a finished session.
func (c *Client) SendPlayAgainVote() {
	c.send(contract.PlayAgainVote{Type: contract.TypePlayAgainVote})
}

// SendAppMessage forwards an application message verbatim.
func (c *Client) SendAppMessage(m any) {
	c.send(m)
}

// send encodes and writes one frame. Sessions are too short-lived for
// offline buffering: when not connected the frame is dropped with a
// warning.
func (c *Client) send(m any) {
	c.mu.Lock()
	conn := c.conn
	state := c.state
	c.mu.Unlock()

	if state != StateConnected || conn == nil {
		c.log.Warn().Str("state", string(state)).Msg("send dropped: not connected")
		return
	}

	raw, err := c.codec.Marshal(m)
	if err != nil {
		c.log.Error().Err(err).Msg("marshal outbound message")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.opts.DialTimeout)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, raw); err != nil {
		c.log.Warn().Err(err).Msg("send failed")
	}
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			c.handleReadError(conn, err)
			return
		}
		c.dispatch(data)
	}
}

func (c *Client) handleReadError(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.closing || c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		c.setStateLocked(StateDisconnected)
	default:
		c.log.Warn().Err(err).Msg("connection lost")
		c.setStateLocked(StateDisconnected)
	}
	c.scheduleReconnectLocked()
	c.mu.Unlock()
}

// scheduleReconnectLocked arms the reconnect timer when enabled and
// attempts remain. The server keeps nothing across reconnects, so the
// client re-enters the session through a fresh welcome.
func (c *Client) scheduleReconnectLocked() {
	if !c.opts.ReconnectEnabled || c.closing {
		return
	}
	if c.opts.MaxReconnectAttempts > 0 && c.reconnectAttempts >= c.opts.MaxReconnectAttempts {
		c.log.Warn().Int("attempts", c.reconnectAttempts).Msg("giving up on reconnect")
		return
	}
	c.reconnectAttempts++
	attempt := c.reconnectAttempts
	c.reconnectTimer = time.AfterFunc(c.opts.ReconnectDelay, func() {
		c.log.Info().Int("attempt", attempt).Msg("reconnecting")
		c.mu.Lock()
		c.setStateLocked(StateConnecting)
		c.mu.Unlock()
		_ = c.dial(context.Background())
	})
}

func (c *Client) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.state = s
	if cb := c.handlers.OnConnectionState; cb != nil {
		go cb(s)
	}
}
