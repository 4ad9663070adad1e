package http

import (
	"context"
	"errors"
	"io"
	stdhttp "net/http"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/pairlink/pairlink-server/internal/session"
	"github.com/pairlink/pairlink-server/internal/watchdog"
	"github.com/pairlink/pairlink-server/pkg/contract"
)

const sendTimeout = 5 * time.Second

// WSHandler upgrades HTTP connections and bridges them to the session
// runtime and the inactivity monitor. It never interprets message
// contents beyond peeking the type tag for activity accounting.
type WSHandler struct {
	runtime *session.Runtime
	monitor *watchdog.Monitor
	log     *zerolog.Logger
}

// NewWSHandler builds a new WebSocket handler.
func NewWSHandler(rt *session.Runtime, mon *watchdog.Monitor, logger *zerolog.Logger) stdhttp.Handler {
	return &WSHandler{runtime: rt, monitor: mon, log: logger}
}

func (h *WSHandler) ServeHTTP(w stdhttp.ResponseWriter, r *stdhttp.Request) {
	ctx := r.Context()

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ws accept error")
		return
	}

	wc := &wsConn{conn: conn}
	p := h.runtime.HandleConnection(wc)
	if p == nil {
		// Admission rejected; the runtime already sent the error and closed.
		return
	}

	h.monitor.RecordConnect()
	defer func() {
		h.runtime.HandleDisconnection(wc)
		h.monitor.RecordDisconnect()
	}()

	err = h.readLoop(ctx, conn, wc)
	wc.markClosed()

	status := websocket.StatusNormalClosure
	reason := "closing"
	if err != nil && !errors.Is(err, context.Canceled) {
		if errors.Is(err, io.EOF) {
			err = nil
		}
		if s := websocket.CloseStatus(err); s != 0 {
			status = s
		}
		if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway {
			err = nil
		}
		if err != nil {
			status = websocket.StatusInternalError
			reason = err.Error()
			h.log.Warn().Err(err).Str("participant_id", p.ID).Msg("ws connection closed with error")
		}
	}

	_ = conn.Close(status, reason)
}

func (h *WSHandler) readLoop(ctx context.Context, conn *websocket.Conn, wc *wsConn) error {
	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		if typ != websocket.MessageText {
			continue
		}
		h.monitor.RecordActivity(peekType(data))
		h.runtime.HandleMessage(wc, data)
	}
}

// peekType extracts the type tag for activity accounting. Unparseable
// frames count as activity; the runtime answers them with an error.
func peekType(data []byte) string {
	var env contract.Envelope
	if err := contract.JSON.Unmarshal(data, &env); err != nil {
		return ""
	}
	return env.Type
}

// wsConn adapts a websocket connection to the runtime's Conn.
type wsConn struct {
	conn   *websocket.Conn
	closed atomic.Bool
}

func (c *wsConn) Send(text string) error {
	if c.closed.Load() {
		return errors.New("connection closed")
	}
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	return c.conn.Write(ctx, websocket.MessageText, []byte(text))
}

func (c *wsConn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.conn.Close(websocket.StatusNormalClosure, "closing")
}

func (c *wsConn) IsOpen() bool { return !c.closed.Load() }

func (c *wsConn) markClosed() { c.closed.Store(true) }
