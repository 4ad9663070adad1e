package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/pairlink/pairlink-server/internal/config"
	"github.com/pairlink/pairlink-server/internal/session"
	transporthttp "github.com/pairlink/pairlink-server/internal/transport/http"
	"github.com/pairlink/pairlink-server/internal/watchdog"
	"github.com/pairlink/pairlink-server/pkg/contract"
)

type relayApp struct{}

func (relayApp) ID() string { return "relay" }

func (relayApp) GenerateParticipantID(n int) string { return fmt.Sprintf("p%d", n) }

func (relayApp) OnParticipantJoin(session.Participant) (json.RawMessage, json.RawMessage) {
	return json.RawMessage(`{"greeting":"hi"}`), nil
}

func (relayApp) OnParticipantLeave(session.Participant) {}

func (relayApp) OnMessage(msg contract.AppMessage, _ string, _ contract.Phase) []session.Response {
	return []session.Response{{Target: session.TargetOpponent, Message: msg.Raw}}
}

func (relayApp) OnSessionStart() {}

func (relayApp) OnReset() json.RawMessage { return nil }

func startSessionServer(t *testing.T) string {
	t.Helper()

	logger := zerolog.Nop()
	rt := session.NewRuntime(relayApp{}, &logger)
	mon := watchdog.New(watchdog.Config{Timeout: time.Minute, CheckInterval: time.Second})
	t.Cleanup(mon.Stop)

	server := transporthttp.NewServer(rt, mon, config.Config{
		AppID:             "relay",
		SessionID:         "sess-client-test",
		ReadHeaderTimeout: time.Second,
	}, &logger)

	ts := httptest.NewServer(server.Handler)
	t.Cleanup(ts.Close)
	return strings.Replace(ts.URL, "http", "ws", 1) + "/ws"
}

func waitFor[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(3 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		panic("unreachable")
	}
}

func TestClientJoinReadyStart(t *testing.T) {
	url := startSessionServer(t)

	joinedA := make(chan contract.Welcome, 1)
	startedA := make(chan struct{}, 1)
	opponentA := make(chan struct{}, 1)
	a := New(Handlers{
		OnSessionJoin:    func(w contract.Welcome) { joinedA <- w },
		OnSessionStart:   func() { startedA <- struct{}{} },
		OnOpponentJoined: func([]byte) { opponentA <- struct{}{} },
	}, Options{})

	if err := a.Connect(context.Background(), url); err != nil {
		t.Fatalf("connect A: %v", err)
	}
	defer a.Disconnect()

	welcome := waitFor(t, joinedA, "welcome A")
	if welcome.ParticipantID != "p1" || welcome.ParticipantNumber != 1 || welcome.SessionPhase != contract.PhaseWaiting {
		t.Fatalf("unexpected welcome: %+v", welcome)
	}
	if id, num := a.Identity(); id != "p1" || num != 1 {
		t.Fatalf("identity not latched: %q %d", id, num)
	}

	joinedB := make(chan contract.Welcome, 1)
	startedB := make(chan struct{}, 1)
	b := New(Handlers{
		OnSessionJoin:  func(w contract.Welcome) { joinedB <- w },
		OnSessionStart: func() { startedB <- struct{}{} },
	}, Options{})

	if err := b.Connect(context.Background(), url); err != nil {
		t.Fatalf("connect B: %v", err)
	}
	defer b.Disconnect()

	waitFor(t, joinedB, "welcome B")
	waitFor(t, opponentA, "opponent_joined A")

	a.SendReady()
	b.SendReady()
	waitFor(t, startedA, "session_started A")
	waitFor(t, startedB, "session_started B")

	if a.Phase() != contract.PhasePlaying || b.Phase() != contract.PhasePlaying {
		t.Fatalf("phases: %s %s", a.Phase(), b.Phase())
	}
}

func TestClientAppMessageRelay(t *testing.T) {
	url := startSessionServer(t)

	joinedA := make(chan contract.Welcome, 1)
	joinedB := make(chan contract.Welcome, 1)
	appB := make(chan contract.AppMessage, 1)
	a := New(Handlers{
		OnSessionJoin: func(w contract.Welcome) { joinedA <- w },
	}, Options{})
	b := New(Handlers{
		OnSessionJoin: func(w contract.Welcome) { joinedB <- w },
		OnAppMessage:  func(m contract.AppMessage) { appB <- m },
	}, Options{})

	if err := a.Connect(context.Background(), url); err != nil {
		t.Fatalf("connect A: %v", err)
	}
	defer a.Disconnect()
	waitFor(t, joinedA, "welcome A")
	if err := b.Connect(context.Background(), url); err != nil {
		t.Fatalf("connect B: %v", err)
	}
	defer b.Disconnect()
	waitFor(t, joinedB, "welcome B")

	a.SendAppMessage(map[string]any{"type": "hand_update", "x": 0.5})
	got := waitFor(t, appB, "relayed app message")
	if got.Type != "hand_update" {
		t.Fatalf("unexpected app message: %+v", got)
	}
}

func TestSendDroppedWhenDisconnected(t *testing.T) {
	c := New(Handlers{}, Options{})
	// Must not panic or block.
	c.SendReady()
	c.SendPlayAgainVote()
	if c.State() != StateDisconnected {
		t.Fatalf("state = %s", c.State())
	}
}

func TestDisconnectResetsMirroredState(t *testing.T) {
	url := startSessionServer(t)

	joined := make(chan contract.Welcome, 1)
	c := New(Handlers{
		OnSessionJoin: func(w contract.Welcome) { joined <- w },
	}, Options{})
	if err := c.Connect(context.Background(), url); err != nil {
		t.Fatalf("connect: %v", err)
	}
	waitFor(t, joined, "welcome")

	c.Disconnect()
	if c.State() != StateDisconnected {
		t.Fatalf("state = %s", c.State())
	}
	if id, num := c.Identity(); id != "" || num != 0 {
		t.Fatalf("identity survived disconnect: %q %d", id, num)
	}
	if c.Phase() != contract.PhaseWaiting {
		t.Fatalf("phase survived disconnect: %s", c.Phase())
	}
}

func TestDispatchAcceptsLegacyFrames(t *testing.T) {
	ended := make(chan contract.EndReason, 1)
	c := New(Handlers{
		OnSessionEnd: func(_ string, _ int, reason contract.EndReason) { ended <- reason },
	}, Options{})

	c.dispatch([]byte(`{"type":"welcome","playerId":"p2","playerNumber":2,"gamePhase":"playing"}`))
	if id, num := c.Identity(); id != "p2" || num != 2 {
		t.Fatalf("legacy welcome not latched: %q %d", id, num)
	}
	if c.Phase() != contract.PhasePlaying {
		t.Fatalf("phase = %s", c.Phase())
	}

	c.dispatch([]byte(`{"type":"game_over","reason":"completed","winnerId":"p2"}`))
	if reason := waitFor(t, ended, "session end"); reason != contract.EndCompleted {
		t.Fatalf("reason = %s", reason)
	}
	if c.Phase() != contract.PhaseFinished {
		t.Fatalf("phase = %s", c.Phase())
	}
}
