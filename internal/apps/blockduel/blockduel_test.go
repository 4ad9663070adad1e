package blockduel

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"

	"github.com/pairlink/pairlink-server/internal/session"
	"github.com/pairlink/pairlink-server/pkg/contract"
)

func newDuel() *Duel {
	logger := zerolog.Nop()
	return New(&logger)
}

func join(t *testing.T, d *Duel, number int) session.Participant {
	t.Helper()
	p := session.Participant{ID: d.GenerateParticipantID(number), Number: number}
	welcome, _ := d.OnParticipantJoin(p)
	var data welcomeData
	if err := json.Unmarshal(welcome, &data); err != nil {
		t.Fatalf("welcome data: %v", err)
	}
	if data.RoundSeconds != roundSeconds {
		t.Fatalf("roundSeconds = %v", data.RoundSeconds)
	}
	return p
}

func TestHandUpdateRelaysToOpponent(t *testing.T) {
	d := newDuel()
	p1 := join(t, d, 1)
	join(t, d, 2)

	raw := json.RawMessage(`{"type":"hand_update","x":0.1,"y":0.2}`)
	resp := d.OnMessage(contract.AppMessage{Type: msgHandUpdate, Raw: raw}, p1.ID, contract.PhasePlaying)
	if len(resp) != 1 || resp[0].Target != session.TargetOpponent {
		t.Fatalf("unexpected routing: %+v", resp)
	}
	if string(resp[0].Message) != string(raw) {
		t.Fatalf("payload rewritten: %s", resp[0].Message)
	}
}

func TestBlockTapScoresOnlyWhilePlaying(t *testing.T) {
	d := newDuel()
	p1 := join(t, d, 1)
	join(t, d, 2)

	if resp := d.OnMessage(contract.AppMessage{Type: msgBlockTap}, p1.ID, contract.PhaseWaiting); resp != nil {
		t.Fatalf("tap scored while waiting: %+v", resp)
	}

	resp := d.OnMessage(contract.AppMessage{Type: msgBlockTap}, p1.ID, contract.PhasePlaying)
	if len(resp) != 1 || resp[0].Target != session.TargetAll {
		t.Fatalf("unexpected routing: %+v", resp)
	}
	if d.scores[p1.ID] != 1 {
		t.Fatalf("score = %d", d.scores[p1.ID])
	}
}

func TestClockUpdateOncePerSecond(t *testing.T) {
	d := newDuel()
	d.OnSessionStart()

	if msgs := d.OnTick(0.1); len(msgs) != 1 {
		t.Fatalf("first tick should announce the clock: %v", msgs)
	}
	if msgs := d.OnTick(0.1); len(msgs) != 0 {
		t.Fatalf("same remaining second re-announced: %v", msgs)
	}
	if msgs := d.OnTick(1.0); len(msgs) != 1 {
		t.Fatalf("crossing a second boundary not announced: %v", msgs)
	}
}

func TestEndConditionPicksHigherScore(t *testing.T) {
	d := newDuel()
	p1 := join(t, d, 1)
	p2 := join(t, d, 2)
	d.OnSessionStart()

	if out := d.CheckSessionEnd(); out != nil {
		t.Fatalf("ended before the clock ran out: %+v", out)
	}

	d.OnMessage(contract.AppMessage{Type: msgBlockTap}, p2.ID, contract.PhasePlaying)
	d.OnMessage(contract.AppMessage{Type: msgBlockTap}, p2.ID, contract.PhasePlaying)
	d.OnMessage(contract.AppMessage{Type: msgBlockTap}, p1.ID, contract.PhasePlaying)
	d.OnTick(roundSeconds + 1)

	out := d.CheckSessionEnd()
	if out == nil || out.WinnerID != p2.ID || out.WinnerNumber != 2 {
		t.Fatalf("unexpected outcome: %+v", out)
	}
}

func TestEndConditionTieHasNoWinner(t *testing.T) {
	d := newDuel()
	p1 := join(t, d, 1)
	p2 := join(t, d, 2)
	d.OnSessionStart()

	d.OnMessage(contract.AppMessage{Type: msgBlockTap}, p1.ID, contract.PhasePlaying)
	d.OnMessage(contract.AppMessage{Type: msgBlockTap}, p2.ID, contract.PhasePlaying)
	d.OnTick(roundSeconds)

	out := d.CheckSessionEnd()
	if out == nil || out.WinnerID != "" {
		t.Fatalf("tie produced a winner: %+v", out)
	}
}

func TestResetClearsRound(t *testing.T) {
	d := newDuel()
	p1 := join(t, d, 1)
	join(t, d, 2)
	d.OnSessionStart()
	d.OnMessage(contract.AppMessage{Type: msgBlockTap}, p1.ID, contract.PhasePlaying)
	d.OnTick(30)

	data := d.OnReset()
	if data == nil {
		t.Fatal("reset data missing")
	}
	if d.elapsed != 0 {
		t.Fatalf("elapsed not reset: %v", d.elapsed)
	}
	if len(d.scores) != 2 {
		t.Fatalf("participants dropped on reset: %v", d.scores)
	}
	if d.scores[p1.ID] != 0 {
		t.Fatalf("score survived reset: %v", d.scores)
	}
}
