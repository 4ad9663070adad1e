// Package blockduel is a small two-player duel: tap more blocks than
// your opponent before the round clock runs out. It exists mainly to
// exercise every framework hook end to end: welcome/reset payloads,
// opponent passthrough, per-message scoring, the tick loop, and the
// timed end condition.
package blockduel

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pairlink/pairlink-server/internal/session"
	"github.com/pairlink/pairlink-server/pkg/contract"
)

const (
	roundSeconds = 60.0
	tickInterval = 100 * time.Millisecond
)

// Inbound tags. hand_update streams continuously and therefore does not
// count as activity for the inactivity monitor.
const (
	msgHandUpdate = "hand_update"
	msgBlockTap   = "block_tap"
)

// Duel holds one round of per-session state. Hooks run under the
// runtime lock, so no locking here.
type Duel struct {
	log zerolog.Logger

	scores    map[string]int
	numbers   map[string]int
	elapsed   float64
	lastWhole int
}

// New builds a fresh duel.
func New(logger *zerolog.Logger) *Duel {
	d := &Duel{log: logger.With().Str("component", "blockduel").Logger()}
	d.resetRound()
	return d
}

func (d *Duel) resetRound() {
	d.scores = make(map[string]int)
	d.numbers = make(map[string]int)
	d.elapsed = 0
	d.lastWhole = -1
}

func (d *Duel) ID() string { return "blockduel" }

func (d *Duel) GenerateParticipantID(number int) string {
	return fmt.Sprintf("player-%d-%s", number, uuid.NewString()[:8])
}

type welcomeData struct {
	RoundSeconds float64        `json:"roundSeconds"`
	Scores       map[string]int `json:"scores"`
}

func (d *Duel) OnParticipantJoin(p session.Participant) (json.RawMessage, json.RawMessage) {
	d.scores[p.ID] = 0
	d.numbers[p.ID] = p.Number

	welcome, err := json.Marshal(welcomeData{RoundSeconds: roundSeconds, Scores: d.scores})
	if err != nil {
		d.log.Error().Err(err).Msg("marshal welcome data")
	}
	opponent, err := json.Marshal(map[string]string{"participantId": p.ID})
	if err != nil {
		d.log.Error().Err(err).Msg("marshal opponent data")
	}
	return welcome, opponent
}

func (d *Duel) OnParticipantLeave(p session.Participant) {
	delete(d.scores, p.ID)
	delete(d.numbers, p.ID)
}

func (d *Duel) OnMessage(msg contract.AppMessage, senderID string, phase contract.Phase) []session.Response {
	switch msg.Type {
	case msgHandUpdate:
		// Positions relay to the other side untouched.
		return []session.Response{{Target: session.TargetOpponent, Message: msg.Raw}}
	case msgBlockTap:
		if phase != contract.PhasePlaying {
			return nil
		}
		d.scores[senderID]++
		update, err := json.Marshal(map[string]any{
			"type":   "score_update",
			"scores": d.scores,
		})
		if err != nil {
			d.log.Error().Err(err).Msg("marshal score update")
			return nil
		}
		return []session.Response{{Target: session.TargetAll, Message: update}}
	default:
		d.log.Debug().Str("msg_type", msg.Type).Msg("unhandled app message")
		return nil
	}
}

func (d *Duel) OnSessionStart() {
	d.elapsed = 0
	d.lastWhole = -1
	for id := range d.scores {
		d.scores[id] = 0
	}
}

// OnReset zeroes the round but keeps the connected participants' slots.
func (d *Duel) OnReset() json.RawMessage {
	d.elapsed = 0
	d.lastWhole = -1
	for id := range d.scores {
		d.scores[id] = 0
	}
	data, err := json.Marshal(welcomeData{RoundSeconds: roundSeconds, Scores: d.scores})
	if err != nil {
		d.log.Error().Err(err).Msg("marshal reset data")
		return nil
	}
	return data
}

func (d *Duel) TickInterval() time.Duration { return tickInterval }

// OnTick advances the round clock; a clock_update goes out once per
// whole remaining second rather than every tick.
func (d *Duel) OnTick(dt float64) []json.RawMessage {
	d.elapsed += dt
	remaining := int(roundSeconds - d.elapsed)
	if remaining < 0 {
		remaining = 0
	}
	if remaining == d.lastWhole {
		return nil
	}
	d.lastWhole = remaining

	update, err := json.Marshal(map[string]any{
		"type":      "clock_update",
		"remaining": remaining,
	})
	if err != nil {
		d.log.Error().Err(err).Msg("marshal clock update")
		return nil
	}
	return []json.RawMessage{update}
}

// CheckSessionEnd ends the round when the clock runs out. Higher score
// wins; a tie has no winner.
func (d *Duel) CheckSessionEnd() *session.Outcome {
	if d.elapsed < roundSeconds {
		return nil
	}

	var best string
	tie := false
	for id, score := range d.scores {
		switch {
		case best == "" || score > d.scores[best]:
			best = id
			tie = false
		case score == d.scores[best] && id != best:
			tie = true
		}
	}
	if best == "" || tie {
		return &session.Outcome{}
	}
	return &session.Outcome{WinnerID: best, WinnerNumber: d.numbers[best]}
}

func (d *Duel) SessionEndData(out session.Outcome, _ contract.EndReason) json.RawMessage {
	data, err := json.Marshal(map[string]any{"scores": d.scores})
	if err != nil {
		d.log.Error().Err(err).Msg("marshal end data")
		return nil
	}
	return data
}

func (d *Duel) ActivityIgnoreTypes() []string { return []string{msgHandUpdate} }
