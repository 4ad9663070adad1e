package session

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/rs/zerolog"

	"github.com/pairlink/pairlink-server/pkg/contract"
)

const maxParticipants = 2

// Conn is the runtime's view of one participant link. Deliberately
// minimal so the runtime is testable with in-memory doubles.
type Conn interface {
	Send(text string) error
	Close() error
	IsOpen() bool
}

// Runtime owns the two participant slots, the lifecycle phase, message
// dispatch, the tick loop, and reset coordination for one session.
// All operations serialize on one mutex; hooks run under it, so no two
// handlers ever observe intermediate state.
type Runtime struct {
	mu    sync.Mutex
	app   App
	codec contract.Codec
	clk   clock.Clock
	log   zerolog.Logger

	phase    contract.Phase
	parts    map[Conn]*Participant
	tickStop chan struct{}
	lastTick time.Time
}

// Option tweaks runtime construction.
type Option func(*Runtime)

// WithCodec swaps the wire codec. Defaults to contract.JSON.
func WithCodec(c contract.Codec) Option {
	return func(r *Runtime) { r.codec = c }
}

// WithClock injects the clock driving the tick loop. Defaults to the
// real clock; tests use clock.NewMock.
func WithClock(c clock.Clock) Option {
	return func(r *Runtime) { r.clk = c }
}

// NewRuntime builds a session runtime hosting the given application.
func NewRuntime(app App, logger *zerolog.Logger, opts ...Option) *Runtime {
	r := &Runtime{
		app:   app,
		codec: contract.JSON,
		clk:   clock.New(),
		log:   logger.With().Str("component", "session").Str("app", app.ID()).Logger(),
		phase: contract.PhaseWaiting,
		parts: make(map[Conn]*Participant),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Phase returns the current lifecycle phase.
func (r *Runtime) Phase() contract.Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// Participants returns a snapshot of the current slots, ordered by number.
func (r *Runtime) Participants() []Participant {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.participantsLocked()
}

func (r *Runtime) participantsLocked() []Participant {
	out := make([]Participant, 0, len(r.parts))
	for _, p := range r.parts {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// HandleConnection attempts admission. The first free slot number in
// {1, 2} is assigned; with both slots taken the connection gets a single
// error message and is closed. Returns nil on rejection.
func (r *Runtime) HandleConnection(conn Conn) *Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.parts) >= maxParticipants {
		r.sendLocked(conn, contract.ErrorMessage{Type: contract.TypeError, Message: "Session is full"})
		if err := conn.Close(); err != nil {
			r.log.Debug().Err(err).Msg("close rejected connection")
		}
		r.log.Warn().Msg("admission rejected: session is full")
		return nil
	}

	num := r.freeNumberLocked()
	p := &Participant{
		ID:     r.app.GenerateParticipantID(num),
		Number: num,
	}

	var welcome, opponent json.RawMessage
	r.guard("OnParticipantJoin", func() {
		welcome, opponent = r.app.OnParticipantJoin(*p)
	})

	r.parts[conn] = p
	r.sendLocked(conn, contract.Welcome{
		Type:              contract.TypeWelcome,
		ParticipantID:     p.ID,
		ParticipantNumber: p.Number,
		SessionPhase:      r.phase,
		AppData:           welcome,
	})
	for other := range r.parts {
		if other == conn {
			continue
		}
		r.sendLocked(other, contract.OpponentJoined{Type: contract.TypeOpponentJoined, AppData: opponent})
	}

	r.log.Info().Str("participant_id", p.ID).Int("number", p.Number).Msg("participant joined")
	return p
}

func (r *Runtime) freeNumberLocked() int {
	for num := 1; num <= maxParticipants; num++ {
		taken := false
		for _, p := range r.parts {
			if p.Number == num {
				taken = true
				break
			}
		}
		if !taken {
			return num
		}
	}
	return maxParticipants // unreachable while admission is capped
}

// HandleDisconnection destroys the participant bound to conn and tells
// the remaining connection. The phase is left untouched; ending a
// deserted playing session is the application's call.
func (r *Runtime) HandleDisconnection(conn Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.parts[conn]
	if !ok {
		return
	}
	r.guard("OnParticipantLeave", func() {
		r.app.OnParticipantLeave(*p)
	})
	delete(r.parts, conn)
	for other := range r.parts {
		r.sendLocked(other, contract.OpponentLeft{Type: contract.TypeOpponentLeft})
	}
	r.log.Info().Str("participant_id", p.ID).Int("number", p.Number).Msg("participant left")
}

// HandleMessage parses one inbound frame from conn and dispatches it.
// Framework tags are consumed internally; anything else goes to the
// application with its responses routed per target.
func (r *Runtime) HandleMessage(conn Conn, raw []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.parts[conn]
	if !ok {
		r.log.Debug().Msg("message from unbound connection dropped")
		return
	}

	msg, err := contract.DecodeClient(r.codec, raw)
	if err != nil {
		r.log.Debug().Err(err).Str("participant_id", p.ID).Msg("unparseable message")
		r.sendLocked(conn, contract.ErrorMessage{Type: contract.TypeError, Message: "Invalid message format"})
		return
	}

	switch m := msg.(type) {
	case contract.ParticipantReady:
		p.Ready = true
		r.maybeStartLocked()
	case contract.BotIdentify:
		p.Bot = true
		p.Ready = true
		r.log.Info().Str("participant_id", p.ID).Msg("participant identified as bot")
		r.maybeStartLocked()
	case contract.PlayAgainVote:
		r.handleVoteLocked(p)
	case contract.AppMessage:
		var responses []Response
		r.guard("OnMessage", func() {
			responses = r.app.OnMessage(m, p.ID, r.phase)
		})
		r.routeLocked(conn, responses)
	}
}

// maybeStartLocked fires the waiting -> playing transition when both
// slots are filled and ready. Evaluated whenever any of its inputs moves.
func (r *Runtime) maybeStartLocked() {
	if r.phase != contract.PhaseWaiting || len(r.parts) != maxParticipants {
		return
	}
	for _, p := range r.parts {
		if !p.Ready {
			return
		}
	}

	r.guard("OnSessionStart", func() {
		r.app.OnSessionStart()
	})
	r.phase = contract.PhasePlaying
	r.broadcastLocked(contract.SessionStarted{Type: contract.TypeSessionStarted})
	r.startTickLocked()
	r.log.Info().Msg("session started")
}

func (r *Runtime) handleVoteLocked(p *Participant) {
	if r.phase != contract.PhaseFinished {
		r.log.Debug().Str("participant_id", p.ID).Str("phase", string(r.phase)).Msg("play_again_vote outside finished ignored")
		return
	}
	if p.WantsPlayAgain {
		// Votes cannot be retracted; a repeat vote changes nothing.
		return
	}
	p.WantsPlayAgain = true

	voted := make([]string, 0, maxParticipants)
	all := true
	for _, q := range r.participantsLocked() {
		if q.WantsPlayAgain {
			voted = append(voted, q.ID)
		} else {
			all = false
		}
	}
	r.broadcastLocked(contract.PlayAgainStatus{
		Type:                contract.TypePlayAgainStatus,
		VotedParticipantIDs: voted,
		TotalParticipants:   len(r.parts),
	})

	if all {
		r.resetLocked()
	}
}

// resetLocked performs the finished -> waiting transition. Bots stay
// ready; humans must signal again, so the start condition only re-fires
// once every human has re-readied.
func (r *Runtime) resetLocked() {
	var appData json.RawMessage
	r.guard("OnReset", func() {
		appData = r.app.OnReset()
	})
	for _, p := range r.parts {
		p.WantsPlayAgain = false
		p.Ready = p.Bot
	}
	r.phase = contract.PhaseWaiting
	r.broadcastLocked(contract.SessionReset{Type: contract.TypeSessionReset, AppData: appData})
	r.log.Info().Msg("session reset")
	r.maybeStartLocked()
}

// EndSession stops the tick loop and broadcasts session_ended. Permitted
// only while playing; any other phase is a logged no-op, so a second
// call in finished is idempotent.
func (r *Runtime) EndSession(winnerID string, winnerNumber int, reason contract.EndReason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endSessionLocked(winnerID, winnerNumber, reason)
}

func (r *Runtime) endSessionLocked(winnerID string, winnerNumber int, reason contract.EndReason) {
	if r.phase != contract.PhasePlaying {
		r.log.Debug().Str("phase", string(r.phase)).Str("reason", string(reason)).Msg("end_session outside playing ignored")
		return
	}
	r.stopTickLocked()
	r.phase = contract.PhaseFinished

	var appData json.RawMessage
	if prov, ok := r.app.(EndDataProvider); ok {
		r.guard("SessionEndData", func() {
			appData = prov.SessionEndData(Outcome{WinnerID: winnerID, WinnerNumber: winnerNumber}, reason)
		})
	}
	r.broadcastLocked(contract.SessionEnded{
		Type:         contract.TypeSessionEnded,
		Reason:       reason,
		WinnerID:     winnerID,
		WinnerNumber: winnerNumber,
		AppData:      appData,
	})
	r.log.Info().Str("reason", string(reason)).Str("winner_id", winnerID).Msg("session ended")
}

// Broadcast sends an application message to every live connection.
// Post-end sends are dropped until the session resets.
func (r *Runtime) Broadcast(message json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.phase == contract.PhaseFinished {
		r.log.Debug().Msg("broadcast after session end dropped")
		return
	}
	r.broadcastRawLocked(message)
}

// SendToParticipant sends an application message to one participant by id.
func (r *Runtime) SendToParticipant(id string, message json.RawMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for conn, p := range r.parts {
		if p.ID == id {
			r.sendRawLocked(conn, message)
			return
		}
	}
}

// Stop halts the tick loop. Connections are closed by the transport.
func (r *Runtime) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopTickLocked()
}

func (r *Runtime) routeLocked(sender Conn, responses []Response) {
	for _, resp := range responses {
		switch resp.Target {
		case TargetSender:
			r.sendRawLocked(sender, resp.Message)
		case TargetOpponent:
			for conn := range r.parts {
				if conn != sender {
					r.sendRawLocked(conn, resp.Message)
				}
			}
		case TargetAll:
			for conn := range r.parts {
				r.sendRawLocked(conn, resp.Message)
			}
		default:
			r.log.Warn().Str("target", string(resp.Target)).Msg("response with unknown target dropped")
		}
	}
}

func (r *Runtime) broadcastLocked(msg any) {
	raw, err := r.codec.Marshal(msg)
	if err != nil {
		r.log.Error().Err(err).Msg("marshal broadcast")
		return
	}
	r.broadcastRawLocked(raw)
}

func (r *Runtime) broadcastRawLocked(raw []byte) {
	for conn := range r.parts {
		r.sendRawLocked(conn, raw)
	}
}

func (r *Runtime) sendLocked(conn Conn, msg any) {
	raw, err := r.codec.Marshal(msg)
	if err != nil {
		r.log.Error().Err(err).Msg("marshal message")
		return
	}
	r.sendRawLocked(conn, raw)
}

// sendRawLocked writes one frame, silently skipping closed connections.
func (r *Runtime) sendRawLocked(conn Conn, raw []byte) {
	if !conn.IsOpen() {
		return
	}
	if err := conn.Send(string(raw)); err != nil {
		r.log.Debug().Err(err).Msg("send failed")
	}
}

// guard runs an application hook, recovering panics so a broken app
// cannot take the session down mid-transition.
func (r *Runtime) guard(hook string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().Str("hook", hook).Any("panic", rec).Msg("application hook panicked")
		}
	}()
	fn()
}
