package session

import (
	"encoding/json"
	"time"

	"github.com/pairlink/pairlink-server/pkg/contract"
)

// Participant is one of the two session slots as seen by applications.
// Copies handed to hooks are snapshots; the runtime owns the live record.
type Participant struct {
	ID             string
	Number         int
	Ready          bool
	Bot            bool
	WantsPlayAgain bool
}

// Target selects the recipients of an application response.
type Target string

const (
	TargetSender   Target = "sender"
	TargetOpponent Target = "opponent"
	TargetAll      Target = "all"
)

// Response is one outbound application message with its routing.
type Response struct {
	Target  Target
	Message json.RawMessage
}

// Outcome names the winner of a finished session. A zero WinnerID means
// no winner (draw or abandoned).
type Outcome struct {
	WinnerID     string
	WinnerNumber int
}

// App is the capability bundle an application supplies to the runtime.
// Hooks run under the runtime lock; they must not call back into the
// runtime synchronously. Panics are recovered and logged.
type App interface {
	// ID names the application, matching the APP_ID the lobby launches with.
	ID() string

	// GenerateParticipantID maps a slot number to a stable participant id.
	GenerateParticipantID(number int) string

	// OnParticipantJoin runs after admission. welcome is embedded in the
	// new participant's welcome message; opponent, if non-nil, rides along
	// on the opponent_joined broadcast.
	OnParticipantJoin(p Participant) (welcome, opponent json.RawMessage)

	// OnParticipantLeave runs before the participant record is destroyed.
	OnParticipantLeave(p Participant)

	// OnMessage handles any frame whose tag is outside the framework set.
	OnMessage(msg contract.AppMessage, senderID string, phase contract.Phase) []Response

	// OnSessionStart runs on the waiting -> playing transition, before
	// session_started is broadcast.
	OnSessionStart()

	// OnReset runs on the finished -> waiting transition; its return is
	// embedded in the session_reset broadcast.
	OnReset() json.RawMessage
}

// Ticker is an optional App capability enabling the periodic tick loop.
type Ticker interface {
	// TickInterval is the loop period. Non-positive disables ticking.
	TickInterval() time.Duration

	// OnTick receives elapsed seconds since the previous tick and returns
	// messages to broadcast to all connections, in order.
	OnTick(dt float64) []json.RawMessage
}

// EndChecker is an optional App capability polled after every tick; a
// non-nil outcome ends the session with reason app_condition.
type EndChecker interface {
	CheckSessionEnd() *Outcome
}

// EndDataProvider is an optional App capability supplying the appData
// payload embedded in session_ended.
type EndDataProvider interface {
	SessionEndData(out Outcome, reason contract.EndReason) json.RawMessage
}

// ActivityFilter is an optional App capability naming message tags that
// do not count as activity for the inactivity monitor, such as
// continuous hand-position streams.
type ActivityFilter interface {
	ActivityIgnoreTypes() []string
}
