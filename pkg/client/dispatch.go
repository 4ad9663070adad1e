package client

import (
	"github.com/pairlink/pairlink-server/pkg/contract"
)

// dispatch interprets one inbound frame. Framework messages update the
// mirrored state first and then fire the matching event, so handlers
// always observe the post-transition state. Anything else goes to
// OnAppMessage.
func (c *Client) dispatch(raw []byte) {
	msg, err := contract.DecodeServer(c.codec, raw)
	if err != nil {
		c.log.Warn().Err(err).Msg("undecodable frame dropped")
		return
	}

	switch m := msg.(type) {
	case *contract.Welcome:
		c.mu.Lock()
		c.participantID = m.ParticipantID
		c.participantNumber = m.ParticipantNumber
		c.phase = m.SessionPhase
		c.mu.Unlock()
		if cb := c.handlers.OnSessionJoin; cb != nil {
			cb(*m)
		}
	case *contract.OpponentJoined:
		if cb := c.handlers.OnOpponentJoined; cb != nil {
			cb(m.AppData)
		}
	case *contract.OpponentLeft:
		if cb := c.handlers.OnOpponentLeft; cb != nil {
			cb()
		}
	case *contract.SessionStarted:
		c.mu.Lock()
		c.phase = contract.PhasePlaying
		c.mu.Unlock()
		if cb := c.handlers.OnSessionStart; cb != nil {
			cb()
		}
	case *contract.SessionEnded:
		c.mu.Lock()
		c.phase = contract.PhaseFinished
		c.mu.Unlock()
		if cb := c.handlers.OnSessionEnd; cb != nil {
			cb(m.WinnerID, m.WinnerNumber, m.Reason)
		}
	case *contract.PlayAgainStatus:
		if cb := c.handlers.OnPlayAgainStatus; cb != nil {
			cb(len(m.VotedParticipantIDs), m.TotalParticipants)
		}
	case *contract.SessionReset:
		c.mu.Lock()
		c.phase = contract.PhaseWaiting
		c.mu.Unlock()
		if cb := c.handlers.OnSessionReset; cb != nil {
			cb(m.AppData)
		}
	case *contract.ErrorMessage:
		if cb := c.handlers.OnError; cb != nil {
			cb(m.Message)
		}
	case contract.AppMessage:
		if cb := c.handlers.OnAppMessage; cb != nil {
			cb(m)
		}
	}
}
