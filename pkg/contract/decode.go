package contract

import (
	"errors"
	"fmt"
)

var (
	// ErrNoType marks a frame without a usable type discriminator.
	ErrNoType = errors.New("message has no type")
)

// DecodeClient interprets a client->server frame. Framework tags decode
// to their typed form; any other tag comes back as an AppMessage carrying
// the normalized frame. Unparseable input is an error.
func DecodeClient(codec Codec, raw []byte) (any, error) {
	norm, env, err := normalizeAndPeek(codec, raw)
	if err != nil {
		return nil, err
	}

	switch env.Type {
	case TypeParticipantReady:
		return ParticipantReady{Type: env.Type}, nil
	case TypeBotIdentify:
		return BotIdentify{Type: env.Type}, nil
	case TypePlayAgainVote:
		return PlayAgainVote{Type: env.Type}, nil
	default:
		return AppMessage{Type: env.Type, Raw: norm}, nil
	}
}

// DecodeServer interprets a server->client frame, mirroring DecodeClient.
func DecodeServer(codec Codec, raw []byte) (any, error) {
	norm, env, err := normalizeAndPeek(codec, raw)
	if err != nil {
		return nil, err
	}

	if !IsFrameworkServerType(env.Type) {
		return AppMessage{Type: env.Type, Raw: norm}, nil
	}

	var msg any
	switch env.Type {
	case TypeWelcome:
		msg = &Welcome{}
	case TypeOpponentJoined:
		msg = &OpponentJoined{}
	case TypeOpponentLeft:
		msg = &OpponentLeft{}
	case TypeSessionStarted:
		msg = &SessionStarted{}
	case TypeSessionEnded:
		msg = &SessionEnded{}
	case TypePlayAgainStatus:
		msg = &PlayAgainStatus{}
	case TypeSessionReset:
		msg = &SessionReset{}
	case TypeError:
		msg = &ErrorMessage{}
	}
	if err := codec.Unmarshal(norm, msg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", env.Type, err)
	}
	return msg, nil
}

func normalizeAndPeek(codec Codec, raw []byte) ([]byte, Envelope, error) {
	norm, err := Normalize(codec, raw)
	if err != nil {
		return nil, Envelope{}, err
	}
	var env Envelope
	if err := codec.Unmarshal(norm, &env); err != nil {
		return nil, Envelope{}, err
	}
	if env.Type == "" {
		return nil, Envelope{}, ErrNoType
	}
	return norm, env, nil
}
