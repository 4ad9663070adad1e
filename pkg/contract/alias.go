package contract

import "errors"

// Legacy wire names accepted on ingress. Emission always uses the
// canonical names; normalization happens once, before typed decode, on
// both server and client.
var typeAliases = map[string]string{
	"player_ready": TypeParticipantReady,
	"game_started": TypeSessionStarted,
	"game_over":    TypeSessionEnded,
	"game_reset":   TypeSessionReset,
}

var fieldAliases = map[string]string{
	"playerId":       "participantId",
	"playerNumber":   "participantNumber",
	"gamePhase":      "sessionPhase",
	"votedPlayerIds": "votedParticipantIds",
	"totalPlayers":   "totalParticipants",
}

// Normalize rewrites legacy type tags and field names to their canonical
// form. Frames already in canonical form are returned unchanged, byte for
// byte. A frame that does not decode as an object is an error.
func Normalize(codec Codec, raw []byte) ([]byte, error) {
	var obj map[string]any
	if err := codec.Unmarshal(raw, &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.New("message is not an object")
	}

	changed := false
	if t, ok := obj["type"].(string); ok {
		if canonical, isLegacy := typeAliases[t]; isLegacy {
			obj["type"] = canonical
			changed = true
		}
	}
	for legacy, canonical := range fieldAliases {
		v, ok := obj[legacy]
		if !ok {
			continue
		}
		// A canonical field present alongside its alias wins.
		if _, dup := obj[canonical]; !dup {
			obj[canonical] = v
		}
		delete(obj, legacy)
		changed = true
	}

	if !changed {
		return raw, nil
	}
	return codec.Marshal(obj)
}
