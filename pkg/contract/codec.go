package contract

import "encoding/json"

// Codec is the serializer pair used for all wire messages. The reference
// encoding is JSON; an application may swap in any pair that is an
// inverse on valid inputs.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)   { return json.Marshal(v) }
func (jsonCodec) Unmarshal(d []byte, v any) error { return json.Unmarshal(d, v) }

// JSON is the default codec.
var JSON Codec = jsonCodec{}
