// Codec defines how the shared session data is serialized to and from
// bytes, allowing it to be handed to a Handler. The package includes a
// default implementation using Go's `encoding/gob`.
package session

import (
	"bytes"
	"encoding/gob"
	"time"
)

// Data is the shared session blob: one slice per bag, keyed by the bag's
// storage key.
type Data map[string]map[string]any

// Codec is an interface for serializing and deserializing session data.
type Codec interface {
	// Decode decodes a byte slice into session data. Empty input decodes
	// to empty data.
	Decode(data []byte) (Data, error)

	// Encode encodes session data into a byte slice.
	Encode(data Data) ([]byte, error)
}

// Ensure GobCodec implements Codec.
var _ Codec = GobCodec{}

func init() {
	// Values nested inside bags travel as interface values and must be
	// registered with gob. Application types stored in a session must be
	// registered by the application.
	gob.Register(map[string]any{})
	gob.Register([]any{})
	gob.Register(time.Time{})
}

// GobCodec is a Codec implementation using Go's encoding/gob.
type GobCodec struct{}

// Encode serializes the session data into a byte slice using gob encoding.
func (GobCodec) Encode(data Data) ([]byte, error) {
	var buf bytes.Buffer
	encoder := gob.NewEncoder(&buf)

	err := encoder.Encode(map[string]map[string]any(data))
	if err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// Decode deserializes the data using gob decoding.
func (GobCodec) Decode(data []byte) (Data, error) {
	if len(data) == 0 {
		return Data{}, nil
	}

	buf := bytes.NewBuffer(data)
	decoder := gob.NewDecoder(buf)

	var d map[string]map[string]any
	if err := decoder.Decode(&d); err != nil {
		return nil, err
	}
	if d == nil {
		d = make(map[string]map[string]any)
	}
	return Data(d), nil
}
