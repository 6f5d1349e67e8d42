// internal/channel/codec.go
package channel

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Websocket subprotocols understood by the server.
const (
	SubprotocolJSON    = "manhunt.json"
	SubprotocolMsgpack = "manhunt.msgpack"
)

// Frame is one encoded outbound message.
type Frame struct {
	Binary bool
	Data   []byte
}

// Codec encodes events and decodes commands for one subprotocol. Both codecs use the
// JSON field names, so a msgpack client sees the same document shape as a JSON client.
type Codec interface {
	Name() string
	Encode(v any) (Frame, error)
	Decode(data []byte, v any) error
}

var (
	JSON    Codec = jsonCodec{}
	Msgpack Codec = msgpackCodec{}
)

// Subprotocols lists the subprotocols to offer during the websocket handshake, in order
// of preference.
func Subprotocols() []string {
	return []string{SubprotocolJSON, SubprotocolMsgpack}
}

// CodecFor returns the codec for a negotiated subprotocol. Clients that negotiated
// nothing get JSON.
func CodecFor(subprotocol string) (Codec, error) {
	switch subprotocol {
	case "", SubprotocolJSON:
		return JSON, nil
	case SubprotocolMsgpack:
		return Msgpack, nil
	}
	return nil, fmt.Errorf("unsupported subprotocol %q", subprotocol)
}

type jsonCodec struct{}

func (jsonCodec) Name() string { return SubprotocolJSON }

func (jsonCodec) Encode(v any) (Frame, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Data: data}, nil
}

func (jsonCodec) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

type msgpackCodec struct{}

func (msgpackCodec) Name() string { return SubprotocolMsgpack }

// Encode goes through the JSON representation first so custom MarshalJSON methods
// (teams, decimals, GeoJSON) apply to msgpack clients too.
func (msgpackCodec) Encode(v any) (Frame, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return Frame{}, err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Frame{}, err
	}
	data, err := msgpack.Marshal(doc)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Binary: true, Data: data}, nil
}

func (msgpackCodec) Decode(data []byte, v any) error {
	var doc any
	if err := msgpack.Unmarshal(data, &doc); err != nil {
		return err
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
