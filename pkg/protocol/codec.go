package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Codec encodes messages for one connection.
type Codec interface {
	Name() string
	// Binary reports whether frames must be sent as binary websocket messages.
	Binary() bool
	Encode(msg *Message) ([]byte, error)
	Decode(data []byte, msg *Message) error
}

const (
	CodecJSON    = "json"
	CodecMsgpack = "msgpack"
)

// MaxFrameSize is the largest websocket frame either side reads.
const MaxFrameSize = 64 * 1024

// frameHeadroom is kept free for the fields the server adds when it
// relays a message.
const frameHeadroom = 1024

type jsonCodec struct{}

func (jsonCodec) Name() string { return CodecJSON }
func (jsonCodec) Binary() bool { return false }

func (jsonCodec) Encode(msg *Message) ([]byte, error) { return json.Marshal(msg) }

func (jsonCodec) Decode(data []byte, msg *Message) error { return json.Unmarshal(data, msg) }

type msgpackCodec struct{}

func (msgpackCodec) Name() string { return CodecMsgpack }
func (msgpackCodec) Binary() bool { return true }

func (msgpackCodec) Encode(msg *Message) ([]byte, error) { return msgpack.Marshal(msg) }

func (msgpackCodec) Decode(data []byte, msg *Message) error { return msgpack.Unmarshal(data, msg) }

var (
	JSON    Codec = jsonCodec{}
	Msgpack Codec = msgpackCodec{}
)

// SelectCodec returns the codec registered under name. An empty name
// selects JSON, which browser clients speak.
func SelectCodec(name string) (Codec, error) {
	switch name {
	case "", CodecJSON:
		return JSON, nil
	case CodecMsgpack:
		return Msgpack, nil
	default:
		return nil, fmt.Errorf("unsupported codec: %s", name)
	}
}

// CheckFrameSize reports ErrMessageTooLarge when msg, encoded with any
// codec, would not fit in a frame once relayed. Recipients may speak a
// different codec than the sender.
func CheckFrameSize(msg *Message) error {
	for _, c := range []Codec{JSON, Msgpack} {
		data, err := c.Encode(msg)
		if err != nil {
			return fmt.Errorf("encode %s: %w", c.Name(), err)
		}
		if len(data) > MaxFrameSize-frameHeadroom {
			return fmt.Errorf("%w: %d bytes as %s", ErrMessageTooLarge, len(data), c.Name())
		}
	}
	return nil
}
