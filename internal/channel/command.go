// internal/channel/command.go
package channel

import (
	"errors"
	"fmt"
)

// Command is a decoded inbound message. The set of commands is closed.
type Command interface {
	command()
}

type UpdateLocation struct {
	Latitude  float64
	Longitude float64
}

type AddHint struct {
	Hint string
}

type SendChat struct {
	Message  string
	TeamOnly bool
}

type Ping struct{}

func (UpdateLocation) command() {}
func (AddHint) command()        {}
func (SendChat) command()       {}
func (Ping) command()           {}

// ErrUnknownCommand is returned for messages whose type is not recognised.
var ErrUnknownCommand = errors.New("unknown command")

// ErrMalformedCommand is returned when a message is missing required fields.
var ErrMalformedCommand = errors.New("malformed command")

type envelope struct {
	Type      string   `json:"type"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Hint      string   `json:"hint"`
	Message   string   `json:"message"`
}

// DecodeCommand parses one inbound message.
func DecodeCommand(codec Codec, data []byte) (Command, error) {
	var env envelope
	if err := codec.Decode(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCommand, err)
	}
	switch env.Type {
	case "update_location":
		if env.Latitude == nil || env.Longitude == nil {
			return nil, fmt.Errorf("%w: update_location needs latitude and longitude", ErrMalformedCommand)
		}
		return UpdateLocation{Latitude: *env.Latitude, Longitude: *env.Longitude}, nil
	case "add_hint":
		return AddHint{Hint: env.Hint}, nil
	case "chat_message":
		return SendChat{Message: env.Message}, nil
	case "team_chat":
		return SendChat{Message: env.Message, TeamOnly: true}, nil
	case "ping":
		return Ping{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, env.Type)
}
