package events

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MessageType is the top-level tag of a channel frame
type MessageType string

const (
	MessageTypeUpdate      MessageType = "update"
	MessageTypePersonal    MessageType = "personal"
	MessageTypeGameDeleted MessageType = "game_deleted"
)

var (
	// ErrUnknownMessage is returned for frames whose type is outside the vocabulary
	ErrUnknownMessage = errors.New("unknown message type")
	// ErrEmptyFrame is returned for zero-length frames
	ErrEmptyFrame = errors.New("empty frame")
)

// Message is one decoded channel frame: Update, Personal or GameDeleted.
type Message interface {
	Type() MessageType
	isMessage()
}

// envelope is the raw frame as the server writes it
type envelope struct {
	Type     MessageType     `json:"type"`
	Data     json.RawMessage `json:"data"`
	Message  json.RawMessage `json:"message"`
	Level    string          `json:"level"`
	Name     string          `json:"name"`
	Redirect string          `json:"redirect"`
}

// GameDeleted ends the session
type GameDeleted struct {
	Name     string `json:"name,omitempty"`
	Redirect string `json:"redirect,omitempty"`
}

func (GameDeleted) Type() MessageType { return MessageTypeGameDeleted }
func (GameDeleted) isMessage()        {}

// Decode parses a single frame into its message variant
func Decode(frame []byte) (Message, error) {
	if len(frame) == 0 {
		return nil, ErrEmptyFrame
	}

	var env envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("unmarshal envelope: %w", err)
	}

	switch env.Type {
	case MessageTypeUpdate:
		var update Update
		if len(env.Data) == 0 || string(env.Data) == "null" {
			return update, nil
		}
		if err := json.Unmarshal(env.Data, &update); err != nil {
			return nil, fmt.Errorf("unmarshal update: %w", err)
		}
		return update, nil

	case MessageTypePersonal:
		personal, err := decodePersonal(env.Message, env.Level)
		if err != nil {
			return nil, fmt.Errorf("unmarshal personal: %w", err)
		}
		return personal, nil

	case MessageTypeGameDeleted:
		return GameDeleted{Name: env.Name, Redirect: env.Redirect}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMessage, env.Type)
	}
}
