package chat

import (
	"encoding/json"
	"fmt"

	"go-social/internal/domain"
)

// Command is one recognized inbound chat event. The set is closed: every
// implementation lives in this file.
type Command interface {
	command() string
}

type FetchMessages struct {
	Author string `json:"author"`
	Friend string `json:"friend"`
}

type NewMessage struct {
	From    string `json:"from"`
	Friend  string `json:"friend"`
	Message string `json:"message"`
}

type TypingStart struct {
	From string `json:"from"`
}

type TypingStop struct{}

func (FetchMessages) command() string { return "fetch_messages" }
func (NewMessage) command() string    { return "new_message" }
func (TypingStart) command() string   { return "typing_start" }
func (TypingStop) command() string    { return "typing_stop" }

// DecodeCommand reads the envelope tag and decodes the matching variant.
func DecodeCommand(data []byte) (Command, error) {
	var env struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedEvent, err)
	}

	switch env.Command {
	case "fetch_messages":
		return decodeAs[FetchMessages](data)
	case "new_message":
		return decodeAs[NewMessage](data)
	case "typing_start":
		return decodeAs[TypingStart](data)
	case "typing_stop":
		return TypingStop{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownCommand, env.Command)
	}
}

func decodeAs[T Command](data []byte) (Command, error) {
	var cmd T
	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrMalformedEvent, cmd.command(), err)
	}
	return cmd, nil
}
