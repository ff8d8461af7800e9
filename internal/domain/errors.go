package domain

import (
	"errors"
	"net/http"
)

var (
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrInvalidPair            = errors.New("invalid pair: participants must differ")
	ErrUnknownParticipant     = errors.New("unknown participant")
	ErrUnknownCommand         = errors.New("unknown command")
	ErrAlreadyFriends         = errors.New("already friends")
	ErrAlreadyExists          = errors.New("friendship request already exists")

	ErrParticipantMismatch = errors.New("participant does not belong to this conversation")
	ErrMessageEmpty        = errors.New("message is empty")
	ErrMessageTooLong      = errors.New("message is too long")
	ErrMalformedEvent      = errors.New("malformed event")
	ErrRequestNotFound     = errors.New("friendship request not found")
	ErrNotFriends          = errors.New("not friends")
	ErrInvalidVerb         = errors.New("invalid notification verb")
	ErrUserNotFound        = errors.New("user not found")
	ErrNotAttached         = errors.New("connection not attached")
	ErrRegistryStopped     = errors.New("registry stopped")
	ErrRelayUnavailable    = errors.New("relay unavailable")
)

// Code maps an error onto the code sent to clients in error payloads.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrAuthenticationRequired):
		return "authentication_required"
	case errors.Is(err, ErrInvalidPair):
		return "invalid_pair"
	case errors.Is(err, ErrUnknownParticipant), errors.Is(err, ErrUserNotFound):
		return "unknown_participant"
	case errors.Is(err, ErrUnknownCommand):
		return "unknown_command"
	case errors.Is(err, ErrAlreadyFriends):
		return "already_friends"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrParticipantMismatch):
		return "participant_mismatch"
	case errors.Is(err, ErrMessageEmpty):
		return "message_empty"
	case errors.Is(err, ErrMessageTooLong):
		return "message_too_long"
	case errors.Is(err, ErrMalformedEvent):
		return "malformed_event"
	case errors.Is(err, ErrRequestNotFound):
		return "request_not_found"
	case errors.Is(err, ErrNotFriends):
		return "not_friends"
	case errors.Is(err, ErrInvalidVerb):
		return "invalid_verb"
	default:
		return "internal_error"
	}
}

// HTTPStatus maps an error onto the status REST handlers answer with.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrAuthenticationRequired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrUnknownParticipant), errors.Is(err, ErrUserNotFound), errors.Is(err, ErrRequestNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyFriends), errors.Is(err, ErrAlreadyExists):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidPair), errors.Is(err, ErrParticipantMismatch), errors.Is(err, ErrMessageEmpty),
		errors.Is(err, ErrMessageTooLong), errors.Is(err, ErrMalformedEvent), errors.Is(err, ErrUnknownCommand),
		errors.Is(err, ErrNotFriends), errors.Is(err, ErrInvalidVerb):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
