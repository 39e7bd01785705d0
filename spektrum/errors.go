package spektrum

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a categorized error type.
type ErrorCode int

const (
	ErrorUnknown ErrorCode = iota

	// Server errors that permanently invalidate the session. A credential
	// hit by one of these can never be used to resume.
	ErrorNotAuthorized
	ErrorLobbyNotFound
	ErrorPlayerNotFound
	ErrorGameClosed
	ErrorKicked

	// Other server errors; the connection stays usable.
	ErrorInvalidMessage
	ErrorGame

	// Client-side errors.
	ErrorConnection
	ErrorDisconnected
	ErrorTimeout
	ErrorSuperseded
	ErrorNotConnected
	ErrorNoCredential
	ErrorRetriesExhausted
	ErrorInvalidConfig
	ErrorSerialization
	ErrorStorage
	ErrorClientClosed
)

// String returns the string representation of an ErrorCode.
func (e ErrorCode) String() string {
	switch e {
	case ErrorUnknown:
		return "unknown"
	case ErrorNotAuthorized:
		return "not_authorized"
	case ErrorLobbyNotFound:
		return "lobby_not_found"
	case ErrorPlayerNotFound:
		return "player_not_found"
	case ErrorGameClosed:
		return "game_closed"
	case ErrorKicked:
		return "kicked"
	case ErrorInvalidMessage:
		return "invalid_message"
	case ErrorGame:
		return "game_error"
	case ErrorConnection:
		return "connection_error"
	case ErrorDisconnected:
		return "disconnected"
	case ErrorTimeout:
		return "timeout"
	case ErrorSuperseded:
		return "superseded"
	case ErrorNotConnected:
		return "not_connected"
	case ErrorNoCredential:
		return "no_credential"
	case ErrorRetriesExhausted:
		return "retries_exhausted"
	case ErrorInvalidConfig:
		return "invalid_config"
	case ErrorSerialization:
		return "serialization_error"
	case ErrorStorage:
		return "storage_error"
	case ErrorClientClosed:
		return "client_closed"
	default:
		return fmt.Sprintf("unknown_code_%d", e)
	}
}

// ParseErrorCode converts a server error payload to an ErrorCode. The server
// formats errors as "Code: detail", so only the leading token is matched.
func ParseErrorCode(message string) ErrorCode {
	code := message
	if i := strings.IndexByte(message, ':'); i >= 0 {
		code = message[:i]
	}
	switch strings.TrimSpace(code) {
	case "NotAuthorized":
		return ErrorNotAuthorized
	case "LobbyNotFound":
		return ErrorLobbyNotFound
	case "PlayerNotFound":
		return ErrorPlayerNotFound
	case "GameClosed":
		return ErrorGameClosed
	case "InvalidMessage":
		return ErrorInvalidMessage
	case "GameError":
		return ErrorGame
	default:
		return ErrorUnknown
	}
}

// SpektrumError is a structured error with code and context.
type SpektrumError struct {
	Code    ErrorCode
	Message string
	Wrapped error
}

// Error implements the error interface.
func (e *SpektrumError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("%s: %s (wrapped: %v)", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error for errors.Unwrap support.
func (e *SpektrumError) Unwrap() error {
	return e.Wrapped
}

// Is implements errors.Is support for error comparison by code.
func (e *SpektrumError) Is(target error) bool {
	t, ok := target.(*SpektrumError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewError creates a new SpektrumError with the given code and message.
func NewError(code ErrorCode, message string) *SpektrumError {
	return &SpektrumError{
		Code:    code,
		Message: message,
	}
}

// WrapError wraps an existing error with a SpektrumError.
func WrapError(code ErrorCode, message string, err error) *SpektrumError {
	return &SpektrumError{
		Code:    code,
		Message: message,
		Wrapped: err,
	}
}

// IsSessionInvalid reports whether err means the session can never be
// resumed with the same credential.
func IsSessionInvalid(err error) bool {
	if err == nil {
		return false
	}
	var se *SpektrumError
	if !errors.As(err, &se) {
		return false
	}
	return sessionInvalidCode(se.Code)
}

// IsConnectionError reports whether err is a transient connection failure.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	var se *SpektrumError
	if !errors.As(err, &se) {
		return false
	}
	return se.Code == ErrorConnection || se.Code == ErrorDisconnected || se.Code == ErrorTimeout
}

func sessionInvalidCode(code ErrorCode) bool {
	switch code {
	case ErrorNotAuthorized, ErrorLobbyNotFound, ErrorPlayerNotFound, ErrorGameClosed, ErrorKicked:
		return true
	default:
		return false
	}
}

// ClassifyServerMessage decides whether an inbound message invalidates the
// session. It is applied before the message reaches any game-state consumer
// because the result determines whether the client tears down permanently or
// schedules a retry.
func ClassifyServerMessage(msg ServerMessage) (ErrorCode, bool) {
	switch msg.Type {
	case MsgGameClosed:
		return ErrorGameClosed, true
	case MsgPlayerKicked:
		return ErrorKicked, true
	case MsgError:
		code := ParseErrorCode(msg.Message)
		return code, sessionInvalidCode(code)
	default:
		return ErrorUnknown, false
	}
}
