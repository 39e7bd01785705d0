package spektrum

import (
	"errors"
	"fmt"
	"testing"
)

func TestParseErrorCode(t *testing.T) {
	cases := []struct {
		message string
		want    ErrorCode
	}{
		{"NotAuthorized: admin action from player", ErrorNotAuthorized},
		{"LobbyNotFound: lobby expired", ErrorLobbyNotFound},
		{"PlayerNotFound: no such player", ErrorPlayerNotFound},
		{"GameClosed: finished", ErrorGameClosed},
		{"InvalidMessage: bad payload", ErrorInvalidMessage},
		{"GameError: answer outside round", ErrorGame},
		{"GameClosed", ErrorGameClosed},
		{"something else entirely", ErrorUnknown},
		{"", ErrorUnknown},
	}
	for _, tc := range cases {
		if got := ParseErrorCode(tc.message); got != tc.want {
			t.Errorf("ParseErrorCode(%q) = %v, want %v", tc.message, got, tc.want)
		}
	}
}

func TestClassifyServerMessage(t *testing.T) {
	cases := []struct {
		name    string
		msg     ServerMessage
		want    ErrorCode
		invalid bool
	}{
		{"game closed", ServerMessage{Type: MsgGameClosed, Reason: "done"}, ErrorGameClosed, true},
		{"kicked", ServerMessage{Type: MsgPlayerKicked, Reason: "admin"}, ErrorKicked, true},
		{"lobby not found", ServerMessage{Type: MsgError, Message: "LobbyNotFound: gone"}, ErrorLobbyNotFound, true},
		{"not authorized", ServerMessage{Type: MsgError, Message: "NotAuthorized: nope"}, ErrorNotAuthorized, true},
		{"game error survivable", ServerMessage{Type: MsgError, Message: "GameError: not your turn"}, ErrorGame, false},
		{"invalid message survivable", ServerMessage{Type: MsgError, Message: "InvalidMessage: bad"}, ErrorInvalidMessage, false},
		{"state delta", ServerMessage{Type: MsgStateDelta}, ErrorUnknown, false},
		{"game over is not closed", ServerMessage{Type: MsgGameOver}, ErrorUnknown, false},
	}
	for _, tc := range cases {
		code, invalid := ClassifyServerMessage(tc.msg)
		if code != tc.want || invalid != tc.invalid {
			t.Errorf("%s: = (%v, %v), want (%v, %v)", tc.name, code, invalid, tc.want, tc.invalid)
		}
	}
}

func TestErrorWrappingAndIs(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapError(ErrorConnection, "dial failed", cause)

	if !errors.Is(err, NewError(ErrorConnection, "")) {
		t.Fatalf("errors.Is by code failed")
	}
	if errors.Is(err, NewError(ErrorTimeout, "")) {
		t.Fatalf("errors.Is matched a different code")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("wrapped cause not reachable via errors.Is")
	}

	var se *SpektrumError
	if !errors.As(fmt.Errorf("outer: %w", err), &se) {
		t.Fatalf("errors.As through fmt wrapping failed")
	}
	if se.Code != ErrorConnection {
		t.Fatalf("code = %v, want connection_error", se.Code)
	}
}

func TestIsSessionInvalid(t *testing.T) {
	for _, code := range []ErrorCode{ErrorNotAuthorized, ErrorLobbyNotFound, ErrorPlayerNotFound, ErrorGameClosed, ErrorKicked} {
		if !IsSessionInvalid(NewError(code, "x")) {
			t.Errorf("%v should invalidate the session", code)
		}
	}
	for _, code := range []ErrorCode{ErrorGame, ErrorInvalidMessage, ErrorConnection, ErrorTimeout} {
		if IsSessionInvalid(NewError(code, "x")) {
			t.Errorf("%v should not invalidate the session", code)
		}
	}
	if IsSessionInvalid(nil) || IsSessionInvalid(errors.New("plain")) {
		t.Fatalf("non-spektrum errors must not classify as session-invalid")
	}
}

func TestIsConnectionError(t *testing.T) {
	for _, code := range []ErrorCode{ErrorConnection, ErrorDisconnected, ErrorTimeout} {
		if !IsConnectionError(NewError(code, "x")) {
			t.Errorf("%v should classify as connection error", code)
		}
	}
	if IsConnectionError(NewError(ErrorGame, "x")) || IsConnectionError(nil) {
		t.Fatalf("misclassified connection error")
	}
}
