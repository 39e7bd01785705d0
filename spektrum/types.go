package spektrum

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Client -> server message types.
const (
	MsgConnect     = "Connect"
	MsgLeave       = "Leave"
	MsgAnswer      = "Answer"
	MsgAdminAction = "AdminAction"
)

// Server -> client message types.
const (
	MsgConnected          = "Connected"
	MsgStateDelta         = "StateDelta"
	MsgAnswered           = "Answered"
	MsgPlayerLeft         = "PlayerLeft"
	MsgPlayerKicked       = "PlayerKicked"
	MsgGameOver           = "GameOver"
	MsgGameClosed         = "GameClosed"
	MsgError              = "Error"
	MsgAdminInfo          = "AdminInfo"
	MsgAdminNextQuestions = "AdminNextQuestions"
)

// Admin action types.
const (
	ActionStartGame    = "StartGame"
	ActionStartRound   = "StartRound"
	ActionEndRound     = "EndRound"
	ActionSkipQuestion = "SkipQuestion"
	ActionEndGame      = "EndGame"
	ActionCloseGame    = "CloseGame"
	ActionKickPlayer   = "KickPlayer"
)

// ClientMessage is the envelope from client to server. Variants share one
// struct; unused fields stay empty and are omitted on the wire.
type ClientMessage struct {
	Type     string       `json:"type"`
	PlayerID string       `json:"player_id,omitempty"`
	Answer   string       `json:"answer,omitempty"`
	Action   *AdminAction `json:"action,omitempty"`
}

// AdminAction is the nested payload of an AdminAction message.
type AdminAction struct {
	Type                  string   `json:"type"`
	Reason                string   `json:"reason,omitempty"`
	PlayerName            string   `json:"player_name,omitempty"`
	SpecifiedAlternatives []string `json:"specified_alternatives,omitempty"`
}

// ConnectMessage builds the handshake sent right after the transport opens.
func ConnectMessage(playerID uuid.UUID) ClientMessage {
	return ClientMessage{Type: MsgConnect, PlayerID: playerID.String()}
}

// LeaveMessage builds the explicit-leave notification.
func LeaveMessage() ClientMessage {
	return ClientMessage{Type: MsgLeave}
}

// AnswerMessage builds an answer submission.
func AnswerMessage(answer string) ClientMessage {
	return ClientMessage{Type: MsgAnswer, Answer: answer}
}

// AdminActionMessage wraps an admin action in the outer envelope.
func AdminActionMessage(action AdminAction) ClientMessage {
	return ClientMessage{Type: MsgAdminAction, Action: &action}
}

// ServerMessage is the envelope from server to client. The server tags each
// message with "type" and flattens the variant's fields alongside it, so one
// struct with optional fields covers the whole protocol. Pointer fields in
// StateDelta distinguish "absent" from "empty": only present fields change.
type ServerMessage struct {
	Type string `json:"type"`

	// Connected
	PlayerID      string       `json:"player_id,omitempty"`
	RoundDuration int          `json:"round_duration,omitempty"`
	Players       []ScoreEntry `json:"players,omitempty"`

	// StateDelta
	Phase             *string      `json:"phase,omitempty"`
	QuestionType      *string      `json:"question_type,omitempty"`
	QuestionText      *string      `json:"question_text,omitempty"`
	Alternatives      []string     `json:"alternatives,omitempty"`
	Scoreboard        []ScoreEntry `json:"scoreboard,omitempty"`
	RoundScores       []ScoreEntry `json:"round_scores,omitempty"`
	ConsecutiveMisses []MissEntry  `json:"consecutive_misses,omitempty"`
	AdminExtra        *AdminExtra  `json:"admin_extra,omitempty"`
	CurrentSong       *Song        `json:"current_song,omitempty"`

	// Answered / PlayerLeft (Name is shared by both)
	Name       string `json:"name,omitempty"`
	Correct    bool   `json:"correct,omitempty"`
	NewScore   int    `json:"new_score,omitempty"`
	RoundScore int    `json:"round_score,omitempty"`

	// GameOver / GameClosed / PlayerKicked / Error
	FinalScores []ScoreEntry `json:"final_scores,omitempty"`
	Reason      string       `json:"reason,omitempty"`
	Message     string       `json:"message,omitempty"`

	// AdminInfo / AdminNextQuestions
	Question          *AdminQuestion `json:"question,omitempty"`
	UpcomingQuestions []GameQuestion `json:"upcoming_questions,omitempty"`
}

// ParseServerMessage decodes one inbound frame.
func ParseServerMessage(data []byte) (ServerMessage, error) {
	var msg ServerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ServerMessage{}, WrapError(ErrorSerialization, "failed to decode server message", err)
	}
	if msg.Type == "" {
		return ServerMessage{}, NewError(ErrorSerialization, "server message missing type")
	}
	return msg, nil
}

// ScoreEntry is one (name, score) pair. The server serializes these as
// two-element arrays, not objects.
type ScoreEntry struct {
	Name  string
	Score int
}

// MarshalJSON encodes the entry as ["name", score].
func (e ScoreEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{e.Name, e.Score})
}

// UnmarshalJSON decodes ["name", score].
func (e *ScoreEntry) UnmarshalJSON(data []byte) error {
	var tuple [2]json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return fmt.Errorf("score entry is not a pair: %w", err)
	}
	if err := json.Unmarshal(tuple[0], &e.Name); err != nil {
		return fmt.Errorf("score entry name: %w", err)
	}
	if err := json.Unmarshal(tuple[1], &e.Score); err != nil {
		return fmt.Errorf("score entry score: %w", err)
	}
	return nil
}

// MissEntry is one (name, miss count) pair, serialized the same way as
// ScoreEntry: a two-element array.
type MissEntry struct {
	Name   string
	Misses int
}

// MarshalJSON encodes the entry as ["name", misses].
func (e MissEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{e.Name, e.Misses})
}

// UnmarshalJSON decodes ["name", misses].
func (e *MissEntry) UnmarshalJSON(data []byte) error {
	var tuple [2]json.RawMessage
	if err := json.Unmarshal(data, &tuple); err != nil {
		return fmt.Errorf("miss entry is not a pair: %w", err)
	}
	if err := json.Unmarshal(tuple[0], &e.Name); err != nil {
		return fmt.Errorf("miss entry name: %w", err)
	}
	if err := json.Unmarshal(tuple[1], &e.Misses); err != nil {
		return fmt.Errorf("miss entry count: %w", err)
	}
	return nil
}

// AdminExtra is the admin-only portion of a StateDelta.
type AdminExtra struct {
	UpcomingQuestions []GameQuestion `json:"upcoming_questions"`
}

// Song identifies the track behind the current question.
type Song struct {
	SongName  string `json:"song_name"`
	Artist    string `json:"artist"`
	YoutubeID string `json:"youtube_id"`
}

// AdminQuestion is the admin-only preview of the current question.
type AdminQuestion struct {
	Type             string `json:"type"`
	SongName         string `json:"song_name,omitempty"`
	Song             string `json:"song,omitempty"`
	Artist           string `json:"artist,omitempty"`
	YoutubeID        string `json:"youtube_id"`
	CharacterContext string `json:"character_context,omitempty"`
}

// GameQuestion is an upcoming-question preview entry.
type GameQuestion struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Artist    string `json:"artist,omitempty"`
	YoutubeID string `json:"youtube_id"`
}
