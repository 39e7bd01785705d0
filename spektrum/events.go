package spektrum

// Game phases as reported in StateDelta messages.
const (
	PhaseLobby    = "lobby"
	PhaseScore    = "score"
	PhaseQuestion = "question"
	PhaseGameOver = "gameover"
)

// ConnectedEvent is the server's handshake reply.
type ConnectedEvent struct {
	PlayerID      string
	Name          string
	RoundDuration int
	Players       []ScoreEntry
}

// StateDeltaEvent carries a partial game-state update. Nil pointer fields
// were absent from the message and mean "unchanged".
type StateDeltaEvent struct {
	Phase             *string
	QuestionType      *string
	QuestionText      *string
	Alternatives      []string
	Scoreboard        []ScoreEntry
	RoundScores       []ScoreEntry
	ConsecutiveMisses []MissEntry
	AdminExtra        *AdminExtra
	CurrentSong       *Song
}

// AnsweredEvent reports another player's scored answer.
type AnsweredEvent struct {
	Name       string
	Correct    bool
	NewScore   int
	RoundScore int
}

// PlayerLeftEvent reports a player leaving the lobby.
type PlayerLeftEvent struct {
	Name string
}

// GameOverEvent reports the end of a game with final scores.
type GameOverEvent struct {
	FinalScores []ScoreEntry
	Reason      string
}

// GameClosedEvent reports that the lobby itself is gone.
type GameClosedEvent struct {
	Reason string
}

// KickedEvent reports that this player was removed by the admin.
type KickedEvent struct {
	Reason string
}

// AdminInfoEvent previews the current question for the admin.
type AdminInfoEvent struct {
	Question AdminQuestion
}

// AdminNextQuestionsEvent previews upcoming questions for the admin.
type AdminNextQuestionsEvent struct {
	UpcomingQuestions []GameQuestion
}
