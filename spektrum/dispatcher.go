package spektrum

import "fmt"

// Dispatcher routes classified server messages to registered callbacks.
// Dispatch never panics: a misbehaving callback is downgraded to an error
// notification so it cannot take the client's event loop down with it.
type Dispatcher struct {
	onConnected          func(ConnectedEvent)
	onStateDelta         func(StateDeltaEvent)
	onAnswered           func(AnsweredEvent)
	onPlayerLeft         func(PlayerLeftEvent)
	onGameOver           func(GameOverEvent)
	onGameClosed         func(GameClosedEvent)
	onKicked             func(KickedEvent)
	onAdminInfo          func(AdminInfoEvent)
	onAdminNextQuestions func(AdminNextQuestionsEvent)
	onError              func(error)
}

func (d *Dispatcher) SetOnConnected(fn func(ConnectedEvent))   { d.onConnected = fn }
func (d *Dispatcher) SetOnStateDelta(fn func(StateDeltaEvent)) { d.onStateDelta = fn }
func (d *Dispatcher) SetOnAnswered(fn func(AnsweredEvent))     { d.onAnswered = fn }
func (d *Dispatcher) SetOnPlayerLeft(fn func(PlayerLeftEvent)) { d.onPlayerLeft = fn }
func (d *Dispatcher) SetOnGameOver(fn func(GameOverEvent))     { d.onGameOver = fn }
func (d *Dispatcher) SetOnGameClosed(fn func(GameClosedEvent)) { d.onGameClosed = fn }
func (d *Dispatcher) SetOnKicked(fn func(KickedEvent))         { d.onKicked = fn }
func (d *Dispatcher) SetOnAdminInfo(fn func(AdminInfoEvent))   { d.onAdminInfo = fn }
func (d *Dispatcher) SetOnAdminNextQuestions(fn func(AdminNextQuestionsEvent)) {
	d.onAdminNextQuestions = fn
}
func (d *Dispatcher) SetOnError(fn func(error)) { d.onError = fn }

// Dispatch delivers one server message to the matching callback.
func (d *Dispatcher) Dispatch(msg ServerMessage) {
	defer func() {
		if r := recover(); r != nil {
			d.fireError(NewError(ErrorUnknown, fmt.Sprintf("callback panic: %v", r)))
		}
	}()

	switch msg.Type {
	case MsgConnected:
		if d.onConnected != nil {
			d.onConnected(ConnectedEvent{
				PlayerID:      msg.PlayerID,
				Name:          msg.Name,
				RoundDuration: msg.RoundDuration,
				Players:       msg.Players,
			})
		}
	case MsgStateDelta:
		if d.onStateDelta != nil {
			d.onStateDelta(StateDeltaEvent{
				Phase:             msg.Phase,
				QuestionType:      msg.QuestionType,
				QuestionText:      msg.QuestionText,
				Alternatives:      msg.Alternatives,
				Scoreboard:        msg.Scoreboard,
				RoundScores:       msg.RoundScores,
				ConsecutiveMisses: msg.ConsecutiveMisses,
				AdminExtra:        msg.AdminExtra,
				CurrentSong:       msg.CurrentSong,
			})
		}
	case MsgAnswered:
		if d.onAnswered != nil {
			d.onAnswered(AnsweredEvent{
				Name:       msg.Name,
				Correct:    msg.Correct,
				NewScore:   msg.NewScore,
				RoundScore: msg.RoundScore,
			})
		}
	case MsgPlayerLeft:
		if d.onPlayerLeft != nil {
			d.onPlayerLeft(PlayerLeftEvent{Name: msg.Name})
		}
	case MsgGameOver:
		if d.onGameOver != nil {
			d.onGameOver(GameOverEvent{FinalScores: msg.FinalScores, Reason: msg.Reason})
		}
	case MsgGameClosed:
		if d.onGameClosed != nil {
			d.onGameClosed(GameClosedEvent{Reason: msg.Reason})
		}
	case MsgPlayerKicked:
		if d.onKicked != nil {
			d.onKicked(KickedEvent{Reason: msg.Reason})
		}
	case MsgError:
		d.fireError(NewError(ParseErrorCode(msg.Message), msg.Message))
	case MsgAdminInfo:
		if d.onAdminInfo != nil && msg.Question != nil {
			d.onAdminInfo(AdminInfoEvent{Question: *msg.Question})
		}
	case MsgAdminNextQuestions:
		if d.onAdminNextQuestions != nil {
			d.onAdminNextQuestions(AdminNextQuestionsEvent{UpcomingQuestions: msg.UpcomingQuestions})
		}
	}
}

func (d *Dispatcher) fireError(err error) {
	if d.onError != nil && err != nil {
		d.onError(err)
	}
}
