package engine

// Phase is the lifecycle of a room.
type Phase string

const (
	PhaseWaiting   Phase = "WAITING"
	PhaseActive    Phase = "ACTIVE"
	PhaseFinished  Phase = "FINISHED"
	PhaseAbandoned Phase = "ABANDONED"
)

// Rejection is why a flip request was refused. Rejections are never sent to
// clients; they are logged and returned so callers and tests can observe
// them.
type Rejection string

const (
	RejectNone                 Rejection = ""
	RejectNotActive            Rejection = "not_active"
	RejectGameOver             Rejection = "game_over"
	RejectNotYourTurn          Rejection = "not_your_turn"
	RejectInvalidCell          Rejection = "invalid_cell"
	RejectAlreadyMatched       Rejection = "already_matched"
	RejectAlreadyRevealed      Rejection = "already_revealed"
	RejectResolutionInProgress Rejection = "resolution_in_progress"
)

// Event is a state change every participant of a room must see.
type Event interface{ isEvent() }

// CardRevealed is a successful flip.
type CardRevealed struct {
	Cell int
}

// MatchResolved reports a pair resolved as matched. Turn does not change.
type MatchResolved struct {
	Cells        [2]int
	Scores       [2]int
	MatchedCount int
}

// NoMatch reports a failed pair; the revealed cells return face-down and
// the turn passes to NextTurn.
type NoMatch struct {
	Cells    [2]int
	NextTurn int
}

// GameOver fires exactly once, when every cell is matched.
type GameOver struct {
	Scores [2]int
}

// OpponentLeft notifies the surviving participant that Seat disconnected.
type OpponentLeft struct {
	Seat int
}

func (CardRevealed) isEvent()  {}
func (MatchResolved) isEvent() {}
func (NoMatch) isEvent()       {}
func (GameOver) isEvent()      {}
func (OpponentLeft) isEvent()  {}

// Broadcaster fans an event out to every connection seated in a room.
// Implementations must not call back into the emitting room.
type Broadcaster interface {
	Broadcast(roomID string, ev Event)
}

// BroadcastFunc adapts a function to Broadcaster.
type BroadcastFunc func(roomID string, ev Event)

func (f BroadcastFunc) Broadcast(roomID string, ev Event) { f(roomID, ev) }

type staticErr string

func (e staticErr) Error() string { return string(e) }

var (
	ErrRoomFull        = staticErr("room already has two participants")
	ErrAlreadySeated   = staticErr("connection already seated in this room")
	ErrRoomUnavailable = staticErr("room is no longer joinable")
)
