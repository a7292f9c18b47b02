// Package engine holds the authoritative per-room state machine. Only the
// engine's decisions determine game outcome; client-reported state never
// feeds back into it.
package engine

import (
	"sync"
	"time"

	"github.com/lmoraleda/memoria-server/internal/obslog"
	"go.uber.org/zap"
)

// Room is the aggregate for one two-player session. Every mutation goes
// through the room's own mutex, including the resolution timer callback, so
// actions on one room are fully serialized no matter how many goroutines
// deliver them.
type Room struct {
	id          string
	revealDelay time.Duration
	bcast       Broadcaster

	mu           sync.Mutex
	phase        Phase
	closed       bool
	board        []string
	seats        [2]string
	seatCount    int
	scores       [2]int
	turn         int
	revealed     []int
	matched      []bool
	matchedCount int
	resolveTimer *time.Timer
	lastActivity time.Time
}

// NewRoom builds a waiting room around a generated board. The board is
// fixed for the life of the room.
func NewRoom(id string, cells []string, revealDelay time.Duration, b Broadcaster) *Room {
	return &Room{
		id:           id,
		revealDelay:  revealDelay,
		bcast:        b,
		phase:        PhaseWaiting,
		board:        cells,
		matched:      make([]bool, len(cells)),
		lastActivity: time.Now(),
	}
}

// Join seats a connection. Seat order is join order; the second join fixes
// both seats and activates the room. The caller announces the start so it can
// sequence the announcement after its own per-player frames. A connection can
// hold at most one seat.
func (r *Room) Join(connID string) (seat int, started bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.seatCount >= 2 {
		return 0, false, ErrRoomFull
	}
	for i := 0; i < r.seatCount; i++ {
		if r.seats[i] == connID {
			return 0, false, ErrAlreadySeated
		}
	}
	// An abandoned or closed room is non-actionable; it must never go
	// Active again off a late join.
	if r.phase != PhaseWaiting {
		return 0, false, ErrRoomUnavailable
	}

	seat = r.seatCount
	r.seats[seat] = connID
	r.seatCount++
	r.touch()

	if r.seatCount == 2 {
		r.phase = PhaseActive
		r.turn = 0
		started = true
		obslog.L().Info("game_start", zap.String("room_id", r.id))
	}
	return seat, started, nil
}

// RequestFlip validates a flip against the current state and applies it.
// Preconditions are checked in a fixed order; any failure leaves the room
// untouched and produces no broadcast. The second reveal of a pair arms a
// single resolution timer after the reveal-visibility delay.
func (r *Room) RequestFlip(seat, cell int) Rejection {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rej := r.checkFlip(seat, cell); rej != RejectNone {
		obslog.L().Debug("flip_reject",
			zap.String("room_id", r.id),
			zap.String("reason", string(rej)),
			zap.Int("seat", seat),
			zap.Int("cell", cell),
		)
		return rej
	}

	r.revealed = append(r.revealed, cell)
	r.touch()
	r.bcast.Broadcast(r.id, CardRevealed{Cell: cell})

	if len(r.revealed) == 2 {
		r.resolveTimer = time.AfterFunc(r.revealDelay, r.resolvePending)
	}
	return RejectNone
}

func (r *Room) checkFlip(seat, cell int) Rejection {
	switch r.phase {
	case PhaseActive:
	case PhaseFinished:
		return RejectGameOver
	default:
		return RejectNotActive
	}
	if seat != r.turn {
		return RejectNotYourTurn
	}
	if cell < 0 || cell >= len(r.board) {
		return RejectInvalidCell
	}
	if r.matched[cell] {
		return RejectAlreadyMatched
	}
	for _, c := range r.revealed {
		if c == cell {
			return RejectAlreadyRevealed
		}
	}
	if len(r.revealed) >= 2 {
		return RejectResolutionInProgress
	}
	return RejectNone
}

// resolvePending is the timer's entry point and the sole writer of matched
// cells, scores and turn. It still runs after a disconnect (scores must
// stay consistent for the survivor) but not after the room is closed.
func (r *Room) resolvePending() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.resolveTimer = nil
	if r.closed || r.phase == PhaseFinished {
		return
	}
	if len(r.revealed) != 2 {
		return
	}

	a, b := r.revealed[0], r.revealed[1]
	r.revealed = nil
	r.touch()

	if r.board[a] == r.board[b] {
		r.scores[r.turn]++
		r.matched[a], r.matched[b] = true, true
		r.matchedCount += 2
		obslog.L().Info("resolve_match",
			zap.String("room_id", r.id),
			zap.Ints("cells", []int{a, b}),
			zap.Int("seat", r.turn),
			zap.Int("matched", r.matchedCount),
		)
		r.bcast.Broadcast(r.id, MatchResolved{
			Cells:        [2]int{a, b},
			Scores:       r.scores,
			MatchedCount: r.matchedCount,
		})
		if r.matchedCount == len(r.board) && r.phase == PhaseActive {
			r.phase = PhaseFinished
			obslog.L().Info("game_over",
				zap.String("room_id", r.id),
				zap.Ints("scores", []int{r.scores[0], r.scores[1]}),
			)
			r.bcast.Broadcast(r.id, GameOver{Scores: r.scores})
		}
		return
	}

	r.turn ^= 1
	obslog.L().Info("resolve_nomatch",
		zap.String("room_id", r.id),
		zap.Ints("cells", []int{a, b}),
		zap.Int("next_turn", r.turn),
	)
	r.bcast.Broadcast(r.id, NoMatch{Cells: [2]int{a, b}, NextTurn: r.turn})
}

// HandleDisconnect marks the room abandoned and notifies the survivor. No
// resume: the room stays non-actionable until the janitor reclaims it. A
// pending resolution is deliberately left running.
func (r *Room) HandleDisconnect(connID string) (seat int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	seat = -1
	for i := 0; i < r.seatCount; i++ {
		if r.seats[i] == connID {
			seat = i
			break
		}
	}
	if seat < 0 {
		return -1, false
	}

	switch r.phase {
	case PhaseActive:
		r.phase = PhaseAbandoned
		r.touch()
		obslog.L().Info("room_abandoned", zap.String("room_id", r.id), zap.Int("seat", seat))
		r.bcast.Broadcast(r.id, OpponentLeft{Seat: seat})
	case PhaseWaiting:
		r.phase = PhaseAbandoned
		r.touch()
	}
	return seat, true
}

// Close tears the room down: the pending resolution timer (if any) is
// cancelled and no further resolution or flip can run. Idempotent.
func (r *Room) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	if r.resolveTimer != nil {
		r.resolveTimer.Stop()
		r.resolveTimer = nil
	}
	if r.phase != PhaseFinished {
		r.phase = PhaseAbandoned
	}
}

func (r *Room) touch() { r.lastActivity = time.Now() }

func (r *Room) ID() string { return r.id }

func (r *Room) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

func (r *Room) Turn() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.turn
}

func (r *Room) Scores() [2]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scores
}

func (r *Room) MatchedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.matchedCount
}

// Board returns a copy of the fixed board.
func (r *Room) Board() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.board...)
}

// Revealed returns a copy of the cells currently awaiting resolution.
func (r *Room) Revealed() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.revealed...)
}

func (r *Room) SeatCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seatCount
}

// SeatOf resolves a connection to its seat.
func (r *Room) SeatOf(connID string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := 0; i < r.seatCount; i++ {
		if r.seats[i] == connID {
			return i, true
		}
	}
	return 0, false
}

// Seats returns the connection IDs by seat ("" for an empty seat).
func (r *Room) Seats() [2]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seats
}

// IdleFor reports how long the room has been without seat or board
// activity. The registry janitor uses it for reclamation.
func (r *Room) IdleFor(now time.Time) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return now.Sub(r.lastActivity)
}
