package engine

import "github.com/lmoraleda/memoria-server/internal/board"

// LocalGame is the trusted single-device variant of the match rules: same
// board and pair comparison as Room, but no seat or turn enforcement and
// resolution happens immediately on the second flip. It exists for local
// play where there is no authority boundary to defend.
type LocalGame struct {
	board        []string
	scores       [2]int
	current      int
	revealed     []int
	matched      []bool
	matchedCount int
}

// LocalOutcome describes the effect of one flip.
type LocalOutcome struct {
	Resolved     bool // a second card triggered a comparison
	Match        bool
	Cells        [2]int // valid when Resolved
	Scores       [2]int
	MatchedCount int
	NextTurn     int
	Finished     bool
}

func NewLocalGame() *LocalGame {
	cells := board.Generate()
	return &LocalGame{
		board:   cells,
		matched: make([]bool, len(cells)),
	}
}

// Flip reveals a cell. The second return is false when the flip was
// ignored (finished game, out-of-range, matched or already face-up cell).
func (g *LocalGame) Flip(cell int) (LocalOutcome, bool) {
	if g.matchedCount == len(g.board) {
		return LocalOutcome{}, false
	}
	if cell < 0 || cell >= len(g.board) || g.matched[cell] {
		return LocalOutcome{}, false
	}
	for _, c := range g.revealed {
		if c == cell {
			return LocalOutcome{}, false
		}
	}

	g.revealed = append(g.revealed, cell)
	if len(g.revealed) < 2 {
		return LocalOutcome{Scores: g.scores, MatchedCount: g.matchedCount, NextTurn: g.current}, true
	}

	a, b := g.revealed[0], g.revealed[1]
	g.revealed = nil
	out := LocalOutcome{Resolved: true, Cells: [2]int{a, b}}
	if g.board[a] == g.board[b] {
		g.scores[g.current]++
		g.matched[a], g.matched[b] = true, true
		g.matchedCount += 2
		out.Match = true
	} else {
		g.current ^= 1
	}
	out.Scores = g.scores
	out.MatchedCount = g.matchedCount
	out.NextTurn = g.current
	out.Finished = g.matchedCount == len(g.board)
	return out, true
}

// Board returns a copy of the shuffled board.
func (g *LocalGame) Board() []string { return append([]string(nil), g.board...) }

func (g *LocalGame) Scores() [2]int { return g.scores }

func (g *LocalGame) Turn() int { return g.current }
