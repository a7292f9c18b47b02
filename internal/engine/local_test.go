package engine

import "testing"

// flipPair finds and flips the two cells holding the same symbol.
func flipPair(t *testing.T, g *LocalGame) LocalOutcome {
	t.Helper()
	cells := g.Board()
	for i := range cells {
		if g.matched[i] {
			continue
		}
		for j := i + 1; j < len(cells); j++ {
			if !g.matched[j] && cells[i] == cells[j] {
				if _, ok := g.Flip(i); !ok {
					t.Fatalf("flip %d refused", i)
				}
				out, ok := g.Flip(j)
				if !ok || !out.Resolved || !out.Match {
					t.Fatalf("pair %d/%d did not match: %+v", i, j, out)
				}
				return out
			}
		}
	}
	t.Fatalf("no unmatched pair left")
	return LocalOutcome{}
}

func TestLocalImmediateResolution(t *testing.T) {
	g := NewLocalGame()
	out := flipPair(t, g)
	if out.MatchedCount != 2 || out.Scores[0] != 1 || out.NextTurn != 0 {
		t.Fatalf("after first match: %+v", out)
	}
}

func TestLocalNoMatchTogglesTurn(t *testing.T) {
	g := NewLocalGame()
	cells := g.Board()
	// Find two differing cells.
	j := 1
	for cells[j] == cells[0] {
		j++
	}
	if _, ok := g.Flip(0); !ok {
		t.Fatalf("flip 0 refused")
	}
	out, ok := g.Flip(j)
	if !ok || !out.Resolved || out.Match {
		t.Fatalf("expected immediate no-match: %+v", out)
	}
	if out.NextTurn != 1 || out.Scores != [2]int{0, 0} {
		t.Fatalf("turn/scores after no-match: %+v", out)
	}
	// Both cells are face-down again.
	if _, ok := g.Flip(0); !ok {
		t.Fatalf("cell 0 not reusable after no-match")
	}
}

func TestLocalIgnoresBadFlips(t *testing.T) {
	g := NewLocalGame()
	if _, ok := g.Flip(-1); ok {
		t.Fatalf("negative cell accepted")
	}
	if _, ok := g.Flip(64); ok {
		t.Fatalf("out-of-range cell accepted")
	}
	if _, ok := g.Flip(5); !ok {
		t.Fatalf("valid flip refused")
	}
	if _, ok := g.Flip(5); ok {
		t.Fatalf("double flip of the same cell accepted")
	}
}

func TestLocalFullGame(t *testing.T) {
	g := NewLocalGame()
	var out LocalOutcome
	for i := 0; i < 32; i++ {
		out = flipPair(t, g)
	}
	if !out.Finished || out.MatchedCount != 64 {
		t.Fatalf("game not finished: %+v", out)
	}
	if out.Scores[0]+out.Scores[1] != 32 {
		t.Fatalf("pair total wrong: %+v", out.Scores)
	}
	if _, ok := g.Flip(0); ok {
		t.Fatalf("flip accepted after the game ended")
	}
}
