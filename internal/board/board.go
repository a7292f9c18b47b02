// Package board builds the shuffled 64-cell memoria board.
package board

import (
	"crypto/rand"
	"math/big"
)

const (
	// Cells is the board size; PairCount distinct symbols, each twice.
	Cells     = 64
	PairCount = 32
)

// Symbols is the fixed fruit set. Order here is irrelevant: every generated
// board is independently shuffled.
var Symbols = [PairCount]string{
	"🍎", "🍏", "🍐", "🍊", "🍋", "🍌", "🍉", "🍇",
	"🍓", "🍒", "🍑", "🍍", "🥝", "🍅", "🍆", "🌽",
	"🥕", "🥔", "🥒", "🍄", "🍞", "🥐", "🥨", "🧀",
	"🍦", "🍰", "🍪", "🍩", "🍬", "🍭", "🍮", "🍯",
}

// Generate returns a fresh board: every symbol exactly twice, uniformly
// shuffled. Calls share no state.
func Generate() []string {
	cells := make([]string, 0, Cells)
	for _, s := range Symbols {
		cells = append(cells, s, s)
	}
	shuffle(cells)
	return cells
}

// shuffle is a Fisher-Yates pass over crypto/rand.
func shuffle(cells []string) {
	for i := len(cells) - 1; i > 0; i-- {
		j := randBelow(i + 1)
		cells[i], cells[j] = cells[j], cells[i]
	}
}

func randBelow(n int) int {
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		// crypto/rand read failure; keeping the cell in place is the only
		// total fallback.
		return n - 1
	}
	return int(v.Int64())
}
