package board

import "testing"

func TestGenerateShape(t *testing.T) {
	b := Generate()
	if len(b) != Cells {
		t.Fatalf("expected %d cells, got %d", Cells, len(b))
	}
	counts := make(map[string]int)
	for _, s := range b {
		counts[s]++
	}
	if len(counts) != PairCount {
		t.Fatalf("expected %d distinct symbols, got %d", PairCount, len(counts))
	}
	for s, n := range counts {
		if n != 2 {
			t.Fatalf("symbol %s appears %d times, want 2", s, n)
		}
	}
}

func TestGenerateIndependentCalls(t *testing.T) {
	// Two boards being identical has probability ~1/64!; treat as a bug.
	a, b := Generate(), Generate()
	same := true
	for i := range a {
		if a[i] != b[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatalf("two generated boards are identical")
	}
}

func TestGenerateDistribution(t *testing.T) {
	// Cell 0 should see every symbol with frequency ~1/32. Bounds are set
	// far beyond 6 sigma for 3200 samples so the test cannot flake.
	const rounds = 3200
	counts := make(map[string]int)
	for i := 0; i < rounds; i++ {
		counts[Generate()[0]]++
	}
	if len(counts) != PairCount {
		t.Fatalf("cell 0 saw only %d symbols over %d boards", len(counts), rounds)
	}
	for s, n := range counts {
		if n < 40 || n > 200 {
			t.Fatalf("symbol %s landed on cell 0 %d times over %d boards; distribution looks biased", s, n, rounds)
		}
	}
}
