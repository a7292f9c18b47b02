package registry

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lmoraleda/memoria-server/internal/engine"
)

func silentBroadcaster() engine.Broadcaster {
	return engine.BroadcastFunc(func(string, engine.Event) {})
}

func newTestRegistry(t *testing.T, cfg Config) *Registry {
	t.Helper()
	if cfg.RevealDelay == 0 {
		cfg.RevealDelay = 10 * time.Millisecond
	}
	return New(cfg, NewMemoryStore(), silentBroadcaster())
}

func TestCreateSeatsCreator(t *testing.T) {
	r := newTestRegistry(t, Config{})
	room, err := r.Create(context.Background(), "conn-a")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got := len(room.ID()); got != 5 {
		t.Fatalf("code length = %d, want 5", got)
	}
	for _, ch := range room.ID() {
		if !strings.ContainsRune(codeAlphabet, ch) {
			t.Fatalf("code %q contains %q outside alphabet", room.ID(), ch)
		}
	}
	if room.SeatCount() != 1 {
		t.Fatalf("SeatCount = %d, want 1", room.SeatCount())
	}
	if room.Phase() != engine.PhaseWaiting {
		t.Fatalf("Phase = %v, want WAITING", room.Phase())
	}
	if got, ok := r.Get(room.ID()); !ok || got != room {
		t.Fatalf("Get(%q) did not return the created room", room.ID())
	}
}

func TestCodesAreUnique(t *testing.T) {
	r := newTestRegistry(t, Config{})
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		room, err := r.Create(context.Background(), "conn")
		if err != nil {
			t.Fatalf("Create #%d: %v", i, err)
		}
		if seen[room.ID()] {
			t.Fatalf("duplicate code %q", room.ID())
		}
		seen[room.ID()] = true
	}
}

func TestJoinStartsGameCaseInsensitive(t *testing.T) {
	r := newTestRegistry(t, Config{})
	room, err := r.Create(context.Background(), "conn-a")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	joined, seat, started, err := r.Join(strings.ToLower(room.ID()), "conn-b")
	if err != nil {
		t.Fatalf("Join: %v", err)
	}
	if joined != room {
		t.Fatal("Join resolved a different room")
	}
	if seat != 1 || !started {
		t.Fatalf("Join = (seat %d, started %v), want (1, true)", seat, started)
	}
	if room.Phase() != engine.PhaseActive {
		t.Fatalf("Phase = %v, want ACTIVE", room.Phase())
	}
}

func TestJoinUnknownCode(t *testing.T) {
	r := newTestRegistry(t, Config{})
	if _, _, _, err := r.Join("ZZZZZ", "conn"); !errors.Is(err, ErrRoomNotFound) {
		t.Fatalf("err = %v, want ErrRoomNotFound", err)
	}
}

func TestJoinFullAndDuplicate(t *testing.T) {
	r := newTestRegistry(t, Config{})
	room, err := r.Create(context.Background(), "conn-a")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, _, _, err := r.Join(room.ID(), "conn-a"); !errors.Is(err, engine.ErrAlreadySeated) {
		t.Fatalf("duplicate join err = %v, want ErrAlreadySeated", err)
	}
	if _, _, _, err := r.Join(room.ID(), "conn-b"); err != nil {
		t.Fatalf("second join: %v", err)
	}
	if _, _, _, err := r.Join(room.ID(), "conn-c"); !errors.Is(err, engine.ErrRoomFull) {
		t.Fatalf("third join err = %v, want ErrRoomFull", err)
	}
}

func TestJoinAbandonedRoomRejected(t *testing.T) {
	r := newTestRegistry(t, Config{})
	room, err := r.Create(context.Background(), "conn-a")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	room.HandleDisconnect("conn-a")

	if _, _, _, err := r.Join(room.ID(), "conn-b"); !errors.Is(err, engine.ErrRoomUnavailable) {
		t.Fatalf("join into abandoned room err = %v, want ErrRoomUnavailable", err)
	}
	if room.Phase() != engine.PhaseAbandoned {
		t.Fatalf("phase = %v, want ABANDONED", room.Phase())
	}
}

func TestRemoveIdempotentAndFreesCode(t *testing.T) {
	r := newTestRegistry(t, Config{})
	ctx := context.Background()
	room, err := r.Create(ctx, "conn-a")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	code := room.ID()

	r.Remove(ctx, code)
	r.Remove(ctx, code)
	if _, ok := r.Get(code); ok {
		t.Fatal("room still resolvable after Remove")
	}
	ok, err := r.store.Reserve(ctx, code, time.Minute)
	if err != nil || !ok {
		t.Fatalf("code not reusable after Remove: ok=%v err=%v", ok, err)
	}
}

func TestCleanupExpiredReclaimsTerminalRooms(t *testing.T) {
	r := newTestRegistry(t, Config{RoomTTL: time.Hour, FinishedLinger: 10 * time.Millisecond})
	ctx := context.Background()

	abandoned, err := r.Create(ctx, "conn-a")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, _, _, err := r.Join(abandoned.ID(), "conn-b"); err != nil {
		t.Fatalf("Join: %v", err)
	}
	abandoned.HandleDisconnect("conn-b")

	waiting, err := r.Create(ctx, "conn-c")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	time.Sleep(30 * time.Millisecond)
	if got := r.CleanupExpired(ctx); got != 1 {
		t.Fatalf("CleanupExpired = %d, want 1", got)
	}
	if _, ok := r.Get(abandoned.ID()); ok {
		t.Fatal("abandoned room survived the sweep")
	}
	if _, ok := r.Get(waiting.ID()); !ok {
		t.Fatal("waiting room was reclaimed too early")
	}
}

func TestCleanupExpiredIdleTTL(t *testing.T) {
	r := newTestRegistry(t, Config{RoomTTL: 10 * time.Millisecond, FinishedLinger: time.Hour})
	ctx := context.Background()
	room, err := r.Create(ctx, "conn-a")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if got := r.CleanupExpired(ctx); got != 1 {
		t.Fatalf("CleanupExpired = %d, want 1", got)
	}
	if _, ok := r.Get(room.ID()); ok {
		t.Fatal("idle room survived its TTL")
	}
}

func TestConcurrentJoinsSingleWinner(t *testing.T) {
	r := newTestRegistry(t, Config{})
	room, err := r.Create(context.Background(), "creator")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	const contenders = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
		full int
	)
	for i := 0; i < contenders; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			_, _, _, err := r.Join(room.ID(), string(rune('a'+id)))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, engine.ErrRoomFull):
				full++
			default:
				t.Errorf("unexpected join error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if wins != 1 || full != contenders-1 {
		t.Fatalf("wins=%d full=%d, want 1 winner and %d rejections", wins, full, contenders-1)
	}
}
