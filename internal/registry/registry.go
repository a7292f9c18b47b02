package registry

import (
	"context"
	"crypto/rand"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lmoraleda/memoria-server/internal/board"
	"github.com/lmoraleda/memoria-server/internal/engine"
	"github.com/lmoraleda/memoria-server/internal/obslog"
)

const createRetries = 5

type staticErr string

func (e staticErr) Error() string { return string(e) }

var (
	ErrRoomNotFound  = staticErr("room not found")
	ErrCodeExhausted = staticErr("room code space exhausted")
)

// Config tunes room construction and reclamation.
type Config struct {
	RevealDelay time.Duration
	// RoomTTL bounds how long an idle room survives between janitor sweeps.
	RoomTTL time.Duration
	// FinishedLinger keeps finished and abandoned rooms around briefly so
	// late frames still find a room instead of an error.
	FinishedLinger time.Duration
	CodeLen        int
}

func (c *Config) fill() {
	if c.RevealDelay <= 0 {
		c.RevealDelay = 800 * time.Millisecond
	}
	if c.RoomTTL <= 0 {
		c.RoomTTL = 30 * time.Minute
	}
	if c.FinishedLinger <= 0 {
		c.FinishedLinger = 30 * time.Second
	}
	if c.CodeLen <= 0 {
		c.CodeLen = 5
	}
}

// Registry owns the live room table. Codes are generated here; uniqueness is
// arbitrated through the Store so replicas never mint the same code.
type Registry struct {
	cfg   Config
	store Store
	bcast engine.Broadcaster

	mu    sync.RWMutex
	rooms map[string]*engine.Room
}

func New(cfg Config, store Store, bcast engine.Broadcaster) *Registry {
	cfg.fill()
	if store == nil {
		store = NewMemoryStore()
	}
	return &Registry{
		cfg:   cfg,
		store: store,
		bcast: bcast,
		rooms: make(map[string]*engine.Room),
	}
}

// Create mints a fresh room with connID seated as player 0.
func (r *Registry) Create(ctx context.Context, connID string) (*engine.Room, error) {
	for attempt := 0; attempt < createRetries; attempt++ {
		code, err := newCode(r.cfg.CodeLen)
		if err != nil {
			return nil, err
		}
		ok, err := r.store.Reserve(ctx, code, r.cfg.RoomTTL)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		room := engine.NewRoom(code, board.Generate(), r.cfg.RevealDelay, r.bcast)
		r.mu.Lock()
		if _, exists := r.rooms[code]; exists {
			// Reservation raced a local room that the store had let expire.
			r.mu.Unlock()
			_ = r.store.Release(ctx, code)
			continue
		}
		r.rooms[code] = room
		r.mu.Unlock()

		if _, _, err := room.Join(connID); err != nil {
			return nil, err
		}
		obslog.L().Info("room created", zap.String("room", code), zap.String("conn", connID))
		return room, nil
	}
	return nil, ErrCodeExhausted
}

// Join seats connID in an existing room. Codes are matched case-insensitively.
func (r *Registry) Join(code, connID string) (*engine.Room, int, bool, error) {
	room, ok := r.Get(code)
	if !ok {
		return nil, 0, false, ErrRoomNotFound
	}
	seat, started, err := room.Join(connID)
	if err != nil {
		return nil, 0, false, err
	}
	obslog.L().Info("room joined",
		zap.String("room", room.ID()),
		zap.String("conn", connID),
		zap.Int("seat", seat),
		zap.Bool("started", started))
	return room, seat, started, nil
}

func (r *Registry) Get(code string) (*engine.Room, bool) {
	code = strings.ToUpper(strings.TrimSpace(code))
	r.mu.RLock()
	room, ok := r.rooms[code]
	r.mu.RUnlock()
	return room, ok
}

// Remove drops a room, cancels any pending resolution, and frees its code.
// Removing an unknown code is a no-op.
func (r *Registry) Remove(ctx context.Context, code string) {
	code = strings.ToUpper(strings.TrimSpace(code))
	r.mu.Lock()
	room, ok := r.rooms[code]
	delete(r.rooms, code)
	r.mu.Unlock()
	if !ok {
		return
	}
	room.Close()
	if err := r.store.Release(ctx, code); err != nil {
		obslog.L().Warn("release room code", zap.String("room", code), zap.Error(err))
	}
	obslog.L().Info("room removed", zap.String("room", code))
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// CleanupExpired sweeps the table: terminal rooms past their linger window
// and idle rooms past the TTL are removed, everything else keeps its
// reservation alive. Returns the number of rooms reclaimed.
func (r *Registry) CleanupExpired(ctx context.Context) int {
	now := time.Now()

	r.mu.RLock()
	snapshot := make([]*engine.Room, 0, len(r.rooms))
	for _, room := range r.rooms {
		snapshot = append(snapshot, room)
	}
	r.mu.RUnlock()

	removed := 0
	for _, room := range snapshot {
		idle := room.IdleFor(now)
		expired := false
		switch room.Phase() {
		case engine.PhaseFinished, engine.PhaseAbandoned:
			expired = idle > r.cfg.FinishedLinger
		default:
			expired = idle > r.cfg.RoomTTL
		}
		if expired {
			r.Remove(ctx, room.ID())
			removed++
			continue
		}
		if err := r.store.Refresh(ctx, room.ID(), r.cfg.RoomTTL); err != nil {
			obslog.L().Warn("refresh room code", zap.String("room", room.ID()), zap.Error(err))
		}
	}
	if removed > 0 {
		obslog.L().Info("rooms reclaimed", zap.Int("count", removed))
	}
	return removed
}

// Close tears down every room and frees their codes.
func (r *Registry) Close(ctx context.Context) {
	r.mu.Lock()
	rooms := r.rooms
	r.rooms = make(map[string]*engine.Room)
	r.mu.Unlock()
	for code, room := range rooms {
		room.Close()
		_ = r.store.Release(ctx, code)
	}
}

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func newCode(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	for i := range b {
		b[i] = codeAlphabet[int(b[i])%len(codeAlphabet)]
	}
	return string(b), nil
}
