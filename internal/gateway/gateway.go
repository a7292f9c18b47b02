package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"

	"github.com/lmoraleda/memoria-server/internal/board"
	"github.com/lmoraleda/memoria-server/internal/engine"
	"github.com/lmoraleda/memoria-server/internal/msgcat"
	"github.com/lmoraleda/memoria-server/internal/obslog"
	"github.com/lmoraleda/memoria-server/internal/registry"
)

const (
	sendBuffer   = 64
	pingInterval = 15 * time.Second
)

type session struct {
	id   string
	send chan []byte

	// roomID and seat are guarded by the gateway mutex.
	roomID string
	seat   int
}

// Gateway terminates websockets and translates between wire frames and room
// operations. It is the Broadcaster every room publishes through.
type Gateway struct {
	reg     *registry.Registry
	msgs    *msgcat.Catalog
	origins map[string]bool

	mu    sync.RWMutex
	conns map[string]*session
	rooms map[string]map[string]*session
}

func New(reg *registry.Registry, msgs *msgcat.Catalog, allowedOrigins []string) *Gateway {
	origins := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o != "" {
			origins[o] = true
		}
	}
	return &Gateway{
		reg:     reg,
		msgs:    msgs,
		origins: origins,
		conns:   make(map[string]*session),
		rooms:   make(map[string]map[string]*session),
	}
}

// Broadcast fans a room event out to every seated connection. Slow readers
// are skipped rather than blocking the room.
func (g *Gateway) Broadcast(roomID string, ev engine.Event) {
	frame, ok := g.eventFrame(ev)
	if !ok {
		return
	}
	g.sendToRoom(roomID, frame)
}

func (g *Gateway) eventFrame(ev engine.Event) (serverFrame, bool) {
	switch e := ev.(type) {
	case engine.CardRevealed:
		return serverFrame{Type: typeTokenFlipped, TokenIndex: intp(e.Cell)}, true
	case engine.MatchResolved:
		return serverFrame{
			Type:         typeMatchFound,
			Indices:      e.Cells[:],
			Scores:       e.Scores[:],
			MatchesFound: intp(e.MatchedCount / 2),
		}, true
	case engine.NoMatch:
		return serverFrame{Type: typeNoMatch, Indices: e.Cells[:], NextPlayer: intp(e.NextTurn)}, true
	case engine.GameOver:
		return serverFrame{Type: typeGameOver, Scores: e.Scores[:]}, true
	case engine.OpponentLeft:
		msg, _ := g.msgs.Render("partida.abandono", nil)
		return serverFrame{Type: typeOpponentLeft, Player: intp(e.Seat), Message: msg}, true
	default:
		return serverFrame{}, false
	}
}

func (g *Gateway) sendToRoom(roomID string, frame serverFrame) {
	b, err := json.Marshal(frame)
	if err != nil {
		obslog.L().Error("marshal frame", zap.Error(err))
		return
	}
	g.mu.RLock()
	for _, s := range g.rooms[roomID] {
		s.enqueue(b)
	}
	g.mu.RUnlock()
}

func (s *session) sendFrame(frame serverFrame) {
	b, err := json.Marshal(frame)
	if err != nil {
		obslog.L().Error("marshal frame", zap.Error(err))
		return
	}
	s.enqueue(b)
}

func (s *session) enqueue(b []byte) {
	select {
	case s.send <- b:
	default:
		obslog.L().Warn("send buffer full, dropping frame", zap.String("conn", s.id))
	}
}

// ServeWS upgrades the request and runs the read loop until the client goes
// away.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	if len(g.origins) > 0 && origin != "" && !g.origins[origin] {
		http.Error(w, "forbidden origin", http.StatusForbidden)
		return
	}

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		obslog.L().Warn("websocket accept", zap.Error(err))
		return
	}

	s := &session{id: uuid.NewString(), send: make(chan []byte, sendBuffer)}
	g.mu.Lock()
	g.conns[s.id] = s
	g.mu.Unlock()
	obslog.L().Info("client connected", zap.String("conn", s.id))

	go g.writeLoop(r.Context(), c, s)
	g.readLoop(r.Context(), c, s)
	g.disconnect(s)
}

func (g *Gateway) writeLoop(ctx context.Context, c *websocket.Conn, s *session) {
	ping := time.NewTicker(pingInterval)
	defer func() {
		ping.Stop()
		_ = c.Close(websocket.StatusNormalClosure, "bye")
	}()
	for {
		select {
		case msg, ok := <-s.send:
			if !ok {
				return
			}
			if err := c.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		case <-ping.C:
			if err := c.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (g *Gateway) readLoop(ctx context.Context, c *websocket.Conn, s *session) {
	for {
		_, data, err := c.Read(ctx)
		if err != nil {
			return
		}
		var f clientFrame
		if err := json.Unmarshal(data, &f); err != nil {
			obslog.L().Debug("bad frame", zap.String("conn", s.id), zap.Error(err))
			continue
		}
		switch f.Type {
		case typeCreateRoom:
			g.handleCreate(ctx, s)
		case typeJoinRoom:
			g.handleJoin(s, f.Room)
		case typeFlipToken:
			g.handleFlip(s, f.TokenIndex)
		default:
			obslog.L().Debug("unknown frame type", zap.String("type", f.Type))
		}
	}
}

func (g *Gateway) handleCreate(ctx context.Context, s *session) {
	if g.seatedRoom(s) != "" {
		return
	}
	room, err := g.reg.Create(ctx, s.id)
	if err != nil {
		obslog.L().Error("create room", zap.String("conn", s.id), zap.Error(err))
		g.sendError(s, "sala.no_creada")
		return
	}
	g.bind(s, room.ID(), 0)
	s.sendFrame(serverFrame{Type: typeRoomCreated, Room: room.ID()})
}

func (g *Gateway) handleJoin(s *session, code string) {
	if g.seatedRoom(s) != "" {
		return
	}
	code = strings.ToUpper(strings.TrimSpace(code))
	// Bind before joining so anything broadcast the moment the room goes
	// Active already reaches this session; unbind if the join is refused.
	// Rooms past the waiting phase will refuse the join anyway, and must
	// not see a transient member in their fan-out set.
	bound := false
	if waiting, ok := g.reg.Get(code); ok && waiting.Phase() == engine.PhaseWaiting {
		g.bind(s, code, 1)
		bound = true
	}
	room, seat, started, err := g.reg.Join(code, s.id)
	if err != nil {
		if bound {
			g.unbind(s)
		}
		g.sendError(s, "sala.no_disponible")
		return
	}
	g.bind(s, room.ID(), seat)

	s.sendFrame(serverFrame{Type: typePlayerAssignment, Player: intp(seat)})
	if started {
		g.sendToRoom(room.ID(), serverFrame{
			Type:  typeGameStart,
			Room:  room.ID(),
			Board: room.Board(),
		})
	}
}

func (g *Gateway) handleFlip(s *session, tokenIndex *int) {
	g.mu.RLock()
	roomID, seat := s.roomID, s.seat
	g.mu.RUnlock()
	if roomID == "" {
		return
	}
	if tokenIndex == nil || *tokenIndex < 0 || *tokenIndex >= board.Cells {
		obslog.L().Debug("flip outside board", zap.String("conn", s.id))
		return
	}
	room, ok := g.reg.Get(roomID)
	if !ok {
		return
	}
	room.RequestFlip(seat, *tokenIndex)
}

func (g *Gateway) sendError(s *session, key string) {
	msg, err := g.msgs.Render(key, nil)
	if err != nil {
		obslog.L().Error("render message", zap.String("key", key), zap.Error(err))
	}
	s.sendFrame(serverFrame{Type: typeErrorMessage, Message: msg})
}

func (g *Gateway) seatedRoom(s *session) string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return s.roomID
}

func (g *Gateway) bind(s *session, roomID string, seat int) {
	g.mu.Lock()
	s.roomID, s.seat = roomID, seat
	members := g.rooms[roomID]
	if members == nil {
		members = make(map[string]*session)
		g.rooms[roomID] = members
	}
	members[s.id] = s
	g.mu.Unlock()
}

func (g *Gateway) unbind(s *session) {
	g.mu.Lock()
	if s.roomID != "" {
		delete(g.rooms[s.roomID], s.id)
		if len(g.rooms[s.roomID]) == 0 {
			delete(g.rooms, s.roomID)
		}
		s.roomID, s.seat = "", 0
	}
	g.mu.Unlock()
}

func (g *Gateway) disconnect(s *session) {
	g.mu.Lock()
	delete(g.conns, s.id)
	roomID := s.roomID
	if roomID != "" {
		delete(g.rooms[roomID], s.id)
		if len(g.rooms[roomID]) == 0 {
			delete(g.rooms, roomID)
		}
	}
	close(s.send)
	g.mu.Unlock()

	if roomID != "" {
		if room, ok := g.reg.Get(roomID); ok {
			room.HandleDisconnect(s.id)
		}
	}
	obslog.L().Info("client disconnected", zap.String("conn", s.id), zap.String("room", roomID))
}
