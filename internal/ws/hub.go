package ws

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/manpreetbhatti/fresco/backend/internal/presence"
	"github.com/manpreetbhatti/fresco/backend/internal/protocol"
	"github.com/manpreetbhatti/fresco/backend/internal/ratelimit"
	"github.com/manpreetbhatti/fresco/backend/internal/store"
)

// Hub coordinates room sessions: it owns the connection-to-room routing,
// fans events out to peers, and hands accepted strokes to the store writer.
// All session state transitions happen on the Run goroutine; the store writer
// drains the persist queue independently so a slow or failing store never
// delays a broadcast.
type Hub struct {
	store    *store.Store // nil means no persistence (degraded mode)
	registry *presence.Registry
	throttle *ratelimit.Throttle

	// Connections by room, for fan-out. Mutated only by Run.
	rooms map[string]map[*Client]bool

	inbound    chan *event
	unregister chan *Client
	persist    chan persistOp

	mu sync.RWMutex
}

type event struct {
	client *Client
	env    protocol.Envelope
}

type persistOp struct {
	roomID string
	stroke *protocol.Stroke // nil means clear
}

func NewHub(s *store.Store, registry *presence.Registry, throttle *ratelimit.Throttle) *Hub {
	return &Hub{
		store:      s,
		registry:   registry,
		throttle:   throttle,
		rooms:      make(map[string]map[*Client]bool),
		inbound:    make(chan *event, 64),
		unregister: make(chan *Client, 16),
		persist:    make(chan persistOp, 256),
	}
}

func (h *Hub) Run() {
	go h.storeWriter()

	for {
		select {
		case ev := <-h.inbound:
			h.handleEvent(ev.client, ev.env)
		case client := <-h.unregister:
			h.handleDisconnect(client)
		}
	}
}

// storeWriter drains the persist queue. Write-behind: failures are logged
// and swallowed, the live session never sees them.
func (h *Hub) storeWriter() {
	for op := range h.persist {
		if h.store == nil {
			continue
		}
		var err error
		if op.stroke == nil {
			err = h.store.Clear(op.roomID)
		} else {
			err = h.store.AppendCommand(op.roomID, *op.stroke)
		}
		if err != nil {
			log.Printf("⚠️ Store write failed for room %s, continuing without persistence: %v", op.roomID, err)
		}
	}
}

// queuePersist hands a stroke (or clear, when stroke is nil) to the store
// writer without blocking. A full queue drops the write.
func (h *Hub) queuePersist(roomID string, stroke *protocol.Stroke) bool {
	select {
	case h.persist <- persistOp{roomID: roomID, stroke: stroke}:
		return true
	default:
		log.Printf("⚠️ Persist queue full, dropping write for room %s", roomID)
		return false
	}
}

func (h *Hub) handleEvent(c *Client, env protocol.Envelope) {
	// A disconnect may race an in-flight event from the same connection;
	// once cleanup ran, late events are dropped.
	if c.gone {
		return
	}

	switch env.Event {
	case protocol.EventJoinRoom:
		h.handleJoin(c, env.Data)
	case protocol.EventCursorMove:
		h.handleCursorMove(c, env.Data)
	case protocol.EventDrawStart, protocol.EventDrawMove:
		h.handleDraw(c, env.Event, env.Data)
	case protocol.EventDrawEnd:
		h.handleDrawEnd(c, env.Data)
	case protocol.EventClearCanvas:
		h.handleClear(c)
	default:
		log.Printf("Unknown event %q from client %s", env.Event, c.id)
	}
}

func (h *Hub) handleJoin(c *Client, data json.RawMessage) {
	var req protocol.JoinRoom
	if err := json.Unmarshal(data, &req); err != nil {
		h.sendError(c, "Failed to join room")
		return
	}

	roomID := protocol.NormalizeRoomCode(req.RoomID)
	if !protocol.ValidRoomCode(roomID) {
		h.sendError(c, "Invalid room code format")
		return
	}

	// Leave previous room if any
	if c.room != "" && c.room != roomID {
		h.leaveRoom(c)
	}

	p, count := h.registry.Join(roomID, c.id)
	c.room = roomID

	h.mu.Lock()
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][c] = true
	h.mu.Unlock()

	// Everyone in the room, joiner included, sees the new count
	h.broadcast(roomID, protocol.EventUserCount, protocol.UserCount{Count: count}, nil)

	// Existing peers learn about the new participant
	h.broadcast(roomID, protocol.EventUserJoined, protocol.UserJoined{UserID: c.id, Color: p.Color}, c)

	// Catch the joiner up. A failed log read degrades to an empty canvas.
	var commands []protocol.Command
	if h.store != nil {
		if _, err := h.store.GetOrCreate(roomID); err != nil {
			log.Printf("⚠️ Store unavailable for room %s, continuing without persistence: %v", roomID, err)
		} else if commands, err = h.store.Commands(roomID); err != nil {
			log.Printf("⚠️ Store read failed for room %s, sending empty room state: %v", roomID, err)
			commands = nil
		}
	}

	members := h.registry.Members(roomID)
	users := make([]protocol.UserState, 0, len(members))
	for _, m := range members {
		users = append(users, protocol.UserState{ID: m.ID, Color: m.Color, Position: m.Position})
	}
	if commands == nil {
		commands = []protocol.Command{}
	}
	h.sendTo(c, protocol.EventRoomState, protocol.RoomState{DrawingData: commands, Users: users})

	log.Printf("Client %s joined room %s (total: %d)", c.id, roomID, count)
}

func (h *Hub) handleCursorMove(c *Client, data json.RawMessage) {
	if c.room == "" {
		return
	}

	var req protocol.CursorMove
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}

	// Stale events after leave are dropped by the registry
	if !h.registry.UpdateCursor(c.room, c.id, req.Position) {
		return
	}

	h.broadcast(c.room, protocol.EventCursorMove, protocol.CursorMove{
		UserID:   c.id,
		Position: req.Position,
	}, c)
}

func (h *Hub) handleDraw(c *Client, eventName string, data json.RawMessage) {
	if c.room == "" {
		return
	}

	var req protocol.Draw
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}
	req.UserID = c.id

	// Broadcast first; persistence is an independent side effect
	h.broadcast(c.room, eventName, req, c)

	action := protocol.ActionStart
	if eventName == protocol.EventDrawMove {
		action = protocol.ActionMove
	}
	x, y := req.X, req.Y
	h.queuePersist(c.room, &protocol.Stroke{
		Action: action,
		X:      &x,
		Y:      &y,
		Color:  req.Color,
		Width:  req.Width,
	})
}

func (h *Hub) handleDrawEnd(c *Client, data json.RawMessage) {
	if c.room == "" {
		return
	}

	var req protocol.DrawEnd
	if err := json.Unmarshal(data, &req); err != nil {
		return
	}
	req.UserID = c.id

	h.broadcast(c.room, protocol.EventDrawEnd, req, c)

	h.queuePersist(c.room, &protocol.Stroke{
		Action: protocol.ActionEnd,
		Color:  req.Color,
		Width:  req.Width,
	})
}

func (h *Hub) handleClear(c *Client) {
	if c.room == "" {
		return
	}

	// Clear goes to the whole room, sender included
	h.broadcast(c.room, protocol.EventClearCanvas, protocol.ClearCanvas{UserID: c.id}, nil)

	h.queuePersist(c.room, nil)
}

func (h *Hub) handleDisconnect(c *Client) {
	if c.gone {
		return
	}
	c.gone = true
	if c.room != "" {
		h.leaveRoom(c)
	}
	h.throttle.Forget(c.id)
	close(c.send)
	log.Printf("Client %s disconnected", c.id)
}

// leaveRoom removes the client from its current room and notifies the
// remaining members. Shared by disconnect and room switch.
func (h *Hub) leaveRoom(c *Client) {
	roomID := c.room
	c.room = ""

	h.mu.Lock()
	if clients, ok := h.rooms[roomID]; ok {
		delete(clients, c)
		if len(clients) == 0 {
			delete(h.rooms, roomID)
		}
	}
	h.mu.Unlock()

	count, ok := h.registry.Leave(roomID, c.id)
	if !ok {
		return
	}

	if count > 0 {
		h.broadcast(roomID, protocol.EventUserCount, protocol.UserCount{Count: count}, nil)
		h.broadcast(roomID, protocol.EventUserLeft, protocol.UserLeft{UserID: c.id}, nil)
	} else {
		log.Printf("Room %s closed (empty)", roomID)
	}
}

// broadcast fans an event out to the room, skipping exclude when set. Sends
// are non-blocking: a client with a full send buffer is dropped rather than
// allowed to stall its peers. Returns the number of clients reached.
func (h *Hub) broadcast(roomID, eventName string, payload any, exclude *Client) int {
	data, err := protocol.Encode(eventName, payload)
	if err != nil {
		log.Printf("Failed to encode %s broadcast: %v", eventName, err)
		return 0
	}

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.rooms[roomID]))
	for client := range h.rooms[roomID] {
		if client != exclude {
			clients = append(clients, client)
		}
	}
	h.mu.RUnlock()

	delivered := 0
	for _, client := range clients {
		select {
		case client.send <- data:
			delivered++
		default:
			log.Printf("Client %s send buffer full, dropping message", client.id)
		}
	}
	return delivered
}

func (h *Hub) sendTo(c *Client, eventName string, payload any) {
	data, err := protocol.Encode(eventName, payload)
	if err != nil {
		log.Printf("Failed to encode %s message: %v", eventName, err)
		return
	}
	select {
	case c.send <- data:
	default:
		log.Printf("Client %s send buffer full, dropping message", c.id)
	}
}

func (h *Hub) sendError(c *Client, message string) {
	h.sendTo(c, protocol.EventError, protocol.ErrorMessage{Message: message})
}

// Stats accessors used by the REST layer

func (h *Hub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	count := 0
	for _, clients := range h.rooms {
		count += len(clients)
	}
	return count
}

// ActiveRooms returns live member counts per room
func (h *Hub) ActiveRooms() map[string]int {
	return h.registry.Counts()
}
