package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/manpreetbhatti/fresco/backend/internal/protocol"
	"github.com/manpreetbhatti/fresco/backend/internal/store"
	"github.com/manpreetbhatti/fresco/backend/internal/sweeper"
	"github.com/manpreetbhatti/fresco/backend/internal/ws"
)

type API struct {
	hub     *ws.Hub
	store   *store.Store
	sweeper *sweeper.Service
}

func New(hub *ws.Hub, s *store.Store, sweep *sweeper.Service) *API {
	return &API{
		hub:     hub,
		store:   s,
		sweeper: sweep,
	}
}

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("Error encoding JSON response: %v", err)
	}
}

func errorResponse(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

func (a *API) HealthHandler(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) StatsHandler(w http.ResponseWriter, r *http.Request) {
	stats := map[string]any{
		"active_rooms":   a.hub.RoomCount(),
		"active_clients": a.hub.ClientCount(),
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
	}

	if dbStats, err := a.store.Stats(); err == nil {
		stats["total_rooms"] = dbStats["room_count"]
		stats["total_commands"] = dbStats["command_count"]
	}

	jsonResponse(w, http.StatusOK, stats)
}

// Room handlers

type RoomResponse struct {
	RoomID       string             `json:"roomId"`
	CreatedAt    time.Time          `json:"createdAt"`
	LastActivity *time.Time         `json:"lastActivity,omitempty"`
	DrawingData  []protocol.Command `json:"drawingData"`
	ActiveUsers  int                `json:"activeUsers"`
}

type JoinRoomRequest struct {
	RoomID string `json:"roomId"`
}

// JoinRoomHandler ensures the room exists and returns its id, creation time
// and drawing log so the client can render before the socket join.
func (a *API) JoinRoomHandler(w http.ResponseWriter, r *http.Request) {
	var req JoinRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if req.RoomID == "" {
		errorResponse(w, http.StatusBadRequest, "Room ID is required")
		return
	}

	roomID := protocol.NormalizeRoomCode(req.RoomID)
	if !protocol.ValidRoomCode(roomID) {
		errorResponse(w, http.StatusBadRequest, "Invalid room code format")
		return
	}

	room, err := a.store.GetOrCreate(roomID)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	commands, err := a.store.Commands(roomID)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if commands == nil {
		commands = []protocol.Command{}
	}

	jsonResponse(w, http.StatusOK, RoomResponse{
		RoomID:      room.ID,
		CreatedAt:   room.CreatedAt,
		DrawingData: commands,
	})
}

// CreateRoomHandler generates a fresh unused room code
func (a *API) CreateRoomHandler(w http.ResponseWriter, r *http.Request) {
	var roomID string
	for attempt := 0; attempt < 5; attempt++ {
		code, err := protocol.GenerateRoomCode()
		if err != nil {
			errorResponse(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		existing, err := a.store.GetRoom(code)
		if err != nil {
			errorResponse(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		if existing == nil {
			roomID = code
			break
		}
	}
	if roomID == "" {
		errorResponse(w, http.StatusInternalServerError, "Could not generate an unused room code")
		return
	}

	room, err := a.store.GetOrCreate(roomID)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	jsonResponse(w, http.StatusCreated, RoomResponse{
		RoomID:      room.ID,
		CreatedAt:   room.CreatedAt,
		DrawingData: []protocol.Command{},
	})
}

func (a *API) GetRoomHandler(w http.ResponseWriter, r *http.Request, roomID string) {
	roomID = protocol.NormalizeRoomCode(roomID)

	room, err := a.store.GetRoom(roomID)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if room == nil {
		errorResponse(w, http.StatusNotFound, "Room not found")
		return
	}

	commands, err := a.store.Commands(roomID)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if commands == nil {
		commands = []protocol.Command{}
	}

	jsonResponse(w, http.StatusOK, RoomResponse{
		RoomID:       room.ID,
		CreatedAt:    room.CreatedAt,
		LastActivity: &room.LastActivity,
		DrawingData:  commands,
		ActiveUsers:  a.hub.ActiveRooms()[roomID],
	})
}

type RoomSummary struct {
	RoomID       string    `json:"roomId"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
	ActiveUsers  int       `json:"activeUsers"`
}

func (a *API) ListRoomsHandler(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}

	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}

	rooms, err := a.store.ListRooms(limit, offset)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Failed to list rooms")
		return
	}

	activeRooms := a.hub.ActiveRooms()

	response := make([]RoomSummary, len(rooms))
	for i, room := range rooms {
		response[i] = RoomSummary{
			RoomID:       room.ID,
			CreatedAt:    room.CreatedAt,
			LastActivity: room.LastActivity,
			ActiveUsers:  activeRooms[room.ID],
		}
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"rooms":  response,
		"limit":  limit,
		"offset": offset,
	})
}

// CleanupHandler triggers one sweep of stale rooms
func (a *API) CleanupHandler(w http.ResponseWriter, r *http.Request) {
	removed, err := a.sweeper.CleanupNow()
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	jsonResponse(w, http.StatusOK, map[string]any{
		"message": fmt.Sprintf("Cleaned up %d old rooms", removed),
		"removed": removed,
	})
}

func (a *API) RoomsRouter(w http.ResponseWriter, r *http.Request) {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/rooms"), "/")

	switch {
	case path == "":
		switch r.Method {
		case http.MethodGet:
			a.ListRoomsHandler(w, r)
		case http.MethodPost:
			a.CreateRoomHandler(w, r)
		default:
			errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
		}
	case path == "join":
		if r.Method != http.MethodPost {
			errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		a.JoinRoomHandler(w, r)
	case path == "cleanup":
		if r.Method != http.MethodDelete {
			errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		a.CleanupHandler(w, r)
	default:
		if r.Method != http.MethodGet {
			errorResponse(w, http.StatusMethodNotAllowed, "Method not allowed")
			return
		}
		a.GetRoomHandler(w, r, path)
	}
}
