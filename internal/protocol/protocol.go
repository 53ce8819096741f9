package protocol

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Client-to-server events
const (
	EventJoinRoom    = "join-room"
	EventCursorMove  = "cursor-move"
	EventDrawStart   = "draw-start"
	EventDrawMove    = "draw-move"
	EventDrawEnd     = "draw-end"
	EventClearCanvas = "clear-canvas"
)

// Server-to-client events (cursor-move, draw-* and clear-canvas are echoed
// under the same names, tagged with the originating userId)
const (
	EventRoomState  = "room-state"
	EventUserJoined = "user-joined"
	EventUserLeft   = "user-left"
	EventUserCount  = "user-count"
	EventError      = "error"
)

// Stroke actions as stored in the drawing log
const (
	ActionStart = "start"
	ActionMove  = "move"
	ActionEnd   = "end"
)

// Envelope wraps every socket message in both directions
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode marshals a payload into a wire-ready envelope
func Encode(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	return json.Marshal(Envelope{Event: event, Data: data})
}

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type JoinRoom struct {
	RoomID string `json:"roomId"`
}

type CursorMove struct {
	UserID   string   `json:"userId,omitempty"`
	Position Position `json:"position"`
}

// Draw carries draw-start and draw-move payloads. UserID is set only on
// outbound echoes.
type Draw struct {
	UserID string  `json:"userId,omitempty"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Color  string  `json:"color"`
	Width  float64 `json:"width"`
}

// DrawEnd terminates a stroke; it carries no coordinates.
type DrawEnd struct {
	UserID string  `json:"userId,omitempty"`
	Color  string  `json:"color"`
	Width  float64 `json:"width"`
}

type ClearCanvas struct {
	UserID string `json:"userId"`
}

type UserJoined struct {
	UserID string `json:"userId"`
	Color  string `json:"color"`
}

type UserLeft struct {
	UserID string `json:"userId"`
}

type UserCount struct {
	Count int `json:"count"`
}

type ErrorMessage struct {
	Message string `json:"message"`
}

// UserState is one member in a room-state snapshot
type UserState struct {
	ID       string   `json:"id"`
	Color    string   `json:"color"`
	Position Position `json:"position"`
}

// RoomState is the catch-up payload sent to a joining connection
type RoomState struct {
	DrawingData []Command   `json:"drawingData"`
	Users       []UserState `json:"users"`
}

// Command is one unit of the persisted drawing log
type Command struct {
	Type      string    `json:"type"` // "stroke"
	Data      Stroke    `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Stroke is the payload of a stroke command. X/Y are nil for action "end",
// which replay consumers treat as a path terminator.
type Stroke struct {
	Action string   `json:"action"`
	X      *float64 `json:"x,omitempty"`
	Y      *float64 `json:"y,omitempty"`
	Color  string   `json:"color"`
	Width  float64  `json:"width"`
}

// Room code handling. Codes are 6-8 uppercase alphanumeric characters,
// normalized to uppercase at every boundary.

const roomCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

var roomCodePattern = regexp.MustCompile(`^[A-Z0-9]{6,8}$`)

func NormalizeRoomCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func ValidRoomCode(code string) bool {
	return roomCodePattern.MatchString(code)
}

// GenerateRoomCode returns a random 6-character room code
func GenerateRoomCode() (string, error) {
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate room code: %w", err)
	}
	for i, b := range buf {
		buf[i] = roomCodeCharset[int(b)%len(roomCodeCharset)]
	}
	return string(buf), nil
}
