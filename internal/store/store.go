package store

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/manpreetbhatti/fresco/backend/internal/protocol"
)

// Store owns the persisted rooms and their append-only drawing logs. All
// real-time state lives elsewhere; a store failure degrades durability only.
type Store struct {
	db *sql.DB
}

type Room struct {
	ID           string
	CreatedAt    time.Time
	LastActivity time.Time
}

func New(dbPath string) (*Store, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, err
	}

	// Cascade command deletes when a room is reaped
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, err
	}

	if err := createTables(db); err != nil {
		return nil, err
	}

	log.Printf("Store initialized at %s", dbPath)
	return &Store{db: db}, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS rooms (
		id TEXT PRIMARY KEY,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_activity DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_rooms_last_activity ON rooms(last_activity);

	CREATE TABLE IF NOT EXISTS drawing_commands (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		room_id TEXT NOT NULL,
		action TEXT NOT NULL,
		x REAL,
		y REAL,
		color TEXT NOT NULL DEFAULT '',
		width REAL NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (room_id) REFERENCES rooms(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_drawing_commands_room_id ON drawing_commands(room_id);
	`

	_, err := db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Room operations

func (s *Store) CreateRoom(id string) error {
	_, err := s.db.Exec("INSERT OR IGNORE INTO rooms (id) VALUES (?)", id)
	return err
}

// GetOrCreate returns the room, creating it with an empty log if absent.
// Safe against concurrent first-joins for the same id. Refreshes
// last_activity, so joining counts as room activity.
func (s *Store) GetOrCreate(id string) (*Room, error) {
	if err := s.CreateRoom(id); err != nil {
		return nil, err
	}
	if err := s.Touch(id); err != nil {
		return nil, err
	}
	return s.GetRoom(id)
}

func (s *Store) GetRoom(id string) (*Room, error) {
	row := s.db.QueryRow(
		"SELECT id, created_at, last_activity FROM rooms WHERE id = ?",
		id,
	)

	var room Room
	err := row.Scan(&room.ID, &room.CreatedAt, &room.LastActivity)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (s *Store) ListRooms(limit, offset int) ([]Room, error) {
	rows, err := s.db.Query(
		"SELECT id, created_at, last_activity FROM rooms ORDER BY last_activity DESC LIMIT ? OFFSET ?",
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []Room
	for rows.Next() {
		var room Room
		if err := rows.Scan(&room.ID, &room.CreatedAt, &room.LastActivity); err != nil {
			return nil, err
		}
		rooms = append(rooms, room)
	}
	return rooms, rows.Err()
}

func (s *Store) Touch(id string) error {
	_, err := s.db.Exec(
		"UPDATE rooms SET last_activity = CURRENT_TIMESTAMP WHERE id = ?",
		id,
	)
	return err
}

func (s *Store) DeleteRoom(id string) error {
	_, err := s.db.Exec("DELETE FROM rooms WHERE id = ?", id)
	return err
}

// Drawing log operations

// AppendCommand adds a stroke to the room's log and refreshes last_activity.
// Commands are read back in exactly the order they were appended.
func (s *Store) AppendCommand(roomID string, stroke protocol.Stroke) error {
	// Ensure room exists
	if err := s.CreateRoom(roomID); err != nil {
		return err
	}

	var x, y any
	if stroke.X != nil {
		x = *stroke.X
	}
	if stroke.Y != nil {
		y = *stroke.Y
	}

	_, err := s.db.Exec(
		"INSERT INTO drawing_commands (room_id, action, x, y, color, width) VALUES (?, ?, ?, ?, ?, ?)",
		roomID, stroke.Action, x, y, stroke.Color, stroke.Width,
	)
	if err != nil {
		return err
	}

	return s.Touch(roomID)
}

// Commands returns the room's drawing log in append order
func (s *Store) Commands(roomID string) ([]protocol.Command, error) {
	rows, err := s.db.Query(
		"SELECT action, x, y, color, width, created_at FROM drawing_commands WHERE room_id = ? ORDER BY id ASC",
		roomID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var commands []protocol.Command
	for rows.Next() {
		var (
			stroke    protocol.Stroke
			x, y      sql.NullFloat64
			createdAt time.Time
		)
		if err := rows.Scan(&stroke.Action, &x, &y, &stroke.Color, &stroke.Width, &createdAt); err != nil {
			return nil, err
		}
		if x.Valid {
			stroke.X = &x.Float64
		}
		if y.Valid {
			stroke.Y = &y.Float64
		}
		commands = append(commands, protocol.Command{
			Type:      "stroke",
			Data:      stroke,
			Timestamp: createdAt,
		})
	}
	return commands, rows.Err()
}

func (s *Store) CommandCount(roomID string) (int, error) {
	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM drawing_commands WHERE room_id = ?",
		roomID,
	).Scan(&count)
	return count, err
}

// Clear empties the room's drawing log, creating the room if it does not
// exist yet, and refreshes last_activity.
func (s *Store) Clear(roomID string) error {
	if err := s.CreateRoom(roomID); err != nil {
		return err
	}
	if _, err := s.db.Exec("DELETE FROM drawing_commands WHERE room_id = ?", roomID); err != nil {
		return err
	}
	return s.Touch(roomID)
}

// Maintenance

// CleanupStale deletes rooms whose last_activity predates now minus the
// retention window and returns how many were removed. Command rows cascade.
func (s *Store) CleanupStale(retention time.Duration) (int, error) {
	modifier := fmt.Sprintf("-%d seconds", int64(retention.Seconds()))
	result, err := s.db.Exec(
		"DELETE FROM rooms WHERE last_activity < datetime('now', ?)",
		modifier,
	)
	if err != nil {
		return 0, err
	}
	removed, err := result.RowsAffected()
	return int(removed), err
}

// Stats

func (s *Store) Stats() (map[string]any, error) {
	stats := make(map[string]any)

	var roomCount int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM rooms").Scan(&roomCount); err != nil {
		return nil, err
	}
	stats["room_count"] = roomCount

	var commandCount int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM drawing_commands").Scan(&commandCount); err != nil {
		return nil, err
	}
	stats["command_count"] = commandCount

	return stats, nil
}
