package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/manpreetbhatti/fresco/backend/internal/protocol"
)

func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "fresco-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	dbPath := filepath.Join(tmpDir, "test.db")
	s, err := New(dbPath)
	if err != nil {
		os.RemoveAll(tmpDir)
		t.Fatalf("Failed to create store: %v", err)
	}

	cleanup := func() {
		s.Close()
		os.RemoveAll(tmpDir)
	}

	return s, cleanup
}

func ptr(v float64) *float64 { return &v }

func TestStoreCreation(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	if s == nil {
		t.Fatal("Store should not be nil")
	}
}

func TestGetOrCreate(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	room, err := s.GetOrCreate("ABC123")
	if err != nil {
		t.Fatalf("Failed to get or create room: %v", err)
	}
	if room == nil {
		t.Fatal("Room should exist after GetOrCreate")
	}
	if room.ID != "ABC123" {
		t.Errorf("Expected room ID 'ABC123', got '%s'", room.ID)
	}

	// Second call returns the same room, no duplicate
	again, err := s.GetOrCreate("ABC123")
	if err != nil {
		t.Fatalf("Failed on second GetOrCreate: %v", err)
	}
	if !again.CreatedAt.Equal(room.CreatedAt) {
		t.Error("GetOrCreate should not recreate an existing room")
	}

	rooms, err := s.ListRooms(10, 0)
	if err != nil {
		t.Fatalf("Failed to list rooms: %v", err)
	}
	if len(rooms) != 1 {
		t.Errorf("Expected 1 room, got %d", len(rooms))
	}
}

func TestGetRoomMissing(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	room, err := s.GetRoom("NOSUCH1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if room != nil {
		t.Error("Missing room should return nil")
	}
}

func TestAppendCommandOrder(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	roomID := "ABC123"

	strokes := []protocol.Stroke{
		{Action: protocol.ActionStart, X: ptr(10), Y: ptr(10), Color: "#000", Width: 3},
		{Action: protocol.ActionMove, X: ptr(20), Y: ptr(20), Color: "#000", Width: 3},
		{Action: protocol.ActionMove, X: ptr(30), Y: ptr(15), Color: "#000", Width: 3},
		{Action: protocol.ActionEnd, Color: "#000", Width: 3},
	}

	for _, stroke := range strokes {
		if err := s.AppendCommand(roomID, stroke); err != nil {
			t.Fatalf("Failed to append command: %v", err)
		}
	}

	commands, err := s.Commands(roomID)
	if err != nil {
		t.Fatalf("Failed to read commands: %v", err)
	}
	if len(commands) != 4 {
		t.Fatalf("Expected 4 commands, got %d", len(commands))
	}

	// FIFO round-trip: read order matches append order
	for i, cmd := range commands {
		if cmd.Type != "stroke" {
			t.Errorf("Command %d: expected type 'stroke', got '%s'", i, cmd.Type)
		}
		if cmd.Data.Action != strokes[i].Action {
			t.Errorf("Command %d: expected action '%s', got '%s'", i, strokes[i].Action, cmd.Data.Action)
		}
	}
	if *commands[0].Data.X != 10 || *commands[1].Data.X != 20 || *commands[2].Data.X != 30 {
		t.Error("Command coordinates out of order")
	}
	if commands[3].Data.X != nil || commands[3].Data.Y != nil {
		t.Error("End command should carry no coordinates")
	}
}

func TestAppendCreatesRoom(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	err := s.AppendCommand("NEWROOM1", protocol.Stroke{
		Action: protocol.ActionStart, X: ptr(1), Y: ptr(1), Color: "#FFF", Width: 1,
	})
	if err != nil {
		t.Fatalf("Failed to append: %v", err)
	}

	room, err := s.GetRoom("NEWROOM1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if room == nil {
		t.Fatal("Append should create the room")
	}
}

func TestClear(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	roomID := "ABC123"
	for i := 0; i < 10; i++ {
		err := s.AppendCommand(roomID, protocol.Stroke{
			Action: protocol.ActionMove, X: ptr(float64(i)), Y: ptr(float64(i)), Color: "#000", Width: 2,
		})
		if err != nil {
			t.Fatalf("Failed to append: %v", err)
		}
	}

	if err := s.Clear(roomID); err != nil {
		t.Fatalf("Failed to clear: %v", err)
	}

	commands, err := s.Commands(roomID)
	if err != nil {
		t.Fatalf("Failed to read commands: %v", err)
	}
	if len(commands) != 0 {
		t.Errorf("Expected empty log after clear, got %d commands", len(commands))
	}

	// Clear on a room that does not exist yet creates an empty one
	if err := s.Clear("FRESH42"); err != nil {
		t.Fatalf("Clear on missing room failed: %v", err)
	}
	room, err := s.GetRoom("FRESH42")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if room == nil {
		t.Error("Clear should create a missing room")
	}
}

func TestCommandCount(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	for i := 0; i < 3; i++ {
		if err := s.AppendCommand("ABC123", protocol.Stroke{Action: protocol.ActionMove, Color: "#000"}); err != nil {
			t.Fatalf("Failed to append: %v", err)
		}
	}

	count, err := s.CommandCount("ABC123")
	if err != nil {
		t.Fatalf("Failed to count: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected count 3, got %d", count)
	}
}

func backdateRoom(t *testing.T, s *Store, roomID, modifier string) {
	t.Helper()
	_, err := s.db.Exec(
		"UPDATE rooms SET last_activity = datetime('now', ?) WHERE id = ?",
		modifier, roomID,
	)
	if err != nil {
		t.Fatalf("Failed to backdate room: %v", err)
	}
}

func TestCleanupStale(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	if _, err := s.GetOrCreate("OLDROOM1"); err != nil {
		t.Fatalf("Failed to create room: %v", err)
	}
	if _, err := s.GetOrCreate("FRESH001"); err != nil {
		t.Fatalf("Failed to create room: %v", err)
	}
	if err := s.AppendCommand("OLDROOM1", protocol.Stroke{Action: protocol.ActionStart, Color: "#000"}); err != nil {
		t.Fatalf("Failed to append: %v", err)
	}

	backdateRoom(t, s, "OLDROOM1", "-25 hours")
	backdateRoom(t, s, "FRESH001", "-23 hours")

	removed, err := s.CleanupStale(24 * time.Hour)
	if err != nil {
		t.Fatalf("CleanupStale failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Expected 1 room removed, got %d", removed)
	}

	room, err := s.GetRoom("OLDROOM1")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if room != nil {
		t.Error("Stale room should be deleted")
	}

	room, err = s.GetRoom("FRESH001")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if room == nil {
		t.Error("Room inside the retention window should be kept")
	}

	// Cascade: the stale room's commands are gone too
	count, err := s.CommandCount("OLDROOM1")
	if err != nil {
		t.Fatalf("Failed to count: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected 0 commands after cascade, got %d", count)
	}
}

func TestStats(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	for _, id := range []string{"ROOMA11", "ROOMB22", "ROOMC33"} {
		if _, err := s.GetOrCreate(id); err != nil {
			t.Fatalf("Failed to create room: %v", err)
		}
	}
	for i := 0; i < 5; i++ {
		if err := s.AppendCommand("ROOMA11", protocol.Stroke{Action: protocol.ActionMove, Color: "#000"}); err != nil {
			t.Fatalf("Failed to append: %v", err)
		}
	}

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("Failed to get stats: %v", err)
	}

	if stats["room_count"].(int) != 3 {
		t.Errorf("Expected 3 rooms, got %v", stats["room_count"])
	}
	if stats["command_count"].(int) != 5 {
		t.Errorf("Expected 5 commands, got %v", stats["command_count"])
	}
}
