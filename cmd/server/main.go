package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/handlers"

	"github.com/manpreetbhatti/fresco/backend/internal/api"
	"github.com/manpreetbhatti/fresco/backend/internal/config"
	"github.com/manpreetbhatti/fresco/backend/internal/presence"
	"github.com/manpreetbhatti/fresco/backend/internal/ratelimit"
	"github.com/manpreetbhatti/fresco/backend/internal/store"
	"github.com/manpreetbhatti/fresco/backend/internal/sweeper"
	"github.com/manpreetbhatti/fresco/backend/internal/ws"
)

func main() {
	cfg := config.FromEnv()

	db, err := store.New(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	registry := presence.NewRegistry()
	throttle := ratelimit.NewThrottle(cfg.CursorInterval)

	hub := ws.NewHub(db, registry, throttle)
	go hub.Run()

	sweep := sweeper.New(db, sweeper.Config{
		Interval:  cfg.SweepInterval,
		Retention: cfg.Retention,
	})
	sweep.Start()

	apiHandler := api.New(hub, db, sweep)

	mux := http.NewServeMux()

	// WebSocket endpoint
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWs(hub, w, r)
	})

	mux.HandleFunc("/health", apiHandler.HealthHandler)
	mux.HandleFunc("/api/stats", apiHandler.StatsHandler)
	mux.HandleFunc("/api/rooms", apiHandler.RoomsRouter)
	mux.HandleFunc("/api/rooms/", apiHandler.RoomsRouter)

	handler := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{"GET", "POST", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type"}),
	)(mux)
	handler = handlers.LoggingHandler(os.Stdout, handler)

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		sweep.Stop()
		db.Close()
		os.Exit(0)
	}()

	log.Printf("🎨 Fresco server starting on %s", cfg.Addr)
	log.Printf("📁 Database: %s", cfg.DBPath)
	log.Println("Endpoints:")
	log.Println("  - WebSocket: /ws")
	log.Println("  - Health:    GET /health")
	log.Println("  - Stats:     GET /api/stats")
	log.Println("  - Rooms:     GET/POST /api/rooms")
	log.Println("  - Join:      POST /api/rooms/join")
	log.Println("  - Room:      GET /api/rooms/{id}")
	log.Println("  - Cleanup:   DELETE /api/rooms/cleanup")

	if err := http.ListenAndServe(cfg.Addr, handler); err != nil {
		log.Fatal("ListenAndServe: ", err)
	}
}
