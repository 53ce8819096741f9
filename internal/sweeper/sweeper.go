package sweeper

import (
	"log"
	"sync"
	"time"

	"github.com/manpreetbhatti/fresco/backend/internal/store"
)

type Config struct {
	Interval  time.Duration
	Retention time.Duration
}

func DefaultConfig() Config {
	return Config{
		Interval:  time.Hour,
		Retention: 24 * time.Hour,
	}
}

// Service periodically removes rooms inactive beyond the retention window.
// It runs off the real-time path; rooms with live traffic keep refreshing
// last_activity and are never candidates.
type Service struct {
	store  *store.Store
	config Config
	stop   chan struct{}
	wg     sync.WaitGroup
}

func New(s *store.Store, config Config) *Service {
	return &Service{
		store:  s,
		config: config,
		stop:   make(chan struct{}),
	}
}

func (s *Service) Start() {
	s.wg.Add(1)
	go s.run()
	log.Printf("🧹 Sweeper started (interval: %v, retention: %v)",
		s.config.Interval, s.config.Retention)
}

func (s *Service) Stop() {
	close(s.stop)
	s.wg.Wait()
	log.Println("🧹 Sweeper stopped")
}

func (s *Service) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	s.sweep()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Service) sweep() {
	removed, err := s.store.CleanupStale(s.config.Retention)
	if err != nil {
		log.Printf("Sweeper: cleanup failed: %v", err)
		return
	}
	if removed > 0 {
		log.Printf("🧹 Swept %d stale rooms", removed)
	}
}

// CleanupNow runs one sweep on demand and returns how many rooms were removed
func (s *Service) CleanupNow() (int, error) {
	return s.store.CleanupStale(s.config.Retention)
}
