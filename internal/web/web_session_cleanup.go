package web

import (
	"log"
	"time"
)

const sessionCleanupInterval = 15 * time.Minute

// StartSessionCleanup starts a background goroutine to clean up expired
// sessions and stale flash messages until Shutdown
func (s *WebServer) StartSessionCleanup() {
	go func() {
		ticker := time.NewTicker(sessionCleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-s.stopChan:
				log.Printf("[WEB]: session cleanup stopped")
				return
			case <-ticker.C:
				s.cleanupSessions()
			}
		}
	}()

	log.Println("[WEB]: started session cleanup background task")
}

func (s *WebServer) cleanupSessions() {
	if s.DB.IsDBshutdown() {
		return
	}
	n, err := s.DB.CleanupExpiredSessions()
	if err != nil {
		log.Printf("[WEB]: error cleaning up expired sessions: %v", err)
	}
	flashes := s.flashes.Prune(flashMaxIdle)
	if n > 0 || flashes > 0 {
		log.Printf("[WEB]: session cleanup removed %d sessions and %d flash queues", n, flashes)
	}
}
