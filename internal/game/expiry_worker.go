package game

import (
	"context"
	"log"
	"time"
)

const expirySweepInterval = time.Minute

// StartExpiryWorker sweeps the registry until ctx is cancelled: waiting
// rooms past their expiry are cancelled with a refund, and completed
// sessions past the rematch window are dropped.
func (m *Manager) StartExpiryWorker(ctx context.Context) {
	ticker := time.NewTicker(expirySweepInterval)
	defer ticker.Stop()

	log.Printf("[EXPIRY] Worker started, sweeping every %s", expirySweepInterval)
	for {
		select {
		case <-ctx.Done():
			log.Printf("[EXPIRY] Worker stopped")
			return
		case <-ticker.C:
			m.sweep(ctx)
		}
	}
}

func (m *Manager) sweep(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	var expired, reaped int

	for _, s := range m.reg.waitingSessions() {
		if s.Durability != DurabilityPersisted || s.ExpiresAt.IsZero() || now.Before(s.ExpiresAt) {
			continue
		}
		m.cancelWaitingRoom(ctx, s, ReasonRoomExpired)
		expired++
	}

	for _, s := range m.reg.sessions {
		if s.Status == StatusCompleted && now.Sub(s.CompletedAt) > completedRetention {
			m.teardown(ctx, s)
			reaped++
		}
	}

	if expired > 0 || reaped > 0 {
		log.Printf("[EXPIRY] Sweep: %d waiting rooms expired, %d completed sessions reaped", expired, reaped)
	}
}
