// Package auth validates the optional submission token and throttles
// clients that keep guessing it wrong.
package auth

import (
	"context"
	"encoding/base64"
	"log"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mn-ibiz/label-daemon/internal/config"
)

const (
	MaxTokenAttempts = 5
	LockoutDuration  = 5 * time.Minute
	CleanupInterval  = 5 * time.Minute
)

type failInfo struct {
	count       int
	lockedUntil time.Time
}

// Manager handles submission token validation and per-client throttling.
type Manager struct {
	failedAttempts map[string]failInfo
	mu             sync.RWMutex
}

// NewManager creates an auth manager with a cleanup goroutine bound to ctx.
func NewManager(ctx context.Context) *Manager {
	m := &Manager{
		failedAttempts: make(map[string]failInfo),
	}
	go m.cleanupLoop(ctx)
	log.Printf("[i] Auth manager initialized (enabled=%v)", m.Enabled())
	return m
}

// Enabled returns true if a token hash was injected at build time.
func (m *Manager) Enabled() bool {
	return config.SubmitTokenHashB64 != ""
}

// ValidateToken decodes the base64 hash and compares with bcrypt.
func (m *Manager) ValidateToken(token string) bool {
	if !m.Enabled() {
		return true
	}
	hashBytes, err := base64.StdEncoding.DecodeString(config.SubmitTokenHashB64)
	if err != nil {
		log.Printf("[X] Failed to decode token hash from base64: %v", err)
		return false
	}
	return bcrypt.CompareHashAndPassword(hashBytes, []byte(token)) == nil
}

// IsLockedOut returns true if the client has exceeded MaxTokenAttempts.
func (m *Manager) IsLockedOut(addr string) bool {
	m.mu.RLock()
	info, exists := m.failedAttempts[addr]
	m.mu.RUnlock()
	if !exists {
		return false
	}
	return info.count >= MaxTokenAttempts && time.Now().Before(info.lockedUntil)
}

// RecordFailedAttempt increments the failure counter for a client.
func (m *Manager) RecordFailedAttempt(addr string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	info := m.failedAttempts[addr]
	info.count++
	if info.count >= MaxTokenAttempts {
		info.lockedUntil = time.Now().Add(LockoutDuration)
		log.Printf("[AUDIT] Client %s locked out for %v after %d failed token attempts",
			addr, LockoutDuration, info.count)
	}
	m.failedAttempts[addr] = info
}

// ClearFailedAttempts resets the counter after a valid token.
func (m *Manager) ClearFailedAttempts(addr string) {
	m.mu.Lock()
	delete(m.failedAttempts, addr)
	m.mu.Unlock()
}

func (m *Manager) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Println("[i] Auth cleanup goroutine stopped")
			return
		case <-ticker.C:
			m.mu.Lock()
			now := time.Now()
			for k, v := range m.failedAttempts {
				if v.count >= MaxTokenAttempts && now.After(v.lockedUntil) {
					delete(m.failedAttempts, k)
				}
			}
			m.mu.Unlock()
		}
	}
}
