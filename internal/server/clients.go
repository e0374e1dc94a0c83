// Package server maneja las conexiones WebSocket y la recepción de trabajos de etiquetas.
package server

import (
	"sync"

	"github.com/coder/websocket"
)

// ClientRegistry manages connected WebSocket clients thread-safely. It also
// remembers which client submitted each job so completion can be pushed back
// to the right connection.
type ClientRegistry struct {
	clients  map[*websocket.Conn]string // conn -> remote addr
	jobOwner map[string]*websocket.Conn // job ID -> submitting conn
	mu       sync.RWMutex
}

// NewClientRegistry creates a new client registry
func NewClientRegistry() *ClientRegistry {
	return &ClientRegistry{
		clients:  make(map[*websocket.Conn]string),
		jobOwner: make(map[string]*websocket.Conn),
	}
}

// Add registers a new client connection
func (r *ClientRegistry) Add(conn *websocket.Conn, addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[conn] = addr
}

// Remove unregisters a client connection and drops its job subscriptions.
func (r *ClientRegistry) Remove(conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, conn)
	for jobID, owner := range r.jobOwner {
		if owner == conn {
			delete(r.jobOwner, jobID)
		}
	}
}

// Count returns the number of connected clients
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// TrackJob links a job to the connection that submitted it.
func (r *ClientRegistry) TrackJob(jobID string, conn *websocket.Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.jobOwner[jobID] = conn
}

// OwnerOf returns the connection that submitted a job, if still connected.
func (r *ClientRegistry) OwnerOf(jobID string) (*websocket.Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.jobOwner[jobID]
	return conn, ok
}

// ReleaseJob forgets a finished job's subscription.
func (r *ClientRegistry) ReleaseJob(jobID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.jobOwner, jobID)
}

// ForEach executes a function for each connected client
func (r *ClientRegistry) ForEach(fn func(*websocket.Conn)) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for conn := range r.clients {
		fn(conn)
	}
}
