package socketio

import (
	"net"
	"sync"
)

// ConnectionLimiter caps concurrent remote viewers. Loopback connections
// (the local TUI, a kiosk browser) are never limited. When a new remote
// viewer exceeds the cap, the oldest remote viewer is evicted.
type ConnectionLimiter struct {
	mu          sync.Mutex
	maxExternal int
	// external client IDs, oldest first
	externalClients []string
	// clientID -> remote address
	connections map[string]string
}

// NewConnectionLimiter creates a limiter that allows up to maxExternal
// concurrent non-loopback connections. maxExternal <= 0 disables the cap.
func NewConnectionLimiter(maxExternal int) *ConnectionLimiter {
	return &ConnectionLimiter{
		maxExternal:     maxExternal,
		externalClients: make([]string, 0),
		connections:     make(map[string]string),
	}
}

// TryAdd registers a new connection. It returns whether the connection is
// allowed and the ID of the evicted client, if any.
func (cl *ConnectionLimiter) TryAdd(clientID, remoteAddr string) (allowed bool, evictedID string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.connections[clientID]; exists {
		return true, ""
	}

	cl.connections[clientID] = remoteAddr

	if isLocalIP(remoteAddr) {
		return true, ""
	}

	cl.externalClients = append(cl.externalClients, clientID)

	if cl.maxExternal > 0 && len(cl.externalClients) > cl.maxExternal {
		evictedID = cl.externalClients[0]
		cl.externalClients = cl.externalClients[1:]
		delete(cl.connections, evictedID)
		return true, evictedID
	}

	return true, ""
}

// Remove unregisters a connection when a client disconnects.
func (cl *ConnectionLimiter) Remove(clientID string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	addr, exists := cl.connections[clientID]
	if !exists {
		return
	}

	delete(cl.connections, clientID)

	if isLocalIP(addr) {
		return
	}

	for i, id := range cl.externalClients {
		if id == clientID {
			cl.externalClients = append(cl.externalClients[:i], cl.externalClients[i+1:]...)
			break
		}
	}
}

// Counts returns the number of tracked connections and how many are remote.
func (cl *ConnectionLimiter) Counts() (total, external int) {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return len(cl.connections), len(cl.externalClients)
}

// isLocalIP reports whether addr (optionally with a port) is a loopback address.
func isLocalIP(addr string) bool {
	host := addr
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = h
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
