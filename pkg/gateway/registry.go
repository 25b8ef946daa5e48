package gateway

import (
	"sync"

	"github.com/voxpod/voxpod/pkg/session"
)

// connRegistry tracks the latest connection per device. A device that
// reconnects replaces its old handle; the old read loop must not
// remove the new one when it finally unwinds.
type connRegistry struct {
	mu      sync.RWMutex
	clients map[string]*client
}

type client struct {
	conn *Conn
	sess *session.Session
}

func newConnRegistry() *connRegistry {
	return &connRegistry{clients: make(map[string]*client)}
}

// add registers a connection as the device's latest handle, returning
// the replaced one if any.
func (r *connRegistry) add(deviceID string, conn *Conn, sess *session.Session) *client {
	r.mu.Lock()
	defer r.mu.Unlock()
	old := r.clients[deviceID]
	r.clients[deviceID] = &client{conn: conn, sess: sess}
	return old
}

// remove drops the device's handle only if conn is still the latest.
func (r *connRegistry) remove(deviceID string, conn *Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[deviceID]; ok && c.conn == conn {
		delete(r.clients, deviceID)
	}
}

// get returns the device's current handle.
func (r *connRegistry) get(deviceID string) (*client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[deviceID]
	return c, ok
}

// count returns the number of connected devices.
func (r *connRegistry) count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
