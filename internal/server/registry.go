package server

import (
	"sockmud/internal/arena"
	"sockmud/internal/session"
)

// Registry owns every connection and session.  Sessions that reached
// the game are also kept in the active list, in the order they entered.
type Registry struct {
	conns    *arena.Arena[Connection]
	sessions *arena.Arena[session.Session]
	active   []arena.Handle
}

// NewRegistry creates a registry holding at most maxConns connections
// (0 = unbounded).
func NewRegistry(maxConns int) *Registry {
	return &Registry{
		conns:    arena.New(maxConns, resetConnection),
		sessions: arena.New(0, (*session.Session).Reset),
	}
}

// Conn resolves a connection handle.
func (r *Registry) Conn(h arena.Handle) (*Connection, bool) { return r.conns.Get(h) }

// Session resolves a session handle.
func (r *Registry) Session(h arena.Handle) (*session.Session, bool) { return r.sessions.Get(h) }

// Connections returns the handles of every live connection, closed ones
// awaiting recycling included.
func (r *Registry) Connections() []arena.Handle { return r.conns.Handles() }

// Live is the number of allocated connections.
func (r *Registry) Live() int { return r.conns.Len() }

// Pooled is the number of recycled connection slots.
func (r *Registry) Pooled() int { return r.conns.Pooled() }

// Sessions is the number of allocated sessions, pre-login ones included.
func (r *Registry) Sessions() int { return r.sessions.Len() }

// Active returns the handles in the active list.
func (r *Registry) Active() []arena.Handle {
	return append([]arena.Handle(nil), r.active...)
}

// FindActive looks a session up by name in the active list.
func (r *Registry) FindActive(name string) (arena.Handle, *session.Session, bool) {
	for _, h := range r.active {
		if s, ok := r.sessions.Get(h); ok && session.SameName(s.Name, name) {
			return h, s, true
		}
	}
	return arena.Handle{}, nil, false
}

// IsActive reports whether h is in the active list.
func (r *Registry) IsActive(h arena.Handle) bool {
	for _, a := range r.active {
		if a == h {
			return true
		}
	}
	return false
}

func (r *Registry) newConn() (arena.Handle, *Connection, error) {
	h, c, err := r.conns.Alloc()
	if err != nil {
		return h, nil, err
	}
	c.handle = h
	return h, c, nil
}

func (r *Registry) newSession() (arena.Handle, *session.Session, error) {
	return r.sessions.Alloc()
}

func (r *Registry) activate(h arena.Handle) {
	if !r.IsActive(h) {
		r.active = append(r.active, h)
	}
}

// destroy drops h from the active list and returns it to the pool.
func (r *Registry) destroy(h arena.Handle) {
	for i, a := range r.active {
		if a == h {
			r.active = append(r.active[:i], r.active[i+1:]...)
			break
		}
	}
	r.sessions.Free(h)
}
