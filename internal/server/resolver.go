package server

import (
	"context"
	"net/netip"
	"strings"

	"sockmud/internal/arena"
)

// Resolver performs reverse lookups.  *net.Resolver satisfies it.
type Resolver interface {
	LookupAddr(ctx context.Context, addr string) ([]string, error)
}

type lookupResult struct {
	conn arena.Handle
	name string // empty when the lookup failed
}

// resolve runs on its own goroutine, once per connection.  It never
// touches the connection; the reactor applies the result.
func (s *Server) resolve(h arena.Handle, addr netip.Addr) {
	var name string
	names, err := s.resolver.LookupAddr(s.ctx, addr.String())
	if err == nil && len(names) > 0 {
		name = strings.TrimSuffix(names[0], ".")
	}

	select {
	case s.lookups <- lookupResult{conn: h, name: name}:
	case <-s.done:
	}
}

// drainLookups applies every finished lookup without blocking.  A failed
// lookup leaves the numeric address as the hostname.
func (s *Server) drainLookups() {
	for {
		select {
		case r := <-s.lookups:
			c, ok := s.reg.Conn(r.conn)
			if !ok {
				continue
			}
			if r.name != "" {
				c.host = r.name
			}
			c.lookupFinished()
			s.metrics.LookupResolved()
			s.logger.Debug("Lookup for %s finished.", c.host)
		default:
			return
		}
	}
}
