package util

import (
	"fmt"
	"net"
	"net/netip"
	"strconv"
)

// FormatAddr returns "host:port".
func FormatAddr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// ParseListenAddr turns a host/port pair into an AddrPort.  An empty host
// binds every IPv4 interface.
func ParseListenAddr(host string, port int) (netip.AddrPort, error) {
	if host == "" {
		host = "0.0.0.0"
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return netip.AddrPort{}, fmt.Errorf("listen host %q must be a numeric IP: %w", host, err)
	}
	if port < 0 || port > 65535 {
		return netip.AddrPort{}, fmt.Errorf("port %d out of range 0-65535", port)
	}
	return netip.AddrPortFrom(addr, uint16(port)), nil
}

// IsLoopback reports whether addr is a loopback address.  Reverse
// lookups are skipped for these.
func IsLoopback(addr netip.Addr) bool {
	return addr.IsValid() && addr.Unmap().IsLoopback()
}
