// Package zeroconf advertises the redirect server over mDNS/DNS-SD so
// clients on the LAN can find it as <name>.local.
package zeroconf

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/grandcat/zeroconf"
)

const (
	serviceType = "_http._tcp"
	domain      = "local."
)

// Service manages mDNS service registration.
type Service struct {
	name string // instance name, e.g. "rgo"
	port int
	txt  []string
}

// New creates a Service that will advertise name on port.
func New(name string, port int) *Service {
	return &Service{
		name: name,
		port: port,
		txt:  []string{"model=rgo", "list=/priv/list"},
	}
}

// PortFromAddr extracts the TCP port from a listen address such as
// "127.0.0.1:3000" or ":3000".
func PortFromAddr(addr string) (int, error) {
	_, p, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, fmt.Errorf("zeroconf: parse addr %q: %w", addr, err)
	}
	port, err := strconv.Atoi(p)
	if err != nil || port <= 0 || port > 65535 {
		return 0, fmt.Errorf("zeroconf: invalid port %q", p)
	}
	return port, nil
}

// Start registers the mDNS service and blocks until ctx is cancelled, at which
// point it shuts down the server cleanly.
func (s *Service) Start(ctx context.Context) error {
	server, err := zeroconf.Register(
		s.name,      // instance name
		serviceType, // service type
		domain,      // domain
		s.port,      // port
		s.txt,       // TXT records
		nil,         // ifaces: nil means all interfaces
	)
	if err != nil {
		return fmt.Errorf("zeroconf register: %w", err)
	}
	slog.Info("zeroconf: registered mDNS service",
		"name", s.name,
		"port", s.port,
		"txt", s.txt,
	)

	<-ctx.Done()

	server.Shutdown()
	slog.Info("zeroconf: mDNS service unregistered")
	return nil
}
