package stack

import (
	"fmt"
	"net"
	"sync"

	"github.com/tturner/cipadapter/internal/connmgr"
)

// UDPSockets is the real, net-backed implementation of connmgr.HostSockets
// and iorun.Sender: both share the exact SendUdpData signature, so one
// concrete type satisfies both interfaces without an adapter (spec.md §6's
// host socket surface, grounded on the teacher's internal/server/core
// listener's UDP handling).
type UDPSockets struct {
	mu         sync.Mutex
	conns      map[int]*net.UDPConn
	nextHandle int
}

// NewUDPSockets returns an empty socket table.
func NewUDPSockets() *UDPSockets {
	return &UDPSockets{conns: make(map[int]*net.UDPConn)}
}

// CreateUdpSocket opens a UDP socket and returns a handle for it. When addr
// is non-empty the socket binds there (the well-known UDP-IO port an
// originator sends connected data to); an empty addr binds an ephemeral
// local port, used for per-connection producing sockets whose destination
// is supplied per-call to SendUdpData rather than fixed at bind time.
// Direction is not used: both consuming and producing sockets are plain
// unconnected UDP sockets.
func (s *UDPSockets) CreateUdpSocket(direction connmgr.SocketDirection, addr string) (int, error) {
	local := &net.UDPAddr{Port: 0}
	if addr != "" {
		resolved, err := net.ResolveUDPAddr("udp", addr)
		if err != nil {
			return 0, fmt.Errorf("stack: resolve %q: %w", addr, err)
		}
		local = resolved
	}
	conn, err := net.ListenUDP("udp", local)
	if err != nil {
		return 0, fmt.Errorf("stack: open udp socket: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextHandle++
	handle := s.nextHandle
	s.conns[handle] = conn
	return handle, nil
}

// SendUdpData writes data to addr over the socket identified by handle. An
// empty addr (no destination known for this frame) is a no-op, not an
// error, since the multicast coordinator may hand a connection its
// producing socket before an originator address is established.
func (s *UDPSockets) SendUdpData(handle int, addr string, data []byte) error {
	if addr == "" {
		return nil
	}
	s.mu.Lock()
	conn := s.conns[handle]
	s.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("stack: no socket for handle %d", handle)
	}
	dst, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return fmt.Errorf("stack: resolve %q: %w", addr, err)
	}
	_, err = conn.WriteToUDP(data, dst)
	return err
}

// CloseSocket closes and forgets the socket identified by handle.
func (s *UDPSockets) CloseSocket(handle int) error {
	s.mu.Lock()
	conn := s.conns[handle]
	delete(s.conns, handle)
	s.mu.Unlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// ReadFrom blocks on the socket identified by handle and returns the next
// datagram and its source address, for the listener loop to hand to
// Driver.HandleReceivedConnectedData.
func (s *UDPSockets) ReadFrom(handle int, buf []byte) (int, string, error) {
	s.mu.Lock()
	conn := s.conns[handle]
	s.mu.Unlock()
	if conn == nil {
		return 0, "", fmt.Errorf("stack: no socket for handle %d", handle)
	}
	n, addr, err := conn.ReadFromUDP(buf)
	if err != nil {
		return n, "", err
	}
	return n, addr.String(), nil
}
